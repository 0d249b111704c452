package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Store. Data is lost on restart.
type Memory struct {
	mu         sync.RWMutex
	clones     []Clone
	broadcasts []Broadcast
	activity   []Activity
	nextID     int64
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// AddClone implements Store.
func (m *Memory) AddClone(_ context.Context, c Clone) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	for i := range m.clones {
		if m.clones[i].Token == c.Token {
			m.clones[i].OwnerID = c.OwnerID
			m.clones[i].Name = c.Name
			return nil
		}
	}
	m.clones = append(m.clones, c)
	return nil
}

// ListClones implements Store.
func (m *Memory) ListClones(_ context.Context, ownerID int64) ([]Clone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Clone, 0, len(m.clones))
	for _, c := range m.clones {
		if ownerID == 0 || c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

// RemoveClone implements Store.
func (m *Memory) RemoveClone(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.clones, func(c Clone) bool { return c.Token == token })
	if i < 0 {
		return ErrNotFound
	}
	m.clones = slices.Delete(m.clones, i, i+1)
	return nil
}

// AddBroadcast implements Store.
func (m *Memory) AddBroadcast(_ context.Context, b Broadcast) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	b.ID = m.nextID
	if b.SentAt.IsZero() {
		b.SentAt = m.now().UTC()
	}
	m.broadcasts = append(m.broadcasts, b)
	return b.ID, nil
}

// FinishBroadcast implements Store.
func (m *Memory) FinishBroadcast(_ context.Context, id int64, attempted, delivered int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.broadcasts {
		if m.broadcasts[i].ID == id {
			m.broadcasts[i].Attempted = attempted
			m.broadcasts[i].Delivered = delivered
			return nil
		}
	}
	return ErrNotFound
}

// GetBroadcast implements Store.
func (m *Memory) GetBroadcast(_ context.Context, id int64) (Broadcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.broadcasts {
		if b.ID == id {
			return b, nil
		}
	}
	return Broadcast{}, ErrNotFound
}

// LogActivity implements Store.
func (m *Memory) LogActivity(_ context.Context, a Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	a.ID = m.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now().UTC()
	}
	m.activity = append(m.activity, a)
	return nil
}

// RecentActivity implements Store.
func (m *Memory) RecentActivity(_ context.Context, limit int) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}
	out := make([]Activity, 0, min(limit, len(m.activity)))
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.activity[i])
	}
	return out, nil
}

// PruneActivity implements Store.
func (m *Memory) PruneActivity(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.activity[:0]
	var removed int64
	for _, a := range m.activity {
		if a.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.activity = kept
	return removed, nil
}

// Stats implements Store.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make(map[int64]struct{})
	for _, c := range m.clones {
		owners[c.OwnerID] = struct{}{}
	}
	return Stats{
		Clones:     len(m.clones),
		Owners:     len(owners),
		Broadcasts: len(m.broadcasts),
		Activities: len(m.activity),
	}, nil
}
