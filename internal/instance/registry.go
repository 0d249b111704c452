// Package instance tracks bot instances and runs each one on its own
// goroutine.
package instance

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrConflict reports that another process is already polling with the
// same bot token. It is unrecoverable for that instance.
var ErrConflict = errors.New("instance: token already in use by another poller")

// ErrTokenRejected reports that the platform refused an instance's token.
var ErrTokenRejected = errors.New("instance: token rejected")

// State is the lifecycle state of an instance record.
type State string

// Instance states.
const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Live reports whether the state counts toward the one-record-per-token rule.
func (s State) Live() bool {
	return s == StateStarting || s == StateRunning
}

// Identity is the immutable description of a bot.
type Identity struct {
	Token   string
	OwnerID int64
	Name    string
}

// Record is the registry view of one instance.
type Record struct {
	Identity
	State     State
	StartedAt time.Time
	Primary   bool
	LastError string
}

// Registry holds at most one live record per token. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// TryRegister inserts a Starting record for id unless a live record with
// the same token exists. Exactly one of several concurrent callers wins.
func (r *Registry) TryRegister(id Identity) bool {
	return r.register(id, false)
}

func (r *Registry) register(id Identity, primary bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[id.Token]; ok && rec.State.Live() {
		return false
	}
	r.records[id.Token] = &Record{
		Identity:  id,
		State:     StateStarting,
		StartedAt: r.now(),
		Primary:   primary,
	}
	return true
}

// MarkRunning moves a record to Running.
func (r *Registry) MarkRunning(token string) {
	r.update(token, func(rec *Record) {
		rec.State = StateRunning
		rec.LastError = ""
	})
}

// MarkFailed moves a record to Failed and keeps err for inspection.
func (r *Registry) MarkFailed(token string, err error) {
	r.update(token, func(rec *Record) {
		rec.State = StateFailed
		if err != nil {
			rec.LastError = err.Error()
		}
	})
}

// MarkStopped moves a record to Stopped. Failed records stay Failed.
func (r *Registry) MarkStopped(token string) {
	r.update(token, func(rec *Record) {
		if rec.State != StateFailed {
			rec.State = StateStopped
		}
	})
}

func (r *Registry) update(token string, fn func(*Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[token]; ok {
		fn(rec)
	}
}

// Get returns a copy of the record for token.
func (r *Registry) Get(token string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[token]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ListActive returns a snapshot of the Starting and Running records,
// oldest first.
func (r *Registry) ListActive() []Record {
	return r.list(func(rec *Record) bool { return rec.State.Live() })
}

// List returns a snapshot of every record, oldest first.
func (r *Registry) List() []Record {
	return r.list(func(*Record) bool { return true })
}

func (r *Registry) list(keep func(*Record) bool) []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, *rec)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Token, b.Token)
	})
	return out
}

// Counts returns the number of records per state.
func (r *Registry) Counts() map[State]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[State]int{
		StateStarting: 0,
		StateRunning:  0,
		StateStopped:  0,
		StateFailed:   0,
	}
	for _, rec := range r.records {
		counts[rec.State]++
	}
	return counts
}
