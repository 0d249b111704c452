// Package store persists clone registrations, broadcasts and user activity.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Clone is a persisted clone registration.
type Clone struct {
	Token     string
	OwnerID   int64
	Name      string
	CreatedAt time.Time
}

// Broadcast is a persisted admin broadcast.
type Broadcast struct {
	ID        int64
	AdminID   int64
	Message   string
	SentAt    time.Time
	Attempted int
	Delivered int
}

// Activity is one entry of the user activity log.
type Activity struct {
	ID        int64
	UserID    int64
	Action    string
	Data      string
	CreatedAt time.Time
}

// Stats summarizes stored records.
type Stats struct {
	Clones     int
	Owners     int
	Broadcasts int
	Activities int
}

// Store is the persistence contract. Implementations are safe for
// concurrent use.
type Store interface {
	// AddClone inserts a clone, or updates owner and name when the token exists.
	AddClone(ctx context.Context, c Clone) error
	// ListClones returns clones in creation order; ownerID 0 lists all owners.
	ListClones(ctx context.Context, ownerID int64) ([]Clone, error)
	// RemoveClone deletes the clone with the given token.
	RemoveClone(ctx context.Context, token string) error

	// AddBroadcast records a broadcast and returns its ID.
	AddBroadcast(ctx context.Context, b Broadcast) (int64, error)
	// FinishBroadcast stores the delivery counts of a broadcast.
	FinishBroadcast(ctx context.Context, id int64, attempted, delivered int) error
	// GetBroadcast returns a broadcast by ID.
	GetBroadcast(ctx context.Context, id int64) (Broadcast, error)

	// LogActivity appends to the activity log.
	LogActivity(ctx context.Context, a Activity) error
	// RecentActivity returns the newest entries first.
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
	// PruneActivity deletes entries older than before and returns how many.
	PruneActivity(ctx context.Context, before time.Time) (int64, error)

	// Stats counts stored records.
	Stats(ctx context.Context) (Stats, error)
}
