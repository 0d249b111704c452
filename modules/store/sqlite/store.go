package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/lookupbot/internal/store"
)

var _ store.Store = (*DB)(nil)

// DB implements store.Store on a SQLite database.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) timestamp(t time.Time) string {
	if t.IsZero() {
		if d.now != nil {
			t = d.now()
		} else {
			t = time.Now()
		}
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// AddClone implements store.Store.
func (d *DB) AddClone(ctx context.Context, c store.Clone) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO clones (token, owner_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET owner_id = excluded.owner_id, name = excluded.name`,
		c.Token, c.OwnerID, c.Name, d.timestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: add clone: %w", err)
	}
	return nil
}

// ListClones implements store.Store.
func (d *DB) ListClones(ctx context.Context, ownerID int64) ([]store.Clone, error) {
	query := `SELECT token, owner_id, name, created_at FROM clones`
	var args []any
	if ownerID != 0 {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list clones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Clone
	for rows.Next() {
		var (
			c       store.Clone
			created string
		)
		if err := rows.Scan(&c.Token, &c.OwnerID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan clone: %w", err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RemoveClone implements store.Store.
func (d *DB) RemoveClone(ctx context.Context, token string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM clones WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("sqlite: remove clone: %w", err)
	}
	return expectAffected(res)
}

// AddBroadcast implements store.Store.
func (d *DB) AddBroadcast(ctx context.Context, b store.Broadcast) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO broadcasts (admin_id, message, sent_at, attempted, delivered) VALUES (?, ?, ?, ?, ?)`,
		b.AdminID, b.Message, d.timestamp(b.SentAt), b.Attempted, b.Delivered,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: add broadcast: %w", err)
	}
	return res.LastInsertId()
}

// FinishBroadcast implements store.Store.
func (d *DB) FinishBroadcast(ctx context.Context, id int64, attempted, delivered int) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE broadcasts SET attempted = ?, delivered = ? WHERE id = ?`,
		attempted, delivered, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finish broadcast: %w", err)
	}
	return expectAffected(res)
}

// GetBroadcast implements store.Store.
func (d *DB) GetBroadcast(ctx context.Context, id int64) (store.Broadcast, error) {
	var (
		b    store.Broadcast
		sent string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, admin_id, message, sent_at, attempted, delivered FROM broadcasts WHERE id = ?`, id,
	).Scan(&b.ID, &b.AdminID, &b.Message, &sent, &b.Attempted, &b.Delivered)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Broadcast{}, store.ErrNotFound
	}
	if err != nil {
		return store.Broadcast{}, fmt.Errorf("sqlite: get broadcast: %w", err)
	}
	b.SentAt = parseTime(sent)
	return b, nil
}

// LogActivity implements store.Store.
func (d *DB) LogActivity(ctx context.Context, a store.Activity) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO user_activity (user_id, action, data, created_at) VALUES (?, ?, ?, ?)`,
		a.UserID, a.Action, a.Data, d.timestamp(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: log activity: %w", err)
	}
	return nil
}

// RecentActivity implements store.Store.
func (d *DB) RecentActivity(ctx context.Context, limit int) ([]store.Activity, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, action, data, created_at FROM user_activity ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Activity
	for rows.Next() {
		var (
			a       store.Activity
			created string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Data, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan activity: %w", err)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneActivity implements store.Store.
func (d *DB) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM user_activity WHERE created_at < ?`, before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune activity: %w", err)
	}
	return res.RowsAffected()
}

// Stats implements store.Store.
func (d *DB) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := d.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM clones),
		(SELECT COUNT(DISTINCT owner_id) FROM clones),
		(SELECT COUNT(*) FROM broadcasts),
		(SELECT COUNT(*) FROM user_activity)`,
	).Scan(&st.Clones, &st.Owners, &st.Broadcasts, &st.Activities)
	if err != nil {
		return store.Stats{}, fmt.Errorf("sqlite: stats: %w", err)
	}
	return st, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
