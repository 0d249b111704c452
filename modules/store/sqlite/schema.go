package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// Timestamps are stored as fixed-width UTC text so that lexical and
// chronological order agree.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clones (
		token      TEXT    PRIMARY KEY,
		owner_id   INTEGER NOT NULL,
		name       TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_clones_owner ON clones(owner_id)`,

	`CREATE TABLE IF NOT EXISTS broadcasts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_id   INTEGER NOT NULL,
		message    TEXT    NOT NULL,
		sent_at    TEXT    NOT NULL,
		attempted  INTEGER NOT NULL DEFAULT 0,
		delivered  INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS user_activity (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL,
		action     TEXT    NOT NULL,
		data       TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_activity_created ON user_activity(created_at)`,
}

// migrate creates or updates the database schema. All DDL uses
// IF NOT EXISTS, so re-running it is harmless.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}
