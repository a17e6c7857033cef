package store

import (
	"context"
	"fmt"
)

// Table names used by the backend
const (
	TableUsers         = "users"
	TableNotifications = "notifications"
	TableAPILogs       = "api_logs"
)

// schema is the portable DDL for local databases. The hosted platform owns
// its own schema; these statements only mirror the columns this service reads
// and writes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'normal',
    event_id TEXT,
    metadata TEXT,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    read_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
    ON notifications (user_id, is_read)`,
	`CREATE TABLE IF NOT EXISTS api_logs (
    id TEXT PRIMARY KEY,
    endpoint TEXT NOT NULL,
    method TEXT NOT NULL,
    user_id TEXT,
    ip_address TEXT,
    user_agent TEXT,
    request_body TEXT,
    response_status INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    error_message TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

// Migrate applies the local schema
func Migrate(ctx context.Context, s *SQLStore) error {
	for _, stmt := range schema {
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// OpenMemory opens a migrated in-memory SQLite store
func OpenMemory(ctx context.Context) (*SQLStore, error) {
	s, err := Open(ctx, Config{Dialect: DialectSQLite, DSN: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
