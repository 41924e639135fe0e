// Package sqlite provides SQLite-backed persistence for the saved session.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/polyglot.chat/internal/chat/storage"
	"github.com/louisbranch/polyglot.chat/internal/chat/storage/sqlite/migrations"
	"github.com/louisbranch/polyglot.chat/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for the client session record.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a session SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutSession saves or replaces the single stored session record.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.UserID = strings.TrimSpace(record.UserID)
	record.Username = strings.TrimSpace(record.Username)
	record.Language = strings.TrimSpace(record.Language)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.Username == "" {
		return fmt.Errorf("username is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO client_session (slot, user_id, username, language, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
	user_id = excluded.user_id,
	username = excluded.username,
	language = excluded.language,
	updated_at = excluded.updated_at
`, record.UserID, record.Username, record.Language, toMillis(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession loads the stored session record.
func (s *Store) GetSession(ctx context.Context) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, username, language, updated_at
FROM client_session
WHERE slot = 1
`)
	var record storage.SessionRecord
	var updatedAt int64
	if err := row.Scan(&record.UserID, &record.Username, &record.Language, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// ClearSession removes the stored session record.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM client_session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
