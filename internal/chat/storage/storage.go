// Package storage defines the persistence contract for the client's saved
// session identity.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no session record is stored.
var ErrNotFound = errors.New("session record not found")

// SessionRecord is the persisted identity used to restore a session without
// logging in again.
type SessionRecord struct {
	UserID    string
	Username  string
	Language  string
	UpdatedAt time.Time
}

// Store persists at most one session record per client installation.
type Store interface {
	// PutSession saves or replaces the stored session record.
	PutSession(ctx context.Context, record SessionRecord) error
	// GetSession loads the stored session record, or ErrNotFound.
	GetSession(ctx context.Context) (SessionRecord, error)
	// ClearSession removes the stored session record if present.
	ClearSession(ctx context.Context) error
	// Close releases the underlying storage.
	Close() error
}
