package storage

import (
	"context"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// SessionStore persists one session record per configuration identifier.
// Each operation invocation may run in a fresh process, so this is the only
// channel through which a session is shared between invocations.
type SessionStore interface {
	// Load returns the stored record, or domain.ErrNotFound when nothing is stored.
	Load(ctx context.Context, configID string) (*domain.SessionRecord, error)

	// Save overwrites the stored record.
	Save(ctx context.Context, configID string, record *domain.SessionRecord) error

	// Clear stores an empty record.
	Clear(ctx context.Context, configID string) error

	// Remove deletes the backing artifacts. Removing absent state is not an error.
	Remove(ctx context.Context, configID string) error

	// Close releases the store's resources.
	Close() error
}
