package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
)

// Store is an in-memory implementation of the session store for testing.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionRecord // key: config id

	saves int
}

// Ensure Store implements SessionStore.
var _ storage.SessionStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*domain.SessionRecord),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Load(ctx context.Context, configID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[configID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *Store) Save(ctx context.Context, configID string, record *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[configID] = copyRecord(record)
	s.saves++
	return nil
}

func (s *Store) Clear(ctx context.Context, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[configID] = &domain.SessionRecord{}
	return nil
}

func (s *Store) Remove(ctx context.Context, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, configID)
	return nil
}

// Saves returns how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func copyRecord(rec *domain.SessionRecord) *domain.SessionRecord {
	if rec == nil {
		return &domain.SessionRecord{}
	}
	c := &domain.SessionRecord{Handle: slices.Clone(rec.Handle)}
	if rec.ExpiresAt != nil {
		exp := time.Unix(rec.ExpiresAt.Unix(), 0)
		c.ExpiresAt = &exp
	}
	return c
}
