// Package memory implements ports.SessionStore in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/ports"
)

// Store is the in-memory session registry. Safe for concurrent use.
type Store struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Session),
	}
}

// Put inserts or replaces the record for session.ID.
func (s *Store) Put(ctx context.Context, session *domain.Session) error {
	// Copy on write so the caller can't mutate stored state by pointer.
	record := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.ID] = record
	return nil
}

// Get retrieves a session record.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete removes the record. Unknown IDs are a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns all known session records.
func (s *Store) List(ctx context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(s.data))
	for _, session := range s.data {
		sessions = append(sessions, *session.Clone())
	}
	return sessions, nil
}
