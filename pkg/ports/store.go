package ports

import (
	"context"

	"github.com/aretw0/grove/pkg/domain"
)

// SessionStore is the local registry of sessions this process knows about.
// It is an observer: the pool and orchestrator record what they create and
// delete so tooling (session ls, drain-by-registry) can find live handles.
// Core correctness never depends on it; losing the registry loses visibility,
// not sessions.
type SessionStore interface {
	// Put inserts or replaces the record for session.ID.
	Put(ctx context.Context, session *domain.Session) error

	// Get retrieves a session record.
	// Returns domain.ErrSessionNotFound if the ID is unknown.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the record. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns all known session records.
	List(ctx context.Context) ([]domain.Session, error)
}
