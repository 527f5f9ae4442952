package ports

import (
	"context"

	"github.com/aretw0/grove/pkg/domain"
)

// SessionAPI is the uniform call contract for the remote session backend.
// Implementations normalize transport failures into domain.Failure kinds:
// connection problems and timeouts become Unreachable, malformed input becomes
// InvalidRequest, unknown session IDs become SessionNotFound, and any other
// error response becomes RemoteError.
//
// Every call respects the context deadline. Calls are synchronous; callers
// that want many in flight run them from their own goroutines (the limiter
// and orchestrator take care of that in the core).
type SessionAPI interface {
	// CreateSession creates a backend session for agentID seeded with initial
	// state and returns its opaque ID.
	CreateSession(ctx context.Context, agentID string, initial domain.StateMap) (string, error)

	// SendMessage delivers text to the session and returns the agent's reply.
	SendMessage(ctx context.Context, sessionID, text string) (string, error)

	// DeleteSession removes the session. Idempotent: deleting an unknown or
	// already-deleted session succeeds silently.
	DeleteSession(ctx context.Context, sessionID string) error

	// GetSession fetches the session's metadata and state. Read-only; the
	// core never depends on it for correctness.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessions enumerates backend sessions, optionally filtered by agent.
	// Read-only, same caveat as GetSession.
	ListSessions(ctx context.Context, agentID string) ([]domain.Session, error)
}
