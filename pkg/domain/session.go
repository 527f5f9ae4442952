package domain

import "time"

// Session is a backend-held conversational context. The orchestration layer
// never mutates State directly; it is a cache of the last server view and is
// flagged Stale after any failed call touching the session.
type Session struct {
	// ID is the opaque backend identifier. Immutable once created.
	ID string `json:"session_id"`

	// AgentID names the agent the session was created for.
	AgentID string `json:"agent_id,omitempty"`

	// State is the last-known server view of the session state.
	State StateMap `json:"state,omitempty"`

	// CreatedAt is when the local process first learned about the session.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Stale marks the cached State as possibly out of date.
	Stale bool `json:"stale,omitempty"`
}

// NewSession builds a session record for a freshly created backend session.
func NewSession(id, agentID string, state StateMap) *Session {
	return &Session{
		ID:        id,
		AgentID:   agentID,
		State:     state.Clone(),
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.State = s.State.Clone()
	return &out
}
