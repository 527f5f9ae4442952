// Package testutils provides in-process doubles shared by the core packages'
// tests: a scriptable SessionAPI fake with failure injection and concurrency
// accounting.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/ports"
)

// FakeAPI implements ports.SessionAPI in memory. Safe for concurrent use.
//
// Failure scripting: FailNext queues classified failures per operation name;
// each call consumes one. FailWith pins a permanent failure for an operation.
type FakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sessions map[string]*domain.Session
	queued   map[string][]*domain.Failure
	pinned   map[string]*domain.Failure
	calls    map[string]int

	// Latency is injected into every call when non-zero.
	Latency time.Duration

	// Reply computes SendMessage responses; default echoes the input.
	Reply func(sessionID, text string) string

	inFlight atomic.Int64
	peak     atomic.Int64
}

var _ ports.SessionAPI = (*FakeAPI)(nil)

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		sessions: make(map[string]*domain.Session),
		queued:   make(map[string][]*domain.Failure),
		pinned:   make(map[string]*domain.Failure),
		calls:    make(map[string]int),
	}
}

// FailNext queues n one-shot failures of the given kind for op.
func (f *FakeAPI) FailNext(op string, kind domain.FailureKind, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.queued[op] = append(f.queued[op], domain.Failf(kind, op, "injected failure"))
	}
}

// FailWith pins a permanent failure for op. Pass an empty kind to clear.
func (f *FakeAPI) FailWith(op string, kind domain.FailureKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == "" {
		delete(f.pinned, op)
		return
	}
	f.pinned[op] = domain.Failf(kind, op, "injected failure")
}

// Calls reports how many times op was invoked, successes and failures alike.
func (f *FakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// PeakInFlight reports the highest number of concurrently running calls seen.
func (f *FakeAPI) PeakInFlight() int {
	return int(f.peak.Load())
}

// SessionCount reports live (created, not deleted) sessions.
func (f *FakeAPI) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// SessionIDs returns the IDs of live sessions.
func (f *FakeAPI) SessionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sessions))
	for id := range f.sessions {
		ids = append(ids, id)
	}
	return ids
}

// enter runs the shared per-call bookkeeping: concurrency accounting, call
// counting, latency, context check, failure injection.
func (f *FakeAPI) enter(ctx context.Context, op string) error {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[op]++
	var fail *domain.Failure
	if q := f.queued[op]; len(q) > 0 {
		fail, f.queued[op] = q[0], q[1:]
	} else if p, ok := f.pinned[op]; ok {
		fail = p
	}
	f.mu.Unlock()

	if f.Latency > 0 {
		select {
		case <-ctx.Done():
			return domain.NewFailure(domain.KindUnreachable, op, ctx.Err())
		case <-time.After(f.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.NewFailure(domain.KindUnreachable, op, err)
	}
	if fail != nil {
		return fail
	}
	return nil
}

func (f *FakeAPI) exit() {
	f.inFlight.Add(-1)
}

// CreateSession implements ports.SessionAPI.
func (f *FakeAPI) CreateSession(ctx context.Context, agentID string, initial domain.StateMap) (string, error) {
	defer f.exit()
	if err := f.enter(ctx, "create_session"); err != nil {
		return "", err
	}
	if agentID == "" {
		return "", domain.Failf(domain.KindInvalidRequest, "create_session", "agent_id is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.sessions[id] = domain.NewSession(id, agentID, initial)
	return id, nil
}

// SendMessage implements ports.SessionAPI.
func (f *FakeAPI) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	defer f.exit()
	if err := f.enter(ctx, "send_message"); err != nil {
		return "", err
	}

	f.mu.Lock()
	_, ok := f.sessions[sessionID]
	reply := f.Reply
	f.mu.Unlock()

	if !ok {
		return "", domain.Failf(domain.KindSessionNotFound, "send_message", "no session %s", sessionID)
	}
	if reply != nil {
		return reply(sessionID, text), nil
	}
	return "echo: " + text, nil
}

// DeleteSession implements ports.SessionAPI. Idempotent.
func (f *FakeAPI) DeleteSession(ctx context.Context, sessionID string) error {
	defer f.exit()
	if err := f.enter(ctx, "delete_session"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

// GetSession implements ports.SessionAPI.
func (f *FakeAPI) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	defer f.exit()
	if err := f.enter(ctx, "get_session"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.Failf(domain.KindSessionNotFound, "get_session", "no session %s", sessionID)
	}
	return s.Clone(), nil
}

// ListSessions implements ports.SessionAPI.
func (f *FakeAPI) ListSessions(ctx context.Context, agentID string) ([]domain.Session, error) {
	defer f.exit()
	if err := f.enter(ctx, "list_sessions"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		out = append(out, *s.Clone())
	}
	return out, nil
}
