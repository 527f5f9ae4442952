package grove

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/grove/internal/testutils"
	"github.com/aretw0/grove/pkg/adapters/memory"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/pool"
	"github.com/aretw0/grove/pkg/ports"
	"github.com/aretw0/grove/pkg/retrier"
)

// deadlineStore refuses registry operations once the context is done, the
// way a networked store would.
type deadlineStore struct {
	ports.SessionStore
}

func (s deadlineStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.SessionStore.Get(ctx, sessionID)
}

func (s deadlineStore) Put(ctx context.Context, sess *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SessionStore.Put(ctx, sess)
}

func fastPolicy() retrier.Policy {
	return retrier.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	api := testutils.NewFakeAPI()
	store := memory.NewStore()
	client, err := New("", WithSessionAPI(api), WithStore(store), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := client.CreateSession(ctx, "agent-a", domain.StateMap{"k": domain.String("v")})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	// Create is mirrored into the registry.
	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "agent-a", got.AgentID)

	reply, err := client.SendMessage(ctx, sess.ID, "hi")
	require.NoError(t, err)
	require.Equal(t, "echo: hi", reply)

	require.NoError(t, client.DeleteSession(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Delete is idempotent end to end.
	require.NoError(t, client.DeleteSession(ctx, sess.ID))
}

func TestSendMessageRetriesAndMarksStale(t *testing.T) {
	api := testutils.NewFakeAPI()
	store := memory.NewStore()
	client, err := New("", WithSessionAPI(api), WithStore(store), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := client.CreateSession(ctx, "agent-a", nil)
	require.NoError(t, err)

	// Two transient failures, then success: retried transparently.
	api.FailNext("send_message", domain.KindUnreachable, 2)
	_, err = client.SendMessage(ctx, sess.ID, "hi")
	require.NoError(t, err)
	require.Equal(t, 3, api.Calls("send_message"))

	// Exhausted budget surfaces the last failure and flags the record.
	api.FailWith("send_message", domain.KindRemoteError)
	_, err = client.SendMessage(ctx, sess.ID, "hi")
	require.Equal(t, domain.KindRemoteError, domain.KindOf(err))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, got.Stale)
}

func TestMarkStaleOutlivesCallerContext(t *testing.T) {
	api := testutils.NewFakeAPI()
	store := memory.NewStore()
	client, err := New("", WithSessionAPI(api),
		WithStore(deadlineStore{store}), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	sess, err := client.CreateSession(context.Background(), "agent-a", nil)
	require.NoError(t, err)

	// The send fails because the caller's context is already gone; the stale
	// flag must still land in the registry.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.SendMessage(ctx, sess.ID, "hi")
	require.Error(t, err)

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, got.Stale)
}

func TestPoolAndOrchestratorShareWiring(t *testing.T) {
	api := testutils.NewFakeAPI()
	api.Latency = 2 * time.Millisecond
	client, err := New("", WithSessionAPI(api), WithConcurrency(2), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	p := client.NewPool(pool.Config{Capacity: 4, AgentID: "agent-a"})
	report, err := p.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, report.Created)

	items := make([]domain.WorkItem, 8)
	for i := range items {
		items[i] = domain.WorkItem{Op: domain.OpCreate, AgentID: "agent-a"}
	}
	outcomes := client.NewOrchestrator().Run(ctx, items)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
	}

	// The shared gate bounded everything that went through the fake.
	require.LessOrEqual(t, api.PeakInFlight(), 2)
}

func TestListSessionsFiltered(t *testing.T) {
	api := testutils.NewFakeAPI()
	client, err := New("", WithSessionAPI(api), WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.CreateSession(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = client.CreateSession(ctx, "beta", nil)
	require.NoError(t, err)

	all, err := client.ListSessions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	alphas, err := client.ListSessions(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, alphas, 1)
	require.Equal(t, "alpha", alphas[0].AgentID)
}
