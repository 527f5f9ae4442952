package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/grove/internal/testutils"
	"github.com/aretw0/grove/pkg/adapters/memory"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/retrier"
)

func fastRetrier(maxAttempts int) *retrier.Retrier {
	return retrier.New(retrier.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
	})
}

func newTestPool(t *testing.T, api *testutils.FakeAPI, cfg Config, opts ...Option) *Pool {
	t.Helper()
	if cfg.AgentID == "" {
		cfg.AgentID = "agent-a"
	}
	opts = append([]Option{WithRetrier(fastRetrier(3))}, opts...)
	return New(api, cfg, opts...)
}

func TestInitializeFillsCapacity(t *testing.T) {
	api := testutils.NewFakeAPI()
	p := newTestPool(t, api, Config{Capacity: 3})

	report, err := p.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Requested)
	require.Equal(t, 3, report.Created)
	require.Zero(t, report.Failed())

	s := p.Stats()
	require.Equal(t, 3, s.Available)
	require.Zero(t, s.Empty)
	require.Equal(t, 3, api.SessionCount())
}

func TestInitializePartialFailure(t *testing.T) {
	api := testutils.NewFakeAPI()
	// Terminal failure: no retry, the slot stays empty.
	api.FailNext("create_session", domain.KindInvalidRequest, 1)

	p := newTestPool(t, api, Config{Capacity: 3})
	report, err := p.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)
	require.Equal(t, 1, report.Failed())

	s := p.Stats()
	require.Equal(t, 2, s.Available)
	require.Equal(t, 1, s.Empty)

	// A later Initialize retries only the empty slot.
	report, err = p.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Requested)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 3, p.Stats().Available)
}

func TestInitializeRetriesTransientFailures(t *testing.T) {
	api := testutils.NewFakeAPI()
	api.FailNext("create_session", domain.KindUnreachable, 2)

	p := newTestPool(t, api, Config{Capacity: 1})
	report, err := p.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 3, api.Calls("create_session"))
}

func TestAcquireExhaustsThenBlocksUntilRelease(t *testing.T) {
	api := testutils.NewFakeAPI()
	p := newTestPool(t, api, Config{Capacity: 3})
	_, err := p.Initialize(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	held := make([]*domain.Session, 0, 3)
	for i := 0; i < 3; i++ {
		sess, err := p.Acquire(ctx)
		require.NoError(t, err)
		held = append(held, sess)
	}
	require.Equal(t, 3, p.Stats().InUse)
	require.Zero(t, p.Stats().Available)

	got := make(chan *domain.Session, 1)
	go func() {
		sess, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("blocked acquire failed: %v", err)
			close(got)
			return
		}
		got <- sess
	}()

	select {
	case <-got:
		t.Fatal("acquire must block while the pool is exhausted")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, p.Release(ctx, held[0]))
	select {
	case sess := <-got:
		require.Equal(t, held[0].ID, sess.ID, "released session goes to the next acquirer")
	case <-time.After(time.Second):
		t.Fatal("release did not unblock the waiting acquire")
	}
}

func TestAcquireMaxWait(t *testing.T) {
	api := testutils.NewFakeAPI()
	p := newTestPool(t, api, Config{Capacity: 1, MaxWait: 20 * time.Millisecond})
	_, err := p.Initialize(context.Background())
	require.NoError(t, err)

	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(context.Background(), sess)

	_, err = p.Acquire(context.Background())
	require.Equal(t, domain.KindPoolExhausted, domain.KindOf(err))
}

func TestAcquireHonorsContext(t *testing.T) {
	api := testutils.NewFakeAPI()
	p := newTestPool(t, api, Config{Capacity: 1})
	_, err := p.Initialize(context.Background())
	require.NoError(t, err)

	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(context.Background(), sess)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Equal(t, domain.KindPoolExhausted, domain.KindOf(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseGuards(t *testing.T) {
	api := testutils.NewFakeAPI()
	p := newTestPool(t, api, Config{Capacity: 1})
	_, err := p.Initialize(context.Background())
	require.NoError(t, err)

	ctx := context.Background()

	// Foreign session.
	err = p.Release(ctx, domain.NewSession("stranger", "agent-a", nil))
	require.Equal(t, domain.KindInvalidRelease, domain.KindOf(err))

	sess, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Release(ctx, sess))

	// Double release.
	err = p.Release(ctx, sess)
	require.Equal(t, domain.KindInvalidRelease, domain.KindOf(err))
}

func TestDrainDeletesAvailableAndDeferred(t *testing.T) {
	api := testutils.NewFakeAPI()
	store := memory.NewStore()
	p := newTestPool(t, api, Config{Capacity: 3}, WithStore(store))

	ctx := context.Background()
	_, err := p.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, api.SessionCount())

	registered, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, registered, 3)

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Drain(ctx))
	require.Equal(t, 1, api.SessionCount(), "in-use session survives the drain")

	// New acquires are refused while draining.
	_, err = p.Acquire(ctx)
	require.Equal(t, domain.KindPoolExhausted, domain.KindOf(err))

	// Releasing into a draining pool deletes instead of re-parking.
	require.NoError(t, p.Release(ctx, held))
	require.Zero(t, api.SessionCount())
	require.Zero(t, p.Stats().InUse)

	registered, err = store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, registered, "registry is emptied with the pool")
}

func TestDrainDuringInitializeDiscardsLateSessions(t *testing.T) {
	api := testutils.NewFakeAPI()
	api.Latency = 50 * time.Millisecond
	p := newTestPool(t, api, Config{Capacity: 2})

	done := make(chan InitReport, 1)
	go func() {
		report, _ := p.Initialize(context.Background())
		done <- report
	}()

	// Drain while both creations are still in flight.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Drain(context.Background()))

	report := <-done
	require.Equal(t, 2, report.Failed(), "slots finished after the drain report as failures")
	require.Zero(t, api.SessionCount(), "sessions created mid-drain must be deleted, not parked")

	s := p.Stats()
	require.Zero(t, s.Available)
	require.Zero(t, s.InUse)
	require.Equal(t, 2, s.Empty)
}

func TestSlotGaugeSeesTransitions(t *testing.T) {
	api := testutils.NewFakeAPI()

	type census struct{ empty, initializing, available, inUse int }
	var mu sync.Mutex
	var last census
	snapshot := func() census {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	p := newTestPool(t, api, Config{Capacity: 2}, WithSlotGauge(func(e, i, a, u int) {
		mu.Lock()
		last = census{e, i, a, u}
		mu.Unlock()
		if a+u > 2 {
			t.Errorf("live sessions %d exceed capacity", a+u)
		}
	}))

	ctx := context.Background()
	_, err := p.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, census{0, 0, 2, 0}, snapshot())

	sess, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, census{0, 0, 1, 1}, snapshot())

	require.NoError(t, p.Release(ctx, sess))
	require.Equal(t, census{0, 0, 2, 0}, snapshot())
}
