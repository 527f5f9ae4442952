package grove

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/grove/internal/logging"
	httpadapter "github.com/aretw0/grove/pkg/adapters/http"
	"github.com/aretw0/grove/pkg/batch"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/limiter"
	"github.com/aretw0/grove/pkg/metrics"
	"github.com/aretw0/grove/pkg/pool"
	"github.com/aretw0/grove/pkg/ports"
	"github.com/aretw0/grove/pkg/retrier"
)

// Version is the library version, overridable at build time via -ldflags.
var Version = "0.1.0"

// Client is the high-level entry point. It wires the transport, the retry
// executor, and the shared concurrency gate; pools and orchestrators built
// from it inherit all three.
type Client struct {
	api    ports.SessionAPI
	run    *retrier.Retrier
	gate   *limiter.Limiter
	store  ports.SessionStore
	mset   *metrics.Set
	logger *slog.Logger

	baseURL     string
	timeout     time.Duration
	policy      retrier.Policy
	concurrency int
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithLogger sets the structured logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retrier.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithConcurrency bounds in-flight remote calls across everything built
// from this Client.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithStore attaches a local session registry. The registry observes
// creates and deletes; correctness never depends on it.
func WithStore(store ports.SessionStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithMetrics attaches a metrics set; call durations, retries, in-flight
// count, pool slots, and batch outcomes are recorded on it.
func WithMetrics(m *metrics.Set) Option {
	return func(c *Client) {
		c.mset = m
	}
}

// WithSessionAPI injects a custom transport, bypassing the default HTTP
// client. Used for tests and alternative backends.
func WithSessionAPI(api ports.SessionAPI) Option {
	return func(c *Client) {
		c.api = api
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: baseURL,
		timeout: httpadapter.DefaultTimeout,
		policy:  retrier.DefaultPolicy(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		if c.baseURL == "" {
			return nil, fmt.Errorf("grove: backend URL is required")
		}
		httpOpts := []httpadapter.Option{
			httpadapter.WithTimeout(c.timeout),
			httpadapter.WithLogger(c.logger),
		}
		if c.mset != nil {
			httpOpts = append(httpOpts, httpadapter.WithObserver(c.mset.ObserveCall))
		}
		c.api = httpadapter.NewClient(c.baseURL, httpOpts...)
	}

	retryOpts := []retrier.Option{retrier.WithLogger(c.logger)}
	if c.mset != nil {
		retryOpts = append(retryOpts, retrier.WithRetryHook(c.mset.IncRetry))
	}
	c.run = retrier.New(c.policy, retryOpts...)
	c.gate = limiter.New(c.concurrency)
	if c.mset != nil {
		c.mset.RegisterInFlight(c.gate.InFlight)
	}
	return c, nil
}

// CreateSession creates a backend session, retried and limited, and records
// it in the registry when one is attached.
func (c *Client) CreateSession(ctx context.Context, agentID string, initial domain.StateMap) (*domain.Session, error) {
	var id string
	err := c.gate.With(ctx, func(ctx context.Context) error {
		return c.run.Do(ctx, "create_session", func(ctx context.Context) error {
			var cerr error
			id, cerr = c.api.CreateSession(ctx, agentID, initial)
			return cerr
		})
	})
	if err != nil {
		return nil, err
	}

	sess := domain.NewSession(id, agentID, initial)
	if c.store != nil {
		if serr := c.store.Put(ctx, sess); serr != nil {
			c.logger.Warn("registry put failed", "session_id", id, "err", serr)
		}
	}
	return sess, nil
}

// SendMessage delivers text to a session and returns the agent's reply.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (string, error) {
	var reply string
	err := c.gate.With(ctx, func(ctx context.Context) error {
		return c.run.Do(ctx, "send_message", func(ctx context.Context) error {
			var cerr error
			reply, cerr = c.api.SendMessage(ctx, sessionID, text)
			return cerr
		})
	})
	if err != nil {
		c.markStale(ctx, sessionID)
		return "", err
	}
	return reply, nil
}

// DeleteSession removes a session. Idempotent.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	err := c.gate.With(ctx, func(ctx context.Context) error {
		return c.run.Do(ctx, "delete_session", func(ctx context.Context) error {
			return c.api.DeleteSession(ctx, sessionID)
		})
	})
	if err != nil {
		return err
	}
	if c.store != nil {
		if serr := c.store.Delete(ctx, sessionID); serr != nil {
			c.logger.Warn("registry delete failed", "session_id", sessionID, "err", serr)
		}
	}
	return nil
}

// GetSession fetches a session's server-side view.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess *domain.Session
	err := c.gate.With(ctx, func(ctx context.Context) error {
		return c.run.Do(ctx, "get_session", func(ctx context.Context) error {
			var cerr error
			sess, cerr = c.api.GetSession(ctx, sessionID)
			return cerr
		})
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions enumerates backend sessions, optionally filtered by agent.
func (c *Client) ListSessions(ctx context.Context, agentID string) ([]domain.Session, error) {
	var out []domain.Session
	err := c.gate.With(ctx, func(ctx context.Context) error {
		return c.run.Do(ctx, "list_sessions", func(ctx context.Context) error {
			var cerr error
			out, cerr = c.api.ListSessions(ctx, agentID)
			return cerr
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NewPool builds a session pool sharing this Client's transport, retry
// policy, concurrency gate, registry, and metrics.
func (c *Client) NewPool(cfg pool.Config, opts ...pool.Option) *pool.Pool {
	base := []pool.Option{
		pool.WithRetrier(c.run),
		pool.WithLimiter(c.gate),
		pool.WithLogger(c.logger),
	}
	if c.store != nil {
		base = append(base, pool.WithStore(c.store))
	}
	if c.mset != nil {
		base = append(base, pool.WithSlotGauge(c.mset.SetPoolSlots))
	}
	return pool.New(c.api, cfg, append(base, opts...)...)
}

// NewOrchestrator builds a batch orchestrator sharing this Client's wiring.
func (c *Client) NewOrchestrator(opts ...batch.Option) *batch.Orchestrator {
	base := []batch.Option{
		batch.WithRetrier(c.run),
		batch.WithLimiter(c.gate),
		batch.WithLogger(c.logger),
	}
	if c.store != nil {
		base = append(base, batch.WithStore(c.store))
	}
	if c.mset != nil {
		base = append(base, batch.WithItemHook(c.mset.ObserveBatchItem))
	}
	return batch.New(c.api, append(base, opts...)...)
}

// Store returns the attached registry, or nil.
func (c *Client) Store() ports.SessionStore {
	return c.store
}

// InFlight reports remote calls currently admitted by the shared gate.
func (c *Client) InFlight() int {
	return c.gate.InFlight()
}

// markStale flags a registered session whose call just failed. The failure
// that got us here may be the caller's own deadline expiring, so the registry
// write runs on a short detached context.
func (c *Client) markStale(ctx context.Context, sessionID string) {
	if c.store == nil || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return
	}
	sess.Stale = true
	if err := c.store.Put(ctx, sess); err != nil {
		c.logger.Warn("registry put failed", "session_id", sessionID, "err", err)
	}
}
