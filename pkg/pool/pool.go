// Package pool pre-creates a fixed number of backend sessions for one agent
// and hands them out to callers. A slot moves Empty -> Initializing ->
// Available and then bounces Available <-> InUse until the pool drains.
//
// The pool holds at most Capacity live sessions; a single mutex guards the
// slot table and all counters.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/aretw0/grove/internal/logging"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/limiter"
	"github.com/aretw0/grove/pkg/ports"
	"github.com/aretw0/grove/pkg/retrier"
)

// DefaultCapacity is used when Config.Capacity is not positive.
const DefaultCapacity = 4

// Config describes the pool's shape. AgentID is required; every pooled
// session is created for that agent seeded with InitialState.
type Config struct {
	Capacity     int
	AgentID      string
	InitialState domain.StateMap

	// MaxWait bounds Acquire when no session is free. Zero means block
	// until the context expires.
	MaxWait time.Duration
}

// InitReport describes the outcome of one Initialize call. Partial pools
// are normal: Created may be less than Requested.
type InitReport struct {
	Requested int
	Created   int
	Failures  []error
}

// Failed reports how many slots could not be filled.
func (r InitReport) Failed() int {
	return len(r.Failures)
}

type slotState int

const (
	slotAvailable slotState = iota
	slotInUse
)

// Pool manages the slot table. Safe for concurrent use.
type Pool struct {
	api  ports.SessionAPI
	run  *retrier.Retrier
	gate *limiter.Limiter

	store  ports.SessionStore
	logger *slog.Logger
	gauge  func(empty, initializing, available, inUse int)

	capacity int
	agentID  string
	seed     domain.StateMap
	maxWait  time.Duration

	mu           sync.Mutex
	slots        map[string]slotState
	avail        chan *domain.Session
	empty        int
	initializing int
	available    int
	inUse        int
	draining     bool
}

// Option configures the Pool.
type Option func(*Pool)

// WithRetrier sets the retry executor for session create/delete calls.
func WithRetrier(r *retrier.Retrier) Option {
	return func(p *Pool) {
		p.run = r
	}
}

// WithLimiter sets the admission gate shared with other callers.
func WithLimiter(l *limiter.Limiter) Option {
	return func(p *Pool) {
		p.gate = l
	}
}

// WithStore registers pooled sessions in a local registry. Registry errors
// are logged, never surfaced: the registry is an observer.
func WithStore(store ports.SessionStore) Option {
	return func(p *Pool) {
		p.store = store
	}
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithSlotGauge registers a callback receiving the slot census after every
// transition, used to feed metrics gauges.
func WithSlotGauge(fn func(empty, initializing, available, inUse int)) Option {
	return func(p *Pool) {
		p.gauge = fn
	}
}

// New creates an unfilled pool. Call Initialize to create the sessions.
func New(api ports.SessionAPI, cfg Config, opts ...Option) *Pool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	p := &Pool{
		api:      api,
		run:      retrier.New(retrier.DefaultPolicy()),
		gate:     limiter.New(0),
		logger:   logging.NewNop(),
		capacity: cfg.Capacity,
		agentID:  cfg.AgentID,
		seed:     cfg.InitialState.Clone(),
		maxWait:  cfg.MaxWait,
		slots:    make(map[string]slotState, cfg.Capacity),
		avail:    make(chan *domain.Session, cfg.Capacity),
		empty:    cfg.Capacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialize fills every Empty slot concurrently. Per-slot failures land in
// the report and leave their slot Empty; a later Initialize can retry them.
func (p *Pool) Initialize(ctx context.Context) (InitReport, error) {
	const op = "pool_initialize"
	if p.agentID == "" {
		return InitReport{}, domain.Failf(domain.KindInvalidRequest, op, "agent_id is required")
	}

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return InitReport{}, domain.Failf(domain.KindPoolExhausted, op, "pool is draining")
	}
	n := p.empty
	p.empty = 0
	p.initializing += n
	p.mu.Unlock()
	p.publish()

	report := InitReport{Requested: n}
	var rmu sync.Mutex

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			var id string
			err := p.gate.With(ctx, func(ctx context.Context) error {
				return p.run.Do(ctx, "create_session", func(ctx context.Context) error {
					var cerr error
					id, cerr = p.api.CreateSession(ctx, p.agentID, p.seed)
					return cerr
				})
			})

			if err != nil {
				p.logger.Warn("pool slot initialization failed", "agent_id", p.agentID, "err", err)
				p.mu.Lock()
				p.initializing--
				p.empty++
				p.mu.Unlock()
				rmu.Lock()
				report.Failures = append(report.Failures, err)
				rmu.Unlock()
				p.publish()
				return
			}

			sess := domain.NewSession(id, p.agentID, p.seed)

			p.mu.Lock()
			if p.draining {
				// Drain already swept the pool; parking now would leak the
				// session, so delete it instead.
				p.initializing--
				p.empty++
				p.mu.Unlock()
				p.publish()
				_ = p.discard(context.WithoutCancel(ctx), sess.ID)
				rmu.Lock()
				report.Failures = append(report.Failures,
					domain.Failf(domain.KindPoolExhausted, op, "pool drained during initialization"))
				rmu.Unlock()
				return
			}
			p.initializing--
			p.available++
			p.slots[id] = slotAvailable
			// The buffered channel holds capacity entries, so this send never
			// blocks while live sessions stay within capacity.
			p.avail <- sess
			p.mu.Unlock()
			p.record(ctx, sess)

			rmu.Lock()
			report.Created++
			rmu.Unlock()
			p.publish()
		})
	}
	wg.Wait()

	p.logger.Info("pool initialized",
		"agent_id", p.agentID,
		"requested", report.Requested,
		"created", report.Created,
		"failed", report.Failed(),
	)
	return report, ctx.Err()
}

// Acquire hands out an Available session, blocking until one frees up. The
// wait is bounded by ctx and, when configured, MaxWait; both expiries map to
// PoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*domain.Session, error) {
	const op = "pool_acquire"

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return nil, domain.Failf(domain.KindPoolExhausted, op, "pool is draining")
	}
	p.mu.Unlock()

	var expiry <-chan time.Time
	if p.maxWait > 0 {
		timer := time.NewTimer(p.maxWait)
		defer timer.Stop()
		expiry = timer.C
	}

	select {
	case sess := <-p.avail:
		p.mu.Lock()
		p.available--
		p.inUse++
		p.slots[sess.ID] = slotInUse
		p.mu.Unlock()
		p.publish()
		return sess, nil
	case <-ctx.Done():
		return nil, domain.NewFailure(domain.KindPoolExhausted, op, ctx.Err())
	case <-expiry:
		return nil, domain.Failf(domain.KindPoolExhausted, op, "no session available within %s", p.maxWait)
	}
}

// Release returns an acquired session to the pool. Releasing a session the
// pool does not consider InUse is a caller bug and fails with
// InvalidRelease. Once the pool is draining, released sessions are deleted
// remotely instead of re-parked.
func (p *Pool) Release(ctx context.Context, sess *domain.Session) error {
	const op = "pool_release"
	if sess == nil || sess.ID == "" {
		return domain.Failf(domain.KindInvalidRelease, op, "nil session")
	}

	p.mu.Lock()
	state, ok := p.slots[sess.ID]
	if !ok {
		p.mu.Unlock()
		return domain.Failf(domain.KindInvalidRelease, op, "session %s does not belong to this pool", sess.ID)
	}
	if state != slotInUse {
		p.mu.Unlock()
		return domain.Failf(domain.KindInvalidRelease, op, "session %s is not in use", sess.ID)
	}

	if p.draining {
		delete(p.slots, sess.ID)
		p.inUse--
		p.empty++
		p.mu.Unlock()
		p.publish()
		return p.discard(ctx, sess.ID)
	}

	p.slots[sess.ID] = slotAvailable
	p.inUse--
	p.available++
	// Park under the lock so a concurrent Drain either sweeps this session
	// or sees the pool before the release, never in between.
	p.avail <- sess
	p.mu.Unlock()
	p.publish()
	return nil
}

// Drain stops hand-outs and deletes every Available session. InUse sessions
// are deleted as they are released. Drain is terminal: the pool cannot be
// re-initialized afterwards.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	var parked []*domain.Session
	for {
		select {
		case sess := <-p.avail:
			delete(p.slots, sess.ID)
			p.available--
			p.empty++
			parked = append(parked, sess)
			continue
		default:
		}
		break
	}
	p.mu.Unlock()
	p.publish()

	errs := make([]error, len(parked))
	var wg conc.WaitGroup
	for i, sess := range parked {
		wg.Go(func() {
			errs[i] = p.discard(ctx, sess.ID)
		})
	}
	wg.Wait()

	p.logger.Info("pool drained", "agent_id", p.agentID, "deleted", len(parked))
	return errors.Join(errs...)
}

// Stats is a point-in-time census of the slot table.
type Stats struct {
	Capacity     int
	Empty        int
	Initializing int
	Available    int
	InUse        int
	Draining     bool
}

// Stats reports the current slot census.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:     p.capacity,
		Empty:        p.empty,
		Initializing: p.initializing,
		Available:    p.available,
		InUse:        p.inUse,
		Draining:     p.draining,
	}
}

// discard deletes a session remotely and removes it from the registry.
func (p *Pool) discard(ctx context.Context, sessionID string) error {
	err := p.gate.With(ctx, func(ctx context.Context) error {
		return p.run.Do(ctx, "delete_session", func(ctx context.Context) error {
			return p.api.DeleteSession(ctx, sessionID)
		})
	})
	if err != nil {
		p.logger.Warn("pool session delete failed", "session_id", sessionID, "err", err)
		return err
	}
	if p.store != nil {
		if serr := p.store.Delete(ctx, sessionID); serr != nil {
			p.logger.Warn("registry delete failed", "session_id", sessionID, "err", serr)
		}
	}
	return nil
}

// record registers a freshly created session; registry errors are logged only.
func (p *Pool) record(ctx context.Context, sess *domain.Session) {
	if p.store == nil {
		return
	}
	if err := p.store.Put(ctx, sess); err != nil {
		p.logger.Warn("registry put failed", "session_id", sess.ID, "err", err)
	}
}

// publish pushes the slot census to the gauge hook.
func (p *Pool) publish() {
	if p.gauge == nil {
		return
	}
	s := p.Stats()
	p.gauge(s.Empty, s.Initializing, s.Available, s.InUse)
}
