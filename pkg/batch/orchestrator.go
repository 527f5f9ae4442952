// Package batch fans a slice of work items out against the session backend.
// Every item gets a terminal outcome at its submission index; one item's
// failure never touches its siblings.
package batch

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"

	"github.com/aretw0/grove/internal/logging"
	"github.com/aretw0/grove/pkg/domain"
	"github.com/aretw0/grove/pkg/limiter"
	"github.com/aretw0/grove/pkg/ports"
	"github.com/aretw0/grove/pkg/retrier"
)

// Orchestrator runs batches. Safe for concurrent use; Run calls are
// independent.
type Orchestrator struct {
	api    ports.SessionAPI
	run    *retrier.Retrier
	gate   *limiter.Limiter
	store  ports.SessionStore
	logger *slog.Logger
	onItem func(op domain.OpKind, err error)
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithRetrier sets the retry executor applied to every item.
func WithRetrier(r *retrier.Retrier) Option {
	return func(o *Orchestrator) {
		o.run = r
	}
}

// WithLimiter sets the admission gate shared with other callers.
func WithLimiter(l *limiter.Limiter) Option {
	return func(o *Orchestrator) {
		o.gate = l
	}
}

// WithStore keeps a local registry in step with creates and deletes.
// Registry errors are logged, never surfaced.
func WithStore(store ports.SessionStore) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithItemHook registers a callback fired once per terminal outcome, used
// to feed metrics.
func WithItemHook(fn func(op domain.OpKind, err error)) Option {
	return func(o *Orchestrator) {
		o.onItem = fn
	}
}

// New creates an Orchestrator over api.
func New(api ports.SessionAPI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		run:    retrier.New(retrier.DefaultPolicy()),
		gate:   limiter.New(0),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes items concurrently and returns one outcome per item, in
// submission order. Invalid items fail fast without a remote call. When ctx
// is canceled, items not yet admitted by the limiter end with a Canceled
// outcome while already admitted items run to their own terminal outcome.
func (o *Orchestrator) Run(ctx context.Context, items []domain.WorkItem) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(items))

	var wg conc.WaitGroup
	for i, item := range items {
		outcomes[i] = domain.Outcome{Index: i, Key: item.Key, Op: item.Op}

		if err := item.Validate(); err != nil {
			outcomes[i].Err = err
			continue
		}

		wg.Go(func() {
			outcomes[i].Value, outcomes[i].Err = o.execute(ctx, item)
		})
	}
	wg.Wait()

	for i := range outcomes {
		if o.onItem != nil {
			o.onItem(outcomes[i].Op, outcomes[i].Err)
		}
		if outcomes[i].Failed() {
			o.logger.Debug("batch item failed",
				"index", i,
				"op", outcomes[i].Op,
				"kind", outcomes[i].FailureKind(),
				"err", outcomes[i].Err,
			)
		}
	}
	return outcomes
}

// execute runs one valid item through the limiter and retrier.
func (o *Orchestrator) execute(ctx context.Context, item domain.WorkItem) (string, error) {
	var value string
	err := o.gate.Acquire(ctx)
	if err != nil {
		// Never admitted: the batch was canceled before this item started.
		return "", domain.NewFailure(domain.KindCanceled, opName(item.Op), err)
	}
	defer o.gate.Release()

	// Once admitted, the item runs to a terminal outcome: the remote call is
	// detached from batch cancellation and never interrupted mid-flight. ctx
	// still gates the retry loop, so cancellation stops further attempts.
	callCtx := context.WithoutCancel(ctx)
	err = o.run.Do(ctx, opName(item.Op), func(context.Context) error {
		var cerr error
		value, cerr = o.dispatch(callCtx, item)
		return cerr
	})
	if err != nil {
		if domain.KindOf(err) == "" {
			// Cancellation landed between attempts; keep the outcome inside
			// the taxonomy.
			err = domain.NewFailure(domain.KindCanceled, opName(item.Op), err)
		}
		o.markStale(callCtx, item.SessionID)
		return "", err
	}
	o.upkeep(callCtx, item, value)
	return value, nil
}

// markStale flags a registered session whose call just failed: its cached
// state can no longer be trusted.
func (o *Orchestrator) markStale(ctx context.Context, sessionID string) {
	if o.store == nil || sessionID == "" {
		return
	}
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return
	}
	sess.Stale = true
	if err := o.store.Put(ctx, sess); err != nil {
		o.logger.Warn("registry upkeep failed", "op", "mark_stale", "err", err)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	switch item.Op {
	case domain.OpCreate:
		return o.api.CreateSession(ctx, item.AgentID, item.State)
	case domain.OpMessage:
		return o.api.SendMessage(ctx, item.SessionID, item.Text)
	case domain.OpDelete:
		return "", o.api.DeleteSession(ctx, item.SessionID)
	}
	// Unreachable after Validate.
	return "", domain.Failf(domain.KindInvalidRequest, "batch", "unknown op %q", string(item.Op))
}

// upkeep mirrors successful creates and deletes into the registry.
func (o *Orchestrator) upkeep(ctx context.Context, item domain.WorkItem, value string) {
	if o.store == nil {
		return
	}
	var err error
	switch item.Op {
	case domain.OpCreate:
		err = o.store.Put(ctx, domain.NewSession(value, item.AgentID, item.State))
	case domain.OpDelete:
		err = o.store.Delete(ctx, item.SessionID)
	default:
		return
	}
	if err != nil {
		o.logger.Warn("registry upkeep failed", "op", item.Op, "err", err)
	}
}

func opName(op domain.OpKind) string {
	switch op {
	case domain.OpCreate:
		return "create_session"
	case domain.OpMessage:
		return "send_message"
	case domain.OpDelete:
		return "delete_session"
	}
	return string(op)
}
