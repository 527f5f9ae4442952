// Package retrier wraps single remote calls with bounded exponential-backoff
// retry. Classification comes from the domain failure taxonomy: Unreachable
// and RemoteError are retried, everything else surfaces immediately.
package retrier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aretw0/grove/internal/logging"
	"github.com/aretw0/grove/pkg/domain"
)

// Defaults applied by DefaultPolicy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 50 * time.Millisecond
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 5 * time.Second
)

// Policy bounds one retried call. Backoff state is call-local; a Policy is
// immutable and safe to share between goroutines.
type Policy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int

	// BaseDelay is the sleep before the first retry.
	BaseDelay time.Duration

	// Multiplier grows the delay after every retry.
	Multiplier float64

	// MaxDelay caps the grown delay. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy returns the standard 3-attempt exponential policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
	}
}

// normalized fills zero fields with defaults so a partially specified policy
// still behaves.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// backoff builds a fresh backoff chain for one invocation.
func (p Policy) backoff() retry.Backoff {
	delay := p.BaseDelay
	mult := p.Multiplier

	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		d := delay
		delay = time.Duration(float64(delay) * mult)
		return d, false
	})
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	// MaxAttempts counts the first try; the library counts retries.
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Retrier executes functions under a Policy. It holds no per-call state.
type Retrier struct {
	policy  Policy
	logger  *slog.Logger
	onRetry func(op string)
}

// Option configures the Retrier.
type Option func(*Retrier)

// WithLogger configures a structured logger for retry events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// WithRetryHook registers a callback fired on every retryable failure,
// used for metrics counters.
func WithRetryHook(fn func(op string)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// New creates a Retrier with the given policy.
func New(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{
		policy: policy.normalized(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective (normalized) policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs fn until it succeeds, fails terminally, or exhausts the attempt
// budget; the last failure is returned on exhaustion. The backoff sleep never
// blocks other goroutines and aborts early when ctx is canceled.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, r.policy.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			// No backoff left to sleep through; surface the failure itself
			// rather than losing it to the canceled sleep.
			return err
		}
		r.logger.Debug("retryable failure",
			"op", op,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"err", err,
		)
		if r.onRetry != nil {
			r.onRetry(op)
		}
		return retry.RetryableError(err)
	})
}
