// Package limiter bounds the number of in-flight remote calls system-wide.
// It is a pure admission gate: no operation kinds, no priorities.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity reflects a reasonable concurrent load against one backend.
const DefaultCapacity = 16

// Limiter is a counting semaphore with a fixed capacity. The zero value is
// not usable; construct with New.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// New creates a limiter admitting at most capacity concurrent holders.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with exactly one Release, on all exit paths.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// Release returns a slot to the gate.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// With runs fn while holding a slot, guaranteeing release on every exit path
// including panics. The admission wait is the only part that observes ctx;
// fn decides for itself how to honor cancellation.
func (l *Limiter) With(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn(ctx)
}

// InFlight reports the number of currently held slots.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Capacity reports the configured slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}
