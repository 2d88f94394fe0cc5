package gate

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultCapacity       = 20
	DefaultAcquireTimeout = time.Second
)

// Gate bounds the number of in-flight per-request computations. Waiters are
// woken in FIFO order; an acquire that cannot complete within the timeout is
// reported as busy without consuming a slot.
type Gate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func New(capacity int64, timeout time.Duration) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Gate{sem: semaphore.NewWeighted(capacity), timeout: timeout}
}

// Acquire blocks until a slot is free or the timeout elapses. It returns
// false when the gate is saturated and the caller should short-circuit.
func (g *Gate) Acquire(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.sem.Acquire(ctx, 1) == nil
}

func (g *Gate) Release() {
	g.sem.Release(1)
}
