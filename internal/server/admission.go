package server

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// permitPollInterval bounds how long the acceptor blocks on a permit, so the
// loop keeps observing the running flag during saturation.
const permitPollInterval = 100 * time.Millisecond

// permitPool bounds how many connections may be in flight at once. A permit
// is acquired before accept and released exactly once when the cycle
// finishes, success or failure.
type permitPool struct {
	sem  *semaphore.Weighted
	poll time.Duration
}

func newPermitPool(limit int64) *permitPool {
	return &permitPool{
		sem:  semaphore.NewWeighted(limit),
		poll: permitPollInterval,
	}
}

// acquire waits up to the poll interval for a permit. A false return is
// backpressure, not an error; the caller loops and re-checks shutdown.
func (p *permitPool) acquire() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.poll)
	defer cancel()
	return p.sem.Acquire(ctx, 1) == nil
}

// tryAcquire takes a permit only if one is free right now. Used on the
// event loop, which must never block.
func (p *permitPool) tryAcquire() bool {
	return p.sem.TryAcquire(1)
}

func (p *permitPool) release() {
	p.sem.Release(1)
}
