package server

import (
	"context"
	"io"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// connTracker is the set of live connections. Keys are io.Closer so both
// net.Conn and event-loop conns fit; force-close only needs Close.
type connTracker struct {
	conns *xsync.MapOf[io.Closer, time.Time]
}

func newConnTracker() *connTracker {
	return &connTracker{
		conns: xsync.NewMapOf[io.Closer, time.Time](),
	}
}

func (t *connTracker) add(c io.Closer) {
	t.conns.Store(c, time.Now())
}

func (t *connTracker) remove(c io.Closer) {
	t.conns.Delete(c)
}

func (t *connTracker) size() int {
	return t.conns.Size()
}

// interruptReads expires the read deadline on every tracked connection that
// supports one, kicking idle keep-alive conns out of their blocking read so
// the drain can finish.
func (t *connTracker) interruptReads() {
	type readDeadliner interface {
		SetReadDeadline(time.Time) error
	}
	now := time.Now()
	t.conns.Range(func(c io.Closer, _ time.Time) bool {
		if rd, ok := c.(readDeadliner); ok {
			_ = rd.SetReadDeadline(now)
		}
		return true
	})
}

// awaitDrain polls until the set empties, the drain deadline passes, or ctx
// is done. Reports whether the set drained.
func (t *connTracker) awaitDrain(ctx context.Context, deadline, interval time.Duration) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if t.size() == 0 {
			return true
		}
		select {
		case <-tick.C:
		case <-timer.C:
			return t.size() == 0
		case <-ctx.Done():
			return t.size() == 0
		}
	}
}

// forceCloseAll closes and clears every remaining connection, returning how
// many were killed.
func (t *connTracker) forceCloseAll() int {
	n := 0
	t.conns.Range(func(c io.Closer, _ time.Time) bool {
		_ = c.Close()
		t.conns.Delete(c)
		n++
		return true
	})
	return n
}
