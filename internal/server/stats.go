package server

import (
	"sync/atomic"
	"time"
)

// Stats holds the server's runtime counters. Written by many
// connection-handling goroutines, read concurrently via Snapshot.
type Stats struct {
	received  atomic.Int64 // connections accepted
	processed atomic.Int64 // connections finished cleanly
	failed    atomic.Int64 // connections finished with a fault
	active    atomic.Int64 // connections currently in flight
	requests  atomic.Int64 // request/response cycles completed
	timeouts  atomic.Int64 // requests that hit the processing deadline

	totalProcessingNs atomic.Int64

	startedAt atomic.Int64 // unix nanos, 0 = never started
	stoppedAt atomic.Int64
}

func newStats() *Stats {
	return &Stats{}
}

func (s *Stats) connReceived() {
	s.received.Add(1)
	s.active.Add(1)
}

func (s *Stats) connFinished(failed bool) {
	s.active.Add(-1)
	if failed {
		s.failed.Add(1)
	} else {
		s.processed.Add(1)
	}
}

func (s *Stats) requestDone(d time.Duration) {
	s.requests.Add(1)
	s.totalProcessingNs.Add(d.Nanoseconds())
}

func (s *Stats) requestTimeout() {
	s.timeouts.Add(1)
}

func (s *Stats) markStarted() {
	s.startedAt.Store(time.Now().UnixNano())
	s.stoppedAt.Store(0)
}

func (s *Stats) markStopped() {
	s.stoppedAt.Store(time.Now().UnixNano())
}

// Snapshot is a read-only view of the counters at one moment.
type Snapshot struct {
	Received          int64
	Processed         int64
	Failed            int64
	ActiveConnections int64
	Requests          int64
	Timeouts          int64

	// AverageLatency is total processing time over completed requests.
	AverageLatency time.Duration

	// Uptime runs from start to stop, or to now while running.
	Uptime    time.Duration
	StartedAt time.Time
	StoppedAt time.Time
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Received:          s.received.Load(),
		Processed:         s.processed.Load(),
		Failed:            s.failed.Load(),
		ActiveConnections: s.active.Load(),
		Requests:          s.requests.Load(),
		Timeouts:          s.timeouts.Load(),
	}

	if reqs := snap.Requests; reqs > 0 {
		snap.AverageLatency = time.Duration(s.totalProcessingNs.Load() / reqs)
	}

	if started := s.startedAt.Load(); started != 0 {
		snap.StartedAt = time.Unix(0, started)
		if stopped := s.stoppedAt.Load(); stopped != 0 {
			snap.StoppedAt = time.Unix(0, stopped)
			snap.Uptime = snap.StoppedAt.Sub(snap.StartedAt)
		} else {
			snap.Uptime = time.Since(snap.StartedAt)
		}
	}

	return snap
}
