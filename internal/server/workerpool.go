package server

import (
	"context"
	"errors"
	"net"
	"sync"
)

var errWorkerQueueFull = errors.New("worker queue full")

// workerTask pairs an accepted conn with its exactly-once completion
// callback.
type workerTask struct {
	nc   net.Conn
	done func(error)
}

// workerPool is the bounded-pool mode: a fixed number of workers, each
// pulling one connection and running its full synchronous cycle before
// taking the next. The concurrency ceiling is the pool size; a worker stays
// blocked for however long the cycle takes, handler I/O included.
type workerPool struct {
	srv   *Server
	tasks chan workerTask
	wg    sync.WaitGroup
}

func newWorkerPool(srv *Server) *workerPool {
	return &workerPool{
		srv: srv,
		// Sized to the admission ceiling, so a dispatch after a successful
		// permit acquire never blocks the acceptor.
		tasks: make(chan workerTask, srv.cfg.maxConns),
	}
}

func (p *workerPool) start(context.Context) error {
	for i := 0; i < p.srv.cfg.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return nil
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		err := (&conn{rwc: t.nc, srv: p.srv}).serve()
		_ = t.nc.Close()
		t.done(err)
	}
}

func (p *workerPool) dispatch(nc net.Conn, done func(error)) {
	select {
	case p.tasks <- workerTask{nc: nc, done: done}:
	default:
		// Admission sizing makes this unreachable; fail the conn rather
		// than block the acceptor if it ever isn't.
		done(newFault(FaultResource, errWorkerQueueFull))
	}
}

func (p *workerPool) stop(ctx context.Context) error {
	close(p.tasks)

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
