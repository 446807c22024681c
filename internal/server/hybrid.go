package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
)

// hybridEngine is the dual-pool mode. Read+parse runs on a generously sized
// I/O pool (the work is mostly waiting on sockets); each parsed request's
// handler call and response assembly are chained onto a future bounded by
// the processing deadline; explicitly CPU-bound handler work can hop onto a
// second, core-sized pool via Server.CPUBound. The completion callback for
// a connection fires exactly once whatever the exit path.
type hybridEngine struct {
	srv      *Server
	ioSlots  chan struct{}
	cpuSlots chan struct{}
	wg       sync.WaitGroup
}

func newHybridEngine(srv *Server) *hybridEngine {
	return &hybridEngine{
		srv:      srv,
		ioSlots:  make(chan struct{}, srv.cfg.ioWorkers),
		cpuSlots: make(chan struct{}, srv.cfg.cpuWorkers),
	}
}

func (e *hybridEngine) start(context.Context) error { return nil }

func (e *hybridEngine) dispatch(nc net.Conn, done func(error)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case e.ioSlots <- struct{}{}:
		case <-e.srv.baseCtx.Done():
			done(newFault(FaultResource, e.srv.baseCtx.Err()))
			return
		}
		defer func() { <-e.ioSlots }()

		err := e.serveConn(nc)
		_ = nc.Close()
		done(err)
	}()
}

// outcome is what a handler future resolves to.
type outcome struct {
	resp *response.Response
	err  error
}

// future resolves exactly once with the handler's outcome.
type future struct {
	ch chan outcome
}

// processAsync starts the handler stage and returns its future. The
// goroutine always resolves the future, even on panic.
func (e *hybridEngine) processAsync(ctx context.Context, req *request.Request) *future {
	f := &future{ch: make(chan outcome, 1)}
	go func() {
		resp, err := e.srv.callHandler(ctx, req)
		f.ch <- outcome{resp, err}
	}()
	return f
}

// await blocks until the future resolves or the deadline fires. A fired
// deadline abandons the stage; its late result lands in the buffered
// channel and is dropped.
func (f *future) await(ctx context.Context) outcome {
	select {
	case out := <-f.ch:
		return out
	case <-ctx.Done():
		return outcome{nil, ctx.Err()}
	}
}

// serveConn drives cycles on one connection: parse on this I/O goroutine,
// then chain the handler future and response write under the request
// deadline.
func (e *hybridEngine) serveConn(nc net.Conn) error {
	c := &conn{rwc: nc, srv: e.srv}
	rd := request.NewReader(nc)
	defer rd.Close()

	for {
		if t := e.srv.cfg.readTimeout; t > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(t))
		}

		req, err := rd.Next()
		if err != nil {
			return c.readFault(err)
		}

		closeAfter, err := e.cycle(nc, req)
		if err != nil {
			return err
		}
		if closeAfter {
			return nil
		}

		if !e.srv.running.Load() {
			return nil
		}
	}
}

func (e *hybridEngine) cycle(nc net.Conn, req *request.Request) (bool, error) {
	started := time.Now()

	ctx := e.srv.baseCtx
	if t := e.srv.cfg.requestTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	if t := e.srv.cfg.writeTimeout; t > 0 {
		_ = nc.SetWriteDeadline(time.Now().Add(t))
	}

	out := e.processAsync(ctx, req).await(ctx)
	return e.srv.writeReply(nc, req, out.resp, out.err, started)
}

func (e *hybridEngine) stop(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CPUBound runs fn on the CPU-core-sized pool when the hybrid mode is
// active, so heavy compute inside a handler doesn't crowd the I/O pool. In
// the other modes fn runs inline. It returns fn's error, or the context's
// if the slot never freed up.
func (s *Server) CPUBound(ctx context.Context, fn func() error) error {
	e := s.hybrid
	if e == nil {
		return fn()
	}

	select {
	case e.cpuSlots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.cpuSlots }()

	return fn()
}

