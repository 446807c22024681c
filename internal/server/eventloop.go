package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2"

	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
)

// eventLoopEngine is the single-cooperative-loop mode, built on gnet. The
// engine owns the listening socket; readiness events drive parsing in small
// increments through the same incremental codec the other modes use, and
// responses are written back through the loop's outbound buffer. Handlers
// run on the loop, so they must be non-blocking-friendly; anything slow
// should be delegated (Server.CPUBound, or the handler's own machinery).
type eventLoopEngine struct {
	gnet.BuiltinEventEngine

	srv    *Server
	eng    gnet.Engine
	booted atomic.Bool
	ready  chan error
}

// loopConn is the per-connection state parked in the gnet conn context.
type loopConn struct {
	parser *request.Parser
	done   func(error)
	err    error
}

func newEventLoopEngine(srv *Server) *eventLoopEngine {
	return &eventLoopEngine{
		srv:   srv,
		ready: make(chan error, 1),
	}
}

func (e *eventLoopEngine) start(ctx context.Context) error {
	go func() {
		err := gnet.Run(e, "tcp://"+e.srv.cfg.addr,
			gnet.WithNumEventLoop(1),
			gnet.WithReuseAddr(true),
			gnet.WithTCPNoDelay(gnet.TCPNoDelay),
			gnet.WithTCPKeepAlive(e.srv.cfg.keepAlivePeriod),
		)
		if err != nil {
			// Boot failure; deliver it if start is still waiting.
			select {
			case e.ready <- err:
			default:
			}
		}
	}()

	select {
	case err := <-e.ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *eventLoopEngine) OnBoot(eng gnet.Engine) gnet.Action {
	e.eng = eng
	e.booted.Store(true)
	e.ready <- nil
	return gnet.None
}

func (e *eventLoopEngine) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	// The loop must never block on admission; at capacity the conn is
	// turned away outright.
	if !e.srv.permits.tryAcquire() {
		return nil, gnet.Close
	}

	e.srv.stats.connReceived()
	e.srv.conns.add(c)
	c.SetContext(&loopConn{
		parser: request.NewParser(),
		done:   e.srv.completion(c),
	})
	return nil, gnet.None
}

func (e *eventLoopEngine) OnTraffic(c gnet.Conn) gnet.Action {
	lc, _ := c.Context().(*loopConn)
	if lc == nil {
		return gnet.Close
	}

	for {
		buf, err := c.Peek(-1)
		if err != nil || len(buf) == 0 {
			return gnet.None
		}

		n, perr := lc.parser.Parse(buf)
		if n > 0 {
			_, _ = c.Discard(n)
		}
		if perr != nil {
			w := response.NewWriter(c)
			_ = w.ErrorResponse(response.StatusBadRequest, "bad request")
			lc.err = newFault(FaultParse, perr)
			return gnet.Close
		}

		if lc.parser.Done() {
			closeAfter, rerr := e.srv.respond(c, lc.parser.Request())
			if rerr != nil {
				lc.err = rerr
				return gnet.Close
			}
			if closeAfter || !e.srv.running.Load() {
				return gnet.Close
			}
			// Fresh parser for the next pipelined request.
			lc.parser = request.NewParser()
			continue
		}

		if n == 0 {
			// Incomplete frame; wait for the next readiness event.
			return gnet.None
		}
	}
}

func (e *eventLoopEngine) OnClose(c gnet.Conn, err error) gnet.Action {
	lc, _ := c.Context().(*loopConn)
	if lc == nil {
		// Turned away at admission; never tracked, nothing to release.
		return gnet.None
	}

	if lc.err == nil && err != nil && !errors.Is(err, io.EOF) {
		lc.err = newFault(FaultTransport, err)
	}
	lc.done(lc.err)
	return gnet.None
}

func (e *eventLoopEngine) dispatch(nc net.Conn, done func(error)) {
	// The engine owns accept; the shared acceptor never dispatches here.
	done(newFault(FaultResource, errors.New("event loop owns its listener")))
	_ = nc.Close()
}

func (e *eventLoopEngine) stop(ctx context.Context) error {
	if !e.booted.Load() {
		return nil
	}
	return e.eng.Stop(ctx)
}
