package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
)

// conn owns one accepted socket for its lifetime: one request/response
// cycle, or several sequentially under keep-alive.
type conn struct {
	rwc net.Conn
	srv *Server
}

// serve runs cycles until the peer goes away, a fault ends the connection,
// or the server starts draining. The returned error carries the fault kind
// for the completion callback; nil means a clean close.
func (c *conn) serve() error {
	rd := request.NewReader(c.rwc)
	defer rd.Close()

	for {
		if t := c.srv.cfg.readTimeout; t > 0 {
			_ = c.rwc.SetReadDeadline(time.Now().Add(t))
		}

		req, err := rd.Next()
		if err != nil {
			return c.readFault(err)
		}

		closeAfter, err := c.srv.respond(c.rwc, req)
		if err != nil {
			return err
		}
		if closeAfter {
			return nil
		}

		// The drain phase ends keep-alive reuse; in-flight work above
		// already finished.
		if !c.srv.running.Load() {
			return nil
		}
	}
}

// readFault classifies a failed read. Quiet endings (clean EOF, idle
// timeout, reset) close silently; genuinely malformed input gets a minimal
// 400 before the close.
func (c *conn) readFault(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		// The client went quiet; not this connection's fault.
		return nil
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newFault(FaultTransport, err)
	}

	// Truncated bodies count as parse faults: the request can't be trusted
	// either way.
	w := response.NewWriter(c.rwc)
	_ = w.ErrorResponse(response.StatusBadRequest, "bad request")
	return newFault(FaultParse, err)
}

// respond runs one parsed request through the handler and writes the reply.
// It reports whether the connection must close afterwards.
func (s *Server) respond(w io.Writer, req *request.Request) (bool, error) {
	started := time.Now()

	if nc, ok := w.(net.Conn); ok {
		if t := s.cfg.writeTimeout; t > 0 {
			_ = nc.SetWriteDeadline(time.Now().Add(t))
		}
	}

	resp, herr := s.invoke(req)
	return s.writeReply(w, req, resp, herr, started)
}

// invoke runs the handler under the processing deadline, containing panics.
func (s *Server) invoke(req *request.Request) (*response.Response, error) {
	ctx := s.baseCtx
	if t := s.cfg.requestTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	type outcome struct {
		resp *response.Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := s.callHandler(ctx, req)
		done <- outcome{resp, err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		// The handler goroutine is left to finish into a buffered channel;
		// its late result is discarded.
		return nil, ctx.Err()
	}
}

// callHandler is the only place handler code runs; panics stop here.
func (s *Server) callHandler(ctx context.Context, req *request.Request) (resp *response.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler.Serve(ctx, req)
}

// writeReply maps the handler outcome onto the wire and the statistics.
func (s *Server) writeReply(w io.Writer, req *request.Request, resp *response.Response, herr error, started time.Time) (bool, error) {
	defer s.stats.requestDone(time.Since(started))

	rw := response.NewWriter(w)

	if herr != nil {
		if errors.Is(herr, context.DeadlineExceeded) {
			s.stats.requestTimeout()
			s.log.Warn("request timed out",
				"method", req.Method, "path", req.Path())
			_ = rw.ErrorResponse(response.StatusServiceUnavailable, "request timed out")
		} else {
			s.log.Error("handler fault",
				"method", req.Method, "path", req.Path(), "err", herr)
			_ = rw.ErrorResponse(response.StatusInternalServerError, "internal server error")
		}
		return true, newFault(FaultHandler, herr)
	}

	if resp == nil {
		// Deliberate "no servlet" no-op: nothing hits the wire and the
		// connection closes quietly.
		return true, nil
	}

	if req.IsHTTP10() {
		resp.Version = "1.0"
	}
	if req.WantsClose() {
		resp.Headers.Set("Connection", "close")
	}
	if s.cfg.serverHeader != response.DefaultServer {
		if v, _ := resp.Headers.Get("Server"); v == response.DefaultServer {
			resp.Headers.Set("Server", s.cfg.serverHeader)
		}
	}

	if err := rw.WriteResponse(resp); err != nil {
		return true, newFault(FaultTransport, err)
	}

	return shouldClose(req, rw), nil
}
