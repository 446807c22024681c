package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avalch/strata/internal/response"
)

// Mode selects the concurrency model at construction time; it never changes
// per request.
type Mode int

const (
	// ModeWorkerPool: a fixed pool of workers, one blocking cycle each.
	ModeWorkerPool Mode = iota
	// ModeEventLoop: one cooperative loop multiplexing all connections.
	ModeEventLoop
	// ModeHybrid: an I/O pool feeding handler futures, plus a CPU pool for
	// offloaded compute.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeWorkerPool:
		return "worker-pool"
	case ModeEventLoop:
		return "event-loop"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrStart          = errors.New("server start failed")
)

const drainPollInterval = 100 * time.Millisecond

type config struct {
	addr            string
	mode            Mode
	maxConns        int64
	workers         int
	ioWorkers       int
	cpuWorkers      int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	requestTimeout  time.Duration
	drainTimeout    time.Duration
	engineTimeout   time.Duration
	keepAlivePeriod time.Duration
	serverHeader    string
	logger          *slog.Logger
}

func defaultConfig() config {
	return config{
		addr:            ":8080",
		mode:            ModeWorkerPool,
		maxConns:        256,
		workers:         32,
		ioWorkers:       128,
		cpuWorkers:      runtime.NumCPU(),
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		requestTimeout:  30 * time.Second,
		drainTimeout:    30 * time.Second,
		engineTimeout:   5 * time.Second,
		keepAlivePeriod: 15 * time.Second,
		serverHeader:    response.DefaultServer,
		logger:          slog.Default(),
	}
}

// Option configures a Server at construction.
type Option func(*config)

func WithAddr(addr string) Option          { return func(c *config) { c.addr = addr } }
func WithMode(m Mode) Option               { return func(c *config) { c.mode = m } }
func WithServerHeader(name string) Option  { return func(c *config) { c.serverHeader = name } }
func WithLogger(l *slog.Logger) Option     { return func(c *config) { c.logger = l } }
func WithReadTimeout(d time.Duration) Option    { return func(c *config) { c.readTimeout = d } }
func WithWriteTimeout(d time.Duration) Option   { return func(c *config) { c.writeTimeout = d } }
func WithRequestTimeout(d time.Duration) Option { return func(c *config) { c.requestTimeout = d } }
func WithDrainTimeout(d time.Duration) Option   { return func(c *config) { c.drainTimeout = d } }
func WithKeepAlivePeriod(d time.Duration) Option {
	return func(c *config) { c.keepAlivePeriod = d }
}

// WithMaxConns sets the admission ceiling: how many connections may be in
// flight at once across all modes.
func WithMaxConns(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConns = n
		}
	}
}

// WithWorkerCount sizes the worker-pool mode.
func WithWorkerCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithIOPoolSize sizes the hybrid mode's I/O pool.
func WithIOPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.ioWorkers = n
		}
	}
}

// WithCPUPoolSize sizes the hybrid mode's compute pool.
func WithCPUPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cpuWorkers = n
		}
	}
}

// engine is the closed set of scheduling models. All three share one
// contract: take an accepted connection, drive its cycles, and call the
// completion callback exactly once.
type engine interface {
	start(ctx context.Context) error
	dispatch(nc net.Conn, done func(error))
	stop(ctx context.Context) error
}

// Server binds the acceptor, admission control, the selected scheduling
// engine, and the lifecycle into one unit.
type Server struct {
	cfg     config
	handler Handler
	log     *slog.Logger

	running atomic.Bool
	baseCtx context.Context
	cancel  context.CancelFunc

	ln         net.Listener
	acceptDone chan struct{}

	permits *permitPool
	conns   *connTracker
	stats   *Stats

	engine engine
	hybrid *hybridEngine // set only in ModeHybrid, for CPUBound
}

func New(handler Handler, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     cfg.logger,
		stats:   newStats(),
	}
}

// Start binds resources and begins accepting. It fails fast when already
// running; a failure partway through releases everything it had acquired
// before returning a wrapped start fault.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.permits = newPermitPool(s.cfg.maxConns)
	s.conns = newConnTracker()
	s.hybrid = nil

	fail := func(err error) error {
		s.cancel()
		s.running.Store(false)
		return fmt.Errorf("%w: %v", ErrStart, err)
	}

	switch s.cfg.mode {
	case ModeEventLoop:
		s.engine = newEventLoopEngine(s)
		startCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.engineTimeout)
		defer cancel()
		if err := s.engine.start(startCtx); err != nil {
			return fail(err)
		}

	case ModeHybrid, ModeWorkerPool:
		ln, err := net.Listen("tcp", s.cfg.addr)
		if err != nil {
			return fail(err)
		}
		s.ln = ln

		if s.cfg.mode == ModeHybrid {
			h := newHybridEngine(s)
			s.engine = h
			s.hybrid = h
		} else {
			s.engine = newWorkerPool(s)
		}
		if err := s.engine.start(s.baseCtx); err != nil {
			_ = ln.Close()
			return fail(err)
		}

		s.acceptDone = make(chan struct{})
		go s.acceptLoop()

	default:
		return fail(fmt.Errorf("unknown mode %d", s.cfg.mode))
	}

	s.stats.markStarted()
	s.log.Info("server started",
		"addr", s.cfg.addr, "mode", s.cfg.mode.String(),
		"max_conns", s.cfg.maxConns)
	return nil
}

// Stop drains and shuts down: close the listener, wait for in-flight
// connections up to the drain deadline, force-close stragglers, then ask
// the engine to stop with its own sub-timeout before forcing that too.
// Idempotent; a second call is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.log.Info("server stopping")

	if s.ln != nil {
		// Unblocks the acceptor; its loop sees the cleared flag and exits.
		_ = s.ln.Close()
	}
	if s.acceptDone != nil {
		<-s.acceptDone
	}

	if s.cfg.mode == ModeEventLoop {
		// gnet stops accepting and drains its loop under the deadline.
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.drainTimeout)
		_ = s.engine.stop(stopCtx)
		cancel()
	}

	// Kick idle keep-alive connections out of their reads, then wait for
	// the active set to empty.
	s.conns.interruptReads()
	if !s.conns.awaitDrain(ctx, s.cfg.drainTimeout, drainPollInterval) {
		killed := s.conns.forceCloseAll()
		s.log.Warn("drain deadline passed, connections force-closed", "count", killed)
	}

	if s.cfg.mode != ModeEventLoop {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.engineTimeout)
		err := s.engine.stop(stopCtx)
		cancel()
		if err != nil {
			s.log.Warn("engine did not stop gracefully, forcing", "err", err)
		}
	}

	s.cancel()
	s.stats.markStopped()

	snap := s.stats.Snapshot()
	s.log.Info("server stopped",
		"received", snap.Received, "processed", snap.Processed,
		"failed", snap.Failed, "uptime", snap.Uptime)
	return nil
}

// Running reports whether Start has succeeded and Stop has not begun.
func (s *Server) Running() bool { return s.running.Load() }

// Addr returns the bound listener address, nil before Start or in event
// loop mode (where the engine owns the socket).
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stats returns a point-in-time snapshot of the counters.
func (s *Server) Stats() Snapshot {
	return s.stats.Snapshot()
}

// acceptLoop admits, accepts, and hands off. It never runs a cycle on this
// goroutine.
func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for s.running.Load() {
		// Bounded poll so saturation can't blind the loop to shutdown.
		if !s.permits.acquire() {
			continue
		}

		nc, err := s.ln.Accept()
		if err != nil {
			s.permits.release()
			if errors.Is(err, net.ErrClosed) {
				if s.running.Load() {
					s.log.Error("listener closed unexpectedly", "err", err)
				}
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}

		s.stats.connReceived()
		s.conns.add(nc)
		s.tuneConn(nc)
		s.engine.dispatch(nc, s.completion(nc))
	}
}

// completion builds the single finalization step for one connection: fires
// exactly once however the cycle ends, so permits and counters can't leak
// or double.
func (s *Server) completion(c io.Closer) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			s.conns.remove(c)
			s.stats.connFinished(err != nil)
			s.permits.release()
			if err != nil {
				s.log.Debug("connection finished with fault",
					"kind", KindOf(err).String(), "err", err)
			}
		})
	}
}

func (s *Server) tuneConn(nc net.Conn) {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(true)
	if s.cfg.keepAlivePeriod > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(s.cfg.keepAlivePeriod)
	}
}
