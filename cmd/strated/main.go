// Command strated runs a demo server with a small hand-rolled route table,
// useful for poking at the three concurrency modes from curl.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
	"github.com/avalch/strata/internal/server"
)

func main() {
	var (
		addr    = flag.String("addr", ":8080", "listen address")
		mode    = flag.String("mode", "worker-pool", "concurrency mode: worker-pool, event-loop, hybrid")
		maxConn = flag.Int64("max-conns", 256, "connection admission ceiling")
		workers = flag.Int("workers", 32, "worker pool size")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var m server.Mode
	switch *mode {
	case "worker-pool":
		m = server.ModeWorkerPool
	case "event-loop":
		m = server.ModeEventLoop
	case "hybrid":
		m = server.ModeHybrid
	default:
		log.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}

	demo := newDemoHandler()
	srv := server.New(demo,
		server.WithAddr(*addr),
		server.WithMode(m),
		server.WithMaxConns(*maxConn),
		server.WithWorkerCount(*workers),
		server.WithLogger(log),
	)

	demo.stats = srv.Stats

	if err := srv.Start(); err != nil {
		log.Error("start failed", "err", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("stop failed", "err", err)
		os.Exit(1)
	}

	snap := srv.Stats()
	log.Info("final stats",
		"requests", snap.Requests,
		"processed", snap.Processed,
		"failed", snap.Failed,
		"avg_latency", snap.AverageLatency,
	)
}

// demoHandler routes a handful of paths by hand. Anything unknown gets 404
// here rather than a quiet close, since this binary is meant for curl.
type demoHandler struct {
	started time.Time
	stats   func() server.Snapshot
}

func newDemoHandler() *demoHandler {
	return &demoHandler{started: time.Now()}
}

func (h *demoHandler) Serve(_ context.Context, req *request.Request) (*response.Response, error) {
	switch req.Path() {
	case "/":
		return response.New(response.StatusOK).
			WithHTML("<h1>strata</h1><p>try /health, /echo, /stats</p>"), nil

	case "/health":
		body, _ := json.Marshal(map[string]any{
			"status": "ok",
			"uptime": time.Since(h.started).String(),
		})
		return response.New(response.StatusOK).WithJSON(string(body)), nil

	case "/echo":
		if !req.Method.HasBody() {
			return response.New(response.StatusMethodNotAllowed).
				WithText("POST a body to /echo"), nil
		}
		ct, _ := req.Headers.Get("Content-Type")
		resp := response.New(response.StatusOK).WithBody(req.Body)
		if ct != "" {
			resp.Headers.Set("Content-Type", ct)
		}
		return resp, nil

	case "/stats":
		snap := h.stats()
		body, _ := json.Marshal(map[string]any{
			"received":    snap.Received,
			"processed":   snap.Processed,
			"failed":      snap.Failed,
			"active":      snap.ActiveConnections,
			"requests":    snap.Requests,
			"timeouts":    snap.Timeouts,
			"avg_latency": snap.AverageLatency.String(),
			"uptime":      snap.Uptime.String(),
		})
		return response.New(response.StatusOK).WithJSON(string(body)), nil

	case "/greet":
		name := req.Query().Get("name")
		if name == "" {
			name = "world"
		}
		return response.New(response.StatusOK).
			WithText(fmt.Sprintf("hello, %s\n", name)), nil

	default:
		return response.New(response.StatusNotFound).
			WithText("not found\n"), nil
	}
}
