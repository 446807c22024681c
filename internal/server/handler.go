package server

import (
	"context"

	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
)

// Handler is the collaborator the core drives: one request in, one response
// out. The core never looks inside it, only at its result and faults.
//
// Returning (nil, nil) is a deliberate no-op: nothing is written and the
// connection closes quietly, leaving 404-style answers to the layer that
// knows the routing table. Returning an error, or panicking, yields a
// generic server-fault response instead of leaking the failure to the
// socket raw. The context carries the per-request processing deadline.
type Handler interface {
	Serve(ctx context.Context, req *request.Request) (*response.Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *request.Request) (*response.Response, error)

func (f HandlerFunc) Serve(ctx context.Context, req *request.Request) (*response.Response, error) {
	return f(ctx, req)
}
