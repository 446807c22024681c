package server

import (
	"errors"
	"fmt"
)

// FaultKind classifies what went wrong with one connection's cycle. Faults
// travel by return value through parse → handle → respond; nothing in the
// per-request path panics across layers.
type FaultKind int

const (
	FaultNone FaultKind = iota
	// FaultParse: the request could not be trusted (malformed line, bad
	// method, oversized headers, truncated body). The connection dies with
	// at most a minimal response.
	FaultParse
	// FaultHandler: the handler returned an error, panicked, or timed out.
	// Converted to a generic 5xx while the stream is still writable.
	FaultHandler
	// FaultTransport: socket-level failure (reset, unexpected listener
	// close, write error).
	FaultTransport
	// FaultResource: pool rejection or forced shutdown; logged, never
	// escalated.
	FaultResource
)

func (k FaultKind) String() string {
	switch k {
	case FaultParse:
		return "parse"
	case FaultHandler:
		return "handler"
	case FaultTransport:
		return "transport"
	case FaultResource:
		return "resource"
	default:
		return "none"
	}
}

// Fault pairs a kind with its cause.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

// KindOf extracts the fault kind from an error chain, FaultNone if absent.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultNone
}
