package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/avalch/strata/internal/headers"
)

// Protocol limits. Fixed policy, not tunable per request.
const (
	MaxHeaderCount = 100
	MaxHeaderBytes = 64 << 10

	// DefaultMaxBodyBytes guards the body accumulator against hostile
	// Content-Length values and endless chunk streams.
	DefaultMaxBodyBytes = 100 << 20
)

var (
	ErrTooManyHeaders       = errors.New("too many headers")
	ErrHeaderBlockTooLarge  = errors.New("header block too large")
	ErrBodyTooLarge         = errors.New("body exceeds maximum size")
	ErrInvalidContentLength = errors.New("invalid Content-Length")
)

type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateFixedBody
	stateChunkedBody
	stateDone
	stateError
)

// Parser is a push-based incremental request parser. Feed it raw bytes with
// Parse; it consumes exactly what the current request frame needs and leaves
// the rest for the caller, so pipelined requests survive intact.
type Parser struct {
	state       parserState
	req         *Request
	chunk       chunkDecoder
	bodyWant    int64 // fixed framing: bytes still owed
	headerBytes int
	consumed    int64
	maxBody     int64
}

func NewParser() *Parser {
	return &Parser{
		req:     &Request{Headers: headers.New()},
		maxBody: DefaultMaxBodyBytes,
	}
}

// Done reports whether a full request has been parsed.
func (p *Parser) Done() bool { return p.state == stateDone }

// Started reports whether any bytes have been consumed. It distinguishes a
// clean end-of-stream between requests from a truncated request.
func (p *Parser) Started() bool { return p.consumed > 0 }

// Request returns the parsed request. Valid only once Done reports true.
func (p *Parser) Request() *Request { return p.req }

// Parse advances the state machine over data and returns how many bytes it
// consumed. Zero consumed with a nil error means more data is needed. Errors
// are terminal; the parser stays in a failed state afterwards.
func (p *Parser) Parse(data []byte) (int, error) {
	read := 0

	for p.state != stateDone {
		var (
			n   int
			err error
		)
		switch p.state {
		case stateError:
			return read, errors.New("parser in failed state")
		case stateRequestLine:
			n, err = p.parseRequestLine(data[read:])
		case stateHeaders:
			n, err = p.parseHeaders(data[read:])
		case stateFixedBody:
			n, err = p.parseFixedBody(data[read:])
		case stateChunkedBody:
			n, err = p.parseChunkedBody(data[read:])
		default:
			err = fmt.Errorf("invalid parser state: %d", p.state)
		}

		if err != nil {
			p.state = stateError
			return read, err
		}

		read += n
		p.consumed += int64(n)
		if n == 0 {
			// Need more data.
			break
		}
	}

	return read, nil
}

func (p *Parser) parseRequestLine(data []byte) (int, error) {
	method, target, version, consumed, err := parseRequestLine(data)
	if err != nil {
		return 0, err
	}
	if consumed == 0 {
		return 0, nil
	}

	p.req.Method = method
	p.req.Target = target
	p.req.Version = version
	p.state = stateHeaders
	return consumed, nil
}

func (p *Parser) parseHeaders(data []byte) (int, error) {
	consumed, done, err := p.req.Headers.Parse(data)
	if err != nil {
		return 0, err
	}

	p.headerBytes += consumed
	if p.headerBytes > MaxHeaderBytes {
		return 0, ErrHeaderBlockTooLarge
	}
	if p.req.Headers.Len() > MaxHeaderCount {
		return 0, ErrTooManyHeaders
	}
	if !done {
		// No terminator yet: refuse to buffer past the block limit.
		if consumed == 0 && p.headerBytes+len(data) > MaxHeaderBytes {
			return 0, ErrHeaderBlockTooLarge
		}
		return consumed, nil
	}

	return consumed, p.enterBody()
}

// enterBody picks the body framing once the header block is complete.
func (p *Parser) enterBody() error {
	if !p.req.Method.HasBody() {
		p.state = stateDone
		return nil
	}

	if raw, ok := p.req.Headers.Get("Content-Length"); ok {
		cl, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || cl < 0 {
			return ErrInvalidContentLength
		}
		if cl > p.maxBody {
			return ErrBodyTooLarge
		}
		if cl == 0 {
			p.state = stateDone
			return nil
		}
		p.bodyWant = cl
		p.req.Body = make([]byte, 0, min(cl, 64<<10))
		p.state = stateFixedBody
		return nil
	}

	if p.req.IsChunked() {
		p.state = stateChunkedBody
		return nil
	}

	p.state = stateDone
	return nil
}

func (p *Parser) parseFixedBody(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	toRead := int(min(p.bodyWant, int64(len(data))))
	p.req.Body = append(p.req.Body, data[:toRead]...)
	p.bodyWant -= int64(toRead)

	if p.bodyWant == 0 {
		p.state = stateDone
	}
	return toRead, nil
}

func (p *Parser) parseChunkedBody(data []byte) (int, error) {
	consumed, done, err := p.chunk.decode(data, &p.req.Body, p.maxBody)
	if err != nil {
		return 0, err
	}
	if done {
		p.state = stateDone
	}
	return consumed, nil
}
