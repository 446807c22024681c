package request

import (
	"io"
)

// Reader decodes sequential requests from one byte stream. Bytes beyond a
// request's framed body are retained for the next call, so pipelined
// requests on a keep-alive connection are handed out one at a time.
type Reader struct {
	src     io.Reader
	pending []byte
	scratch *[]byte
}

func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:     src,
		scratch: getReadBuf(),
	}
}

// Next parses one request off the stream. It returns io.EOF when the stream
// ends cleanly between requests and io.ErrUnexpectedEOF when it ends inside
// one.
func (r *Reader) Next() (*Request, error) {
	p := NewParser()

	for {
		if len(r.pending) > 0 {
			n, err := p.Parse(r.pending)
			if n > 0 {
				r.pending = r.pending[:copy(r.pending, r.pending[n:])]
			}
			if err != nil {
				return nil, err
			}
			if p.Done() {
				return p.Request(), nil
			}
			if n > 0 {
				continue
			}
		}

		n, err := r.src.Read(*r.scratch)
		if n > 0 {
			r.pending = append(r.pending, (*r.scratch)[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				if n > 0 {
					// Final bytes arrived with the EOF; parse them first.
					continue
				}
				if len(r.pending) == 0 && !p.Started() {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// Buffered reports how many pipelined bytes are waiting for the next
// request.
func (r *Reader) Buffered() int { return len(r.pending) }

// Close releases the pooled scratch buffer. The underlying stream is the
// caller's to close.
func (r *Reader) Close() {
	if r.scratch != nil {
		putReadBuf(r.scratch)
		r.scratch = nil
	}
}

// FromReader parses a single request from src. Convenience for tests and
// one-shot callers; connection handling uses Reader directly.
func FromReader(src io.Reader) (*Request, error) {
	r := NewReader(src)
	defer r.Close()

	req, err := r.Next()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return req, err
}
