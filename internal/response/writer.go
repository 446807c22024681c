package response

import (
	"fmt"
	"io"
	"strconv"

	"github.com/avalch/strata/internal/headers"
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes HTTP responses to an io.Writer, enforcing status line →
// headers → body ordering. It remembers enough about what it wrote for the
// keep-alive decision: framing, errors, whether anything hit the wire.
type Writer struct {
	w             io.Writer
	state         writerState
	statusCode    StatusCode
	contentLength int64 // -1 means unknown
	isChunked     bool
	hadError      bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:             w,
		state:         stateStart,
		contentLength: -1,
	}
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	w.statusCode = code
	_, err := fmt.Fprintf(w.w, "HTTP/1.1 %d %s\r\n", code, Text(code))
	if err != nil {
		w.hadError = true
		return err
	}

	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes the header block and the blank line ending it.
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	var err error
	h.All(func(name, value string) bool {
		_, err = fmt.Fprintf(w.w, "%s: %s\r\n", name, value)
		return err == nil
	})
	if err != nil {
		w.hadError = true
		return err
	}

	if cl, ok := h.Get("Content-Length"); ok {
		if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
			w.contentLength = n
		}
	}
	if te, ok := h.Get("Transfer-Encoding"); ok && te == "chunked" {
		w.isChunked = true
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		w.hadError = true
		return err
	}
	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes body bytes verbatim.
func (w *Writer) WriteBody(p []byte) (int, error) {
	if w.state != stateHeadersWritten && w.state != stateBodyWritten {
		return 0, fmt.Errorf("must write status line and headers before body")
	}

	n, err := w.w.Write(p)
	if err != nil {
		w.hadError = true
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}

// WriteChunkedBody writes one chunk: hex size line, data, CRLF.
func (w *Writer) WriteChunkedBody(p []byte) (int, error) {
	if w.state != stateHeadersWritten && w.state != stateBodyWritten {
		return 0, fmt.Errorf("must write status line and headers before chunked body")
	}
	if len(p) == 0 {
		return 0, nil
	}

	if _, err := fmt.Fprintf(w.w, "%x\r\n", len(p)); err != nil {
		w.hadError = true
		return 0, err
	}

	n, err := w.w.Write(p)
	if err != nil {
		w.hadError = true
		return n, err
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		w.hadError = true
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}

// WriteChunkedBodyDone writes the terminal zero chunk.
func (w *Writer) WriteChunkedBodyDone() (int, error) {
	if w.state != stateHeadersWritten && w.state != stateBodyWritten {
		return 0, fmt.Errorf("must write status line and headers before ending chunked body")
	}

	n, err := io.WriteString(w.w, "0\r\n\r\n")
	if err != nil {
		w.hadError = true
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}

// WriteTrailers writes trailer headers after a chunked body.
func (w *Writer) WriteTrailers(h *headers.Headers) error {
	if w.state != stateBodyWritten {
		return fmt.Errorf("must write body before trailers")
	}

	var err error
	h.All(func(name, value string) bool {
		_, err = fmt.Fprintf(w.w, "%s: %s\r\n", name, value)
		return err == nil
	})
	if err != nil {
		w.hadError = true
		return err
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		w.hadError = true
		return err
	}
	return nil
}

// WriteResponse serializes a fully built Response through this writer.
func (w *Writer) WriteResponse(r *Response) error {
	if w.state != stateStart {
		return fmt.Errorf("response already started")
	}

	w.statusCode = r.Code
	if cl, ok := r.Headers.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			w.contentLength = n
		}
	} else if !r.chunked() {
		w.contentLength = int64(len(r.Body))
	}
	w.isChunked = r.chunked()

	if _, err := r.WriteTo(w.w); err != nil {
		w.hadError = true
		return err
	}
	w.state = stateBodyWritten
	return nil
}

// StatusCode returns the code written so far, 0 if none.
func (w *Writer) StatusCode() StatusCode {
	if w.state == stateStart {
		return 0
	}
	return w.statusCode
}

// Started reports whether any response bytes were written.
func (w *Writer) Started() bool { return w.state != stateStart }

// HadError reports whether any write failed.
func (w *Writer) HadError() bool { return w.hadError }

// HasContentLength reports whether the response declared its length.
func (w *Writer) HasContentLength() bool { return w.contentLength >= 0 }

// IsChunked reports whether the response body is chunk-framed.
func (w *Writer) IsChunked() bool { return w.isChunked }
