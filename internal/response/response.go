package response

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/avalch/strata/internal/headers"
)

// DefaultServer is the Server header stamped on responses that don't set
// their own.
const DefaultServer = "strata"

const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// now is swapped out by tests that need a fixed Date header.
var now = time.Now

// Response is one HTTP response message. New injects the default Date,
// Server, and Connection headers when absent; Content-Length is computed
// from the body at serialization time unless already set.
type Response struct {
	Version string // "1.0" or "1.1"
	Code    StatusCode
	Reason  string
	Headers *headers.Headers
	Body    []byte
}

func New(code StatusCode) *Response {
	r := &Response{
		Version: "1.1",
		Code:    code,
		Reason:  Text(code),
		Headers: headers.New(),
	}
	r.Headers.Set("Date", now().UTC().Format(dateFormat))
	r.Headers.Set("Server", DefaultServer)
	r.Headers.Set("Connection", "keep-alive")
	return r
}

// WithHeader sets a header, replacing prior values.
func (r *Response) WithHeader(name, value string) *Response {
	r.Headers.Set(name, value)
	return r
}

// WithAddedHeader appends a header value.
func (r *Response) WithAddedHeader(name, value string) *Response {
	r.Headers.Add(name, value)
	return r
}

// WithReason overrides the canonical reason phrase.
func (r *Response) WithReason(reason string) *Response {
	r.Reason = reason
	return r
}

// WithBody sets the body bytes.
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r
}

// WithText sets a text/plain body.
func (r *Response) WithText(body string) *Response {
	r.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	r.Body = []byte(body)
	return r
}

// WithHTML sets a text/html body.
func (r *Response) WithHTML(body string) *Response {
	r.Headers.Set("Content-Type", "text/html; charset=utf-8")
	r.Body = []byte(body)
	return r
}

// WithJSON sets an application/json body. The caller supplies the encoded
// document.
func (r *Response) WithJSON(body string) *Response {
	r.Headers.Set("Content-Type", "application/json")
	r.Body = []byte(body)
	return r
}

// WriteTo serializes the response: status line, one line per header value in
// insertion order with original casing, blank line, body verbatim.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	version := r.Version
	if version == "" {
		version = "1.1"
	}
	reason := r.Reason
	if reason == "" {
		reason = Text(r.Code)
	}
	if !r.Headers.Has("Content-Length") && !r.chunked() {
		r.Headers.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	var total int64

	n, err := fmt.Fprintf(w, "HTTP/%s %d %s\r\n", version, r.Code, reason)
	total += int64(n)
	if err != nil {
		return total, err
	}

	r.Headers.All(func(name, value string) bool {
		n, err = fmt.Fprintf(w, "%s: %s\r\n", name, value)
		total += int64(n)
		return err == nil
	})
	if err != nil {
		return total, err
	}

	n, err = io.WriteString(w, "\r\n")
	total += int64(n)
	if err != nil {
		return total, err
	}

	if len(r.Body) > 0 {
		n, err = w.Write(r.Body)
		total += int64(n)
	}
	return total, err
}

func (r *Response) chunked() bool {
	v, ok := r.Headers.Get("Transfer-Encoding")
	return ok && v == "chunked"
}
