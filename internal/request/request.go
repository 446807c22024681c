package request

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/avalch/strata/internal/headers"
)

// Method is one of the nine standard HTTP verbs.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
)

// ParseMethod maps a request-line token onto a known verb.
func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodDelete,
		MethodConnect, MethodOptions, MethodTrace, MethodPatch:
		return m, true
	}
	return "", false
}

// HasBody reports whether the verb carries request-body semantics. Requests
// with other verbs always parse to an empty body; any framed bytes stay on
// the stream for the next pipelined request.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	}
	return false
}

// Request is one parsed HTTP/1.x request. Fields are set by the parser and
// must not be mutated afterwards; derived views (Path, Query, Form) are
// computed lazily and cached per instance.
type Request struct {
	Method  Method
	Target  string
	Version string // "HTTP/1.0" or "HTTP/1.1"
	Headers *headers.Headers
	Body    []byte

	pathOnce  sync.Once
	path      string
	rawQuery  string
	queryOnce sync.Once
	query     url.Values
	formOnce  sync.Once
	form      url.Values
}

// Path returns the target up to the query string.
func (r *Request) Path() string {
	r.pathOnce.Do(r.splitTarget)
	return r.path
}

// Query returns the decoded query parameters. Undecodable pairs are dropped.
func (r *Request) Query() url.Values {
	r.queryOnce.Do(func() {
		r.pathOnce.Do(r.splitTarget)
		q, err := url.ParseQuery(r.rawQuery)
		if err != nil && q == nil {
			q = url.Values{}
		}
		r.query = q
	})
	return r.query
}

// Form returns the decoded body parameters of a urlencoded form submission,
// or an empty set for any other content type.
func (r *Request) Form() url.Values {
	r.formOnce.Do(func() {
		r.form = url.Values{}
		ct, _ := r.Headers.Get("Content-Type")
		if mediaType(ct) != "application/x-www-form-urlencoded" {
			return
		}
		if f, err := url.ParseQuery(string(r.Body)); err == nil || f != nil {
			r.form = f
		}
	})
	return r.form
}

func (r *Request) splitTarget() {
	if idx := strings.IndexByte(r.Target, '?'); idx != -1 {
		r.path = r.Target[:idx]
		r.rawQuery = r.Target[idx+1:]
		return
	}
	r.path = r.Target
}

// ContentLength returns the declared body length, or -1 when the header is
// absent or unparseable. The parser validates the header strictly; this
// accessor is best-effort for handlers.
func (r *Request) ContentLength() int64 {
	v, ok := r.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// IsChunked reports whether the body uses chunked transfer encoding.
func (r *Request) IsChunked() bool {
	v, ok := r.Headers.Get("Transfer-Encoding")
	if !ok {
		return false
	}
	for _, enc := range strings.Split(v, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "chunked") {
			return true
		}
	}
	return false
}

func (r *Request) IsHTTP10() bool { return r.Version == "HTTP/1.0" }
func (r *Request) IsHTTP11() bool { return r.Version == "HTTP/1.1" }

// WantsClose reports whether the client asked for, or defaults to, closing
// the connection after this request.
func (r *Request) WantsClose() bool {
	v, ok := r.Headers.Get("Connection")
	if r.IsHTTP10() {
		// HTTP/1.0 closes unless keep-alive is requested explicitly.
		return !ok || !strings.EqualFold(strings.TrimSpace(v), "keep-alive")
	}
	return ok && strings.EqualFold(strings.TrimSpace(v), "close")
}

// WantsKeepAlive is the complement of WantsClose.
func (r *Request) WantsKeepAlive() bool {
	return !r.WantsClose()
}

func mediaType(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
