package response

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalch/strata/internal/headers"
)

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time {
		return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	t.Cleanup(func() { now = prev })
}

func TestDefaultHeadersInjected(t *testing.T) {
	fixedClock(t)

	r := New(StatusOK)
	date, _ := r.Headers.Get("Date")
	assert.Equal(t, "Fri, 01 Mar 2024 12:00:00 GMT", date)
	srv, _ := r.Headers.Get("Server")
	assert.Equal(t, DefaultServer, srv)
	conn, _ := r.Headers.Get("Connection")
	assert.Equal(t, "keep-alive", conn)

	// Content-Length is computed at serialization time.
	buf := &bytes.Buffer{}
	_, err := r.WithText("hi").WriteTo(buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Content-Length: 2\r\n")
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\nhi"))
}

func TestWriteToStatusLine(t *testing.T) {
	for _, tc := range []struct {
		code StatusCode
		want string
	}{
		{StatusOK, "HTTP/1.1 200 OK\r\n"},
		{StatusBadRequest, "HTTP/1.1 400 Bad Request\r\n"},
		{StatusInternalServerError, "HTTP/1.1 500 Internal Server Error\r\n"},
	} {
		buf := &bytes.Buffer{}
		_, err := New(tc.code).WriteTo(buf)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(buf.String(), tc.want), "for %d got %q", tc.code, buf.String())
	}
}

func TestWriteToPreservesHeaderOrderAndCase(t *testing.T) {
	r := New(StatusOK)
	r.Headers.Add("X-First", "1")
	r.Headers.Add("x-first", "2")
	r.Headers.Add("X-Second", "b")

	buf := &bytes.Buffer{}
	_, err := r.WriteTo(buf)
	require.NoError(t, err)

	out := buf.String()
	// One line per value, first-seen casing, insertion order.
	first := strings.Index(out, "X-First: 1\r\nX-First: 2\r\n")
	second := strings.Index(out, "X-Second: b\r\n")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
}

func TestWriteToExplicitContentLengthKept(t *testing.T) {
	r := New(StatusNoContent)
	r.Headers.Set("Content-Length", "0")
	r.Body = nil

	buf := &bytes.Buffer{}
	_, err := r.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "Content-Length"))
}

func TestWriterOrdering(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	// Body before status is rejected.
	_, err := w.WriteBody([]byte("nope"))
	require.Error(t, err)

	require.NoError(t, w.WriteStatusLine(StatusOK))
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", buf.String())

	// Status twice is rejected.
	require.Error(t, w.WriteStatusLine(StatusOK))

	h := headers.New()
	h.Set("Content-Length", "4")
	require.NoError(t, w.WriteHeaders(h))
	assert.True(t, w.HasContentLength())

	_, err = w.WriteBody([]byte("body"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\nbody"))
	assert.Equal(t, StatusOK, w.StatusCode())
	assert.False(t, w.HadError())
}

func TestWriterChunkedRawBytes(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	require.NoError(t, w.WriteStatusLine(StatusOK))
	h := headers.New()
	h.Set("Transfer-Encoding", "chunked")
	require.NoError(t, w.WriteHeaders(h))
	assert.True(t, w.IsChunked())

	_, err := w.WriteChunkedBody([]byte("Wikipedia in"))
	require.NoError(t, err)
	_, err = w.WriteChunkedBodyDone()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(buf.String(), "c\r\nWikipedia in\r\n0\r\n\r\n"))
}

func TestWriterTrailers(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	require.NoError(t, w.WriteStatusLine(StatusOK))
	h := headers.New()
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Trailer", "X-Checksum")
	require.NoError(t, w.WriteHeaders(h))

	_, err := w.WriteChunkedBody([]byte("data"))
	require.NoError(t, err)
	_, err = w.WriteChunkedBodyDone()
	require.NoError(t, err)

	trailers := headers.New()
	trailers.Set("X-Checksum", "abc123")
	require.NoError(t, w.WriteTrailers(trailers))
	assert.True(t, strings.HasSuffix(buf.String(), "X-Checksum: abc123\r\n\r\n"))
}

func TestErrorResponseClosesConnection(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	require.NoError(t, w.ErrorResponse(StatusBadRequest, "malformed request"))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 400 Bad Request\r\n"))
	assert.Contains(t, out, "Connection: close\r\n")
	assert.True(t, strings.HasSuffix(out, "malformed request"))
	assert.True(t, w.Started())
}

func TestWriterWriteResponse(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	r := New(StatusCreated).WithJSON(`{"id":1}`)
	require.NoError(t, w.WriteResponse(r))
	assert.Equal(t, StatusCreated, w.StatusCode())
	assert.True(t, w.HasContentLength())

	// A second response on the same writer is rejected.
	require.Error(t, w.WriteResponse(New(StatusOK)))
}
