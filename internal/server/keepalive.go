package server

import (
	"github.com/avalch/strata/internal/request"
	"github.com/avalch/strata/internal/response"
)

// shouldClose decides whether the connection can serve another request
// after this one.
func shouldClose(req *request.Request, w *response.Writer) bool {
	// A response that failed mid-write leaves the stream in an unknown
	// state.
	if w.HadError() {
		return true
	}

	// HTTP/1.0 closes by default unless "Connection: keep-alive".
	if req.IsHTTP10() {
		return !req.WantsKeepAlive()
	}

	// HTTP/1.1 keeps alive by default unless "Connection: close".
	if req.WantsClose() {
		return true
	}

	// Without Content-Length or chunking the client can't find the
	// response boundary.
	if !w.HasContentLength() && !w.IsChunked() {
		return true
	}

	return false
}
