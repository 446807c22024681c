package response

// TextResponse writes a complete text response through the writer.
func (w *Writer) TextResponse(code StatusCode, body string) error {
	return w.WriteResponse(New(code).WithText(body))
}

// JSONResponse writes a complete JSON response. The caller supplies the
// encoded document.
func (w *Writer) JSONResponse(code StatusCode, body string) error {
	return w.WriteResponse(New(code).WithJSON(body))
}

// HTMLResponse writes a complete HTML response.
func (w *Writer) HTMLResponse(code StatusCode, body string) error {
	return w.WriteResponse(New(code).WithHTML(body))
}

// ErrorResponse writes a best-effort error response with Connection: close.
// Safe to call only when nothing has been written yet; otherwise it reports
// the ordering error and the caller should just drop the connection.
func (w *Writer) ErrorResponse(code StatusCode, message string) error {
	r := New(code).WithText(message)
	r.Headers.Set("Connection", "close")
	return w.WriteResponse(r)
}
