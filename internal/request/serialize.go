package request

import (
	"fmt"
	"io"
)

// WriteTo serializes the request back to wire form: request line, headers in
// insertion order with original casing (one line per value), blank line,
// body verbatim. For any well-formed input, parsing then serializing is
// byte-identical apart from discarded chunk framing.
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := fmt.Fprintf(w, "%s %s %s\r\n", r.Method, r.Target, r.Version)
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
