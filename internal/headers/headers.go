package headers

import (
	"bytes"
	"fmt"
	"strings"
)

// entry keeps the casing of the first occurrence of a header name together
// with every value added under that name, in insertion order.
type entry struct {
	name   string
	values []string
}

// Headers is a case-insensitive, multi-value header collection. Lookups use
// the lower-cased name; iteration and serialization reproduce the first-seen
// casing and insertion order.
type Headers struct {
	entries map[string]*entry
	order   []string // lower-cased names, first-insertion order
}

func New() *Headers {
	return &Headers{
		entries: make(map[string]*entry),
	}
}

// Get returns the first value for a header.
func (h *Headers) Get(key string) (string, bool) {
	e := h.entries[strings.ToLower(key)]
	if e == nil || len(e.values) == 0 {
		return "", false
	}
	return e.values[0], true
}

// GetAll returns all values for a header, in the order they were added.
func (h *Headers) GetAll(key string) []string {
	e := h.entries[strings.ToLower(key)]
	if e == nil {
		return nil
	}
	return e.values
}

// Has reports whether the header is present.
func (h *Headers) Has(key string) bool {
	_, ok := h.entries[strings.ToLower(key)]
	return ok
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	return len(h.order)
}

// Set replaces all values for a header.
func (h *Headers) Set(key, value string) {
	lower := strings.ToLower(key)
	value = sanitizeValue(value)
	if e, ok := h.entries[lower]; ok {
		e.values = e.values[:0]
		e.values = append(e.values, value)
		return
	}
	h.entries[lower] = &entry{name: key, values: []string{value}}
	h.order = append(h.order, lower)
}

// Add appends a value to a header. The casing of the first Add/Set for a
// name wins for output.
func (h *Headers) Add(key, value string) {
	lower := strings.ToLower(key)
	value = sanitizeValue(value)
	if e, ok := h.entries[lower]; ok {
		e.values = append(e.values, value)
		return
	}
	h.entries[lower] = &entry{name: key, values: []string{value}}
	h.order = append(h.order, lower)
}

// Del removes a header.
func (h *Headers) Del(key string) {
	lower := strings.ToLower(key)
	if _, ok := h.entries[lower]; !ok {
		return
	}
	delete(h.entries, lower)
	for i, name := range h.order {
		if name == lower {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// All calls fn once per header line in serialization order: names in
// insertion order with their original casing, one call per value. Iteration
// stops early if fn returns false.
func (h *Headers) All(fn func(name, value string) bool) {
	for _, lower := range h.order {
		e := h.entries[lower]
		for _, v := range e.values {
			if !fn(e.name, v) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	c := New()
	h.All(func(name, value string) bool {
		c.Add(name, value)
		return true
	})
	return c
}

// Parse consumes complete "Name: value\r\n" lines from data, stopping at the
// empty line that ends the header block. It returns the number of bytes
// consumed and whether the terminating empty line was seen. A bare CR inside
// a line is a literal byte; only CRLF terminates a line.
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0
	done := false

	for {
		idx := bytes.Index(data[read:], crlf)
		if idx == -1 {
			// Need more data.
			break
		}

		if idx == 0 {
			// Empty line ends the header block.
			done = true
			read += 2
			break
		}

		line := data[read : read+idx]

		// Obsolete line folding is rejected outright.
		if line[0] == ' ' || line[0] == '\t' {
			return read, false, fmt.Errorf("obsolete line folding not supported")
		}

		name, value, err := parseLine(line)
		if err != nil {
			return read, done, err
		}

		h.Add(name, value)
		read += idx + 2
	}

	return read, done, nil
}

var crlf = []byte("\r\n")

func parseLine(line []byte) (string, string, error) {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", fmt.Errorf("malformed header: no colon")
	}

	name := line[:colonIdx]
	value := line[colonIdx+1:]

	if len(name) == 0 {
		return "", "", fmt.Errorf("malformed header: empty name")
	}
	if bytes.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("malformed header: whitespace in name")
	}
	for _, b := range name {
		if !isTokenChar(b) {
			return "", "", fmt.Errorf("invalid character in header name: %c", b)
		}
	}

	value = bytes.TrimSpace(value)

	return string(name), string(value), nil
}

// sanitizeValue strips CR and LF so a stored value can never split a
// serialized message.
func sanitizeValue(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", "")
}

func isTokenChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}
