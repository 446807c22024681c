package headers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderParse(t *testing.T) {
	// Test: Valid single header
	h := New()
	data := []byte("Host: localhost:42069\r\n")
	n, done, err := h.Parse(data)
	require.NoError(t, err)
	val, ok := h.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost:42069", val)
	assert.Equal(t, 23, n)
	assert.False(t, done)

	// Test: Valid single header with extra whitespace
	h = New()
	data = []byte("Host:   localhost:42069   \r\n")
	_, done, err = h.Parse(data)
	require.NoError(t, err)
	val, ok = h.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost:42069", val)
	assert.False(t, done)

	// Test: Duplicate headers keep every value in order
	h = New()
	data = []byte("Set-Cookie: a=1\r\nSet-Cookie: b=2\r\n")
	_, done, err = h.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2"}, h.GetAll("set-cookie"))
	assert.False(t, done)

	// Test: Get returns the first value for duplicate headers
	val, ok = h.Get("set-cookie")
	assert.True(t, ok)
	assert.Equal(t, "a=1", val)

	// Test: Empty line signals end of headers
	h = New()
	data = []byte("\r\n")
	n, done, err = h.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, done)

	// Test: Headers followed by empty line
	h = New()
	data = []byte("Host: example.com\r\n\r\n")
	n, done, err = h.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 21, n)
	assert.True(t, done)
}

func TestHeaderParseErrors(t *testing.T) {
	// Test: Missing colon
	h := New()
	_, _, err := h.Parse([]byte("NoColonHere\r\n"))
	require.Error(t, err)

	// Test: Whitespace before the colon
	h = New()
	_, _, err = h.Parse([]byte("Bad Name : value\r\n"))
	require.Error(t, err)

	// Test: Invalid character in name
	h = New()
	_, _, err = h.Parse([]byte("Na(me: value\r\n"))
	require.Error(t, err)

	// Test: Empty name
	h = New()
	_, _, err = h.Parse([]byte(": value\r\n"))
	require.Error(t, err)

	// Test: Obsolete line folding
	h = New()
	n, _, err := h.Parse([]byte("Host: a\r\n continued\r\n"))
	require.Error(t, err)
	assert.Equal(t, 9, n)
}

func TestHeaderCasePreserved(t *testing.T) {
	h := New()
	data := []byte("X-Request-ID: abc\r\nContent-Type: text/plain\r\nx-request-id: def\r\n\r\n")
	_, done, err := h.Parse(data)
	require.NoError(t, err)
	assert.True(t, done)

	// First-seen casing wins, insertion order is stable, values grouped by name.
	var lines []string
	h.All(func(name, value string) bool {
		lines = append(lines, name+": "+value)
		return true
	})
	assert.Equal(t, []string{
		"X-Request-ID: abc",
		"X-Request-ID: def",
		"Content-Type: text/plain",
	}, lines)
}

func TestHeaderBareCRIsLiteral(t *testing.T) {
	// A lone CR does not terminate the line; it survives inside the value.
	h := New()
	n, done, err := h.Parse([]byte("X-Odd: a\rb\r\n\r\n"))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 14, n)
	val, ok := h.Get("x-odd")
	assert.True(t, ok)
	assert.Equal(t, "a\rb", val)
}

func TestHeaderSetAddDel(t *testing.T) {
	h := New()
	h.Add("Accept", "text/html")
	h.Add("Accept", "application/json")
	assert.Equal(t, []string{"text/html", "application/json"}, h.GetAll("ACCEPT"))

	h.Set("accept", "*/*")
	assert.Equal(t, []string{"*/*"}, h.GetAll("Accept"))

	// Casing of the first Add wins for iteration even after Set.
	var names []string
	h.All(func(name, _ string) bool {
		names = append(names, name)
		return true
	})
	assert.Equal(t, []string{"Accept"}, names)

	h.Del("Accept")
	assert.False(t, h.Has("accept"))
	assert.Equal(t, 0, h.Len())
}

func TestHeaderValueSanitized(t *testing.T) {
	h := New()
	h.Set("X-Inject", "a\r\nEvil: yes")
	val, _ := h.Get("X-Inject")
	assert.False(t, strings.ContainsAny(val, "\r\n"))
	assert.Equal(t, "aEvil: yes", val)
}

func TestHeaderClone(t *testing.T) {
	h := New()
	h.Add("A", "1")
	h.Add("B", "2")

	c := h.Clone()
	c.Add("A", "3")
	c.Del("B")

	assert.Equal(t, []string{"1"}, h.GetAll("A"))
	assert.True(t, h.Has("B"))
	assert.Equal(t, []string{"1", "3"}, c.GetAll("A"))
	assert.False(t, c.Has("B"))
}
