package request

import (
	"bytes"
	"errors"
)

// MaxRequestLineBytes caps the request line, CRLF excluded.
const MaxRequestLineBytes = 8192

var (
	ErrRequestLineTooLong   = errors.New("request line too long")
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidMethod        = errors.New("invalid HTTP method")
	ErrInvalidTarget        = errors.New("invalid request target")
	ErrUnsupportedVersion   = errors.New("unsupported HTTP version")
)

var crlf = []byte("\r\n")

// parseRequestLine parses "METHOD TARGET VERSION\r\n". A bare CR is a
// literal byte; only a full CRLF terminates the line. consumed == 0 with a
// nil error means more data is needed.
func parseRequestLine(data []byte) (method Method, target, version string, consumed int, err error) {
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		if len(data) > MaxRequestLineBytes {
			return "", "", "", 0, ErrRequestLineTooLong
		}
		// Need more data.
		return "", "", "", 0, nil
	}
	if idx > MaxRequestLineBytes {
		return "", "", "", 0, ErrRequestLineTooLong
	}

	line := data[:idx]
	consumed = idx + 2

	// Split on single spaces, not generic whitespace: a bare CR inside a
	// token stays a literal byte.
	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 || len(parts[2]) == 0 {
		return "", "", "", 0, ErrMalformedRequestLine
	}

	method, ok := ParseMethod(string(parts[0]))
	if !ok {
		return "", "", "", 0, ErrInvalidMethod
	}

	target = string(parts[1])
	if !validTarget(method, target) {
		return "", "", "", 0, ErrInvalidTarget
	}

	version = string(parts[2])
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return "", "", "", 0, ErrUnsupportedVersion
	}

	return method, target, version, consumed, nil
}

func validTarget(method Method, target string) bool {
	if len(target) == 0 {
		return false
	}
	if target[0] == '/' {
		return true
	}
	// "OPTIONS * HTTP/1.1" is the one asterisk-form we accept.
	return target == "*" && method == MethodOptions
}
