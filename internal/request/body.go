package request

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

type chunkState int

const (
	chunkSize chunkState = iota
	chunkData
	chunkDataCRLF
	chunkTrailer
	chunkDone
)

var (
	ErrInvalidChunkSize     = errors.New("invalid chunk size")
	ErrChunkTooLarge        = errors.New("chunk size too large")
	ErrChunkSizeLineTooLong = errors.New("chunk size line too long")
	ErrInvalidChunkFormat   = errors.New("invalid chunk format")
	ErrTrailersTooLarge     = errors.New("trailer block too large")
)

const (
	maxChunkBytes    = 10 << 20 // per chunk
	maxChunkSizeLine = 1024
	maxTrailerBytes  = 8192
)

// chunkDecoder incrementally decodes a chunked transfer-encoded body.
// State is preserved across decode calls. Chunk extensions are validated
// just enough to skip; trailer lines are consumed and discarded.
type chunkDecoder struct {
	state        chunkState
	size         int
	read         int
	total        int64
	trailerBytes int
}

// decode consumes chunk framing from data, appending payload bytes to body.
// It returns bytes consumed and whether the terminal zero chunk (plus
// trailers) has been fully read.
func (d *chunkDecoder) decode(data []byte, body *[]byte, maxBody int64) (int, bool, error) {
	consumed := 0

	for consumed < len(data) {
		switch d.state {
		case chunkSize:
			n, err := d.parseSizeLine(data[consumed:])
			if err != nil {
				return consumed, false, err
			}
			if n == 0 {
				// Need more data.
				return consumed, false, nil
			}
			consumed += n

			if d.size == 0 {
				d.state = chunkTrailer
			} else {
				d.state = chunkData
				d.read = 0
			}

		case chunkData:
			remaining := d.size - d.read
			toRead := min(remaining, len(data)-consumed)

			if d.total+int64(toRead) > maxBody {
				return consumed, false, ErrBodyTooLarge
			}

			*body = append(*body, data[consumed:consumed+toRead]...)
			consumed += toRead
			d.read += toRead
			d.total += int64(toRead)

			if d.read < d.size {
				// Need more data.
				return consumed, false, nil
			}
			d.state = chunkDataCRLF

		case chunkDataCRLF:
			if len(data)-consumed < 2 {
				return consumed, false, nil
			}
			if data[consumed] != '\r' || data[consumed+1] != '\n' {
				return consumed, false, ErrInvalidChunkFormat
			}
			consumed += 2
			d.state = chunkSize

		case chunkTrailer:
			n, done, err := d.skipTrailers(data[consumed:])
			if err != nil {
				return consumed, false, err
			}
			consumed += n
			if !done {
				return consumed, false, nil
			}
			d.state = chunkDone
			return consumed, true, nil

		case chunkDone:
			return consumed, true, nil
		}
	}

	return consumed, d.state == chunkDone, nil
}

// parseSizeLine parses "SIZE[;extension]\r\n" with SIZE in hex. Extensions
// are ignored.
func (d *chunkDecoder) parseSizeLine(data []byte) (int, error) {
	limit := min(len(data), maxChunkSizeLine)
	idx := bytes.Index(data[:limit], crlf)
	if idx == -1 {
		if len(data) >= maxChunkSizeLine {
			return 0, ErrChunkSizeLineTooLong
		}
		// Need more data.
		return 0, nil
	}

	sizeField := data[:idx]
	if semi := bytes.IndexByte(sizeField, ';'); semi != -1 {
		sizeField = sizeField[:semi]
	}

	size, err := strconv.ParseInt(string(bytes.TrimSpace(sizeField)), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidChunkSize, err)
	}
	if size < 0 {
		return 0, ErrInvalidChunkSize
	}
	if size > maxChunkBytes {
		return 0, ErrChunkTooLarge
	}

	d.size = int(size)
	return idx + 2, nil
}

// skipTrailers discards header-like lines after the zero chunk until the
// empty line that ends the message.
func (d *chunkDecoder) skipTrailers(data []byte) (int, bool, error) {
	consumed := 0
	for {
		idx := bytes.Index(data[consumed:], crlf)
		if idx == -1 {
			// Unterminated remainder stays buffered for the next call; only
			// bound it, counting it would double up on re-presentation.
			if d.trailerBytes+len(data)-consumed > maxTrailerBytes {
				return consumed, false, ErrTrailersTooLarge
			}
			return consumed, false, nil
		}
		if idx == 0 {
			return consumed + 2, true, nil
		}
		consumed += idx + 2
		d.trailerBytes += idx + 2
		if d.trailerBytes > maxTrailerBytes {
			return consumed, false, ErrTrailersTooLarge
		}
	}
}
