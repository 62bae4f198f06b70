package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Reader reads SSE frames from a source io.Reader. When built with
// NewTeeReader it also writes every raw line verbatim to a destination
// io.Writer before parsing it.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌─────────────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer (tee) │
// └──────────────────┘   └─────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Line buffering is handled by a bufio.Scanner, so a frame split across any
// number of reads from the source parses the same as one delivered whole.
// Lines end in LF, CRLF or a lone CR, and the tee receives them with their
// original terminators.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	// current accumulates fields for the frame being built in the current scan.
	current  *Frame
	hasData  bool
	dataSeen bool

	err error
}

// NewReader returns a Reader that parses SSE frames from src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	return NewTeeReader(src, nil, opts...)
}

// NewTeeReader returns a Reader that parses SSE frames from src and writes
// all raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer, opts ...Option) *Reader {
	o := newOptions(opts)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, o.initialBufferSize), o.maxLineSize)
	scanner.Split(scanLines)

	return &Reader{
		scanner: scanner,
		dest:    dest,
		current: &Frame{},
	}
}

// Next returns the next complete frame. It blocks until a frame terminated
// by a blank line is available. Next returns nil, io.EOF when the source is
// exhausted; a trailing frame without its terminating blank line is dropped.
//
// Failures of the source or of the tee destination are returned as a
// *TransportError, and every later call returns the same error.
func (r *Reader) Next() (*Frame, error) {
	if r.err != nil {
		return nil, r.err
	}

	for r.scanner.Scan() {
		token := r.scanner.Bytes()

		if r.dest != nil {
			if _, err := r.dest.Write(token); err != nil {
				r.err = &TransportError{Err: err}
				return nil, r.err
			}
		}

		raw := string(trimEOL(token))

		// A blank line dispatches the current frame.
		if raw == "" {
			if !r.hasData {
				// Leading blank lines or keep-alive newlines.
				continue
			}

			frame := r.current
			r.reset()

			if frame.IsOpen() {
				continue
			}
			return frame, nil
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(raw, ":") {
			continue
		}

		r.parseLine(raw)
	}

	if err := r.scanner.Err(); err != nil {
		r.err = &TransportError{Err: err}
		return nil, r.err
	}

	r.reset()
	r.err = io.EOF
	return nil, io.EOF
}

// parseLine processes a single non-empty, non-comment SSE line and
// accumulates the field into the current frame.
//
// A line has the form "field:value" where the first space after the colon
// is optional and stripped if present.
func (r *Reader) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		// No colon: the entire line is the field name with an empty value.
		field = line
	}

	switch field {
	case "data":
		if r.dataSeen {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataSeen = true
		r.hasData = true
	case "event":
		r.current.Event = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

// reset clears the accumulated frame state for the next frame.
func (r *Reader) reset() {
	r.current = &Frame{}
	r.hasData = false
	r.dataSeen = false
}

// scanLines is bufio.ScanLines for the three SSE line terminators. Tokens
// keep their terminator. A CR at the end of the buffered data waits for
// more input, since an LF may follow it.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		switch {
		case data[i] == '\n':
			return i + 1, data[:i+1], nil
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i+2], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i+1], nil
		}
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// trimEOL removes one line terminator from the end of line.
func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
