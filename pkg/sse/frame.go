// Package sse provides a small, purpose-built SSE (Server-Sent Events)
// frame reader for streamed Messages API responses. It parses frames from a
// response body and can optionally tee the raw bytes verbatim to a second
// writer (e.g. a transcript file) while doing so.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the server-sent events section of the HTML standard:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Frame is a single parsed SSE record, delimited by a blank line in the
// byte stream.
type Frame struct {
	// Event is the event name from the "event:" field.
	// An empty string means the default "message" type for server-sent events.
	Event string

	// Data is the concatenated contents of all "data:" lines for this frame,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsOpen reports whether the frame is a bare connection-established marker.
func (f *Frame) IsOpen() bool {
	return f.Event == "open" && f.Data == ""
}
