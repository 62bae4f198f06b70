package stream

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/claudekit/pkg/sse"
)

// TransportError reports a failure of the response body mid-stream.
type TransportError = sse.TransportError

var (
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("stream closed")

	// ErrEmptyPayload is returned when an error frame carries no data.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrMissingField is returned when a payload lacks a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrNegativeIndex is returned for a content block index below zero.
	ErrNegativeIndex = errors.New("negative content block index")

	// ErrUnknownEventType is returned for a payload "type" this package does
	// not model.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnknownDeltaType is returned for a delta "type" this package does
	// not model.
	ErrUnknownDeltaType = errors.New("unknown delta type")
)

// DecodeError reports a frame whose payload could not be decoded. The
// stream cannot continue past it.
type DecodeError struct {
	// Event is the SSE event name of the frame.
	Event string

	// Data is the raw payload, kept for diagnosis.
	Data string

	Err error
}

func (e *DecodeError) Error() string {
	name := e.Event
	if name == "" {
		name = "message"
	}
	return fmt.Sprintf("decoding %s event: %v", name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Accumulator errors.
var (
	// ErrUnknownBlockIndex is returned for a delta or stop on an index that
	// was never started, or that was already stopped.
	ErrUnknownBlockIndex = errors.New("unknown content block index")

	// ErrDuplicateBlockIndex is returned when an index is started twice.
	ErrDuplicateBlockIndex = errors.New("content block index already started")

	// ErrDeltaMismatch is returned when a delta does not fit its block, e.g.
	// a text_delta for a tool_use block.
	ErrDeltaMismatch = errors.New("delta does not match content block")

	// ErrOutOfOrder is returned for events outside message_start ... message_stop.
	ErrOutOfOrder = errors.New("event out of order")

	// ErrInvalidToolInput is returned when concatenated input_json_delta
	// fragments are not valid JSON.
	ErrInvalidToolInput = errors.New("invalid tool input JSON")

	// ErrIncompleteStream is returned by Response when message_stop was never seen.
	ErrIncompleteStream = errors.New("stream ended before message_stop")

	// ErrStreamError wraps the StreamError of a received error event.
	ErrStreamError = errors.New("stream reported an error")
)
