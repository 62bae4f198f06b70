// Package stream decodes streamed Messages API responses into typed events.
//
// A Stream pulls SSE frames from a response body (see pkg/sse), decodes each
// frame into an Event and hands events to the caller one at a time in wire
// order:
//
//	s := stream.New(resp.Body)
//	defer s.Close()
//	for ev, err := range s.All() {
//		if err != nil {
//			return err
//		}
//		switch ev := ev.(type) {
//		case stream.ContentBlockDelta:
//			if d, ok := ev.Delta.(stream.TextDelta); ok {
//				fmt.Print(d.Text)
//			}
//		case stream.Error:
//			return ev.Error
//		}
//	}
//
// Accumulator folds the events of one stream into a complete
// llm.MessagesResponse.
package stream

import (
	"fmt"

	"github.com/papercomputeco/claudekit/pkg/llm"
)

// Event type discriminators, matching both the SSE event name and the
// payload "type" field.
const (
	TypeMessageStart      = "message_start"
	TypeContentBlockStart = "content_block_start"
	TypeContentBlockDelta = "content_block_delta"
	TypeContentBlockStop  = "content_block_stop"
	TypeMessageDelta      = "message_delta"
	TypeMessageStop       = "message_stop"
	TypePing              = "ping"
	TypeError             = "error"
)

// Event is one decoded protocol event. The set of implementations is closed:
// MessageStart, ContentBlockStart, ContentBlockDelta, ContentBlockStop,
// MessageDelta, MessageStop, Ping and Error.
type Event interface {
	// Type returns the wire discriminator of the event.
	Type() string

	isEvent()
}

// MessageMetadata describes the message being streamed, as sent in
// message_start. Content is normally empty and filled by later events.
type MessageMetadata struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         llm.Role          `json:"role"`
	Content      llm.ContentBlocks `json:"content"`
	Model        string            `json:"model"`
	StopReason   llm.StopReason    `json:"stop_reason,omitempty"`
	StopSequence *string           `json:"stop_sequence,omitempty"`
	Usage        llm.Usage         `json:"usage"`
}

// MessageStart opens the stream and carries the initial usage counters.
type MessageStart struct {
	Message MessageMetadata
}

// ContentBlockStart opens the content block at Index.
type ContentBlockStart struct {
	Index        int
	ContentBlock llm.ContentBlock
}

// ContentBlockDelta is an incremental update to the block at Index.
type ContentBlockDelta struct {
	Index int
	Delta ContentDelta
}

// ContentBlockStop closes the block at Index.
type ContentBlockStop struct {
	Index int
}

// MessageDeltaBody carries top level message changes. Both fields are only
// set by the server once they are known.
type MessageDeltaBody struct {
	StopReason   *llm.StopReason `json:"stop_reason,omitempty"`
	StopSequence *string         `json:"stop_sequence,omitempty"`
}

// MessageDelta updates the stop reason and the cumulative usage counters.
type MessageDelta struct {
	Delta MessageDeltaBody
	Usage llm.Usage
}

// MessageStop terminates a successful stream.
type MessageStop struct{}

// Ping is a keepalive with no content.
type Ping struct{}

// StreamError is the problem reported by an error event. It satisfies the
// error interface so callers can return it directly.
type StreamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e StreamError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Error reports a problem signalled by the server mid-stream, e.g.
// overloaded_error. No further events should be expected after it.
type Error struct {
	Error StreamError
}

func (MessageStart) Type() string      { return TypeMessageStart }
func (ContentBlockStart) Type() string { return TypeContentBlockStart }
func (ContentBlockDelta) Type() string { return TypeContentBlockDelta }
func (ContentBlockStop) Type() string  { return TypeContentBlockStop }
func (MessageDelta) Type() string      { return TypeMessageDelta }
func (MessageStop) Type() string       { return TypeMessageStop }
func (Ping) Type() string              { return TypePing }
func (Error) Type() string             { return TypeError }

func (MessageStart) isEvent()      {}
func (ContentBlockStart) isEvent() {}
func (ContentBlockDelta) isEvent() {}
func (ContentBlockStop) isEvent()  {}
func (MessageDelta) isEvent()      {}
func (MessageStop) isEvent()       {}
func (Ping) isEvent()              {}
func (Error) isEvent()             {}
