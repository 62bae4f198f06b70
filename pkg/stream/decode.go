package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/sse"
)

// Wire shapes. Pointer fields distinguish absent from zero so that required
// fields can be enforced.
type (
	typeTag struct {
		Type string `json:"type"`
	}

	errorPayload struct {
		Type    string       `json:"type"`
		Message string       `json:"message"`
		Error   *StreamError `json:"error"`
	}

	messageStartPayload struct {
		Message *MessageMetadata `json:"message"`
	}

	blockStartPayload struct {
		Index        *int            `json:"index"`
		ContentBlock json.RawMessage `json:"content_block"`
	}

	blockDeltaPayload struct {
		Index *int            `json:"index"`
		Delta json.RawMessage `json:"delta"`
	}

	blockStopPayload struct {
		Index *int `json:"index"`
	}

	messageDeltaPayload struct {
		Delta *MessageDeltaBody `json:"delta"`
		Usage llm.Usage         `json:"usage"`
	}
)

// Decode interprets one frame as an Event.
//
// The frame's event name only matters for the two special names "ping" and
// "error"; every other frame is decoded by the "type" field inside its
// payload, which is authoritative even when it disagrees with the name.
// A frame with an empty payload yields ok == false and no error, except for
// message_stop, which has no payload by definition.
//
// Any payload that cannot be decoded yields a *DecodeError.
func Decode(f sse.Frame) (ev Event, ok bool, err error) {
	switch f.Event {
	case TypePing:
		return Ping{}, true, nil
	case TypeError:
		ev, err = decodeError([]byte(f.Data))
		if err != nil {
			return nil, false, &DecodeError{Event: f.Event, Data: f.Data, Err: err}
		}
		return ev, true, nil
	}

	if strings.TrimSpace(f.Data) == "" {
		if f.Event == TypeMessageStop {
			return MessageStop{}, true, nil
		}
		return nil, false, nil
	}

	ev, err = decodePayload([]byte(f.Data))
	if err != nil {
		return nil, false, &DecodeError{Event: f.Event, Data: f.Data, Err: err}
	}
	return ev, true, nil
}

// decodePayload selects the Event variant from the payload's "type" field.
func decodePayload(data []byte) (Event, error) {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case TypeMessageStart:
		var p messageStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Message == nil {
			return nil, fmt.Errorf("message: %w", ErrMissingField)
		}
		return MessageStart{Message: *p.Message}, nil

	case TypeContentBlockStart:
		var p blockStartPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		index, err := blockIndex(p.Index)
		if err != nil {
			return nil, err
		}
		if len(p.ContentBlock) == 0 {
			return nil, fmt.Errorf("content_block: %w", ErrMissingField)
		}
		block, err := llm.UnmarshalContentBlock(p.ContentBlock)
		if err != nil {
			return nil, err
		}
		return ContentBlockStart{Index: index, ContentBlock: block}, nil

	case TypeContentBlockDelta:
		var p blockDeltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		index, err := blockIndex(p.Index)
		if err != nil {
			return nil, err
		}
		if len(p.Delta) == 0 {
			return nil, fmt.Errorf("delta: %w", ErrMissingField)
		}
		delta, err := decodeDelta(p.Delta)
		if err != nil {
			return nil, err
		}
		return ContentBlockDelta{Index: index, Delta: delta}, nil

	case TypeContentBlockStop:
		var p blockStopPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		index, err := blockIndex(p.Index)
		if err != nil {
			return nil, err
		}
		return ContentBlockStop{Index: index}, nil

	case TypeMessageDelta:
		var p messageDeltaPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Delta == nil {
			return nil, fmt.Errorf("delta: %w", ErrMissingField)
		}
		return MessageDelta{Delta: *p.Delta, Usage: p.Usage}, nil

	case TypeMessageStop:
		return MessageStop{}, nil

	case TypePing:
		return Ping{}, nil

	case TypeError:
		return decodeError(data)

	case "":
		return nil, fmt.Errorf("type: %w", ErrMissingField)

	default:
		return nil, fmt.Errorf("%q: %w", tag.Type, ErrUnknownEventType)
	}
}

func blockIndex(p *int) (int, error) {
	switch {
	case p == nil:
		return 0, fmt.Errorf("index: %w", ErrMissingField)
	case *p < 0:
		return 0, fmt.Errorf("index %d: %w", *p, ErrNegativeIndex)
	}
	return *p, nil
}

// decodeError accepts both the flat {"type","message"} form and the
// {"type":"error","error":{...}} envelope.
func decodeError(data []byte) (Event, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyPayload
	}

	var p errorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	if p.Error != nil {
		if p.Error.Type == "" {
			return nil, fmt.Errorf("error.type: %w", ErrMissingField)
		}
		return Error{Error: *p.Error}, nil
	}

	if p.Type == "" {
		return nil, fmt.Errorf("type: %w", ErrMissingField)
	}
	return Error{Error: StreamError{Type: p.Type, Message: p.Message}}, nil
}

// decodeDelta selects the ContentDelta variant from the delta's "type" field.
func decodeDelta(data []byte) (ContentDelta, error) {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}

	switch tag.Type {
	case DeltaTypeText:
		return unmarshalDelta[TextDelta](data)
	case DeltaTypeInputJSON:
		return unmarshalDelta[InputJSONDelta](data)
	case DeltaTypeThinking:
		return unmarshalDelta[ThinkingDelta](data)
	case DeltaTypeSignature:
		return unmarshalDelta[SignatureDelta](data)
	case "":
		return nil, fmt.Errorf("delta type: %w", ErrMissingField)
	default:
		return nil, fmt.Errorf("%q: %w", tag.Type, ErrUnknownDeltaType)
	}
}

func unmarshalDelta[T ContentDelta](data []byte) (ContentDelta, error) {
	var d T
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%s: %w", d.Type(), err)
	}
	return d, nil
}
