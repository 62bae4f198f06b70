package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/papercomputeco/claudekit/pkg/llm"
)

// Accumulator folds the events of one stream into a complete
// llm.MessagesResponse. It validates event order and content block indexes,
// which the decoder itself passes through unchecked.
type Accumulator struct {
	resp    llm.MessagesResponse
	blocks  map[int]*blockState
	started bool
	stopped bool

	streamErr *StreamError
}

// blockState is one content block under construction.
type blockState struct {
	block llm.ContentBlock
	open  bool

	// buf collects text, thinking or partial_json fragments depending on the
	// block type. signature collects signature fragments of thinking blocks.
	buf       strings.Builder
	signature strings.Builder
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		blocks: make(map[int]*blockState),
	}
}

// Add applies one event. It returns an error when the event cannot follow
// the events seen so far; the accumulator is unchanged in that case.
func (a *Accumulator) Add(ev Event) error {
	switch ev := ev.(type) {
	case Ping:
		return nil

	case Error:
		streamErr := ev.Error
		a.streamErr = &streamErr
		return nil

	case MessageStart:
		if a.started {
			return fmt.Errorf("second message_start: %w", ErrOutOfOrder)
		}
		a.started = true
		a.resp = llm.MessagesResponse{
			ID:           ev.Message.ID,
			Type:         ev.Message.Type,
			Role:         ev.Message.Role,
			Model:        ev.Message.Model,
			StopReason:   ev.Message.StopReason,
			StopSequence: ev.Message.StopSequence,
			Usage:        ev.Message.Usage,
		}
		for i, b := range ev.Message.Content {
			a.blocks[i] = &blockState{block: b}
		}
		return nil
	}

	if !a.started || a.stopped {
		return fmt.Errorf("%s outside of message: %w", ev.Type(), ErrOutOfOrder)
	}

	switch ev := ev.(type) {
	case ContentBlockStart:
		if _, exists := a.blocks[ev.Index]; exists {
			return fmt.Errorf("index %d: %w", ev.Index, ErrDuplicateBlockIndex)
		}
		a.blocks[ev.Index] = &blockState{block: ev.ContentBlock, open: true}

	case ContentBlockDelta:
		bs, err := a.openBlock(ev.Index)
		if err != nil {
			return err
		}
		return bs.apply(ev.Delta)

	case ContentBlockStop:
		bs, err := a.openBlock(ev.Index)
		if err != nil {
			return err
		}
		block, err := bs.finish()
		if err != nil {
			return fmt.Errorf("index %d: %w", ev.Index, err)
		}
		bs.block = block
		bs.open = false

	case MessageDelta:
		if ev.Delta.StopReason != nil {
			a.resp.StopReason = *ev.Delta.StopReason
		}
		if ev.Delta.StopSequence != nil {
			a.resp.StopSequence = ev.Delta.StopSequence
		}
		a.mergeUsage(ev.Usage)

	case MessageStop:
		a.stopped = true
	}

	return nil
}

// mergeUsage applies the cumulative counters of a message_delta. Output
// tokens are always replaced; the other counters only when reported.
func (a *Accumulator) mergeUsage(u llm.Usage) {
	a.resp.Usage.OutputTokens = u.OutputTokens
	if u.InputTokens > 0 {
		a.resp.Usage.InputTokens = u.InputTokens
	}
	if u.CacheCreationInputTokens > 0 {
		a.resp.Usage.CacheCreationInputTokens = u.CacheCreationInputTokens
	}
	if u.CacheReadInputTokens > 0 {
		a.resp.Usage.CacheReadInputTokens = u.CacheReadInputTokens
	}
}

func (a *Accumulator) openBlock(index int) (*blockState, error) {
	bs, ok := a.blocks[index]
	if !ok || !bs.open {
		return nil, fmt.Errorf("index %d: %w", index, ErrUnknownBlockIndex)
	}
	return bs, nil
}

// Done reports whether message_stop has been applied.
func (a *Accumulator) Done() bool {
	return a.stopped
}

// Err returns the error reported by an error event, if any.
func (a *Accumulator) Err() error {
	if a.streamErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStreamError, *a.streamErr)
}

// Response returns the complete message. It fails with the stream's error
// event if one was received, and with ErrIncompleteStream if message_stop
// was never applied.
func (a *Accumulator) Response() (*llm.MessagesResponse, error) {
	if err := a.Err(); err != nil {
		return nil, err
	}
	if !a.stopped {
		return nil, ErrIncompleteStream
	}
	return a.Snapshot(), nil
}

// Snapshot returns the message as accumulated so far. Blocks still open
// contain the fragments received until now; tool input that is not yet
// complete JSON is left as received at content_block_start.
func (a *Accumulator) Snapshot() *llm.MessagesResponse {
	resp := a.resp

	indexes := make([]int, 0, len(a.blocks))
	for i := range a.blocks {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	resp.Content = make(llm.ContentBlocks, 0, len(indexes))
	for _, i := range indexes {
		bs := a.blocks[i]
		if !bs.open {
			resp.Content = append(resp.Content, bs.block)
			continue
		}

		block, err := bs.finish()
		if err != nil {
			block = bs.block
		}
		resp.Content = append(resp.Content, block)
	}

	return &resp
}

// apply appends a delta fragment to the block.
func (bs *blockState) apply(d ContentDelta) error {
	mismatch := func() error {
		return fmt.Errorf("%s for %s block: %w", d.Type(), bs.block.Type(), ErrDeltaMismatch)
	}

	switch d := d.(type) {
	case TextDelta:
		if _, ok := bs.block.(llm.TextBlock); !ok {
			return mismatch()
		}
		bs.buf.WriteString(d.Text)

	case InputJSONDelta:
		if _, ok := bs.block.(llm.ToolUseBlock); !ok {
			return mismatch()
		}
		bs.buf.WriteString(d.PartialJSON)

	case ThinkingDelta:
		if _, ok := bs.block.(llm.ThinkingBlock); !ok {
			return mismatch()
		}
		bs.buf.WriteString(d.Thinking)

	case SignatureDelta:
		if _, ok := bs.block.(llm.ThinkingBlock); !ok {
			return mismatch()
		}
		bs.signature.WriteString(d.Signature)
	}

	return nil
}

// finish returns the block with all fragments applied.
func (bs *blockState) finish() (llm.ContentBlock, error) {
	switch b := bs.block.(type) {
	case llm.TextBlock:
		b.Text += bs.buf.String()
		return b, nil

	case llm.ToolUseBlock:
		partial := bs.buf.String()
		if strings.TrimSpace(partial) != "" {
			if !json.Valid([]byte(partial)) {
				return nil, ErrInvalidToolInput
			}
			b.Input = json.RawMessage(partial)
		}
		if len(b.Input) == 0 {
			b.Input = json.RawMessage("{}")
		}
		return b, nil

	case llm.ThinkingBlock:
		b.Thinking += bs.buf.String()
		b.Signature += bs.signature.String()
		return b, nil

	default:
		return bs.block, nil
	}
}

// Collect drains s into an Accumulator and returns the complete message.
// The stream is closed on return.
func Collect(s *Stream) (*llm.MessagesResponse, error) {
	defer func() { _ = s.Close() }()

	acc := NewAccumulator()
	for {
		ev, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return acc.Response()
			}
			return nil, err
		}

		if err := acc.Add(ev); err != nil {
			return nil, err
		}

		if _, isErr := ev.(Error); isErr {
			return nil, acc.Err()
		}
	}
}
