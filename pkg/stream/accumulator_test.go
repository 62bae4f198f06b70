package stream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/stream"
)

var _ = Describe("Accumulator", func() {
	var acc *stream.Accumulator

	start := stream.MessageStart{Message: stream.MessageMetadata{
		ID:    "msg_1",
		Type:  "message",
		Role:  llm.RoleAssistant,
		Model: "claude-haiku-4-5-20251001",
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 1, CacheReadInputTokens: 4},
	}}

	BeforeEach(func() {
		acc = stream.NewAccumulator()
	})

	apply := func(events ...stream.Event) {
		for _, ev := range events {
			ExpectWithOffset(1, acc.Add(ev)).To(Succeed())
		}
	}

	It("builds text blocks from deltas", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: "Hello"}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: ", world"}},
			stream.ContentBlockStop{Index: 0},
			stream.MessageStop{},
		)

		resp, err := acc.Response()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content).To(Equal(llm.ContentBlocks{llm.TextBlock{Text: "Hello, world"}}))
		Expect(acc.Done()).To(BeTrue())
	})

	It("builds thinking blocks with their signature", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.ThinkingBlock{}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.ThinkingDelta{Thinking: "Let me "}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.ThinkingDelta{Thinking: "think."}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.SignatureDelta{Signature: "EqQB"}},
			stream.ContentBlockStop{Index: 0},
			stream.MessageStop{},
		)

		resp, err := acc.Response()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content[0]).To(Equal(llm.ThinkingBlock{Thinking: "Let me think.", Signature: "EqQB"}))
	})

	It("parses tool input from JSON fragments", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.ToolUseBlock{ID: "toolu_1", Name: "calc", Input: json.RawMessage(`{}`)}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.InputJSONDelta{PartialJSON: `{"expr":`}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.InputJSONDelta{PartialJSON: ` "1+1"}`}},
			stream.ContentBlockStop{Index: 0},
		)

		snap := acc.Snapshot()
		tool, ok := snap.Content[0].(llm.ToolUseBlock)
		Expect(ok).To(BeTrue())
		Expect(tool.Input).To(MatchJSON(`{"expr":"1+1"}`))
	})

	It("defaults tool input to an empty object", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.ToolUseBlock{ID: "toolu_1", Name: "now"}},
			stream.ContentBlockStop{Index: 0},
		)

		tool := acc.Snapshot().Content[0].(llm.ToolUseBlock)
		Expect(string(tool.Input)).To(Equal("{}"))
	})

	It("rejects invalid tool input", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.ToolUseBlock{ID: "toolu_1", Name: "calc"}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.InputJSONDelta{PartialJSON: `{"expr":`}},
		)

		Expect(acc.Add(stream.ContentBlockStop{Index: 0})).To(MatchError(stream.ErrInvalidToolInput))
	})

	It("orders blocks by index", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 1, ContentBlock: llm.TextBlock{Text: "second"}},
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{Text: "first"}},
			stream.ContentBlockStop{Index: 1},
			stream.ContentBlockStop{Index: 0},
			stream.MessageStop{},
		)

		resp, err := acc.Response()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text()).To(Equal("firstsecond"))
	})

	It("applies message_delta stop reason and usage", func() {
		reason := llm.StopReasonStopSequence
		seq := "###"
		apply(
			start,
			stream.MessageDelta{
				Delta: stream.MessageDeltaBody{StopReason: &reason, StopSequence: &seq},
				Usage: llm.Usage{OutputTokens: 42},
			},
			stream.MessageStop{},
		)

		resp, err := acc.Response()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StopReason).To(Equal(llm.StopReasonStopSequence))
		Expect(*resp.StopSequence).To(Equal("###"))
		Expect(resp.Usage).To(Equal(llm.Usage{InputTokens: 10, OutputTokens: 42, CacheReadInputTokens: 4}))
	})

	Context("with invalid event order", func() {
		It("rejects events before message_start", func() {
			Expect(acc.Add(stream.ContentBlockStop{Index: 0})).To(MatchError(stream.ErrOutOfOrder))
		})

		It("rejects a second message_start", func() {
			apply(start)
			Expect(acc.Add(start)).To(MatchError(stream.ErrOutOfOrder))
		})

		It("rejects events after message_stop", func() {
			apply(start, stream.MessageStop{})
			Expect(acc.Add(stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}})).To(MatchError(stream.ErrOutOfOrder))
		})

		It("rejects deltas for unknown indexes", func() {
			apply(start)
			err := acc.Add(stream.ContentBlockDelta{Index: 3, Delta: stream.TextDelta{Text: "x"}})
			Expect(err).To(MatchError(stream.ErrUnknownBlockIndex))
		})

		It("rejects deltas after the block stopped", func() {
			apply(
				start,
				stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}},
				stream.ContentBlockStop{Index: 0},
			)
			err := acc.Add(stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: "late"}})
			Expect(err).To(MatchError(stream.ErrUnknownBlockIndex))
		})

		It("rejects duplicate indexes", func() {
			apply(start, stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}})
			err := acc.Add(stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}})
			Expect(err).To(MatchError(stream.ErrDuplicateBlockIndex))
		})

		It("rejects deltas that do not fit the block", func() {
			apply(start, stream.ContentBlockStart{Index: 0, ContentBlock: llm.ToolUseBlock{ID: "t", Name: "n"}})
			err := acc.Add(stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: "x"}})
			Expect(err).To(MatchError(stream.ErrDeltaMismatch))
		})
	})

	It("reports an incomplete stream", func() {
		apply(start, stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}})

		_, err := acc.Response()
		Expect(err).To(MatchError(stream.ErrIncompleteStream))
		Expect(acc.Done()).To(BeFalse())
	})

	It("includes open blocks in snapshots", func() {
		apply(
			start,
			stream.ContentBlockStart{Index: 0, ContentBlock: llm.TextBlock{}},
			stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: "partial"}},
		)

		Expect(acc.Snapshot().Text()).To(Equal("partial"))
		Expect(acc.Snapshot().Text()).To(Equal("partial"))
	})

	It("surfaces error events", func() {
		apply(start, stream.Error{Error: stream.StreamError{Type: "overloaded_error", Message: "Overloaded"}})

		Expect(acc.Err()).To(MatchError(stream.ErrStreamError))
		_, err := acc.Response()
		Expect(err).To(MatchError(ContainSubstring("Overloaded")))
	})

	It("ignores pings", func() {
		Expect(acc.Add(stream.Ping{})).To(Succeed())
	})
})
