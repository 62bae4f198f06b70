package stream_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/stream"
)

var _ = Describe("Stream", func() {
	Describe("Next", func() {
		It("decodes a complete transcript in order", func() {
			events, err := drain(stream.New(newCountingBody(toolUseTranscript)))
			Expect(err).NotTo(HaveOccurred())

			types := make([]string, 0, len(events))
			for _, ev := range events {
				types = append(types, ev.Type())
			}
			Expect(types).To(Equal([]string{
				stream.TypeMessageStart,
				stream.TypeContentBlockStart,
				stream.TypeContentBlockDelta,
				stream.TypeContentBlockDelta,
				stream.TypeContentBlockStop,
				stream.TypeContentBlockStart,
				stream.TypeContentBlockDelta,
				stream.TypeContentBlockDelta,
				stream.TypeContentBlockDelta,
				stream.TypeContentBlockStop,
				stream.TypeMessageDelta,
				stream.TypeMessageStop,
			}))
		})

		It("yields the same events however the body is chunked", func() {
			want, err := drain(stream.New(newCountingBody(toolUseTranscript)))
			Expect(err).NotTo(HaveOccurred())

			for i := 1; i < len(toolUseTranscript); i++ {
				got, err := drain(stream.New(splitAt(toolUseTranscript, i)))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want), "split at %d", i)
			}

			got, err := drain(stream.New(io.NopCloser(iotest.OneByteReader(strings.NewReader(toolUseTranscript)))))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})

		It("never yields pings", func() {
			events, err := drain(stream.New(newCountingBody(toolUseTranscript)))
			Expect(err).NotTo(HaveOccurred())
			for _, ev := range events {
				Expect(ev).NotTo(BeAssignableToTypeOf(stream.Ping{}))
			}
		})

		It("skips frames without payload", func() {
			body := "event: content_block_delta\n\n" +
				"event: message\ndata:\n\n" +
				"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n"

			events, err := drain(stream.New(newCountingBody(body)))
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]stream.Event{stream.ContentBlockStop{Index: 0}}))
		})

		It("yields one error event for an error frame", func() {
			body := "event: error\ndata: {\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}\n\n"

			events, err := drain(stream.New(newCountingBody(body)))
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]stream.Event{
				stream.Error{Error: stream.StreamError{Type: "overloaded_error", Message: "Overloaded"}},
			}))
		})

		It("yields message_stop split across chunks", func() {
			events, err := drain(stream.New(&chunkedBody{pieces: []string{"event: message_sto", "p\n", "\n"}}))
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]stream.Event{stream.MessageStop{}}))
		})

		It("yields a text delta", func() {
			body := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n"

			events, err := drain(stream.New(newCountingBody(body)))
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]stream.Event{
				stream.ContentBlockDelta{Index: 0, Delta: stream.TextDelta{Text: "Hi"}},
			}))
		})

		It("fails permanently on a malformed payload", func() {
			body := "event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
				"event: content_block_delta\ndata: {\"type\":\n\n" +
				"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
			b := newCountingBody(body)
			s := stream.New(b)

			ev, err := s.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(stream.ContentBlockStop{Index: 0}))

			_, err = s.Next()
			var derr *stream.DecodeError
			Expect(errors.As(err, &derr)).To(BeTrue())
			Expect(derr.Event).To(Equal("content_block_delta"))

			_, again := s.Next()
			Expect(again).To(BeIdenticalTo(err))
			Expect(s.Err()).To(BeIdenticalTo(err))
			Expect(b.closes.Load()).To(Equal(int32(1)))
		})

		It("reports transport failures", func() {
			boom := errors.New("connection reset")
			body := io.NopCloser(io.MultiReader(
				strings.NewReader("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"),
				iotest.ErrReader(boom),
			))
			s := stream.New(body)

			ev, err := s.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(stream.MessageStop{}))

			_, err = s.Next()
			var terr *stream.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(errors.Is(err, boom)).To(BeTrue())
		})

		It("returns io.EOF after the last event and closes the body", func() {
			b := newCountingBody(toolUseTranscript)
			s := stream.New(b)

			_, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.closes.Load()).To(Equal(int32(1)))

			_, err = s.Next()
			Expect(err).To(MatchError(io.EOF))
			Expect(s.Err()).NotTo(HaveOccurred())
		})
	})

	Describe("Close", func() {
		It("closes the body exactly once", func() {
			b := newCountingBody(toolUseTranscript)
			s := stream.New(b)

			_, err := s.Next()
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Close()).To(Succeed())
			Expect(s.Close()).To(Succeed())
			Expect(b.closes.Load()).To(Equal(int32(1)))
		})

		It("makes Next return ErrClosed", func() {
			s := stream.New(newCountingBody(toolUseTranscript))
			Expect(s.Close()).To(Succeed())

			_, err := s.Next()
			Expect(err).To(MatchError(stream.ErrClosed))
		})

		It("does not close again after the stream ended", func() {
			b := newCountingBody(toolUseTranscript)
			s := stream.New(b)

			_, err := drain(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())
			Expect(b.closes.Load()).To(Equal(int32(1)))
		})
	})

	Describe("All", func() {
		It("iterates every event", func() {
			var n int
			for ev, err := range stream.New(newCountingBody(toolUseTranscript)).All() {
				Expect(err).NotTo(HaveOccurred())
				Expect(ev).NotTo(BeNil())
				n++
			}
			Expect(n).To(Equal(12))
		})

		It("closes the body when the loop breaks early", func() {
			b := newCountingBody(toolUseTranscript)
			s := stream.New(b)

			for ev := range s.All() {
				if ev.Type() == stream.TypeContentBlockDelta {
					break
				}
			}

			Expect(b.closes.Load()).To(Equal(int32(1)))
			Expect(s.Close()).To(Succeed())
			Expect(b.closes.Load()).To(Equal(int32(1)))
		})

		It("yields the terminal error once", func() {
			body := "event: message_start\ndata: not json\n\n"

			var errs []error
			for _, err := range stream.New(newCountingBody(body)).All() {
				if err != nil {
					errs = append(errs, err)
				}
			}
			Expect(errs).To(HaveLen(1))
		})
	})

	Describe("options", func() {
		It("passes pings through with keepalives enabled", func() {
			events, err := drain(stream.New(newCountingBody(toolUseTranscript), stream.WithKeepalives(true)))
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(13))
			Expect(events[2]).To(Equal(stream.Ping{}))
		})

		It("calls the hook for every event including pings", func() {
			var seen []string
			hook := stream.WithEventHook(func(ev stream.Event) {
				seen = append(seen, ev.Type())
			})

			events, err := drain(stream.New(newCountingBody(toolUseTranscript), hook))
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(HaveLen(len(events) + 1))
			Expect(seen).To(ContainElement(stream.TypePing))
		})

		It("records the raw body", func() {
			var rec bytes.Buffer
			_, err := drain(stream.New(newCountingBody(toolUseTranscript), stream.WithRecorder(&rec)))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.String()).To(Equal(toolUseTranscript))
		})

		It("bounds the line size", func() {
			body := "data: {\"type\":\"message_stop\",\"pad\":\"" + strings.Repeat("x", 256) + "\"}\n\n"
			_, err := drain(stream.New(newCountingBody(body), stream.WithMaxLineSize(64)))

			var terr *stream.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
		})
	})

	Describe("Collect", func() {
		It("assembles the transcript into a response", func() {
			resp, err := stream.Collect(stream.New(newCountingBody(toolUseTranscript)))
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.ID).To(Equal("msg_01"))
			Expect(resp.StopReason).To(Equal(llm.StopReasonToolUse))
			Expect(resp.Usage.InputTokens).To(Equal(472))
			Expect(resp.Usage.OutputTokens).To(Equal(89))
			Expect(resp.Text()).To(Equal("Okay, let me check the weather."))

			tools := resp.ToolUses()
			Expect(tools).To(HaveLen(1))
			Expect(tools[0].Name).To(Equal("get_weather"))
			Expect(tools[0].Input).To(MatchJSON(`{"location":"San Francisco, CA"}`))
		})

		It("returns the error of an error event", func() {
			body := "event: message_start\n" +
				"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_02\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"m\",\"usage\":{\"input_tokens\":1,\"output_tokens\":0}}}\n\n" +
				"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"

			_, err := stream.Collect(stream.New(newCountingBody(body)))
			Expect(errors.Is(err, stream.ErrStreamError)).To(BeTrue())

			var serr stream.StreamError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Type).To(Equal("overloaded_error"))
		})

		It("reports a truncated stream", func() {
			cut := strings.Index(toolUseTranscript, "event: message_delta")
			_, err := stream.Collect(stream.New(newCountingBody(toolUseTranscript[:cut])))
			Expect(err).To(MatchError(stream.ErrIncompleteStream))
		})
	})
})
