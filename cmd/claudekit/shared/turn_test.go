package shared_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/retry"
	"github.com/papercomputeco/claudekit/pkg/transcript"
)

const helloStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-haiku-4-5\",\"usage\":{\"input_tokens\":3,\"output_tokens\":1}}}\n\n" +
	"event: content_block_start\n" +
	"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
	"event: content_block_delta\n" +
	"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello\"}}\n\n" +
	"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
	"event: message_delta\n" +
	"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":2}}\n\n" +
	"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

var _ = Describe("StreamTurn", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		store   *transcript.Store
		c       *client.Client
		req     *llm.MessagesRequest
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(server.Close)

		var err error
		store, err = transcript.NewStore(filepath.Join(GinkgoT().TempDir(), "transcripts"))
		Expect(err).NotTo(HaveOccurred())

		c, err = client.New(client.Config{APIKey: "sk-test", BaseURL: server.URL},
			client.WithRetry(retry.Config{MaxAttempts: 1}))
		Expect(err).NotTo(HaveOccurred())

		req = llm.NewMessagesRequest("claude-haiku-4-5", 64, llm.NewUserMessage("Hi"))
	})

	It("prints deltas and records the stream", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, helloStream)
		}

		var out bytes.Buffer
		turn, err := shared.StreamTurn(context.Background(), c, req, &out, store, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal("Hello"))
		Expect(turn.Response.Text()).To(Equal("Hello"))

		latest, err := store.Latest()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal(turn.Meta.TranscriptID))
		Expect(latest.Size).To(Equal(int64(len(helloStream))))
	})

	It("leaves no transcript when the request is rejected", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		}

		_, err := shared.StreamTurn(context.Background(), c, req, io.Discard, store, false)
		Expect(err).To(HaveOccurred())

		infos, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(BeEmpty())
	})
})
