package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/claudekit/cmd/claudekit/chat"
	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/credentials"
	"github.com/papercomputeco/claudekit/pkg/dotdir"
	"github.com/papercomputeco/claudekit/pkg/llm"
)

// replyStream is a streamed reply echoing text, reporting usage of 10 in
// and 5 out.
func replyStream(text string) string {
	quoted, _ := json.Marshal(text)
	return "event: message_start\n" +
		"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_chat\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4-5-20250929\",\"usage\":{\"input_tokens\":10,\"output_tokens\":1}}}\n\n" +
		"event: content_block_start\n" +
		"data: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
		"event: ping\ndata: {\"type\": \"ping\"}\n\n" +
		"event: content_block_delta\n" +
		"data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":" + string(quoted) + "}}\n\n" +
		"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n" +
		"event: message_delta\n" +
		"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":5}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
}

// echoAPI streams back "echo: <last user text>". Prompts equal to "fail"
// are rejected with an invalid_request_error.
type echoAPI struct {
	mu       sync.Mutex
	requests []llm.MessagesRequest
}

func (e *echoAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req llm.MessagesRequest
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &req)

	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	last := req.Messages[len(req.Messages)-1].Text()
	if last == "fail" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad prompt"}}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = io.WriteString(w, replyStream("echo: "+last))
}

func (e *echoAPI) all() []llm.MessagesRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]llm.MessagesRequest(nil), e.requests...)
}

var _ = Describe("Chat Command", func() {
	var (
		api    *echoAPI
		server *httptest.Server
		tmpDir string
		out    *bytes.Buffer
		errOut *bytes.Buffer
	)

	newCmd := func(input string, args ...string) *cobra.Command {
		cmd := chatcmder.NewChatCmd()
		cmd.PersistentFlags().Bool(shared.FlagDebug, false, "")
		cmd.PersistentFlags().String(shared.FlagConfigDir, "", "")
		cmd.PersistentFlags().String(shared.FlagAPIKey, "", "")
		cmd.SetOut(out)
		cmd.SetErr(errOut)
		cmd.SetIn(strings.NewReader(input))
		cmd.SetArgs(append([]string{
			"--config-dir", tmpDir,
			"--api-key", "sk-ant-test-key-0000",
			"--base-url", server.URL,
		}, args...))
		return cmd
	}

	savedSession := func() *dotdir.Session {
		s, err := dotdir.NewManager().LoadSession(tmpDir)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		api = &echoAPI{}
		server = httptest.NewServer(api)
		DeferCleanup(server.Close)

		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		GinkgoT().Setenv(credentials.EnvVar, "")
	})

	It("creates a command with expected properties", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))

		flag := cmd.Flags().Lookup("model")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("m"))

		Expect(cmd.Flags().Lookup("resume")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("record")).NotTo(BeNil())
	})

	It("streams replies and keeps the conversation", func() {
		Expect(newCmd("hello\nagain\n").Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("echo: hello"))
		Expect(out.String()).To(ContainSubstring("echo: again"))

		requests := api.all()
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(3))
		Expect(requests[1].Messages[1].Role).To(Equal(llm.RoleAssistant))
		Expect(requests[1].Messages[1].Text()).To(Equal("echo: hello"))
	})

	It("expands a prebuilt system prompt for every turn", func() {
		Expect(newCmd("hello\nagain\n", "--system", "@agent").Execute()).To(Succeed())

		agent, ok := llm.LookupPrompt("agent")
		Expect(ok).To(BeTrue())
		for _, req := range api.all() {
			Expect(req.System.String()).To(Equal(agent))
		}
		Expect(savedSession().System).To(Equal(agent))
	})

	It("skips blank lines and stops at /exit", func() {
		Expect(newCmd("\n   \nhello\n/exit\nignored\n").Execute()).To(Succeed())
		Expect(api.all()).To(HaveLen(1))
	})

	It("reports session usage", func() {
		Expect(newCmd("one\ntwo\n/usage\n").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("in 20 · out 10"))
	})

	It("drops a failed prompt from the conversation", func() {
		Expect(newCmd("fail\nhello\n").Execute()).To(Succeed())

		Expect(errOut.String()).To(ContainSubstring("bad prompt"))

		requests := api.all()
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(1))
		Expect(requests[1].Messages[0].Text()).To(Equal("hello"))
	})

	It("saves the session after every turn", func() {
		Expect(newCmd("hello\n").Execute()).To(Succeed())

		s := savedSession()
		Expect(s).NotTo(BeNil())
		Expect(s.Messages).To(HaveLen(2))
		Expect(s.Usage.InputTokens).To(Equal(10))
		Expect(s.UpdatedAt).NotTo(BeZero())
	})

	It("continues the saved session with --resume", func() {
		Expect(newCmd("hello\n", "--system", "Be terse").Execute()).To(Succeed())

		out.Reset()
		Expect(newCmd("again\n", "--resume").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Resuming session"))

		requests := api.all()
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(HaveLen(3))
		Expect(requests[1].System).NotTo(BeNil())
		Expect(requests[1].System.String()).To(Equal("Be terse"))
	})

	It("starts over without --resume", func() {
		Expect(newCmd("hello\n").Execute()).To(Succeed())
		Expect(newCmd("again\n").Execute()).To(Succeed())

		Expect(api.all()[1].Messages).To(HaveLen(1))
	})

	It("forgets the conversation on /reset", func() {
		Expect(newCmd("hello\n/reset\nagain\n").Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Conversation cleared"))
		Expect(api.all()[1].Messages).To(HaveLen(1))
	})

	It("rejects unknown slash commands", func() {
		Expect(newCmd("/nope\n").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("unknown command /nope"))
		Expect(api.all()).To(BeEmpty())
	})

	It("records every reply with --record", func() {
		Expect(newCmd("one\ntwo\n", "--record").Execute()).To(Succeed())

		entries, err := os.ReadDir(filepath.Join(tmpDir, dotdir.TranscriptsDir))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))

		var recorded []string
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(tmpDir, dotdir.TranscriptsDir, e.Name()))
			Expect(err).NotTo(HaveOccurred())
			recorded = append(recorded, string(data))
		}
		Expect(recorded).To(ConsistOf(replyStream("echo: one"), replyStream("echo: two")))
	})

	It("renders replies as markdown with --render", func() {
		Expect(newCmd("**bold**\n", "--render").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("echo:"))
		Expect(out.String()).To(ContainSubstring("bold"))
	})
})
