// Package chatcmder provides the chat command for interactive sessions with
// Claude over the streaming Messages API.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/dotdir"
	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/models"
	"github.com/papercomputeco/claudekit/pkg/tokens"
	"github.com/papercomputeco/claudekit/pkg/transcript"
	"github.com/papercomputeco/claudekit/pkg/utils"
	"github.com/papercomputeco/claudekit/pkg/worker"
)

type chatCommander struct {
	baseURL   string
	model     string
	maxTokens uint
	system    string

	resume   bool
	record   bool
	render   bool
	thinking bool

	flagKeys []string

	logger    *slog.Logger
	configDir string
	dotdir    *dotdir.Manager
	client    *client.Client
	store     *transcript.Store
	pool      *worker.Pool
	sessionID string
}

const chatLongDesc string = `Start an interactive chat session with Claude.

Every reply is streamed as it is generated. The conversation is saved to
.claudekit/session.json after each turn; pass --resume to continue it.

Commands inside the session:
  /exit    Quit (Ctrl+D also works)
  /reset   Forget the conversation and start over
  /usage   Show token usage of the session

Examples:
  claudekit chat
  claudekit chat --model claude-opus-4-1 --system "You are a Go reviewer"
  claudekit chat --system @agent
  claudekit chat --resume --record`

const chatShortDesc string = "Interactive chat session"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		flagKeys: []string{
			config.FlagBaseURL,
			config.FlagModel,
			config.FlagMaxTokens,
			config.FlagSystem,
			config.FlagTranscriptsDir,
			config.FlagBrokers,
			config.FlagTopic,
		},
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := shared.Viper(cmd, cmder.flagKeys...)
			if err != nil {
				return err
			}

			cmder.logger = shared.Logger(cmd)
			cmder.configDir = shared.ConfigDir(cmd)
			cmder.dotdir = dotdir.NewManager()

			return cmder.run(cmd, v)
		},
	}

	var transcriptsDir, brokers, topic string
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystem, &cmder.system)
	config.AddStringFlag(cmd, config.Flags, config.FlagTranscriptsDir, &transcriptsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &topic)

	cmd.Flags().BoolVarP(&cmder.resume, "resume", "r", false, "Continue the last saved session")
	cmd.Flags().BoolVar(&cmder.record, "record", false, "Record every reply stream as a transcript")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render replies as markdown once complete")
	cmd.Flags().BoolVar(&cmder.thinking, "show-thinking", false, "Print thinking deltas while streaming")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	var err error
	c.client, err = shared.NewClient(cmd, v, c.logger)
	if err != nil {
		return err
	}

	if c.record {
		c.store, err = shared.TranscriptStore(cmd, v)
		if err != nil {
			return err
		}
	}

	c.pool, err = shared.NewEventPool(v, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.pool.Close(); err != nil {
			c.logger.Warn("closing turn event pool", "error", err)
		}
		stats := c.pool.Stats()
		c.logger.Debug("turn events",
			"published", stats.Published,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}()

	system, err := shared.SystemPrompt(v)
	if err != nil {
		return err
	}

	session := &dotdir.Session{
		Model:  v.GetString("client.model"),
		System: system,
	}
	c.sessionID = uuid.NewString()

	fmt.Fprintln(out)
	if c.resume {
		saved, err := c.dotdir.LoadSession(c.configDir)
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}
		if saved != nil {
			session.Messages = saved.Messages
			session.Usage = saved.Usage
			if !cmd.Flags().Changed(config.Flags[config.FlagSystem].Name) && saved.System != "" {
				session.System = saved.System
			}
			fmt.Fprintf(out, "  %s Resuming session %s\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages, last %s)", len(saved.Messages), saved.UpdatedAt.Format(time.DateTime))),
			)
		}
	}
	if len(session.Messages) == 0 {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(session.Model),
	)
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	maxTokens := v.GetInt("client.max_tokens")
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/exit":
			fmt.Fprintln(out)
			return scanner.Err()

		case "/reset":
			session.Messages = nil
			session.Usage = llm.Usage{}
			if err := c.dotdir.ClearSession(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue

		case "/usage":
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Usage:"), cliui.FormatUsage(session.Usage))
			if m, ok := models.Lookup(session.Model); ok {
				fmt.Fprintf(out, "  %s $%.4f\n", cliui.KeyStyle.Render("Cost:"), m.UsageCost(session.Usage))
			}
			fmt.Fprintln(out)
			continue
		}

		if strings.HasPrefix(input, "/") {
			fmt.Fprintf(out, "  %s unknown command %s\n\n", cliui.FailMark, input)
			continue
		}

		session.Messages = append(session.Messages, llm.NewUserMessage(input))

		resp, err := c.turn(ctx, out, session, maxTokens)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s %v\n\n", cliui.FailMark, err)
			// Remove the failed user message so we can retry
			session.Messages = session.Messages[:len(session.Messages)-1]
			continue
		}

		session.Messages = append(session.Messages, resp.Message())
		session.Usage = session.Usage.Add(resp.Usage)
		session.UpdatedAt = time.Now().UTC()

		if err := c.dotdir.SaveSession(session, c.configDir); err != nil {
			c.logger.Warn("saving session", "error", err)
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// turn streams the reply to the current conversation and publishes the
// completed turn.
func (c *chatCommander) turn(ctx context.Context, out io.Writer, session *dotdir.Session, maxTokens int) (*llm.MessagesResponse, error) {
	req := llm.NewMessagesRequest(session.Model, maxTokens, session.Messages...)
	if session.System != "" {
		req.System = llm.NewSystemPrompt(session.System)
	}

	c.logger.Debug("sending chat request",
		"model", req.Model,
		"message_count", len(req.Messages),
		"last", utils.Truncate(utils.OneLine(session.Messages[len(session.Messages)-1].Text()), 40),
	)

	if m, ok := models.Lookup(req.Model); ok {
		if err := tokens.FitsContext(req, m, false); err != nil {
			c.logger.Warn("conversation may not fit the context window", "error", err)
		}
	}

	fmt.Fprint(out, cliui.AssistantLabel)

	live := out
	if c.render {
		live = io.Discard
	}

	turn, err := shared.StreamTurn(ctx, c.client, req, live, c.store, c.thinking)
	if err != nil {
		return nil, err
	}

	if c.render {
		rendered, err := cliui.RenderMarkdown(turn.Response.Text(), 0)
		if err != nil {
			c.logger.Debug("rendering markdown", "error", err)
			rendered = turn.Response.Text()
		}
		fmt.Fprint(out, strings.TrimRight(rendered, "\n"))
	}

	if turn.Response.StopReason == llm.StopReasonMaxTokens {
		fmt.Fprintf(out, "\n  %s", cliui.WarnStyle.Render("reply cut off at max tokens"))
	}

	c.pool.Enqueue(eventstream.NewTurnCompletedEvent(
		shared.EventSource("chat", c.sessionID),
		turn.Meta,
		llm.ConversationTurn{Request: req, Response: turn.Response},
	))

	return turn.Response, nil
}
