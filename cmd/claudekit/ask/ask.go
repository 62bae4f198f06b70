// Package askcmder provides the ask command for one-shot questions.
package askcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/transcript"
)

const askLongDesc string = `Ask Claude a single question and print the answer.

The prompt is taken from the arguments, or read from stdin when no
arguments are given. --system takes a prompt, or @name for one of the
prebuilt prompts: @assistant, @coding, @agent, @research, @extraction.
The answer is streamed as it is generated unless --stream=false or --json
is set.

Examples:
  claudekit ask "What is a server-sent event?"
  git diff | claudekit ask --system "Review this diff"
  claudekit ask --system @coding "Why is my goroutine leaking?"
  claudekit ask --json --model claude-haiku-4-5 "Say hi"`

const askShortDesc string = "Ask a one-shot question"

type askCommander struct {
	baseURL   string
	model     string
	maxTokens uint
	system    string

	stream   bool
	json     bool
	record   bool
	thinking bool
	usage    bool

	flagKeys []string
	logger   *slog.Logger
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{
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
		Use:   "ask [prompt...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			v, err := shared.Viper(cmd, cmder.flagKeys...)
			if err != nil {
				return err
			}

			cmder.logger = shared.Logger(cmd)
			return cmder.run(cmd, v, prompt)
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

	cmd.Flags().BoolVar(&cmder.stream, "stream", true, "Stream the answer as it is generated")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVar(&cmder.record, "record", false, "Record the raw stream as a transcript")
	cmd.Flags().BoolVar(&cmder.thinking, "show-thinking", false, "Print thinking deltas while streaming")
	cmd.Flags().BoolVar(&cmder.usage, "usage", false, "Print token usage after the answer")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, v *viper.Viper, prompt string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	cl, err := shared.NewClient(cmd, v, c.logger)
	if err != nil {
		return err
	}

	req := llm.NewMessagesRequest(
		v.GetString("client.model"),
		v.GetInt("client.max_tokens"),
		llm.NewUserMessage(prompt),
	)
	system, err := shared.SystemPrompt(v)
	if err != nil {
		return err
	}
	if system != "" {
		req.System = llm.NewSystemPrompt(system)
	}

	pool, err := shared.NewEventPool(v, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			c.logger.Warn("closing turn event pool", "error", err)
		}
	}()

	var turn *shared.Turn
	if c.stream && !c.json {
		var store *transcript.Store
		if c.record {
			store, err = shared.TranscriptStore(cmd, v)
			if err != nil {
				return err
			}
		}

		turn, err = shared.StreamTurn(ctx, cl, req, out, store, c.thinking)
		if err != nil {
			return c.describe(err)
		}
		fmt.Fprintln(out)
		if turn.Meta.TranscriptID != "" {
			c.logger.Info("recorded transcript", "id", turn.Meta.TranscriptID)
		}
	} else {
		turn, err = c.send(ctx, cl, req)
		if err != nil {
			return c.describe(err)
		}
		if c.json {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(turn.Response); err != nil {
				return fmt.Errorf("encoding response: %w", err)
			}
		} else {
			fmt.Fprintln(out, turn.Response.Text())
		}
	}

	if c.usage {
		fmt.Fprintln(cmd.ErrOrStderr(), cliui.DimStyle.Render(cliui.FormatUsage(turn.Response.Usage)))
	}

	pool.Enqueue(eventstream.NewTurnCompletedEvent(
		shared.EventSource("ask", ""),
		turn.Meta,
		llm.ConversationTurn{Request: req, Response: turn.Response},
	))

	return nil
}

func (c *askCommander) send(ctx context.Context, cl *client.Client, req *llm.MessagesRequest) (*shared.Turn, error) {
	turn := &shared.Turn{}
	turn.Meta.StartedAt = time.Now().UTC()

	resp, err := cl.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	turn.Response = resp
	turn.Meta.CompletedAt = time.Now().UTC()
	return turn, nil
}

// describe logs the details of an API error before it is returned.
func (c *askCommander) describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		c.logger.Debug("api error",
			"status", apiErr.StatusCode,
			"type", apiErr.Type,
			"retry_after", apiErr.RetryAfter,
		)
	}
	return err
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(in io.Reader, args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && in != nil {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}
