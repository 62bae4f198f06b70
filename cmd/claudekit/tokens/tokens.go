// Package tokenscmder provides the tokens command, sizing a prompt against
// a model's context window.
package tokenscmder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/models"
	"github.com/papercomputeco/claudekit/pkg/tokens"
)

const tokensLongDesc string = `Estimate how many input tokens a prompt uses.

The estimate is computed locally. With --exact the count_tokens endpoint is
asked instead, which needs an API key but costs nothing.

Examples:
  claudekit tokens "How long is this?"
  cat README.md | claudekit tokens --exact`

const tokensShortDesc string = "Count the input tokens of a prompt"

type tokensCommander struct {
	baseURL   string
	model     string
	maxTokens uint
	system    string

	exact    bool
	extended bool
}

func NewTokensCmd() *cobra.Command {
	cmder := &tokensCommander{}

	cmd := &cobra.Command{
		Use:   "tokens [prompt...]",
		Short: tokensShortDesc,
		Long:  tokensLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading prompt: %w", err)
				}
				prompt = strings.TrimSpace(string(data))
			}
			if prompt == "" {
				return fmt.Errorf("a prompt is required")
			}

			v, err := shared.Viper(cmd, config.FlagBaseURL, config.FlagModel, config.FlagMaxTokens, config.FlagSystem)
			if err != nil {
				return err
			}

			return cmder.run(cmd, v, prompt)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystem, &cmder.system)
	cmd.Flags().BoolVar(&cmder.exact, "exact", false, "Ask the count_tokens endpoint instead of estimating")
	cmd.Flags().BoolVar(&cmder.extended, "extended-context", false, "Check against the 1M token context window")

	return cmd
}

func (c *tokensCommander) run(cmd *cobra.Command, v *viper.Viper, prompt string) error {
	out := cmd.OutOrStdout()

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

	input := tokens.EstimateRequest(req)
	label := "estimated"

	if c.exact {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cl, err := shared.NewClient(cmd, v, shared.Logger(cmd))
		if err != nil {
			return err
		}

		counted, err := cl.CountTokens(ctx, req.CountTokensRequest())
		if err != nil {
			return err
		}
		input = counted.InputTokens
		label = "counted"
	}

	fmt.Fprintf(out, "  %s %s %s\n",
		cliui.KeyStyle.Render("Input tokens:"),
		cliui.ValueStyle.Render(cliui.FormatCount(input)),
		cliui.DimStyle.Render("("+label+")"),
	)

	m, ok := models.Lookup(req.Model)
	if !ok {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("unknown model "+req.Model+", no context check"))
		return nil
	}

	fmt.Fprintf(out, "  %s %s of %s\n",
		cliui.KeyStyle.Render("Context:"),
		cliui.FormatCount(input+req.MaxTokens),
		cliui.FormatCount(m.ContextLimit(c.extended)),
	)
	fmt.Fprintf(out, "  %s $%.4f\n",
		cliui.KeyStyle.Render("Input cost:"),
		m.EstimateCost(input, 0),
	)

	if err := m.ValidateRequest(req, c.extended); err != nil {
		return err
	}
	if c.exact {
		if total := input + req.MaxTokens; total > m.ContextLimit(c.extended) {
			return fmt.Errorf("request would use %d tokens but %s allows %d", total, m.Name, m.ContextLimit(c.extended))
		}
		return nil
	}
	return tokens.FitsContext(req, m, c.extended)
}
