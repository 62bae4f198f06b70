// Package modelscmder provides the models command listing known Claude models.
package modelscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/models"
)

const modelsLongDesc string = `List the Claude models claudekit knows about.

Without arguments every model is listed with its context window, output
limit and price. Given a model id (API, Bedrock or Vertex form) the full
record is shown.

Examples:
  claudekit models
  claudekit models claude-sonnet-4-5-20250929
  claudekit models --json`

const modelsShortDesc string = "List known Claude models"

const descriptionWidth = 36

type modelsCommander struct {
	json bool
}

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models [model-id]",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return cmder.runShow(cmd.OutOrStdout(), args[0])
			}
			return cmder.runList(cmd.OutOrStdout())
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			all := models.All()
			ids := make([]string, 0, len(all))
			for _, m := range all {
				ids = append(ids, m.ID)
			}
			return ids, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print models as JSON")

	return cmd
}

func (c *modelsCommander) runList(w io.Writer) error {
	all := models.All()
	if c.json {
		return writeJSON(w, all)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(cliui.DimStyle).
		Headers("MODEL", "ID", "CONTEXT", "MAX OUTPUT", "$/M IN", "$/M OUT", "NOTES")

	for _, m := range all {
		contextWindow := cliui.FormatCount(m.ContextWindow)
		if m.ExtendedContextWindow > 0 {
			contextWindow += " (" + cliui.FormatCount(m.ExtendedContextWindow) + ")"
		}
		t.Row(
			m.Name,
			m.ID,
			contextWindow,
			cliui.FormatCount(m.MaxOutputTokens),
			formatPrice(m.InputPrice),
			formatPrice(m.OutputPrice),
			ansi.Truncate(m.Description, descriptionWidth, "…"),
		)
	}

	fmt.Fprintln(w, t.String())
	fmt.Fprintf(w, "%s\n", cliui.DimStyle.Render(fmt.Sprintf("Default: %s", models.Default)))
	return nil
}

func (c *modelsCommander) runShow(w io.Writer, id string) error {
	m, ok := models.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown model: %q (run 'claudekit models' for the list)", id)
	}

	if c.json {
		return writeJSON(w, m)
	}

	row := func(key, value string) {
		fmt.Fprintf(w, "  %-20s %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	fmt.Fprintf(w, "\n  %s\n", cliui.HeaderStyle.Render(m.Name))
	fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(m.Description))
	row("id", m.ID)
	if m.BedrockID != "" {
		row("bedrock", m.BedrockID)
	}
	if m.VertexID != "" {
		row("vertex", m.VertexID)
	}
	row("context window", cliui.FormatCount(m.ContextWindow))
	if m.ExtendedContextWindow > 0 {
		row("extended context", cliui.FormatCount(m.ExtendedContextWindow)+" with "+models.BetaContext1M)
	}
	row("max output", cliui.FormatCount(m.MaxOutputTokens))
	row("vision", strconv.FormatBool(m.Vision))
	row("tools", strconv.FormatBool(m.Tools))
	row("caching", strconv.FormatBool(m.Caching))
	row("extended thinking", strconv.FormatBool(m.ExtendedThinking))
	row("effort", strconv.FormatBool(m.Effort))
	row("price", formatPrice(m.InputPrice)+" in / "+formatPrice(m.OutputPrice)+" out per million tokens")
	fmt.Fprintln(w)

	return nil
}

func formatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', 2, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
