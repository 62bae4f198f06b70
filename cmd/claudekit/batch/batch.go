// Package batchcmder provides the batch command for asynchronous bulk
// requests through the Message Batches API.
package batchcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/retry"
)

const batchLongDesc string = `Submit and inspect Message Batches.

Batches are processed asynchronously at a reduced price. Results are kept
by the API for 29 days after a batch was created.

Use subcommands to manage batches:
  claudekit batch submit <file>        Submit one request per prompt line
  claudekit batch list                 List recent batches
  claudekit batch status <batch-id>    Show the state of a batch
  claudekit batch cancel <batch-id>    Stop processing a batch
  claudekit batch results <batch-id>   Print the results of an ended batch

Examples:
  claudekit batch submit --wait prompts.txt
  claudekit batch results --wait msgbatch_013Zva2CMHLNnXjNJJKqJ2EF`

const batchShortDesc string = "Submit and inspect Message Batches"

const previewWidth = 60

func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: batchShortDesc,
		Long:  batchLongDesc,
	}

	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newResultsCmd())

	return cmd
}

// batchCommander carries the flags shared by every batch subcommand.
type batchCommander struct {
	baseURL      string
	pollInterval time.Duration
	wait         bool
	json         bool

	flagKeys []string
}

func (c *batchCommander) addFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &c.baseURL)
	cmd.Flags().BoolVar(&c.json, "json", false, "Print the API response as JSON")
}

func (c *batchCommander) addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.wait, "wait", false, "Wait until the batch has ended")
	cmd.Flags().DurationVar(&c.pollInterval, "poll-interval", client.DefaultBatchPoll().InitialBackoff, "First wait between status checks, growing to a minute")
}

func (c *batchCommander) setup(cmd *cobra.Command) (context.Context, *viper.Viper, *client.Client, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := shared.Viper(cmd, append([]string{config.FlagBaseURL}, c.flagKeys...)...)
	if err != nil {
		return nil, nil, nil, err
	}

	cl, err := shared.NewClient(cmd, v, shared.Logger(cmd))
	if err != nil {
		return nil, nil, nil, err
	}

	return ctx, v, cl, nil
}

func (c *batchCommander) poll() retry.Config {
	poll := client.DefaultBatchPoll()
	poll.InitialBackoff = c.pollInterval
	poll.MaxBackoff = max(poll.MaxBackoff, c.pollInterval)
	return poll
}

func (c *batchCommander) waitFor(ctx context.Context, cmd *cobra.Command, cl *client.Client, id string) (*client.MessageBatch, error) {
	var batch *client.MessageBatch
	err := cliui.Step(cmd.ErrOrStderr(), "Waiting for "+id, func() error {
		var err error
		batch, err = cl.WaitForBatch(ctx, id, c.poll())
		return err
	})
	return batch, err
}

func newSubmitCmd() *cobra.Command {
	cmder := &batchCommander{
		flagKeys: []string{config.FlagModel, config.FlagMaxTokens, config.FlagSystem},
	}
	var (
		model     string
		maxTokens uint
		system    string
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit one request per prompt line",
		Long: `Submit a batch with one request per non-empty line of file, or of
stdin when file is "-". Requests get the custom ids line-1, line-2 and so
on, numbered by their line in the input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, v, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening prompts: %w", err)
				}
				defer f.Close()
				in = f
			}

			requests, err := readPrompts(in, v)
			if err != nil {
				return err
			}

			batch, err := cl.CreateBatch(ctx, requests)
			if err != nil {
				return err
			}
			if cmder.wait {
				if batch, err = cmder.waitFor(ctx, cmd, cl, batch.ID); err != nil {
					return err
				}
			}

			return cmder.printBatch(cmd.OutOrStdout(), batch)
		},
	}

	cmder.addFlags(cmd)
	cmder.addWaitFlags(cmd)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxTokens, &maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystem, &system)

	return cmd
}

// readPrompts builds one request per non-empty line of r, using the model,
// max tokens and system prompt configured in v.
func readPrompts(r io.Reader, v *viper.Viper) ([]client.BatchRequest, error) {
	system, err := shared.SystemPrompt(v)
	if err != nil {
		return nil, err
	}

	var requests []client.BatchRequest

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}

		req := llm.NewMessagesRequest(
			v.GetString("client.model"),
			v.GetInt("client.max_tokens"),
			llm.NewUserMessage(prompt),
		)
		if system != "" {
			req.System = llm.NewSystemPrompt(system)
		}

		requests = append(requests, client.BatchRequest{
			CustomID: "line-" + strconv.Itoa(n),
			Params:   req,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}

	return requests, nil
}

func newListCmd() *cobra.Command {
	cmder := &batchCommander{}
	var opts client.ListBatchesOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, _, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			page, err := cl.ListBatches(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cmder.json {
				return writeJSON(out, page)
			}
			if len(page.Data) == 0 {
				fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No batches."))
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(cliui.DimStyle).
				Headers("ID", "STATUS", "SUCCEEDED", "ERRORED", "PROCESSING", "CREATED")
			for _, b := range page.Data {
				t.Row(
					b.ID,
					b.ProcessingStatus,
					strconv.Itoa(b.RequestCounts.Succeeded),
					strconv.Itoa(b.RequestCounts.Errored),
					strconv.Itoa(b.RequestCounts.Processing),
					b.CreatedAt.Local().Format(time.DateTime),
				)
			}
			fmt.Fprintln(out, t.String())
			if page.HasMore {
				fmt.Fprintf(out, "%s\n", cliui.DimStyle.Render("More with --after "+page.LastID))
			}
			return nil
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of batches to list")
	cmd.Flags().StringVar(&opts.AfterID, "after", "", "List batches older than this batch id")
	cmd.Flags().StringVar(&opts.BeforeID, "before", "", "List batches newer than this batch id")

	return cmd
}

func newStatusCmd() *cobra.Command {
	cmder := &batchCommander{}

	cmd := &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show the state of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			var batch *client.MessageBatch
			if cmder.wait {
				batch, err = cmder.waitFor(ctx, cmd, cl, args[0])
			} else {
				batch, err = cl.GetBatch(ctx, args[0])
			}
			if err != nil {
				return err
			}

			return cmder.printBatch(cmd.OutOrStdout(), batch)
		},
	}

	cmder.addFlags(cmd)
	cmder.addWaitFlags(cmd)

	return cmd
}

func newCancelCmd() *cobra.Command {
	cmder := &batchCommander{}

	cmd := &cobra.Command{
		Use:   "cancel <batch-id>",
		Short: "Stop processing a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			batch, err := cl.CancelBatch(ctx, args[0])
			if err != nil {
				return err
			}

			return cmder.printBatch(cmd.OutOrStdout(), batch)
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

func newResultsCmd() *cobra.Command {
	cmder := &batchCommander{}

	cmd := &cobra.Command{
		Use:   "results <batch-id>",
		Short: "Print the results of an ended batch",
		Long: `Print the result of every request in an ended batch, ordered by
custom id. With --json the results file is printed as JSONL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			if cmder.wait {
				if _, err := cmder.waitFor(ctx, cmd, cl, args[0]); err != nil {
					return err
				}
			}

			results, err := cl.BatchResults(ctx, args[0])
			if err != nil {
				return err
			}
			defer results.Close()

			return cmder.printResults(cmd.OutOrStdout(), results)
		},
	}

	cmder.addFlags(cmd)
	cmder.addWaitFlags(cmd)

	return cmd
}

func (c *batchCommander) printBatch(w io.Writer, b *client.MessageBatch) error {
	if c.json {
		return writeJSON(w, b)
	}

	row := func(key, value string) {
		fmt.Fprintf(w, "  %-12s %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.HeaderStyle.Render(b.ID), cliui.DimStyle.Render(b.ProcessingStatus))
	counts := b.RequestCounts
	row("processing", strconv.Itoa(counts.Processing))
	row("succeeded", strconv.Itoa(counts.Succeeded))
	row("errored", strconv.Itoa(counts.Errored))
	row("canceled", strconv.Itoa(counts.Canceled))
	row("expired", strconv.Itoa(counts.Expired))
	row("created", b.CreatedAt.Local().Format(time.DateTime))
	if b.EndedAt != nil {
		row("ended", b.EndedAt.Local().Format(time.DateTime))
	} else {
		row("expires", b.ExpiresAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w)

	return nil
}

func (c *batchCommander) printResults(w io.Writer, results *client.BatchResults) error {
	all, err := results.All()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if c.json {
		enc := json.NewEncoder(w)
		for _, id := range ids {
			if err := enc.Encode(all[id]); err != nil {
				return err
			}
		}
		return nil
	}

	var failed int
	for _, id := range ids {
		res := all[id].Result
		switch res.Type {
		case client.ResultSucceeded:
			var text string
			if res.Message != nil {
				text = strings.ReplaceAll(res.Message.Text(), "\n", " ")
			}
			fmt.Fprintf(w, "  %s %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id), ansi.Truncate(text, previewWidth, "…"))
		case client.ResultErrored:
			failed++
			msg := "unknown error"
			if res.Error != nil {
				msg = res.Error.Type + ": " + res.Error.Message
			}
			fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, cliui.NameStyle.Render(id), cliui.WarnStyle.Render(msg))
		default:
			failed++
			fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, cliui.NameStyle.Render(id), cliui.DimStyle.Render(res.Type))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests did not succeed", failed, len(ids))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
