// Package filescmder provides the files command for the Files API.
package filescmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/config"
)

const filesLongDesc string = `Upload and manage files for use in requests.

Uploaded files are referenced from document and image blocks by their id,
so large inputs are sent once.

Use subcommands to manage files:
  claudekit files upload <path>...          Upload files
  claudekit files list                      List uploaded files
  claudekit files delete <file-id>...       Delete files
  claudekit files download <file-id> <out>  Save a downloadable file

Examples:
  claudekit files upload report.pdf
  claudekit files download file_011CNha8iCJcU1wXNR6q4V8w chart.png`

const filesShortDesc string = "Upload and manage files"

func NewFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: filesShortDesc,
		Long:  filesLongDesc,
	}

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newDownloadCmd())

	return cmd
}

type filesCommander struct {
	baseURL string
	json    bool
}

func (c *filesCommander) addFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &c.baseURL)
	cmd.Flags().BoolVar(&c.json, "json", false, "Print the API response as JSON")
}

func (c *filesCommander) setup(cmd *cobra.Command) (context.Context, *client.Client, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := shared.Viper(cmd, config.FlagBaseURL)
	if err != nil {
		return nil, nil, err
	}

	cl, err := shared.NewClient(cmd, v, shared.Logger(cmd))
	if err != nil {
		return nil, nil, err
	}

	return ctx, cl, nil
}

func newUploadCmd() *cobra.Command {
	cmder := &filesCommander{}

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var uploaded []*client.File
			for _, path := range args {
				file, err := uploadPath(ctx, cl, path)
				if err != nil {
					return err
				}
				uploaded = append(uploaded, file)
				if !cmder.json {
					fmt.Fprintf(out, "  %s %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(file.ID), cliui.DimStyle.Render(file.Filename))
				}
			}

			if cmder.json {
				return writeJSON(out, uploaded)
			}
			return nil
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

func uploadPath(ctx context.Context, cl *client.Client, path string) (*client.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return cl.UploadFile(ctx, path, f)
}

func newListCmd() *cobra.Command {
	cmder := &filesCommander{}
	var opts client.ListFilesOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			page, err := cl.ListFiles(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cmder.json {
				return writeJSON(out, page)
			}
			if len(page.Data) == 0 {
				fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No files."))
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(cliui.DimStyle).
				Headers("ID", "NAME", "TYPE", "SIZE", "CREATED")
			for _, f := range page.Data {
				t.Row(
					f.ID,
					f.Filename,
					f.MimeType,
					cliui.FormatCount(int(f.SizeBytes)),
					f.CreatedAt.Local().Format(time.DateTime),
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
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Number of files to list")
	cmd.Flags().StringVar(&opts.AfterID, "after", "", "List files older than this file id")
	cmd.Flags().StringVar(&opts.BeforeID, "before", "", "List files newer than this file id")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmder := &filesCommander{}

	cmd := &cobra.Command{
		Use:   "delete <file-id>...",
		Short: "Delete files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := cl.DeleteFile(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Deleted %s\n", cliui.SuccessMark, id)
			}
			return nil
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmder := &filesCommander{}

	cmd := &cobra.Command{
		Use:   "download <file-id> <out>",
		Short: "Save a downloadable file",
		Long: `Save the content of a file to out, or to stdout when out is "-".
Only files created by tools can be downloaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cl, err := cmder.setup(cmd)
			if err != nil {
				return err
			}

			body, err := cl.DownloadFile(ctx, args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			if args[1] == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), body)
				return err
			}

			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[1], err)
			}
			n, err := io.Copy(f, body)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("writing %s: %w", args[1], err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "  %s Saved %s (%s bytes)\n", cliui.SuccessMark, args[1], strconv.FormatInt(n, 10))
			return nil
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
