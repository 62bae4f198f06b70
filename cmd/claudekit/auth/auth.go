// Package authcmder provides the auth command for storing the API key.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/cliui"
	"github.com/papercomputeco/claudekit/pkg/credentials"
)

const authLongDesc string = `Store the Anthropic API key.

The key is stored in credentials.toml in the .claudekit/ directory with
0600 permissions. Commands resolve the key from --api-key first, then
` + credentials.EnvVar + `, then the stored credentials.

Examples:
  claudekit auth                  Prompt for the API key
  echo $KEY | claudekit auth      Pipe the API key from stdin
  claudekit auth --status         Show which key would be used
  claudekit auth --remove         Remove the stored key`

const authShortDesc string = "Store the Anthropic API key"

type authCommander struct {
	status bool
	remove bool

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			mgr, err := credentials.NewManager(shared.ConfigDir(cmd))
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			switch {
			case cmder.status:
				flagKey, _ := cmd.Flags().GetString(shared.FlagAPIKey)
				return cmder.runStatus(mgr, flagKey)
			case cmder.remove:
				return cmder.runRemove(mgr)
			default:
				return cmder.runAuth(mgr)
			}
		},
	}

	cmd.Flags().BoolVar(&cmder.status, "status", false, "Show where the API key is resolved from")
	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored API key")
	cmd.MarkFlagsMutuallyExclusive("status", "remove")

	return cmd
}

func (c *authCommander) runAuth(mgr *credentials.Manager) error {
	apiKey, err := c.readAPIKey()
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if err := mgr.SetKey(apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored API key %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(credentials.Mask(apiKey)),
		cliui.DimStyle.Render("("+mgr.GetTarget()+")"),
	)

	if !strings.HasPrefix(apiKey, "sk-ant-") {
		fmt.Fprintf(c.out, "  %s Anthropic API keys usually start with sk-ant-.\n",
			cliui.WarnStyle.Render("!"))
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *authCommander) runStatus(mgr *credentials.Manager, flagKey string) error {
	key, src, err := mgr.Resolve(flagKey)
	if errors.Is(err, credentials.ErrNoAPIKey) {
		fmt.Fprintf(c.out, "\n  %s No API key configured.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'claudekit auth' or set %s.\n\n", credentials.EnvVar)
		return nil
	}
	if err != nil {
		return err
	}

	var from string
	switch src {
	case credentials.SourceFlag:
		from = "--api-key flag"
	case credentials.SourceEnv:
		from = credentials.EnvVar
	case credentials.SourceFile:
		from = mgr.GetTarget()
	}

	fmt.Fprintf(c.out, "\n  %s %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(credentials.Mask(key)),
		cliui.DimStyle.Render("from "+from),
	)
	return nil
}

func (c *authCommander) runRemove(mgr *credentials.Manager) error {
	if err := mgr.RemoveKey(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed stored API key.\n\n", cliui.SuccessMark)
	return nil
}

// readAPIKey reads an API key from the command input. A terminal is
// prompted with hidden input; anything else is read up to the first line.
func (c *authCommander) readAPIKey() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter Anthropic API key (%s): ", credentials.EnvVar)

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
