package configcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	"github.com/papercomputeco/claudekit/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key of config.toml in the .claudekit/ directory grouped by
section, with defaults filled in. Keys without a value show as <not set>.

Examples:
  claudekit config list
  claudekit config list --json`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := config.NewConfiger(shared.ConfigDir(cmd))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			values, err := collectValues(cfger)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(values)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Using config file: %s\n", cfger.GetTarget())
			printSections(cmd.OutOrStdout(), values)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the values as a JSON object")

	return cmd
}

func collectValues(cfger *config.Configer) (map[string]string, error) {
	values := make(map[string]string)
	for _, key := range config.ValidConfigKeys() {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}

// printSections writes one aligned "key = value" line per key, with a blank
// line before each TOML section.
func printSections(w io.Writer, values map[string]string) {
	keys := config.ValidConfigKeys()

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	section := ""
	for _, key := range keys {
		if s, _, _ := strings.Cut(key, "."); s != section {
			section = s
			fmt.Fprintln(w)
		}

		if value := values[key]; value == "" {
			fmt.Fprintf(w, "%-*s = <not set>\n", width, key)
		} else {
			fmt.Fprintf(w, "%-*s = %q\n", width, key, value)
		}
	}
}
