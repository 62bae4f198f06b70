// Package configcmder provides the config command for managing persistent
// claudekit configuration stored in the .claudekit/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/claudekit/pkg/config"
)

const configLongDesc string = `Manage persistent claudekit configuration.

Configuration is stored as config.toml in the .claudekit/ directory and
provides default values for command flags. CLI flags and CLAUDEKIT_
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.base_url, api.version, api.beta, api.timeout,
  client.model, client.max_tokens, client.system,
  retry.max_attempts, retry.initial_backoff, retry.max_backoff,
  retry.multiplier, retry.respect_retry_after,
  replay.listen, replay.transcripts_dir,
  events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  claudekit config set <key> <value>    Set a configuration value
  claudekit config get <key>            Get a configuration value
  claudekit config list                 List all configuration values

Examples:
  claudekit config set client.model claude-haiku-4-5-20251001
  claudekit config set retry.max_attempts 5
  claudekit config get api.base_url
  claudekit config list`

const configShortDesc string = "Manage persistent claudekit configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
