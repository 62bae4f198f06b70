// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/claudekit/pkg/utils"
)

type versionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the claudekit version",
		Long:  "Print the version, commit, build time and Go runtime of this claudekit binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.short {
				fmt.Fprintln(cmd.OutOrStdout(), utils.Version)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), utils.VersionInfo())
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version number")

	return cmd
}
