// Package claudekitcmder is the root claudekit command.
package claudekitcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/claudekit/cmd/claudekit/ask"
	authcmder "github.com/papercomputeco/claudekit/cmd/claudekit/auth"
	batchcmder "github.com/papercomputeco/claudekit/cmd/claudekit/batch"
	chatcmder "github.com/papercomputeco/claudekit/cmd/claudekit/chat"
	configcmder "github.com/papercomputeco/claudekit/cmd/claudekit/config"
	filescmder "github.com/papercomputeco/claudekit/cmd/claudekit/files"
	modelscmder "github.com/papercomputeco/claudekit/cmd/claudekit/models"
	replaycmder "github.com/papercomputeco/claudekit/cmd/claudekit/replay"
	"github.com/papercomputeco/claudekit/cmd/claudekit/shared"
	tokenscmder "github.com/papercomputeco/claudekit/cmd/claudekit/tokens"
	versioncmder "github.com/papercomputeco/claudekit/cmd/version"
)

const claudekitLongDesc string = `claudekit talks to the Anthropic Messages API from the terminal.

Responses are streamed as server-sent events and decoded as they arrive.
Streams can be recorded as transcripts and replayed offline by a local
server that speaks the same API.

  claudekit chat          Interactive chat session
  claudekit ask <prompt>  One-shot question
  claudekit tokens        Size a prompt against the context window
  claudekit batch         Submit and inspect Message Batches
  claudekit files         Upload and manage files
  claudekit replay        Serve recorded transcripts
  claudekit auth          Store your API key`

const claudekitShortDesc string = "claudekit - Anthropic Messages API toolkit"

func NewClaudekitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "claudekit",
		Short:         claudekitShortDesc,
		Long:          claudekitLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(shared.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(shared.FlagConfigDir, "", "Override path to .claudekit/ config directory")
	cmd.PersistentFlags().String(shared.FlagAPIKey, "", "Anthropic API key (default: $ANTHROPIC_API_KEY or stored credentials)")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(batchcmder.NewBatchCmd())
	cmd.AddCommand(filescmder.NewFilesCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(tokenscmder.NewTokensCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
