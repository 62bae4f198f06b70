package config

import (
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a CLI flag that maps onto a config key. Commands register
// flags by registry key so --model on "chat", "ask" and "tokens" shares one
// name, shorthand, default and description.
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to flags.
type FlagSet map[string]Flag

// Registry keys of Flags.
const (
	FlagBaseURL        = "base-url"
	FlagModel          = "model"
	FlagMaxTokens      = "max-tokens"
	FlagSystem         = "system"
	FlagReplayListen   = "replay-listen"
	FlagTranscriptsDir = "transcripts-dir"
	FlagBrokers        = "brokers"
	FlagTopic          = "topic"
)

// Flags is the registry shared by every claudekit command.
var Flags = FlagSet{
	FlagBaseURL:        {Name: "base-url", ViperKey: "api.base_url", Description: "Messages API base URL"},
	FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "client.model", Description: "Model to send requests to"},
	FlagMaxTokens:      {Name: "max-tokens", ViperKey: "client.max_tokens", Description: "Maximum tokens to generate per response"},
	FlagSystem:         {Name: "system", Shorthand: "s", ViperKey: "client.system", Description: "System prompt, or @name for a prebuilt one (@coding, @agent, ...)"},
	FlagReplayListen:   {Name: "listen", Shorthand: "l", ViperKey: "replay.listen", Description: "Address for the replay server to listen on"},
	FlagTranscriptsDir: {Name: "transcripts-dir", ViperKey: "replay.transcripts_dir", Description: "Directory holding recorded transcripts"},
	FlagBrokers:        {Name: "brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for turn events"},
	FlagTopic:          {Name: "topic", ViperKey: "events.topic", Description: "Kafka topic for turn events"},
}

// flagDefaults holds the registered defaults that flag defaults are read from.
var flagDefaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

// AddStringFlag registers the string flag fs[key] on cmd, defaulting to the
// configured default of its viper key. Unknown keys register nothing.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	if def, ok := fs[key]; ok {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, flagDefaults().GetString(def.ViperKey), def.Description)
	}
}

// AddUintFlag is AddStringFlag for uint flags.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	if def, ok := fs[key]; ok {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, flagDefaults().GetUint(def.ViperKey), def.Description)
	}
}

// BindRegisteredFlags binds the named registry flags of cmd to their viper
// keys, which puts them on top of the precedence chain
// (flag > env > config file > default). Keys that are unknown or not
// registered on cmd are skipped.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		if f := cmd.Flags().Lookup(def.Name); f != nil {
			_ = v.BindPFlag(def.ViperKey, f)
		}
	}
}
