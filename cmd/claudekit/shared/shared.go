// Package shared builds the logger, configuration, client and turn event
// publisher that claudekit commands have in common.
package shared

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/claudekit/pkg/client"
	"github.com/papercomputeco/claudekit/pkg/config"
	"github.com/papercomputeco/claudekit/pkg/credentials"
	"github.com/papercomputeco/claudekit/pkg/eventstream"
	"github.com/papercomputeco/claudekit/pkg/eventstream/kafka"
	"github.com/papercomputeco/claudekit/pkg/eventstream/nop"
	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/logger"
	"github.com/papercomputeco/claudekit/pkg/retry"
	"github.com/papercomputeco/claudekit/pkg/utils"
)

// Persistent flag names registered on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
	FlagAPIKey    = "api-key"
)

// Logger returns a pretty logger on the command's stderr, at debug level
// when --debug is set.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithPrefix("claudekit"),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// ConfigDir returns the --config-dir override, or "" for dotdir resolution.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString(FlagConfigDir)
	return dir
}

// Viper loads the layered configuration and binds the given registry flags
// of cmd on top of it.
func Viper(cmd *cobra.Command, flagKeys ...string) (*viper.Viper, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return v, nil
}

// ClientConfig builds the client connection settings from v. The API key is
// resolved from --api-key, the environment or the credentials file.
func ClientConfig(cmd *cobra.Command, v *viper.Viper) (client.Config, error) {
	mgr, err := credentials.NewManager(ConfigDir(cmd))
	if err != nil {
		return client.Config{}, fmt.Errorf("loading credentials: %w", err)
	}

	flagKey, _ := cmd.Flags().GetString(FlagAPIKey)
	key, _, err := mgr.Resolve(flagKey)
	if err != nil {
		return client.Config{}, err
	}

	api := config.APIConfig{Beta: v.GetString("api.beta")}

	return client.Config{
		APIKey:    key,
		BaseURL:   v.GetString("api.base_url"),
		Version:   v.GetString("api.version"),
		Beta:      api.BetaList(),
		Timeout:   v.GetDuration("api.timeout"),
		UserAgent: utils.UserAgent(),
	}, nil
}

// RetryConfig builds the retry policy from v.
func RetryConfig(v *viper.Viper) retry.Config {
	return retry.Config{
		MaxAttempts:       v.GetInt("retry.max_attempts"),
		InitialBackoff:    v.GetDuration("retry.initial_backoff"),
		MaxBackoff:        v.GetDuration("retry.max_backoff"),
		Multiplier:        v.GetFloat64("retry.multiplier"),
		RespectRetryAfter: v.GetBool("retry.respect_retry_after"),
	}
}

// SystemPrompt returns the configured system prompt with "@name"
// references to prebuilt prompts expanded.
func SystemPrompt(v *viper.Viper) (string, error) {
	return llm.ResolveSystem(v.GetString("client.system"))
}

// NewClient builds a Messages API client from v.
func NewClient(cmd *cobra.Command, v *viper.Viper, l *slog.Logger, opts ...client.Option) (*client.Client, error) {
	cfg, err := ClientConfig(cmd, v)
	if err != nil {
		return nil, err
	}

	opts = append([]client.Option{
		client.WithLogger(l),
		client.WithRetry(RetryConfig(v)),
	}, opts...)

	return client.New(cfg, opts...)
}

// NewPublisher returns the turn event publisher configured in v: a Kafka
// publisher when brokers are set, otherwise one that discards events.
func NewPublisher(v *viper.Viper, l *slog.Logger) (eventstream.Publisher, error) {
	events := config.EventsConfig{
		Brokers: v.GetString("events.brokers"),
		Topic:   v.GetString("events.topic"),
	}

	brokers := events.BrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(l), nil
	}

	l.Debug("publishing turn events", "brokers", brokers, "topic", events.Topic)

	return kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   events.Topic,
	}, l)
}
