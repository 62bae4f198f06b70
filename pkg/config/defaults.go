package config

import "github.com/papercomputeco/claudekit/pkg/models"

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	defaultTimeout    = "10m"

	defaultModel     = models.Default
	defaultMaxTokens = 4096

	defaultMaxAttempts    = 3
	defaultInitialBackoff = "500ms"
	defaultMaxBackoff     = "60s"
	defaultMultiplier     = 2.0

	defaultReplayListen = ":8787"

	defaultEventsTopic = "claudekit.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			BaseURL: defaultBaseURL,
			Version: defaultAPIVersion,
			Timeout: defaultTimeout,
		},
		Client: ClientConfig{
			Model:     defaultModel,
			MaxTokens: defaultMaxTokens,
		},
		Retry: RetryConfig{
			MaxAttempts:       defaultMaxAttempts,
			InitialBackoff:    defaultInitialBackoff,
			MaxBackoff:        defaultMaxBackoff,
			Multiplier:        defaultMultiplier,
			RespectRetryAfter: true,
		},
		Replay: ReplayConfig{
			Listen: defaultReplayListen,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
