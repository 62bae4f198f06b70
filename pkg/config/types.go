package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent claudekit configuration stored as
// config.toml in the .claudekit/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	API     APIConfig    `toml:"api"`
	Client  ClientConfig `toml:"client"`
	Retry   RetryConfig  `toml:"retry"`
	Replay  ReplayConfig `toml:"replay"`
	Events  EventsConfig `toml:"events"`
}

// APIConfig holds the connection settings for the Messages API.
// Durations are stored in time.ParseDuration notation (e.g. "10m").
type APIConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Version string `toml:"version,omitempty"`
	Beta    string `toml:"beta,omitempty"`
	Timeout string `toml:"timeout,omitempty"`
}

// ClientConfig holds request defaults for "claudekit chat" and "claudekit ask".
type ClientConfig struct {
	Model     string `toml:"model,omitempty"`
	MaxTokens uint   `toml:"max_tokens,omitempty"`
	System    string `toml:"system,omitempty"`
}

// RetryConfig holds the retry policy for requests that fail before a
// response body is handed to the caller.
type RetryConfig struct {
	MaxAttempts       uint    `toml:"max_attempts,omitempty"`
	InitialBackoff    string  `toml:"initial_backoff,omitempty"`
	MaxBackoff        string  `toml:"max_backoff,omitempty"`
	Multiplier        float64 `toml:"multiplier,omitempty"`
	RespectRetryAfter bool    `toml:"respect_retry_after"`
}

// ReplayConfig holds settings for the transcript replay server.
type ReplayConfig struct {
	Listen         string `toml:"listen,omitempty"`
	TranscriptsDir string `toml:"transcripts_dir,omitempty"`
}

// EventsConfig holds the turn event publisher settings. Brokers is a comma
// separated list; when empty no events are published.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into its addresses.
func (e EventsConfig) BrokerList() []string {
	return splitList(e.Brokers)
}

// BetaList splits Beta into its feature flags.
func (a APIConfig) BetaList() []string {
	return splitList(a.Beta)
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.base_url": stringKey(func(c *Config) *string { return &c.API.BaseURL }),
	"api.version":  stringKey(func(c *Config) *string { return &c.API.Version }),
	"api.beta":     stringKey(func(c *Config) *string { return &c.API.Beta }),
	"api.timeout":  durationKey("api.timeout", func(c *Config) *string { return &c.API.Timeout }),

	"client.model":      stringKey(func(c *Config) *string { return &c.Client.Model }),
	"client.max_tokens": uintKey("client.max_tokens", func(c *Config) *uint { return &c.Client.MaxTokens }),
	"client.system":     stringKey(func(c *Config) *string { return &c.Client.System }),

	"retry.max_attempts":    uintKey("retry.max_attempts", func(c *Config) *uint { return &c.Retry.MaxAttempts }),
	"retry.initial_backoff": durationKey("retry.initial_backoff", func(c *Config) *string { return &c.Retry.InitialBackoff }),
	"retry.max_backoff":     durationKey("retry.max_backoff", func(c *Config) *string { return &c.Retry.MaxBackoff }),
	"retry.multiplier": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Retry.Multiplier, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 1 {
				return fmt.Errorf("invalid value for retry.multiplier: %q must be a number >= 1", v)
			}
			c.Retry.Multiplier = f
			return nil
		},
	},
	"retry.respect_retry_after": {
		get: func(c *Config) string { return strconv.FormatBool(c.Retry.RespectRetryAfter) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for retry.respect_retry_after: %w", err)
			}
			c.Retry.RespectRetryAfter = b
			return nil
		},
	},

	"replay.listen":          stringKey(func(c *Config) *string { return &c.Replay.Listen }),
	"replay.transcripts_dir": stringKey(func(c *Config) *string { return &c.Replay.TranscriptsDir }),

	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// orderedKeys lists configKeys in the order of the TOML section layout.
var orderedKeys = []string{
	"api.base_url",
	"api.version",
	"api.beta",
	"api.timeout",
	"client.model",
	"client.max_tokens",
	"client.system",
	"retry.max_attempts",
	"retry.initial_backoff",
	"retry.max_backoff",
	"retry.multiplier",
	"retry.respect_retry_after",
	"replay.listen",
	"replay.transcripts_dir",
	"events.brokers",
	"events.topic",
}
