package credentials

// Credentials represents the stored API credentials in credentials.toml.
type Credentials struct {
	Version   int                 `toml:"version"`
	Anthropic AnthropicCredential `toml:"anthropic"`
}

// AnthropicCredential holds the Messages API key.
type AnthropicCredential struct {
	APIKey string `toml:"api_key,omitempty"`
}

// Source names where a resolved API key came from.
type Source string

const (
	SourceNone Source = ""
	SourceFlag Source = "flag"
	SourceEnv  Source = "env"
	SourceFile Source = "file"
)
