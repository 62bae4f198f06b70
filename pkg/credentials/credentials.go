// Package credentials stores the Anthropic API key in credentials.toml and
// resolves the key a client should use.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/claudekit/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// EnvVar is the environment variable consulted for the API key.
	EnvVar = "ANTHROPIC_API_KEY"
)

// ErrNoAPIKey is returned by Resolve when no source provides a key.
var ErrNoAPIKey = errors.New("no API key: pass --api-key, set " + EnvVar + " or run 'claudekit auth'")

// Manager manages reading and writing credentials.toml in the .claudekit/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string

	// lookupEnv is os.LookupEnv outside of tests.
	lookupEnv func(string) (string, bool)
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .claudekit/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{
		ddm:       dotdir.NewManager(),
		lookupEnv: os.LookupEnv,
	}

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{Version: currentVersion}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetKey stores the API key.
func (m *Manager) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Anthropic.APIKey = key

	return m.Save(creds)
}

// GetKey returns the stored API key, or an empty string if none is stored.
func (m *Manager) GetKey() (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Anthropic.APIKey, nil
}

// RemoveKey deletes the stored API key.
func (m *Manager) RemoveKey() error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Anthropic = AnthropicCredential{}

	return m.Save(creds)
}

// Resolve returns the API key to use and where it came from. The flag value
// wins over the environment, which wins over the credentials file.
func (m *Manager) Resolve(flagValue string) (string, Source, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, SourceFlag, nil
	}

	if key, ok := m.lookupEnv(EnvVar); ok && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), SourceEnv, nil
	}

	key, err := m.GetKey()
	if err != nil {
		return "", SourceNone, err
	}
	if key != "" {
		return key, SourceFile, nil
	}

	return "", SourceNone, ErrNoAPIKey
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Mask returns key with everything but a short prefix and suffix hidden.
func Mask(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:7] + strings.Repeat("*", 4) + key[len(key)-4:]
}
