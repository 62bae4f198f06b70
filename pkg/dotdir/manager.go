// Package dotdir resolves the .claudekit/ directory that holds config,
// credentials, transcripts and the saved chat session.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".claudekit"

	// TranscriptsDir is the subdirectory holding recorded streams.
	TranscriptsDir = "transcripts"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .claudekit/ directory, creating it
// when missing. Order of precedence:
//  1. Provided override
//  2. Local ./.claudekit/ dir
//  3. Home ~/.claudekit/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating claudekit directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Subdir returns a directory below Target, creating it when missing.
func (m *Manager) Subdir(overrideDir, name string) (string, error) {
	root, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", name, err)
	}
	return dir, nil
}

func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
