package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/claudekit/internal/dagger"
)

// CheckGoModTidy fails when go.mod or go.sum differ from what "go mod tidy"
// would write. The error carries the diff.
//
// +check
func (c *Claudekit) CheckGoModTidy(ctx context.Context) (string, error) {
	_, err := c.goContainer().
		WithExec([]string{"go", "mod", "tidy", "-diff"}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("go.mod or go.sum need tidying, run 'go mod tidy':\n\n%s", execErr.Stdout)
	case err != nil:
		return "", fmt.Errorf("running go mod tidy: %w", err)
	}

	return "go.mod and go.sum are tidy", nil
}
