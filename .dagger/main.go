// Claudekit CI/CD
//
// Package main runs the claudekit builds, tests and checks the same way
// locally and in GitHub actions.
package main

import (
	"context"

	"dagger/claudekit/internal/dagger"
)

// Claudekit is the CI/CD module for claudekit.
type Claudekit struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Claudekit CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".claudekit", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Claudekit {
	return &Claudekit{
		Source: source,
	}
}

// goContainer returns a Go container with the module caches and the project
// source mounted. claudekit is pure Go, so CGO stays off.
func (c *Claudekit) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the claudekit unit tests via "go test". The race detector needs
// cgo, so this is the one container with a C toolchain.
func (c *Claudekit) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"apk", "add", "--no-cache", "build-base"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
//
// +check
func (c *Claudekit) Vet(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
