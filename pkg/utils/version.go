// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import (
	"fmt"
	"runtime"
)

// Stamped at build time through -ldflags -X.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies claudekit builds to the API.
func UserAgent() string {
	return fmt.Sprintf("claudekit/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// VersionInfo is the multi-line report printed by "claudekit version".
func VersionInfo() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s\nGo: %s %s/%s\n",
		Version, Sha, Buildtime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
