// Package version exposes build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version (set by ldflags during build)
	Version = "dev"

	// GitCommit is the git commit hash (set by ldflags during build)
	GitCommit = ""
)

// String returns the version, falling back to module build info when
// ldflags did not set one.
func String() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return "dev"
}

// Full returns the version plus commit and platform, for the version
// command and the health endpoint.
func Full() string {
	s := String()
	if len(GitCommit) >= 7 {
		s = fmt.Sprintf("%s-%s", s, GitCommit[:7])
	}
	return fmt.Sprintf("%s %s/%s", s, runtime.GOOS, runtime.GOARCH)
}
