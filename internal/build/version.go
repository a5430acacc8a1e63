// Package build provides version and build information for alerter.
// This package intentionally has no dependencies on other internal packages
// to avoid import cycles.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version information - set via ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// IsDevBuild returns true if running a development build (not a release).
func IsDevBuild() bool {
	return Version == "dev"
}

// Summary returns the one-line version string printed by --version.
// Development builds fall back to the VCS stamp the Go toolchain embeds.
func Summary() string {
	version, commit := Version, Commit
	if IsDevBuild() {
		if info, ok := debug.ReadBuildInfo(); ok {
			if v := info.Main.Version; v != "" && v != "(devel)" {
				version = v
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && commit == "unknown" {
					commit = shortRevision(s.Value)
				}
			}
		}
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		version, commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
