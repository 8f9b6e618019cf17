// Package version reports build information stamped in through ldflags:
//
//	go build -ldflags "-X github.com/example/contentgate/internal/version.Commit=$(git rev-parse HEAD)"
package version

import "fmt"

// These variables are set at build time via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the version line printed by `gate --version`.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, shortCommit(Commit), BuildTime)
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
