package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/xgrab/internal/version.Version=v0.3.0".
var Version = "unknown"

// Build metadata, also set through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is what --version prints.
func String() string {
	return fmt.Sprintf("xgrab %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
