// Package buildinfo exposes version metadata stamped into release binaries.
package buildinfo

import "fmt"

// Overridden with -ldflags "-X github.com/go-ports/vibelog/internal/buildinfo.Version=..."
// at release time. Unstamped builds report dev.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Full renders the complete version line shown by `vibe --version`.
func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
