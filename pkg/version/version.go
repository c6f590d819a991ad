// Package version carries build identification stamped in at link time.
package version

import "fmt"

// Set via -ldflags "-X github.com/supporttools/GoDBVault/pkg/version.Version=..."
// at build time. The defaults identify ad hoc builds.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns a single-line build description for startup logs.
func Info() string {
	return fmt.Sprintf("GoDBVault %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
