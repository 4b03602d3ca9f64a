// Package version holds build-time version information for the ragqa binary.
// The variables are populated via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/ragqa-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/ragqa-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/ragqa-go/internal/version.BuildDate=2026-01-01"
//
// Builds without ldflags report "dev" and "unknown".
package version

import "fmt"

// Version is the semantic version of the binary.
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date.
var BuildDate = "unknown"

// String returns the one-line version banner printed by `ragqa version`.
func String() string {
	return fmt.Sprintf("ragqa %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
