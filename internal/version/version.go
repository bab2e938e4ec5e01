// Package version carries build metadata, set with -ldflags -X at release time.
package version

import "runtime"

var (
	Version   = "dev"  // ex: v0.1.0
	Commit    = "none" // ex: abcd123
	BuildDate = ""     // ex: 2026-03-02T18:42:00Z
	GoVersion = runtime.Version()
)
