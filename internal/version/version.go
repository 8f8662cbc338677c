// Package version holds build identity for the static-analysis server.
package version

// Version information for the static analysis server
const (
	// Version is the current semantic version
	Version = "0.1.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns the semantic version.
func Info() string {
	return Version
}

// FullInfo returns detailed version information.
func FullInfo() string {
	return "static-analysis " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}
