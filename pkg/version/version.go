// Package version provides version information for gemini-cli.
// These variables are set via ldflags during the build process.
package version

import "runtime"

// Version is the current version of the binary.
// Set via -ldflags "-X github.com/jhideki/gemini-cli/pkg/version.Version=..."
var Version = "dev"

// BuildDate is the date when the binary was built.
var BuildDate = "unknown"

// GitCommit is the git commit hash used to build the binary.
var GitCommit = "unknown"

// String returns a formatted version string.
func String() string {
	return Version
}

// FullString returns a detailed version string including build info.
func FullString() string {
	if Version == "dev" {
		return "gemini-cli development version"
	}
	return "gemini-cli " + Version + " (" + GitCommit + ", " + BuildDate + ")"
}

// Info returns version information as a map, including the Go runtime
// the binary was built with.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildDate": BuildDate,
		"gitCommit": GitCommit,
		"goVersion": runtime.Version(),
	}
}
