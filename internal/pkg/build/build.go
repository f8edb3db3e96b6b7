// Package build provides information about the build, values are set by ldflags.
package build

var (
	// BuildVersion is the release version, "dev" for a local build.
	BuildVersion = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "-"
	// BuildDate is the build timestamp.
	BuildDate = "-"
)
