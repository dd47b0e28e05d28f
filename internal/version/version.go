// Package version carries the build identity. Snapshots written by one
// build are only trusted by a build with the same Version.
package version

var (
	// Version is the current application version, set with -ldflags at build time.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build identity for the CLI -version flag.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
