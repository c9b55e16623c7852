// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/macreleaser/xcdeploy/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

// Name of the application.
const Name = "xcdeploy"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// VersionInfo returns the full build description shown by --version.
func VersionInfo() string {
	return fmt.Sprintf("%s version %s\nCommit: %s\nBuilt: %s\nGo version: %s (%s/%s)",
		Name, Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies xcdeploy to App Store Connect.
func UserAgent() string {
	return Name + "/" + Version
}
