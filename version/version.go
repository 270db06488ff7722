// Package version reports build information for lhjobs.
package version

import (
	"fmt"
	"runtime"
)

// Build information, set at build time via
// -ldflags "-X github.com/sirstudly/littlehotelier-sub001/version.Version=...".
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("lhjobs %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("lhjobs dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}

// UserAgent is the User-Agent suffix for outgoing requests.
func (i Info) UserAgent() string {
	return "lhjobs/" + i.Version
}
