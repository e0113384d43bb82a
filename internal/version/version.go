// Package version provides build and agent version information for specagent.
//
// Build variables are set at link time:
//
//	go build -ldflags "-X github.com/jmylchreest/specagent/internal/version.Version=1.0.0 ..."
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// AgentVersion is the extraction agent version stamped on every record. It
// changes only when extraction behaviour changes, independent of builds.
const AgentVersion = "2.6.0"

// Build-time variables set via ldflags
var (
	// Version is the semantic version of the binary
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "unknown"

	// Dirty indicates if the working tree had uncommitted changes
	Dirty = "false"

	// BuildDate is the UTC build timestamp in RFC3339 format
	BuildDate = "unknown"
)

// Info contains structured version information
type Info struct {
	Version      string `json:"version" yaml:"version"`
	AgentVersion string `json:"agent_version" yaml:"agent_version"`
	Commit       string `json:"commit" yaml:"commit"`
	Dirty        bool   `json:"dirty" yaml:"dirty"`
	BuildDate    string `json:"build_date" yaml:"build_date"`
	GoVersion    string `json:"go_version" yaml:"go_version"`
	Platform     string `json:"platform" yaml:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		Version:      Version,
		AgentVersion: AgentVersion,
		Commit:       Commit,
		Dirty:        Dirty == "true",
		BuildDate:    BuildDate,
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a single-line version string
func String() string {
	v := Version
	if Dirty == "true" {
		v += "-dirty"
	}
	return v
}

// Full returns a multi-line version string with all details
func Full() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "specagent %s\n", String())
	fmt.Fprintf(&sb, "  Agent:      %s\n", AgentVersion)
	fmt.Fprintf(&sb, "  Commit:     %s\n", Commit)
	if Dirty == "true" {
		sb.WriteString("  Dirty:      yes\n")
	}
	fmt.Fprintf(&sb, "  Built:      %s\n", BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(&sb, "  OS/Arch:    %s/%s", runtime.GOOS, runtime.GOARCH)
	return sb.String()
}
