package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is overridden by ldflags during release builds
	Version = "dev"

	commit = "unknown"
	date   = "unknown"
)

// SetBuildInfo sets the build information
func SetBuildInfo(commitHash, buildDate string) {
	if commitHash != "" {
		commit = commitHash
	}
	if buildDate != "" {
		date = buildDate
	}
}

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns build information. The VCS revision embedded by the Go
// toolchain is used when no commit was set at link time.
func Get() Info {
	c := commit
	if c == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					c = s.Value
				}
			}
		}
	}
	return Info{
		Version:   Version,
		Commit:    c,
		BuildDate: date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersion returns the full version string
func GetVersion() string {
	i := Get()
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", i.Version, i.Commit, i.BuildDate, i.Platform)
}
