// Package version holds covfold build metadata. Release builds inject the
// values with -ldflags "-X github.com/Sumatoshi-tech/covfold/pkg/version.Version=...".
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const shortCommitLen = 12

// InitBinaryVersion fills Commit and Date from the embedded VCS stamp when
// they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = setting.Value[:min(len(setting.Value), shortCommitLen)]
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("covfold %s (commit: %s, built: %s)", Version, Commit, Date)
}
