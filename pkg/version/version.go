// Package version carries build metadata injected through -ldflags.
package version

import (
	"runtime/debug"
)

// Build metadata. Release builds set these with
// -ldflags "-X github.com/Sumatoshi-tech/globalesm/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const revisionKey = "vcs.revision"

// InitBinaryVersion fills unset metadata from the module build info, so
// `go install` builds still report a meaningful version.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	if Commit != "none" {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == revisionKey {
			Commit = setting.Value
		}
	}
}

// String renders the version line printed by the CLI.
func String() string {
	return "globalesm " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
