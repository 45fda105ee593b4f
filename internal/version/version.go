package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the product name printed by the binaries
const Name = "decomb"

// Set via ldflags by release builds
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// readBuildInfo is replaced in tests
var readBuildInfo = debug.ReadBuildInfo

// Short returns the release version. Binaries built with `go install`
// carry no ldflags and report their module version instead.
func Short() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// revision returns the ldflags commit, or the VCS revision stamped by the
// go command, shortened to 12 characters
func revision() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return Commit
}

// Info returns version information as a formatted string
func Info() string {
	return fmt.Sprintf(
		"%s %s\nCommit: %s\nBuilt: %s by %s\nGo: %s\nOS/Arch: %s/%s",
		Name,
		Short(),
		revision(),
		Date,
		BuiltBy,
		runtime.Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}
