// Package version reports the build identity of the mesh coordinator.
// The commit comes from -ldflags when set, otherwise from the VCS stamp in
// debug.BuildInfo, otherwise "dev".
package version

import "runtime/debug"

// AppName is used in log banners and the health payload.
const AppName = "meshd"

// commitOverride is injected via -ldflags for container builds without .git.
var commitOverride string

// GitCommit is the short commit hash, or "dev" when no build info exists
// (go test, non-git builds).
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return short(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "meshd/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
