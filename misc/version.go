// Package misc provides program identity: name, version and source revision.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "scopecss"

var buildInfo = sync.OnceValues(func() (version, revision string) {
	version, revision = "devel", "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			revision = s.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		}
	}
	return
})

func GetAppName() string {
	return appName
}

// GetVersion returns module version stamped by the go tool, "devel" for
// local builds.
func GetVersion() string {
	v, _ := buildInfo()
	return v
}

// GetGitHash returns abbreviated vcs revision the binary was built from.
func GetGitHash() string {
	_, h := buildInfo()
	return h
}
