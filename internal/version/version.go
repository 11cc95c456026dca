package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Version is the current semantic version of wsd
const Version = "1.2.0"

// Set at build time:
//
//	go build -ldflags "-X github.com/standardbeagle/wsd/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = ""
	BuildDate = ""
)

// Info returns the version, suffixed with the commit when known
func Info() string {
	if commit := commit(); commit != "unknown" {
		return Version + "+" + commit
	}
	return Version
}

// FullInfo returns the product name, version, commit and build date
func FullInfo() string {
	date := BuildDate
	if date == "" {
		date = vcsSetting("vcs.time", "development")
	}
	return fmt.Sprintf("WooCommerce Shipping Debugger %s (commit: %s, built: %s)", Version, commit(), date)
}

func commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	rev := vcsSetting("vcs.revision", "unknown")
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if vcsSetting("vcs.modified", "") == "true" {
		rev += "-dirty"
	}
	return rev
}

func vcsSetting(key, def string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return def
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value
		}
	}
	return def
}

var (
	buildID     string
	buildIDOnce sync.Once
)

// BuildID fingerprints the running binary. The self-test page shows it so a
// stale binary left on a server is easy to spot.
func BuildID() string {
	buildIDOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			buildID = Version + "-" + commit()
			return
		}
		parts := []string{info.GoVersion, info.Main.Path, info.Main.Version, commit()}
		buildID = fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x00")))
	})
	return buildID
}
