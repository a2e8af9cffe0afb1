// Package version reports how the plugsync binary was built. The variables
// below are overwritten by the release build through -ldflags -X.
package version

import (
	"fmt"
	"runtime"

	"github.com/jmylchreest/plugsync/pkg/plugin"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the full revision the binary was built from.
	Commit = "unknown"

	// Date is the RFC3339 build timestamp.
	Date = "unknown"

	// GoVersion is the toolchain that built the binary.
	GoVersion = runtime.Version()
)

// Info describes the running binary and the adapter protocol it speaks.
type Info struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Date            string `json:"date"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
	AdapterProtocol string `json:"adapter_protocol"`
}

// GetInfo collects the build information.
func GetInfo() Info {
	return Info{
		Version:         Version,
		Commit:          Commit,
		Date:            Date,
		GoVersion:       GoVersion,
		Platform:        fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		AdapterProtocol: plugin.ProtocolVersion,
	}
}

// String is the text printed by `plugsync version`. Commit and date are
// omitted for local builds.
func String() string {
	info := GetInfo()
	if Commit != "unknown" && Date != "unknown" {
		return fmt.Sprintf("plugsync version %s (commit: %s, built: %s, adapter protocol %s, %s, %s)",
			info.Version, shortCommit(info.Commit), info.Date, info.AdapterProtocol, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("plugsync version %s (adapter protocol %s, %s, %s)",
		info.Version, info.AdapterProtocol, info.GoVersion, info.Platform)
}

// Short is the bare version used by --version.
func Short() string {
	return Version
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
