// Package version reports build metadata.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/mrz1836/seedscout/internal/version.Version=v1.0.0".
//
//nolint:gochecknoglobals // Linker-injected build metadata
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

const devVersion = "dev"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns linker-injected metadata, falling back to the module
// build info when the binary was built with go install.
func Current() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
}

// String formats the info as "v1.2.3 (commit: abc1234, built: 2024-01-15)".
func (i Info) String() string {
	v, c, d := i.Version, i.Commit, i.Date
	if v == "" {
		v = devVersion
	}
	if c == "" {
		c = "unknown"
	}
	if d == "" {
		d = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// RenderText implements output.TextRenderer.
func (i Info) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "seedscout %s\n%s %s\n", i.String(), i.GoVersion, i.Platform)
	return err
}

// IsDev reports whether the binary is an unreleased build.
func (i Info) IsDev() bool {
	v := strings.TrimPrefix(i.Version, "v")
	return v == "" || v == devVersion
}
