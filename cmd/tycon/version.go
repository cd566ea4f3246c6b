package main

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// buildInfo describes the running tycon binary.
type buildInfo struct {
	Version   string
	Revision  string
	Dirty     bool
	GoVersion string
}

// Version returns the version string of the running binary.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	return newBuildInfo(embeddedVersion, info, ok).String()
}

// newBuildInfo prefers the module version stamped by `go install ...@version`
// and otherwise marks base as a development build of the VCS revision.
func newBuildInfo(base string, info *debug.BuildInfo, ok bool) buildInfo {
	b := buildInfo{Version: strings.TrimSpace(base)}
	if !ok || info == nil {
		return b
	}
	b.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value[:min(len(s.Value), 7)]
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		}
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		b.Version = v
		return b
	}
	b.Version = "devel-" + b.Version
	if b.Revision != "" {
		b.Version += "+" + b.Revision
	}
	if b.Dirty {
		b.Version += ".dirty"
	}
	return b
}

func (b buildInfo) String() string { return b.Version }

// details renders the verbose form printed by `tycon version -v`.
func (b buildInfo) details() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tycon %s\n", b.Version)
	if b.GoVersion != "" {
		fmt.Fprintf(&sb, "go:       %s\n", b.GoVersion)
	}
	if b.Revision != "" {
		fmt.Fprintf(&sb, "revision: %s\n", b.Revision)
	}
	return sb.String()
}
