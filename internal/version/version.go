package version

import (
	"strconv"
	"strings"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Major = "0"
var Minor = "0"
var Patch = "0"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string
	Major     int
	Minor     int
	Patch     int
	Built     string
	GitCommit string
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the version followed by commit and build time when known,
// e.g. "1.2.3 (abc123, built 2026-01-11T12:34:56Z)".
func (v VersionInfo) String() string {
	var details []string
	if v.GitCommit != "" {
		details = append(details, v.GitCommit)
	}
	if v.Built != "" {
		details = append(details, "built "+v.Built)
	}
	if len(details) == 0 {
		return v.Version
	}
	return v.Version + " (" + strings.Join(details, ", ") + ")"
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
