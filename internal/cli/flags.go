// Package cli holds flag helpers shared by dirwatch commands.
package cli

import (
	"flag"
	"fmt"
	"io"

	"dirwatch/internal/version"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

func AddHelpVersionFlags(fs *flag.FlagSet, helpDesc, versionDesc string) *HelpVersionFlags {
	if fs == nil {
		return &HelpVersionFlags{}
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	if versionDesc == "" {
		versionDesc = defaultVersionDesc
	}
	flags := &HelpVersionFlags{}
	fs.BoolVar(&flags.Help, "help", false, helpDesc)
	fs.BoolVar(&flags.Help, "h", false, helpDesc)
	fs.BoolVar(&flags.Version, "version", false, versionDesc)
	fs.BoolVar(&flags.Version, "v", false, versionDesc)
	return flags
}

// SetFlags returns the names of flags given explicitly on the command line,
// so defaults do not mask lower-priority config sources.
func SetFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	if fs == nil {
		return set
	}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func PrintVersion(out io.Writer, name string) {
	info := version.GetVersionInfo()
	if info.Version == "" || info.Version == "dev" {
		fmt.Fprintf(out, "%s dev\n", name)
		return
	}
	fmt.Fprintf(out, "%s version %s\n", name, info.String())
}
