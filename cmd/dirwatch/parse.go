package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"dirwatch/internal/cli"
	"dirwatch/internal/watcher"
)

type Config struct {
	ConfigPath  string
	Overrides   map[string]any
	Kinds       []watcher.EventKind
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (Config, error) {
	fs := flag.NewFlagSet("dirwatch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configFlag := fs.String("config", "", "Config file, .toml or .yaml (env: DIRWATCH_CONFIG)")
	rootFlag := fs.String("root", "", "Directory to watch (env: DIRWATCH_ROOT)")
	logLevelFlag := fs.String("log-level", "", "Log level: debug, info, warning, error (env: DIRWATCH_LOG_LEVEL)")
	pollFlag := fs.Duration("poll-interval", 0, "Longest single wait for events (env: DIRWATCH_POLL_INTERVAL, default: 1s)")
	bufferFlag := fs.Int("buffer-size", 0, "Initial read buffer in bytes (env: DIRWATCH_BUFFER_SIZE, default: 65536)")
	resyncFlag := fs.Bool("resync-on-invariant", false, "Resync instead of exiting when the watch tree drifts")
	eventsFlag := fs.String("events", "", "Comma-separated kinds to print: created, deleted, moved_in, moved_out (default: all)")
	metricsFlag := fs.String("metrics-file", "", "Write Prometheus metrics here on exit (env: DIRWATCH_METRICS_FILE)")
	helpVersion := cli.AddHelpVersionFlags(fs, "Show this help message", "Print version and exit")
	fs.Usage = func() {
		printHelp(fs.Output(), fs)
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if helpVersion.Help {
		fs.Usage()
		return Config{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return Config{ShowVersion: true}, nil
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return Config{}, errors.New("at most one root directory may be given")
	}

	set := cli.SetFlags(fs)
	overrides := make(map[string]any)
	if set["root"] {
		overrides["watch.root"] = strings.TrimSpace(*rootFlag)
	}
	if fs.NArg() == 1 {
		overrides["watch.root"] = strings.TrimSpace(fs.Arg(0))
	}
	if set["log-level"] {
		overrides["log.level"] = strings.TrimSpace(*logLevelFlag)
	}
	if set["poll-interval"] {
		if *pollFlag <= 0 {
			return Config{}, fmt.Errorf("-poll-interval must be positive, got %s", *pollFlag)
		}
		overrides["watch.poll-interval"] = pollFlag.String()
	}
	if set["buffer-size"] {
		if *bufferFlag <= 0 {
			return Config{}, fmt.Errorf("-buffer-size must be positive, got %d", *bufferFlag)
		}
		overrides["watch.buffer-size"] = int64(*bufferFlag)
	}
	if set["resync-on-invariant"] {
		overrides["watch.resync-on-invariant"] = *resyncFlag
	}
	if set["metrics-file"] {
		overrides["metrics.file"] = strings.TrimSpace(*metricsFlag)
	}

	kinds, err := parseKinds(*eventsFlag)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ConfigPath: strings.TrimSpace(*configFlag),
		Overrides:  overrides,
		Kinds:      kinds,
	}, nil
}

func parseKinds(raw string) ([]watcher.EventKind, error) {
	var kinds []watcher.EventKind
	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		kind, ok := watcher.ParseEventKind(name)
		if !ok {
			return nil, fmt.Errorf("-events: unknown kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printHelp(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(out, "Usage: dirwatch [flags] [root]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Watch root and every directory below it, printing one line per")
	fmt.Fprintln(out, "created, deleted or moved entry until interrupted.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fs.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Exit codes: 0 interrupted, 1 watch failure, 2 usage error.")
}
