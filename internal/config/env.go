package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envKeys maps DIRWATCH_* variables onto setting keys.
var envKeys = []struct {
	name string
	key  string
	kind envKind
}{
	{name: "DIRWATCH_ROOT", key: "watch.root", kind: envString},
	{name: "DIRWATCH_POLL_INTERVAL", key: "watch.poll-interval", kind: envString},
	{name: "DIRWATCH_BUFFER_SIZE", key: "watch.buffer-size", kind: envInt},
	{name: "DIRWATCH_MAX_BUFFER_SIZE", key: "watch.max-buffer-size", kind: envInt},
	{name: "DIRWATCH_RESYNC_ON_INVARIANT", key: "watch.resync-on-invariant", kind: envBool},
	{name: "DIRWATCH_LOG_LEVEL", key: "log.level", kind: envString},
	{name: "DIRWATCH_METRICS_FILE", key: "metrics.file", kind: envString},
}

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
)

// EnvOverrides reads DIRWATCH_* variables through lookup, os.LookupEnv when
// nil. Empty values are ignored.
func EnvOverrides(lookup func(string) (string, bool)) (map[string]any, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	overrides := make(map[string]any)
	for _, entry := range envKeys {
		raw, ok := lookup(entry.name)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		switch entry.kind {
		case envInt:
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.name, err)
			}
			overrides[entry.key] = parsed
		case envBool:
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.name, err)
			}
			overrides[entry.key] = parsed
		default:
			overrides[entry.key] = raw
		}
	}
	return overrides, nil
}
