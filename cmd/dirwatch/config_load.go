package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"dirwatch"
	"dirwatch/internal/config"
	"dirwatch/internal/fsutil"
)

// resolveConfigPath prefers -config over DIRWATCH_CONFIG.
func resolveConfigPath(cfg Config, lookup func(string) (string, bool)) string {
	if cfg.ConfigPath != "" {
		return cfg.ConfigPath
	}
	if value, ok := lookup("DIRWATCH_CONFIG"); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// loadSettings layers embedded defaults, the config file, DIRWATCH_*
// variables and explicit flags, then canonicalizes the root.
func loadSettings(cfg Config, lookup func(string) (string, bool)) (config.Settings, error) {
	defaults, err := fs.ReadFile(dirwatch.EmbeddedConfigFS, dirwatch.DefaultConfigPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("read embedded defaults: %w", err)
	}

	path := resolveConfigPath(cfg, lookup)
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return config.Settings{}, fmt.Errorf("config file: %w", err)
		}
	}

	overrides, err := config.EnvOverrides(lookup)
	if err != nil {
		return config.Settings{}, err
	}
	for key, value := range cfg.Overrides {
		overrides[key] = value
	}

	settings, err := config.LoadSettings(path, defaults, overrides)
	if err != nil {
		return config.Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	if settings.Watch.Root == "" {
		return config.Settings{}, errors.New("a root directory is required (argument, -root, DIRWATCH_ROOT or watch.root)")
	}
	root, err := fsutil.CanonicalDir(settings.Watch.Root)
	if err != nil {
		return config.Settings{}, fmt.Errorf("root: %w", err)
	}
	settings.Watch.Root = root
	return settings, nil
}
