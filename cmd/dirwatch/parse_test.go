package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"dirwatch/internal/watcher"
)

func TestParseArgsCollectsOnlyExplicitFlags(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := parseArgs([]string{"-log-level", "debug", "-poll-interval", "250ms", "-buffer-size", "4096", "/srv/data"}, &stderr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{
		"log.level":           "debug",
		"watch.poll-interval": "250ms",
		"watch.buffer-size":   int64(4096),
		"watch.root":          "/srv/data",
	}
	if len(cfg.Overrides) != len(want) {
		t.Fatalf("expected %d overrides, got %v", len(want), cfg.Overrides)
	}
	for key, value := range want {
		if cfg.Overrides[key] != value {
			t.Fatalf("override %s = %v, want %v", key, cfg.Overrides[key], value)
		}
	}
}

func TestParseArgsPositionalRootWins(t *testing.T) {
	cfg, err := parseArgs([]string{"-root", "/from/flag", "/from/arg"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Overrides["watch.root"] != "/from/arg" {
		t.Fatalf("expected positional root, got %v", cfg.Overrides["watch.root"])
	}
}

func TestParseArgsHelpAndVersion(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseArgs([]string{"--help"}, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	if !strings.Contains(stderr.String(), "Usage: dirwatch") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}

	cfg, err := parseArgs([]string{"-v"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.ShowVersion {
		t.Fatalf("expected ShowVersion")
	}
}

func TestParseArgsRejects(t *testing.T) {
	cases := map[string][]string{
		"two roots":       {"/a", "/b"},
		"zero poll":       {"-poll-interval", "0s"},
		"negative buffer": {"-buffer-size", "-1"},
		"unknown flag":    {"-bogus"},
		"unknown kind":    {"-events", "created,modified"},
		"malformed poll":  {"-poll-interval", "fast"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseArgs(args, &bytes.Buffer{}); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestParseArgsEvents(t *testing.T) {
	cfg, err := parseArgs([]string{"-events", " Created, moved_out ,", "/srv"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []watcher.EventKind{watcher.Created, watcher.MovedOut}
	if len(cfg.Kinds) != len(want) || cfg.Kinds[0] != want[0] || cfg.Kinds[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, cfg.Kinds)
	}

	cfg, err = parseArgs([]string{"/srv"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Kinds != nil {
		t.Fatalf("expected no filter, got %v", cfg.Kinds)
	}
}
