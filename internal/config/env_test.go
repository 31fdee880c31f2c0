package config

import (
	"testing"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

func TestEnvOverrides(t *testing.T) {
	overrides, err := EnvOverrides(lookupFrom(map[string]string{
		"DIRWATCH_ROOT":                "/data",
		"DIRWATCH_BUFFER_SIZE":         "8192",
		"DIRWATCH_RESYNC_ON_INVARIANT": "true",
		"DIRWATCH_LOG_LEVEL":           " ",
	}))
	if err != nil {
		t.Fatalf("env overrides: %v", err)
	}
	if overrides["watch.root"] != "/data" {
		t.Fatalf("expected root override, got %v", overrides["watch.root"])
	}
	if overrides["watch.buffer-size"] != int64(8192) {
		t.Fatalf("expected buffer override, got %v", overrides["watch.buffer-size"])
	}
	if overrides["watch.resync-on-invariant"] != true {
		t.Fatalf("expected resync override, got %v", overrides["watch.resync-on-invariant"])
	}
	if _, ok := overrides["log.level"]; ok {
		t.Fatalf("expected blank value to be ignored")
	}
}

func TestEnvOverridesRejectsMalformed(t *testing.T) {
	if _, err := EnvOverrides(lookupFrom(map[string]string{"DIRWATCH_BUFFER_SIZE": "big"})); err == nil {
		t.Fatalf("expected int parse error")
	}
	if _, err := EnvOverrides(lookupFrom(map[string]string{"DIRWATCH_RESYNC_ON_INVARIANT": "maybe"})); err == nil {
		t.Fatalf("expected bool parse error")
	}
}

func TestEnvOverridesFeedLoadSettings(t *testing.T) {
	t.Setenv("DIRWATCH_POLL_INTERVAL", "150ms")
	overrides, err := EnvOverrides(nil)
	if err != nil {
		t.Fatalf("env overrides: %v", err)
	}
	settings, err := LoadSettings("", readDefaults(t), overrides)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.Watch.PollInterval.String() != "150ms" {
		t.Fatalf("expected 150ms, got %s", settings.Watch.PollInterval)
	}
}
