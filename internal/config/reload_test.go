package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReloaderPublishesAfterWrite(t *testing.T) {
	defaults := readDefaults(t)
	path := filepath.Join(t.TempDir(), "dirwatch.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	reloader, err := NewReloader(path, func() (Settings, error) {
		return LoadSettings(path, defaults, nil)
	}, ReloadOptions{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new reloader: %v", err)
	}
	events, _ := reloader.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reloader.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Run adds the watch asynchronously; keep writing until a reload lands.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Err != nil {
				t.Fatalf("unexpected reload error: %v", ev.Err)
			}
			if ev.Settings.Log.Level != "debug" {
				t.Fatalf("expected debug level, got %q", ev.Settings.Log.Level)
			}
			if ev.Type() != "config_reloaded" {
				t.Fatalf("unexpected event type %q", ev.Type())
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reload")
		}
	}
}

func TestReloaderRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirwatch.toml")
	reloader, err := NewReloader(path, func() (Settings, error) {
		return Settings{}, nil
	}, ReloadOptions{})
	if err != nil {
		t.Fatalf("new reloader: %v", err)
	}
	events, _ := reloader.Subscribe()

	reloader.flush()

	select {
	case ev := <-events:
		if ev.Err == nil {
			t.Fatalf("expected validation error for zero settings")
		}
		if ev.Type() != "config_reload_failed" {
			t.Fatalf("unexpected event type %q", ev.Type())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestNewReloaderRequiresArguments(t *testing.T) {
	if _, err := NewReloader("", func() (Settings, error) { return Settings{}, nil }, ReloadOptions{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := NewReloader("dirwatch.toml", nil, ReloadOptions{}); err == nil {
		t.Fatalf("expected error for nil loader")
	}
}
