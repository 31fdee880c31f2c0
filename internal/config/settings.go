package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"dirwatch/internal/config/keys"
)

type Settings struct {
	Watch   WatchSettings
	Log     LogSettings
	Metrics MetricsSettings
	Otel    OtelSettings
}

type WatchSettings struct {
	Root              string
	PollInterval      time.Duration
	BufferSize        int64
	MaxBufferSize     int64
	ResyncOnInvariant bool
}

type LogSettings struct {
	Level string
}

type MetricsSettings struct {
	File string
}

type OtelSettings struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// LoadSettings layers defaultsPayload (TOML), the file at path and overrides,
// later layers winning. A missing file is not an error. Override keys use the
// same dotted form as the file, e.g. "watch.poll-interval".
func LoadSettings(path string, defaultsPayload []byte, overrides map[string]any) (Settings, error) {
	defaultsStore, err := keys.Decode(defaultsPayload, keys.FormatTOML)
	if err != nil {
		return Settings{}, fmt.Errorf("defaults: %w", err)
	}
	defaults := defaultsStore.Flat()
	values := defaultsStore.Flat()

	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Settings{}, err
			}
		} else {
			store, err := keys.Decode(payload, keys.FormatForPath(path))
			if err != nil {
				return Settings{}, fmt.Errorf("%s: %w", path, err)
			}
			for key, value := range store.Flat() {
				values[key] = value
			}
		}
	}

	for key, value := range overrides {
		normalized := keys.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		values[normalized] = value
	}

	settings := Settings{}
	settings.Watch.Root = stringSetting(values, "watch.root", "")
	settings.Watch.PollInterval, err = durationSetting(values, "watch.poll-interval")
	if err != nil {
		return Settings{}, err
	}
	settings.Watch.BufferSize = intSetting(values, "watch.buffer-size", 0)
	settings.Watch.MaxBufferSize = intSetting(values, "watch.max-buffer-size", 0)
	settings.Watch.ResyncOnInvariant = boolSetting(values, "watch.resync-on-invariant", false)
	settings.Log.Level = stringSetting(values, "log.level", "")
	settings.Metrics.File = stringSetting(values, "metrics.file", "")
	settings.Otel.Enabled = boolSetting(values, "otel.enabled", false)
	settings.Otel.Endpoint = stringSetting(values, "otel.endpoint", "")
	settings.Otel.ServiceName = stringSetting(values, "otel.service-name", "")

	return normalizeSettings(settings, defaults), nil
}

func normalizeSettings(settings Settings, defaults map[string]any) Settings {
	if settings.Watch.PollInterval <= 0 {
		settings.Watch.PollInterval, _ = durationSetting(defaults, "watch.poll-interval")
	}
	if settings.Watch.BufferSize <= 0 {
		settings.Watch.BufferSize = intSetting(defaults, "watch.buffer-size", 0)
	}
	if settings.Watch.MaxBufferSize <= 0 {
		settings.Watch.MaxBufferSize = intSetting(defaults, "watch.max-buffer-size", 0)
	}
	if settings.Log.Level == "" {
		settings.Log.Level = stringSetting(defaults, "log.level", "info")
	}
	if settings.Otel.ServiceName == "" {
		settings.Otel.ServiceName = stringSetting(defaults, "otel.service-name", "")
	}
	return settings
}

func intSetting(values map[string]any, key string, fallback int64) int64 {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := keys.AsInt64(value); ok {
		return parsed
	}
	return fallback
}

func stringSetting(values map[string]any, key string, fallback string) string {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := value.(string); ok {
		return strings.TrimSpace(parsed)
	}
	return fallback
}

func boolSetting(values map[string]any, key string, fallback bool) bool {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return fallback
	}
	if parsed, ok := value.(bool); ok {
		return parsed
	}
	return fallback
}

// durationSetting accepts a Go duration string or a whole number of
// milliseconds. A missing key yields zero.
func durationSetting(values map[string]any, key string) (time.Duration, error) {
	value, ok := values[keys.NormalizeKey(key)]
	if !ok {
		return 0, nil
	}
	switch typed := value.(type) {
	case time.Duration:
		return typed, nil
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, nil
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return parsed, nil
	}
	if millis, ok := keys.AsInt64(value); ok {
		return time.Duration(millis) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%s: unsupported value %v", key, value)
}
