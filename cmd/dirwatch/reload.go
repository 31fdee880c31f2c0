package main

import (
	"context"

	"dirwatch/internal/config"
	"dirwatch/internal/logging"
)

// startConfigReload applies log level changes from the config file while the
// watcher runs. Watch settings are read once; changing them only logs a
// warning.
func startConfigReload(ctx context.Context, path string, current config.Settings, load func() (config.Settings, error), logger *logging.Logger) error {
	reloader, err := config.NewReloader(path, load, config.ReloadOptions{Logger: logger})
	if err != nil {
		return err
	}
	events, _ := reloader.Subscribe()

	go func() {
		if err := reloader.Run(ctx); err != nil {
			logger.Warn("config reload disabled", map[string]string{
				logging.FieldPath:  path,
				logging.FieldError: err.Error(),
			})
		}
	}()
	go applyReloads(events, current, logger)
	return nil
}

// applyReloads compares each accepted reload against the previous accepted
// one, so a watch setting change is reported once.
func applyReloads(events <-chan config.ReloadEvent, current config.Settings, logger *logging.Logger) {
	for ev := range events {
		if ev.Err != nil {
			continue
		}
		applyReload(current, ev.Settings, logger)
		current = ev.Settings
	}
}

func applyReload(current, next config.Settings, logger *logging.Logger) {
	if level, ok := logging.ParseLevel(next.Log.Level); ok && level != logger.Level() {
		logger.SetLevel(level)
		logger.Info("log level changed", map[string]string{"level": string(level)})
	}
	if next.Watch.PollInterval != current.Watch.PollInterval ||
		next.Watch.BufferSize != current.Watch.BufferSize ||
		next.Watch.MaxBufferSize != current.Watch.MaxBufferSize ||
		next.Watch.ResyncOnInvariant != current.Watch.ResyncOnInvariant {
		logger.Warn("watch settings changed; restart dirwatch to apply them", nil)
	}
}
