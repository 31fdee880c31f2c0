package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"dirwatch/internal/event"
	"dirwatch/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 100 * time.Millisecond

// ReloadEvent carries the result of re-reading the config file. Err is set
// when the new file could not be loaded or failed validation.
type ReloadEvent struct {
	Settings   Settings
	Err        error
	OccurredAt time.Time
}

func (e ReloadEvent) Type() string {
	if e.Err != nil {
		return "config_reload_failed"
	}
	return "config_reloaded"
}

func (e ReloadEvent) Timestamp() time.Time {
	return e.OccurredAt
}

type ReloadOptions struct {
	Debounce time.Duration
	Logger   *logging.Logger
}

// Reloader watches one config file and publishes a ReloadEvent after writes
// settle. The parent directory is watched so editors that replace the file
// by rename are seen too.
type Reloader struct {
	path     string
	load     func() (Settings, error)
	debounce time.Duration
	logger   *logging.Logger
	bus      *event.Bus[ReloadEvent]

	mu    sync.Mutex
	timer *time.Timer
}

func NewReloader(path string, load func() (Settings, error), options ReloadOptions) (*Reloader, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if load == nil {
		return nil, errors.New("config loader is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if options.Debounce <= 0 {
		options.Debounce = defaultReloadDebounce
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	return &Reloader{
		path:     abs,
		load:     load,
		debounce: options.Debounce,
		logger:   options.Logger.Component("config"),
		bus: event.NewBus[ReloadEvent](context.Background(), event.BusOptions{
			Name: "config_events",
		}),
	}, nil
}

func (r *Reloader) Subscribe() (<-chan ReloadEvent, func()) {
	return r.bus.Subscribe()
}

// Run watches until ctx is done. The event bus is closed on return.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.bus.Close()
	defer r.stopTimer()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return err
	}
	r.logger.Debug("config watch started", map[string]string{logging.FieldPath: r.path})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			r.schedule()
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watch error", map[string]string{
				logging.FieldPath:  r.path,
				logging.FieldError: watchErr.Error(),
			})
		}
	}
}

func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil {
		r.timer = time.AfterFunc(r.debounce, r.flush)
		return
	}
	r.timer.Reset(r.debounce)
}

func (r *Reloader) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Reloader) flush() {
	r.mu.Lock()
	r.timer = nil
	r.mu.Unlock()

	settings, err := r.load()
	if err == nil {
		err = settings.Validate()
	}
	fields := map[string]string{logging.FieldPath: r.path}
	if err != nil {
		fields[logging.FieldError] = err.Error()
		r.logger.Warn("config reload rejected", fields)
	} else {
		r.logger.Info("config reloaded", fields)
	}
	r.bus.Publish(ReloadEvent{Settings: settings, Err: err, OccurredAt: time.Now().UTC()})
}
