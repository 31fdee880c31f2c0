package config

import (
	"fmt"
	"time"

	"dirwatch/internal/inotify"
	"dirwatch/internal/logging"

	"go.uber.org/multierr"
)

const (
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = time.Minute
)

// Validate reports every out-of-range setting at once.
func (s Settings) Validate() error {
	var err error
	if s.Watch.PollInterval < MinPollInterval || s.Watch.PollInterval > MaxPollInterval {
		err = multierr.Append(err, fmt.Errorf("watch.poll-interval %s outside [%s, %s]", s.Watch.PollInterval, MinPollInterval, MaxPollInterval))
	}
	if s.Watch.BufferSize < inotify.MaxFrameSize {
		err = multierr.Append(err, fmt.Errorf("watch.buffer-size %d below the largest event size %d", s.Watch.BufferSize, inotify.MaxFrameSize))
	}
	if s.Watch.MaxBufferSize < s.Watch.BufferSize {
		err = multierr.Append(err, fmt.Errorf("watch.max-buffer-size %d below watch.buffer-size %d", s.Watch.MaxBufferSize, s.Watch.BufferSize))
	}
	if _, ok := logging.ParseLevel(s.Log.Level); !ok {
		err = multierr.Append(err, fmt.Errorf("log.level %q is not one of debug, info, warning, error", s.Log.Level))
	}
	return err
}
