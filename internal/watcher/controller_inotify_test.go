package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"dirwatch/internal/logging"
	"dirwatch/internal/metrics"

	"github.com/stretchr/testify/require"
)

func TestControllerWithKernelInotify(t *testing.T) {
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, "existing"))

	buffer := logging.NewLogBuffer(1024)
	controller, err := NewController(Options{
		Root:         root,
		PollInterval: 20 * time.Millisecond,
		Logger:       logging.NewLoggerWithOutput(buffer, logging.LevelDebug, nil),
		Metrics:      &metrics.Registry{},
	})
	require.NoError(t, err)
	events, _ := controller.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- controller.Run(ctx)
	}()
	waitFor(t, "listening", func() bool { return controller.State() == StateListening })

	nested := filepath.Join(root, "a", "b", "c")
	mkdirAll(t, nested)
	waitFor(t, "nested watches", func() bool { return slices.Contains(controller.Paths(), nested) })
	require.Equal(t, 5, controller.WatchCount())

	file := filepath.Join(nested, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	waitForEventMatching(t, events, func(ev Event) bool {
		return ev.Kind == Created && !ev.IsDir && ev.Path == file
	})

	if err := os.RemoveAll(filepath.Join(root, "a")); err != nil {
		t.Fatalf("remove tree: %v", err)
	}
	waitFor(t, "tree unwatched", func() bool { return controller.WatchCount() == 2 })
	require.Equal(t, []string{root, filepath.Join(root, "existing")}, controller.Paths())

	if err := os.Rename(filepath.Join(root, "existing"), filepath.Join(root, "renamed")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitFor(t, "rename tracked", func() bool {
		return slices.Equal(controller.Paths(), []string{root, filepath.Join(root, "renamed")})
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatalf("controller did not stop")
	}
	require.Equal(t, StateClosed, controller.State())
	require.NotEmpty(t, buffer.Find("bootstrap complete"))
}

func waitForEventMatching(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for matching event")
			return Event{}
		}
	}
}
