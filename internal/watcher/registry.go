package watcher

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"dirwatch/internal/fsutil"
	"dirwatch/internal/inotify"
	"dirwatch/internal/logging"
	"dirwatch/internal/metrics"

	"go.uber.org/multierr"
)

// Handle is one active watch on a directory.
type Handle struct {
	ID   int32
	Path string

	channel Channel
}

// Channel returns the notification channel that owns the watch.
func (h *Handle) Channel() Channel {
	return h.channel
}

// Registry maps watched paths to kernel watch ids and back. The two maps are
// always exact inverses. Mutation is expected from a single goroutine; the
// lock exists so other goroutines can take snapshots.
type Registry struct {
	mu      sync.RWMutex
	channel Channel
	byID    map[int32]*Handle
	byPath  map[string]int32
	// retired holds ids we removed whose IN_IGNORED has not arrived yet.
	retired map[int32]string
	// orphaned holds registered ids the kernel already dropped.
	orphaned map[int32]struct{}
	logger   *logging.Logger
	metrics  *metrics.Registry
}

func NewRegistry(channel Channel, logger *logging.Logger, registry *metrics.Registry) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		channel:  channel,
		byID:     make(map[int32]*Handle),
		byPath:   make(map[string]int32),
		retired:  make(map[int32]string),
		orphaned: make(map[int32]struct{}),
		logger:   logger,
		metrics:  registry,
	}
}

// Add watches path with inotify.WatchMask.
func (r *Registry) Add(path string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[path]; exists {
		return nil, fmt.Errorf("add %q: %w", path, ErrDuplicateWatch)
	}
	id, err := r.channel.AddWatch(path, inotify.WatchMask)
	if err != nil {
		return nil, newError(KindWatch, "add watch", path, err)
	}
	if existing, ok := r.byID[id]; ok {
		return nil, &Error{
			Kind:    KindWatch,
			Op:      "add watch",
			Path:    path,
			WatchID: id,
			Err:     fmt.Errorf("%w (%s)", ErrAliasedWatch, existing.Path),
		}
	}
	delete(r.retired, id)

	handle := &Handle{ID: id, Path: path, channel: r.channel}
	r.byID[id] = handle
	r.byPath[path] = id
	r.metrics.IncWatchAdded()
	r.metrics.SetWatchesActive(len(r.byID))
	r.logger.Debug("watch added", map[string]string{
		logging.FieldPath: path,
		"wd":              strconv.Itoa(int(id)),
		"active_watches":  strconv.Itoa(len(r.byID)),
	})
	return handle, nil
}

// Remove drops the watch for path. The local entries are removed even when
// the kernel call fails; that failure is still returned.
func (r *Registry) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(path)
}

func (r *Registry) removeLocked(path string) error {
	id, ok := r.byPath[path]
	if !ok {
		return fmt.Errorf("remove %q: %w", path, ErrUnknownWatch)
	}

	var err error
	if _, gone := r.orphaned[id]; gone {
		delete(r.orphaned, id)
	} else {
		err = r.channel.RemoveWatch(id)
		r.retired[id] = path
	}
	delete(r.byID, id)
	delete(r.byPath, path)
	r.metrics.IncWatchRemoved()
	r.metrics.SetWatchesActive(len(r.byID))

	fields := map[string]string{
		logging.FieldPath: path,
		"wd":              strconv.Itoa(int(id)),
		"active_watches":  strconv.Itoa(len(r.byID)),
	}
	if err != nil {
		fields[logging.FieldError] = err.Error()
		r.logger.Warn("watch remove failed", fields)
		return &Error{Kind: KindWatch, Op: "remove watch", Path: path, WatchID: id, Err: err}
	}
	r.logger.Debug("watch removed", fields)
	return nil
}

// RemoveTree removes path and every registered descendant, deepest first.
// It returns the number of entries removed.
func (r *Registry) RemoveTree(path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []string
	for candidate := range r.byPath {
		if fsutil.IsWithin(path, candidate) {
			targets = append(targets, candidate)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(targets)))

	var err error
	for _, target := range targets {
		err = multierr.Append(err, r.removeLocked(target))
	}
	return len(targets), err
}

func (r *Registry) LookupByID(id int32) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byID[id]
	if !ok {
		return "", fmt.Errorf("lookup wd %d: %w", id, ErrUnknownWatch)
	}
	return handle.Path, nil
}

func (r *Registry) LookupByPath(path string) (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPath[path]
	if !ok {
		return 0, fmt.Errorf("lookup %q: %w", path, ErrUnknownWatch)
	}
	return id, nil
}

func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[path]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Paths returns the watched paths in lexical order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// IsRetired reports whether id belonged to a watch we already removed.
func (r *Registry) IsRetired(id int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.retired[id]
	return ok
}

type ignoreOutcome int

const (
	ignoredUnknown ignoreOutcome = iota
	ignoredRetired
	ignoredActive
)

// ignored records that the kernel dropped watch id (IN_IGNORED).
func (r *Registry) ignored(id int32) ignoreOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.retired[id]; ok {
		delete(r.retired, id)
		return ignoredRetired
	}
	if _, ok := r.byID[id]; ok {
		r.orphaned[id] = struct{}{}
		return ignoredActive
	}
	return ignoredUnknown
}

// CloseAll removes every watch. Individual failures are collected and do not
// stop the sweep.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for id, handle := range r.byID {
		if _, gone := r.orphaned[id]; gone {
			continue
		}
		if removeErr := r.channel.RemoveWatch(id); removeErr != nil {
			err = multierr.Append(err, &Error{Kind: KindWatch, Op: "remove watch", Path: handle.Path, WatchID: id, Err: removeErr})
		}
	}
	removed := len(r.byID)
	r.byID = make(map[int32]*Handle)
	r.byPath = make(map[string]int32)
	r.retired = make(map[int32]string)
	r.orphaned = make(map[int32]struct{})
	r.metrics.SetWatchesActive(0)
	r.logger.Debug("watches closed", map[string]string{
		"count": strconv.Itoa(removed),
	})
	return err
}

func (r *Registry) isRoot(id int32, root string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byID[id]
	return ok && handle.Path == root
}
