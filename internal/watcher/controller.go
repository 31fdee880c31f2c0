package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"dirwatch/internal/event"
	"dirwatch/internal/fsutil"
	"dirwatch/internal/inotify"
	"dirwatch/internal/logging"
	"dirwatch/internal/metrics"
	"dirwatch/internal/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval  = time.Second
	DefaultBufferSize    = 64 * 1024
	DefaultMaxBufferSize = 1 << 20

	skipWarnInterval = time.Second
	skipWarnBurst    = 5
	recentEvents     = 32
)

type Options struct {
	// Root must be an absolute path to an existing directory.
	Root string
	// Open creates the notification channel. Defaults to OpenInotify.
	Open OpenFunc
	// PollInterval bounds how long one wait blocks, and so how quickly a
	// cancelled context is noticed.
	PollInterval  time.Duration
	BufferSize    int
	MaxBufferSize int
	// ResyncOnInvariant turns a delete for an unregistered directory into a
	// full resync instead of a fatal KindStateInvariant error.
	ResyncOnInvariant bool
	Logger            *logging.Logger
	// Bus receives every Event. When nil the controller owns a bus and closes
	// it on teardown.
	Bus     *event.Bus[Event]
	Metrics *metrics.Registry
}

// Controller keeps one watch on every directory under a root and turns
// kernel frames into Events.
type Controller struct {
	root              string
	open              OpenFunc
	pollInterval      time.Duration
	maxBufferSize     int
	resyncOnInvariant bool
	logger            *logging.Logger
	bus               *event.Bus[Event]
	ownsBus           bool
	metrics           *metrics.Registry
	skipLimiter       *rate.Limiter

	state    atomic.Int32
	registry atomic.Pointer[Registry]
	channel  Channel
	buf      []byte
	// skipped holds directories that could not be watched. A later delete for
	// one of them is expected and is not an invariant violation.
	skipped map[string]struct{}
}

func NewController(options Options) (*Controller, error) {
	if strings.TrimSpace(options.Root) == "" {
		return nil, newError(KindInitialization, "new controller", "", errors.New("root is required"))
	}
	if !filepath.IsAbs(options.Root) {
		return nil, newError(KindInitialization, "new controller", options.Root, errors.New("root must be absolute"))
	}
	if options.Open == nil {
		options.Open = OpenInotify
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.BufferSize <= 0 {
		options.BufferSize = DefaultBufferSize
	}
	if options.BufferSize < inotify.MaxFrameSize {
		options.BufferSize = inotify.MaxFrameSize
	}
	if options.MaxBufferSize <= 0 {
		options.MaxBufferSize = DefaultMaxBufferSize
	}
	if options.MaxBufferSize < options.BufferSize {
		options.MaxBufferSize = options.BufferSize
	}
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}

	controller := &Controller{
		root:              filepath.Clean(options.Root),
		open:              options.Open,
		pollInterval:      options.PollInterval,
		maxBufferSize:     options.MaxBufferSize,
		resyncOnInvariant: options.ResyncOnInvariant,
		logger:            options.Logger.Component("watcher"),
		bus:               options.Bus,
		metrics:           options.Metrics,
		skipLimiter:       rate.NewLimiter(rate.Every(skipWarnInterval), skipWarnBurst),
		buf:               make([]byte, options.BufferSize),
		skipped:           make(map[string]struct{}),
	}
	if controller.bus == nil {
		controller.bus = event.NewBus[Event](context.Background(), event.BusOptions{
			Name:        "watch_events",
			BlockOnFull: true,
			HistorySize: recentEvents,
			Registry:    options.Metrics,
		})
		controller.ownsBus = true
	}
	return controller, nil
}

func (c *Controller) Root() string {
	return c.root
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Subscribe returns a channel of Events and its cancel func. The channel is
// closed when the controller closes a bus it owns. An owned bus never drops
// events: a subscriber that falls behind stalls the control loop until it
// reads or cancels.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.bus.Subscribe()
}

// SubscribeKinds is Subscribe limited to the given kinds. With no kinds it
// delivers everything.
func (c *Controller) SubscribeKinds(kinds ...EventKind) (<-chan Event, func()) {
	if len(kinds) == 0 {
		return c.bus.Subscribe()
	}
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, kind.String())
	}
	return c.bus.SubscribeTypes(names...)
}

// Recent returns the last events published on a bus the controller owns,
// oldest first.
func (c *Controller) Recent() []Event {
	return c.bus.DumpHistory()
}

// Paths snapshots the watched directories. It is nil before bootstrap.
func (c *Controller) Paths() []string {
	registry := c.registry.Load()
	if registry == nil {
		return nil
	}
	return registry.Paths()
}

func (c *Controller) WatchCount() int {
	registry := c.registry.Load()
	if registry == nil {
		return 0
	}
	return registry.Len()
}

// Run bootstraps the watch tree and processes events until ctx is cancelled
// or a fatal error occurs. Cancellation returns nil. A controller runs once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateNew), int32(StateBootstrapping)) {
		return ErrClosed
	}
	c.logger.Info("watcher starting", map[string]string{logging.FieldPath: c.root})
	defer c.teardown()

	if err := c.bootstrap(ctx); err != nil {
		c.fail(err)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	for {
		c.setState(StateListening)
		ready, err := c.channel.Wait(c.pollInterval)
		if err != nil {
			err = newError(KindRead, "wait", c.root, err)
			c.fail(err)
			return err
		}
		if ctx.Err() != nil {
			c.logger.Info("watcher cancelled", map[string]string{
				"watches": strconv.Itoa(c.WatchCount()),
			})
			return nil
		}
		if !ready {
			continue
		}
		c.setState(StateDraining)
		if err := c.drain(ctx); err != nil {
			c.fail(err)
			return err
		}
	}
}

func (c *Controller) bootstrap(ctx context.Context) (err error) {
	ctx, span := otel.StartSpan(ctx, "watcher.bootstrap", attribute.String("dirwatch.root", c.root))
	defer func() { otel.EndSpan(span, err) }()

	channel, err := c.open()
	if err != nil {
		return newError(KindInitialization, "open channel", c.root, err)
	}
	c.channel = channel
	registry := NewRegistry(channel, c.logger, c.metrics)
	c.registry.Store(registry)

	if _, err := registry.Add(c.root); err != nil {
		return err
	}
	for path, walkErr := range Walk(c.root) {
		if ctx.Err() != nil {
			return nil
		}
		if walkErr != nil {
			return newError(KindWatch, "walk", path, walkErr)
		}
		if registry.Has(path) {
			continue
		}
		if _, err := registry.Add(path); err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int("dirwatch.watches", registry.Len()))
	c.logger.Info("bootstrap complete", map[string]string{
		logging.FieldPath: c.root,
		"watches":         strconv.Itoa(registry.Len()),
	})
	return nil
}

// drain reads one buffer of frames and applies them in order.
func (c *Controller) drain(ctx context.Context) error {
	n, err := c.read()
	if errors.Is(err, inotify.ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return newError(KindRead, "read", c.root, ErrChannelClosed)
	}

	frames, err := Decode(c.buf[:n])
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := c.dispatch(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

// read fills the buffer, doubling it while the kernel reports the next frame
// does not fit.
func (c *Controller) read() (int, error) {
	for {
		n, err := c.channel.Read(c.buf)
		if errors.Is(err, inotify.ErrBufferTooSmall) {
			if len(c.buf) >= c.maxBufferSize {
				return 0, newError(KindProtocol, "read", c.root, err)
			}
			size := min(len(c.buf)*2, c.maxBufferSize)
			c.buf = make([]byte, size)
			c.metrics.IncBufferGrow()
			c.logger.Debug("read buffer grown", map[string]string{"size": strconv.Itoa(size)})
			continue
		}
		if err != nil && !errors.Is(err, inotify.ErrWouldBlock) {
			return 0, newError(KindRead, "read", c.root, err)
		}
		return n, err
	}
}

func (c *Controller) dispatch(ctx context.Context, frame RawEvent) error {
	registry := c.registry.Load()
	if !tracked(frame) {
		return c.handleControl(ctx, frame)
	}

	base, err := registry.LookupByID(frame.WatchID)
	if err != nil {
		if registry.IsRetired(frame.WatchID) {
			c.logger.Debug("event for removed watch dropped", map[string]string{
				"wd":    strconv.Itoa(int(frame.WatchID)),
				"name":  frame.Name,
				"flags": strings.Join(inotify.FlagNames(frame.Mask), "|"),
			})
			return nil
		}
		return &Error{Kind: KindProtocol, Op: "dispatch", WatchID: frame.WatchID, Err: err}
	}

	ev, _ := ToEvent(frame, base)
	c.metrics.IncEvent(ev.Kind.String(), ev.entryType())
	if ev.IsDir {
		switch {
		case ev.Kind.Creates():
			c.subscribeTree(ctx, ev.Path)
		case ev.Kind.Removes():
			if err := c.unsubscribe(ctx, ev); err != nil {
				return err
			}
		}
	}
	c.publish(ev)
	return nil
}

// handleControl processes frames that carry no tracked change: queue
// overflow, dropped watches, and anything else the kernel reports.
func (c *Controller) handleControl(ctx context.Context, frame RawEvent) error {
	registry := c.registry.Load()
	switch {
	case frame.Has(inotify.Overflow):
		c.logger.Warn("event queue overflowed", map[string]string{logging.FieldPath: c.root})
		return c.resync(ctx, "overflow")
	case frame.Has(inotify.Ignored):
		if registry.isRoot(frame.WatchID, c.root) {
			registry.ignored(frame.WatchID)
			return &Error{Kind: KindWatch, Op: "watch root", Path: c.root, WatchID: frame.WatchID, Err: ErrRootRemoved}
		}
		switch registry.ignored(frame.WatchID) {
		case ignoredActive:
			c.logger.Debug("watch dropped by kernel", map[string]string{"wd": strconv.Itoa(int(frame.WatchID))})
		case ignoredUnknown:
			c.logger.Debug("ignored notice for unknown watch", map[string]string{"wd": strconv.Itoa(int(frame.WatchID))})
		}
		return nil
	default:
		c.logger.Debug("untracked event dropped", map[string]string{
			"wd":    strconv.Itoa(int(frame.WatchID)),
			"flags": strings.Join(inotify.FlagNames(frame.Mask), "|"),
		})
		return nil
	}
}

// subscribeTree watches path and every directory beneath it that is not
// already watched. Directories that cannot be watched are skipped.
func (c *Controller) subscribeTree(ctx context.Context, path string) int {
	registry := c.registry.Load()
	ctx, span := otel.StartSpan(ctx, "watcher.subscribe_tree", attribute.String("dirwatch.path", path))
	added := 0
	for dir, walkErr := range Walk(path) {
		if walkErr != nil {
			c.skip(ctx, dir, walkErr)
			continue
		}
		if registry.Has(dir) {
			continue
		}
		if _, err := registry.Add(dir); err != nil {
			c.skip(ctx, dir, err)
			continue
		}
		delete(c.skipped, dir)
		added++
	}
	span.SetAttributes(attribute.Int("dirwatch.added", added))
	otel.EndSpan(span, nil)
	return added
}

func (c *Controller) skip(ctx context.Context, path string, err error) {
	c.skipped[path] = struct{}{}
	c.metrics.IncWatchSkipped()
	otel.RecordSpanEvent(ctx, "watch.skipped", attribute.String("dirwatch.path", path))

	fields := map[string]string{
		logging.FieldPath:  path,
		logging.FieldError: err.Error(),
	}
	if c.skipLimiter.Allow() {
		c.logger.Warn("directory skipped", fields)
		return
	}
	c.logger.Debug("directory skipped", fields)
}

func (c *Controller) unsubscribe(ctx context.Context, ev Event) error {
	registry := c.registry.Load()
	if !registry.Has(ev.Path) {
		if _, ok := c.skipped[ev.Path]; ok {
			delete(c.skipped, ev.Path)
			return nil
		}
		violation := &Error{Kind: KindStateInvariant, Op: "unsubscribe", Path: ev.Path, Err: ErrUnknownWatch}
		if !c.resyncOnInvariant {
			return violation
		}
		c.logger.Warn("registry out of sync", map[string]string{
			logging.FieldPath:  ev.Path,
			logging.FieldError: violation.Error(),
		})
		return c.resync(ctx, "invariant")
	}

	var err error
	if ev.Kind == MovedOut {
		_, err = registry.RemoveTree(ev.Path)
	} else {
		err = registry.Remove(ev.Path)
	}
	c.forgetSkipped(ev.Path)
	if err != nil {
		c.logger.Warn("watch removal incomplete", map[string]string{
			logging.FieldPath:  ev.Path,
			logging.FieldError: err.Error(),
		})
	}
	return nil
}

func (c *Controller) forgetSkipped(path string) {
	for skipped := range c.skipped {
		if fsutil.IsWithin(path, skipped) {
			delete(c.skipped, skipped)
		}
	}
}

// resync rebuilds the registry from the filesystem: stale entries are dropped
// and missing directories are watched.
func (c *Controller) resync(ctx context.Context, reason string) (err error) {
	registry := c.registry.Load()
	ctx, span := otel.StartSpan(ctx, "watcher.resync",
		attribute.String("dirwatch.root", c.root),
		attribute.String("dirwatch.reason", reason),
	)
	defer func() { otel.EndSpan(span, err) }()
	c.metrics.IncResync()

	if info, statErr := os.Stat(c.root); statErr != nil || !info.IsDir() {
		return &Error{Kind: KindWatch, Op: "resync", Path: c.root, Err: multierr.Append(ErrRootRemoved, statErr)}
	}

	removed := 0
	for _, path := range registry.Paths() {
		if path == c.root {
			continue
		}
		if info, statErr := os.Lstat(path); statErr == nil && info.IsDir() {
			continue
		}
		if !registry.Has(path) {
			continue
		}
		count, removeErr := registry.RemoveTree(path)
		removed += count
		if removeErr != nil {
			c.logger.Warn("watch removal incomplete", map[string]string{
				logging.FieldPath:  path,
				logging.FieldError: removeErr.Error(),
			})
		}
	}
	clear(c.skipped)
	added := c.subscribeTree(ctx, c.root)

	span.SetAttributes(attribute.Int("dirwatch.removed", removed), attribute.Int("dirwatch.added", added))
	c.logger.Info("registry resynchronized", map[string]string{
		"reason":  reason,
		"added":   strconv.Itoa(added),
		"removed": strconv.Itoa(removed),
		"watches": strconv.Itoa(registry.Len()),
	})
	return nil
}

func (c *Controller) publish(ev Event) {
	if c.logger.Enabled(logging.LevelDebug) {
		c.logger.Debug("event", map[string]string{
			"kind":            ev.Kind.String(),
			"entry":           ev.entryType(),
			logging.FieldPath: ev.Path,
		})
	}
	c.bus.Publish(ev)
}

func (c *Controller) fail(err error) {
	c.logger.Error("watcher failed", map[string]string{
		logging.FieldPath:  c.root,
		logging.FieldError: err.Error(),
	})
	if !c.logger.Enabled(logging.LevelDebug) {
		return
	}
	for _, ev := range c.Recent() {
		c.logger.Debug("recent event", map[string]string{
			"kind":            ev.Kind.String(),
			"entry":           ev.entryType(),
			logging.FieldPath: ev.Path,
		})
	}
}

func (c *Controller) setState(next State) {
	previous := State(c.state.Swap(int32(next)))
	if previous != next {
		c.logger.Debug("state changed", map[string]string{
			"from": previous.String(),
			"to":   next.String(),
		})
	}
}

// teardown removes every watch and closes the channel. It runs on every exit
// path of Run, after a successful bootstrap or not.
func (c *Controller) teardown() {
	c.setState(StateClosing)
	var err error
	if registry := c.registry.Load(); registry != nil {
		err = multierr.Append(err, registry.CloseAll())
	}
	if c.channel != nil {
		if closeErr := c.channel.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close channel: %w", closeErr))
		}
	}
	if c.ownsBus {
		c.bus.Close()
	}
	if err != nil {
		c.logger.Warn("teardown incomplete", map[string]string{logging.FieldError: err.Error()})
	}
	c.setState(StateClosed)
	c.logger.Info("watcher stopped", map[string]string{logging.FieldPath: c.root})
}
