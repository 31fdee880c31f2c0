package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	watchesActive  atomic.Int64
	watchesAdded   atomic.Int64
	watchesRemoved atomic.Int64
	watchesSkipped atomic.Int64
	resyncs        atomic.Int64
	bufferGrows    atomic.Int64
	events         sync.Map
	busPublished   sync.Map
	busDropped     sync.Map
}

var Default = &Registry{}

func (r *Registry) SetWatchesActive(count int) {
	if r == nil {
		return
	}
	r.watchesActive.Store(int64(count))
}

func (r *Registry) IncWatchAdded() {
	if r == nil {
		return
	}
	r.watchesAdded.Add(1)
}

func (r *Registry) IncWatchRemoved() {
	if r == nil {
		return
	}
	r.watchesRemoved.Add(1)
}

func (r *Registry) IncWatchSkipped() {
	if r == nil {
		return
	}
	r.watchesSkipped.Add(1)
}

func (r *Registry) IncResync() {
	if r == nil {
		return
	}
	r.resyncs.Add(1)
}

func (r *Registry) IncBufferGrow() {
	if r == nil {
		return
	}
	r.bufferGrows.Add(1)
}

// IncEvent counts a decoded event by kind and entry type ("file" or "dir").
func (r *Registry) IncEvent(kind, entry string) {
	if r == nil {
		return
	}
	counter(&r.events, kind+"\x00"+entry).Add(1)
}

func (r *Registry) IncEventPublished(bus string) {
	if r == nil {
		return
	}
	counter(&r.busPublished, bus).Add(1)
}

func (r *Registry) IncEventDropped(bus string) {
	if r == nil {
		return
	}
	counter(&r.busDropped, bus).Add(1)
}

// Snapshot is a point-in-time copy of the scalar counters.
type Snapshot struct {
	WatchesActive  int64
	WatchesAdded   int64
	WatchesRemoved int64
	WatchesSkipped int64
	Resyncs        int64
	BufferGrows    int64
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		WatchesActive:  r.watchesActive.Load(),
		WatchesAdded:   r.watchesAdded.Load(),
		WatchesRemoved: r.watchesRemoved.Load(),
		WatchesSkipped: r.watchesSkipped.Load(),
		Resyncs:        r.resyncs.Load(),
		BufferGrows:    r.bufferGrows.Load(),
	}
}

// EventCount returns the number of events recorded for kind and entry.
func (r *Registry) EventCount(kind, entry string) int64 {
	if r == nil {
		return 0
	}
	value, ok := r.events.Load(kind + "\x00" + entry)
	if !ok {
		return 0
	}
	return value.(*atomic.Int64).Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeGauge(writer, "dirwatch_watches_active", "Directories currently watched", r.watchesActive.Load())
	writeCounter(writer, "dirwatch_watches_added_total", "Watches added", r.watchesAdded.Load())
	writeCounter(writer, "dirwatch_watches_removed_total", "Watches removed", r.watchesRemoved.Load())
	writeCounter(writer, "dirwatch_watch_skipped_total", "Directories skipped during subtree resync", r.watchesSkipped.Load())
	writeCounter(writer, "dirwatch_resyncs_total", "Full registry resynchronizations", r.resyncs.Load())
	writeCounter(writer, "dirwatch_buffer_grows_total", "Read buffer enlargements", r.bufferGrows.Load())

	writeHelp(writer, "dirwatch_events_total", "Decoded structural events")
	fmt.Fprintln(writer, "# TYPE dirwatch_events_total counter")
	for _, key := range sortedKeys(&r.events) {
		kind, entry, _ := strings.Cut(key, "\x00")
		fmt.Fprintf(writer, "dirwatch_events_total{kind=%s,entry=%s} %d\n", formatLabel(kind), formatLabel(entry), counter(&r.events, key).Load())
	}

	writeHelp(writer, "dirwatch_bus_published_total", "Events published on a bus")
	fmt.Fprintln(writer, "# TYPE dirwatch_bus_published_total counter")
	for _, key := range sortedKeys(&r.busPublished) {
		fmt.Fprintf(writer, "dirwatch_bus_published_total{bus=%s} %d\n", formatLabel(key), counter(&r.busPublished, key).Load())
	}

	writeHelp(writer, "dirwatch_bus_dropped_total", "Events dropped for slow subscribers")
	fmt.Fprintln(writer, "# TYPE dirwatch_bus_dropped_total counter")
	for _, key := range sortedKeys(&r.busDropped) {
		fmt.Fprintf(writer, "dirwatch_bus_dropped_total{bus=%s} %d\n", formatLabel(key), counter(&r.busDropped, key).Load())
	}
	return nil
}

func counter(values *sync.Map, key string) *atomic.Int64 {
	value, _ := values.LoadOrStore(key, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func sortedKeys(values *sync.Map) []string {
	var keys []string
	values.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			keys = append(keys, name)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func writeGauge(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
