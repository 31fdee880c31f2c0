package logging

import (
	"sync"

	"dirwatch/internal/buffer"
)

// LogBuffer keeps the most recent entries in memory. Tests read it to assert
// on what a component logged.
type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{
		entries: buffer.NewRing[LogEntry](size),
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries.Add(entry)
}

func (b *LogBuffer) List() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.List()
}

// Find returns entries whose message equals message.
func (b *LogBuffer) Find(message string) []LogEntry {
	var matched []LogEntry
	for _, entry := range b.List() {
		if entry.Message == message {
			matched = append(matched, entry)
		}
	}
	return matched
}
