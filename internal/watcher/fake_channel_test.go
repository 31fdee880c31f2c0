package watcher

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"dirwatch/internal/inotify"
)

var errFakeClosed = errors.New("fake channel closed")

// fakeChannel hands out watch ids per path and replays queued reads. Each
// queued chunk is returned by exactly one Read.
type fakeChannel struct {
	mu        sync.Mutex
	nextID    int32
	byPath    map[string]int32
	removed   []int32
	chunks    [][]byte
	addErrs   map[string]error
	removeErr error
	readErr   error
	eof       bool
	closed    bool
	ready     chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		nextID:  1,
		byPath:  make(map[string]int32),
		addErrs: make(map[string]error),
		ready:   make(chan struct{}, 1),
	}
}

func (f *fakeChannel) open() (Channel, error) {
	return f, nil
}

func (f *fakeChannel) AddWatch(path string, mask uint32) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return -1, errFakeClosed
	}
	if err, ok := f.addErrs[path]; ok {
		return -1, err
	}
	if id, ok := f.byPath[path]; ok {
		return id, nil
	}
	id := f.nextID
	f.nextID++
	f.byPath[path] = id
	return id, nil
}

func (f *fakeChannel) RemoveWatch(wd int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFakeClosed
	}
	f.removed = append(f.removed, wd)
	for path, id := range f.byPath {
		if id == wd {
			delete(f.byPath, path)
		}
	}
	return f.removeErr
}

func (f *fakeChannel) Wait(timeout time.Duration) (bool, error) {
	if f.pending() {
		return true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.ready:
		return true, nil
	case <-timer.C:
		return f.pending(), nil
	}
}

func (f *fakeChannel) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errFakeClosed
	}
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.chunks) == 0 {
		if f.eof {
			return 0, nil
		}
		return 0, inotify.ErrWouldBlock
	}
	chunk := f.chunks[0]
	if len(chunk) > len(buf) {
		return 0, inotify.ErrBufferTooSmall
	}
	f.chunks = f.chunks[1:]
	return copy(buf, chunk), nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// push queues frames as a single read.
func (f *fakeChannel) push(frames ...[]byte) {
	var chunk []byte
	for _, frame := range frames {
		chunk = append(chunk, frame...)
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, chunk)
	f.mu.Unlock()
	f.signal()
}

func (f *fakeChannel) failReads(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.signal()
}

func (f *fakeChannel) closeStream() {
	f.mu.Lock()
	f.eof = true
	f.mu.Unlock()
	f.signal()
}

func (f *fakeChannel) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *fakeChannel) pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks) > 0 || f.readErr != nil || f.eof
}

func (f *fakeChannel) idFor(path string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byPath[path]
}

func (f *fakeChannel) removedIDs() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.removed...)
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// encodeFrame lays out one kernel frame with the name NUL padded to a
// multiple of the header size.
func encodeFrame(wd int32, mask, cookie uint32, name string) []byte {
	nameLen := 0
	if name != "" {
		nameLen = (len(name) + 1 + inotify.HeaderSize - 1) / inotify.HeaderSize * inotify.HeaderSize
	}
	frame := make([]byte, inotify.HeaderSize+nameLen)
	binary.NativeEndian.PutUint32(frame[0:4], uint32(wd))
	binary.NativeEndian.PutUint32(frame[4:8], mask)
	binary.NativeEndian.PutUint32(frame[8:12], cookie)
	binary.NativeEndian.PutUint32(frame[12:16], uint32(nameLen))
	copy(frame[inotify.HeaderSize:], name)
	return frame
}

func mkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
