package watcher

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"dirwatch/internal/inotify"
)

// RawEvent is one inotify frame as read from the channel.
type RawEvent struct {
	WatchID int32
	Mask    uint32
	Cookie  uint32
	NameLen uint32
	Name    string
}

func (e RawEvent) Has(flag uint32) bool {
	return e.Mask&flag == flag
}

// Decode parses buf into frames. buf must hold whole frames only; a trailing
// partial header or a name running past the end fails with ErrShortRead and
// no frames are returned.
func Decode(buf []byte) ([]RawEvent, error) {
	events := make([]RawEvent, 0, len(buf)/inotify.HeaderSize)
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < inotify.HeaderSize {
			return nil, &Error{
				Kind: KindProtocol,
				Op:   "decode",
				Err:  fmt.Errorf("%w: %d header bytes at offset %d", ErrShortRead, len(buf)-offset, offset),
			}
		}
		header := buf[offset : offset+inotify.HeaderSize]
		raw := RawEvent{
			WatchID: int32(binary.NativeEndian.Uint32(header[0:4])),
			Mask:    binary.NativeEndian.Uint32(header[4:8]),
			Cookie:  binary.NativeEndian.Uint32(header[8:12]),
			NameLen: binary.NativeEndian.Uint32(header[12:16]),
		}
		offset += inotify.HeaderSize

		if uint64(raw.NameLen) > uint64(len(buf)-offset) {
			return nil, &Error{
				Kind:    KindProtocol,
				Op:      "decode",
				WatchID: raw.WatchID,
				Err:     fmt.Errorf("%w: name length %d with %d bytes left", ErrShortRead, raw.NameLen, len(buf)-offset),
			}
		}
		if raw.NameLen > 0 {
			name := buf[offset : offset+int(raw.NameLen)]
			if end := bytes.IndexByte(name, 0); end >= 0 {
				name = name[:end]
			}
			raw.Name = string(name)
			offset += int(raw.NameLen)
		}
		events = append(events, raw)
	}
	return events, nil
}

// ToEvent maps a tracked frame to an Event rooted at basePath. Frames outside
// the tracked set report false.
func ToEvent(raw RawEvent, basePath string) (Event, bool) {
	var kind EventKind
	switch {
	case raw.Has(inotify.Created):
		kind = Created
	case raw.Has(inotify.MovedTo):
		kind = MovedIn
	case raw.Has(inotify.Deleted):
		kind = Deleted
	case raw.Has(inotify.MovedFrom):
		kind = MovedOut
	default:
		return Event{}, false
	}

	path := basePath
	if raw.Name != "" {
		path = filepath.Join(basePath, raw.Name)
	}
	return Event{
		Kind:       kind,
		IsDir:      raw.Has(inotify.IsDir),
		Path:       path,
		Cookie:     raw.Cookie,
		OccurredAt: time.Now().UTC(),
	}, true
}

// tracked reports whether the frame maps to an Event.
func tracked(raw RawEvent) bool {
	return raw.Mask&(inotify.Created|inotify.MovedTo|inotify.Deleted|inotify.MovedFrom) != 0
}
