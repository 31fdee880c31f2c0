package watcher

import (
	"time"

	"dirwatch/internal/inotify"
)

// Channel is the notification primitive set the controller depends on.
// *inotify.Channel satisfies it.
type Channel interface {
	AddWatch(path string, mask uint32) (int32, error)
	RemoveWatch(wd int32) error
	Wait(timeout time.Duration) (bool, error)
	Read(buf []byte) (int, error)
	Close() error
}

// OpenFunc creates the Channel for one controller run.
type OpenFunc func() (Channel, error)

// OpenInotify opens a non-blocking inotify channel.
func OpenInotify() (Channel, error) {
	channel, err := inotify.Open(inotify.NonBlock)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

type EventKind int

const (
	Created EventKind = iota + 1
	Deleted
	MovedIn
	MovedOut
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case MovedIn:
		return "moved_in"
	case MovedOut:
		return "moved_out"
	default:
		return "unknown"
	}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(name string) (EventKind, bool) {
	for _, kind := range []EventKind{Created, Deleted, MovedIn, MovedOut} {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}

// Creates reports whether the kind brings an entry into the tree.
func (k EventKind) Creates() bool {
	return k == Created || k == MovedIn
}

// Removes reports whether the kind takes an entry out of the tree.
func (k EventKind) Removes() bool {
	return k == Deleted || k == MovedOut
}

// Event is a structural change under the watched root.
type Event struct {
	Kind       EventKind
	IsDir      bool
	Path       string
	Cookie     uint32
	OccurredAt time.Time
}

func (e Event) Type() string {
	return e.Kind.String()
}

func (e Event) Timestamp() time.Time {
	return e.OccurredAt
}

func (e Event) entryType() string {
	if e.IsDir {
		return "dir"
	}
	return "file"
}

// State is a WatchController lifecycle state.
type State int32

const (
	StateNew State = iota
	StateBootstrapping
	StateListening
	StateDraining
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateBootstrapping:
		return "bootstrapping"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
