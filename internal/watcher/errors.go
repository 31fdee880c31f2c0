package watcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrDuplicateWatch = errors.New("path is already watched")
	ErrUnknownWatch   = errors.New("watch is not registered")
	ErrAliasedWatch   = errors.New("kernel returned a watch id already registered for another path")
	ErrShortRead      = errors.New("buffer ends inside an event frame")
	ErrChannelClosed  = errors.New("notification channel reached end of stream")
	ErrRootRemoved    = errors.New("watched root was removed")
	ErrClosed         = errors.New("controller is closed")
)

// Kind classifies fatal and recoverable controller failures.
type Kind int

const (
	KindInitialization Kind = iota + 1
	KindWatch
	KindRead
	KindProtocol
	KindStateInvariant
)

func (k Kind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindWatch:
		return "watch"
	case KindRead:
		return "read"
	case KindProtocol:
		return "protocol"
	case KindStateInvariant:
		return "state invariant"
	default:
		return "unknown"
	}
}

// Error is returned by the registry and controller for every failure that
// carries a Kind.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	WatchID int32
	Err     error
}

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(e.Kind.String())
	builder.WriteString(" error")
	if e.Op != "" {
		builder.WriteString(" in ")
		builder.WriteString(e.Op)
	}
	if e.Path != "" {
		builder.WriteString(" path=")
		builder.WriteString(strconv.Quote(e.Path))
	}
	if e.WatchID != 0 {
		fmt.Fprintf(&builder, " wd=%d", e.WatchID)
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err, or any error it wraps, is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if !errors.As(err, &target) {
		return false
	}
	return target.Kind == kind
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
