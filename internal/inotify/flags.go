package inotify

import "golang.org/x/sys/unix"

const (
	Created   uint32 = unix.IN_CREATE
	Deleted   uint32 = unix.IN_DELETE
	MovedFrom uint32 = unix.IN_MOVED_FROM
	MovedTo   uint32 = unix.IN_MOVED_TO
	IsDir     uint32 = unix.IN_ISDIR

	Modify   uint32 = unix.IN_MODIFY
	Ignored  uint32 = unix.IN_IGNORED
	Overflow uint32 = unix.IN_Q_OVERFLOW
	Unmount  uint32 = unix.IN_UNMOUNT
)

// WatchMask is the only event mask ever requested for a watch.
const WatchMask = Created | Deleted | IsDir | MovedTo | MovedFrom

// Open flags.
const (
	NonBlock  = unix.IN_NONBLOCK
	CloseExec = unix.IN_CLOEXEC
)

// HeaderSize is the size of the fixed part of a raw inotify event.
const HeaderSize = unix.SizeofInotifyEvent

// MaxFrameSize is the largest single event the kernel can emit.
const MaxFrameSize = HeaderSize + unix.NAME_MAX + 1

var flagNames = []struct {
	flag uint32
	name string
}{
	{unix.IN_ACCESS, "IN_ACCESS"},
	{unix.IN_MODIFY, "IN_MODIFY"},
	{unix.IN_ATTRIB, "IN_ATTRIB"},
	{unix.IN_CLOSE_WRITE, "IN_CLOSE_WRITE"},
	{unix.IN_CLOSE_NOWRITE, "IN_CLOSE_NOWRITE"},
	{unix.IN_OPEN, "IN_OPEN"},
	{unix.IN_MOVED_FROM, "IN_MOVED_FROM"},
	{unix.IN_MOVED_TO, "IN_MOVED_TO"},
	{unix.IN_CREATE, "IN_CREATE"},
	{unix.IN_DELETE, "IN_DELETE"},
	{unix.IN_DELETE_SELF, "IN_DELETE_SELF"},
	{unix.IN_MOVE_SELF, "IN_MOVE_SELF"},
	{unix.IN_UNMOUNT, "IN_UNMOUNT"},
	{unix.IN_Q_OVERFLOW, "IN_Q_OVERFLOW"},
	{unix.IN_IGNORED, "IN_IGNORED"},
	{unix.IN_ISDIR, "IN_ISDIR"},
}

// FlagNames lists the names of all flags set in mask, in bit order.
func FlagNames(mask uint32) []string {
	names := make([]string, 0, 2)
	for _, entry := range flagNames {
		if mask&entry.flag != 0 {
			names = append(names, entry.name)
		}
	}
	return names
}
