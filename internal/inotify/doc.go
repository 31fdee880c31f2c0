// Package inotify is a thin wrapper over the Linux inotify system calls.
//
// A Channel owns one inotify file descriptor. Nothing is bound or opened at
// package load time; callers create a Channel with Open and must Close it.
package inotify
