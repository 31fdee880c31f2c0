package inotify

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	ErrClosed         = errors.New("inotify channel is closed")
	ErrWouldBlock     = errors.New("inotify read would block")
	ErrBufferTooSmall = errors.New("read buffer too small for next inotify event")
	ErrWatchLimit     = errors.New("inotify watch limit reached; increase fs.inotify.max_user_watches or fs.inotify.max_user_instances")
)

// Channel owns a single inotify file descriptor.
type Channel struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// Open creates an inotify instance. CloseExec is always added to flags.
func Open(flags int) (*Channel, error) {
	fd, err := unix.InotifyInit1(flags | CloseExec)
	if err != nil {
		return nil, translateLimit(os.NewSyscallError("inotify_init1", err))
	}
	return &Channel{fd: fd}, nil
}

// AddWatch subscribes path with mask and returns the kernel watch descriptor.
func (c *Channel) AddWatch(path string, mask uint32) (int32, error) {
	fd, err := c.descriptor()
	if err != nil {
		return -1, err
	}
	wd, err := unix.InotifyAddWatch(fd, path, mask)
	if err != nil {
		return -1, translateLimit(&os.PathError{Op: "inotify_add_watch", Path: path, Err: err})
	}
	return int32(wd), nil
}

// RemoveWatch drops the watch identified by wd.
func (c *Channel) RemoveWatch(wd int32) error {
	fd, err := c.descriptor()
	if err != nil {
		return err
	}
	if _, err := unix.InotifyRmWatch(fd, uint32(wd)); err != nil {
		return os.NewSyscallError("inotify_rm_watch", err)
	}
	return nil
}

// Wait blocks until the channel is readable or timeout expires. A timeout is
// reported as (false, nil).
func (c *Channel) Wait(timeout time.Duration) (bool, error) {
	fd, err := c.descriptor()
	if err != nil {
		return false, err
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return false, nil
	}
	revents := fds[0].Revents
	if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		return false, fmt.Errorf("poll inotify fd: revents 0x%x", revents)
	}
	return revents&(unix.POLLIN|unix.POLLHUP) != 0, nil
}

// Read fills buf with whole events. The kernel never splits an event across
// reads; when buf cannot hold the next event ErrBufferTooSmall is returned.
func (c *Channel) Read(buf []byte) (int, error) {
	fd, err := c.descriptor()
	if err != nil {
		return 0, err
	}
	n, err := unix.Read(fd, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, ErrWouldBlock
	case errors.Is(err, unix.EINVAL):
		return 0, fmt.Errorf("%w (%d bytes)", ErrBufferTooSmall, len(buf))
	default:
		return 0, os.NewSyscallError("read", err)
	}
}

// Close releases the descriptor. Closing twice is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := unix.Close(c.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

func (c *Channel) descriptor() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return -1, ErrClosed
	}
	return c.fd, nil
}

func translateLimit(err error) error {
	if errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EMFILE) {
		return fmt.Errorf("%w: %w", ErrWatchLimit, err)
	}
	return err
}
