package watcher

import (
	"testing"

	"dirwatch/internal/inotify"

	"github.com/stretchr/testify/require"
)

func TestDecodeCreatedDirectory(t *testing.T) {
	buf := encodeFrame(1, inotify.Created|inotify.IsDir, 0, "sub")
	require.Len(t, buf, 32)

	frames, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, "sub", frames[0].Name)
	require.EqualValues(t, 16, frames[0].NameLen)

	ev, ok := ToEvent(frames[0], "/w")
	require.True(t, ok)
	require.Equal(t, Created, ev.Kind)
	require.True(t, ev.IsDir)
	require.Equal(t, "/w/sub", ev.Path)
}

func TestDecodeMultipleFrames(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeFrame(1, inotify.MovedFrom, 7, "old.txt")...)
	buf = append(buf, encodeFrame(2, inotify.MovedTo, 7, "new.txt")...)
	buf = append(buf, encodeFrame(3, inotify.Ignored, 0, "")...)

	frames, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	out, ok := ToEvent(frames[0], "/w/a")
	require.True(t, ok)
	require.Equal(t, MovedOut, out.Kind)
	require.EqualValues(t, 7, out.Cookie)

	in, ok := ToEvent(frames[1], "/w/b")
	require.True(t, ok)
	require.Equal(t, MovedIn, in.Kind)
	require.Equal(t, "/w/b/new.txt", in.Path)

	require.Empty(t, frames[2].Name)
	require.False(t, tracked(frames[2]))
}

func TestDecodeUntrackedFrameYieldsNoEvent(t *testing.T) {
	frames, err := Decode(encodeFrame(1, inotify.Modify, 0, "file"))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	_, ok := ToEvent(frames[0], "/w")
	require.False(t, ok)
	require.False(t, tracked(frames[0]))
}

func TestDecodeShortRead(t *testing.T) {
	full := encodeFrame(1, inotify.Created, 0, "file")

	cases := map[string][]byte{
		"partial header": full[:inotify.HeaderSize-4],
		"truncated name": full[:len(full)-1],
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			frames, err := Decode(buf)
			require.Nil(t, frames)
			require.ErrorIs(t, err, ErrShortRead)
			require.True(t, IsKind(err, KindProtocol))
		})
	}
}

func TestDecodeEmptyBuffer(t *testing.T) {
	frames, err := Decode(nil)
	require.NoError(t, err)
	require.Empty(t, frames)
}
