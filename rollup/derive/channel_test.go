package derive

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelAssembly(t *testing.T) {
	id := ChannelID{0xaa}
	ch := NewChannel(id, 100)

	require.NoError(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, Data: []byte("hello ")}, 100))
	require.False(t, ch.IsReady())
	require.NoError(t, ch.AddFrame(Frame{ID: id, FrameNumber: 1, Data: []byte("world"), IsLast: true}, 101))
	require.True(t, ch.IsReady())
	require.Equal(t, uint64(100), ch.OpenBlockNumber())
	require.Equal(t, uint64(101), ch.HighestBlock())

	data, err := io.ReadAll(ch.Reader())
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestChannelWrongID(t *testing.T) {
	ch := NewChannel(ChannelID{0xaa}, 0)
	err := ch.AddFrame(Frame{ID: ChannelID{0xbb}, FrameNumber: 0}, 0)
	require.ErrorContains(t, err, "frame id does not match channel id")
	// A mismatched id is the caller's routing mistake, not a poisoned channel.
	require.False(t, ch.IsInvalid())
}

func TestChannelOutOfOrder(t *testing.T) {
	id := ChannelID{0x01}
	ch := NewChannel(id, 0)
	require.ErrorIs(t, ch.AddFrame(Frame{ID: id, FrameNumber: 1}, 0), ErrChannelOutOfOrder)
	require.True(t, ch.IsInvalid())

	// The missing frame arriving late must not revive the channel.
	require.ErrorIs(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, IsLast: true}, 0), ErrChannelInvalid)
	require.False(t, ch.IsReady())
}

func TestChannelDuplicateFrame(t *testing.T) {
	id := ChannelID{0x02}
	ch := NewChannel(id, 0)
	require.NoError(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, Data: []byte("a")}, 0))
	require.ErrorIs(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, Data: []byte("a")}, 0), DuplicateErr)
	require.True(t, ch.IsInvalid())
}

func TestChannelFrameAfterClose(t *testing.T) {
	id := ChannelID{0x03}
	ch := NewChannel(id, 0)
	require.NoError(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, IsLast: true}, 0))
	require.True(t, ch.IsReady())

	require.ErrorContains(t, ch.AddFrame(Frame{ID: id, FrameNumber: 1}, 0), "closed channel")
	require.True(t, ch.IsInvalid())
	require.False(t, ch.IsReady())
}

func TestChannelSize(t *testing.T) {
	id := ChannelID{0x04}
	ch := NewChannel(id, 0)
	require.Zero(t, ch.Size())
	require.NoError(t, ch.AddFrame(Frame{ID: id, FrameNumber: 0, Data: make([]byte, 50)}, 0))
	require.Equal(t, uint64(50+frameOverhead), ch.Size())
}
