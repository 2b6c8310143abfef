package derive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxRLPBytesPerChannel is the maximum amount of bytes that will be read from
// a channel. This limit is set when decompressing a channel's payload to
// protect against decompression bombs.
const MaxRLPBytesPerChannel = 10_000_000

var (
	// DuplicateErr is returned when a newly read frame is already known
	DuplicateErr = errors.New("duplicate frame")
	// ErrChannelOutOfOrder is returned when a frame does not carry the next
	// expected frame number. The channel is closed as invalid; the failure is
	// local to the channel, not fatal to the pipeline.
	ErrChannelOutOfOrder = errors.New("frame out of order")
	// ErrChannelInvalid is returned when adding frames to a channel that was
	// already invalidated by an earlier out-of-order frame.
	ErrChannelInvalid = errors.New("channel is invalid")
)

// A Channel reassembles the byte stream of one channel id from frames.
// Frames must arrive strictly in frame-number order: an out-of-order frame
// invalidates the channel permanently, so that a malicious or corrupted data
// source can only poison its own channel id.
type Channel struct {
	// id of the channel
	id ChannelID

	// The L1 block number that the channel was opened at, used to time the channel out
	openBlock uint64

	// buf is the channel byte stream, assembled strictly in frame-number order
	buf bytes.Buffer

	// nextFrameNumber is the only frame number that will be accepted next
	nextFrameNumber uint16

	// true once the is-last frame has been added
	closed bool

	// true once an out-of-order or otherwise unacceptable frame was seen;
	// an invalid channel never becomes ready
	invalid bool

	highestL1InclusionBlock uint64
}

func NewChannel(id ChannelID, openBlock uint64) *Channel {
	return &Channel{
		id:        id,
		openBlock: openBlock,
	}
}

// AddFrame appends a frame to the channel byte stream.
// The frame must carry the channel's next expected frame number; anything else
// invalidates the channel and returns an error describing why.
func (ch *Channel) AddFrame(frame Frame, l1InclusionBlock uint64) error {
	if frame.ID != ch.id {
		return fmt.Errorf("frame id does not match channel id. Expected %v, got %v", ch.id, frame.ID)
	}
	if ch.invalid {
		return fmt.Errorf("%w: %v", ErrChannelInvalid, ch.id)
	}
	if ch.closed {
		ch.invalid = true
		return fmt.Errorf("cannot add frame %d to a closed channel %v", frame.FrameNumber, ch.id)
	}
	if frame.FrameNumber != ch.nextFrameNumber {
		ch.invalid = true
		if frame.FrameNumber < ch.nextFrameNumber {
			return fmt.Errorf("%w: frame %d of channel %v was already added", DuplicateErr, frame.FrameNumber, ch.id)
		}
		return fmt.Errorf("%w: expected frame %d of channel %v, got %d",
			ErrChannelOutOfOrder, ch.nextFrameNumber, ch.id, frame.FrameNumber)
	}

	ch.buf.Write(frame.Data)
	ch.nextFrameNumber++
	if frame.IsLast {
		ch.closed = true
	}
	if ch.highestL1InclusionBlock < l1InclusionBlock {
		ch.highestL1InclusionBlock = l1InclusionBlock
	}
	return nil
}

// ID returns the channel id
func (ch *Channel) ID() ChannelID {
	return ch.id
}

// OpenBlockNumber returns the number of the L1 block that contained
// the first frame for this channel.
func (ch *Channel) OpenBlockNumber() uint64 {
	return ch.openBlock
}

// HighestBlock returns the number of the last L1 block which affected this channel.
func (ch *Channel) HighestBlock() uint64 {
	return ch.highestL1InclusionBlock
}

// Size returns the current size of the channel including frame overhead.
func (ch *Channel) Size() uint64 {
	return uint64(ch.buf.Len()) + uint64(ch.nextFrameNumber)*frameOverhead
}

// IsInvalid returns true if the channel was poisoned by an unacceptable frame.
func (ch *Channel) IsInvalid() bool {
	return ch.invalid
}

// IsReady returns true iff the channel is complete and may be read.
// An invalidated channel is never ready, even if the missing frames arrive later.
func (ch *Channel) IsReady() bool {
	return ch.closed && !ch.invalid
}

// Reader returns an io.Reader over the channel data.
// This panics if it is called while `IsReady` is not true.
func (ch *Channel) Reader() io.Reader {
	if !ch.IsReady() {
		panic("dev error in channel.Reader. Must be called after the channel is ready.")
	}
	return bytes.NewReader(ch.buf.Bytes())
}

// frameOverhead approximates the bookkeeping cost of one frame, for memory accounting.
const frameOverhead = 200
