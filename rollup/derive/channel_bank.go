package derive

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// ChannelBank buffers channel frames and emits full channel data in
// first-fully-received order.
//
// It is a pull-based stage: downstream asks for the next channel's raw data,
// and the bank in turn pulls frames from the frame queue, one L1 data
// transaction at a time, until a channel completes or the origin is drained.
//
// Channels are registered as they are seen, and timed out once their first
// frame is older than the channel timeout, counted in L1 blocks. An invalid
// channel (out-of-order frame) stays registered until timeout so that late
// frames for it keep being swallowed instead of opening a fresh channel.
type ChannelBank struct {
	log  log.Logger
	cfg  *rollup.Config
	prev NextFrameProvider

	channels     map[ChannelID]*Channel // channels by ID
	channelQueue []ChannelID            // channels in first-seen order
}

var _ ResettableStage = (*ChannelBank)(nil)

// NextFrameProvider is the upstream of the channel bank: a stage yielding
// frames one at a time, in L1 order.
type NextFrameProvider interface {
	NextFrame(ctx context.Context) (Frame, error)
	Origin() eth.L1BlockRef
}

func NewChannelBank(log log.Logger, cfg *rollup.Config, prev NextFrameProvider) *ChannelBank {
	return &ChannelBank{
		log:      log,
		cfg:      cfg,
		prev:     prev,
		channels: make(map[ChannelID]*Channel),
	}
}

func (cb *ChannelBank) Origin() eth.L1BlockRef {
	return cb.prev.Origin()
}

// prune drops every channel whose first frame has aged past the channel
// timeout. This bounds memory: an abandoned channel can never grow forever.
func (cb *ChannelBank) prune(origin eth.L1BlockRef) {
	remaining := cb.channelQueue[:0]
	for _, chID := range cb.channelQueue {
		ch := cb.channels[chID]
		if ch.OpenBlockNumber()+cb.cfg.ChannelTimeout < origin.Number {
			cb.log.Info("channel timed out", "channel", chID, "open_block", ch.OpenBlockNumber(), "origin", origin.Number)
			delete(cb.channels, chID)
			continue
		}
		remaining = append(remaining, chID)
	}
	cb.channelQueue = remaining
}

// IngestFrame adds one frame to the bank. Frame-level failures are absorbed
// here: they invalidate at most the frame's own channel.
func (cb *ChannelBank) IngestFrame(frame Frame) {
	origin := cb.Origin()
	lgr := cb.log.New("origin", origin, "channel", frame.ID, "frame_number", frame.FrameNumber, "length", len(frame.Data))

	currentCh, ok := cb.channels[frame.ID]
	if !ok {
		// Channels are registered on the first observed frame, whatever its
		// number: a channel that starts mid-stream is invalid from that frame
		// on, and must stay invalid even if frame 0 shows up later.
		currentCh = NewChannel(frame.ID, origin.Number)
		cb.channels[frame.ID] = currentCh
		cb.channelQueue = append(cb.channelQueue, frame.ID)
		lgr.Debug("created new channel")
	}

	if err := currentCh.AddFrame(frame, origin.Number); err != nil {
		lgr.Warn("failed to ingest frame into channel", "err", err)
		return
	}
	lgr.Debug("ingested frame into channel")
}

// Read returns the raw data of the first channel to have fully arrived, if any.
// Note that the first fully-received channel is not necessarily the first-opened
// channel. Invalid and timed-out channels are skipped.
// It returns io.EOF if no channel is ready yet.
func (cb *ChannelBank) Read() (data []byte, err error) {
	for i, chID := range cb.channelQueue {
		ch := cb.channels[chID]
		if !ch.IsReady() {
			continue
		}
		delete(cb.channels, chID)
		cb.channelQueue = append(cb.channelQueue[:i], cb.channelQueue[i+1:]...)
		r := ch.Reader()
		data, err = io.ReadAll(r)
		if err != nil {
			// The reader is over in-memory data, a read failure means the
			// channel content was unusable; drop it and move on.
			cb.log.Warn("failed to read channel data", "channel", chID, "err", err)
			return nil, io.EOF
		}
		return data, nil
	}
	return nil, io.EOF
}

// NextData pulls the next complete channel's raw bytes.
// It returns io.EOF when the bank needs new L1 data before anything can complete.
func (cb *ChannelBank) NextData(ctx context.Context) ([]byte, error) {
	// Do the read from the channel bank first
	data, err := cb.Read()
	if err == io.EOF {
		// continue - We will attempt to load data into the channel bank
	} else if err != nil {
		return nil, err
	} else {
		return data, nil
	}

	// Then load additional data into the channel bank
	if frame, err := cb.prev.NextFrame(ctx); err == io.EOF {
		return nil, io.EOF
	} else if err != nil {
		return nil, err
	} else {
		cb.prune(cb.Origin())
		cb.IngestFrame(frame)
	}

	// Immediately forward the NotEnoughData signal: something was consumed
	// from upstream, so the caller must come back before the next L1 block.
	return nil, NotEnoughData
}

func (cb *ChannelBank) Reset(ctx context.Context, base eth.L1BlockRef, _ eth.SystemConfig) error {
	cb.channels = make(map[ChannelID]*Channel)
	cb.channelQueue = cb.channelQueue[:0]
	return io.EOF
}
