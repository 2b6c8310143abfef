package derive

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
)

type NextDataProvider interface {
	NextData(ctx context.Context) ([]byte, error)
	Origin() eth.L1BlockRef
}

// FrameQueue parses every batcher transaction payload into frames and serves
// them one at a time. Parsing is all-or-nothing per payload: a malformed
// payload yields no frames at all, but never an error past this stage.
type FrameQueue struct {
	log    log.Logger
	frames []Frame
	prev   NextDataProvider
}

var _ ResettableStage = (*FrameQueue)(nil)

func NewFrameQueue(log log.Logger, prev NextDataProvider) *FrameQueue {
	return &FrameQueue{
		log:  log,
		prev: prev,
	}
}

func (fq *FrameQueue) Origin() eth.L1BlockRef {
	return fq.prev.Origin()
}

func (fq *FrameQueue) NextFrame(ctx context.Context) (Frame, error) {
	// Find more frames if we need to
	if len(fq.frames) == 0 {
		if data, err := fq.prev.NextData(ctx); err != nil {
			return Frame{}, err
		} else {
			if new, err := ParseFrames(data); err == nil {
				fq.frames = append(fq.frames, new...)
			} else {
				fq.log.Warn("Failed to parse frames", "origin", fq.prev.Origin(), "err", err)
			}
		}
	}
	// If we did not add more frames but still have more data, retry this function to keep parsing
	if len(fq.frames) == 0 {
		return Frame{}, NotEnoughData
	}

	ret := fq.frames[0]
	fq.frames = fq.frames[1:]
	return ret, nil
}

func (fq *FrameQueue) Reset(_ context.Context, _ eth.L1BlockRef, _ eth.SystemConfig) error {
	fq.frames = fq.frames[:0]
	return io.EOF
}
