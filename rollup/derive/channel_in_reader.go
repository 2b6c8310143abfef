package derive

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// ChannelInReader reads batches from complete channel data.
// A channel payload is a zlib-compressed RLP stream of typed batch envelopes;
// batches are emitted strictly in encoded order, and a single undecodable
// batch only closes the current channel, never the pipeline.
type ChannelInReader struct {
	log log.Logger
	cfg *rollup.Config

	nextBatchFn func() (*BatchData, error)

	prev *ChannelBank
}

var _ ResettableStage = (*ChannelInReader)(nil)

func NewChannelInReader(log log.Logger, cfg *rollup.Config, prev *ChannelBank) *ChannelInReader {
	return &ChannelInReader{
		log:  log,
		cfg:  cfg,
		prev: prev,
	}
}

func (cr *ChannelInReader) Origin() eth.L1BlockRef {
	return cr.prev.Origin()
}

// WriteChannel starts reading batches from the given channel data.
func (cr *ChannelInReader) WriteChannel(data []byte) error {
	if f, err := BatchReader(bytes.NewBuffer(data)); err == nil {
		cr.nextBatchFn = f
		return nil
	} else {
		cr.log.Error("Error creating batch reader from channel data", "err", err)
		return err
	}
}

// NextChannel forces the next read to continue with the next channel,
// resetting any decoding/decompression state to a fresh start.
func (cr *ChannelInReader) NextChannel() {
	cr.nextBatchFn = nil
}

// NextBatch pulls out the next batch from the channel if it has one.
// It returns io.EOF when it cannot make any more progress with the current
// origin, and upstream needs to be pulled for more channel data.
func (cr *ChannelInReader) NextBatch(ctx context.Context) (Batch, error) {
	if cr.nextBatchFn == nil {
		if data, err := cr.prev.NextData(ctx); err == io.EOF {
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		} else {
			if err := cr.WriteChannel(data); err != nil {
				return nil, NewTemporaryError(err)
			}
		}
	}

	batchData, err := cr.nextBatchFn()
	if err == io.EOF {
		cr.NextChannel()
		return nil, NotEnoughData
	} else if err != nil {
		cr.log.Warn("failed to read batch from channel reader, skipping to next channel now", "err", err)
		cr.NextChannel()
		return nil, NotEnoughData
	}

	switch batchData.GetBatchType() {
	case SingularBatchType:
		singularBatch, ok := batchData.inner.(*SingularBatch)
		if !ok {
			return nil, NewCriticalError(fmt.Errorf("failed type assertion to SingularBatch"))
		}
		return singularBatch, nil
	case SpanBatchType:
		spanBatch, err := DeriveSpanBatch(batchData, cr.cfg.BlockTime, cr.cfg.Genesis.L2Time, cr.cfg.L2ChainID)
		if err != nil {
			cr.log.Warn("failed to derive span batch from batch data, skipping batch", "err", err)
			return nil, NotEnoughData
		}
		return spanBatch, nil
	default:
		// bad batch type; this is dropped, not fatal
		cr.log.Warn("skipping unknown batch type", "batch_type", batchData.GetBatchType())
		return nil, NotEnoughData
	}
}

func (cr *ChannelInReader) Reset(ctx context.Context, _ eth.L1BlockRef, _ eth.SystemConfig) error {
	cr.nextBatchFn = nil
	return io.EOF
}

// BatchReader provides a function that iteratively consumes batches from the
// reader. The channel data is zlib-compressed; the decompressed stream is
// capped at MaxRLPBytesPerChannel to protect against decompression bombs.
func BatchReader(r io.Reader) (func() (*BatchData, error), error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	// Setting max element size to the max channel size means the reader will
	// never error on an element that only exceeds the per-batch limit, but
	// total bytes read are still bounded.
	rlpReader := rlp.NewStream(zr, MaxRLPBytesPerChannel)
	// Read each batch iteratively
	return func() (*BatchData, error) {
		var batchData BatchData
		if err := rlpReader.Decode(&batchData); err != nil {
			return nil, err
		}
		return &batchData, nil
	}, nil
}
