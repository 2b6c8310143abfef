package derive

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
)

// DataAvailabilitySource abstracts where the batcher data for an L1 block comes
// from: plain calldata, EIP-4844 blobs, or an alt-DA provider.
type DataAvailabilitySource interface {
	// OpenData does any initial data-fetching work and returns an iterator with the data.
	OpenData(ctx context.Context, ref eth.L1BlockRef, batcherAddr common.Address) (DataIter, error)
}

type NextBlockProvider interface {
	NextL1Block(context.Context) (eth.L1BlockRef, error)
	Origin() eth.L1BlockRef
	SystemConfig() eth.SystemConfig
}

// L1Retrieval pulls the next L1 block from the traversal stage and opens its
// batcher data for the frame queue below. One block is open at a time.
type L1Retrieval struct {
	log     log.Logger
	dataSrc DataAvailabilitySource
	prev    NextBlockProvider

	datas DataIter
}

var _ ResettableStage = (*L1Retrieval)(nil)

func NewL1Retrieval(log log.Logger, dataSrc DataAvailabilitySource, prev NextBlockProvider) *L1Retrieval {
	return &L1Retrieval{
		log:     log,
		dataSrc: dataSrc,
		prev:    prev,
	}
}

func (l1r *L1Retrieval) Origin() eth.L1BlockRef {
	return l1r.prev.Origin()
}

// NextData does an action in the L1 Retrieval stage
// If there is data, it pushes it to the next stage.
// If there is no more data open ourselves if we are closed or close ourselves if we are open
func (l1r *L1Retrieval) NextData(ctx context.Context) ([]byte, error) {
	if l1r.datas == nil {
		next, err := l1r.prev.NextL1Block(ctx)
		if err == io.EOF {
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}
		if l1r.datas, err = l1r.dataSrc.OpenData(ctx, next, l1r.prev.SystemConfig().BatcherAddr); err != nil {
			return nil, err
		}
	}

	// fetch next data item if it exists
	// once all data is processed, clear the data source to get the next L1 block to process
	data, err := l1r.datas.Next(ctx)
	if err == io.EOF {
		l1r.datas = nil
		return nil, io.EOF
	} else if err != nil {
		// CalldataSource appropriately wraps the error so avoid double wrapping errors here.
		return nil, err
	}
	return data, nil
}

// Reset drops the open data source and resumes with the given origin.
// Caution: the origin is not the origin of the last data; it is the origin of
// the safe head, and picking up from there re-serves data the downstream
// stages already consumed before the reset. That is fine: the channel bank
// rebuilds the channels from scratch, and stale batches are filtered by the
// batch queue.
func (l1r *L1Retrieval) Reset(ctx context.Context, base eth.L1BlockRef, sysCfg eth.SystemConfig) error {
	l1r.datas = nil
	l1r.log.Info("Reset of L1Retrieval done", "origin", base)
	return io.EOF
}
