package derive

import (
	"context"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

type fakeBatchProvider struct {
	origin  eth.L1BlockRef
	batches []Batch
}

func (p *fakeBatchProvider) Origin() eth.L1BlockRef {
	return p.origin
}

func (p *fakeBatchProvider) NextBatch(_ context.Context) (Batch, error) {
	if len(p.batches) == 0 {
		return nil, io.EOF
	}
	b := p.batches[0]
	p.batches = p.batches[1:]
	return b, nil
}

func TestBatchQueueNextBatch(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 10, MaxSequencerDrift: 600}
	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 10, Time: 100}
	parent := eth.L2BlockRef{Hash: common.Hash{0x01}, Number: 20, Time: 100, L1Origin: l1A.ID()}

	batch := &SingularBatch{
		ParentHash:   parent.Hash,
		EpochNum:     rollup.Epoch(l1A.Number),
		EpochHash:    l1A.Hash,
		Timestamp:    102,
		Transactions: []hexutil.Bytes{{0x02, 0x42}},
	}
	prev := &fakeBatchProvider{origin: l1A, batches: []Batch{batch}}
	bq := NewBatchQueue(testlog(), cfg, prev)
	ctx := context.Background()
	require.ErrorIs(t, bq.Reset(ctx, l1A, eth.SystemConfig{}), io.EOF)

	got, isLast, err := bq.NextBatch(ctx, parent)
	require.NoError(t, err)
	require.True(t, isLast)
	require.Equal(t, batch, got)

	// Upstream is drained and the sequence window is still open.
	next := eth.L2BlockRef{Hash: common.Hash{0x02}, Number: 21, Time: 102, L1Origin: l1A.ID()}
	_, _, err = bq.NextBatch(ctx, next)
	require.ErrorIs(t, err, io.EOF)
}

func TestBatchQueueInvalidBatchDropped(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 10, MaxSequencerDrift: 600}
	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 10, Time: 100}
	parent := eth.L2BlockRef{Hash: common.Hash{0x01}, Number: 20, Time: 100, L1Origin: l1A.ID()}

	stale := &SingularBatch{
		ParentHash:   parent.Hash,
		EpochNum:     rollup.Epoch(l1A.Number),
		EpochHash:    l1A.Hash,
		Timestamp:    parent.Time, // behind the safe head
		Transactions: []hexutil.Bytes{{0x02, 0x42}},
	}
	prev := &fakeBatchProvider{origin: l1A, batches: []Batch{stale}}
	bq := NewBatchQueue(testlog(), cfg, prev)
	ctx := context.Background()
	require.ErrorIs(t, bq.Reset(ctx, l1A, eth.SystemConfig{}), io.EOF)

	// The stale batch is consumed and dropped; upstream made progress so the
	// caller has to come back before the origin can advance.
	_, _, err := bq.NextBatch(ctx, parent)
	require.ErrorIs(t, err, NotEnoughData)
	_, _, err = bq.NextBatch(ctx, parent)
	require.ErrorIs(t, err, io.EOF)
}

func TestBatchQueueEmptyBatchGeneration(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 2, MaxSequencerDrift: 600}
	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 10, Time: 100}
	l1C := eth.L1BlockRef{Hash: common.Hash{0xc1}, Number: 12, Time: 120}
	parent := eth.L2BlockRef{Hash: common.Hash{0x01}, Number: 20, Time: 100, L1Origin: l1A.ID()}

	// The origin reached the end of A's sequence window without any batch.
	prev := &fakeBatchProvider{origin: l1C}
	bq := NewBatchQueue(testlog(), cfg, prev)
	ctx := context.Background()
	require.ErrorIs(t, bq.Reset(ctx, l1A, eth.SystemConfig{}), io.EOF)

	got, isLast, err := bq.NextBatch(ctx, parent)
	require.NoError(t, err)
	require.True(t, isLast)
	require.Equal(t, &SingularBatch{
		ParentHash: parent.Hash,
		EpochNum:   rollup.Epoch(l1A.Number),
		EpochHash:  l1A.Hash,
		Timestamp:  parent.Time + cfg.BlockTime,
	}, got)
	require.Empty(t, got.Transactions)
}

func TestBatchQueueOriginMismatchResets(t *testing.T) {
	cfg := &rollup.Config{BlockTime: 2, SeqWindowSize: 10, MaxSequencerDrift: 600}
	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 10, Time: 100}
	bq := NewBatchQueue(testlog(), cfg, &fakeBatchProvider{origin: eth.L1BlockRef{Number: 16}})
	ctx := context.Background()
	require.ErrorIs(t, bq.Reset(ctx, l1A, eth.SystemConfig{}), io.EOF)

	// A parent whose L1 origin is not tracked by the queue cannot be built on.
	parent := eth.L2BlockRef{Hash: common.Hash{0x01}, Time: 100, L1Origin: eth.BlockID{Hash: common.Hash{0x0f}, Number: 15}}
	_, _, err := bq.NextBatch(ctx, parent)
	require.ErrorIs(t, err, ErrReset)
}
