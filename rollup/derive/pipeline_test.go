package derive

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// TestPipelineDerivesBatch drives the full stage chain against a single L1
// block carrying one batcher transaction, from calldata to payload attributes.
func TestPipelineDerivesBatch(t *testing.T) {
	batcherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	batcherAddr := crypto.PubkeyToAddress(batcherKey.PublicKey)

	cfg := &rollup.Config{
		BlockTime:         2,
		SeqWindowSize:     100,
		MaxSequencerDrift: 600,
		ChannelTimeout:    10,
		L1ChainID:         big.NewInt(900),
		BatchInboxAddress: common.HexToAddress("0xff00000000000000000000000000000000000042"),
	}

	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 10, Time: 100}
	parent := eth.L2BlockRef{
		Hash:           common.Hash{0x02},
		Number:         20,
		Time:           100,
		L1Origin:       l1A.ID(),
		SequenceNumber: 1,
	}
	batch := &SingularBatch{
		ParentHash:   parent.Hash,
		EpochNum:     rollup.Epoch(l1A.Number),
		EpochHash:    l1A.Hash,
		Timestamp:    102,
		Transactions: []hexutil.Bytes{{0x02, 0xaa, 0xbb}},
	}

	// Pack the batch into a single closed frame in one batcher transaction.
	frame := Frame{ID: ChannelID{0x42}, FrameNumber: 0, Data: encodeChannel(t, batch), IsLast: true}
	payload := framesToPayload(t, frame)
	batcherTx, err := types.SignNewTx(batcherKey, cfg.L1Signer(), &types.DynamicFeeTx{
		ChainID:   cfg.L1ChainID,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       210000,
		To:        &cfg.BatchInboxAddress,
		Data:      payload,
	})
	require.NoError(t, err)

	l1Info := &fakeBlockInfo{
		hash:      l1A.Hash,
		number:    l1A.Number,
		time:      l1A.Time,
		mixDigest: common.Hash{0x77},
		baseFee:   big.NewInt(7),
	}
	l1 := &fakeL1Fetcher{
		refs:  map[uint64]eth.L1BlockRef{l1A.Number: l1A},
		infos: map[common.Hash]eth.BlockInfo{l1A.Hash: l1Info},
		txs:   map[common.Hash]types.Transactions{l1A.Hash: {batcherTx}},
	}
	sysCfg := eth.SystemConfig{BatcherAddr: batcherAddr, GasLimit: 30_000_000}
	l2 := &fakeSysCfgFetcher{cfg: sysCfg}

	dp := NewDerivationPipeline(testlog(), cfg, l1, nil, nil, l2)
	dp.Reset(l1A, sysCfg)
	require.False(t, dp.ConfirmReset())

	ctx := context.Background()
	var attrs *eth.PayloadAttributes
	for i := 0; i < 100; i++ {
		out, err := dp.Step(ctx, parent)
		if out != nil {
			attrs = out
			break
		}
		if errors.Is(err, NotEnoughData) || err == io.EOF {
			continue
		}
		require.NoError(t, err)
	}
	require.NotNil(t, attrs, "pipeline must derive the batch")
	require.True(t, dp.ConfirmReset())

	require.Equal(t, hexutil.Uint64(102), attrs.Timestamp)
	require.True(t, attrs.NoTxPool)
	// L1 info deposit first, then the batched transaction.
	require.Len(t, attrs.Transactions, 2)
	require.Equal(t, byte(DepositTxType), attrs.Transactions[0][0])
	require.Equal(t, hexutil.Bytes{0x02, 0xaa, 0xbb}, attrs.Transactions[1])

	// The single L1 block is exhausted: derivation ends at the L1 head.
	for i := 0; i < 100; i++ {
		out, err := dp.Step(ctx, parent)
		require.Nil(t, out)
		if errors.Is(err, NotEnoughData) || err == io.EOF {
			continue
		}
		require.ErrorIs(t, err, ErrEndOfData)
		return
	}
	t.Fatal("pipeline did not reach the end of L1 data")
}
