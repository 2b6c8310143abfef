package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

func TestCheckSingularBatch(t *testing.T) {
	cfg := &rollup.Config{
		BlockTime:         2,
		SeqWindowSize:     100,
		MaxSequencerDrift: 600,
		Genesis:           rollup.Genesis{L2Time: 10},
	}

	l1A := eth.L1BlockRef{Hash: common.Hash{0xa1}, Number: 50, Time: 1000}
	l1B := eth.L1BlockRef{Hash: common.Hash{0xb1}, Number: 51, Time: 1005, ParentHash: l1A.Hash}
	inclusion := eth.L1BlockRef{Hash: common.Hash{0xc1}, Number: 60}

	safeHead := eth.L2BlockRef{
		Hash:     common.Hash{0x02},
		Number:   200,
		Time:     1004,
		L1Origin: l1A.ID(),
	}
	// The only batch timestamp that is not early or late.
	nextTimestamp := safeHead.Time + cfg.BlockTime

	validBatch := SingularBatch{
		ParentHash:   safeHead.Hash,
		EpochNum:     rollup.Epoch(l1A.Number),
		EpochHash:    l1A.Hash,
		Timestamp:    nextTimestamp,
		Transactions: []hexutil.Bytes{{0x02, 0xaa}},
	}
	mod := func(f func(b *SingularBatch)) *SingularBatch {
		b := validBatch
		b.Transactions = append([]hexutil.Bytes{}, validBatch.Transactions...)
		f(&b)
		return &b
	}

	type testCase struct {
		name      string
		cfg       *rollup.Config
		l1Blocks  []eth.L1BlockRef
		inclusion eth.L1BlockRef
		batch     *SingularBatch
		expected  BatchValidity
	}

	driftCfg := *cfg
	driftCfg.MaxSequencerDrift = 1

	cases := []testCase{
		{
			name:     "valid",
			batch:    mod(func(b *SingularBatch) {}),
			expected: BatchAccept,
		},
		{
			name:     "no l1 blocks",
			l1Blocks: []eth.L1BlockRef{},
			batch:    mod(func(b *SingularBatch) {}),
			expected: BatchUndecided,
		},
		{
			name:     "future timestamp",
			batch:    mod(func(b *SingularBatch) { b.Timestamp = nextTimestamp + cfg.BlockTime }),
			expected: BatchFuture,
		},
		{
			name:     "old timestamp",
			batch:    mod(func(b *SingularBatch) { b.Timestamp = safeHead.Time }),
			expected: BatchDrop,
		},
		{
			name:     "parent hash mismatch",
			batch:    mod(func(b *SingularBatch) { b.ParentHash = common.Hash{0xde, 0xad} }),
			expected: BatchDrop,
		},
		{
			name:      "sequence window expired",
			inclusion: eth.L1BlockRef{Number: l1A.Number + cfg.SeqWindowSize + 1},
			batch:     mod(func(b *SingularBatch) {}),
			expected:  BatchDrop,
		},
		{
			name:     "epoch too old",
			batch:    mod(func(b *SingularBatch) { b.EpochNum-- }),
			expected: BatchDrop,
		},
		{
			name:     "next epoch without next origin",
			batch:    mod(func(b *SingularBatch) { b.EpochNum++; b.EpochHash = l1B.Hash }),
			expected: BatchUndecided,
		},
		{
			name:     "next epoch with next origin",
			l1Blocks: []eth.L1BlockRef{l1A, l1B},
			batch:    mod(func(b *SingularBatch) { b.EpochNum++; b.EpochHash = l1B.Hash }),
			expected: BatchAccept,
		},
		{
			name:     "epoch too far ahead",
			l1Blocks: []eth.L1BlockRef{l1A, l1B},
			batch:    mod(func(b *SingularBatch) { b.EpochNum += 2 }),
			expected: BatchDrop,
		},
		{
			name:     "epoch hash mismatch",
			batch:    mod(func(b *SingularBatch) { b.EpochHash = common.Hash{0xde, 0xad} }),
			expected: BatchDrop,
		},
		{
			name:     "timestamp before origin",
			l1Blocks: []eth.L1BlockRef{{Hash: l1A.Hash, Number: l1A.Number, Time: nextTimestamp + 1}},
			batch:    mod(func(b *SingularBatch) {}),
			expected: BatchDrop,
		},
		{
			name:     "sequencer drift exceeded with transactions",
			cfg:      &driftCfg,
			batch:    mod(func(b *SingularBatch) {}),
			expected: BatchDrop,
		},
		{
			name:     "sequencer drift exceeded, empty batch, next origin unknown",
			cfg:      &driftCfg,
			batch:    mod(func(b *SingularBatch) { b.Transactions = nil }),
			expected: BatchUndecided,
		},
		{
			name:     "sequencer drift exceeded, empty batch, next origin adoptable",
			cfg:      &driftCfg,
			l1Blocks: []eth.L1BlockRef{l1A, l1B},
			batch:    mod(func(b *SingularBatch) { b.Transactions = nil }),
			expected: BatchDrop,
		},
		{
			name: "sequencer drift exceeded, empty batch, before next origin",
			cfg:  &driftCfg,
			l1Blocks: []eth.L1BlockRef{l1A, {
				Hash: l1B.Hash, Number: l1B.Number, Time: nextTimestamp + 2, ParentHash: l1A.Hash,
			}},
			batch:    mod(func(b *SingularBatch) { b.Transactions = nil }),
			expected: BatchAccept,
		},
		{
			name:     "empty transaction",
			batch:    mod(func(b *SingularBatch) { b.Transactions = []hexutil.Bytes{{}} }),
			expected: BatchDrop,
		},
		{
			name:     "embedded deposit transaction",
			batch:    mod(func(b *SingularBatch) { b.Transactions = []hexutil.Bytes{{DepositTxType, 0x01}} }),
			expected: BatchDrop,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			if tc.cfg != nil {
				c = tc.cfg
			}
			l1Blocks := tc.l1Blocks
			if l1Blocks == nil {
				l1Blocks = []eth.L1BlockRef{l1A}
			}
			incl := tc.inclusion
			if incl == (eth.L1BlockRef{}) {
				incl = inclusion
			}
			got := CheckBatch(c, testlog(), l1Blocks, safeHead, &BatchWithL1InclusionBlock{
				L1InclusionBlock: incl,
				Batch:            tc.batch,
			})
			require.Equal(t, tc.expected, got)
		})
	}
}
