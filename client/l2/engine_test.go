package l2

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// engineFixture wires a canonical L2 block and the attributes that describe it.
type engineFixture struct {
	engine *OracleEngine
	parent eth.L2BlockRef
	header *types.Header
	attrs  *eth.PayloadAttributes
}

func newEngineFixture(t *testing.T) *engineFixture {
	info := testL1Info()
	txs := []hexutil.Bytes{l1InfoTx(t, info), {0x02, 0xaa, 0xbb}}
	txRoot, _ := mpt.WriteTrie(txs)

	parent := eth.L2BlockRef{Hash: common.Hash{0x22}, Number: 20, Time: 100}
	gasLimit := hexutil.Uint64(30_000_000)
	header := &types.Header{
		ParentHash: parent.Hash,
		Coinbase:   common.Address{0x11},
		TxHash:     txRoot,
		Number:     big.NewInt(21),
		Time:       102,
		MixDigest:  common.Hash{0x77},
		GasLimit:   uint64(gasLimit),
		Difficulty: big.NewInt(0),
	}
	attrs := &eth.PayloadAttributes{
		Timestamp:             hexutil.Uint64(header.Time),
		PrevRandao:            eth.Bytes32(header.MixDigest),
		SuggestedFeeRecipient: header.Coinbase,
		Transactions:          txs,
		NoTxPool:              true,
		GasLimit:              &gasLimit,
	}
	oracle := &stubL2Oracle{
		t:       t,
		headers: map[common.Hash]*types.Header{header.Hash(): header},
		txs:     map[common.Hash][]hexutil.Bytes{header.Hash(): txs},
		canon:   map[uint64]common.Hash{21: header.Hash()},
	}
	cfg := &rollup.Config{}
	client := NewOracleL2Client(testlog(), cfg, oracle)
	return &engineFixture{
		engine: NewOracleEngine(testlog(), cfg, oracle, client),
		parent: parent,
		header: header,
		attrs:  attrs,
	}
}

func TestExecutePayload(t *testing.T) {
	f := newEngineFixture(t)

	ref, err := f.engine.ExecutePayload(context.Background(), f.parent, f.attrs)
	require.NoError(t, err)
	require.Equal(t, f.header.Hash(), ref.Hash)
	require.Equal(t, uint64(21), ref.Number)
	require.Equal(t, f.header.Time, ref.Time)
	require.Equal(t, testL1Info().SequenceNumber, ref.SequenceNumber)
}

func TestExecutePayloadMismatches(t *testing.T) {
	mods := map[string]func(f *engineFixture){
		"parent hash": func(f *engineFixture) { f.parent.Hash = common.Hash{0xde, 0xad}; f.parent.Number = 20 },
		"timestamp":   func(f *engineFixture) { f.attrs.Timestamp++ },
		"prev randao": func(f *engineFixture) { f.attrs.PrevRandao = eth.Bytes32{0xff} },
		"fee recipient": func(f *engineFixture) {
			f.attrs.SuggestedFeeRecipient = common.Address{0xff}
		},
		"missing gas limit": func(f *engineFixture) { f.attrs.GasLimit = nil },
		"gas limit":         func(f *engineFixture) { *f.attrs.GasLimit++ },
		"transactions": func(f *engineFixture) {
			f.attrs.Transactions = append(f.attrs.Transactions, hexutil.Bytes{0x02, 0x99})
		},
	}
	for name, mod := range mods {
		t.Run(name, func(t *testing.T) {
			f := newEngineFixture(t)
			mod(f)
			_, err := f.engine.ExecutePayload(context.Background(), f.parent, f.attrs)
			require.ErrorIs(t, err, ErrPayloadMismatch)
		})
	}
}
