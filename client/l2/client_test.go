package l2

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
	"github.com/mantle-xyz/kona/rollup/derive"
)

func testlog() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

type stubL2Oracle struct {
	t       *testing.T
	headers map[common.Hash]*types.Header
	txs     map[common.Hash][]hexutil.Bytes
	nodes   map[common.Hash][]byte
	canon   map[uint64]common.Hash
}

func (s *stubL2Oracle) HeaderByBlockHash(blockHash common.Hash) *types.Header {
	h, ok := s.headers[blockHash]
	require.True(s.t, ok, "no header for %s", blockHash)
	return h
}

func (s *stubL2Oracle) RawTransactionsByBlockHash(blockHash common.Hash) []hexutil.Bytes {
	return s.txs[blockHash]
}

func (s *stubL2Oracle) NodeByHash(nodeHash common.Hash) []byte {
	node, ok := s.nodes[nodeHash]
	require.True(s.t, ok, "no node for %s", nodeHash)
	return node
}

func (s *stubL2Oracle) OutputByRoot(_ common.Hash) *eth.OutputV0 {
	s.t.Fatal("unexpected OutputByRoot call")
	return nil
}

func (s *stubL2Oracle) BlockHashByNumber(number uint64) common.Hash {
	hash, ok := s.canon[number]
	require.True(s.t, ok, "no canonical block at height %d", number)
	return hash
}

// l1InfoTx encodes an L1 info deposit carrying the given anchors.
func l1InfoTx(t *testing.T, info derive.L1BlockInfo) hexutil.Bytes {
	data, err := info.MarshalBinary()
	require.NoError(t, err)
	dep := derive.DepositTx{
		From:  derive.L1InfoDepositerAddress,
		Value: big.NewInt(0),
		Gas:   derive.RegolithSystemTxGas,
		Data:  data,
	}
	enc, err := dep.MarshalBinary()
	require.NoError(t, err)
	return enc
}

func testL1Info() derive.L1BlockInfo {
	return derive.L1BlockInfo{
		Number:         10,
		Time:           100,
		BaseFee:        uint256.NewInt(7),
		BlockHash:      common.Hash{0xa1},
		SequenceNumber: 2,
		BatcherAddr:    common.Address{0xbb},
		L1FeeOverhead:  eth.Bytes32{31: 0xaa},
		L1FeeScalar:    eth.Bytes32{31: 0x01},
	}
}

func TestL2BlockRefByHash(t *testing.T) {
	info := testL1Info()
	header := &types.Header{
		ParentHash: common.Hash{0x22},
		Number:     big.NewInt(21),
		Time:       102,
		Difficulty: big.NewInt(0),
	}
	oracle := &stubL2Oracle{
		t:       t,
		headers: map[common.Hash]*types.Header{header.Hash(): header},
		txs:     map[common.Hash][]hexutil.Bytes{header.Hash(): {l1InfoTx(t, info)}},
	}
	client := NewOracleL2Client(testlog(), &rollup.Config{}, oracle)

	ref, err := client.L2BlockRefByHash(context.Background(), header.Hash())
	require.NoError(t, err)
	require.Equal(t, eth.L2BlockRef{
		Hash:           header.Hash(),
		Number:         21,
		ParentHash:     header.ParentHash,
		Time:           header.Time,
		L1Origin:       eth.BlockID{Hash: info.BlockHash, Number: info.Number},
		SequenceNumber: info.SequenceNumber,
	}, ref)
}

func TestL2BlockRefByHashGenesis(t *testing.T) {
	header := &types.Header{
		Number:     big.NewInt(0),
		Time:       50,
		Difficulty: big.NewInt(0),
	}
	cfg := &rollup.Config{Genesis: rollup.Genesis{
		L1: eth.BlockID{Hash: common.Hash{0xa0}, Number: 5},
		L2: eth.BlockID{Hash: header.Hash(), Number: 0},
	}}
	oracle := &stubL2Oracle{t: t, headers: map[common.Hash]*types.Header{header.Hash(): header}}
	client := NewOracleL2Client(testlog(), cfg, oracle)

	// The genesis block has no deposits; its anchors come from the config.
	ref, err := client.L2BlockRefByHash(context.Background(), header.Hash())
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.L1, ref.L1Origin)
	require.Zero(t, ref.SequenceNumber)
}

func TestSystemConfigByL2Hash(t *testing.T) {
	info := testL1Info()
	header := &types.Header{
		Number:     big.NewInt(21),
		Time:       102,
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(0),
	}
	oracle := &stubL2Oracle{
		t:       t,
		headers: map[common.Hash]*types.Header{header.Hash(): header},
		txs:     map[common.Hash][]hexutil.Bytes{header.Hash(): {l1InfoTx(t, info)}},
	}
	client := NewOracleL2Client(testlog(), &rollup.Config{}, oracle)

	sysCfg, err := client.SystemConfigByL2Hash(context.Background(), header.Hash())
	require.NoError(t, err)
	require.Equal(t, eth.SystemConfig{
		BatcherAddr: info.BatcherAddr,
		Overhead:    info.L1FeeOverhead,
		Scalar:      info.L1FeeScalar,
		GasLimit:    header.GasLimit,
	}, sysCfg)
}

func TestOutputV0AtBlock(t *testing.T) {
	storageRoot := common.Hash{0x5a}
	account := types.StateAccount{
		Nonce:    1,
		Balance:  uint256.NewInt(0),
		Root:     storageRoot,
		CodeHash: types.EmptyCodeHash.Bytes(),
	}
	acctRLP, err := rlp.EncodeToBytes(&account)
	require.NoError(t, err)

	nodes := make(map[common.Hash][]byte)
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		nodes[hash] = common.CopyBytes(blob)
	})
	require.NoError(t, st.Update(crypto.Keccak256(MessagePasserAddress.Bytes()), acctRLP))
	stateRoot := st.Hash()

	header := &types.Header{
		Number:     big.NewInt(21),
		Root:       stateRoot,
		Difficulty: big.NewInt(0),
	}
	oracle := &stubL2Oracle{
		t:       t,
		headers: map[common.Hash]*types.Header{header.Hash(): header},
		nodes:   nodes,
	}
	client := NewOracleL2Client(testlog(), &rollup.Config{}, oracle)

	output, err := client.OutputV0AtBlock(context.Background(), header.Hash())
	require.NoError(t, err)
	require.Equal(t, &eth.OutputV0{
		StateRoot:                eth.Bytes32(stateRoot),
		MessagePasserStorageRoot: eth.Bytes32(storageRoot),
		BlockHash:                header.Hash(),
	}, output)
}
