package l2

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
	"github.com/mantle-xyz/kona/rollup/derive"
)

// MessagePasserAddress is the L2-to-L1 message passer predeploy. Its storage
// root is part of the output root commitment.
var MessagePasserAddress = common.HexToAddress("0x4200000000000000000000000000000000000016")

// OracleL2Client reads the L2 chain through the preimage oracle. L2 blocks
// carry their derivation anchors in the L1 info deposit, so refs and system
// configs are recovered from block data alone.
type OracleL2Client struct {
	logger log.Logger
	cfg    *rollup.Config
	oracle Oracle
}

var _ derive.SystemConfigL2Fetcher = (*OracleL2Client)(nil)

func NewOracleL2Client(logger log.Logger, cfg *rollup.Config, oracle Oracle) *OracleL2Client {
	return &OracleL2Client{
		logger: logger,
		cfg:    cfg,
		oracle: oracle,
	}
}

func (o *OracleL2Client) L2BlockRefByHash(ctx context.Context, blockHash common.Hash) (eth.L2BlockRef, error) {
	return o.blockToRef(o.oracle.HeaderByBlockHash(blockHash))
}

// blockToRef recovers the L2 block ref from the header and the L1 info deposit.
// The genesis block carries no transactions; its anchors come from the config.
func (o *OracleL2Client) blockToRef(header *types.Header) (eth.L2BlockRef, error) {
	blockHash := header.Hash()
	if blockHash == o.cfg.Genesis.L2.Hash {
		return eth.L2BlockRef{
			Hash:           blockHash,
			Number:         header.Number.Uint64(),
			ParentHash:     header.ParentHash,
			Time:           header.Time,
			L1Origin:       o.cfg.Genesis.L1,
			SequenceNumber: 0,
		}, nil
	}
	info, err := o.l1InfoByBlockHash(blockHash)
	if err != nil {
		return eth.L2BlockRef{}, err
	}
	return eth.L2BlockRef{
		Hash:           blockHash,
		Number:         header.Number.Uint64(),
		ParentHash:     header.ParentHash,
		Time:           header.Time,
		L1Origin:       eth.BlockID{Hash: info.BlockHash, Number: info.Number},
		SequenceNumber: info.SequenceNumber,
	}, nil
}

// l1InfoByBlockHash parses the L1 info deposit that leads every non-genesis L2 block.
func (o *OracleL2Client) l1InfoByBlockHash(blockHash common.Hash) (derive.L1BlockInfo, error) {
	txs := o.oracle.RawTransactionsByBlockHash(blockHash)
	if len(txs) == 0 {
		return derive.L1BlockInfo{}, fmt.Errorf("l2 block %s has no transactions", blockHash)
	}
	first := txs[0]
	if len(first) == 0 || first[0] != derive.DepositTxType {
		return derive.L1BlockInfo{}, fmt.Errorf("first tx of l2 block %s is not a deposit", blockHash)
	}
	var dep derive.DepositTx
	if err := dep.UnmarshalBinary(first); err != nil {
		return derive.L1BlockInfo{}, fmt.Errorf("invalid L1 info deposit in block %s: %w", blockHash, err)
	}
	info, err := derive.L1InfoDepositTxData(dep.Data)
	if err != nil {
		return derive.L1BlockInfo{}, fmt.Errorf("invalid L1 info data in block %s: %w", blockHash, err)
	}
	return info, nil
}

func (o *OracleL2Client) SystemConfigByL2Hash(ctx context.Context, blockHash common.Hash) (eth.SystemConfig, error) {
	if blockHash == o.cfg.Genesis.L2.Hash {
		return o.cfg.Genesis.SystemConfig, nil
	}
	header := o.oracle.HeaderByBlockHash(blockHash)
	info, err := o.l1InfoByBlockHash(blockHash)
	if err != nil {
		return eth.SystemConfig{}, err
	}
	return eth.SystemConfig{
		BatcherAddr: info.BatcherAddr,
		Overhead:    info.L1FeeOverhead,
		Scalar:      info.L1FeeScalar,
		GasLimit:    header.GasLimit,
	}, nil
}

// OutputV0AtBlock computes the output commitment of the given L2 block by
// walking the state trie for the message passer storage root.
func (o *OracleL2Client) OutputV0AtBlock(ctx context.Context, blockHash common.Hash) (*eth.OutputV0, error) {
	header := o.oracle.HeaderByBlockHash(blockHash)

	odb := mpt.NewOracleDB(o.oracle.NodeByHash)
	tdb := triedb.NewDatabase(rawdb.NewDatabase(odb), triedb.HashDefaults)
	stateTrie, err := trie.New(trie.StateTrieID(header.Root), tdb)
	if err != nil {
		return nil, fmt.Errorf("failed to open L2 state trie at block %s: %w", blockHash, err)
	}
	acctBytes, err := stateTrie.Get(crypto.Keccak256(MessagePasserAddress.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to read message passer account at block %s: %w", blockHash, err)
	}
	if len(acctBytes) == 0 {
		return nil, fmt.Errorf("missing message passer account at block %s", blockHash)
	}
	var account types.StateAccount
	if err := rlp.DecodeBytes(acctBytes, &account); err != nil {
		return nil, fmt.Errorf("invalid message passer account at block %s: %w", blockHash, err)
	}
	return &eth.OutputV0{
		StateRoot:                eth.Bytes32(header.Root),
		MessagePasserStorageRoot: eth.Bytes32(account.Root),
		BlockHash:                blockHash,
	}, nil
}
