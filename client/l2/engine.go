package l2

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// ErrPayloadMismatch means the derived payload attributes do not describe the
// canonical L2 block at that height. A valid derivation never hits this on a
// canonical chain, so it marks either bad oracle data or a bad claim.
var ErrPayloadMismatch = errors.New("derived attributes do not match canonical block")

// OracleEngine executes payload attributes against the canonical L2 chain
// served by the oracle. Execution here is verification: the canonical block at
// the target height must embed exactly the derived attributes, the state
// transition itself happened in the external execution layer.
type OracleEngine struct {
	logger log.Logger
	cfg    *rollup.Config
	oracle Oracle
	l2     *OracleL2Client
}

func NewOracleEngine(logger log.Logger, cfg *rollup.Config, oracle Oracle, l2 *OracleL2Client) *OracleEngine {
	return &OracleEngine{
		logger: logger,
		cfg:    cfg,
		oracle: oracle,
		l2:     l2,
	}
}

// ExecutePayload checks the attributes against the canonical child of parent
// and returns the resulting L2 block ref. The transactions commitment binds
// the canonical header to the full derived transaction list.
func (e *OracleEngine) ExecutePayload(ctx context.Context, parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (eth.L2BlockRef, error) {
	blockHash := e.oracle.BlockHashByNumber(parent.Number + 1)
	header := e.oracle.HeaderByBlockHash(blockHash)

	if header.ParentHash != parent.Hash {
		return eth.L2BlockRef{}, fmt.Errorf("%w: canonical block %s at height %d builds on %s, expected %s",
			ErrPayloadMismatch, blockHash, parent.Number+1, header.ParentHash, parent.Hash)
	}
	if header.Time != uint64(attrs.Timestamp) {
		return eth.L2BlockRef{}, fmt.Errorf("%w: block %s timestamp %d, derived %d",
			ErrPayloadMismatch, blockHash, header.Time, uint64(attrs.Timestamp))
	}
	if header.MixDigest != common.Hash(attrs.PrevRandao) {
		return eth.L2BlockRef{}, fmt.Errorf("%w: block %s prevRandao %s, derived %s",
			ErrPayloadMismatch, blockHash, header.MixDigest, common.Hash(attrs.PrevRandao))
	}
	if header.Coinbase != attrs.SuggestedFeeRecipient {
		return eth.L2BlockRef{}, fmt.Errorf("%w: block %s fee recipient %s, derived %s",
			ErrPayloadMismatch, blockHash, header.Coinbase, attrs.SuggestedFeeRecipient)
	}
	if attrs.GasLimit == nil {
		return eth.L2BlockRef{}, fmt.Errorf("%w: derived attributes carry no gas limit", ErrPayloadMismatch)
	}
	if header.GasLimit != uint64(*attrs.GasLimit) {
		return eth.L2BlockRef{}, fmt.Errorf("%w: block %s gas limit %d, derived %d",
			ErrPayloadMismatch, blockHash, header.GasLimit, uint64(*attrs.GasLimit))
	}
	txRoot, _ := mpt.WriteTrie(attrs.Transactions)
	if header.TxHash != txRoot {
		return eth.L2BlockRef{}, fmt.Errorf("%w: block %s tx root %s, derived %s",
			ErrPayloadMismatch, blockHash, header.TxHash, txRoot)
	}

	ref, err := e.l2.blockToRef(header)
	if err != nil {
		return eth.L2BlockRef{}, fmt.Errorf("failed to build ref for executed block %s: %w", blockHash, err)
	}
	e.logger.Debug("Executed payload", "l2", ref, "l1origin", ref.L1Origin, "txs", len(attrs.Transactions))
	return ref, nil
}
