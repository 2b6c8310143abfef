package eth

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PayloadAttributes is the fully specified input for building one L2 block.
// It is the terminal artifact of derivation, consumed exactly once by the driver.
type PayloadAttributes struct {
	// Timestamp of the new L2 block
	Timestamp hexutil.Uint64 `json:"timestamp"`
	// PrevRandao, mixed randomness carried over from the L1 origin
	PrevRandao Bytes32 `json:"prevRandao"`
	// SuggestedFeeRecipient of the sequencer fees
	SuggestedFeeRecipient common.Address `json:"suggestedFeeRecipient"`
	// Transactions to force into the block (always at the start of the transactions list).
	Transactions []hexutil.Bytes `json:"transactions,omitempty"`
	// NoTxPool instructs the block builder to not pull transactions from the tx-pool.
	// Always true during derivation: pool transactions would make replay non-deterministic.
	NoTxPool bool `json:"noTxPool,omitempty"`
	// GasLimit of the new L2 block, from the system config
	GasLimit *hexutil.Uint64 `json:"gasLimit,omitempty"`
}

// SystemConfig tracks the rollup parameters that L1 system-config events may update
// at epoch boundaries.
type SystemConfig struct {
	// BatcherAddr identifies the batch-submitter, only data from this sender counts.
	BatcherAddr common.Address `json:"batcherAddr"`
	// Overhead is the L1 fee overhead rollup parameter
	Overhead Bytes32 `json:"overhead"`
	// Scalar is the L1 fee scalar rollup parameter
	Scalar Bytes32 `json:"scalar"`
	// GasLimit of the L2 blocks
	GasLimit uint64 `json:"gasLimit"`
}
