package rollup

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mantle-xyz/kona/eth"
)

// Epoch is the number of the L1 block that a span of L2 blocks was derived from.
type Epoch uint64

var (
	ErrBlockTimeZero            = errors.New("block time cannot be 0")
	ErrMissingChannelTimeout    = errors.New("channel timeout must be set")
	ErrInvalidSeqWindowSize     = errors.New("sequencing window size must be at least 2")
	ErrMissingGenesisL1Hash     = errors.New("genesis L1 hash cannot be empty")
	ErrMissingGenesisL2Hash     = errors.New("genesis L2 hash cannot be empty")
	ErrMissingBatchInboxAddress = errors.New("batch inbox address cannot be empty")
	ErrMissingL2ChainID         = errors.New("L2 chain ID must be set")
)

// Genesis anchors the rollup: derivation never walks past these blocks.
type Genesis struct {
	// The L1 block that the rollup starts *after* (no derived transactions)
	L1 eth.BlockID `json:"l1"`
	// The L2 block the rollup starts from (no transactions, pre-configured state)
	L2 eth.BlockID `json:"l2"`
	// Timestamp of the L2 genesis block
	L2Time uint64 `json:"l2_time"`
	// Initial system configuration values.
	// The L2 genesis block may not include transactions, and thus cannot encode the config values,
	// unlike later L2 blocks.
	SystemConfig eth.SystemConfig `json:"system_config"`
}

type Config struct {
	Genesis Genesis `json:"genesis"`
	// Seconds per L2 block
	BlockTime uint64 `json:"block_time"`
	// Sequencer batches may not be more than MaxSequencerDrift seconds after
	// the L1 timestamp of their L1 origin.
	MaxSequencerDrift uint64 `json:"max_sequencer_drift"`
	// Number of L1 blocks between when a channel can be opened and when it must be closed by.
	ChannelTimeout uint64 `json:"channel_timeout"`
	// Number of L1 blocks that a batch for epoch N may land in, counted from the epoch block itself.
	SeqWindowSize uint64 `json:"seq_window_size"`
	// Required to verify L1 signatures
	L1ChainID *big.Int `json:"l1_chain_id"`
	// Required to identify the L2 network and create p2p signatures unique for this chain.
	L2ChainID *big.Int `json:"l2_chain_id"`
	// L1 address that batches are sent to.
	BatchInboxAddress common.Address `json:"batch_inbox_address"`
	// L1 deposit contract address
	DepositContractAddress common.Address `json:"deposit_contract_address"`
	// L1 System Config address, emits ConfigUpdate events that adjust the live SystemConfig
	L1SystemConfigAddress common.Address `json:"l1_system_config_address"`
	// MantleDASwitch selects the EigenDA-backed data source instead of calldata/blobs.
	MantleDASwitch bool `json:"mantle_da_switch,omitempty"`
}

// Check verifies that the config is complete enough to run derivation.
func (c *Config) Check() error {
	if c.BlockTime == 0 {
		return ErrBlockTimeZero
	}
	if c.ChannelTimeout == 0 {
		return ErrMissingChannelTimeout
	}
	if c.SeqWindowSize < 2 {
		return ErrInvalidSeqWindowSize
	}
	if c.Genesis.L1.Hash == (common.Hash{}) {
		return ErrMissingGenesisL1Hash
	}
	if c.Genesis.L2.Hash == (common.Hash{}) {
		return ErrMissingGenesisL2Hash
	}
	if c.BatchInboxAddress == (common.Address{}) {
		return ErrMissingBatchInboxAddress
	}
	if c.L2ChainID == nil || c.L2ChainID.Sign() < 1 {
		return ErrMissingL2ChainID
	}
	return nil
}

// L1Signer returns the signer used to recover the batch-submitter address
// from batcher transactions on L1.
func (c *Config) L1Signer() types.Signer {
	return types.NewLondonSigner(c.L1ChainID)
}

// TimestampForBlock computes the expected timestamp of the L2 block at the given height.
func (c *Config) TimestampForBlock(blockNumber uint64) uint64 {
	return c.Genesis.L2Time + ((blockNumber - c.Genesis.L2.Number) * c.BlockTime)
}

// NextTimestamp is the timestamp of the L2 block following the given parent.
func (c *Config) NextTimestamp(parentTime uint64) uint64 {
	return parentTime + c.BlockTime
}

func (c *Config) Describe() string {
	return fmt.Sprintf("l2_chain_id=%v l1_chain_id=%v block_time=%d seq_window=%d channel_timeout=%d",
		c.L2ChainID, c.L1ChainID, c.BlockTime, c.SeqWindowSize, c.ChannelTimeout)
}
