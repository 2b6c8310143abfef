package derive

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

var (
	SystemConfigUpdateBatcher   = common.Hash{31: 0}
	SystemConfigUpdateGasConfig = common.Hash{31: 1}
	SystemConfigUpdateGasLimit  = common.Hash{31: 2}
)

var (
	ConfigUpdateEventABI      = "ConfigUpdate(uint256,uint8,bytes)"
	ConfigUpdateEventABIHash  = crypto.Keccak256Hash([]byte(ConfigUpdateEventABI))
	ConfigUpdateEventVersion0 = common.Hash{}
)

// UpdateSystemConfigWithL1Receipts filters all L1 receipts to find config updates
// and applies the config updates to the given sysCfg.
func UpdateSystemConfigWithL1Receipts(sysCfg *eth.SystemConfig, receipts []*types.Receipt, cfg *rollup.Config) error {
	var result error
	for i, rec := range receipts {
		if rec.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for j, log := range rec.Logs {
			if log.Address == cfg.L1SystemConfigAddress && len(log.Topics) > 0 && log.Topics[0] == ConfigUpdateEventABIHash {
				if err := ProcessSystemConfigUpdateLogEvent(sysCfg, log); err != nil {
					result = errors.Join(result, fmt.Errorf("malformatted L1 system sysCfg log in receipt %d, log %d: %w", i, j, err))
				}
			}
		}
	}
	return result
}

// ProcessSystemConfigUpdateLogEvent decodes an EVM log entry emitted by the system config contract and applies it as a system config change.
//
// parse log data for:
//
//	event ConfigUpdate(
//	    uint256 indexed version,
//	    UpdateType indexed updateType,
//	    bytes data
//	);
func ProcessSystemConfigUpdateLogEvent(destSysCfg *eth.SystemConfig, ev *types.Log) error {
	if len(ev.Topics) != 3 {
		return fmt.Errorf("expected 3 event topics (event identity, indexed version, indexed updateType), got %d", len(ev.Topics))
	}
	if ev.Topics[0] != ConfigUpdateEventABIHash {
		return fmt.Errorf("invalid SystemConfig update event: %s, expected %s", ev.Topics[0], ConfigUpdateEventABIHash)
	}

	// indexed 0
	version := ev.Topics[1]
	if version != ConfigUpdateEventVersion0 {
		return fmt.Errorf("unrecognized SystemConfig update event version: %s", version)
	}
	// indexed 1
	updateType := ev.Topics[2]

	// unindexed data
	// The unindexed data is an ABI encoded `bytes` argument: a 32 byte offset,
	// a 32 byte length, then the payload padded to a multiple of 32 bytes.
	data := ev.Data
	if len(data) < 64 {
		return fmt.Errorf("system config update data too short: %d", len(data))
	}
	offset := new(big.Int).SetBytes(data[:32])
	if !offset.IsUint64() || offset.Uint64() != 32 {
		return fmt.Errorf("invalid system config update data offset: %s", offset)
	}
	length := new(big.Int).SetBytes(data[32:64])
	if !length.IsUint64() || length.Uint64() > uint64(len(data)-64) {
		return fmt.Errorf("invalid system config update data length: %s", length)
	}
	payload := data[64 : 64+length.Uint64()]

	switch updateType {
	case SystemConfigUpdateBatcher:
		if len(payload) != 32 {
			return fmt.Errorf("expected 32 bytes of batcher address payload, got %d", len(payload))
		}
		if !bytes.Equal(payload[:12], make([]byte, 12)) {
			return errors.New("batcher address padding must be empty")
		}
		destSysCfg.BatcherAddr = common.BytesToAddress(payload[12:])
		return nil
	case SystemConfigUpdateGasConfig:
		if len(payload) != 64 {
			return fmt.Errorf("expected 64 bytes of gas config payload, got %d", len(payload))
		}
		copy(destSysCfg.Overhead[:], payload[:32])
		copy(destSysCfg.Scalar[:], payload[32:64])
		return nil
	case SystemConfigUpdateGasLimit:
		if len(payload) != 32 {
			return fmt.Errorf("expected 32 bytes of gas limit payload, got %d", len(payload))
		}
		gasLimit := new(big.Int).SetBytes(payload)
		if !gasLimit.IsUint64() {
			return errors.New("gas limit out of uint64 range")
		}
		destSysCfg.GasLimit = gasLimit.Uint64()
		return nil
	default:
		return fmt.Errorf("unrecognized L1 sysCfg update type: %s", updateType)
	}
}
