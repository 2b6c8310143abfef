package derive

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mantle-xyz/kona/eth"
)

var (
	DepositEventABI      = "TransactionDeposited(address,address,uint256,bytes)"
	DepositEventABIHash  = crypto.Keccak256Hash([]byte(DepositEventABI))
	DepositEventVersion0 = common.Hash{}
)

// UnmarshalDepositLogEvent decodes an EVM log entry emitted by the deposit contract into a DepositTx.
//
// parse log data for:
//
//	event TransactionDeposited(
//	    address indexed from,
//	    address indexed to,
//	    uint256 indexed version,
//	    bytes opaqueData
//	);
//
// The opaqueData is tightly packed: mint(32) ++ value(32) ++ gasLimit(8) ++
// isCreation(1) ++ data. Packing saves L1 gas on a hot deposit path.
func UnmarshalDepositLogEvent(ev *types.Log) (*DepositTx, error) {
	if len(ev.Topics) != 4 {
		return nil, fmt.Errorf("expected 4 event topics (event identity, indexed from, indexed to, indexed version), got %d", len(ev.Topics))
	}
	if ev.Topics[0] != DepositEventABIHash {
		return nil, fmt.Errorf("invalid deposit event selector: %s, expected %s", ev.Topics[0], DepositEventABIHash)
	}
	if len(ev.Data) < 64 {
		return nil, fmt.Errorf("incomplete opaqueData slice header: %x", ev.Data)
	}
	if len(ev.Data)%32 != 0 {
		return nil, errors.New("expected log data to be multiple of 32 bytes")
	}

	// indexed 0
	from := common.BytesToAddress(ev.Topics[1][12:])
	// indexed 1
	to := common.BytesToAddress(ev.Topics[2][12:])
	// indexed 2
	version := ev.Topics[3]
	// unindexed data
	// The first 64 bytes indicate the offset and length of the opaqueData `bytes` argument.
	if x := new(big.Int).SetBytes(ev.Data[:32]); !x.IsUint64() || x.Uint64() != 32 {
		return nil, fmt.Errorf("expected opaqueData offset to be 32, but got %s", x)
	}
	opaqueContentLength := new(big.Int).SetBytes(ev.Data[32:64])
	if !opaqueContentLength.IsUint64() || opaqueContentLength.Uint64() > uint64(len(ev.Data)-64) {
		return nil, fmt.Errorf("invalid opaqueData length: %s", opaqueContentLength)
	}
	// The remaining data is the opaqueData
	opaqueData := ev.Data[64 : 64+opaqueContentLength.Uint64()]

	var dep DepositTx

	source := UserDepositSource{
		L1BlockHash: ev.BlockHash,
		LogIndex:    uint64(ev.Index),
	}
	dep.SourceHash = source.SourceHash()
	dep.From = from
	dep.IsSystemTransaction = false

	var err error
	switch version {
	case DepositEventVersion0:
		err = unmarshalDepositVersion0LogEvent(&dep, to, opaqueData)
	default:
		return nil, fmt.Errorf("invalid deposit version, got %s", version)
	}
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

func unmarshalDepositVersion0LogEvent(dep *DepositTx, to common.Address, opaqueData []byte) error {
	if len(opaqueData) < 32+32+8+1 {
		return fmt.Errorf("unexpected opaqueData length: %d", len(opaqueData))
	}
	offset := uint64(0)

	// uint256 mint
	dep.Mint = new(big.Int).SetBytes(opaqueData[offset : offset+32])
	// 0 mint is represented as nil to skip minting code
	if dep.Mint.Sign() == 0 {
		dep.Mint = nil
	}
	offset += 32

	// uint256 value
	dep.Value = new(big.Int).SetBytes(opaqueData[offset : offset+32])
	offset += 32

	// uint64 gas
	gas := new(big.Int).SetBytes(opaqueData[offset : offset+8])
	if !gas.IsUint64() {
		return fmt.Errorf("bad gas value: %x", opaqueData[offset:offset+8])
	}
	dep.Gas = gas.Uint64()
	offset += 8

	// uint8 isCreation
	// isCreation: If the boolean byte is 1 then dep.To will stay nil,
	// and it will create a contract using L2 account nonce to determine the created address.
	if opaqueData[offset] == 0 {
		cpy := to
		dep.To = &cpy
	}
	offset += 1

	// The remainder of the opaqueData is the transaction data (without length prefix).
	// The data may be padded to a multiple of 32 bytes
	txDataLen := uint64(len(opaqueData)) - offset
	dep.Data = opaqueData[offset : offset+txDataLen]

	return nil
}

// UserDeposits transforms the L2 block-height and L1 receipts into the transaction inputs for a full L2 block
func UserDeposits(receipts []*types.Receipt, depositContractAddr common.Address) ([]*DepositTx, error) {
	var out []*DepositTx
	var result error
	for i, rec := range receipts {
		if rec.Status != types.ReceiptStatusSuccessful {
			continue
		}
		for j, log := range rec.Logs {
			if log.Address == depositContractAddr && len(log.Topics) > 0 && log.Topics[0] == DepositEventABIHash {
				dep, err := UnmarshalDepositLogEvent(log)
				if err != nil {
					result = errors.Join(result, fmt.Errorf("malformatted L1 deposit log in receipt %d, log %d: %w", i, j, err))
				} else {
					out = append(out, dep)
				}
			}
		}
	}
	return out, result
}

// DeriveDeposits derives the deposit transactions of an epoch from the L1
// receipts of its origin block, already encoded for payload attributes.
func DeriveDeposits(receipts []*types.Receipt, depositContractAddr common.Address) ([]eth.Data, error) {
	userDeposits, err := UserDeposits(receipts, depositContractAddr)
	if err != nil {
		return nil, err
	}
	encodedTxs := make([]eth.Data, 0, len(userDeposits))
	for i, tx := range userDeposits {
		opaqueTx, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode user tx %d", i)
		}
		encodedTxs = append(encodedTxs, opaqueTx)
	}
	return encodedTxs, nil
}
