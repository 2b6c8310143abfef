package derive

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// DepositTxType is the EIP-2718 type byte of deposited transactions. Deposits
// are forced inclusions derived from L1; they carry no signature and are never
// valid inside batcher data.
const DepositTxType = 0x7E

// DepositTx is a transaction derived from L1, deposited on L2.
type DepositTx struct {
	// SourceHash uniquely identifies the source of the deposit
	SourceHash common.Hash
	// From is exposed through the types.Signer, not through TxData
	From common.Address
	// nil means contract creation
	To *common.Address `rlp:"nil"`
	// Mint is minted on L2, locked on L1, nil if no minting.
	Mint *big.Int `rlp:"nil"`
	// Value is transferred from L2 balance, executed after Mint (if any)
	Value *big.Int
	// gas limit
	Gas uint64
	// Field indicating if this transaction is exempt from the L2 gas limit.
	IsSystemTransaction bool
	// Normal Tx data
	Data []byte
}

// MarshalBinary returns the canonical EIP-2718 encoding of the deposit.
func (tx *DepositTx) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(DepositTxType)
	if err := rlp.Encode(&buf, tx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the canonical EIP-2718 encoding of a deposit.
func (tx *DepositTx) UnmarshalBinary(data []byte) error {
	if len(data) == 0 || data[0] != DepositTxType {
		return errors.New("not a deposit transaction")
	}
	return rlp.DecodeBytes(data[1:], tx)
}
