package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockInfo is the consensus-relevant subset of an L1 block header.
type BlockInfo interface {
	Hash() common.Hash
	ParentHash() common.Hash
	Coinbase() common.Address
	Root() common.Hash // state-root
	NumberU64() uint64
	Time() uint64
	MixDigest() common.Hash
	BaseFee() *big.Int
	ReceiptHash() common.Hash
	GasUsed() uint64
	GasLimit() uint64
}

// ToBlockID extracts the block id from the block info.
func ToBlockID(info BlockInfo) BlockID {
	return BlockID{Hash: info.Hash(), Number: info.NumberU64()}
}

// InfoToL1BlockRef extracts the block reference from the block info.
func InfoToL1BlockRef(info BlockInfo) L1BlockRef {
	return L1BlockRef{
		Hash:       info.Hash(),
		Number:     info.NumberU64(),
		ParentHash: info.ParentHash(),
		Time:       info.Time(),
	}
}

type headerBlockInfo struct {
	header *types.Header
	hash   common.Hash
}

var _ BlockInfo = (*headerBlockInfo)(nil)

func (h *headerBlockInfo) Hash() common.Hash        { return h.hash }
func (h *headerBlockInfo) ParentHash() common.Hash  { return h.header.ParentHash }
func (h *headerBlockInfo) Coinbase() common.Address { return h.header.Coinbase }
func (h *headerBlockInfo) Root() common.Hash        { return h.header.Root }
func (h *headerBlockInfo) NumberU64() uint64        { return h.header.Number.Uint64() }
func (h *headerBlockInfo) Time() uint64             { return h.header.Time }
func (h *headerBlockInfo) MixDigest() common.Hash   { return h.header.MixDigest }
func (h *headerBlockInfo) BaseFee() *big.Int        { return h.header.BaseFee }
func (h *headerBlockInfo) ReceiptHash() common.Hash { return h.header.ReceiptHash }
func (h *headerBlockInfo) GasUsed() uint64          { return h.header.GasUsed }
func (h *headerBlockInfo) GasLimit() uint64         { return h.header.GasLimit }

// HeaderBlockInfo adapts a geth header to BlockInfo.
// The hash is computed once, headers must not be mutated after wrapping.
func HeaderBlockInfo(header *types.Header) BlockInfo {
	return &headerBlockInfo{header: header, hash: header.Hash()}
}
