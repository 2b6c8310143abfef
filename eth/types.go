package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Data is raw transaction or batcher payload data.
type Data = hexutil.Bytes

type Bytes32 [32]byte

func (b Bytes32) String() string {
	return common.Hash(b).String()
}

func (b Bytes32) TerminalString() string {
	return common.Hash(b).TerminalString()
}

// BlockID identifies a block by hash and number.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.String(), id.Number)
}

// TerminalString implements log.TerminalStringer, formatting a string for console
// output during logging.
func (id BlockID) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// L1BlockRef is a reference to an L1 block. Refs of consecutive heights must be
// hash-linked: the parent hash of each ref equals the hash of the previous one.
// A break in that link is how the pipeline detects an L1 reorg.
type L1BlockRef struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (id L1BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.String(), id.Number)
}

func (id L1BlockRef) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

func (id L1BlockRef) ID() BlockID {
	return BlockID{Hash: id.Hash, Number: id.Number}
}

func (id L1BlockRef) ParentID() BlockID {
	n := id.Number
	if n > 0 {
		n -= 1
	}
	return BlockID{Hash: id.ParentHash, Number: n}
}

// L2BlockRef is a reference to an L2 block, annotated with the L1 origin it was
// derived from and its position within that epoch.
type L2BlockRef struct {
	Hash           common.Hash `json:"hash"`
	Number         uint64      `json:"number"`
	ParentHash     common.Hash `json:"parentHash"`
	Time           uint64      `json:"timestamp"`
	L1Origin       BlockID     `json:"l1origin"`
	SequenceNumber uint64      `json:"sequenceNumber"` // distance to first block of epoch
}

func (id L2BlockRef) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.String(), id.Number)
}

func (id L2BlockRef) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

func (id L2BlockRef) ID() BlockID {
	return BlockID{Hash: id.Hash, Number: id.Number}
}

func (id L2BlockRef) ParentID() BlockID {
	n := id.Number
	if n > 0 {
		n -= 1
	}
	return BlockID{Hash: id.ParentHash, Number: n}
}

type BlockLabel string

const (
	// Unsafe is:
	// - L1: absolute head of the chain
	// - L2: absolute head of the chain, not confirmed on L1
	Unsafe = BlockLabel("latest")
	// Safe is:
	// - L1: block that is justified, but not finalized yet
	// - L2: block that is derived from L1 data that is not finalized yet
	Safe = BlockLabel("safe")
	// Finalized is:
	// - L1: block that has been finalized
	// - L2: block that is derived from finalized L1 data
	Finalized = BlockLabel("finalized")
)
