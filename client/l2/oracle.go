package l2

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/preimage"
)

// Oracle defines the high-level API used to retrieve L2 chain data.
type Oracle interface {
	// HeaderByBlockHash retrieves the L2 block header with the given hash.
	HeaderByBlockHash(blockHash common.Hash) *types.Header

	// RawTransactionsByBlockHash retrieves the opaque transactions of the block
	// with the given hash. Deposit transactions use an L2-specific type byte,
	// so the list is kept in consensus encoding.
	RawTransactionsByBlockHash(blockHash common.Hash) []hexutil.Bytes

	// NodeByHash retrieves one L2 state trie node by hash.
	NodeByHash(nodeHash common.Hash) []byte

	// OutputByRoot retrieves the output preimage of the given output root.
	OutputByRoot(outputRoot common.Hash) *eth.OutputV0

	// BlockHashByNumber retrieves the canonical L2 block hash at the given height.
	BlockHashByNumber(number uint64) common.Hash
}

// PreimageOracle implements Oracle by hinting the host and fetching pre-images
// through the pure preimage.Oracle.
type PreimageOracle struct {
	oracle preimage.Oracle
	hint   preimage.Hinter
}

var _ Oracle = (*PreimageOracle)(nil)

func NewPreimageOracle(raw preimage.Oracle, hint preimage.Hinter) *PreimageOracle {
	return &PreimageOracle{
		oracle: raw,
		hint:   hint,
	}
}

func (p *PreimageOracle) HeaderByBlockHash(blockHash common.Hash) *types.Header {
	p.hint.Hint(BlockHeaderHint(blockHash))
	headerRlp := p.oracle.Get(preimage.Keccak256Key(blockHash))
	var header types.Header
	if err := rlp.DecodeBytes(headerRlp, &header); err != nil {
		panic(fmt.Errorf("invalid L2 header %s: %w", blockHash, err))
	}
	return &header
}

func (p *PreimageOracle) RawTransactionsByBlockHash(blockHash common.Hash) []hexutil.Bytes {
	header := p.HeaderByBlockHash(blockHash)
	p.hint.Hint(TransactionsHint(blockHash))
	return mpt.ReadTrie(header.TxHash, func(key common.Hash) []byte {
		return p.oracle.Get(preimage.Keccak256Key(key))
	})
}

func (p *PreimageOracle) NodeByHash(nodeHash common.Hash) []byte {
	p.hint.Hint(StateNodeHint(nodeHash))
	return p.oracle.Get(preimage.Keccak256Key(nodeHash))
}

func (p *PreimageOracle) OutputByRoot(outputRoot common.Hash) *eth.OutputV0 {
	p.hint.Hint(L2OutputHint(outputRoot))
	data := p.oracle.Get(preimage.Keccak256Key(outputRoot))
	output, err := eth.UnmarshalOutput(data)
	if err != nil {
		panic(fmt.Errorf("invalid output %s: %w", outputRoot, err))
	}
	return output
}

func (p *PreimageOracle) BlockHashByNumber(number uint64) common.Hash {
	p.hint.Hint(BlockByNumberHint(number))
	req := BlockByNumberRequest(number)
	data := p.oracle.Get(preimage.GlobalGenericKey(crypto.Keccak256Hash(req)))
	if len(data) != common.HashLength {
		panic(fmt.Errorf("invalid canonical block hash at height %d: %d bytes", number, len(data)))
	}
	return common.BytesToHash(data)
}
