package sources

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mantle-xyz/kona/client/l2"
	"github.com/mantle-xyz/kona/eth"
)

// L2Client fetches L2 chain data over RPC. Headers and block bodies are
// retrieved in their raw RLP form via the debug API so that transaction types
// the local geth release cannot decode, like deposits, pass through opaquely.
type L2Client struct {
	log log.Logger
	rpc *rpc.Client
}

func NewL2Client(logger log.Logger, rpcClient *rpc.Client) *L2Client {
	return &L2Client{
		log: logger,
		rpc: rpcClient,
	}
}

// RawHeaderByHash returns the RLP encoding of the block header, verified
// against the requested hash.
func (c *L2Client) RawHeaderByHash(ctx context.Context, blockHash common.Hash) (hexutil.Bytes, error) {
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "debug_getRawHeader", blockHash); err != nil {
		return nil, fmt.Errorf("fetch raw L2 header %s: %w", blockHash, err)
	}
	if actual := crypto.Keccak256Hash(raw); actual != blockHash {
		return nil, fmt.Errorf("retrieved L2 header %s does not match requested hash %s", actual, blockHash)
	}
	return raw, nil
}

// RawBlockByHash returns the decoded header, its exact RLP encoding, and the
// raw encoding of each transaction in the block. Typed transactions are
// unwrapped from their RLP string wrapper so each entry is the canonical
// binary encoding of the transaction.
func (c *L2Client) RawBlockByHash(ctx context.Context, blockHash common.Hash) (*types.Header, hexutil.Bytes, []hexutil.Bytes, error) {
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "debug_getRawBlock", blockHash); err != nil {
		return nil, nil, nil, fmt.Errorf("fetch raw L2 block %s: %w", blockHash, err)
	}
	var elems []rlp.RawValue
	if err := rlp.DecodeBytes(raw, &elems); err != nil {
		return nil, nil, nil, fmt.Errorf("decode raw L2 block %s: %w", blockHash, err)
	}
	if len(elems) < 2 {
		return nil, nil, nil, fmt.Errorf("raw L2 block %s has %d elements, need header and body", blockHash, len(elems))
	}
	headerRLP := hexutil.Bytes(elems[0])
	if actual := crypto.Keccak256Hash(headerRLP); actual != blockHash {
		return nil, nil, nil, fmt.Errorf("retrieved L2 block %s does not match requested hash %s", actual, blockHash)
	}
	var header types.Header
	if err := rlp.DecodeBytes(headerRLP, &header); err != nil {
		return nil, nil, nil, fmt.Errorf("decode L2 header %s: %w", blockHash, err)
	}
	var rawTxs []rlp.RawValue
	if err := rlp.DecodeBytes(elems[1], &rawTxs); err != nil {
		return nil, nil, nil, fmt.Errorf("decode L2 block body %s: %w", blockHash, err)
	}
	txs, err := unwrapTransactions(rawTxs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unwrap transactions of L2 block %s: %w", blockHash, err)
	}
	return &header, headerRLP, txs, nil
}

// unwrapTransactions converts block-body transaction encodings to canonical
// binary encodings. In a block body a legacy transaction is an RLP list, used
// as-is, while a typed transaction is wrapped in an RLP string whose content
// is the type byte followed by the payload.
func unwrapTransactions(rawTxs []rlp.RawValue) ([]hexutil.Bytes, error) {
	txs := make([]hexutil.Bytes, len(rawTxs))
	for i, raw := range rawTxs {
		if len(raw) == 0 {
			return nil, fmt.Errorf("transaction %d is empty", i)
		}
		if raw[0] >= 0xc0 {
			txs[i] = common.CopyBytes(raw)
			continue
		}
		var payload []byte
		if err := rlp.DecodeBytes(raw, &payload); err != nil {
			return nil, fmt.Errorf("unwrap typed transaction %d: %w", i, err)
		}
		txs[i] = payload
	}
	return txs, nil
}

// NodeByHash fetches a state or storage MPT node. Nodes are stored in the
// geth database keyed by their hash with no prefix.
func (c *L2Client) NodeByHash(ctx context.Context, nodeHash common.Hash) ([]byte, error) {
	var node hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &node, "debug_dbGet", hexutil.Encode(nodeHash[:])); err != nil {
		return nil, fmt.Errorf("fetch L2 MPT node %s: %w", nodeHash, err)
	}
	return node, nil
}

// OutputAtBlock computes the version 0 output at the given block, using
// eth_getProof to obtain the storage root of the message passer predeploy.
func (c *L2Client) OutputAtBlock(ctx context.Context, blockHash common.Hash) (*eth.OutputV0, error) {
	headerRLP, err := c.RawHeaderByHash(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	var header types.Header
	if err := rlp.DecodeBytes(headerRLP, &header); err != nil {
		return nil, fmt.Errorf("decode L2 header %s: %w", blockHash, err)
	}
	var proof struct {
		StorageHash common.Hash `json:"storageHash"`
	}
	if err := c.rpc.CallContext(ctx, &proof, "eth_getProof", l2.MessagePasserAddress, []common.Hash{}, blockHash.Hex()); err != nil {
		return nil, fmt.Errorf("fetch L2 proof of %s at block %s: %w", l2.MessagePasserAddress, blockHash, err)
	}
	return &eth.OutputV0{
		StateRoot:                eth.Bytes32(header.Root),
		MessagePasserStorageRoot: eth.Bytes32(proof.StorageHash),
		BlockHash:                blockHash,
	}, nil
}

// BlockHashByNumber returns the hash of the canonical block at the given height.
func (c *L2Client) BlockHashByNumber(ctx context.Context, number uint64) (common.Hash, error) {
	var block *struct {
		Hash common.Hash `json:"hash"`
	}
	if err := c.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return common.Hash{}, fmt.Errorf("fetch L2 block %d: %w", number, err)
	}
	if block == nil {
		return common.Hash{}, fmt.Errorf("L2 block %d: %w", number, ethereum.NotFound)
	}
	return block.Hash, nil
}
