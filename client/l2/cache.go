package l2

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mantle-xyz/kona/eth"
)

// State trie nodes are small and numerous, block data is large and revisited
// far less, so the caches are sized separately.
const (
	blockCacheSize = 3_000
	nodeCacheSize  = 100_000
)

var _ Oracle = (*CachingOracle)(nil)

type CachingOracle struct {
	oracle  Oracle
	headers *simplelru.LRU[common.Hash, *types.Header]
	txs     *simplelru.LRU[common.Hash, []hexutil.Bytes]
	nodes   *simplelru.LRU[common.Hash, []byte]
	outputs *simplelru.LRU[common.Hash, *eth.OutputV0]
	byNum   *simplelru.LRU[uint64, common.Hash]
}

func NewCachingOracle(oracle Oracle) *CachingOracle {
	headerLRU, _ := simplelru.NewLRU[common.Hash, *types.Header](blockCacheSize, nil)
	txsLRU, _ := simplelru.NewLRU[common.Hash, []hexutil.Bytes](blockCacheSize, nil)
	nodeLRU, _ := simplelru.NewLRU[common.Hash, []byte](nodeCacheSize, nil)
	outputLRU, _ := simplelru.NewLRU[common.Hash, *eth.OutputV0](blockCacheSize, nil)
	byNumLRU, _ := simplelru.NewLRU[uint64, common.Hash](blockCacheSize, nil)
	return &CachingOracle{
		oracle:  oracle,
		headers: headerLRU,
		txs:     txsLRU,
		nodes:   nodeLRU,
		outputs: outputLRU,
		byNum:   byNumLRU,
	}
}

func (o *CachingOracle) HeaderByBlockHash(blockHash common.Hash) *types.Header {
	if header, ok := o.headers.Get(blockHash); ok {
		return header
	}
	header := o.oracle.HeaderByBlockHash(blockHash)
	o.headers.Add(blockHash, header)
	return header
}

func (o *CachingOracle) RawTransactionsByBlockHash(blockHash common.Hash) []hexutil.Bytes {
	if txs, ok := o.txs.Get(blockHash); ok {
		return txs
	}
	txs := o.oracle.RawTransactionsByBlockHash(blockHash)
	o.txs.Add(blockHash, txs)
	return txs
}

func (o *CachingOracle) NodeByHash(nodeHash common.Hash) []byte {
	if node, ok := o.nodes.Get(nodeHash); ok {
		return node
	}
	node := o.oracle.NodeByHash(nodeHash)
	o.nodes.Add(nodeHash, node)
	return node
}

func (o *CachingOracle) OutputByRoot(outputRoot common.Hash) *eth.OutputV0 {
	if output, ok := o.outputs.Get(outputRoot); ok {
		return output
	}
	output := o.oracle.OutputByRoot(outputRoot)
	o.outputs.Add(outputRoot, output)
	return output
}

func (o *CachingOracle) BlockHashByNumber(number uint64) common.Hash {
	if hash, ok := o.byNum.Get(number); ok {
		return hash
	}
	hash := o.oracle.BlockHashByNumber(number)
	o.byNum.Add(number, hash)
	return hash
}
