package l1

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mantle-xyz/kona/eth"
)

// blockCacheSize should be set large enough to handle the pipeline reset process of walking back from L2 head to find
// the L1 origin that is old enough to start buffering channel data from.
const blockCacheSize = 3_000

var _ Oracle = (*CachingOracle)(nil)

type CachingOracle struct {
	oracle Oracle
	blocks *simplelru.LRU[common.Hash, eth.BlockInfo]
	txs    *simplelru.LRU[common.Hash, types.Transactions]
	rcpts  *simplelru.LRU[common.Hash, types.Receipts]
	blobs  *simplelru.LRU[common.Hash, *eth.Blob]
	daBlob *simplelru.LRU[common.Hash, []byte]
}

func NewCachingOracle(oracle Oracle) *CachingOracle {
	blockLRU, _ := simplelru.NewLRU[common.Hash, eth.BlockInfo](blockCacheSize, nil)
	txsLRU, _ := simplelru.NewLRU[common.Hash, types.Transactions](blockCacheSize, nil)
	rcptsLRU, _ := simplelru.NewLRU[common.Hash, types.Receipts](blockCacheSize, nil)
	blobLRU, _ := simplelru.NewLRU[common.Hash, *eth.Blob](blockCacheSize, nil)
	daBlobLRU, _ := simplelru.NewLRU[common.Hash, []byte](blockCacheSize, nil)
	return &CachingOracle{
		oracle: oracle,
		blocks: blockLRU,
		txs:    txsLRU,
		rcpts:  rcptsLRU,
		blobs:  blobLRU,
		daBlob: daBlobLRU,
	}
}

func (o *CachingOracle) HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo {
	if block, ok := o.blocks.Get(blockHash); ok {
		return block
	}
	block := o.oracle.HeaderByBlockHash(blockHash)
	o.blocks.Add(blockHash, block)
	return block
}

func (o *CachingOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions) {
	if txs, ok := o.txs.Get(blockHash); ok {
		return o.HeaderByBlockHash(blockHash), txs
	}
	block, txs := o.oracle.TransactionsByBlockHash(blockHash)
	o.blocks.Add(blockHash, block)
	o.txs.Add(blockHash, txs)
	return block, txs
}

func (o *CachingOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts) {
	if rcpts, ok := o.rcpts.Get(blockHash); ok {
		return o.HeaderByBlockHash(blockHash), rcpts
	}
	block, rcpts := o.oracle.ReceiptsByBlockHash(blockHash)
	o.blocks.Add(blockHash, block)
	o.rcpts.Add(blockHash, rcpts)
	return block, rcpts
}

func (o *CachingOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob {
	// Blobs are keyed by the full request since the same versioned hash may
	// occur at different indices.
	var key [48]byte
	copy(key[:32], blobHash.Hash[:])
	binary.BigEndian.PutUint64(key[32:40], blobHash.Index)
	binary.BigEndian.PutUint64(key[40:48], ref.Time)
	cacheKey := crypto.Keccak256Hash(key[:])

	if blob, ok := o.blobs.Get(cacheKey); ok {
		return blob
	}
	blob := o.oracle.GetBlob(ref, blobHash)
	o.blobs.Add(cacheKey, blob)
	return blob
}

func (o *CachingOracle) GetEigenDABlob(batchHeaderHash []byte, blobIndex uint32) []byte {
	cacheKey := crypto.Keccak256Hash(EigenDABlobRequest(batchHeaderHash, blobIndex))
	if blob, ok := o.daBlob.Get(cacheKey); ok {
		return blob
	}
	blob := o.oracle.GetEigenDABlob(batchHeaderHash, blobIndex)
	o.daBlob.Add(cacheKey, blob)
	return blob
}
