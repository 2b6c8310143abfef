package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup/derive"
)

var ErrNotFound = ethereum.NotFound

// OracleL1Client is an L1 chain data source backed by the preimage oracle.
// It is anchored at the L1 head the program was booted with: blocks above the
// head do not exist yet from the program's point of view, and lookups by
// number walk the parent chain down from the head.
type OracleL1Client struct {
	logger               log.Logger
	oracle               Oracle
	head                 eth.L1BlockRef
	hashByNum            map[uint64]common.Hash
	earliestIndexedBlock eth.L1BlockRef
}

var (
	_ derive.L1Fetcher       = (*OracleL1Client)(nil)
	_ derive.L1BlobsFetcher  = (*OracleL1Client)(nil)
	_ derive.EigenDAProvider = (*OracleL1Client)(nil)
)

func NewOracleL1Client(logger log.Logger, oracle Oracle, l1Head common.Hash) *OracleL1Client {
	head := eth.InfoToL1BlockRef(oracle.HeaderByBlockHash(l1Head))
	logger.Info("L1 head loaded", "hash", head.Hash, "number", head.Number)
	return &OracleL1Client{
		logger:               logger,
		oracle:               oracle,
		head:                 head,
		hashByNum:            map[uint64]common.Hash{head.Number: head.Hash},
		earliestIndexedBlock: head,
	}
}

// L1BlockRefByLabel always resolves to the boot-time L1 head: the oracle data
// is fixed, so the head is as safe and as final as the program will ever see.
func (o *OracleL1Client) L1BlockRefByLabel(ctx context.Context, label eth.BlockLabel) (eth.L1BlockRef, error) {
	return o.head, nil
}

func (o *OracleL1Client) L1BlockRefByNumber(ctx context.Context, number uint64) (eth.L1BlockRef, error) {
	if number > o.head.Number {
		return eth.L1BlockRef{}, fmt.Errorf("%w: block number %d", ErrNotFound, number)
	}
	hash, ok := o.hashByNum[number]
	if ok {
		return o.L1BlockRefByHash(ctx, hash)
	}
	block := o.earliestIndexedBlock
	o.logger.Info("Extending block by number lookup", "from", block.Number, "to", number)
	for block.Number > number {
		parent, err := o.L1BlockRefByHash(ctx, block.ParentHash)
		if err != nil {
			return eth.L1BlockRef{}, fmt.Errorf("failed to retrieve block %s: %w", block.ParentHash, err)
		}
		block = parent
		o.hashByNum[block.Number] = block.Hash
		o.earliestIndexedBlock = block
	}
	return block, nil
}

func (o *OracleL1Client) L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	return eth.InfoToL1BlockRef(o.oracle.HeaderByBlockHash(hash)), nil
}

func (o *OracleL1Client) InfoByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, error) {
	return o.oracle.HeaderByBlockHash(hash), nil
}

func (o *OracleL1Client) InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error) {
	info, txs := o.oracle.TransactionsByBlockHash(hash)
	return info, txs, nil
}

func (o *OracleL1Client) FetchReceipts(ctx context.Context, blockHash common.Hash) (eth.BlockInfo, types.Receipts, error) {
	info, rcpts := o.oracle.ReceiptsByBlockHash(blockHash)
	return info, rcpts, nil
}

func (o *OracleL1Client) GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error) {
	blobs := make([]*eth.Blob, len(hashes))
	for i, hash := range hashes {
		blobs[i] = o.oracle.GetBlob(ref, hash)
	}
	return blobs, nil
}

func (o *OracleL1Client) RetrieveBlob(ctx context.Context, batchHeaderHash []byte, blobIndex uint32) ([]byte, error) {
	return o.oracle.GetEigenDABlob(batchHeaderHash, blobIndex), nil
}
