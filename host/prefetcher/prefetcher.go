package prefetcher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/client/l1"
	"github.com/mantle-xyz/kona/client/l2"
	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/host/kvstore"
	"github.com/mantle-xyz/kona/preimage"
)

type L1Source interface {
	HeaderByHash(ctx context.Context, blockHash common.Hash) (*types.Header, error)
	BlockByHash(ctx context.Context, blockHash common.Hash) (*types.Block, error)
	FetchReceipts(ctx context.Context, blockHash common.Hash) (types.Receipts, error)
}

type L1BlobSource interface {
	GetBlobSidecars(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.BlobSidecar, error)
}

type EigenDASource interface {
	RetrieveBlob(ctx context.Context, batchHeaderHash []byte, blobIndex uint32) ([]byte, error)
}

type L2Source interface {
	RawHeaderByHash(ctx context.Context, blockHash common.Hash) (hexutil.Bytes, error)
	RawBlockByHash(ctx context.Context, blockHash common.Hash) (*types.Header, hexutil.Bytes, []hexutil.Bytes, error)
	NodeByHash(ctx context.Context, nodeHash common.Hash) ([]byte, error)
	OutputAtBlock(ctx context.Context, blockHash common.Hash) (*eth.OutputV0, error)
	BlockHashByNumber(ctx context.Context, number uint64) (common.Hash, error)
}

// Prefetcher serves pre-image requests by fetching the data from trusted
// sources on demand, guided by the hints the client sends ahead of each read.
// Fetched pre-images are persisted in the key-value store so a later run can
// replay without any sources.
type Prefetcher struct {
	logger         log.Logger
	l1Fetcher      L1Source
	l1BlobFetcher  L1BlobSource
	eigenDAFetcher EigenDASource
	l2Fetcher      L2Source
	l2Head         common.Hash
	lastHint       string
	kvStore        kvstore.KV
}

func NewPrefetcher(logger log.Logger, l1Fetcher L1Source, l1BlobFetcher L1BlobSource, eigenDAFetcher EigenDASource, l2Fetcher L2Source, l2Head common.Hash, kvStore kvstore.KV) *Prefetcher {
	return &Prefetcher{
		logger:         logger,
		l1Fetcher:      NewRetryingL1Source(logger, l1Fetcher),
		l1BlobFetcher:  NewRetryingL1BlobSource(logger, l1BlobFetcher),
		eigenDAFetcher: NewRetryingEigenDASource(logger, eigenDAFetcher),
		l2Fetcher:      NewRetryingL2Source(logger, l2Fetcher),
		l2Head:         l2Head,
		kvStore:        kvStore,
	}
}

func (p *Prefetcher) Hint(hint string) error {
	p.logger.Trace("Received hint", "hint", hint)
	p.lastHint = hint
	return nil
}

func (p *Prefetcher) GetPreimage(ctx context.Context, key [32]byte) ([]byte, error) {
	p.logger.Trace("Pre-image requested", "key", common.Hash(key))
	pre, err := p.kvStore.Get(common.Hash(key))
	// Use a loop to keep retrying the prefetch as long as the key is not found
	// This handles the case where the prefetch downloads a preimage, but it is then deleted unexpectedly
	// before we get to read it.
	for errors.Is(err, kvstore.ErrNotFound) && p.lastHint != "" {
		hint := p.lastHint
		if err := p.prefetch(ctx, hint); err != nil {
			return nil, fmt.Errorf("prefetch failed: %w", err)
		}
		pre, err = p.kvStore.Get(common.Hash(key))
		if err != nil {
			p.logger.Error("Fetched pre-images for last hint but did not find required key", "hint", hint, "key", common.Hash(key))
		}
	}
	return pre, err
}

func (p *Prefetcher) prefetch(ctx context.Context, hint string) error {
	hintType, hintBytes, err := parseHint(hint)
	if err != nil {
		return err
	}
	p.logger.Debug("Prefetching", "type", hintType, "bytes", hexutil.Bytes(hintBytes))
	switch hintType {
	case l1.HintL1BlockHeader:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L1 block hint: %x", hint)
		}
		hash := common.Hash(hintBytes)
		header, err := p.l1Fetcher.HeaderByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to fetch L1 block %s header: %w", hash, err)
		}
		data, err := rlp.EncodeToBytes(header)
		if err != nil {
			return fmt.Errorf("marshall header: %w", err)
		}
		return p.kvStore.Put(common.Hash(preimage.Keccak256Key(hash).PreimageKey()), data)
	case l1.HintL1Transactions:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L1 transactions hint: %x", hint)
		}
		hash := common.Hash(hintBytes)
		block, err := p.l1Fetcher.BlockByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to fetch L1 block %s txs: %w", hash, err)
		}
		return p.storeL1Transactions(block.Transactions())
	case l1.HintL1Receipts:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L1 receipts hint: %x", hint)
		}
		hash := common.Hash(hintBytes)
		receipts, err := p.l1Fetcher.FetchReceipts(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to fetch L1 block %s receipts: %w", hash, err)
		}
		return p.storeReceipts(receipts)
	case l1.HintL1Blob:
		if len(hintBytes) != 48 {
			return fmt.Errorf("invalid blob hint: %x", hint)
		}
		blobVersionHash := common.Hash(hintBytes[:32])
		blobHashIndex := binary.BigEndian.Uint64(hintBytes[32:40])
		refTimestamp := binary.BigEndian.Uint64(hintBytes[40:48])

		// Fetch the blob sidecar for the indexed blob hash passed in the hint.
		indexedBlobHash := eth.IndexedBlobHash{
			Hash:  blobVersionHash,
			Index: blobHashIndex,
		}
		// GetBlobSidecars only uses the timestamp of the ref, which we received in the hint.
		sidecars, err := p.l1BlobFetcher.GetBlobSidecars(ctx, eth.L1BlockRef{Time: refTimestamp}, []eth.IndexedBlobHash{indexedBlobHash})
		if err != nil || len(sidecars) != 1 {
			return fmt.Errorf("failed to fetch blob sidecars for %s %d: %w", blobVersionHash, blobHashIndex, err)
		}
		sidecar := sidecars[0]

		// The client commits to the versioned hash through the request, so the
		// blob must be checked against it before it is stored.
		if hash := eth.KZGToVersionedHash(sidecar.KZGCommitment); common.Hash(hash) != blobVersionHash {
			return fmt.Errorf("blob sidecar of %s %d has versioned hash %s", blobVersionHash, blobHashIndex, common.Hash(hash))
		}
		if err := eth.VerifyBlobProof(&sidecar.Blob, sidecar.KZGCommitment, sidecar.KZGProof); err != nil {
			return fmt.Errorf("invalid blob proof for %s %d: %w", blobVersionHash, blobHashIndex, err)
		}
		key := preimage.GlobalGenericKey(crypto.Keccak256Hash(hintBytes))
		return p.kvStore.Put(common.Hash(key.PreimageKey()), sidecar.Blob[:])
	case l1.HintEigenDABlob:
		if len(hintBytes) < 5 {
			return fmt.Errorf("invalid eigenda blob hint: %x", hint)
		}
		batchHeaderHash := hintBytes[:len(hintBytes)-4]
		blobIndex := binary.BigEndian.Uint32(hintBytes[len(hintBytes)-4:])
		blob, err := p.eigenDAFetcher.RetrieveBlob(ctx, batchHeaderHash, blobIndex)
		if err != nil {
			return fmt.Errorf("failed to fetch eigenda blob %x %d: %w", batchHeaderHash, blobIndex, err)
		}
		key := preimage.GlobalGenericKey(crypto.Keccak256Hash(hintBytes))
		return p.kvStore.Put(common.Hash(key.PreimageKey()), blob)
	case l2.HintL2BlockHeader, l2.HintL2Transactions:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L2 header/tx hint: %x", hint)
		}
		hash := common.Hash(hintBytes)
		_, headerRLP, txs, err := p.l2Fetcher.RawBlockByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to fetch L2 block %s: %w", hash, err)
		}
		if err := p.kvStore.Put(common.Hash(preimage.Keccak256Key(hash).PreimageKey()), headerRLP); err != nil {
			return err
		}
		return p.storeTrieNodes(txs)
	case l2.HintL2StateNode:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L2 state node hint: %x", hint)
		}
		hash := common.Hash(hintBytes)
		node, err := p.l2Fetcher.NodeByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to fetch L2 state node %s: %w", hash, err)
		}
		return p.kvStore.Put(common.Hash(preimage.Keccak256Key(hash).PreimageKey()), node)
	case l2.HintL2Output:
		if len(hintBytes) != 32 {
			return fmt.Errorf("invalid L2 output hint: %x", hint)
		}
		requestedRoot := common.Hash(hintBytes)
		// Outputs are only ever requested at the agreed starting block, so the
		// lookup is pinned there and checked against the requested root.
		output, err := p.l2Fetcher.OutputAtBlock(ctx, p.l2Head)
		if err != nil {
			return fmt.Errorf("failed to fetch L2 output at %s: %w", p.l2Head, err)
		}
		data := output.Marshal()
		if root := crypto.Keccak256Hash(data); root != requestedRoot {
			return fmt.Errorf("output at %s has root %s, requested %s", p.l2Head, root, requestedRoot)
		}
		return p.kvStore.Put(common.Hash(preimage.Keccak256Key(requestedRoot).PreimageKey()), data)
	case l2.HintL2BlockByNumber:
		if len(hintBytes) != 8 {
			return fmt.Errorf("invalid L2 block by number hint: %x", hint)
		}
		number := binary.BigEndian.Uint64(hintBytes)
		hash, err := p.l2Fetcher.BlockHashByNumber(ctx, number)
		if err != nil {
			return fmt.Errorf("failed to fetch L2 block hash at %d: %w", number, err)
		}
		key := preimage.GlobalGenericKey(crypto.Keccak256Hash(hintBytes))
		return p.kvStore.Put(common.Hash(key.PreimageKey()), hash[:])
	}

	return fmt.Errorf("unknown hint type: %v", hintType)
}

func (p *Prefetcher) storeReceipts(receipts types.Receipts) error {
	opaqueReceipts, err := encodeReceipts(receipts)
	if err != nil {
		return err
	}
	return p.storeTrieNodes(opaqueReceipts)
}

func (p *Prefetcher) storeL1Transactions(txs types.Transactions) error {
	opaqueTxs, err := encodeTransactions(txs)
	if err != nil {
		return err
	}
	return p.storeTrieNodes(opaqueTxs)
}

func (p *Prefetcher) storeTrieNodes(values []hexutil.Bytes) error {
	_, nodes := mpt.WriteTrie(values)
	for _, node := range nodes {
		key := preimage.Keccak256Key(crypto.Keccak256Hash(node)).PreimageKey()
		if err := p.kvStore.Put(common.Hash(key), node); err != nil {
			return fmt.Errorf("failed to store node: %w", err)
		}
	}
	return nil
}

func encodeReceipts(receipts types.Receipts) ([]hexutil.Bytes, error) {
	opaque := make([]hexutil.Bytes, len(receipts))
	for i, receipt := range receipts {
		data, err := receipt.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode receipt %d: %w", i, err)
		}
		opaque[i] = data
	}
	return opaque, nil
}

func encodeTransactions(txs types.Transactions) ([]hexutil.Bytes, error) {
	opaque := make([]hexutil.Bytes, len(txs))
	for i, tx := range txs {
		data, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		opaque[i] = data
	}
	return opaque, nil
}

// parseHint parses a hint string in wire protocol. Returns the hint type, requested bytes and error (if any).
func parseHint(hint string) (string, []byte, error) {
	hintType, bytesStr, found := strings.Cut(hint, " ")
	if !found {
		return "", nil, fmt.Errorf("unsupported hint: %s", hint)
	}

	hintBytes, err := hexutil.Decode(bytesStr)
	if err != nil {
		return "", make([]byte, 0), fmt.Errorf("invalid bytes: %s", bytesStr)
	}
	return hintType, hintBytes, nil
}
