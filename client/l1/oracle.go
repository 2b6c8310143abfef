package l1

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/client/mpt"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/preimage"
)

// Oracle defines the high-level API used to retrieve L1 chain data.
// The returned data is always the verified preimage of the requested hash.
type Oracle interface {
	// HeaderByBlockHash retrieves the block header with the given hash.
	HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo

	// TransactionsByBlockHash retrieves the transactions from the block with the given hash.
	TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions)

	// ReceiptsByBlockHash retrieves the receipts from the block with the given hash.
	ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts)

	// GetBlob retrieves the blob with the given indexed hash, confirmed in the given L1 block.
	GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob

	// GetEigenDABlob retrieves the EigenDA blob at the given index of the given batch.
	GetEigenDABlob(batchHeaderHash []byte, blobIndex uint32) []byte
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

func (p *PreimageOracle) headerByBlockHash(blockHash common.Hash) *types.Header {
	p.hint.Hint(BlockHeaderHint(blockHash))
	headerRlp := p.oracle.Get(preimage.Keccak256Key(blockHash))
	var header types.Header
	if err := rlp.DecodeBytes(headerRlp, &header); err != nil {
		panic(fmt.Errorf("invalid header %s: %w", blockHash, err))
	}
	return &header
}

func (p *PreimageOracle) HeaderByBlockHash(blockHash common.Hash) eth.BlockInfo {
	return eth.HeaderBlockInfo(p.headerByBlockHash(blockHash))
}

func (p *PreimageOracle) TransactionsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Transactions) {
	header := p.headerByBlockHash(blockHash)
	p.hint.Hint(TransactionsHint(blockHash))

	opaqueTxs := mpt.ReadTrie(header.TxHash, func(key common.Hash) []byte {
		return p.oracle.Get(preimage.Keccak256Key(key))
	})

	txs, err := eth.DecodeTransactions(opaqueTxs)
	if err != nil {
		panic(fmt.Errorf("failed to decode list of txs: %w", err))
	}

	return eth.HeaderBlockInfo(header), txs
}

func (p *PreimageOracle) ReceiptsByBlockHash(blockHash common.Hash) (eth.BlockInfo, types.Receipts) {
	info, txs := p.TransactionsByBlockHash(blockHash)

	p.hint.Hint(ReceiptsHint(blockHash))
	opaqueReceipts := mpt.ReadTrie(info.ReceiptHash(), func(key common.Hash) []byte {
		return p.oracle.Get(preimage.Keccak256Key(key))
	})

	txHashes := eth.TransactionsToHashes(txs)
	receipts, err := eth.DecodeRawReceipts(eth.ToBlockID(info), opaqueReceipts, txHashes)
	if err != nil {
		panic(fmt.Errorf("bad receipts data for block %s: %w", blockHash, err))
	}

	return info, receipts
}

func (p *PreimageOracle) GetBlob(ref eth.L1BlockRef, blobHash eth.IndexedBlobHash) *eth.Blob {
	// The request commits to the versioned hash; the host verifies the blob
	// against its KZG commitment before serving it under the generic key.
	req := make([]byte, 48)
	copy(req[:32], blobHash.Hash[:])
	binary.BigEndian.PutUint64(req[32:40], blobHash.Index)
	binary.BigEndian.PutUint64(req[40:48], ref.Time)
	p.hint.Hint(BlobHint(req))

	data := p.oracle.Get(preimage.GlobalGenericKey(crypto.Keccak256Hash(req)))
	if len(data) != eth.BlobSize {
		panic(fmt.Errorf("invalid blob %s at index %d: %d bytes", blobHash.Hash, blobHash.Index, len(data)))
	}
	blob := new(eth.Blob)
	copy(blob[:], data)
	return blob
}

func (p *PreimageOracle) GetEigenDABlob(batchHeaderHash []byte, blobIndex uint32) []byte {
	req := EigenDABlobRequest(batchHeaderHash, blobIndex)
	p.hint.Hint(EigenDABlobHint(req))
	return p.oracle.Get(preimage.GlobalGenericKey(crypto.Keccak256Hash(req)))
}

// EigenDABlobRequest encodes the request bytes that identify one EigenDA blob,
// shared between the client hint/key derivation and the host hint parser.
func EigenDABlobRequest(batchHeaderHash []byte, blobIndex uint32) []byte {
	req := make([]byte, len(batchHeaderHash)+4)
	copy(req, batchHeaderHash)
	binary.BigEndian.PutUint32(req[len(batchHeaderHash):], blobIndex)
	return req
}
