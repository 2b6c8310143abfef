package derive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/eth"
)

// DerivationVersionEigenDA is the version byte prefixing batcher calldata that
// references data stored with EigenDA instead of carrying it inline. It keeps
// alt-DA rollups distinguishable from plain calldata rollups on the same inbox.
const DerivationVersionEigenDA = 0xed

// EigenDAFrameRef points at a blob stored with EigenDA.
type EigenDAFrameRef struct {
	BatchHeaderHash []byte
	BlobIndex       uint32
	BlobLength      uint32
	QuorumIDs       []uint32
}

// eigenDACalldataFrame is the decoded envelope behind the EigenDA version byte:
// either an inline frame payload or a reference to externally stored data.
type eigenDACalldataFrame struct {
	Frame    []byte
	FrameRef *EigenDAFrameRef `rlp:"nil"`
}

// EigenDADataSource reads batcher data stored with the EigenDA alt-DA layer.
// Batcher transactions either reference an EigenDA blob through a frame ref in
// their calldata, carry an inline frame, or fall back to 4844 blobs.
type EigenDADataSource struct {
	open bool
	data []eth.Data

	ref         eth.L1BlockRef
	dsCfg       DataSourceConfig
	fetcher     L1TransactionFetcher
	blobs       L1BlobsFetcher
	eigenDA     EigenDAProvider
	batcherAddr common.Address
	log         log.Logger
}

func NewEigenDADataSource(ctx context.Context, log log.Logger, dsCfg DataSourceConfig, fetcher L1TransactionFetcher, blobs L1BlobsFetcher, eigenDA EigenDAProvider, ref eth.L1BlockRef, batcherAddr common.Address) DataIter {
	return &EigenDADataSource{
		ref:         ref,
		dsCfg:       dsCfg,
		fetcher:     fetcher,
		blobs:       blobs,
		eigenDA:     eigenDA,
		batcherAddr: batcherAddr,
		log:         log.New("origin", ref),
	}
}

func (ds *EigenDADataSource) Next(ctx context.Context) (eth.Data, error) {
	if !ds.open {
		if err := ds.load(ctx); err != nil {
			return nil, err
		}
	}
	if len(ds.data) == 0 {
		return nil, io.EOF
	}
	data := ds.data[0]
	ds.data = ds.data[1:]
	return data, nil
}

func (ds *EigenDADataSource) load(ctx context.Context) error {
	_, txs, err := ds.fetcher.InfoAndTxsByHash(ctx, ds.ref.Hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return NewResetError(fmt.Errorf("failed to open EigenDA data source: %w", err))
		}
		return NewTemporaryError(fmt.Errorf("failed to open EigenDA data source: %w", err))
	}

	data, hashes, err := ds.dataFromEigenDA(ctx, txs)
	if err != nil {
		return err
	}

	if len(hashes) > 0 {
		// Blob-carried data of one batcher tx spans all of its blobs: fetch
		// them, concatenate, and unwrap the RLP envelope around the payload.
		blobs, err := ds.blobs.GetBlobs(ctx, ds.ref, hashes)
		if errors.Is(err, ethereum.NotFound) {
			return NewResetError(fmt.Errorf("failed to fetch blobs: %w", err))
		} else if err != nil {
			return NewTemporaryError(fmt.Errorf("failed to fetch blobs: %w", err))
		}
		var wholeBlobData []byte
		for _, blob := range blobs {
			if blob == nil {
				return NewResetError(errors.New("missing blob body"))
			}
			wholeBlobData = append(wholeBlobData, blob[:]...)
		}
		var payload []byte
		if err := rlp.DecodeBytes(wholeBlobData, &payload); err != nil {
			ds.log.Warn("ignoring undecodable blob payload", "err", err)
		} else {
			data = append(data, payload)
		}
	}

	ds.open = true
	ds.data = data
	return nil
}

// dataFromEigenDA walks the block's transactions and resolves every batcher
// entry: inline frames are taken as-is, frame refs are fetched from EigenDA,
// and 4844 blob references are collected for the caller to resolve.
func (ds *EigenDADataSource) dataFromEigenDA(ctx context.Context, txs types.Transactions) ([]eth.Data, []eth.IndexedBlobHash, error) {
	out := []eth.Data{}
	var hashes []eth.IndexedBlobHash
	blobIndex := uint64(0)

	for _, tx := range txs {
		if !isValidBatchTx(tx, ds.dsCfg.l1Signer, ds.dsCfg.batchInboxAddress, ds.batcherAddr) {
			blobIndex += uint64(len(tx.BlobHashes()))
			continue
		}
		calldata := tx.Data()
		if len(calldata) == 0 {
			if tx.Type() == types.BlobTxType {
				for _, h := range tx.BlobHashes() {
					hashes = append(hashes, eth.IndexedBlobHash{Index: blobIndex, Hash: h})
					blobIndex++
				}
			}
			continue
		}
		if calldata[0] != DerivationVersionEigenDA {
			// plain batcher calldata on an alt-DA chain is not valid input
			ds.log.Warn("ignoring batcher tx with unknown derivation version", "version", calldata[0])
			continue
		}

		var frame eigenDACalldataFrame
		if err := rlp.DecodeBytes(calldata[1:], &frame); err != nil {
			ds.log.Warn("ignoring undecodable EigenDA calldata frame", "err", err)
			continue
		}
		if frame.FrameRef == nil {
			out = append(out, frame.Frame)
			continue
		}
		if len(frame.FrameRef.QuorumIDs) == 0 {
			ds.log.Warn("decoded frame ref contains no quorum IDs")
			continue
		}
		blobData, err := ds.eigenDA.RetrieveBlob(ctx, frame.FrameRef.BatchHeaderHash, frame.FrameRef.BlobIndex)
		if err != nil {
			return nil, nil, NewTemporaryError(fmt.Errorf("failed to retrieve EigenDA blob %d of batch %x: %w",
				frame.FrameRef.BlobIndex, frame.FrameRef.BatchHeaderHash, err))
		}
		if uint64(len(blobData)) < uint64(frame.FrameRef.BlobLength) {
			ds.log.Warn("EigenDA blob is shorter than its frame ref claims", "len", len(blobData), "expected", frame.FrameRef.BlobLength)
			continue
		}
		var payload []byte
		if err := rlp.DecodeBytes(blobData[:frame.FrameRef.BlobLength], &payload); err != nil {
			ds.log.Warn("ignoring undecodable EigenDA blob payload", "err", err)
			continue
		}
		out = append(out, payload)
	}
	return out, hashes, nil
}
