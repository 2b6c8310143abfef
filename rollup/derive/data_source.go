package derive

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// DataIter is a minimal iteration interface to fetch rollup input data from an
// arbitrary data-availability source. It returns io.EOF when the block is drained.
type DataIter interface {
	Next(ctx context.Context) (eth.Data, error)
}

// L1TransactionFetcher fetches block info and transactions of an L1 block.
type L1TransactionFetcher interface {
	InfoAndTxsByHash(ctx context.Context, hash common.Hash) (eth.BlockInfo, types.Transactions, error)
}

// L1BlobsFetcher fetches blobs referenced by 4844 batcher transactions.
type L1BlobsFetcher interface {
	// GetBlobs fetches blobs that were confirmed in the given L1 block with the given indexed hashes.
	GetBlobs(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.Blob, error)
}

// EigenDAProvider fetches blobs stored with the EigenDA alt-DA layer.
type EigenDAProvider interface {
	// RetrieveBlob fetches the blob identified by the given batch header hash and blob index.
	RetrieveBlob(ctx context.Context, batchHeaderHash []byte, blobIndex uint32) ([]byte, error)
}

// DataSourceFactory reads raw batcher input data from a given L1 block.
// The DA backend is fixed at construction from the rollup config: chains with
// the Mantle DA switch set read through EigenDA, others read calldata, or
// blobs when a blob fetcher is available.
// ErrNoEigenDAProvider is returned when the rollup config selects the Mantle DA
// path but the factory was built without an EigenDA provider.
var ErrNoEigenDAProvider = errors.New("no EigenDA provider available")

type DataSourceFactory struct {
	log      log.Logger
	dsCfg    DataSourceConfig
	fetcher  L1TransactionFetcher
	blobs    L1BlobsFetcher
	eigenDA  EigenDAProvider
	mantleDA bool
}

func NewDataSourceFactory(log log.Logger, cfg *rollup.Config, fetcher L1TransactionFetcher, blobs L1BlobsFetcher, eigenDA EigenDAProvider) *DataSourceFactory {
	return &DataSourceFactory{
		log: log,
		dsCfg: DataSourceConfig{
			l1Signer:          cfg.L1Signer(),
			batchInboxAddress: cfg.BatchInboxAddress,
		},
		fetcher:  fetcher,
		blobs:    blobs,
		eigenDA:  eigenDA,
		mantleDA: cfg.MantleDASwitch,
	}
}

// OpenData returns the appropriate data source for the L1 block `ref`.
func (ds *DataSourceFactory) OpenData(ctx context.Context, ref eth.L1BlockRef, batcherAddr common.Address) (DataIter, error) {
	if ds.mantleDA {
		if ds.eigenDA == nil {
			return nil, NewCriticalError(ErrNoEigenDAProvider)
		}
		return NewEigenDADataSource(ctx, ds.log, ds.dsCfg, ds.fetcher, ds.blobs, ds.eigenDA, ref, batcherAddr), nil
	}
	if ds.blobs != nil {
		return NewBlobDataSource(ctx, ds.log, ds.dsCfg, ds.fetcher, ds.blobs, ref, batcherAddr), nil
	}
	return NewCalldataSource(ctx, ds.log, ds.dsCfg, ds.fetcher, ref, batcherAddr), nil
}

// DataSourceConfig regroups the mandatory rollup.Config fields needed for DataFromEVMTransactions.
type DataSourceConfig struct {
	l1Signer          types.Signer
	batchInboxAddress common.Address
}

// isValidBatchTx returns true if:
//  1. the transaction has a To() address that matches the batch inbox address, and
//  2. the transaction has a valid signature from the batcher address
func isValidBatchTx(tx *types.Transaction, l1Signer types.Signer, batchInboxAddr, batcherAddr common.Address) bool {
	to := tx.To()
	if to == nil || *to != batchInboxAddr {
		return false
	}
	seqDataSubmitter, err := l1Signer.Sender(tx) // optimization: only derive sender if To is correct
	if err != nil {
		return false
	}
	// some random L1 user might have sent a transaction to our batch inbox, ignore them
	return seqDataSubmitter == batcherAddr
}
