package prefetcher

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
)

// Sources are retried until they succeed or the context is cancelled.
func retryStrategy(ctx context.Context) backoff.BackOffContext {
	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 0
	return backoff.WithContext(strategy, ctx)
}

type RetryingL1Source struct {
	logger log.Logger
	source L1Source
}

func NewRetryingL1Source(logger log.Logger, source L1Source) *RetryingL1Source {
	return &RetryingL1Source{
		logger: logger,
		source: source,
	}
}

func (s *RetryingL1Source) HeaderByHash(ctx context.Context, blockHash common.Hash) (*types.Header, error) {
	return backoff.RetryWithData(func() (*types.Header, error) {
		res, err := s.source.HeaderByHash(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve header", "hash", blockHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

func (s *RetryingL1Source) BlockByHash(ctx context.Context, blockHash common.Hash) (*types.Block, error) {
	return backoff.RetryWithData(func() (*types.Block, error) {
		res, err := s.source.BlockByHash(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve block", "hash", blockHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

func (s *RetryingL1Source) FetchReceipts(ctx context.Context, blockHash common.Hash) (types.Receipts, error) {
	return backoff.RetryWithData(func() (types.Receipts, error) {
		res, err := s.source.FetchReceipts(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to fetch receipts", "hash", blockHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

var _ L1Source = (*RetryingL1Source)(nil)

type RetryingL1BlobSource struct {
	logger log.Logger
	source L1BlobSource
}

func NewRetryingL1BlobSource(logger log.Logger, source L1BlobSource) *RetryingL1BlobSource {
	return &RetryingL1BlobSource{
		logger: logger,
		source: source,
	}
}

func (s *RetryingL1BlobSource) GetBlobSidecars(ctx context.Context, ref eth.L1BlockRef, hashes []eth.IndexedBlobHash) ([]*eth.BlobSidecar, error) {
	return backoff.RetryWithData(func() ([]*eth.BlobSidecar, error) {
		sidecars, err := s.source.GetBlobSidecars(ctx, ref, hashes)
		if err != nil {
			s.logger.Warn("Failed to retrieve blob sidecars", "ref", ref, "err", err)
		}
		return sidecars, err
	}, retryStrategy(ctx))
}

var _ L1BlobSource = (*RetryingL1BlobSource)(nil)

type RetryingEigenDASource struct {
	logger log.Logger
	source EigenDASource
}

func NewRetryingEigenDASource(logger log.Logger, source EigenDASource) *RetryingEigenDASource {
	return &RetryingEigenDASource{
		logger: logger,
		source: source,
	}
}

func (s *RetryingEigenDASource) RetrieveBlob(ctx context.Context, batchHeaderHash []byte, blobIndex uint32) ([]byte, error) {
	return backoff.RetryWithData(func() ([]byte, error) {
		blob, err := s.source.RetrieveBlob(ctx, batchHeaderHash, blobIndex)
		if err != nil {
			s.logger.Warn("Failed to retrieve eigenda blob", "batch", hexutil.Bytes(batchHeaderHash), "index", blobIndex, "err", err)
		}
		return blob, err
	}, retryStrategy(ctx))
}

var _ EigenDASource = (*RetryingEigenDASource)(nil)

type RetryingL2Source struct {
	logger log.Logger
	source L2Source
}

func NewRetryingL2Source(logger log.Logger, source L2Source) *RetryingL2Source {
	return &RetryingL2Source{
		logger: logger,
		source: source,
	}
}

func (s *RetryingL2Source) RawHeaderByHash(ctx context.Context, blockHash common.Hash) (hexutil.Bytes, error) {
	return backoff.RetryWithData(func() (hexutil.Bytes, error) {
		res, err := s.source.RawHeaderByHash(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve header", "hash", blockHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

func (s *RetryingL2Source) RawBlockByHash(ctx context.Context, blockHash common.Hash) (*types.Header, hexutil.Bytes, []hexutil.Bytes, error) {
	type rawBlock struct {
		header    *types.Header
		headerRLP hexutil.Bytes
		txs       []hexutil.Bytes
	}
	res, err := backoff.RetryWithData(func() (rawBlock, error) {
		header, headerRLP, txs, err := s.source.RawBlockByHash(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve block", "hash", blockHash, "err", err)
		}
		return rawBlock{header, headerRLP, txs}, err
	}, retryStrategy(ctx))
	return res.header, res.headerRLP, res.txs, err
}

func (s *RetryingL2Source) NodeByHash(ctx context.Context, nodeHash common.Hash) ([]byte, error) {
	return backoff.RetryWithData(func() ([]byte, error) {
		res, err := s.source.NodeByHash(ctx, nodeHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve node", "hash", nodeHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

func (s *RetryingL2Source) OutputAtBlock(ctx context.Context, blockHash common.Hash) (*eth.OutputV0, error) {
	return backoff.RetryWithData(func() (*eth.OutputV0, error) {
		res, err := s.source.OutputAtBlock(ctx, blockHash)
		if err != nil {
			s.logger.Warn("Failed to retrieve output", "block", blockHash, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

func (s *RetryingL2Source) BlockHashByNumber(ctx context.Context, number uint64) (common.Hash, error) {
	return backoff.RetryWithData(func() (common.Hash, error) {
		res, err := s.source.BlockHashByNumber(ctx, number)
		if err != nil {
			s.logger.Warn("Failed to retrieve block hash", "number", number, "err", err)
		}
		return res, err
	}, retryStrategy(ctx))
}

var _ L2Source = (*RetryingL2Source)(nil)
