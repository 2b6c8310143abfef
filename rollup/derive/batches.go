package derive

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

type BatchValidity uint8

const (
	// BatchDrop indicates that the batch is invalid, and will always be in the future, unless we reorg
	BatchDrop BatchValidity = iota
	// BatchAccept indicates that the batch is valid and should be processed
	BatchAccept
	// BatchUndecided indicates that we are lacking L1 information until we can proceed batch filtering
	BatchUndecided
	// BatchFuture indicates that the batch may be valid, but cannot be processed yet and should be checked again later
	BatchFuture
)

// CheckBatch checks if the given batch can be applied on top of the given l2SafeHead, given the
// contextual L1 blocks the batch was included in. The first entry of the l1Blocks should match
// the origin of the l2SafeHead. One or more consecutive l1Blocks should be provided. In case of
// only a single L1 block, the decision whether a batch is valid may have to stay undecided.
func CheckBatch(cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef,
	l2SafeHead eth.L2BlockRef, batch *BatchWithL1InclusionBlock) BatchValidity {
	switch typ := batch.Batch.GetBatchType(); typ {
	case SingularBatchType:
		singularBatch, ok := batch.Batch.(*SingularBatch)
		if !ok {
			log.Error("failed type assertion to SingularBatch")
			return BatchDrop
		}
		return checkSingularBatch(cfg, log, l1Blocks, l2SafeHead, singularBatch, batch.L1InclusionBlock)
	case SpanBatchType:
		spanBatch, ok := batch.Batch.(*SpanBatch)
		if !ok {
			log.Error("failed type assertion to SpanBatch")
			return BatchDrop
		}
		return checkSpanBatch(cfg, log, l1Blocks, l2SafeHead, spanBatch, batch.L1InclusionBlock)
	default:
		log.Warn("unrecognized batch type", "batch_type", typ)
		return BatchDrop
	}
}

// checkSingularBatch implements the protocol batch filtering rules for a singular batch.
func checkSingularBatch(cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef,
	l2SafeHead eth.L2BlockRef, batch *SingularBatch, l1InclusionBlock eth.L1BlockRef) BatchValidity {
	// add details to the log
	log = batch.LogContext(log)

	// sanity check we have consistent inputs
	if len(l1Blocks) == 0 {
		log.Warn("missing L1 block input, cannot proceed with batch checking")
		return BatchUndecided
	}
	epoch := l1Blocks[0]

	nextTimestamp := l2SafeHead.Time + cfg.BlockTime
	if batch.Timestamp > nextTimestamp {
		log.Trace("received out-of-order batch for future processing after next batch", "next_timestamp", nextTimestamp)
		return BatchFuture
	}
	if batch.Timestamp < nextTimestamp {
		log.Warn("dropping batch with old timestamp", "min_timestamp", nextTimestamp)
		return BatchDrop
	}

	// dependent on above timestamp check. If the timestamp is correct, then it must build on top of the safe head.
	if batch.ParentHash != l2SafeHead.Hash {
		log.Warn("ignoring batch with mismatching parent hash", "current_safe_head", l2SafeHead.Hash)
		return BatchDrop
	}

	// Filter out batches that were included too late.
	if uint64(batch.EpochNum)+cfg.SeqWindowSize < l1InclusionBlock.Number {
		log.Warn("batch was included too late, sequence window expired")
		return BatchDrop
	}

	// Check the L1 origin of the batch
	batchOrigin := epoch
	if uint64(batch.EpochNum) < epoch.Number {
		log.Warn("dropped batch, epoch is too old", "minimum", epoch.ID())
		// batch epoch too old
		return BatchDrop
	} else if uint64(batch.EpochNum) == epoch.Number {
		// Batch is sticking to the current epoch, continue.
	} else if uint64(batch.EpochNum) == epoch.Number+1 {
		// With only 1 l1Block we cannot look at the next L1 Origin.
		// Note: This means that we are unable to determine validity of a batch
		// without more information. In this case we should bail out until we have
		// more information otherwise the eager algorithm may diverge from a non-eager
		// algorithm.
		if len(l1Blocks) < 2 {
			log.Info("eager batch wants to advance epoch, but could not without more L1 blocks", "current_epoch", epoch.ID())
			return BatchUndecided
		}
		batchOrigin = l1Blocks[1]
	} else {
		log.Warn("batch is for future epoch too far ahead, while it has the next timestamp, so it must be invalid", "current_epoch", epoch.ID())
		return BatchDrop
	}

	if batch.EpochHash != batchOrigin.Hash {
		log.Warn("batch is for different L1 chain, epoch hash does not match", "expected", batchOrigin.ID())
		return BatchDrop
	}

	if batch.Timestamp < batchOrigin.Time {
		log.Warn("batch timestamp is less than L1 origin timestamp", "l2_timestamp", batch.Timestamp, "l1_timestamp", batchOrigin.Time, "origin", batchOrigin.ID())
		return BatchDrop
	}

	// Check if we ran out of sequencer time drift
	if max := batchOrigin.Time + cfg.MaxSequencerDrift; batch.Timestamp > max {
		if len(batch.Transactions) == 0 {
			// If the sequencer is co-operating by producing an empty batch,
			// then allow the batch if it was the right thing to do to maintain the L2 time >= L1 time invariant.
			// We only check batches that do not advance the epoch, to ensure epoch advancement regardless of time drift is allowed.
			if epoch.Number == batchOrigin.Number {
				if len(l1Blocks) < 2 {
					log.Info("without the next L1 origin we cannot determine yet if this empty batch that exceeds the time drift is still valid")
					return BatchUndecided
				}
				nextOrigin := l1Blocks[1]
				// If the next L1 origin could have been adopted the batch is invalid.
				if batch.Timestamp >= nextOrigin.Time {
					log.Info("batch exceeded sequencer time drift without adopting next origin, and next L1 origin would have been valid")
					return BatchDrop
				} else {
					log.Info("continuing with empty batch before late L1 block to preserve L2 time invariant")
				}
			}
		} else {
			// If the sequencer is ignoring the time drift rule, then drop the batch and force an empty batch instead,
			// as the sequencer is not allowed to include anything past this point without moving to the next epoch.
			log.Warn("batch exceeded sequencer time drift, sequencer must adopt new L1 origin to include transactions again", "max_time", max)
			return BatchDrop
		}
	}

	// We can do this check earlier, but it's a more intensive one, so we do this last.
	for i, txBytes := range batch.Transactions {
		if len(txBytes) == 0 {
			log.Warn("transaction data must not be empty, but found empty tx", "tx_index", i)
			return BatchDrop
		}
		if txBytes[0] == DepositTxType {
			log.Warn("sequencers may not embed any deposits into batch data, but found tx that has one", "tx_index", i)
			return BatchDrop
		}
	}

	return BatchAccept
}

// checkSpanBatch implements the protocol batch filtering rules for a span batch.
// Spans overlapping already-derived blocks are dropped: the derivation cursor only
// tracks the safe head, so overlapped blocks cannot be re-verified against the chain.
func checkSpanBatch(cfg *rollup.Config, log log.Logger, l1Blocks []eth.L1BlockRef,
	l2SafeHead eth.L2BlockRef, batch *SpanBatch, l1InclusionBlock eth.L1BlockRef) BatchValidity {
	// add details to the log
	log = batch.LogContext(log)

	// sanity check we have consistent inputs
	if len(l1Blocks) == 0 {
		log.Warn("missing L1 block input, cannot proceed with batch checking")
		return BatchUndecided
	}
	epoch := l1Blocks[0]

	if batch.GetBlockCount() == 0 {
		log.Warn("dropping empty span batch")
		return BatchDrop
	}

	nextTimestamp := l2SafeHead.Time + cfg.BlockTime
	startTimestamp := batch.GetTimestamp()
	lastTimestamp := batch.Batches[batch.GetBlockCount()-1].Timestamp
	if startTimestamp > nextTimestamp {
		log.Trace("received out-of-order batch for future processing after next batch", "next_timestamp", nextTimestamp)
		return BatchFuture
	}
	if lastTimestamp < nextTimestamp {
		log.Warn("span batch has no new blocks after safe head")
		return BatchDrop
	}
	if startTimestamp < nextTimestamp {
		log.Warn("dropping span batch overlapping already derived blocks", "min_timestamp", nextTimestamp)
		return BatchDrop
	}
	if (startTimestamp-cfg.Genesis.L2Time)%cfg.BlockTime != 0 {
		log.Warn("span batch has no new blocks on the block time grid")
		return BatchDrop
	}

	if !batch.CheckParentHash(l2SafeHead.Hash) {
		log.Warn("ignoring batch with mismatching parent hash", "current_safe_head", l2SafeHead.Hash)
		return BatchDrop
	}

	startEpochNum := uint64(batch.GetStartEpochNum())

	// Filter out batches that were included too late.
	if startEpochNum+cfg.SeqWindowSize < l1InclusionBlock.Number {
		log.Warn("batch was included too late, sequence window expired")
		return BatchDrop
	}

	// Check the L1 origin of the batch
	if startEpochNum > epoch.Number+1 {
		log.Warn("batch is for future epoch too far ahead, while it has the next timestamp, so it must be invalid", "current_epoch", epoch.ID())
		return BatchDrop
	}
	if startEpochNum < epoch.Number {
		log.Warn("dropped batch, epoch is too old", "minimum", epoch.ID())
		return BatchDrop
	}

	// Find the L1 origin of the last block in the span to verify the origin check bytes.
	endEpochNum := uint64(batch.Batches[batch.GetBlockCount()-1].EpochNum)
	originChecked := false
	for _, l1Block := range l1Blocks {
		if l1Block.Number == endEpochNum {
			if !batch.CheckOriginHash(l1Block.Hash) {
				log.Warn("batch is for different L1 chain, epoch hash does not match", "expected", l1Block.Hash)
				return BatchDrop
			}
			originChecked = true
			break
		}
	}
	if !originChecked {
		log.Info("need more l1 blocks to check entire origins of span batch")
		return BatchUndecided
	}

	originIdx := 0
	for i, element := range batch.Batches {
		if element.Timestamp != startTimestamp+uint64(i)*cfg.BlockTime {
			log.Warn("span batch has block with wrong timestamp", "block_index", i)
			return BatchDrop
		}
		// find the matching L1 origin for this element
		originFound := false
		var l1Origin eth.L1BlockRef
		for j := originIdx; j < len(l1Blocks); j++ {
			if l1Blocks[j].Number == uint64(element.EpochNum) {
				l1Origin = l1Blocks[j]
				originIdx = j
				originFound = true
				break
			}
		}
		if !originFound {
			if uint64(element.EpochNum) > l1Blocks[len(l1Blocks)-1].Number {
				log.Info("need more l1 blocks to check entire origins of span batch")
				return BatchUndecided
			}
			log.Warn("span batch epoch is not part of the canonical L1 chain", "block_index", i, "epoch", element.EpochNum)
			return BatchDrop
		}
		if element.Timestamp < l1Origin.Time {
			log.Warn("block timestamp is less than L1 origin timestamp", "block_index", i,
				"l2_timestamp", element.Timestamp, "l1_timestamp", l1Origin.Time, "origin", l1Origin.ID())
			return BatchDrop
		}
		if max := l1Origin.Time + cfg.MaxSequencerDrift; element.Timestamp > max && len(element.Transactions) > 0 {
			log.Warn("batch exceeded sequencer time drift, sequencer must adopt new L1 origin to include transactions again",
				"block_index", i, "max_time", max)
			return BatchDrop
		}
		for j, txBytes := range element.Transactions {
			if len(txBytes) == 0 {
				log.Warn("transaction data must not be empty, but found empty tx", "block_index", i, "tx_index", j)
				return BatchDrop
			}
			if txBytes[0] == DepositTxType {
				log.Warn("sequencers may not embed any deposits into batch data, but found tx that has one", "block_index", i, "tx_index", j)
				return BatchDrop
			}
		}
	}

	return BatchAccept
}
