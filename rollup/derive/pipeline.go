package derive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// ResettableStage is a stage the derivation pipeline can reset.
// A reset clears all in-flight state; the stage resumes from the given L1 base
// block and system config. Reset returns io.EOF when it completed.
type ResettableStage interface {
	Reset(ctx context.Context, base eth.L1BlockRef, sysCfg eth.SystemConfig) error
}

// L1Fetcher is the complete chain-data-source interface of the pipeline.
type L1Fetcher interface {
	L1BlockRefByNumberFetcher
	L1TransactionFetcher
	L1ReceiptsFetcher
}

// DerivationPipeline derives payload attributes from L1 data. It pulls the
// stage chain from the outside in: every Step attempts to produce the
// attributes of the next L2 block on top of the given parent, advancing the
// L1 traversal only when all inner stages are drained.
//
// A reset is all-or-nothing: once triggered, every stage is reset from the
// same base before any data flows again, so the single-delivery invariant
// holds across the reset.
type DerivationPipeline struct {
	log       log.Logger
	cfg       *rollup.Config
	l1Fetcher L1Fetcher

	// Index of the stage that is currently being reset.
	// >= len(stages) if no additional resetting is required
	resetting   int
	resetBase   eth.L1BlockRef
	resetSysCfg eth.SystemConfig

	// stages in execution order, outermost stage first
	stages []ResettableStage

	traversal *L1Traversal
	attrib    *AttributesQueue
}

// NewDerivationPipeline creates a derivation pipeline, which should be reset before use.
func NewDerivationPipeline(log log.Logger, cfg *rollup.Config, l1Fetcher L1Fetcher, blobs L1BlobsFetcher, eigenDA EigenDAProvider, l2 SystemConfigL2Fetcher) *DerivationPipeline {
	// Pull stages
	l1Traversal := NewL1Traversal(log, cfg, l1Fetcher)
	dataSrc := NewDataSourceFactory(log, cfg, l1Fetcher, blobs, eigenDA) // auxiliary stage for L1Retrieval
	l1Src := NewL1Retrieval(log, dataSrc, l1Traversal)
	frameQueue := NewFrameQueue(log, l1Src)
	bank := NewChannelBank(log, cfg, frameQueue)
	chInReader := NewChannelInReader(log, cfg, bank)
	batchQueue := NewBatchQueue(log, cfg, chInReader)
	attrBuilder := NewFetchingAttributesBuilder(cfg, l1Fetcher, l2)
	attributesQueue := NewAttributesQueue(log, cfg, attrBuilder, batchQueue)

	// Reset from the outside in, so inner stages do not observe data of an un-reset outer stage.
	stages := []ResettableStage{l1Traversal, l1Src, frameQueue, bank, chInReader, batchQueue, attributesQueue}

	return &DerivationPipeline{
		log:       log,
		cfg:       cfg,
		l1Fetcher: l1Fetcher,
		resetting: len(stages),
		stages:    stages,
		traversal: l1Traversal,
		attrib:    attributesQueue,
	}
}

// Reset schedules a full pipeline reset from the given base: the L1 origin of
// the L2 safe head, with the system config as of that head. The reset itself
// happens over the next Step calls.
func (dp *DerivationPipeline) Reset(base eth.L1BlockRef, sysCfg eth.SystemConfig) {
	dp.resetting = 0
	dp.resetBase = base
	dp.resetSysCfg = sysCfg
}

// Origin is the L1 block of the inner-most stage of the derivation pipeline,
// i.e. the L1 chain up to and including this point included and/or produced all the safe L2 blocks.
func (dp *DerivationPipeline) Origin() eth.L1BlockRef {
	return dp.attrib.Origin()
}

// Step tries to progress the pipeline and produce the attributes of the L2
// block building on top of parent. Return values:
//   - (attrs, nil): attributes were produced.
//   - (nil, NotEnoughData): internal progress was made, call Step again.
//   - (nil, io.EOF): all stages are drained for the current L1 origin, and the
//     traversal advanced; call Step again with the same parent.
//   - (nil, ErrEndOfData): the L1 head is reached, derivation is exhausted.
//   - (nil, err) for Temporary/Reset/Critical errors, to be handled by the driver.
func (dp *DerivationPipeline) Step(ctx context.Context, parent eth.L2BlockRef) (*eth.PayloadAttributes, error) {
	// reset any stage that is not yet reset
	if dp.resetting < len(dp.stages) {
		if err := dp.stages[dp.resetting].Reset(ctx, dp.resetBase, dp.resetSysCfg); err == io.EOF {
			dp.log.Debug("reset of stage completed", "stage", dp.resetting, "origin", dp.resetBase)
			dp.resetting += 1
			return nil, NotEnoughData
		} else if err != nil {
			return nil, fmt.Errorf("stage %d failed resetting: %w", dp.resetting, err)
		} else {
			return nil, NotEnoughData
		}
	}

	attrs, _, err := dp.attrib.NextAttributes(ctx, parent)
	if err == nil {
		return attrs, nil
	} else if errors.Is(err, NotEnoughData) {
		// Don't block the pipeline even if attributes are not ready: higher
		// pulls made progress, the next Step may complete the unit of work.
		return nil, NotEnoughData
	} else if err == io.EOF {
		// every stage is drained for the current L1 origin: advance to the next one
		if err := dp.traversal.AdvanceL1Block(ctx); err != nil {
			return nil, err
		}
		return nil, io.EOF
	} else {
		return nil, err
	}
}

// ConfirmReset checks whether the scheduled reset completed.
func (dp *DerivationPipeline) ConfirmReset() bool {
	return dp.resetting == len(dp.stages)
}
