package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
	"github.com/mantle-xyz/kona/rollup/derive"
)

// State is the driver state machine position.
type State int

const (
	// Idle before the first Advance call.
	Idle State = iota
	// Deriving while the pipeline is being stepped.
	Deriving
	// Executing while derived attributes are with the executor.
	Executing
	// Stalled when the L1 data is drained and the driver waits for more.
	Stalled
	// Done when the target was reached or the data is fully drained.
	Done
	// Failed on a critical derivation or execution error.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Deriving:
		return "deriving"
	case Executing:
		return "executing"
	case Stalled:
		return "stalled"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// NoTarget makes Advance run until the L1 data is exhausted.
const NoTarget = ^uint64(0)

// ErrNoNewData is returned by an L1DataWaiter when no further L1 data will
// become available, ending a Stalled wait.
var ErrNoNewData = errors.New("no new L1 data")

// ErrDriverFailed wraps the terminal error of a Failed driver.
var ErrDriverFailed = errors.New("driver failed")

// Executor replays one derived attributes set on top of the parent and
// returns the new safe head. Must be deterministic; any error is fatal to the
// derivation run, re-deriving the same attributes cannot change the outcome.
type Executor interface {
	ExecutePayload(ctx context.Context, parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (eth.L2BlockRef, error)
}

// Pipeline is the derivation façade the driver steps.
type Pipeline interface {
	Step(ctx context.Context, parent eth.L2BlockRef) (*eth.PayloadAttributes, error)
	Reset(base eth.L1BlockRef, sysCfg eth.SystemConfig)
	Origin() eth.L1BlockRef
}

// L1Chain resolves L1 block refs for pipeline resets.
type L1Chain interface {
	L1BlockRefByHash(ctx context.Context, hash common.Hash) (eth.L1BlockRef, error)
}

// L2Chain resolves the system config at an L2 block for pipeline resets.
type L2Chain interface {
	SystemConfigByL2Hash(ctx context.Context, hash common.Hash) (eth.SystemConfig, error)
}

// L1DataWaiter blocks until L1 data past the given origin may be available.
// It returns ErrNoNewData when the data source can never grow, which is the
// case for the fixed pre-image view of the fault-proof program.
type L1DataWaiter func(ctx context.Context, origin eth.L1BlockRef) error

// Driver owns the sync cursor and steps the pipeline against the executor.
// The cursor only moves forward, and only after the executor confirmed the
// block; a pipeline reset re-derives from the cursor but never rewinds it.
type Driver struct {
	logger   log.Logger
	cfg      *rollup.Config
	pipeline Pipeline
	executor Executor
	l1       L1Chain
	l2       L2Chain
	wait     L1DataWaiter

	state    State
	safeHead eth.L2BlockRef
}

func NewDriver(logger log.Logger, cfg *rollup.Config, pipeline Pipeline, executor Executor, l1 L1Chain, l2 L2Chain, safeHead eth.L2BlockRef) *Driver {
	return &Driver{
		logger:   logger,
		cfg:      cfg,
		pipeline: pipeline,
		executor: executor,
		l1:       l1,
		l2:       l2,
		state:    Idle,
		safeHead: safeHead,
	}
}

// SetL1DataWaiter installs the wait hook used in the Stalled state.
// Without one, running out of L1 data completes the run.
func (d *Driver) SetL1DataWaiter(wait L1DataWaiter) {
	d.wait = wait
}

func (d *Driver) State() State {
	return d.state
}

// SafeHead is the current sync cursor: the highest L2 block confirmed by the
// executor, with its L1 origin embedded in the ref.
func (d *Driver) SafeHead() eth.L2BlockRef {
	return d.safeHead
}

// Advance drives derivation and execution until the safe head reaches the
// target L2 block number, the L1 data is exhausted, or the run fails.
// Cancellation is checked once per iteration, never mid-stage.
func (d *Driver) Advance(ctx context.Context, target uint64) error {
	if d.state == Done || d.state == Failed {
		return fmt.Errorf("cannot advance from terminal state %s", d.state)
	}
	if err := d.reset(ctx); err != nil {
		return err
	}
	d.state = Deriving
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if target != NoTarget && d.safeHead.Number >= target {
			d.logger.Info("Derivation target reached", "l2SafeHead", d.safeHead, "target", target)
			d.state = Done
			return nil
		}
		if err := d.step(ctx, target); err != nil {
			return err
		}
		if d.state == Done || d.state == Failed {
			return nil
		}
	}
}

// step performs one state-machine iteration.
func (d *Driver) step(ctx context.Context, target uint64) error {
	attrs, err := d.pipeline.Step(ctx, d.safeHead)
	switch {
	case err == nil:
		return d.execute(ctx, attrs)
	case errors.Is(err, derive.NotEnoughData):
		return nil
	case err == io.EOF:
		d.logger.Debug("Advanced L1 origin", "origin", d.pipeline.Origin())
		return nil
	case errors.Is(err, derive.ErrEndOfData):
		return d.stall(ctx)
	case errors.Is(err, derive.ErrReset):
		d.logger.Warn("Derivation pipeline is being reset", "err", err)
		return d.reset(ctx)
	case errors.Is(err, derive.ErrTemporary):
		d.logger.Warn("Temporary derivation error, retrying", "err", err)
		return nil
	default:
		return d.fail(fmt.Errorf("critical derivation error: %w", err))
	}
}

// execute hands attributes to the executor and commits the cursor on success.
func (d *Driver) execute(ctx context.Context, attrs *eth.PayloadAttributes) error {
	d.state = Executing
	newHead, err := d.executor.ExecutePayload(ctx, d.safeHead, attrs)
	if err != nil {
		return d.fail(fmt.Errorf("failed to execute block %d: %w", d.safeHead.Number+1, err))
	}
	d.safeHead = newHead
	d.state = Deriving
	d.logger.Info("Advanced safe head", "l2", newHead, "l1Origin", newHead.L1Origin)
	return nil
}

// stall handles exhausted L1 data: wait for more if a waiter is installed,
// otherwise the run is complete at the current cursor.
func (d *Driver) stall(ctx context.Context) error {
	d.state = Stalled
	if d.wait == nil {
		d.logger.Info("Exhausted L1 data", "l2SafeHead", d.safeHead, "l1Origin", d.pipeline.Origin())
		d.state = Done
		return nil
	}
	if err := d.wait(ctx, d.pipeline.Origin()); err != nil {
		if errors.Is(err, ErrNoNewData) {
			d.logger.Info("Exhausted L1 data", "l2SafeHead", d.safeHead, "l1Origin", d.pipeline.Origin())
			d.state = Done
			return nil
		}
		return d.fail(fmt.Errorf("failed waiting for L1 data: %w", err))
	}
	d.state = Deriving
	return nil
}

// reset schedules a full pipeline reset from the cursor's L1 origin.
func (d *Driver) reset(ctx context.Context) error {
	base, err := d.l1.L1BlockRefByHash(ctx, d.safeHead.L1Origin.Hash)
	if err != nil {
		return d.fail(fmt.Errorf("failed to fetch reset base %s: %w", d.safeHead.L1Origin, err))
	}
	sysCfg, err := d.l2.SystemConfigByL2Hash(ctx, d.safeHead.Hash)
	if err != nil {
		return d.fail(fmt.Errorf("failed to fetch system config of %s: %w", d.safeHead, err))
	}
	d.pipeline.Reset(base, sysCfg)
	return nil
}

func (d *Driver) fail(err error) error {
	d.state = Failed
	d.logger.Error("Derivation failed", "err", err)
	return fmt.Errorf("%w: %w", ErrDriverFailed, err)
}
