package driver

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
	"github.com/mantle-xyz/kona/rollup/derive"
)

func testlog() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// stepResult scripts one pipeline Step outcome.
type stepResult struct {
	attrs *eth.PayloadAttributes
	err   error
}

type scriptedPipeline struct {
	t       *testing.T
	steps   []stepResult
	resets  int
	origin  eth.L1BlockRef
	resetAt []eth.L1BlockRef
}

func (p *scriptedPipeline) Step(_ context.Context, _ eth.L2BlockRef) (*eth.PayloadAttributes, error) {
	require.NotEmpty(p.t, p.steps, "pipeline stepped past its script")
	s := p.steps[0]
	p.steps = p.steps[1:]
	return s.attrs, s.err
}

func (p *scriptedPipeline) Reset(base eth.L1BlockRef, _ eth.SystemConfig) {
	p.resets++
	p.resetAt = append(p.resetAt, base)
}

func (p *scriptedPipeline) Origin() eth.L1BlockRef {
	return p.origin
}

// countingExecutor advances the head by one block per payload.
type countingExecutor struct {
	err   error
	calls int
}

func (e *countingExecutor) ExecutePayload(_ context.Context, parent eth.L2BlockRef, attrs *eth.PayloadAttributes) (eth.L2BlockRef, error) {
	e.calls++
	if e.err != nil {
		return eth.L2BlockRef{}, e.err
	}
	return eth.L2BlockRef{
		Hash:     common.Hash{byte(parent.Number + 1)},
		Number:   parent.Number + 1,
		Time:     uint64(attrs.Timestamp),
		L1Origin: parent.L1Origin,
	}, nil
}

type fakeChains struct {
	l1Err error
}

func (f *fakeChains) L1BlockRefByHash(_ context.Context, hash common.Hash) (eth.L1BlockRef, error) {
	if f.l1Err != nil {
		return eth.L1BlockRef{}, f.l1Err
	}
	return eth.L1BlockRef{Hash: hash, Number: 10}, nil
}

func (f *fakeChains) SystemConfigByL2Hash(_ context.Context, _ common.Hash) (eth.SystemConfig, error) {
	return eth.SystemConfig{}, nil
}

func newTestDriver(p Pipeline, e Executor, chains *fakeChains) *Driver {
	safeHead := eth.L2BlockRef{
		Hash:     common.Hash{0x64},
		Number:   100,
		Time:     1000,
		L1Origin: eth.BlockID{Hash: common.Hash{0xa1}, Number: 10},
	}
	return NewDriver(testlog(), &rollup.Config{BlockTime: 2}, p, e, chains, chains, safeHead)
}

func TestDriverReachesTarget(t *testing.T) {
	attrs := &eth.PayloadAttributes{Timestamp: 1002}
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NotEnoughData},
		{attrs: attrs},
		{err: io.EOF},
		{attrs: attrs},
	}}
	e := &countingExecutor{}
	d := newTestDriver(p, e, &fakeChains{})

	require.NoError(t, d.Advance(context.Background(), 102))
	require.Equal(t, Done, d.State())
	require.Equal(t, uint64(102), d.SafeHead().Number)
	require.Equal(t, 2, e.calls)
	// The initial reset schedules the pipeline from the cursor's L1 origin.
	require.Equal(t, 1, p.resets)

	// Terminal states cannot be advanced again.
	require.ErrorContains(t, d.Advance(context.Background(), 200), "terminal state")
}

func TestDriverDoneOnDataExhaustion(t *testing.T) {
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NotEnoughData},
		{err: derive.ErrEndOfData},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	// No target: run until the data runs out.
	require.NoError(t, d.Advance(context.Background(), NoTarget))
	require.Equal(t, Done, d.State())
	require.Equal(t, uint64(100), d.SafeHead().Number)
}

func TestDriverStallWaitsForData(t *testing.T) {
	attrs := &eth.PayloadAttributes{Timestamp: 1002}
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.ErrEndOfData},
		{attrs: attrs},
		{err: derive.ErrEndOfData},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	waits := 0
	d.SetL1DataWaiter(func(_ context.Context, origin eth.L1BlockRef) error {
		waits++
		if waits == 1 {
			return nil // pretend more data arrived
		}
		return ErrNoNewData
	})

	require.NoError(t, d.Advance(context.Background(), NoTarget))
	require.Equal(t, Done, d.State())
	require.Equal(t, 2, waits)
	require.Equal(t, uint64(101), d.SafeHead().Number)
}

func TestDriverResetError(t *testing.T) {
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NewResetError(errors.New("l1 reorg"))},
		{err: derive.ErrEndOfData},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	require.NoError(t, d.Advance(context.Background(), NoTarget))
	require.Equal(t, Done, d.State())
	// Initial reset plus the reset triggered by the pipeline error.
	require.Equal(t, 2, p.resets)
}

func TestDriverTemporaryErrorRetries(t *testing.T) {
	attrs := &eth.PayloadAttributes{Timestamp: 1002}
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NewTemporaryError(errors.New("flaky fetch"))},
		{attrs: attrs},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	require.NoError(t, d.Advance(context.Background(), 101))
	require.Equal(t, Done, d.State())
	require.Equal(t, uint64(101), d.SafeHead().Number)
}

func TestDriverCriticalErrorFails(t *testing.T) {
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NewCriticalError(errors.New("bad config"))},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	err := d.Advance(context.Background(), NoTarget)
	require.ErrorIs(t, err, ErrDriverFailed)
	require.Equal(t, Failed, d.State())
}

func TestDriverExecutionErrorFails(t *testing.T) {
	attrs := &eth.PayloadAttributes{Timestamp: 1002}
	p := &scriptedPipeline{t: t, steps: []stepResult{{attrs: attrs}}}
	e := &countingExecutor{err: errors.New("state transition failed")}
	d := newTestDriver(p, e, &fakeChains{})

	err := d.Advance(context.Background(), NoTarget)
	require.ErrorIs(t, err, ErrDriverFailed)
	require.Equal(t, Failed, d.State())
	// The cursor never moves on a failed execution.
	require.Equal(t, uint64(100), d.SafeHead().Number)
}

func TestDriverInitialResetFailure(t *testing.T) {
	d := newTestDriver(&scriptedPipeline{t: t}, &countingExecutor{}, &fakeChains{l1Err: errors.New("unknown block")})
	err := d.Advance(context.Background(), NoTarget)
	require.ErrorIs(t, err, ErrDriverFailed)
	require.Equal(t, Failed, d.State())
}

func TestDriverContextCancellation(t *testing.T) {
	p := &scriptedPipeline{t: t, steps: []stepResult{
		{err: derive.NotEnoughData},
		{err: derive.NotEnoughData},
	}}
	d := newTestDriver(p, &countingExecutor{}, &fakeChains{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Advance(ctx, NoTarget), context.Canceled)
}
