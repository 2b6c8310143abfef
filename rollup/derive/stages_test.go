package derive

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

func testlog() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// fakeDataProvider feeds raw batcher transaction payloads to a FrameQueue.
type fakeDataProvider struct {
	origin   eth.L1BlockRef
	payloads [][]byte
}

func (p *fakeDataProvider) NextData(_ context.Context) ([]byte, error) {
	if len(p.payloads) == 0 {
		return nil, io.EOF
	}
	d := p.payloads[0]
	p.payloads = p.payloads[1:]
	return d, nil
}

func (p *fakeDataProvider) Origin() eth.L1BlockRef {
	return p.origin
}

// fakeFrameProvider feeds frames to a ChannelBank.
type fakeFrameProvider struct {
	origin eth.L1BlockRef
	frames []Frame
}

func (p *fakeFrameProvider) NextFrame(_ context.Context) (Frame, error) {
	if len(p.frames) == 0 {
		return Frame{}, io.EOF
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, nil
}

func (p *fakeFrameProvider) Origin() eth.L1BlockRef {
	return p.origin
}

func framesToPayload(t *testing.T, frames ...Frame) []byte {
	var buf bytes.Buffer
	buf.WriteByte(DerivationVersion0)
	for i := range frames {
		require.NoError(t, frames[i].MarshalBinary(&buf))
	}
	return buf.Bytes()
}

// encodeChannel compresses the RLP batch stream the way a batcher does.
func encodeChannel(t *testing.T, batches ...*SingularBatch) []byte {
	var rlpBuf bytes.Buffer
	for _, b := range batches {
		require.NoError(t, rlp.Encode(&rlpBuf, NewBatchData(b)))
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(rlpBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFrameQueue(t *testing.T) {
	id := ChannelID{0x11}
	f0 := Frame{ID: id, FrameNumber: 0, Data: []byte("one")}
	f1 := Frame{ID: id, FrameNumber: 1, Data: []byte("two"), IsLast: true}
	prev := &fakeDataProvider{payloads: [][]byte{
		framesToPayload(t, f0, f1),
		{0xff, 0x00}, // bad version byte, payload dropped whole
	}}
	fq := NewFrameQueue(testlog(), prev)

	out, err := fq.NextFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, f0, out)
	out, err = fq.NextFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, f1, out)

	// The malformed payload yields no frames, only a request to come back.
	_, err = fq.NextFrame(context.Background())
	require.ErrorIs(t, err, NotEnoughData)
	_, err = fq.NextFrame(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelBankFirstFullyReceived(t *testing.T) {
	idA := ChannelID{0xaa}
	idB := ChannelID{0xbb}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 100},
		frames: []Frame{
			{ID: idA, FrameNumber: 0, Data: []byte("A-first ")},
			{ID: idB, FrameNumber: 0, Data: []byte("B-data"), IsLast: true},
			{ID: idA, FrameNumber: 1, Data: []byte("A-second"), IsLast: true},
		},
	}
	cfg := &rollup.Config{ChannelTimeout: 10}
	cb := NewChannelBank(testlog(), cfg, prev)
	ctx := context.Background()

	// Ingesting A0 and B0 makes progress but completes nothing yet.
	_, err := cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)

	// B finished first even though A opened first.
	data, err := cb.NextData(ctx)
	require.NoError(t, err)
	require.Equal(t, "B-data", string(data))

	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	data, err = cb.NextData(ctx)
	require.NoError(t, err)
	require.Equal(t, "A-first A-second", string(data))

	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelBankTimeout(t *testing.T) {
	idOld := ChannelID{0x01}
	idNew := ChannelID{0x02}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 100},
		frames: []Frame{
			{ID: idOld, FrameNumber: 0, Data: []byte("stale")},
		},
	}
	cfg := &rollup.Config{ChannelTimeout: 10}
	cb := NewChannelBank(testlog(), cfg, prev)
	ctx := context.Background()

	_, err := cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)

	// The origin moves past the channel timeout before the old channel closes.
	prev.origin = eth.L1BlockRef{Number: 111}
	prev.frames = []Frame{
		{ID: idNew, FrameNumber: 0, Data: []byte("fresh"), IsLast: true},
		{ID: idOld, FrameNumber: 1, Data: []byte("late"), IsLast: true},
	}

	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	data, err := cb.NextData(ctx)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(data))

	// The old channel was pruned, so its late closing frame re-registers the id
	// starting at frame 1 and invalidates it. Nothing ever comes out of it.
	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelBankReset(t *testing.T) {
	id := ChannelID{0x09}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 5},
		frames: []Frame{{ID: id, FrameNumber: 0, Data: []byte("x"), IsLast: true}},
	}
	cb := NewChannelBank(testlog(), &rollup.Config{ChannelTimeout: 10}, prev)
	ctx := context.Background()

	_, err := cb.NextData(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	require.ErrorIs(t, cb.Reset(ctx, eth.L1BlockRef{}, eth.SystemConfig{}), io.EOF)

	// The buffered, fully-received channel is gone after the reset.
	_, err = cb.NextData(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelInReader(t *testing.T) {
	batch := &SingularBatch{
		ParentHash:   common.Hash{0x11},
		EpochNum:     7,
		EpochHash:    common.Hash{0x22},
		Timestamp:    1234,
		Transactions: []hexutil.Bytes{{0x02, 0xaa, 0xbb}},
	}
	id := ChannelID{0xcc}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 42},
		frames: []Frame{{ID: id, FrameNumber: 0, Data: encodeChannel(t, batch), IsLast: true}},
	}
	cfg := &rollup.Config{ChannelTimeout: 10, BlockTime: 2}
	cb := NewChannelBank(testlog(), cfg, prev)
	cr := NewChannelInReader(testlog(), cfg, cb)
	ctx := context.Background()

	// First pull only moves the frame into the bank.
	_, err := cr.NextBatch(ctx)
	require.ErrorIs(t, err, NotEnoughData)

	got, err := cr.NextBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, batch, got)

	// The channel is exhausted, then the origin is drained.
	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelInReaderBadCompression(t *testing.T) {
	id := ChannelID{0xdd}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 42},
		frames: []Frame{{ID: id, FrameNumber: 0, Data: []byte("not zlib at all"), IsLast: true}},
	}
	cfg := &rollup.Config{ChannelTimeout: 10}
	cb := NewChannelBank(testlog(), cfg, prev)
	cr := NewChannelInReader(testlog(), cfg, cb)
	ctx := context.Background()

	_, err := cr.NextBatch(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, ErrTemporary)
}

func TestChannelInReaderBadBatchSkipsChannel(t *testing.T) {
	// Valid zlib, garbage RLP inside: the channel is skipped, not fatal.
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte{0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	id := ChannelID{0xee}
	prev := &fakeFrameProvider{
		origin: eth.L1BlockRef{Number: 42},
		frames: []Frame{{ID: id, FrameNumber: 0, Data: buf.Bytes(), IsLast: true}},
	}
	cfg := &rollup.Config{ChannelTimeout: 10}
	cb := NewChannelBank(testlog(), cfg, prev)
	cr := NewChannelInReader(testlog(), cfg, cb)
	ctx := context.Background()

	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, NotEnoughData)
	_, err = cr.NextBatch(ctx)
	require.ErrorIs(t, err, io.EOF)
}
