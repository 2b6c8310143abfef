package derive

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomFrame(rng *rand.Rand) Frame {
	var id ChannelID
	rng.Read(id[:])
	data := make([]byte, rng.Intn(64)+1)
	rng.Read(data)
	return Frame{
		ID:          id,
		FrameNumber: uint16(rng.Intn(100)),
		Data:        data,
		IsLast:      rng.Intn(2) == 0,
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	for i := 0; i < 16; i++ {
		frame := randomFrame(rng)
		var buf bytes.Buffer
		require.NoError(t, frame.MarshalBinary(&buf))

		var out Frame
		require.NoError(t, out.UnmarshalBinary(&buf))
		require.Equal(t, frame, out)
		require.Zero(t, buf.Len(), "frame must consume its full encoding")
	}
}

func TestFrameUnmarshalTruncated(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	frame := randomFrame(rng)
	var buf bytes.Buffer
	require.NoError(t, frame.MarshalBinary(&buf))
	enc := buf.Bytes()

	// cut=0 is skipped: zero bytes read is a clean io.EOF, not a truncation.
	for cut := 1; cut < len(enc); cut++ {
		var out Frame
		err := out.UnmarshalBinary(bytes.NewReader(enc[:cut]))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "truncation at %d must not look like a clean end", cut)
	}
}

func TestFrameUnmarshalInvalidIsLast(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	frame := randomFrame(rng)
	var buf bytes.Buffer
	require.NoError(t, frame.MarshalBinary(&buf))
	enc := buf.Bytes()
	enc[len(enc)-1] = 2

	var out Frame
	require.ErrorContains(t, out.UnmarshalBinary(bytes.NewReader(enc)), "invalid byte")
}

func TestFrameUnmarshalTooLarge(t *testing.T) {
	// A length prefix past the cap must be rejected without attempting the read.
	enc := []byte{
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, // id
		0x00, 0x00, // frame number
		0xff, 0xff, 0xff, 0xff, // frame_data_length
	}
	var out Frame
	require.ErrorContains(t, out.UnmarshalBinary(bytes.NewReader(enc)), "frame_data_length is too large")
}

func TestParseFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(777))
	frames := []Frame{randomFrame(rng), randomFrame(rng), randomFrame(rng)}
	var buf bytes.Buffer
	buf.WriteByte(DerivationVersion0)
	for i := range frames {
		require.NoError(t, frames[i].MarshalBinary(&buf))
	}

	out, err := ParseFrames(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, frames, out)
}

func TestParseFramesEmpty(t *testing.T) {
	_, err := ParseFrames(nil)
	require.Error(t, err)
}

func TestParseFramesBadVersion(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	frame := randomFrame(rng)
	var buf bytes.Buffer
	buf.WriteByte(0x01)
	require.NoError(t, frame.MarshalBinary(&buf))

	_, err := ParseFrames(buf.Bytes())
	require.ErrorContains(t, err, "invalid derivation format byte")
}

func TestParseFramesTrailingGarbage(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	frame := randomFrame(rng)
	var buf bytes.Buffer
	buf.WriteByte(DerivationVersion0)
	require.NoError(t, frame.MarshalBinary(&buf))
	buf.Write([]byte{0xde, 0xad})

	// All-or-nothing: a bad tail poisons the whole batcher transaction.
	_, err := ParseFrames(buf.Bytes())
	require.Error(t, err)
}
