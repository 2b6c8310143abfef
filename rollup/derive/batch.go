package derive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// Batch format
//
// SingularBatchType := 0
// singularBatch := SingularBatchType ++ RLP([parent_hash, epoch_number, epoch_hash, timestamp, transaction_list])
//
// SpanBatchType := 1
// spanBatch := SpanBatchType ++ prefix ++ payload
const (
	// SingularBatchType is the first version of Batch format, representing a single L2 block.
	SingularBatchType = 0
	// SpanBatchType is the Batch version representing a span of L2 blocks.
	SpanBatchType = 1
)

// Batch contains information to build one or multiple L2 blocks.
// The batcher converts L2 blocks into Batch and writes encoded bytes to Channel.
// Derivation pipeline decodes Batch from Channel, and converts to one or multiple payload attributes.
type Batch interface {
	GetBatchType() int
	GetTimestamp() uint64
	LogContext(log.Logger) log.Logger
}

// SingularBatch is an implementation of Batch interface, containing the input to build one L2 block.
type SingularBatch struct {
	ParentHash common.Hash  // parent L2 block hash
	EpochNum   rollup.Epoch // aka l1 num
	EpochHash  common.Hash  // L1 origin block hash
	Timestamp  uint64
	// no feeRecipient address input, all fees go to a L2 contract
	Transactions []hexutil.Bytes
}

// GetBatchType returns its batch type (batch_version)
func (b *SingularBatch) GetBatchType() int {
	return SingularBatchType
}

// GetTimestamp returns its block timestamp
func (b *SingularBatch) GetTimestamp() uint64 {
	return b.Timestamp
}

// GetEpochNum returns its epoch number (L1 origin block number)
func (b *SingularBatch) GetEpochNum() rollup.Epoch {
	return b.EpochNum
}

// Epoch returns a BlockID of its L1 origin.
func (b *SingularBatch) Epoch() eth.BlockID {
	return eth.BlockID{Hash: b.EpochHash, Number: uint64(b.EpochNum)}
}

// LogContext creates a new log context that contains information of the batch
func (b *SingularBatch) LogContext(log log.Logger) log.Logger {
	return log.New(
		"batch_type", "SingularBatch",
		"batch_timestamp", b.Timestamp,
		"parent_hash", b.ParentHash,
		"batch_epoch", b.Epoch(),
		"txs", len(b.Transactions),
	)
}

// BatchData wraps the typed encoding & decoding of any InnerBatchData,
// similar in design to op-geth's types.Transaction struct.
type BatchData struct {
	inner InnerBatchData
}

// InnerBatchData is the underlying data of a BatchData.
// This is implemented by SingularBatch and RawSpanBatch.
type InnerBatchData interface {
	GetBatchType() int
	encode(w *bytes.Buffer) error
	decode(r *bytes.Reader) error
}

func NewBatchData(inner InnerBatchData) *BatchData {
	return &BatchData{inner: inner}
}

func (bd *BatchData) GetBatchType() uint8 {
	return uint8(bd.inner.GetBatchType())
}

// EncodeRLP implements rlp.Encoder
func (bd *BatchData) EncodeRLP(w io.Writer) error {
	var buf bytes.Buffer
	if err := bd.encodeTyped(&buf); err != nil {
		return err
	}
	return rlp.Encode(w, buf.Bytes())
}

// encodeTyped encodes the batch type byte followed by the inner encoding.
func (bd *BatchData) encodeTyped(buf *bytes.Buffer) error {
	if err := buf.WriteByte(bd.GetBatchType()); err != nil {
		return err
	}
	return bd.inner.encode(buf)
}

// MarshalBinary returns the canonical encoding of the batch.
func (bd *BatchData) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := bd.encodeTyped(&buf)
	return buf.Bytes(), err
}

// DecodeRLP implements rlp.Decoder
func (bd *BatchData) DecodeRLP(s *rlp.Stream) error {
	if bd == nil {
		return errors.New("cannot decode into nil BatchData")
	}
	v, err := s.Bytes()
	if err != nil {
		return err
	}
	return bd.decodeTyped(v)
}

// UnmarshalBinary decodes the canonical encoding of batch.
func (bd *BatchData) UnmarshalBinary(data []byte) error {
	if bd == nil {
		return errors.New("cannot decode into nil BatchData")
	}
	return bd.decodeTyped(data)
}

// decodeTyped decodes a typed batchData
func (bd *BatchData) decodeTyped(data []byte) error {
	if len(data) == 0 {
		return errors.New("batch too short")
	}
	var inner InnerBatchData
	switch data[0] {
	case SingularBatchType:
		inner = new(SingularBatch)
	case SpanBatchType:
		inner = new(RawSpanBatch)
	default:
		return fmt.Errorf("unrecognized batch type: %d", data[0])
	}
	if err := inner.decode(bytes.NewReader(data[1:])); err != nil {
		return err
	}
	bd.inner = inner
	return nil
}

func (b *SingularBatch) encode(w *bytes.Buffer) error {
	return rlp.Encode(w, b)
}

func (b *SingularBatch) decode(r *bytes.Reader) error {
	return rlp.Decode(r, b)
}

// BatchWithL1InclusionBlock pairs a decoded batch with the L1 block its last frame landed in.
// The inclusion block bounds the sequencing window check during validation.
type BatchWithL1InclusionBlock struct {
	L1InclusionBlock eth.L1BlockRef
	Batch            Batch
}
