package derive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

// Batch format
//
// SpanBatchType := 1
// spanBatch := SpanBatchType ++ prefix ++ payload
// prefix := rel_timestamp ++ l1_origin_num ++ parent_check ++ l1_origin_check
// payload := block_count ++ origin_bits ++ block_tx_counts ++ txs
//
// rel_timestamp is the timestamp of the first block in the span, relative to
// the L2 genesis time. origin_bits is a bitlist of block_count bits; bit i set
// means the L1 origin advanced at the i-th block of the span. txs is the
// concatenation of every block's transactions, each as a uvarint length prefix
// followed by the opaque encoded transaction.

// MaxSpanBatchElementCount is the maximum number of blocks, transactions in total,
// or transaction per block allowed in a span batch.
const MaxSpanBatchElementCount = 10_000_000

var (
	ErrTooBigSpanBatchSize = errors.New("span batch size limit reached")
	ErrEmptySpanBatch      = errors.New("span-batch must not be empty")
)

type spanBatchPrefix struct {
	relTimestamp  uint64   // Relative timestamp of the first block in the span
	l1OriginNum   uint64   // L1 origin number of the last block in the span
	parentCheck   [20]byte // First 20 bytes of the first block's parent hash
	l1OriginCheck [20]byte // First 20 bytes of the last block's L1 origin hash
}

type spanBatchPayload struct {
	blockCount    uint64   // Number of L2 blocks in the span
	originBits    *big.Int // Bitlist of blockCount bits, set where the L1 origin changes
	blockTxCounts []uint64 // Number of transactions per L2 block
	txs           [][]byte // Opaque encoded transactions, in block order
}

// RawSpanBatch is the wire representation of a span batch.
type RawSpanBatch struct {
	spanBatchPrefix
	spanBatchPayload
}

// GetBatchType returns its batch type (batch_version)
func (b *RawSpanBatch) GetBatchType() int {
	return SpanBatchType
}

func (bp *spanBatchPrefix) decodePrefix(r *bytes.Reader) (err error) {
	if bp.relTimestamp, err = binary.ReadUvarint(r); err != nil {
		return fmt.Errorf("failed to read rel timestamp: %w", err)
	}
	if bp.l1OriginNum, err = binary.ReadUvarint(r); err != nil {
		return fmt.Errorf("failed to read l1 origin num: %w", err)
	}
	if _, err = io.ReadFull(r, bp.parentCheck[:]); err != nil {
		return fmt.Errorf("failed to read parent check: %w", err)
	}
	if _, err = io.ReadFull(r, bp.l1OriginCheck[:]); err != nil {
		return fmt.Errorf("failed to read l1 origin check: %w", err)
	}
	return nil
}

func (bp *spanBatchPrefix) encodePrefix(w *bytes.Buffer) error {
	var u [binary.MaxVarintLen64]byte
	w.Write(u[:binary.PutUvarint(u[:], bp.relTimestamp)])
	w.Write(u[:binary.PutUvarint(u[:], bp.l1OriginNum)])
	w.Write(bp.parentCheck[:])
	w.Write(bp.l1OriginCheck[:])
	return nil
}

// decodeBitlist parses a bitlist of bitCount bits, encoded big-endian in
// ceil(bitCount/8) bytes.
func decodeBitlist(r *bytes.Reader, bitCount uint64) (*big.Int, error) {
	byteCount := (bitCount + 7) / 8
	buf := make([]byte, byteCount)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	bits := new(big.Int).SetBytes(buf)
	if bits.BitLen() > int(bitCount) {
		return nil, fmt.Errorf("bitfield has %d bits, but expected no more than %d", bits.BitLen(), bitCount)
	}
	return bits, nil
}

func encodeBitlist(w *bytes.Buffer, bits *big.Int, bitCount uint64) error {
	if bits.BitLen() > int(bitCount) {
		return fmt.Errorf("bitfield is larger than bitCount: %d > %d", bits.BitLen(), bitCount)
	}
	byteCount := (bitCount + 7) / 8
	buf := make([]byte, byteCount)
	bits.FillBytes(buf)
	w.Write(buf)
	return nil
}

func (bp *spanBatchPayload) decodePayload(r *bytes.Reader) error {
	blockCount, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("failed to read block count: %w", err)
	}
	if blockCount > MaxSpanBatchElementCount {
		return ErrTooBigSpanBatchSize
	}
	if blockCount == 0 {
		return ErrEmptySpanBatch
	}
	bp.blockCount = blockCount

	if bp.originBits, err = decodeBitlist(r, blockCount); err != nil {
		return fmt.Errorf("failed to decode origin bits: %w", err)
	}

	totalTxCount := uint64(0)
	blockTxCounts := make([]uint64, 0, blockCount)
	for i := uint64(0); i < blockCount; i++ {
		txCount, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("failed to read block tx count: %w", err)
		}
		// every tx takes at least one byte
		if txCount > MaxSpanBatchElementCount {
			return ErrTooBigSpanBatchSize
		}
		totalTxCount += txCount
		if totalTxCount > MaxSpanBatchElementCount {
			return ErrTooBigSpanBatchSize
		}
		blockTxCounts = append(blockTxCounts, txCount)
	}
	bp.blockTxCounts = blockTxCounts

	txs := make([][]byte, 0, totalTxCount)
	for i := uint64(0); i < totalTxCount; i++ {
		txLen, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("failed to read tx %d length: %w", i, err)
		}
		if txLen > MaxRLPBytesPerChannel {
			return ErrTooBigSpanBatchSize
		}
		tx := make([]byte, txLen)
		if _, err := io.ReadFull(r, tx); err != nil {
			return fmt.Errorf("failed to read tx %d data: %w", i, err)
		}
		txs = append(txs, tx)
	}
	bp.txs = txs
	return nil
}

func (bp *spanBatchPayload) encodePayload(w *bytes.Buffer) error {
	var u [binary.MaxVarintLen64]byte
	w.Write(u[:binary.PutUvarint(u[:], bp.blockCount)])
	if err := encodeBitlist(w, bp.originBits, bp.blockCount); err != nil {
		return err
	}
	for _, txCount := range bp.blockTxCounts {
		w.Write(u[:binary.PutUvarint(u[:], txCount)])
	}
	for _, tx := range bp.txs {
		w.Write(u[:binary.PutUvarint(u[:], uint64(len(tx)))])
		w.Write(tx)
	}
	return nil
}

// decode reads the byte encoding of SpanBatch from Reader stream
func (b *RawSpanBatch) decode(r *bytes.Reader) error {
	if err := b.decodePrefix(r); err != nil {
		return fmt.Errorf("failed to decode span batch prefix: %w", err)
	}
	if err := b.decodePayload(r); err != nil {
		return fmt.Errorf("failed to decode span batch payload: %w", err)
	}
	return nil
}

// encode writes the byte encoding of SpanBatch to the writer
func (b *RawSpanBatch) encode(w *bytes.Buffer) error {
	if err := b.encodePrefix(w); err != nil {
		return err
	}
	return b.encodePayload(w)
}

// derive converts RawSpanBatch into SpanBatch, which carries one SpanBatchElement
// per L2 block. Chain config constants fix the absolute timestamps and epochs.
func (b *RawSpanBatch) derive(blockTime, genesisTimestamp uint64, chainID *big.Int) (*SpanBatch, error) {
	if b.blockCount == 0 {
		return nil, ErrEmptySpanBatch
	}

	// The origin bits count how often the L1 origin advanced within the span;
	// walking them back from the prefix origin gives the first block's epoch.
	originChangedCount := uint64(0)
	for i := uint64(1); i < b.blockCount; i++ {
		if b.originBits.Bit(int(i)) == 1 {
			originChangedCount++
		}
	}
	epoch := b.l1OriginNum - originChangedCount

	spanBatch := SpanBatch{
		ChainID:       chainID,
		ParentCheck:   b.parentCheck,
		L1OriginCheck: b.l1OriginCheck,
		Batches:       make([]*SpanBatchElement, 0, b.blockCount),
	}
	txIdx := 0
	for i := uint64(0); i < b.blockCount; i++ {
		if i > 0 && b.originBits.Bit(int(i)) == 1 {
			epoch++
		}
		element := SpanBatchElement{
			EpochNum:     rollup.Epoch(epoch),
			Timestamp:    genesisTimestamp + b.relTimestamp + blockTime*i,
			Transactions: make([]hexutil.Bytes, 0, b.blockTxCounts[i]),
		}
		for j := uint64(0); j < b.blockTxCounts[i]; j++ {
			element.Transactions = append(element.Transactions, b.txs[txIdx])
			txIdx++
		}
		spanBatch.Batches = append(spanBatch.Batches, &element)
	}
	return &spanBatch, nil
}

// ToSpanBatch converts RawSpanBatch to SpanBatch,
// which implements a wrapper of derive method of RawSpanBatch
func (b *RawSpanBatch) ToSpanBatch(blockTime, genesisTimestamp uint64, chainID *big.Int) (*SpanBatch, error) {
	return b.derive(blockTime, genesisTimestamp, chainID)
}

// SpanBatchElement is a derived form of input to build a L2 block.
// Similar to SingularBatch, but does not have ParentHash and EpochHash
// because the span batch spec does not include them for every block in the span.
type SpanBatchElement struct {
	EpochNum     rollup.Epoch // aka l1 num
	Timestamp    uint64
	Transactions []hexutil.Bytes
}

// SpanBatch is an implementation of Batch interface,
// containing the input to build a span of L2 blocks in derived form (SpanBatchElement)
type SpanBatch struct {
	ParentCheck   [20]byte // First 20 bytes of the first block's parent hash
	L1OriginCheck [20]byte // First 20 bytes of the last block's L1 origin hash
	ChainID       *big.Int
	Batches       []*SpanBatchElement // List of block input in derived form
}

var _ Batch = (*SpanBatch)(nil)

// GetBatchType returns its batch type (batch_version)
func (b *SpanBatch) GetBatchType() int {
	return SpanBatchType
}

// GetTimestamp returns the timestamp of the first block in the span
func (b *SpanBatch) GetTimestamp() uint64 {
	return b.Batches[0].Timestamp
}

// GetStartEpochNum returns the epoch number (L1 origin block number) of the first block in the span
func (b *SpanBatch) GetStartEpochNum() rollup.Epoch {
	return b.Batches[0].EpochNum
}

// GetBlockCount returns the number of blocks in the span
func (b *SpanBatch) GetBlockCount() int {
	return len(b.Batches)
}

// CheckOriginHash checks if the l1OriginCheck matches the first 20 bytes of the
// given hash, probably an L1 block hash from the current canonical L1 chain.
func (b *SpanBatch) CheckOriginHash(hash [32]byte) bool {
	return bytes.Equal(b.L1OriginCheck[:], hash[:20])
}

// CheckParentHash checks if the parentCheck matches the first 20 bytes of the
// given hash, probably the current L2 safe head.
func (b *SpanBatch) CheckParentHash(hash [32]byte) bool {
	return bytes.Equal(b.ParentCheck[:], hash[:20])
}

// TxCount returns the tx count for the batch
func (b *SpanBatch) TxCount() (count uint64) {
	for _, e := range b.Batches {
		count += uint64(len(e.Transactions))
	}
	return
}

// LogContext creates a new log context that contains information of the batch
func (b *SpanBatch) LogContext(log log.Logger) log.Logger {
	if len(b.Batches) == 0 {
		return log.New("block_count", 0)
	}
	return log.New(
		"batch_type", "SpanBatch",
		"batch_timestamp", b.Batches[0].Timestamp,
		"parent_check", hexutil.Encode(b.ParentCheck[:]),
		"origin_check", hexutil.Encode(b.L1OriginCheck[:]),
		"start_epoch_number", b.GetStartEpochNum(),
		"block_count", len(b.Batches),
		"txs", b.TxCount(),
	)
}

// GetSingularBatches converts SpanBatchElements after the L2 safe head to SingularBatches.
// Since SpanBatchElement does not contain EpochHash, set EpochHash from the given L1 blocks.
// The result SingularBatches do not contain ParentHash yet. It must be set by BatchQueue.
func (b *SpanBatch) GetSingularBatches(l1Origins []eth.L1BlockRef, l2SafeHead eth.L2BlockRef) ([]*SingularBatch, error) {
	var singularBatches []*SingularBatch
	originIdx := 0
	for _, batch := range b.Batches {
		if batch.Timestamp <= l2SafeHead.Time {
			continue
		}
		singularBatch := SingularBatch{
			EpochNum:     batch.EpochNum,
			Timestamp:    batch.Timestamp,
			Transactions: batch.Transactions,
		}
		originFound := false
		for i := originIdx; i < len(l1Origins); i++ {
			if l1Origins[i].Number == uint64(batch.EpochNum) {
				originIdx = i
				singularBatch.EpochHash = l1Origins[i].Hash
				originFound = true
				break
			}
		}
		if !originFound {
			return nil, fmt.Errorf("unable to find L1 origin for the epoch number: %d", batch.EpochNum)
		}
		singularBatches = append(singularBatches, &singularBatch)
	}
	return singularBatches, nil
}

// DeriveSpanBatch derives SpanBatch from BatchData.
func DeriveSpanBatch(batchData *BatchData, blockTime, genesisTimestamp uint64, chainID *big.Int) (*SpanBatch, error) {
	rawSpanBatch, ok := batchData.inner.(*RawSpanBatch)
	if !ok {
		return nil, NewCriticalError(errors.New("failed type assertion to SpanBatch"))
	}
	return rawSpanBatch.ToSpanBatch(blockTime, genesisTimestamp, chainID)
}
