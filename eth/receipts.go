package eth

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeRawReceipts decodes consensus-encoded receipts and recovers the
// contextual fields that the binary encoding leaves out: block hash and number,
// transaction hash and index, per-tx gas used and log indices.
// The tx hashes must match the receipts list of the block.
func DecodeRawReceipts(block BlockID, rawReceipts []hexutil.Bytes, txHashes []common.Hash) (types.Receipts, error) {
	if len(rawReceipts) != len(txHashes) {
		return nil, fmt.Errorf("got %d receipts but %d transactions in block %s", len(rawReceipts), len(txHashes), block)
	}
	result := make(types.Receipts, len(rawReceipts))
	logIndex := uint(0)
	cumulativeGasUsed := uint64(0)
	for i, data := range rawReceipts {
		var rec types.Receipt
		if err := rec.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("failed to decode receipt %d of block %s: %w", i, block, err)
		}
		rec.TxHash = txHashes[i]
		rec.BlockHash = block.Hash
		rec.BlockNumber = new(big.Int).SetUint64(block.Number)
		rec.TransactionIndex = uint(i)
		rec.GasUsed = rec.CumulativeGasUsed - cumulativeGasUsed
		// The contract address of deployments is not recovered, nothing in
		// derivation needs it.
		for _, l := range rec.Logs {
			l.BlockHash = block.Hash
			l.BlockNumber = block.Number
			l.TxHash = rec.TxHash
			l.TxIndex = uint(i)
			l.Index = logIndex
			logIndex++
		}
		cumulativeGasUsed = rec.CumulativeGasUsed
		result[i] = &rec
	}
	return result, nil
}

// TransactionsToHashes computes the hash of every transaction in the list.
func TransactionsToHashes(elems []*types.Transaction) []common.Hash {
	out := make([]common.Hash, len(elems))
	for i, el := range elems {
		out[i] = el.Hash()
	}
	return out
}
