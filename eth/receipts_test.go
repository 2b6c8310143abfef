package eth

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawReceipts(t *testing.T) {
	receipts := types.Receipts{
		{
			Type:              types.LegacyTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: 21_000,
			Logs: []*types.Log{
				{Address: common.Address{0x01}, Data: []byte("a")},
				{Address: common.Address{0x02}, Data: []byte("b")},
			},
		},
		{
			Type:              types.DynamicFeeTxType,
			Status:            types.ReceiptStatusFailed,
			CumulativeGasUsed: 63_000,
			Logs: []*types.Log{
				{Address: common.Address{0x03}, Data: []byte("c")},
			},
		},
	}
	raw := make([]hexutil.Bytes, len(receipts))
	for i, r := range receipts {
		data, err := r.MarshalBinary()
		require.NoError(t, err)
		raw[i] = data
	}
	txHashes := []common.Hash{{0xaa}, {0xbb}}
	block := BlockID{Hash: common.Hash{0xb1}, Number: 77}

	decoded, err := DecodeRawReceipts(block, raw, txHashes)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	first, second := decoded[0], decoded[1]
	require.Equal(t, txHashes[0], first.TxHash)
	require.Equal(t, block.Hash, first.BlockHash)
	require.Equal(t, big.NewInt(77), first.BlockNumber)
	require.Equal(t, uint(0), first.TransactionIndex)
	require.Equal(t, uint64(21_000), first.GasUsed)

	require.Equal(t, txHashes[1], second.TxHash)
	require.Equal(t, uint(1), second.TransactionIndex)
	require.Equal(t, uint64(42_000), second.GasUsed)

	// Log indices run across the whole block.
	require.Equal(t, uint(0), first.Logs[0].Index)
	require.Equal(t, uint(1), first.Logs[1].Index)
	require.Equal(t, uint(2), second.Logs[0].Index)
	require.Equal(t, txHashes[1], second.Logs[0].TxHash)
	require.Equal(t, uint64(77), second.Logs[0].BlockNumber)
}

func TestDecodeRawReceiptsCountMismatch(t *testing.T) {
	_, err := DecodeRawReceipts(BlockID{}, []hexutil.Bytes{{0x01}}, nil)
	require.ErrorContains(t, err, "got 1 receipts but 0 transactions")
}

func TestDecodeTransactions(t *testing.T) {
	txs := types.Transactions{
		types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(2), To: &common.Address{0x01}}),
		types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(1), Nonce: 2, Gas: 30_000, GasFeeCap: big.NewInt(5), GasTipCap: big.NewInt(1), To: &common.Address{0x02}}),
	}
	raw := make([]hexutil.Bytes, len(txs))
	for i, tx := range txs {
		data, err := tx.MarshalBinary()
		require.NoError(t, err)
		raw[i] = data
	}

	decoded, err := DecodeTransactions(raw)
	require.NoError(t, err)
	require.Equal(t, TransactionsToHashes(txs), TransactionsToHashes(decoded))
}

func TestDecodeTransactionsInvalid(t *testing.T) {
	_, err := DecodeTransactions([]hexutil.Bytes{{0xff, 0xff}})
	require.ErrorContains(t, err, "failed to decode tx 0")
}
