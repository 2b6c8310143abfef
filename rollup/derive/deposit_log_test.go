package derive

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func depositEventLog(from, to common.Address, mint, value *big.Int, gas uint64, isCreation bool, data []byte) *types.Log {
	opaque := make([]byte, 0, 73+len(data))
	opaque = append(opaque, common.BigToHash(mint).Bytes()...)
	opaque = append(opaque, common.BigToHash(value).Bytes()...)
	var gasBytes [8]byte
	big.NewInt(int64(gas)).FillBytes(gasBytes[:])
	opaque = append(opaque, gasBytes[:]...)
	if isCreation {
		opaque = append(opaque, 1)
	} else {
		opaque = append(opaque, 0)
	}
	opaque = append(opaque, data...)

	// ABI encoding of the single `bytes opaqueData` argument.
	payload := make([]byte, 0, 64+len(opaque)+31)
	payload = append(payload, common.Hash{31: 32}.Bytes()...)
	payload = append(payload, common.BigToHash(big.NewInt(int64(len(opaque)))).Bytes()...)
	payload = append(payload, opaque...)
	for len(payload)%32 != 0 {
		payload = append(payload, 0)
	}

	return &types.Log{
		Address: common.HexToAddress("0xdeadbeef00000000000000000000000000000000"),
		Topics: []common.Hash{
			DepositEventABIHash,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			DepositEventVersion0,
		},
		Data:      payload,
		BlockHash: common.Hash{0xb1},
		Index:     3,
	}
}

func TestUnmarshalDepositLogEvent(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	txData := []byte{0xca, 0xfe, 0x01}
	ev := depositEventLog(from, to, big.NewInt(1000), big.NewInt(7), 21000, false, txData)

	dep, err := UnmarshalDepositLogEvent(ev)
	require.NoError(t, err)
	require.Equal(t, from, dep.From)
	require.NotNil(t, dep.To)
	require.Equal(t, to, *dep.To)
	require.Equal(t, big.NewInt(1000), dep.Mint)
	require.Equal(t, big.NewInt(7), dep.Value)
	require.Equal(t, uint64(21000), dep.Gas)
	require.Equal(t, txData, dep.Data)
	require.False(t, dep.IsSystemTransaction)

	source := UserDepositSource{L1BlockHash: ev.BlockHash, LogIndex: uint64(ev.Index)}
	require.Equal(t, source.SourceHash(), dep.SourceHash)
}

func TestUnmarshalDepositLogEventZeroMintAndCreation(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	ev := depositEventLog(from, to, big.NewInt(0), big.NewInt(0), 100_000, true, nil)

	dep, err := UnmarshalDepositLogEvent(ev)
	require.NoError(t, err)
	// A zero mint is elided entirely, and a creation deposit has no To.
	require.Nil(t, dep.Mint)
	require.Nil(t, dep.To)
}

func TestUnmarshalDepositLogEventMalformed(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	ev := depositEventLog(from, to, big.NewInt(0), big.NewInt(0), 0, false, nil)
	ev.Topics = ev.Topics[:3]
	_, err := UnmarshalDepositLogEvent(ev)
	require.ErrorContains(t, err, "expected 4 event topics")

	ev = depositEventLog(from, to, big.NewInt(0), big.NewInt(0), 0, false, nil)
	ev.Topics[0] = common.Hash{0xff}
	_, err = UnmarshalDepositLogEvent(ev)
	require.ErrorContains(t, err, "invalid deposit event selector")

	ev = depositEventLog(from, to, big.NewInt(0), big.NewInt(0), 0, false, nil)
	ev.Data = ev.Data[:32]
	_, err = UnmarshalDepositLogEvent(ev)
	require.ErrorContains(t, err, "incomplete opaqueData")
}

func TestUserDeposits(t *testing.T) {
	depositContract := common.HexToAddress("0xdeadbeef00000000000000000000000000000000")
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	good := depositEventLog(from, to, big.NewInt(5), big.NewInt(5), 50_000, false, []byte{0x01})
	otherContract := depositEventLog(from, to, big.NewInt(5), big.NewInt(5), 50_000, false, []byte{0x02})
	otherContract.Address = common.Address{0x42}

	receipts := []*types.Receipt{
		{Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{good, otherContract}},
		// Failed L1 transactions never mint anything on L2.
		{Status: types.ReceiptStatusFailed, Logs: []*types.Log{depositEventLog(from, to, big.NewInt(9), big.NewInt(9), 1, false, nil)}},
	}

	deposits, err := UserDeposits(receipts, depositContract)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.Equal(t, []byte{0x01}, deposits[0].Data)
}

func TestDepositTxRoundTrip(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	ev := depositEventLog(from, to, big.NewInt(1000), big.NewInt(7), 21000, false, []byte{0x01, 0x02})
	dep, err := UnmarshalDepositLogEvent(ev)
	require.NoError(t, err)

	enc, err := dep.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, byte(DepositTxType), enc[0])

	var out DepositTx
	require.NoError(t, out.UnmarshalBinary(enc))
	require.Equal(t, *dep, out)
}
