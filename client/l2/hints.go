package l2

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mantle-xyz/kona/preimage"
)

const (
	HintL2BlockHeader   = "l2-block-header"
	HintL2Transactions  = "l2-transactions"
	HintL2StateNode     = "l2-state-node"
	HintL2Output        = "l2-output"
	HintL2BlockByNumber = "l2-block-by-number"
)

type BlockHeaderHint common.Hash

var _ preimage.Hint = BlockHeaderHint{}

func (l BlockHeaderHint) Hint() string {
	return HintL2BlockHeader + " " + (common.Hash)(l).String()
}

type TransactionsHint common.Hash

var _ preimage.Hint = TransactionsHint{}

func (l TransactionsHint) Hint() string {
	return HintL2Transactions + " " + (common.Hash)(l).String()
}

type StateNodeHint common.Hash

var _ preimage.Hint = StateNodeHint{}

func (l StateNodeHint) Hint() string {
	return HintL2StateNode + " " + (common.Hash)(l).String()
}

type L2OutputHint common.Hash

var _ preimage.Hint = L2OutputHint{}

func (l L2OutputHint) Hint() string {
	return HintL2Output + " " + (common.Hash)(l).String()
}

// BlockByNumberHint requests the canonical L2 block hash at the given height.
type BlockByNumberHint uint64

var _ preimage.Hint = BlockByNumberHint(0)

func (l BlockByNumberHint) Hint() string {
	return HintL2BlockByNumber + " " + hexutil.Encode(BlockByNumberRequest(uint64(l)))
}

// BlockByNumberRequest encodes the request bytes identifying one canonical
// block lookup, shared between the client key derivation and the host.
func BlockByNumberRequest(number uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, number)
}
