package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeTransactions decodes a list of consensus-encoded transactions.
func DecodeTransactions(data []hexutil.Bytes) (types.Transactions, error) {
	dest := make(types.Transactions, len(data))
	for i := range dest {
		var x types.Transaction
		if err := x.UnmarshalBinary(data[i]); err != nil {
			return nil, fmt.Errorf("failed to decode tx %d: %w", i, err)
		}
		dest[i] = &x
	}
	return dest, nil
}
