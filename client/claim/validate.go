package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/eth"
)

var ErrClaimNotValid = errors.New("invalid claim")

// L2Source computes the output commitment of a derived L2 block.
type L2Source interface {
	OutputV0AtBlock(ctx context.Context, blockHash common.Hash) (*eth.OutputV0, error)
}

// ValidateClaim compares the claimed output root against the output root of
// the derived chain. When derivation exhausted the L1 data before reaching the
// claimed height, the output of the highest derived block is the canonical
// output for the claim.
func ValidateClaim(logger log.Logger, safeHead eth.L2BlockRef, l2ClaimBlockNum uint64, claimedOutputRoot eth.Bytes32, src L2Source) error {
	if safeHead.Number > l2ClaimBlockNum {
		return fmt.Errorf("derived head %v is past claim block number %v", safeHead.Number, l2ClaimBlockNum)
	}

	output, err := src.OutputV0AtBlock(context.Background(), safeHead.Hash)
	if err != nil {
		return fmt.Errorf("calculate L2 output root at %v: %w", safeHead, err)
	}
	outputRoot := eth.OutputRoot(output)
	logger.Info("Validating claim", "head", safeHead, "output", outputRoot, "claim", claimedOutputRoot)

	if claimedOutputRoot != outputRoot {
		return fmt.Errorf("%w: claim: %v actual: %v", ErrClaimNotValid, claimedOutputRoot, outputRoot)
	}
	return nil
}
