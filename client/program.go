package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/mantle-xyz/kona/client/claim"
	"github.com/mantle-xyz/kona/client/driver"
	"github.com/mantle-xyz/kona/client/l1"
	"github.com/mantle-xyz/kona/client/l2"
	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/preimage"
	"github.com/mantle-xyz/kona/rollup"
	"github.com/mantle-xyz/kona/rollup/derive"
)

// Main executes the client program in a detached context and exits the current process.
// The client runtime environment must be preset before calling this function.
func Main(logger log.Logger) {
	logger.Info("Starting fault proof program client")
	preimageOracle := CreatePreimageChannel()
	preimageHinter := CreateHinterChannel()
	if err := RunProgram(logger, preimageOracle, preimageHinter); errors.Is(err, claim.ErrClaimNotValid) {
		logger.Error("Claim is invalid", "err", err)
		os.Exit(1)
	} else if err != nil {
		logger.Error("Program failed", "err", err)
		os.Exit(2)
	} else {
		logger.Info("Claim successfully verified")
		os.Exit(0)
	}
}

// RunProgram executes the Program, while attached to an IO based pre-image oracle, to be served by a host.
func RunProgram(logger log.Logger, preimageOracle io.ReadWriter, preimageHinter io.ReadWriter) error {
	pClient := preimage.NewOracleClient(preimageOracle)
	hClient := preimage.NewHintWriter(preimageHinter)
	l1PreimageOracle := l1.NewCachingOracle(l1.NewPreimageOracle(pClient, hClient))
	l2PreimageOracle := l2.NewCachingOracle(l2.NewPreimageOracle(pClient, hClient))

	bootInfo := NewBootstrapClient(pClient).BootInfo()
	logger.Info("Program Bootstrapped", "l1Head", bootInfo.L1Head, "l2OutputRoot", bootInfo.L2OutputRoot,
		"l2Claim", bootInfo.L2Claim, "l2ClaimBlockNumber", bootInfo.L2ClaimBlockNumber, "l2ChainID", bootInfo.L2ChainID)

	return runDerivation(
		logger,
		bootInfo.RollupConfig,
		bootInfo.L1Head,
		bootInfo.L2OutputRoot,
		bootInfo.L2Claim,
		bootInfo.L2ClaimBlockNumber,
		l1PreimageOracle,
		l2PreimageOracle,
	)
}

// runDerivation derives the L2 chain from the agreed starting output up to the
// claimed block and validates the claimed output root against the result.
func runDerivation(logger log.Logger, cfg *rollup.Config, l1Head common.Hash, l2OutputRoot common.Hash,
	l2Claim common.Hash, l2ClaimBlockNum uint64, l1Oracle l1.Oracle, l2Oracle l2.Oracle) error {
	ctx := context.Background()

	l1Client := l1.NewOracleL1Client(logger, l1Oracle, l1Head)
	l2Client := l2.NewOracleL2Client(logger, cfg, l2Oracle)
	engine := l2.NewOracleEngine(logger, cfg, l2Oracle, l2Client)

	agreedOutput := l2Oracle.OutputByRoot(l2OutputRoot)
	safeHead, err := l2Client.L2BlockRefByHash(ctx, agreedOutput.BlockHash)
	if err != nil {
		return fmt.Errorf("failed to load starting L2 block %s: %w", agreedOutput.BlockHash, err)
	}
	logger.Info("Starting derivation", "l2SafeHead", safeHead, "target", l2ClaimBlockNum)

	pipeline := derive.NewDerivationPipeline(logger, cfg, l1Client, l1Client, l1Client, l2Client)
	d := driver.NewDriver(logger, cfg, pipeline, engine, l1Client, l2Client, safeHead)
	if err := d.Advance(ctx, l2ClaimBlockNum); err != nil {
		return fmt.Errorf("failed to advance safe head: %w", err)
	}
	return claim.ValidateClaim(logger, d.SafeHead(), l2ClaimBlockNum, eth.Bytes32(l2Claim), l2Client)
}

func CreateHinterChannel() preimage.FileChannel {
	r := os.NewFile(HClientRFd, "preimage-hint-read")
	w := os.NewFile(HClientWFd, "preimage-hint-write")
	return preimage.NewReadWritePair(r, w)
}

// CreatePreimageChannel returns a FileChannel for the preimage oracle in a detached context
func CreatePreimageChannel() preimage.FileChannel {
	r := os.NewFile(PClientRFd, "preimage-oracle-read")
	w := os.NewFile(PClientWFd, "preimage-oracle-write")
	return preimage.NewReadWritePair(r, w)
}
