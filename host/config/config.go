package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"

	"github.com/mantle-xyz/kona/chainconfig"
	"github.com/mantle-xyz/kona/client"
	"github.com/mantle-xyz/kona/host/flags"
	"github.com/mantle-xyz/kona/rollup"
)

var (
	ErrMissingRollupConfig = errors.New("missing rollup config")
	ErrMissingL2ChainID    = errors.New("missing L2 chain ID")
	ErrInvalidL1Head       = errors.New("invalid l1 head")
	ErrInvalidL2Head       = errors.New("invalid l2 head")
	ErrInvalidL2OutputRoot = errors.New("invalid l2 output root")
	ErrInvalidL2Claim      = errors.New("invalid l2 claim")
	ErrInvalidL2ClaimBlock = errors.New("invalid l2 claim block number")
	ErrDataDirRequired     = errors.New("datadir must be specified when in non-fetching mode")
	ErrNoExecInServerMode  = errors.New("exec command must not be set when in server mode")
)

type Config struct {
	Rollup *rollup.Config
	// L2ChainConfig of the L2 execution layer, to serve to the client.
	L2ChainConfig *params.ChainConfig
	// L2ChainID identifies the known network, CustomChainIDIndicator for custom configs.
	L2ChainID uint64

	// L1Head is the L1 block hash derivation stops at.
	L1Head common.Hash
	// L2Head is the L2 block hash at L2OutputRoot.
	L2Head common.Hash
	// L2OutputRoot is the agreed L2 output root to start derivation from.
	L2OutputRoot common.Hash
	// L2Claim is the claimed L2 output root to validate.
	L2Claim common.Hash
	// L2ClaimBlockNumber is the block number the claim is from.
	L2ClaimBlockNumber uint64

	// L1URL is the L1 execution JSON-RPC endpoint. Optional when all data is already in the DataDir.
	L1URL string
	// L1BeaconURL is the L1 beacon API endpoint, for blob retrieval.
	L1BeaconURL string
	// L2URL is the L2 execution JSON-RPC endpoint (eth and debug namespace required).
	L2URL string
	// EigenDAProxyURL is the DA proxy endpoint for EigenDA blob retrieval.
	EigenDAProxyURL string

	// DataDir is the directory to use for preimage storage. In-memory when empty.
	DataDir string
	// ExecCmd runs the client program as a separate process, in-process when empty.
	ExecCmd string
	// ServerMode runs the pre-image server only, without any client program.
	ServerMode bool
}

// FetchingEnabled reports whether the host can reach out to RPC endpoints for
// missing pre-images, or has to rely on what the DataDir already holds.
func (c *Config) FetchingEnabled() bool {
	return c.L1URL != "" && c.L2URL != ""
}

func (c *Config) Check() error {
	if c.Rollup == nil {
		return ErrMissingRollupConfig
	}
	if err := c.Rollup.Check(); err != nil {
		return fmt.Errorf("invalid rollup config: %w", err)
	}
	if c.L1Head == (common.Hash{}) {
		return ErrInvalidL1Head
	}
	if c.L2Head == (common.Hash{}) {
		return ErrInvalidL2Head
	}
	if c.L2OutputRoot == (common.Hash{}) {
		return ErrInvalidL2OutputRoot
	}
	if c.L2Claim == (common.Hash{}) {
		return ErrInvalidL2Claim
	}
	if c.L2ClaimBlockNumber == 0 {
		return ErrInvalidL2ClaimBlock
	}
	if !c.FetchingEnabled() && c.DataDir == "" {
		return ErrDataDirRequired
	}
	if c.ServerMode && c.ExecCmd != "" {
		return ErrNoExecInServerMode
	}
	return nil
}

// NewConfigFromCLI parses the Config from the provided flags or environment variables.
func NewConfigFromCLI(logger log.Logger, ctx *cli.Context) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, err
	}
	l1Head := common.HexToHash(ctx.String(flags.L1Head.Name))
	if l1Head == (common.Hash{}) {
		return nil, ErrInvalidL1Head
	}
	l2Head := common.HexToHash(ctx.String(flags.L2Head.Name))
	if l2Head == (common.Hash{}) {
		return nil, ErrInvalidL2Head
	}
	l2OutputRoot := common.HexToHash(ctx.String(flags.L2OutputRoot.Name))
	if l2OutputRoot == (common.Hash{}) {
		return nil, ErrInvalidL2OutputRoot
	}
	l2Claim := common.HexToHash(ctx.String(flags.L2Claim.Name))
	if l2Claim == (common.Hash{}) {
		return nil, ErrInvalidL2Claim
	}
	l2ClaimBlockNum := ctx.Uint64(flags.L2BlockNumber.Name)

	l2ChainID := ctx.Uint64(flags.L2ChainID.Name)
	if l2ChainID == 0 {
		return nil, ErrMissingL2ChainID
	}
	var rollupConfig *rollup.Config
	var l2ChainConfig *params.ChainConfig
	if l2ChainID == client.CustomChainIDIndicator {
		return nil, errors.New("custom chain configs are not supported from the CLI yet")
	}
	rollupConfig, err := chainconfig.RollupConfigByChainID(l2ChainID)
	if err != nil {
		return nil, err
	}
	l2ChainConfig, err = chainconfig.ChainConfigByChainID(l2ChainID)
	if err != nil {
		return nil, err
	}
	logger.Info("Using rollup config", "config", rollupConfig.Describe())

	return &Config{
		Rollup:             rollupConfig,
		L2ChainConfig:      l2ChainConfig,
		L2ChainID:          l2ChainID,
		L1Head:             l1Head,
		L2Head:             l2Head,
		L2OutputRoot:       l2OutputRoot,
		L2Claim:            l2Claim,
		L2ClaimBlockNumber: l2ClaimBlockNum,
		L1URL:              ctx.String(flags.L1NodeAddr.Name),
		L1BeaconURL:        ctx.String(flags.L1BeaconAddr.Name),
		L2URL:              ctx.String(flags.L2NodeAddr.Name),
		EigenDAProxyURL:    ctx.String(flags.EigenDAProxyAddr.Name),
		DataDir:            ctx.String(flags.DataDir.Name),
		ExecCmd:            ctx.String(flags.Exec.Name),
		ServerMode:         ctx.Bool(flags.Server.Name),
	}, nil
}
