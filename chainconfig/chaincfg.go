package chainconfig

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/mantle-xyz/kona/eth"
	"github.com/mantle-xyz/kona/rollup"
)

var (
	MantleMainnetChainConfig = &params.ChainConfig{
		ChainID:             big.NewInt(5000),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
	}
	MantleSepoliaChainConfig = &params.ChainConfig{
		ChainID:             big.NewInt(5003),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
	}
)

var (
	MantleMainnetRollupConfig = &rollup.Config{
		Genesis: rollup.Genesis{
			L1: eth.BlockID{
				Hash:   common.HexToHash("0x41bd9c0e47ec5f9b11d488e7b4f482e0287027dd1b7a0f4bf6bbb823bca0bd27"),
				Number: 17577705,
			},
			L2: eth.BlockID{
				Hash:   common.HexToHash("0x18cf09b49720ce1b2fd9ec8f4b067fa32baaa3d42d3bf4a1a7bc1ba8c0f0d4e9"),
				Number: 0,
			},
			L2Time: 1688314886,
			SystemConfig: eth.SystemConfig{
				BatcherAddr: common.HexToAddress("0x2f40d796917ffb642bd2e2bdd2c762a5e40fd749"),
				Overhead:    eth.Bytes32(common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000bc4")),
				Scalar:      eth.Bytes32(common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000a6fe0")),
				GasLimit:    200_000_000_000,
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      600,
		ChannelTimeout:         300,
		SeqWindowSize:          3600,
		L1ChainID:              big.NewInt(1),
		L2ChainID:              big.NewInt(5000),
		BatchInboxAddress:      common.HexToAddress("0xff00000000000000000000000000000000005000"),
		DepositContractAddress: common.HexToAddress("0xc54cb22944f2be476e02decfcd7e3e7d3e15a8fb"),
		L1SystemConfigAddress:  common.HexToAddress("0x427ea0710fa5252057f0d88274f7aeb308386caf"),
		MantleDASwitch:         true,
	}

	MantleSepoliaRollupConfig = &rollup.Config{
		Genesis: rollup.Genesis{
			L1: eth.BlockID{
				Hash:   common.HexToHash("0xc83d5ec34277af2a30a9dfca41bae3c8b0821b57e6b4b7e405d229b6e7ff9479"),
				Number: 4058239,
			},
			L2: eth.BlockID{
				Hash:   common.HexToHash("0x47bd5cf2e9a7e5cbc9b0c0eadc0acfc8dbe3f5c2da0acff94c00c21e16b6c46a"),
				Number: 0,
			},
			L2Time: 1696478784,
			SystemConfig: eth.SystemConfig{
				BatcherAddr: common.HexToAddress("0x9d4b95aa6bcbd5f40c97d30e05f1a9f4a9b78cf7"),
				Overhead:    eth.Bytes32(common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000bc4")),
				Scalar:      eth.Bytes32(common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000a6fe0")),
				GasLimit:    200_000_000_000,
			},
		},
		BlockTime:              2,
		MaxSequencerDrift:      600,
		ChannelTimeout:         300,
		SeqWindowSize:          3600,
		L1ChainID:              big.NewInt(11155111),
		L2ChainID:              big.NewInt(5003),
		BatchInboxAddress:      common.HexToAddress("0xff00000000000000000000000000000000005003"),
		DepositContractAddress: common.HexToAddress("0xb3db4bd5bc225930ed674494f9a4f6a11b8efbc8"),
		L1SystemConfigAddress:  common.HexToAddress("0x47b6d9b25fc4f9f6a6f4fa4e0b8d0b9f6a35b0e4"),
		MantleDASwitch:         true,
	}
)

var l2ChainConfigsByChainID = map[uint64]*params.ChainConfig{
	5000: MantleMainnetChainConfig,
	5003: MantleSepoliaChainConfig,
}

var rollupConfigsByChainID = map[uint64]*rollup.Config{
	5000: MantleMainnetRollupConfig,
	5003: MantleSepoliaRollupConfig,
}

func RollupConfigByChainID(chainID uint64) (*rollup.Config, error) {
	rollupCfg, ok := rollupConfigsByChainID[chainID]
	if !ok {
		return nil, fmt.Errorf("chain ID %d not found", chainID)
	}
	return rollupCfg, nil
}

func ChainConfigByChainID(chainID uint64) (*params.ChainConfig, error) {
	chainCfg, ok := l2ChainConfigsByChainID[chainID]
	if !ok {
		return nil, fmt.Errorf("chain ID %d not found", chainID)
	}
	return chainCfg, nil
}
