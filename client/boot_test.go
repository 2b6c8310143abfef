package client

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/chainconfig"
	"github.com/mantle-xyz/kona/preimage"
)

type mapOracle map[preimage.Key][]byte

func (m mapOracle) Get(key preimage.Key) []byte {
	v, ok := m[key]
	if !ok {
		panic("no value for key")
	}
	return v
}

func testBootOracle(t *testing.T, chainID uint64) mapOracle {
	return mapOracle{
		L1HeadLocalIndex:             common.Hash{0x11}.Bytes(),
		L2OutputRootLocalIndex:       common.Hash{0x22}.Bytes(),
		L2ClaimLocalIndex:            common.Hash{0x33}.Bytes(),
		L2ClaimBlockNumberLocalIndex: binary.BigEndian.AppendUint64(nil, 4321),
		L2ChainIDLocalIndex:          binary.BigEndian.AppendUint64(nil, chainID),
	}
}

func TestBootstrapKnownChain(t *testing.T) {
	oracle := testBootOracle(t, 5000)
	info := NewBootstrapClient(oracle).BootInfo()

	require.Equal(t, common.Hash{0x11}, info.L1Head)
	require.Equal(t, common.Hash{0x22}, info.L2OutputRoot)
	require.Equal(t, common.Hash{0x33}, info.L2Claim)
	require.EqualValues(t, 4321, info.L2ClaimBlockNumber)
	require.EqualValues(t, 5000, info.L2ChainID)
	require.Same(t, chainconfig.MantleMainnetRollupConfig, info.RollupConfig)
	require.Same(t, chainconfig.MantleMainnetChainConfig, info.L2ChainConfig)
}

func TestBootstrapCustomChain(t *testing.T) {
	oracle := testBootOracle(t, CustomChainIDIndicator)

	rollupCfg := chainconfig.MantleSepoliaRollupConfig
	rollupJSON, err := json.Marshal(rollupCfg)
	require.NoError(t, err)
	oracle[RollupConfigLocalIndex] = rollupJSON
	chainJSON, err := json.Marshal(chainconfig.MantleSepoliaChainConfig)
	require.NoError(t, err)
	oracle[L2ChainConfigLocalIndex] = chainJSON

	info := NewBootstrapClient(oracle).BootInfo()
	require.EqualValues(t, CustomChainIDIndicator, info.L2ChainID)
	require.Equal(t, rollupCfg, info.RollupConfig)
	require.Equal(t, chainconfig.MantleSepoliaChainConfig.ChainID, info.L2ChainConfig.ChainID)
}

func TestBootstrapUnknownChainPanics(t *testing.T) {
	oracle := testBootOracle(t, 999)
	require.Panics(t, func() {
		NewBootstrapClient(oracle).BootInfo()
	})
}
