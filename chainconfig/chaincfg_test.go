package chainconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollupConfigByChainID(t *testing.T) {
	cfg, err := RollupConfigByChainID(5000)
	require.NoError(t, err)
	require.NoError(t, cfg.Check())
	require.EqualValues(t, 5000, cfg.L2ChainID.Uint64())

	cfg, err = RollupConfigByChainID(5003)
	require.NoError(t, err)
	require.NoError(t, cfg.Check())
	require.EqualValues(t, 5003, cfg.L2ChainID.Uint64())

	_, err = RollupConfigByChainID(999)
	require.ErrorContains(t, err, "chain ID 999 not found")
}

func TestChainConfigByChainID(t *testing.T) {
	cfg, err := ChainConfigByChainID(5000)
	require.NoError(t, err)
	require.EqualValues(t, 5000, cfg.ChainID.Uint64())

	cfg, err = ChainConfigByChainID(5003)
	require.NoError(t, err)
	require.EqualValues(t, 5003, cfg.ChainID.Uint64())

	_, err = ChainConfigByChainID(999)
	require.ErrorContains(t, err, "chain ID 999 not found")
}
