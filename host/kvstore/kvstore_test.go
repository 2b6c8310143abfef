package kvstore

import (
	"encoding/binary"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/mantle-xyz/kona/client"
	"github.com/mantle-xyz/kona/host/config"
	"github.com/mantle-xyz/kona/preimage"
	"github.com/mantle-xyz/kona/rollup"
)

func TestMemKV(t *testing.T) {
	kv := NewMemKV()
	key := common.Hash{0xaa}

	_, err := kv.Get(key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(key, []byte("value")))
	got, err := kv.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	require.NoError(t, kv.Put(key, []byte("other")))
	got, err = kv.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("other"), got)

	require.NoError(t, kv.Close())
}

func TestDiskKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewDiskKV(dir)
	require.NoError(t, err)

	key := common.Hash{0xbb}
	_, err = kv.Get(key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(key, []byte("persisted")))
	got, err := kv.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
	require.NoError(t, kv.Close())

	// Values survive a reopen.
	kv, err = NewDiskKV(dir)
	require.NoError(t, err)
	got, err = kv.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
	require.NoError(t, kv.Close())
}

type mapSource map[common.Hash][]byte

func (m mapSource) Get(key common.Hash) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func TestPreimageSourceSplitter(t *testing.T) {
	localKey := preimage.LocalIndexKey(3).PreimageKey()
	globalKey := preimage.Keccak256Key(common.Hash{0xcc}).PreimageKey()

	local := mapSource{common.Hash(localKey): []byte("local")}
	global := mapSource{common.Hash(globalKey): []byte("global")}
	splitter := NewPreimageSourceSplitter(local, global)

	got, err := splitter.Get(localKey)
	require.NoError(t, err)
	require.Equal(t, []byte("local"), got)

	got, err = splitter.Get(globalKey)
	require.NoError(t, err)
	require.Equal(t, []byte("global"), got)
}

func TestLocalPreimageSource(t *testing.T) {
	cfg := &config.Config{
		Rollup:             &rollup.Config{L2ChainID: big.NewInt(901)},
		L2ChainConfig:      &params.ChainConfig{},
		L2ChainID:          901,
		L1Head:             common.Hash{0x11},
		L2OutputRoot:       common.Hash{0x22},
		L2Claim:            common.Hash{0x33},
		L2ClaimBlockNumber: 1234,
	}
	src := NewLocalPreimageSource(cfg)

	get := func(key preimage.LocalIndexKey) ([]byte, error) {
		return src.Get(common.Hash(key.PreimageKey()))
	}

	v, err := get(client.L1HeadLocalIndex)
	require.NoError(t, err)
	require.Equal(t, cfg.L1Head.Bytes(), v)

	v, err = get(client.L2OutputRootLocalIndex)
	require.NoError(t, err)
	require.Equal(t, cfg.L2OutputRoot.Bytes(), v)

	v, err = get(client.L2ClaimLocalIndex)
	require.NoError(t, err)
	require.Equal(t, cfg.L2Claim.Bytes(), v)

	v, err = get(client.L2ClaimBlockNumberLocalIndex)
	require.NoError(t, err)
	require.Equal(t, binary.BigEndian.AppendUint64(nil, cfg.L2ClaimBlockNumber), v)

	v, err = get(client.L2ChainIDLocalIndex)
	require.NoError(t, err)
	require.Equal(t, binary.BigEndian.AppendUint64(nil, cfg.L2ChainID), v)

	// Chain and rollup configs are only served for custom chains.
	_, err = get(client.L2ChainConfigLocalIndex)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = get(client.RollupConfigLocalIndex)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = src.Get(common.Hash{0xff})
	require.ErrorIs(t, err, ErrNotFound)

	cfg.L2ChainID = client.CustomChainIDIndicator
	v, err = get(client.L2ChainConfigLocalIndex)
	require.NoError(t, err)
	expected, err := json.Marshal(cfg.L2ChainConfig)
	require.NoError(t, err)
	require.Equal(t, expected, v)

	v, err = get(client.RollupConfigLocalIndex)
	require.NoError(t, err)
	expected, err = json.Marshal(cfg.Rollup)
	require.NoError(t, err)
	require.Equal(t, expected, v)
}
