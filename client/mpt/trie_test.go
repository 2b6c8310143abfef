package mpt

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, values []hexutil.Bytes) {
	root, nodes := WriteTrie(values)
	byHash := make(map[common.Hash][]byte, len(nodes))
	for _, node := range nodes {
		byHash[crypto.Keccak256Hash(node)] = node
	}
	got := ReadTrie(root, func(key common.Hash) []byte {
		node, ok := byHash[key]
		require.True(t, ok, "missing trie node %s", key)
		return node
	})
	require.Equal(t, values, got)
}

func TestTrieRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(123))
	values := make([]hexutil.Bytes, 10)
	for i := range values {
		values[i] = make(hexutil.Bytes, rng.Intn(800)+1)
		rng.Read(values[i])
	}
	roundTrip(t, values)
}

func TestTrieRoundTripLargeList(t *testing.T) {
	// Past 0x7f entries the RLP index keys stop being single bytes, and the
	// iterator's nibble order diverges from list order.
	rng := rand.New(rand.NewSource(321))
	values := make([]hexutil.Bytes, 200)
	for i := range values {
		values[i] = make(hexutil.Bytes, rng.Intn(60)+1)
		rng.Read(values[i])
	}
	roundTrip(t, values)
}

func TestTrieSingleValue(t *testing.T) {
	roundTrip(t, []hexutil.Bytes{{0x42}})
}
