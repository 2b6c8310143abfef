package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
)

// ReadTrie takes the root of a list-shaped Merkle Patricia Trie, as used for
// transactions and receipts in the block body, and walks the full trie through
// the given preimage getter. The values are returned in list order.
func ReadTrie(root common.Hash, getPreimage func(key common.Hash) []byte) []hexutil.Bytes {
	odb := NewOracleDB(getPreimage)
	tdb := triedb.NewDatabase(rawdb.NewDatabase(odb), triedb.HashDefaults)
	tr, err := trie.New(trie.TrieID(root), tdb)
	if err != nil {
		panic(fmt.Errorf("failed to open trie %s: %w", root, err))
	}
	nodeIter, err := tr.NodeIterator(nil)
	if err != nil {
		panic(fmt.Errorf("failed to iterate trie %s: %w", root, err))
	}

	// The iterator walks keys in nibble order, which is not list order once
	// the list grows past 0x7f entries, so slot each value by its decoded
	// index instead of appending.
	var values []hexutil.Bytes
	iter := trie.NewIterator(nodeIter)
	for iter.Next() {
		var index uint64
		if err := rlp.DecodeBytes(iter.Key, &index); err != nil {
			panic(fmt.Errorf("invalid list index in trie %s: %w", root, err))
		}
		for uint64(len(values)) <= index {
			values = append(values, nil)
		}
		values[index] = iter.Value
	}
	if iter.Err != nil {
		panic(fmt.Errorf("failed to read trie %s: %w", root, iter.Err))
	}
	return values
}

// WriteTrie hashes the values as a list-shaped Merkle Patricia Trie and
// returns the root along with every trie node the lookup side will need.
func WriteTrie(values []hexutil.Bytes) (common.Hash, []hexutil.Bytes) {
	var out []hexutil.Bytes
	st := trie.NewStackTrie(func(path []byte, hash common.Hash, blob []byte) {
		out = append(out, common.CopyBytes(blob))
	})
	for i, value := range values {
		var indexBuf [9]byte
		index := rlp.AppendUint64(indexBuf[:0], uint64(i))
		if err := st.Update(index, value); err != nil {
			panic(fmt.Errorf("failed to build list trie: %w", err))
		}
	}
	return st.Hash(), out
}
