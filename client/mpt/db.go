package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
)

// Hooks are the callbacks the read-only oracle database serves trie queries with.
type Hooks struct {
	Get    func(key []byte) []byte
	Put    func(key []byte, value []byte)
	Delete func(key []byte)
}

// DB implements the ethdb.KeyValueStore to back the trie package with a
// preimage oracle. Only the calls the trie reader/writer actually makes are
// implemented; everything else panics loudly instead of silently misbehaving.
type DB struct {
	db Hooks
}

// NewOracleDB wraps a read-only node getter as a trie database.
// The getter is queried with 32-byte node hashes.
func NewOracleDB(get func(key common.Hash) []byte) *DB {
	return &DB{db: Hooks{
		Get: func(key []byte) []byte {
			if len(key) != common.HashLength {
				panic(fmt.Errorf("expected 32 byte key query, but got %d bytes: %x", len(key), key))
			}
			return get(common.BytesToHash(key))
		},
		Put: func(key []byte, value []byte) {
			panic("put not supported")
		},
		Delete: func(key []byte) {
			panic("delete not supported")
		},
	}}
}

func (p *DB) Has(key []byte) (bool, error) {
	panic("not supported")
}

func (p *DB) Get(key []byte) ([]byte, error) {
	return p.db.Get(key), nil
}

func (p *DB) Put(key []byte, value []byte) error {
	p.db.Put(key, value)
	return nil
}

func (p *DB) Delete(key []byte) error {
	p.db.Delete(key)
	return nil
}

func (p *DB) Stat() (string, error) {
	panic("not supported")
}

func (p *DB) NewBatch() ethdb.Batch {
	panic("not supported")
}

func (p *DB) NewBatchWithSize(size int) ethdb.Batch {
	panic("not supported")
}

func (p *DB) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	panic("not supported")
}

func (p *DB) Compact(start []byte, limit []byte) error {
	panic("not supported")
}

func (p *DB) Close() error {
	return nil
}

var _ ethdb.KeyValueStore = (*DB)(nil)
