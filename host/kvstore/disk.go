package kvstore

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// DiskKV is a pebble-backed key-value store, every pre-image fetched by the
// host survives restarts so repeated runs against the same claim do not
// re-download the chain data.
type DiskKV struct {
	db *pebble.DB
}

var _ KV = (*DiskKV)(nil)

// NewDiskKV opens (or creates) the store in the given directory.
func NewDiskKV(path string) (*DiskKV, error) {
	opts := &pebble.Options{
		// Preimage content is keccak-committed, compressing it again buys little.
		Levels: []pebble.LevelOptions{{Compression: pebble.SnappyCompression}},
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &DiskKV{db: db}, nil
}

func (d *DiskKV) Put(k common.Hash, v []byte) error {
	return d.db.Set(k.Bytes(), v, pebble.Sync)
}

func (d *DiskKV) Get(k common.Hash) ([]byte, error) {
	value, closer, err := d.db.Get(k.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DiskKV) Close() error {
	return d.db.Close()
}
