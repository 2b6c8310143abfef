package kvstore

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mantle-xyz/kona/preimage"
)

type PreimageSource interface {
	Get(key common.Hash) ([]byte, error)
}

// PreimageSourceSplitter routes requests to the local source when the key
// carries the local key type, and to the global source otherwise.
type PreimageSourceSplitter struct {
	local  PreimageSource
	global PreimageSource
}

func NewPreimageSourceSplitter(local PreimageSource, global PreimageSource) *PreimageSourceSplitter {
	return &PreimageSourceSplitter{
		local:  local,
		global: global,
	}
}

func (s *PreimageSourceSplitter) Get(key [32]byte) ([]byte, error) {
	if key[0] == byte(preimage.LocalKeyType) {
		return s.local.Get(common.Hash(key))
	}
	return s.global.Get(common.Hash(key))
}
