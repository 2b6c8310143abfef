package preimage

import (
	"encoding/binary"
	"encoding/hex"
)

// KeyType is the first byte of every pre-image key, identifying how the
// remaining 31 bytes commit to the pre-image.
type KeyType byte

const (
	// The zero key type is illegal to use, ensuring all keys are non-zero.
	_ KeyType = 0
	// LocalKeyType is for input-type pre-images, specific to the local program instance.
	LocalKeyType KeyType = 1
	// Keccak256KeyType is for keccak256 pre-images, for any global shared pre-images.
	Keccak256KeyType KeyType = 2
	// GlobalGenericKeyType is for generic global data, committed to by a
	// request hash. The host is responsible for validating the data against
	// the request before serving it.
	GlobalGenericKeyType KeyType = 3
)

// Key is the 32-byte pre-image key used to request a pre-image from an oracle.
type Key interface {
	// PreimageKey changes the Key commitment into a
	// 32-byte type-prefixed pre-image key.
	PreimageKey() [32]byte
}

// LocalIndexKey is a key local to the program, indexing a special program input.
type LocalIndexKey uint64

func (k LocalIndexKey) PreimageKey() (out [32]byte) {
	out[0] = byte(LocalKeyType)
	binary.BigEndian.PutUint64(out[24:], uint64(k))
	return
}

// Keccak256Key wraps a keccak256 hash to use it as a typed pre-image key.
type Keccak256Key [32]byte

func (k Keccak256Key) PreimageKey() (out [32]byte) {
	out = k // copy the keccak hash
	out[0] = byte(Keccak256KeyType)
	return
}

func (k Keccak256Key) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

func (k Keccak256Key) TerminalString() string {
	return "0x" + hex.EncodeToString(k[:])
}

// GlobalGenericKey wraps a 32-byte request hash to use it as a typed pre-image key
// for data the host validates out-of-band, like KZG-committed blobs.
type GlobalGenericKey [32]byte

func (k GlobalGenericKey) PreimageKey() (out [32]byte) {
	out = k
	out[0] = byte(GlobalGenericKeyType)
	return
}

func (k GlobalGenericKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

func (k GlobalGenericKey) TerminalString() string {
	return "0x" + hex.EncodeToString(k[:])
}

// Hint is an interface to enable any program type to function as a hint,
// when passed to the Hinter interface, returning a string representation
// of what data the host should prepare pre-images for.
type Hint interface {
	Hint() string
}

// Oracle is the interface for pre-image oracles. Get panics if the pre-image
// cannot be served: inability to answer a pre-image request is a host failure,
// not a recoverable program condition.
type Oracle interface {
	// Get the full pre-image of a given pre-image key.
	Get(key Key) []byte
}

// Hinter is an interface to write hints to the host.
// This may be implemented as a no-op or logging hinter
// if the program is executing in a read-only environment
// where the host is expected to have all pre-images ready.
type Hinter interface {
	Hint(v Hint)
}
