package eth

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidOutput = errors.New("invalid output")

type OutputVersion uint8

const OutputVersionV0 = OutputVersion(0)

// OutputV0 is the version-0 pre-image of an L2 output root: the state root,
// the withdrawal storage root of the message-passer predeploy, and the block hash
// at the claimed height.
type OutputV0 struct {
	StateRoot                Bytes32
	MessagePasserStorageRoot Bytes32
	BlockHash                common.Hash
}

func (o *OutputV0) Version() OutputVersion {
	return OutputVersionV0
}

func (o *OutputV0) Marshal() []byte {
	var buf [128]byte
	version := o.Version()
	buf[31] = byte(version)
	copy(buf[32:], o.StateRoot[:])
	copy(buf[64:], o.MessagePasserStorageRoot[:])
	copy(buf[96:], o.BlockHash[:])
	return buf[:]
}

// OutputRoot returns the keccak256 hash of the marshaled output.
func OutputRoot(o *OutputV0) Bytes32 {
	return Bytes32(crypto.Keccak256Hash(o.Marshal()))
}

// UnmarshalOutput decodes the pre-image of an output root. Only version 0 is known.
func UnmarshalOutput(data []byte) (*OutputV0, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("%w: data is too short", ErrInvalidOutput)
	}
	var version Bytes32
	copy(version[:], data[:32])
	if version != (Bytes32{}) {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrInvalidOutput, version)
	}
	if len(data) != 128 {
		return nil, fmt.Errorf("%w: invalid v0 length %d", ErrInvalidOutput, len(data))
	}
	var output OutputV0
	copy(output.StateRoot[:], data[32:64])
	copy(output.MessagePasserStorageRoot[:], data[64:96])
	copy(output.BlockHash[:], data[96:128])
	return &output, nil
}
