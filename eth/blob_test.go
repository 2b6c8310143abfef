package eth

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/stretchr/testify/require"
)

func TestBlobToDataEmpty(t *testing.T) {
	var b Blob
	data, err := b.ToData()
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestBlobToDataSmall(t *testing.T) {
	var b Blob
	// 3-byte big-endian length, then the payload in the tail of field element 0.
	b[4] = 5
	copy(b[5:], "hello")
	data, err := b.ToData()
	require.NoError(t, err)
	require.Equal(t, Data("hello"), data)
}

func TestBlobToDataBadVersion(t *testing.T) {
	var b Blob
	b[VersionOffset] = 1
	_, err := b.ToData()
	require.ErrorContains(t, err, "invalid encoding version")
}

func TestBlobToDataLengthTooLarge(t *testing.T) {
	var b Blob
	b[2] = 0xff
	_, err := b.ToData()
	require.ErrorContains(t, err, "invalid length for blob")
}

func TestBlobToDataInvalidFieldElement(t *testing.T) {
	var b Blob
	b[32] = 0b1100_0000
	_, err := b.ToData()
	require.ErrorContains(t, err, "invalid field element")
}

func TestBlobToDataNonZeroPastLength(t *testing.T) {
	var b Blob
	b[5] = 1 // declared length is 0, so this byte must be zero
	_, err := b.ToData()
	require.ErrorContains(t, err, "output should be empty")
}

func TestBlobToDataNonZeroTail(t *testing.T) {
	var b Blob
	b[200] = 1 // past the field elements the declared length needs
	_, err := b.ToData()
	require.ErrorContains(t, err, "blob should be empty")
}

func TestKZGToVersionedHash(t *testing.T) {
	commitment := kzg4844.Commitment{0x01, 0x02}
	hash := KZGToVersionedHash(commitment)
	require.Equal(t, KZGToHashPrefix, hash[0])
	expected := sha256.Sum256(commitment[:])
	require.Equal(t, expected[1:], hash[1:])
}

func TestUint64String(t *testing.T) {
	out, err := json.Marshal(Uint64String(12345))
	require.NoError(t, err)
	require.Equal(t, `"12345"`, string(out))

	var v Uint64String
	require.NoError(t, json.Unmarshal([]byte(`"67890"`), &v))
	require.Equal(t, Uint64String(67890), v)

	require.Error(t, json.Unmarshal([]byte(`"0x10"`), &v))
}
