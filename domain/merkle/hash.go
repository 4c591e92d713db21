package merkle

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// HashSize is the size of a Hash in bytes.
const HashSize = 32

// Hash is a keccak-256 digest. It is the unit the commitment layer
// operates on: transaction leaves, internal tree nodes, and block roots
// are all Hashes.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the byte array.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// SetBytes sets the bytes which represent the hash. An error is returned if
// the number of bytes passed in is not HashSize.
func (h *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return errors.Errorf("invalid hash length of %d, want %d",
			len(newHash), HashSize)
	}
	copy(h[:], newHash)
	return nil
}

// HashData returns the keccak-256 digest of the given data.
func HashData(data []byte) Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// combineHashes hashes the concatenation of left and right. It is the node
// combine function for every level of the fixed tree.
func combineHashes(left, right Hash) Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(left[:])
	hasher.Write(right[:])

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
