package merkle

import (
	"github.com/pkg/errors"
)

// Proof is a membership proof for a single leaf: one sibling hash per tree
// level, ordered from the leaf level up.
type Proof []Hash

// Serialize returns the proof as the concatenation of its sibling hashes.
// This is the wire form carried alongside transactions in exit and
// challenge calls.
func (p Proof) Serialize() []byte {
	serialized := make([]byte, 0, len(p)*HashSize)
	for _, sibling := range p {
		serialized = append(serialized, sibling[:]...)
	}
	return serialized
}

// DeserializeProof parses a serialized proof for a tree of the given
// depth. The serialized length must be exactly depth*HashSize.
func DeserializeProof(serialized []byte, depth int) (Proof, error) {
	if len(serialized) != depth*HashSize {
		return nil, errors.Errorf("serialized proof is %d bytes, want %d "+
			"for depth %d", len(serialized), depth*HashSize, depth)
	}

	proof := make(Proof, depth)
	for i := 0; i < depth; i++ {
		copy(proof[i][:], serialized[i*HashSize:(i+1)*HashSize])
	}
	return proof, nil
}
