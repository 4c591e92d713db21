package merkle

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
)

func hashForTest(b byte) Hash {
	return HashData([]byte{b})
}

func TestFixedTreeRoot(t *testing.T) {
	leaves := []Hash{hashForTest(1), hashForTest(2), hashForTest(3)}

	tree, err := NewFixedTree(leaves, 16)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}

	// A tree with no occupied leaves has the fully-default root for its
	// depth.
	emptyTree, err := NewFixedTree(nil, 16)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}
	if emptyTree.Root() != defaultNodeAt(16) {
		t.Fatalf("empty tree root is %s, want the depth-16 default node",
			emptyTree.Root())
	}
	if tree.Root() == emptyTree.Root() {
		t.Fatalf("occupied tree produced the empty root %s", tree.Root())
	}

	// Changing any leaf must change the root.
	mutated := []Hash{hashForTest(1), hashForTest(2), hashForTest(4)}
	mutatedTree, err := NewFixedTree(mutated, 16)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}
	if tree.Root() == mutatedTree.Root() {
		t.Fatalf("mutated leaf set produced the same root %s", tree.Root())
	}
}

func TestFixedTreeSingleLeaf(t *testing.T) {
	leaf := hashForTest(7)
	tree, err := NewFixedTree([]Hash{leaf}, 16)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}

	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("Proof: %s", err)
	}
	if !VerifyProof(tree.Root(), 16, 0, leaf, proof) {
		t.Fatalf("proof for the only leaf did not verify")
	}
}

func TestFixedTreeProofRoundTrip(t *testing.T) {
	const depth = 16
	leaves := make([]Hash, 9)
	for i := range leaves {
		leaves[i] = hashForTest(byte(i))
	}
	tree, err := NewFixedTree(leaves, depth)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}

	for i, leaf := range leaves {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("Proof(%d): %s", i, err)
		}
		if len(proof) != depth {
			t.Fatalf("Proof(%d) has %d nodes, want %d", i, len(proof), depth)
		}
		if !VerifyProof(tree.Root(), depth, i, leaf, proof) {
			t.Fatalf("proof for leaf %d did not verify", i)
		}

		// The same proof must not verify for any other index or leaf.
		if VerifyProof(tree.Root(), depth, i, hashForTest(0xff), proof) {
			t.Fatalf("proof for leaf %d verified a different leaf", i)
		}
		otherIndex := (i + 1) % len(leaves)
		if VerifyProof(tree.Root(), depth, otherIndex, leaf, proof) {
			t.Fatalf("proof for leaf %d verified at index %d", i, otherIndex)
		}
	}
}

func TestFixedTreeProofMutation(t *testing.T) {
	const depth = 16
	leaves := []Hash{hashForTest(1), hashForTest(2)}
	tree, err := NewFixedTree(leaves, depth)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("Proof: %s", err)
	}

	for node := 0; node < len(proof); node++ {
		mutated := make(Proof, len(proof))
		copy(mutated, proof)
		mutated[node][0] ^= 0x01
		if VerifyProof(tree.Root(), depth, 0, leaves[0], mutated) {
			t.Fatalf("proof with mutated node %d still verified", node)
		}
	}

	// A truncated proof must be rejected outright.
	if VerifyProof(tree.Root(), depth, 0, leaves[0], proof[:depth-1]) {
		t.Fatalf("truncated proof verified")
	}
}

func TestFixedTreeCapacity(t *testing.T) {
	leaves := make([]Hash, 5)
	_, err := NewFixedTree(leaves, 2)
	if err == nil {
		t.Fatalf("NewFixedTree over capacity did not error")
	}
	if !errors.Is(err, ruleerrors.ErrCapacityExceeded) {
		t.Fatalf("NewFixedTree over capacity returned %s, want ErrCapacityExceeded", err)
	}

	// 4 leaves exactly fill a depth-2 tree.
	if _, err := NewFixedTree(leaves[:4], 2); err != nil {
		t.Fatalf("NewFixedTree at exact capacity: %s", err)
	}
}

func TestProofSerializeRoundTrip(t *testing.T) {
	const depth = 16
	leaves := []Hash{hashForTest(1), hashForTest(2), hashForTest(3)}
	tree, err := NewFixedTree(leaves, depth)
	if err != nil {
		t.Fatalf("NewFixedTree: %s", err)
	}
	proof, err := tree.Proof(2)
	if err != nil {
		t.Fatalf("Proof: %s", err)
	}

	serialized := proof.Serialize()
	if len(serialized) != depth*HashSize {
		t.Fatalf("serialized proof is %d bytes, want %d", len(serialized), depth*HashSize)
	}
	deserialized, err := DeserializeProof(serialized, depth)
	if err != nil {
		t.Fatalf("DeserializeProof: %s", err)
	}
	if !bytes.Equal(deserialized.Serialize(), serialized) {
		t.Fatalf("proof changed across a serialize round trip")
	}

	if _, err := DeserializeProof(serialized[:len(serialized)-1], depth); err == nil {
		t.Fatalf("DeserializeProof accepted a truncated proof")
	}
}
