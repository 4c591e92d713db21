package merkle

import (
	"github.com/plasmalabs/rootchaind/domain/ruleerrors"
	"github.com/pkg/errors"
)

// FixedTree is a binary hash tree of a fixed depth. Leaves are padded on
// the right with a constant default leaf up to 2^depth entries, so two
// trees of the same depth built over the same leaves always produce the
// same root, regardless of how many leaves are actually occupied.
//
// A FixedTree is immutable once built.
type FixedTree struct {
	depth  int
	levels [][]Hash
}

// defaultLeaf is the padding value for unoccupied leaf slots: the
// keccak-256 digest of 32 zero bytes.
var defaultLeaf = HashData(make([]byte, HashSize))

// NewFixedTree builds a FixedTree of the given depth over the given leaf
// hashes. It returns ruleerrors.ErrCapacityExceeded if more than 2^depth
// leaves are passed.
//
// The build pads each level lazily with that level's default node rather
// than materializing all 2^depth default leaves, so building a tree over a
// sparse block is proportional to the number of occupied leaves.
func NewFixedTree(leaves []Hash, depth int) (*FixedTree, error) {
	if depth <= 0 {
		return nil, errors.Errorf("tree depth must be positive, got %d", depth)
	}
	capacity := 1 << uint(depth)
	if len(leaves) > capacity {
		return nil, errors.Wrapf(ruleerrors.ErrCapacityExceeded,
			"%d leaves do not fit in a tree of depth %d (capacity %d)",
			len(leaves), depth, capacity)
	}

	levels := make([][]Hash, depth+1)
	levels[0] = make([]Hash, len(leaves))
	copy(levels[0], leaves)

	defaultNode := defaultLeaf
	for level := 0; level < depth; level++ {
		current := levels[level]
		// Odd number of occupied nodes borrows the level's default
		// node as the right sibling.
		next := make([]Hash, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			right := defaultNode
			if i+1 < len(current) {
				right = current[i+1]
			}
			next[i/2] = combineHashes(current[i], right)
		}
		levels[level+1] = next
		defaultNode = combineHashes(defaultNode, defaultNode)
	}

	return &FixedTree{depth: depth, levels: levels}, nil
}

// Depth returns the depth the tree was built with.
func (t *FixedTree) Depth() int {
	return t.depth
}

// Root returns the root hash of the tree. For a tree with no occupied
// leaves this is the fully-default root of the tree's depth.
func (t *FixedTree) Root() Hash {
	if len(t.levels[t.depth]) == 0 {
		return defaultNodeAt(t.depth)
	}
	return t.levels[t.depth][0]
}

// Proof returns the membership proof for the leaf at the given index: the
// sequence of depth sibling hashes needed to recompute the root, ordered
// bottom-up. The index itself encodes the left/right direction at each
// level and is not part of the returned proof.
func (t *FixedTree) Proof(index int) (Proof, error) {
	if index < 0 || index >= 1<<uint(t.depth) {
		return nil, errors.Errorf("leaf index %d out of range for depth %d",
			index, t.depth)
	}

	proof := make(Proof, t.depth)
	nodeIndex := index
	for level := 0; level < t.depth; level++ {
		siblingIndex := nodeIndex ^ 1
		if siblingIndex < len(t.levels[level]) {
			proof[level] = t.levels[level][siblingIndex]
		} else {
			proof[level] = defaultNodeAt(level)
		}
		nodeIndex >>= 1
	}
	return proof, nil
}

// VerifyProof recomputes the root implied by the given leaf hash and proof
// and reports whether it matches the given root. The bit pattern of index
// selects, at each level, whether the running hash is the left or the
// right operand. Verification fails if the proof length does not equal
// depth exactly.
//
// VerifyProof is pure: it reads no state and is safe for concurrent use.
func VerifyProof(root Hash, depth int, index int, leaf Hash, proof Proof) bool {
	if len(proof) != depth {
		return false
	}
	if index < 0 || index >= 1<<uint(depth) {
		return false
	}

	computed := leaf
	nodeIndex := index
	for level := 0; level < depth; level++ {
		if nodeIndex&1 == 0 {
			computed = combineHashes(computed, proof[level])
		} else {
			computed = combineHashes(proof[level], computed)
		}
		nodeIndex >>= 1
	}
	return computed == root
}

// defaultNodeAt returns the hash of a fully-default subtree of the given
// height.
func defaultNodeAt(level int) Hash {
	node := defaultLeaf
	for i := 0; i < level; i++ {
		node = combineHashes(node, node)
	}
	return node
}
