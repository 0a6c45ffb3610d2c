// Package merkletree builds Merkle trees over ordered leaf lists and
// produces/verifies inclusion proofs, used as the block-content commitment.
package merkletree

import (
	"crypto/sha256"

	"github.com/unisalento/solechain/internal/types"
)

// Tree is a flattened, bottom-up Merkle tree: nodes holds every layer
// concatenated in build order (children before parents), so a proof walk
// only needs a child-index -> parent-index map instead of a pointer tree.
type Tree struct {
	nodes     []types.H256
	treeMap   map[int]int
	rootIndex int
	leafCount int
}

// New builds a Merkle tree from data's hashes. An odd-sized layer is
// padded by duplicating its last element. The leaf layer is always padded,
// a single leaf included: a one-leaf tree's root is SHA-256(leaf ∥ leaf),
// not the leaf hash itself, and its Proof(0) has one hop. Above the leaves,
// the single-node root layer is not padded.
func New(data []types.Hashable) *Tree {
	if len(data) == 0 {
		return &Tree{}
	}

	nodes := make([]types.H256, 0, 2*len(data))
	for _, d := range data {
		nodes = append(nodes, d.Hash())
	}
	leafCount := len(nodes)

	if len(nodes)%2 == 1 {
		nodes = append(nodes, nodes[len(nodes)-1])
	}
	leafSize := len(nodes)

	layer := nodes
	for {
		next := reduceLayer(layer)
		if len(next)%2 == 1 && len(next) != 1 {
			next = append(next, next[len(next)-1])
		}
		nodes = append(nodes, next...)
		layer = next
		if len(next) == 1 {
			break
		}
	}

	treeMap, rootIndex := buildTreeMap(leafSize)
	return &Tree{
		nodes:     nodes,
		treeMap:   treeMap,
		rootIndex: rootIndex,
		leafCount: leafCount,
	}
}

// reduceLayer hashes consecutive pairs of an even-sized layer into the next
// layer up.
func reduceLayer(layer []types.H256) []types.H256 {
	next := make([]types.H256, 0, len(layer)/2)
	for i := 0; i < len(layer); i += 2 {
		next = append(next, hashPair(layer[i], layer[i+1]))
	}
	return next
}

func hashPair(left, right types.H256) types.H256 {
	var buf [64]byte
	copy(buf[:32], left.Bytes())
	copy(buf[32:], right.Bytes())
	return types.H256(sha256.Sum256(buf[:]))
}

// buildTreeMap maps every node index in a leafSize-leaved tree (leafSize
// already padded to even) to its parent's index, and returns the root's
// index. It mirrors the layer-by-layer construction in New without
// re-hashing anything.
func buildTreeMap(leafSize int) (map[int]int, int) {
	m := make(map[int]int)
	runningTotal := leafSize
	nodesInLayer := leafSize
	parent := leafSize
	node := 0

	for nodesInLayer != 1 {
		for node != runningTotal {
			m[node] = parent
			m[node+1] = parent
			node += 2
			parent++
			if node == runningTotal && (nodesInLayer/2)%2 == 1 {
				parent++
			}
		}
		nodesInLayer /= 2
		if nodesInLayer%2 == 1 && nodesInLayer != 1 {
			nodesInLayer++
		}
		runningTotal += nodesInLayer
	}

	return m, runningTotal - 1
}

// Root returns the tree's root hash, or the zero hash for an empty tree.
func (t *Tree) Root() types.H256 {
	if len(t.nodes) == 0 {
		return types.ZeroHash
	}
	return t.nodes[len(t.nodes)-1]
}

// Proof returns the sibling-hash path for leaf index i, climbing from the
// leaf to the root. An out-of-range index yields an empty proof.
func (t *Tree) Proof(index int) []types.H256 {
	var proof []types.H256
	if index < 0 || index >= t.leafCount {
		return proof
	}

	proof = append(proof, t.sibling(index))
	next := t.treeMap[index]
	for next != t.rootIndex {
		proof = append(proof, t.sibling(next))
		next = t.treeMap[next]
	}
	return proof
}

func (t *Tree) sibling(index int) types.H256 {
	if index%2 == 0 {
		return t.nodes[index+1]
	}
	return t.nodes[index-1]
}

// Verify reconstructs the root by folding proof against datum starting at
// index, and accepts iff it matches root. index must be less than
// leafCount; an out-of-range index is always rejected.
func Verify(root, datum types.H256, proof []types.H256, index, leafCount int) bool {
	if index < 0 || index >= leafCount {
		return false
	}

	paddedLeafCount := leafCount
	if paddedLeafCount%2 == 1 {
		paddedLeafCount++
	}
	treeMap, _ := buildTreeMap(paddedLeafCount)

	current := datum
	idx := index
	for _, sibling := range proof {
		if idx%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		idx = treeMap[idx]
	}
	return current == root
}
