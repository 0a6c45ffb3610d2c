// Package chainstore holds the block graph: every known block indexed by
// hash, its height, and the current tip under the longest-chain rule.
package chainstore

import (
	"sync"

	"github.com/unisalento/solechain/internal/merkletree"
	"github.com/unisalento/solechain/internal/types"
)

// Difficulty is the fixed 32-byte proof-of-work target every block must
// meet: block hash, as a big-endian integer, must be <= Difficulty.
var Difficulty = types.H256{
	0, 0, 64, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
}

// entry pairs a stored block with its height in the graph.
type entry struct {
	block  types.Block
	height uint32
}

// Blockchain is the block graph: every block ever inserted, keyed by hash,
// plus the current tip and its height. Guarded by a single mutex per the
// lock order blockchain -> block_state -> mempool; callers that also touch
// block-state or mempool must acquire those after this one.
type Blockchain struct {
	mu       sync.Mutex
	blockMap map[types.H256]entry
	tip      types.H256
	height   uint32
}

// New builds a blockchain containing only the genesis block: empty content,
// zero nonce, zero timestamp, the fixed Difficulty, parented on the zero
// hash.
func New() *Blockchain {
	genesisContent := types.Content{Data: nil}
	genesisHeader := types.Header{
		Parent:     types.ZeroHash,
		Nonce:      0,
		Difficulty: Difficulty,
		Timestamp:  0,
		MerkleRoot: merkletree.New(nil).Root(),
	}
	genesis := types.Block{Header: genesisHeader, Content: genesisContent}
	genesisHash := genesis.Hash()

	return &Blockchain{
		blockMap: map[types.H256]entry{
			genesisHash: {block: genesis, height: 0},
		},
		tip:    genesisHash,
		height: 0,
	}
}

// Get returns the block stored under hash, if known.
func (bc *Blockchain) Get(hash types.H256) (types.Block, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	e, ok := bc.blockMap[hash]
	if !ok {
		return types.Block{}, false
	}
	return e.block, true
}

// Has reports whether hash is a known block.
func (bc *Blockchain) Has(hash types.H256) bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	_, ok := bc.blockMap[hash]
	return ok
}

// Height returns the height of a known block.
func (bc *Blockchain) Height(hash types.H256) (uint32, bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	e, ok := bc.blockMap[hash]
	if !ok {
		return 0, false
	}
	return e.height, true
}

// Insert adds block to the graph. The caller must ensure the block's parent
// is already known; inserting a block whose parent is unknown is a
// programmer error here — orphan buffering happens one layer up, in the
// gossip worker.
//
// The tip advances to block's hash iff its height is strictly greater than
// the current tip's height. Ties favour the incumbent tip: an equal-height
// sibling is stored in the graph but never becomes tip.
func (bc *Blockchain) Insert(block types.Block) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	hash := block.Hash()
	parentEntry, ok := bc.blockMap[block.Header.Parent]
	if !ok {
		panic("chainstore: insert called with unknown parent")
	}

	newHeight := parentEntry.height + 1
	bc.blockMap[hash] = entry{block: block, height: newHeight}

	if newHeight > bc.height {
		bc.height = newHeight
		bc.tip = hash
	}
}

// Tip returns the hash of the current chain head.
func (bc *Blockchain) Tip() types.H256 {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.tip
}

// AllBlocksInLongestChain walks parents from the tip to genesis and returns
// them in genesis-to-tip order.
func (bc *Blockchain) AllBlocksInLongestChain() []types.H256 {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	chain := []types.H256{bc.tip}
	parent := bc.blockMap[bc.tip].block.Header.Parent
	for !parent.IsZero() {
		chain = append(chain, parent)
		parent = bc.blockMap[parent].block.Header.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
