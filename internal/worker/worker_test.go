package worker

import (
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/unisalento/solechain/internal/chainstore"
	"github.com/unisalento/solechain/internal/mempool"
	"github.com/unisalento/solechain/internal/merkletree"
	"github.com/unisalento/solechain/internal/network"
	"github.com/unisalento/solechain/internal/state"
	"github.com/unisalento/solechain/internal/types"
	"github.com/unisalento/solechain/internal/wire"
)

// fakeNetwork records sends/broadcasts instead of touching a real host.
type fakeNetwork struct {
	mu         sync.Mutex
	sent       []wire.Message
	broadcasts []wire.Message
}

func (f *fakeNetwork) Send(to peer.ID, msg wire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeNetwork) Broadcast(msg wire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakeNetwork) BroadcastExcept(msg wire.Message, except peer.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakeNetwork) Inbound() <-chan network.Inbound {
	return make(chan network.Inbound)
}

func (f *fakeNetwork) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func newTestPool() (*Pool, *fakeNetwork, *chainstore.Blockchain, *state.Store, *mempool.Mempool) {
	bc := chainstore.New()
	st := state.NewStore()
	mp := mempool.New()
	net := &fakeNetwork{}
	pool := New(bc, st, mp, net, zap.NewNop().Sugar())
	return pool, net, bc, st, mp
}

// childBlock builds a block carrying txs on parent, then searches nonces
// upward from nonce until the block meets chainstore.Difficulty, so it
// passes AcceptBlock's proof-of-work check.
func childBlock(parent types.H256, nonce uint32, txs []types.SignedTransaction) types.Block {
	leaves := make([]types.Hashable, len(txs))
	for i, tx := range txs {
		leaves[i] = tx
	}
	root := merkletree.New(leaves).Root()
	return solve(types.Block{
		Header: types.Header{
			Parent:     parent,
			Nonce:      nonce,
			Difficulty: chainstore.Difficulty,
			Timestamp:  0,
			MerkleRoot: root,
		},
		Content: types.Content{Data: txs},
	})
}

// solve bumps block's nonce until its hash is at most chainstore.Difficulty.
func solve(block types.Block) types.Block {
	for !block.Hash().LessOrEqual(chainstore.Difficulty) {
		block.Header.Nonce++
	}
	return block
}

func kp(seedByte byte) types.KeyPair {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	return types.NewKeyPairFromSeed(seed)
}

func TestAcceptBlockRejectsBadPoW(t *testing.T) {
	pool, _, bc, _, _ := newTestPool()
	block := childBlock(bc.Tip(), 1, nil)
	block.Header.Difficulty = types.H256{0} // every byte zero: nothing can satisfy it

	pool.AcceptBlock(block, "")
	if bc.Has(block.Hash()) {
		t.Fatal("expected block failing PoW to be dropped")
	}
}

func TestAcceptBlockRejectsBadMerkleRoot(t *testing.T) {
	pool, _, bc, _, _ := newTestPool()
	block := childBlock(bc.Tip(), 1, nil)
	block.Header.MerkleRoot = types.H256{0xff}
	block = solve(block) // still passes PoW, so only the merkle check can reject it

	pool.AcceptBlock(block, "")
	if bc.Has(block.Hash()) {
		t.Fatal("expected block with mismatched merkle root to be dropped")
	}
}

func TestAcceptBlockRecordsStateAndBroadcasts(t *testing.T) {
	pool, net, bc, st, mp := newTestPool()
	a := kp(1)
	st.SeedGenesis(bc.Tip(), a.Address, 1000)

	tx := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: kp(2).Address, Value: 100}, a)
	mp.Insert(tx)

	block := childBlock(bc.Tip(), 1, []types.SignedTransaction{tx})
	pool.AcceptBlock(block, "")

	if !bc.Has(block.Hash()) {
		t.Fatal("expected valid block to be inserted")
	}
	snap, ok := st.Get(block.Hash())
	if !ok {
		t.Fatal("expected a state snapshot to be recorded for the new block")
	}
	if got := snap.Get(a.Address); got != (state.Account{Nonce: 1, Balance: 900}) {
		t.Fatalf("sender account = %+v", got)
	}
	if mp.Has(tx.Hash()) {
		t.Fatal("expected mined transaction to be removed from the mempool")
	}
	if net.broadcastCount() == 0 {
		t.Fatal("expected NewBlockHashes to be broadcast on successful insert")
	}
}

func TestAcceptBlockRejectsInvalidStateTransition(t *testing.T) {
	pool, _, bc, st, _ := newTestPool()
	a := kp(1)
	st.SeedGenesis(bc.Tip(), a.Address, 100)

	// nonce should be 1, not 5: invalid.
	tx := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 5, Receiver: kp(2).Address, Value: 10}, a)
	block := childBlock(bc.Tip(), 1, []types.SignedTransaction{tx})

	pool.AcceptBlock(block, "")
	if bc.Has(block.Hash()) {
		t.Fatal("expected block with invalid state transition to be rejected")
	}
	if _, ok := st.Get(block.Hash()); ok {
		t.Fatal("expected no state snapshot for a rejected block")
	}
}

// TestOrphanReprocessing delivers a child before its parent, then delivers
// the parent, and checks the child gets accepted once its parent is known.
func TestOrphanReprocessing(t *testing.T) {
	pool, _, bc, st, _ := newTestPool()
	genesis := bc.Tip()
	a := kp(1)
	st.SeedGenesis(genesis, a.Address, 100)

	parent := childBlock(genesis, 1, nil)
	child := childBlock(parent.Hash(), 2, nil)

	// Deliver the child first: its parent is unknown, so it is buffered.
	pool.AcceptBlock(child, "")
	if bc.Has(child.Hash()) {
		t.Fatal("expected orphan child not to be inserted before its parent arrives")
	}

	// Now deliver the parent: this should also pull the buffered child in.
	pool.AcceptBlock(parent, "")
	if !bc.Has(parent.Hash()) {
		t.Fatal("expected parent to be inserted")
	}
	if !bc.Has(child.Hash()) {
		t.Fatal("expected orphaned child to be inserted once its parent became known")
	}
}

func TestAcceptBlockIsIdempotentForKnownBlocks(t *testing.T) {
	pool, net, bc, st, _ := newTestPool()
	st.SeedGenesis(bc.Tip(), kp(1).Address, 100)
	block := childBlock(bc.Tip(), 1, nil)

	pool.AcceptBlock(block, "")
	if !bc.Has(block.Hash()) {
		t.Fatal("expected the first delivery to insert the block")
	}
	firstCount := net.broadcastCount()
	pool.AcceptBlock(block, "")

	if net.broadcastCount() != firstCount {
		t.Fatal("expected re-delivering an already-known block to be a no-op")
	}
}

func TestAcceptTransactionRejectsSenderMismatch(t *testing.T) {
	pool, _, _, _, mp := newTestPool()
	sender := kp(1)
	mallory := kp(2)

	tx := types.Transaction{Sender: sender.Address, AccountNonce: 1, Receiver: kp(3).Address, Value: 1}
	signed := types.SignedTransaction{
		Transaction: tx,
		Signature:   types.Sign(tx, mallory.PrivateKey),
		PublicKey:   mallory.PublicKey,
	}

	pool.AcceptTransaction(signed, "")
	if mp.Has(signed.Hash()) {
		t.Fatal("expected transaction with mismatched sender/public-key to be dropped")
	}
}

func TestAcceptTransactionInsertsAndBroadcasts(t *testing.T) {
	pool, net, _, _, mp := newTestPool()
	sender := kp(1)
	tx := types.SignTransaction(types.Transaction{Sender: sender.Address, AccountNonce: 1, Receiver: kp(2).Address, Value: 1}, sender)

	pool.AcceptTransaction(tx, "")
	if !mp.Has(tx.Hash()) {
		t.Fatal("expected valid transaction to be inserted into the mempool")
	}
	if net.broadcastCount() == 0 {
		t.Fatal("expected NewTransactionHashes to be broadcast")
	}
}
