// Package worker is the gossip worker: a fixed-size pool of goroutines
// that drains the network handle's inbound channel and runs the
// inventory -> request -> deliver state machine for blocks and
// transactions, including orphan buffering and re-processing.
package worker

import (
	"sync"

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

const defaultWorkerCount = 4

// Network is the subset of *network.Handle the gossip worker needs — kept
// as an interface so the worker can be tested against a fake.
type Network interface {
	Send(to peer.ID, msg wire.Message)
	Broadcast(msg wire.Message)
	BroadcastExcept(msg wire.Message, except peer.ID)
	Inbound() <-chan network.Inbound
}

// Pool holds everything the gossip state machine needs: the three
// mutex-guarded shared stores, the network collaborator, and the orphan
// pool.
type Pool struct {
	blockchain *chainstore.Blockchain
	stateStore *state.Store
	mempool    *mempool.Mempool
	net        Network
	log        *zap.SugaredLogger

	orphanMu sync.Mutex
	orphans  map[types.H256][]orphanBlock // keyed by the missing parent hash

	// Optional observers, wired by cmd/solechain to feed the /events/ws
	// live feed. Neither affects consensus; both are fire-and-forget.
	OnBlockAccepted       func(types.Block)
	OnTransactionAccepted func(types.SignedTransaction)
}

// New wires a gossip worker pool against the node's shared stores and
// network handle.
func New(bc *chainstore.Blockchain, st *state.Store, mp *mempool.Mempool, net Network, log *zap.SugaredLogger) *Pool {
	return &Pool{
		blockchain: bc,
		stateStore: st,
		mempool:    mp,
		net:        net,
		log:        log,
		orphans:    make(map[types.H256][]orphanBlock),
	}
}

// orphanBlock remembers which peer a buffered block arrived from, so its
// eventual re-broadcast (once the missing parent resolves) still skips
// echoing back to that peer.
type orphanBlock struct {
	block types.Block
	from  peer.ID
}

// Start launches workerCount goroutines draining the network handle's
// inbound channel; workerCount <= 0 uses the spec default of 4.
func (p *Pool) Start(workerCount int) {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	for i := 0; i < workerCount; i++ {
		go p.loop()
	}
}

// ConsumeMinedBlocks drains the miner's output channel, feeding every
// solved block through the same acceptance path as a gossip delivery —
// this is what lets BlockState be "mutated only by the gossip worker"
// (§3) even for the node's own blocks.
func (p *Pool) ConsumeMinedBlocks(blocks <-chan types.Block) {
	go func() {
		for b := range blocks {
			p.AcceptBlock(b, "")
		}
	}()
}

// ConsumeGeneratedTransactions drains the transaction generator's output
// channel the same way.
func (p *Pool) ConsumeGeneratedTransactions(txs <-chan types.SignedTransaction) {
	go func() {
		for tx := range txs {
			p.AcceptTransaction(tx, "")
		}
	}()
}

func (p *Pool) loop() {
	for in := range p.net.Inbound() {
		p.dispatch(in.Peer, in.Message)
	}
}

func (p *Pool) dispatch(from peer.ID, msg wire.Message) {
	switch m := msg.(type) {
	case wire.Ping:
		p.net.Send(from, wire.Pong{Text: m.Text})

	case wire.Pong:
		// liveness only, no chain effect.

	case wire.NewBlockHashes:
		var want []types.H256
		for _, h := range m.Hashes {
			if !p.blockchain.Has(h) {
				want = append(want, h)
			}
		}
		if len(want) > 0 {
			p.net.Send(from, wire.GetBlocks{Hashes: want})
		}

	case wire.GetBlocks:
		var have []types.Block
		for _, h := range m.Hashes {
			if b, ok := p.blockchain.Get(h); ok {
				have = append(have, b)
			}
		}
		if len(have) > 0 {
			p.net.Send(from, wire.Blocks{Blocks: have})
		}

	case wire.Blocks:
		for _, b := range m.Blocks {
			p.AcceptBlock(b, from)
		}

	case wire.NewTransactionHashes:
		var want []types.H256
		for _, h := range m.Hashes {
			if !p.mempool.Has(h) && !p.mempool.Seen(h) {
				want = append(want, h)
			}
		}
		if len(want) > 0 {
			p.net.Send(from, wire.GetTransactions{Hashes: want})
		}

	case wire.GetTransactions:
		var have []types.SignedTransaction
		for _, h := range m.Hashes {
			if tx, ok := p.mempool.Get(h); ok {
				have = append(have, tx)
			}
		}
		if len(have) > 0 {
			p.net.Send(from, wire.Transactions{Transactions: have})
		}

	case wire.Transactions:
		for _, tx := range m.Transactions {
			p.AcceptTransaction(tx, from)
		}
	}
}

// AcceptBlock runs a delivered (or self-mined) block through §4.7's
// validate/insert/orphan-reprocess pipeline. from is the peer the block
// arrived from, used to skip echoing the re-broadcast straight back to its
// sender; pass the zero peer.ID for self-mined blocks, which have no
// sender to skip.
func (p *Pool) AcceptBlock(block types.Block, from peer.ID) {
	hash := block.Hash()
	if p.blockchain.Has(hash) {
		return
	}

	if !hash.LessOrEqual(block.Header.Difficulty) || block.Header.Difficulty != chainstore.Difficulty {
		p.log.Warnw("dropping block failing PoW check", "block", hash)
		return
	}

	leaves := make([]types.Hashable, len(block.Content.Data))
	for i, tx := range block.Content.Data {
		leaves[i] = tx
	}
	if merkletree.New(leaves).Root() != block.Header.MerkleRoot {
		p.log.Warnw("dropping block with bad merkle root", "block", hash)
		return
	}

	parentHash := block.Header.Parent
	if !p.blockchain.Has(parentHash) {
		p.bufferOrphan(parentHash, block, from)
		p.net.Broadcast(wire.GetBlocks{Hashes: []types.H256{parentHash}})
		return
	}

	parentSnapshot, ok := p.stateStore.Get(parentHash)
	if !ok {
		p.log.Warnw("dropping block whose parent has no recorded state snapshot", "block", hash)
		return
	}

	childSnapshot, err := state.Derive(parentSnapshot, block.Content.Data)
	if err != nil {
		p.log.Warnw("dropping block failing state validation", "block", hash, "error", err)
		return
	}

	p.blockchain.Insert(block)
	p.stateStore.Insert(hash, childSnapshot)
	for _, tx := range block.Content.Data {
		p.mempool.Remove(tx.Hash())
	}

	p.net.BroadcastExcept(wire.NewBlockHashes{Hashes: []types.H256{hash}}, from)
	if p.OnBlockAccepted != nil {
		p.OnBlockAccepted(block)
	}
	p.reprocessOrphans(hash)
}

// AcceptTransaction checks a delivered (or self-generated) transaction's
// signature and sender/address binding, then mempool-inserts and
// broadcasts it. No balance/nonce check happens here — that is deferred
// entirely to mining time per §4.7. from is the peer the transaction
// arrived from (zero peer.ID for self-generated transactions), used the
// same way as in AcceptBlock to skip echoing the re-broadcast back to it.
func (p *Pool) AcceptTransaction(tx types.SignedTransaction, from peer.ID) {
	if !types.Verify(tx.Transaction, tx.PublicKey, tx.Signature) {
		p.log.Warnw("dropping transaction with invalid signature", "tx", tx.Hash())
		return
	}
	if types.AddressFromPublicKey(tx.PublicKey) != tx.Transaction.Sender {
		p.log.Warnw("dropping transaction whose sender does not match its public key", "tx", tx.Hash())
		return
	}

	p.mempool.Insert(tx)
	p.net.BroadcastExcept(wire.NewTransactionHashes{Hashes: []types.H256{tx.Hash()}}, from)
	if p.OnTransactionAccepted != nil {
		p.OnTransactionAccepted(tx)
	}
}

func (p *Pool) bufferOrphan(parentHash types.H256, block types.Block, from peer.ID) {
	p.orphanMu.Lock()
	defer p.orphanMu.Unlock()
	p.orphans[parentHash] = append(p.orphans[parentHash], orphanBlock{block: block, from: from})
}

// reprocessOrphans re-runs AcceptBlock for every orphan whose missing
// parent was just satisfied by newlyKnown, recursively chaining further
// if those re-inserts satisfy still other orphans.
func (p *Pool) reprocessOrphans(newlyKnown types.H256) {
	p.orphanMu.Lock()
	ready := p.orphans[newlyKnown]
	delete(p.orphans, newlyKnown)
	p.orphanMu.Unlock()

	for _, orphan := range ready {
		p.AcceptBlock(orphan.block, orphan.from)
	}
}
