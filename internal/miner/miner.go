// Package miner implements the proof-of-work loop: assemble a candidate
// block from the chain tip and mempool, race a nonce against the fixed
// difficulty target, and emit solved blocks on a channel.
package miner

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/unisalento/solechain/internal/chainstore"
	"github.com/unisalento/solechain/internal/mempool"
	"github.com/unisalento/solechain/internal/merkletree"
	"github.com/unisalento/solechain/internal/types"
)

// blockSizeBudget is the maximum serialized size, in bytes, of the signed
// transactions a candidate block may carry. Selection is first-fit over a
// mempool snapshot, not a knapsack.
const blockSizeBudget = 4000

type signalKind int

const (
	signalStart signalKind = iota
	signalUpdate
	signalExit
)

type controlSignal struct {
	kind   signalKind
	lambda uint64
}

type operatingState int

const (
	statePaused operatingState = iota
	stateRunning
	stateShuttingDown
)

// Handle lets other components drive the miner's control signals.
type Handle struct {
	controlChan chan<- controlSignal
}

// Start resumes or begins mining with a per-iteration sleep of lambda
// microseconds; lambda == 0 means spin without sleeping.
func (h Handle) Start(lambda uint64) { h.controlChan <- controlSignal{kind: signalStart, lambda: lambda} }

// Update is a reserved hook: a no-op today in both Paused and Running,
// never rejected or panicked on.
func (h Handle) Update() { h.controlChan <- controlSignal{kind: signalUpdate} }

// Exit asks the miner loop to terminate after its current iteration.
func (h Handle) Exit() { h.controlChan <- controlSignal{kind: signalExit} }

// Context is the miner's private loop state.
type Context struct {
	controlChan       chan controlSignal
	operatingState    operatingState
	lambda            uint64
	finishedBlockChan chan types.Block

	blockchain *chainstore.Blockchain
	mempool    *mempool.Mempool
	log        *zap.SugaredLogger
}

// New wires a miner against the shared blockchain and mempool, returning
// its control handle and the channel solved blocks arrive on. The miner
// starts Paused; it does not insert blocks into the blockchain or derive
// state itself — that is the job of whatever drains finishedBlockChan
// (ordinarily internal/worker, which also handles gossip delivery).
func New(bc *chainstore.Blockchain, mp *mempool.Mempool, log *zap.SugaredLogger) (*Context, Handle, <-chan types.Block) {
	controlChan := make(chan controlSignal)
	finishedBlockChan := make(chan types.Block)

	ctx := &Context{
		controlChan:       controlChan,
		operatingState:    statePaused,
		finishedBlockChan: finishedBlockChan,
		blockchain:        bc,
		mempool:           mp,
		log:               log,
	}
	return ctx, Handle{controlChan: controlChan}, finishedBlockChan
}

// Start launches the miner loop on its own goroutine.
func (c *Context) Start() {
	go c.loop()
	c.log.Info("miner initialized into paused mode")
}

func (c *Context) loop() {
	for {
		switch c.operatingState {
		case statePaused:
			sig, ok := <-c.controlChan
			if !ok {
				c.log.Panic("miner control channel disconnected")
			}
			c.handleSignal(sig)
			continue
		case stateShuttingDown:
			return
		default:
			select {
			case sig, ok := <-c.controlChan:
				if !ok {
					c.log.Panic("miner control channel disconnected")
				}
				c.handleSignal(sig)
			default:
			}
		}
		if c.operatingState == stateShuttingDown {
			return
		}

		c.mineOnce()

		if c.operatingState == stateRunning && c.lambda != 0 {
			time.Sleep(time.Duration(c.lambda) * time.Microsecond)
		}
	}
}

func (c *Context) handleSignal(sig controlSignal) {
	switch sig.kind {
	case signalExit:
		c.log.Info("miner shutting down")
		c.operatingState = stateShuttingDown
	case signalStart:
		c.log.Infof("miner starting in continuous mode with lambda %d", sig.lambda)
		c.operatingState = stateRunning
		c.lambda = sig.lambda
	case signalUpdate:
		// reserved hook, see design notes — intentionally a no-op.
	}
}

// mineOnce runs a single iteration: select candidate transactions, build
// and hash a candidate block, and publish it if it meets the difficulty
// target.
func (c *Context) mineOnce() {
	parent := c.blockchain.Tip()
	timestamp := uint64(time.Now().UnixMicro())
	difficulty := chainstore.Difficulty

	selected := c.selectTransactions()

	leaves := make([]types.Hashable, len(selected))
	for i, tx := range selected {
		leaves[i] = tx
	}
	tree := merkletree.New(leaves)

	header := types.Header{
		Parent:     parent,
		Nonce:      rand.Uint32(),
		Difficulty: difficulty,
		Timestamp:  timestamp,
		MerkleRoot: tree.Root(),
	}
	block := types.Block{Header: header, Content: types.Content{Data: selected}}

	if !block.Hash().LessOrEqual(difficulty) {
		return
	}

	for _, tx := range selected {
		c.mempool.Remove(tx.Hash())
	}
	c.finishedBlockChan <- block
}

// selectTransactions takes a mempool snapshot and first-fits transactions
// into blockSizeBudget bytes of serialized size.
func (c *Context) selectTransactions() []types.SignedTransaction {
	snapshot := c.mempool.Snapshot()

	selected := make([]types.SignedTransaction, 0, len(snapshot))
	size := 0
	for _, tx := range snapshot {
		txSize := len(tx.Serialize())
		if size+txSize > blockSizeBudget {
			break
		}
		size += txSize
		selected = append(selected, tx)
	}
	return selected
}
