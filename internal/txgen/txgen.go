// Package txgen periodically drafts a signed payment from the node's own
// account to a rotating counterparty and emits it on a channel.
package txgen

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/unisalento/solechain/internal/chainstore"
	"github.com/unisalento/solechain/internal/state"
	"github.com/unisalento/solechain/internal/types"
)

type signalKind int

const (
	signalStart signalKind = iota
	signalUpdate
	signalExit
)

type controlSignal struct {
	kind  signalKind
	theta uint64
}

type operatingState int

const (
	statePaused operatingState = iota
	stateRunning
	stateShuttingDown
)

// Handle lets other components drive the generator's control signals.
type Handle struct {
	controlChan chan<- controlSignal
}

// Start resumes or begins generation with a per-iteration sleep of
// 5000*theta microseconds.
func (h Handle) Start(theta uint64) {
	h.controlChan <- controlSignal{kind: signalStart, theta: theta}
}

// Update is a reserved hook, a no-op today.
func (h Handle) Update() { h.controlChan <- controlSignal{kind: signalUpdate} }

// Exit asks the generator loop to terminate after its current iteration.
func (h Handle) Exit() { h.controlChan <- controlSignal{kind: signalExit} }

// Context is the generator's private loop state.
type Context struct {
	controlChan    chan controlSignal
	operatingState operatingState
	lambdaMicros   uint64
	finishedTxChan chan types.SignedTransaction

	blockchain    *chainstore.Blockchain
	stateStore    *state.Store
	key           types.KeyPair
	receiverAddrs []types.Address
	nextReceiver  int
	log           *zap.SugaredLogger
}

// New wires a generator for key's account against the shared blockchain
// and state store, rotating payments across receiverAddrs. It starts
// Paused and does not insert the transactions it drafts into any mempool
// itself — that is the job of whatever drains the returned channel.
func New(bc *chainstore.Blockchain, st *state.Store, key types.KeyPair, receiverAddrs []types.Address, log *zap.SugaredLogger) (*Context, Handle, <-chan types.SignedTransaction) {
	controlChan := make(chan controlSignal)
	finishedTxChan := make(chan types.SignedTransaction)

	ctx := &Context{
		controlChan:    controlChan,
		operatingState: statePaused,
		finishedTxChan: finishedTxChan,
		blockchain:     bc,
		stateStore:     st,
		key:            key,
		receiverAddrs:  receiverAddrs,
		log:            log,
	}
	return ctx, Handle{controlChan: controlChan}, finishedTxChan
}

// Start launches the generator loop on its own goroutine.
func (c *Context) Start() {
	go c.loop()
	c.log.Info("transaction generator initialized into paused mode")
}

func (c *Context) loop() {
	for {
		switch c.operatingState {
		case statePaused:
			sig, ok := <-c.controlChan
			if !ok {
				c.log.Panic("transaction generator control channel disconnected")
			}
			c.handleSignal(sig)
			continue
		case stateShuttingDown:
			return
		default:
			select {
			case sig, ok := <-c.controlChan:
				if !ok {
					c.log.Panic("transaction generator control channel disconnected")
				}
				c.handleSignal(sig)
			default:
			}
		}
		if c.operatingState == stateShuttingDown {
			return
		}

		c.generateOnce()

		if c.operatingState == stateRunning && c.lambdaMicros != 0 {
			time.Sleep(time.Duration(c.lambdaMicros) * time.Microsecond)
		}
	}
}

func (c *Context) handleSignal(sig controlSignal) {
	switch sig.kind {
	case signalExit:
		c.log.Info("transaction generator shutting down")
		c.operatingState = stateShuttingDown
	case signalStart:
		c.log.Infof("transaction generator starting in continuous mode with theta %d", sig.theta)
		c.operatingState = stateRunning
		c.lambdaMicros = 5000 * sig.theta
	case signalUpdate:
		// reserved hook, see design notes — intentionally a no-op.
	}
}

// generateOnce drafts one payment from the tip's account-state snapshot.
// It is a no-op when the account has no known snapshot or a zero balance;
// the draw may later be invalidated by the time it is mined (gossip-time
// validation ignores balance), which is acceptable per §9.
func (c *Context) generateOnce() {
	tip := c.blockchain.Tip()
	snapshot, ok := c.stateStore.Get(tip)
	if !ok {
		return
	}

	sender := snapshot.Get(c.key.Address)
	if sender.Balance == 0 {
		return
	}

	half := sender.Balance / 2
	if half == 0 {
		half = 1
	}
	value := uint32(1)
	if half > 1 {
		value = 1 + rand.Uint32N(half-1)
	}

	receiver := c.receiverAddrs[c.nextReceiver]
	c.nextReceiver = (c.nextReceiver + 1) % len(c.receiverAddrs)

	tx := types.Transaction{
		Sender:       c.key.Address,
		AccountNonce: sender.Nonce + 1,
		Receiver:     receiver,
		Value:        value,
	}
	signed := types.SignTransaction(tx, c.key)
	// A control signal that arrives while the draft waits to be taken is
	// handled at once and the unsent draft is dropped, so Exit is never
	// stuck behind a consumer that has stopped reading.
	select {
	case c.finishedTxChan <- signed:
	case sig := <-c.controlChan:
		c.handleSignal(sig)
	}
}
