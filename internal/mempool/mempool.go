// Package mempool holds pending signed transactions awaiting mining, with
// an append-only suppression set that keeps mined or otherwise-seen
// transactions from being re-accepted.
package mempool

import (
	"sync"

	"github.com/unisalento/solechain/internal/types"
)

// Mempool is guarded by a single mutex, acquired last per the lock order
// blockchain -> block_state -> mempool.
type Mempool struct {
	mu             sync.Mutex
	transactionMap map[types.H256]types.SignedTransaction
	transactionSet map[types.H256]struct{} // append-only; never shrinks
}

func New() *Mempool {
	return &Mempool{
		transactionMap: make(map[types.H256]types.SignedTransaction),
		transactionSet: make(map[types.H256]struct{}),
	}
}

// Insert adds t if its hash has never before been accepted. Once a hash has
// entered transactionSet it stays there for the life of the process, so a
// later Insert of the same hash is always a no-op — even after Remove.
func (m *Mempool) Insert(t types.SignedTransaction) {
	hash := t.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.transactionSet[hash]; seen {
		return
	}
	m.transactionSet[hash] = struct{}{}
	m.transactionMap[hash] = t
}

// Remove drops hash from the pending map only; the suppression set is
// never cleared.
func (m *Mempool) Remove(hash types.H256) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactionMap, hash)
}

// Has reports whether hash is currently pending.
func (m *Mempool) Has(hash types.H256) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.transactionMap[hash]
	return ok
}

// Seen reports whether hash has ever been accepted, pending or not.
func (m *Mempool) Seen(hash types.H256) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.transactionSet[hash]
	return ok
}

// Get returns the pending transaction for hash, if any.
func (m *Mempool) Get(hash types.H256) (types.SignedTransaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactionMap[hash]
	return t, ok
}

// Snapshot returns a point-in-time copy of the pending map, safe to iterate
// without holding the mempool lock — the miner selects from this copy so
// its critical section stays short.
func (m *Mempool) Snapshot() map[types.H256]types.SignedTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(map[types.H256]types.SignedTransaction, len(m.transactionMap))
	for k, v := range m.transactionMap {
		cp[k] = v
	}
	return cp
}

// Len returns the number of currently pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactionMap)
}
