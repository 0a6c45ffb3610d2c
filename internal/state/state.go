// Package state derives and stores per-block account balances: exactly one
// snapshot per known, state-validated block, keyed by that block's hash.
package state

import (
	"errors"
	"sync"

	"github.com/unisalento/solechain/internal/types"
)

// Account is one address's ledger entry.
type Account struct {
	Nonce   uint32
	Balance uint32
}

// Snapshot is the address -> account map associated with one specific
// block. Accounts absent from the map are implicitly (0, 0).
type Snapshot map[types.Address]Account

func (s Snapshot) clone() Snapshot {
	cp := make(Snapshot, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// Get returns addr's account, defaulting to the zero value when absent.
func (s Snapshot) Get(addr types.Address) Account {
	return s[addr]
}

var (
	ErrBadSignature    = errors.New("state: signature does not verify")
	ErrAddressMismatch = errors.New("state: sender does not match the transaction's public key")
	ErrBadNonce        = errors.New("state: account_nonce does not follow sender's current nonce")
	ErrBadValue        = errors.New("state: value is zero or exceeds sender's balance")
	ErrBalanceOverflow = errors.New("state: receiver balance would overflow")
)

// Derive builds a child block's snapshot from its parent's snapshot by
// applying txs in order, per the validation rules of §4.5. On the first
// failing transaction it returns an error and a nil snapshot — the caller
// must reject the whole block and record no snapshot for it.
func Derive(parent Snapshot, txs []types.SignedTransaction) (Snapshot, error) {
	next := parent.clone()

	for _, signed := range txs {
		tx := signed.Transaction

		if !types.Verify(tx, signed.PublicKey, signed.Signature) {
			return nil, ErrBadSignature
		}
		if types.AddressFromPublicKey(signed.PublicKey) != tx.Sender {
			return nil, ErrAddressMismatch
		}

		sender := next.Get(tx.Sender)
		if tx.AccountNonce != sender.Nonce+1 {
			return nil, ErrBadNonce
		}
		if tx.Value < 1 || tx.Value > sender.Balance {
			return nil, ErrBadValue
		}

		next[tx.Sender] = Account{Nonce: sender.Nonce + 1, Balance: sender.Balance - tx.Value}

		receiver := next.Get(tx.Receiver)
		newBalance := receiver.Balance + tx.Value
		if newBalance < receiver.Balance {
			return nil, ErrBalanceOverflow
		}
		next[tx.Receiver] = Account{Nonce: receiver.Nonce, Balance: newBalance}
	}

	return next, nil
}

// Store keeps one Snapshot per known, state-validated block hash. Guarded
// by a single mutex, acquired after the blockchain store's per the lock
// order blockchain -> block_state -> mempool.
type Store struct {
	mu      sync.Mutex
	byBlock map[types.H256]Snapshot
}

func NewStore() *Store {
	return &Store{byBlock: make(map[types.H256]Snapshot)}
}

// SeedGenesis records the genesis block's snapshot: the hard-coded initial
// allocation of amount units to icoAddress at nonce 0.
func (st *Store) SeedGenesis(genesisHash types.H256, icoAddress types.Address, amount uint32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byBlock[genesisHash] = Snapshot{icoAddress: {Nonce: 0, Balance: amount}}
}

// Get returns the snapshot recorded for hash, if any.
func (st *Store) Get(hash types.H256) (Snapshot, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byBlock[hash]
	return s, ok
}

// Insert records snapshot as the state for hash, once derivation has
// succeeded for it.
func (st *Store) Insert(hash types.H256, snapshot Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byBlock[hash] = snapshot
}
