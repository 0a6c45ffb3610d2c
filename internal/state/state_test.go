package state

import (
	"crypto/ed25519"
	"testing"

	"github.com/unisalento/solechain/internal/types"
)

func kp(seedByte byte) types.KeyPair {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	return types.NewKeyPairFromSeed(seed)
}

// TestScenarioF reproduces spec.md §8 scenario F.
func TestScenarioF(t *testing.T) {
	a := kp(1)
	b := kp(2)

	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 1_000_000}}

	tx := types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 500}
	signed := types.SignTransaction(tx, a)

	next, err := Derive(genesis, []types.SignedTransaction{signed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantA := Account{Nonce: 1, Balance: 999500}
	wantB := Account{Nonce: 0, Balance: 500}
	if got := next.Get(a.Address); got != wantA {
		t.Fatalf("A = %+v, want %+v", got, wantA)
	}
	if got := next.Get(b.Address); got != wantB {
		t.Fatalf("B = %+v, want %+v", got, wantB)
	}

	// Parent snapshot must be untouched.
	if got := genesis.Get(a.Address); got != (Account{Nonce: 0, Balance: 1_000_000}) {
		t.Fatalf("parent snapshot mutated: %+v", got)
	}
}

func TestDeriveRejectsBadSignature(t *testing.T) {
	a, b := kp(1), kp(2)
	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 100}}

	tx := types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 10}
	signed := types.SignTransaction(tx, a)
	signed.Signature[0] ^= 0xff

	if _, err := Derive(genesis, []types.SignedTransaction{signed}); err != ErrBadSignature {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestDeriveRejectsAddressMismatch(t *testing.T) {
	a, b, mallory := kp(1), kp(2), kp(3)
	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 100}}

	tx := types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 10}
	signed := types.SignedTransaction{
		Transaction: tx,
		Signature:   types.Sign(tx, mallory.PrivateKey),
		PublicKey:   mallory.PublicKey,
	}

	if _, err := Derive(genesis, []types.SignedTransaction{signed}); err != ErrAddressMismatch {
		t.Fatalf("err = %v, want ErrAddressMismatch", err)
	}
}

func TestDeriveRejectsBadNonce(t *testing.T) {
	a, b := kp(1), kp(2)
	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 100}}

	tx := types.Transaction{Sender: a.Address, AccountNonce: 2, Receiver: b.Address, Value: 10}
	signed := types.SignTransaction(tx, a)

	if _, err := Derive(genesis, []types.SignedTransaction{signed}); err != ErrBadNonce {
		t.Fatalf("err = %v, want ErrBadNonce", err)
	}
}

func TestDeriveRejectsZeroAndOverBalanceValue(t *testing.T) {
	a, b := kp(1), kp(2)
	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 100}}

	zero := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 0}, a)
	if _, err := Derive(genesis, []types.SignedTransaction{zero}); err != ErrBadValue {
		t.Fatalf("zero value: err = %v, want ErrBadValue", err)
	}

	tooMuch := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 101}, a)
	if _, err := Derive(genesis, []types.SignedTransaction{tooMuch}); err != ErrBadValue {
		t.Fatalf("over-balance: err = %v, want ErrBadValue", err)
	}
}

func TestDeriveRejectsReceiverOverflow(t *testing.T) {
	a, b := kp(1), kp(2)
	genesis := Snapshot{
		a.Address: {Nonce: 0, Balance: 10},
		b.Address: {Nonce: 0, Balance: ^uint32(0)},
	}

	tx := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 1}, a)
	if _, err := Derive(genesis, []types.SignedTransaction{tx}); err != ErrBalanceOverflow {
		t.Fatalf("err = %v, want ErrBalanceOverflow", err)
	}
}

func TestDeriveAppliesSequentially(t *testing.T) {
	a, b := kp(1), kp(2)
	genesis := Snapshot{a.Address: {Nonce: 0, Balance: 100}}

	tx1 := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 1, Receiver: b.Address, Value: 40}, a)
	tx2 := types.SignTransaction(types.Transaction{Sender: a.Address, AccountNonce: 2, Receiver: b.Address, Value: 30}, a)

	next, err := Derive(genesis, []types.SignedTransaction{tx1, tx2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := next.Get(a.Address); got != (Account{Nonce: 2, Balance: 30}) {
		t.Fatalf("A = %+v, want {2 30}", got)
	}
	if got := next.Get(b.Address); got != (Account{Nonce: 0, Balance: 70}) {
		t.Fatalf("B = %+v, want {0 70}", got)
	}
}

func TestStoreSeedGenesisAndInsert(t *testing.T) {
	store := NewStore()
	a := kp(1)
	genesisHash := types.H256{1}

	store.SeedGenesis(genesisHash, a.Address, 1_000_000)
	got, ok := store.Get(genesisHash)
	if !ok {
		t.Fatal("expected genesis snapshot to be recorded")
	}
	if got.Get(a.Address) != (Account{Nonce: 0, Balance: 1_000_000}) {
		t.Fatalf("genesis account = %+v", got.Get(a.Address))
	}

	childHash := types.H256{2}
	store.Insert(childHash, Snapshot{a.Address: {Nonce: 1, Balance: 999500}})
	child, ok := store.Get(childHash)
	if !ok || child.Get(a.Address) != (Account{Nonce: 1, Balance: 999500}) {
		t.Fatalf("child snapshot not recorded correctly: %+v, ok=%v", child, ok)
	}
}
