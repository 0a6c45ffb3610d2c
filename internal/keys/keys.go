// Package keys derives the node's three deterministic demo key pairs. A
// real wallet signs with a freshly generated key; this educational node
// instead ships three fixed identities so that peers started against the
// same mnemonics can immediately pay each other without an out-of-band
// key exchange step.
package keys

import (
	"crypto/sha256"

	"github.com/tyler-smith/go-bip39"

	"github.com/unisalento/solechain/internal/types"
)

// demoMnemonics are fixed BIP-39 mnemonics, one per demo identity. They are
// not secrets — this is a teaching network, not a production wallet.
var demoMnemonics = [3]string{
	"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
	"legal winner thank year wave sausage worth useful legal winner thank yellow",
	"letter advice cage absurd amount doctor acoustic avoid letter advice cage above",
}

// Demo derives the node's three deterministic demo key pairs, in a fixed
// order, via BIP-39 seed derivation.
func Demo() [3]types.KeyPair {
	var out [3]types.KeyPair
	for i, mnemonic := range demoMnemonics {
		out[i] = fromMnemonic(mnemonic)
	}
	return out
}

// fromMnemonic turns a BIP-39 mnemonic into an Ed25519 key pair. The
// mnemonic's 64-byte BIP-39 seed is hashed down to the 32 bytes an Ed25519
// seed requires.
func fromMnemonic(mnemonic string) types.KeyPair {
	seed := bip39.NewSeed(mnemonic, "")
	ed25519Seed := sha256.Sum256(seed)
	return types.NewKeyPairFromSeed(ed25519Seed[:])
}

// SelectForPort picks which of the three demo key pairs a node listening
// on p2p port port adopts: the last digit of the port modulo 10 selects
// identity 0, 1, or 2, falling back to 0 for any other digit.
func SelectForPort(port int, demo [3]types.KeyPair) types.KeyPair {
	switch port % 10 {
	case 1:
		return demo[1]
	case 2:
		return demo[2]
	default:
		return demo[0]
	}
}
