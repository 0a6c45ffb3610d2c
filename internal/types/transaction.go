package types

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
)

// Transaction is an unsigned payment instruction: move value from sender
// to receiver, guarded by a per-account nonce.
type Transaction struct {
	Sender       Address
	AccountNonce uint32
	Receiver     Address
	Value        uint32
}

// Serialize returns the canonical binary encoding of the transaction's four
// fields, in field order — this is what gets signed, so every
// implementation on the wire must agree on it bit-for-bit.
func (t Transaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(t.Sender.Bytes())
	binary.Write(&buf, binary.BigEndian, t.AccountNonce)
	buf.Write(t.Receiver.Bytes())
	binary.Write(&buf, binary.BigEndian, t.Value)
	return buf.Bytes()
}

// KeyPair is a generated or derived Ed25519 key pair, kept alongside its
// address for convenience.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Address    Address
}

// NewKeyPairFromSeed builds a deterministic Ed25519 key pair from a 32-byte
// seed.
func NewKeyPairFromSeed(seed []byte) KeyPair {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{
		PrivateKey: priv,
		PublicKey:  pub,
		Address:    AddressFromPublicKey(pub),
	}
}

// Sign produces an Ed25519 signature over the transaction's canonical
// serialization.
func Sign(t Transaction, key ed25519.PrivateKey) []byte {
	return ed25519.Sign(key, t.Serialize())
}

// Verify checks an Ed25519 signature over t against publicKey. An
// unparseable or mismatched key yields false rather than an error, per
// spec §4.1.
func Verify(t Transaction, publicKey, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), t.Serialize(), signature)
}

// SignedTransaction pairs a Transaction with its signature and the signer's
// public key.
type SignedTransaction struct {
	Transaction Transaction
	Signature   []byte
	PublicKey   []byte
}

// Serialize returns the canonical encoding of the whole signed triple —
// signature and public key bytes are length-prefixed since they are not
// fixed-width.
func (st SignedTransaction) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(st.Transaction.Serialize())
	writeLenPrefixed(&buf, st.Signature)
	writeLenPrefixed(&buf, st.PublicKey)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

// Hash returns the SHA-256 hash of the signed transaction's canonical
// serialization — the signature bits contribute to identity, so a
// resubmitted transaction with a different signature hashes differently.
func (st SignedTransaction) Hash() H256 {
	return H256(sha256.Sum256(st.Serialize()))
}

// SignTransaction signs t with key and wraps it into a SignedTransaction.
func SignTransaction(t Transaction, key KeyPair) SignedTransaction {
	return SignedTransaction{
		Transaction: t,
		Signature:   Sign(t, key.PrivateKey),
		PublicKey:   key.PublicKey,
	}
}
