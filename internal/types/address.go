package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Address is a 20-byte stable lookup key into account state, derived from
// an Ed25519 public key.
type Address [20]byte

// String renders the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns the address's underlying bytes as a slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// AddressFromPublicKey takes the raw bytes of an Ed25519 public key and
// returns the trailing 20 bytes of its SHA-256 digest.
func AddressFromPublicKey(pubKey []byte) Address {
	digest := sha256.Sum256(pubKey)
	var addr Address
	copy(addr[:], digest[len(digest)-20:])
	return addr
}

// AddressFromHex parses a lowercase-hex encoded address.
func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	var a Address
	copy(a[:], b)
	return a, nil
}
