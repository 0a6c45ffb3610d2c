package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Header carries everything needed to identify and validate a block
// without its transaction content.
type Header struct {
	Parent     H256
	Nonce      uint32
	Difficulty H256
	Timestamp  uint64 // microseconds since the Unix epoch
	MerkleRoot H256
}

// Serialize returns the canonical binary encoding of the header fields, in
// field order. This is the preimage of the block hash.
func (h Header) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(h.Parent.Bytes())
	binary.Write(&buf, binary.BigEndian, h.Nonce)
	buf.Write(h.Difficulty.Bytes())
	binary.Write(&buf, binary.BigEndian, h.Timestamp)
	buf.Write(h.MerkleRoot.Bytes())
	return buf.Bytes()
}

// Hash returns the SHA-256 hash of the header's canonical serialization —
// this is the block's identity; the content is committed to only via
// MerkleRoot.
func (h Header) Hash() H256 {
	return H256(sha256.Sum256(h.Serialize()))
}

// Content is the ordered list of signed transactions a block carries.
type Content struct {
	Data []SignedTransaction
}

// Block is a header plus its content. The header's MerkleRoot MUST equal
// the root of the Merkle tree built over Content.Data.
type Block struct {
	Header  Header
	Content Content
}

// Hash returns the block's identity, i.e. its header hash.
func (b Block) Hash() H256 {
	return b.Header.Hash()
}
