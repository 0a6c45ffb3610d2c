// Package wire defines the gossip message protocol: a closed tagged union
// of eight message kinds, framed as a fixed-width command tag followed by
// a gob-encoded payload. The raw transport is a collaborator contract
// implemented by internal/network, which delimits messages by sending each
// one on its own stream and reading that stream to EOF.
package wire

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/unisalento/solechain/internal/types"
)

const commandLength = 16

// Kind identifies which of the eight message variants a Message carries.
type Kind int

const (
	KindPing Kind = iota
	KindPong
	KindNewBlockHashes
	KindGetBlocks
	KindBlocks
	KindNewTransactionHashes
	KindGetTransactions
	KindTransactions
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindNewBlockHashes:
		return "newblockhashes"
	case KindGetBlocks:
		return "getblocks"
	case KindBlocks:
		return "blocks"
	case KindNewTransactionHashes:
		return "newtxhashes"
	case KindGetTransactions:
		return "gettransactions"
	case KindTransactions:
		return "transactions"
	default:
		return "unknown"
	}
}

// Message is implemented by every wire message variant. Use a closed sum
// of concrete types, not subclassing — see spec design notes.
type Message interface {
	Kind() Kind
}

// Ping is a liveness probe; it carries no chain effect.
type Ping struct{ Text string }

func (Ping) Kind() Kind { return KindPing }

// Pong answers a Ping.
type Pong struct{ Text string }

func (Pong) Kind() Kind { return KindPong }

// NewBlockHashes advertises blocks the sender has.
type NewBlockHashes struct{ Hashes []types.H256 }

func (NewBlockHashes) Kind() Kind { return KindNewBlockHashes }

// GetBlocks requests full blocks by hash.
type GetBlocks struct{ Hashes []types.H256 }

func (GetBlocks) Kind() Kind { return KindGetBlocks }

// Blocks delivers full blocks in answer to GetBlocks.
type Blocks struct{ Blocks []types.Block }

func (Blocks) Kind() Kind { return KindBlocks }

// NewTransactionHashes advertises transactions the sender has.
type NewTransactionHashes struct{ Hashes []types.H256 }

func (NewTransactionHashes) Kind() Kind { return KindNewTransactionHashes }

// GetTransactions requests full signed transactions by hash.
type GetTransactions struct{ Hashes []types.H256 }

func (GetTransactions) Kind() Kind { return KindGetTransactions }

// Transactions delivers full signed transactions in answer to
// GetTransactions.
type Transactions struct{ Transactions []types.SignedTransaction }

func (Transactions) Kind() Kind { return KindTransactions }

func commandToBytes(command string) []byte {
	var b [commandLength]byte
	copy(b[:], command)
	return b[:]
}

func bytesToCommand(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// Encode frames msg as a fixed-width command tag followed by its
// gob-encoded payload.
func Encode(msg Message) ([]byte, error) {
	var payload bytes.Buffer
	enc := gob.NewEncoder(&payload)

	var command string
	var err error
	switch m := msg.(type) {
	case Ping:
		command, err = "ping", enc.Encode(m)
	case Pong:
		command, err = "pong", enc.Encode(m)
	case NewBlockHashes:
		command, err = "newblockhashes", enc.Encode(m)
	case GetBlocks:
		command, err = "getblocks", enc.Encode(m)
	case Blocks:
		command, err = "blocks", enc.Encode(m)
	case NewTransactionHashes:
		command, err = "newtxhashes", enc.Encode(m)
	case GetTransactions:
		command, err = "gettransactions", enc.Encode(m)
	case Transactions:
		command, err = "transactions", enc.Encode(m)
	default:
		return nil, fmt.Errorf("wire: unknown message type %T", msg)
	}
	if err != nil {
		return nil, fmt.Errorf("wire: encode %T: %w", msg, err)
	}

	return append(commandToBytes(command), payload.Bytes()...), nil
}

// Decode reverses Encode, dispatching on the command tag to the matching
// concrete message type. An unrecognised tag or a payload too short to
// hold one is a protocol violation the caller should drop silently.
func Decode(data []byte) (Message, error) {
	if len(data) < commandLength {
		return nil, fmt.Errorf("wire: payload shorter than command tag")
	}
	command := bytesToCommand(data[:commandLength])
	body := bytes.NewReader(data[commandLength:])
	dec := gob.NewDecoder(body)

	switch command {
	case "ping":
		var m Ping
		err := decodeInto(dec, &m)
		return m, err
	case "pong":
		var m Pong
		err := decodeInto(dec, &m)
		return m, err
	case "newblockhashes":
		var m NewBlockHashes
		err := decodeInto(dec, &m)
		return m, err
	case "getblocks":
		var m GetBlocks
		err := decodeInto(dec, &m)
		return m, err
	case "blocks":
		var m Blocks
		err := decodeInto(dec, &m)
		return m, err
	case "newtxhashes":
		var m NewTransactionHashes
		err := decodeInto(dec, &m)
		return m, err
	case "gettransactions":
		var m GetTransactions
		err := decodeInto(dec, &m)
		return m, err
	case "transactions":
		var m Transactions
		err := decodeInto(dec, &m)
		return m, err
	default:
		return nil, fmt.Errorf("wire: unknown command %q", command)
	}
}

func decodeInto(dec *gob.Decoder, v interface{}) error {
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
