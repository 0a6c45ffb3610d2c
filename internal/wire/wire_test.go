package wire

import (
	"testing"

	"github.com/unisalento/solechain/internal/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		Ping{Text: "Test ping"},
		Pong{Text: "Test pong"},
		NewBlockHashes{Hashes: []types.H256{{1}, {2}}},
		GetBlocks{Hashes: []types.H256{{3}}},
		Blocks{Blocks: []types.Block{{Header: types.Header{Nonce: 7}}}},
		NewTransactionHashes{Hashes: []types.H256{{4}}},
		GetTransactions{Hashes: []types.H256{{5}}},
		Transactions{Transactions: []types.SignedTransaction{{Transaction: types.Transaction{Value: 9}}}},
	}

	for _, msg := range cases {
		encoded, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%T) error: %v", msg, err)
		}
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%T) error: %v", msg, err)
		}
		if decoded.Kind() != msg.Kind() {
			t.Fatalf("Kind mismatch: got %v, want %v", decoded.Kind(), msg.Kind())
		}
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	if _, err := Decode([]byte("short")); err == nil {
		t.Fatal("expected error decoding a payload shorter than the command tag")
	}
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	tag := commandToBytes("bogus")
	if _, err := Decode(tag); err == nil {
		t.Fatal("expected error decoding an unrecognised command tag")
	}
}

func TestPingPongContent(t *testing.T) {
	encoded, err := Encode(Ping{Text: "Test ping"})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}
	ping, ok := decoded.(Ping)
	if !ok {
		t.Fatalf("decoded type = %T, want Ping", decoded)
	}
	if ping.Text != "Test ping" {
		t.Fatalf("Text = %q, want %q", ping.Text, "Test ping")
	}
}
