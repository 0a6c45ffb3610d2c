package merkletree

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/unisalento/solechain/internal/types"
)

// hashLeaf stands in for a real leaf type (SignedTransaction in
// production): its Hash() hashes its bytes once, same as the real thing,
// so test vectors line up with values generated from the original tree.
type hashLeaf types.H256

func (h hashLeaf) Hash() types.H256 { return types.H256(sha256.Sum256(h[:])) }

func leaf(t *testing.T, hexStr string) types.Hashable {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("bad hex %q: %v", hexStr, err)
	}
	return hashLeaf(types.HashFromBytes(b))
}

func TestRootOfTwoLeaves(t *testing.T) {
	data := []types.Hashable{
		leaf(t, "0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d"),
		leaf(t, "0101010101010101010101010101010101010101010101010101010101010202"),
	}
	tree := New(data)
	want := "6b787718210e0b3b608814e04e61fde06d0df794319a12162f287412df3ec920"
	if got := tree.Root().String(); got != want {
		t.Fatalf("root = %s, want %s", got, want)
	}
}

func TestProofOfFiveLeaves(t *testing.T) {
	data := []types.Hashable{
		leaf(t, "d424382d2b06092e6c7e2d97a6b206f016c00eadde93658ea7dd45be6f54ef4d"),
		leaf(t, "0101010101010101010101010101010101010101010101010101010101010202"),
		leaf(t, "d424382d2b06092e6c7e2d97a6b206f016c00eadde93658ea7dd45be6f54ef4d"),
		leaf(t, "a529f216c18a74668a7681aa9f59b59551bcd9f4c7c9f4dd88b7b07fcff5cc65"),
		leaf(t, "59fbe39cadc2188730d2ae81cfa3b03221b6819980f9f2caac8ba353d5ad1a62"),
	}
	tree := New(data)

	wantRoot := "bfebc21f187398781cda77b9edacc6872da485c1307260905ac08c4b1e6c7b43"
	if got := tree.Root().String(); got != wantRoot {
		t.Fatalf("root = %s, want %s", got, wantRoot)
	}

	proof := tree.Proof(0)
	if len(proof) != 3 {
		t.Fatalf("expected a 3-hash proof for leaf 0 of 5, got %d", len(proof))
	}
	lastWant := "feebcb7417406640e0438002cde6e3d228eb0ad7f78243a64c335dfb402e0391"
	if got := proof[len(proof)-1].String(); got != lastWant {
		t.Fatalf("last proof hop = %s, want %s", got, lastWant)
	}

	root, datum := tree.Root(), data[0].Hash()
	if !Verify(root, datum, proof, 0, len(data)) {
		t.Fatal("expected proof for leaf 0 to verify")
	}
}

func TestProofAndVerifyForAllSizes(t *testing.T) {
	for n := 1; n <= 9; n++ {
		n := n
		t.Run(fromInt(n), func(t *testing.T) {
			data := make([]types.Hashable, n)
			for i := range data {
				var h types.H256
				h[0] = byte(i + 1)
				data[i] = hashLeaf(h)
			}
			tree := New(data)
			for i := 0; i < n; i++ {
				proof := tree.Proof(i)
				if !Verify(tree.Root(), data[i].Hash(), proof, i, n) {
					t.Fatalf("leaf %d failed to verify in a %d-leaf tree", i, n)
				}
			}
		})
	}
}

func TestOutOfRangeIndexRejected(t *testing.T) {
	data := []types.Hashable{
		leaf(t, "0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d0a0b0c0d0e0f0e0d"),
		leaf(t, "0101010101010101010101010101010101010101010101010101010101010202"),
	}
	tree := New(data)

	if proof := tree.Proof(2); proof != nil {
		t.Fatalf("expected nil proof for out-of-range index, got %v", proof)
	}
	if Verify(tree.Root(), data[0].Hash(), tree.Proof(0), 2, len(data)) {
		t.Fatal("expected out-of-range index to be rejected by Verify")
	}
}

func TestEmptyTreeRootIsZero(t *testing.T) {
	tree := New(nil)
	if tree.Root() != types.ZeroHash {
		t.Fatalf("expected zero root for an empty tree, got %s", tree.Root())
	}
}

func fromInt(n int) string {
	digits := "0123456789"
	if n < 10 {
		return string(digits[n])
	}
	return "many"
}
