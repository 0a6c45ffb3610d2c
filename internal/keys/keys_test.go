package keys

import "testing"

func TestDemoIsDeterministicAndDistinct(t *testing.T) {
	a := Demo()
	b := Demo()

	for i := range a {
		if a[i].Address != b[i].Address {
			t.Fatalf("identity %d address not deterministic across calls", i)
		}
	}
	if a[0].Address == a[1].Address || a[1].Address == a[2].Address || a[0].Address == a[2].Address {
		t.Fatal("expected three distinct demo identities")
	}
}

func TestSelectForPort(t *testing.T) {
	demo := Demo()

	cases := []struct {
		port int
		want int
	}{
		{6000, 0}, // 6000 % 10 == 0
		{6001, 1}, // 6001 % 10 == 1
		{6002, 2}, // 6002 % 10 == 2
		{6003, 0}, // 3 is not 0/1/2: fallback
		{6009, 0},
	}
	for _, c := range cases {
		got := SelectForPort(c.port, demo)
		if got.Address != demo[c.want].Address {
			t.Fatalf("SelectForPort(%d) = identity with address %x, want demo[%d] = %x", c.port, got.Address, c.want, demo[c.want].Address)
		}
	}
}
