package types

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{4000, 10, 400},
		{4001, 10, 401},
		{0, 7, 0},
		{7, 0, 0},
		{99, 100, 1},
	}
	for _, tc := range cases {
		if got := CeilDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
