package bitseq_test

import (
	"strings"
	"testing"

	"github.com/zephyrtronium/lcong/bitseq"
	"github.com/zephyrtronium/lcong/lcg"
)

func TestFromLCG(t *testing.T) {
	// 33, 85, 44 -> 100001 1010101 101100
	p := lcg.Params{X0: 1, A: 33, C: 0, M: 251}
	got := bitseq.FromLCG(p, 12).String()
	if want := "100001101010"; got != want {
		t.Errorf("wrong digits: want %s, got %s", want, got)
	}
	s := bitseq.FromLCG(lcg.Params{X0: 1, A: 1103515245, C: 12345, M: 1 << 31}, bitseq.Length)
	if len(s) != bitseq.Length {
		t.Errorf("wrong length: want %d, got %d", bitseq.Length, len(s))
	}
	for i, c := range s {
		if c > 1 {
			t.Fatalf("non-binary digit %d at %d", c, i)
		}
	}
}

func TestFromLCGZero(t *testing.T) {
	// x0=0, a=1, c=0 stays at 0 forever, contributing one digit per step.
	s := bitseq.FromLCG(lcg.Params{X0: 0, A: 1, C: 0, M: 2}, 5)
	if got := s.String(); got != "00000" {
		t.Errorf("wrong digits: want 00000, got %s", got)
	}
}

func TestRead(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{"row", "0110", "0110", false},
		{"columns", "0 1\n1 0\n", "0110", false},
		{"spaces", "  01\t\r\n10  ", "0110", false},
		{"empty", "", "", false},
		{"bad", "01a0", "", true},
		{"truncate", strings.Repeat("01", bitseq.Length), strings.Repeat("01", bitseq.Length/2), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := bitseq.Read(strings.NewReader(c.in))
			if c.err {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != c.want {
				t.Errorf("wrong digits: want %q, got %q", c.want, got)
			}
		})
	}
}

func TestDigest(t *testing.T) {
	s, err := bitseq.Read(strings.NewReader("0 1 1 0"))
	if err != nil {
		t.Fatal(err)
	}
	want := "fd9f0008d15f272c8b7ad60c5957c54d987cbafcd22502b167246c5e4a6bae95"
	if got := bitseq.Digest(s); got != want {
		t.Errorf("wrong digest: want %s, got %s", want, got)
	}
	if bitseq.Digest(s) == bitseq.Digest(s[:3]) {
		t.Error("distinct sequences have the same digest")
	}
}
