package lcg_test

import (
	"errors"
	"math/big"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/lcong/lcg"
)

func TestNext(t *testing.T) {
	cases := []struct {
		name       string
		x, a, c, m uint64
		want       uint64
	}{
		{"small", 1, 33, 0, 251, 33},
		{"wrap", 10, 33, 0, 251, 330 % 251},
		{"increment", 0, 3141592621, 1, 1e10, 1},
		{"park-miller", 1, 16807, 0, 1<<31 - 1, 16807},
		{"park-miller-2", 16807, 16807, 0, 1<<31 - 1, 282475249},
		{"knuth", 1, 3141592621, 1, 1e10, 3141592622},
		{"wide", 9999999999, 3141592621, 1, 1e10, 0},
		{"huge", 1<<63 + 5, 1<<63 + 7, 1<<63 + 11, 1<<64 - 59, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want := c.want
			if c.name == "wide" || c.name == "huge" {
				// Compute the expectation with arbitrary precision.
				x := new(big.Int).SetUint64(c.x)
				x.Mul(x, new(big.Int).SetUint64(c.a))
				x.Add(x, new(big.Int).SetUint64(c.c))
				x.Mod(x, new(big.Int).SetUint64(c.m))
				want = x.Uint64()
			}
			if got := lcg.Next(c.x, c.a, c.c, c.m); got != want {
				t.Errorf("wrong next: want %d, got %d", want, got)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	p := lcg.Params{X0: 1, A: 33, C: 0, M: 251}
	got := lcg.Generate(p, 5)
	want := []uint64{33, 85, 44, 197, 226}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong sequence:\n%s", diff)
	}
	// Generating is deterministic and extends.
	more := lcg.Generate(p, 8)
	if !slices.Equal(more[:5], got) {
		t.Errorf("longer sequence has a different prefix: %v vs %v", more, got)
	}
	if len(lcg.Generate(p, 0)) != 0 {
		t.Error("nonempty sequence for n=0")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		p    lcg.Params
		ok   bool
	}{
		{"knuth", lcg.Params{A: 3141592621, C: 1, M: 1e10}, true},
		{"m0", lcg.Params{A: 3, M: 0}, false},
		{"m1", lcg.Params{A: 3, M: 1}, false},
		{"a0", lcg.Params{A: 0, M: 7}, false},
		{"am", lcg.Params{A: 14, M: 7}, false},
		{"abig", lcg.Params{A: 15, M: 7}, true},
		{"m2", lcg.Params{A: 1, M: 2}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.p.Validate()
			if c.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !c.ok && !errors.Is(err, lcg.ErrInvalidParams) {
				t.Errorf("wrong error: want %v, got %v", lcg.ErrInvalidParams, err)
			}
		})
	}
}
