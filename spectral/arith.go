package spectral

import (
	"math/big"
	"sync"
)

// scratch holds temporaries for lattice arithmetic so that inner loops
// don't allocate.
type scratch struct {
	a, b, c, d big.Int
}

// pool is a sync.Pool of scratch space.
type pool sync.Pool

var scratchPool = &pool{New: func() any { return new(scratch) }}

func (p *pool) Get() *scratch {
	return (*sync.Pool)(p).Get().(*scratch)
}

func (p *pool) Put(s *scratch) {
	(*sync.Pool)(p).Put(s)
}

// vec is an integer vector.
type vec []*big.Int

func newVec(n int) vec {
	v := make(vec, n)
	for i := range v {
		v[i] = new(big.Int)
	}
	return v
}

// dot sets z to x·y and returns z. tmp must not alias z.
func dot(z *big.Int, x, y vec, tmp *big.Int) *big.Int {
	z.SetInt64(0)
	for i, xi := range x {
		z.Add(z, tmp.Mul(xi, y[i]))
	}
	return z
}

// axpy sets y to y + q·x.
func axpy(y vec, q *big.Int, x vec, tmp *big.Int) {
	for i, xi := range x {
		y[i].Add(y[i], tmp.Mul(q, xi))
	}
}

// floorDiv sets z to ⌊x/y⌋ and returns z. r receives the remainder, which
// has the sign of y. y must be nonzero and z, r must be distinct.
func floorDiv(z, r, x, y *big.Int) *big.Int {
	z.QuoRem(x, y, r)
	if r.Sign() != 0 && r.Sign() != y.Sign() {
		z.Sub(z, big.NewInt(1))
		r.Add(r, y)
	}
	return z
}

// roundDiv sets z to x/y rounded to the nearest integer with ties to even
// and returns z. y must be nonzero. r must be distinct from z, x, and y.
func roundDiv(z, r, x, y *big.Int) *big.Int {
	if y.Sign() < 0 {
		// Work with a positive denominator so the floor remainder lies in
		// [0, |y|).
		var nx, ny big.Int
		return roundDiv(z, r, nx.Neg(x), ny.Neg(y))
	}
	floorDiv(z, r, x, y)
	r.Lsh(r, 1)
	switch c := r.Cmp(y); {
	case c > 0, c == 0 && z.Bit(0) != 0:
		z.Add(z, big.NewInt(1))
	}
	return z
}
