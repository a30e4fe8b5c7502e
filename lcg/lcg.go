// Package lcg implements linear congruential generators and the parameter
// expressions used to describe them.
package lcg

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrInvalidParams is returned when a modulus is at most 1 or the
	// multiplier is a multiple of the modulus.
	ErrInvalidParams = errors.New("invalid LCG parameters")
	// ErrOverflow is returned when a parameter does not fit in 64 bits.
	ErrOverflow = errors.New("parameter overflows 64 bits")
)

// Params is the parameter set of a generator x' = (a·x + c) mod m.
type Params struct {
	X0 uint64 `json:"x0"`
	A  uint64 `json:"a"`
	C  uint64 `json:"c"`
	M  uint64 `json:"m"`
}

// Validate checks that p describes a usable generator.
func (p Params) Validate() error {
	if p.M <= 1 {
		return fmt.Errorf("%w: modulus %d must be greater than 1", ErrInvalidParams, p.M)
	}
	if p.A%p.M == 0 {
		return fmt.Errorf("%w: multiplier %d is 0 mod %d", ErrInvalidParams, p.A, p.M)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("x0=%d a=%d c=%d m=%d", p.X0, p.A, p.C, p.M)
}

// Next returns (a·x + c) mod m. m must be nonzero.
func Next(x, a, c, m uint64) uint64 {
	hi, lo := bits.Mul64(a%m, x%m)
	r := bits.Rem64(hi, lo, m)
	lo, carry := bits.Add64(r, c%m, 0)
	return bits.Rem64(carry, lo, m)
}

// Generate returns the n values following p.X0. The seed itself is not
// included.
func Generate(p Params, n int) []uint64 {
	r := make([]uint64, n)
	x := p.X0
	for i := range r {
		x = Next(x, p.A, p.C, p.M)
		r[i] = x
	}
	return r
}
