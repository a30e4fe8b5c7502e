// Package spectral implements Knuth's spectral test for linear congruential
// generators (The Art of Computer Programming, Vol. 2, §3.3.4, Algorithm S).
//
// For each dimension t, the test computes ν_t, the length of the shortest
// nonzero vector in the dual of the lattice formed by t-tuples of successive
// generator outputs. Equivalently, 1/ν_t is the largest distance between
// parallel hyperplanes covering all such t-tuples. All lattice arithmetic is
// exact, so results agree with published reference values for any 64-bit
// modulus.
package spectral

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"math/big"
)

var (
	// ErrInvariant is returned when an internal consistency check fails or
	// a loop exceeds its iteration limit. It indicates parameters outside
	// the domain of the algorithm, such as a multiplier sharing a factor
	// with the modulus, or a bug.
	ErrInvariant = errors.New("spectral test invariant broken")
	// ErrDimension is returned for a maximum dimension below 2.
	ErrDimension = errors.New("dimension must be at least 2")
)

// Default iteration limits.
const (
	DefaultMaxReduce = 1 << 20
	DefaultMaxSearch = 1 << 32
)

// Options bounds the work done in each dimension.
type Options struct {
	// MaxReduce is the maximum number of pairwise reduction steps per
	// dimension. Zero means DefaultMaxReduce.
	MaxReduce int64
	// MaxSearch is the maximum number of search steps per dimension.
	// Zero means DefaultMaxSearch.
	MaxSearch int64
}

func (o Options) maxReduce() int64 {
	if o.MaxReduce <= 0 {
		return DefaultMaxReduce
	}
	return o.MaxReduce
}

func (o Options) maxSearch() int64 {
	if o.MaxSearch <= 0 {
		return DefaultMaxSearch
	}
	return o.MaxSearch
}

// Result is the sequence of ν_t computed by a spectral test.
// It is immutable once returned.
type Result struct {
	// A and M are the multiplier and modulus tested.
	A, M uint64
	// norms[i] is ν²_{i+2}.
	norms []*big.Int
}

// Max returns the highest dimension for which ν_t was computed, or 0 if
// there are none.
func (r *Result) Max() int {
	if len(r.norms) == 0 {
		return 0
	}
	return len(r.norms) + 1
}

// Norm returns ν²_t, the squared length of the shortest vector in
// dimension t.
func (r *Result) Norm(t int) (*big.Int, bool) {
	if t < 2 || t > r.Max() {
		return nil, false
	}
	return new(big.Int).Set(r.norms[t-2]), true
}

// V returns ν_t.
func (r *Result) V(t int) (float64, bool) {
	n, ok := r.Norm(t)
	if !ok {
		return 0, false
	}
	return sqrt(n), true
}

// Merit returns the figure of merit μ_t for dimension t.
func (r *Result) Merit(t int) (float64, bool) {
	v, ok := r.V(t)
	if !ok {
		return 0, false
	}
	return Merit(v, t, r.M), true
}

// All iterates over dimensions and their ν_t in increasing order.
func (r *Result) All() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i, n := range r.norms {
			if !yield(i+2, sqrt(n)) {
				return
			}
		}
	}
}

// Merit computes Knuth's figure of merit
//
//	μ_t = π^(t/2) ν_t^t / ((t/2)! m)
//
// which normalizes ν_t against the best possible value for the modulus.
// Values of at least 0.1 are generally considered passing.
func Merit(v float64, t int, m uint64) float64 {
	if v <= 0 {
		return 0
	}
	h := float64(t) / 2
	lg, _ := math.Lgamma(h + 1)
	return math.Exp(h*math.Log(math.Pi) + float64(t)*math.Log(v) - lg - math.Log(float64(m)))
}

// sqrt returns the square root of a nonnegative integer as a float64.
func sqrt(n *big.Int) float64 {
	f := new(big.Float).SetPrec(128).SetInt(n)
	v, _ := f.Sqrt(f).Float64()
	return v
}

// Run performs the spectral test for the multiplier a and modulus m in
// dimensions 2 through dims. The increment and seed of a generator don't
// affect its lattice and so aren't needed.
//
// If the test fails partway, the returned Result holds the dimensions
// completed before the failure, alongside the error.
func Run(ctx context.Context, a, m uint64, dims int, opts Options) (*Result, error) {
	if dims < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrDimension, dims)
	}
	st, err := Init(a, m)
	if err != nil {
		return nil, err
	}
	defer st.release()
	r := &Result{A: a, M: m, norms: make([]*big.Int, 0, dims-1)}
	r.norms = append(r.norms, st.Norm())
	slog.DebugContext(ctx, "spectral dimension", slog.Int("t", 2), slog.String("norm", st.s.String()))
	for st.Dim() < dims {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		st.Extend()
		if err := st.Reduce(opts.maxReduce()); err != nil {
			return r, err
		}
		if err := st.Verify(); err != nil {
			return r, err
		}
		if err := st.Search(ctx, opts.maxSearch()); err != nil {
			return r, err
		}
		r.norms = append(r.norms, st.Norm())
		slog.DebugContext(ctx, "spectral dimension", slog.Int("t", st.Dim()), slog.String("norm", st.s.String()))
	}
	return r, nil
}
