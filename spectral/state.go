package spectral

import (
	"context"
	"fmt"
	"math/big"

	"github.com/zephyrtronium/lcong/lcg"
)

// State is the lattice state of a single spectral test run. It holds a
// primal basis U and a dual basis V whose rows satisfy U_i·V_j = m when
// i = j and 0 otherwise. A State is extended one dimension at a time and is
// not safe for concurrent use.
type State struct {
	a, m *big.Int
	// t is the current dimension.
	t int
	// u and v are the primal and dual bases, one vector per row.
	u, v []vec
	// h, hp, p, pp are the two-dimensional reduction variables h, h′, p, p′.
	h, hp, p, pp *big.Int
	// r is a^(t-1) mod m.
	r *big.Int
	// s is the best squared norm found so far in the current dimension.
	s *big.Int
	// k is the index of the last transformed basis vector.
	k int

	tmp *scratch
}

// Init validates the parameters and computes the two-dimensional state,
// including ν²_2. It corresponds to steps S1 through S3.
func Init(a, m uint64) (*State, error) {
	if err := (lcg.Params{A: a, M: m}).Validate(); err != nil {
		return nil, err
	}
	st := &State{
		a:   new(big.Int).SetUint64(a),
		m:   new(big.Int).SetUint64(m),
		t:   2,
		h:   new(big.Int).SetUint64(a),
		hp:  new(big.Int).SetUint64(m),
		p:   big.NewInt(1),
		pp:  big.NewInt(0),
		r:   new(big.Int).SetUint64(a),
		s:   new(big.Int),
		tmp: scratchPool.Get(),
	}
	if g := new(big.Int).GCD(nil, nil, st.a, st.m); g.Cmp(big.NewInt(1)) != 0 {
		st.release()
		return nil, fmt.Errorf("%w: multiplier %d and modulus %d share factor %v", ErrInvariant, a, m, g)
	}
	st.s.Mul(st.a, st.a)
	st.s.Add(st.s, big.NewInt(1))
	if err := st.checkEuclid(); err != nil {
		st.release()
		return nil, err
	}
	if err := st.euclid(); err != nil {
		st.release()
		return nil, err
	}
	if err := st.checkEuclid(); err != nil {
		st.release()
		return nil, err
	}
	st.basis()
	return st, nil
}

// release returns scratch space to the pool. The state must not be used
// afterward.
func (st *State) release() {
	if st.tmp != nil {
		scratchPool.Put(st.tmp)
		st.tmp = nil
	}
}

// Dim returns the current dimension.
func (st *State) Dim() int {
	return st.t
}

// Norm returns the best squared norm in the current dimension. After Search
// completes, it is ν²_t.
func (st *State) Norm() *big.Int {
	return new(big.Int).Set(st.s)
}

// checkEuclid verifies the invariants of the two-dimensional phase:
// h − a·p ≡ h′ − a·p′ (mod m) and h·p′ − h′·p = ±m.
func (st *State) checkEuclid() error {
	x, y, z := &st.tmp.a, &st.tmp.b, &st.tmp.c
	x.Sub(st.h, z.Mul(st.a, st.p))
	x.Mod(x, st.m)
	y.Sub(st.hp, z.Mul(st.a, st.pp))
	y.Mod(y, st.m)
	if x.Cmp(y) != 0 {
		return fmt.Errorf("%w: h-ap = %v but h'-ap' = %v mod m", ErrInvariant, x, y)
	}
	x.Mul(st.h, st.pp)
	x.Sub(x, y.Mul(st.hp, st.p))
	if x.CmpAbs(st.m) != 0 {
		return fmt.Errorf("%w: hp'-h'p = %v, not ±%v", ErrInvariant, x, st.m)
	}
	return nil
}

// euclid performs steps S2 and S3, the Euclidean reduction and refinement
// that find ν²_2.
func (st *State) euclid() error {
	q, u, v := new(big.Int), new(big.Int), new(big.Int)
	d, tmp := &st.tmp.a, &st.tmp.b
	// S2. Each iteration strictly decreases s, so the loop terminates.
	for {
		if st.h.Sign() == 0 {
			return fmt.Errorf("%w: Euclidean step reached h = 0", ErrInvariant)
		}
		floorDiv(q, tmp, st.hp, st.h)
		u.Sub(st.hp, tmp.Mul(q, st.h))
		v.Sub(st.pp, tmp.Mul(q, st.p))
		d.Mul(u, u)
		d.Add(d, tmp.Mul(v, v))
		if d.Cmp(st.s) >= 0 {
			break
		}
		st.s.Set(d)
		st.hp, st.h, u = st.h, u, st.hp
		st.pp, st.p, v = st.p, v, st.pp
	}
	// S3.
	for {
		u.Sub(u, st.h)
		v.Sub(v, st.p)
		d.Mul(u, u)
		d.Add(d, tmp.Mul(v, v))
		if d.Cmp(st.s) >= 0 {
			return nil
		}
		st.s.Set(d)
		st.hp.Set(u)
		st.pp.Set(v)
	}
}

// basis sets up the two-dimensional primal and dual bases from the
// reduction variables.
func (st *State) basis() {
	neg := func(x *big.Int) *big.Int { return new(big.Int).Neg(x) }
	cp := func(x *big.Int) *big.Int { return new(big.Int).Set(x) }
	st.u = []vec{
		{neg(st.h), cp(st.p)},
		{neg(st.hp), cp(st.pp)},
	}
	st.v = []vec{
		{cp(st.pp), cp(st.hp)},
		{neg(st.p), neg(st.h)},
	}
	// The dual basis is negated exactly when p′ > 0.
	if st.pp.Sign() > 0 {
		for _, row := range st.v {
			for _, x := range row {
				x.Neg(x)
			}
		}
	}
}

// Extend lifts the bases to the next dimension (step S4). The bound s
// becomes the smaller of its current value and the squared length of the
// new primal vector.
func (st *State) Extend() {
	t := st.t
	for i := range st.u {
		st.u[i] = append(st.u[i], new(big.Int))
		st.v[i] = append(st.v[i], new(big.Int))
	}
	st.r.Mul(st.r, st.a)
	st.r.Mod(st.r, st.m)
	ut, vt := newVec(t+1), newVec(t+1)
	ut[0].Neg(st.r)
	ut[t].SetInt64(1)
	vt[t].Set(st.m)
	q, x, rem := new(big.Int), &st.tmp.a, &st.tmp.b
	for i := 0; i < t; i++ {
		x.Mul(st.v[i][0], st.r)
		roundDiv(q, rem, x, st.m)
		st.v[i][t].Sub(x, rem.Mul(q, st.m))
		axpy(ut, q, st.u[i], rem)
	}
	st.u = append(st.u, ut)
	st.v = append(st.v, vt)
	st.t = t + 1
	if n := dot(x, ut, ut, &st.tmp.b); n.Cmp(st.s) < 0 {
		st.s.Set(n)
	}
	st.k = t
}

// Reduce applies pairwise reduction to the dual basis, with the matching
// transformations of the primal basis, until a full cycle over the basis
// makes no change (steps S5 through S7). Each cycle may tighten s.
// Exceeding limit basis vector visits is an ErrInvariant.
func (st *State) Reduce(limit int64) error {
	t := st.t
	q, vivj, vjvj := new(big.Int), &st.tmp.a, &st.tmp.b
	rem, tmp := &st.tmp.c, &st.tmp.d
	j := 0
	for n := int64(0); ; n++ {
		if n >= limit {
			return fmt.Errorf("%w: reduction did not converge after %d steps in dimension %d", ErrInvariant, limit, t)
		}
		// S5.
		vj := st.v[j]
		dot(vjvj, vj, vj, tmp)
		if vjvj.Sign() == 0 {
			return fmt.Errorf("%w: zero dual basis vector %d in dimension %d", ErrInvariant, j, t)
		}
		for i := 0; i < t; i++ {
			if i == j {
				continue
			}
			dot(vivj, st.v[i], vj, tmp)
			rem.Lsh(tmp.Abs(vivj), 1)
			if rem.Cmp(vjvj) <= 0 {
				continue
			}
			roundDiv(q, rem, vivj, vjvj)
			q.Neg(q)
			axpy(st.v[i], q, vj, tmp)
			q.Neg(q)
			axpy(st.u[j], q, st.u[i], tmp)
			st.k = j
		}
		// S6.
		if st.k == j {
			if d := dot(vivj, st.u[j], st.u[j], tmp); d.Cmp(st.s) < 0 {
				st.s.Set(d)
			}
		}
		// S7.
		j++
		if j == t {
			j = 0
		}
		if j == st.k {
			return nil
		}
	}
}

// Verify checks that the primal and dual bases are mutually dual, i.e. that
// U·Vᵀ = m·I.
func (st *State) Verify() error {
	x, tmp := &st.tmp.a, &st.tmp.b
	for i, ui := range st.u {
		for j, vj := range st.v {
			dot(x, ui, vj, tmp)
			if i == j && x.Cmp(st.m) != 0 || i != j && x.Sign() != 0 {
				return fmt.Errorf("%w: U_%d·V_%d = %v in dimension %d", ErrInvariant, i, j, x, st.t)
			}
		}
	}
	return nil
}

// checkEvery is the number of search steps between context checks.
const checkEvery = 1 << 14

// Search exhaustively examines the lattice points within the bound implied
// by s, leaving ν²_t in s (steps S8 through S11). The search visits only
// coefficient vectors whose first nonzero coordinate is positive, since a
// vector and its negation have the same length. Exceeding limit steps is an
// ErrInvariant; a canceled context stops the search with the context's
// error.
func (st *State) Search(ctx context.Context, limit int64) error {
	t := st.t
	// S8.
	m2 := new(big.Int).Mul(st.m, st.m)
	z := make([]*big.Int, t)
	x := newVec(t)
	y := newVec(t)
	n, tmp := &st.tmp.a, &st.tmp.b
	for j := range z {
		dot(n, st.v[j], st.v[j], tmp)
		n.Mul(n, st.s)
		n.Quo(n, m2)
		z[j] = new(big.Int).Sqrt(n)
	}
	one, two := big.NewInt(1), big.NewInt(2)
	c := new(big.Int)
	k := t - 1
	for steps := int64(0); ; steps++ {
		if steps >= limit {
			return fmt.Errorf("%w: search did not finish after %d steps in dimension %d", ErrInvariant, limit, t)
		}
		if steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		// S9.
		if x[k].Cmp(z[k]) != 0 {
			x[k].Add(x[k], one)
			axpy(y, one, st.u[k], tmp)
			// S10.
			for k++; k < t; k++ {
				x[k].Neg(z[k])
				c.Mul(two, z[k])
				c.Neg(c)
				axpy(y, c, st.u[k], tmp)
			}
			if d := dot(n, y, y, tmp); d.Cmp(st.s) < 0 {
				st.s.Set(d)
			}
		}
		// S11.
		k--
		if k < 0 {
			return nil
		}
	}
}
