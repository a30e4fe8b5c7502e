package lcg

import (
	"errors"
	"fmt"
	"iter"
	"math/big"
	"strings"
)

// ParseValue evaluates a parameter expression such as "2**31 - 1" or
// "10 ** 10". Integers may use any prefix accepted by [big.Int.SetString]
// with base 0. Supported operators are unary minus, +, -, *, and
// exponentiation written ** or ^, along with parentheses.
// The result must lie in [0, 2^64).
func ParseValue(s string) (uint64, error) {
	p := parser{src: s}
	v, err := p.expr()
	if err != nil {
		return 0, fmt.Errorf("couldn't parse %q: %w", s, err)
	}
	p.space()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("couldn't parse %q: unexpected %q at offset %d", s, p.src[p.pos:], p.pos)
	}
	if v.Sign() < 0 {
		return 0, fmt.Errorf("%q is negative", s)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%q: %w", s, ErrOverflow)
	}
	return v.Uint64(), nil
}

// Range is an inclusive range of parameter values.
type Range struct {
	Lo, Hi uint64
}

// ParseRange parses either a single expression or two expressions
// separated by a colon, giving an inclusive range.
func ParseRange(s string) (Range, error) {
	lo, hi, ok := strings.Cut(s, ":")
	a, err := ParseValue(lo)
	if err != nil {
		return Range{}, err
	}
	if !ok {
		return Range{Lo: a, Hi: a}, nil
	}
	b, err := ParseValue(hi)
	if err != nil {
		return Range{}, err
	}
	if a > b {
		return Range{}, fmt.Errorf("empty range %q", s)
	}
	return Range{Lo: a, Hi: b}, nil
}

// Len returns the number of values in the range.
// It saturates rather than wrapping for the full 64-bit range.
func (r Range) Len() uint64 {
	n := r.Hi - r.Lo + 1
	if n == 0 {
		return ^uint64(0)
	}
	return n
}

// All iterates the values of the range in increasing order.
func (r Range) All() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for v := r.Lo; ; v++ {
			if !yield(v) || v == r.Hi {
				return
			}
		}
	}
}

func (r Range) String() string {
	if r.Lo == r.Hi {
		return fmt.Sprint(r.Lo)
	}
	return fmt.Sprintf("%d:%d", r.Lo, r.Hi)
}

// maxBits bounds intermediate results so that a careless exponent can't
// exhaust memory. Anything this large overflows the final result anyway.
const maxBits = 4096

var errTooLarge = errors.New("intermediate value too large")

type parser struct {
	src string
	pos int
}

func (p *parser) space() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

// accept consumes tok if it is the next token.
func (p *parser) accept(tok string) bool {
	p.space()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expr() (*big.Int, error) {
	v, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("+"):
			w, err := p.term()
			if err != nil {
				return nil, err
			}
			v.Add(v, w)
		case p.accept("-"):
			w, err := p.term()
			if err != nil {
				return nil, err
			}
			v.Sub(v, w)
		default:
			return v, nil
		}
		if v.BitLen() > maxBits {
			return nil, errTooLarge
		}
	}
}

func (p *parser) term() (*big.Int, error) {
	v, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		p.space()
		if strings.HasPrefix(p.src[p.pos:], "**") || !p.accept("*") {
			return v, nil
		}
		w, err := p.unary()
		if err != nil {
			return nil, err
		}
		if v.BitLen()+w.BitLen() > maxBits {
			return nil, errTooLarge
		}
		v.Mul(v, w)
	}
}

func (p *parser) unary() (*big.Int, error) {
	if p.accept("-") {
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return v.Neg(v), nil
	}
	if p.accept("+") {
		return p.unary()
	}
	return p.power()
}

func (p *parser) power() (*big.Int, error) {
	v, err := p.atom()
	if err != nil {
		return nil, err
	}
	if !p.accept("**") && !p.accept("^") {
		return v, nil
	}
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	if e.Sign() < 0 {
		return nil, errors.New("negative exponent")
	}
	if v.CmpAbs(big.NewInt(1)) > 0 && (!e.IsInt64() || int64(v.BitLen()-1)*e.Int64() > maxBits) {
		return nil, errTooLarge
	}
	return v.Exp(v, e, nil), nil
}

func (p *parser) atom() (*big.Int, error) {
	if p.accept("(") {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("missing ) at offset %d", p.pos)
		}
		return v, nil
	}
	p.space()
	start := p.pos
	for p.pos < len(p.src) && isNumByte(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.src) {
			return nil, errors.New("unexpected end of expression")
		}
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
	}
	v, ok := new(big.Int).SetString(p.src[start:p.pos], 0)
	if !ok {
		return nil, fmt.Errorf("bad integer %q", p.src[start:p.pos])
	}
	return v, nil
}

func isNumByte(b byte) bool {
	return '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || b == '_'
}
