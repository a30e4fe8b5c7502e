// Package bitseq provides the binary digit sequences consumed by the
// statistical tests.
package bitseq

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"golang.org/x/crypto/sha3"

	"github.com/zephyrtronium/lcong/lcg"
)

// Length is the number of digits the statistical tests expect.
const Length = 20000

// Seq is a sequence of binary digits. Each element is 0 or 1.
type Seq []byte

// FromLCG concatenates the binary representations of successive outputs of
// the generator p until at least n digits are available, then truncates to
// exactly n digits. Outputs have no leading zeros, so an output of 0
// contributes the single digit 0. p must be valid.
func FromLCG(p lcg.Params, n int) Seq {
	s := make(Seq, 0, n+64)
	b := make([]byte, 0, 64)
	x := p.X0
	for len(s) < n {
		x = lcg.Next(x, p.A, p.C, p.M)
		b = strconv.AppendUint(b[:0], x, 2)
		for _, c := range b {
			s = append(s, c-'0')
		}
	}
	return s[:n]
}

// Read parses binary digits from r. Digits may be separated by any amount
// of whitespace, so files written as rows or as columns are both accepted.
// Any other character is an error. The result is truncated to [Length]
// digits; shorter inputs are returned whole.
func Read(r io.Reader) (Seq, error) {
	br := bufio.NewReader(r)
	s := make(Seq, 0, Length)
	var off int64
	for len(s) < Length {
		c, n, err := br.ReadRune()
		switch {
		case err == nil: // do nothing
		case errors.Is(err, io.EOF):
			return s, nil
		default:
			return nil, fmt.Errorf("couldn't read digits: %w", err)
		}
		switch {
		case c == '0' || c == '1':
			s = append(s, byte(c-'0'))
		case unicode.IsSpace(c): // skip
		default:
			return nil, fmt.Errorf("invalid digit %q at byte %d", c, off)
		}
		off += int64(n)
	}
	return s, nil
}

// String formats the sequence as a string of 0 and 1 characters.
func (s Seq) String() string {
	b := make([]byte, len(s))
	for i, c := range s {
		b[i] = '0' + c
	}
	return string(b)
}

// Digest returns a hex-encoded SHA3-256 fingerprint of the sequence.
// Sequences with equal digits have equal digests.
func Digest(s Seq) string {
	h := sha3.Sum256([]byte(s.String()))
	return hex.EncodeToString(h[:])
}
