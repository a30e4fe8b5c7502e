package stattest

import (
	"context"
	"log/slog"

	"github.com/zephyrtronium/lcong/bitseq"
)

// Monobit checks that the proportion of ones lies strictly between
// 9654/20000 and 10346/20000.
func Monobit(ctx context.Context, s bitseq.Seq) (bool, error) {
	if err := checkLength(s); err != nil {
		return false, err
	}
	var ones int
	for _, c := range s {
		ones += int(c)
	}
	ok := 9654 < ones && ones < 10346
	report(ctx, ok, NameMonobit,
		slog.Float64("ratio", float64(ones)/float64(len(s))),
		slog.Int("ones", ones),
	)
	return ok, nil
}

// Poker divides the sequence into 5000 four-digit groups, counts the
// occurrences of each of the 16 possible groups, and checks that
// X = 16/5000·Σf² − 5000 lies strictly between 1.03 and 57.4.
func Poker(ctx context.Context, s bitseq.Seq) (bool, error) {
	if err := checkLength(s); err != nil {
		return false, err
	}
	var f [16]int
	for j := 0; j+4 <= len(s); j += 4 {
		f[s[j]<<3|s[j+1]<<2|s[j+2]<<1|s[j+3]]++
	}
	var sum int
	for _, n := range f {
		sum += n * n
	}
	x := 16.0/5000.0*float64(sum) - 5000
	ok := 1.03 < x && x < 57.4
	report(ctx, ok, NamePoker, slog.Float64("x", x))
	return ok, nil
}

// run is a maximal block of equal digits.
type run struct {
	digit byte
	n     int
	// edge is whether the run touches either end of the sequence, so that
	// its true length is unknown.
	edge bool
}

// runs splits s into its maximal runs.
func runs(s bitseq.Seq) []run {
	var r []run
	for i := 0; i < len(s); {
		j := i + 1
		for j < len(s) && s[j] == s[i] {
			j++
		}
		r = append(r, run{digit: s[i], n: j - i, edge: i == 0 || j == len(s)})
		i = j
	}
	return r
}

// runIntervals are the inclusive bounds on the number of runs of each
// length. Index 5 is for runs of length 6 up to 33.
var runIntervals = [6][2]int{
	{2267, 2733},
	{1079, 1421},
	{502, 748},
	{223, 402},
	{90, 223},
	{90, 223},
}

// Runs counts the runs of zeros and ones of each length bounded on both
// sides by the other digit, grouping lengths 6 through 33, and checks each
// count against its interval.
func Runs(ctx context.Context, s bitseq.Seq) (bool, error) {
	if err := checkLength(s); err != nil {
		return false, err
	}
	var counts [2][6]int
	for _, r := range runs(s) {
		if r.edge || r.n > 33 {
			continue
		}
		counts[r.digit][min(r.n, 6)-1]++
	}
	ok := true
	for d := range counts {
		for k, n := range counts[d] {
			iv := runIntervals[k]
			if n < iv[0] || n > iv[1] {
				ok = false
			}
		}
	}
	report(ctx, ok, NameRuns,
		slog.Any("zeros", counts[0]),
		slog.Any("ones", counts[1]),
	)
	return ok, nil
}

// LongRuns checks that there is no run of 34 or more equal digits anywhere
// in the sequence, including at its ends.
func LongRuns(ctx context.Context, s bitseq.Seq) (bool, error) {
	if err := checkLength(s); err != nil {
		return false, err
	}
	var longest run
	for _, r := range runs(s) {
		if r.n > longest.n {
			longest = r
		}
	}
	ok := longest.n < 34
	report(ctx, ok, NameLongRuns,
		slog.Int("longest", longest.n),
		slog.Int("digit", int(longest.digit)),
	)
	return ok, nil
}
