package stattest

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/lcong/bitseq"
)

// window is the number of digits compared for each shift.
const window = bitseq.Length / 4

// Shift returns the number of positions i < 5000 where s[i] and s[i+tau]
// differ.
func Shift(s bitseq.Seq, tau int) int {
	var n int
	for i, c := range s[:window] {
		n += int(c ^ s[i+tau])
	}
	return n
}

// Autocorrelation checks every shift τ from 1 through 4999: the number of
// differing positions in the first 5000 digits against the same digits
// shifted by τ must lie strictly between 2326 and 2674. Shifts are
// evaluated concurrently by at most jobs goroutines; if jobs is not
// positive, GOMAXPROCS is used.
func Autocorrelation(ctx context.Context, s bitseq.Seq, jobs int) (bool, error) {
	if err := checkLength(s); err != nil {
		return false, err
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var failed atomic.Int64
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)
	// Chunk the shifts so that each goroutine does a meaningful amount of
	// work between context checks.
	const chunk = 256
	for lo := 1; lo < window; lo += chunk {
		hi := min(lo+chunk, window)
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var n int64
			for tau := lo; tau < hi; tau++ {
				c := Shift(s, tau)
				if c <= 2326 || c >= 2674 {
					n++
				}
			}
			failed.Add(n)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return false, err
	}
	n := failed.Load()
	ok := n == 0
	report(ctx, ok, NameAutocorrelation,
		slog.Int64("failed", n),
		slog.Int("shifts", window-1),
	)
	return ok, nil
}
