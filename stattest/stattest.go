// Package stattest implements the FIPS 140-1 style statistical checks on a
// sequence of 20000 binary digits: monobit, poker, runs, long runs, and
// autocorrelation.
//
// Each check is independent of the others and reports only whether the
// sequence passed. Measured statistics are logged: at debug level when a
// check passes, and at warn level when it fails.
package stattest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/lcong/bitseq"
)

// ErrLength is returned when a sequence does not have exactly
// [bitseq.Length] digits.
var ErrLength = errors.New("sequence has wrong length")

// Names of the checks in the order Suite runs them.
const (
	NameMonobit         = "monobit"
	NamePoker           = "poker"
	NameRuns            = "runs"
	NameLongRuns        = "long_runs"
	NameAutocorrelation = "autocorrelation"
)

// Names lists every check name.
var Names = []string{NameMonobit, NamePoker, NameRuns, NameLongRuns, NameAutocorrelation}

// Results maps check names to whether the sequence passed them.
type Results map[string]bool

// Passes returns the number of checks passed.
func (r Results) Passes() int {
	var n int
	for _, ok := range r {
		if ok {
			n++
		}
	}
	return n
}

func checkLength(s bitseq.Seq) error {
	if len(s) != bitseq.Length {
		return fmt.Errorf("%w: %d digits, need %d", ErrLength, len(s), bitseq.Length)
	}
	return nil
}

// Suite runs every check on s. Checks run concurrently; jobs bounds the
// parallelism of the autocorrelation check.
func Suite(ctx context.Context, s bitseq.Seq, jobs int) (Results, error) {
	if err := checkLength(s); err != nil {
		return nil, err
	}
	checks := []struct {
		name string
		f    func(context.Context, bitseq.Seq) (bool, error)
	}{
		{NameMonobit, Monobit},
		{NamePoker, Poker},
		{NameRuns, Runs},
		{NameLongRuns, LongRuns},
		{NameAutocorrelation, func(ctx context.Context, s bitseq.Seq) (bool, error) {
			return Autocorrelation(ctx, s, jobs)
		}},
	}
	r := make(Results, len(checks))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		group.Go(func() error {
			ok, err := c.f(ctx, s)
			if err != nil {
				return fmt.Errorf("%s check failed to run: %w", c.name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			r[c.name] = ok
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// report logs the outcome of a check.
func report(ctx context.Context, ok bool, check string, attrs ...slog.Attr) {
	if ok {
		slog.LogAttrs(ctx, slog.LevelDebug, "check passed", append(attrs, slog.String("check", check))...)
		return
	}
	slog.LogAttrs(ctx, slog.LevelWarn, "check failed", append(attrs, slog.String("check", check))...)
}
