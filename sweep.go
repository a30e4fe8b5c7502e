package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/bits"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/lcong/bitseq"
	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/metrics"
	"github.com/zephyrtronium/lcong/spectral"
	"github.com/zephyrtronium/lcong/stattest"
	"github.com/zephyrtronium/lcong/store"
)

// Sweep evaluates every generator in a parameter space.
type Sweep struct {
	X0      uint64
	A, C, M lcg.Range
	// Dims is the highest spectral test dimension.
	Dims int
	// Jobs is the number of parameter sets evaluated concurrently.
	Jobs int
	// Force evaluates parameter sets that already have stored results.
	Force bool
	// Merit is the figure of merit threshold for spectral passes.
	Merit float64
	// Limits bounds each spectral test.
	Limits spectral.Options
	// Timeout bounds the time spent on each parameter set. Zero means none.
	Timeout time.Duration
	// Bits, if not nil, is a sequence given to the statistical tests in
	// place of each generator's own output.
	Bits bitseq.Seq
	// Print is the number of generator outputs to write to Out for each
	// parameter set.
	Print int
	Out   io.Writer

	Store   store.Store
	Metrics *metrics.Metrics

	// outMu serializes writes to Out.
	outMu sync.Mutex
}

// Params iterates over the parameter sets of the sweep in order of m, then
// c, then a.
func (s *Sweep) Params() iter.Seq[lcg.Params] {
	return func(yield func(lcg.Params) bool) {
		for m := range s.M.All() {
			for c := range s.C.All() {
				for a := range s.A.All() {
					if !yield(lcg.Params{X0: s.X0, A: a, C: c, M: m}) {
						return
					}
				}
			}
		}
	}
}

// Len returns the number of parameter sets in the sweep, saturating at the
// largest uint64.
func (s *Sweep) Len() uint64 {
	n := s.A.Len()
	for _, k := range []uint64{s.C.Len(), s.M.Len()} {
		hi, lo := bits.Mul64(n, k)
		if hi != 0 {
			return ^uint64(0)
		}
		n = lo
	}
	return n
}

// Run evaluates all parameter sets and saves their results. Failures of
// individual parameter sets are recorded and joined into the returned error
// without stopping the sweep; storage failures and cancellation stop it.
func (s *Sweep) Run(ctx context.Context) error {
	run := uuid.New().String()
	source := store.SourceLCG
	var stats stattest.Results
	if s.Bits != nil {
		digest := bitseq.Digest(s.Bits)
		source = store.FileSource(digest)
		var err error
		stats, err = stattest.Suite(ctx, s.Bits, s.Jobs)
		if err != nil {
			return fmt.Errorf("couldn't run statistical tests on input: %w", err)
		}
		slog.InfoContext(ctx, "statistical tests on input",
			slog.String("digest", digest),
			slog.Int("passed", stats.Passes()),
		)
	}
	total := s.Len()
	slog.InfoContext(ctx, "sweep",
		slog.String("run", run),
		slog.Uint64("x0", s.X0),
		slog.String("a", s.A.String()),
		slog.String("c", s.C.String()),
		slog.String("m", s.M.String()),
		slog.Uint64("sets", total),
		slog.Bool("force", s.Force),
	)
	if !s.Force {
		slog.InfoContext(ctx, "skipping parameters with stored successful results")
	}

	var (
		mu   sync.Mutex
		errs []error
		done atomic.Uint64
	)
	progress := rate.Sometimes{Interval: time.Second}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(max(s.Jobs, 1))
	for p := range s.Params() {
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			defer func() {
				n := done.Add(1)
				s.Metrics.SetsPending.Observe(float64(total - n))
				progress.Do(func() {
					slog.InfoContext(gctx, "sweep progress", slog.Uint64("done", n), slog.Uint64("sets", total))
				})
			}()
			key := store.KeyFor(source, p)
			if !s.Force {
				old, err := s.Store.Load(gctx, key)
				switch {
				case err == nil && old.Error == "":
					slog.DebugContext(gctx, "skip", slog.String("key", key.String()))
					s.Metrics.SetsSkipped.Observe(1)
					return nil
				case err == nil:
					slog.InfoContext(gctx, "retry failed", slog.String("key", key.String()), slog.String("err", old.Error))
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
			}
			rec, err := s.evaluate(gctx, key, run, stats)
			if gctx.Err() != nil {
				// Interrupted, not finished. Don't record partial work.
				return gctx.Err()
			}
			if err != nil {
				slog.ErrorContext(gctx, "evaluation failed", slog.String("key", key.String()), slog.Any("err", err))
				s.Metrics.SetsFailed.Observe(1)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%v: %w", p, err))
				mu.Unlock()
			} else {
				s.Metrics.SetsEvaluated.Observe(1)
			}
			if err := s.Store.Save(gctx, rec); err != nil {
				return err
			}
			return nil
		})
	}
	err := group.Wait()
	s.Metrics.SetsPending.Observe(float64(total - done.Load()))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "sweep done", slog.String("run", run), slog.Uint64("sets", done.Load()), slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// evaluate runs the statistical and spectral tests for one parameter set.
// If stats is nil, the statistical tests run on the generator's output.
// The returned record is valid even when the error is not nil.
func (s *Sweep) evaluate(ctx context.Context, key store.Key, run string, stats stattest.Results) (*store.Record, error) {
	p := key.Params()
	rec := &store.Record{Key: key, Run: run, Time: time.Now()}
	fail := func(err error) (*store.Record, error) {
		rec.Error = err.Error()
		return rec, err
	}
	if err := p.Validate(); err != nil {
		return fail(err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if s.Print > 0 {
		s.print(p)
	}

	if stats == nil {
		var err error
		stats, err = stattest.Suite(ctx, bitseq.FromLCG(p, bitseq.Length), 1)
		if err != nil {
			return fail(err)
		}
	}
	rec.Stats = stats
	for name, ok := range stats {
		if ok {
			s.Metrics.StatPasses.Observe(1, name)
		}
	}
	if stats.Passes() == len(stattest.Names) {
		slog.InfoContext(ctx, "statistical tests passed", slog.String("params", p.String()))
	} else {
		slog.InfoContext(ctx, "statistical tests failed", slog.String("params", p.String()), slog.Int("passed", stats.Passes()))
	}

	start := time.Now()
	res, err := spectral.Run(ctx, p.A, p.M, s.Dims, s.Limits)
	s.Metrics.SpectralLatency.Observe(time.Since(start).Seconds(), strconv.Itoa(s.Dims))
	if res != nil {
		rec.Spectral = dims(res, s.Merit)
		for _, d := range rec.Spectral {
			s.Metrics.Merit.Observe(d.Merit, strconv.Itoa(d.T))
		}
	}
	if err != nil {
		s.Metrics.SpectralFailures.Observe(1)
		return fail(fmt.Errorf("couldn't complete spectral test: %w", err))
	}
	slog.InfoContext(ctx, "spectral test", slog.String("params", p.String()), slog.Any("dims", rec.Spectral))
	return rec, nil
}

// dims converts a spectral test result to stored form, judging each
// dimension against the merit threshold.
func dims(res *spectral.Result, merit float64) []store.Dim {
	r := make([]store.Dim, 0, res.Max())
	for t, v := range res.All() {
		mu := spectral.Merit(v, t, res.M)
		r = append(r, store.Dim{T: t, V: v, Merit: mu, Pass: mu >= merit})
	}
	return r
}

func (s *Sweep) print(p lcg.Params) {
	xs := lcg.Generate(p, s.Print)
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.Out, "%v:", p)
	for _, x := range xs {
		fmt.Fprintf(s.Out, " %d", x)
	}
	fmt.Fprintln(s.Out)
}
