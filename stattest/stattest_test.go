package stattest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/lcong/bitseq"
	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/stattest"
)

func seq(t *testing.T, digits string) bitseq.Seq {
	t.Helper()
	s, err := bitseq.Read(strings.NewReader(digits))
	if err != nil {
		t.Fatalf("couldn't read digits: %v", err)
	}
	return s
}

func TestChecks(t *testing.T) {
	type check struct {
		name string
		f    func(context.Context, bitseq.Seq) (bool, error)
	}
	checks := []check{
		{stattest.NameMonobit, stattest.Monobit},
		{stattest.NamePoker, stattest.Poker},
		{stattest.NameRuns, stattest.Runs},
		{stattest.NameLongRuns, stattest.LongRuns},
		{stattest.NameAutocorrelation, func(ctx context.Context, s bitseq.Seq) (bool, error) {
			return stattest.Autocorrelation(ctx, s, 4)
		}},
	}
	cases := []struct {
		name string
		s    bitseq.Seq
		want stattest.Results
	}{
		{
			name: "good",
			s:    bitseq.FromLCG(lcg.Params{X0: 1, A: 1103515245, C: 12345, M: 1<<31 - 1}, bitseq.Length),
			want: stattest.Results{
				stattest.NameMonobit:         true,
				stattest.NamePoker:           true,
				stattest.NameRuns:            true,
				stattest.NameLongRuns:        true,
				stattest.NameAutocorrelation: true,
			},
		},
		{
			name: "short-period",
			s:    bitseq.FromLCG(lcg.Params{X0: 1, A: 33, C: 0, M: 251}, bitseq.Length),
			want: stattest.Results{
				stattest.NameMonobit:         false,
				stattest.NamePoker:           false,
				stattest.NameRuns:            false,
				stattest.NameLongRuns:        true,
				stattest.NameAutocorrelation: false,
			},
		},
		{
			name: "zeros",
			s:    seq(t, strings.Repeat("0", bitseq.Length)),
			want: stattest.Results{
				stattest.NameMonobit:         false,
				stattest.NamePoker:           false,
				stattest.NameRuns:            false,
				stattest.NameLongRuns:        false,
				stattest.NameAutocorrelation: false,
			},
		},
		{
			name: "alternating",
			s:    seq(t, strings.Repeat("01", bitseq.Length/2)),
			want: stattest.Results{
				stattest.NameMonobit:         true,
				stattest.NamePoker:           false,
				stattest.NameRuns:            false,
				stattest.NameLongRuns:        true,
				stattest.NameAutocorrelation: false,
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			got := make(stattest.Results)
			for _, k := range checks {
				ok, err := k.f(ctx, c.s)
				if err != nil {
					t.Fatalf("%s: unexpected error: %v", k.name, err)
				}
				got[k.name] = ok
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("wrong results:\n%s", diff)
			}
			suite, err := stattest.Suite(ctx, c.s, 2)
			if err != nil {
				t.Fatalf("suite failed: %v", err)
			}
			if diff := cmp.Diff(c.want, suite); diff != "" {
				t.Errorf("suite disagrees with individual checks:\n%s", diff)
			}
		})
	}
}

func TestLength(t *testing.T) {
	ctx := context.Background()
	s := seq(t, strings.Repeat("01", 100))
	fs := map[string]func(context.Context, bitseq.Seq) (bool, error){
		stattest.NameMonobit:  stattest.Monobit,
		stattest.NamePoker:    stattest.Poker,
		stattest.NameRuns:     stattest.Runs,
		stattest.NameLongRuns: stattest.LongRuns,
	}
	for name, f := range fs {
		if _, err := f(ctx, s); !errors.Is(err, stattest.ErrLength) {
			t.Errorf("%s: wrong error: want %v, got %v", name, stattest.ErrLength, err)
		}
	}
	if _, err := stattest.Autocorrelation(ctx, s, 1); !errors.Is(err, stattest.ErrLength) {
		t.Errorf("autocorrelation: wrong error: want %v, got %v", stattest.ErrLength, err)
	}
	if _, err := stattest.Suite(ctx, s, 1); !errors.Is(err, stattest.ErrLength) {
		t.Errorf("suite: wrong error: want %v, got %v", stattest.ErrLength, err)
	}
}

func TestShift(t *testing.T) {
	s := seq(t, strings.Repeat("01", bitseq.Length/2))
	if got := stattest.Shift(s, 1); got != 5000 {
		t.Errorf("wrong count for odd shift: want 5000, got %d", got)
	}
	if got := stattest.Shift(s, 2); got != 0 {
		t.Errorf("wrong count for even shift: want 0, got %d", got)
	}
}

func TestPasses(t *testing.T) {
	r := stattest.Results{"a": true, "b": false, "c": true}
	if got := r.Passes(); got != 2 {
		t.Errorf("wrong passes: want 2, got %d", got)
	}
}

func TestAutocorrelationCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := bitseq.FromLCG(lcg.Params{X0: 1, A: 1103515245, C: 12345, M: 1<<31 - 1}, bitseq.Length)
	if _, err := stattest.Autocorrelation(ctx, s, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error: want %v, got %v", context.Canceled, err)
	}
}
