package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/spectral"
	"github.com/zephyrtronium/lcong/store"
	"github.com/zephyrtronium/lcong/store/kvstore"
	"github.com/zephyrtronium/lcong/store/sqlstore"
)

// Load loads a sweep configuration from TOML.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	cfg := Config{
		Sweep: SweepCfg{
			X0:   "1",
			A:    "3141592621",
			C:    "1",
			M:    "10**10",
			Dims: 6,
			Jobs: 4,
		},
		Thresholds: Thresholds{Merit: 0.1},
		HTTP:       HTTPCfg{Cache: 1024},
	}
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the TOML configuration.
type Config struct {
	// DB is the table of database connection strings.
	DB DBCfg `toml:"db"`
	// Sweep is the parameter space to explore.
	Sweep SweepCfg `toml:"sweep"`
	// Thresholds is the table of pass criteria.
	Thresholds Thresholds `toml:"thresholds"`
	// Limits bounds the work done for each parameter set.
	Limits Limits `toml:"limits"`
	// HTTP is the configuration for the API server.
	HTTP HTTPCfg `toml:"http"`
}

type DBCfg struct {
	// KV is the directory of a Badger database.
	KV string `toml:"kv"`
	// KVFlag is a Badger superflag string applied to the KV options.
	KVFlag string `toml:"kvflag"`
	// SQL is the DSN of an SQLite database.
	SQL string `toml:"sql"`
}

// SweepCfg describes the parameter sets to evaluate. Parameters are
// expressions like 2**31 - 1, and A, C, and M may also be inclusive ranges
// like 1:100.
type SweepCfg struct {
	X0 string `toml:"x0"`
	A  string `toml:"a"`
	C  string `toml:"c"`
	M  string `toml:"m"`
	// Dims is the highest dimension for the spectral test.
	Dims int `toml:"dims"`
	// Jobs is the number of parameter sets evaluated concurrently.
	Jobs int `toml:"jobs"`
	// Force causes parameter sets to be evaluated even if results are
	// already stored.
	Force bool `toml:"force"`
	// Input is a file of binary digits to use for statistical tests in
	// place of generator output.
	Input string `toml:"input"`
}

type Thresholds struct {
	// Merit is the minimum figure of merit for a spectral dimension to pass.
	Merit float64 `toml:"merit"`
}

type Limits struct {
	// Reduce is the maximum number of reduction steps per dimension.
	Reduce int64 `toml:"reduce"`
	// Search is the maximum number of search steps per dimension.
	Search int64 `toml:"search"`
	// Timeout is the maximum time in seconds to spend on one parameter set.
	// Zero means no limit.
	Timeout float64 `toml:"timeout"`
}

type HTTPCfg struct {
	// Listen is the address on which to serve the API.
	Listen string `toml:"listen"`
	// Cache is the number of spectral test results to keep in memory.
	Cache int `toml:"cache"`
}

// Options returns the spectral test options from the limits.
func (l Limits) Options() spectral.Options {
	return spectral.Options{MaxReduce: l.Reduce, MaxSearch: l.Search}
}

// ranges parses the parameter space of the sweep table.
func (s SweepCfg) ranges() (x0 uint64, a, c, m lcg.Range, err error) {
	x0, err = lcg.ParseValue(s.X0)
	if err != nil {
		return 0, a, c, m, fmt.Errorf("bad x0: %w", err)
	}
	if a, err = lcg.ParseRange(s.A); err != nil {
		return 0, a, c, m, fmt.Errorf("bad a: %w", err)
	}
	if c, err = lcg.ParseRange(s.C); err != nil {
		return 0, a, c, m, fmt.Errorf("bad c: %w", err)
	}
	if m, err = lcg.ParseRange(s.M); err != nil {
		return 0, a, c, m, fmt.Errorf("bad m: %w", err)
	}
	return x0, a, c, m, nil
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func loadStore(ctx context.Context, cfg DBCfg) (store.Store, error) {
	if cfg.KV != "" && cfg.SQL != "" {
		return nil, errors.New("multiple result stores requested; use exactly one")
	}
	if cfg.KV == "" && cfg.SQL == "" {
		return nil, errors.New("no result store requested; use exactly one")
	}

	if cfg.KV != "" {
		slog.DebugContext(ctx, "using kv store", slog.String("path", cfg.KV), slog.String("flags", cfg.KVFlag))
		kv, err := kvstore.Open(cfg.KV, cfg.KVFlag)
		if err != nil {
			return nil, fmt.Errorf("couldn't open kv store: %w", err)
		}
		return kv, nil
	}
	slog.DebugContext(ctx, "using sql store", slog.String("path", cfg.SQL))
	sql, err := sqlitex.NewPool(cfg.SQL, sqlitex.PoolOptions{PrepareConn: sqlstore.RecommendedPrep})
	if err != nil {
		return nil, fmt.Errorf("couldn't open sql store: %w", err)
	}
	st, err := sqlstore.Open(ctx, sql)
	if err != nil {
		sql.Close()
		return nil, err
	}
	return st, nil
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.DB.KV,
		&cfg.DB.KVFlag,
		&cfg.DB.SQL,
		&cfg.Sweep.Input,
		&cfg.HTTP.Listen,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
}
