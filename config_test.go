package main_test

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	main "github.com/zephyrtronium/lcong"
)

//go:embed example.toml
var exampleToml string

func eqcase[T comparable](t *testing.T, name string, val T, eq T) {
	t.Helper()
	if val != eq {
		t.Errorf("wrong %s: want %#v, got %#v", name, eq, val)
	}
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("ROOT", "/var/lcong")
	cfg, _, err := main.Load(context.Background(), strings.NewReader(exampleToml))
	if err != nil {
		t.Fatalf("failed to load example.toml: %v", err)
	}

	eqcase(t, "DB.KV", cfg.DB.KV, "")
	eqcase(t, "DB.KVFlag", cfg.DB.KVFlag, "")
	eqcase(t, "DB.SQL", cfg.DB.SQL, "file:/var/lcong/lcong.sqlite3")
	eqcase(t, "Sweep.X0", cfg.Sweep.X0, "1")
	eqcase(t, "Sweep.A", cfg.Sweep.A, "3141592621")
	eqcase(t, "Sweep.C", cfg.Sweep.C, "0:4")
	eqcase(t, "Sweep.M", cfg.Sweep.M, "10**10")
	eqcase(t, "Sweep.Dims", cfg.Sweep.Dims, 6)
	eqcase(t, "Sweep.Jobs", cfg.Sweep.Jobs, 8)
	eqcase(t, "Sweep.Force", cfg.Sweep.Force, false)
	eqcase(t, "Sweep.Input", cfg.Sweep.Input, "")
	eqcase(t, "Thresholds.Merit", cfg.Thresholds.Merit, 0.1)
	eqcase(t, "Limits.Reduce", cfg.Limits.Reduce, 0)
	eqcase(t, "Limits.Search", cfg.Limits.Search, 1<<32)
	eqcase(t, "Limits.Timeout", cfg.Limits.Timeout, 60.5)
	eqcase(t, "HTTP.Listen", cfg.HTTP.Listen, ":4959")
	eqcase(t, "HTTP.Cache", cfg.HTTP.Cache, 256)

	opts := cfg.Limits.Options()
	eqcase(t, "Options.MaxReduce", opts.MaxReduce, 0)
	eqcase(t, "Options.MaxSearch", opts.MaxSearch, 1<<32)
}

func TestDefaultConfig(t *testing.T) {
	cfg, _, err := main.Load(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("failed to load empty config: %v", err)
	}
	eqcase(t, "Sweep.X0", cfg.Sweep.X0, "1")
	eqcase(t, "Sweep.A", cfg.Sweep.A, "3141592621")
	eqcase(t, "Sweep.C", cfg.Sweep.C, "1")
	eqcase(t, "Sweep.M", cfg.Sweep.M, "10**10")
	eqcase(t, "Sweep.Dims", cfg.Sweep.Dims, 6)
	eqcase(t, "Sweep.Jobs", cfg.Sweep.Jobs, 4)
	eqcase(t, "Thresholds.Merit", cfg.Thresholds.Merit, 0.1)
	eqcase(t, "HTTP.Cache", cfg.HTTP.Cache, 256*4)
}

func TestBadConfig(t *testing.T) {
	_, _, err := main.Load(context.Background(), strings.NewReader("[sweep]\ndims = 'six'\n"))
	if err == nil {
		t.Errorf("no error for mistyped config")
	}
}
