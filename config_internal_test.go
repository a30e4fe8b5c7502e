package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zephyrtronium/lcong/lcg"
	"github.com/zephyrtronium/lcong/store"
)

func TestLoadStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []struct {
		name string
		cfg  DBCfg
		ok   bool
	}{
		{"kv", DBCfg{KV: filepath.Join(dir, "kv"), KVFlag: "numversionstokeep=1"}, true},
		{"sql", DBCfg{SQL: "file:" + filepath.Join(dir, "lcong.sqlite3")}, true},
		{"none", DBCfg{}, false},
		{"both", DBCfg{KV: filepath.Join(dir, "kv2"), SQL: "file::memory:"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			st, err := loadStore(ctx, c.cfg)
			if !c.ok {
				if err == nil {
					st.Close()
					t.Errorf("no error")
				}
				return
			}
			if err != nil {
				t.Fatalf("couldn't open store: %v", err)
			}
			defer st.Close()
			r := &store.Record{Key: store.Key{Source: store.SourceLCG, X0: 1, A: 3, C: 1, M: 31}, Error: "bocchi"}
			if err := st.Save(ctx, r); err != nil {
				t.Fatalf("couldn't save: %v", err)
			}
			got, err := st.Load(ctx, r.Key)
			if err != nil {
				t.Fatalf("couldn't load: %v", err)
			}
			if got.Error != r.Error {
				t.Errorf("wrong record error: want %q, got %q", r.Error, got.Error)
			}
		})
	}
}

func TestRanges(t *testing.T) {
	cases := []struct {
		name    string
		cfg     SweepCfg
		x0      uint64
		a, c, m lcg.Range
		ok      bool
	}{
		{
			name: "single",
			cfg:  SweepCfg{X0: "1", A: "3141592621", C: "1", M: "10**10"},
			x0:   1,
			a:    lcg.Range{Lo: 3141592621, Hi: 3141592621},
			c:    lcg.Range{Lo: 1, Hi: 1},
			m:    lcg.Range{Lo: 1e10, Hi: 1e10},
			ok:   true,
		},
		{
			name: "ranges",
			cfg:  SweepCfg{X0: "0", A: "2:2**4", C: "0:3", M: "2**31-1:2**31"},
			a:    lcg.Range{Lo: 2, Hi: 16},
			c:    lcg.Range{Lo: 0, Hi: 3},
			m:    lcg.Range{Lo: 1<<31 - 1, Hi: 1 << 31},
			ok:   true,
		},
		{name: "x0", cfg: SweepCfg{X0: "1:2", A: "3", C: "1", M: "31"}},
		{name: "a", cfg: SweepCfg{X0: "1", A: "3:", C: "1", M: "31"}},
		{name: "c", cfg: SweepCfg{X0: "1", A: "3", C: "x", M: "31"}},
		{name: "m", cfg: SweepCfg{X0: "1", A: "3", C: "1", M: "32:31"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			x0, a, cr, m, err := c.cfg.ranges()
			if !c.ok {
				if err == nil {
					t.Errorf("no error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if x0 != c.x0 || a != c.a || cr != c.c || m != c.m {
				t.Errorf("wrong ranges: want %d %v %v %v, got %d %v %v %v", c.x0, c.a, c.c, c.m, x0, a, cr, m)
			}
		})
	}
}

func TestExpandConfig(t *testing.T) {
	env := map[string]string{"ROOT": "/var/lcong", "PORT": "4959"}
	cfg := Config{
		DB:    DBCfg{KV: "$ROOT/kv", SQL: "file:${ROOT}/db"},
		Sweep: SweepCfg{A: "$ROOT", Input: "$ROOT/bits.txt"},
		HTTP:  HTTPCfg{Listen: ":$PORT"},
	}
	expandcfg(&cfg, func(s string) string { return env[s] })
	eqs := []struct {
		name      string
		got, want string
	}{
		{"DB.KV", cfg.DB.KV, "/var/lcong/kv"},
		{"DB.SQL", cfg.DB.SQL, "file:/var/lcong/db"},
		{"Sweep.A", cfg.Sweep.A, "$ROOT"},
		{"Sweep.Input", cfg.Sweep.Input, "/var/lcong/bits.txt"},
		{"HTTP.Listen", cfg.HTTP.Listen, ":4959"},
	}
	for _, c := range eqs {
		if c.got != c.want {
			t.Errorf("wrong %s: want %q, got %q", c.name, c.want, c.got)
		}
	}
}
