// Package storetest provides integration testing facilities for result
// stores.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/zephyrtronium/lcong/store"
)

// Test runs the integration test suite against stores produced by new.
//
// If a store cannot be created without error, new should call t.Fatal.
func Test(ctx context.Context, t *testing.T, new func(context.Context) store.Store) {
	t.Run("load", testLoad(ctx, new(ctx)))
	t.Run("replace", testReplace(ctx, new(ctx)))
	t.Run("records", testRecords(ctx, new(ctx)))
	t.Run("stop", testStop(ctx, new(ctx)))
	t.Run("cancel", testCancel(ctx, new(ctx)))
}

var records = [...]store.Record{
	{
		Key:  store.Key{Source: store.SourceLCG, X0: 1, A: 33, C: 0, M: 251},
		Run:  "1",
		Time: time.Unix(1, 0).UTC(),
		Stats: map[string]bool{
			"monobit":   false,
			"long_runs": true,
		},
		Spectral: []store.Dim{
			{T: 2, V: 15.264337522473747, Merit: 2.91612, Pass: true},
			{T: 3, V: 5, Merit: 2.08573, Pass: true},
		},
	},
	{
		Key:  store.Key{Source: store.SourceLCG, X0: 1, A: 16807, C: 0, M: 1<<31 - 1},
		Run:  "1",
		Time: time.Unix(2, 0).UTC(),
		Stats: map[string]bool{
			"monobit":   true,
			"long_runs": true,
		},
		Spectral: []store.Dim{
			{T: 2, V: 16807.00002974951, Merit: 0.41324, Pass: true},
		},
		Error: "interrupted",
	},
	{
		Key:  store.Key{Source: store.FileSource("fd9f"), X0: 1<<64 - 1, A: 1<<63 + 1, C: 1 << 63, M: 1<<64 - 1},
		Run:  "2",
		Time: time.Unix(3, 0).UTC(),
	},
}

func saveAll(ctx context.Context, t *testing.T, s store.Store) {
	t.Helper()
	for i := range records {
		if err := s.Save(ctx, &records[i]); err != nil {
			t.Fatalf("couldn't save record %v: %v", records[i].Key, err)
		}
	}
}

func testLoad(ctx context.Context, s store.Store) func(t *testing.T) {
	return func(t *testing.T) {
		defer s.Close()
		saveAll(ctx, t, s)
		for i := range records {
			want := &records[i]
			got, err := s.Load(ctx, want.Key)
			if err != nil {
				t.Errorf("couldn't load %v: %v", want.Key, err)
				continue
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("wrong record for %v:\n%s", want.Key, diff)
			}
		}
		missing := []store.Key{
			{Source: store.SourceLCG, X0: 2, A: 33, C: 0, M: 251},
			{Source: store.FileSource("fd9f"), X0: 1, A: 33, C: 0, M: 251},
			{Source: "", X0: 1, A: 33, C: 0, M: 251},
		}
		for _, k := range missing {
			r, err := s.Load(ctx, k)
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("wrong error loading missing %v: want %v, got %v", k, store.ErrNotFound, err)
			}
			if r != nil {
				t.Errorf("got record for missing %v: %+v", k, r)
			}
		}
	}
}

func testReplace(ctx context.Context, s store.Store) func(t *testing.T) {
	return func(t *testing.T) {
		defer s.Close()
		saveAll(ctx, t, s)
		r := records[0]
		r.Run = "3"
		r.Time = time.Unix(4, 0).UTC()
		r.Spectral = []store.Dim{{T: 2, V: 1, Merit: 0.01, Pass: false}}
		r.Error = "replaced"
		if err := s.Save(ctx, &r); err != nil {
			t.Fatalf("couldn't replace record: %v", err)
		}
		got, err := s.Load(ctx, r.Key)
		if err != nil {
			t.Fatalf("couldn't load replaced record: %v", err)
		}
		if diff := cmp.Diff(&r, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("wrong replaced record:\n%s", diff)
		}
		var n int
		for _, err := range s.Records(ctx) {
			if err != nil {
				t.Fatalf("couldn't iterate records: %v", err)
			}
			n++
		}
		if n != len(records) {
			t.Errorf("wrong number of records after replace: want %d, got %d", len(records), n)
		}
	}
}

func testRecords(ctx context.Context, s store.Store) func(t *testing.T) {
	return func(t *testing.T) {
		defer s.Close()
		for _, err := range s.Records(ctx) {
			t.Errorf("got record from empty store (error %v)", err)
		}
		saveAll(ctx, t, s)
		var got []*store.Record
		for r, err := range s.Records(ctx) {
			if err != nil {
				t.Fatalf("couldn't iterate records: %v", err)
			}
			got = append(got, r)
		}
		want := make([]*store.Record, len(records))
		for i := range records {
			want[i] = &records[i]
		}
		opts := []cmp.Option{
			cmpopts.EquateEmpty(),
			cmpopts.SortSlices(func(a, b *store.Record) bool { return a.Time.Before(b.Time) }),
		}
		if diff := cmp.Diff(want, got, opts...); diff != "" {
			t.Errorf("wrong records:\n%s", diff)
		}
	}
}

func testStop(ctx context.Context, s store.Store) func(t *testing.T) {
	return func(t *testing.T) {
		defer s.Close()
		saveAll(ctx, t, s)
		var n int
		for _, err := range s.Records(ctx) {
			if err != nil {
				t.Fatalf("couldn't iterate records: %v", err)
			}
			n++
			break
		}
		if n != 1 {
			t.Errorf("wrong number of records before break: want 1, got %d", n)
		}
		// The store must remain usable after abandoning an iteration.
		if _, err := s.Load(ctx, records[0].Key); err != nil {
			t.Errorf("couldn't load after abandoned iteration: %v", err)
		}
	}
}

func testCancel(ctx context.Context, s store.Store) func(t *testing.T) {
	return func(t *testing.T) {
		defer s.Close()
		saveAll(ctx, t, s)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		var n int
		var got error
		for _, err := range s.Records(ctx) {
			if err != nil {
				got = err
				break
			}
			n++
			cancel()
		}
		if n != 1 {
			t.Errorf("wrong number of records before cancel: want 1, got %d", n)
		}
		if !errors.Is(got, context.Canceled) {
			t.Errorf("wrong error after cancel: want %v, got %v", context.Canceled, got)
		}
	}
}
