package kvstore_test

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/zephyrtronium/lcong/store"
	"github.com/zephyrtronium/lcong/store/kvstore"
	"github.com/zephyrtronium/lcong/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Test(context.Background(), t, func(ctx context.Context) store.Store {
		db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			t.Fatal(err)
		}
		return kvstore.New(db)
	})
}

func TestOpenDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := kvstore.Open(dir, "numversionstokeep=1")
	if err != nil {
		t.Fatalf("couldn't open: %v", err)
	}
	r := &store.Record{Key: store.Key{Source: store.SourceLCG, X0: 1, A: 3, C: 0, M: 31}, Error: "x"}
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("couldn't save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("couldn't close: %v", err)
	}
	s, err = kvstore.Open(dir, "")
	if err != nil {
		t.Fatalf("couldn't reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Load(ctx, r.Key)
	if err != nil {
		t.Fatalf("couldn't load after reopen: %v", err)
	}
	if got.Error != "x" {
		t.Errorf("wrong error field after reopen: want %q, got %q", "x", got.Error)
	}
}
