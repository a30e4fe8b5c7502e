// Package kvstore implements result storage in a Badger key-value database.
package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/zephyrtronium/lcong/store"
)

/*
Record key structure:
'r' × Source length × Source × X0 × A × C × M
- Source length is a big-endian uint16.
- X0, A, C, and M are big-endian uint64, so records with the same source
	iterate in parameter order.
The value is the encoded record.
*/

const recordTag = 'r'

// Store is a result store backed by Badger.
type Store struct {
	db *badger.DB
}

var _ store.Store = (*Store)(nil)

// New returns a store using the given database. The store takes ownership
// of db and closes it on Close.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens or creates a Badger database at dir. flags is a Badger
// superflag string, e.g. "numversionstokeep=1", applied over the defaults.
func Open(dir, flags string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	// Badger logs a lot of noise at info level.
	opts = opts.WithLogger(nil)
	opts = opts.WithCompression(options.None)
	db, err := badger.Open(opts.FromSuperFlag(flags))
	if err != nil {
		return nil, fmt.Errorf("couldn't open badger db at %s: %w", dir, err)
	}
	return New(db), nil
}

func appendKey(b []byte, k store.Key) []byte {
	b = append(b, recordTag)
	b = binary.BigEndian.AppendUint16(b, uint16(len(k.Source)))
	b = append(b, k.Source...)
	b = binary.BigEndian.AppendUint64(b, k.X0)
	b = binary.BigEndian.AppendUint64(b, k.A)
	b = binary.BigEndian.AppendUint64(b, k.C)
	b = binary.BigEndian.AppendUint64(b, k.M)
	return b
}

// Save records r, replacing any existing record with its key.
func (s *Store) Save(ctx context.Context, r *store.Record) error {
	if len(r.Key.Source) > 0xffff {
		return fmt.Errorf("couldn't save record: source %.32q... is too long", r.Key.Source)
	}
	v, err := store.Encode(r)
	if err != nil {
		return err
	}
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()
	if err := batch.Set(appendKey(nil, r.Key), v); err != nil {
		return fmt.Errorf("couldn't save record for %v: %w", r.Key, err)
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("couldn't commit record for %v: %w", r.Key, err)
	}
	return nil
}

// Load retrieves the record with the given key.
func (s *Store) Load(ctx context.Context, key store.Key) (*store.Record, error) {
	var v []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(appendKey(nil, key))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("couldn't load record for %v: %w", key, err)
	}
	return store.Decode(v)
}

// Records iterates over all records in key order.
func (s *Store) Records(ctx context.Context) iter.Seq2[*store.Record, error] {
	return func(yield func(*store.Record, error) bool) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{recordTag}
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(opts)
			defer it.Close()
			var v []byte
			for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var err error
				v, err = it.Item().ValueCopy(v[:0])
				if err != nil {
					return fmt.Errorf("couldn't read record value: %w", err)
				}
				r, err := store.Decode(v)
				if !yield(r, err) || err != nil {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, fmt.Errorf("couldn't iterate records: %w", err))
		}
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
