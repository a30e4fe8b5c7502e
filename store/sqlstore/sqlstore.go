// Package sqlstore implements result storage in an SQLite database.
package sqlstore

import (
	"context"
	_ "embed"
	"fmt"
	"iter"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/lcong/store"
)

// Store is a result store backed by SQLite.
type Store struct {
	db *sqlitex.Pool
}

var _ store.Store = (*Store)(nil)

//go:embed schema.sql
var schemaSQL string

// Open returns a store within the given database, creating its tables if
// needed. The store takes ownership of db and closes it on Close.
func Open(ctx context.Context, db *sqlitex.Pool) (*Store, error) {
	conn, err := db.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection from pool: %w", err)
	}
	defer db.Put(conn)
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return nil, fmt.Errorf("couldn't run migration: %w", err)
	}
	return &Store{db: db}, nil
}

// RecommendedPrep is an [sqlitex.ConnPrepareFunc] that sets options
// recommended for a result store.
func RecommendedPrep(conn *sqlite.Conn) error {
	// These need to be run per connection.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			return fmt.Errorf("couldn't run %s: %w", p, err)
		}
	}
	return nil
}

// Save records r, replacing any existing record with its key.
func (s *Store) Save(ctx context.Context, r *store.Record) (err error) {
	v, err := store.Encode(r)
	if err != nil {
		return err
	}
	conn, err := s.db.Take(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get connection to save record: %w", err)
	}
	defer s.db.Put(conn)
	defer sqlitex.Transaction(conn)(&err)

	const upsert = `INSERT INTO results(source, x0, a, c, m, run, time, record)
		VALUES (:source, :x0, :a, :c, :m, :run, :time, :record)
		ON CONFLICT (source, x0, a, c, m) DO UPDATE SET run=excluded.run, time=excluded.time, record=excluded.record`
	st, err := conn.Prepare(upsert)
	if err != nil {
		return fmt.Errorf("couldn't prepare record upsert: %w", err)
	}
	defer st.Reset()
	bindKey(st, r.Key)
	st.SetText(":run", r.Run)
	st.SetInt64(":time", r.Time.UnixNano())
	st.SetBytes(":record", v)
	if _, err := st.Step(); err != nil {
		return fmt.Errorf("couldn't save record for %v: %w", r.Key, err)
	}
	return nil
}

// Load retrieves the record with the given key.
func (s *Store) Load(ctx context.Context, key store.Key) (*store.Record, error) {
	conn, err := s.db.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to load record: %w", err)
	}
	defer s.db.Put(conn)
	const sel = `SELECT record FROM results WHERE source=:source AND x0=:x0 AND a=:a AND c=:c AND m=:m`
	st, err := conn.Prepare(sel)
	if err != nil {
		return nil, fmt.Errorf("couldn't prepare record select: %w", err)
	}
	defer st.Reset()
	bindKey(st, key)
	ok, err := st.Step()
	if err != nil {
		return nil, fmt.Errorf("couldn't load record for %v: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, key)
	}
	return store.Decode(column(st, 0))
}

// Records iterates over all records ordered by source and parameters.
func (s *Store) Records(ctx context.Context) iter.Seq2[*store.Record, error] {
	return func(yield func(*store.Record, error) bool) {
		conn, err := s.db.Take(ctx)
		if err != nil {
			yield(nil, fmt.Errorf("couldn't get connection to list records: %w", err))
			return
		}
		defer s.db.Put(conn)
		// The parameter columns hold signed reinterpretations, so this is
		// not numeric order for values of 2^63 and above.
		const sel = `SELECT record FROM results ORDER BY source, x0, a, c, m`
		st, err := conn.Prepare(sel)
		if err != nil {
			yield(nil, fmt.Errorf("couldn't prepare record list: %w", err))
			return
		}
		defer st.Reset()
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, fmt.Errorf("couldn't list records: %w", err))
				return
			}
			ok, err := st.Step()
			if err != nil {
				yield(nil, fmt.Errorf("couldn't list records: %w", err))
				return
			}
			if !ok {
				return
			}
			r, err := store.Decode(column(st, 0))
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func bindKey(st *sqlite.Stmt, k store.Key) {
	st.SetText(":source", k.Source)
	st.SetInt64(":x0", int64(k.X0))
	st.SetInt64(":a", int64(k.A))
	st.SetInt64(":c", int64(k.C))
	st.SetInt64(":m", int64(k.M))
}

func column(st *sqlite.Stmt, col int) []byte {
	b := make([]byte, st.ColumnLen(col))
	st.ColumnBytes(col, b)
	return b
}
