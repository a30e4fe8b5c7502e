// Package store defines persistence of sweep results.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/zephyrtronium/lcong/lcg"
)

// ErrNotFound is returned by [Store.Load] when no record has the key.
var ErrNotFound = errors.New("no such record")

// SourceLCG is the Key.Source of records whose statistical tests ran on the
// generator's own output.
const SourceLCG = "lcg"

// FileSource returns the Key.Source for records whose statistical tests ran
// on a bit sequence read from a file with the given digest.
func FileSource(digest string) string {
	return "file:" + digest
}

// Key identifies a result.
type Key struct {
	// Source describes the bit sequence given to the statistical tests.
	// It is SourceLCG or the result of FileSource.
	Source string `json:"source"`
	X0     uint64 `json:"x0"`
	A      uint64 `json:"a"`
	C      uint64 `json:"c"`
	M      uint64 `json:"m"`
}

// KeyFor returns the key for a parameter set and bit source.
func KeyFor(source string, p lcg.Params) Key {
	return Key{Source: source, X0: p.X0, A: p.A, C: p.C, M: p.M}
}

// Params returns the generator parameters of the key.
func (k Key) Params() lcg.Params {
	return lcg.Params{X0: k.X0, A: k.A, C: k.C, M: k.M}
}

func (k Key) String() string {
	return fmt.Sprintf("%s %v", k.Source, k.Params())
}

// Dim is the spectral test result in one dimension.
type Dim struct {
	T     int     `json:"t"`
	V     float64 `json:"v"`
	Merit float64 `json:"merit"`
	Pass  bool    `json:"pass"`
}

// Record is the outcome of evaluating one parameter set.
type Record struct {
	Key Key `json:"key"`
	// Run identifies the sweep that produced the record.
	Run  string    `json:"run,omitzero"`
	Time time.Time `json:"time,omitzero"`
	// Stats maps statistical test names to pass or fail.
	Stats map[string]bool `json:"stats,omitzero"`
	// Spectral holds ν_t for t = 2 up to the highest dimension reached.
	Spectral []Dim `json:"spectral,omitzero"`
	// Error is the reason evaluation stopped early, if it did.
	Error string `json:"error,omitzero"`
}

// Store persists records.
type Store interface {
	// Save records r, replacing any record with the same key.
	Save(ctx context.Context, r *Record) error
	// Load retrieves the record with the given key.
	// If there is none, the error is ErrNotFound.
	Load(ctx context.Context, key Key) (*Record, error)
	// Records iterates over all stored records.
	// Iteration stops after the first error.
	Records(ctx context.Context) iter.Seq2[*Record, error]
	// Close releases the store's resources.
	Close() error
}

// Encode serializes a record for storage.
func Encode(r *Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode record for %v: %w", r.Key, err)
	}
	return b, nil
}

// Decode deserializes a stored record.
func Decode(b []byte) (*Record, error) {
	r := new(Record)
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("couldn't decode record: %w", err)
	}
	return r, nil
}
