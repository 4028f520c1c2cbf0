package kv

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/roach88/diamond/internal/ir"
)

var (
	ErrTxDone = errors.New("kv: transaction already committed or rolled back")
	ErrClosed = errors.New("kv: backend is closed")
	// ErrEmptyKey is returned by Store when the key has no bytes.
	ErrEmptyKey = errors.New("kv: empty key")
)

// Entry is one slot of a region.
type Entry struct {
	Key   []byte
	Value []byte
}

// Slots is read/write access to the flat slot space.
//
// Load of a missing slot returns (nil, false, nil); absence is not an error.
// Store overwrites and refuses an empty key with ErrEmptyKey.
// Clear of a missing slot is a no-op.
// Scan returns every slot of a region ordered by key bytes.
type Slots interface {
	Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error)
	Store(ctx context.Context, region ir.RegionID, key, value []byte) error
	Clear(ctx context.Context, region ir.RegionID, key []byte) error
	Scan(ctx context.Context, region ir.RegionID) ([]Entry, error)
}

// Tx is a unit of all-or-nothing work over Slots.
//
// Rollback after Commit is a no-op, so callers can always
// `defer tx.Rollback()` the way database/sql transactions are used.
type Tx interface {
	Slots
	Commit() error
	Rollback() error
}

// Backend opens transactions over a slot space.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// SortEntries orders entries by key bytes.
// Backends whose native iteration order differs use it before returning Scan results.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
}

// clone returns a copy of b so callers never alias backend memory.
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
