package testutil

import (
	"context"
	"sync/atomic"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

// CountingBackend wraps a kv.Backend and counts every operation made through
// it, so tests can assert that a code path never touched storage.
type CountingBackend struct {
	kv.Backend

	begins  atomic.Int64
	loads   atomic.Int64
	stores  atomic.Int64
	clears  atomic.Int64
	scans   atomic.Int64
	commits atomic.Int64
}

// NewCountingBackend wraps b.
func NewCountingBackend(b kv.Backend) *CountingBackend {
	return &CountingBackend{Backend: b}
}

// Begin implements kv.Backend.
func (c *CountingBackend) Begin(ctx context.Context) (kv.Tx, error) {
	c.begins.Add(1)
	tx, err := c.Backend.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &countingTx{Tx: tx, c: c}, nil
}

// Begins returns the number of transactions opened.
func (c *CountingBackend) Begins() int64 { return c.begins.Load() }

// Loads returns the number of slot reads.
func (c *CountingBackend) Loads() int64 { return c.loads.Load() }

// Writes returns the number of slot stores and clears.
func (c *CountingBackend) Writes() int64 { return c.stores.Load() + c.clears.Load() }

// Scans returns the number of region scans.
func (c *CountingBackend) Scans() int64 { return c.scans.Load() }

// Commits returns the number of committed transactions.
func (c *CountingBackend) Commits() int64 { return c.commits.Load() }

// Touched reports whether any operation reached the backend.
func (c *CountingBackend) Touched() bool {
	return c.Begins()+c.Loads()+c.Writes()+c.Scans() > 0
}

type countingTx struct {
	kv.Tx
	c *CountingBackend
}

func (t *countingTx) Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error) {
	t.c.loads.Add(1)
	return t.Tx.Load(ctx, region, key)
}

func (t *countingTx) Store(ctx context.Context, region ir.RegionID, key, value []byte) error {
	t.c.stores.Add(1)
	return t.Tx.Store(ctx, region, key, value)
}

func (t *countingTx) Clear(ctx context.Context, region ir.RegionID, key []byte) error {
	t.c.clears.Add(1)
	return t.Tx.Clear(ctx, region, key)
}

func (t *countingTx) Scan(ctx context.Context, region ir.RegionID) ([]kv.Entry, error) {
	t.c.scans.Add(1)
	return t.Tx.Scan(ctx, region)
}

func (t *countingTx) Commit() error {
	err := t.Tx.Commit()
	if err == nil {
		t.c.commits.Add(1)
	}
	return err
}

// FailingBackend wraps a kv.Backend and returns the configured errors from
// Begin, Load or Commit. A nil field lets the call through. Fields must be
// set while no transaction is in flight.
type FailingBackend struct {
	kv.Backend

	BeginErr  error
	LoadErr   error
	CommitErr error
}

// NewFailingBackend wraps b with no failures configured.
func NewFailingBackend(b kv.Backend) *FailingBackend {
	return &FailingBackend{Backend: b}
}

// Begin implements kv.Backend.
func (f *FailingBackend) Begin(ctx context.Context) (kv.Tx, error) {
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	tx, err := f.Backend.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, loadErr: f.LoadErr, commitErr: f.CommitErr}, nil
}

// failingTx captures the configured errors when the transaction opens.
// A failed Commit leaves the inner transaction open for Rollback.
type failingTx struct {
	kv.Tx
	loadErr   error
	commitErr error
}

func (t *failingTx) Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error) {
	if t.loadErr != nil {
		return nil, false, t.loadErr
	}
	return t.Tx.Load(ctx, region, key)
}

func (t *failingTx) Commit() error {
	if t.commitErr != nil {
		return t.commitErr
	}
	return t.Tx.Commit()
}
