// Package boltstore provides a bbolt-backed kv.Backend.
//
// Each region is one top-level bucket named by the 32 region bytes, so a
// region's keys are physically grouped and a bucket scan is a region scan.
// Every kv.Tx is a writable bbolt transaction; bbolt itself allows a single
// writer, and Begin waits for it while honouring ctx.
package boltstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

// Store provides a bbolt-backed slot store.
type Store struct {
	db  *bbolt.DB
	sem chan struct{}
}

var _ kv.Backend = (*Store)(nil)

// Open opens a bbolt-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	return &Store{db: db, sem: make(chan struct{}, 1)}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin opens a writable transaction.
func (s *Store) Begin(ctx context.Context) (kv.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}

	tx, err := s.db.Begin(true)
	if err != nil {
		<-s.sem
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, release: func() { <-s.sem }}, nil
}

// Tx is a kv.Tx backed by a writable bbolt transaction.
type Tx struct {
	tx      *bbolt.Tx
	release func()
	done    bool
}

var _ kv.Tx = (*Tx)(nil)

// Load reads one slot. bbolt values are only valid for the life of the
// transaction, so the value is copied.
func (t *Tx) Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error) {
	if err := t.check(ctx); err != nil {
		return nil, false, err
	}

	bucket := t.tx.Bucket(region[:])
	if bucket == nil {
		return nil, false, nil
	}
	v := bucket.Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Store writes one slot, creating the region bucket on first use.
func (t *Tx) Store(ctx context.Context, region ir.RegionID, key, value []byte) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}

	bucket, err := t.tx.CreateBucketIfNotExists(region[:])
	if err != nil {
		return fmt.Errorf("create region bucket: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	if err := bucket.Put(key, value); err != nil {
		return fmt.Errorf("store slot: %w", err)
	}
	return nil
}

// Clear deletes one slot.
func (t *Tx) Clear(ctx context.Context, region ir.RegionID, key []byte) error {
	if err := t.check(ctx); err != nil {
		return err
	}

	bucket := t.tx.Bucket(region[:])
	if bucket == nil {
		return nil
	}
	if err := bucket.Delete(key); err != nil {
		return fmt.Errorf("clear slot: %w", err)
	}
	return nil
}

// Scan returns every slot of a region. bbolt iterates buckets in byte order.
func (t *Tx) Scan(ctx context.Context, region ir.RegionID) ([]kv.Entry, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	entries := []kv.Entry{}
	bucket := t.tx.Bucket(region[:])
	if bucket == nil {
		return entries, nil
	}
	err := bucket.ForEach(func(k, v []byte) error {
		entries = append(entries, kv.Entry{
			Key:   append([]byte(nil), k...),
			Value: append([]byte{}, v...),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan region: %w", err)
	}
	return entries, nil
}

// Commit writes the transaction to disk.
func (t *Tx) Commit() error {
	if t.done {
		return kv.ErrTxDone
	}
	t.done = true
	defer t.release()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. No-op once finished.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.release()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (t *Tx) check(ctx context.Context) error {
	if t.done {
		return kv.ErrTxDone
	}
	return ctx.Err()
}
