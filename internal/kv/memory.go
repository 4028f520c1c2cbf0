package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/diamond/internal/ir"
)

// Memory is an in-process Backend.
//
// Committed state is a plain map. A transaction buffers its writes in an
// overlay and applies them to the map on Commit; Rollback drops the overlay.
// A one-slot semaphore admits a single transaction at a time.
type Memory struct {
	sem    chan struct{}
	mu     sync.Mutex // guards data and closed
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		sem:  make(chan struct{}, 1),
		data: make(map[string][]byte),
	}
}

// Begin waits for exclusive access and opens a transaction.
func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		<-m.sem
		return nil, ErrClosed
	}

	return &memTx{
		m:       m,
		writes:  make(map[string][]byte),
		cleared: make(map[string]bool),
	}, nil
}

// Close marks the backend closed. Open transactions may still finish.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of committed slots across all regions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func slotKey(region ir.RegionID, key []byte) string {
	return string(region[:]) + string(key)
}

type memTx struct {
	m       *Memory
	writes  map[string][]byte
	cleared map[string]bool
	done    bool
}

func (tx *memTx) Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	k := slotKey(region, key)
	if tx.cleared[k] {
		return nil, false, nil
	}
	if v, ok := tx.writes[k]; ok {
		return clone(v), true, nil
	}

	tx.m.mu.Lock()
	v, ok := tx.m.data[k]
	tx.m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (tx *memTx) Store(ctx context.Context, region ir.RegionID, key, value []byte) error {
	if tx.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}

	k := slotKey(region, key)
	delete(tx.cleared, k)
	tx.writes[k] = clone(value)
	return nil
}

func (tx *memTx) Clear(ctx context.Context, region ir.RegionID, key []byte) error {
	if tx.done {
		return ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	k := slotKey(region, key)
	delete(tx.writes, k)
	tx.cleared[k] = true
	return nil
}

func (tx *memTx) Scan(ctx context.Context, region ir.RegionID) ([]Entry, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := string(region[:])
	merged := make(map[string][]byte)

	tx.m.mu.Lock()
	for k, v := range tx.m.data {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	tx.m.mu.Unlock()

	for k, v := range tx.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range tx.cleared {
		delete(merged, k)
	}

	entries := make([]Entry, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, Entry{
			Key:   []byte(k[len(prefix):]),
			Value: clone(v),
		})
	}
	SortEntries(entries)
	return entries, nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	defer func() { <-tx.m.sem }()

	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if tx.m.closed {
		return ErrClosed
	}
	for k := range tx.cleared {
		delete(tx.m.data, k)
	}
	for k, v := range tx.writes {
		tx.m.data[k] = v
	}
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	<-tx.m.sem
	return nil
}
