package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

// Tx is a kv.Tx backed by one sql.Tx.
type Tx struct {
	tx   *sql.Tx
	done bool
}

var _ kv.Tx = (*Tx)(nil)

// Load reads one slot. Missing slots return ok=false.
func (t *Tx) Load(ctx context.Context, region ir.RegionID, key []byte) ([]byte, bool, error) {
	if t.done {
		return nil, false, kv.ErrTxDone
	}

	var value []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT value FROM slots
		WHERE region = ? AND key = ?
	`, region[:], key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load slot: %w", err)
	}
	return value, true, nil
}

// Store upserts one slot.
func (t *Tx) Store(ctx context.Context, region ir.RegionID, key, value []byte) error {
	if t.done {
		return kv.ErrTxDone
	}
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO slots (region, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(region, key) DO UPDATE SET value = excluded.value
	`, region[:], key, value)
	if err != nil {
		return fmt.Errorf("store slot: %w", err)
	}
	return nil
}

// Clear deletes one slot. Deleting a missing slot is not an error.
func (t *Tx) Clear(ctx context.Context, region ir.RegionID, key []byte) error {
	if t.done {
		return kv.ErrTxDone
	}

	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM slots
		WHERE region = ? AND key = ?
	`, region[:], key)
	if err != nil {
		return fmt.Errorf("clear slot: %w", err)
	}
	return nil
}

// Scan returns all slots of a region ordered by key.
// BLOB comparison in SQLite is memcmp, which matches kv's byte ordering.
func (t *Tx) Scan(ctx context.Context, region ir.RegionID) ([]kv.Entry, error) {
	if t.done {
		return nil, kv.ErrTxDone
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT key, value FROM slots
		WHERE region = ?
		ORDER BY key ASC
	`, region[:])
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	entries := []kv.Entry{}
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return entries, nil
}

// Commit commits the underlying sql.Tx.
func (t *Tx) Commit() error {
	if t.done {
		return kv.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. No-op once finished.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
