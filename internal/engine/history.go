package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/routing"
)

// historyRegion holds the cut log: one slot per change keyed by its
// big-endian sequence number, plus the counter slot.
var historyRegion = ir.DeriveRegion(routing.HistoryNamespace)

var historyCounterKey = []byte("next")

// CutRecord is one applied routing change.
// Previous is the facet the selector was routed to before, zero if none.
type CutRecord struct {
	Seq      uint64      `json:"seq"`
	Action   CutAction   `json:"action"`
	Selector ir.Selector `json:"selector"`
	Facet    ir.Address  `json:"facet"`
	Previous ir.Address  `json:"previous"`
}

// HistoryRegion returns the region holding the cut log.
func HistoryRegion() ir.RegionID {
	return historyRegion
}

// appendHistory assigns the next sequence number to rec and stores it.
func appendHistory(ctx context.Context, slots kv.Slots, rec CutRecord) (CutRecord, error) {
	seq := uint64(1)
	raw, ok, err := slots.Load(ctx, historyRegion, historyCounterKey)
	if err != nil {
		return rec, fmt.Errorf("history: load counter: %w", err)
	}
	if ok {
		if len(raw) != 8 {
			return rec, fmt.Errorf("history: counter has %d bytes, want 8", len(raw))
		}
		seq = binary.BigEndian.Uint64(raw)
	}
	rec.Seq = seq

	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("history: marshal: %w", err)
	}
	if err := slots.Store(ctx, historyRegion, seqKey(seq), data); err != nil {
		return rec, fmt.Errorf("history: store %d: %w", seq, err)
	}
	if err := slots.Store(ctx, historyRegion, historyCounterKey, seqKey(seq+1)); err != nil {
		return rec, fmt.Errorf("history: store counter: %w", err)
	}
	return rec, nil
}

func seqKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}

// History returns every applied routing change in order.
func (r *Router) History(ctx context.Context) ([]CutRecord, error) {
	var recs []CutRecord
	err := r.view(ctx, func(tx kv.Tx) error {
		entries, err := tx.Scan(ctx, historyRegion)
		if err != nil {
			return fmt.Errorf("history: scan: %w", err)
		}
		recs = make([]CutRecord, 0, len(entries))
		for _, e := range entries {
			if len(e.Key) != 8 {
				continue
			}
			var rec CutRecord
			if err := json.Unmarshal(e.Value, &rec); err != nil {
				return fmt.Errorf("history: record %d: %w", binary.BigEndian.Uint64(e.Key), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
