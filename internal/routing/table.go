package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

var (
	ErrZeroFacet         = errors.New("routing: facet address must not be zero")
	ErrCorruptEntry      = errors.New("routing: corrupt routing table entry")
	ErrReservedNamespace = errors.New("routing: namespace is reserved")
)

// Region returns the region identifier of the routing table.
// It is a constant; calling it any number of times yields the same value.
func Region() ir.RegionID {
	return ir.DiamondRegion
}

// Entry is one selector -> facet mapping.
type Entry struct {
	Selector ir.Selector `json:"selector"`
	Facet    ir.Address  `json:"facet"`
}

// Table is the typed selector -> facet view over a region.
type Table struct {
	slots  kv.Slots
	region ir.RegionID
}

// NewTable returns the routing table rooted at Region().
func NewTable(slots kv.Slots) *Table {
	return NewTableAt(slots, Region())
}

// NewTableAt returns a routing table rooted at an arbitrary region.
func NewTableAt(slots kv.Slots, region ir.RegionID) *Table {
	return &Table{slots: slots, region: region}
}

// Region returns the region this table is rooted at.
func (t *Table) Region() ir.RegionID {
	return t.region
}

// Get returns the facet mapped to sel.
// A selector that was never set (or was removed) yields ok=false and no error.
func (t *Table) Get(ctx context.Context, sel ir.Selector) (facet ir.Address, ok bool, err error) {
	raw, ok, err := t.slots.Load(ctx, t.region, sel[:])
	if err != nil {
		return ir.Address{}, false, fmt.Errorf("get route %s: %w", sel, err)
	}
	if !ok {
		return ir.Address{}, false, nil
	}

	facet, err = ir.AddressFromBytes(raw)
	if err != nil {
		return ir.Address{}, false, fmt.Errorf("%w: selector %s: %v", ErrCorruptEntry, sel, err)
	}
	return facet, true, nil
}

// Set maps sel to facet, overwriting any prior mapping.
// Setting the same mapping twice is a no-op in effect.
func (t *Table) Set(ctx context.Context, sel ir.Selector, facet ir.Address) error {
	if facet.IsZero() {
		return ErrZeroFacet
	}
	if err := t.slots.Store(ctx, t.region, sel.Bytes(), facet.Bytes()); err != nil {
		return fmt.Errorf("set route %s: %w", sel, err)
	}
	return nil
}

// Remove clears the mapping for sel. Removing an absent selector is a no-op.
func (t *Table) Remove(ctx context.Context, sel ir.Selector) error {
	if err := t.slots.Clear(ctx, t.region, sel[:]); err != nil {
		return fmt.Errorf("remove route %s: %w", sel, err)
	}
	return nil
}

// Entries returns every mapping ordered by selector bytes.
func (t *Table) Entries(ctx context.Context) ([]Entry, error) {
	raw, err := t.slots.Scan(ctx, t.region)
	if err != nil {
		return nil, fmt.Errorf("scan routes: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if len(e.Key) != ir.SelectorLen {
			return nil, fmt.Errorf("%w: key %x is not a selector", ErrCorruptEntry, e.Key)
		}
		facet, err := ir.AddressFromBytes(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: key %x: %v", ErrCorruptEntry, e.Key, err)
		}
		var sel ir.Selector
		copy(sel[:], e.Key)
		entries = append(entries, Entry{Selector: sel, Facet: facet})
	}
	return entries, nil
}
