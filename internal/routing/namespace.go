package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

// reserved lists regions owned by the router itself. Keys are derived
// regions so every spelling that hashes to one of them is refused.
var reserved = map[ir.RegionID]bool{
	ir.DiamondRegion:                  true,
	ir.DeriveRegion(HistoryNamespace): true,
}

// HistoryNamespace is the namespace of the cut history log.
const HistoryNamespace = ir.DiamondNamespace + ".history"

// Storage is the capability a facet receives for one call.
//
// A facet executes with the router's storage: everything it writes through
// Storage joins the call's transaction and is discarded if the call fails.
// Isolation between facets comes from each one choosing its own namespace.
type Storage struct {
	slots kv.Slots
}

// NewStorage binds a Storage capability to a slot handle, normally the
// transaction of the current call.
func NewStorage(slots kv.Slots) *Storage {
	return &Storage{slots: slots}
}

// Namespace opens the region derived from name.
// Names reserved by the router and blank names are refused.
func (s *Storage) Namespace(name string) (*Namespace, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrReservedNamespace)
	}
	region := ir.DeriveRegion(name)
	if reserved[region] {
		return nil, fmt.Errorf("%w: %q", ErrReservedNamespace, name)
	}
	return &Namespace{
		name:   name,
		region: region,
		slots:  s.slots,
	}, nil
}

// Routes returns the routing table as seen from inside the call.
func (s *Storage) Routes() *Table {
	return NewTable(s.slots)
}

// Namespace is a key-value view over one derived region.
type Namespace struct {
	name   string
	region ir.RegionID
	slots  kv.Slots
}

// Name returns the namespace string the region was derived from.
func (n *Namespace) Name() string { return n.name }

// Region returns the derived region.
func (n *Namespace) Region() ir.RegionID { return n.region }

// Load reads key. A missing key yields ok=false and no error.
func (n *Namespace) Load(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := n.slots.Load(ctx, n.region, []byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("%s: load %q: %w", n.name, key, err)
	}
	return v, ok, nil
}

// Store writes key.
func (n *Namespace) Store(ctx context.Context, key string, value []byte) error {
	if err := n.slots.Store(ctx, n.region, []byte(key), value); err != nil {
		return fmt.Errorf("%s: store %q: %w", n.name, key, err)
	}
	return nil
}

// Clear deletes key.
func (n *Namespace) Clear(ctx context.Context, key string) error {
	if err := n.slots.Clear(ctx, n.region, []byte(key)); err != nil {
		return fmt.Errorf("%s: clear %q: %w", n.name, key, err)
	}
	return nil
}

// Keys lists keys with the given prefix in byte order.
func (n *Namespace) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := n.slots.Scan(ctx, n.region)
	if err != nil {
		return nil, fmt.Errorf("%s: scan: %w", n.name, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(string(e.Key), prefix) {
			keys = append(keys, string(e.Key))
		}
	}
	return keys, nil
}
