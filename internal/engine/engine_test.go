package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/boltstore"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/store"
	"github.com/roach88/diamond/internal/testutil"
)

var (
	selEcho   = ir.SelectorOf("echo(bytes)")
	selFail   = ir.SelectorOf("fail(bytes)")
	selWrite  = ir.SelectorOf("write(bytes)")
	selUnused = ir.SelectorOf("unused()")
)

type backendCase struct {
	name string
	open func(t *testing.T) kv.Backend
}

// backends lists every slot backend the router must behave identically on.
func backends() []backendCase {
	return []backendCase{
		{"memory", func(t *testing.T) kv.Backend {
			b := kv.NewMemory()
			t.Cleanup(func() { b.Close() })
			return b
		}},
		{"sqlite", func(t *testing.T) kv.Backend {
			s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"bolt", func(t *testing.T) kv.Backend {
			s, err := boltstore.Open(filepath.Join(t.TempDir(), "test.bolt"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func setupRouter(t *testing.T, opts ...RouterOption) (*Router, *Registry, *testutil.CountingBackend) {
	t.Helper()
	b := testutil.NewCountingBackend(kv.NewMemory())
	t.Cleanup(func() { b.Close() })
	reg := NewRegistry()
	return NewRouter(b, reg, opts...), reg, b
}

// stubFacet returns fixed output or a fixed revert and records what it saw.
type stubFacet struct {
	out    []byte
	revert []byte
	err    error
	seen   []*Env
}

func (f *stubFacet) Invoke(_ context.Context, env *Env) ([]byte, error) {
	f.seen = append(f.seen, env)
	if f.revert != nil {
		return nil, &ir.Revert{Data: f.revert}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

// writerFacet stores the call arguments in its namespace, then fails if the
// arguments say so.
func writerFacet(ns string) Facet {
	return FacetFunc(func(ctx context.Context, env *Env) ([]byte, error) {
		space, err := env.Storage.Namespace(ns)
		if err != nil {
			return nil, err
		}
		if err := space.Store(ctx, "last", env.Call.Args()); err != nil {
			return nil, err
		}
		if string(env.Call.Args()) == "fail" {
			return nil, ir.Revertf("refused %q", env.Call.Args())
		}
		return []byte("stored"), nil
	})
}

func route(t *testing.T, r *Router, sel ir.Selector, facet ir.Address) {
	t.Helper()
	require.NoError(t, r.Set(context.Background(), sel, facet))
}

func call(sel ir.Selector, args string) []byte {
	return append(sel.Bytes(), args...)
}

func register(t *testing.T, reg *Registry, name string, f Facet) ir.Address {
	t.Helper()
	addr, err := reg.Register(name, f)
	require.NoError(t, err)
	return addr
}

// counterSum totals a counter across intervals for the given label value.
func counterSum(sink *metrics.InmemSink, name string, label metrics.Label) int {
	total := 0
	for _, interval := range sink.Data() {
		for _, v := range interval.Counters {
			if v.Name != name {
				continue
			}
			for _, l := range v.Labels {
				if l == label {
					total += v.Count
				}
			}
		}
	}
	return total
}

var errBoom = errors.New("boom")

// loadSlot reads one committed slot through the router's backend.
func loadSlot(t *testing.T, r *Router, region ir.RegionID, key string) []byte {
	t.Helper()
	var raw []byte
	err := r.view(context.Background(), func(tx kv.Tx) error {
		var err error
		raw, _, err = tx.Load(context.Background(), region, []byte(key))
		return err
	})
	require.NoError(t, err)
	return raw
}
