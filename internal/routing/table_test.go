package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

func setupTx(t *testing.T) kv.Tx {
	t.Helper()
	backend := kv.NewMemory()
	tx, err := backend.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		tx.Rollback()
		backend.Close()
	})
	return tx
}

var (
	facetA = ir.AddressOf("FacetA")
	facetB = ir.AddressOf("FacetB")
	selX   = ir.SelectorOf("x()")
	selY   = ir.SelectorOf("y()")
)

func TestRegionIsConstant(t *testing.T) {
	first := Region()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Region())
	}
	assert.Equal(t, ir.DeriveRegion(ir.DiamondNamespace), first)
}

func TestTable_GetAbsent(t *testing.T) {
	table := NewTable(setupTx(t))

	for _, sel := range []ir.Selector{selX, selY, {}, {0xff, 0xff, 0xff, 0xff}} {
		facet, ok, err := table.Get(context.Background(), sel)
		require.NoError(t, err)
		assert.False(t, ok, "selector %s was never set", sel)
		assert.True(t, facet.IsZero())
	}
}

func TestTable_SetGet(t *testing.T) {
	ctx := context.Background()
	table := NewTable(setupTx(t))

	require.NoError(t, table.Set(ctx, selX, facetA))
	require.NoError(t, table.Set(ctx, selY, facetA))

	for _, sel := range []ir.Selector{selX, selY} {
		facet, ok, err := table.Get(ctx, sel)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, facetA, facet)
	}
}

func TestTable_Overwrite(t *testing.T) {
	ctx := context.Background()
	table := NewTable(setupTx(t))

	require.NoError(t, table.Set(ctx, selX, facetA))
	require.NoError(t, table.Set(ctx, selX, facetB))

	facet, ok, err := table.Get(ctx, selX)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, facetB, facet)
}

func TestTable_SetIdempotent(t *testing.T) {
	ctx := context.Background()
	table := NewTable(setupTx(t))

	require.NoError(t, table.Set(ctx, selX, facetA))
	require.NoError(t, table.Set(ctx, selX, facetA))

	entries, err := table.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Selector: selX, Facet: facetA}}, entries)
}

func TestTable_Remove(t *testing.T) {
	ctx := context.Background()
	table := NewTable(setupTx(t))

	require.NoError(t, table.Set(ctx, selX, facetA))
	require.NoError(t, table.Remove(ctx, selX))

	_, ok, err := table.Get(ctx, selX)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, table.Remove(ctx, selY), "removing an absent selector is a no-op")
}

func TestTable_RejectsZeroFacet(t *testing.T) {
	table := NewTable(setupTx(t))

	err := table.Set(context.Background(), selX, ir.Address{})
	assert.ErrorIs(t, err, ErrZeroFacet)
}

func TestTable_EntriesOrdered(t *testing.T) {
	ctx := context.Background()
	table := NewTable(setupTx(t))

	sels := []ir.Selector{{3, 0, 0, 0}, {1, 0, 0, 0}, {2, 0, 0, 0}}
	for _, sel := range sels {
		require.NoError(t, table.Set(ctx, sel, facetA))
	}

	entries, err := table.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ir.Selector{1, 0, 0, 0}, entries[0].Selector)
	assert.Equal(t, ir.Selector{2, 0, 0, 0}, entries[1].Selector)
	assert.Equal(t, ir.Selector{3, 0, 0, 0}, entries[2].Selector)
}

func TestTable_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	tx := setupTx(t)
	require.NoError(t, tx.Store(ctx, Region(), selX[:], []byte{1, 2, 3}))

	table := NewTable(tx)
	_, _, err := table.Get(ctx, selX)
	assert.ErrorIs(t, err, ErrCorruptEntry)

	_, err = table.Entries(ctx)
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestTable_RegionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	tx := setupTx(t)

	primary := NewTable(tx)
	other := NewTableAt(tx, ir.DeriveRegion("some.other.router"))

	require.NoError(t, primary.Set(ctx, selX, facetA))
	require.NoError(t, other.Set(ctx, selX, facetB))

	got, _, err := primary.Get(ctx, selX)
	require.NoError(t, err)
	assert.Equal(t, facetA, got)

	got, _, err = other.Get(ctx, selX)
	require.NoError(t, err)
	assert.Equal(t, facetB, got)
}
