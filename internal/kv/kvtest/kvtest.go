// Package kvtest is a conformance suite for kv.Backend implementations.
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

// Opener returns a fresh, empty backend. The suite closes it.
type Opener func(t *testing.T) kv.Backend

// Run executes every conformance check against backends produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, open(t)) })
	t.Run("StoreCommitLoad", func(t *testing.T) { testStoreCommitLoad(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, open(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, open(t)) })
	t.Run("RegionIsolation", func(t *testing.T) { testRegionIsolation(t, open(t)) })
	t.Run("ScanOrdered", func(t *testing.T) { testScanOrdered(t, open(t)) })
	t.Run("EmptyKey", func(t *testing.T) { testEmptyKey(t, open(t)) })
	t.Run("FinishedTx", func(t *testing.T) { testFinishedTx(t, open(t)) })
	t.Run("SingleWriter", func(t *testing.T) { testSingleWriter(t, open(t)) })
}

var (
	regionA = ir.DeriveRegion("kvtest.region.a")
	regionB = ir.DeriveRegion("kvtest.region.b")
)

func begin(t *testing.T, b kv.Backend) kv.Tx {
	t.Helper()
	tx, err := b.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func commitValue(t *testing.T, b kv.Backend, region ir.RegionID, key, value string) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, b)
	require.NoError(t, tx.Store(ctx, region, []byte(key), []byte(value)))
	require.NoError(t, tx.Commit())
}

func load(t *testing.T, b kv.Backend, region ir.RegionID, key string) ([]byte, bool) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, b)
	defer tx.Rollback()
	v, ok, err := tx.Load(ctx, region, []byte(key))
	require.NoError(t, err)
	return v, ok
}

func testLoadMissing(t *testing.T, b kv.Backend) {
	defer b.Close()

	v, ok := load(t, b, regionA, "missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func testStoreCommitLoad(t *testing.T, b kv.Backend) {
	defer b.Close()

	commitValue(t, b, regionA, "k", "v1")
	v, ok := load(t, b, regionA, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	commitValue(t, b, regionA, "k", "v2")
	v, ok = load(t, b, regionA, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v, "Store must overwrite")
}

func testRollback(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	commitValue(t, b, regionA, "kept", "before")

	tx := begin(t, b)
	require.NoError(t, tx.Store(ctx, regionA, []byte("kept"), []byte("after")))
	require.NoError(t, tx.Store(ctx, regionA, []byte("new"), []byte("x")))
	require.NoError(t, tx.Rollback())

	v, ok := load(t, b, regionA, "kept")
	require.True(t, ok)
	assert.Equal(t, []byte("before"), v, "rolled back overwrite must not persist")

	_, ok = load(t, b, regionA, "new")
	assert.False(t, ok, "rolled back insert must not persist")
}

func testReadYourWrites(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	tx := begin(t, b)
	defer tx.Rollback()

	require.NoError(t, tx.Store(ctx, regionA, []byte("k"), []byte("v")))
	v, ok, err := tx.Load(ctx, regionA, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	entries, err := tx.Scan(ctx, regionA)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("k"), entries[0].Key)
}

func testClear(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	commitValue(t, b, regionA, "k", "v")

	tx := begin(t, b)
	require.NoError(t, tx.Clear(ctx, regionA, []byte("k")))
	require.NoError(t, tx.Clear(ctx, regionA, []byte("never-set")), "Clear of a missing slot is a no-op")
	_, ok, err := tx.Load(ctx, regionA, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Commit())

	_, ok = load(t, b, regionA, "k")
	assert.False(t, ok)
}

func testRegionIsolation(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	commitValue(t, b, regionA, "shared-key", "a")
	commitValue(t, b, regionB, "shared-key", "b")

	va, _ := load(t, b, regionA, "shared-key")
	vb, _ := load(t, b, regionB, "shared-key")
	assert.Equal(t, []byte("a"), va)
	assert.Equal(t, []byte("b"), vb)

	tx := begin(t, b)
	defer tx.Rollback()
	entries, err := tx.Scan(ctx, regionA)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("a"), entries[0].Value)
}

func testScanOrdered(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	tx := begin(t, b)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, tx.Store(ctx, regionA, []byte(k), []byte("v-"+k)))
	}
	require.NoError(t, tx.Commit())

	tx = begin(t, b)
	defer tx.Rollback()
	require.NoError(t, tx.Clear(ctx, regionA, []byte("b")))
	require.NoError(t, tx.Store(ctx, regionA, []byte("0"), []byte("v-0")))

	entries, err := tx.Scan(ctx, regionA)
	require.NoError(t, err)

	var keys []string
	for _, e := range entries {
		keys = append(keys, string(e.Key))
	}
	assert.Equal(t, []string{"0", "a", "c"}, keys)

	empty, err := tx.Scan(ctx, regionB)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testEmptyKey(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	tx := begin(t, b)
	defer tx.Rollback()
	assert.ErrorIs(t, tx.Store(ctx, regionA, nil, []byte("v")), kv.ErrEmptyKey)
	assert.ErrorIs(t, tx.Store(ctx, regionA, []byte{}, []byte("v")), kv.ErrEmptyKey)

	_, ok, err := tx.Load(ctx, regionA, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, tx.Clear(ctx, regionA, nil))

	entries, err := tx.Scan(ctx, regionA)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testFinishedTx(t *testing.T, b kv.Backend) {
	defer b.Close()
	ctx := context.Background()

	tx := begin(t, b)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback(), "Rollback after Commit is a no-op")

	_, _, err := tx.Load(ctx, regionA, []byte("k"))
	assert.Error(t, err)
}

func testSingleWriter(t *testing.T, b kv.Backend) {
	defer b.Close()

	tx := begin(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	started := make(chan error, 1)
	go func() {
		tx2, err := b.Begin(ctx)
		if err == nil {
			tx2.Rollback()
		}
		started <- err
	}()

	select {
	case err := <-started:
		// Backends that cannot honour ctx while waiting must still not hand out
		// a second concurrent transaction.
		if err == nil {
			t.Fatalf("second Begin succeeded while first transaction was open")
		}
	case <-time.After(time.Second):
		t.Fatalf("second Begin did not respect context deadline")
	}

	require.NoError(t, tx.Rollback())
}
