package ir

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveRegionDeterminism(t *testing.T) {
	r1 := DeriveRegion(DiamondNamespace)
	r2 := DeriveRegion(DiamondNamespace)

	assert.Equal(t, r1, r2, "DeriveRegion must be deterministic")
	assert.Equal(t, r1, DiamondRegion, "DiamondRegion must match a fresh derivation")
	assert.Len(t, r1.String(), 2+2*RegionLen)
}

func TestDeriveRegionKnownVectors(t *testing.T) {
	tests := []struct {
		namespace string
		want      string
	}{
		{"", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{DiamondNamespace, "0xd833cdbc7c9ba988a863c00139127c3a77867247652c510c9addd01efd0f738b"},
		{"diamond.storage.zk.trader.history", "0xe5e76a84584918a77582f722e6ea9c84b0ecefb10b7af0d39cd8ee0db33ddfe9"},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRegion(tt.namespace).String())
		})
	}
}

func TestDeriveRegionNormalizesUnicode(t *testing.T) {
	precomposed := "caf\u00e9"
	decomposed := "cafe\u0301"

	require.NotEqual(t, precomposed, decomposed)
	assert.Equal(t, DeriveRegion(precomposed), DeriveRegion(decomposed),
		"NFC-equivalent namespaces must share a region")
	assert.Equal(t, "0x9513447e2d376aacd434727887590dd448cda8f2d30c4ace903d31fe209f8ad8",
		DeriveRegion(decomposed).String())
}

func TestDeriveRegionDistinctNamespaces(t *testing.T) {
	seen := make(map[RegionID]string)
	for i := 0; i < 2000; i++ {
		ns := fmt.Sprintf("diamond.facet.sample.%d", i)
		r := DeriveRegion(ns)
		if prev, ok := seen[r]; ok {
			t.Fatalf("namespaces %q and %q collided on %s", prev, ns, r)
		}
		seen[r] = ns
	}
	assert.NotContains(t, seen, DiamondRegion)
}

func TestParseRegionRoundTrip(t *testing.T) {
	r, err := ParseRegion(DiamondRegion.String())
	require.NoError(t, err)
	assert.Equal(t, DiamondRegion, r)

	_, err = ParseRegion("0x1234")
	assert.Error(t, err)
	assert.False(t, DiamondRegion.IsZero())
	assert.True(t, RegionID{}.IsZero())
}

func TestRegionTextRoundTrip(t *testing.T) {
	text, err := DiamondRegion.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, DiamondRegion.String(), string(text))

	var r RegionID
	require.NoError(t, r.UnmarshalText(text))
	assert.Equal(t, DiamondRegion, r)
	assert.Error(t, r.UnmarshalText([]byte("0xzz")))
}

func TestAddressOf(t *testing.T) {
	a1 := AddressOf("TradingFacet")
	a2 := AddressOf("TradingFacet")
	a3 := AddressOf("RiskFacet")

	assert.Equal(t, a1, a2, "AddressOf must be deterministic")
	assert.NotEqual(t, a1, a3)
	assert.False(t, a1.IsZero())
}

func TestKeccak256(t *testing.T) {
	empty := Keccak256()
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", hex.EncodeToString(empty[:]))

	// Parts are hashed as one concatenated message.
	assert.Equal(t, Keccak256([]byte("diamond.storage.zk.trader")), Keccak256([]byte("diamond.storage"), []byte(".zk.trader")))
}
