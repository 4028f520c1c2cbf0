package ir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorOf(t *testing.T) {
	tests := []struct {
		signature string
		want      string
	}{
		{"transfer(address,uint256)", "0xa9059cbb"},
		{"executeTrade(bytes)", "0x885ab48c"},
		{"checkRisk(bytes)", "0xd2bb4b71"},
		{"verifyProof(bytes)", "0x55c265fe"},
	}

	for _, tt := range tests {
		t.Run(tt.signature, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectorOf(tt.signature).String())
		})
	}
}

func TestSplitInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		ok    bool
		want  Selector
	}{
		{"empty", nil, false, Selector{}},
		{"three bytes", []byte{1, 2, 3}, false, Selector{}},
		{"exact", []byte{1, 2, 3, 4}, true, Selector{1, 2, 3, 4}},
		{"with payload", []byte{1, 2, 3, 4, 5, 6}, true, Selector{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := SplitInput(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("0xA9059CBB")
	require.NoError(t, err)
	assert.Equal(t, Selector{0xa9, 0x05, 0x9c, 0xbb}, sel)

	sel, err = ParseSelector("a9059cbb")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", sel.String())

	for _, bad := range []string{"", "0x", "0xa9059c", "0xa9059cbb00", "0xzz059cbb"} {
		_, err := ParseSelector(bad)
		assert.Error(t, err, "ParseSelector(%q) should fail", bad)
	}
}

func TestResolveSelector(t *testing.T) {
	sel, err := ResolveSelector("transfer(address,uint256)")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", sel.String())

	sel, err = ResolveSelector("0xa9059cbb")
	require.NoError(t, err)
	assert.Equal(t, SelectorOf("transfer(address,uint256)"), sel)

	_, err = ResolveSelector("transfer(address")
	assert.Error(t, err)
}

func TestSelectorText(t *testing.T) {
	sel := SelectorOf("balance()")
	text, err := sel.MarshalText()
	require.NoError(t, err)

	var back Selector
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, sel, back)
}

func TestCallArgs(t *testing.T) {
	call := Call{Input: []byte{1, 2, 3, 4, 'h', 'i'}}
	assert.Equal(t, Selector{1, 2, 3, 4}, call.Selector())
	assert.Equal(t, []byte("hi"), call.Args())

	assert.Nil(t, Call{Input: []byte{1}}.Args())
}

func TestRevert(t *testing.T) {
	r := Revertf("insufficient balance: %d", 5)
	assert.Equal(t, []byte("insufficient balance: 5"), r.Data)

	wrapped := fmt.Errorf("facet: %w", r)
	got, ok := AsRevert(wrapped)
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = AsRevert(assert.AnError)
	assert.False(t, ok)
}

func TestParseAddress(t *testing.T) {
	a := AddressOf("RiskFacet")
	parsed, err := ParseAddress(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	fromBytes, err := AddressFromBytes(a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, a, fromBytes)

	_, err = AddressFromBytes([]byte{1, 2})
	assert.Error(t, err)
	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
}

func TestResolveAddress(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Address
		wantErr bool
	}{
		{name: "empty", ref: "", want: Address{}},
		{name: "name", ref: "alice", want: AddressOf("alice")},
		{name: "trimmed name", ref: "  alice ", want: AddressOf("alice")},
		{name: "hex", ref: AddressOf("bob").String(), want: AddressOf("bob")},
		{name: "short hex", ref: "0x12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAddress(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
