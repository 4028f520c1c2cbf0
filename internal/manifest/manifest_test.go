package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

var names = map[string]ir.Address{
	"RiskFacet":    ir.AddressOf("RiskFacet"),
	"TradingFacet": ir.AddressOf("TradingFacet"),
}

func wantUpgrade() []engine.FacetCut {
	return []engine.FacetCut{
		{Action: engine.CutReplace, Facet: ir.AddressOf("RiskFacet"), Selectors: []ir.Selector{ir.SelectorOf("balance()")}},
		{Action: engine.CutRemove, Selectors: []ir.Selector{ir.SelectorOf("verifyProof(bytes)")}},
	}
}

func TestLoad_Formats(t *testing.T) {
	for _, file := range []string{"upgrade.yaml", "upgrade.cue"} {
		t.Run(file, func(t *testing.T) {
			m, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)
			assert.Equal(t, "trading-upgrade", m.Name)
			assert.NotEmpty(t, m.Description)

			cuts, err := m.Resolve(names)
			require.NoError(t, err)
			assert.Equal(t, wantUpgrade(), cuts)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(write("cuts.json", `{}`))
	assert.ErrorContains(t, err, "unsupported manifest extension")

	_, err = Load(write("empty.yaml", ""))
	assert.ErrorContains(t, err, "empty")

	_, err = Load(write("unknown.yaml", "cuts:\n  - action: add\n    facets: x\n"))
	assert.ErrorContains(t, err, "facets")
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "bad_action.cue"))
	require.Error(t, err)

	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "cue", me.Field)
	assert.True(t, me.Pos.IsValid(), "cue errors carry positions")

	tests := map[string]string{
		"unknown field":   `cuts: [{action: "add", facet: "x", selectors: ["a()"], extra: 1}]`,
		"no selectors":    `cuts: [{action: "add", facet: "x", selectors: []}]`,
		"no cuts":         `cuts: []`,
		"selector type":   `cuts: [{action: "add", facet: "x", selectors: [1]}]`,
		"syntax":          `cuts: [{`,
		"incomplete cuts": `cuts: [{action: string, selectors: ["a()"]}]`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCUE(name+".cue", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseCUE_Positions(t *testing.T) {
	m, err := ParseCUE("pos.cue", []byte(`cuts: [{action: "add", facet: "Nobody", selectors: ["a()"]}]`))
	require.NoError(t, err)
	require.Len(t, m.Cuts, 1)

	_, err = m.Resolve(names)
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "cuts[0].facet", me.Field)
	assert.Contains(t, me.Error(), "pos.cue:1:")
	assert.Contains(t, me.Error(), `unknown facet "Nobody"`)
}

func TestResolve(t *testing.T) {
	hexFacet := ir.AddressOf("custom")

	tests := []struct {
		name    string
		entry   Entry
		want    engine.FacetCut
		wantErr string
	}{
		{
			name:  "facet by address, selector by hex",
			entry: Entry{Action: "add", Facet: hexFacet.String(), Selectors: []string{"0xa9059cbb"}},
			want:  engine.FacetCut{Action: engine.CutAdd, Facet: hexFacet, Selectors: []ir.Selector{ir.SelectorOf("transfer(address,uint256)")}},
		},
		{
			name:  "facet by name, selector by signature",
			entry: Entry{Action: "ADD", Facet: "TradingFacet", Selectors: []string{"balance()"}},
			want:  engine.FacetCut{Action: engine.CutAdd, Facet: names["TradingFacet"], Selectors: []ir.Selector{ir.SelectorOf("balance()")}},
		},
		{
			name:    "bad action",
			entry:   Entry{Action: "upsert", Facet: "TradingFacet", Selectors: []string{"balance()"}},
			wantErr: "cuts[0].action",
		},
		{
			name:    "bad address",
			entry:   Entry{Action: "add", Facet: "0x1234", Selectors: []string{"balance()"}},
			wantErr: "cuts[0].facet",
		},
		{
			name:    "no selectors",
			entry:   Entry{Action: "add", Facet: "TradingFacet"},
			wantErr: "cuts[0].selectors",
		},
		{
			name:    "bad selector",
			entry:   Entry{Action: "add", Facet: "TradingFacet", Selectors: []string{"balance()", "0xzz"}},
			wantErr: "cuts[0].selectors[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Cuts: []Entry{tt.entry}}
			cuts, err := m.Resolve(names)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []engine.FacetCut{tt.want}, cuts)
		})
	}

	_, err := (&Manifest{}).Resolve(names)
	assert.ErrorContains(t, err, "no cuts")
}
