package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Manifest is a parsed, unresolved cut manifest.
type Manifest struct {
	Name        string  `yaml:"name" json:"name,omitempty"`
	Description string  `yaml:"description" json:"description,omitempty"`
	Cuts        []Entry `yaml:"cuts" json:"cuts"`
}

// Entry is one cut as written: facet and selectors are still text.
type Entry struct {
	Action    string   `yaml:"action" json:"action"`
	Facet     string   `yaml:"facet" json:"facet,omitempty"`
	Selectors []string `yaml:"selectors" json:"selectors"`

	// Pos is the entry's source position, when the format provides one.
	Pos token.Pos `yaml:"-" json:"-"`
}

// Error is a manifest problem, with position info when available.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and parses the manifest at path, choosing the format by
// extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return nil, &Error{Field: "file", Message: fmt.Sprintf("unsupported manifest extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))}
	}
}

// Resolve converts the manifest into cuts. Facet names are looked up in
// names; an empty facet is the zero address, which only remove accepts.
func (m *Manifest) Resolve(names map[string]ir.Address) ([]engine.FacetCut, error) {
	if len(m.Cuts) == 0 {
		return nil, &Error{Field: "cuts", Message: "manifest has no cuts"}
	}

	cuts := make([]engine.FacetCut, 0, len(m.Cuts))
	for i, e := range m.Cuts {
		field := fmt.Sprintf("cuts[%d]", i)

		action, err := engine.ParseCutAction(e.Action)
		if err != nil {
			return nil, &Error{Field: field + ".action", Message: err.Error(), Pos: e.Pos}
		}
		facet, err := ResolveFacet(e.Facet, names)
		if err != nil {
			return nil, &Error{Field: field + ".facet", Message: err.Error(), Pos: e.Pos}
		}
		if len(e.Selectors) == 0 {
			return nil, &Error{Field: field + ".selectors", Message: "at least one selector is required", Pos: e.Pos}
		}
		sels := make([]ir.Selector, 0, len(e.Selectors))
		for j, s := range e.Selectors {
			sel, err := ir.ResolveSelector(s)
			if err != nil {
				return nil, &Error{Field: fmt.Sprintf("%s.selectors[%d]", field, j), Message: err.Error(), Pos: e.Pos}
			}
			sels = append(sels, sel)
		}

		cuts = append(cuts, engine.FacetCut{Action: action, Facet: facet, Selectors: sels})
	}
	return cuts, nil
}

// ResolveFacet resolves a facet reference: a 0x address or a name in names.
// An empty reference is the zero address.
func ResolveFacet(ref string, names map[string]ir.Address) (ir.Address, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ir.Address{}, nil
	case strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X"):
		return ir.ParseAddress(ref)
	}
	if addr, ok := names[ref]; ok {
		return addr, nil
	}
	return ir.Address{}, fmt.Errorf("unknown facet %q", ref)
}
