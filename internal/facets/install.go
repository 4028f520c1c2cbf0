package facets

import (
	"fmt"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Option configures the built-in facets.
type Option func(*options)

type options struct {
	positionIDs IDGenerator
}

// WithPositionIDs sets the generator for trading position ids.
func WithPositionIDs(ids IDGenerator) Option {
	return func(o *options) { o.positionIDs = ids }
}

// Builtin is a built-in facet with its name and selectors.
type Builtin struct {
	Name      string
	Facet     engine.Facet
	Selectors []ir.Selector
}

// Address returns where Install deploys the facet.
func (b Builtin) Address() ir.Address {
	return ir.AddressOf(b.Name)
}

// Builtins returns the trading, risk and zk verifier facets.
func Builtins(opts ...Option) []Builtin {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	trading := NewTrading(o.positionIDs)
	risk := NewRisk()
	zk := NewZkVerifier()
	return []Builtin{
		{Name: TradingName, Facet: trading, Selectors: trading.Selectors()},
		{Name: RiskName, Facet: risk, Selectors: risk.Selectors()},
		{Name: ZkVerifierName, Facet: zk, Selectors: zk.Selectors()},
	}
}

// Install deploys the built-in facets into reg at their name-derived
// addresses. It does not route any selector.
func Install(reg *engine.Registry, opts ...Option) error {
	for _, b := range Builtins(opts...) {
		if _, err := reg.Register(b.Name, b.Facet); err != nil {
			return fmt.Errorf("install %s: %w", b.Name, err)
		}
	}
	return nil
}

// DefaultCuts routes every built-in selector to its facet.
func DefaultCuts() []engine.FacetCut {
	builtins := Builtins()
	cuts := make([]engine.FacetCut, 0, len(builtins))
	for _, b := range builtins {
		cuts = append(cuts, engine.FacetCut{
			Action:    engine.CutAdd,
			Facet:     b.Address(),
			Selectors: b.Selectors,
		})
	}
	return cuts
}

// Names maps built-in facet names to addresses, for resolving facet
// references in manifests.
func Names() map[string]ir.Address {
	names := make(map[string]ir.Address)
	for _, b := range Builtins() {
		names[b.Name] = b.Address()
	}
	return names
}
