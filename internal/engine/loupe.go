package engine

import (
	"bytes"
	"context"
	"sort"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/routing"
)

// FacetInfo groups the selectors routed to one facet.
type FacetInfo struct {
	Facet     ir.Address    `json:"facet"`
	Selectors []ir.Selector `json:"selectors"`
}

// Routes returns every routing entry ordered by selector.
func (r *Router) Routes(ctx context.Context) ([]routing.Entry, error) {
	var entries []routing.Entry
	err := r.view(ctx, func(tx kv.Tx) error {
		var err error
		entries, err = routing.NewTable(tx).Entries(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Facets returns each routed facet with its selectors, ordered by facet
// address; selectors are in selector order.
func (r *Router) Facets(ctx context.Context) ([]FacetInfo, error) {
	entries, err := r.Routes(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[ir.Address]int)
	var facets []FacetInfo
	for _, e := range entries {
		i, ok := index[e.Facet]
		if !ok {
			i = len(facets)
			index[e.Facet] = i
			facets = append(facets, FacetInfo{Facet: e.Facet})
		}
		facets[i].Selectors = append(facets[i].Selectors, e.Selector)
	}
	sort.Slice(facets, func(i, j int) bool {
		return bytes.Compare(facets[i].Facet[:], facets[j].Facet[:]) < 0
	})
	return facets, nil
}

// FacetSelectors returns the selectors routed to facet.
func (r *Router) FacetSelectors(ctx context.Context, facet ir.Address) ([]ir.Selector, error) {
	entries, err := r.Routes(ctx)
	if err != nil {
		return nil, err
	}
	var sels []ir.Selector
	for _, e := range entries {
		if e.Facet == facet {
			sels = append(sels, e.Selector)
		}
	}
	return sels, nil
}

// FacetAddresses returns every facet with at least one selector.
func (r *Router) FacetAddresses(ctx context.Context) ([]ir.Address, error) {
	facets, err := r.Facets(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make([]ir.Address, len(facets))
	for i, f := range facets {
		addrs[i] = f.Facet
	}
	return addrs, nil
}

// FacetAddress returns the facet sel is routed to.
func (r *Router) FacetAddress(ctx context.Context, sel ir.Selector) (ir.Address, bool, error) {
	var (
		facet ir.Address
		found bool
	)
	err := r.view(ctx, func(tx kv.Tx) error {
		var err error
		facet, found, err = routing.NewTable(tx).Get(ctx, sel)
		return err
	})
	return facet, found, err
}
