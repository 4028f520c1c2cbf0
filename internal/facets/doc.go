// Package facets holds the built-in facets of the trading diamond.
//
// Each facet is an engine.Facet that serves a handful of selectors and keeps
// its state in its own namespace, opened through the storage capability the
// router hands it on every call. Arguments after the selector are JSON and
// outputs are JSON. Failures are reverts whose payload is a short reason
// string, e.g. "insufficient balance".
//
//	reg := engine.NewRegistry()
//	if err := facets.Install(reg); err != nil { ... }
//	err := router.Cut(ctx, facets.DefaultCuts()...)
package facets
