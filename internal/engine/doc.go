// Package engine implements the diamond dispatch router.
//
// The router is the single entry point of the system. Each call carries a raw
// payload whose first four bytes are a selector; the router looks the selector
// up in the routing table and forwards the whole payload to the facet that
// owns it.
//
// ARCHITECTURE:
//
// Dispatch Flow:
// 1. Selector extraction - payloads shorter than 4 bytes are rejected before
// any storage access (MALFORMED_INPUT)
// 2. Routing lookup - a transaction is opened and the routing table consulted;
// unknown selectors are rejected (UNKNOWN_SELECTOR)
// 3. Forwarding - the facet is invoked through the Invoker with the entire
// payload, the unmodified CallContext and a routing.Storage capability bound
// to the same transaction
// 4. Result propagation - success commits and returns the facet output
// unchanged; failure rolls back and returns the facet payload verbatim
// (FACET_FAILED)
//
// All-Or-Nothing:
// Every call runs inside exactly one kv.Tx. Facet writes, like routing table
// reads, go through that transaction, so a failed call leaves no trace in any
// region. Nothing is retried.
//
// Serialization:
// Backends admit one transaction at a time, so concurrent Dispatch calls are
// executed one after another. The router itself holds no locks.
//
// Administration:
// Cut applies EIP-2535 style facet cuts (add/replace/remove) atomically and
// appends every selector change to a history log kept in its own region.
// The loupe methods (Routes, Facets, FacetSelectors, ...) are read-only.
package engine
