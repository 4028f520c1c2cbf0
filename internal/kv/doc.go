// Package kv defines the slot storage abstraction shared by every backend.
//
// Storage is a flat key space addressed by (region, key). A region is the
// prefix scope of one component: the routing table lives in one region, each
// facet chooses its own by namespace. Keys and values are opaque bytes.
//
// All access happens inside a transaction. A transaction either commits every
// write it performed or none of them, which is what makes a dispatched call
// all-or-nothing. Backends allow at most one open transaction at a time;
// Begin blocks until the previous one finishes or the context is done.
//
// Implementations:
//   - Memory (this package): copy-on-write overlay, for tests and ephemeral runs
//   - store.Store: SQLite
//   - boltstore.Store: bbolt
package kv
