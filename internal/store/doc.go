// Package store provides SQLite-backed durable slot storage for the diamond router.
//
// The store implements kv.Backend over a single table:
//
//	slots(region BLOB, key BLOB, value BLOB, PRIMARY KEY(region, key)) WITHOUT ROWID
//
// The composite primary key makes every region a contiguous, prefix-scoped
// range, so Scan is an index range read and two regions can never share a row.
//
// # Transactions
//
// Every kv.Tx is one sql.Tx. The pool is limited to a single connection, so at
// most one transaction is open at a time and Begin waits (honouring ctx) for
// the previous one to finish. A dispatched call that fails rolls its sql.Tx
// back, undoing any facet writes made during the call.
//
// # Database Configuration
//
//   - WAL mode: readers of the file from other processes don't block the writer
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema versions are tracked with PRAGMA user_version. A database written by
// a newer binary is refused rather than silently misread.
package store
