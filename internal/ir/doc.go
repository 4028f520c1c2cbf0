// Package ir provides the core value types of the diamond router.
//
// This package contains type definitions and pure derivations only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Selectors are exactly 4 bytes, addresses exactly 20, regions exactly 32
//   - The zero Address means "no facet" and is never a valid route target
//   - Region identifiers are derived by hashing a namespace string, never hand-picked
//   - Every derivation is deterministic and bit-for-bit reproducible
package ir
