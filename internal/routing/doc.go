// Package routing is the storage isolation layer of the diamond router.
//
// It owns two things:
//   - Table: the selector -> facet routing table, rooted at the region derived
//     from ir.DiamondNamespace
//   - Storage and Namespace: the capability a facet receives to reach its own
//     region, derived from a namespace string of its choosing
//
// Both are thin typed views over kv.Slots. They hold no state of their own, so
// every read and write joins whatever transaction the Slots handle belongs to.
//
// Layout (ir.LayoutVersion 1):
//
//	region ir.DiamondRegion
//	  key   = 4-byte selector
//	  value = 20-byte facet address
package routing
