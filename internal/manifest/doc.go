// Package manifest loads facet cut manifests.
//
// A manifest lists routing changes to apply in one cut:
//
//	name: trading-v2
//	cuts:
//	  - action: replace
//	    facet: TradingFacet
//	    selectors: ["executeTrade(bytes)", "0xe2df600f"]
//	  - action: remove
//	    selectors: ["balance()"]
//
// Manifests are YAML (.yaml, .yml) or CUE (.cue). CUE manifests are unified
// with the schema in schema.cue before they are read, so type errors are
// reported with file positions. Facets are 0x-prefixed addresses or names
// resolved through a name table; selectors are 0x-prefixed hex or function
// signatures.
package manifest
