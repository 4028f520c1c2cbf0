// Package harness runs scenario files against a diamond.
//
// The harness builds a fresh in-memory router with the built-in facets,
// applies the scenario's cuts, dispatches its calls, and checks both per-step
// expectations and end-of-run assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: open_and_close
//	description: "Open a position, then close it at a profit"
//	default_cuts: true
//	cuts:
//	  - action: add
//	    facet: RiskFacet
//	    selectors: ["riskLimit()"]
//	flow:
//	  - call: executeTrade(bytes)
//	    args: { symbol: BTC, side: BUY, price: 1000, size: 2 }
//	    expect:
//	      outcome: ok
//	      output: { balance: 8000 }
//	  - cut:
//	      - action: remove
//	        selectors: ["balance()"]
//	  - call: balance()
//	    expect: { outcome: unknown_selector }
//	assertions:
//	  - type: route
//	    selector: balance()
//	  - type: final_state
//	    namespace: diamond.facet.trading
//	    key: balance
//	    expect: 10200
//
// # Assertion Types
//
//   - trace_contains: a call with matching args (subset) was made
//   - trace_order: calls were made in the given order
//   - trace_count: a call was made exactly N times
//   - final_state: a namespaced slot holds the given JSON value
//   - route: a selector is routed to a facet (or unrouted when facet is empty)
//   - history_count: the cut history has exactly N records
//
// # Deterministic Testing
//
// Every scenario runs with a fixed call id and sequential position ids
// ("pos-0001", ...), so two runs produce byte-identical traces. Traces are
// compared with golden files under testdata/golden.
package harness
