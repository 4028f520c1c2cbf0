// Package testutil provides deterministic stand-ins for router dependencies.
//
// Tests and the scenario harness use these so that two runs of the same
// calls produce identical logs, metrics and traces.
package testutil
