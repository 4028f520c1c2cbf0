package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/manifest"
)

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		DefaultCuts: true,
		Flow: []FlowStep{
			{
				Call:   "balance()",
				Expect: &ExpectClause{Outcome: "ok", Output: map[string]any{"balance": 10000}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Call: "balance()"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, KindCall, ev.Kind)
	assert.Equal(t, "balance()", ev.Call)
	assert.Equal(t, "0xb69ef8a8", ev.Selector)
	assert.Equal(t, "ok", ev.Outcome)
	assert.Equal(t, map[string]any{"balance": float64(10000)}, ev.Output)
}

func TestRun_NoRoutes(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_routes",
		Description: "Nothing is routed without cuts",
		Flow: []FlowStep{
			{Call: "balance()", Expect: &ExpectClause{Outcome: "unknown_selector"}},
		},
		Assertions: []Assertion{
			{Type: AssertHistoryCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "unknown_selector", result.Trace[0].Outcome)
}

func TestRun_ScenarioCuts(t *testing.T) {
	scenario := &Scenario{
		Name:        "scenario_cuts",
		Description: "Only the selectors named in cuts are routed",
		Cuts: []manifest.Entry{
			{Action: "add", Facet: facets.TradingName, Selectors: []string{"balance()"}},
		},
		Flow: []FlowStep{
			{Call: "balance()", Expect: &ExpectClause{Outcome: "ok"}},
			{Call: "executeTrade(bytes)", Expect: &ExpectClause{Outcome: "unknown_selector"}},
		},
		Assertions: []Assertion{
			{Type: AssertRoute, Selector: "balance()", Facet: facets.TradingName},
			{Type: AssertRoute, Selector: "executeTrade(bytes)"},
			{Type: AssertHistoryCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupCutFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "Removing an unrouted selector aborts the run",
		Cuts: []manifest.Entry{
			{Action: "remove", Selectors: []string{"balance()"}},
		},
		Flow: []FlowStep{{Call: "balance()"}},
	}

	result, err := Run(scenario)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to execute setup")
	assert.Contains(t, err.Error(), "SELECTOR_MISSING")
}

func TestRun_UnknownFacetName(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_facet",
		Description: "Cut steps must name known facets",
		Flow: []FlowStep{
			{Cut: []manifest.Entry{{Action: "add", Facet: "NoSuchFacet", Selectors: []string{"balance()"}}}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow step 0")
}

func TestRun_WithExpectClause(t *testing.T) {
	scenario := &Scenario{
		Name:        "with_expect",
		Description: "Subset match on the decoded output",
		DefaultCuts: true,
		Flow: []FlowStep{
			{
				Call: "executeTrade(bytes)",
				Args: map[string]any{"symbol": "BTC", "side": "buy", "price": 250, "size": 4},
				Expect: &ExpectClause{
					Outcome: "ok",
					Output:  map[string]any{"id": "pos-0001", "balance": 9000},
				},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]any{
		"symbol": "BTC", "side": "buy", "price": float64(250), "size": float64(4),
	}, result.Trace[0].Args)
}

func TestRun_ExpectMismatch(t *testing.T) {
	tests := []struct {
		name    string
		step    FlowStep
		wantErr string
	}{
		{
			name:    "outcome",
			step:    FlowStep{Call: "balance()", Expect: &ExpectClause{Outcome: "unknown_selector"}},
			wantErr: "outcome ok, want unknown_selector",
		},
		{
			name:    "output",
			step:    FlowStep{Call: "balance()", Expect: &ExpectClause{Outcome: "ok", Output: map[string]any{"balance": 1}}},
			wantErr: "output",
		},
		{
			name: "revert",
			step: FlowStep{
				Call:   "closePosition(bytes)",
				Args:   map[string]any{"id": "missing"},
				Expect: &ExpectClause{Outcome: "facet_failed", Revert: "insufficient balance"},
			},
			wantErr: `revert "unknown position", want "insufficient balance"`,
		},
		{
			name: "outcome mentions revert",
			step: FlowStep{
				Call:   "closePosition(bytes)",
				Args:   map[string]any{"id": "missing"},
				Expect: &ExpectClause{Outcome: "ok"},
			},
			wantErr: `(revert "unknown position")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{
				Name:        "mismatch",
				Description: "Expectation mismatches fail the result",
				DefaultCuts: true,
				Flow:        []FlowStep{tt.step},
			}

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_CutSteps(t *testing.T) {
	scenario := &Scenario{
		Name:        "cut_steps",
		Description: "Routes change between calls",
		DefaultCuts: true,
		Flow: []FlowStep{
			{Call: "balance()", Expect: &ExpectClause{Outcome: "ok"}},
			{Cut: []manifest.Entry{{Action: "remove", Selectors: []string{"balance()"}}}},
			{Call: "balance()", Expect: &ExpectClause{Outcome: "unknown_selector"}},
			{
				Cut:    []manifest.Entry{{Action: "replace", Facet: facets.RiskName, Selectors: []string{"executeTrade(bytes)", "balance()"}}},
				Expect: &ExpectClause{Outcome: "SELECTOR_MISSING"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertRoute, Selector: "executeTrade(bytes)", Facet: facets.TradingName},
			{Type: AssertRoute, Selector: "balance()"},
			{Type: AssertHistoryCount, Count: 6},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, TraceEvent{Step: 1, Kind: KindCut, Outcome: "ok"}, result.Trace[1])
	assert.Equal(t, TraceEvent{Step: 3, Kind: KindCut, Outcome: "rejected", Error: "SELECTOR_MISSING"}, result.Trace[3])
}

func TestRun_CutExpectMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "cut_mismatch",
		Description: "A cut expected to fail succeeds",
		DefaultCuts: true,
		Flow: []FlowStep{
			{
				Cut:    []manifest.Entry{{Action: "remove", Selectors: []string{"balance()"}}},
				Expect: &ExpectClause{Outcome: "SELECTOR_MISSING"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "cut outcome ok, want SELECTOR_MISSING")
}

func TestRun_RawInput(t *testing.T) {
	scenario := &Scenario{
		Name:        "raw",
		Description: "Raw inputs bypass signature resolution",
		DefaultCuts: true,
		Flow: []FlowStep{
			{Raw: "0x", Expect: &ExpectClause{Outcome: "malformed_input"}},
			{Raw: "0xb69ef8a8", Expect: &ExpectClause{Outcome: "ok"}},
			{Raw: "0xdeadbeef00", Expect: &ExpectClause{Outcome: "unknown_selector"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace[0].Selector)
	assert.Equal(t, "0xb69ef8a8", result.Trace[1].Selector)
	assert.Equal(t, "0xdeadbeef", result.Trace[2].Selector)
}

func TestRun_BadRawInput(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_raw",
		Description: "Raw input must be hex",
		Flow:        []FlowStep{{Raw: "0xzz"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw input")
}

func TestRun_CallerReachesFacet(t *testing.T) {
	scenario := &Scenario{
		Name:        "caller",
		Description: "Named callers hash to addresses",
		DefaultCuts: true,
		Flow: []FlowStep{
			{
				Call:   "executeTrade(bytes)",
				Caller: "alice",
				Args:   map[string]any{"symbol": "SOL", "side": "SELL", "price": 10, "size": 1},
				Expect: &ExpectClause{Outcome: "ok"},
			},
		},
		Assertions: []Assertion{
			{
				Type:      AssertFinalState,
				Namespace: facets.TradingNamespace,
				Key:       "position/pos-0001",
				Expect:    map[string]any{"caller": ir.AddressOf("alice").String(), "side": "SELL"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_BadCaller(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_caller",
		Description: "0x callers must be addresses",
		DefaultCuts: true,
		Flow:        []FlowStep{{Call: "balance()", Caller: "0x1234"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caller")
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "deterministic",
		Description: "Two runs produce identical traces",
		DefaultCuts: true,
		Flow: []FlowStep{
			{Call: "executeTrade(bytes)", Args: map[string]any{"symbol": "BTC", "side": "BUY", "price": 100, "size": 1}},
			{Call: "checkRisk(bytes)"},
			{Call: "closePosition(bytes)", Args: map[string]any{"id": "pos-0001", "exit_price": 90}},
		},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FreshBackendPerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh",
		Description: "State does not leak between runs",
		DefaultCuts: true,
		Flow: []FlowStep{
			{
				Call:   "executeTrade(bytes)",
				Args:   map[string]any{"symbol": "BTC", "side": "BUY", "price": 100, "size": 1},
				Expect: &ExpectClause{Outcome: "ok", Output: map[string]any{"id": "pos-0001", "balance": 9900}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertHistoryCount, Count: 5},
		},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d errors: %v", i, result.Errors)
	}
}
