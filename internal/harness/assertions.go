package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/manifest"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Kind == KindCall {
				fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Step, event.Call, event.Args, event.Outcome)
			} else {
				fmt.Fprintf(&buf, "  [%d] cut -> %s\n", event.Step, event.Outcome)
			}
		}
	}

	return buf.String()
}

// callPositions returns the 1-based trace positions of the call events for
// call.
func callPositions(trace []TraceEvent, call string) []int {
	var pos []int
	for i, ev := range trace {
		if ev.Kind == KindCall && ev.Call == call {
			pos = append(pos, i+1)
		}
	}
	return pos
}

// assertTraceContains passes when some call event for assertion.Call has
// args matching assertion.Args as a subset.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want := normalize(assertion.Args)
	for _, p := range callPositions(trace, assertion.Call) {
		if matchValue(trace[p-1].Args, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %v", assertion.Call, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder compares the first occurrence of each call. Other steps
// may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	first := make([]int, len(assertion.Calls))
	for i, call := range assertion.Calls {
		pos := callPositions(trace, call)
		if len(pos) == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all calls present: %v", assertion.Calls),
				Actual:   "missing call: " + call,
				Trace:    trace,
			}
		}
		first[i] = pos[0]
	}

	for i := 1; i < len(first); i++ {
		if first[i-1] < first[i] {
			continue
		}
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
			Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
				assertion.Calls[i-1], first[i-1], assertion.Calls[i], first[i]),
			Trace: trace,
		}
	}
	return nil
}

// assertTraceCount passes when assertion.Call appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	if n := len(callPositions(trace, assertion.Call)); n != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d occurrences", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads a namespaced slot after the flow and compares its
// decoded JSON value.
func assertFinalState(ctx context.Context, h *Harness, assertion Assertion) error {
	tx, err := h.backend.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	raw, ok, err := tx.Load(ctx, ir.DeriveRegion(assertion.Namespace), []byte(assertion.Key))
	if err != nil {
		return err
	}
	where := fmt.Sprintf("%s[%s]", assertion.Namespace, assertion.Key)

	if assertion.Expect == nil {
		if ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: where + " absent",
				Actual:   string(raw),
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, assertion.Expect),
			Actual:   "slot not found",
		}
	}

	var actual any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, assertion.Expect),
			Actual:   fmt.Sprintf("non-JSON value %q", raw),
		}
	}
	if !matchValue(actual, normalize(assertion.Expect)) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %v", where, assertion.Expect),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// assertRoute checks the facet a selector is routed to.
func assertRoute(ctx context.Context, h *Harness, assertion Assertion) error {
	sel, err := ir.ResolveSelector(assertion.Selector)
	if err != nil {
		return err
	}
	facet, ok, err := h.router.FacetAddress(ctx, sel)
	if err != nil {
		return err
	}

	if assertion.Facet == "" {
		if ok {
			return &AssertionError{
				Type:     AssertRoute,
				Expected: fmt.Sprintf("%s unrouted", assertion.Selector),
				Actual:   fmt.Sprintf("routed to %s", facet),
			}
		}
		return nil
	}

	cuts, err := (&manifest.Manifest{Cuts: []manifest.Entry{{
		Action:    "add",
		Facet:     assertion.Facet,
		Selectors: []string{assertion.Selector},
	}}}).Resolve(h.names)
	if err != nil {
		return err
	}
	want := cuts[0].Facet
	if !ok || facet != want {
		actual := "unrouted"
		if ok {
			actual = "routed to " + facet.String()
		}
		return &AssertionError{
			Type:     AssertRoute,
			Expected: fmt.Sprintf("%s routed to %s (%s)", assertion.Selector, assertion.Facet, want),
			Actual:   actual,
		}
	}
	return nil
}

func assertHistoryCount(ctx context.Context, h *Harness, assertion Assertion) error {
	history, err := h.router.History(ctx)
	if err != nil {
		return err
	}
	if len(history) != assertion.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Expected: fmt.Sprintf("%d cut records", assertion.Count),
			Actual:   fmt.Sprintf("%d cut records", len(history)),
		}
	}
	return nil
}

// matchValue compares decoded JSON values. Objects in expected match as
// subsets of actual; everything else must be equal.
func matchValue(actual, expected any) bool {
	if expected == nil {
		return true
	}
	expMap, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	actMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for key, expVal := range expMap {
		actVal, exists := actMap[key]
		if !exists || !matchValue(actVal, expVal) {
			return false
		}
	}
	return true
}

type checkFunc func(ctx context.Context, h *Harness, result *Result, a Assertion) error

func traceCheck(fn func([]TraceEvent, Assertion) error) checkFunc {
	return func(_ context.Context, _ *Harness, result *Result, a Assertion) error {
		return fn(result.Trace, a)
	}
}

func storageCheck(fn func(context.Context, *Harness, Assertion) error) checkFunc {
	return func(ctx context.Context, h *Harness, _ *Result, a Assertion) error {
		return fn(ctx, h, a)
	}
}

var checks = map[string]checkFunc{
	AssertTraceContains: traceCheck(assertTraceContains),
	AssertTraceOrder:    traceCheck(assertTraceOrder),
	AssertTraceCount:    traceCheck(assertTraceCount),
	AssertFinalState:    storageCheck(assertFinalState),
	AssertRoute:         storageCheck(assertRoute),
	AssertHistoryCount:  storageCheck(assertHistoryCount),
}

// EvaluateAssertions checks every assertion against the trace of result and
// the storage of h, returning one message per failed assertion.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var failed []string
	for i, a := range assertions {
		check, ok := checks[a.Type]
		if !ok {
			failed = append(failed, fmt.Sprintf("assertion[%d]: unknown assertion type %q", i, a.Type))
			continue
		}
		if err := check(ctx, h, result, a); err != nil {
			failed = append(failed, err.Error())
		}
	}
	return failed
}
