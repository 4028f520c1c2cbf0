package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/manifest"
)

// Scenario defines a diamond test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DefaultCuts routes every built-in facet selector before Cuts are applied.
	DefaultCuts bool `yaml:"default_cuts"`

	// Cuts are applied, in one cut, before the flow. They must succeed.
	Cuts []manifest.Entry `yaml:"cuts,omitempty"`

	// Flow contains the steps to execute, each a call or a cut.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and storage.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// CallID is the fixed call id for every dispatch. Default "test-call-default".
	CallID string `yaml:"call_id,omitempty"`
}

// FlowStep is either a call (Call or Raw set) or a cut (Cut set).
type FlowStep struct {
	// Call is a function signature or 0x selector.
	Call string `yaml:"call,omitempty"`

	// Args are JSON-encoded and appended after the selector.
	Args any `yaml:"args,omitempty"`

	// Raw is a complete 0x-hex input, used instead of Call and Args.
	Raw string `yaml:"raw,omitempty"`

	// Caller is a name (hashed to an address) or a 0x address.
	Caller string `yaml:"caller,omitempty"`

	// Value is passed to the facet in the call context.
	Value uint64 `yaml:"value,omitempty"`

	// Cut applies routing changes mid-flow.
	Cut []manifest.Entry `yaml:"cut,omitempty"`

	// Expect specifies the expected result.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// IsCut reports whether the step changes routes rather than calling.
func (s FlowStep) IsCut() bool {
	return len(s.Cut) > 0
}

// Label returns how the step appears in traces and assertions.
func (s FlowStep) Label() string {
	if s.Call != "" {
		return s.Call
	}
	return s.Raw
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Outcome is ok, malformed_input, unknown_selector or facet_failed for
	// calls; ok or a cut error code (e.g. SELECTOR_EXISTS) for cuts.
	Outcome string `yaml:"outcome"`

	// Output is matched against the decoded JSON output.
	// Objects match as subsets, everything else exactly.
	Output any `yaml:"output,omitempty"`

	// Revert is the exact expected failure payload text.
	Revert string `yaml:"revert,omitempty"`
}

// Assertion validates the trace or final storage.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check call appears in trace with args
	// - "trace_order": Check calls appear in order
	// - "trace_count": Check call appears exactly N times
	// - "final_state": Check a namespaced slot
	// - "route": Check a selector's facet
	// - "history_count": Check the number of cut records
	Type string `yaml:"type"`

	// Call is the step label (used by trace_contains, trace_count).
	Call string `yaml:"call,omitempty"`

	// Args are the expected call arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Calls is the expected call order (used by trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number (used by trace_count, history_count).
	Count int `yaml:"count,omitempty"`

	// Namespace and Key address a slot (used by final_state).
	Namespace string `yaml:"namespace,omitempty"`
	Key       string `yaml:"key,omitempty"`

	// Expect is the expected decoded JSON slot value (used by final_state).
	// Null expects the slot to be absent.
	Expect any `yaml:"expect,omitempty"`

	// Selector and Facet name a route (used by route). An empty facet
	// expects the selector to be unrouted.
	Selector string `yaml:"selector,omitempty"`
	Facet    string `yaml:"facet,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRoute         = "route"
	AssertHistoryCount  = "history_count"
)

var callOutcomes = map[string]bool{
	engine.OutcomeOK:              true,
	engine.OutcomeMalformedInput:  true,
	engine.OutcomeUnknownSelector: true,
	engine.OutcomeFacetFailed:     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly in dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step FlowStep) error {
	switch {
	case step.IsCut():
		if step.Call != "" || step.Raw != "" || step.Args != nil {
			return fmt.Errorf("flow[%d]: a cut step cannot also call", i)
		}
		if step.Expect != nil && (step.Expect.Output != nil || step.Expect.Revert != "") {
			return fmt.Errorf("flow[%d].expect: cut steps only expect an outcome", i)
		}
	case step.Call != "" && step.Raw != "":
		return fmt.Errorf("flow[%d]: call and raw are mutually exclusive", i)
	case step.Call == "" && step.Raw == "":
		return fmt.Errorf("flow[%d]: one of call, raw or cut is required", i)
	case step.Raw != "" && step.Args != nil:
		return fmt.Errorf("flow[%d]: raw input cannot have args", i)
	}

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Outcome == "" {
		return fmt.Errorf("flow[%d].expect: outcome is required", i)
	}
	if !step.IsCut() && !callOutcomes[step.Expect.Outcome] {
		return fmt.Errorf("flow[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Namespace == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: namespace and key are required for final_state", index)
		}
	case AssertRoute:
		if a.Selector == "" {
			return fmt.Errorf("assertions[%d]: selector is required for route", index)
		}
	case AssertHistoryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
