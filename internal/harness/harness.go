package harness

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/logging"
	"github.com/roach88/diamond/internal/manifest"
	"github.com/roach88/diamond/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a fixed call id and sequential position ids.
type Harness struct {
	backend kv.Backend
	router  *engine.Router
	names   map[string]ir.Address
	logger  *slog.Logger
}

// Option configures a harness run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger routes router and harness logs to logger. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory backend for isolation.
//
// Execution flow:
// 1. Create a fresh router with the built-in facets deployed
// 2. Apply default and scenario cuts
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	backend := kv.NewMemory()
	defer backend.Close()

	reg := engine.NewRegistry()
	if err := facets.Install(reg, facets.WithPositionIDs(testutil.NewSequenceIDs("pos"))); err != nil {
		return nil, err
	}

	h := &Harness{
		backend: backend,
		router: engine.NewRouter(backend, reg,
			engine.WithLogger(o.logger),
			engine.WithCallIDs(testutil.NewFixedCallID(scenario.CallID))),
		names:  facets.Names(),
		logger: o.logger,
	}

	ctx := context.Background()
	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	for _, errMsg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	var cuts []engine.FacetCut
	if scenario.DefaultCuts {
		cuts = append(cuts, facets.DefaultCuts()...)
	}
	if len(scenario.Cuts) > 0 {
		extra, err := (&manifest.Manifest{Cuts: scenario.Cuts}).Resolve(h.names)
		if err != nil {
			return err
		}
		cuts = append(cuts, extra...)
	}
	if len(cuts) == 0 {
		return nil
	}
	return h.router.Cut(ctx, cuts...)
}

func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	if step.IsCut() {
		return h.executeCut(ctx, i, step, result)
	}
	return h.executeCall(ctx, i, step, result)
}

func (h *Harness) executeCut(ctx context.Context, i int, step FlowStep, result *Result) error {
	cuts, err := (&manifest.Manifest{Cuts: step.Cut}).Resolve(h.names)
	if err != nil {
		return err
	}

	ev := TraceEvent{Step: i, Kind: KindCut, Outcome: engine.OutcomeOK}
	if err := h.router.Cut(ctx, cuts...); err != nil {
		var ce *engine.CutError
		if !errors.As(err, &ce) {
			return err
		}
		ev.Outcome = "rejected"
		ev.Error = string(ce.Code)
	}
	result.AddTrace(ev)

	if step.Expect != nil {
		got := ev.Outcome
		if ev.Error != "" {
			got = ev.Error
		}
		if got != step.Expect.Outcome {
			result.AddError(fmt.Sprintf("flow[%d]: cut outcome %s, want %s", i, got, step.Expect.Outcome))
		}
	}

	h.logger.Info("flow cut completed", "step", i, "outcome", ev.Outcome, "error", ev.Error)
	return nil
}

func (h *Harness) executeCall(ctx context.Context, i int, step FlowStep, result *Result) error {
	input, err := buildInput(step)
	if err != nil {
		return err
	}
	cctx, err := h.callContext(step)
	if err != nil {
		return err
	}

	out, callErr := h.router.Dispatch(ctx, input, cctx)

	ev := TraceEvent{
		Step:    i,
		Kind:    KindCall,
		Call:    step.Label(),
		Args:    normalize(step.Args),
		Outcome: engine.Outcome(callErr),
	}
	if sel, ok := ir.SplitInput(input); ok {
		ev.Selector = sel.String()
	}
	switch ev.Outcome {
	case engine.OutcomeOK:
		ev.Output = DecodeOutput(out)
	case engine.OutcomeFacetFailed:
		payload, _ := engine.FailurePayload(callErr)
		ev.Revert = DescribePayload(payload)
	case engine.OutcomeError:
		return callErr
	}
	result.AddTrace(ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, ev) {
			result.AddError(msg)
		}
	}

	h.logger.Info("flow step completed",
		"step", i,
		"call", ev.Call,
		"selector", ev.Selector,
		"outcome", ev.Outcome,
	)
	return nil
}

func buildInput(step FlowStep) ([]byte, error) {
	if step.Raw != "" {
		raw := strings.TrimPrefix(strings.TrimPrefix(step.Raw, "0x"), "0X")
		input, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("raw input: %w", err)
		}
		return input, nil
	}

	sel, err := ir.ResolveSelector(step.Call)
	if err != nil {
		return nil, err
	}
	input := sel.Bytes()
	if step.Args != nil {
		args, err := json.Marshal(normalize(step.Args))
		if err != nil {
			return nil, fmt.Errorf("encode args: %w", err)
		}
		input = append(input, args...)
	}
	return input, nil
}

func (h *Harness) callContext(step FlowStep) (ir.CallContext, error) {
	caller, err := ir.ResolveAddress(step.Caller)
	if err != nil {
		return ir.CallContext{}, fmt.Errorf("caller: %w", err)
	}
	return ir.CallContext{Caller: caller, Value: step.Value}, nil
}

func checkExpect(i int, expect *ExpectClause, ev TraceEvent) []string {
	var errs []string
	if ev.Outcome != expect.Outcome {
		detail := ""
		if ev.Revert != "" {
			detail = fmt.Sprintf(" (revert %q)", ev.Revert)
		}
		errs = append(errs, fmt.Sprintf("flow[%d] %s: outcome %s%s, want %s", i, ev.Call, ev.Outcome, detail, expect.Outcome))
		return errs
	}
	if expect.Revert != "" && ev.Revert != expect.Revert {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: revert %q, want %q", i, ev.Call, ev.Revert, expect.Revert))
	}
	if expect.Output != nil && !matchValue(ev.Output, normalize(expect.Output)) {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: output %v, want %v", i, ev.Call, ev.Output, expect.Output))
	}
	return errs
}

// normalize converts YAML-decoded values to the shapes encoding/json decodes
// into, so expected and actual values compare with DeepEqual.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// DecodeOutput decodes JSON call output. Non-JSON output is returned as 0x hex.
func DecodeOutput(out []byte) any {
	if len(out) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(out, &v); err != nil {
		return "0x" + hex.EncodeToString(out)
	}
	return v
}

// DescribePayload renders a failure payload as text when it is printable
// UTF-8, and as 0x hex otherwise.
func DescribePayload(payload []byte) string {
	if utf8.Valid(payload) && strings.IndexFunc(string(payload), func(r rune) bool { return !unicode.IsPrint(r) }) < 0 {
		return string(payload)
	}
	return "0x" + hex.EncodeToString(payload)
}
