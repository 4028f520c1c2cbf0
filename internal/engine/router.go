package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-metrics"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/routing"
)

// Router is the diamond: the single entry point that forwards calls to facets.
//
// The router holds no state of its own. The routing table lives in the
// backend under routing.Region(), and every operation runs in one backend
// transaction.
//
// Thread-safety model:
//   - Dispatch, Cut, Set, Remove and the loupe are safe from any goroutine
//   - calls are serialized by the backend's single writer, not by the router
type Router struct {
	backend kv.Backend
	invoker Invoker
	logger  *slog.Logger
	sink    metrics.MetricSink
	callIDs CallIDGenerator
	now     func() time.Time
}

// RouterOption allows configuration of router parameters.
type RouterOption func(*Router)

// WithLogger sets the router logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetricSink sets the sink for dispatch and cut metrics.
// Default: metrics.BlackholeSink.
func WithMetricSink(sink metrics.MetricSink) RouterOption {
	return func(r *Router) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithCallIDs sets the generator for per-call log correlation ids.
// Default: UUIDv7Generator.
func WithCallIDs(gen CallIDGenerator) RouterOption {
	return func(r *Router) {
		if gen != nil {
			r.callIDs = gen
		}
	}
}

// WithClock sets the time source used for latency samples. Default: time.Now.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter creates a router over backend that runs facets through invoker.
func NewRouter(backend kv.Backend, invoker Invoker, opts ...RouterOption) *Router {
	r := &Router{
		backend: backend,
		invoker: invoker,
		logger:  slog.Default(),
		sink:    &metrics.BlackholeSink{},
		callIDs: UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Region returns the storage region holding the routing table.
func (r *Router) Region() ir.RegionID {
	return routing.Region()
}

// Dispatch forwards input to the facet registered for its selector.
//
// input is the entire payload, selector included. cctx reaches the facet
// unchanged. On success the facet's output is returned unchanged and its
// storage writes are committed. On any failure nothing the call did is kept.
//
// Errors:
//   - *DispatchError MALFORMED_INPUT: fewer than four bytes, storage untouched
//   - *DispatchError UNKNOWN_SELECTOR: selector not routed
//   - *DispatchError FACET_FAILED: facet reverted, Payload carries its bytes
//   - other: backend failure (begin, lookup, commit), also rolled back
func (r *Router) Dispatch(ctx context.Context, input []byte, cctx ir.CallContext) (out []byte, err error) {
	start := r.now()
	callID := r.callIDs.Generate()
	defer func() { r.observe(ctx, callID, input, start, err) }()

	sel, ok := ir.SplitInput(input)
	if !ok {
		return nil, NewMalformedInputError(len(input))
	}

	tx, err := r.backend.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: begin: %w", sel, err)
	}
	defer tx.Rollback()

	facet, found, err := routing.NewTable(tx).Get(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", sel, err)
	}
	if !found {
		return nil, NewUnknownSelectorError(sel)
	}

	env := &Env{
		CallID: callID,
		Call: ir.Call{
			Input:   append([]byte(nil), input...),
			Context: cctx,
		},
		Storage: routing.NewStorage(tx),
		Logger:  r.logger.With("call_id", callID, "selector", sel.String(), "facet", facet.String()),
	}

	out, err = r.invoke(ctx, facet, env)
	if err != nil {
		return nil, failure(sel, facet, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dispatch %s: commit: %w", sel, err)
	}
	return out, nil
}

// invoke runs the facet, turning a panic into a failure so the transaction is
// still rolled back and the router keeps serving.
func (r *Router) invoke(ctx context.Context, facet ir.Address, env *Env) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("facet panicked",
				"call_id", env.CallID,
				"facet", facet.String(),
				"panic", p,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("facet panic: %v", p)
		}
	}()
	return r.invoker.Invoke(ctx, facet, env)
}

// failure maps a facet error to FACET_FAILED. A revert keeps its bytes; any
// other error is reported with its text as payload.
func failure(sel ir.Selector, facet ir.Address, err error) *DispatchError {
	if rev, ok := ir.AsRevert(err); ok {
		return NewFacetFailedError(sel, facet, rev.Data, err)
	}
	return NewFacetFailedError(sel, facet, []byte(err.Error()), err)
}

func (r *Router) observe(ctx context.Context, callID string, input []byte, start time.Time, err error) {
	outcome := Outcome(err)
	elapsed := r.now().Sub(start)

	r.sink.IncrCounterWithLabels(MetricDispatchCount, 1, []metrics.Label{LabelOutcome.M(outcome)})
	r.sink.AddSampleWithLabels(MetricDispatchLatency, float32(elapsed.Seconds()*1000), []metrics.Label{LabelOutcome.M(outcome)})

	attrs := []any{
		"call_id", callID,
		"outcome", outcome,
		"input_len", len(input),
		"elapsed", elapsed,
	}
	if sel, ok := ir.SplitInput(input); ok {
		attrs = append(attrs, "selector", sel.String())
	}

	var de *DispatchError
	switch {
	case err == nil:
		r.logger.DebugContext(ctx, "call dispatched", attrs...)
	case errors.As(err, &de):
		r.logger.DebugContext(ctx, "call rejected", append(attrs, "error", err)...)
	default:
		r.logger.ErrorContext(ctx, "dispatch failed", append(attrs, "error", err)...)
	}
}
