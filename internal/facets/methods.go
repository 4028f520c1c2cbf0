package facets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/routing"
)

// IDGenerator generates unique identifiers. engine.UUIDv7Generator is the
// production implementation.
type IDGenerator interface {
	Generate() string
}

// call is what a method handler receives.
type call struct {
	env   *engine.Env
	space *routing.Namespace
}

type handler func(ctx context.Context, c call) (any, error)

// method binds a function signature to its handler.
type method struct {
	signature string
	handle    handler
}

// methodSet is a facet built from methods that share one namespace.
type methodSet struct {
	namespace string
	byID      map[ir.Selector]method
	order     []ir.Selector
}

func newMethodSet(namespace string, methods ...method) *methodSet {
	ms := &methodSet{namespace: namespace, byID: make(map[ir.Selector]method, len(methods))}
	for _, m := range methods {
		sel := ir.SelectorOf(m.signature)
		ms.byID[sel] = m
		ms.order = append(ms.order, sel)
	}
	return ms
}

// Selectors returns the selectors the facet serves in declaration order.
func (ms *methodSet) Selectors() []ir.Selector {
	return append([]ir.Selector(nil), ms.order...)
}

// Invoke implements engine.Facet.
func (ms *methodSet) Invoke(ctx context.Context, env *engine.Env) ([]byte, error) {
	m, ok := ms.byID[env.Call.Selector()]
	if !ok {
		return nil, ir.Revertf("selector %s not served by %s", env.Call.Selector(), ms.namespace)
	}
	space, err := env.Storage.Namespace(ms.namespace)
	if err != nil {
		return nil, err
	}

	result, err := m.handle(ctx, call{env: env, space: space})
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%s: encode result: %w", m.signature, err)
	}
	if env.Logger != nil {
		env.Logger.Debug("facet method executed", "method", m.signature, "namespace", ms.namespace)
	}
	return out, nil
}

// decodeArgs parses the JSON arguments following the selector.
// Empty arguments leave dst untouched.
func decodeArgs(c call, dst any) error {
	args := c.env.Call.Args()
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return ir.Revertf("malformed arguments")
	}
	return nil
}

func loadJSON(ctx context.Context, space *routing.Namespace, key string, dst any) (bool, error) {
	raw, ok, err := space.Load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%s: decode %q: %w", space.Name(), key, err)
	}
	return true, nil
}

func storeJSON(ctx context.Context, space *routing.Namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode %q: %w", space.Name(), key, err)
	}
	return space.Store(ctx, key, raw)
}
