package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/routing"
)

var (
	ErrFacetExists      = errors.New("engine: facet already registered at address")
	ErrFacetNil         = errors.New("engine: facet is nil")
	ErrFacetName        = errors.New("engine: invalid facet name")
	ErrFacetNotDeployed = errors.New("engine: no facet deployed at address")
)

// Env is what a facet sees of the call it is executing.
//
// The facet runs as if it were the router: Call.Context is the router's caller
// context, untouched, and Storage reaches the router's storage through the
// call's transaction.
type Env struct {
	// CallID correlates log lines of one dispatch.
	CallID string

	// Call is the entire payload (selector included) and its context.
	Call ir.Call

	// Storage is the capability to open namespaced regions within the call.
	Storage *routing.Storage

	// Logger is scoped to the call.
	Logger *slog.Logger
}

// Facet is an independently deployed logic module.
//
// Invoke returns the raw output on success. To fail, a facet returns an
// *ir.Revert; its Data reaches the caller verbatim. Any other error is also a
// failure, reported with the error text as payload.
type Facet interface {
	Invoke(ctx context.Context, env *Env) ([]byte, error)
}

// FacetFunc adapts a function to the Facet interface.
type FacetFunc func(ctx context.Context, env *Env) ([]byte, error)

// Invoke calls f.
func (f FacetFunc) Invoke(ctx context.Context, env *Env) ([]byte, error) {
	return f(ctx, env)
}

// Invoker transfers control to the facet deployed at an address.
// It is the router's only way of running facet code.
type Invoker interface {
	Invoke(ctx context.Context, facet ir.Address, env *Env) ([]byte, error)
}

// FacetMetadata describes a registered facet.
type FacetMetadata struct {
	Name    string     `json:"name"`
	Address ir.Address `json:"address"`
}

// Registry is an in-process Invoker: a set of facets keyed by address.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	items map[ir.Address]registered
}

type registered struct {
	name  string
	facet Facet
}

// NewRegistry creates an empty facet registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[ir.Address]registered)}
}

// Register deploys a facet at the address derived from its name
// (ir.AddressOf) and returns that address.
func (r *Registry) Register(name string, facet Facet) (ir.Address, error) {
	addr := ir.AddressOf(strings.TrimSpace(name))
	if err := r.RegisterAt(addr, name, facet); err != nil {
		return ir.Address{}, err
	}
	return addr, nil
}

// RegisterAt deploys a facet at an explicit address.
func (r *Registry) RegisterAt(addr ir.Address, name string, facet Facet) error {
	if facet == nil {
		return ErrFacetNil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrFacetName)
	}
	if addr.IsZero() {
		return fmt.Errorf("%w: zero address", ErrFacetName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.items[addr]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrFacetExists, addr, prev.name)
	}
	r.items[addr] = registered{name: name, facet: facet}
	return nil
}

// Resolve returns the facet deployed at addr.
func (r *Registry) Resolve(addr ir.Address) (Facet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[addr]
	return item.facet, ok
}

// Lookup returns the address of the facet registered under name.
func (r *Registry) Lookup(name string) (ir.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for addr, item := range r.items {
		if item.name == name {
			return addr, true
		}
	}
	return ir.Address{}, false
}

// List returns deterministic metadata ordering by name.
func (r *Registry) List() []FacetMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]FacetMetadata, 0, len(r.items))
	for addr, item := range r.items {
		list = append(list, FacetMetadata{Name: item.name, Address: addr})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Invoke implements Invoker.
func (r *Registry) Invoke(ctx context.Context, addr ir.Address, env *Env) ([]byte, error) {
	facet, ok := r.Resolve(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFacetNotDeployed, addr)
	}
	return facet.Invoke(ctx, env)
}
