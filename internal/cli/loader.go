package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/boltstore"
	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
	"github.com/roach88/diamond/internal/logging"
	"github.com/roach88/diamond/internal/store"
)

// Runtime is an opened diamond: configuration, backend, the registry with
// the built-in facets, and a router over them.
type Runtime struct {
	Config   config.Config
	Backend  kv.Backend
	Registry *engine.Registry
	Router   *engine.Router
	Logger   *slog.Logger

	// Metrics is the in-memory sink, nil unless metrics are enabled.
	Metrics *metrics.InmemSink
}

// LoadConfig reads the config file named by opts and applies flag overrides.
// Verbose forces debug logging.
func LoadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Backend != "" {
		cfg.Storage.Backend = opts.Backend
	}
	if opts.Database != "" {
		cfg.Storage.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
		cfg.Metrics.Enabled = true
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// OpenRuntime loads configuration, opens the backend and deploys the
// built-in facets. A memory backend starts with the built-in routes, since
// nothing else could ever route to them. Logs go to logOut.
func OpenRuntime(ctx context.Context, opts *RootOptions, logOut io.Writer) (*Runtime, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := logging.New(logOut, cfg.Log, logging.ProfileRuntime)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	backend, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	reg := engine.NewRegistry()
	if err := facets.Install(reg); err != nil {
		backend.Close()
		return nil, WrapExitError(ExitCommandError, "failed to deploy facets", err)
	}

	rt := &Runtime{
		Config:   cfg,
		Backend:  backend,
		Registry: reg,
		Logger:   logger,
	}
	routerOpts := []engine.RouterOption{engine.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		rt.Metrics = metrics.NewInmemSink(10*time.Second, time.Minute)
		routerOpts = append(routerOpts, engine.WithMetricSink(rt.Metrics))
	}
	rt.Router = engine.NewRouter(backend, reg, routerOpts...)

	logger.Debug("storage opened",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"region", rt.Router.Region().String(),
	)

	if cfg.Storage.Backend == config.BackendMemory {
		if err := rt.Router.Cut(ctx, facets.DefaultCuts()...); err != nil {
			rt.Close()
			return nil, WrapExitError(ExitCommandError, "failed to route built-in facets", err)
		}
	}
	return rt, nil
}

func openBackend(cfg config.StorageConfig) (kv.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendSQLite:
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendBolt:
		st, err := boltstore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Close closes the backend.
func (rt *Runtime) Close() error {
	if err := rt.Backend.Close(); err != nil {
		rt.Logger.Error("error closing storage", "error", err)
		return err
	}
	return nil
}

// FacetName returns the registered name of addr, or "" if none.
func (rt *Runtime) FacetName(addr ir.Address) string {
	for _, m := range rt.Registry.List() {
		if m.Address == addr {
			return m.Name
		}
	}
	return ""
}

// Names maps registered facet names to addresses.
func (rt *Runtime) Names() map[string]ir.Address {
	names := make(map[string]ir.Address)
	for _, m := range rt.Registry.List() {
		names[m.Name] = m.Address
	}
	return names
}

// DumpMetrics writes every counter and sample held by the in-memory sink,
// one per line, sorted by key. It writes nothing when metrics are disabled.
func (rt *Runtime) DumpMetrics(w io.Writer) {
	if rt.Metrics == nil {
		return
	}
	for _, interval := range rt.Metrics.Data() {
		interval.RLock()
		writeSampled(w, "counter", interval.Counters)
		writeSampled(w, "sample", interval.Samples)
		interval.RUnlock()
	}
}

func writeSampled(w io.Writer, kind string, values map[string]metrics.SampledValue) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := values[k]
		fmt.Fprintf(w, "%s %s count=%d sum=%g\n", kind, k, v.Count, v.Sum)
	}
}

// withRuntime opens a runtime for one command and always closes it. With
// --verbose the metrics collected during fn are written to stderr.
func withRuntime(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := OpenRuntime(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	err = fn(ctx, rt)
	if opts.Verbose {
		rt.DumpMetrics(cmd.ErrOrStderr())
	}
	return err
}
