package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/manifest"
)

// CutOptions holds flags for the cut command.
type CutOptions struct {
	*RootOptions
	Builtin bool // apply the built-in facet routes instead of a manifest
}

// CutResult is the output of a successful cut, set or remove.
type CutResult struct {
	Cuts    []engine.FacetCut `json:"cuts"`
	Applied int               `json:"applied"` // selectors changed
}

// NewCutCommand creates the cut command.
func NewCutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cut [manifest]",
		Short: "Apply a diamond cut",
		Long: `Apply the cuts of a YAML or CUE manifest in one transaction.

Each cut adds, replaces or removes selectors. If any cut violates a rule
(selector already routed, selector missing, same facet, ...) nothing is
applied and the command exits with code 1.

Examples:
  diamond cut --builtin
  diamond cut upgrade.yaml
  diamond cut upgrade.cue --backend bolt --db diamond.bolt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Builtin == (len(args) == 1) {
				return NewExitError(ExitCommandError, "exactly one of a manifest path or --builtin is required")
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCut(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Builtin, "builtin", false, "route every built-in facet selector")

	return cmd
}

func runCut(opts *CutOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	return withRuntime(opts.RootOptions, cmd, func(ctx context.Context, rt *Runtime) error {
		cuts := facets.DefaultCuts()
		if path != "" {
			m, err := manifest.Load(path)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeManifest, err.Error(), nil)
			}
			formatter.VerboseLog("Loaded manifest %q with %d cut(s)", m.Name, len(m.Cuts))
			cuts, err = m.Resolve(rt.Names())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeManifest, err.Error(), nil)
			}
		}
		return applyCuts(ctx, rt, formatter, cuts)
	})
}

func applyCuts(ctx context.Context, rt *Runtime, formatter *OutputFormatter, cuts []engine.FacetCut) error {
	before, err := rt.Router.History(ctx)
	if err != nil {
		return storageFailure(formatter, err)
	}
	if err := rt.Router.Cut(ctx, cuts...); err != nil {
		return cutFailure(formatter, err)
	}
	after, err := rt.Router.History(ctx)
	if err != nil {
		return storageFailure(formatter, err)
	}

	result := CutResult{Cuts: cuts, Applied: len(after) - len(before)}
	return formatter.Result(result, func(w io.Writer) {
		for _, c := range cuts {
			for _, sel := range c.Selectors {
				fmt.Fprintf(w, "%-7s %s -> %s\n", c.Action, sel, describeFacet(rt, c.Facet))
			}
		}
		fmt.Fprintf(w, "✓ %d selector(s) changed\n", result.Applied)
	})
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <selector> <facet>",
		Short: "Route one selector to a facet",
		Long: `Route a selector to a facet, overwriting any existing route.

The selector is a 0x hex selector or a function signature. The facet is a
0x address or the name of a built-in facet. Setting an unchanged route is
a no-op.

Examples:
  diamond set "balance()" RiskFacet
  diamond set 0xb69ef8a8 0x1111111111111111111111111111111111111111`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			sel, err := ir.ResolveSelector(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeArgument, err.Error(), nil)
			}

			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *Runtime) error {
				facet, err := manifest.ResolveFacet(args[1], rt.Names())
				if err != nil {
					return formatter.Fail(ExitCommandError, ErrCodeArgument, err.Error(), nil)
				}
				if facet.IsZero() {
					return formatter.Fail(ExitCommandError, ErrCodeArgument, "facet must not be the zero address", nil)
				}
				if err := rt.Router.Set(ctx, sel, facet); err != nil {
					return cutFailure(formatter, err)
				}
				return formatter.Result(routeView(rt, sel, facet), func(w io.Writer) {
					fmt.Fprintf(w, "✓ %s -> %s\n", sel, describeFacet(rt, facet))
				})
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <selector>",
		Short: "Remove the route of one selector",
		Long: `Remove a selector from the routing table.

Removing a selector that has no route is a no-op.

Example:
  diamond remove "verifyProof(bytes)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			sel, err := ir.ResolveSelector(args[0])
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeArgument, err.Error(), nil)
			}

			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *Runtime) error {
				if err := rt.Router.Remove(ctx, sel); err != nil {
					return storageFailure(formatter, err)
				}
				return formatter.Result(routeView(rt, sel, ir.Address{}), func(w io.Writer) {
					fmt.Fprintf(w, "✓ %s removed\n", sel)
				})
			})
		},
	}
}

// cutFailure reports a rejected cut with exit code 1, anything else as a
// storage error.
func cutFailure(formatter *OutputFormatter, err error) error {
	var ce *engine.CutError
	if errors.As(err, &ce) {
		return formatter.Fail(ExitFailure, ErrCodeCutRejected, ce.Error(), map[string]any{
			"code":     string(ce.Code),
			"index":    ce.Index,
			"selector": ce.Selector,
		})
	}
	return storageFailure(formatter, err)
}

func storageFailure(formatter *OutputFormatter, err error) error {
	if ferr := formatter.Error(ErrCodeStorage, err.Error(), nil); ferr != nil {
		return ferr
	}
	return &ExitError{Code: ExitCommandError, Message: "storage error", Err: err, Reported: true}
}

func describeFacet(rt *Runtime, facet ir.Address) string {
	if facet.IsZero() {
		return "(none)"
	}
	if name := rt.FacetName(facet); name != "" {
		return fmt.Sprintf("%s (%s)", facet, name)
	}
	return facet.String()
}
