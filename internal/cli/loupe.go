package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// RouteView is one routing table entry with the facet's registered name.
type RouteView struct {
	Selector ir.Selector `json:"selector"`
	Facet    ir.Address  `json:"facet"`
	Name     string      `json:"name,omitempty"`
}

// FacetView is one facet of the loupe output.
type FacetView struct {
	Facet     ir.Address    `json:"facet"`
	Name      string        `json:"name,omitempty"`
	Deployed  bool          `json:"deployed"`
	Selectors []ir.Selector `json:"selectors"`
}

// HistoryView is one cut record with facet names.
type HistoryView struct {
	engine.CutRecord
	FacetName    string `json:"facet_name,omitempty"`
	PreviousName string `json:"previous_name,omitempty"`
}

func routeView(rt *Runtime, sel ir.Selector, facet ir.Address) RouteView {
	return RouteView{Selector: sel, Facet: facet, Name: rt.FacetName(facet)}
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routing table",
		Long: `List every selector in the routing table, ordered by selector.

Example:
  diamond routes --db diamond.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *Runtime) error {
				entries, err := rt.Router.Routes(ctx)
				if err != nil {
					return storageFailure(formatter, err)
				}
				routes := make([]RouteView, 0, len(entries))
				for _, e := range entries {
					routes = append(routes, routeView(rt, e.Selector, e.Facet))
				}

				return formatter.Result(routes, func(w io.Writer) {
					if len(routes) == 0 {
						fmt.Fprintln(w, "No routes.")
						return
					}
					for _, r := range routes {
						fmt.Fprintf(w, "%s  %s\n", r.Selector, describeFacet(rt, r.Facet))
					}
				})
			})
		},
	}
}

// NewLoupeCommand creates the loupe command.
func NewLoupeCommand(rootOpts *RootOptions) *cobra.Command {
	var facetRef string

	cmd := &cobra.Command{
		Use:   "loupe",
		Short: "Inspect facets and their selectors",
		Long: `Group the routing table by facet.

Each facet is listed with the selectors routed to it and whether a facet
implementation is deployed at its address.

Examples:
  diamond loupe
  diamond loupe --facet TradingFacet`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *Runtime) error {
				infos, err := loupeFacets(ctx, rt, formatter, facetRef)
				if err != nil {
					return err
				}

				views := make([]FacetView, 0, len(infos))
				for _, info := range infos {
					_, deployed := rt.Registry.Resolve(info.Facet)
					views = append(views, FacetView{
						Facet:     info.Facet,
						Name:      rt.FacetName(info.Facet),
						Deployed:  deployed,
						Selectors: info.Selectors,
					})
				}

				return formatter.Result(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No facets.")
						return
					}
					for _, v := range views {
						status := ""
						if !v.Deployed {
							status = " [not deployed]"
						}
						fmt.Fprintf(w, "%s%s\n", describeFacet(rt, v.Facet), status)
						for _, sel := range v.Selectors {
							fmt.Fprintf(w, "  %s\n", sel)
						}
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&facetRef, "facet", "", "only this facet (address or name)")

	return cmd
}

func loupeFacets(ctx context.Context, rt *Runtime, formatter *OutputFormatter, facetRef string) ([]engine.FacetInfo, error) {
	if facetRef == "" {
		infos, err := rt.Router.Facets(ctx)
		if err != nil {
			return nil, storageFailure(formatter, err)
		}
		return infos, nil
	}

	names := rt.Names()
	facet, ok := names[facetRef]
	if !ok {
		addr, err := ir.ParseAddress(facetRef)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeArgument, fmt.Sprintf("unknown facet %q", facetRef), nil)
		}
		facet = addr
	}
	sels, err := rt.Router.FacetSelectors(ctx, facet)
	if err != nil {
		return nil, storageFailure(formatter, err)
	}
	if len(sels) == 0 {
		return nil, nil
	}
	return []engine.FacetInfo{{Facet: facet, Selectors: sels}}, nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the cut history",
		Long: `Show every routing change in the order it was applied.

Each record carries the action, the selector, the new facet and the facet
that was routed before.

Example:
  diamond history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *Runtime) error {
				records, err := rt.Router.History(ctx)
				if err != nil {
					return storageFailure(formatter, err)
				}
				views := make([]HistoryView, 0, len(records))
				for _, rec := range records {
					views = append(views, HistoryView{
						CutRecord:    rec,
						FacetName:    rt.FacetName(rec.Facet),
						PreviousName: rt.FacetName(rec.Previous),
					})
				}

				return formatter.Result(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No cuts recorded.")
						return
					}
					for _, v := range views {
						fmt.Fprintf(w, "#%d %-7s %s  %s -> %s\n",
							v.Seq, v.Action, v.Selector,
							describeFacet(rt, v.Previous), describeFacet(rt, v.Facet))
					}
				})
			})
		},
	}
}
