package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// RegionResult is the output of the region command.
type RegionResult struct {
	Namespace string      `json:"namespace"`
	Region    ir.RegionID `json:"region"`
}

// SelectorResult is the output of the selector command.
type SelectorResult struct {
	Signature string      `json:"signature"`
	Selector  ir.Selector `json:"selector"`
}

// NewRegionCommand creates the region command.
func NewRegionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "region [namespace]",
		Short: "Print the storage region of a namespace",
		Long: `Print the storage region derived from a namespace string.

Without an argument, prints the routing table region and the cut history
region. Regions are Keccak-256 of the NFC-normalised namespace.

Examples:
  diamond region
  diamond region diamond.facet.trading`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			results := []RegionResult{
				{Namespace: ir.DiamondNamespace, Region: ir.DiamondRegion},
				{Namespace: ir.DiamondNamespace + ".history", Region: engine.HistoryRegion()},
			}
			if len(args) == 1 {
				results = []RegionResult{{Namespace: args[0], Region: ir.DeriveRegion(args[0])}}
			}

			return formatter.Result(results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintf(w, "%s  %s\n", r.Region, r.Namespace)
				}
			})
		},
	}
}

// NewSelectorCommand creates the selector command.
func NewSelectorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "selector <signature>...",
		Short: "Compute function selectors",
		Long: `Compute the 4-byte selector of each function signature.

Examples:
  diamond selector "executeTrade(bytes)"
  diamond selector "balance()" "transfer(address,uint256)"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			results := make([]SelectorResult, 0, len(args))
			for _, sig := range args {
				sel, err := ir.ResolveSelector(sig)
				if err != nil {
					return formatter.Fail(ExitCommandError, ErrCodeArgument, err.Error(), nil)
				}
				results = append(results, SelectorResult{Signature: sig, Selector: sel})
			}

			return formatter.Result(results, func(w io.Writer) {
				for _, r := range results {
					fmt.Fprintf(w, "%s  %s\n", r.Selector, r.Signature)
				}
			})
		},
	}
}
