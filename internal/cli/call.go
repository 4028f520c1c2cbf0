package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/harness"
	"github.com/roach88/diamond/internal/ir"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args        string
	Caller      string
	Value       uint64
	Credentials map[string]string
}

// CallResult is the output of a successful call.
type CallResult struct {
	Selector ir.Selector `json:"selector"`
	Output   any         `json:"output"` // decoded JSON, or 0x hex
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <signature|hex>",
		Short: "Dispatch a call through the diamond",
		Long: `Dispatch one call through the router.

The first argument is a function signature, whose selector starts the
input, or a complete 0x hex input. --args appends JSON arguments after it.

Exit codes:
  0 - The facet returned output (state changes committed)
  1 - The call was rejected: malformed input, unknown selector or facet failure
  2 - Command error

Examples:
  diamond call "balance()"
  diamond call "executeTrade(bytes)" --args '{"symbol":"BTC","side":"BUY","price":100,"size":1}'
  diamond call 0xb69ef8a8 --caller alice --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "", "JSON arguments appended after the selector")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller name or 0x address")
	cmd.Flags().Uint64Var(&opts.Value, "value", 0, "value transferred with the call")
	cmd.Flags().StringToStringVar(&opts.Credentials, "credential", nil, "credential passed to the facet (key=value, repeatable)")

	return cmd
}

func runCall(opts *CallOptions, target string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	input, err := BuildInput(target, opts.Args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeArgument, err.Error(), nil)
	}
	caller, err := ir.ResolveAddress(opts.Caller)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeArgument, fmt.Sprintf("caller: %v", err), nil)
	}
	cctx := ir.CallContext{Caller: caller, Value: opts.Value, Credentials: opts.Credentials}

	return withRuntime(opts.RootOptions, cmd, func(ctx context.Context, rt *Runtime) error {
		formatter.VerboseLog("Dispatching %d byte(s) as %s", len(input), caller)

		out, err := rt.Router.Dispatch(ctx, input, cctx)
		if err != nil {
			return dispatchFailure(formatter, err)
		}

		sel, _ := ir.SplitInput(input)
		result := CallResult{Selector: sel, Output: harness.DecodeOutput(out)}
		return formatter.Result(result, func(w io.Writer) {
			switch {
			case len(out) == 0:
				fmt.Fprintln(w, "✓ ok (no output)")
			case json.Valid(out):
				fmt.Fprintln(w, string(out))
			default:
				fmt.Fprintln(w, "0x"+hex.EncodeToString(out))
			}
		})
	})
}

// BuildInput assembles call input from a function signature or 0x hex input,
// followed by optional JSON arguments.
func BuildInput(target, args string) ([]byte, error) {
	target = strings.TrimSpace(target)

	var input []byte
	if strings.Contains(target, "(") {
		sel, err := ir.ResolveSelector(target)
		if err != nil {
			return nil, err
		}
		input = sel.Bytes()
	} else {
		raw := strings.TrimPrefix(strings.TrimPrefix(target, "0x"), "0X")
		decoded, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("input %q is neither a signature nor hex: %w", target, err)
		}
		input = decoded
	}

	if args != "" {
		if !json.Valid([]byte(args)) {
			return nil, fmt.Errorf("--args is not valid JSON")
		}
		input = append(input, args...)
	}
	return input, nil
}

// dispatchFailure maps the three dispatch rejections to exit code 1 and
// everything else to a storage error.
func dispatchFailure(formatter *OutputFormatter, err error) error {
	var de *engine.DispatchError
	if !errors.As(err, &de) {
		return storageFailure(formatter, err)
	}

	switch de.Code {
	case engine.ErrCodeMalformedInput:
		return formatter.Fail(ExitFailure, ErrCodeMalformedInput, de.Error(), nil)
	case engine.ErrCodeUnknownSelector:
		return formatter.Fail(ExitFailure, ErrCodeUnknownSelector, de.Error(), map[string]any{
			"selector": de.Selector,
		})
	default:
		return formatter.Fail(ExitFailure, ErrCodeFacetFailed, de.Error(), map[string]any{
			"selector":    de.Selector,
			"facet":       de.Facet,
			"payload":     harness.DescribePayload(de.Payload),
			"payload_hex": "0x" + hex.EncodeToString(de.Payload),
		})
	}
}
