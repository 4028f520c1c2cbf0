package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/facets"
	"github.com/roach88/diamond/internal/manifest"
)

// ValidationError is one manifest problem with its source position.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ManifestReport is the validation result of one manifest file.
type ManifestReport struct {
	Path      string           `json:"path"`
	Name      string           `json:"name,omitempty"`
	Cuts      int              `json:"cuts"`
	Selectors int              `json:"selectors"`
	Error     *ValidationError `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Manifests []ManifestReport `json:"manifests"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate cut manifests without applying them",
		Long: `Parse cut manifests and resolve their facets and selectors.

YAML manifests are decoded strictly; CUE manifests are unified with the
manifest schema. Facet names resolve against the built-in facets. Nothing
is written to storage.

Examples:
  diamond validate upgrade.yaml
  diamond validate manifests/*.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Manifests: make([]ManifestReport, 0, len(paths))}
	for _, path := range paths {
		report := validateManifest(path, formatter)
		if report.Error != nil {
			result.Valid = false
		}
		result.Manifests = append(result.Manifests, report)
	}

	if err := formatter.Result(result, func(w io.Writer) { writeValidation(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "manifest validation failed")
	}
	return nil
}

func validateManifest(path string, formatter *OutputFormatter) ManifestReport {
	report := ManifestReport{Path: path}

	m, err := manifest.Load(path)
	if err != nil {
		report.Error = toValidationError(err)
		return report
	}
	report.Name = m.Name
	formatter.VerboseLog("Validating %s (%d cut(s))", path, len(m.Cuts))

	cuts, err := m.Resolve(facets.Names())
	if err != nil {
		report.Error = toValidationError(err)
		return report
	}
	report.Cuts = len(cuts)
	for _, c := range cuts {
		report.Selectors += len(c.Selectors)
	}
	return report
}

func toValidationError(err error) *ValidationError {
	var merr *manifest.Error
	if !errors.As(err, &merr) {
		return &ValidationError{Field: "manifest", Message: err.Error()}
	}
	ve := &ValidationError{Field: merr.Field, Message: merr.Message}
	if merr.Pos.IsValid() {
		ve.Line = merr.Pos.Line()
		ve.Column = merr.Pos.Column()
	}
	return ve
}

func writeValidation(w io.Writer, result ValidationResult) {
	for _, r := range result.Manifests {
		if r.Error == nil {
			fmt.Fprintf(w, "✓ %s: %d cut(s), %d selector(s)\n", r.Path, r.Cuts, r.Selectors)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Path)
		if r.Error.Line > 0 {
			fmt.Fprintf(w, "  line %d: ", r.Error.Line)
		} else {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprintf(w, "%s: %s\n", r.Error.Field, r.Error.Message)
	}
	if result.Valid {
		fmt.Fprintln(w, "✓ All manifests valid")
	}
}
