package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/harness"
	"github.com/roach88/diamond/internal/logging"
)

// Golden states reported per scenario.
const (
	GoldenNone     = "none"
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Golden string   `json:"golden"`
	Errors []string `json:"errors,omitempty"`
}

// TestSummary is the outcome of a scenario directory.
type TestSummary struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against a fresh diamond",
		Long: `Run every scenario in a directory.

Each scenario runs against a fresh in-memory diamond with the built-in
facets deployed. Expect clauses and assertions must hold, and when
<scenarios-dir>/golden/<file>.golden exists the trace must match it.
Storage flags are ignored.

Exit codes:
  0 - Every scenario passed
  1 - At least one scenario failed
  2 - Command error

Examples:
  diamond test ./testdata/scenarios
  diamond test ./testdata/scenarios --filter "trading_*"
  diamond test ./testdata/scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current traces")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only scenario files whose base name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	paths, err := selectScenarios(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	suite := &suiteRunner{update: opts.Update}
	if opts.Verbose {
		suite.logger, err = logging.New(cmd.ErrOrStderr(), config.LogConfig{Level: "debug"}, logging.ProfileRuntime)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
	}

	summary := TestSummary{Scenarios: make([]ScenarioReport, 0, len(paths))}
	for _, path := range paths {
		report := suite.run(path)
		formatter.VerboseLog("%s: pass=%t golden=%s", report.File, report.Pass, report.Golden)
		if report.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Scenarios = append(summary.Scenarios, report)
	}

	if summary.Failed == 0 {
		return formatter.Result(summary, func(w io.Writer) { writeSummary(w, summary) })
	}
	if opts.Format != "json" {
		writeSummary(cmd.OutOrStdout(), summary)
	}
	return formatter.Fail(ExitFailure, ErrCodeTestFailed,
		fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, len(summary.Scenarios)), summary)
}

// selectScenarios returns the scenario files of dir whose base name,
// without extension, matches filter.
func selectScenarios(dir, filter string) ([]string, error) {
	paths, err := harness.FindScenarios(dir)
	if err != nil || filter == "" {
		return paths, err
	}

	selected := paths[:0]
	for _, path := range paths {
		ok, err := filepath.Match(filter, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
		if ok {
			selected = append(selected, path)
		}
	}
	return selected, nil
}

type suiteRunner struct {
	update bool
	logger *slog.Logger
}

func (s *suiteRunner) run(path string) ScenarioReport {
	report := ScenarioReport{Name: filepath.Base(path), File: path, Golden: GoldenNone}
	fail := func(format string, args ...any) ScenarioReport {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
		return report
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return fail("load: %v", err)
	}
	report.Name = scenario.Name
	report.Steps = len(scenario.Flow)

	var runOpts []harness.Option
	if s.logger != nil {
		runOpts = append(runOpts, harness.WithLogger(s.logger.With("scenario", scenario.Name)))
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return fail("execution error: %v", err)
	}
	report.Errors = append(report.Errors, result.Errors...)

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return fail("snapshot: %v", err)
	}
	report.Golden, err = s.golden(GoldenPath(path), snapshot)
	if err != nil {
		return fail("golden: %v", err)
	}
	if report.Golden == GoldenMismatch {
		report.Errors = append(report.Errors, "trace does not match golden file (run with --update to regenerate)")
	}

	report.Pass = len(report.Errors) == 0
	return report
}

// golden compares snapshot with the file at path, or rewrites it in update
// mode. A missing file is not a failure.
func (s *suiteRunner) golden(path string, snapshot []byte) (string, error) {
	if s.update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, snapshot, 0644); err != nil {
			return "", err
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return GoldenNone, nil
	case err != nil:
		return "", err
	case bytes.Equal(want, snapshot):
		return GoldenMatch, nil
	default:
		return GoldenMismatch, nil
	}
}

// GoldenPath returns <dir>/golden/<name>.golden for a scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(filepath.Dir(scenarioFile), "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

func writeSummary(w io.Writer, summary TestSummary) {
	if len(summary.Scenarios) == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, r := range summary.Scenarios {
		if !r.Pass {
			fmt.Fprintf(w, "✗ %s\n", r.Name)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
			continue
		}
		note := ""
		if r.Golden == GoldenUpdated {
			note = " (golden updated)"
		}
		fmt.Fprintf(w, "✓ %s (%d steps)%s\n", r.Name, r.Steps, note)
	}

	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, len(summary.Scenarios))
}
