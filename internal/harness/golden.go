package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir holds the golden traces of the package under test, relative to
// its directory.
const GoldenDir = "testdata/golden"

// TraceFile is the golden file layout of one scenario run.
type TraceFile struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot renders the trace of result as indented JSON ending in a newline.
// encoding/json sorts map keys, so equal traces give equal bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(TraceFile{ScenarioName: scenarioName, Trace: result.Trace}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunGolden runs scenario and checks its trace against
// GoldenDir/<scenario name>.golden. Run the tests with -update to rewrite
// the file.
func RunGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertTrace(t, scenario.Name, result)
}

// AssertTrace checks an existing result against its golden file.
func AssertTrace(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	goldie.New(t, goldie.WithFixtureDir(GoldenDir), goldie.WithNameSuffix(".golden")).
		Assert(t, scenarioName, data)
	return nil
}
