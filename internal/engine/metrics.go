package engine

import (
	"github.com/hashicorp/go-metrics"
)

var (
	// MetricDispatchCount counts dispatched calls, labelled by outcome.
	MetricDispatchCount = []string{"diamond", "dispatch", "count"}
	// MetricDispatchLatency samples dispatch wall time in milliseconds.
	MetricDispatchLatency = []string{"diamond", "dispatch", "latency"}
	// MetricCutCount counts applied selector changes, labelled by action.
	MetricCutCount = []string{"diamond", "cut", "count"}
)

// TelemetryLabel names a metric label or log attribute.
type TelemetryLabel string

var (
	LabelOutcome TelemetryLabel = "outcome"
	LabelAction  TelemetryLabel = "action"
)

// M builds a metric label.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// Dispatch outcomes used as label values.
const (
	OutcomeOK              = "ok"
	OutcomeMalformedInput  = "malformed_input"
	OutcomeUnknownSelector = "unknown_selector"
	OutcomeFacetFailed     = "facet_failed"
	OutcomeError           = "error"
)

// Outcome classifies a Dispatch result for metrics and logs.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	code, ok := dispatchCode(err)
	if !ok {
		return OutcomeError
	}
	switch code {
	case ErrCodeMalformedInput:
		return OutcomeMalformedInput
	case ErrCodeUnknownSelector:
		return OutcomeUnknownSelector
	default:
		return OutcomeFacetFailed
	}
}
