package harness

// Trace event kinds.
const (
	KindCall = "call"
	KindCut  = "cut"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Kind     string `json:"kind"`
	Call     string `json:"call,omitempty"`
	Selector string `json:"selector,omitempty"`
	Args     any    `json:"args,omitempty"`
	Outcome  string `json:"outcome"`

	// Output is the decoded JSON output, or its 0x hex form if not JSON.
	Output any `json:"output,omitempty"`

	// Revert is the failure payload, as text if printable or 0x hex.
	Revert string `json:"revert,omitempty"`

	// Error is the cut error code for rejected cuts.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
