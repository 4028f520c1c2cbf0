package ir

// CallContext is everything attached to a call besides its payload.
// The router hands it to the resolved facet unchanged: the facet observes the
// router's caller, not the router itself.
type CallContext struct {
	// Caller is the identity of whoever issued the call.
	Caller Address `json:"caller"`

	// Value is the amount transferred with the call, in the smallest unit.
	Value uint64 `json:"value"`

	// Credentials carries opaque authorization material (tokens, roles).
	// The router never inspects it.
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Call is a single dispatched call as seen by a facet.
type Call struct {
	// Input is the entire raw payload, selector included.
	Input []byte

	// Context is the caller context, passed through unchanged.
	Context CallContext
}

// Selector returns the selector prefix of the call.
// Calls reaching a facet always carry one.
func (c Call) Selector() Selector {
	sel, _ := SplitInput(c.Input)
	return sel
}

// Args returns the payload after the selector.
func (c Call) Args() []byte {
	if len(c.Input) < SelectorLen {
		return nil
	}
	return c.Input[SelectorLen:]
}
