package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/diamond/internal/ir"
)

// DispatchError represents a rejected call.
//
// Dispatch errors are terminal for the call. Every one of them leaves storage
// exactly as it was before the call:
//   - Malformed input: payload shorter than a selector, storage never touched
//   - Unknown selector: no facet registered, read-only lookup only
//   - Facet failed: facet reverted, its writes rolled back, payload preserved
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Message is a human-readable description.
	Message string

	// Selector is the extracted selector (zero for malformed input).
	Selector ir.Selector

	// Facet is the resolved facet (FACET_FAILED only).
	Facet ir.Address

	// Payload is the facet's failure payload, byte-for-byte (FACET_FAILED only).
	Payload []byte

	// Err is the underlying facet error, if any.
	Err error
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeMalformedInput indicates a payload too short to contain a selector.
	ErrCodeMalformedInput DispatchErrorCode = "MALFORMED_INPUT"

	// ErrCodeUnknownSelector indicates no facet is registered for the selector.
	ErrCodeUnknownSelector DispatchErrorCode = "UNKNOWN_SELECTOR"

	// ErrCodeFacetFailed indicates the resolved facet reported failure.
	ErrCodeFacetFailed DispatchErrorCode = "FACET_FAILED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	switch e.Code {
	case ErrCodeMalformedInput:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case ErrCodeUnknownSelector:
		return fmt.Sprintf("%s: %s (selector=%s)", e.Code, e.Message, e.Selector)
	default:
		return fmt.Sprintf("%s: %s (selector=%s, facet=%s)", e.Code, e.Message, e.Selector, e.Facet)
	}
}

// Unwrap returns the underlying facet error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewMalformedInputError creates a DispatchError for a short payload.
func NewMalformedInputError(length int) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeMalformedInput,
		Message: fmt.Sprintf("payload of %d bytes is shorter than a %d-byte selector", length, ir.SelectorLen),
	}
}

// NewUnknownSelectorError creates a DispatchError for an unrouted selector.
func NewUnknownSelectorError(sel ir.Selector) *DispatchError {
	return &DispatchError{
		Code:     ErrCodeUnknownSelector,
		Message:  "no facet registered for selector",
		Selector: sel,
	}
}

// NewFacetFailedError creates a DispatchError for a failed facet invocation.
// The payload is stored as given.
func NewFacetFailedError(sel ir.Selector, facet ir.Address, payload []byte, cause error) *DispatchError {
	return &DispatchError{
		Code:     ErrCodeFacetFailed,
		Message:  "facet reverted",
		Selector: sel,
		Facet:    facet,
		Payload:  payload,
		Err:      cause,
	}
}

func dispatchCode(err error) (DispatchErrorCode, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// IsMalformedInput returns true if the call was rejected for a short payload.
// Uses errors.As to handle wrapped errors.
func IsMalformedInput(err error) bool {
	code, ok := dispatchCode(err)
	return ok && code == ErrCodeMalformedInput
}

// IsUnknownSelector returns true if the call was rejected for an unrouted selector.
func IsUnknownSelector(err error) bool {
	code, ok := dispatchCode(err)
	return ok && code == ErrCodeUnknownSelector
}

// IsFacetFailed returns true if the resolved facet reported failure.
func IsFacetFailed(err error) bool {
	code, ok := dispatchCode(err)
	return ok && code == ErrCodeFacetFailed
}

// FailurePayload returns the facet's failure payload for FACET_FAILED errors.
func FailurePayload(err error) ([]byte, bool) {
	var de *DispatchError
	if errors.As(err, &de) && de.Code == ErrCodeFacetFailed {
		return de.Payload, true
	}
	return nil, false
}

// CutError represents a rejected facet cut. No part of a rejected cut is applied.
type CutError struct {
	// Code identifies the error category.
	Code CutErrorCode

	// Message is a human-readable description.
	Message string

	// Index is the position of the offending cut in the request.
	Index int

	// Selector is the offending selector, if any.
	Selector ir.Selector
}

// CutErrorCode categorizes cut errors.
type CutErrorCode string

const (
	// ErrCodeEmptyCut indicates a cut without selectors.
	ErrCodeEmptyCut CutErrorCode = "EMPTY_CUT"

	// ErrCodeInvalidAction indicates an unknown cut action.
	ErrCodeInvalidAction CutErrorCode = "INVALID_ACTION"

	// ErrCodeZeroFacet indicates add/replace with the zero address.
	ErrCodeZeroFacet CutErrorCode = "ZERO_FACET"

	// ErrCodeRemoveWithFacet indicates remove with a non-zero facet address.
	ErrCodeRemoveWithFacet CutErrorCode = "REMOVE_WITH_FACET"

	// ErrCodeSelectorExists indicates add of an already routed selector.
	ErrCodeSelectorExists CutErrorCode = "SELECTOR_EXISTS"

	// ErrCodeSelectorMissing indicates replace/remove of an unrouted selector.
	ErrCodeSelectorMissing CutErrorCode = "SELECTOR_MISSING"

	// ErrCodeSameFacet indicates replace with the facet already routed.
	ErrCodeSameFacet CutErrorCode = "SAME_FACET"
)

// Error implements the error interface.
func (e *CutError) Error() string {
	if e.Selector != (ir.Selector{}) {
		return fmt.Sprintf("%s: %s (cut=%d, selector=%s)", e.Code, e.Message, e.Index, e.Selector)
	}
	return fmt.Sprintf("%s: %s (cut=%d)", e.Code, e.Message, e.Index)
}

// IsCutError returns true if err is a CutError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCutError(err error, code CutErrorCode) bool {
	var ce *CutError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
