package ir

import (
	"errors"
	"fmt"
)

// Revert is returned by a facet to abort a call. Data is the failure payload
// the caller receives verbatim.
type Revert struct {
	Data []byte
}

// Error implements the error interface.
func (r *Revert) Error() string {
	if len(r.Data) == 0 {
		return "revert"
	}
	return fmt.Sprintf("revert: %q", r.Data)
}

// Revertf builds a Revert whose payload is the formatted message.
func Revertf(format string, args ...any) *Revert {
	return &Revert{Data: []byte(fmt.Sprintf(format, args...))}
}

// AsRevert unwraps err to a *Revert.
// Uses errors.As to handle wrapped errors.
func AsRevert(err error) (*Revert, bool) {
	var r *Revert
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
