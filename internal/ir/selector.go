package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SelectorLen is the size in bytes of a call selector.
const SelectorLen = 4

// Selector is the fixed-length prefix of every call payload. It identifies an
// operation across all facets of one router.
type Selector [SelectorLen]byte

// SelectorOf derives the selector for a function signature as the first four
// bytes of Keccak-256(signature), e.g. SelectorOf("transfer(address,uint256)")
// is 0xa9059cbb.
//
// Whitespace inside the signature is significant; callers pass the canonical
// form without spaces.
func SelectorOf(signature string) Selector {
	var s Selector
	sum := Keccak256([]byte(signature))
	copy(s[:], sum[:SelectorLen])
	return s
}

// SplitInput extracts the selector from a raw call payload.
// Returns false if the payload is shorter than a selector.
func SplitInput(input []byte) (Selector, bool) {
	var s Selector
	if len(input) < SelectorLen {
		return s, false
	}
	copy(s[:], input[:SelectorLen])
	return s, true
}

// ParseSelector parses the 0x-prefixed (or bare) 8-character hex form.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	if err := decodeFixedHex(strings.TrimSpace(s), sel[:]); err != nil {
		return Selector{}, fmt.Errorf("parse selector %q: %w", s, err)
	}
	return sel, nil
}

// ResolveSelector accepts either a hex selector or a function signature.
// Anything containing "(" is treated as a signature.
func ResolveSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return Selector{}, fmt.Errorf("parse selector %q: malformed signature", s)
		}
		return SelectorOf(s), nil
	}
	return ParseSelector(s)
}

// String returns the 0x-prefixed lowercase hex form.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Bytes returns a copy of the selector bytes, used as the routing table key.
func (s Selector) Bytes() []byte {
	b := make([]byte, SelectorLen)
	copy(b, s[:])
	return b
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := ParseSelector(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
