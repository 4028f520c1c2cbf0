package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the size in bytes of a facet or caller address.
const AddressLen = 20

// Address is an opaque handle to a deployed facet, or the identity of a
// caller. The zero value means "no facet".
type Address [AddressLen]byte

// AddressOf derives a stable address from a facet name.
// The address is the last 20 bytes of Keccak-256 over the domain-separated name,
// so different names never share an address in practice.
func AddressOf(name string) Address {
	var a Address
	sum := hashWithDomain(DomainFacetAddress, []byte(name))
	copy(a[:], sum[len(sum)-AddressLen:])
	return a
}

// ParseAddress parses the 0x-prefixed (or bare) 40-character hex form.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(strings.TrimSpace(s), a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return a, nil
}

// ResolveAddress parses a 0x address, or derives one from any other text
// with AddressOf. Empty text is the zero address.
func ResolveAddress(ref string) (Address, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Address{}, nil
	case strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X"):
		return ParseAddress(ref)
	default:
		return AddressOf(ref), nil
	}
}

// AddressFromBytes converts a stored 20-byte value into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the 0x-prefixed lowercase hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
