package ir

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// DiamondNamespace is the namespace string of the router's own storage.
// The routing table and nothing else lives in the region derived from it.
const DiamondNamespace = "diamond.storage.zk.trader"

// Domain prefixes for derived identities.
// Version suffix enables future algorithm migration.
const (
	DomainFacetAddress = "diamond/facet/v1"
)

// RegionLen is the size in bytes of a storage region identifier.
const RegionLen = 32

// RegionID identifies an isolated storage region. It is the root under which
// every key of one component is addressed.
type RegionID [RegionLen]byte

// DiamondRegion is the region of the routing table. Derived once at package
// initialisation and treated as a constant afterwards.
var DiamondRegion = DeriveRegion(DiamondNamespace)

// DeriveRegion computes the storage region for a namespace as
// Keccak-256(NFC(namespace)).
//
// The namespace is normalised to Unicode NFC first so that visually identical
// namespace strings typed on different systems land in the same region. For
// ASCII namespaces normalisation is the identity, so the result matches the
// plain Keccak-256 of the string.
func DeriveRegion(namespace string) RegionID {
	var id RegionID
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(norm.NFC.String(namespace)))
	h.Sum(id[:0])
	return id
}

// String returns the 0x-prefixed lowercase hex form of the region.
func (r RegionID) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// IsZero reports whether the region is all zero bytes.
func (r RegionID) IsZero() bool {
	return r == RegionID{}
}

// ParseRegion parses a 0x-prefixed (or bare) 64-character hex region.
func ParseRegion(s string) (RegionID, error) {
	var r RegionID
	if err := decodeFixedHex(s, r[:]); err != nil {
		return RegionID{}, fmt.Errorf("parse region: %w", err)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r RegionID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RegionID) UnmarshalText(text []byte) error {
	parsed, err := ParseRegion(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Keccak256 returns the legacy (pre-NIST) Keccak-256 digest of the
// concatenation of data.
func Keccak256(data ...[]byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	h.Sum(out[:0])
	return out
}

// hashWithDomain computes Keccak-256 with domain separation.
// Format: Keccak256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) [32]byte {
	return Keccak256([]byte(domain), []byte{0x00}, data)
}

// decodeFixedHex decodes s (with optional 0x prefix) into dst, requiring an
// exact length match.
func decodeFixedHex(s string, dst []byte) error {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 2*len(dst) {
		return fmt.Errorf("expected %d hex characters, got %d", 2*len(dst), len(s))
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return err
	}
	return nil
}
