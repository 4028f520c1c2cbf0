package engine

import (
	"github.com/google/uuid"
)

// CallIDGenerator generates unique identifiers for dispatched calls.
// Call ids only correlate log lines; they never reach storage.
type CallIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 call ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
