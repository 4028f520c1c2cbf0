package testutil

import (
	"fmt"
	"sync"
)

// FixedCallID generates the same call id every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// always returns the same id, so every log line of a scenario carries it.
//
// Thread-safety: FixedCallID is stateless and safe for concurrent use.
type FixedCallID struct {
	id string
}

// NewFixedCallID creates a fixed call id generator.
//
// If id is empty, Generate() returns "test-call-default".
func NewFixedCallID(id string) *FixedCallID {
	if id == "" {
		id = "test-call-default"
	}
	return &FixedCallID{id: id}
}

// Generate returns the fixed call id.
//
// Implements engine.CallIDGenerator interface.
func (g *FixedCallID) Generate() string {
	return g.id
}

// SequenceIDs generates prefix-0001, prefix-0002, ... in order.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a sequence generator. An empty prefix means "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id of the sequence.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
