// Package testutil provides deterministic helpers for tests: identifier
// generation with predictable sequences and quiet loggers.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// SequenceGenerator returns identifiers in a predictable sequence:
// "<prefix>-1", "<prefix>-2", and so on.
//
// This enables deterministic test execution and golden file comparison:
// the same scenario always produces the same placeholder ids.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator with the given prefix.
// An empty prefix defaults to "tmp".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "tmp"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identifier in the sequence.
// Implements dispatch.IDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// DiscardLogger returns a logger that drops everything. Suppresses log
// output in tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
