package gpio

import (
	"context"
	"sync"
)

// NumSelects is the number of chip-select lines wired to the cartridge
// port: the host decodes two adjacent address ranges ("slots").
const NumSelects = 2

// Selects models the two active-low chip-select lines. An inactive-to-active
// transition on either line is latched until consumed, so an assertion that
// happens while the watcher is busy elsewhere is never lost.
type Selects struct {
	mu       sync.Mutex
	asserted [NumSelects]bool
	edges    chan int
}

func NewSelects() *Selects {
	// Capacity bounds how many back-to-back host accesses can pile up
	// before the monitor sequencer consumes them. The monitor re-enters
	// its wait immediately after signaling, so two is already generous.
	return &Selects{edges: make(chan int, 4)}
}

// Assert drives line low (active). Only the inactive-to-active transition
// produces a latched edge.
func (s *Selects) Assert(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asserted[line] {
		return
	}
	s.asserted[line] = true
	select {
	case s.edges <- line:
	default:
	}
}

// Release returns line to its inactive level.
func (s *Selects) Release(line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asserted[line] = false
}

// Asserted reports whether line is currently active.
func (s *Selects) Asserted(line int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asserted[line]
}

// WaitEdge blocks until an unconsumed assertion edge is available on either
// line and consumes it, returning the line index.
func (s *Selects) WaitEdge(ctx context.Context) (int, error) {
	select {
	case line := <-s.edges:
		return line, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
