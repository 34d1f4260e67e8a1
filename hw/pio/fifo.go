package pio

import "context"

// FIFODepth matches the hardware FIFO depth of the sequencer blocks.
const FIFODepth = 8

// FIFO is a bounded word queue between a sequencer and its DMA peer.
type FIFO struct {
	ch chan uint32
}

func NewFIFO() *FIFO {
	return &FIFO{ch: make(chan uint32, FIFODepth)}
}

func (f *FIFO) Push(ctx context.Context, v uint32) error {
	select {
	case f.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush pushes without blocking and reports whether the word was accepted.
// A full FIFO drops the word, which is what the hardware does on overrun.
func (f *FIFO) TryPush(v uint32) bool {
	select {
	case f.ch <- v:
		return true
	default:
		return false
	}
}

func (f *FIFO) Pop(ctx context.Context) (uint32, error) {
	select {
	case v := <-f.ch:
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *FIFO) Len() int { return len(f.ch) }

// IRQ is the single set/consume flag the monitor raises for the responder.
// Raising an already raised flag is a no-op, exactly like the hardware bit.
type IRQ struct {
	ch chan struct{}
}

func NewIRQ() *IRQ {
	return &IRQ{ch: make(chan struct{}, 1)}
}

func (i *IRQ) Raise() {
	select {
	case i.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the flag is raised and clears it.
func (i *IRQ) Wait(ctx context.Context) error {
	select {
	case <-i.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
