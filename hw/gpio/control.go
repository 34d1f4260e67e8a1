package gpio

import (
	"context"
	"sync/atomic"
)

// Control is the level of the two control lines, a 2-bit side channel the
// host decodes alongside the pin group. Bit 1 is the read strobe, bit 0 the
// write strobe, both in asserted-is-set convention.
type Control uint8

const (
	NotReadNotWrite Control = 0b00 // bus released
	NotReadWrite    Control = 0b01 // data valid on the pin group
	ReadNotWrite    Control = 0b10 // address strobe / settle
	ReadWrite       Control = 0b11
)

func (c Control) String() string {
	switch c {
	case NotReadNotWrite:
		return "not-read-not-write"
	case NotReadWrite:
		return "not-read-write"
	case ReadNotWrite:
		return "read-not-write"
	case ReadWrite:
		return "read-write"
	}
	return "invalid"
}

// ControlPair holds the current control-line level and lets observers (the
// host probe) watch transitions without polling.
type ControlPair struct {
	level atomic.Uint32
	watch chan Control
}

func NewControlPair() *ControlPair {
	return &ControlPair{watch: make(chan Control, 64)}
}

func (c *ControlPair) Set(lv Control) {
	c.level.Store(uint32(lv))
	select {
	case c.watch <- lv:
	default:
		// Observer is not keeping up. Transitions are droppable: the level
		// itself is always available through Get.
	}
}

func (c *ControlPair) Get() Control { return Control(c.level.Load()) }

// WaitFor blocks until the control lines transition to want. Only
// transitions that happen after the last Drain are considered: pair it with
// Drain to wait for a fresh transition rather than an already-current level.
func (c *ControlPair) WaitFor(ctx context.Context, want Control) error {
	for {
		select {
		case lv := <-c.watch:
			if lv == want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Drain discards the pending transition backlog.
func (c *ControlPair) Drain() {
	for {
		select {
		case <-c.watch:
		default:
			return
		}
	}
}
