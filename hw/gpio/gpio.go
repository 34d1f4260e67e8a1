// Package gpio models the pin-level electrical state shared between the
// emulated cartridge hardware and the host computer bus. Every type here is
// safe for concurrent access from the hardware timeline goroutines and from
// a host-side probe.
package gpio

import (
	"sync/atomic"
)

// Direction of the shared address/data pin group, seen from the device.
type Direction uint32

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// PinGroup is the 16-bit bidirectional pin group multiplexing the host
// address (device input) and the served data word (device output).
//
// Two parties drive it: the host side through DriveExt, and the device
// through Drive, which only takes effect on the wire while the group is in
// Output direction. Level reports what is electrically on the bus.
type PinGroup struct {
	dir   atomic.Uint32
	drive atomic.Uint32 // device-driven level
	ext   atomic.Uint32 // host-driven level
}

func (g *PinGroup) SetDir(d Direction) { g.dir.Store(uint32(d)) }
func (g *PinGroup) Dir() Direction     { return Direction(g.dir.Load()) }

// Drive sets the level the device outputs when the group direction is Output.
func (g *PinGroup) Drive(v uint16) { g.drive.Store(uint32(v)) }

// DriveExt sets the level the host drives onto the group.
func (g *PinGroup) DriveExt(v uint16) { g.ext.Store(uint32(v)) }

// Sample reads the host-driven level. Only meaningful in Input direction.
func (g *PinGroup) Sample() uint16 { return uint16(g.ext.Load()) }

// Level reports the value present on the bus wires.
func (g *PinGroup) Level() uint16 {
	if g.Dir() == Output {
		return uint16(g.drive.Load())
	}
	return uint16(g.ext.Load())
}
