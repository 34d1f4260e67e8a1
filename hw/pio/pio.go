// Package pio implements the independently clocked hardware sequencers that
// answer host bus accesses with no firmware involvement per cycle.
//
// A sequencer executes a Program: an ordered table of steps, each an optional
// wait condition followed by an optional pin operation, a control-line level
// and a hold time expressed in sequencer clock cycles. The step table is the
// single source of truth for the bus timing and is executable without any
// real hardware underneath, which keeps it unit-testable.
package pio

import "romcart/hw/gpio"

// Wait is a step's blocking condition, evaluated before its operation.
type Wait uint8

const (
	WaitNone   Wait = iota
	WaitSelect      // an assertion edge on either chip-select line
	WaitIRQ         // the monitor-to-responder flag
	WaitArm         // firmware arming (one-shot, at program start)
)

// Op is the pin operation a step performs.
type Op uint8

const (
	OpNone        Op = iota
	OpDirInput       // force the pin group to input
	OpDirOutput      // force the pin group to output
	OpCaptureAddr    // sample the pin group, merge the high word, push to RX
	OpDriveData      // pop the TX FIFO and drive the word on the pin group
	OpRaiseIRQ       // raise the inter-machine flag
)

// Ctl selects the control-line level a step drives, CtlKeep leaving the
// lines untouched.
type Ctl uint8

const (
	CtlKeep Ctl = iota
	CtlReleased
	CtlAddrStrobe
	CtlDataValid
	CtlReadWrite
)

func (c Ctl) level() (gpio.Control, bool) {
	switch c {
	case CtlReleased:
		return gpio.NotReadNotWrite, true
	case CtlAddrStrobe:
		return gpio.ReadNotWrite, true
	case CtlDataValid:
		return gpio.NotReadWrite, true
	case CtlReadWrite:
		return gpio.ReadWrite, true
	}
	return 0, false
}

type Step struct {
	Name string
	Wait Wait
	Op   Op
	Ctl  Ctl
	Hold int // clock cycles to hold after the operation
}

type Program struct {
	Name  string
	Steps []Step
}

// MonitorProgram watches the chip-select lines and signals the responder.
// The wait is re-entered immediately after the signal (level-wrap), so
// back-to-back host accesses are never missed.
func MonitorProgram() Program {
	return Program{
		Name: "monitor",
		Steps: []Step{
			{Name: "watch", Wait: WaitSelect, Op: OpRaiseIRQ},
		},
	}
}

// ResponderProgram answers one host access per iteration. settle is the
// empirical margin, in sequencer cycles, against bus-driver propagation
// delay; it is applied both before sampling the address and after driving
// the data word.
func ResponderProgram(settle int) Program {
	return Program{
		Name: "responder",
		Steps: []Step{
			{Name: "idle", Wait: WaitIRQ},
			{Name: "bus-to-input", Op: OpDirInput, Ctl: CtlReleased},
			{Name: "address-settle", Ctl: CtlAddrStrobe, Hold: settle},
			{Name: "address-capture", Op: OpCaptureAddr},
			{Name: "bus-to-output", Op: OpDirOutput},
			{Name: "data-drive", Op: OpDriveData, Ctl: CtlDataValid},
			{Name: "data-hold", Hold: settle},
			{Name: "release", Op: OpDirInput, Ctl: CtlReleased},
		},
	}
}
