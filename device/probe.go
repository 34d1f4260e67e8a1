package device

import (
	"context"

	"romcart/hw/gpio"
)

// Probe plays the host side of the cartridge port: it performs bus
// transactions against the device exactly as the computer would: drive an
// address on the shared pin group, assert a chip-select line, then sample
// the data word once the control lines signal it is valid.
type Probe struct {
	d *Device
}

func (d *Device) Probe() *Probe { return &Probe{d: d} }

// ReadWord performs one read transaction on the given chip-select line.
// It blocks until the device drives the data word; against an unarmed
// engine that is forever, so bound ctx.
func (p *Probe) ReadWord(ctx context.Context, line int, addr uint16) (uint16, error) {
	d := p.d

	// Stale control transitions from a previous transaction must not
	// satisfy this one's wait.
	d.Ctrl.Drain()

	d.Pins.DriveExt(addr)
	d.Sel.Assert(line)
	defer d.Sel.Release(line)

	if err := d.Ctrl.WaitFor(ctx, gpio.NotReadWrite); err != nil {
		return 0, err
	}
	return d.Pins.Level(), nil
}
