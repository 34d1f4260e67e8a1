// Package device assembles the emulated cartridge: pins, sequencers, flash,
// button, firmware scheduler and mode controller, and runs the two timelines
// (the hardware-clocked bus engine and the cooperative firmware loop)
// against each other.
package device

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"romcart/emu/log"
	"romcart/hw/button"
	"romcart/hw/flash"
	"romcart/hw/gpio"
	"romcart/hw/led"
	"romcart/hw/pio"
	"romcart/hw/romemul"
	"romcart/mode"
	"romcart/network"
	"romcart/sched"
	"romcart/settings"
)

// Outcome is how a device run ended. Reset models the cold restart an
// emulation session requires to detach the bus engine: the harness reacts
// by constructing a fresh Device.
type Outcome uint8

const (
	OutcomeNone    Outcome = iota
	OutcomeReset           // cold restart requested
	OutcomeBooster         // control handed to the companion bootloader
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeReset:
		return "reset"
	case OutcomeBooster:
		return "booster"
	}
	return "invalid"
}

type Device struct {
	cfg Config

	// Pin-level state, shared with the host-side probe.
	Pins *gpio.PinGroup
	Ctrl *gpio.ControlPair
	Sel  *gpio.Selects
	Btn  *gpio.Pin
	LED  *led.LED

	Flash    *flash.Flash
	Loader   *romemul.Loader
	Settings *settings.Store

	monitor   *pio.StateMachine
	responder *pio.StateMachine
	dma       *romemul.DMA
	button    *button.Button
	loop      *sched.Loop
	ctrl      *mode.Controller

	outcome        atomic.Uint32
	resetRequested atomic.Bool
	cancel         context.CancelFunc
}

// New builds a powered-off device. ui is the configuration session
// collaborator, net the WiFi link (nil for none).
func New(cfg Config, ui mode.ConfigUI, net network.Client) (*Device, error) {
	d := &Device{
		cfg:  cfg,
		Pins: &gpio.PinGroup{},
		Ctrl: gpio.NewControlPair(),
		Sel:  gpio.NewSelects(),
		Btn:  &gpio.Pin{},
		LED:  &led.LED{},
	}

	hw := pio.Hardware{Pins: d.Pins, Ctrl: d.Ctrl, Sel: d.Sel}
	irq := pio.NewIRQ()
	rx, tx := pio.NewFIFO(), pio.NewFIFO()
	clock := cfg.Timing.clock()
	d.monitor = pio.NewStateMachine(pio.MonitorProgram(), hw, clock, irq, nil, nil)
	d.responder = pio.NewStateMachine(pio.ResponderProgram(cfg.Timing.SettleCycles), hw, clock, irq, rx, tx)
	d.dma = romemul.NewDMA(rx, tx)
	d.Loader = romemul.NewLoader(d.dma, d.monitor, d.responder)

	d.Flash = flash.New(cfg.Storage.FlashSize)
	d.Flash.Guard = func() error {
		if d.Loader.Armed() {
			panic("device: flash access while the bus engine is armed")
		}
		return nil
	}
	if cfg.Storage.FlashImage != "" {
		if err := d.Flash.LoadFile(cfg.Storage.FlashImage); err != nil {
			return nil, err
		}
	}

	store, err := settings.Open(cfg.Storage.SettingsFile)
	if err != nil {
		return nil, err
	}
	d.Settings = store

	d.button = button.New(d.Btn, button.Config{
		Debounce:  time.Duration(cfg.Button.DebounceMS) * time.Millisecond,
		LongPress: time.Duration(cfg.Button.LongPressMS) * time.Millisecond,
	})
	d.loop = sched.New(cfg.Timing.tick())
	d.loop.AddPoller(d.button.Poll)

	var firmware []byte
	if cfg.Storage.FirmwareImage != "" {
		firmware, err = os.ReadFile(cfg.Storage.FirmwareImage)
		if err != nil {
			return nil, fmt.Errorf("device: read firmware image: %w", err)
		}
	}

	env := &mode.Env{
		Settings: store,
		SDRoot:   cfg.Storage.SDRoot,
		Net:      net,
		Button:   d.button,
		Loader:   d.Loader,
		Stager:   &romemul.Stager{Flash: d.Flash, Armed: d.Loader.Armed},
		Flash:    d.Flash,
		Sched:    d.loop,
		LED:      d.LED,
		Firmware: firmware,
		ResetDevice: func() {
			d.halt(OutcomeReset)
		},
		JumpToBooster: func() {
			d.halt(OutcomeBooster)
		},
		SignalReset: func() {
			d.resetRequested.Store(true)
			log.ModEmu.InfoZ("reset requested signal raised").End()
		},
	}
	d.ctrl = mode.NewController(env, ui)
	return d, nil
}

func (d *Device) halt(o Outcome) {
	d.outcome.CompareAndSwap(uint32(OutcomeNone), uint32(o))
	if d.cancel != nil {
		d.cancel()
	}
}

// ResetRequested reports whether the visible reset indicator is raised.
func (d *Device) ResetRequested() bool { return d.resetRequested.Load() }

// Mode returns the persisted operating mode the device would boot into.
func (d *Device) Mode() mode.Mode { return mode.Load(d.Settings) }

// Run powers the device up and blocks until it requests a reset or a
// bootloader handoff, or until ctx is canceled. The hardware timeline
// (monitor, responder, DMA) and the firmware timeline run concurrently;
// none of the hardware operations are cancellable except by ending the run,
// which is precisely the device-reset semantics.
func (d *Device) Run(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	var bootErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.monitor.Run(gctx) })
	g.Go(func() error { return d.responder.Run(gctx) })
	g.Go(func() error { return d.dma.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		bootErr = d.ctrl.Boot(gctx)
		return bootErr
	})

	err := g.Wait()
	// The hardware goroutines end on the cancellation that follows the
	// firmware's exit: their context errors never outrank the firmware's.
	if bootErr != nil {
		err = bootErr
	}
	outcome := Outcome(d.outcome.Load())
	if outcome != OutcomeNone {
		// The cancellation was ours.
		err = nil
	}

	if d.cfg.Storage.FlashImage != "" {
		if serr := d.Flash.SaveFile(d.cfg.Storage.FlashImage); serr != nil && err == nil {
			err = serr
		}
	}
	log.ModEmu.InfoZ("device halted").Stringer("outcome", outcome).End()
	return outcome, err
}

// PressButton simulates the operator pressing SELECT for the given
// duration. It returns once the pin is released.
func (d *Device) PressButton(hold time.Duration) {
	d.Btn.Set(true)
	time.Sleep(hold)
	d.Btn.Set(false)
}
