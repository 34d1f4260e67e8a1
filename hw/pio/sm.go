package pio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"romcart/emu/log"
	"romcart/hw/gpio"
)

// Hardware is the pin state a state machine executes against.
type Hardware struct {
	Pins *gpio.PinGroup
	Ctrl *gpio.ControlPair
	Sel  *gpio.Selects
}

// StateMachine executes a Program on its own, independently clocked
// timeline. Once armed it runs autonomously: the only runtime coupling with
// firmware is the high-order address word supplied at arm time and the
// RX/TX FIFO pair.
type StateMachine struct {
	prog  Program
	hw    Hardware
	clock time.Duration // duration of one sequencer cycle

	irq *IRQ
	rx  *FIFO // captured addresses, to the DMA peer
	tx  *FIFO // data words to drive, from the DMA peer

	addrHigh atomic.Uint32
	armed    atomic.Bool
	armCh    chan struct{}
}

func NewStateMachine(prog Program, hw Hardware, clock time.Duration, irq *IRQ, rx, tx *FIFO) *StateMachine {
	return &StateMachine{
		prog:  prog,
		hw:    hw,
		clock: clock,
		irq:   irq,
		rx:    rx,
		tx:    tx,
		armCh: make(chan struct{}),
	}
}

// Arm releases the state machine with the firmware-supplied high-order
// address word. Re-arming a running machine is an invariant violation with
// unknown hardware-state consequences, so it fails loudly.
func (sm *StateMachine) Arm(addrHigh uint16) {
	if !sm.armed.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("pio: %s: already armed", sm.prog.Name))
	}
	sm.addrHigh.Store(uint32(addrHigh))
	close(sm.armCh)
	log.ModPIO.InfoZ("state machine armed").
		String("prog", sm.prog.Name).
		Hex16("addrhigh", addrHigh).
		End()
}

func (sm *StateMachine) Armed() bool { return sm.armed.Load() }

// Run executes the program until ctx is canceled. An unarmed machine blocks
// before its first step: if firmware never arms it, the host simply sees no
// response, which is the fail-safe behavior.
func (sm *StateMachine) Run(ctx context.Context) error {
	select {
	case <-sm.armCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		for i := range sm.prog.Steps {
			if err := sm.step(ctx, &sm.prog.Steps[i]); err != nil {
				return err
			}
		}
	}
}

func (sm *StateMachine) step(ctx context.Context, st *Step) error {
	switch st.Wait {
	case WaitSelect:
		if _, err := sm.hw.Sel.WaitEdge(ctx); err != nil {
			return err
		}
	case WaitIRQ:
		if err := sm.irq.Wait(ctx); err != nil {
			return err
		}
	}

	switch st.Op {
	case OpDirInput:
		sm.hw.Pins.SetDir(gpio.Input)
	case OpDirOutput:
		sm.hw.Pins.SetDir(gpio.Output)
	case OpCaptureAddr:
		// The low address bit is not wired: the bus addresses 16-bit words.
		lo := sm.hw.Pins.Sample() &^ 1
		addr := sm.addrHigh.Load()<<16 | uint32(lo)
		if !sm.rx.TryPush(addr) {
			log.ModPIO.ErrorZ("RX FIFO overrun, address dropped").
				String("prog", sm.prog.Name).
				Hex32("addr", addr).
				End()
		}
	case OpDriveData:
		word, err := sm.tx.Pop(ctx)
		if err != nil {
			return err
		}
		sm.hw.Pins.Drive(uint16(word))
	case OpRaiseIRQ:
		sm.irq.Raise()
	}

	if lv, ok := st.Ctl.level(); ok {
		sm.hw.Ctrl.Set(lv)
	}

	if st.Hold > 0 {
		return sm.hold(ctx, st.Hold)
	}
	return nil
}

func (sm *StateMachine) hold(ctx context.Context, cycles int) error {
	if sm.clock <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(cycles) * sm.clock)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
