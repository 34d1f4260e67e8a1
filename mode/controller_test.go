package mode

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"romcart/hw/button"
	"romcart/hw/flash"
	"romcart/hw/gpio"
	"romcart/hw/led"
	"romcart/hw/pio"
	"romcart/hw/romemul"
	"romcart/sched"
	"romcart/settings"
)

// scriptedUI feeds a fixed command sequence to the controller, then reports
// the operator closing the session.
type scriptedUI struct {
	cmds []Command
	runs int
}

func (u *scriptedUI) Run(ctx context.Context, env *Env) (Command, error) {
	u.runs++
	if len(u.cmds) == 0 {
		return Command{}, io.EOF
	}
	c := u.cmds[0]
	u.cmds = u.cmds[1:]
	return c, nil
}

// testRig is a full controller environment on in-memory collaborators, plus
// handles to observe and drive it.
type testRig struct {
	env    *Env
	pin    *gpio.Pin
	cancel context.CancelFunc

	resets   atomic.Int32
	boosters atomic.Int32
	signals  atomic.Int32
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DefaultROMsFolder), 0755); err != nil {
		t.Fatal(err)
	}

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}

	hw := pio.Hardware{Pins: &gpio.PinGroup{}, Ctrl: gpio.NewControlPair(), Sel: gpio.NewSelects()}
	irq := pio.NewIRQ()
	rx, tx := pio.NewFIFO(), pio.NewFIFO()
	monitor := pio.NewStateMachine(pio.MonitorProgram(), hw, time.Microsecond, irq, nil, nil)
	responder := pio.NewStateMachine(pio.ResponderProgram(1), hw, time.Microsecond, irq, rx, tx)
	loader := romemul.NewLoader(romemul.NewDMA(rx, tx), monitor, responder)

	chip := flash.New(2 * 1024 * 1024)
	pin := &gpio.Pin{}
	btn := button.New(pin, button.Config{
		Debounce:  time.Millisecond,
		LongPress: 100 * time.Millisecond,
	})
	loop := sched.New(time.Millisecond)
	loop.AddPoller(btn.Poll)

	rig := &testRig{pin: pin}
	rig.env = &Env{
		Settings: store,
		SDRoot:   root,
		Button:   btn,
		Loader:   loader,
		Stager:   &romemul.Stager{Flash: chip, Armed: loader.Armed},
		Flash:    chip,
		Sched:    loop,
		LED:      &led.LED{},
		Firmware: []byte{0xC0, 0xDE},
		ResetDevice: func() {
			rig.resets.Add(1)
			if rig.cancel != nil {
				rig.cancel()
			}
		},
		JumpToBooster: func() { rig.boosters.Add(1) },
		SignalReset:   func() { rig.signals.Add(1) },
	}
	return rig
}

func (rig *testRig) addROM(t *testing.T, name string, data []byte) {
	t.Helper()
	path := filepath.Join(rig.env.SDRoot, DefaultROMsFolder, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

// press holds the SELECT line for d, paced by real time since the scheduler
// ticks in real time too.
func (rig *testRig) press(d time.Duration) {
	rig.pin.Set(true)
	time.Sleep(d)
	rig.pin.Set(false)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConfigureBooster(t *testing.T) {
	rig := newTestRig(t)
	rig.env.Settings.PutString(settings.KeySelected, "old.rom")

	ui := &scriptedUI{cmds: []Command{{Kind: CmdBooster}}}
	c := NewController(rig.env, ui)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}

	if rig.boosters.Load() != 1 {
		t.Error("booster handoff not performed")
	}
	if rig.resets.Load() != 0 {
		t.Error("booster handoff must not reset the device")
	}
	if v, _ := rig.env.Settings.String(settings.KeySelected); v != "" {
		t.Errorf("selection %q not cleared before handoff", v)
	}
	if got := Load(rig.env.Settings); got != Setup {
		t.Errorf("persisted mode %v, want %v", got, Setup)
	}
}

func TestConfigureLaunch(t *testing.T) {
	rig := newTestRig(t)
	rom := bytes.Repeat([]byte{0x11, 0x22}, flash.SectorSize/2)
	rig.addROM(t, "game.rom", rom)
	rig.env.Settings.PutString(settings.KeySelected, "game.rom")

	ui := &scriptedUI{cmds: []Command{{Kind: CmdLaunch}}}
	c := NewController(rig.env, ui)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := Load(rig.env.Settings); got != Direct {
		t.Errorf("persisted mode %v, want %v", got, Direct)
	}
	if rig.signals.Load() != 1 || rig.resets.Load() != 1 {
		t.Error("launch must signal and reset the device")
	}
	if rig.env.Loader.Armed() {
		t.Error("the bus engine must never arm during setup")
	}

	// The staged flash content is the byte-swapped ROM.
	got, err := rig.env.Flash.Window(romemul.StagingOffset, len(rom))
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte(nil), rom...)
	romemul.SwapBytes16(want)
	if !bytes.Equal(got, want) {
		t.Error("staged flash content does not match the ROM")
	}
}

func TestConfigureLaunchDelay(t *testing.T) {
	rig := newTestRig(t)
	rig.addROM(t, "game.rom", bytes.Repeat([]byte{0xAA}, flash.SectorSize))
	rig.env.Settings.PutString(settings.KeySelected, "game.rom")

	ui := &scriptedUI{cmds: []Command{{Kind: CmdLaunch, DelayMode: true}}}
	c := NewController(rig.env, ui)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := Load(rig.env.Settings); got != Delay {
		t.Errorf("persisted mode %v, want %v", got, Delay)
	}
}

// A launch without a selection (or with a missing file) keeps the session
// going instead of rebooting onto nothing.
func TestConfigureLaunchFailureStaysInSetup(t *testing.T) {
	rig := newTestRig(t)

	ui := &scriptedUI{cmds: []Command{
		{Kind: CmdLaunch}, // no selection
		{Kind: CmdNone},
		{Kind: CmdBooster},
	}}
	c := NewController(rig.env, ui)
	if err := c.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}

	if ui.runs != 3 {
		t.Errorf("session ran %d commands, want 3", ui.runs)
	}
	if rig.resets.Load() != 0 {
		t.Error("failed launch must not reset the device")
	}
	if rig.boosters.Load() != 1 {
		t.Error("session should have ended on the booster command")
	}
}

func TestEmulateDirect(t *testing.T) {
	rig := newTestRig(t)
	if err := Persist(rig.env.Settings, Direct); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig.cancel = cancel

	done := make(chan error, 1)
	c := NewController(rig.env, &scriptedUI{})
	go func() { done <- c.Boot(ctx) }()

	// Direct mode arms without operator involvement.
	waitFor(t, "bus engine to arm", rig.env.Loader.Armed)
	waitFor(t, "LED to turn on", rig.env.LED.Lit)

	// The press ends the session: back to setup through a cold restart.
	rig.press(20 * time.Millisecond)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := Load(rig.env.Settings); got != Setup {
		t.Errorf("persisted mode after session %v, want %v", got, Setup)
	}
	if rig.signals.Load() != 1 || rig.resets.Load() != 1 {
		t.Error("ending emulation must signal and reset")
	}
}

func TestEmulateDelayArmsOnPress(t *testing.T) {
	rig := newTestRig(t)
	if err := Persist(rig.env.Settings, Delay); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig.cancel = cancel

	done := make(chan error, 1)
	c := NewController(rig.env, &scriptedUI{})
	go func() { done <- c.Boot(ctx) }()

	// Ripper semantics: nothing is exposed until the operator signals.
	time.Sleep(50 * time.Millisecond)
	if rig.env.Loader.Armed() {
		t.Fatal("delay mode armed before the operator press")
	}

	rig.press(20 * time.Millisecond)
	waitFor(t, "bus engine to arm", rig.env.Loader.Armed)

	rig.press(20 * time.Millisecond)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if rig.resets.Load() != 1 {
		t.Error("ending emulation must reset")
	}
}

func TestLongPressFactoryResets(t *testing.T) {
	rig := newTestRig(t)
	if err := Persist(rig.env.Settings, Delay); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig.cancel = cancel

	done := make(chan error, 1)
	c := NewController(rig.env, &scriptedUI{})
	go func() { done <- c.Boot(ctx) }()

	rig.press(300 * time.Millisecond) // past the 100ms long threshold
	<-done

	if rig.resets.Load() != 1 {
		t.Error("factory reset must restart the device")
	}
	if got := Load(rig.env.Settings); got != Setup {
		t.Errorf("mode after factory reset %v, want %v", got, Setup)
	}
	if rig.env.Loader.Armed() {
		t.Error("factory reset during the delay wait must not arm")
	}
}
