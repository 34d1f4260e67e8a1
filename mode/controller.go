package mode

import (
	"context"
	"path/filepath"
	"time"

	"romcart/emu/log"
	"romcart/hw/button"
	"romcart/hw/flash"
	"romcart/hw/led"
	"romcart/hw/romemul"
	"romcart/network"
	"romcart/sched"
	"romcart/sdcard"
	"romcart/settings"
)

// DefaultROMsFolder is scanned for images when no folder is configured.
const DefaultROMsFolder = "roms"

// Env is the explicit context object threaded through the controller and
// its collaborators. There are no package-level singletons: everything the
// firmware touches hangs off here.
type Env struct {
	Settings *settings.Store
	Card     *sdcard.Card // set by the controller once storage comes up
	SDRoot   string
	Net      network.Client // nil when no WiFi hardware is configured
	Button   *button.Button
	Loader   *romemul.Loader
	Stager   *romemul.Stager
	Flash    *flash.Flash
	Sched    *sched.Loop
	LED      *led.LED

	// Firmware is the host-side communication firmware image staged in
	// setup mode in place of a ROM.
	Firmware []byte

	// Lifecycle hooks, provided by the device assembly.
	ResetDevice   func() // cold restart; the only way to detach an armed bus engine
	JumpToBooster func() // transfer control to the companion bootloader
	SignalReset   func() // visible "reset requested" indicator for the host display
}

// ROMsFolder returns the configured ROM folder name.
func (env *Env) ROMsFolder() string {
	if folder, ok := env.Settings.String(settings.KeyFolder); ok && folder != "" {
		return folder
	}
	return DefaultROMsFolder
}

// Controller drives the device lifecycle according to the persisted
// operating mode.
type Controller struct {
	env *Env
	ui  ConfigUI
}

func NewController(env *Env, ui ConfigUI) *Controller {
	return &Controller{env: env, ui: ui}
}

// Boot dispatches on the persisted mode. It returns when the device has
// requested a reset or a bootloader handoff, or when ctx is canceled.
func (c *Controller) Boot(ctx context.Context) error {
	m := Load(c.env.Settings)
	log.ModMode.InfoZ("booting").Stringer("mode", m).End()

	switch m {
	case Direct, Delay:
		return c.emulate(ctx, m)
	default:
		return c.configure(ctx)
	}
}

// factoryReset erases the persisted settings and restarts the device. It is
// the long-press action, registered before any operator wait.
func (c *Controller) factoryReset() {
	log.ModMode.WarnZ("factory reset").End()
	if err := c.env.Settings.Erase(); err != nil {
		log.ModMode.ErrorZ("failed to erase settings").Error("err", err).End()
	}
	c.env.ResetDevice()
}

// emulate runs the Direct and Delay flows: stage the ROM image previously
// committed to the flash staging region, arm the bus engine (for Delay only
// once the operator asks) and hold until the button press that sends the
// device back to setup through a cold restart.
func (c *Controller) emulate(ctx context.Context, m Mode) error {
	env := c.env
	env.Button.SetLongPressFunc(c.factoryReset)

	img, err := env.Flash.Window(romemul.StagingOffset, romemul.WindowBytes)
	if err != nil {
		// Never enter emulation with a questionable image: fall back to
		// setup and restart.
		log.ModMode.ErrorZ("cannot read staged image").Error("err", err).End()
		if perr := Persist(env.Settings, Setup); perr != nil {
			log.ModMode.ErrorZ("cannot persist mode").Error("err", perr).End()
		}
		env.ResetDevice()
		return err
	}
	if err := env.Loader.Stage(img); err != nil {
		return err
	}

	if m == Delay {
		// Ripper semantics: the image is staged but not exposed to the
		// host until the operator signals, like the original cartridges.
		log.ModMode.InfoZ("delay mode, waiting for operator").End()
		if err := c.waitPush(ctx); err != nil {
			return err
		}
	}

	env.Loader.Arm()
	env.LED.On()

	// Armed. The bus timeline now runs by itself; all that is left to the
	// firmware is waiting for the press that ends the emulation session.
	if err := c.waitPush(ctx); err != nil {
		return err
	}

	if err := Persist(env.Settings, Setup); err != nil {
		log.ModMode.ErrorZ("cannot persist mode").Error("err", err).End()
	}
	// An armed engine cannot be detached by a soft state change; only a
	// cold restart is safe.
	env.SignalReset()
	env.ResetDevice()
	return nil
}

// configure runs the setup flow. The bus engine stays unarmed for the whole
// session: that is the hard precondition allowing flash staging.
func (c *Controller) configure(ctx context.Context) error {
	env := c.env
	env.Button.SetLongPressFunc(c.factoryReset)

	if len(env.Firmware) == 0 {
		log.ModMode.WarnZ("no communication firmware image, window stays empty").End()
	}
	if err := env.Loader.Stage(env.Firmware); err != nil {
		return err
	}

	if err := c.initStorage(ctx); err != nil {
		return err
	}
	c.initNetwork(ctx)

	for {
		cmd, err := c.ui.Run(ctx, env)
		if err != nil {
			return err
		}
		log.ModMode.InfoZ("configuration command").Stringer("cmd", cmd.Kind).End()

		switch cmd.Kind {
		case CmdNone:
			continue

		case CmdLaunch:
			if !c.launch(cmd) {
				continue // stay in setup, the menu shows the error
			}
			env.SignalReset()
			env.ResetDevice()
			return nil

		case CmdBooster:
			env.Settings.PutString(settings.KeySelected, "")
			if err := Persist(env.Settings, Setup); err != nil {
				log.ModMode.ErrorZ("cannot persist mode").Error("err", err).End()
			}
			env.SignalReset()
			env.JumpToBooster()
			return nil

		default:
			panic("mode: unhandled configuration command")
		}
	}
}

// launch stages the selected ROM into flash and persists the emulation
// mode. It reports whether the device should now reboot into emulation; on
// any failure the mode is left untouched (setup) so the device never
// reboots onto a partially written image.
func (c *Controller) launch(cmd Command) bool {
	env := c.env

	filename, ok := env.Settings.String(settings.KeySelected)
	if !ok || filename == "" {
		log.ModMode.ErrorZ("no ROM selected").End()
		return false
	}
	path := filepath.Join(env.SDRoot, env.ROMsFolder(), filename)

	if err := env.Stager.ProgramFile(path, romemul.StagingOffset); err != nil {
		log.ModMode.ErrorZ("flash staging failed, staying in setup").
			String("rom", filename).
			Error("err", err).
			End()
		return false
	}

	m := Direct
	if cmd.DelayMode {
		m = Delay
	}
	if err := Persist(env.Settings, m); err != nil {
		log.ModMode.ErrorZ("cannot persist mode").Error("err", err).End()
		return false
	}
	log.ModMode.InfoZ("ROM staged, rebooting into emulation").
		String("rom", filename).
		Stringer("mode", m).
		End()
	return true
}

// initStorage mounts the SD card. A missing card is fatal-until-resolved:
// the device sits in an operator-visible error loop (blinking LED) until a
// card shows up, since nothing can be selected or staged without one.
func (c *Controller) initStorage(ctx context.Context) error {
	env := c.env
	for {
		card, err := sdcard.Mount(env.SDRoot)
		if err == nil {
			env.Card = card
			return nil
		}
		log.ModMode.ErrorZ("storage missing, insert card").Error("err", err).End()
		for !sdcard.Probe(env.SDRoot) {
			env.LED.Blink()
			if err := env.Sched.Sleep(ctx, time.Second); err != nil {
				return err
			}
		}
	}
}

// initNetwork brings the WiFi link up with a bounded number of attempts.
// Failures degrade the session to offline operation, they never block it.
func (c *Controller) initNetwork(ctx context.Context) {
	env := c.env
	if env.Net == nil {
		return
	}
	wifiMode, ok := env.Settings.Int(settings.KeyWiFiMode)
	if !ok {
		log.ModMode.InfoZ("no WiFi mode configured, staying offline").End()
		return
	}
	if wifiMode == network.ModeAP {
		log.ModMode.InfoZ("WiFi in AP mode, no station connect").End()
		return
	}

	if err := network.ConnectWithRetry(ctx, env.Net, network.ConnectAttempts); err != nil {
		log.ModMode.WarnZ("network unavailable, continuing offline").
			Error("err", err).
			End()
		return
	}
	log.ModMode.InfoZ("network up").Stringer("ip", env.Net.CurrentIP()).End()
}

// waitPush blocks until a short button press, then until its release.
func (c *Controller) waitPush(ctx context.Context) error {
	env := c.env
	if err := env.Sched.WaitUntil(ctx, env.Button.DetectPush); err != nil {
		return err
	}
	return env.Button.WaitRelease(ctx)
}
