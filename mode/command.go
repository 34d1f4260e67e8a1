package mode

import "context"

// CommandKind tags the commands the configuration session can hand back to
// the controller. The dispatch over them is an exhaustive switch, not a
// string-keyed handler table.
type CommandKind uint8

const (
	// CmdNone asks the controller to keep the configuration session going.
	CmdNone CommandKind = iota

	// CmdLaunch stages the selected ROM into flash, persists the chosen
	// emulation mode and reboots the device into it.
	CmdLaunch

	// CmdBooster leaves setup by handing control to the companion
	// bootloader, without a reset.
	CmdBooster
)

func (k CommandKind) String() string {
	switch k {
	case CmdNone:
		return "none"
	case CmdLaunch:
		return "launch"
	case CmdBooster:
		return "booster"
	}
	return "invalid"
}

// Command is a tagged variant: Kind selects which fields are meaningful.
type Command struct {
	Kind CommandKind

	// DelayMode selects ripper semantics for CmdLaunch: the ROM is staged
	// now but only exposed to the host after a button press post-reboot.
	DelayMode bool
}

// ConfigUI is the interactive configuration session, an external
// collaborator. It returns the next command to act on; the controller keeps
// calling it until the command ends the session.
type ConfigUI interface {
	Run(ctx context.Context, env *Env) (Command, error)
}
