// Package mode owns the device operating-mode lifecycle: which image is
// staged at boot, when the bus engine is armed, and the transitions between
// setup and the two emulation modes.
package mode

import (
	"romcart/settings"
)

// Mode is the persisted operating mode. The integer codes are fixed by the
// settings layout: the setup fallback is 255, not the next enum value.
type Mode uint8

const (
	Direct Mode = 0   // emulate immediately at boot
	Delay  Mode = 1   // emulate only after an operator button press (ripper)
	Setup  Mode = 255 // configuration menu
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Delay:
		return "delay"
	case Setup:
		return "setup"
	}
	return "invalid"
}

// FromCode maps a persisted integer code to a Mode.
func FromCode(code int) (Mode, bool) {
	switch code {
	case 0:
		return Direct, true
	case 1:
		return Delay, true
	case 255:
		return Setup, true
	}
	return Setup, false
}

// Load reads the persisted mode, defaulting to Setup when absent or
// unrecognized. The persisted value is the sole source of truth for which
// branch runs after a reset.
func Load(s *settings.Store) Mode {
	code, ok := s.Int(settings.KeyMode)
	if !ok {
		return Setup
	}
	m, ok := FromCode(code)
	if !ok {
		return Setup
	}
	return m
}

// Persist writes mode to the settings store and saves it. It is called only
// immediately before a reset or handoff, keeping the window in which the
// persisted mode and the hardware state can disagree as small as possible.
func Persist(s *settings.Store, m Mode) error {
	s.PutInt(settings.KeyMode, int(m))
	return s.Save()
}
