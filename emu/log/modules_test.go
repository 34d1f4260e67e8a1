package log

import "testing"

func TestModuleByName(t *testing.T) {
	for _, name := range ModuleNames() {
		mod, ok := ModuleByName(name)
		if !ok {
			t.Fatalf("registered module %q not found", name)
		}
		if got := modNames[mod]; got != name {
			t.Errorf("module %q resolves to %q", name, got)
		}
	}
	if _, ok := ModuleByName("definitely-not-a-module"); ok {
		t.Error("unknown module name resolved")
	}
}

func TestModuleMasks(t *testing.T) {
	seen := ModuleMask(0)
	for _, name := range ModuleNames() {
		mod, _ := ModuleByName(name)
		if seen&mod.Mask() != 0 {
			t.Fatalf("module %q shares a mask bit", name)
		}
		seen |= mod.Mask()
	}
}

func TestEnableDebugModules(t *testing.T) {
	defer func() { modDebugMask = 0 }()

	if ModPIO.Enabled(DebugLevel) {
		t.Fatal("debug enabled by default")
	}
	if !ModPIO.Enabled(WarnLevel) {
		t.Fatal("warnings must always be enabled")
	}

	EnableDebugModules(ModPIO.Mask())
	if !ModPIO.Enabled(DebugLevel) {
		t.Fatal("debug not enabled after EnableDebugModules")
	}
	if ModBus.Enabled(DebugLevel) {
		t.Fatal("debug leaked to another module")
	}

	DisableDebugModules(ModPIO.Mask())
	if ModPIO.Enabled(DebugLevel) {
		t.Fatal("debug still enabled after DisableDebugModules")
	}
}
