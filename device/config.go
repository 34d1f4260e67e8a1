package device

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"romcart/emu/log"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Timing  TimingConfig  `toml:"timing"`
	Button  ButtonConfig  `toml:"button"`
}

type StorageConfig struct {
	// SDRoot is the directory standing in for the microSD card.
	SDRoot string `toml:"sd_root"`

	// FlashImage persists the emulated flash chip between runs. Empty
	// means volatile flash.
	FlashImage string `toml:"flash_image"`

	// SettingsFile is the persisted key/value store location.
	SettingsFile string `toml:"settings_file"`

	// FirmwareImage optionally points at the communication firmware image
	// staged in setup mode.
	FirmwareImage string `toml:"firmware_image"`

	// FlashSize is the emulated flash chip capacity in bytes.
	FlashSize int `toml:"flash_size"`
}

type TimingConfig struct {
	// ClockNS is the sequencer cycle duration in nanoseconds.
	ClockNS int `toml:"clock_ns"`

	// SettleCycles is the margin held before sampling the address and
	// after driving the data word.
	SettleCycles int `toml:"settle_cycles"`

	// TickMS is the firmware scheduler tick in milliseconds.
	TickMS int `toml:"tick_ms"`
}

type ButtonConfig struct {
	DebounceMS  int `toml:"debounce_ms"`
	LongPressMS int `toml:"long_press_ms"`
}

// ConfigDir resolves (and creates on first use) the romcart configuration
// directory.
var ConfigDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("romcart")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			SDRoot:       "sdcard",
			FlashImage:   filepath.Join(ConfigDir(), "flash.img"),
			SettingsFile: filepath.Join(ConfigDir(), "settings.json"),
			FlashSize:    2 * 1024 * 1024,
		},
		Timing: TimingConfig{
			ClockNS:      1000,
			SettleCycles: 4,
			TickMS:       100,
		},
		Button: ButtonConfig{
			DebounceMS:  50,
			LongPressMS: 2000,
		},
	}
}

// LoadConfigOrDefault loads the configuration from the romcart config
// directory, or provides the default one.
func LoadConfigOrDefault() Config {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(filepath.Join(ConfigDir(), cfgFilename), &cfg)
	if err != nil && !os.IsNotExist(err) {
		log.ModEmu.Warnf("cannot read config file: %v", err)
	}
	return cfg
}

// SaveConfig into the romcart config directory.
func SaveConfig(cfg Config) error {
	f, err := os.Create(filepath.Join(ConfigDir(), cfgFilename))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func (t TimingConfig) clock() time.Duration {
	return time.Duration(t.ClockNS) * time.Nanosecond
}

func (t TimingConfig) tick() time.Duration {
	return time.Duration(t.TickMS) * time.Millisecond
}
