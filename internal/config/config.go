// Package config loads the daemon configuration: which devices to grab,
// which preset to activate, and the logging setup. Configuration comes from
// a TOML file with KEYMAPPER_* environment variables layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// DeviceConfig selects one physical device and the preset applied to it.
type DeviceConfig struct {
	// Name is matched as a case-insensitive substring of the kernel
	// device name.
	Name string `toml:"name"`

	// Preset overrides the globally active preset for this device.
	Preset string `toml:"preset"`
}

// Config is the daemon configuration.
type Config struct {
	LogLevel     string         `toml:"log_level"`
	PresetDir    string         `toml:"preset_dir"`
	ActivePreset string         `toml:"active_preset"`
	Devices      []DeviceConfig `toml:"device"`

	// MacroPacingMs is the default keystroke pacing for macros whose
	// mapping does not set its own.
	MacroPacingMs int `toml:"macro_pacing_ms"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel:      "info",
		PresetDir:     defaultPresetDir(),
		MacroPacingMs: 10,
	}
}

func defaultPresetDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "key-mapper", "presets")
	}
	return "/etc/key-mapper/presets"
}

// Load reads the configuration file and applies environment overrides. A
// missing file is not an error, the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults
	case err != nil:
		return Config{}, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KEYMAPPER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("KEYMAPPER_PRESET_DIR"); v != "" {
		c.PresetDir = v
	}
	if v := os.Getenv("KEYMAPPER_ACTIVE_PRESET"); v != "" {
		c.ActivePreset = v
	}
	if v := os.Getenv("KEYMAPPER_MACRO_PACING_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			c.MacroPacingMs = ms
		}
	}
}

func (c *Config) validate() error {
	if c.MacroPacingMs < 0 {
		return fmt.Errorf("macro_pacing_ms must not be negative")
	}
	return nil
}

// PresetPath returns the file path of a named preset.
func (c *Config) PresetPath(name string) string {
	return filepath.Join(c.PresetDir, name+".toml")
}

// PresetFor returns the preset name for a device, falling back to the
// globally active one.
func (c *Config) PresetFor(device string) string {
	for _, d := range c.Devices {
		if d.Name == device && d.Preset != "" {
			return d.Preset
		}
	}
	return c.ActivePreset
}
