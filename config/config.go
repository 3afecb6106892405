// Package config loads ST7735R panel and board wiring from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/flavioheleno/st7735r"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// Model describes the visible area of a panel variant inside controller GRAM.
type Model struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// Models lists the known panel variants by name.
var Models = map[string]Model{
	"st7735r-128x160": {Width: 128, Height: 160, OffsetX: 2, OffsetY: 1},
	"st7735r-128x128": {Width: 128, Height: 128, OffsetX: 2, OffsetY: 3},
	"st7735r-80x160":  {Width: 80, Height: 160, OffsetX: 26, OffsetY: 1},
	"st7735r-132x162": {Width: 132, Height: 162},
}

// DefaultModel is used when the configuration names none.
const DefaultModel = "st7735r-128x160"

// SPIConfig selects the bus.
type SPIConfig struct {
	// Bus is the periph.io SPI port name; empty picks the first one.
	Bus string `yaml:"bus"`
	// Speed is the clock frequency, e.g. "16MHz".
	Speed string `yaml:"speed"`
}

// PinsConfig names the GPIO lines. Only DC is required.
type PinsConfig struct {
	DC        string `yaml:"dc"`
	RST       string `yaml:"rst,omitempty"`
	Backlight string `yaml:"backlight,omitempty"`
}

// Config is the panel configuration.
type Config struct {
	// Model picks the panel geometry from Models. Width and Height override
	// it when non-zero, the offsets whenever they are set, including to 0.
	Model   string `yaml:"model"`
	Width   int    `yaml:"width,omitempty"`
	Height  int    `yaml:"height,omitempty"`
	OffsetX *int   `yaml:"offset_x,omitempty"`
	OffsetY *int   `yaml:"offset_y,omitempty"`

	// Rotation in degrees; anything but 0, 90, 180 or 270 becomes 0.
	Rotation int `yaml:"rotation"`

	// RGB is set for panels with an RGB color filter (most are BGR).
	RGB bool `yaml:"rgb"`

	SPI  SPIConfig  `yaml:"spi"`
	Pins PinsConfig `yaml:"pins"`

	// Refresh is a cron schedule for periodic redraws, e.g. "@every 5s".
	Refresh string `yaml:"refresh"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `yaml:"log_level"`

	// Normalized records the rotation value replaced by Normalize, if any.
	Normalized *int `yaml:"-"`
}

// DefaultConfig returns the configuration of a 1.8" module wired to the
// Raspberry Pi SPI0 header.
func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		Rotation: 0,
		SPI: SPIConfig{
			Bus:   "",
			Speed: "16MHz",
		},
		Pins: PinsConfig{
			DC:        "GPIO25",
			RST:       "GPIO24",
			Backlight: "GPIO18",
		},
		Refresh:  "@every 5s",
		LogLevel: "info",
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if m, ok := Models[c.Model]; ok {
		if c.Width == 0 {
			c.Width = m.Width
		}
		if c.Height == 0 {
			c.Height = m.Height
		}
		if c.OffsetX == nil {
			x := m.OffsetX
			c.OffsetX = &x
		}
		if c.OffsetY == nil {
			y := m.OffsetY
			c.OffsetY = &y
		}
	}
	if r := st7735r.Rotation(c.Rotation); !r.Valid() {
		old := c.Rotation
		c.Normalized = &old
		c.Rotation = int(r.Normalize())
	}
	if c.SPI.Speed == "" {
		c.SPI.Speed = "16MHz"
	}
	if c.Pins.DC == "" {
		c.Pins.DC = "GPIO25"
	}
	if c.Refresh == "" {
		c.Refresh = "@every 5s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks values Normalize cannot fix.
func (c *Config) Validate() error {
	if _, ok := Models[c.Model]; !ok {
		names := make([]string, 0, len(Models))
		for n := range Models {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("config: unknown model %q (known: %v)", c.Model, names)
	}
	if _, err := c.Frequency(); err != nil {
		return err
	}
	return nil
}

// Frequency parses the SPI speed.
func (c *Config) Frequency() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(c.SPI.Speed); err != nil {
		return 0, fmt.Errorf("config: invalid spi speed %q: %w", c.SPI.Speed, err)
	}
	return f, nil
}

// Lines holds the acquired control lines.
type Lines struct {
	DC        gpio.PinOut
	RST       gpio.PinOut
	Backlight gpio.PinOut
}

// Lines looks up the configured pins in the periph.io GPIO registry.
// A pin that is named but not found is an error; unnamed optional pins are nil.
func (c *Config) Lines() (Lines, error) {
	var l Lines
	var err error
	if l.DC, err = lookup("dc", c.Pins.DC); err != nil {
		return Lines{}, err
	}
	if l.DC == nil {
		return Lines{}, fmt.Errorf("%w: dc pin is required", st7735r.ErrLine)
	}
	if l.RST, err = lookup("rst", c.Pins.RST); err != nil {
		return Lines{}, err
	}
	if l.Backlight, err = lookup("backlight", c.Pins.Backlight); err != nil {
		return Lines{}, err
	}
	return l, nil
}

func lookup(role, name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s pin %s not found", st7735r.ErrLine, role, name)
	}
	return p, nil
}

// Opts converts the configuration into driver options using the given lines.
func (c *Config) Opts(l Lines) (*st7735r.Opts, error) {
	f, err := c.Frequency()
	if err != nil {
		return nil, err
	}
	return &st7735r.Opts{
		W:         c.Width,
		H:         c.Height,
		OffsetX:   deref(c.OffsetX),
		OffsetY:   deref(c.OffsetY),
		Rotation:  st7735r.Rotation(c.Rotation),
		RGB:       c.RGB,
		RST:       l.RST,
		Backlight: l.Backlight,
		Speed:     f,
	}, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is parsed, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Normalize()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".st7735r-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp opens the file with mode 0600.
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
