// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image/color"

	"gopkg.in/yaml.v3"

	"github.com/user/imgbridge/pkg/adapters/osfilesystem"
	"github.com/user/imgbridge/pkg/decoder"
	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/ports"
)

// Config represents the full configuration for imgbridge.
type Config struct {
	// Detection
	ProbeOrder []string `yaml:"probe_order"`

	// Decoding
	MaxPixels    uint64 `yaml:"max_pixels"`
	SkipMetadata bool   `yaml:"skip_metadata"`
	Workers      int    `yaml:"workers"`

	// Output
	LogLevel string        `yaml:"log_level"`
	Preview  PreviewConfig `yaml:"preview"`
}

// PreviewConfig controls PNG previews written by the decode command.
type PreviewConfig struct {
	// MaxSize bounds the longer side; zero keeps the full size.
	MaxSize int `yaml:"max_size"`
	// Background flattens transparency onto a hex colour when set.
	Background string `yaml:"background"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	order := formats.DefaultProbeOrder()
	names := make([]string, len(order))
	for i, t := range order {
		names[i] = t.String()
	}
	return Config{
		ProbeOrder: names,

		MaxPixels: 1 << 28,
		Workers:   4,

		LogLevel: "info",
		Preview: PreviewConfig{
			MaxSize: 0,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on disk.
func LoadFromFile(path string) (Config, error) {
	return Load(osfilesystem.New(), path)
}

// Load reads a YAML configuration file through fs. Keys missing from the
// file keep their default values.
func Load(fs ports.FileSystem, path string) (Config, error) {
	cfg := Defaults()

	data, err := fs.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.ParseProbeOrder(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("config: workers must be at least 1, got %d", c.Workers))
	}
	if c.Preview.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("config: preview.max_size must not be negative, got %d", c.Preview.MaxSize))
	}
	if c.Preview.Background != "" {
		if _, ok := parseHex(c.Preview.Background); !ok {
			errs = append(errs, fmt.Errorf("config: preview.background %q is not a #rrggbb colour", c.Preview.Background))
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error", "quiet":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ParseProbeOrder converts the probe order names to tags.
func (c Config) ParseProbeOrder() ([]formats.Tag, error) {
	tags := make([]formats.Tag, 0, len(c.ProbeOrder))
	for _, name := range c.ProbeOrder {
		t, err := formats.ParseTag(name)
		if err != nil {
			return nil, fmt.Errorf("config: probe_order: %w", err)
		}
		tags = append(tags, t)
	}
	if _, err := formats.NewDetector(tags...); err != nil {
		return nil, fmt.Errorf("config: probe_order: %w", err)
	}
	return tags, nil
}

// Detector builds the header detector for the configured probe order.
func (c Config) Detector() (*formats.Detector, error) {
	tags, err := c.ParseProbeOrder()
	if err != nil {
		return nil, err
	}
	return formats.NewDetector(tags...)
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}

// DecodeOptions returns the per-call decoder options.
func (c Config) DecodeOptions() decoder.Options {
	return decoder.Options{
		SkipMetadata: c.SkipMetadata,
		MaxPixels:    c.MaxPixels,
	}
}

// BackgroundColor returns the preview background, or nil when previews keep
// their transparency.
func (c Config) BackgroundColor() color.Color {
	if c.Preview.Background == "" {
		return nil
	}
	return ParseColor(c.Preview.Background)
}

// ParseColor parses a hex color string to color.Color. Malformed input
// yields black.
func ParseColor(hex string) color.Color {
	c, ok := parseHex(hex)
	if !ok {
		return color.Black
	}
	return c
}

func parseHex(hex string) (color.RGBA, bool) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.RGBA{}, false
	}

	var v [3]uint8
	for i := range v {
		hi, ok1 := hexValue(hex[2*i])
		lo, ok2 := hexValue(hex[2*i+1])
		if !ok1 || !ok2 {
			return color.RGBA{}, false
		}
		v[i] = hi<<4 | lo
	}
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 255}, true
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
