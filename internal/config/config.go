// Package config handles viewer configuration loading and management.
package config

import "fmt"

// Config holds all viewer settings.
type Config struct {
	Render   RenderConfig   `yaml:"render"`
	Terminal TerminalConfig `yaml:"terminal"`
	Model    ModelConfig    `yaml:"model"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RenderConfig holds render target and shading settings.
type RenderConfig struct {
	Width     int    `yaml:"width"`      // Render width in pixels, 0 = derive from terminal size
	Height    int    `yaml:"height"`     // Render height in pixels, 0 = derive from terminal size
	FPSLimit  int    `yaml:"fps_limit"`  // Frame cap
	Lighting  bool   `yaml:"lighting"`   // Directional lighting on/off
	AlphaMode string `yaml:"alpha_mode"` // "opaque", "mask", or "blend"
	Sky       bool   `yaml:"sky"`        // Draw the sky background
	SkyPath   string `yaml:"sky_path"`   // Sky texture image, empty = procedural gradient
}

// TerminalConfig holds terminal output settings.
type TerminalConfig struct {
	Encoder string `yaml:"encoder"` // "halfblock", "sixel", or "kitty"
}

// ModelConfig holds model and texture override paths.
type ModelConfig struct {
	Path        string  `yaml:"path"`         // glTF/GLB file to view
	DiffusePath string  `yaml:"diffuse_path"` // Override diffuse texture, empty = from model
	NormalPath  string  `yaml:"normal_path"`  // Override normal map, empty = from model
	Clip        int     `yaml:"clip"`         // Initial animation clip index
	Speed       float64 `yaml:"speed"`        // Playback speed multiplier
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Width:     0,
			Height:    0,
			FPSLimit:  30,
			Lighting:  true,
			AlphaMode: "opaque",
			Sky:       false,
			SkyPath:   "",
		},
		Terminal: TerminalConfig{
			Encoder: "halfblock",
		},
		Model: ModelConfig{
			Path:  "",
			Clip:  0,
			Speed: 1.0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "meshterm.log",
		},
	}
}

// Validate checks enum fields and clamps numeric ranges.
func (c *Config) Validate() error {
	switch c.Terminal.Encoder {
	case "halfblock", "sixel", "kitty":
	default:
		return fmt.Errorf("unknown encoder %q (want halfblock, sixel, or kitty)", c.Terminal.Encoder)
	}
	switch c.Render.AlphaMode {
	case "opaque", "mask", "blend":
	default:
		return fmt.Errorf("unknown alpha mode %q (want opaque, mask, or blend)", c.Render.AlphaMode)
	}
	if c.Render.FPSLimit <= 0 {
		c.Render.FPSLimit = 30
	}
	if c.Model.Speed <= 0 {
		c.Model.Speed = 1.0
	}
	return nil
}
