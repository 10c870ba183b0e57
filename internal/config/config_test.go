package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Render.Width != 0 {
		t.Errorf("expected width 0 (auto), got %d", cfg.Render.Width)
	}
	if cfg.Render.Height != 0 {
		t.Errorf("expected height 0 (auto), got %d", cfg.Render.Height)
	}
	if cfg.Render.FPSLimit != 30 {
		t.Errorf("expected fps limit 30, got %d", cfg.Render.FPSLimit)
	}
	if !cfg.Render.Lighting {
		t.Error("expected lighting to be enabled by default")
	}
	if cfg.Render.AlphaMode != "opaque" {
		t.Errorf("expected alpha mode 'opaque', got %s", cfg.Render.AlphaMode)
	}
	if cfg.Render.Sky {
		t.Error("expected sky to be disabled by default")
	}

	if cfg.Terminal.Encoder != "halfblock" {
		t.Errorf("expected encoder 'halfblock', got %s", cfg.Terminal.Encoder)
	}

	if cfg.Model.Speed != 1.0 {
		t.Errorf("expected speed 1.0, got %f", cfg.Model.Speed)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "meshterm.log" {
		t.Errorf("expected log file 'meshterm.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meshterm.yaml")

	yamlContent := `
render:
  width: 320
  height: 240
  fps_limit: 60
  lighting: false
  alpha_mode: "mask"
  sky: true
  sky_path: "sky.png"

terminal:
  encoder: "kitty"

model:
  path: "hero.glb"
  clip: 2
  speed: 0.5

logging:
  level: "debug"
  log_file: "viewer.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Render.Width != 320 {
		t.Errorf("expected width 320, got %d", cfg.Render.Width)
	}
	if cfg.Render.Height != 240 {
		t.Errorf("expected height 240, got %d", cfg.Render.Height)
	}
	if cfg.Render.FPSLimit != 60 {
		t.Errorf("expected fps limit 60, got %d", cfg.Render.FPSLimit)
	}
	if cfg.Render.Lighting {
		t.Error("expected lighting to be false")
	}
	if cfg.Render.AlphaMode != "mask" {
		t.Errorf("expected alpha mode 'mask', got %s", cfg.Render.AlphaMode)
	}
	if !cfg.Render.Sky {
		t.Error("expected sky to be true")
	}
	if cfg.Render.SkyPath != "sky.png" {
		t.Errorf("expected sky path 'sky.png', got %s", cfg.Render.SkyPath)
	}

	if cfg.Terminal.Encoder != "kitty" {
		t.Errorf("expected encoder 'kitty', got %s", cfg.Terminal.Encoder)
	}

	if cfg.Model.Path != "hero.glb" {
		t.Errorf("expected model path 'hero.glb', got %s", cfg.Model.Path)
	}
	if cfg.Model.Clip != 2 {
		t.Errorf("expected clip 2, got %d", cfg.Model.Clip)
	}
	if cfg.Model.Speed != 0.5 {
		t.Errorf("expected speed 0.5, got %f", cfg.Model.Speed)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file 'viewer.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
render:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/meshterm.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg.Terminal.Encoder = "vt52"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown encoder")
	}

	cfg = Default()
	cfg.Render.AlphaMode = "additive"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown alpha mode")
	}

	cfg = Default()
	cfg.Render.FPSLimit = -5
	cfg.Model.Speed = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Render.FPSLimit != 30 {
		t.Errorf("expected fps limit clamped to 30, got %d", cfg.Render.FPSLimit)
	}
	if cfg.Model.Speed != 1.0 {
		t.Errorf("expected speed clamped to 1.0, got %f", cfg.Model.Speed)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "meshterm.yaml")
	if err := os.WriteFile(configPath, []byte("render:\n  width: 160\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find meshterm.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "model flag",
			setup: func() {
				*flagModel = "knight.gltf"
			},
			verify: func(cfg *Config) {
				if cfg.Model.Path != "knight.gltf" {
					t.Errorf("expected model path 'knight.gltf', got %s", cfg.Model.Path)
				}
			},
			teardown: func() {
				*flagModel = ""
			},
		},
		{
			name: "encoder flag",
			setup: func() {
				*flagEncoder = "sixel"
			},
			verify: func(cfg *Config) {
				if cfg.Terminal.Encoder != "sixel" {
					t.Errorf("expected encoder 'sixel', got %s", cfg.Terminal.Encoder)
				}
			},
			teardown: func() {
				*flagEncoder = ""
			},
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 256
				*flagHeight = 192
			},
			verify: func(cfg *Config) {
				if cfg.Render.Width != 256 {
					t.Errorf("expected width 256, got %d", cfg.Render.Width)
				}
				if cfg.Render.Height != 192 {
					t.Errorf("expected height 192, got %d", cfg.Render.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name: "no-lighting flag",
			setup: func() {
				*flagNoLight = true
			},
			verify: func(cfg *Config) {
				if cfg.Render.Lighting {
					t.Error("expected lighting disabled with no-lighting flag")
				}
			},
			teardown: func() {
				*flagNoLight = false
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestSaveTo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := Default()
	cfg.Render.Width = 200
	cfg.Terminal.Encoder = "sixel"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Render.Width != 200 {
		t.Errorf("expected width 200 after reload, got %d", loaded.Render.Width)
	}
	if loaded.Terminal.Encoder != "sixel" {
		t.Errorf("expected encoder 'sixel' after reload, got %s", loaded.Terminal.Encoder)
	}
}
