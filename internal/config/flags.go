package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagModel     = flag.String("model", "", "Path to glTF/GLB model file")
	flagEncoder   = flag.String("encoder", "", "Terminal encoder: halfblock, sixel, or kitty")
	flagWidth     = flag.Int("width", 0, "Render width in pixels (0 = from terminal)")
	flagHeight    = flag.Int("height", 0, "Render height in pixels (0 = from terminal)")
	flagFPS       = flag.Int("fps", 0, "Frame rate cap")
	flagNoLight   = flag.Bool("no-lighting", false, "Disable directional lighting")
	flagSky       = flag.Bool("sky", false, "Draw the sky background")
	flagAlphaMode = flag.String("alpha", "", "Alpha mode: opaque, mask, or blend")
	flagDiffuse   = flag.String("diffuse", "", "Override diffuse texture path")
	flagNormal    = flag.String("normal", "", "Override normal map path")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagModel != "" {
		cfg.Model.Path = *flagModel
	}
	if *flagEncoder != "" {
		cfg.Terminal.Encoder = *flagEncoder
	}
	if *flagWidth > 0 {
		cfg.Render.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Render.Height = *flagHeight
	}
	if *flagFPS > 0 {
		cfg.Render.FPSLimit = *flagFPS
	}
	if *flagNoLight {
		cfg.Render.Lighting = false
	}
	if *flagSky {
		cfg.Render.Sky = true
	}
	if *flagAlphaMode != "" {
		cfg.Render.AlphaMode = *flagAlphaMode
	}
	if *flagDiffuse != "" {
		cfg.Model.DiffusePath = *flagDiffuse
	}
	if *flagNormal != "" {
		cfg.Model.NormalPath = *flagNormal
	}

	// First positional argument is the model path.
	if flag.NArg() > 0 {
		cfg.Model.Path = flag.Arg(0)
	}
}
