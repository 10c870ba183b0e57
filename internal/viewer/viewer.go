// Package viewer implements the main loop: it ties config, asset loading,
// the GPU renderer, input and the terminal encoder together.
package viewer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/sfenley/meshterm/internal/assets"
	"github.com/sfenley/meshterm/internal/config"
	"github.com/sfenley/meshterm/internal/engine/camera"
	"github.com/sfenley/meshterm/internal/engine/input"
	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/engine/renderer"
	"github.com/sfenley/meshterm/internal/logger"
	"github.com/sfenley/meshterm/internal/term"
)

// Viewer is the viewer instance.
type Viewer struct {
	cfg      *config.Config
	bundle   *assets.Bundle
	sky      *model.Texture
	renderer *renderer.Renderer
	camera   *camera.OrbitCamera
	encoder  term.Encoder
	input    *input.Input

	state     model.State
	running   bool
	lighting  bool
	wireframe bool
	skyOn     bool
	capture   bool
	alphaMode int

	// Terminal cell grid at last resize check.
	cols int
	rows int
}

// New loads the model and brings up the renderer.
func New(cfg *config.Config) (*Viewer, error) {
	logger.Info("initializing viewer",
		zap.String("model", cfg.Model.Path),
		zap.String("encoder", cfg.Terminal.Encoder))

	v := &Viewer{
		cfg:       cfg,
		lighting:  cfg.Render.Lighting,
		skyOn:     cfg.Render.Sky,
		alphaMode: alphaMode(cfg.Render.AlphaMode),
	}

	var err error
	v.encoder, err = term.NewEncoder(cfg.Terminal.Encoder)
	if err != nil {
		return nil, err
	}

	v.bundle, err = assets.Load(assets.Options{
		ModelPath:   cfg.Model.Path,
		DiffusePath: cfg.Model.DiffusePath,
		NormalPath:  cfg.Model.NormalPath,
	})
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	if cfg.Render.SkyPath != "" {
		v.sky, err = assets.LoadTexture(cfg.Render.SkyPath)
		if err != nil {
			logger.Warn("sky image unusable, using gradient",
				zap.String("path", cfg.Render.SkyPath), zap.Error(err))
		}
	}

	width, height := v.targetSize()
	v.renderer, err = renderer.New(width, height, shaderDir())
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	v.camera = camera.NewOrbitCamera()
	v.camera.FitToBounds(v.bundle.Mesh.Bounds())

	v.state.Playing = true
	v.state.SetClip(cfg.Model.Clip, v.bundle.Mesh.Animations)

	logger.Info("viewer initialized", zap.Int("width", width), zap.Int("height", height))
	return v, nil
}

// targetSize resolves the render target dimensions: explicit config wins,
// otherwise the terminal cell grid is converted through the encoder.
func (v *Viewer) targetSize() (int, int) {
	if v.cfg.Render.Width > 0 && v.cfg.Render.Height > 0 {
		return v.cfg.Render.Width, v.cfg.Render.Height
	}

	cols, rows, err := term.Size()
	if err != nil {
		logger.Warn("terminal size unavailable, using 80x24 cells", zap.Error(err))
		cols, rows = 80, 24
	}
	v.cols, v.rows = cols, rows
	return v.encoder.PixelSize(cols, rows-1) // keep one row for the shell prompt
}

// shaderDir finds the compiled shaders next to the executable, falling back
// to the working directory.
func shaderDir() string {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "shaders")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	return "shaders"
}

func alphaMode(name string) int {
	switch name {
	case "mask":
		return renderer.AlphaMask
	case "blend":
		return renderer.AlphaBlend
	default:
		return renderer.AlphaOpaque
	}
}

// Run enters the main loop and blocks until quit.
func (v *Viewer) Run() error {
	interactive := term.IsTerminal()
	if interactive {
		restore, err := term.RawMode()
		if err != nil {
			return err
		}
		defer restore()

		term.EnterScreen(os.Stdout)
		defer term.LeaveScreen(os.Stdout)

		v.input = input.NewStdin()
		defer v.input.Close()
	}

	fps := v.cfg.Render.FPSLimit
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	v.running = true
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting render loop", zap.Int("fps", fps))

	for v.running {
		<-ticker.C

		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		v.drainEvents()
		if !v.running {
			break
		}

		v.state.Advance(dt*v.cfg.Model.Speed, v.bundle.Mesh.Animations)

		pixels, err := v.renderFrame()
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if pixels != nil {
			if err := v.present(pixels); err != nil {
				return fmt.Errorf("encode error: %w", err)
			}
			if v.capture {
				v.capture = false
				width, height := v.renderer.Size()
				if name, err := saveFrame(pixels, width, height); err != nil {
					logger.Error("frame capture failed", zap.Error(err))
				} else {
					logger.Info("frame captured", zap.String("file", name))
				}
			}
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps", zap.Int("count", frameCount), zap.Float64("dt", dt*1000))
			frameCount = 0
			fpsTimer = time.Now()
			if interactive {
				v.checkResize()
			}
		}
	}

	return nil
}

// drainEvents applies all pending input events without blocking.
func (v *Viewer) drainEvents() {
	if v.input == nil {
		return
	}
	for {
		select {
		case ev := <-v.input.Events():
			v.handleEvent(ev)
		default:
			return
		}
	}
}

func (v *Viewer) handleEvent(ev input.Event) {
	clips := v.bundle.Mesh.Animations
	switch ev.Type {
	case input.EventQuit:
		v.running = false
	case input.EventOrbitLeft:
		v.camera.Orbit(-1, 0)
	case input.EventOrbitRight:
		v.camera.Orbit(1, 0)
	case input.EventOrbitUp:
		v.camera.Orbit(0, 1)
	case input.EventOrbitDown:
		v.camera.Orbit(0, -1)
	case input.EventZoomIn:
		v.camera.Zoom(1)
	case input.EventZoomOut:
		v.camera.Zoom(-1)
	case input.EventNextClip:
		v.state.SetClip(v.state.Clip+1, clips)
	case input.EventPrevClip:
		v.state.SetClip(v.state.Clip-1, clips)
	case input.EventTogglePause:
		v.state.Playing = !v.state.Playing
	case input.EventToggleWireframe:
		v.wireframe = !v.wireframe
	case input.EventToggleLighting:
		v.lighting = !v.lighting
	case input.EventToggleSky:
		v.skyOn = !v.skyOn
	case input.EventScreenshot:
		v.capture = true
	}
}

// renderFrame evaluates the pose and submits one frame, returning the pixels
// of a previously submitted frame (nil during pipeline warm-up).
func (v *Viewer) renderFrame() ([]byte, error) {
	mesh := v.bundle.Mesh

	var clip *model.Animation
	if len(mesh.Animations) > 0 {
		clip = mesh.Animations[v.state.Clip]
	}

	width, height := v.renderer.Size()
	aspect := float32(width) / float32(height)

	in := &renderer.FrameInput{
		Mesh:         mesh,
		Diffuse:      v.bundle.Diffuse,
		Normal:       v.bundle.Normal,
		Sky:          v.sky,
		BoneMatrices: model.Pose(mesh.Skeleton, clip, v.state.Time),
		ModelMatrix:  mesh.Correction,
		ViewMatrix:   v.camera.ViewMatrix(),
		ProjMatrix:   v.camera.ProjectionMatrix(aspect),
		CameraPos:    v.camera.Position(),
		LightDir:     v.camera.LightDirection(),
		Lighting:     v.lighting,
		Wireframe:    v.wireframe,
		SkyEnabled:   v.skyOn,
		SkyTextured:  v.sky != nil,
		AlphaMode:    v.alphaMode,
	}

	if v.skyOn {
		// Fade distant geometry into the horizon color.
		in.FogEnabled = true
		in.FogColor = mgl32.Vec3{0.65, 0.75, 0.9}
		in.FogStart = v.camera.Distance * 4
		in.FogEnd = v.camera.Far
	}

	return v.renderer.Render(in)
}

// present writes one frame's pixels to the terminal.
func (v *Viewer) present(pixels []byte) error {
	width, height := v.renderer.Size()
	term.Home(os.Stdout)
	return v.encoder.Encode(os.Stdout, pixels, width, height)
}

// checkResize adapts the render target when the terminal grid changed.
// Explicitly configured dimensions are never overridden.
func (v *Viewer) checkResize() {
	if v.cfg.Render.Width > 0 && v.cfg.Render.Height > 0 {
		return
	}
	cols, rows, err := term.Size()
	if err != nil || (cols == v.cols && rows == v.rows) {
		return
	}
	v.cols, v.rows = cols, rows

	width, height := v.encoder.PixelSize(cols, rows-1)
	logger.Info("terminal resized", zap.Int("width", width), zap.Int("height", height))
	if err := v.renderer.Resize(width, height); err != nil {
		logger.Error("resize failed", zap.Error(err))
	}
}

// Close releases GPU and terminal resources.
func (v *Viewer) Close() {
	logger.Info("closing viewer")
	if v.renderer != nil {
		v.renderer.Destroy()
	}
}
