// Command oxyrender runs the render command queue demo: a logic goroutine records draw commands that
// the main thread replays against an OpenGL, WebGPU or headless device.
package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/config"
	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/assets"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/gldevice"
	"github.com/Carmen-Shannon/oxy-render/engine/device/headless"
	"github.com/Carmen-Shannon/oxy-render/engine/device/wgpudevice"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/trace"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, cfgErr := config.Load(".env")
	logger := cfg.Logger()
	if cfgErr != nil {
		logger.WithError(cfgErr).Error("invalid configuration")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	textures := loadTextures(ctx, cfg, logger)

	dev, win, err := openDevice(cfg, logger)
	if err != nil {
		logger.WithError(err).WithField("backend", cfg.Backend).Error("failed to open device")
		return 1
	}

	ctxOptions := []renderer.ContextBuilderOption{
		renderer.WithSpinWait(cfg.SpinWait),
		renderer.WithArena(cfg.Arena),
		renderer.WithArenaChunkSize(cfg.ArenaChunkSize),
	}
	if cfg.TracePath != "" {
		w, err := trace.Create(cfg.TracePath)
		if err != nil {
			logger.WithError(err).Error("failed to open trace")
			dev.Release()
			return 1
		}
		ctxOptions = append(ctxOptions, renderer.WithTrace(w))
	}

	cam := camera.NewController(camera.WithKeyMap(camera.KeyMap{
		Left:    window.KeyLeft,
		Right:   window.KeyRight,
		Up:      window.KeyUp,
		Down:    window.KeyDown,
		ZoomIn:  window.KeyW,
		ZoomOut: window.KeyS,
	}))
	if win != nil {
		win.SetKeyDownCallback(func(keyCode uint32) { cam.HandleKey(keyCode) })
	}

	var e engine.Engine
	d := newDemo(logger, cam, shadersFor(cfg.Backend), textures, cfg.Frames, func() { e.Quit() })
	options := []engine.EngineBuilderOption{
		engine.WithLogger(logger),
		engine.WithProfiling(cfg.Profile),
		engine.WithTickRate(cfg.TickRate),
		engine.WithTick(d.tick),
		engine.WithContextOptions(ctxOptions...),
	}
	if win != nil {
		options = append(options, engine.WithWindow(win))
	}
	e = engine.NewEngine(dev, options...)

	err = e.Run(ctx)
	stats := e.Context().Stats()
	logger.WithFields(logrus.Fields{
		"frames":     stats.Frames,
		"tasks":      stats.Tasks,
		"errors":     stats.Errors,
		"unresolved": stats.Unresolved,
		"arena_peak": stats.ArenaPeak,
	}).Info("render stats")
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("render loop failed")
		return 1
	}

	if cfg.TracePath != "" {
		summarizeTrace(cfg.TracePath, logger)
	}
	return 0
}

// openDevice creates the window, when the backend needs one, and the device drawing into it.
func openDevice(cfg config.Config, logger logrus.FieldLogger) (device.Device, window.Window, error) {
	windowOptions := []window.WindowBuilderOption{
		window.WithTitle(cfg.Title),
		window.WithWidth(cfg.Width),
		window.WithHeight(cfg.Height),
		window.WithVSync(cfg.PresentMode == renderer.PresentModeVSync),
		window.WithLogger(logger),
	}

	switch cfg.Backend {
	case renderer.BackendTypeHeadless:
		return headless.New(headless.WithSize(cfg.Width, cfg.Height), headless.WithLogger(logger)), nil, nil

	case renderer.BackendTypeGL:
		win, err := window.NewWindow(append(windowOptions, window.WithAPI(window.APIOpenGL))...)
		if err != nil {
			return nil, nil, err
		}
		dev, err := gldevice.New(win, gldevice.WithLogger(logger))
		if err != nil {
			win.Close()
			return nil, nil, err
		}
		return dev, win, nil

	case renderer.BackendTypeWGPU:
		win, err := window.NewWindow(append(windowOptions, window.WithAPI(window.APINone))...)
		if err != nil {
			return nil, nil, err
		}
		dev, err := wgpudevice.New(win,
			wgpudevice.WithLogger(logger),
			wgpudevice.WithVSync(cfg.PresentMode == renderer.PresentModeVSync),
		)
		if err != nil {
			win.Close()
			return nil, nil, err
		}
		return dev, win, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend %s", cfg.Backend)
	}
}

// loadTextures decodes the configured images. Without any, a single checkerboard is used.
func loadTextures(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) []common.TextureStagingData {
	if len(cfg.Textures) == 0 {
		return []common.TextureStagingData{
			assets.Checkerboard(128, 16, color.RGBA{R: 230, G: 230, B: 230, A: 255}, color.RGBA{R: 40, G: 90, B: 160, A: 255}),
		}
	}
	imports := make([]common.ImportedTexture, len(cfg.Textures))
	for i, path := range cfg.Textures {
		imports[i] = common.ImportedTexture{Name: path, Path: path}
	}
	loaded, err := assets.NewLoader(assets.WithLogger(logger)).Load(ctx, imports)
	if err != nil {
		logger.WithError(err).Warn("some textures fell back to the placeholder")
	}
	return loaded
}

func summarizeTrace(path string, logger logrus.FieldLogger) {
	events, err := trace.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warn("failed to read trace back")
		return
	}
	s := trace.Summarize(events)
	logger.WithFields(logrus.Fields{
		"path":   path,
		"frames": s.Frames,
		"events": s.Events,
		"errors": s.Errors,
	}).Info("trace written")
}
