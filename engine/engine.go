package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// TickFunc is the per-frame logic callback. It runs on the logic goroutine and records the
// frame's commands through p; the engine ends the frame after it returns.
type TickFunc func(p *renderer.Producer, deltaTime float32)

// engine implements the Engine interface.
// Coordinates the render thread, the logic goroutine and the window.
type engine struct {
	logger logrus.FieldLogger

	rc         renderer.Context
	ctxOptions []renderer.ContextBuilderOption

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	running         atomic.Bool
	wg              sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	profilingEnabled bool

	// tickRate is the minimum frame duration of the logic loop; 0 lets the render thread pace it.
	tickRate  time.Duration
	lastFrame atomic.Uint64
	// tickCallback is swapped by SetTickCallback while the logic goroutine reads it.
	tickCallback atomic.Pointer[TickFunc]
}

// Engine is the main entry point for an application built on the render command queue.
// It owns the render context, drives the logic loop and keeps the window's events flowing.
type Engine interface {
	// Window returns the window the engine polls, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Context returns the render context the engine drives.
	//
	// Returns:
	//   - renderer.Context: the render context
	Context() renderer.Context

	// SetTickRate caps the logic loop at fps frames per second. Values <= 0 remove the cap so the
	// render thread paces the loop through EndFrame.
	//
	// Parameters:
	//   - fps: target frames per second
	SetTickRate(fps float64)

	// SetTickCallback registers the function called once per frame on the logic goroutine.
	//
	// Parameters:
	//   - callback: the per-frame logic
	SetTickCallback(callback TickFunc)

	// Frame returns the number of the last completed frame.
	Frame() uint64

	// Run starts the logic goroutine and runs the render loop on the calling goroutine, which must
	// be the thread that owns the window and the device. It blocks until Quit, the window closing,
	// or ctx ending.
	//
	// Parameters:
	//   - ctx: cancels the render loop without draining it
	//
	// Returns:
	//   - error: nil on orderly shutdown, otherwise the render loop's error
	Run(ctx context.Context) error

	// Quit stops the logic loop; queued commands are still drained before Run returns.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates an Engine driving dev.
// The device must have been created on the goroutine that will call Run.
//
// Parameters:
//   - dev: the render device, owned by the engine from now on
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(dev device.Device, options ...EngineBuilderOption) Engine {
	e := &engine{
		logger:          logrus.StandardLogger(),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	ctxOptions := append([]renderer.ContextBuilderOption{renderer.WithLogger(e.logger)}, e.ctxOptions...)
	if e.profilingEnabled {
		ctxOptions = append(ctxOptions, renderer.WithProfiler(profiler.NewProfiler(profiler.WithLogger(e.logger))))
	}
	if e.window != nil {
		ctxOptions = append(ctxOptions, renderer.WithFrameStartHook(e.window.PollEvents))
		e.window.SetCloseCallback(e.Quit)
		e.window.SetResizeCallback(func(width, height int) {
			e.logger.WithFields(logrus.Fields{
				"width":  width,
				"height": height,
			}).Debug("window resized")
		})
	}
	e.rc = renderer.NewContext(dev, ctxOptions...)
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Context() renderer.Context {
	return e.rc
}

func (e *engine) Frame() uint64 {
	return e.lastFrame.Load()
}

func (e *engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	e.wg.Add(1)
	go e.handleLogic()

	err := e.rc.Run(ctx)
	e.signalQuit()
	e.wg.Wait()

	if e.window != nil {
		if closeErr := e.window.Close(); closeErr != nil {
			e.logger.WithError(closeErr).Warn("failed to close window")
		}
	}
	e.running.Store(false)
	return err
}

// Quit signals the logic goroutine to stop.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel exactly once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleLogic is the producer side: tick, end the frame, repeat. It closes the render context
// on the way out so the render loop drains and returns.
func (e *engine) handleLogic() {
	defer e.wg.Done()
	defer e.rc.Close()
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("logic goroutine recovered from panic")
		}
	}()

	p := e.rc.Producer()
	rate := e.tickRate
	last := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case rate = <-e.tickRateChannel:
		default:
		}

		start := time.Now()
		dt := float32(start.Sub(last).Seconds())
		last = start

		if tick := e.tickCallback.Load(); tick != nil && *tick != nil {
			(*tick)(p, dt)
		}
		frame, err := p.EndFrame()
		if err != nil {
			if !errors.Is(err, renderer.ErrClosed) && !errors.Is(err, renderer.ErrStopped) {
				e.logger.WithError(err).Error("end of frame failed")
			}
			return
		}
		e.lastFrame.Store(frame)

		if rate > 0 {
			if remaining := rate - time.Since(start); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-e.quitChannel:
					return
				}
			}
		}
	}
}

// SetTickRate updates the cap. If the engine is running, the change takes effect on the next frame.
func (e *engine) SetTickRate(fps float64) {
	var rate time.Duration
	if fps > 0 {
		rate = time.Duration(float64(time.Second) / fps)
	}
	if !e.running.Load() {
		e.tickRate = rate
		return
	}
	// Non-blocking send; a pending update is replaced.
	select {
	case e.tickRateChannel <- rate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- rate
	}
}

// SetTickCallback replaces the logic callback. Safe to call while running; the next frame uses it.
func (e *engine) SetTickCallback(callback TickFunc) {
	e.tickCallback.Store(&callback)
}
