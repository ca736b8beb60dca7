package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables the render loop profiler.
//
// Parameters:
//   - enabled: if true, the render loop logs a profiler report every second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate caps the logic loop in frames per second.
// Values <= 0 leave the loop paced by the render thread.
//
// Parameters:
//   - fps: target ticks per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.tickRate = 0
			return
		}
		e.tickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window whose events are polled at the start of every render frame.
// Closing it quits the engine.
//
// Parameters:
//   - w: the window the device presents to
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithTick registers the per-frame logic callback.
func WithTick(callback TickFunc) EngineBuilderOption {
	return func(e *engine) {
		e.tickCallback.Store(&callback)
	}
}

// WithLogger sets the logger the engine and its render context report to.
func WithLogger(logger logrus.FieldLogger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithContextOptions forwards options to the render context the engine creates.
//
// Parameters:
//   - options: render context options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithContextOptions(options ...renderer.ContextBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.ctxOptions = append(e.ctxOptions, options...)
	}
}
