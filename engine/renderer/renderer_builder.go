package renderer

import (
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/trace"
)

// ContextBuilderOption is a functional option applied to a render context during construction via NewContext.
type ContextBuilderOption func(*renderContext)

// WithLogger sets the logger both the producer and the render loop report to.
//
// Parameters:
//   - logger: the logger to use (defaults to logrus.StandardLogger())
//
// Returns:
//   - ContextBuilderOption: a function that applies the logger option to a context
func WithLogger(logger logrus.FieldLogger) ContextBuilderOption {
	return func(c *renderContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLedger installs a ledger that observes every task allocation and release.
//
// Parameters:
//   - ledger: the ledger, typically a *command.Counter
//
// Returns:
//   - ContextBuilderOption: a function that applies the ledger option to a context
func WithLedger(ledger command.Ledger) ContextBuilderOption {
	return func(c *renderContext) {
		c.ledger = ledger
	}
}

// WithSpinWait makes the render loop and the producer's blocking calls busy-poll instead of parking.
// This trades a full core for the lowest dispatch latency.
//
// Parameters:
//   - spin: true to spin, false to block (default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the spin option to a context
func WithSpinWait(spin bool) ContextBuilderOption {
	return func(c *renderContext) {
		c.spin = spin
	}
}

// WithArena enables or disables copying task payloads into the per-frame arena. When disabled every
// payload gets its own heap copy.
//
// Parameters:
//   - enabled: true to use the arena (default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the arena option to a context
func WithArena(enabled bool) ContextBuilderOption {
	return func(c *renderContext) {
		c.useArena = enabled
	}
}

// WithArenaChunkSize sets the minimum chunk size of the per-frame arena in bytes.
//
// Parameters:
//   - size: chunk size in bytes
//
// Returns:
//   - ContextBuilderOption: a function that applies the chunk size option to a context
func WithArenaChunkSize(size int) ContextBuilderOption {
	return func(c *renderContext) {
		c.arenaChunk = size
	}
}

// WithTrace records every dispatched task to rec. The render loop closes rec when it exits.
//
// Parameters:
//   - rec: the trace recorder
//
// Returns:
//   - ContextBuilderOption: a function that applies the trace option to a context
func WithTrace(rec trace.Recorder) ContextBuilderOption {
	return func(c *renderContext) {
		c.trace = rec
	}
}

// WithProfiler ticks p once per presented frame.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - ContextBuilderOption: a function that applies the profiler option to a context
func WithProfiler(p *profiler.Profiler) ContextBuilderOption {
	return func(c *renderContext) {
		c.profiler = p
	}
}

// WithFrameStartHook registers a function the render loop calls at the start of every frame, before
// clearing. The engine polls window events here.
//
// Parameters:
//   - hook: function run on the render thread
//
// Returns:
//   - ContextBuilderOption: a function that applies the hook option to a context
func WithFrameStartHook(hook func()) ContextBuilderOption {
	return func(c *renderContext) {
		c.frameStart = hook
	}
}

// WithCamera sets the initial camera.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - ContextBuilderOption: a function that applies the camera option to a context
func WithCamera(cam common.Camera) ContextBuilderOption {
	return func(c *renderContext) {
		c.camera = cam
	}
}

// WithViewProjectionUniform sets the uniform name the view-projection matrix is uploaded to whenever
// a program is bound. An empty name disables the upload.
//
// Parameters:
//   - name: uniform name (default "u_view_projection")
//
// Returns:
//   - ContextBuilderOption: a function that applies the uniform option to a context
func WithViewProjectionUniform(name string) ContextBuilderOption {
	return func(c *renderContext) {
		c.vpUniform = name
	}
}

// WithClearMask sets which buffers are cleared at frame start. Zero disables the clear.
//
// Parameters:
//   - mask: the buffers to clear (default color and depth)
//
// Returns:
//   - ContextBuilderOption: a function that applies the clear option to a context
func WithClearMask(mask device.ClearMask) ContextBuilderOption {
	return func(c *renderContext) {
		c.clearMask = mask
	}
}

// WithAutoViewport makes the viewport follow the framebuffer size whenever it changes.
//
// Parameters:
//   - enabled: true to follow (default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the viewport option to a context
func WithAutoViewport(enabled bool) ContextBuilderOption {
	return func(c *renderContext) {
		c.autoViewport = enabled
	}
}
