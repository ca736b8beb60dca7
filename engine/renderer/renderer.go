// Package renderer owns the render command queue. A Context pairs a Producer, the only API the rest
// of the engine calls, with a render loop that runs on a dedicated OS thread and is the only code
// that ever touches the GPU device.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/arena"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
	"github.com/Carmen-Shannon/oxy-render/engine/trace"
)

// renderContext is the implementation of the Context interface.
type renderContext struct {
	logger logrus.FieldLogger
	ledger command.Ledger

	dev      device.Device
	queue    *queue.Queue
	mapper   *mapper.Mapper
	producer *Producer

	// Builder configuration
	spin         bool
	useArena     bool
	arenaChunk   int
	trace        trace.Recorder
	profiler     *profiler.Profiler
	frameStart   func()
	vpUniform    string
	clearMask    device.ClearMask
	autoViewport bool

	// Render thread state
	camera     common.Camera
	viewProj   mgl32.Mat4
	program    common.NativeHandle
	fbWidth    int
	fbHeight   int
	frame      uint64
	seq        uint64
	frameTasks int

	running    atomic.Bool
	stopCtx    context.Context
	stopCancel context.CancelFunc

	frames     atomic.Uint64
	tasks      atomic.Uint64
	unresolved atomic.Uint64
	failures   atomic.Uint64
	arenaPeak  atomic.Int64
}

// Context is the render command queue of one device: the queue, the resource mapper, the per-frame
// arena and the render loop, bundled so several independent instances can coexist.
//
// The Producer is used from exactly one goroutine (the logic thread). Run is called on the thread
// that owns the device's graphics context. Stats may be called from anywhere.
type Context interface {
	// Producer returns the producer API bound to this context.
	//
	// Returns:
	//   - *Producer: the producer, the same value on every call
	Producer() *Producer

	// Run executes the render loop on the calling goroutine, which it locks to the current OS thread.
	// It returns nil after Close once every queued task has been dispatched, or ctx.Err() when ctx
	// ends first; in that case remaining needs-result tasks complete with ErrStopped.
	// The device is released before Run returns.
	//
	// Parameters:
	//   - ctx: stops the loop early when cancelled
	//
	// Returns:
	//   - error: nil on orderly shutdown, ctx.Err(), or an error for a recovered panic
	Run(ctx context.Context) error

	// Close stops accepting tasks. Tasks already queued still run. Close belongs to the producer
	// goroutine.
	Close()

	// Done is closed when Run has returned.
	Done() <-chan struct{}

	// Stats returns a snapshot of the loop's counters.
	//
	// Returns:
	//   - Stats: counters at the time of the call
	Stats() Stats

	// Mapper returns the resource mapper. Only the render loop may call Map, Fail or Unmap.
	Mapper() *mapper.Mapper

	// Device returns the device the loop drives.
	Device() device.Device
}

var _ Context = &renderContext{}

// NewContext creates a render context driving dev. No goroutine is started; call Run on the render
// thread.
//
// Parameters:
//   - dev: the device, owned by the context from now on
//   - options: functional options applied to the context
//
// Returns:
//   - Context: the newly created context
func NewContext(dev device.Device, options ...ContextBuilderOption) Context {
	c := &renderContext{
		logger:       logrus.StandardLogger(),
		dev:          dev,
		queue:        queue.New(),
		mapper:       mapper.NewMapper(),
		useArena:     true,
		vpUniform:    "u_view_projection",
		clearMask:    device.ClearColorBuffer | device.ClearDepthBuffer,
		autoViewport: true,
		camera:       common.DefaultCamera(),
		viewProj:     mgl32.Ident4(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.stopCtx, c.stopCancel = context.WithCancel(context.Background())
	c.producer = newProducer(c)
	return c
}

func (c *renderContext) Producer() *Producer {
	return c.producer
}

func (c *renderContext) Mapper() *mapper.Mapper {
	return c.mapper
}

func (c *renderContext) Device() device.Device {
	return c.dev
}

func (c *renderContext) Done() <-chan struct{} {
	return c.stopCtx.Done()
}

func (c *renderContext) Close() {
	c.queue.Close()
}

func (c *renderContext) Run(ctx context.Context) (err error) {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("render loop already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer c.shutdown()

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"panic": r,
				"frame": c.frame,
			}).Error("render loop panic")
			err = fmt.Errorf("render loop panic: %v", r)
			c.abandon()
		}
	}()

	c.logger.WithField("device", c.dev.Name()).Info("render loop started")
	for {
		c.beginFrame()
		err := c.drain(ctx)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrClosed):
			c.logger.WithField("frames", c.frames.Load()).Info("render loop finished")
			return nil
		default:
			c.logger.WithError(err).Info("render loop stopped")
			c.abandon()
			return err
		}
	}
}

// abandon closes the queue and empties it without dispatching, completing needs-result tasks with
// ErrStopped so no producer is left waiting.
func (c *renderContext) abandon() {
	c.queue.Close()
	for t := c.queue.Pop(); t != nil; t = c.queue.Pop() {
		if t.NeedsResult() {
			t.Complete(ErrStopped)
			continue
		}
		t.Release()
	}
}

func (c *renderContext) shutdown() {
	if c.trace != nil {
		if err := c.trace.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close trace")
		}
	}
	c.dev.Release()
	c.stopCancel()
}

// Stats is a snapshot of render loop counters.
type Stats struct {
	// Frames is the number of presented frames.
	Frames uint64
	// Tasks is the number of dispatched tasks.
	Tasks uint64
	// Unresolved is the number of lookups that found no usable native handle.
	Unresolved uint64
	// Errors is the number of tasks whose handler failed.
	Errors uint64
	// QueueDepth is the number of tasks waiting.
	QueueDepth int
	// ArenaPeak is the largest per-frame arena usage in bytes.
	ArenaPeak int
}

func (c *renderContext) Stats() Stats {
	return Stats{
		Frames:     c.frames.Load(),
		Tasks:      c.tasks.Load(),
		Unresolved: c.unresolved.Load(),
		Errors:     c.failures.Load(),
		QueueDepth: c.queue.Len(),
		ArenaPeak:  int(c.arenaPeak.Load()),
	}
}

func (c *renderContext) newArena() *arena.Arena {
	if !c.useArena {
		return nil
	}
	return arena.New(c.arenaChunk)
}
