package renderer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
	"github.com/Carmen-Shannon/oxy-render/engine/trace"
)

// beginFrame runs the frame-start hook, follows framebuffer resizes, refreshes the view-projection
// matrix and clears.
func (c *renderContext) beginFrame() {
	if c.frameStart != nil {
		c.frameStart()
	}

	w, h := c.dev.FramebufferSize()
	if w != c.fbWidth || h != c.fbHeight {
		c.fbWidth, c.fbHeight = w, h
		if c.autoViewport {
			c.dev.SetViewport(device.Rect{Width: int32(w), Height: int32(h)})
		}
		c.logger.WithFields(logrus.Fields{
			"width":  w,
			"height": h,
			"frame":  c.frame,
		}).Debug("framebuffer resized")
	}
	c.updateViewProjection()

	if c.clearMask != 0 {
		c.dev.Clear(c.clearMask)
	}
	c.frameTasks = 0
}

func (c *renderContext) updateViewProjection() {
	aspect := float32(1)
	if c.fbHeight > 0 {
		aspect = float32(c.fbWidth) / float32(c.fbHeight)
	}
	c.viewProj = c.camera.ViewProjection(aspect)
	c.uploadViewProjection()
}

func (c *renderContext) uploadViewProjection() {
	if c.vpUniform == "" || c.program == 0 {
		return
	}
	if err := c.dev.SetUniform(c.program, c.vpUniform, c.viewProj); err != nil {
		c.logger.WithError(err).WithField("uniform", c.vpUniform).Debug("view-projection upload skipped")
	}
}

// drain dispatches tasks until an EndFrame was handled (nil), the queue is closed and empty
// (queue.ErrClosed) or ctx ends.
func (c *renderContext) drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.waitForTask(ctx); err != nil {
			return err
		}
		if c.dispatch(c.queue.Pop()) {
			return nil
		}
	}
}

func (c *renderContext) waitForTask(ctx context.Context) error {
	if !c.spin {
		return c.queue.Wait(ctx)
	}
	for c.queue.Empty() {
		if c.queue.Closed() {
			if c.queue.Empty() {
				return queue.ErrClosed
			}
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// dispatch executes one task and then releases or completes it, even when the loop panics past
// execute. It reports whether the task ended the frame.
func (c *renderContext) dispatch(t *command.Task) bool {
	start := time.Now()
	kind := t.Kind()
	cmd := t.Command()
	c.seq++

	var err error
	defer func() {
		if t.NeedsResult() {
			t.Complete(err)
		} else {
			t.Release()
		}
	}()
	err = c.execute(kind, cmd)

	c.tasks.Add(1)
	c.frameTasks++
	if err != nil {
		c.failures.Add(1)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"kind":  kind,
			"frame": c.frame,
		}).Error("render task failed")
	}
	c.record(t, cmd, start, err)
	return kind == command.KindEndFrame
}

// execute runs the device calls of one command. A panic inside them fails only this task.
func (c *renderContext) execute(kind command.Kind, cmd command.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanic, kind, r)
			if cr, ok := cmd.(command.Creator); ok {
				res := cr.Creates()
				if _, status := c.mapper.Lookup(res.Kind, res.Handle); status == mapper.Pending {
					c.mapper.Fail(res.Kind, res.Handle, err)
				}
			}
		}
	}()

	switch kind {
	case command.KindCreateTexture:
		err = c.createTexture(cmd.(*command.CreateTexture))
	case command.KindUpdateTexture:
		err = c.updateTexture(cmd.(*command.UpdateTexture))
	case command.KindDeleteTexture:
		cmd := cmd.(*command.DeleteTexture)
		if native, ok := c.forget(mapper.Texture, cmd.Texture, kind); ok {
			c.dev.DeleteTexture(native)
		}
	case command.KindBindTexture:
		cmd := cmd.(*command.BindTexture)
		c.dev.BindTexture(cmd.Unit, c.resolve(mapper.Texture, cmd.Texture, kind))

	case command.KindCreateBuffer:
		cmd := cmd.(*command.CreateBuffer)
		native, cerr := c.dev.CreateBuffer(cmd.Desc)
		err = c.created(mapper.Buffer, cmd.Handle, native, cerr)
	case command.KindUpdateBuffer:
		cmd := cmd.(*command.UpdateBuffer)
		if native := c.resolve(mapper.Buffer, cmd.Buffer, kind); native != 0 {
			err = c.dev.UpdateBuffer(native, cmd.Offset, cmd.Data)
		}
	case command.KindDeleteBuffer:
		cmd := cmd.(*command.DeleteBuffer)
		if native, ok := c.forget(mapper.Buffer, cmd.Buffer, kind); ok {
			c.dev.DeleteBuffer(native)
		}
	case command.KindCreateVertexArray:
		err = c.createVertexArray(cmd.(*command.CreateVertexArray))
	case command.KindDeleteVertexArray:
		cmd := cmd.(*command.DeleteVertexArray)
		if native, ok := c.forget(mapper.VertexArray, cmd.VertexArray, kind); ok {
			c.dev.DeleteVertexArray(native)
		}

	case command.KindCompileShader:
		cmd := cmd.(*command.CompileShader)
		native, cerr := c.dev.CompileShader(cmd.Stage, cmd.Source)
		err = c.created(mapper.Shader, cmd.Handle, native, cerr)
	case command.KindDeleteShader:
		cmd := cmd.(*command.DeleteShader)
		if native, ok := c.forget(mapper.Shader, cmd.Shader, kind); ok {
			c.dev.DeleteShader(native)
		}
	case command.KindLinkProgram:
		err = c.linkProgram(cmd.(*command.LinkProgram))
	case command.KindDeleteProgram:
		cmd := cmd.(*command.DeleteProgram)
		if native, ok := c.forget(mapper.Program, cmd.Program, kind); ok {
			if c.program == native {
				c.program = 0
			}
			c.dev.DeleteProgram(native)
		}
	case command.KindUseProgram:
		cmd := cmd.(*command.UseProgram)
		c.program = c.resolve(mapper.Program, cmd.Program, kind)
		c.dev.UseProgram(c.program)
		c.uploadViewProjection()
	case command.KindSetUniform:
		cmd := cmd.(*command.SetUniform)
		if native := c.resolve(mapper.Program, cmd.Program, kind); native != 0 {
			err = c.dev.SetUniform(native, cmd.Name, cmd.Value)
		}

	case command.KindCreateFramebuffer:
		cmd := cmd.(*command.CreateFramebuffer)
		color := c.resolve(mapper.Texture, cmd.Color, kind)
		native, cerr := c.dev.CreateFramebuffer(color, cmd.Width, cmd.Height)
		err = c.created(mapper.Framebuffer, cmd.Handle, native, cerr)
	case command.KindBindFramebuffer:
		cmd := cmd.(*command.BindFramebuffer)
		c.dev.BindFramebuffer(c.resolve(mapper.Framebuffer, cmd.Framebuffer, kind))
	case command.KindDeleteFramebuffer:
		cmd := cmd.(*command.DeleteFramebuffer)
		if native, ok := c.forget(mapper.Framebuffer, cmd.Framebuffer, kind); ok {
			c.dev.DeleteFramebuffer(native)
		}

	case command.KindSetViewport:
		c.dev.SetViewport(cmd.(*command.SetViewport).Rect)
	case command.KindSetClearColor:
		c.dev.SetClearColor(cmd.(*command.SetClearColor).Color)
	case command.KindClear:
		c.dev.Clear(cmd.(*command.Clear).Mask)
	case command.KindSetPipelineState:
		c.dev.SetPipelineState(cmd.(*command.SetPipelineState).State)
	case command.KindSetCamera:
		c.camera = cmd.(*command.SetCamera).Camera
		c.updateViewProjection()
	case command.KindDraw:
		cmd := cmd.(*command.Draw)
		if vao := c.resolve(mapper.VertexArray, cmd.VertexArray, kind); vao != 0 {
			err = c.dev.Draw(vao, cmd.Call)
		}
	case command.KindDrawIndexed:
		cmd := cmd.(*command.DrawIndexed)
		if vao := c.resolve(mapper.VertexArray, cmd.VertexArray, kind); vao != 0 {
			err = c.dev.DrawIndexed(vao, cmd.Call)
		}

	case command.KindQueryFramebufferSize:
		cmd := cmd.(*command.QueryFramebufferSize)
		cmd.Width, cmd.Height = c.dev.FramebufferSize()
	case command.KindReadPixels:
		cmd := cmd.(*command.ReadPixels)
		cmd.Pixels, err = c.dev.ReadPixels(cmd.Rect)
	case command.KindFinish:
		c.dev.Finish()
	case command.KindEndFrame:
		err = c.endFrame(cmd.(*command.EndFrame))

	case command.KindInvalid:
		err = fmt.Errorf("invalid command kind")
	default:
		err = fmt.Errorf("unknown command kind %s", kind)
	}
	return err
}

func (c *renderContext) createTexture(cmd *command.CreateTexture) error {
	native, err := c.dev.CreateTexture(cmd.Desc)
	return c.created(mapper.Texture, cmd.Handle, native, err)
}

func (c *renderContext) updateTexture(cmd *command.UpdateTexture) error {
	native := c.resolve(mapper.Texture, cmd.Texture, command.KindUpdateTexture)
	if native == 0 {
		return nil
	}
	return c.dev.UpdateTexture(native, cmd.Region, cmd.Pixels)
}

func (c *renderContext) createVertexArray(cmd *command.CreateVertexArray) error {
	desc := device.VertexArrayDesc{
		Vertices:   c.resolve(mapper.Buffer, cmd.Vertices, command.KindCreateVertexArray),
		Indices:    c.resolve(mapper.Buffer, cmd.Indices, command.KindCreateVertexArray),
		Stride:     cmd.Stride,
		Attributes: cmd.Attributes,
	}
	native, err := c.dev.CreateVertexArray(desc)
	return c.created(mapper.VertexArray, cmd.Handle, native, err)
}

func (c *renderContext) linkProgram(cmd *command.LinkProgram) error {
	shaders := make([]common.NativeHandle, 0, len(cmd.Shaders))
	for _, h := range cmd.Shaders {
		shaders = append(shaders, c.resolve(mapper.Shader, h, command.KindLinkProgram))
	}
	native, err := c.dev.LinkProgram(shaders)
	return c.created(mapper.Program, cmd.Handle, native, err)
}

// endFrame presents and advances the frame counter. The counter advances even if Present panics.
func (c *renderContext) endFrame(cmd *command.EndFrame) error {
	cmd.Frame = c.frame
	defer func() {
		c.frame++
		c.frames.Add(1)
		if c.profiler != nil {
			c.profiler.Tick(profiler.Sample{
				Tasks:      c.frameTasks + 1,
				QueueDepth: c.queue.Len(),
				ArenaPeak:  int(c.arenaPeak.Load()),
			})
		}
	}()
	return c.dev.Present()
}

// created registers the outcome of a creation call in the mapper.
func (c *renderContext) created(k mapper.Kind, h common.LogicalHandle, native common.NativeHandle, err error) error {
	if err != nil {
		c.mapper.Fail(k, h, err)
		return fmt.Errorf("failed to create %s %d: %w", k, h, err)
	}
	c.mapper.Map(k, h, native)
	c.logger.WithFields(logrus.Fields{
		"resource": k,
		"handle":   h,
		"native":   native,
	}).Debug("resource created")
	return nil
}

// resolve translates a logical handle for a task of kind by. A handle without a usable native handle
// is logged as an UnresolvedHandleError and resolves to 0.
func (c *renderContext) resolve(k mapper.Kind, h common.LogicalHandle, by command.Kind) common.NativeHandle {
	native, status := c.mapper.Lookup(k, h)
	if status == mapper.Resolved {
		return native
	}
	c.unresolved.Add(1)
	c.logger.WithError(&UnresolvedHandleError{
		Kind:   k,
		Handle: h,
		Status: status,
		Cause:  c.mapper.Err(k, h),
	}).WithFields(logrus.Fields{
		"kind":  by,
		"frame": c.frame,
	}).Warn("unresolved handle")
	return 0
}

// forget resolves h and marks it deleted. It reports whether a native resource must be destroyed.
func (c *renderContext) forget(k mapper.Kind, h common.LogicalHandle, by command.Kind) (common.NativeHandle, bool) {
	if !h.Valid() {
		return 0, false
	}
	native := c.resolve(k, h, by)
	c.mapper.Unmap(k, h)
	return native, native != 0
}

func (c *renderContext) record(t *command.Task, cmd command.Command, start time.Time, err error) {
	if c.trace == nil {
		return
	}
	e := trace.Event{
		Frame:    c.frame,
		Seq:      c.seq,
		Kind:     t.Kind().String(),
		Duration: time.Since(start),
	}
	if t.Kind() == command.KindEndFrame {
		// The frame counter has already advanced.
		e.Frame--
	}
	if cr, ok := cmd.(command.Creator); ok {
		e.Handle = uint32(cr.Creates().Handle)
	} else if rf, ok := cmd.(command.Referrer); ok {
		if refs := rf.References(); len(refs) > 0 {
			e.Handle = uint32(refs[0].Handle)
		}
	}
	if s, ok := cmd.(command.Sized); ok {
		e.Payload = s.PayloadSize()
	}
	if err != nil {
		e.Err = err.Error()
	}
	if rerr := c.trace.Record(e); rerr != nil {
		c.logger.WithError(rerr).Warn("trace record failed")
	}
}
