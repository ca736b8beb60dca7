package renderer

import (
	"bytes"
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/headless"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/trace"
)

const vertexSrc = `#version 330 core
layout(location = 0) in vec2 a_pos;
uniform mat4 u_view_projection;
void main() { gl_Position = u_view_projection * vec4(a_pos, 0.0, 1.0); }
`

const fragmentSrc = `#version 330 core
out vec4 frag;
void main() { frag = vec4(1.0); }
`

func texDesc(w, h uint32) device.TextureDesc {
	return device.TextureDesc{Width: w, Height: h, Pixels: make([]byte, w*h*4)}
}

func TestCreateThenBindUsesCreatedNativeHandle(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	tex := h.p.CreateTexture(texDesc(4, 4))
	c.Assert(tex, qt.Equals, TextureHandle(1))
	h.p.BindTexture(0, tex)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	native := h.rc.Mapper().Resolve(mapper.Texture, common.LogicalHandle(tex))
	c.Assert(native, qt.Not(qt.Equals), common.NativeHandle(0))
	c.Assert(h.dev.BoundTexture(0), qt.Equals, native)
}

func TestHandlesIncreasePerKind(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	c.Assert(h.p.CreateTexture(texDesc(1, 1)), qt.Equals, TextureHandle(1))
	c.Assert(h.p.CreateTexture(texDesc(1, 1)), qt.Equals, TextureHandle(2))
	c.Assert(h.p.CreateTexture(texDesc(1, 1)), qt.Equals, TextureHandle(3))
	c.Assert(h.p.CreateBuffer(device.BufferDesc{Size: 4}), qt.Equals, BufferHandle(1))
}

func TestEndFrameWaitsForEarlierTasks(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	h.p.SetClearColor(common.Color{0.1, 0.2, 0.3, 1})
	h.p.SetViewport(device.Rect{Width: 10, Height: 10})
	h.p.SetPipelineState(device.PipelineState{DepthTest: true})
	h.p.Clear(device.ClearColorBuffer)
	h.p.CreateBuffer(device.BufferDesc{Size: 16})

	frame, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(frame, qt.Equals, uint64(0))

	s := h.rc.Stats()
	c.Assert(s.Tasks, qt.Equals, uint64(6))
	c.Assert(s.Frames, qt.Equals, uint64(1))
	c.Assert(s.QueueDepth, qt.Equals, 0)
	c.Assert(h.dev.Presents(), qt.Equals, 1)

	ops := h.dev.Ops("SetClearColor", "SetViewport", "SetPipelineState", "Clear", "CreateBuffer", "Present")
	// The frame-start viewport and clear come first; the next frame may already have started.
	present := 0
	for i, op := range ops {
		if op == "Present" {
			present = i
			break
		}
	}
	c.Assert(ops[present-5:present+1], qt.DeepEquals, []string{
		"SetClearColor", "SetViewport", "SetPipelineState", "Clear", "CreateBuffer", "Present",
	})

	frame, err = h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(frame, qt.Equals, uint64(1))
}

func TestEndFrameHoldsFrameBoundary(t *testing.T) {
	c := qt.New(t)

	release := make(chan struct{})
	starts := 0
	hook := func() {
		starts++
		if starts == 2 {
			<-release
		}
	}
	h := newIdleHarness(c, WithFrameStartHook(hook))
	rc := h.rc.(*renderContext)

	for i := 0; i < 3; i++ {
		h.p.SetViewport(device.Rect{X: int32(i)})
	}
	end := command.New(&command.EndFrame{}, h.ledger)
	c.Assert(rc.queue.Push(end), qt.IsNil)
	h.p.SetViewport(device.Rect{X: 100})
	h.p.SetViewport(device.Rect{X: 101})

	h.start(context.Background())
	c.Assert(end.Wait(), qt.IsNil)
	c.Assert(end.ResultSet(), qt.IsTrue)

	// The loop is parked in the next frame's start hook: nothing after EndFrame ran.
	c.Assert(h.rc.Stats().Tasks, qt.Equals, uint64(4))
	c.Assert(h.dev.Viewport().X, qt.Not(qt.Equals), int32(100))
	end.Release()

	close(release)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(h.dev.Viewport().X, qt.Equals, int32(101))
}

func TestFailedCompileLeavesHandleUnresolved(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	vs := h.p.CompileShader(device.StageVertex, "void main() { broken")
	fs := h.p.CompileShader(device.StageFragment, fragmentSrc)
	prog := h.p.LinkProgram(vs, fs)
	h.p.UseProgram(prog)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	var compileErr *device.ShaderCompileError
	c.Assert(h.errorsAs(logrus.ErrorLevel, &compileErr), qt.HasLen, 1)
	c.Assert(compileErr.Stage, qt.Equals, device.StageVertex)

	var linkErr *device.ShaderLinkError
	c.Assert(h.errorsAs(logrus.ErrorLevel, &linkErr), qt.HasLen, 1)

	_, status := h.rc.Mapper().Lookup(mapper.Shader, common.LogicalHandle(vs))
	c.Assert(status, qt.Equals, mapper.Failed)
	_, status = h.rc.Mapper().Lookup(mapper.Program, common.LogicalHandle(prog))
	c.Assert(status, qt.Equals, mapper.Failed)

	// UseProgram fell back to the default program and said why.
	c.Assert(h.dev.CurrentProgram(), qt.Equals, common.NativeHandle(0))
	var unresolved *UnresolvedHandleError
	warns := h.errorsAs(logrus.WarnLevel, &unresolved)
	c.Assert(len(warns) >= 2, qt.IsTrue)
	last := warns[len(warns)-1]
	c.Assert(last.Data["kind"], qt.Equals, command.KindUseProgram)
	c.Assert(last.Data[logrus.ErrorKey].(*UnresolvedHandleError).Status, qt.Equals, mapper.Failed)
	c.Assert(h.rc.Stats().Errors, qt.Equals, uint64(2))
}

func TestUnknownHandleIsTotal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	h.p.BindTexture(2, TextureHandle(99))
	h.p.Draw(VertexArrayHandle(5), device.DrawCall{Count: 3})
	h.p.UpdateBuffer(BufferHandle(7), 0, []byte{1})
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	c.Assert(h.dev.BoundTexture(2), qt.Equals, common.NativeHandle(0))
	c.Assert(h.dev.Draws(), qt.Equals, 0)
	c.Assert(h.rc.Stats().Unresolved, qt.Equals, uint64(3))
	c.Assert(h.rc.Stats().Errors, qt.Equals, uint64(0))

	var unresolved *UnresolvedHandleError
	warns := h.errorsAs(logrus.WarnLevel, &unresolved)
	c.Assert(warns, qt.HasLen, 3)
	c.Assert(warns[0].Data[logrus.ErrorKey].(*UnresolvedHandleError).Status, qt.Equals, mapper.Unknown)
}

func TestDeleteMarksHandleDeleted(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	buf := h.p.CreateBuffer(device.BufferDesc{Size: 8})
	h.p.DeleteBuffer(buf)
	h.p.UpdateBuffer(buf, 0, []byte{1})
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	_, status := h.rc.Mapper().Lookup(mapper.Buffer, common.LogicalHandle(buf))
	c.Assert(status, qt.Equals, mapper.Deleted)
	c.Assert(h.dev.Ops("DeleteBuffer", "UpdateBuffer"), qt.DeepEquals, []string{"DeleteBuffer"})
	c.Assert(h.rc.Stats().Unresolved, qt.Equals, uint64(1))
}

func TestDrawTexturedQuad(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	prog := h.p.CreateProgram(vertexSrc, fragmentSrc)
	verts := []float32{-1, -1, 1, -1, 1, 1, -1, 1}
	vbo := h.p.CreateBuffer(device.BufferDesc{Target: device.BufferVertex, Data: common.SliceToBytes(verts)})
	ibo := h.p.CreateBuffer(device.BufferDesc{Target: device.BufferIndex, Data: common.SliceToBytes([]uint32{0, 1, 2, 2, 3, 0})})
	vao := h.p.CreateVertexArray(vbo, ibo, 8, device.VertexAttribute{Location: 0, Components: 2})
	tex := h.p.CreateTexture(texDesc(2, 2))

	h.p.UseProgram(prog)
	h.p.BindTexture(0, tex)
	h.p.SetUniform(prog, "u_tint", mgl32.Vec4{1, 0.5, 0.5, 1})
	h.p.DrawIndexed(vao, device.DrawCall{Count: 6})
	h.p.DrawInstanced(vao, device.Triangles, 0, 4, 10)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	c.Assert(h.rc.Stats().Errors, qt.Equals, uint64(0))
	c.Assert(h.rc.Stats().Unresolved, qt.Equals, uint64(0))
	c.Assert(h.dev.Draws(), qt.Equals, 2)

	native := h.rc.Mapper().Resolve(mapper.Program, common.LogicalHandle(prog))
	c.Assert(h.dev.CurrentProgram(), qt.Equals, native)

	// Shader objects are gone once the program is linked.
	c.Assert(h.rc.Mapper().Len(mapper.Shader), qt.Equals, 0)

	// The view-projection matrix follows the camera and the framebuffer aspect.
	got, ok := h.dev.Uniform(native, "u_view_projection")
	c.Assert(ok, qt.IsTrue)
	want := common.DefaultCamera().ViewProjection(800.0 / 600.0)
	c.Assert(got.(mgl32.Mat4).ApproxEqual(want), qt.IsTrue)

	cam := common.DefaultCamera()
	cam.Eye = mgl32.Vec3{5, 5, 5}
	h.p.SetCamera(cam)
	_, err = h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	got, _ = h.dev.Uniform(native, "u_view_projection")
	c.Assert(got.(mgl32.Mat4).ApproxEqual(cam.ViewProjection(800.0/600.0)), qt.IsTrue)
}

func TestViewportFollowsResize(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(h.dev.Viewport(), qt.Equals, device.Rect{Width: 800, Height: 600})

	h.dev.Resize(1024, 768)
	// The resize is picked up at the start of the next frame.
	_, err = h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	w, hgt, err := h.p.FramebufferSize()
	c.Assert(err, qt.IsNil)
	c.Assert([]int{w, hgt}, qt.DeepEquals, []int{1024, 768})
	c.Assert(h.dev.Viewport(), qt.Equals, device.Rect{Width: 1024, Height: 768})
}

func TestReadPixelsAfterClear(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	tex := h.p.CreateTexture(texDesc(4, 4))
	fb := h.p.CreateFramebuffer(tex, 4, 4)
	h.p.BindFramebuffer(fb)
	h.p.SetClearColor(common.Color{0, 1, 0, 1})
	h.p.Clear(device.ClearColorBuffer)

	px, err := h.p.ReadPixels(device.Rect{X: 1, Y: 1, Width: 2, Height: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(px, qt.DeepEquals, []byte{0, 255, 0, 255, 0, 255, 0, 255})
	c.Assert(h.p.Finish(), qt.IsNil)

	_, err = h.p.ReadPixels(device.Rect{Width: 100, Height: 100})
	c.Assert(err, qt.Not(qt.IsNil))

	h.p.BindFramebuffer(DefaultFramebuffer)
	h.p.DeleteFramebuffer(fb)
	_, err = h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(h.dev.CurrentFramebuffer(), qt.Equals, common.NativeHandle(0))
}

func TestEveryKindDispatches(t *testing.T) {
	c := qt.New(t)

	samples := []command.Command{
		&command.CreateTexture{Handle: 1, Desc: texDesc(1, 1)},
		&command.UpdateTexture{Texture: 1, Region: device.Rect{Width: 1, Height: 1}, Pixels: make([]byte, 4)},
		&command.BindTexture{Texture: 1},
		&command.CreateBuffer{Handle: 1, Desc: device.BufferDesc{Size: 8}},
		&command.UpdateBuffer{Buffer: 1, Data: []byte{1}},
		&command.CreateVertexArray{Handle: 1, Vertices: 1, Indices: 1, Stride: 8},
		&command.CompileShader{Handle: 1, Stage: device.StageVertex, Source: vertexSrc},
		&command.LinkProgram{Handle: 1, Shaders: []common.LogicalHandle{1, 2}},
		&command.UseProgram{Program: 1},
		&command.SetUniform{Program: 1, Name: "u", Value: float32(1)},
		&command.CreateFramebuffer{Handle: 1, Color: 1, Width: 1, Height: 1},
		&command.BindFramebuffer{Framebuffer: 1},
		&command.SetViewport{},
		&command.SetClearColor{},
		&command.Clear{Mask: device.ClearColorBuffer},
		&command.SetPipelineState{},
		&command.SetCamera{Camera: common.DefaultCamera()},
		&command.Draw{VertexArray: 1, Call: device.DrawCall{Count: 3}},
		&command.DrawIndexed{VertexArray: 1},
		&command.QueryFramebufferSize{},
		&command.ReadPixels{Rect: device.Rect{Width: 1, Height: 1}},
		&command.Finish{},
		&command.DeleteFramebuffer{Framebuffer: 1},
		&command.DeleteVertexArray{VertexArray: 1},
		&command.DeleteProgram{Program: 1},
		&command.DeleteShader{Shader: 1},
		&command.DeleteBuffer{Buffer: 1},
		&command.DeleteTexture{Texture: 1},
		&command.EndFrame{},
	}
	covered := map[command.Kind]bool{}
	for _, cmd := range samples {
		covered[cmd.Kind()] = true
	}
	for _, k := range command.Kinds() {
		c.Assert(covered[k], qt.IsTrue, qt.Commentf("no sample for %s", k))
	}
	c.Assert(samples, qt.HasLen, len(command.Kinds()))

	logger, hook := test.NewNullLogger()
	dev := headless.New()
	rc := NewContext(dev, WithLogger(logger)).(*renderContext)

	// The sample LinkProgram needs a fragment shader under logical handle 2.
	fs, err := dev.CompileShader(device.StageFragment, fragmentSrc)
	c.Assert(err, qt.IsNil)
	rc.mapper.Map(mapper.Shader, 2, fs)

	for _, cmd := range samples {
		k := cmd.Kind()
		task := command.New(cmd, nil)
		ended := rc.dispatch(task)
		c.Assert(ended, qt.Equals, k == command.KindEndFrame)
		if k.NeedsResult() {
			c.Assert(task.ResultSet(), qt.IsTrue)
		} else {
			c.Assert(task.Released(), qt.IsTrue)
		}
	}
	for _, e := range hook.AllEntries() {
		c.Assert(e.Message, qt.Not(qt.Equals), "render task failed", qt.Commentf("%v", e.Data))
	}
}

func TestTraceAndProfilerWiring(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	logger, hook := test.NewNullLogger()
	prof := profiler.NewProfiler(profiler.WithLogger(logger), profiler.WithInterval(0))
	h := newHarness(c, WithTrace(trace.NewWriter(&buf)), WithProfiler(prof))

	tex := h.p.CreateTexture(texDesc(2, 2))
	h.p.BindTexture(0, tex)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	h.p.SetClearColor(common.Color{})
	_, err = h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	h.stop(c)

	events, err := trace.ReadAll(&buf)
	c.Assert(err, qt.IsNil)
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	c.Assert(kinds, qt.DeepEquals, []string{"CreateTexture", "BindTexture", "EndFrame", "SetClearColor", "EndFrame"})
	c.Assert(events[0].Handle, qt.Equals, uint32(1))
	c.Assert(events[0].Payload, qt.Equals, 16)
	c.Assert(events[2].Frame, qt.Equals, uint64(0))
	c.Assert(events[4].Frame, qt.Equals, uint64(1))

	c.Assert(hook.AllEntries(), qt.HasLen, 2)
	c.Assert(hook.LastEntry().Data["max_queue"], qt.Equals, 0)
}

func TestSpinWait(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, WithSpinWait(true))

	for i := 0; i < 20; i++ {
		h.p.SetViewport(device.Rect{Width: int32(i)})
		frame, err := h.p.EndFrame()
		c.Assert(err, qt.IsNil)
		c.Assert(frame, qt.Equals, uint64(i))
	}
	h.stop(c)
	c.Assert(h.dev.Presents(), qt.Equals, 20)
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))
}

func TestStopTimesOutWithoutClose(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	h.start(ctx)
	c.Assert(<-h.errc, qt.Equals, context.DeadlineExceeded)
	c.Assert(h.dev.Ops("Release"), qt.HasLen, 1)
}
