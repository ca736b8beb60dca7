package renderer

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/arena"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
)

// drainQueue pops everything the producer enqueued without a render loop.
func drainQueue(h *harness) []*command.Task {
	q := h.rc.(*renderContext).queue
	var out []*command.Task
	for t := q.Pop(); t != nil; t = q.Pop() {
		out = append(out, t)
	}
	return out
}

func buildScene(p *Producer) {
	prog := p.CreateProgram(vertexSrc, fragmentSrc)
	vbo := p.CreateBuffer(device.BufferDesc{Data: make([]byte, 32)})
	ibo := p.CreateBuffer(device.BufferDesc{Target: device.BufferIndex, Data: make([]byte, 24)})
	vao := p.CreateVertexArray(vbo, ibo, 8, device.VertexAttribute{Components: 2})
	tex := p.CreateTexture(texDesc(2, 2))
	color := p.CreateTexture(texDesc(8, 8))
	fb := p.CreateFramebuffer(color, 8, 8)

	p.BindFramebuffer(fb)
	p.UseProgram(prog)
	p.BindTexture(0, tex)
	p.SetUniform(prog, "u_time", float32(1))
	p.UpdateBufferFloat32(vbo, 0, []float32{1, 2, 3, 4})
	p.DrawIndexed(vao, device.DrawCall{Count: 6})
	p.BindFramebuffer(DefaultFramebuffer)
	p.BindTexture(0, color)
	p.DrawInstanced(vao, device.Triangles, 0, 4, 2)
	p.UpdateTexture(tex, device.Rect{Width: 1, Height: 1}, []byte{1, 2, 3, 4})

	p.DeleteFramebuffer(fb)
	p.DeleteVertexArray(vao)
	p.DeleteBuffer(vbo)
	p.DeleteBuffer(ibo)
	p.DeleteTexture(tex)
	p.DeleteTexture(color)
	p.DeleteProgram(prog)
}

func TestCreationPrecedesUse(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	buildScene(h.p)
	tasks := drainQueue(h)
	c.Assert(len(tasks) > 20, qt.IsTrue)

	created := map[command.Resource]int{}
	for i, task := range tasks {
		if rf, ok := task.Command().(command.Referrer); ok {
			for _, r := range rf.References() {
				at, ok := created[r]
				c.Assert(ok, qt.IsTrue, qt.Commentf("task %d (%s) uses %s %d before creation", i, task.Kind(), r.Kind, r.Handle))
				c.Assert(at < i, qt.IsTrue)
			}
		}
		if cr, ok := task.Command().(command.Creator); ok {
			res := cr.Creates()
			_, dup := created[res]
			c.Assert(dup, qt.IsFalse, qt.Commentf("%s %d created twice", res.Kind, res.Handle))
			created[res] = i
		}
		task.Release()
	}
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))
}

func TestCreateProgramEnqueuesInProgramOrder(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	prog := h.p.CreateProgram(vertexSrc, fragmentSrc)
	c.Assert(prog, qt.Equals, ProgramHandle(1))

	var kinds []command.Kind
	for _, task := range drainQueue(h) {
		kinds = append(kinds, task.Kind())
		task.Release()
	}
	c.Assert(kinds, qt.DeepEquals, []command.Kind{
		command.KindCompileShader,
		command.KindCompileShader,
		command.KindLinkProgram,
		command.KindDeleteShader,
		command.KindDeleteShader,
	})
}

func TestEveryTaskReleasedExactlyOnce(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	for frame := 0; frame < 5; frame++ {
		buildScene(h.p)
		_, _, err := h.p.FramebufferSize()
		c.Assert(err, qt.IsNil)
		_, err = h.p.ReadPixels(device.Rect{Width: 1, Height: 1})
		c.Assert(err, qt.IsNil)
		c.Assert(h.p.Finish(), qt.IsNil)
		_, err = h.p.EndFrame()
		c.Assert(err, qt.IsNil)
	}
	h.stop(c)

	c.Assert(h.ledger.Total() > 100, qt.IsTrue)
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))
	c.Assert(h.ledger.DoubleReleases(), qt.Equals, int64(0))
	c.Assert(h.ledger.Releases(command.KindEndFrame), qt.Equals, int64(5))
	c.Assert(h.rc.Stats().Errors, qt.Equals, uint64(0))
	c.Assert(h.rc.Stats().Unresolved, qt.Equals, uint64(0))
	c.Assert(h.dev.Live(), qt.Equals, 0)
}

func TestPayloadsAreCopied(t *testing.T) {
	for _, useArena := range []bool{true, false} {
		t.Run(map[bool]string{true: "arena", false: "heap"}[useArena], func(t *testing.T) {
			c := qt.New(t)
			h := newHarness(c, WithArena(useArena), WithArenaChunkSize(16))

			data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
			buf := h.p.CreateBuffer(device.BufferDesc{Data: data})
			data[0] = 99

			floats := []float32{1, 2}
			h.p.UpdateBufferFloat32(buf, 0, floats)
			floats[0] = 42

			weights := []float32{0.5, 0.25}
			prog := h.p.CreateProgram(vertexSrc, fragmentSrc)
			h.p.SetUniform(prog, "u_weights", weights)
			weights[0] = 7

			_, err := h.p.EndFrame()
			c.Assert(err, qt.IsNil)

			native := h.rc.Mapper().Resolve(mapper.Buffer, common.LogicalHandle(buf))
			got, ok := h.dev.BufferData(native)
			c.Assert(ok, qt.IsTrue)
			c.Assert(got, qt.DeepEquals, common.SliceToBytes([]float32{1, 2}))

			pn := h.rc.Mapper().Resolve(mapper.Program, common.LogicalHandle(prog))
			u, _ := h.dev.Uniform(pn, "u_weights")
			c.Assert(u, qt.DeepEquals, []float32{0.5, 0.25})

			if useArena {
				s := h.p.ArenaStats()
				c.Assert(s.Resets, qt.Equals, uint64(1))
				c.Assert(s.Used, qt.Equals, 0)
				c.Assert(h.rc.Stats().ArenaPeak >= 24, qt.IsTrue)
			} else {
				c.Assert(h.p.ArenaStats(), qt.Equals, arena.Stats{})
				c.Assert(h.rc.Stats().ArenaPeak, qt.Equals, 0)
			}
		})
	}
}

func TestGenerateHandleDoesNotEnqueue(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	c.Assert(h.p.GenerateHandle(mapper.Texture), qt.Equals, common.LogicalHandle(1))
	c.Assert(h.p.CreateTexture(texDesc(1, 1)), qt.Equals, TextureHandle(2))
	c.Assert(h.rc.Stats().QueueDepth, qt.Equals, 1)
}

func TestSetCameraUploadsOnNextProgram(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, WithViewProjectionUniform("u_vp"))

	cam := common.Camera{
		Eye: mgl32.Vec3{0, 2, 4}, Up: mgl32.Vec3{0, 1, 0},
		FovY: 45, Near: 0.5, Far: 50,
	}
	h.p.SetCamera(cam)
	prog := h.p.CreateProgram(vertexSrc, fragmentSrc)
	h.p.UseProgram(prog)
	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)

	native := h.rc.Mapper().Resolve(mapper.Program, common.LogicalHandle(prog))
	got, ok := h.dev.Uniform(native, "u_vp")
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.(mgl32.Mat4).ApproxEqual(cam.ViewProjection(800.0/600.0)), qt.IsTrue)
	_, ok = h.dev.Uniform(native, "u_view_projection")
	c.Assert(ok, qt.IsFalse)
}
