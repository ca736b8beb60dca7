package renderer

import (
	"context"
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/arena"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
)

// Logical handles, one type per resource kind so they cannot be mixed up at compile time.
type (
	TextureHandle     common.LogicalHandle
	BufferHandle      common.LogicalHandle
	VertexArrayHandle common.LogicalHandle
	ShaderHandle      common.LogicalHandle
	ProgramHandle     common.LogicalHandle
	FramebufferHandle common.LogicalHandle
)

// DefaultFramebuffer selects the window's framebuffer in BindFramebuffer.
const DefaultFramebuffer FramebufferHandle = 0

// Producer is the API the logic thread issues GPU work through. Every method enqueues exactly one
// task (CreateProgram enqueues five: two compiles, a link and two shader deletes) and returns
// without waiting, except the needs-result calls FramebufferSize, ReadPixels, Finish and EndFrame,
// which block until the render loop has run them.
//
// Creation methods return a logical handle immediately, before the resource exists. Because the
// queue is FIFO, any later call that uses the handle is dispatched after the creation.
//
// Slices passed in are copied before the call returns, so callers may reuse them at once. A Producer
// must only be used from one goroutine.
type Producer struct {
	ctx    *renderContext
	arena  *arena.Arena
	logger logrus.FieldLogger
}

func newProducer(c *renderContext) *Producer {
	return &Producer{
		ctx:    c,
		arena:  c.newArena(),
		logger: c.logger,
	}
}

// push enqueues a fire-and-forget command. After Close the command is dropped with a warning.
func (p *Producer) push(cmd command.Command) {
	t := command.New(cmd, p.ctx.ledger)
	if err := p.ctx.queue.Push(t); err != nil {
		p.logger.WithField("kind", t.Kind()).Warn("render context closed, dropping command")
		t.Release()
	}
}

// call enqueues a needs-result command, waits for it and releases it.
func (p *Producer) call(cmd command.Command) error {
	t := command.New(cmd, p.ctx.ledger)
	if err := p.ctx.queue.Push(t); err != nil {
		t.Release()
		return ErrClosed
	}
	err := p.wait(t)
	if errors.Is(err, ErrStopped) && !t.ResultSet() {
		// The render loop exited without seeing the task; it is still referenced by the queue.
		return ErrStopped
	}
	t.Release()
	return err
}

func (p *Producer) wait(t *command.Task) error {
	if p.ctx.spin {
		for !t.ResultSet() {
			if p.ctx.stopCtx.Err() != nil && !t.ResultSet() {
				return ErrStopped
			}
			runtime.Gosched()
		}
		return t.Wait()
	}
	err := t.WaitContext(p.ctx.stopCtx)
	if errors.Is(err, context.Canceled) {
		if t.ResultSet() {
			return t.Wait()
		}
		return ErrStopped
	}
	return err
}

func (p *Producer) copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	if p.arena != nil {
		return p.arena.Copy(b)
	}
	return append([]byte(nil), b...)
}

func (p *Producer) copyFloats(v []float32) []float32 {
	if v == nil {
		return nil
	}
	if p.arena != nil {
		return p.arena.CopyFloat32(v)
	}
	return append([]float32(nil), v...)
}

// GenerateHandle mints a logical handle without enqueuing anything.
//
// Parameters:
//   - kind: the resource kind
//
// Returns:
//   - common.LogicalHandle: the next handle of that kind
func (p *Producer) GenerateHandle(kind mapper.Kind) common.LogicalHandle {
	return p.ctx.mapper.GenerateHandle(kind)
}

// CreateTexture enqueues the creation of a 2D texture. desc.Pixels is copied.
//
// Parameters:
//   - desc: size, format, filter and optional initial pixels
//
// Returns:
//   - TextureHandle: the logical handle of the texture
func (p *Producer) CreateTexture(desc device.TextureDesc) TextureHandle {
	h := p.GenerateHandle(mapper.Texture)
	desc.Pixels = p.copyBytes(desc.Pixels)
	p.push(&command.CreateTexture{Handle: h, Desc: desc})
	return TextureHandle(h)
}

// CreateTextureFromStaging creates an RGBA texture from decoded image data.
//
// Parameters:
//   - data: decoded pixels, see assets
//   - filter: sampling filter
//
// Returns:
//   - TextureHandle: the logical handle of the texture
func (p *Producer) CreateTextureFromStaging(data common.TextureStagingData, filter device.Filter) TextureHandle {
	return p.CreateTexture(device.TextureDesc{
		Width:  data.Width,
		Height: data.Height,
		Format: device.FormatRGBA8,
		Filter: filter,
		Pixels: data.Pixels,
	})
}

// UpdateTexture overwrites a region of tex. pixels is copied.
func (p *Producer) UpdateTexture(tex TextureHandle, region device.Rect, pixels []byte) {
	p.push(&command.UpdateTexture{
		Texture: common.LogicalHandle(tex),
		Region:  region,
		Pixels:  p.copyBytes(pixels),
	})
}

// DeleteTexture destroys tex.
func (p *Producer) DeleteTexture(tex TextureHandle) {
	p.push(&command.DeleteTexture{Texture: common.LogicalHandle(tex)})
}

// BindTexture binds tex to a sampler unit. A zero handle unbinds the unit.
func (p *Producer) BindTexture(unit uint32, tex TextureHandle) {
	p.push(&command.BindTexture{Unit: unit, Texture: common.LogicalHandle(tex)})
}

// CreateBuffer enqueues the creation of a GPU buffer. desc.Data is copied.
//
// Parameters:
//   - desc: target, usage, size and optional contents
//
// Returns:
//   - BufferHandle: the logical handle of the buffer
func (p *Producer) CreateBuffer(desc device.BufferDesc) BufferHandle {
	h := p.GenerateHandle(mapper.Buffer)
	desc.Data = p.copyBytes(desc.Data)
	p.push(&command.CreateBuffer{Handle: h, Desc: desc})
	return BufferHandle(h)
}

// UpdateBuffer writes data at offset into buf. data is copied.
func (p *Producer) UpdateBuffer(buf BufferHandle, offset int, data []byte) {
	p.push(&command.UpdateBuffer{
		Buffer: common.LogicalHandle(buf),
		Offset: offset,
		Data:   p.copyBytes(data),
	})
}

// UpdateBufferFloat32 writes float data at a byte offset into buf. v is copied.
func (p *Producer) UpdateBufferFloat32(buf BufferHandle, offset int, v []float32) {
	p.UpdateBuffer(buf, offset, common.SliceToBytes(v))
}

// DeleteBuffer destroys buf.
func (p *Producer) DeleteBuffer(buf BufferHandle) {
	p.push(&command.DeleteBuffer{Buffer: common.LogicalHandle(buf)})
}

// CreateVertexArray enqueues a vertex array reading interleaved float attributes from vertices and,
// when indices is non-zero, indices from the index buffer.
//
// Parameters:
//   - vertices: the vertex buffer
//   - indices: the index buffer or 0
//   - stride: bytes between consecutive vertices
//   - attrs: attribute layout
//
// Returns:
//   - VertexArrayHandle: the logical handle of the vertex array
func (p *Producer) CreateVertexArray(vertices, indices BufferHandle, stride uint32, attrs ...device.VertexAttribute) VertexArrayHandle {
	h := p.GenerateHandle(mapper.VertexArray)
	p.push(&command.CreateVertexArray{
		Handle:     h,
		Vertices:   common.LogicalHandle(vertices),
		Indices:    common.LogicalHandle(indices),
		Stride:     stride,
		Attributes: append([]device.VertexAttribute(nil), attrs...),
	})
	return VertexArrayHandle(h)
}

// DeleteVertexArray destroys vao. Its buffers are not affected.
func (p *Producer) DeleteVertexArray(vao VertexArrayHandle) {
	p.push(&command.DeleteVertexArray{VertexArray: common.LogicalHandle(vao)})
}

// CompileShader enqueues a shader compilation. A failure is logged by the render loop and leaves
// the handle unresolved.
//
// Parameters:
//   - stage: vertex or fragment
//   - source: shader source
//
// Returns:
//   - ShaderHandle: the logical handle of the shader
func (p *Producer) CompileShader(stage device.ShaderStage, source string) ShaderHandle {
	h := p.GenerateHandle(mapper.Shader)
	p.push(&command.CompileShader{Handle: h, Stage: stage, Source: source})
	return ShaderHandle(h)
}

// DeleteShader destroys a compiled shader.
func (p *Producer) DeleteShader(sh ShaderHandle) {
	p.push(&command.DeleteShader{Shader: common.LogicalHandle(sh)})
}

// LinkProgram enqueues linking shaders into a program.
//
// Parameters:
//   - shaders: compiled shaders, typically one vertex and one fragment
//
// Returns:
//   - ProgramHandle: the logical handle of the program
func (p *Producer) LinkProgram(shaders ...ShaderHandle) ProgramHandle {
	h := p.GenerateHandle(mapper.Program)
	hs := make([]common.LogicalHandle, len(shaders))
	for i, s := range shaders {
		hs[i] = common.LogicalHandle(s)
	}
	p.push(&command.LinkProgram{Handle: h, Shaders: hs})
	return ProgramHandle(h)
}

// CreateProgram compiles both stages, links them and deletes the shader objects.
//
// Parameters:
//   - vertexSrc: vertex shader source
//   - fragmentSrc: fragment shader source
//
// Returns:
//   - ProgramHandle: the logical handle of the program
func (p *Producer) CreateProgram(vertexSrc, fragmentSrc string) ProgramHandle {
	vs := p.CompileShader(device.StageVertex, vertexSrc)
	fs := p.CompileShader(device.StageFragment, fragmentSrc)
	prog := p.LinkProgram(vs, fs)
	p.DeleteShader(vs)
	p.DeleteShader(fs)
	return prog
}

// DeleteProgram destroys prog.
func (p *Producer) DeleteProgram(prog ProgramHandle) {
	p.push(&command.DeleteProgram{Program: common.LogicalHandle(prog)})
}

// UseProgram selects the program later draws use. The current view-projection matrix is uploaded to
// it automatically.
func (p *Producer) UseProgram(prog ProgramHandle) {
	p.push(&command.UseProgram{Program: common.LogicalHandle(prog)})
}

// SetUniform assigns a uniform of prog. A []float32 value is copied.
func (p *Producer) SetUniform(prog ProgramHandle, name string, value any) {
	if v, ok := value.([]float32); ok {
		value = p.copyFloats(v)
	}
	p.push(&command.SetUniform{Program: common.LogicalHandle(prog), Name: name, Value: value})
}

// CreateFramebuffer enqueues an offscreen framebuffer rendering into color.
//
// Parameters:
//   - color: texture of the given size to render into
//   - width: framebuffer width in pixels
//   - height: framebuffer height in pixels
//
// Returns:
//   - FramebufferHandle: the logical handle of the framebuffer
func (p *Producer) CreateFramebuffer(color TextureHandle, width, height uint32) FramebufferHandle {
	h := p.GenerateHandle(mapper.Framebuffer)
	p.push(&command.CreateFramebuffer{
		Handle: h,
		Color:  common.LogicalHandle(color),
		Width:  width,
		Height: height,
	})
	return FramebufferHandle(h)
}

// BindFramebuffer selects the render target; DefaultFramebuffer selects the window.
func (p *Producer) BindFramebuffer(fb FramebufferHandle) {
	p.push(&command.BindFramebuffer{Framebuffer: common.LogicalHandle(fb)})
}

// DeleteFramebuffer destroys fb. Its color texture is not affected.
func (p *Producer) DeleteFramebuffer(fb FramebufferHandle) {
	p.push(&command.DeleteFramebuffer{Framebuffer: common.LogicalHandle(fb)})
}

func (p *Producer) SetViewport(r device.Rect) {
	p.push(&command.SetViewport{Rect: r})
}

func (p *Producer) SetClearColor(color common.Color) {
	p.push(&command.SetClearColor{Color: color})
}

func (p *Producer) Clear(mask device.ClearMask) {
	p.push(&command.Clear{Mask: mask})
}

func (p *Producer) SetPipelineState(state device.PipelineState) {
	p.push(&command.SetPipelineState{State: state})
}

// SetCamera replaces the camera the view-projection matrix is derived from.
func (p *Producer) SetCamera(cam common.Camera) {
	p.push(&command.SetCamera{Camera: cam})
}

// Draw issues a non-indexed draw from vao with the current program.
func (p *Producer) Draw(vao VertexArrayHandle, call device.DrawCall) {
	p.push(&command.Draw{VertexArray: common.LogicalHandle(vao), Call: call})
}

// DrawIndexed issues an indexed draw from vao with the current program.
func (p *Producer) DrawIndexed(vao VertexArrayHandle, call device.DrawCall) {
	p.push(&command.DrawIndexed{VertexArray: common.LogicalHandle(vao), Call: call})
}

// DrawInstanced draws count vertices of vao instances times.
func (p *Producer) DrawInstanced(vao VertexArrayHandle, prim device.Primitive, first, count, instances int32) {
	p.Draw(vao, device.DrawCall{Primitive: prim, First: first, Count: count, Instances: instances})
}

// FramebufferSize asks the render thread for the size of the window's framebuffer and waits for
// the answer.
//
// Returns:
//   - int: width in pixels
//   - int: height in pixels
//   - error: ErrClosed or ErrStopped when the render loop cannot answer
func (p *Producer) FramebufferSize() (int, int, error) {
	cmd := &command.QueryFramebufferSize{}
	if err := p.call(cmd); err != nil {
		return 0, 0, err
	}
	return cmd.Width, cmd.Height, nil
}

// ReadPixels reads back RGBA pixels of the bound framebuffer once every earlier task has run.
//
// Parameters:
//   - r: the region to read
//
// Returns:
//   - []byte: tightly packed RGBA rows, bottom row first
//   - error: the device error, ErrClosed or ErrStopped
func (p *Producer) ReadPixels(r device.Rect) ([]byte, error) {
	cmd := &command.ReadPixels{Rect: r}
	if err := p.call(cmd); err != nil {
		return nil, err
	}
	return cmd.Pixels, nil
}

// Finish waits until the GPU has executed everything enqueued so far.
func (p *Producer) Finish() error {
	return p.call(&command.Finish{})
}

// EndFrame is the per-frame rendezvous. It blocks until the render loop has dispatched every task
// enqueued before it and presented the frame, then recycles the per-frame arena.
//
// Returns:
//   - uint64: the number of the frame that was presented, starting at 0
//   - error: the present error, ErrClosed or ErrStopped
func (p *Producer) EndFrame() (uint64, error) {
	cmd := &command.EndFrame{}
	err := p.call(cmd)
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrStopped) {
		return 0, err
	}
	if p.arena != nil {
		p.arena.Reset()
		if peak := int64(p.arena.Stats().Peak); peak > p.ctx.arenaPeak.Load() {
			p.ctx.arenaPeak.Store(peak)
		}
	}
	return cmd.Frame, err
}

// ArenaStats returns usage of the per-frame arena. The zero Stats is returned when the arena is
// disabled.
func (p *Producer) ArenaStats() arena.Stats {
	if p.arena == nil {
		return arena.Stats{}
	}
	return p.arena.Stats()
}
