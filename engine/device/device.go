// Package device defines the graphics backend the render thread drives. A Device is owned by exactly
// one goroutine, locked to its OS thread, and no method may be called from anywhere else.
package device

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// Device is the set of GPU operations the consumer dispatches tasks to.
// Every handle it accepts or returns is native; logical handles never reach a Device.
type Device interface {
	// Name returns a short backend identifier used in logs (e.g. "gl", "wgpu", "headless").
	Name() string

	// CreateTexture allocates a 2D texture and uploads desc.Pixels when present.
	//
	// Parameters:
	//   - desc: size, format, filtering and optional initial pixels
	//
	// Returns:
	//   - common.NativeHandle: the backend handle of the new texture
	//   - error: error if the texture could not be created
	CreateTexture(desc TextureDesc) (common.NativeHandle, error)

	// UpdateTexture overwrites a region of an existing texture with tightly packed RGBA pixels.
	UpdateTexture(tex common.NativeHandle, region Rect, pixels []byte) error

	// DeleteTexture releases the texture. Deleting 0 is a no-op.
	DeleteTexture(tex common.NativeHandle)

	// BindTexture binds the texture to a sampler unit. Binding 0 unbinds the unit.
	BindTexture(unit uint32, tex common.NativeHandle)

	// CreateBuffer allocates a GPU buffer of desc.Size bytes, initialized from desc.Data when present.
	//
	// Parameters:
	//   - desc: target, usage hint, size and optional initial contents
	//
	// Returns:
	//   - common.NativeHandle: the backend handle of the new buffer
	//   - error: error if the buffer could not be created
	CreateBuffer(desc BufferDesc) (common.NativeHandle, error)

	// UpdateBuffer writes data at offset into an existing buffer.
	UpdateBuffer(buf common.NativeHandle, offset int, data []byte) error

	// DeleteBuffer releases the buffer. Deleting 0 is a no-op.
	DeleteBuffer(buf common.NativeHandle)

	// CreateVertexArray records how the vertex (and optional index) buffer feeds a program.
	CreateVertexArray(desc VertexArrayDesc) (common.NativeHandle, error)

	// DeleteVertexArray releases the vertex array. Deleting 0 is a no-op.
	DeleteVertexArray(vao common.NativeHandle)

	// CompileShader compiles one shader stage.
	// A rejected source is reported as a *ShaderCompileError.
	//
	// Parameters:
	//   - stage: vertex or fragment
	//   - source: shader source in the backend's language
	//
	// Returns:
	//   - common.NativeHandle: the compiled shader
	//   - error: *ShaderCompileError if the source does not compile
	CompileShader(stage ShaderStage, source string) (common.NativeHandle, error)

	// DeleteShader releases a compiled shader. Programs it was linked into stay valid.
	DeleteShader(sh common.NativeHandle)

	// LinkProgram links compiled shaders into a program.
	// A link failure is reported as a *ShaderLinkError.
	LinkProgram(shaders []common.NativeHandle) (common.NativeHandle, error)

	// DeleteProgram releases the program. Deleting 0 is a no-op.
	DeleteProgram(prog common.NativeHandle)

	// UseProgram makes prog the program later draws use. 0 selects no program.
	UseProgram(prog common.NativeHandle)

	// SetUniform assigns a named uniform of prog. Supported values are float32, int32,
	// mgl32.Vec2, mgl32.Vec3, mgl32.Vec4, mgl32.Mat4 and []float32.
	SetUniform(prog common.NativeHandle, name string, value any) error

	// CreateFramebuffer creates an offscreen target rendering into the color texture.
	CreateFramebuffer(color common.NativeHandle, width, height uint32) (common.NativeHandle, error)

	// BindFramebuffer selects the render target. 0 selects the window's default framebuffer.
	BindFramebuffer(fb common.NativeHandle)

	// DeleteFramebuffer releases the framebuffer. Deleting 0 is a no-op.
	DeleteFramebuffer(fb common.NativeHandle)

	SetViewport(r Rect)
	SetClearColor(color common.Color)
	Clear(mask ClearMask)
	SetPipelineState(state PipelineState)

	// Draw issues a non-indexed draw from the vertex array with the current program.
	Draw(vao common.NativeHandle, call DrawCall) error

	// DrawIndexed issues an indexed draw; the vertex array must have an index buffer.
	DrawIndexed(vao common.NativeHandle, call DrawCall) error

	// ReadPixels reads back RGBA pixels of the bound framebuffer.
	ReadPixels(r Rect) ([]byte, error)

	// Finish blocks until the GPU has executed every submitted command.
	Finish()

	// FramebufferSize returns the current size in pixels of the default framebuffer.
	FramebufferSize() (width, height int)

	// Present shows the finished frame (swap buffers).
	Present() error

	// Release frees every backend resource. The device is unusable afterwards.
	Release()
}
