package command

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
)

// Command is the payload of a Task. Each concrete command stores exactly the operands its GPU call
// needs; building one never touches the GPU.
type Command interface {
	Kind() Kind
}

// Resource names a logical handle of a particular resource kind.
type Resource struct {
	Kind   mapper.Kind
	Handle common.LogicalHandle
}

// Creator is implemented by commands that bring a new resource into existence.
type Creator interface {
	Creates() Resource
}

// Referrer is implemented by commands that read previously created resources.
type Referrer interface {
	References() []Resource
}

// Sized is implemented by commands that carry a copied buffer.
type Sized interface {
	PayloadSize() int
}

func ref(k mapper.Kind, h common.LogicalHandle) []Resource {
	if !h.Valid() {
		return nil
	}
	return []Resource{{Kind: k, Handle: h}}
}

// Textures

type CreateTexture struct {
	Handle common.LogicalHandle
	Desc   device.TextureDesc
}

func (*CreateTexture) Kind() Kind          { return KindCreateTexture }
func (c *CreateTexture) Creates() Resource { return Resource{mapper.Texture, c.Handle} }
func (c *CreateTexture) PayloadSize() int  { return len(c.Desc.Pixels) }

type UpdateTexture struct {
	Texture common.LogicalHandle
	Region  device.Rect
	Pixels  []byte
}

func (*UpdateTexture) Kind() Kind               { return KindUpdateTexture }
func (c *UpdateTexture) References() []Resource { return ref(mapper.Texture, c.Texture) }
func (c *UpdateTexture) PayloadSize() int       { return len(c.Pixels) }

type DeleteTexture struct {
	Texture common.LogicalHandle
}

func (*DeleteTexture) Kind() Kind               { return KindDeleteTexture }
func (c *DeleteTexture) References() []Resource { return ref(mapper.Texture, c.Texture) }

type BindTexture struct {
	Unit    uint32
	Texture common.LogicalHandle
}

func (*BindTexture) Kind() Kind               { return KindBindTexture }
func (c *BindTexture) References() []Resource { return ref(mapper.Texture, c.Texture) }

// Buffers and vertex arrays

type CreateBuffer struct {
	Handle common.LogicalHandle
	Desc   device.BufferDesc
}

func (*CreateBuffer) Kind() Kind          { return KindCreateBuffer }
func (c *CreateBuffer) Creates() Resource { return Resource{mapper.Buffer, c.Handle} }
func (c *CreateBuffer) PayloadSize() int  { return len(c.Desc.Data) }

type UpdateBuffer struct {
	Buffer common.LogicalHandle
	Offset int
	Data   []byte
}

func (*UpdateBuffer) Kind() Kind               { return KindUpdateBuffer }
func (c *UpdateBuffer) References() []Resource { return ref(mapper.Buffer, c.Buffer) }
func (c *UpdateBuffer) PayloadSize() int       { return len(c.Data) }

type DeleteBuffer struct {
	Buffer common.LogicalHandle
}

func (*DeleteBuffer) Kind() Kind               { return KindDeleteBuffer }
func (c *DeleteBuffer) References() []Resource { return ref(mapper.Buffer, c.Buffer) }

// CreateVertexArray describes interleaved float attributes read from Vertices and, when set, the
// index buffer Indices.
type CreateVertexArray struct {
	Handle     common.LogicalHandle
	Vertices   common.LogicalHandle
	Indices    common.LogicalHandle
	Stride     uint32
	Attributes []device.VertexAttribute
}

func (*CreateVertexArray) Kind() Kind          { return KindCreateVertexArray }
func (c *CreateVertexArray) Creates() Resource { return Resource{mapper.VertexArray, c.Handle} }
func (c *CreateVertexArray) References() []Resource {
	return append(ref(mapper.Buffer, c.Vertices), ref(mapper.Buffer, c.Indices)...)
}

type DeleteVertexArray struct {
	VertexArray common.LogicalHandle
}

func (*DeleteVertexArray) Kind() Kind { return KindDeleteVertexArray }
func (c *DeleteVertexArray) References() []Resource {
	return ref(mapper.VertexArray, c.VertexArray)
}

// Shaders and programs

type CompileShader struct {
	Handle common.LogicalHandle
	Stage  device.ShaderStage
	Source string
}

func (*CompileShader) Kind() Kind          { return KindCompileShader }
func (c *CompileShader) Creates() Resource { return Resource{mapper.Shader, c.Handle} }
func (c *CompileShader) PayloadSize() int  { return len(c.Source) }

type DeleteShader struct {
	Shader common.LogicalHandle
}

func (*DeleteShader) Kind() Kind               { return KindDeleteShader }
func (c *DeleteShader) References() []Resource { return ref(mapper.Shader, c.Shader) }

type LinkProgram struct {
	Handle  common.LogicalHandle
	Shaders []common.LogicalHandle
}

func (*LinkProgram) Kind() Kind          { return KindLinkProgram }
func (c *LinkProgram) Creates() Resource { return Resource{mapper.Program, c.Handle} }
func (c *LinkProgram) References() []Resource {
	var out []Resource
	for _, h := range c.Shaders {
		out = append(out, ref(mapper.Shader, h)...)
	}
	return out
}

type DeleteProgram struct {
	Program common.LogicalHandle
}

func (*DeleteProgram) Kind() Kind               { return KindDeleteProgram }
func (c *DeleteProgram) References() []Resource { return ref(mapper.Program, c.Program) }

type UseProgram struct {
	Program common.LogicalHandle
}

func (*UseProgram) Kind() Kind               { return KindUseProgram }
func (c *UseProgram) References() []Resource { return ref(mapper.Program, c.Program) }

// SetUniform assigns Value to the named uniform of Program. See device.Device.SetUniform for the
// accepted value types.
type SetUniform struct {
	Program common.LogicalHandle
	Name    string
	Value   any
}

func (*SetUniform) Kind() Kind               { return KindSetUniform }
func (c *SetUniform) References() []Resource { return ref(mapper.Program, c.Program) }
func (c *SetUniform) PayloadSize() int {
	if v, ok := c.Value.([]float32); ok {
		return len(v) * 4
	}
	return 0
}

// Framebuffers

type CreateFramebuffer struct {
	Handle common.LogicalHandle
	Color  common.LogicalHandle // texture the framebuffer renders into
	Width  uint32
	Height uint32
}

func (*CreateFramebuffer) Kind() Kind          { return KindCreateFramebuffer }
func (c *CreateFramebuffer) Creates() Resource { return Resource{mapper.Framebuffer, c.Handle} }
func (c *CreateFramebuffer) References() []Resource {
	return ref(mapper.Texture, c.Color)
}

// BindFramebuffer selects the render target; NoHandle selects the window.
type BindFramebuffer struct {
	Framebuffer common.LogicalHandle
}

func (*BindFramebuffer) Kind() Kind { return KindBindFramebuffer }
func (c *BindFramebuffer) References() []Resource {
	return ref(mapper.Framebuffer, c.Framebuffer)
}

type DeleteFramebuffer struct {
	Framebuffer common.LogicalHandle
}

func (*DeleteFramebuffer) Kind() Kind { return KindDeleteFramebuffer }
func (c *DeleteFramebuffer) References() []Resource {
	return ref(mapper.Framebuffer, c.Framebuffer)
}

// State and drawing

type SetViewport struct {
	Rect device.Rect
}

func (*SetViewport) Kind() Kind { return KindSetViewport }

type SetClearColor struct {
	Color common.Color
}

func (*SetClearColor) Kind() Kind { return KindSetClearColor }

type Clear struct {
	Mask device.ClearMask
}

func (*Clear) Kind() Kind { return KindClear }

type SetPipelineState struct {
	State device.PipelineState
}

func (*SetPipelineState) Kind() Kind { return KindSetPipelineState }

// SetCamera replaces the camera the render thread derives the view-projection matrix from.
type SetCamera struct {
	Camera common.Camera
}

func (*SetCamera) Kind() Kind { return KindSetCamera }

type Draw struct {
	VertexArray common.LogicalHandle
	Call        device.DrawCall
}

func (*Draw) Kind() Kind               { return KindDraw }
func (c *Draw) References() []Resource { return ref(mapper.VertexArray, c.VertexArray) }

type DrawIndexed struct {
	VertexArray common.LogicalHandle
	Call        device.DrawCall
}

func (*DrawIndexed) Kind() Kind               { return KindDrawIndexed }
func (c *DrawIndexed) References() []Resource { return ref(mapper.VertexArray, c.VertexArray) }

// Needs-result commands. The consumer writes their outputs before completing the task.

// QueryFramebufferSize fetches the size of the default framebuffer.
type QueryFramebufferSize struct {
	Width  int
	Height int
}

func (*QueryFramebufferSize) Kind() Kind { return KindQueryFramebufferSize }

// ReadPixels reads back a region of the bound framebuffer into Pixels.
type ReadPixels struct {
	Rect   device.Rect
	Pixels []byte
}

func (*ReadPixels) Kind() Kind { return KindReadPixels }

// Finish waits for the GPU to finish all submitted work.
type Finish struct{}

func (*Finish) Kind() Kind { return KindFinish }

// EndFrame is the per-frame rendezvous. Frame is filled in by the consumer with the number of the
// frame it presented.
type EndFrame struct {
	Frame uint64
}

func (*EndFrame) Kind() Kind { return KindEndFrame }
