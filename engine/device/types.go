package device

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// TextureFormat is the pixel layout of a texture.
type TextureFormat uint8

const (
	FormatRGBA8 TextureFormat = iota
	FormatRGBA8SRGB
	FormatR8
)

// BytesPerPixel returns the size of one texel.
func (f TextureFormat) BytesPerPixel() int {
	if f == FormatR8 {
		return 1
	}
	return 4
}

// Filter selects texture sampling.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Width  uint32
	Height uint32
	Format TextureFormat
	Filter Filter
	// Pixels holds the initial contents, tightly packed. Nil leaves the texture uninitialized.
	Pixels []byte
}

// BufferTarget is how a buffer will be bound.
type BufferTarget uint8

const (
	BufferVertex BufferTarget = iota
	BufferIndex
	BufferUniform
)

func (t BufferTarget) String() string {
	switch t {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	case BufferUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// BufferUsage hints how often the contents change.
type BufferUsage uint8

const (
	UsageStatic BufferUsage = iota
	UsageDynamic
	UsageStream
)

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	Target BufferTarget
	Usage  BufferUsage
	// Size in bytes. When zero, len(Data) is used.
	Size int
	Data []byte
}

// ByteSize returns the allocation size of the buffer.
func (d BufferDesc) ByteSize() int {
	if d.Size > 0 {
		return d.Size
	}
	return len(d.Data)
}

// VertexAttribute describes one float attribute inside an interleaved vertex buffer.
type VertexAttribute struct {
	Location   uint32
	Components int32 // 1 to 4 float32 components
	Offset     uint32
	// Instanced advances the attribute once per instance instead of once per vertex.
	Instanced bool
}

// VertexArrayDesc binds vertex attributes to native buffers.
type VertexArrayDesc struct {
	Vertices   common.NativeHandle
	Indices    common.NativeHandle // 0 for non-indexed geometry
	Stride     uint32
	Attributes []VertexAttribute
}

// ShaderStage is the pipeline stage a shader runs in.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// ClearMask selects which buffers Clear resets.
type ClearMask uint8

const (
	ClearColorBuffer ClearMask = 1 << iota
	ClearDepthBuffer
	ClearStencilBuffer
)

// PipelineState holds the fixed function toggles applied before drawing.
type PipelineState struct {
	Blend     bool
	DepthTest bool
	CullFace  bool
}

// Primitive is the topology of a draw call.
type Primitive uint8

const (
	Triangles Primitive = iota
	TriangleStrip
	Lines
	Points
)

// DrawCall describes the range of a draw. For indexed draws First and Count address indices.
type DrawCall struct {
	Primitive Primitive
	First     int32
	Count     int32
	// Instances is the instance count; values below 1 draw a single instance.
	Instances int32
}

// InstanceCount returns the number of instances to draw, at least 1.
func (d DrawCall) InstanceCount() int32 {
	if d.Instances < 1 {
		return 1
	}
	return d.Instances
}

// Rect is a pixel rectangle with its origin at the lower left, as viewports are.
type Rect struct {
	X, Y          int32
	Width, Height int32
}
