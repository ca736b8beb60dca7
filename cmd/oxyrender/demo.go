package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// quadVertices is an interleaved position/uv unit quad.
var quadVertices = []float32{
	-0.5, -0.5, 0, 0, 1,
	0.5, -0.5, 0, 1, 1,
	0.5, 0.5, 0, 1, 0,
	-0.5, 0.5, 0, 0, 0,
}

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

const vertexStride = 5 * 4

// shaderSet is the vertex and fragment source for one shading language.
type shaderSet struct {
	vertex   string
	fragment string
}

func shadersFor(backend renderer.BackendType) shaderSet {
	if backend == renderer.BackendTypeWGPU {
		return shaderSet{vertex: wgslVertex, fragment: wgslFragment}
	}
	return shaderSet{vertex: glslVertex, fragment: glslFragment}
}

// demo draws a row of spinning textured quads, one per loaded texture.
type demo struct {
	logger   logrus.FieldLogger
	camera   camera.Controller
	shaders  shaderSet
	textures []common.TextureStagingData
	frames   uint64
	quit     func()

	frame    uint64
	angle    float32
	program  renderer.ProgramHandle
	vertices renderer.BufferHandle
	indices  renderer.BufferHandle
	quad     renderer.VertexArrayHandle
	handles  []renderer.TextureHandle
}

func newDemo(logger logrus.FieldLogger, cam camera.Controller, shaders shaderSet, textures []common.TextureStagingData, frames uint64, quit func()) *demo {
	return &demo{
		logger:   logger,
		camera:   cam,
		shaders:  shaders,
		textures: textures,
		frames:   frames,
		quit:     quit,
	}
}

func (d *demo) setup(p *renderer.Producer) {
	d.program = p.CreateProgram(d.shaders.vertex, d.shaders.fragment)
	d.vertices = p.CreateBuffer(device.BufferDesc{
		Target: device.BufferVertex,
		Usage:  device.UsageStatic,
		Data:   common.SliceToBytes(quadVertices),
	})
	d.indices = p.CreateBuffer(device.BufferDesc{
		Target: device.BufferIndex,
		Usage:  device.UsageStatic,
		Data:   common.SliceToBytes(quadIndices),
	})
	d.quad = p.CreateVertexArray(d.vertices, d.indices, vertexStride,
		device.VertexAttribute{Location: 0, Components: 3, Offset: 0},
		device.VertexAttribute{Location: 1, Components: 2, Offset: 3 * 4},
	)
	for _, t := range d.textures {
		d.handles = append(d.handles, p.CreateTextureFromStaging(t, device.FilterNearest))
	}

	p.SetPipelineState(device.PipelineState{Blend: true, DepthTest: true})
	p.SetClearColor(common.Color{0.08, 0.09, 0.12, 1})
	d.logger.WithFields(logrus.Fields{
		"textures": len(d.handles),
	}).Info("demo resources queued")
}

func (d *demo) teardown(p *renderer.Producer) {
	for _, t := range d.handles {
		p.DeleteTexture(t)
	}
	p.DeleteVertexArray(d.quad)
	p.DeleteBuffer(d.vertices)
	p.DeleteBuffer(d.indices)
	p.DeleteProgram(d.program)
}

// tick is the engine's logic callback.
func (d *demo) tick(p *renderer.Producer, dt float32) {
	if d.frame == 0 {
		d.setup(p)
	}
	d.frame++
	d.angle += dt * mgl32.DegToRad(90)

	p.SetCamera(d.camera.Camera())
	p.UseProgram(d.program)
	p.SetUniform(d.program, "u_tint", float32(0.75+0.25*math.Sin(float64(d.angle))))

	n := len(d.handles)
	for i, tex := range d.handles {
		x := (float32(i) - float32(n-1)/2) * 1.2
		model := mgl32.Translate3D(x, 0, 0).Mul4(mgl32.HomogRotate3DY(d.angle + float32(i)*0.5))
		p.SetUniform(d.program, "u_model", model)
		p.BindTexture(0, tex)
		p.DrawIndexed(d.quad, device.DrawCall{Primitive: device.Triangles, Count: int32(len(quadIndices))})
	}

	if d.frames > 0 && d.frame >= d.frames {
		d.teardown(p)
		d.quit()
	}
}
