// Package wgpudevice implements device.Device on WebGPU.
//
// WebGPU has no bind-to-edit state, so the device keeps the immediate-mode state the command
// stream sets (bound program, texture units, target, viewport, pipeline state) and turns it
// into render pipelines and bind groups at draw time. Shader resources follow a fixed
// convention: uniform blocks are backed by one buffer per program, and the Nth texture
// declared in the program is fed from texture unit N together with the Nth sampler.
package wgpudevice

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/wgsl"
)

// Surface is the window side of a WebGPU device.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	GetFramebufferSize() (width, height int)
}

type texture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	format  device.TextureFormat
	width   uint32
	height  uint32
}

type buffer struct {
	buffer *wgpu.Buffer
	target device.BufferTarget
	size   uint64
}

type vertexArray struct {
	vertices common.NativeHandle
	indices  common.NativeHandle
	layouts  []wgpu.VertexBufferLayout
}

type shaderModule struct {
	module  *wgpu.ShaderModule
	stage   device.ShaderStage
	reflect *wgsl.Module
}

type framebuffer struct {
	color        common.NativeHandle
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
	width        uint32
	height       uint32
}

type uniformBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

type pipelineKey struct {
	vertexArray common.NativeHandle
	primitive   device.Primitive
	state       device.PipelineState
	format      wgpu.TextureFormat
}

type program struct {
	vertex    *wgpu.ShaderModule
	fragment  *wgpu.ShaderModule
	reflect   *wgsl.Module
	uniforms  map[[2]uint32]*uniformBuffer
	pipelines map[pipelineKey]*wgpu.RenderPipeline

	// encoded is set once a draw using the program's uniform buffers is recorded into the
	// unsubmitted encoder.
	encoded bool
}

// Device is a WebGPU implementation of device.Device.
type Device struct {
	mu     *sync.Mutex
	logger logrus.FieldLogger

	window   Surface
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	fallback      bool
	width         int
	height        int
	depthTexture  *wgpu.Texture
	depthView     *wgpu.TextureView

	next         common.NativeHandle
	textures     map[common.NativeHandle]*texture
	buffers      map[common.NativeHandle]*buffer
	vertexArrays map[common.NativeHandle]*vertexArray
	shaders      map[common.NativeHandle]*shaderModule
	programs     map[common.NativeHandle]*program
	framebuffers map[common.NativeHandle]*framebuffer

	// immediate-mode state
	units        map[uint32]common.NativeHandle
	current      common.NativeHandle
	target       common.NativeHandle
	viewport     device.Rect
	clearColor   common.Color
	state        device.PipelineState
	pendingClear device.ClearMask

	// frame state
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	passTarget   common.NativeHandle
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	garbage      []*wgpu.BindGroup
}

var _ device.Device = &Device{}

// New creates a WebGPU instance, adapter and device for the window and configures its surface.
// The calling goroutine is locked to its OS thread; it must be the render thread.
//
// Parameters:
//   - window: the window to present to
//   - options: functional options applied to the device
//
// Returns:
//   - *Device: the WebGPU device
//   - error: error if no adapter or device could be acquired
func New(window Surface, options ...DeviceBuilderOption) (*Device, error) {
	runtime.LockOSThread()

	d := &Device{
		mu:           &sync.Mutex{},
		logger:       logrus.StandardLogger(),
		window:       window,
		presentMode:  wgpu.PresentModeFifo,
		next:         1,
		textures:     make(map[common.NativeHandle]*texture),
		buffers:      make(map[common.NativeHandle]*buffer),
		vertexArrays: make(map[common.NativeHandle]*vertexArray),
		shaders:      make(map[common.NativeHandle]*shaderModule),
		programs:     make(map[common.NativeHandle]*program),
		framebuffers: make(map[common.NativeHandle]*framebuffer),
		units:        make(map[uint32]common.NativeHandle),
		clearColor:   common.Color{0, 0, 0, 1},
		state:        device.PipelineState{DepthTest: true},
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(window.SurfaceDescriptor())

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.fallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Render Device"})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	w, h := window.GetFramebufferSize()
	if err := d.configure(w, h); err != nil {
		return nil, err
	}
	d.viewport = device.Rect{Width: int32(w), Height: int32(h)}
	d.logger.WithFields(logrus.Fields{
		"format": d.surfaceFormat,
		"width":  w,
		"height": h,
	}).Info("WebGPU device ready")
	return d, nil
}

func (d *Device) Name() string { return "wgpu" }

// configure sizes the swapchain and the default depth buffer.
func (d *Device) configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if d.depthView != nil {
		d.depthView.Release()
		d.depthTexture.Release()
	}
	tex, view, err := d.createDepth(uint32(width), uint32(height))
	if err != nil {
		return err
	}
	d.depthTexture, d.depthView = tex, view
	d.width, d.height = width, height
	return nil
}

func (d *Device) createDepth(width, height uint32) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to create depth view: %w", err)
	}
	return tex, view, nil
}

func (d *Device) mint() common.NativeHandle {
	h := d.next
	d.next++
	return h
}

func textureFormat(f device.TextureFormat) wgpu.TextureFormat {
	switch f {
	case device.FormatRGBA8SRGB:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case device.FormatR8:
		return wgpu.TextureFormatR8Unorm
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func (d *Device) CreateTexture(desc device.TextureDesc) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	want := int(desc.Width*desc.Height) * desc.Format.BytesPerPixel()
	if desc.Pixels != nil && len(desc.Pixels) != want {
		return 0, fmt.Errorf("texture data is %d bytes, want %d", len(desc.Pixels), want)
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        textureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return 0, err
	}

	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if desc.Filter == device.FilterNearest {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  mip,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return 0, err
	}

	t := &texture{texture: tex, view: view, sampler: sampler, format: desc.Format, width: desc.Width, height: desc.Height}
	if len(desc.Pixels) > 0 {
		d.writeTexture(t, device.Rect{Width: int32(desc.Width), Height: int32(desc.Height)}, desc.Pixels)
	}
	h := d.mint()
	d.textures[h] = t
	return h, nil
}

func (d *Device) writeTexture(t *texture, region device.Rect, pixels []byte) {
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(region.X), Y: uint32(region.Y)},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(region.Width) * uint32(t.format.BytesPerPixel()),
			RowsPerImage: uint32(region.Height),
		},
		&wgpu.Extent3D{
			Width:              uint32(region.Width),
			Height:             uint32(region.Height),
			DepthOrArrayLayers: 1,
		},
	)
}

func (d *Device) UpdateTexture(tex common.NativeHandle, region device.Rect, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	if region.X < 0 || region.Y < 0 || uint32(region.X+region.Width) > t.width || uint32(region.Y+region.Height) > t.height {
		return fmt.Errorf("region %+v outside %dx%d texture", region, t.width, t.height)
	}
	if want := int(region.Width*region.Height) * t.format.BytesPerPixel(); len(pixels) != want {
		return fmt.Errorf("texture data is %d bytes, want %d", len(pixels), want)
	}
	d.flushIfEncoded()
	d.writeTexture(t, region, pixels)
	return nil
}

func (d *Device) DeleteTexture(tex common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[tex]
	if !ok {
		return
	}
	d.flushIfEncoded()
	t.sampler.Release()
	t.view.Release()
	t.texture.Release()
	delete(d.textures, tex)
}

func (d *Device) BindTexture(unit uint32, tex common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tex == 0 {
		delete(d.units, unit)
		return
	}
	d.units[unit] = tex
}

func bufferUsage(t device.BufferTarget) wgpu.BufferUsage {
	switch t {
	case device.BufferIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	case device.BufferUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	}
}

// pad4 returns data extended with zeros to a multiple of four bytes, the WebGPU copy alignment.
func pad4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, roundUp4(uint64(len(data))))
	copy(out, data)
	return out
}

func roundUp4(n uint64) uint64 { return (n + 3) &^ 3 }

func (d *Device) CreateBuffer(desc device.BufferDesc) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	size := desc.ByteSize()
	if size <= 0 {
		return 0, fmt.Errorf("buffer size must be positive")
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Target.String(),
		Size:  roundUp4(uint64(size)),
		Usage: bufferUsage(desc.Target),
	})
	if err != nil {
		return 0, err
	}
	if len(desc.Data) > 0 {
		d.queue.WriteBuffer(buf, 0, pad4(desc.Data))
	}
	h := d.mint()
	d.buffers[h] = &buffer{buffer: buf, target: desc.Target, size: roundUp4(uint64(size))}
	return h, nil
}

func (d *Device) UpdateBuffer(buf common.NativeHandle, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("unknown buffer %d", buf)
	}
	if offset < 0 || offset%4 != 0 {
		return fmt.Errorf("buffer offset %d is not 4-byte aligned", offset)
	}
	padded := pad4(data)
	if uint64(offset)+uint64(len(padded)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	d.flushIfEncoded()
	d.queue.WriteBuffer(b.buffer, uint64(offset), padded)
	return nil
}

func (d *Device) DeleteBuffer(buf common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[buf]
	if !ok {
		return
	}
	d.flushIfEncoded()
	b.buffer.Release()
	delete(d.buffers, buf)
}

func vertexFormat(components int32) (wgpu.VertexFormat, bool) {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32, true
	case 2:
		return wgpu.VertexFormatFloat32x2, true
	case 3:
		return wgpu.VertexFormatFloat32x3, true
	case 4:
		return wgpu.VertexFormatFloat32x4, true
	default:
		return 0, false
	}
}

// CreateVertexArray records the buffer bindings and attribute layout. Instanced attributes read
// the same buffer through a second layout stepped per instance.
func (d *Device) CreateVertexArray(desc device.VertexArrayDesc) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.buffers[desc.Vertices]; !ok {
		return 0, fmt.Errorf("unknown vertex buffer %d", desc.Vertices)
	}
	if desc.Indices != 0 {
		if _, ok := d.buffers[desc.Indices]; !ok {
			return 0, fmt.Errorf("unknown index buffer %d", desc.Indices)
		}
	}

	var perVertex, perInstance []wgpu.VertexAttribute
	for _, a := range desc.Attributes {
		format, ok := vertexFormat(a.Components)
		if !ok {
			return 0, fmt.Errorf("attribute %d has %d components", a.Location, a.Components)
		}
		attr := wgpu.VertexAttribute{Format: format, Offset: uint64(a.Offset), ShaderLocation: a.Location}
		if a.Instanced {
			perInstance = append(perInstance, attr)
		} else {
			perVertex = append(perVertex, attr)
		}
	}

	va := &vertexArray{vertices: desc.Vertices, indices: desc.Indices}
	va.layouts = append(va.layouts, wgpu.VertexBufferLayout{
		ArrayStride: uint64(desc.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  perVertex,
	})
	if len(perInstance) > 0 {
		va.layouts = append(va.layouts, wgpu.VertexBufferLayout{
			ArrayStride: uint64(desc.Stride),
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes:  perInstance,
		})
	}
	h := d.mint()
	d.vertexArrays[h] = va
	return h, nil
}

func (d *Device) DeleteVertexArray(vao common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.vertexArrays, vao)
	for _, p := range d.programs {
		for key, rp := range p.pipelines {
			if key.vertexArray == vao {
				rp.Release()
				delete(p.pipelines, key)
			}
		}
	}
}

func (d *Device) CompileShader(stage device.ShaderStage, source string) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	reflected := wgsl.Reflect(source)
	if reflected.EntryPoint(stage) == "" {
		return 0, &device.ShaderCompileError{Stage: stage, Log: fmt.Sprintf("no @%s entry point", stage)}
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.String(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return 0, &device.ShaderCompileError{Stage: stage, Log: err.Error()}
	}
	h := d.mint()
	d.shaders[h] = &shaderModule{module: module, stage: stage, reflect: reflected}
	return h, nil
}

func (d *Device) DeleteShader(sh common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.shaders[sh]
	if !ok {
		return
	}
	// Programs keep their own reference to the module.
	delete(d.shaders, sh)
	if !d.moduleInUse(s.module) {
		s.module.Release()
	}
}

func (d *Device) moduleInUse(m *wgpu.ShaderModule) bool {
	for _, p := range d.programs {
		if p.vertex == m || p.fragment == m {
			return true
		}
	}
	return false
}

func (d *Device) LinkProgram(shaders []common.NativeHandle) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := &program{
		uniforms:  make(map[[2]uint32]*uniformBuffer),
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	var reflected []*wgsl.Module
	for _, h := range shaders {
		s, ok := d.shaders[h]
		if !ok {
			return 0, &device.ShaderLinkError{Log: fmt.Sprintf("unknown shader %d", h)}
		}
		switch s.stage {
		case device.StageVertex:
			if p.vertex != nil {
				return 0, &device.ShaderLinkError{Log: "more than one vertex shader"}
			}
			p.vertex = s.module
		case device.StageFragment:
			if p.fragment != nil {
				return 0, &device.ShaderLinkError{Log: "more than one fragment shader"}
			}
			p.fragment = s.module
		}
		reflected = append(reflected, s.reflect)
	}
	if p.vertex == nil || p.fragment == nil {
		return 0, &device.ShaderLinkError{Log: "program needs a vertex and a fragment shader"}
	}
	p.reflect = wgsl.Merge(reflected...)

	for _, b := range p.reflect.Class(wgsl.BindingUniform) {
		if b.Size == 0 {
			return 0, &device.ShaderLinkError{Log: fmt.Sprintf("cannot size uniform block %q", b.Name)}
		}
		size := (b.Size + 15) &^ 15
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: b.Name,
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.release()
			return 0, &device.ShaderLinkError{Log: err.Error()}
		}
		p.uniforms[[2]uint32{b.Group, b.Binding}] = &uniformBuffer{buffer: buf, size: size}
	}

	h := d.mint()
	d.programs[h] = p
	return h, nil
}

func (p *program) release() {
	for _, rp := range p.pipelines {
		rp.Release()
	}
	for _, u := range p.uniforms {
		u.buffer.Release()
	}
}

func (d *Device) DeleteProgram(prog common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[prog]
	if !ok {
		return
	}
	d.flushIfEncoded()
	p.release()
	delete(d.programs, prog)
	if d.current == prog {
		d.current = 0
	}
}

func (d *Device) UseProgram(prog common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = prog
}

func (d *Device) SetUniform(prog common.NativeHandle, name string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[prog]
	if !ok {
		return fmt.Errorf("unknown program %d", prog)
	}
	binding, field, ok := p.reflect.Uniform(name)
	if !ok {
		return fmt.Errorf("program %d has no uniform %q", prog, name)
	}
	data, err := uniformBytes(value)
	if err != nil {
		return err
	}
	if uint64(len(data)) > field.Size {
		return fmt.Errorf("uniform %q holds %d bytes, got %d", name, field.Size, len(data))
	}
	ub := p.uniforms[[2]uint32{binding.Group, binding.Binding}]
	if p.encoded {
		d.submit()
	}
	d.queue.WriteBuffer(ub.buffer, field.Offset, pad4(data))
	return nil
}

func (d *Device) CreateFramebuffer(color common.NativeHandle, width, height uint32) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[color]
	if !ok {
		return 0, fmt.Errorf("unknown color texture %d", color)
	}
	if t.width != width || t.height != height {
		return 0, fmt.Errorf("color texture is %dx%d, framebuffer is %dx%d", t.width, t.height, width, height)
	}
	tex, view, err := d.createDepth(width, height)
	if err != nil {
		return 0, err
	}
	h := d.mint()
	d.framebuffers[h] = &framebuffer{color: color, depthTexture: tex, depthView: view, width: width, height: height}
	return h, nil
}

func (d *Device) BindFramebuffer(fb common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = fb
}

func (d *Device) DeleteFramebuffer(fb common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.framebuffers[fb]
	if !ok {
		return
	}
	d.flushIfEncoded()
	f.depthView.Release()
	f.depthTexture.Release()
	delete(d.framebuffers, fb)
	if d.target == fb {
		d.target = 0
	}
}

func (d *Device) SetViewport(r device.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = r
}

func (d *Device) SetClearColor(color common.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearColor = color
}

// Clear ends the open pass; the next pass on the target starts with the requested load ops.
func (d *Device) Clear(mask device.ClearMask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endPass()
	d.pendingClear |= mask
}

func (d *Device) SetPipelineState(state device.PipelineState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

func (d *Device) Draw(vao common.NativeHandle, call device.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.prepareDraw(vao, call.Primitive, false); err != nil {
		return err
	}
	d.pass.Draw(uint32(call.Count), uint32(call.InstanceCount()), uint32(call.First), 0)
	return nil
}

func (d *Device) DrawIndexed(vao common.NativeHandle, call device.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.prepareDraw(vao, call.Primitive, true); err != nil {
		return err
	}
	d.pass.DrawIndexed(uint32(call.Count), uint32(call.InstanceCount()), uint32(call.First), 0, 0)
	return nil
}

// ReadPixels is not offered by this device: reading back needs an asynchronous buffer map.
func (d *Device) ReadPixels(device.Rect) ([]byte, error) {
	return nil, device.ErrUnsupported
}

// Finish submits every recorded command to the queue.
func (d *Device) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submit()
}

func (d *Device) FramebufferSize() (int, int) {
	return d.window.GetFramebufferSize()
}

func (d *Device) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return fmt.Errorf("device released")
	}
	// A frame with no draws still presents its clear.
	if d.frameSurface == nil || d.pendingClear != 0 {
		saved := d.target
		d.target = 0
		if err := d.beginPass(); err != nil {
			d.target = saved
			return err
		}
		d.target = saved
	}
	d.submit()
	d.surface.Present()

	d.frameView.Release()
	d.frameSurface.Release()
	d.frameView = nil
	d.frameSurface = nil
	for _, bg := range d.garbage {
		bg.Release()
	}
	d.garbage = d.garbage[:0]
	return nil
}

// Release frees every GPU object and the device itself.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return
	}
	d.endPass()
	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	if d.frameView != nil {
		d.frameView.Release()
		d.frameSurface.Release()
	}
	for _, bg := range d.garbage {
		bg.Release()
	}
	for _, p := range d.programs {
		p.release()
	}
	for _, s := range d.shaders {
		s.module.Release()
	}
	for _, f := range d.framebuffers {
		f.depthView.Release()
		f.depthTexture.Release()
	}
	for _, b := range d.buffers {
		b.buffer.Release()
	}
	for _, t := range d.textures {
		t.sampler.Release()
		t.view.Release()
		t.texture.Release()
	}
	if d.depthView != nil {
		d.depthView.Release()
		d.depthTexture.Release()
	}
	d.logger.WithFields(logrus.Fields{
		"textures":      len(d.textures),
		"buffers":       len(d.buffers),
		"vertex_arrays": len(d.vertexArrays),
		"programs":      len(d.programs),
		"framebuffers":  len(d.framebuffers),
	}).Info("WebGPU device released")

	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
	d.surface = nil
}
