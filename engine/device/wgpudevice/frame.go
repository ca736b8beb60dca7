package wgpudevice

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/wgsl"
)

// acquire takes the next swapchain image, reconfiguring the surface first if the window's
// framebuffer changed size.
func (d *Device) acquire() error {
	if d.frameSurface != nil {
		return nil
	}
	if w, h := d.window.GetFramebufferSize(); w != d.width || h != d.height {
		if err := d.configure(w, h); err != nil {
			return err
		}
	}
	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	d.frameSurface = surfaceTexture
	d.frameView = view
	return nil
}

// targetViews returns the color and depth attachments and the color format of the bound target.
func (d *Device) targetViews() (*wgpu.TextureView, *wgpu.TextureView, wgpu.TextureFormat, uint32, uint32, error) {
	if d.target == 0 {
		if err := d.acquire(); err != nil {
			return nil, nil, 0, 0, 0, err
		}
		return d.frameView, d.depthView, d.surfaceFormat, uint32(d.width), uint32(d.height), nil
	}
	fb, ok := d.framebuffers[d.target]
	if !ok {
		return nil, nil, 0, 0, 0, fmt.Errorf("unknown framebuffer %d", d.target)
	}
	t, ok := d.textures[fb.color]
	if !ok {
		return nil, nil, 0, 0, 0, fmt.Errorf("framebuffer %d lost its color texture", d.target)
	}
	return t.view, fb.depthView, textureFormat(t.format), fb.width, fb.height, nil
}

// beginPass opens a render pass on the bound target, applying any pending clear.
func (d *Device) beginPass() error {
	if d.pass != nil && d.passTarget == d.target {
		return nil
	}
	d.endPass()

	color, depth, _, _, _, err := d.targetViews()
	if err != nil {
		return err
	}
	if d.encoder == nil {
		encoder, err := d.device.CreateCommandEncoder(nil)
		if err != nil {
			return err
		}
		d.encoder = encoder
	}

	colorLoad, depthLoad := wgpu.LoadOpLoad, wgpu.LoadOpLoad
	if d.pendingClear&device.ClearColorBuffer != 0 {
		colorLoad = wgpu.LoadOpClear
	}
	if d.pendingClear&device.ClearDepthBuffer != 0 {
		depthLoad = wgpu.LoadOpClear
	}
	d.pendingClear = 0

	d.pass = d.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    color,
				LoadOp:  colorLoad,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: float64(d.clearColor[0]),
					G: float64(d.clearColor[1]),
					B: float64(d.clearColor[2]),
					A: float64(d.clearColor[3]),
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	d.passTarget = d.target
	return nil
}

func (d *Device) endPass() {
	if d.pass == nil {
		return
	}
	d.pass.End()
	d.pass = nil
}

// submit ends the open pass and sends the recorded commands to the queue.
func (d *Device) submit() {
	d.endPass()
	if d.encoder == nil {
		return
	}
	commandBuffer, err := d.encoder.Finish(nil)
	d.encoder.Release()
	d.encoder = nil
	for _, p := range d.programs {
		p.encoded = false
	}
	if err != nil {
		d.logger.WithError(err).Error("failed to finish command encoder")
		return
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
}

// flushIfEncoded submits recorded draws before a queue write so they observe the old contents.
func (d *Device) flushIfEncoded() {
	if d.encoder != nil {
		d.submit()
	}
}

func topology(p device.Primitive) wgpu.PrimitiveTopology {
	switch p {
	case device.TriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case device.Lines:
		return wgpu.PrimitiveTopologyLineList
	case device.Points:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func (d *Device) pipeline(p *program, vao common.NativeHandle, va *vertexArray, primitive device.Primitive, format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	key := pipelineKey{vertexArray: vao, primitive: primitive, state: d.state, format: format}
	if rp, ok := p.pipelines[key]; ok {
		return rp, nil
	}

	target := wgpu.ColorTargetState{Format: format, WriteMask: wgpu.ColorWriteMaskAll}
	if d.state.Blend {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	cull := wgpu.CullModeNone
	if d.state.CullFace {
		cull = wgpu.CullModeBack
	}
	compare := wgpu.CompareFunctionAlways
	if d.state.DepthTest {
		compare = wgpu.CompareFunctionLess
	}
	primitiveState := wgpu.PrimitiveState{
		Topology:  topology(primitive),
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  cull,
	}
	if primitive == device.TriangleStrip && va.indices != 0 {
		primitiveState.StripIndexFormat = wgpu.IndexFormatUint32
	}

	// A nil layout lets WebGPU derive the bind group layouts from the shaders.
	rp, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Vertex: wgpu.VertexState{
			Module:     p.vertex,
			EntryPoint: p.reflect.EntryPoint(device.StageVertex),
			Buffers:    va.layouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fragment,
			EntryPoint: p.reflect.EntryPoint(device.StageFragment),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: primitiveState,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: d.state.DepthTest,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	})
	if err != nil {
		return nil, err
	}
	p.pipelines[key] = rp
	return rp, nil
}

// bindGroups builds one bind group per declared group from the program's uniform buffers and
// the textures bound to units.
func (d *Device) bindGroups(p *program, rp *wgpu.RenderPipeline) ([]*wgpu.BindGroup, error) {
	textures := p.reflect.Class(wgsl.BindingTexture)
	samplers := p.reflect.Class(wgsl.BindingSampler)
	unitOf := make(map[[2]uint32]uint32, len(textures)+len(samplers))
	for i, b := range textures {
		unitOf[[2]uint32{b.Group, b.Binding}] = uint32(i)
	}
	for i, b := range samplers {
		unitOf[[2]uint32{b.Group, b.Binding}] = uint32(i)
	}

	var groups []*wgpu.BindGroup
	for _, g := range p.reflect.Groups() {
		var entries []wgpu.BindGroupEntry
		for _, b := range p.reflect.Bindings() {
			if b.Group != g {
				continue
			}
			key := [2]uint32{b.Group, b.Binding}
			switch b.Class {
			case wgsl.BindingUniform:
				entries = append(entries, wgpu.BindGroupEntry{Binding: b.Binding, Buffer: p.uniforms[key].buffer, Size: wgpu.WholeSize})
			case wgsl.BindingTexture, wgsl.BindingSampler:
				unit := unitOf[key]
				t, ok := d.textures[d.units[unit]]
				if !ok {
					return nil, fmt.Errorf("no texture bound to unit %d for %q", unit, b.Name)
				}
				if b.Class == wgsl.BindingTexture {
					entries = append(entries, wgpu.BindGroupEntry{Binding: b.Binding, TextureView: t.view})
				} else {
					entries = append(entries, wgpu.BindGroupEntry{Binding: b.Binding, Sampler: t.sampler})
				}
			default:
				return nil, fmt.Errorf("%s binding %q is not supported", b.Class, b.Name)
			}
		}
		bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout:  rp.GetBindGroupLayout(g),
			Entries: entries,
		})
		if err != nil {
			return nil, err
		}
		d.garbage = append(d.garbage, bg)
		groups = append(groups, bg)
	}
	return groups, nil
}

// prepareDraw opens the pass and binds pipeline, resources and vertex buffers for a draw.
func (d *Device) prepareDraw(vao common.NativeHandle, primitive device.Primitive, indexed bool) error {
	va, ok := d.vertexArrays[vao]
	if !ok {
		return fmt.Errorf("unknown vertex array %d", vao)
	}
	if indexed && va.indices == 0 {
		return fmt.Errorf("vertex array %d has no index buffer", vao)
	}
	p, ok := d.programs[d.current]
	if !ok {
		return fmt.Errorf("no program bound")
	}
	vertices, ok := d.buffers[va.vertices]
	if !ok {
		return fmt.Errorf("vertex array %d lost its vertex buffer", vao)
	}

	if err := d.beginPass(); err != nil {
		return err
	}
	_, _, format, width, height, err := d.targetViews()
	if err != nil {
		return err
	}
	rp, err := d.pipeline(p, vao, va, primitive, format)
	if err != nil {
		return err
	}
	groups, err := d.bindGroups(p, rp)
	if err != nil {
		return err
	}

	d.pass.SetPipeline(rp)
	for i, g := range p.reflect.Groups() {
		d.pass.SetBindGroup(g, groups[i], nil)
	}
	d.setViewport(width, height)
	for slot := range va.layouts {
		d.pass.SetVertexBuffer(uint32(slot), vertices.buffer, 0, wgpu.WholeSize)
	}
	if indexed {
		d.pass.SetIndexBuffer(d.buffers[va.indices].buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
	p.encoded = true
	return nil
}

// setViewport converts the bottom-left origin viewport into WebGPU's top-left space, clamped to
// the target.
func (d *Device) setViewport(width, height uint32) {
	r := d.viewport
	x := max(float32(r.X), 0)
	y := max(float32(int32(height)-(r.Y+r.Height)), 0)
	w := min(float32(r.Width), float32(width)-x)
	h := min(float32(r.Height), float32(height)-y)
	if w <= 0 || h <= 0 {
		x, y, w, h = 0, 0, float32(width), float32(height)
	}
	d.pass.SetViewport(x, y, w, h, 0, 1)
}

func uniformBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case float32:
		return common.SliceToBytes([]float32{v}), nil
	case int32:
		return common.SliceToBytes([]int32{v}), nil
	case mgl32.Vec2:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Vec3:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Vec4:
		return common.SliceToBytes(v[:]), nil
	case mgl32.Mat4:
		return common.SliceToBytes(v[:]), nil
	case []float32:
		return common.SliceToBytes(v), nil
	default:
		return nil, fmt.Errorf("unsupported uniform type %T", value)
	}
}
