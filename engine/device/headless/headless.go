// Package headless provides a Device that keeps all resources in memory and records every call.
// It backs the renderer's tests and the "headless" backend of the demo binary.
package headless

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
)

// Call is one recorded device operation.
type Call struct {
	Op     string
	Native common.NativeHandle
	Detail string
}

func (c Call) String() string {
	if c.Detail == "" {
		return fmt.Sprintf("%s(%d)", c.Op, c.Native)
	}
	return fmt.Sprintf("%s(%d, %s)", c.Op, c.Native, c.Detail)
}

type texture struct {
	desc   device.TextureDesc
	pixels []byte
}

type vertexArray struct {
	desc device.VertexArrayDesc
}

type shader struct {
	stage  device.ShaderStage
	source string
}

type program struct {
	uniforms map[string]any
}

type framebuffer struct {
	color         common.NativeHandle
	width, height uint32
}

// Device is an in-memory device.Device. All methods are safe to call from any goroutine so tests
// can inspect it while the render loop runs.
type Device struct {
	mu     sync.Mutex
	logger logrus.FieldLogger

	next  common.NativeHandle
	calls []Call

	textures     map[common.NativeHandle]*texture
	buffers      map[common.NativeHandle][]byte
	vertexArrays map[common.NativeHandle]*vertexArray
	shaders      map[common.NativeHandle]*shader
	programs     map[common.NativeHandle]*program
	framebuffers map[common.NativeHandle]*framebuffer

	bound       map[uint32]common.NativeHandle
	program     common.NativeHandle
	framebuffer common.NativeHandle
	viewport    device.Rect
	clearColor  common.Color
	state       device.PipelineState

	width, height int
	backbuffer    []byte
	presents      int
	draws         int
	released      bool
}

var _ device.Device = &Device{}

// New creates a headless device with a 800x600 default framebuffer.
//
// Parameters:
//   - options: functional options applied to the device
//
// Returns:
//   - *Device: the newly created device
func New(options ...DeviceBuilderOption) *Device {
	d := &Device{
		logger:       logrus.StandardLogger(),
		textures:     make(map[common.NativeHandle]*texture),
		buffers:      make(map[common.NativeHandle][]byte),
		vertexArrays: make(map[common.NativeHandle]*vertexArray),
		shaders:      make(map[common.NativeHandle]*shader),
		programs:     make(map[common.NativeHandle]*program),
		framebuffers: make(map[common.NativeHandle]*framebuffer),
		bound:        make(map[uint32]common.NativeHandle),
		width:        800,
		height:       600,
	}
	for _, opt := range options {
		opt(d)
	}
	d.backbuffer = make([]byte, d.width*d.height*4)
	return d
}

func (d *Device) record(op string, native common.NativeHandle, detail string) {
	d.calls = append(d.calls, Call{Op: op, Native: native, Detail: detail})
}

func (d *Device) mint() common.NativeHandle {
	// Native ids start well away from logical ids so tests cannot confuse the two.
	if d.next == 0 {
		d.next = 1000
	}
	d.next++
	return d.next
}

func (d *Device) Name() string { return "headless" }

func (d *Device) CreateTexture(desc device.TextureDesc) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	size := int(desc.Width*desc.Height) * desc.Format.BytesPerPixel()
	if desc.Pixels != nil && len(desc.Pixels) != size {
		return 0, fmt.Errorf("texture data is %d bytes, want %d", len(desc.Pixels), size)
	}
	pixels := make([]byte, size)
	copy(pixels, desc.Pixels)
	desc.Pixels = nil

	h := d.mint()
	d.textures[h] = &texture{desc: desc, pixels: pixels}
	d.record("CreateTexture", h, fmt.Sprintf("%dx%d", desc.Width, desc.Height))
	return h, nil
}

func (d *Device) UpdateTexture(tex common.NativeHandle, region device.Rect, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	bpp := t.desc.Format.BytesPerPixel()
	if region.Width < 0 || region.Height < 0 || region.X < 0 || region.Y < 0 ||
		uint32(region.X+region.Width) > t.desc.Width || uint32(region.Y+region.Height) > t.desc.Height {
		return fmt.Errorf("region %+v outside texture %dx%d", region, t.desc.Width, t.desc.Height)
	}
	if len(pixels) != int(region.Width*region.Height)*bpp {
		return fmt.Errorf("texture data is %d bytes, want %d", len(pixels), int(region.Width*region.Height)*bpp)
	}
	rowBytes := int(region.Width) * bpp
	for row := 0; row < int(region.Height); row++ {
		dst := ((int(region.Y)+row)*int(t.desc.Width) + int(region.X)) * bpp
		copy(t.pixels[dst:dst+rowBytes], pixels[row*rowBytes:(row+1)*rowBytes])
	}
	d.record("UpdateTexture", tex, fmt.Sprintf("%d bytes", len(pixels)))
	return nil
}

func (d *Device) DeleteTexture(tex common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, tex)
	d.record("DeleteTexture", tex, "")
}

func (d *Device) BindTexture(unit uint32, tex common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bound[unit] = tex
	d.record("BindTexture", tex, fmt.Sprintf("unit %d", unit))
}

func (d *Device) CreateBuffer(desc device.BufferDesc) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := desc.ByteSize()
	if size <= 0 {
		return 0, fmt.Errorf("buffer size must be positive")
	}
	data := make([]byte, size)
	copy(data, desc.Data)

	h := d.mint()
	d.buffers[h] = data
	d.record("CreateBuffer", h, fmt.Sprintf("%s %d bytes", desc.Target, size))
	return h, nil
}

func (d *Device) UpdateBuffer(buf common.NativeHandle, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("unknown buffer %d", buf)
	}
	if offset < 0 || offset+len(data) > len(b) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, len(b))
	}
	copy(b[offset:], data)
	d.record("UpdateBuffer", buf, fmt.Sprintf("%d bytes at %d", len(data), offset))
	return nil
}

func (d *Device) DeleteBuffer(buf common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buf)
	d.record("DeleteBuffer", buf, "")
}

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
	desc.Attributes = append([]device.VertexAttribute(nil), desc.Attributes...)

	h := d.mint()
	d.vertexArrays[h] = &vertexArray{desc: desc}
	d.record("CreateVertexArray", h, fmt.Sprintf("vbo %d ibo %d", desc.Vertices, desc.Indices))
	return h, nil
}

func (d *Device) DeleteVertexArray(vao common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.vertexArrays, vao)
	d.record("DeleteVertexArray", vao, "")
}

// CompileShader accepts GLSL or WGSL source that declares an entry point and has balanced braces.
func (d *Device) CompileShader(stage device.ShaderStage, source string) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if msg := validateSource(source); msg != "" {
		d.record("CompileShader", 0, "failed: "+msg)
		return 0, &device.ShaderCompileError{Stage: stage, Log: msg}
	}
	h := d.mint()
	d.shaders[h] = &shader{stage: stage, source: source}
	d.record("CompileShader", h, stage.String())
	return h, nil
}

func validateSource(src string) string {
	if strings.TrimSpace(src) == "" {
		return "empty source"
	}
	depth := 0
	for _, r := range src {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return "unexpected '}'"
			}
		}
	}
	if depth != 0 {
		return "unbalanced braces"
	}
	if !strings.Contains(src, "main") && !strings.Contains(src, "@vertex") && !strings.Contains(src, "@fragment") {
		return "no entry point"
	}
	return ""
}

func (d *Device) DeleteShader(sh common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shaders, sh)
	d.record("DeleteShader", sh, "")
}

// LinkProgram requires exactly one vertex and one fragment shader among the live shaders given.
func (d *Device) LinkProgram(shaders []common.NativeHandle) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var vs, fs int
	for _, h := range shaders {
		s, ok := d.shaders[h]
		if !ok {
			return 0, &device.ShaderLinkError{Log: fmt.Sprintf("shader %d is not compiled", h)}
		}
		if s.stage == device.StageVertex {
			vs++
		} else {
			fs++
		}
	}
	if vs != 1 || fs != 1 {
		return 0, &device.ShaderLinkError{Log: fmt.Sprintf("need one vertex and one fragment shader, got %d and %d", vs, fs)}
	}
	h := d.mint()
	d.programs[h] = &program{uniforms: make(map[string]any)}
	d.record("LinkProgram", h, "")
	return h, nil
}

func (d *Device) DeleteProgram(prog common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.programs, prog)
	if d.program == prog {
		d.program = 0
	}
	d.record("DeleteProgram", prog, "")
}

func (d *Device) UseProgram(prog common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program = prog
	d.record("UseProgram", prog, "")
}

func (d *Device) SetUniform(prog common.NativeHandle, name string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.programs[prog]
	if !ok {
		return fmt.Errorf("unknown program %d", prog)
	}
	switch v := value.(type) {
	case float32, int32, mgl32.Vec2, mgl32.Vec3, mgl32.Vec4, mgl32.Mat4:
		p.uniforms[name] = v
	case []float32:
		p.uniforms[name] = append([]float32(nil), v...)
	default:
		return fmt.Errorf("unsupported uniform type %T", value)
	}
	d.record("SetUniform", prog, name)
	return nil
}

func (d *Device) CreateFramebuffer(color common.NativeHandle, width, height uint32) (common.NativeHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[color]
	if !ok {
		return 0, fmt.Errorf("unknown color texture %d", color)
	}
	if t.desc.Width != width || t.desc.Height != height {
		return 0, fmt.Errorf("framebuffer %dx%d does not match texture %dx%d", width, height, t.desc.Width, t.desc.Height)
	}
	h := d.mint()
	d.framebuffers[h] = &framebuffer{color: color, width: width, height: height}
	d.record("CreateFramebuffer", h, fmt.Sprintf("color %d", color))
	return h, nil
}

func (d *Device) BindFramebuffer(fb common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.framebuffer = fb
	d.record("BindFramebuffer", fb, "")
}

func (d *Device) DeleteFramebuffer(fb common.NativeHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
	if d.framebuffer == fb {
		d.framebuffer = 0
	}
	d.record("DeleteFramebuffer", fb, "")
}

func (d *Device) SetViewport(r device.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = r
	d.record("SetViewport", 0, fmt.Sprintf("%dx%d", r.Width, r.Height))
}

func (d *Device) SetClearColor(color common.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearColor = color
	d.record("SetClearColor", 0, fmt.Sprint(color))
}

// Clear fills the bound target's pixels with the clear color when the color bit is set.
func (d *Device) Clear(mask device.ClearMask) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mask&device.ClearColorBuffer != 0 {
		px := [4]byte{
			toByte(d.clearColor[0]), toByte(d.clearColor[1]),
			toByte(d.clearColor[2]), toByte(d.clearColor[3]),
		}
		target := d.backbuffer
		if fb, ok := d.framebuffers[d.framebuffer]; ok {
			target = d.textures[fb.color].pixels
		}
		for i := 0; i+4 <= len(target); i += 4 {
			copy(target[i:i+4], px[:])
		}
	}
	d.record("Clear", 0, fmt.Sprintf("mask %d", mask))
}

func toByte(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255 + 0.5)
	}
}

func (d *Device) SetPipelineState(state device.PipelineState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
	d.record("SetPipelineState", 0, fmt.Sprintf("%+v", state))
}

func (d *Device) Draw(vao common.NativeHandle, call device.DrawCall) error {
	return d.draw("Draw", vao, call, false)
}

func (d *Device) DrawIndexed(vao common.NativeHandle, call device.DrawCall) error {
	return d.draw("DrawIndexed", vao, call, true)
}

func (d *Device) draw(op string, vao common.NativeHandle, call device.DrawCall, indexed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	va, ok := d.vertexArrays[vao]
	if !ok {
		return fmt.Errorf("unknown vertex array %d", vao)
	}
	if _, ok := d.programs[d.program]; !ok {
		return fmt.Errorf("no program bound")
	}
	if indexed && va.desc.Indices == 0 {
		return fmt.Errorf("vertex array %d has no index buffer", vao)
	}
	d.draws++
	d.record(op, vao, fmt.Sprintf("count %d instances %d", call.Count, call.InstanceCount()))
	return nil
}

// ReadPixels returns RGBA pixels of the bound framebuffer, rows bottom to top.
func (d *Device) ReadPixels(r device.Rect) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, w, h := d.backbuffer, d.width, d.height
	if fb, ok := d.framebuffers[d.framebuffer]; ok {
		src, w, h = d.textures[fb.color].pixels, int(fb.width), int(fb.height)
	}
	if r.Width <= 0 || r.Height <= 0 || r.X < 0 || r.Y < 0 || int(r.X+r.Width) > w || int(r.Y+r.Height) > h {
		return nil, fmt.Errorf("read region %+v outside %dx%d target", r, w, h)
	}
	out := make([]byte, 0, int(r.Width*r.Height)*4)
	for row := int(r.Y); row < int(r.Y+r.Height); row++ {
		start := (row*w + int(r.X)) * 4
		out = append(out, src[start:start+int(r.Width)*4]...)
	}
	d.record("ReadPixels", d.framebuffer, fmt.Sprintf("%dx%d", r.Width, r.Height))
	return out, nil
}

func (d *Device) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Finish", 0, "")
}

func (d *Device) FramebufferSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *Device) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return fmt.Errorf("device released")
	}
	d.presents++
	d.record("Present", 0, "")
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.record("Release", 0, "")
	d.logger.WithFields(logrus.Fields{
		"textures": len(d.textures),
		"buffers":  len(d.buffers),
		"programs": len(d.programs),
		"calls":    len(d.calls),
	}).Debug("headless device released")
}
