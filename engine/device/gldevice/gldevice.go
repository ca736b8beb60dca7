// Package gldevice implements device.Device on OpenGL 3.3 core. The GL context must be current on
// the thread that creates the Device and makes every later call.
package gldevice

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
)

// Surface is the window side of a GL device. *glfw.Window satisfies it.
type Surface interface {
	SwapBuffers()
	GetFramebufferSize() (width, height int)
}

type vertexArray struct {
	indexed bool
}

type texture struct {
	format device.TextureFormat
}

// Device is an OpenGL implementation of device.Device.
type Device struct {
	surface Surface
	logger  logrus.FieldLogger

	textures     map[uint32]texture
	vertexArrays map[uint32]vertexArray
	uniforms     map[uint32]map[string]int32
	framebuffers map[uint32]struct{}
	buffers      map[uint32]struct{}
	programs     map[uint32]struct{}
}

var _ device.Device = &Device{}

// New loads the GL function pointers for the current context and returns a Device presenting to
// surface.
//
// Parameters:
//   - surface: the window whose context is current
//   - options: functional options applied to the device
//
// Returns:
//   - *Device: the GL device
//   - error: error if GL cannot be initialized
func New(surface Surface, options ...DeviceBuilderOption) (*Device, error) {
	d := &Device{
		surface:      surface,
		logger:       logrus.StandardLogger(),
		textures:     make(map[uint32]texture),
		vertexArrays: make(map[uint32]vertexArray),
		uniforms:     make(map[uint32]map[string]int32),
		framebuffers: make(map[uint32]struct{}),
		buffers:      make(map[uint32]struct{}),
		programs:     make(map[uint32]struct{}),
	}
	for _, opt := range options {
		opt(d)
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d.logger.WithFields(logrus.Fields{
		"version":  gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer": gl.GoStr(gl.GetString(gl.RENDERER)),
	}).Info("OpenGL device ready")
	return d, nil
}

func (d *Device) Name() string { return "gl" }

func native(n uint32) common.NativeHandle { return common.NativeHandle(n) }
func name(h common.NativeHandle) uint32   { return uint32(h) }

func textureFormats(f device.TextureFormat) (internal int32, format uint32) {
	switch f {
	case device.FormatRGBA8SRGB:
		return gl.SRGB8_ALPHA8, gl.RGBA
	case device.FormatR8:
		return gl.R8, gl.RED
	default:
		return gl.RGBA8, gl.RGBA
	}
}

func (d *Device) CreateTexture(desc device.TextureDesc) (common.NativeHandle, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	want := int(desc.Width*desc.Height) * desc.Format.BytesPerPixel()
	if desc.Pixels != nil && len(desc.Pixels) != want {
		return 0, fmt.Errorf("texture data is %d bytes, want %d", len(desc.Pixels), want)
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)

	filter := int32(gl.LINEAR)
	if desc.Filter == device.FilterNearest {
		filter = gl.NEAREST
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	internal, format := textureFormats(desc.Format)
	var ptr unsafe.Pointer
	if len(desc.Pixels) > 0 {
		ptr = gl.Ptr(desc.Pixels)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, gl.UNSIGNED_BYTE, ptr)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("CreateTexture"); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	d.textures[tex] = texture{format: desc.Format}
	return native(tex), nil
}

// checkUpload validates a sub-image upload. An empty region is valid and uploads nothing.
func checkUpload(region device.Rect, pixels []byte, format device.TextureFormat) (empty bool, err error) {
	if region.Width < 0 || region.Height < 0 {
		return false, fmt.Errorf("invalid texture region %+v", region)
	}
	if want := int(region.Width*region.Height) * format.BytesPerPixel(); len(pixels) != want {
		return false, fmt.Errorf("texture data is %d bytes, want %d", len(pixels), want)
	}
	return len(pixels) == 0, nil
}

func (d *Device) UpdateTexture(tex common.NativeHandle, region device.Rect, pixels []byte) error {
	t, ok := d.textures[name(tex)]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	if empty, err := checkUpload(region, pixels, t.format); empty || err != nil {
		return err
	}
	_, format := textureFormats(t.format)
	gl.BindTexture(gl.TEXTURE_2D, name(tex))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, region.X, region.Y, region.Width, region.Height, format, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return glError("UpdateTexture")
}

func (d *Device) DeleteTexture(tex common.NativeHandle) {
	if tex == 0 {
		return
	}
	t := name(tex)
	gl.DeleteTextures(1, &t)
	delete(d.textures, t)
}

func (d *Device) BindTexture(unit uint32, tex common.NativeHandle) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, name(tex))
}

func bufferUsage(u device.BufferUsage) uint32 {
	switch u {
	case device.UsageDynamic:
		return gl.DYNAMIC_DRAW
	case device.UsageStream:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

func (d *Device) CreateBuffer(desc device.BufferDesc) (common.NativeHandle, error) {
	size := desc.ByteSize()
	if size <= 0 {
		return 0, fmt.Errorf("buffer size must be positive")
	}
	// Uploads go through COPY_WRITE_BUFFER so creating an index buffer does not disturb the bound
	// vertex array's element binding.
	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, buf)
	var ptr unsafe.Pointer
	if len(desc.Data) > 0 {
		ptr = gl.Ptr(desc.Data)
	}
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, bufferUsage(desc.Usage))
	if ptr != nil {
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(desc.Data), ptr)
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if err := glError("CreateBuffer"); err != nil {
		gl.DeleteBuffers(1, &buf)
		return 0, err
	}
	d.buffers[buf] = struct{}{}
	d.logger.WithFields(logrus.Fields{
		"buffer": buf,
		"target": desc.Target,
		"size":   size,
	}).Debug("buffer created")
	return native(buf), nil
}

func (d *Device) UpdateBuffer(buf common.NativeHandle, offset int, data []byte) error {
	if _, ok := d.buffers[name(buf)]; !ok {
		return fmt.Errorf("unknown buffer %d", buf)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, name(buf))
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return glError("UpdateBuffer")
}

func (d *Device) DeleteBuffer(buf common.NativeHandle) {
	if buf == 0 {
		return
	}
	b := name(buf)
	gl.DeleteBuffers(1, &b)
	delete(d.buffers, b)
}

func (d *Device) CreateVertexArray(desc device.VertexArrayDesc) (common.NativeHandle, error) {
	if _, ok := d.buffers[name(desc.Vertices)]; !ok {
		return 0, fmt.Errorf("unknown vertex buffer %d", desc.Vertices)
	}
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, name(desc.Vertices))
	for _, a := range desc.Attributes {
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointerWithOffset(a.Location, a.Components, gl.FLOAT, false, int32(desc.Stride), uintptr(a.Offset))
		if a.Instanced {
			gl.VertexAttribDivisor(a.Location, 1)
		}
	}
	if desc.Indices != 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, name(desc.Indices))
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if err := glError("CreateVertexArray"); err != nil {
		gl.DeleteVertexArrays(1, &vao)
		return 0, err
	}
	d.vertexArrays[vao] = vertexArray{indexed: desc.Indices != 0}
	return native(vao), nil
}

func (d *Device) DeleteVertexArray(vao common.NativeHandle) {
	if vao == 0 {
		return
	}
	v := name(vao)
	gl.DeleteVertexArrays(1, &v)
	delete(d.vertexArrays, v)
}

func (d *Device) CompileShader(stage device.ShaderStage, source string) (common.NativeHandle, error) {
	shaderType := uint32(gl.VERTEX_SHADER)
	if stage == device.StageFragment {
		shaderType = gl.FRAGMENT_SHADER
	}
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(source + "\x00")
	defer free()
	gl.ShaderSource(sh, 1, csrc, nil)
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, &device.ShaderCompileError{Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return native(sh), nil
}

func (d *Device) DeleteShader(sh common.NativeHandle) {
	if sh != 0 {
		gl.DeleteShader(name(sh))
	}
}

func (d *Device) LinkProgram(shaders []common.NativeHandle) (common.NativeHandle, error) {
	prog := gl.CreateProgram()
	for _, sh := range shaders {
		if sh == 0 {
			gl.DeleteProgram(prog)
			return 0, &device.ShaderLinkError{Log: "missing shader stage"}
		}
		gl.AttachShader(prog, name(sh))
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	for _, sh := range shaders {
		gl.DetachShader(prog, name(sh))
	}
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, &device.ShaderLinkError{Log: strings.TrimRight(log, "\x00")}
	}
	d.programs[prog] = struct{}{}
	d.uniforms[prog] = make(map[string]int32)
	return native(prog), nil
}

func (d *Device) DeleteProgram(prog common.NativeHandle) {
	if prog == 0 {
		return
	}
	gl.DeleteProgram(name(prog))
	delete(d.programs, name(prog))
	delete(d.uniforms, name(prog))
}

func (d *Device) UseProgram(prog common.NativeHandle) {
	gl.UseProgram(name(prog))
}

func (d *Device) uniformLocation(prog uint32, uniform string) (int32, error) {
	cache, ok := d.uniforms[prog]
	if !ok {
		return -1, fmt.Errorf("unknown program %d", prog)
	}
	if loc, ok := cache[uniform]; ok {
		return loc, nil
	}
	loc := gl.GetUniformLocation(prog, gl.Str(uniform+"\x00"))
	cache[uniform] = loc
	return loc, nil
}

// SetUniform binds prog while assigning, then restores the previously bound program.
func (d *Device) SetUniform(prog common.NativeHandle, uniform string, value any) error {
	loc, err := d.uniformLocation(name(prog), uniform)
	if err != nil {
		return err
	}
	if loc < 0 {
		return fmt.Errorf("program %d has no active uniform %q", prog, uniform)
	}

	var current int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &current)
	if uint32(current) != name(prog) {
		gl.UseProgram(name(prog))
		defer gl.UseProgram(uint32(current))
	}

	switch v := value.(type) {
	case float32:
		gl.Uniform1f(loc, v)
	case int32:
		gl.Uniform1i(loc, v)
	case mgl32.Vec2:
		gl.Uniform2f(loc, v[0], v[1])
	case mgl32.Vec3:
		gl.Uniform3f(loc, v[0], v[1], v[2])
	case mgl32.Vec4:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case mgl32.Mat4:
		gl.UniformMatrix4fv(loc, 1, false, &v[0])
	case []float32:
		if len(v) > 0 {
			gl.Uniform1fv(loc, int32(len(v)), &v[0])
		}
	default:
		return fmt.Errorf("unsupported uniform type %T", value)
	}
	return glError("SetUniform")
}

func (d *Device) CreateFramebuffer(color common.NativeHandle, width, height uint32) (common.NativeHandle, error) {
	if _, ok := d.textures[name(color)]; !ok {
		return 0, fmt.Errorf("unknown color texture %d", color)
	}
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, name(color), 0)

	var depth uint32
	gl.GenRenderbuffers(1, &depth)
	gl.BindRenderbuffer(gl.RENDERBUFFER, depth)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH24_STENCIL8, int32(width), int32(height))
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, gl.RENDERBUFFER, depth)
	// The framebuffer keeps the renderbuffer alive.
	gl.DeleteRenderbuffers(1, &depth)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fb)
		return 0, fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}
	d.framebuffers[fb] = struct{}{}
	return native(fb), nil
}

func (d *Device) BindFramebuffer(fb common.NativeHandle) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, name(fb))
}

func (d *Device) DeleteFramebuffer(fb common.NativeHandle) {
	if fb == 0 {
		return
	}
	f := name(fb)
	gl.DeleteFramebuffers(1, &f)
	delete(d.framebuffers, f)
}

func (d *Device) SetViewport(r device.Rect) {
	gl.Viewport(r.X, r.Y, r.Width, r.Height)
}

func (d *Device) SetClearColor(color common.Color) {
	gl.ClearColor(color[0], color[1], color[2], color[3])
}

func (d *Device) Clear(mask device.ClearMask) {
	var bits uint32
	if mask&device.ClearColorBuffer != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&device.ClearDepthBuffer != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	if mask&device.ClearStencilBuffer != 0 {
		bits |= gl.STENCIL_BUFFER_BIT
	}
	if bits != 0 {
		gl.Clear(bits)
	}
}

func toggle(capability uint32, on bool) {
	if on {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

func (d *Device) SetPipelineState(state device.PipelineState) {
	toggle(gl.BLEND, state.Blend)
	if state.Blend {
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	}
	toggle(gl.DEPTH_TEST, state.DepthTest)
	toggle(gl.CULL_FACE, state.CullFace)
}

func primitive(p device.Primitive) uint32 {
	switch p {
	case device.TriangleStrip:
		return gl.TRIANGLE_STRIP
	case device.Lines:
		return gl.LINES
	case device.Points:
		return gl.POINTS
	default:
		return gl.TRIANGLES
	}
}

func (d *Device) Draw(vao common.NativeHandle, call device.DrawCall) error {
	if _, ok := d.vertexArrays[name(vao)]; !ok {
		return fmt.Errorf("unknown vertex array %d", vao)
	}
	gl.BindVertexArray(name(vao))
	if n := call.InstanceCount(); n > 1 {
		gl.DrawArraysInstanced(primitive(call.Primitive), call.First, call.Count, n)
	} else {
		gl.DrawArrays(primitive(call.Primitive), call.First, call.Count)
	}
	gl.BindVertexArray(0)
	return glError("Draw")
}

func (d *Device) DrawIndexed(vao common.NativeHandle, call device.DrawCall) error {
	va, ok := d.vertexArrays[name(vao)]
	if !ok {
		return fmt.Errorf("unknown vertex array %d", vao)
	}
	if !va.indexed {
		return fmt.Errorf("vertex array %d has no index buffer", vao)
	}
	offset := uintptr(call.First) * 4
	gl.BindVertexArray(name(vao))
	if n := call.InstanceCount(); n > 1 {
		gl.DrawElementsInstanced(primitive(call.Primitive), call.Count, gl.UNSIGNED_INT, gl.PtrOffset(int(offset)), n)
	} else {
		gl.DrawElementsWithOffset(primitive(call.Primitive), call.Count, gl.UNSIGNED_INT, offset)
	}
	gl.BindVertexArray(0)
	return glError("DrawIndexed")
}

func (d *Device) ReadPixels(r device.Rect) ([]byte, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("invalid read region %+v", r)
	}
	out := make([]byte, int(r.Width*r.Height)*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(r.X, r.Y, r.Width, r.Height, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(out))
	return out, glError("ReadPixels")
}

func (d *Device) Finish() {
	gl.Finish()
}

func (d *Device) FramebufferSize() (int, int) {
	return d.surface.GetFramebufferSize()
}

func (d *Device) Present() error {
	d.surface.SwapBuffers()
	return nil
}

// Release deletes every GL object the device still tracks.
func (d *Device) Release() {
	for fb := range d.framebuffers {
		gl.DeleteFramebuffers(1, &fb)
	}
	for vao := range d.vertexArrays {
		gl.DeleteVertexArrays(1, &vao)
	}
	for buf := range d.buffers {
		gl.DeleteBuffers(1, &buf)
	}
	for tex := range d.textures {
		gl.DeleteTextures(1, &tex)
	}
	for prog := range d.programs {
		gl.DeleteProgram(prog)
	}
	d.logger.WithFields(logrus.Fields{
		"textures":      len(d.textures),
		"buffers":       len(d.buffers),
		"vertex_arrays": len(d.vertexArrays),
		"programs":      len(d.programs),
		"framebuffers":  len(d.framebuffers),
	}).Info("OpenGL device released")
	clear(d.framebuffers)
	clear(d.vertexArrays)
	clear(d.buffers)
	clear(d.textures)
	clear(d.programs)
	clear(d.uniforms)
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%x", op, code)
	}
	return nil
}
