package headless

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
)

// Calls returns a copy of every recorded call in order.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Ops returns the recorded operation names in order, optionally filtered to the given names.
func (d *Device) Ops(only ...string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keep := make(map[string]bool, len(only))
	for _, op := range only {
		keep[op] = true
	}
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		if len(keep) == 0 || keep[c.Op] {
			out = append(out, c.Op)
		}
	}
	return out
}

// Presents returns how many frames were presented.
func (d *Device) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// Draws returns how many draw calls succeeded.
func (d *Device) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// BoundTexture returns the texture bound to a sampler unit.
func (d *Device) BoundTexture(unit uint32) common.NativeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound[unit]
}

// CurrentProgram returns the program selected by the last UseProgram.
func (d *Device) CurrentProgram() common.NativeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.program
}

// CurrentFramebuffer returns the bound framebuffer, 0 for the default one.
func (d *Device) CurrentFramebuffer() common.NativeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framebuffer
}

// Viewport returns the last viewport set.
func (d *Device) Viewport() device.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// State returns the last pipeline state set.
func (d *Device) State() device.PipelineState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Uniform returns the value last assigned to a program uniform.
func (d *Device) Uniform(prog common.NativeHandle, name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.programs[prog]
	if !ok {
		return nil, false
	}
	v, ok := p.uniforms[name]
	return v, ok
}

// TexturePixels returns a copy of a texture's pixels.
func (d *Device) TexturePixels(tex common.NativeHandle) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), t.pixels...), true
}

// BufferData returns a copy of a buffer's contents.
func (d *Device) BufferData(buf common.NativeHandle) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Live returns the number of live resources: textures, buffers, vertex arrays, shaders, programs
// and framebuffers combined.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures) + len(d.buffers) + len(d.vertexArrays) +
		len(d.shaders) + len(d.programs) + len(d.framebuffers)
}

// Resize changes the default framebuffer size, as a window resize would.
func (d *Device) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	d.backbuffer = make([]byte, width*height*4)
}
