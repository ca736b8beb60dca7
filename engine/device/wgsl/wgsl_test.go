package wgsl_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/wgsl"
)

const quadVertex = `
struct Globals {
    u_view_projection: mat4x4<f32>,
    u_tint: vec3f,
    u_time: f32,
    u_offsets: array<vec2f, 4>,
}

@group(0) @binding(0) var<uniform> globals: Globals;

struct VertexIn {
    @location(0) position: vec3f,
    @location(1) uv: vec2f,
}

struct VertexOut {
    @builtin(position) clip: vec4f,
    @location(0) uv: vec2f,
}

// @fragment fn not_this_one() {}
@vertex
fn vs_main(in: VertexIn) -> VertexOut {
    var out: VertexOut;
    out.clip = globals.u_view_projection * vec4f(in.position, 1.0);
    out.uv = in.uv;
    return out;
}
`

const quadFragment = `
@group(0) @binding(0) var<uniform> globals: Globals;
@group(1) @binding(0) var albedo: texture_2d<f32>;
@group(1) @binding(1) var albedo_sampler: sampler;
@group(1) @binding(2) var detail: texture_2d<f32>;
/* @group(3) @binding(0) var<uniform> hidden: f32; */

@fragment
fn fs_main(@location(0) uv: vec2f) -> @location(0) vec4f {
    return textureSample(albedo, albedo_sampler, uv);
}
`

func TestReflectEntryPoints(t *testing.T) {
	c := qt.New(t)

	vs := wgsl.Reflect(quadVertex)
	c.Assert(vs.EntryPoint(device.StageVertex), qt.Equals, "vs_main")
	c.Assert(vs.EntryPoint(device.StageFragment), qt.Equals, "")

	fs := wgsl.Reflect(quadFragment)
	c.Assert(fs.EntryPoint(device.StageFragment), qt.Equals, "fs_main")
}

func TestReflectUniformLayout(t *testing.T) {
	c := qt.New(t)

	m := wgsl.Reflect(quadVertex)
	blocks := m.Class(wgsl.BindingUniform)
	c.Assert(blocks, qt.HasLen, 1)
	c.Assert(blocks[0].Name, qt.Equals, "globals")
	// mat4 64, vec3 at 64 (12), f32 at 76, array<vec2f,4> at 80 (32), rounded to 16.
	c.Assert(blocks[0].Size, qt.Equals, uint64(112))

	cases := []struct {
		name   string
		offset uint64
		size   uint64
	}{
		{"u_view_projection", 0, 64},
		{"u_tint", 64, 12},
		{"u_time", 76, 4},
		{"u_offsets", 80, 32},
	}
	for _, tc := range cases {
		b, f, ok := m.Uniform(tc.name)
		c.Assert(ok, qt.IsTrue, qt.Commentf(tc.name))
		c.Assert(b.Binding, qt.Equals, uint32(0))
		c.Assert(f.Offset, qt.Equals, tc.offset, qt.Commentf(tc.name))
		c.Assert(f.Size, qt.Equals, tc.size, qt.Commentf(tc.name))
	}

	b, f, ok := m.Uniform("globals")
	c.Assert(ok, qt.IsTrue)
	c.Assert(f.Offset, qt.Equals, uint64(0))
	c.Assert(f.Size, qt.Equals, b.Size)

	_, _, ok = m.Uniform("missing")
	c.Assert(ok, qt.IsFalse)
}

func TestMergeAndClasses(t *testing.T) {
	c := qt.New(t)

	m := wgsl.Merge(wgsl.Reflect(quadVertex), wgsl.Reflect(quadFragment), nil)
	c.Assert(m.EntryPoint(device.StageVertex), qt.Equals, "vs_main")
	c.Assert(m.EntryPoint(device.StageFragment), qt.Equals, "fs_main")
	c.Assert(m.Groups(), qt.DeepEquals, []uint32{0, 1})

	// The vertex stage's declaration carries the struct layout and wins the merge.
	uniforms := m.Class(wgsl.BindingUniform)
	c.Assert(uniforms, qt.HasLen, 1)
	c.Assert(uniforms[0].Size, qt.Equals, uint64(112))

	textures := m.Class(wgsl.BindingTexture)
	c.Assert(textures, qt.HasLen, 2)
	c.Assert(textures[0].Name, qt.Equals, "albedo")
	c.Assert(textures[1].Name, qt.Equals, "detail")

	samplers := m.Class(wgsl.BindingSampler)
	c.Assert(samplers, qt.HasLen, 1)
	c.Assert(samplers[0].Binding, qt.Equals, uint32(1))
	c.Assert(samplers[0].Class.String(), qt.Equals, "sampler")

	for _, b := range m.Bindings() {
		c.Assert(b.Group, qt.Not(qt.Equals), uint32(3))
	}
}
