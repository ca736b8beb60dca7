package main

const glslVertex = `#version 330 core
layout(location = 0) in vec3 a_position;
layout(location = 1) in vec2 a_uv;

uniform mat4 u_view_projection;
uniform mat4 u_model;

out vec2 v_uv;

void main() {
	v_uv = a_uv;
	gl_Position = u_view_projection * u_model * vec4(a_position, 1.0);
}
`

const glslFragment = `#version 330 core
in vec2 v_uv;

uniform sampler2D u_texture;
uniform float u_tint;

out vec4 frag_color;

void main() {
	vec4 c = texture(u_texture, v_uv);
	frag_color = vec4(c.rgb * u_tint, c.a);
}
`

const wgslVertex = `struct Globals {
	u_view_projection: mat4x4f,
	u_model: mat4x4f,
	u_tint: f32,
}

@group(0) @binding(0) var<uniform> globals: Globals;

struct VertexOut {
	@builtin(position) position: vec4f,
	@location(0) uv: vec2f,
}

@vertex
fn vs_main(@location(0) position: vec3f, @location(1) uv: vec2f) -> VertexOut {
	var out: VertexOut;
	out.position = globals.u_view_projection * globals.u_model * vec4f(position, 1.0);
	out.uv = uv;
	return out;
}
`

const wgslFragment = `struct Globals {
	u_view_projection: mat4x4f,
	u_model: mat4x4f,
	u_tint: f32,
}

@group(0) @binding(0) var<uniform> globals: Globals;
@group(0) @binding(1) var u_texture: texture_2d<f32>;
@group(0) @binding(2) var u_sampler: sampler;

@fragment
fn fs_main(@location(0) uv: vec2f) -> @location(0) vec4f {
	let c = textureSample(u_texture, u_sampler, uv);
	return vec4f(c.rgb * globals.u_tint, c.a);
}
`
