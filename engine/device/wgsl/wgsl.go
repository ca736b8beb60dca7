// Package wgsl extracts the resource interface of a WGSL shader: entry points, bind group
// declarations and the byte layout of uniform blocks. It is a reflection pass over source text,
// not a validator.
package wgsl

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/device"
)

// BindingClass is the kind of resource a binding declares.
type BindingClass int

const (
	BindingOther BindingClass = iota
	BindingUniform
	BindingStorage
	BindingTexture
	BindingSampler
)

func (c BindingClass) String() string {
	switch c {
	case BindingUniform:
		return "uniform"
	case BindingStorage:
		return "storage"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	default:
		return "other"
	}
}

// Field is one member of a uniform block with its byte placement.
type Field struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// Binding is a single @group(N) @binding(M) declaration.
type Binding struct {
	Group   uint32
	Binding uint32
	Name    string
	Type    string
	Class   BindingClass

	// Size is the byte size of a buffer binding, zero for handle types.
	Size   uint64
	Fields []Field
}

// Module is the reflected interface of one or more WGSL sources.
type Module struct {
	entries  map[device.ShaderStage]string
	bindings []Binding
}

var (
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	builtinRegex  = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex    = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)
	vertexRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindingRegex captures group, binding, address space, name and type from declarations like
	// @group(0) @binding(0) var<uniform> camera: Camera; or @group(1) @binding(0) var t: texture_2d<f32>;
	bindingRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

type fieldDecl struct {
	name     string
	typeName string
	builtin  bool
	offset   uint64
	size     uint64
}

type structDecl struct {
	name   string
	fields []fieldDecl
}

// Reflect parses source and returns its resource interface. Declarations the parser does not
// understand are skipped rather than reported.
//
// Parameters:
//   - source: the WGSL source text
//
// Returns:
//   - *Module: the reflected module
func Reflect(source string) *Module {
	cleaned := stripComments(source)
	m := &Module{entries: make(map[device.ShaderStage]string)}

	if match := vertexRegex.FindStringSubmatch(cleaned); match != nil {
		m.entries[device.StageVertex] = match[1]
	}
	if match := fragmentRegex.FindStringSubmatch(cleaned); match != nil {
		m.entries[device.StageFragment] = match[1]
	}

	structs := parseStructs(cleaned)
	layouts := layoutStructs(structs)
	byName := make(map[string]*structDecl, len(structs))
	for i := range structs {
		byName[structs[i].name] = &structs[i]
	}

	for _, match := range bindingRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.ParseUint(match[1], 10, 32)
		binding, _ := strconv.ParseUint(match[2], 10, 32)
		b := Binding{
			Group:   uint32(group),
			Binding: uint32(binding),
			Name:    match[4],
			Type:    strings.TrimSpace(match[5]),
			Class:   classify(strings.TrimSpace(match[3]), strings.TrimSpace(match[5])),
		}
		if b.Class == BindingUniform || b.Class == BindingStorage {
			if l, ok := resolveLayout(b.Type, layouts); ok {
				b.Size = l.size
			}
			if s, ok := byName[b.Type]; ok {
				for _, f := range s.fields {
					if f.builtin || f.size == 0 {
						continue
					}
					b.Fields = append(b.Fields, Field{Name: f.name, Type: f.typeName, Offset: f.offset, Size: f.size})
				}
			}
		}
		m.bindings = append(m.bindings, b)
	}
	m.sortBindings()
	return m
}

// Merge combines the interfaces of several stages into one. The first declaration of a
// (group, binding) pair wins.
//
// Parameters:
//   - modules: the modules to combine
//
// Returns:
//   - *Module: the combined module
func Merge(modules ...*Module) *Module {
	out := &Module{entries: make(map[device.ShaderStage]string)}
	seen := make(map[[2]uint32]bool)
	for _, m := range modules {
		if m == nil {
			continue
		}
		for stage, entry := range m.entries {
			if _, ok := out.entries[stage]; !ok {
				out.entries[stage] = entry
			}
		}
		for _, b := range m.bindings {
			key := [2]uint32{b.Group, b.Binding}
			if seen[key] {
				continue
			}
			seen[key] = true
			out.bindings = append(out.bindings, b)
		}
	}
	out.sortBindings()
	return out
}

func (m *Module) sortBindings() {
	sort.SliceStable(m.bindings, func(i, j int) bool {
		if m.bindings[i].Group != m.bindings[j].Group {
			return m.bindings[i].Group < m.bindings[j].Group
		}
		return m.bindings[i].Binding < m.bindings[j].Binding
	})
}

// EntryPoint returns the function name of the given stage, or "" if the source declares none.
func (m *Module) EntryPoint(stage device.ShaderStage) string {
	return m.entries[stage]
}

// Bindings returns every declaration ordered by group then binding.
func (m *Module) Bindings() []Binding {
	return m.bindings
}

// Groups returns the distinct group indices in ascending order.
func (m *Module) Groups() []uint32 {
	var groups []uint32
	for _, b := range m.bindings {
		if len(groups) == 0 || groups[len(groups)-1] != b.Group {
			groups = append(groups, b.Group)
		}
	}
	return groups
}

// Class returns the bindings of one class in group, binding order. The position of a texture in
// this list is the texture unit it is fed from.
func (m *Module) Class(class BindingClass) []Binding {
	var out []Binding
	for _, b := range m.bindings {
		if b.Class == class {
			out = append(out, b)
		}
	}
	return out
}

// Uniform looks a name up among the uniform blocks. A block's variable name matches the whole
// block; otherwise the first block with a member of that name matches that member.
//
// Parameters:
//   - name: the uniform variable or member name
//
// Returns:
//   - Binding: the block holding the uniform
//   - Field: the placement of the uniform inside the block
//   - bool: false if no uniform of that name exists
func (m *Module) Uniform(name string) (Binding, Field, bool) {
	for _, b := range m.bindings {
		if b.Class == BindingUniform && b.Name == name {
			return b, Field{Name: name, Type: b.Type, Size: b.Size}, true
		}
	}
	for _, b := range m.bindings {
		if b.Class != BindingUniform {
			continue
		}
		for _, f := range b.Fields {
			if f.Name == name {
				return b, f, true
			}
		}
	}
	return Binding{}, Field{}, false
}

func classify(addressSpace, typeName string) BindingClass {
	switch {
	case addressSpace == "uniform":
		return BindingUniform
	case strings.HasPrefix(addressSpace, "storage"):
		return BindingStorage
	case typeName == "sampler" || typeName == "sampler_comparison":
		return BindingSampler
	case strings.HasPrefix(typeName, "texture_"):
		return BindingTexture
	default:
		return BindingOther
	}
}

func parseStructs(source string) []structDecl {
	matches := structRegex.FindAllStringSubmatch(source, -1)
	structs := make([]structDecl, 0, len(matches))
	for _, match := range matches {
		s := structDecl{name: match[1]}
		for _, part := range splitTopLevel(match[2]) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			fm := fieldRegex.FindStringSubmatch(part)
			if fm == nil {
				continue
			}
			s.fields = append(s.fields, fieldDecl{
				name:     fm[1],
				typeName: strings.TrimSpace(fm[2]),
				builtin:  builtinRegex.MatchString(part),
			})
		}
		structs = append(structs, s)
	}
	return structs
}
