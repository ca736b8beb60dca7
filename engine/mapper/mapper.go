// Package mapper translates the logical handles the producer hands out into the native handles a
// graphics device creates later on the render thread.
package mapper

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Kind identifies one family of GPU resources. Each kind has its own handle counter and table.
type Kind uint8

const (
	Texture Kind = iota
	Buffer
	VertexArray
	Shader
	Program
	Framebuffer

	kindCount
)

var kindNames = [kindCount]string{
	Texture:     "texture",
	Buffer:      "buffer",
	VertexArray: "vertex_array",
	Shader:      "shader",
	Program:     "program",
	Framebuffer: "framebuffer",
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Kinds returns every resource kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Status describes what the mapper knows about a logical handle.
type Status uint8

const (
	// Pending means the handle was minted but its creation task has not run yet.
	Pending Status = iota
	// Resolved means a native handle is registered.
	Resolved
	// Failed means creation ran and did not produce a native handle.
	Failed
	// Deleted means the resource was created and later deleted.
	Deleted
	// Unknown means the handle was never minted.
	Unknown
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type entry struct {
	native common.NativeHandle
	status Status
	err    error
}

// Mapper holds one handle counter and one logical to native table per resource kind.
//
// GenerateHandle may be called from any goroutine. Map, Fail, Unmap, Resolve and Lookup belong to
// the render thread; the table lock only exists so tests and stats can read it from elsewhere.
//
// Unmap keeps a Deleted entry instead of removing it, so the tables grow by one entry per resource
// ever created. Handles are never reused, so a long-running program pays a few bytes per resource.
type Mapper struct {
	counters [kindCount]atomic.Uint32

	mu     sync.RWMutex
	tables [kindCount]map[common.LogicalHandle]entry
}

// NewMapper creates an empty Mapper whose counters all start at zero, so the first handle of
// every kind is 1.
//
// Returns:
//   - *Mapper: the newly created mapper
func NewMapper() *Mapper {
	m := &Mapper{}
	for k := range m.tables {
		m.tables[k] = make(map[common.LogicalHandle]entry)
	}
	return m
}

// GenerateHandle mints the next logical handle for the given kind.
// Handles are strictly increasing per kind and never reused within the mapper's lifetime.
//
// Parameters:
//   - kind: the resource kind the handle will name
//
// Returns:
//   - common.LogicalHandle: the new handle, never NoHandle
func (m *Mapper) GenerateHandle(kind Kind) common.LogicalHandle {
	return common.LogicalHandle(m.counters[kind].Add(1))
}

// Issued reports whether the handle has been minted for the kind.
func (m *Mapper) Issued(kind Kind, h common.LogicalHandle) bool {
	return h.Valid() && uint32(h) <= m.counters[kind].Load()
}

// Map registers the native handle created for a logical handle, overwriting any previous entry.
//
// Parameters:
//   - kind: the resource kind
//   - h: the logical handle minted by the producer
//   - native: the handle the device returned
func (m *Mapper) Map(kind Kind, h common.LogicalHandle, native common.NativeHandle) {
	m.mu.Lock()
	m.tables[kind][h] = entry{native: native, status: Resolved}
	m.mu.Unlock()
}

// Fail records that creating the resource behind h did not succeed.
//
// Parameters:
//   - kind: the resource kind
//   - h: the logical handle whose creation failed
//   - err: the failure reported by the device
func (m *Mapper) Fail(kind Kind, h common.LogicalHandle, err error) {
	m.mu.Lock()
	m.tables[kind][h] = entry{status: Failed, err: err}
	m.mu.Unlock()
}

// Unmap removes the native handle for h and marks it Deleted.
// It returns the native handle that was registered, or 0 if there was none.
//
// Parameters:
//   - kind: the resource kind
//   - h: the logical handle being deleted
//
// Returns:
//   - common.NativeHandle: the native handle that was mapped, or 0
//   - bool: true if a native handle was mapped
func (m *Mapper) Unmap(kind Kind, h common.LogicalHandle) (common.NativeHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tables[kind][h]
	if !ok {
		return 0, false
	}
	m.tables[kind][h] = entry{status: Deleted}
	return e.native, e.status == Resolved
}

// Resolve returns the native handle registered for h, or 0 when there is none.
// It never fails; NoHandle always resolves to 0, the default object.
//
// Parameters:
//   - kind: the resource kind
//   - h: the logical handle to translate
//
// Returns:
//   - common.NativeHandle: the native handle or 0
func (m *Mapper) Resolve(kind Kind, h common.LogicalHandle) common.NativeHandle {
	native, _ := m.Lookup(kind, h)
	return native
}

// Lookup is Resolve plus the status of the handle, which tells a handle that is not ready yet
// apart from one whose creation failed or that was deleted.
//
// Parameters:
//   - kind: the resource kind
//   - h: the logical handle to translate
//
// Returns:
//   - common.NativeHandle: the native handle or 0
//   - Status: Resolved when the native handle is usable
func (m *Mapper) Lookup(kind Kind, h common.LogicalHandle) (common.NativeHandle, Status) {
	if !h.Valid() {
		return 0, Resolved
	}
	m.mu.RLock()
	e, ok := m.tables[kind][h]
	m.mu.RUnlock()
	if ok {
		return e.native, e.status
	}
	if m.Issued(kind, h) {
		return 0, Pending
	}
	return 0, Unknown
}

// Err returns the creation error recorded by Fail for h, if any.
func (m *Mapper) Err(kind Kind, h common.LogicalHandle) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[kind][h].err
}

// Len returns the number of live (Resolved) mappings of the kind.
func (m *Mapper) Len(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.tables[kind] {
		if e.status == Resolved {
			n++
		}
	}
	return n
}

// Each calls fn for every Resolved mapping of the kind. fn must not call back into the mapper.
func (m *Mapper) Each(kind Kind, fn func(common.LogicalHandle, common.NativeHandle)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for h, e := range m.tables[kind] {
		if e.status == Resolved {
			fn(h, e.native)
		}
	}
}
