package common

// LogicalHandle is an opaque identifier minted on the producer thread before the GPU object it
// names exists. Zero is reserved and means "none" or "the default object" (for example the
// default framebuffer).
type LogicalHandle uint32

// NativeHandle is the identifier a graphics backend hands out for a resource it created.
// Only the render thread ever sees native handles.
type NativeHandle uint64

// NoHandle is the reserved zero logical handle.
const NoHandle LogicalHandle = 0

// Valid reports whether the handle names a real resource rather than the reserved default.
func (h LogicalHandle) Valid() bool {
	return h != NoHandle
}
