// Package arena provides the per-frame bump allocator the producer copies task payloads into.
package arena

import "unsafe"

const defaultChunkSize = 64 << 10

// Arena hands out byte slices carved from large chunks. Slices stay valid until Reset; a full chunk
// is never grown in place, so earlier slices never move.
//
// An Arena belongs to the producer goroutine. Reset must only be called once every task that
// references arena memory has been dispatched, which is what the EndFrame rendezvous guarantees.
type Arena struct {
	chunks [][]byte
	cur    int
	off    int

	minChunk int
	used     int
	peak     int
	resets   uint64
}

// New creates an arena whose first chunk holds at least chunkSize bytes. A non-positive
// chunkSize selects 64 KiB.
//
// Parameters:
//   - chunkSize: minimum size of every chunk in bytes
//
// Returns:
//   - *Arena: the newly created arena
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Arena{
		chunks:   [][]byte{make([]byte, chunkSize)},
		minChunk: chunkSize,
	}
}

// Alloc returns n bytes of zeroed-or-stale arena memory. Callers overwrite the full slice.
//
// Parameters:
//   - n: number of bytes
//
// Returns:
//   - []byte: a slice of exactly n bytes with capacity n, nil when n is zero
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	chunk := a.chunks[a.cur]
	if a.off+n > len(chunk) {
		chunk = a.nextChunk(n)
	}
	b := chunk[a.off : a.off+n : a.off+n]
	a.off += n
	a.used += n
	return b
}

func (a *Arena) nextChunk(n int) []byte {
	// Reuse a chunk left over from an earlier frame when it fits.
	for a.cur+1 < len(a.chunks) {
		a.cur++
		a.off = 0
		if len(a.chunks[a.cur]) >= n {
			return a.chunks[a.cur]
		}
	}
	size := a.minChunk
	for size < n {
		size *= 2
	}
	a.chunks = append(a.chunks, make([]byte, size))
	a.cur = len(a.chunks) - 1
	a.off = 0
	return a.chunks[a.cur]
}

// Copy returns an arena-backed copy of b.
func (a *Arena) Copy(b []byte) []byte {
	dst := a.Alloc(len(b))
	copy(dst, b)
	return dst
}

// CopyFloat32 returns an arena-backed copy of v.
func (a *Arena) CopyFloat32(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	// Keep float slices 4-byte aligned.
	if pad := a.off % 4; pad != 0 {
		a.Alloc(4 - pad)
	}
	raw := a.Alloc(len(v) * 4)
	dst := unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), len(v))
	copy(dst, v)
	return dst
}

// Reset makes all arena memory available again and invalidates every slice handed out since the
// previous Reset. When the last frame spilled into several chunks they are merged into one chunk
// sized to the frame's peak.
func (a *Arena) Reset() {
	if a.used > a.peak {
		a.peak = a.used
	}
	if len(a.chunks) > 1 && a.peak > len(a.chunks[0]) {
		a.chunks = [][]byte{make([]byte, a.peak)}
	}
	a.cur = 0
	a.off = 0
	a.used = 0
	a.resets++
}

// Stats describes arena usage.
type Stats struct {
	Used   int    // bytes handed out since the last Reset
	Peak   int    // largest Used observed at a Reset
	Chunks int    // chunks currently held
	Bytes  int    // total bytes held
	Resets uint64 // number of Reset calls
}

// Stats returns current usage figures.
func (a *Arena) Stats() Stats {
	s := Stats{Used: a.used, Peak: a.peak, Chunks: len(a.chunks), Resets: a.resets}
	for _, c := range a.chunks {
		s.Bytes += len(c)
	}
	return s
}
