package arena

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCopyIsIndependent(t *testing.T) {
	c := qt.New(t)
	a := New(16)

	src := []byte{1, 2, 3, 4}
	dst := a.Copy(src)
	src[0] = 9
	c.Assert(dst, qt.DeepEquals, []byte{1, 2, 3, 4})
	c.Assert(cap(dst), qt.Equals, 4)
	c.Assert(a.Copy(nil), qt.IsNil)
}

func TestEarlierSlicesNeverMove(t *testing.T) {
	c := qt.New(t)
	a := New(8)

	first := a.Copy([]byte{1, 2, 3, 4, 5, 6})
	second := a.Copy([]byte{7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	third := a.Copy([]byte{17})

	c.Assert(first, qt.DeepEquals, []byte{1, 2, 3, 4, 5, 6})
	c.Assert(second, qt.DeepEquals, []byte{7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	c.Assert(third, qt.DeepEquals, []byte{17})
	c.Assert(a.Stats().Chunks > 1, qt.IsTrue)
}

func TestResetSizesToPeak(t *testing.T) {
	c := qt.New(t)
	a := New(8)

	for i := 0; i < 10; i++ {
		a.Alloc(6)
	}
	c.Assert(a.Stats().Used, qt.Equals, 60)

	a.Reset()
	s := a.Stats()
	c.Assert(s.Used, qt.Equals, 0)
	c.Assert(s.Peak, qt.Equals, 60)
	c.Assert(s.Chunks, qt.Equals, 1)
	c.Assert(s.Bytes >= 60, qt.IsTrue)
	c.Assert(s.Resets, qt.Equals, uint64(1))

	// The next frame fits in a single chunk.
	for i := 0; i < 10; i++ {
		a.Alloc(6)
	}
	c.Assert(a.Stats().Chunks, qt.Equals, 1)
}

func TestCopyFloat32(t *testing.T) {
	c := qt.New(t)
	a := New(0)

	a.Alloc(3)
	src := []float32{1.5, -2, 3.25}
	dst := a.CopyFloat32(src)
	src[1] = 0
	c.Assert(dst, qt.DeepEquals, []float32{1.5, -2, 3.25})
	c.Assert(a.CopyFloat32(nil), qt.IsNil)
}
