package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"
)

func TestCoalesce(t *testing.T) {
	c := qt.New(t)
	c.Assert(Coalesce("", "b", "c"), qt.Equals, "b")
	c.Assert(Coalesce(0, 0), qt.Equals, 0)
}

func TestSliceToBytes(t *testing.T) {
	c := qt.New(t)
	c.Assert(SliceToBytes([]float32{}), qt.IsNil)
	c.Assert(SliceToBytes([]float32{1, 2, 3}), qt.HasLen, 12)
	c.Assert(SliceToBytes([]uint16{1}), qt.DeepEquals, []byte{1, 0})
}

func TestLogicalHandleValid(t *testing.T) {
	c := qt.New(t)
	c.Assert(NoHandle.Valid(), qt.IsFalse)
	c.Assert(LogicalHandle(1).Valid(), qt.IsTrue)
}

func TestCameraViewProjection(t *testing.T) {
	c := qt.New(t)
	cam := DefaultCamera()

	// The center of the view lands in the middle of clip space.
	p := cam.ViewProjection(16.0 / 9.0).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	c.Assert(float64(p.X()/p.W()), qt.Equals, float64(0))
	c.Assert(float64(p.Y()/p.W()), qt.Equals, float64(0))

	// A zero aspect does not produce NaNs.
	m := cam.Projection(0)
	for _, v := range m {
		c.Assert(v == v, qt.IsTrue)
	}
}

func TestImportedTextureDecode(t *testing.T) {
	c := qt.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.Set(1, 2, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, img), qt.IsNil)

	tex := &ImportedTexture{Name: "red", Data: buf.Bytes()}
	staged, err := tex.Decode()
	c.Assert(err, qt.IsNil)
	c.Assert(staged.Name, qt.Equals, "red")
	c.Assert(staged.Width, qt.Equals, uint32(2))
	c.Assert(staged.Height, qt.Equals, uint32(3))
	c.Assert(staged.Pixels, qt.HasLen, 2*3*4)
	c.Assert(staged.Pixels[(2*2+1)*4:(2*2+1)*4+4], qt.DeepEquals, []byte{255, 0, 0, 255})

	_, err = (&ImportedTexture{}).Decode()
	c.Assert(err, qt.ErrorMatches, "texture has neither data nor path")

	var nilTex *ImportedTexture
	_, err = nilTex.Decode()
	c.Assert(err, qt.Not(qt.IsNil))
}
