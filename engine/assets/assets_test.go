package assets_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/assets"
)

func encodePNG(c *qt.C, w, h int, fill color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, img), qt.IsNil)
	return buf.Bytes()
}

func TestCheckerboard(t *testing.T) {
	c := qt.New(t)

	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	tex := assets.Checkerboard(4, 2, red, blue)
	c.Assert(tex.Width, qt.Equals, uint32(4))
	c.Assert(tex.Height, qt.Equals, uint32(4))
	c.Assert(tex.Pixels, qt.HasLen, 64)

	at := func(x, y int) []byte {
		i := (y*4 + x) * 4
		return tex.Pixels[i : i+4]
	}
	c.Assert(at(0, 0), qt.DeepEquals, []byte{255, 0, 0, 255})
	c.Assert(at(1, 1), qt.DeepEquals, []byte{255, 0, 0, 255})
	c.Assert(at(2, 0), qt.DeepEquals, []byte{0, 0, 255, 255})
	c.Assert(at(0, 2), qt.DeepEquals, []byte{0, 0, 255, 255})
	c.Assert(at(3, 3), qt.DeepEquals, []byte{255, 0, 0, 255})

	c.Assert(assets.Checkerboard(2, 0, red, blue).Pixels, qt.HasLen, 16)
}

func TestLoadPreservesOrder(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	loader := assets.NewLoader(assets.WithWorkers(3), assets.WithLogger(logger))

	var inputs []common.ImportedTexture
	for i := range 8 {
		inputs = append(inputs, common.ImportedTexture{
			Name: string(rune('a' + i)),
			Data: encodePNG(c, i+1, 2, color.RGBA{uint8(i), 0, 0, 255}),
		})
	}

	out, err := loader.Load(context.Background(), inputs)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.HasLen, len(inputs))
	for i, tex := range out {
		c.Assert(tex.Name, qt.Equals, inputs[i].Name)
		c.Assert(tex.Width, qt.Equals, uint32(i+1))
		c.Assert(tex.Height, qt.Equals, uint32(2))
		c.Assert(tex.Pixels[0], qt.Equals, uint8(i))
	}
}

func TestLoadFallsBack(t *testing.T) {
	c := qt.New(t)

	logger, hook := test.NewNullLogger()
	fallback := assets.Checkerboard(2, 1, color.RGBA{1, 2, 3, 255}, color.RGBA{4, 5, 6, 255})
	loader := assets.NewLoader(assets.WithLogger(logger), assets.WithFallback(fallback))

	out, err := loader.Load(context.Background(), []common.ImportedTexture{
		{Name: "good", Data: encodePNG(c, 1, 1, color.RGBA{9, 9, 9, 255})},
		{Name: "garbage", Data: []byte("not an image")},
		{Path: "/does/not/exist.png"},
	})
	c.Assert(err, qt.ErrorMatches, `(?s).*texture "garbage".*texture "/does/not/exist.png".*`)
	c.Assert(out, qt.HasLen, 3)
	c.Assert(out[0].Name, qt.Equals, "good")
	c.Assert(out[1].Name, qt.Equals, "garbage")
	c.Assert(out[1].Pixels, qt.DeepEquals, fallback.Pixels)
	c.Assert(out[2].Name, qt.Equals, "/does/not/exist.png")

	entry := hook.LastEntry()
	c.Assert(entry, qt.IsNotNil)
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	c.Assert(warned, qt.IsTrue)
}

func TestLoadCancelled(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	loader := assets.NewLoader(assets.WithLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := make([]common.ImportedTexture, 64)
	for i := range inputs {
		inputs[i] = common.ImportedTexture{Data: encodePNG(c, 64, 64, color.RGBA{A: 255})}
	}
	_, err := loader.Load(ctx, inputs)
	// The batch may finish before the select observes the cancellation.
	if err != nil {
		c.Assert(err, qt.Equals, context.Canceled)
	}
}
