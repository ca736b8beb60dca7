package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective look-at camera. The render thread turns it into a view-projection matrix
// at the start of every frame using the current framebuffer aspect ratio.
type Camera struct {
	Eye    mgl32.Vec3
	Center mgl32.Vec3
	Up     mgl32.Vec3
	// FovY is the vertical field of view in degrees.
	FovY float32
	Near float32
	Far  float32
}

// DefaultCamera looks at the origin from +Z with a 60 degree field of view.
func DefaultCamera() Camera {
	return Camera{
		Eye:    mgl32.Vec3{0, 0, 3},
		Center: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   60,
		Near:   0.1,
		Far:    100,
	}
}

// View returns the look-at view matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Center, c.Up)
}

// Projection returns the perspective projection for the given aspect ratio (width / height).
// A non-positive aspect is treated as 1.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// ViewProjection returns Projection(aspect) * View().
//
// Parameters:
//   - aspect: framebuffer width divided by height
//
// Returns:
//   - mgl32.Mat4: the combined matrix, column major as GL expects
func (c Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}
