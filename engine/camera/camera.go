// Package camera provides an orbit controller that turns key input into the common.Camera the
// render context uploads as the view-projection matrix.
package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Controller orbits a camera around a target using spherical coordinates.
// All methods are safe to call from the window callbacks and the logic goroutine at once.
type Controller interface {
	// OrbitLeft rotates the camera left around the target by one orbit step.
	OrbitLeft()

	// OrbitRight rotates the camera right around the target by one orbit step.
	OrbitRight()

	// OrbitUp tilts the camera upward by one orbit step, clamped to the maximum elevation.
	OrbitUp()

	// OrbitDown tilts the camera downward by one orbit step, clamped to the minimum elevation.
	OrbitDown()

	// Zoom moves the camera toward the target. Negative delta moves it away.
	//
	// Parameters:
	//   - delta: zoom amount, scaled by the zoom speed
	Zoom(delta float32)

	// HandleKey applies the orbit action bound to a key code. Unbound keys are ignored.
	//
	// Parameters:
	//   - keyCode: the key code reported by the window
	//
	// Returns:
	//   - bool: true if the key was bound
	HandleKey(keyCode uint32) bool

	// Position returns the camera's world-space position.
	Position() mgl32.Vec3

	// Radius returns the distance from the target.
	Radius() float32

	// Camera returns the camera for the current orbit position.
	//
	// Returns:
	//   - common.Camera: eye, target and projection settings
	Camera() common.Camera
}

// KeyMap binds key codes to orbit actions.
type KeyMap struct {
	Left, Right, Up, Down, ZoomIn, ZoomOut uint32
}

type orbitController struct {
	mu sync.Mutex

	target mgl32.Vec3

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32

	fovY float32
	near float32
	far  float32

	keys KeyMap
}

var _ Controller = &orbitController{}

// NewController creates an orbit controller looking at the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the new controller
func NewController(options ...ControllerBuilderOption) Controller {
	c := &orbitController{
		radius:       2.5,
		elevation:    float32(math.Pi / 12),
		minRadius:    0.5,
		maxRadius:    50,
		minElevation: -float32(math.Pi/2 - 0.1),
		maxElevation: float32(math.Pi/2 - 0.1),
		orbitSpeed:   0.05,
		zoomSpeed:    0.25,
		fovY:         60,
		near:         0.1,
		far:          100,
	}
	for _, option := range options {
		option(c)
	}
	c.radius = clamp(c.radius, c.minRadius, c.maxRadius)
	c.elevation = clamp(c.elevation, c.minElevation, c.maxElevation)
	return c
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// position is the eye computed from the spherical coordinates. Caller must hold the mutex.
func (c *orbitController) position() mgl32.Vec3 {
	cosElev := float32(math.Cos(float64(c.elevation)))
	sinElev := float32(math.Sin(float64(c.elevation)))
	cosAzim := float32(math.Cos(float64(c.azimuth)))
	sinAzim := float32(math.Sin(float64(c.azimuth)))
	return c.target.Add(mgl32.Vec3{
		c.radius * cosElev * sinAzim,
		c.radius * sinElev,
		c.radius * cosElev * cosAzim,
	})
}

func (c *orbitController) OrbitLeft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth -= c.orbitSpeed
}

func (c *orbitController) OrbitRight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth += c.orbitSpeed
}

func (c *orbitController) OrbitUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elevation = clamp(c.elevation+c.orbitSpeed, c.minElevation, c.maxElevation)
}

func (c *orbitController) OrbitDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elevation = clamp(c.elevation-c.orbitSpeed, c.minElevation, c.maxElevation)
}

func (c *orbitController) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = clamp(c.radius-delta*c.zoomSpeed, c.minRadius, c.maxRadius)
}

func (c *orbitController) HandleKey(keyCode uint32) bool {
	switch keyCode {
	case 0:
		return false
	case c.keys.Left:
		c.OrbitLeft()
	case c.keys.Right:
		c.OrbitRight()
	case c.keys.Up:
		c.OrbitUp()
	case c.keys.Down:
		c.OrbitDown()
	case c.keys.ZoomIn:
		c.Zoom(1)
	case c.keys.ZoomOut:
		c.Zoom(-1)
	default:
		return false
	}
	return true
}

func (c *orbitController) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position()
}

func (c *orbitController) Radius() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.radius
}

func (c *orbitController) Camera() common.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.Camera{
		Eye:    c.position(),
		Center: c.target,
		Up:     mgl32.Vec3{0, 1, 0},
		FovY:   c.fovY,
		Near:   c.near,
		Far:    c.far,
	}
}
