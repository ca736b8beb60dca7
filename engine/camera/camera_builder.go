package camera

import "github.com/go-gl/mathgl/mgl32"

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*orbitController)

// WithRadius sets the initial distance from the target.
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - ControllerBuilderOption: functional option to set the radius
func WithRadius(radius float32) ControllerBuilderOption {
	return func(c *orbitController) {
		c.radius = radius
	}
}

// WithRadiusLimits bounds the zoom distance.
//
// Parameters:
//   - minRadius: closest allowed distance
//   - maxRadius: farthest allowed distance
//
// Returns:
//   - ControllerBuilderOption: functional option to set the limits
func WithRadiusLimits(minRadius, maxRadius float32) ControllerBuilderOption {
	return func(c *orbitController) {
		if minRadius > 0 && maxRadius >= minRadius {
			c.minRadius, c.maxRadius = minRadius, maxRadius
		}
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
//
// Parameters:
//   - azimuth: angle in radians, 0 looks down -Z from +Z
//
// Returns:
//   - ControllerBuilderOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) ControllerBuilderOption {
	return func(c *orbitController) {
		c.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
//
// Parameters:
//   - elevation: angle in radians
//
// Returns:
//   - ControllerBuilderOption: functional option to set the elevation
func WithElevation(elevation float32) ControllerBuilderOption {
	return func(c *orbitController) {
		c.elevation = elevation
	}
}

// WithTarget sets the look-at point.
func WithTarget(target mgl32.Vec3) ControllerBuilderOption {
	return func(c *orbitController) {
		c.target = target
	}
}

// WithSpeeds sets the angle per orbit step and the distance per zoom unit.
func WithSpeeds(orbit, zoom float32) ControllerBuilderOption {
	return func(c *orbitController) {
		c.orbitSpeed = orbit
		c.zoomSpeed = zoom
	}
}

// WithProjection sets the perspective of the produced camera.
//
// Parameters:
//   - fovY: vertical field of view in degrees
//   - near: near clipping plane distance
//   - far: far clipping plane distance
//
// Returns:
//   - ControllerBuilderOption: functional option to set the projection
func WithProjection(fovY, near, far float32) ControllerBuilderOption {
	return func(c *orbitController) {
		c.fovY, c.near, c.far = fovY, near, far
	}
}

// WithKeyMap binds keys to orbit actions for HandleKey. A zero code leaves the action unbound.
func WithKeyMap(keys KeyMap) ControllerBuilderOption {
	return func(c *orbitController) {
		c.keys = keys
	}
}
