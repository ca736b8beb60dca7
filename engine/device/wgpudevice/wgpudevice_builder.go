package wgpudevice

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/sirupsen/logrus"
)

// DeviceBuilderOption is a functional option applied to a WebGPU Device during construction.
type DeviceBuilderOption func(*Device)

// WithLogger sets the logger the device reports to.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithLogger(logger logrus.FieldLogger) DeviceBuilderOption {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithVSync selects between waiting for vertical blank (Fifo) and presenting immediately.
//
// Parameters:
//   - enabled: true to cap presentation to the display refresh rate
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *Device) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithFallbackAdapter forces the software adapter.
func WithFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *Device) {
		d.fallback = force
	}
}
