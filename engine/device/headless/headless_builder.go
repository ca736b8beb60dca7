package headless

import "github.com/sirupsen/logrus"

// DeviceBuilderOption is a functional option applied to a headless Device during construction.
type DeviceBuilderOption func(*Device)

// WithSize sets the size of the default framebuffer.
//
// Parameters:
//   - width: framebuffer width in pixels
//   - height: framebuffer height in pixels
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSize(width, height int) DeviceBuilderOption {
	return func(d *Device) {
		if width > 0 && height > 0 {
			d.width, d.height = width, height
		}
	}
}

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
