package gldevice

import "github.com/sirupsen/logrus"

// DeviceBuilderOption is a functional option applied to a GL Device during construction.
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
