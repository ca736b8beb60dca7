package assets

import (
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// LoaderBuilderOption is a functional option applied to a Loader during construction.
type LoaderBuilderOption func(*Loader)

// WithWorkers sets the maximum number of decode goroutines.
//
// Parameters:
//   - n: worker count, values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *Loader) {
		if n >= 1 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger decode failures are reported to.
func WithLogger(logger logrus.FieldLogger) LoaderBuilderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFallback replaces the checkerboard used for textures that fail to decode.
func WithFallback(fallback common.TextureStagingData) LoaderBuilderOption {
	return func(l *Loader) {
		l.fallback = fallback
	}
}
