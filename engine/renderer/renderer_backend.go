package renderer

import (
	"fmt"
	"strings"
)

// BackendType identifies the GPU device implementation a Context drives.
type BackendType int

const (
	// BackendTypeGL selects the OpenGL 3.3 core device.
	BackendTypeGL BackendType = iota

	// BackendTypeWGPU selects the WebGPU device.
	BackendTypeWGPU

	// BackendTypeHeadless selects the in-memory recording device. No window is opened.
	BackendTypeHeadless
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeGL:
		return "gl"
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackendType parses a backend name as printed by BackendType.String, case insensitive.
//
// Parameters:
//   - s: backend name ("gl", "wgpu" or "headless")
//
// Returns:
//   - BackendType: the parsed backend
//   - error: error if the name is unknown
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gl", "opengl":
		return BackendTypeGL, nil
	case "wgpu", "webgpu":
		return BackendTypeWGPU, nil
	case "headless", "none":
		return BackendTypeHeadless, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)
