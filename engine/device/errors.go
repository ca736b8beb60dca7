package device

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by backends for operations they do not implement.
var ErrUnsupported = errors.New("operation not supported by device")

// ShaderCompileError reports a shader stage the backend rejected.
type ShaderCompileError struct {
	Stage ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, e.Log)
}

// ShaderLinkError reports a program that failed to link.
type ShaderLinkError struct {
	Log string
}

func (e *ShaderLinkError) Error() string {
	return fmt.Sprintf("failed to link program: %s", e.Log)
}
