package command

import "fmt"

// Kind is the closed set of operations the render thread can perform.
// Every Task carries exactly one Kind, fixed when the Task is built.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindCreateTexture
	KindUpdateTexture
	KindDeleteTexture
	KindBindTexture

	KindCreateBuffer
	KindUpdateBuffer
	KindDeleteBuffer
	KindCreateVertexArray
	KindDeleteVertexArray

	KindCompileShader
	KindDeleteShader
	KindLinkProgram
	KindDeleteProgram
	KindUseProgram
	KindSetUniform

	KindCreateFramebuffer
	KindBindFramebuffer
	KindDeleteFramebuffer

	KindSetViewport
	KindSetClearColor
	KindClear
	KindSetPipelineState
	KindSetCamera
	KindDraw
	KindDrawIndexed

	KindQueryFramebufferSize
	KindReadPixels
	KindFinish
	KindEndFrame

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:              "Invalid",
	KindCreateTexture:        "CreateTexture",
	KindUpdateTexture:        "UpdateTexture",
	KindDeleteTexture:        "DeleteTexture",
	KindBindTexture:          "BindTexture",
	KindCreateBuffer:         "CreateBuffer",
	KindUpdateBuffer:         "UpdateBuffer",
	KindDeleteBuffer:         "DeleteBuffer",
	KindCreateVertexArray:    "CreateVertexArray",
	KindDeleteVertexArray:    "DeleteVertexArray",
	KindCompileShader:        "CompileShader",
	KindDeleteShader:         "DeleteShader",
	KindLinkProgram:          "LinkProgram",
	KindDeleteProgram:        "DeleteProgram",
	KindUseProgram:           "UseProgram",
	KindSetUniform:           "SetUniform",
	KindCreateFramebuffer:    "CreateFramebuffer",
	KindBindFramebuffer:      "BindFramebuffer",
	KindDeleteFramebuffer:    "DeleteFramebuffer",
	KindSetViewport:          "SetViewport",
	KindSetClearColor:        "SetClearColor",
	KindClear:                "Clear",
	KindSetPipelineState:     "SetPipelineState",
	KindSetCamera:            "SetCamera",
	KindDraw:                 "Draw",
	KindDrawIndexed:          "DrawIndexed",
	KindQueryFramebufferSize: "QueryFramebufferSize",
	KindReadPixels:           "ReadPixels",
	KindFinish:               "Finish",
	KindEndFrame:             "EndFrame",
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds other than KindInvalid.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// NeedsResult reports whether tasks of this kind block the producer until the consumer completes
// them. Such tasks are released by the producer after Wait; every other kind is fire-and-forget
// and released by the consumer right after dispatch.
func (k Kind) NeedsResult() bool {
	switch k {
	case KindQueryFramebufferSize, KindReadPixels, KindFinish, KindEndFrame:
		return true
	default:
		return false
	}
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
