package window

// Key codes passed to the key callbacks. They match GLFW key codes, which use ASCII for printable keys.
const (
	KeyW      uint32 = 87
	KeyA      uint32 = 65
	KeyS      uint32 = 83
	KeyD      uint32 = 68
	KeyQ      uint32 = 81
	KeyE      uint32 = 69
	KeyP      uint32 = 80
	KeySpace  uint32 = 32
	KeyEscape uint32 = 256

	KeyRight uint32 = 262
	KeyLeft  uint32 = 263
	KeyDown  uint32 = 264
	KeyUp    uint32 = 265
)
