package gpucore

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
)

// Key is a keyboard key, by physical position.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
	KeyEnter
	KeyTab
	KeyW
	KeyA
	KeyS
	KeyD
	KeyQ
	KeyE
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyLeftShift
	KeyLeftControl
)

type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
)

// WindowConfig describes a window to open.
type WindowConfig struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
}

// Platform is the windowing and input backend a Core presents through.
type Platform interface {
	// InstanceExtensions lists the instance extensions surfaces need.
	InstanceExtensions() []string
	// ProcAddr returns vkGetInstanceProcAddr as loaded by the platform.
	ProcAddr() unsafe.Pointer

	CreateWindow(config WindowConfig) (PlatformWindow, error)
	// PollEvents drains pending events and updates input and close state.
	PollEvents()
	KeyDown(key Key) bool
	MouseButtonDown(button MouseButton) bool
	MousePosition() (x, y int)
	ScreenResolution() (width, height int, err error)

	Close() error
}

// PlatformWindow is one native window owned by a Platform.
type PlatformWindow interface {
	CreateSurface(instance core1_0.Instance, extension khr_surface.Extension) (khr_surface.Surface, error)
	DrawableSize() (width, height int)
	CloseRequested() bool
	Minimized() bool
	Destroy()
}
