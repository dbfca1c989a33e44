// Package sdl implements the gpucore windowing platform on SDL2.
package sdl

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/gpucore"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v2"
)

var scancodes = map[gpucore.Key]sdl.Scancode{
	gpucore.KeyEscape:      sdl.SCANCODE_ESCAPE,
	gpucore.KeySpace:       sdl.SCANCODE_SPACE,
	gpucore.KeyEnter:       sdl.SCANCODE_RETURN,
	gpucore.KeyTab:         sdl.SCANCODE_TAB,
	gpucore.KeyW:           sdl.SCANCODE_W,
	gpucore.KeyA:           sdl.SCANCODE_A,
	gpucore.KeyS:           sdl.SCANCODE_S,
	gpucore.KeyD:           sdl.SCANCODE_D,
	gpucore.KeyQ:           sdl.SCANCODE_Q,
	gpucore.KeyE:           sdl.SCANCODE_E,
	gpucore.KeyUp:          sdl.SCANCODE_UP,
	gpucore.KeyDown:        sdl.SCANCODE_DOWN,
	gpucore.KeyLeft:        sdl.SCANCODE_LEFT,
	gpucore.KeyRight:       sdl.SCANCODE_RIGHT,
	gpucore.KeyLeftShift:   sdl.SCANCODE_LSHIFT,
	gpucore.KeyLeftControl: sdl.SCANCODE_LCTRL,
}

var mouseButtons = map[uint8]gpucore.MouseButton{
	sdl.BUTTON_LEFT:   gpucore.MouseLeft,
	sdl.BUTTON_MIDDLE: gpucore.MouseMiddle,
	sdl.BUTTON_RIGHT:  gpucore.MouseRight,
}

// Platform is an SDL2 video subsystem with the Vulkan library loaded.
type Platform struct {
	log        logrus.FieldLogger
	extensions []string
	windows    map[uint32]*Window

	buttons        map[gpucore.MouseButton]bool
	mouseX, mouseY int
	quit           bool
}

// New initializes SDL video and loads the Vulkan library through SDL.
func New(log logrus.FieldLogger) (*Platform, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initializing SDL")
	}

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "loading Vulkan through SDL")
	}

	// SDL reports the surface extensions of a Vulkan window, so a hidden
	// window is opened before any real one.
	hidden, err := sdl.CreateWindow("", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, 1, 1, sdl.WINDOW_HIDDEN|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "creating hidden window")
	}
	extensions := hidden.VulkanGetInstanceExtensions()
	hidden.Destroy()

	return &Platform{
		log:        log,
		extensions: extensions,
		windows:    make(map[uint32]*Window),
		buttons:    make(map[gpucore.MouseButton]bool),
	}, nil
}

func (p *Platform) InstanceExtensions() []string {
	return p.extensions
}

func (p *Platform) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

func (p *Platform) CreateWindow(config gpucore.WindowConfig) (gpucore.PlatformWindow, error) {
	flags := uint32(sdl.WINDOW_SHOWN | sdl.WINDOW_VULKAN)
	if config.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}

	window, err := sdl.CreateWindow(config.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(config.Width), int32(config.Height), flags)
	if err != nil {
		return nil, errors.Wrap(err, "creating SDL window")
	}

	id, err := window.GetID()
	if err != nil {
		window.Destroy()
		return nil, errors.Wrap(err, "reading SDL window id")
	}

	w := &Window{platform: p, window: window, id: id}
	p.windows[id] = w
	return w, nil
}

// PollEvents drains the SDL event queue.
func (p *Platform) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			p.quit = true
		case *sdl.WindowEvent:
			w, ok := p.windows[e.WindowID]
			if !ok {
				continue
			}
			switch e.Event {
			case sdl.WINDOWEVENT_CLOSE:
				w.closeRequested = true
			case sdl.WINDOWEVENT_RESIZED:
				p.log.WithField("window", e.WindowID).Debug("window resized")
			}
		case *sdl.MouseMotionEvent:
			p.mouseX, p.mouseY = int(e.X), int(e.Y)
		case *sdl.MouseButtonEvent:
			button, ok := mouseButtons[e.Button]
			if ok {
				p.buttons[button] = e.State == sdl.PRESSED
			}
		}
	}
}

func (p *Platform) KeyDown(key gpucore.Key) bool {
	scancode, ok := scancodes[key]
	if !ok {
		return false
	}
	return sdl.GetKeyboardState()[scancode] != 0
}

func (p *Platform) MouseButtonDown(button gpucore.MouseButton) bool {
	return p.buttons[button]
}

func (p *Platform) MousePosition() (x, y int) {
	return p.mouseX, p.mouseY
}

func (p *Platform) ScreenResolution() (width, height int, err error) {
	mode, err := sdl.GetCurrentDisplayMode(0)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading display mode")
	}
	return int(mode.W), int(mode.H), nil
}

// Close destroys any window still open and shuts SDL down.
func (p *Platform) Close() error {
	for _, w := range p.windows {
		w.Destroy()
	}
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
	return nil
}

// Window is one SDL window.
type Window struct {
	platform       *Platform
	window         *sdl.Window
	id             uint32
	closeRequested bool
}

func (w *Window) CreateSurface(instance core1_0.Instance, extension khr_surface.Extension) (khr_surface.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(instance, extension, w.window)
	if err != nil {
		return nil, errors.Wrap(err, "creating SDL surface")
	}
	return surface, nil
}

func (w *Window) DrawableSize() (width, height int) {
	widthInt, heightInt := w.window.VulkanGetDrawableSize()
	return int(widthInt), int(heightInt)
}

// CloseRequested reports a close of this window or a quit of the whole
// application.
func (w *Window) CloseRequested() bool {
	return w.closeRequested || w.platform.quit
}

func (w *Window) Minimized() bool {
	return (w.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0
}

func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	delete(w.platform.windows, w.id)
	w.window.Destroy()
	w.window = nil
}
