package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/record"
)

var presentModes = map[PresentMode]khr_surface.PresentMode{
	PresentFIFO:      khr_surface.PresentModeFIFO,
	PresentMailbox:   khr_surface.PresentModeMailbox,
	PresentImmediate: khr_surface.PresentModeImmediate,
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// chooseSwapPresentMode falls back to FIFO, which every surface supports.
func chooseSwapPresentMode(requested PresentMode, availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	want := presentModes[requested]
	for _, presentMode := range availablePresentModes {
		if presentMode == want {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, window PlatformWindow) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width, height := window.DrawableSize()

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

func chooseImageCount(requested int, capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if requested > 0 {
		imageCount = requested
	}
	if imageCount < capabilities.MinImageCount {
		imageCount = capabilities.MinImageCount
	}
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// CreateWindow opens a platform window and builds its swapchain. Backbuffers
// rest in the color attachment layout between frames.
func (c *Core) CreateWindow(config WindowConfig) (Window, error) {
	if c.platform == nil {
		return Window{}, ErrNoPlatform
	}

	platformWindow, err := c.platform.CreateWindow(config)
	if err != nil {
		return Window{}, errors.Wrap(err, "creating platform window")
	}

	r := &windowRecord{
		window: platformWindow,
		passes: make(map[handle.ID]struct{}),
	}
	err = c.initWindow(r)
	if err != nil {
		c.releasePartialWindow(r)
		return Window{}, err
	}

	return Window{c.insert(r)}, nil
}

func (c *Core) initWindow(r *windowRecord) error {
	var err error
	r.surface, err = r.window.CreateSurface(c.instance, c.surfaceExtension)
	if err != nil {
		return errors.Wrap(err, "creating surface")
	}

	supported, _, err := r.surface.PhysicalDeviceSurfaceSupport(c.physicalDevice, c.graphicsFamily)
	if err != nil {
		return errors.Wrap(err, "querying surface support")
	}
	if !supported {
		return errors.Wrap(ErrMissingCapability, "graphics queue cannot present to the window surface")
	}

	for _, semaphore := range []*core1_0.Semaphore{&r.acquireSem, &r.renderSem, &r.presentSem} {
		*semaphore, _, err = c.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "creating window semaphore")
		}
	}

	return c.createSwapchain(r)
}

func (c *Core) releasePartialWindow(r *windowRecord) {
	r.destroySwapchain()
	for _, semaphore := range []core1_0.Semaphore{r.presentSem, r.renderSem, r.acquireSem} {
		if semaphore != nil {
			semaphore.Destroy(nil)
		}
	}
	if r.surface != nil {
		r.surface.Destroy(nil)
	}
	r.window.Destroy()
}

func (c *Core) createSwapchain(r *windowRecord) error {
	capabilities, _, err := r.surface.PhysicalDeviceSurfaceCapabilities(c.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}

	surfaceFormats, _, err := r.surface.PhysicalDeviceSurfaceFormats(c.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "querying surface formats")
	}
	if len(surfaceFormats) == 0 {
		return errors.Wrap(ErrMissingCapability, "surface reports no formats")
	}

	surfacePresentModes, _, err := r.surface.PhysicalDeviceSurfacePresentModes(c.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "querying present modes")
	}

	surfaceFormat := chooseSwapSurfaceFormat(surfaceFormats)
	r.presentMode = chooseSwapPresentMode(c.config.PresentMode, surfacePresentModes)
	r.extent = chooseSwapExtent(capabilities, r.window)
	r.format = surfaceFormat.Format

	r.swapchain, _, err = c.swapchainExtension.CreateSwapchain(c.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    chooseImageCount(c.config.SwapchainImages, capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      r.extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    r.presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "creating swapchain")
	}

	r.images, _, err = r.swapchain.SwapchainImages()
	if err != nil {
		return errors.Wrap(err, "listing swapchain images")
	}

	for _, image := range r.images {
		view, err := c.createImageView(image, r.format, core1_0.ImageAspectColor)
		if err != nil {
			return err
		}
		r.views = append(r.views, view)
	}

	r.depth, err = c.createDepth(r.extent)
	if err != nil {
		return err
	}

	err = c.graphics(func(session *record.Session) {
		for _, image := range r.images {
			session.TransitionImage(image, core1_0.ImageAspectColor, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutColorAttachmentOptimal)
		}
	})
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"width":  r.extent.Width,
		"height": r.extent.Height,
		"images": len(r.images),
	}).Debug("created swapchain")
	return nil
}

// recreateSwapchain rebuilds the swapchain at the window's current size, and
// the framebuffers of every render pass targeting it. A minimized window
// keeps its old swapchain until it is restored.
func (c *Core) recreateSwapchain(id handle.ID, r *windowRecord) error {
	if r.window.Minimized() {
		return nil
	}

	_, err := c.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}

	r.destroySwapchain()
	r.acquired = false
	r.acquireWaited = false
	r.renderSignaled = false

	err = c.createSwapchain(r)
	if err != nil {
		return err
	}

	target := windowTarget(r, id)
	for passID := range r.passes {
		pass, err := lookup[*renderPassRecord](c, passID)
		if err != nil {
			delete(r.passes, passID)
			continue
		}
		pass.destroyFramebuffers()
		err = c.createFramebuffers(pass, target)
		if err != nil {
			return err
		}
	}
	return nil
}

// acquire makes sure the window has a backbuffer to render into and returns
// its index.
func (c *Core) acquire(id handle.ID, r *windowRecord) (int, error) {
	if r.acquired {
		return r.imageIndex, nil
	}

	imageIndex, res, err := r.swapchain.AcquireNextImage(common.NoTimeout, r.acquireSem, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		err = c.recreateSwapchain(id, r)
		if err != nil {
			return 0, err
		}
		imageIndex, _, err = r.swapchain.AcquireNextImage(common.NoTimeout, r.acquireSem, nil)
	}
	if err != nil {
		return 0, errors.Wrap(err, "acquiring swapchain image")
	}

	r.imageIndex = imageIndex
	r.acquired = true
	r.acquireWaited = false
	r.renderSignaled = false
	return imageIndex, nil
}

// Present shows the backbuffer rendered this frame. It blocks until the
// graphics queue is idle and moves the image back to the color attachment
// layout for its next acquisition. An out of date or suboptimal swapchain is
// rebuilt along with the framebuffers of the passes targeting the window.
func (c *Core) Present(window Window) error {
	r, err := lookup[*windowRecord](c, window.id)
	if err != nil {
		return err
	}
	if !r.acquired {
		return errors.New("no backbuffer rendered since the last present")
	}

	sync := submitSync{
		waits:   []core1_0.Semaphore{r.renderSem},
		stages:  []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
		signals: []core1_0.Semaphore{r.presentSem},
	}
	if !r.renderSignaled {
		sync.waits = nil
		sync.stages = nil
		if !r.acquireWaited {
			sync.waits = []core1_0.Semaphore{r.acquireSem}
			sync.stages = []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput}
		}
	}

	image := r.images[r.imageIndex]
	err = c.submitOnce(c.graphicsQueue, c.graphicsPool, sync, func(session *record.Session) {
		session.TransitionImage(image, core1_0.ImageAspectColor, core1_0.ImageLayoutColorAttachmentOptimal, khr_swapchain.ImageLayoutPresentSrc)
	})
	if err != nil {
		return err
	}

	res, presentErr := c.swapchainExtension.QueuePresent(c.graphicsQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{r.presentSem},
		Swapchains:     []khr_swapchain.Swapchain{r.swapchain},
		ImageIndices:   []int{r.imageIndex},
	})

	_, err = c.graphicsQueue.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for present")
	}

	r.acquired = false
	r.acquireWaited = false
	r.renderSignaled = false

	err = c.graphics(func(session *record.Session) {
		session.TransitionImage(image, core1_0.ImageAspectColor, khr_swapchain.ImageLayoutPresentSrc, core1_0.ImageLayoutColorAttachmentOptimal)
	})
	if err != nil {
		return err
	}

	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return c.recreateSwapchain(window.id, r)
	} else if presentErr != nil {
		return errors.Wrap(presentErr, "presenting")
	}
	return nil
}

// PollEvents drains pending platform events.
func (c *Core) PollEvents() {
	if c.platform != nil {
		c.platform.PollEvents()
	}
}

// CloseRequested reports whether the user asked to close the window.
func (c *Core) CloseRequested(window Window) bool {
	r, err := lookup[*windowRecord](c, window.id)
	if err != nil {
		return true
	}
	return r.window.CloseRequested()
}

func (c *Core) KeyDown(key Key) bool {
	return c.platform != nil && c.platform.KeyDown(key)
}

func (c *Core) MouseButtonDown(button MouseButton) bool {
	return c.platform != nil && c.platform.MouseButtonDown(button)
}

func (c *Core) MousePosition() (x, y int) {
	if c.platform == nil {
		return 0, 0
	}
	return c.platform.MousePosition()
}

// ScreenResolution returns the resolution of the primary display.
func (c *Core) ScreenResolution() (width, height int, err error) {
	if c.platform == nil {
		return 0, 0, ErrNoPlatform
	}
	return c.platform.ScreenResolution()
}

// WindowExtent returns the current backbuffer size of a window.
func (c *Core) WindowExtent(window Window) (width, height int, err error) {
	r, err := lookup[*windowRecord](c, window.id)
	if err != nil {
		return 0, 0, err
	}
	return r.extent.Width, r.extent.Height, nil
}
