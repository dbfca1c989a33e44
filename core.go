// Package gpucore is a thin layer over Vulkan that hands out opaque handles
// for shaders, buffers, textures, windows, passes and command buffers, and
// hides device setup, memory allocation, descriptor management, pipeline
// construction and synchronization behind a command recording protocol.
//
// A Core is not safe for concurrent use.
package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v2"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
	"github.com/vkngwrapper/gpucore/internal/record"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Option customizes a Core at creation.
type Option func(*Core)

// WithLogger routes the core's logging, including validation messages, to
// log instead of the standard logrus logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// WithPlatform enables windows. The core takes ownership of the platform
// and closes it in Close.
func WithPlatform(platform Platform) Option {
	return func(c *Core) {
		c.platform = platform
	}
}

// Core owns one Vulkan device and every resource created through it.
type Core struct {
	config   Config
	log      logrus.FieldLogger
	platform Platform

	loader         core.Loader
	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	apiVersion     common.APIVersion

	graphicsFamily int
	transferFamily int
	graphicsQueue  core1_0.Queue
	transferQueue  core1_0.Queue
	graphicsPool   core1_0.CommandPool
	transferPool   core1_0.CommandPool

	surfaceExtension   khr_surface.Extension
	swapchainExtension khr_swapchain.Extension

	allocator   *memory.Allocator
	depthFormat core1_0.Format

	handles  *handle.Table[resource]
	recorder record.Recorder
}

// New creates a core on the configured physical device. Without a platform
// the core is headless and CreateWindow fails with ErrNoPlatform.
func New(config Config, options ...Option) (*Core, error) {
	c := &Core{
		config:  config,
		handles: &handle.Table[resource]{},
	}
	for _, option := range options {
		option(c)
	}
	if c.log == nil {
		logger := logrus.New()
		logger.SetLevel(config.LogLevel)
		c.log = logger
	}

	err := c.init()
	if err != nil {
		c.destroy()
		return nil, err
	}

	return c, nil
}

func (c *Core) init() error {
	var err error
	if c.platform != nil {
		c.loader, err = core.CreateLoaderFromProcAddr(c.platform.ProcAddr())
	} else {
		c.loader, err = core.CreateSystemLoader()
	}
	if err != nil {
		return errors.Wrap(err, "loading vulkan")
	}

	err = c.createInstance()
	if err != nil {
		return err
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = c.createLogicalDevice()
	if err != nil {
		return err
	}

	err = c.createCommandPools()
	if err != nil {
		return err
	}

	c.depthFormat, err = c.findSupportedFormat(pipeline.DepthFormats, core1_0.FormatFeatureDepthStencilAttachment)
	if err != nil {
		return err
	}

	c.allocator = memory.NewAllocator(c.device, c.physicalDevice, c.graphicsFamily, c.transferFamily)
	return nil
}

func (c *Core) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    c.config.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "gpucore",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := c.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "listing instance extensions")
	}

	var required []string
	if c.platform != nil {
		required = append(required, c.platform.InstanceExtensions()...)
	}
	if c.config.Validation {
		required = append(required, ext_debug_utils.ExtensionName)
	}

	for _, ext := range required {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Wrapf(ErrMissingCapability, "instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if c.config.Validation {
		layers, _, err := c.loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "listing instance layers")
		}

		_, hasValidation := layers[validationLayer]
		if !hasValidation {
			return errors.Wrapf(ErrMissingCapability, "layer %s not available, install the Vulkan SDK", validationLayer)
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayer)
		instanceOptions.Next = c.debugMessengerOptions()
	}

	c.instance, _, err = c.loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "creating instance")
	}

	if c.platform != nil {
		c.surfaceExtension = khr_surface.CreateExtensionFromInstance(c.instance)
	}
	return nil
}

func (c *Core) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	severity := ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning
	if c.config.LogLevel >= logrus.DebugLevel {
		severity |= ext_debug_utils.SeverityInfo | ext_debug_utils.SeverityVerbose
	}

	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: severity,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    c.logValidation,
	}
}

func (c *Core) setupDebugMessenger() error {
	if !c.config.Validation {
		return nil
	}

	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(c.instance)
	c.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(c.instance, nil, c.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "creating debug messenger")
	}

	return nil
}

func (c *Core) logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	entry := c.log.WithFields(logrus.Fields{
		"type": msgType,
		"id":   data.MessageIDName,
	})

	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		entry.Error(data.Message)
	case severity&ext_debug_utils.SeverityWarning != 0:
		entry.Warn(data.Message)
	case severity&ext_debug_utils.SeverityInfo != 0:
		entry.Debug(data.Message)
	default:
		entry.Trace(data.Message)
	}
	return false
}

func (c *Core) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerating physical devices")
	}

	if c.config.DeviceIndex >= 0 {
		if c.config.DeviceIndex >= len(physicalDevices) {
			return errors.Newf("device %d requested, %d available", c.config.DeviceIndex, len(physicalDevices))
		}
		if _, ok := graphicsFamily(physicalDevices[c.config.DeviceIndex]); !ok {
			return errors.Wrapf(ErrMissingCapability, "device %d has no graphics queue", c.config.DeviceIndex)
		}
		c.physicalDevice = physicalDevices[c.config.DeviceIndex]
	} else {
		for _, device := range physicalDevices {
			if _, ok := graphicsFamily(device); !ok {
				continue
			}

			properties, err := device.Properties()
			if err != nil {
				return errors.Wrap(err, "reading device properties")
			}
			if c.physicalDevice == nil || properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU {
				c.physicalDevice = device
			}
			if properties.DriverType == core1_0.PhysicalDeviceTypeDiscreteGPU {
				break
			}
		}
	}

	if c.physicalDevice == nil {
		return errors.Wrap(ErrMissingCapability, "no GPU with a graphics queue")
	}

	properties, err := c.physicalDevice.Properties()
	if err != nil {
		return errors.Wrap(err, "reading device properties")
	}
	c.apiVersion = properties.APIVersion
	c.log.WithFields(logrus.Fields{
		"device": properties.DriverName,
		"api":    properties.APIVersion,
	}).Info("selected physical device")

	return nil
}

func graphicsFamily(device core1_0.PhysicalDevice) (int, bool) {
	for index, family := range device.QueueFamilyProperties() {
		if family.QueueFlags&core1_0.QueueGraphics != 0 {
			return index, true
		}
	}
	return 0, false
}

// transferOnlyFamily returns a family with transfer but no graphics support,
// if the device has one.
func transferOnlyFamily(device core1_0.PhysicalDevice) (int, bool) {
	for index, family := range device.QueueFamilyProperties() {
		if family.QueueFlags&core1_0.QueueTransfer != 0 && family.QueueFlags&core1_0.QueueGraphics == 0 {
			return index, true
		}
	}
	return 0, false
}

func (c *Core) createLogicalDevice() error {
	c.graphicsFamily, _ = graphicsFamily(c.physicalDevice)
	c.transferFamily = c.graphicsFamily
	if family, ok := transferOnlyFamily(c.physicalDevice); ok {
		c.transferFamily = family
	}

	uniqueQueueFamilies := []int{c.graphicsFamily}
	if c.transferFamily != c.graphicsFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, c.transferFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	extensions, _, err := c.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "listing device extensions")
	}

	var extensionNames []string
	if c.platform != nil {
		_, hasSwapchain := extensions[khr_swapchain.ExtensionName]
		if !hasSwapchain {
			return errors.Wrapf(ErrMissingCapability, "device extension %s", khr_swapchain.ExtensionName)
		}
		extensionNames = append(extensionNames, khr_swapchain.ExtensionName)
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.device, _, err = c.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "creating device")
	}

	c.graphicsQueue = c.device.GetQueue(c.graphicsFamily, 0)
	c.transferQueue = c.device.GetQueue(c.transferFamily, 0)

	if c.platform != nil {
		c.swapchainExtension = khr_swapchain.CreateExtensionFromDevice(c.device)
	}
	return nil
}

func (c *Core) createCommandPools() error {
	var err error
	c.graphicsPool, _, err = c.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: c.graphicsFamily,
	})
	if err != nil {
		return errors.Wrap(err, "creating graphics command pool")
	}

	c.transferPool, _, err = c.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateTransient,
		QueueFamilyIndex: c.transferFamily,
	})
	if err != nil {
		return errors.Wrap(err, "creating transfer command pool")
	}

	return nil
}

func (c *Core) findSupportedFormat(formats []core1_0.Format, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := c.physicalDevice.FormatProperties(format)
		if (props.OptimalTilingFeatures & features) == features {
			return format, nil
		}
	}

	return 0, errors.Wrapf(ErrFormatUnsupported, "no format in %v supports %v", formats, features)
}

// Close frees every live handle, then the device, debug messenger, instance
// and platform.
func (c *Core) Close() error {
	if c.device != nil {
		_, err := c.device.WaitIdle()
		if err != nil {
			c.log.WithError(err).Warn("waiting for device idle before close")
		}
	}

	for _, kind := range releaseOrder {
		for _, id := range c.handles.IDs() {
			r, _ := c.handles.Get(id)
			if r.kind() != kind {
				continue
			}
			c.handles.Remove(id)
			r.release(c)
		}
	}

	return c.destroy()
}

func (c *Core) destroy() error {
	if c.transferPool != nil {
		c.transferPool.Destroy(nil)
		c.transferPool = nil
	}

	if c.graphicsPool != nil {
		c.graphicsPool.Destroy(nil)
		c.graphicsPool = nil
	}

	if c.device != nil {
		c.device.Destroy(nil)
		c.device = nil
	}

	if c.debugMessenger != nil {
		c.debugMessenger.Destroy(nil)
		c.debugMessenger = nil
	}

	if c.instance != nil {
		c.instance.Destroy(nil)
		c.instance = nil
	}

	if c.platform != nil {
		err := c.platform.Close()
		c.platform = nil
		return err
	}
	return nil
}

// Len returns the number of live handles.
func (c *Core) Len() int {
	return c.handles.Len()
}
