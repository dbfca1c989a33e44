// Package memory selects memory types and backs buffers and images with
// dedicated device memory allocations.
package memory

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ErrNoMemoryType is returned when no memory type satisfies both the
// resource's type bits and the required property flags.
var ErrNoMemoryType = errors.New("no compatible memory type")

// Class is the memory property class a resource is allocated from.
type Class int

const (
	// DeviceLocal backs buffers, textures and depth images.
	DeviceLocal Class = iota
	// HostVisible backs staging buffers; it is always coherent.
	HostVisible
)

func (c Class) String() string {
	switch c {
	case DeviceLocal:
		return "DeviceLocal"
	case HostVisible:
		return "HostVisible"
	}
	return "Class(unknown)"
}

// Flags returns the memory property flags a class requires.
func (c Class) Flags() core1_0.MemoryPropertyFlags {
	if c == HostVisible {
		return core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	}
	return core1_0.MemoryPropertyDeviceLocal
}

// FindMemoryType returns the first memory type index whose bit is set in
// typeBits and whose property flags contain every required flag.
func FindMemoryType(types []core1_0.MemoryType, typeBits uint32, required core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range types {
		typeBit := uint32(1 << i)

		if (typeBits&typeBit) != 0 && (memoryType.PropertyFlags&required) == required {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "type bits %#x, properties %v", typeBits, required)
}

// Block is one dedicated device memory allocation.
type Block struct {
	Memory core1_0.DeviceMemory
	Size   int
	Class  Class

	mapped unsafe.Pointer
}

// Bytes returns the persistently mapped contents of a host-visible block.
func (b *Block) Bytes() []byte {
	if b == nil || b.mapped == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.mapped), b.Size)
}

// Free unmaps and releases the allocation.
func (b *Block) Free() {
	if b == nil || b.Memory == nil {
		return
	}
	if b.mapped != nil {
		b.Memory.Unmap()
		b.mapped = nil
	}
	b.Memory.Free(nil)
	b.Memory = nil
}

// Allocator creates buffers and images bound to their own allocation.
type Allocator struct {
	device core1_0.Device
	types  []core1_0.MemoryType
	// queue families buffers are shared between; images stay exclusive
	families []int
}

// NewAllocator reads the memory types of physicalDevice. When more than one
// distinct queue family is given, buffers are created for concurrent use by
// all of them.
func NewAllocator(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, families ...int) *Allocator {
	allocator := &Allocator{
		device: device,
		types:  physicalDevice.MemoryProperties().MemoryTypes,
	}

	seen := make(map[int]bool)
	for _, family := range families {
		if !seen[family] {
			seen[family] = true
			allocator.families = append(allocator.families, family)
		}
	}
	return allocator
}

func (a *Allocator) allocate(requirements *core1_0.MemoryRequirements, class Class) (*Block, error) {
	memoryTypeIndex, err := FindMemoryType(a.types, requirements.MemoryTypeBits, class.Flags())
	if err != nil {
		return nil, err
	}

	memory, _, err := a.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %d bytes of %s memory", requirements.Size, class)
	}

	block := &Block{Memory: memory, Size: requirements.Size, Class: class}
	if class == HostVisible {
		block.mapped, _, err = memory.Map(0, requirements.Size, 0)
		if err != nil {
			memory.Free(nil)
			return nil, errors.Wrap(err, "mapping host-visible memory")
		}
	}

	return block, nil
}

// Buffer creates a buffer of the given size and binds it to a fresh
// allocation of the requested class. Host-visible buffers stay mapped until
// their block is freed.
func (a *Allocator) Buffer(size int, usage core1_0.BufferUsageFlags, class Class) (core1_0.Buffer, *Block, error) {
	info := core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	}
	if len(a.families) > 1 {
		info.SharingMode = core1_0.SharingModeConcurrent
		info.QueueFamilyIndices = a.families
	}

	buffer, _, err := a.device.CreateBuffer(nil, info)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating %d byte buffer", size)
	}

	block, err := a.allocate(buffer.MemoryRequirements(), class)
	if err != nil {
		buffer.Destroy(nil)
		return nil, nil, err
	}

	_, err = buffer.BindBufferMemory(block.Memory, 0)
	if err != nil {
		block.Free()
		buffer.Destroy(nil)
		return nil, nil, errors.Wrap(err, "binding buffer memory")
	}

	// Callers see the requested size rather than the padded allocation.
	block.Size = size
	return buffer, block, nil
}

// Image2D creates a single-level 2D image in optimal tiling, starting in the
// undefined layout, and binds it to a fresh device-local allocation.
func (a *Allocator) Image2D(width, height int, format core1_0.Format, usage core1_0.ImageUsageFlags) (core1_0.Image, *Block, error) {
	image, _, err := a.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating %dx%d image", width, height)
	}

	block, err := a.allocate(image.MemoryRequirements(), DeviceLocal)
	if err != nil {
		image.Destroy(nil)
		return nil, nil, err
	}

	_, err = image.BindImageMemory(block.Memory, 0)
	if err != nil {
		block.Free()
		image.Destroy(nil)
		return nil, nil, errors.Wrap(err, "binding image memory")
	}

	return image, block, nil
}
