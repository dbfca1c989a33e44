// Package descriptor turns declarative set layouts into native descriptor
// set layouts, and builds exactly sized pools and writes for input sets.
package descriptor

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slices"
)

// SlotType is the declared type of a binding slot.
type SlotType int

const (
	SlotUniformBuffer SlotType = iota
	SlotStorageBuffer
	SlotSampler
	SlotStorageImage
	SlotAccelerationStructure
)

// DescriptorTypeAccelerationStructure is VK_DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR.
const DescriptorTypeAccelerationStructure core1_0.DescriptorType = 1000150000

func (t SlotType) String() string {
	switch t {
	case SlotUniformBuffer:
		return "UniformBuffer"
	case SlotStorageBuffer:
		return "StorageBuffer"
	case SlotSampler:
		return "Sampler"
	case SlotStorageImage:
		return "StorageImage"
	case SlotAccelerationStructure:
		return "AccelerationStructure"
	}
	return "SlotType(unknown)"
}

// Native returns the descriptor type a slot is declared with in the set
// layout.
func (t SlotType) Native() core1_0.DescriptorType {
	switch t {
	case SlotStorageBuffer:
		return core1_0.DescriptorTypeStorageBuffer
	case SlotSampler:
		return core1_0.DescriptorTypeCombinedImageSampler
	case SlotStorageImage:
		return core1_0.DescriptorTypeStorageImage
	case SlotAccelerationStructure:
		return DescriptorTypeAccelerationStructure
	}
	return core1_0.DescriptorTypeUniformBuffer
}

// Binding is one declared slot of a set. Count > 1 declares an array.
type Binding struct {
	Slot  int
	Type  SlotType
	Count int
}

// SetLayout is the declared shape of one descriptor set.
type SetLayout struct {
	Bindings []Binding
}

// Find returns the declared binding for a slot.
func (l SetLayout) Find(slot int) (Binding, bool) {
	for _, binding := range l.Bindings {
		if binding.Slot == slot {
			return binding, true
		}
	}
	return Binding{}, false
}

// LayoutBindings builds the native bindings of one set, visible to stages.
func LayoutBindings(layout SetLayout, stages core1_0.ShaderStageFlags) []core1_0.DescriptorSetLayoutBinding {
	bindings := make([]core1_0.DescriptorSetLayoutBinding, 0, len(layout.Bindings))
	for _, binding := range layout.Bindings {
		count := binding.Count
		if count < 1 {
			count = 1
		}
		bindings = append(bindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         binding.Slot,
			DescriptorType:  binding.Type.Native(),
			DescriptorCount: count,
			StageFlags:      stages,
		})
	}
	return bindings
}

// ResourceKind distinguishes what an input set binding refers to.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceTexture
)

// Resource is one resolved binding of an input set.
type Resource struct {
	Slot    int
	Element int
	Kind    ResourceKind

	// Buffers
	Buffer  core1_0.Buffer
	Size    int
	Storage bool

	// Textures
	View    core1_0.ImageView
	Sampler core1_0.Sampler
}

// Classify picks the descriptor type of a resource. Buffers are storage
// buffers when created with storage usage and uniform buffers otherwise.
// Textures are combined image samplers unless the layout declares the slot
// as a storage image.
func Classify(layout SetLayout, resource Resource) core1_0.DescriptorType {
	if resource.Kind == ResourceBuffer {
		if resource.Storage {
			return core1_0.DescriptorTypeStorageBuffer
		}
		return core1_0.DescriptorTypeUniformBuffer
	}

	if declared, ok := layout.Find(resource.Slot); ok && declared.Type == SlotStorageImage {
		return core1_0.DescriptorTypeStorageImage
	}
	return core1_0.DescriptorTypeCombinedImageSampler
}

// PoolSizes counts descriptors per type, ordered by type.
func PoolSizes(types []core1_0.DescriptorType) []core1_0.DescriptorPoolSize {
	counts := make(map[core1_0.DescriptorType]int)
	for _, t := range types {
		counts[t]++
	}

	sizes := make([]core1_0.DescriptorPoolSize, 0, len(counts))
	for t, count := range counts {
		sizes = append(sizes, core1_0.DescriptorPoolSize{Type: t, DescriptorCount: count})
	}
	slices.SortFunc(sizes, func(a, b core1_0.DescriptorPoolSize) int { return int(a.Type) - int(b.Type) })
	return sizes
}

// Writes builds one write per resource. types holds the classified type of
// each resource, in order.
func Writes(set core1_0.DescriptorSet, resources []Resource, types []core1_0.DescriptorType) []core1_0.WriteDescriptorSet {
	writes := make([]core1_0.WriteDescriptorSet, 0, len(resources))
	for i, resource := range resources {
		write := core1_0.WriteDescriptorSet{
			DstSet:          set,
			DstBinding:      resource.Slot,
			DstArrayElement: resource.Element,
			DescriptorType:  types[i],
		}

		switch types[i] {
		case core1_0.DescriptorTypeUniformBuffer, core1_0.DescriptorTypeStorageBuffer:
			write.BufferInfo = []core1_0.DescriptorBufferInfo{
				{
					Buffer: resource.Buffer,
					Offset: 0,
					Range:  resource.Size,
				},
			}
		case core1_0.DescriptorTypeStorageImage:
			write.ImageInfo = []core1_0.DescriptorImageInfo{
				{
					ImageView:   resource.View,
					ImageLayout: core1_0.ImageLayoutGeneral,
				},
			}
		default:
			write.ImageInfo = []core1_0.DescriptorImageInfo{
				{
					ImageView:   resource.View,
					Sampler:     resource.Sampler,
					ImageLayout: core1_0.ImageLayoutGeneral,
				},
			}
		}

		writes = append(writes, write)
	}
	return writes
}

// Device is the subset of a logical device the binder uses.
type Device interface {
	CreateDescriptorPool(allocationCallbacks *driver.AllocationCallbacks, o core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, common.VkResult, error)
	AllocateDescriptorSets(o core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, common.VkResult, error)
	UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet, copies []core1_0.CopyDescriptorSet) error
}

// Bind creates a pool sized for exactly the given resources, allocates one
// set of the given layout from it and writes every resource. On failure the
// pool is destroyed.
func Bind(device Device, layout SetLayout, native core1_0.DescriptorSetLayout, resources []Resource) (core1_0.DescriptorPool, core1_0.DescriptorSet, error) {
	types := make([]core1_0.DescriptorType, len(resources))
	for i, resource := range resources {
		types[i] = Classify(layout, resource)
	}

	sizes := PoolSizes(types)
	if len(sizes) == 0 {
		// A pool needs at least one size even when the set is empty.
		sizes = []core1_0.DescriptorPoolSize{{Type: core1_0.DescriptorTypeUniformBuffer, DescriptorCount: 1}}
	}

	pool, _, err := device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   1,
		PoolSizes: sizes,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating descriptor pool")
	}

	sets, _, err := device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     []core1_0.DescriptorSetLayout{native},
	})
	if err != nil {
		pool.Destroy(nil)
		return nil, nil, errors.Wrap(err, "allocating descriptor set")
	}

	if len(resources) > 0 {
		err = device.UpdateDescriptorSets(Writes(sets[0], resources, types), nil)
		if err != nil {
			pool.Destroy(nil)
			return nil, nil, errors.Wrap(err, "writing descriptor set")
		}
	}

	return pool, sets[0], nil
}
