package descriptor_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/gpucore/internal/descriptor"
)

type fakePool struct {
	core1_0.DescriptorPool
	destroyed bool
}

func (p *fakePool) Destroy(callbacks *driver.AllocationCallbacks) {
	p.destroyed = true
}

type fakeDevice struct {
	poolInfo  core1_0.DescriptorPoolCreateInfo
	allocInfo core1_0.DescriptorSetAllocateInfo
	writes    []core1_0.WriteDescriptorSet
	pool      *fakePool

	allocErr  error
	updateErr error
}

func (d *fakeDevice) CreateDescriptorPool(callbacks *driver.AllocationCallbacks, o core1_0.DescriptorPoolCreateInfo) (core1_0.DescriptorPool, common.VkResult, error) {
	d.poolInfo = o
	d.pool = &fakePool{}
	return d.pool, core1_0.VKSuccess, nil
}

func (d *fakeDevice) AllocateDescriptorSets(o core1_0.DescriptorSetAllocateInfo) ([]core1_0.DescriptorSet, common.VkResult, error) {
	d.allocInfo = o
	if d.allocErr != nil {
		return nil, core1_0.VKErrorUnknown, d.allocErr
	}
	return []core1_0.DescriptorSet{nil}, core1_0.VKSuccess, nil
}

func (d *fakeDevice) UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet, copies []core1_0.CopyDescriptorSet) error {
	d.writes = writes
	return d.updateErr
}

var computeLayout = descriptor.SetLayout{
	Bindings: []descriptor.Binding{
		{Slot: 0, Type: descriptor.SlotUniformBuffer, Count: 1},
		{Slot: 1, Type: descriptor.SlotStorageBuffer, Count: 1},
		{Slot: 2, Type: descriptor.SlotStorageImage, Count: 1},
		{Slot: 3, Type: descriptor.SlotSampler, Count: 4},
	},
}

func TestLayoutBindings(t *testing.T) {
	bindings := descriptor.LayoutBindings(computeLayout, core1_0.StageCompute)
	require.Len(t, bindings, 4)

	assert.Equal(t, core1_0.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.Equal(t, core1_0.DescriptorTypeStorageBuffer, bindings[1].DescriptorType)
	assert.Equal(t, core1_0.DescriptorTypeStorageImage, bindings[2].DescriptorType)
	assert.Equal(t, core1_0.DescriptorTypeCombinedImageSampler, bindings[3].DescriptorType)
	assert.Equal(t, 4, bindings[3].DescriptorCount)

	for i, binding := range bindings {
		assert.Equal(t, i, binding.Binding)
		assert.Equal(t, core1_0.StageCompute, binding.StageFlags)
	}
}

func TestLayoutBindingsDefaultsCountToOne(t *testing.T) {
	bindings := descriptor.LayoutBindings(descriptor.SetLayout{
		Bindings: []descriptor.Binding{{Slot: 5, Type: descriptor.SlotAccelerationStructure}},
	}, core1_0.StageVertex|core1_0.StageFragment)

	require.Len(t, bindings, 1)
	assert.Equal(t, 1, bindings[0].DescriptorCount)
	assert.Equal(t, descriptor.DescriptorTypeAccelerationStructure, bindings[0].DescriptorType)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, core1_0.DescriptorTypeUniformBuffer,
		descriptor.Classify(computeLayout, descriptor.Resource{Slot: 0, Kind: descriptor.ResourceBuffer}))
	assert.Equal(t, core1_0.DescriptorTypeStorageBuffer,
		descriptor.Classify(computeLayout, descriptor.Resource{Slot: 1, Kind: descriptor.ResourceBuffer, Storage: true}))
	assert.Equal(t, core1_0.DescriptorTypeStorageImage,
		descriptor.Classify(computeLayout, descriptor.Resource{Slot: 2, Kind: descriptor.ResourceTexture}))
	assert.Equal(t, core1_0.DescriptorTypeCombinedImageSampler,
		descriptor.Classify(computeLayout, descriptor.Resource{Slot: 3, Kind: descriptor.ResourceTexture}))
	// Slots missing from the layout fall back to sampling.
	assert.Equal(t, core1_0.DescriptorTypeCombinedImageSampler,
		descriptor.Classify(computeLayout, descriptor.Resource{Slot: 9, Kind: descriptor.ResourceTexture}))
}

func TestPoolSizesAreExact(t *testing.T) {
	sizes := descriptor.PoolSizes([]core1_0.DescriptorType{
		core1_0.DescriptorTypeStorageBuffer,
		core1_0.DescriptorTypeUniformBuffer,
		core1_0.DescriptorTypeStorageBuffer,
		core1_0.DescriptorTypeCombinedImageSampler,
	})

	assert.Equal(t, []core1_0.DescriptorPoolSize{
		{Type: core1_0.DescriptorTypeCombinedImageSampler, DescriptorCount: 1},
		{Type: core1_0.DescriptorTypeUniformBuffer, DescriptorCount: 1},
		{Type: core1_0.DescriptorTypeStorageBuffer, DescriptorCount: 2},
	}, sizes)
}

func TestBindWritesEveryResource(t *testing.T) {
	device := &fakeDevice{}
	resources := []descriptor.Resource{
		{Slot: 0, Kind: descriptor.ResourceBuffer, Size: 512},
		{Slot: 1, Kind: descriptor.ResourceBuffer, Size: 512, Storage: true},
		{Slot: 3, Element: 2, Kind: descriptor.ResourceTexture},
	}

	pool, _, err := descriptor.Bind(device, computeLayout, nil, resources)
	require.NoError(t, err)
	assert.Same(t, device.pool, pool)

	assert.Equal(t, 1, device.poolInfo.MaxSets)
	assert.Len(t, device.poolInfo.PoolSizes, 3)
	assert.Len(t, device.allocInfo.SetLayouts, 1)

	require.Len(t, device.writes, 3)
	assert.Equal(t, 512, device.writes[0].BufferInfo[0].Range)
	assert.Equal(t, core1_0.DescriptorTypeStorageBuffer, device.writes[1].DescriptorType)
	assert.Equal(t, 3, device.writes[2].DstBinding)
	assert.Equal(t, 2, device.writes[2].DstArrayElement)
	assert.Equal(t, core1_0.ImageLayoutGeneral, device.writes[2].ImageInfo[0].ImageLayout)
}

func TestBindEmptySetStillSizesPool(t *testing.T) {
	device := &fakeDevice{}

	_, _, err := descriptor.Bind(device, descriptor.SetLayout{}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, device.poolInfo.PoolSizes, 1)
	assert.Nil(t, device.writes)
}

func TestBindReleasesPoolOnFailure(t *testing.T) {
	device := &fakeDevice{allocErr: errors.New("out of pool memory")}

	_, _, err := descriptor.Bind(device, computeLayout, nil, []descriptor.Resource{{Slot: 0}})
	require.Error(t, err)
	assert.True(t, device.pool.destroyed)

	device = &fakeDevice{updateErr: errors.New("bad write")}
	_, _, err = descriptor.Bind(device, computeLayout, nil, []descriptor.Resource{{Slot: 0}})
	require.Error(t, err)
	assert.True(t, device.pool.destroyed)
}
