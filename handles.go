package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/vkngwrapper/gpucore/internal/descriptor"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
	"github.com/vkngwrapper/gpucore/internal/record"
)

type resourceKind int

const (
	kindCommandBuffer resourceKind = iota
	kindInputSet
	kindRenderPass
	kindComputePass
	kindShader
	kindWindow
	kindTexture
	kindStagingBuffer
	kindBuffer
)

var kindNames = map[resourceKind]string{
	kindCommandBuffer: "command buffer",
	kindInputSet:      "input set",
	kindRenderPass:    "render pass",
	kindComputePass:   "compute pass",
	kindShader:        "shader",
	kindWindow:        "window",
	kindTexture:       "texture",
	kindStagingBuffer: "staging buffer",
	kindBuffer:        "buffer",
}

func (k resourceKind) String() string {
	return kindNames[k]
}

// Dependents are released before what they reference.
var releaseOrder = []resourceKind{
	kindCommandBuffer,
	kindInputSet,
	kindRenderPass,
	kindComputePass,
	kindShader,
	kindWindow,
	kindTexture,
	kindStagingBuffer,
	kindBuffer,
}

// resource is the native object cluster behind a handle.
type resource interface {
	kind() resourceKind
	release(c *Core)
}

// lookup resolves id to a record of type T. Zero, stale and wrongly typed
// ids all fail with ErrInvalidHandle.
func lookup[T resource](c *Core, id handle.ID) (T, error) {
	var zero T
	r, ok := c.handles.Get(id)
	if !ok {
		return zero, errors.Wrapf(ErrInvalidHandle, "handle %#x", uint64(id))
	}
	typed, ok := r.(T)
	if !ok {
		return zero, errors.Wrapf(ErrInvalidHandle, "handle %#x is a %s", uint64(id), r.kind())
	}
	return typed, nil
}

func (c *Core) insert(r resource) handle.ID {
	id := c.handles.Insert(r)
	c.log.WithFields(logrus.Fields{
		"kind":   r.kind().String(),
		"handle": uint64(id),
	}).Debug("created")
	return id
}

type shaderRecord struct {
	module core1_0.ShaderModule
	stage  ShaderStage
}

func (r *shaderRecord) kind() resourceKind { return kindShader }

func (r *shaderRecord) release(c *Core) {
	r.module.Destroy(nil)
}

type bufferRecord struct {
	buffer core1_0.Buffer
	block  *memory.Block
	size   int
	usage  BufferUsage
}

func (r *bufferRecord) kind() resourceKind { return kindBuffer }

func (r *bufferRecord) release(c *Core) {
	r.buffer.Destroy(nil)
	r.block.Free()
}

type stagingRecord struct {
	buffer core1_0.Buffer
	block  *memory.Block
}

func (r *stagingRecord) kind() resourceKind { return kindStagingBuffer }

func (r *stagingRecord) release(c *Core) {
	r.buffer.Destroy(nil)
	r.block.Free()
}

// depthImage is the depth attachment paired with a render target.
type depthImage struct {
	image core1_0.Image
	block *memory.Block
	view  core1_0.ImageView
}

func (d *depthImage) destroy() {
	if d == nil {
		return
	}
	d.view.Destroy(nil)
	d.image.Destroy(nil)
	d.block.Free()
}

type textureRecord struct {
	image   core1_0.Image
	block   *memory.Block
	view    core1_0.ImageView
	sampler core1_0.Sampler

	extent core1_0.Extent2D
	format Format
	usage  TextureUsage

	renderable   bool
	downloadable bool
	depth        *depthImage
}

func (r *textureRecord) kind() resourceKind { return kindTexture }

func (r *textureRecord) release(c *Core) {
	r.depth.destroy()
	if r.sampler != nil {
		r.sampler.Destroy(nil)
	}
	if r.view != nil {
		r.view.Destroy(nil)
	}
	r.image.Destroy(nil)
	r.block.Free()
}

type windowRecord struct {
	window  PlatformWindow
	surface khr_surface.Surface

	swapchain      khr_swapchain.Swapchain
	format         core1_0.Format
	extent         core1_0.Extent2D
	images         []core1_0.Image
	views          []core1_0.ImageView
	depth          *depthImage
	presentMode    khr_surface.PresentMode
	imageIndex     int
	acquired       bool
	acquireWaited  bool
	acquireSem     core1_0.Semaphore
	renderSem      core1_0.Semaphore
	presentSem     core1_0.Semaphore
	renderSignaled bool

	// render passes targeting this window, rebuilt with the swapchain
	passes map[handle.ID]struct{}
}

func (r *windowRecord) kind() resourceKind { return kindWindow }

func (r *windowRecord) release(c *Core) {
	r.destroySwapchain()
	r.presentSem.Destroy(nil)
	r.renderSem.Destroy(nil)
	r.acquireSem.Destroy(nil)
	r.surface.Destroy(nil)
	r.window.Destroy()
}

func (r *windowRecord) destroySwapchain() {
	r.depth.destroy()
	r.depth = nil
	for _, view := range r.views {
		view.Destroy(nil)
	}
	r.views = nil
	r.images = nil
	if r.swapchain != nil {
		r.swapchain.Destroy(nil)
		r.swapchain = nil
	}
}

type inputSetRecord struct {
	pool     core1_0.DescriptorPool
	set      core1_0.DescriptorSet
	pass     handle.ID
	setIndex int
}

func (r *inputSetRecord) kind() resourceKind { return kindInputSet }

func (r *inputSetRecord) release(c *Core) {
	r.pool.Destroy(nil)
}

// passLayout is the part shared by render and compute passes.
type passLayout struct {
	inputs     InputLayout
	setLayouts []core1_0.DescriptorSetLayout
	layout     core1_0.PipelineLayout
	pipeline   core1_0.Pipeline
}

func (p *passLayout) destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy(nil)
	}
	if p.layout != nil {
		p.layout.Destroy(nil)
	}
	for _, setLayout := range p.setLayouts {
		setLayout.Destroy(nil)
	}
}

func (p *passLayout) setLayout(index int) (descriptor.SetLayout, core1_0.DescriptorSetLayout, error) {
	if index < 0 || index >= len(p.setLayouts) {
		return descriptor.SetLayout{}, nil, errors.Newf("set %d outside pass layout of %d sets", index, len(p.setLayouts))
	}
	return p.inputs.Sets[index], p.setLayouts[index], nil
}

type renderPassRecord struct {
	passLayout
	id         handle.ID
	config     RenderPassConfig
	renderPass core1_0.RenderPass

	// one framebuffer per window backbuffer, or one for texture targets
	framebuffers []core1_0.Framebuffer
	extent       core1_0.Extent2D
	window       handle.ID
	clearValues  []core1_0.ClearValue
}

func (r *renderPassRecord) kind() resourceKind { return kindRenderPass }

func (r *renderPassRecord) release(c *Core) {
	if window, err := lookup[*windowRecord](c, r.window); err == nil {
		delete(window.passes, r.id)
	}
	r.destroyFramebuffers()
	if r.renderPass != nil {
		r.renderPass.Destroy(nil)
	}
	r.passLayout.destroy()
}

func (r *renderPassRecord) destroyFramebuffers() {
	for _, framebuffer := range r.framebuffers {
		framebuffer.Destroy(nil)
	}
	r.framebuffers = nil
}

// native returns the pass as activated for backbuffer image.
func (r *renderPassRecord) native(image int) *record.Pass {
	return &record.Pass{
		Kind:        pipeline.Graphics,
		Pipeline:    r.pipeline,
		Layout:      r.layout,
		RenderPass:  r.renderPass,
		Framebuffer: r.framebuffers[image],
		Extent:      r.extent,
		ClearValues: r.clearValues,
	}
}

type computePassRecord struct {
	passLayout
}

func (r *computePassRecord) kind() resourceKind { return kindComputePass }

func (r *computePassRecord) release(c *Core) {
	r.passLayout.destroy()
}

func (r *computePassRecord) native() *record.Pass {
	return &record.Pass{
		Kind:     pipeline.Compute,
		Pipeline: r.pipeline,
		Layout:   r.layout,
	}
}

type commandBufferRecord struct {
	buffer core1_0.CommandBuffer
	fence  core1_0.Fence

	recorded  bool
	submitted bool

	// windows whose acquired image this buffer renders to
	windows []handle.ID
}

func (r *commandBufferRecord) kind() resourceKind { return kindCommandBuffer }

func (r *commandBufferRecord) release(c *Core) {
	r.fence.Destroy(nil)
	c.device.FreeCommandBuffers([]core1_0.CommandBuffer{r.buffer})
}
