package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/descriptor"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
)

// shaderStages resolves shaders and checks they build the wanted kind of
// pipeline.
func (c *Core) shaderStages(shaders []Shader, want pipeline.Kind) ([]core1_0.PipelineShaderStageCreateInfo, error) {
	stages := make([]ShaderStage, 0, len(shaders))
	infos := make([]core1_0.PipelineShaderStageCreateInfo, 0, len(shaders))
	for _, shader := range shaders {
		r, err := lookup[*shaderRecord](c, shader.id)
		if err != nil {
			return nil, err
		}
		stages = append(stages, r.stage)
		infos = append(infos, pipeline.ShaderStageInfo(r.stage, r.module))
	}

	err := pipeline.RequireKind(stages, want)
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// createLayout creates one descriptor set layout per declared set and the
// pipeline layout over them.
func (c *Core) createLayout(inputs InputLayout, kind pipeline.Kind) (passLayout, error) {
	layout := passLayout{inputs: inputs}
	for i, set := range inputs.Sets {
		setLayout, _, err := c.device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
			Bindings: descriptor.LayoutBindings(set, kind.Visibility()),
		})
		if err != nil {
			layout.destroy()
			return passLayout{}, errors.Wrapf(err, "creating layout of set %d", i)
		}
		layout.setLayouts = append(layout.setLayouts, setLayout)
	}

	var err error
	layout.layout, _, err = c.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: layout.setLayouts,
	})
	if err != nil {
		layout.destroy()
		return passLayout{}, errors.Wrap(err, "creating pipeline layout")
	}

	return layout, nil
}

// renderTarget is a resolved RenderTarget.
type renderTarget struct {
	colors      []core1_0.Format
	colorLayout core1_0.ImageLayout
	extent      core1_0.Extent2D
	// attachments per framebuffer, depth last
	attachments [][]core1_0.ImageView
	window      handle.ID
}

func (c *Core) resolveTarget(target RenderTarget) (renderTarget, error) {
	switch target := target.(type) {
	case TargetWindow:
		window, err := lookup[*windowRecord](c, target.Window.id)
		if err != nil {
			return renderTarget{}, err
		}
		return windowTarget(window, target.Window.id), nil
	case TargetTexture:
		return c.textureTarget([]Texture{target.Texture})
	case TargetTextures:
		return c.textureTarget(target.Textures)
	}

	return renderTarget{}, errors.Newf("unsupported render target %T", target)
}

func windowTarget(window *windowRecord, id handle.ID) renderTarget {
	resolved := renderTarget{
		colors:      []core1_0.Format{window.format},
		colorLayout: core1_0.ImageLayoutColorAttachmentOptimal,
		extent:      window.extent,
		window:      id,
	}
	for _, view := range window.views {
		resolved.attachments = append(resolved.attachments, []core1_0.ImageView{view, window.depth.view})
	}
	return resolved
}

func (c *Core) textureTarget(textures []Texture) (renderTarget, error) {
	if len(textures) == 0 {
		return renderTarget{}, errors.New("render target without textures")
	}

	resolved := renderTarget{colorLayout: core1_0.ImageLayoutGeneral}
	var views []core1_0.ImageView
	var first *textureRecord
	for i, texture := range textures {
		r, err := lookup[*textureRecord](c, texture.id)
		if err != nil {
			return renderTarget{}, err
		}
		if !r.renderable {
			return renderTarget{}, errors.Wrapf(ErrMissingCapability, "texture %d is not a render target", i)
		}
		if first == nil {
			first = r
			resolved.extent = r.extent
		} else if r.extent != first.extent {
			return renderTarget{}, errors.Newf("texture %d is %dx%d, expected %dx%d", i,
				r.extent.Width, r.extent.Height, first.extent.Width, first.extent.Height)
		}
		resolved.colors = append(resolved.colors, formats[r.format].native)
		views = append(views, r.view)
	}

	depth, err := c.ensureDepth(first)
	if err != nil {
		return renderTarget{}, err
	}
	resolved.attachments = [][]core1_0.ImageView{append(views, depth.view)}
	return resolved, nil
}

func (c *Core) createFramebuffers(r *renderPassRecord, target renderTarget) error {
	for _, attachments := range target.attachments {
		framebuffer, _, err := c.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  r.renderPass,
			Layers:      1,
			Attachments: attachments,
			Width:       target.extent.Width,
			Height:      target.extent.Height,
		})
		if err != nil {
			r.destroyFramebuffers()
			return errors.Wrap(err, "creating framebuffer")
		}
		r.framebuffers = append(r.framebuffers, framebuffer)
	}
	r.extent = target.extent
	return nil
}

// CreateRenderPass compiles a graphics pass. The shaders must be exactly one
// vertex and one fragment shader, otherwise ErrInvalidStages is returned.
func (c *Core) CreateRenderPass(config RenderPassConfig) (RenderPass, error) {
	stages, err := c.shaderStages(config.Shaders, pipeline.Graphics)
	if err != nil {
		return RenderPass{}, err
	}

	target, err := c.resolveTarget(config.Target)
	if err != nil {
		return RenderPass{}, errors.Wrap(err, "render target")
	}

	layout, err := c.createLayout(config.Inputs, pipeline.Graphics)
	if err != nil {
		return RenderPass{}, err
	}

	r := &renderPassRecord{
		passLayout:  layout,
		config:      config,
		window:      target.window,
		clearValues: pipeline.ClearValues(len(target.colors), config.ClearValue, 1.0),
	}
	err = c.buildRenderPass(r, stages, target)
	if err != nil {
		r.release(c)
		return RenderPass{}, err
	}

	r.id = c.insert(r)
	if window, err := lookup[*windowRecord](c, r.window); err == nil {
		window.passes[r.id] = struct{}{}
	}
	return RenderPass{r.id}, nil
}

func (c *Core) buildRenderPass(r *renderPassRecord, stages []core1_0.PipelineShaderStageCreateInfo, target renderTarget) error {
	var err error
	r.renderPass, _, err = c.device.CreateRenderPass(nil, pipeline.RenderPassInfo(pipeline.Attachments{
		Colors:      target.colors,
		ColorLayout: target.colorLayout,
		Depth:       c.depthFormat,
		Clear:       r.config.Clear,
	}))
	if err != nil {
		return errors.Wrap(err, "creating render pass")
	}

	state := pipeline.GraphicsState{
		Vertex:       r.config.Vertex,
		Topology:     r.config.Topology,
		Winding:      r.config.Winding,
		Cull:         r.config.Cull,
		Fill:         r.config.Fill,
		DepthCompare: r.config.DepthCompare,
		DepthWrite:   r.config.DepthWrite,
		Blend:        r.config.Blend,
	}
	pipelines, _, err := c.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		pipeline.GraphicsPipelineInfo(stages, state, len(target.colors), r.layout, r.renderPass),
	})
	if err != nil {
		return errors.Wrap(err, "creating graphics pipeline")
	}
	r.pipeline = pipelines[0]

	return c.createFramebuffers(r, target)
}

// CreateComputePass compiles a compute pass. The shaders must be exactly one
// compute shader, otherwise ErrInvalidStages is returned.
func (c *Core) CreateComputePass(config ComputePassConfig) (ComputePass, error) {
	stages, err := c.shaderStages(config.Shaders, pipeline.Compute)
	if err != nil {
		return ComputePass{}, err
	}

	layout, err := c.createLayout(config.Inputs, pipeline.Compute)
	if err != nil {
		return ComputePass{}, err
	}

	pipelines, _, err := c.device.CreateComputePipelines(nil, nil, []core1_0.ComputePipelineCreateInfo{
		{
			Stage:             stages[0],
			Layout:            layout.layout,
			BasePipelineIndex: -1,
		},
	})
	if err != nil {
		layout.destroy()
		return ComputePass{}, errors.Wrap(err, "creating compute pipeline")
	}
	layout.pipeline = pipelines[0]

	return ComputePass{c.insert(&computePassRecord{passLayout: layout})}, nil
}
