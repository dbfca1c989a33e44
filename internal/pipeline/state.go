package pipeline

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

type Winding int

const (
	WindingCounterClockwise Winding = iota
	WindingClockwise
)

type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type FillMode int

const (
	FillSolid FillMode = iota
	FillWireframe
)

type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyLineStrip
	TopologyPointList
)

// CompareOp is the depth comparison. CompareIgnore disables the depth test.
type CompareOp int

const (
	CompareIgnore CompareOp = iota
	CompareNever
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
	BlendPremultiplied
)

// VertexFormat is the format of one vertex attribute.
type VertexFormat int

const (
	VertexFloat VertexFormat = iota
	VertexFloat2
	VertexFloat3
	VertexFloat4
	VertexUByte4Norm
	VertexUInt
	VertexInt
)

var vertexFormats = map[VertexFormat]core1_0.Format{
	VertexFloat:      core1_0.FormatR32SignedFloat,
	VertexFloat2:     core1_0.FormatR32G32SignedFloat,
	VertexFloat3:     core1_0.FormatR32G32B32SignedFloat,
	VertexFloat4:     core1_0.FormatR32G32B32A32SignedFloat,
	VertexUByte4Norm: core1_0.FormatR8G8B8A8UnsignedNormalized,
	VertexUInt:       core1_0.FormatR32UnsignedInt,
	VertexInt:        core1_0.FormatR32SignedInt,
}

type VertexAttribute struct {
	Location int
	Format   VertexFormat
	Offset   int
}

type VertexBinding struct {
	Binding     int
	Stride      int
	PerInstance bool
	Attributes  []VertexAttribute
}

// VertexLayout describes every vertex buffer a graphics pass reads. An empty
// layout is valid for shaders that generate their own vertices.
type VertexLayout struct {
	Bindings []VertexBinding
}

// GraphicsState is the fixed-function configuration of a graphics pass.
type GraphicsState struct {
	Vertex       VertexLayout
	Topology     Topology
	Winding      Winding
	Cull         CullMode
	Fill         FillMode
	DepthCompare CompareOp
	DepthWrite   bool
	Blend        BlendMode
}

func VertexInput(layout VertexLayout) *core1_0.PipelineVertexInputStateCreateInfo {
	info := &core1_0.PipelineVertexInputStateCreateInfo{}
	for _, binding := range layout.Bindings {
		rate := core1_0.VertexInputRateVertex
		if binding.PerInstance {
			rate = core1_0.VertexInputRateInstance
		}
		info.VertexBindingDescriptions = append(info.VertexBindingDescriptions, core1_0.VertexInputBindingDescription{
			Binding:   binding.Binding,
			Stride:    binding.Stride,
			InputRate: rate,
		})

		for _, attribute := range binding.Attributes {
			info.VertexAttributeDescriptions = append(info.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
				Binding:  binding.Binding,
				Location: uint32(attribute.Location),
				Format:   vertexFormats[attribute.Format],
				Offset:   attribute.Offset,
			})
		}
	}
	return info
}

func InputAssembly(topology Topology) *core1_0.PipelineInputAssemblyStateCreateInfo {
	native := core1_0.PrimitiveTopologyTriangleList
	switch topology {
	case TopologyTriangleStrip:
		native = core1_0.PrimitiveTopologyTriangleStrip
	case TopologyLineList:
		native = core1_0.PrimitiveTopologyLineList
	case TopologyLineStrip:
		native = core1_0.PrimitiveTopologyLineStrip
	case TopologyPointList:
		native = core1_0.PrimitiveTopologyPointList
	}

	return &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               native,
		PrimitiveRestartEnable: false,
	}
}

func Rasterization(state GraphicsState) *core1_0.PipelineRasterizationStateCreateInfo {
	info := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	if state.Fill == FillWireframe {
		info.PolygonMode = core1_0.PolygonModeLine
	}
	if state.Winding == WindingClockwise {
		info.FrontFace = core1_0.FrontFaceClockwise
	}
	switch state.Cull {
	case CullBack:
		info.CullMode = core1_0.CullModeBack
	case CullFront:
		info.CullMode = core1_0.CullModeFront
	}

	return info
}

var compareOps = map[CompareOp]core1_0.CompareOp{
	CompareNever:        core1_0.CompareOpNever,
	CompareLess:         core1_0.CompareOpLess,
	CompareEqual:        core1_0.CompareOpEqual,
	CompareLessEqual:    core1_0.CompareOpLessOrEqual,
	CompareGreater:      core1_0.CompareOpGreater,
	CompareNotEqual:     core1_0.CompareOpNotEqual,
	CompareGreaterEqual: core1_0.CompareOpGreaterOrEqual,
	CompareAlways:       core1_0.CompareOpAlways,
}

// DepthStencil enables the depth test iff the compare op is not
// CompareIgnore. Depth writes are only enabled alongside the test.
func DepthStencil(state GraphicsState) *core1_0.PipelineDepthStencilStateCreateInfo {
	op, enabled := compareOps[state.DepthCompare]
	if !enabled {
		return &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthCompareOp: core1_0.CompareOpAlways,
		}
	}

	return &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  true,
		DepthWriteEnable: state.DepthWrite,
		DepthCompareOp:   op,
	}
}

const colorWriteAll = core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha

// BlendAttachment returns the blend state of one color attachment.
func BlendAttachment(mode BlendMode) core1_0.PipelineColorBlendAttachmentState {
	state := core1_0.PipelineColorBlendAttachmentState{
		ColorWriteMask: colorWriteAll,
	}

	switch mode {
	case BlendAlpha:
		state.BlendEnabled = true
		state.SrcColorBlendFactor = core1_0.BlendFactorSrcAlpha
		state.DstColorBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		state.ColorBlendOp = core1_0.BlendOpAdd
		state.SrcAlphaBlendFactor = core1_0.BlendFactorOne
		state.DstAlphaBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		state.AlphaBlendOp = core1_0.BlendOpAdd
	case BlendAdditive:
		state.BlendEnabled = true
		state.SrcColorBlendFactor = core1_0.BlendFactorSrcAlpha
		state.DstColorBlendFactor = core1_0.BlendFactorOne
		state.ColorBlendOp = core1_0.BlendOpAdd
		state.SrcAlphaBlendFactor = core1_0.BlendFactorOne
		state.DstAlphaBlendFactor = core1_0.BlendFactorOne
		state.AlphaBlendOp = core1_0.BlendOpAdd
	case BlendPremultiplied:
		state.BlendEnabled = true
		state.SrcColorBlendFactor = core1_0.BlendFactorOne
		state.DstColorBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		state.ColorBlendOp = core1_0.BlendOpAdd
		state.SrcAlphaBlendFactor = core1_0.BlendFactorOne
		state.DstAlphaBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		state.AlphaBlendOp = core1_0.BlendOpAdd
	}

	return state
}

// ColorBlend replicates the blend state of mode across every color
// attachment.
func ColorBlend(mode BlendMode, attachments int) *core1_0.PipelineColorBlendStateCreateInfo {
	info := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
	}
	for i := 0; i < attachments; i++ {
		info.Attachments = append(info.Attachments, BlendAttachment(mode))
	}
	return info
}

// Viewport covers the whole of an extent with the full depth range.
func Viewport(extent core1_0.Extent2D) core1_0.Viewport {
	return core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// Scissor covers the whole of an extent.
func Scissor(extent core1_0.Extent2D) core1_0.Rect2D {
	return core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
}

// GraphicsPipelineInfo assembles the create info of a graphics pipeline.
// Viewport and scissor are dynamic and set when the pass is activated.
func GraphicsPipelineInfo(stages []core1_0.PipelineShaderStageCreateInfo, state GraphicsState, colorAttachments int, layout core1_0.PipelineLayout, renderPass core1_0.RenderPass) core1_0.GraphicsPipelineCreateInfo {
	placeholder := core1_0.Extent2D{Width: 1, Height: 1}

	return core1_0.GraphicsPipelineCreateInfo{
		Stages:             stages,
		VertexInputState:   VertexInput(state.Vertex),
		InputAssemblyState: InputAssembly(state.Topology),
		ViewportState: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{Viewport(placeholder)},
			Scissors:  []core1_0.Rect2D{Scissor(placeholder)},
		},
		RasterizationState: Rasterization(state),
		MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
			SampleShadingEnable:  false,
			RasterizationSamples: core1_0.Samples1,
			MinSampleShading:     1.0,
		},
		DepthStencilState: DepthStencil(state),
		ColorBlendState:   ColorBlend(state.Blend, colorAttachments),
		DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: []core1_0.DynamicState{
				core1_0.DynamicStateViewport,
				core1_0.DynamicStateScissor,
			},
		},
		Layout:            layout,
		RenderPass:        renderPass,
		Subpass:           0,
		BasePipelineIndex: -1,
	}
}

// ShaderStageInfo returns the stage create info for a module with a main
// entry point.
func ShaderStageInfo(stage ShaderStage, module core1_0.ShaderModule) core1_0.PipelineShaderStageCreateInfo {
	return core1_0.PipelineShaderStageCreateInfo{
		Stage:  stage.Native(),
		Module: module,
		Name:   "main",
	}
}
