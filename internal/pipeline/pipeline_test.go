package pipeline_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
)

func TestClassifyStagesValid(t *testing.T) {
	kind, err := pipeline.ClassifyStages([]pipeline.ShaderStage{pipeline.StageCompute})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Compute, kind)

	kind, err = pipeline.ClassifyStages([]pipeline.ShaderStage{pipeline.StageFragment, pipeline.StageVertex})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Graphics, kind)
}

func TestClassifyStagesInvalid(t *testing.T) {
	invalid := [][]pipeline.ShaderStage{
		nil,
		{pipeline.StageVertex},
		{pipeline.StageFragment, pipeline.StageFragment},
		{pipeline.StageVertex, pipeline.StageFragment, pipeline.StageFragment},
		{pipeline.StageCompute, pipeline.StageVertex},
		{pipeline.StageCompute, pipeline.StageCompute},
		{pipeline.ShaderStage(7)},
	}

	for _, stages := range invalid {
		_, err := pipeline.ClassifyStages(stages)
		assert.True(t, errors.Is(err, pipeline.ErrInvalidStages), "%v", stages)
	}
}

func TestRequireKind(t *testing.T) {
	assert.NoError(t, pipeline.RequireKind([]pipeline.ShaderStage{pipeline.StageCompute}, pipeline.Compute))

	err := pipeline.RequireKind([]pipeline.ShaderStage{pipeline.StageCompute}, pipeline.Graphics)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidStages))

	err = pipeline.RequireKind([]pipeline.ShaderStage{pipeline.StageVertex, pipeline.StageFragment}, pipeline.Compute)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidStages))
}

func TestVertexInput(t *testing.T) {
	info := pipeline.VertexInput(pipeline.VertexLayout{
		Bindings: []pipeline.VertexBinding{
			{
				Binding: 0,
				Stride:  32,
				Attributes: []pipeline.VertexAttribute{
					{Location: 0, Format: pipeline.VertexFloat3, Offset: 0},
					{Location: 1, Format: pipeline.VertexFloat3, Offset: 12},
					{Location: 2, Format: pipeline.VertexFloat2, Offset: 24},
				},
			},
			{Binding: 1, Stride: 16, PerInstance: true, Attributes: []pipeline.VertexAttribute{
				{Location: 3, Format: pipeline.VertexFloat4},
			}},
		},
	})

	require.Len(t, info.VertexBindingDescriptions, 2)
	assert.Equal(t, core1_0.VertexInputRateVertex, info.VertexBindingDescriptions[0].InputRate)
	assert.Equal(t, core1_0.VertexInputRateInstance, info.VertexBindingDescriptions[1].InputRate)

	require.Len(t, info.VertexAttributeDescriptions, 4)
	assert.Equal(t, core1_0.FormatR32G32SignedFloat, info.VertexAttributeDescriptions[2].Format)
	assert.Equal(t, 24, info.VertexAttributeDescriptions[2].Offset)
	assert.Equal(t, 1, info.VertexAttributeDescriptions[3].Binding)
}

func TestEmptyVertexLayout(t *testing.T) {
	info := pipeline.VertexInput(pipeline.VertexLayout{})
	assert.Empty(t, info.VertexBindingDescriptions)
	assert.Empty(t, info.VertexAttributeDescriptions)
}

func TestRasterization(t *testing.T) {
	info := pipeline.Rasterization(pipeline.GraphicsState{})
	assert.Equal(t, core1_0.PolygonModeFill, info.PolygonMode)
	assert.Equal(t, core1_0.FrontFaceCounterClockwise, info.FrontFace)
	assert.Zero(t, info.CullMode)

	info = pipeline.Rasterization(pipeline.GraphicsState{
		Winding: pipeline.WindingClockwise,
		Cull:    pipeline.CullBack,
		Fill:    pipeline.FillWireframe,
	})
	assert.Equal(t, core1_0.PolygonModeLine, info.PolygonMode)
	assert.Equal(t, core1_0.FrontFaceClockwise, info.FrontFace)
	assert.Equal(t, core1_0.CullModeBack, info.CullMode)
}

func TestDepthEnabledUnlessIgnore(t *testing.T) {
	info := pipeline.DepthStencil(pipeline.GraphicsState{DepthCompare: pipeline.CompareIgnore, DepthWrite: true})
	assert.False(t, info.DepthTestEnable)
	assert.False(t, info.DepthWriteEnable)

	info = pipeline.DepthStencil(pipeline.GraphicsState{DepthCompare: pipeline.CompareLess, DepthWrite: true})
	assert.True(t, info.DepthTestEnable)
	assert.True(t, info.DepthWriteEnable)
	assert.Equal(t, core1_0.CompareOpLess, info.DepthCompareOp)

	info = pipeline.DepthStencil(pipeline.GraphicsState{DepthCompare: pipeline.CompareGreaterEqual})
	assert.True(t, info.DepthTestEnable)
	assert.False(t, info.DepthWriteEnable)
}

func TestColorBlendReplicatedPerAttachment(t *testing.T) {
	info := pipeline.ColorBlend(pipeline.BlendAlpha, 3)
	require.Len(t, info.Attachments, 3)
	for _, attachment := range info.Attachments {
		assert.True(t, attachment.BlendEnabled)
		assert.Equal(t, core1_0.BlendFactorSrcAlpha, attachment.SrcColorBlendFactor)
		assert.Equal(t, core1_0.BlendFactorOneMinusSrcAlpha, attachment.DstColorBlendFactor)
	}

	none := pipeline.BlendAttachment(pipeline.BlendNone)
	assert.False(t, none.BlendEnabled)
	assert.NotZero(t, none.ColorWriteMask)

	premultiplied := pipeline.BlendAttachment(pipeline.BlendPremultiplied)
	assert.Equal(t, core1_0.BlendFactorOne, premultiplied.SrcColorBlendFactor)

	additive := pipeline.BlendAttachment(pipeline.BlendAdditive)
	assert.Equal(t, core1_0.BlendFactorOne, additive.DstColorBlendFactor)
}

func TestGraphicsPipelineInfoUsesDynamicViewport(t *testing.T) {
	info := pipeline.GraphicsPipelineInfo(nil, pipeline.GraphicsState{}, 2, nil, nil)

	require.NotNil(t, info.DynamicState)
	assert.ElementsMatch(t, []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor}, info.DynamicState.DynamicStates)
	assert.Len(t, info.ViewportState.Viewports, 1)
	assert.Len(t, info.ColorBlendState.Attachments, 2)
	assert.Equal(t, -1, info.BasePipelineIndex)
}

func TestRenderPassInfoClearPolicy(t *testing.T) {
	cases := []struct {
		clear       pipeline.ClearPolicy
		color, depth core1_0.AttachmentLoadOp
	}{
		{pipeline.ClearNone, core1_0.AttachmentLoadOpLoad, core1_0.AttachmentLoadOpLoad},
		{pipeline.ClearColor, core1_0.AttachmentLoadOpClear, core1_0.AttachmentLoadOpLoad},
		{pipeline.ClearDepth, core1_0.AttachmentLoadOpLoad, core1_0.AttachmentLoadOpClear},
		{pipeline.ClearAll, core1_0.AttachmentLoadOpClear, core1_0.AttachmentLoadOpClear},
	}

	for _, c := range cases {
		info := pipeline.RenderPassInfo(pipeline.Attachments{
			Colors:      []core1_0.Format{core1_0.FormatR8G8B8A8UnsignedNormalized},
			ColorLayout: core1_0.ImageLayoutGeneral,
			Depth:       core1_0.FormatD32SignedFloat,
			Clear:       c.clear,
		})
		require.Len(t, info.Attachments, 2)
		assert.Equal(t, c.color, info.Attachments[0].LoadOp)
		assert.Equal(t, c.depth, info.Attachments[1].LoadOp)
	}
}

func TestRenderPassInfoTextureList(t *testing.T) {
	info := pipeline.RenderPassInfo(pipeline.Attachments{
		Colors: []core1_0.Format{
			core1_0.FormatR8G8B8A8UnsignedNormalized,
			core1_0.FormatR32G32B32A32SignedFloat,
			core1_0.FormatR32G32B32A32SignedFloat,
		},
		ColorLayout: core1_0.ImageLayoutGeneral,
		Depth:       core1_0.FormatD32SignedFloat,
	})

	require.Len(t, info.Attachments, 4)
	require.Len(t, info.Subpasses, 1)
	assert.Len(t, info.Subpasses[0].ColorAttachments, 3)
	assert.Equal(t, 3, info.Subpasses[0].DepthStencilAttachment.Attachment)
	assert.Equal(t, core1_0.FormatD32SignedFloat, info.Attachments[3].Format)
	assert.Equal(t, core1_0.ImageLayoutGeneral, info.Attachments[0].InitialLayout)
	assert.Equal(t, core1_0.ImageLayoutGeneral, info.Attachments[0].FinalLayout)
}

func TestClearValues(t *testing.T) {
	values := pipeline.ClearValues(2, [4]float32{0, 0, 0, 1}, 1)
	require.Len(t, values, 3)
	assert.Equal(t, core1_0.ClearValueFloat{0, 0, 0, 1}, values[0])
	assert.Equal(t, core1_0.ClearValueDepthStencil{Depth: 1}, values[2])
}
