package barrier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
	"github.com/vkngwrapper/gpucore/internal/barrier"
)

func TestForStagesMapsOneToOne(t *testing.T) {
	cases := map[barrier.Stage]core1_0.PipelineStageFlags{
		barrier.StageTopOfPipe:             core1_0.PipelineStageTopOfPipe,
		barrier.StageDrawIndirect:          core1_0.PipelineStageDrawIndirect,
		barrier.StageVertexInput:           core1_0.PipelineStageVertexInput,
		barrier.StageVertexShader:          core1_0.PipelineStageVertexShader,
		barrier.StageFragmentShader:        core1_0.PipelineStageFragmentShader,
		barrier.StageColorAttachmentOutput: core1_0.PipelineStageColorAttachmentOutput,
		barrier.StageComputeShader:         core1_0.PipelineStageComputeShader,
		barrier.StageTransfer:              core1_0.PipelineStageTransfer,
		barrier.StageBottomOfPipe:          core1_0.PipelineStageBottomOfPipe,
	}

	for stage, native := range cases {
		masks, err := barrier.ForStages(stage, stage)
		require.NoError(t, err, stage.String())
		assert.Equal(t, native, masks.SrcStage, stage.String())
		assert.Equal(t, native, masks.DstStage, stage.String())
	}
}

func TestForStagesComputeToTransfer(t *testing.T) {
	masks, err := barrier.ForStages(barrier.StageComputeShader, barrier.StageTransfer)
	require.NoError(t, err)

	assert.Equal(t, core1_0.AccessShaderWrite, masks.SrcAccess)
	assert.Equal(t, core1_0.AccessTransferRead|core1_0.AccessTransferWrite, masks.DstAccess)
}

func TestForStagesNoAccessAtPipeEnds(t *testing.T) {
	masks, err := barrier.ForStages(barrier.StageTopOfPipe, barrier.StageBottomOfPipe)
	require.NoError(t, err)

	assert.Zero(t, masks.SrcAccess)
	assert.Zero(t, masks.DstAccess)
}

func TestForStagesUnknown(t *testing.T) {
	_, err := barrier.ForStages(barrier.Stage(99), barrier.StageTransfer)
	assert.Error(t, err)

	_, err = barrier.ForStages(barrier.StageTransfer, barrier.Stage(-1))
	assert.Error(t, err)
}

func TestForTransitionKnownPairs(t *testing.T) {
	pairs := [][2]core1_0.ImageLayout{
		{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutGeneral},
		{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal},
		{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutGeneral},
		{core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferDstOptimal},
		{core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferSrcOptimal},
		{core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutGeneral},
		{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal},
		{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutColorAttachmentOptimal},
		{core1_0.ImageLayoutColorAttachmentOptimal, khr_swapchain.ImageLayoutPresentSrc},
		{khr_swapchain.ImageLayoutPresentSrc, core1_0.ImageLayoutColorAttachmentOptimal},
	}

	for _, pair := range pairs {
		masks, err := barrier.ForTransition(pair[0], pair[1])
		require.NoError(t, err)
		assert.NotZero(t, masks.SrcStage)
		assert.NotZero(t, masks.DstStage)
	}
}

func TestForTransitionFromUndefinedHasNoSourceAccess(t *testing.T) {
	masks, err := barrier.ForTransition(core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)

	assert.Equal(t, core1_0.PipelineStageTopOfPipe, masks.SrcStage)
	assert.Zero(t, masks.SrcAccess)
	assert.Equal(t, core1_0.PipelineStageTransfer, masks.DstStage)
	assert.Equal(t, core1_0.AccessTransferWrite, masks.DstAccess)
}

func TestForTransitionUnknownPair(t *testing.T) {
	_, err := barrier.ForTransition(core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutPreInitialized)
	assert.Error(t, err)
}

func TestImageBarrierCoversWholeImage(t *testing.T) {
	masks, err := barrier.ForTransition(core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferSrcOptimal)
	require.NoError(t, err)

	b := barrier.ImageBarrier(nil, core1_0.ImageAspectColor, core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferSrcOptimal, masks)
	assert.Equal(t, core1_0.ImageLayoutGeneral, b.OldLayout)
	assert.Equal(t, core1_0.ImageLayoutTransferSrcOptimal, b.NewLayout)
	assert.Equal(t, -1, b.SrcQueueFamilyIndex)
	assert.Equal(t, -1, b.DstQueueFamilyIndex)
	assert.Equal(t, 1, b.SubresourceRange.LevelCount)
	assert.Equal(t, 1, b.SubresourceRange.LayerCount)
	assert.Equal(t, masks.SrcAccess, b.SrcAccessMask)
	assert.Equal(t, masks.DstAccess, b.DstAccessMask)
}
