// Package barrier computes the stage and access masks for the layout
// transitions the core performs on its own, and translates caller barriers
// between abstract pipeline stages into native ones.
package barrier

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

// Stage is an abstract point in GPU execution used to order caller barriers.
type Stage int

const (
	StageTopOfPipe Stage = iota
	StageDrawIndirect
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
)

var stageNames = map[Stage]string{
	StageTopOfPipe:             "TopOfPipe",
	StageDrawIndirect:          "DrawIndirect",
	StageVertexInput:           "VertexInput",
	StageVertexShader:          "VertexShader",
	StageFragmentShader:        "FragmentShader",
	StageColorAttachmentOutput: "ColorAttachmentOutput",
	StageComputeShader:         "ComputeShader",
	StageTransfer:              "Transfer",
	StageBottomOfPipe:          "BottomOfPipe",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Stage(unknown)"
}

type stageInfo struct {
	native core1_0.PipelineStageFlags
	// writes performed by the stage, made available when it is the source
	writes core1_0.AccessFlags
	// reads performed by the stage, made visible when it is the destination
	reads core1_0.AccessFlags
}

var stages = map[Stage]stageInfo{
	StageTopOfPipe: {native: core1_0.PipelineStageTopOfPipe},
	StageDrawIndirect: {
		native: core1_0.PipelineStageDrawIndirect,
		reads:  core1_0.AccessIndirectCommandRead,
	},
	StageVertexInput: {
		native: core1_0.PipelineStageVertexInput,
		reads:  core1_0.AccessVertexAttributeRead | core1_0.AccessIndexRead,
	},
	StageVertexShader: {
		native: core1_0.PipelineStageVertexShader,
		writes: core1_0.AccessShaderWrite,
		reads:  core1_0.AccessShaderRead | core1_0.AccessUniformRead,
	},
	StageFragmentShader: {
		native: core1_0.PipelineStageFragmentShader,
		writes: core1_0.AccessShaderWrite,
		reads:  core1_0.AccessShaderRead | core1_0.AccessUniformRead,
	},
	StageColorAttachmentOutput: {
		native: core1_0.PipelineStageColorAttachmentOutput,
		writes: core1_0.AccessColorAttachmentWrite,
		reads:  core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
	},
	StageComputeShader: {
		native: core1_0.PipelineStageComputeShader,
		writes: core1_0.AccessShaderWrite,
		reads:  core1_0.AccessShaderRead | core1_0.AccessShaderWrite | core1_0.AccessUniformRead,
	},
	StageTransfer: {
		native: core1_0.PipelineStageTransfer,
		writes: core1_0.AccessTransferWrite,
		reads:  core1_0.AccessTransferRead | core1_0.AccessTransferWrite,
	},
	StageBottomOfPipe: {native: core1_0.PipelineStageBottomOfPipe},
}

// Masks is the pair of stage masks and access masks of one barrier.
type Masks struct {
	SrcStage  core1_0.PipelineStageFlags
	DstStage  core1_0.PipelineStageFlags
	SrcAccess core1_0.AccessFlags
	DstAccess core1_0.AccessFlags
}

// ForStages translates a caller barrier between two abstract stages. The
// access masks are the writes of src and the reads of dst.
func ForStages(src, dst Stage) (Masks, error) {
	srcInfo, ok := stages[src]
	if !ok {
		return Masks{}, errors.Newf("unknown source stage %d", int(src))
	}
	dstInfo, ok := stages[dst]
	if !ok {
		return Masks{}, errors.Newf("unknown destination stage %d", int(dst))
	}

	return Masks{
		SrcStage:  srcInfo.native,
		DstStage:  dstInfo.native,
		SrcAccess: srcInfo.writes,
		DstAccess: dstInfo.reads,
	}, nil
}

// Textures rest in the general layout and may be touched by any of these
// stages between core-performed transitions.
const (
	restingStages = core1_0.PipelineStageFragmentShader |
		core1_0.PipelineStageComputeShader |
		core1_0.PipelineStageColorAttachmentOutput |
		core1_0.PipelineStageTransfer
	restingWrites = core1_0.AccessShaderWrite |
		core1_0.AccessColorAttachmentWrite |
		core1_0.AccessTransferWrite
	restingAccess = core1_0.AccessShaderRead |
		core1_0.AccessShaderWrite |
		core1_0.AccessColorAttachmentRead |
		core1_0.AccessColorAttachmentWrite |
		core1_0.AccessTransferRead |
		core1_0.AccessTransferWrite
)

type transition struct {
	from, to core1_0.ImageLayout
}

var transitions = map[transition]Masks{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutGeneral}: {
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  restingStages,
		DstAccess: restingAccess,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageTransfer,
		DstAccess: core1_0.AccessTransferWrite,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutGeneral}: {
		SrcStage:  core1_0.PipelineStageTransfer,
		DstStage:  restingStages,
		SrcAccess: core1_0.AccessTransferWrite,
		DstAccess: restingAccess,
	},
	{core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferDstOptimal}: {
		SrcStage:  restingStages,
		DstStage:  core1_0.PipelineStageTransfer,
		SrcAccess: restingWrites,
		DstAccess: core1_0.AccessTransferWrite,
	},
	{core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferSrcOptimal}: {
		SrcStage:  restingStages,
		DstStage:  core1_0.PipelineStageTransfer,
		SrcAccess: restingWrites,
		DstAccess: core1_0.AccessTransferRead,
	},
	{core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutGeneral}: {
		SrcStage:  core1_0.PipelineStageTransfer,
		DstStage:  restingStages,
		DstAccess: restingAccess,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal}: {
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests,
		DstAccess: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
	},
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutColorAttachmentOptimal}: {
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageColorAttachmentOutput,
		DstAccess: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
	},
	{core1_0.ImageLayoutColorAttachmentOptimal, khr_swapchain.ImageLayoutPresentSrc}: {
		SrcStage:  core1_0.PipelineStageColorAttachmentOutput,
		DstStage:  core1_0.PipelineStageBottomOfPipe,
		SrcAccess: core1_0.AccessColorAttachmentWrite,
	},
	{khr_swapchain.ImageLayoutPresentSrc, core1_0.ImageLayoutColorAttachmentOptimal}: {
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageColorAttachmentOutput,
		DstAccess: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
	},
}

// ForTransition returns the masks for a layout transition performed by the
// core. Transitions the core never performs are rejected.
func ForTransition(from, to core1_0.ImageLayout) (Masks, error) {
	masks, ok := transitions[transition{from, to}]
	if !ok {
		return Masks{}, errors.Newf("unexpected layout transition: %v -> %v", from, to)
	}
	return masks, nil
}

// ImageBarrier builds the native barrier for a whole-image transition of a
// single-level, single-layer image.
func ImageBarrier(image core1_0.Image, aspect core1_0.ImageAspectFlags, from, to core1_0.ImageLayout, masks Masks) core1_0.ImageMemoryBarrier {
	return core1_0.ImageMemoryBarrier{
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: masks.SrcAccess,
		DstAccessMask: masks.DstAccess,
	}
}

// MemoryBarrier builds the global memory barrier recorded for a caller
// barrier.
func MemoryBarrier(masks Masks) core1_0.MemoryBarrier {
	return core1_0.MemoryBarrier{
		SrcAccessMask: masks.SrcAccess,
		DstAccessMask: masks.DstAccess,
	}
}
