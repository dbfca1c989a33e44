package pipeline

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// ClearPolicy selects which attachments are cleared when a pass begins.
type ClearPolicy int

const (
	ClearNone ClearPolicy = iota
	ClearColor
	ClearDepth
	ClearAll
)

func (c ClearPolicy) clearsColor() bool { return c == ClearColor || c == ClearAll }
func (c ClearPolicy) clearsDepth() bool { return c == ClearDepth || c == ClearAll }

// DepthFormats are the depth formats tried, in order, for paired depth
// attachments.
var DepthFormats = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// Attachments describes the targets of a render pass. Every pass carries a
// depth attachment after its color attachments.
type Attachments struct {
	Colors []core1_0.Format
	// ColorLayout is the layout color targets rest in outside the pass.
	ColorLayout core1_0.ImageLayout
	Depth       core1_0.Format
	Clear       ClearPolicy
}

func loadOp(clear bool) core1_0.AttachmentLoadOp {
	if clear {
		return core1_0.AttachmentLoadOpClear
	}
	return core1_0.AttachmentLoadOpLoad
}

// RenderPassInfo builds a single-subpass render pass that leaves color
// targets in their resting layout and the depth attachment in the depth
// attachment layout.
func RenderPassInfo(attachments Attachments) core1_0.RenderPassCreateInfo {
	var descriptions []core1_0.AttachmentDescription
	var references []core1_0.AttachmentReference

	for i, format := range attachments.Colors {
		descriptions = append(descriptions, core1_0.AttachmentDescription{
			Format:         format,
			Samples:        core1_0.Samples1,
			LoadOp:         loadOp(attachments.Clear.clearsColor()),
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  attachments.ColorLayout,
			FinalLayout:    attachments.ColorLayout,
		})
		references = append(references, core1_0.AttachmentReference{
			Attachment: i,
			Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
		})
	}

	depthIndex := len(descriptions)
	descriptions = append(descriptions, core1_0.AttachmentDescription{
		Format:         attachments.Depth,
		Samples:        core1_0.Samples1,
		LoadOp:         loadOp(attachments.Clear.clearsDepth()),
		StoreOp:        core1_0.AttachmentStoreOpStore,
		StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
		StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
		InitialLayout:  core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
	})

	return core1_0.RenderPassCreateInfo{
		Attachments: descriptions,
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments:  references,
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: depthIndex,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageLateFragmentTests,
				SrcAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	}
}

// ClearValues returns one clear value per attachment, in attachment order.
func ClearValues(colors int, color [4]float32, depth float32) []core1_0.ClearValue {
	values := make([]core1_0.ClearValue, 0, colors+1)
	for i := 0; i < colors; i++ {
		values = append(values, core1_0.ClearValueFloat{color[0], color[1], color[2], color[3]})
	}
	return append(values, core1_0.ClearValueDepthStencil{Depth: depth, Stencil: 0})
}
