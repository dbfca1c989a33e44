// Package record builds one linear native command sequence per recording
// session. A Recorder admits at most one open session at a time.
package record

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/barrier"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
)

var (
	// ErrRecordingActive is returned when a session is opened while another
	// is still recording.
	ErrRecordingActive = errors.New("a command buffer is already recording")
	// ErrScopeClosed is recorded when a pass scope is used after a later
	// pass change or End closed it, or a render scope after a transfer or
	// EndRenderPass ended its render pass.
	ErrScopeClosed = errors.New("pass scope is closed")
	// ErrBarrierInRenderPass is recorded for a caller barrier issued while a
	// render pass is open.
	ErrBarrierInRenderPass = errors.New("barrier inside an open render pass")
	// ErrNotRecording is returned when a session is used after End.
	ErrNotRecording = errors.New("session is not recording")
	// ErrInlineUpdate is recorded for inline updates that are unaligned,
	// empty or larger than the native limit.
	ErrInlineUpdate = errors.New("invalid inline buffer update")
)

// CommandBuffer is the subset of a native command buffer a session records
// into.
type CommandBuffer interface {
	Begin(o core1_0.CommandBufferBeginInfo) (common.VkResult, error)
	End() (common.VkResult, error)
	Reset(flags core1_0.CommandBufferResetFlags) (common.VkResult, error)

	CmdBeginRenderPass(contents core1_0.SubpassContents, o core1_0.RenderPassBeginInfo) error
	CmdEndRenderPass()
	CmdBindPipeline(bindPoint core1_0.PipelineBindPoint, pipeline core1_0.Pipeline)
	CmdBindDescriptorSets(bindPoint core1_0.PipelineBindPoint, layout core1_0.PipelineLayout, firstSet int, sets []core1_0.DescriptorSet, dynamicOffsets []int)
	CmdSetViewport(viewports []core1_0.Viewport)
	CmdSetScissor(scissors []core1_0.Rect2D)
	CmdBindVertexBuffers(firstBinding int, buffers []core1_0.Buffer, offsets []int)
	CmdBindIndexBuffer(buffer core1_0.Buffer, offset int, indexType core1_0.IndexType)

	CmdDraw(vertexCount, instanceCount int, firstVertex, firstInstance uint32)
	CmdDrawIndexed(indexCount, instanceCount int, firstIndex uint32, vertexOffset int, firstInstance uint32)
	CmdDrawIndirect(buffer core1_0.Buffer, offset int, drawCount, stride int)
	CmdDrawIndexedIndirect(buffer core1_0.Buffer, offset int, drawCount, stride int)
	CmdDispatch(groupCountX, groupCountY, groupCountZ int)

	CmdPipelineBarrier(srcStageMask, dstStageMask core1_0.PipelineStageFlags, dependencies core1_0.DependencyFlags, memoryBarriers []core1_0.MemoryBarrier, bufferMemoryBarriers []core1_0.BufferMemoryBarrier, imageMemoryBarriers []core1_0.ImageMemoryBarrier) error
	CmdCopyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, copyRegions []core1_0.BufferCopy) error
	CmdCopyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, layout core1_0.ImageLayout, regions []core1_0.BufferImageCopy) error
	CmdCopyImageToBuffer(srcImage core1_0.Image, srcImageLayout core1_0.ImageLayout, dstBuffer core1_0.Buffer, regions []core1_0.BufferImageCopy) error
	CmdUpdateBuffer(dstBuffer core1_0.Buffer, dstOffset int, dataSize int, data []byte)
}

// Pass is everything a session needs to activate a compiled pass.
type Pass struct {
	Kind     pipeline.Kind
	Pipeline core1_0.Pipeline
	Layout   core1_0.PipelineLayout

	// Graphics passes only.
	RenderPass  core1_0.RenderPass
	Framebuffer core1_0.Framebuffer
	Extent      core1_0.Extent2D
	ClearValues []core1_0.ClearValue
}

// Recorder tracks the single open session of a core.
type Recorder struct {
	active *Session
}

// Active reports whether a session is currently recording.
func (r *Recorder) Active() bool {
	return r.active != nil
}

// Begin opens a session over cb. When reuse is set the buffer is reset and
// re-recorded in place. A second Begin while a session is open fails every
// time and leaves the open session untouched.
func (r *Recorder) Begin(cb CommandBuffer, reuse bool) (*Session, error) {
	if r.active != nil {
		return nil, ErrRecordingActive
	}

	session, err := Open(cb, reuse, 0)
	if err != nil {
		return nil, err
	}
	session.owner = r
	r.active = session
	return session, nil
}

// Open starts a session that is not tracked by any recorder, used for the
// one-time submissions performed during resource creation.
func Open(cb CommandBuffer, reuse bool, flags core1_0.CommandBufferUsageFlags) (*Session, error) {
	if reuse {
		_, err := cb.Reset(0)
		if err != nil {
			return nil, errors.Wrap(err, "resetting command buffer")
		}
	}

	_, err := cb.Begin(core1_0.CommandBufferBeginInfo{Flags: flags})
	if err != nil {
		return nil, errors.Wrap(err, "beginning command buffer")
	}

	return &Session{cb: cb, bound: make(map[int]uint64)}, nil
}

// Session is one open recording. The first error recorded is sticky: later
// commands are dropped and End returns it.
type Session struct {
	cb    CommandBuffer
	owner *Recorder
	ended bool
	err   error

	active     *Pass
	renderOpen bool
	generation int
	bound      map[int]uint64
}

// Fail records err unless an earlier error is already kept.
func (s *Session) Fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// Err returns the sticky error, if any.
func (s *Session) Err() error {
	if s.ended {
		return ErrNotRecording
	}
	return s.err
}

func (s *Session) ok() bool {
	if s.ended {
		return false
	}
	return s.err == nil
}

// ActivePass returns the pass most recently set, or nil.
func (s *Session) ActivePass() *Pass {
	return s.active
}

// Bound returns the id of the input set last bound at a set index of the
// active pass. Binding the same index twice keeps the last bind.
func (s *Session) Bound(index int) (uint64, bool) {
	id, ok := s.bound[index]
	return id, ok
}

// closeScope ends an open native render pass and invalidates every scope
// handed out so far.
func (s *Session) closeScope() {
	s.endRenderScope()
	s.generation++
}

// endRenderScope ends an open native render pass and invalidates its scope.
// A compute scope stays usable.
func (s *Session) endRenderScope() {
	if !s.renderOpen {
		return
	}
	s.cb.CmdEndRenderPass()
	s.renderOpen = false
	s.generation++
}

// EndRenderPass ends the open render pass, if any, so that barriers can be
// recorded after its draws.
func (s *Session) EndRenderPass() {
	if !s.ok() {
		return
	}
	s.endRenderScope()
}

func (s *Session) BindVertexBuffer(binding int, buffer core1_0.Buffer, offset int) {
	if !s.ok() {
		return
	}
	s.cb.CmdBindVertexBuffers(binding, []core1_0.Buffer{buffer}, []int{offset})
}

func (s *Session) BindIndexBuffer(buffer core1_0.Buffer, offset int, indexType core1_0.IndexType) {
	if !s.ok() {
		return
	}
	s.cb.CmdBindIndexBuffer(buffer, offset, indexType)
}

// SetRenderPass closes any open scope, begins the native render pass on the
// pass framebuffer, binds the pipeline and resolves the dynamic viewport and
// scissor against the target extent.
func (s *Session) SetRenderPass(pass *Pass) *Scope {
	if !s.ok() {
		return &Scope{session: s, generation: -1}
	}
	if pass == nil || pass.Kind != pipeline.Graphics {
		s.Fail(errors.New("render pass expected"))
		return &Scope{session: s, generation: -1}
	}

	s.closeScope()
	s.active = pass
	s.bound = make(map[int]uint64)

	err := s.cb.CmdBeginRenderPass(core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  pass.RenderPass,
		Framebuffer: pass.Framebuffer,
		RenderArea:  pipeline.Scissor(pass.Extent),
		ClearValues: pass.ClearValues,
	})
	if err != nil {
		s.Fail(errors.Wrap(err, "beginning render pass"))
		return &Scope{session: s, generation: -1}
	}
	s.renderOpen = true

	s.cb.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pass.Pipeline)
	s.cb.CmdSetViewport([]core1_0.Viewport{pipeline.Viewport(pass.Extent)})
	s.cb.CmdSetScissor([]core1_0.Rect2D{pipeline.Scissor(pass.Extent)})

	return &Scope{session: s, generation: s.generation, kind: pipeline.Graphics}
}

// SetComputePass closes any open scope and binds the compute pipeline.
func (s *Session) SetComputePass(pass *Pass) *Scope {
	if !s.ok() {
		return &Scope{session: s, generation: -1}
	}
	if pass == nil || pass.Kind != pipeline.Compute {
		s.Fail(errors.New("compute pass expected"))
		return &Scope{session: s, generation: -1}
	}

	s.closeScope()
	s.active = pass
	s.bound = make(map[int]uint64)

	s.cb.CmdBindPipeline(core1_0.PipelineBindPointCompute, pass.Pipeline)

	return &Scope{session: s, generation: s.generation, kind: pipeline.Compute}
}

// Barrier records a caller barrier between two abstract stages as one
// global memory barrier. It is an error while a render pass is open.
func (s *Session) Barrier(src, dst barrier.Stage) {
	if !s.ok() {
		return
	}
	if s.renderOpen {
		s.Fail(ErrBarrierInRenderPass)
		return
	}

	masks, err := barrier.ForStages(src, dst)
	if err != nil {
		s.Fail(err)
		return
	}

	s.Fail(s.cb.CmdPipelineBarrier(masks.SrcStage, masks.DstStage, 0,
		[]core1_0.MemoryBarrier{barrier.MemoryBarrier(masks)}, nil, nil))
}

// TransitionImage records a core-performed layout transition.
func (s *Session) TransitionImage(image core1_0.Image, aspect core1_0.ImageAspectFlags, from, to core1_0.ImageLayout) {
	if !s.ok() {
		return
	}

	masks, err := barrier.ForTransition(from, to)
	if err != nil {
		s.Fail(err)
		return
	}

	s.endRenderScope()
	s.Fail(s.cb.CmdPipelineBarrier(masks.SrcStage, masks.DstStage, 0, nil, nil,
		[]core1_0.ImageMemoryBarrier{barrier.ImageBarrier(image, aspect, from, to, masks)}))
}

func (s *Session) CopyBuffer(src, dst core1_0.Buffer, srcOffset, dstOffset, size int) {
	if !s.ok() {
		return
	}

	s.endRenderScope()
	err := s.cb.CmdCopyBuffer(src, dst, []core1_0.BufferCopy{
		{
			SrcOffset: srcOffset,
			DstOffset: dstOffset,
			Size:      size,
		},
	})
	if err != nil {
		s.Fail(errors.Wrap(err, "copying buffer"))
	}
}

func imageCopy(extent core1_0.Extent2D) []core1_0.BufferImageCopy {
	return []core1_0.BufferImageCopy{
		{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		},
	}
}

// CopyBufferToImage copies tightly packed texels into a color image,
// moving it from the given layout through the transfer destination layout
// into the layout it rests in afterwards.
func (s *Session) CopyBufferToImage(src core1_0.Buffer, image core1_0.Image, extent core1_0.Extent2D, from, to core1_0.ImageLayout) {
	s.TransitionImage(image, core1_0.ImageAspectColor, from, core1_0.ImageLayoutTransferDstOptimal)
	if !s.ok() {
		return
	}

	err := s.cb.CmdCopyBufferToImage(src, image, core1_0.ImageLayoutTransferDstOptimal, imageCopy(extent))
	if err != nil {
		s.Fail(errors.Wrap(err, "copying buffer to image"))
		return
	}

	s.TransitionImage(image, core1_0.ImageAspectColor, core1_0.ImageLayoutTransferDstOptimal, to)
}

// CopyImageToBuffer copies a color image resting in the general layout into
// a buffer as tightly packed texels.
func (s *Session) CopyImageToBuffer(image core1_0.Image, dst core1_0.Buffer, extent core1_0.Extent2D) {
	s.TransitionImage(image, core1_0.ImageAspectColor, core1_0.ImageLayoutGeneral, core1_0.ImageLayoutTransferSrcOptimal)
	if !s.ok() {
		return
	}

	err := s.cb.CmdCopyImageToBuffer(image, core1_0.ImageLayoutTransferSrcOptimal, dst, imageCopy(extent))
	if err != nil {
		s.Fail(errors.Wrap(err, "copying image to buffer"))
		return
	}

	s.TransitionImage(image, core1_0.ImageAspectColor, core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutGeneral)
}

// UpdateBuffer records data inline. Offset and size must be multiples of
// four and the size no larger than the native inline limit.
func (s *Session) UpdateBuffer(dst core1_0.Buffer, offset int, data []byte) {
	if !s.ok() {
		return
	}
	if !memory.InlineOK(offset, len(data)) {
		s.Fail(errors.Wrapf(ErrInlineUpdate, "offset %d, size %d", offset, len(data)))
		return
	}

	s.endRenderScope()
	s.cb.CmdUpdateBuffer(dst, offset, len(data), data)
}

// End closes any open scope and finishes the native buffer. The session
// leaves its recorder whether or not an error was kept.
func (s *Session) End() error {
	if s.ended {
		return ErrNotRecording
	}

	s.closeScope()
	s.ended = true
	if s.owner != nil {
		s.owner.active = nil
		s.owner = nil
	}

	_, err := s.cb.End()
	if s.err != nil {
		return s.err
	}
	if err != nil {
		return errors.Wrap(err, "ending command buffer")
	}
	return nil
}
