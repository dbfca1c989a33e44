package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/record"
)

// Recording is an open command buffer. Errors are sticky: the first one is
// kept, later commands are dropped, and End returns it.
type Recording struct {
	core    *Core
	session *record.Session
	target  *commandBufferRecord
	id      handle.ID
	windows []handle.ID
}

// Begin opens a recording. Passing a CommandBuffer returned by an earlier
// End re-records it in place; the zero CommandBuffer allocates a new one.
// Only one recording may be open per Core: a second Begin fails with
// ErrRecordingActive every time.
func (c *Core) Begin(reuse CommandBuffer) (*Recording, error) {
	if c.recorder.Active() {
		return nil, ErrRecordingActive
	}

	if !reuse.IsZero() {
		r, err := lookup[*commandBufferRecord](c, reuse.id)
		if err != nil {
			return nil, err
		}
		err = c.retire(r)
		if err != nil {
			return nil, err
		}

		session, err := c.recorder.Begin(r.buffer, true)
		if err != nil {
			return nil, err
		}
		r.recorded = false
		r.windows = nil
		return &Recording{core: c, session: session, target: r, id: reuse.id}, nil
	}

	r, err := c.allocateCommandBuffer()
	if err != nil {
		return nil, err
	}

	session, err := c.recorder.Begin(r.buffer, false)
	if err != nil {
		r.release(c)
		return nil, err
	}
	return &Recording{core: c, session: session, target: r}, nil
}

func (c *Core) allocateCommandBuffer() (*commandBufferRecord, error) {
	buffers, _, err := c.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.graphicsPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocating command buffer")
	}

	fence, _, err := c.device.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		c.device.FreeCommandBuffers(buffers)
		return nil, errors.Wrap(err, "creating fence")
	}

	return &commandBufferRecord{buffer: buffers[0], fence: fence}, nil
}

// retire waits for the last execution of r and resets its fence.
func (c *Core) retire(r *commandBufferRecord) error {
	if !r.submitted {
		return nil
	}

	fences := []core1_0.Fence{r.fence}
	_, err := c.device.WaitForFences(true, common.NoTimeout, fences)
	if err != nil {
		return errors.Wrap(err, "waiting for command buffer")
	}

	_, err = c.device.ResetFences(fences)
	if err != nil {
		return errors.Wrap(err, "resetting fence")
	}
	r.submitted = false
	return nil
}

func (rec *Recording) fail(err error) {
	rec.session.Fail(err)
}

func (rec *Recording) buffer(buffer Buffer) *bufferRecord {
	r, err := lookup[*bufferRecord](rec.core, buffer.id)
	if err != nil {
		rec.fail(err)
		return nil
	}
	return r
}

func (rec *Recording) staging(staging StagingBuffer) *stagingRecord {
	r, err := lookup[*stagingRecord](rec.core, staging.id)
	if err != nil {
		rec.fail(err)
		return nil
	}
	return r
}

func (rec *Recording) texture(texture Texture) *textureRecord {
	r, err := lookup[*textureRecord](rec.core, texture.id)
	if err != nil {
		rec.fail(err)
		return nil
	}
	return r
}

func (rec *Recording) checkRange(what string, offset, size, limit int) bool {
	if offset < 0 || size <= 0 || offset+size > limit {
		rec.fail(errors.Newf("%s range [%d, %d) outside %d bytes", what, offset, offset+size, limit))
		return false
	}
	return true
}

func (rec *Recording) BindVertexBuffer(binding int, buffer Buffer, offset int) {
	if r := rec.buffer(buffer); r != nil {
		rec.session.BindVertexBuffer(binding, r.buffer, offset)
	}
}

func (rec *Recording) BindIndexBuffer(buffer Buffer, offset int, indexType IndexType) {
	if r := rec.buffer(buffer); r != nil {
		rec.session.BindIndexBuffer(r.buffer, offset, indexType.native())
	}
}

// SetRenderPass activates a render pass, closing any open scope. A pass
// targeting a window acquires the window's next backbuffer the first time
// it is set in a frame.
func (rec *Recording) SetRenderPass(pass RenderPass) *RenderScope {
	r, err := lookup[*renderPassRecord](rec.core, pass.id)
	if err != nil {
		rec.fail(err)
		return &RenderScope{rec, rec.session.SetRenderPass(nil)}
	}

	image := 0
	if !r.window.IsZero() {
		window, err := lookup[*windowRecord](rec.core, r.window)
		if err != nil {
			rec.fail(errors.Wrap(err, "render pass window"))
			return &RenderScope{rec, rec.session.SetRenderPass(nil)}
		}
		image, err = rec.core.acquire(r.window, window)
		if err != nil {
			rec.fail(err)
			return &RenderScope{rec, rec.session.SetRenderPass(nil)}
		}
		rec.addWindow(r.window)
	}

	return &RenderScope{rec, rec.session.SetRenderPass(r.native(image))}
}

func (rec *Recording) addWindow(id handle.ID) {
	for _, window := range rec.windows {
		if window == id {
			return
		}
	}
	rec.windows = append(rec.windows, id)
}

// SetComputePass activates a compute pass, closing any open scope.
func (rec *Recording) SetComputePass(pass ComputePass) *ComputeScope {
	r, err := lookup[*computePassRecord](rec.core, pass.id)
	if err != nil {
		rec.fail(err)
		return &ComputeScope{rec, rec.session.SetComputePass(nil)}
	}
	return &ComputeScope{rec, rec.session.SetComputePass(r.native())}
}

// UploadBuffer copies size bytes from a staging buffer into a buffer.
func (rec *Recording) UploadBuffer(src StagingBuffer, srcOffset int, dst Buffer, dstOffset, size int) {
	from, to := rec.staging(src), rec.buffer(dst)
	if from == nil || to == nil {
		return
	}
	if rec.checkRange("upload source", srcOffset, size, from.block.Size) && rec.checkRange("upload destination", dstOffset, size, to.size) {
		rec.session.CopyBuffer(from.buffer, to.buffer, srcOffset, dstOffset, size)
	}
}

// DownloadBuffer copies size bytes from a buffer into a staging buffer.
func (rec *Recording) DownloadBuffer(src Buffer, srcOffset int, dst StagingBuffer, dstOffset, size int) {
	from, to := rec.buffer(src), rec.staging(dst)
	if from == nil || to == nil {
		return
	}
	if rec.checkRange("download source", srcOffset, size, from.size) && rec.checkRange("download destination", dstOffset, size, to.block.Size) {
		rec.session.CopyBuffer(from.buffer, to.buffer, srcOffset, dstOffset, size)
	}
}

// UploadTexture replaces every texel of a texture with tightly packed
// texels from a staging buffer.
func (rec *Recording) UploadTexture(src StagingBuffer, dst Texture) {
	from, to := rec.staging(src), rec.texture(dst)
	if from == nil || to == nil {
		return
	}
	size := to.extent.Width * to.extent.Height * to.format.TexelSize()
	if rec.checkRange("texture upload source", 0, size, from.block.Size) {
		rec.session.CopyBufferToImage(from.buffer, to.image, to.extent, core1_0.ImageLayoutGeneral, core1_0.ImageLayoutGeneral)
	}
}

// DownloadTexture copies every texel of a texture into a staging buffer,
// tightly packed. Formats without transfer source support fail with
// ErrMissingCapability.
func (rec *Recording) DownloadTexture(src Texture, dst StagingBuffer) {
	from, to := rec.texture(src), rec.staging(dst)
	if from == nil || to == nil {
		return
	}
	if !from.downloadable {
		rec.fail(errors.Wrap(ErrMissingCapability, "texture format cannot be downloaded"))
		return
	}
	size := from.extent.Width * from.extent.Height * from.format.TexelSize()
	if rec.checkRange("texture download destination", 0, size, to.block.Size) {
		rec.session.CopyImageToBuffer(from.image, to.buffer, from.extent)
	}
}

// UpdateBuffer records data into the command buffer itself. Offset and
// length must be multiples of four and at most 65536 bytes are accepted.
func (rec *Recording) UpdateBuffer(dst Buffer, offset int, data []byte) {
	to := rec.buffer(dst)
	if to == nil {
		return
	}
	if rec.checkRange("inline update", offset, len(data), to.size) {
		rec.session.UpdateBuffer(to.buffer, offset, data)
	}
}

// Barrier makes writes by the src stage visible to reads by the dst stage.
// Inside an open render pass it fails with ErrBarrierInRenderPass; call
// EndRenderPass first.
func (rec *Recording) Barrier(src, dst Stage) {
	rec.session.Barrier(src, dst)
}

// EndRenderPass ends the open render pass, if any. Compute passes stay
// active.
func (rec *Recording) EndRenderPass() {
	rec.session.EndRenderPass()
}

// Err returns the first error recorded so far.
func (rec *Recording) Err() error {
	return rec.session.Err()
}

// End finishes the recording and returns its command buffer, the one passed
// to Begin when re-recording. On error a fresh command buffer is released
// and a reused one stays unrecorded.
func (rec *Recording) End() (CommandBuffer, error) {
	c := rec.core
	err := rec.session.End()
	if errors.Is(err, record.ErrNotRecording) {
		return CommandBuffer{}, err
	}
	if err != nil {
		if rec.id.IsZero() {
			rec.target.release(c)
		}
		return CommandBuffer{}, err
	}

	rec.target.recorded = true
	rec.target.windows = rec.windows
	if rec.id.IsZero() {
		rec.id = c.insert(rec.target)
	}
	return CommandBuffer{rec.id}, nil
}

// RenderScope issues work through the render pass that opened it until the
// recording sets another pass, records a transfer, calls EndRenderPass, or
// ends. Re-setting the pass afterwards applies its clear policy again.
type RenderScope struct {
	rec   *Recording
	scope *record.Scope
}

// BindInputSet binds an input set at the set index it was created for. The
// last bind of a set index wins.
func (sc *RenderScope) BindInputSet(set InputSet) {
	sc.rec.bindInputSet(sc.scope, set)
}

func (rec *Recording) bindInputSet(scope *record.Scope, set InputSet) {
	r, err := lookup[*inputSetRecord](rec.core, set.id)
	if err != nil {
		rec.fail(err)
		return
	}
	scope.BindSet(r.setIndex, r.set, uint64(set.id))
}

func (sc *RenderScope) Draw(vertexCount, firstVertex int) {
	sc.scope.Draw(vertexCount, 1, firstVertex, 0)
}

func (sc *RenderScope) DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance int) {
	sc.scope.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (sc *RenderScope) DrawIndexed(indexCount, firstIndex, vertexOffset int) {
	sc.scope.DrawIndexed(indexCount, 1, firstIndex, vertexOffset, 0)
}

func (sc *RenderScope) DrawIndexedInstanced(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	sc.scope.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// DrawIndirect draws with parameters read from an indirect buffer.
func (sc *RenderScope) DrawIndirect(buffer Buffer, offset, drawCount, stride int) {
	if r := sc.rec.buffer(buffer); r != nil {
		sc.scope.DrawIndirect(r.buffer, offset, drawCount, stride)
	}
}

func (sc *RenderScope) DrawIndexedIndirect(buffer Buffer, offset, drawCount, stride int) {
	if r := sc.rec.buffer(buffer); r != nil {
		sc.scope.DrawIndexedIndirect(r.buffer, offset, drawCount, stride)
	}
}

// ComputeScope dispatches through the compute pass that opened it.
type ComputeScope struct {
	rec   *Recording
	scope *record.Scope
}

func (sc *ComputeScope) BindInputSet(set InputSet) {
	sc.rec.bindInputSet(sc.scope, set)
}

func (sc *ComputeScope) Dispatch(groupsX, groupsY, groupsZ int) {
	sc.scope.Dispatch(groupsX, groupsY, groupsZ)
}
