package gpucore

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_surface"
	"github.com/vkngwrapper/gpucore/internal/handle"
)

func testCore() *Core {
	logger, _ := test.NewNullLogger()
	return &Core{
		config:  DefaultConfig(),
		log:     logger,
		handles: &handle.Table[resource]{},
	}
}

// fakeCommandBuffer stands in for a native command buffer, recording the
// commands a Recording issues.
type fakeCommandBuffer struct {
	core1_0.CommandBuffer
	calls []string
	sets  []int
}

func (b *fakeCommandBuffer) Begin(o core1_0.CommandBufferBeginInfo) (common.VkResult, error) {
	b.calls = append(b.calls, "Begin")
	return core1_0.VKSuccess, nil
}

func (b *fakeCommandBuffer) End() (common.VkResult, error) {
	b.calls = append(b.calls, "End")
	return core1_0.VKSuccess, nil
}

func (b *fakeCommandBuffer) Reset(flags core1_0.CommandBufferResetFlags) (common.VkResult, error) {
	b.calls = append(b.calls, "Reset")
	return core1_0.VKSuccess, nil
}

func (b *fakeCommandBuffer) CmdBindPipeline(bindPoint core1_0.PipelineBindPoint, pipeline core1_0.Pipeline) {
	b.calls = append(b.calls, "BindPipeline")
}

func (b *fakeCommandBuffer) CmdBindDescriptorSets(bindPoint core1_0.PipelineBindPoint, layout core1_0.PipelineLayout, firstSet int, sets []core1_0.DescriptorSet, dynamicOffsets []int) {
	b.calls = append(b.calls, "BindDescriptorSets")
	b.sets = append(b.sets, firstSet)
}

func (b *fakeCommandBuffer) CmdDispatch(groupCountX, groupCountY, groupCountZ int) {
	b.calls = append(b.calls, "Dispatch")
}

func TestLookupChecksKind(t *testing.T) {
	c := testCore()
	id := c.handles.Insert(&shaderRecord{stage: StageCompute})

	r, err := lookup[*shaderRecord](c, id)
	require.NoError(t, err)
	assert.Equal(t, StageCompute, r.stage)

	_, err = lookup[*bufferRecord](c, id)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = lookup[*shaderRecord](c, handle.ID(0))
	assert.ErrorIs(t, err, ErrInvalidHandle)

	c.handles.Remove(id)
	_, err = lookup[*shaderRecord](c, id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestBytesToBytecode(t *testing.T) {
	words := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, words)
}

func TestCreateShaderRejectsPartialWords(t *testing.T) {
	c := testCore()

	_, err := c.CreateShader(StageVertex, []byte{1, 2, 3})
	assert.Error(t, err)

	_, err = c.CreateShader(StageVertex, nil)
	assert.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCreateBufferValidation(t *testing.T) {
	c := testCore()

	_, err := c.CreateBuffer(BufferConfig{Size: 0, Usage: UsageStorage})
	assert.Error(t, err)

	_, err = c.CreateBuffer(BufferConfig{Size: 64})
	assert.ErrorIs(t, err, ErrUndefinedUsage)

	_, err = c.CreateBuffer(BufferConfig{Size: 4, Usage: UsageVertex, Data: make([]byte, 8)})
	assert.Error(t, err)

	_, err = c.CreateBuffer(BufferConfig{Size: 64, Usage: UsageUniform, Content: StagingBuffer{handle.ID(1<<32 | 7)}})
	assert.ErrorIs(t, err, ErrInvalidHandle)

	assert.Zero(t, c.Len())
}

func TestBufferUsageAlwaysCopies(t *testing.T) {
	flags := UsageStorage.native()
	assert.NotZero(t, flags&core1_0.BufferUsageStorageBuffer)
	assert.NotZero(t, flags&core1_0.BufferUsageTransferSrc)
	assert.NotZero(t, flags&core1_0.BufferUsageTransferDst)
	assert.Zero(t, flags&core1_0.BufferUsageUniformBuffer)

	flags = (UsageVertex | UsageIndex | UsageIndirect).native()
	assert.NotZero(t, flags&core1_0.BufferUsageVertexBuffer)
	assert.NotZero(t, flags&core1_0.BufferUsageIndexBuffer)
	assert.NotZero(t, flags&core1_0.BufferUsageIndirectBuffer)
}

func TestTexelSize(t *testing.T) {
	assert.Equal(t, 4, FormatRGBA8.TexelSize())
	assert.Equal(t, 8, FormatRGBA16F.TexelSize())
	assert.Equal(t, 16, FormatRGBA32F.TexelSize())
}

func TestCreateWindowWithoutPlatform(t *testing.T) {
	c := testCore()

	_, err := c.CreateWindow(WindowConfig{Title: "headless", Width: 64, Height: 64})
	assert.ErrorIs(t, err, ErrNoPlatform)

	_, _, err = c.ScreenResolution()
	assert.ErrorIs(t, err, ErrNoPlatform)
}

func TestExecuteRequiresRecording(t *testing.T) {
	c := testCore()
	id := c.handles.Insert(&commandBufferRecord{})

	assert.ErrorIs(t, c.Execute(CommandBuffer{id}), ErrNotRecorded)
	assert.ErrorIs(t, c.Wait(CommandBuffer{id}, 0), ErrNotRecorded)
	assert.ErrorIs(t, c.Execute(CommandBuffer{}), ErrInvalidHandle)
}

func TestWaitRequiresExecution(t *testing.T) {
	c := testCore()
	id := c.handles.Insert(&commandBufferRecord{recorded: true})

	assert.ErrorIs(t, c.Wait(CommandBuffer{id}, 0), ErrNotExecuted)
	assert.NotErrorIs(t, c.Wait(CommandBuffer{id}, 0), ErrNotRecorded)
}

func TestSecondBeginFailsEveryTime(t *testing.T) {
	c := testCore()
	native := &fakeCommandBuffer{}
	id := c.handles.Insert(&commandBufferRecord{buffer: native, recorded: true})

	rec, err := c.Begin(CommandBuffer{id})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = c.Begin(CommandBuffer{id})
		assert.ErrorIs(t, err, ErrRecordingActive)
		_, err = c.Begin(CommandBuffer{})
		assert.ErrorIs(t, err, ErrRecordingActive)
	}

	cb, err := rec.End()
	require.NoError(t, err)
	assert.Equal(t, id, cb.id)
	assert.Equal(t, []string{"Reset", "Begin", "End"}, native.calls)
}

func TestRerecordKeepsHandle(t *testing.T) {
	c := testCore()
	native := &fakeCommandBuffer{}
	id := c.handles.Insert(&commandBufferRecord{buffer: native, recorded: true})
	before := c.Len()

	for frame := 0; frame < 600; frame++ {
		rec, err := c.Begin(CommandBuffer{id})
		require.NoError(t, err)
		cb, err := rec.End()
		require.NoError(t, err)
		require.Equal(t, id, cb.id)
	}

	assert.Equal(t, before, c.Len())
	assert.Equal(t, 1, c.handles.Cap())
}

func TestComputeRecording(t *testing.T) {
	c := testCore()
	native := &fakeCommandBuffer{}
	cbID := c.handles.Insert(&commandBufferRecord{buffer: native})
	pass := ComputePass{c.handles.Insert(&computePassRecord{})}
	first := InputSet{c.handles.Insert(&inputSetRecord{setIndex: 0, pass: pass.id})}
	second := InputSet{c.handles.Insert(&inputSetRecord{setIndex: 1, pass: pass.id})}

	rec, err := c.Begin(CommandBuffer{cbID})
	require.NoError(t, err)

	scope := rec.SetComputePass(pass)
	scope.BindInputSet(first)
	scope.BindInputSet(second)
	scope.Dispatch(2, 1, 1)

	_, err = rec.End()
	require.NoError(t, err)
	assert.Equal(t, []string{"Reset", "Begin", "BindPipeline", "BindDescriptorSets", "BindDescriptorSets", "Dispatch", "End"}, native.calls)
	assert.Equal(t, []int{0, 1}, native.sets)
}

func TestScopeClosedByLaterPass(t *testing.T) {
	c := testCore()
	native := &fakeCommandBuffer{}
	cbID := c.handles.Insert(&commandBufferRecord{buffer: native})
	pass := ComputePass{c.handles.Insert(&computePassRecord{})}

	rec, err := c.Begin(CommandBuffer{cbID})
	require.NoError(t, err)

	stale := rec.SetComputePass(pass)
	rec.SetComputePass(pass)
	stale.Dispatch(1, 1, 1)

	_, err = rec.End()
	assert.ErrorIs(t, err, ErrScopeClosed)

	_, err = c.Begin(CommandBuffer{cbID})
	assert.NoError(t, err, "a failed recording must return the core to idle")
}

func TestRecordingInvalidHandleIsSticky(t *testing.T) {
	c := testCore()
	native := &fakeCommandBuffer{}
	cbID := c.handles.Insert(&commandBufferRecord{buffer: native})
	pass := ComputePass{c.handles.Insert(&computePassRecord{})}

	rec, err := c.Begin(CommandBuffer{cbID})
	require.NoError(t, err)

	rec.BindVertexBuffer(0, Buffer{}, 0)
	rec.SetComputePass(pass).Dispatch(1, 1, 1)

	_, err = rec.End()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.NotContains(t, native.calls, "Dispatch")
}

type fakeWindow struct {
	PlatformWindow
	width, height int
}

func (w *fakeWindow) DrawableSize() (int, int) {
	return w.width, w.height
}

func TestChooseSwapExtent(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: core1_0.Extent2D{Width: 1024, Height: 768},
	}

	extent := chooseSwapExtent(capabilities, &fakeWindow{width: 2000, height: 8})
	assert.Equal(t, core1_0.Extent2D{Width: 1024, Height: 16}, extent)

	capabilities.CurrentExtent = core1_0.Extent2D{Width: 800, Height: 600}
	extent = chooseSwapExtent(capabilities, &fakeWindow{width: 2000, height: 8})
	assert.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, extent)
}

func TestChooseSwapPresentMode(t *testing.T) {
	available := []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox}

	assert.Equal(t, khr_surface.PresentModeMailbox, chooseSwapPresentMode(PresentMailbox, available))
	assert.Equal(t, khr_surface.PresentModeFIFO, chooseSwapPresentMode(PresentImmediate, available))
	assert.Equal(t, khr_surface.PresentModeFIFO, chooseSwapPresentMode(PresentFIFO, available))
}

func TestChooseImageCount(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}

	assert.Equal(t, 3, chooseImageCount(0, capabilities))
	assert.Equal(t, 2, chooseImageCount(1, capabilities))
	assert.Equal(t, 3, chooseImageCount(8, capabilities))

	capabilities.MaxImageCount = 0
	assert.Equal(t, 8, chooseImageCount(8, capabilities))
}

func TestLogValidationMapsSeverity(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	c := testCore()
	c.log = logger

	c.logValidation(ext_debug_utils.TypeValidation, ext_debug_utils.SeverityError, &ext_debug_utils.DebugUtilsMessengerCallbackData{Message: "bad"})
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "bad", hook.LastEntry().Message)
}

func TestDepthTransitionAspect(t *testing.T) {
	assert.Equal(t, core1_0.ImageAspectDepth, depthTransitionAspect(core1_0.FormatD32SignedFloat))
	assert.Equal(t, core1_0.ImageAspectDepth|core1_0.ImageAspectStencil, depthTransitionAspect(core1_0.FormatD32SignedFloatS8UnsignedInt))
	assert.Equal(t, core1_0.ImageAspectDepth|core1_0.ImageAspectStencil, depthTransitionAspect(core1_0.FormatD24UnsignedNormalizedS8UnsignedInt))
}
