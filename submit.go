package gpucore

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Execute submits a recorded command buffer to the graphics queue and
// returns without waiting. An execution rendering to a window waits for the
// window's backbuffer to be acquired and signals Present when done.
// Executing a buffer whose previous execution is still in flight waits for
// that execution first.
func (c *Core) Execute(cb CommandBuffer) error {
	r, err := lookup[*commandBufferRecord](c, cb.id)
	if err != nil {
		return err
	}
	if !r.recorded {
		return ErrNotRecorded
	}

	err = c.retire(r)
	if err != nil {
		return err
	}

	submit := core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{r.buffer},
	}
	var windows []*windowRecord
	for _, id := range r.windows {
		window, err := lookup[*windowRecord](c, id)
		if err != nil {
			return errors.Wrap(err, "window rendered by command buffer")
		}
		if !window.acquired || window.renderSignaled {
			continue
		}
		if !window.acquireWaited {
			submit.WaitSemaphores = append(submit.WaitSemaphores, window.acquireSem)
			submit.WaitDstStageMask = append(submit.WaitDstStageMask, core1_0.PipelineStageColorAttachmentOutput)
		}
		submit.SignalSemaphores = append(submit.SignalSemaphores, window.renderSem)
		windows = append(windows, window)
	}

	_, err = c.graphicsQueue.Submit(r.fence, []core1_0.SubmitInfo{submit})
	if err != nil {
		return errors.Wrap(err, "submitting command buffer")
	}
	r.submitted = true

	for _, window := range windows {
		window.acquireWaited = true
		window.renderSignaled = true
	}
	return nil
}

// Wait blocks until the last execution of a command buffer completes, or
// fails with ErrTimeout once timeout has elapsed. A negative timeout waits
// forever. A recorded buffer that was never executed fails with
// ErrNotExecuted.
func (c *Core) Wait(cb CommandBuffer, timeout time.Duration) error {
	r, err := lookup[*commandBufferRecord](c, cb.id)
	if err != nil {
		return err
	}
	if !r.recorded {
		return ErrNotRecorded
	}
	if !r.submitted {
		return ErrNotExecuted
	}

	if timeout < 0 {
		timeout = common.NoTimeout
	}
	res, err := r.fence.Wait(timeout)
	if res == core1_0.VKTimeout {
		return ErrTimeout
	}
	if err != nil {
		return errors.Wrap(err, "waiting for command buffer")
	}
	return nil
}
