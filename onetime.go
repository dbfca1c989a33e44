package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/record"
)

// submitSync are the semaphores a one-time submission waits on and signals.
type submitSync struct {
	waits   []core1_0.Semaphore
	stages  []core1_0.PipelineStageFlags
	signals []core1_0.Semaphore
}

func (c *Core) beginSingleTimeCommands(pool core1_0.CommandPool) (core1_0.CommandBuffer, *record.Session, error) {
	buffers, _, err := c.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "allocating one-time command buffer")
	}

	session, err := record.Open(buffers[0], false, core1_0.CommandBufferUsageOneTimeSubmit)
	if err != nil {
		c.device.FreeCommandBuffers(buffers)
		return nil, nil, err
	}
	return buffers[0], session, nil
}

func (c *Core) endSingleTimeCommands(queue core1_0.Queue, buffer core1_0.CommandBuffer, session *record.Session, sync submitSync) error {
	defer c.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})

	err := session.End()
	if err != nil {
		return err
	}

	_, err = queue.Submit(nil, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   sync.waits,
			WaitDstStageMask: sync.stages,
			CommandBuffers:   []core1_0.CommandBuffer{buffer},
			SignalSemaphores: sync.signals,
		},
	})
	if err != nil {
		return errors.Wrap(err, "submitting one-time commands")
	}

	_, err = queue.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for one-time commands")
	}
	return nil
}

// submitOnce records fn into a fresh command buffer from pool, submits it to
// queue and blocks until the queue is idle.
func (c *Core) submitOnce(queue core1_0.Queue, pool core1_0.CommandPool, sync submitSync, fn func(session *record.Session)) error {
	buffer, session, err := c.beginSingleTimeCommands(pool)
	if err != nil {
		return err
	}

	fn(session)
	return c.endSingleTimeCommands(queue, buffer, session, sync)
}

// transfer runs fn on the transfer queue. Only buffer commands may be
// recorded, since images belong to the graphics family.
func (c *Core) transfer(fn func(session *record.Session)) error {
	return c.submitOnce(c.transferQueue, c.transferPool, submitSync{}, fn)
}

// graphics runs fn on the graphics queue.
func (c *Core) graphics(fn func(session *record.Session)) error {
	return c.submitOnce(c.graphicsQueue, c.graphicsPool, submitSync{}, fn)
}
