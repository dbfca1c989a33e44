package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/gpucore/internal/handle"
)

// Free waits for the device to go idle and releases the given resources.
// Handles are invalid afterwards. Every resource is released even when some
// handles fail to resolve; the first such failure is returned.
func (c *Core) Free(resources ...Resource) error {
	_, err := c.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}

	var firstErr error
	byKind := make(map[resourceKind][]handle.ID)
	for _, resource := range resources {
		if resource == nil {
			continue
		}
		id := resource.handleID()
		r, ok := c.handles.Get(id)
		if !ok {
			if firstErr == nil {
				firstErr = errors.Wrapf(ErrInvalidHandle, "freeing handle %#x", uint64(id))
			}
			continue
		}
		byKind[r.kind()] = append(byKind[r.kind()], id)
	}

	for _, kind := range releaseOrder {
		for _, id := range byKind[kind] {
			r, ok := c.handles.Remove(id)
			if !ok {
				// freed twice in one call
				continue
			}
			r.release(c)
			c.log.WithFields(logrus.Fields{
				"kind":   kind.String(),
				"handle": uint64(id),
			}).Debug("freed")
		}
	}
	return firstErr
}
