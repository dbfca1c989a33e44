package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/record"
)

// CreateStagingBuffer creates a host-visible buffer of size bytes that stays
// mapped for its whole lifetime. Staging buffers are the source of initial
// content and the destination of downloads.
func (c *Core) CreateStagingBuffer(size int) (StagingBuffer, error) {
	if size <= 0 {
		return StagingBuffer{}, errors.Newf("staging buffer size %d", size)
	}

	buffer, block, err := c.allocator.Buffer(size, core1_0.BufferUsageTransferSrc|core1_0.BufferUsageTransferDst, memory.HostVisible)
	if err != nil {
		return StagingBuffer{}, err
	}

	return StagingBuffer{c.insert(&stagingRecord{buffer: buffer, block: block})}, nil
}

// Mapping returns the mapped contents of a staging buffer. The slice stays
// valid until the buffer is freed.
func (c *Core) Mapping(staging StagingBuffer) ([]byte, error) {
	r, err := lookup[*stagingRecord](c, staging.id)
	if err != nil {
		return nil, err
	}
	return r.block.Bytes(), nil
}

// CreateBuffer creates a device-local buffer. Initial content is copied in
// with a blocking one-time submission before CreateBuffer returns.
func (c *Core) CreateBuffer(config BufferConfig) (Buffer, error) {
	if config.Size <= 0 {
		return Buffer{}, errors.Newf("buffer size %d", config.Size)
	}
	if config.Usage == 0 {
		return Buffer{}, ErrUndefinedUsage
	}
	if len(config.Data) > config.Size {
		return Buffer{}, errors.Newf("%d bytes of content for a %d byte buffer", len(config.Data), config.Size)
	}

	var content *stagingRecord
	if !config.Content.IsZero() {
		var err error
		content, err = lookup[*stagingRecord](c, config.Content.id)
		if err != nil {
			return Buffer{}, errors.Wrap(err, "buffer content")
		}
		if content.block.Size < config.Size {
			return Buffer{}, errors.Newf("staging buffer of %d bytes cannot fill a %d byte buffer", content.block.Size, config.Size)
		}
	}

	buffer, block, err := c.allocator.Buffer(config.Size, config.Usage.native(), memory.DeviceLocal)
	if err != nil {
		return Buffer{}, err
	}

	r := &bufferRecord{buffer: buffer, block: block, size: config.Size, usage: config.Usage}
	switch {
	case content != nil:
		err = c.transfer(func(session *record.Session) {
			session.CopyBuffer(content.buffer, buffer, 0, 0, config.Size)
		})
	case len(config.Data) > 0:
		err = c.uploadData(buffer, config.Data)
	}
	if err != nil {
		r.release(c)
		return Buffer{}, errors.Wrap(err, "uploading buffer content")
	}

	return Buffer{c.insert(r)}, nil
}

// uploadData fills the start of buffer with data, inline when small enough
// and through a temporary staging buffer otherwise.
func (c *Core) uploadData(buffer core1_0.Buffer, data []byte) error {
	if memory.UploadPathFor(len(data), c.config.InlineUpdateLimit) == memory.UploadInline {
		return c.transfer(func(session *record.Session) {
			session.UpdateBuffer(buffer, 0, data)
		})
	}

	staging, block, err := c.allocator.Buffer(len(data), core1_0.BufferUsageTransferSrc, memory.HostVisible)
	if err != nil {
		return err
	}
	defer func() {
		staging.Destroy(nil)
		block.Free()
	}()

	copy(block.Bytes(), data)
	return c.transfer(func(session *record.Session) {
		session.CopyBuffer(staging, buffer, 0, 0, len(data))
	})
}

// BufferSize returns the size a buffer was created with.
func (c *Core) BufferSize(buffer Buffer) (int, error) {
	r, err := lookup[*bufferRecord](c, buffer.id)
	if err != nil {
		return 0, err
	}
	return r.size, nil
}
