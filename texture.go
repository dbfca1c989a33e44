package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/memory"
	"github.com/vkngwrapper/gpucore/internal/record"
)

// formatFeatureTransferSrc is VK_FORMAT_FEATURE_TRANSFER_SRC_BIT, core in
// Vulkan 1.1. Devices reporting 1.0 are assumed to support it.
const formatFeatureTransferSrc core1_0.FormatFeatureFlags = 0x00004000

func (c *Core) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := c.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating image view")
	}
	return imageView, nil
}

func (c *Core) createSampler(config SamplerConfig) (core1_0.Sampler, error) {
	sampler, _, err := c.device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    config.MagFilter.native(),
		MinFilter:    config.MinFilter.native(),
		AddressModeU: config.AddressU.native(),
		AddressModeV: config.AddressV.native(),
		AddressModeW: config.AddressU.native(),

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating sampler")
	}
	return sampler, nil
}

// textureCapabilities checks the optimal tiling features of format against
// usage. Sampled and storage support are required. Render target and
// download support are dropped with a warning when missing.
func (c *Core) textureCapabilities(format Format, usage TextureUsage) (renderable, downloadable bool, err error) {
	native := formats[format].native
	features := c.physicalDevice.FormatProperties(native).OptimalTilingFeatures

	if usage&TextureSampled != 0 && features&core1_0.FormatFeatureSampledImage == 0 {
		return false, false, errors.Wrapf(ErrFormatUnsupported, "%v cannot be sampled", native)
	}
	if usage&TextureStorage != 0 && features&core1_0.FormatFeatureStorageImage == 0 {
		return false, false, errors.Wrapf(ErrFormatUnsupported, "%v cannot be a storage image", native)
	}

	entry := c.log.WithField("format", native)
	renderable = usage&TextureRenderTarget != 0
	if renderable && features&core1_0.FormatFeatureColorAttachment == 0 {
		entry.Warn("format cannot be a color attachment, render target usage dropped")
		renderable = false
	}

	downloadable = true
	if c.apiVersion.IsAtLeast(common.Vulkan1_1) && features&formatFeatureTransferSrc == 0 {
		entry.Warn("format cannot be a transfer source, downloads disabled")
		downloadable = false
	}

	return renderable, downloadable, nil
}

// CreateTexture creates a 2D texture. Without content the texture rests in
// the general layout with undefined texels.
func (c *Core) CreateTexture(config TextureConfig) (Texture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return Texture{}, errors.Newf("texture extent %dx%d", config.Width, config.Height)
	}
	nativeFormat, ok := formats[config.Format]
	if !ok {
		return Texture{}, errors.Wrapf(ErrFormatUnsupported, "unknown format %d", config.Format)
	}
	if config.Usage == 0 {
		config.Usage = TextureSampled
	}

	contentSize := config.Width * config.Height * nativeFormat.size
	var content *stagingRecord
	if !config.Content.IsZero() {
		var err error
		content, err = lookup[*stagingRecord](c, config.Content.id)
		if err != nil {
			return Texture{}, errors.Wrap(err, "texture content")
		}
		if content.block.Size < contentSize {
			return Texture{}, errors.Newf("staging buffer of %d bytes cannot fill %d texture bytes", content.block.Size, contentSize)
		}
	} else if len(config.Data) > 0 && len(config.Data) != contentSize {
		return Texture{}, errors.Newf("%d bytes of content for %d texture bytes", len(config.Data), contentSize)
	}

	renderable, downloadable, err := c.textureCapabilities(config.Format, config.Usage)
	if err != nil {
		return Texture{}, err
	}

	usage := core1_0.ImageUsageTransferDst
	if downloadable {
		usage |= core1_0.ImageUsageTransferSrc
	}
	if config.Usage&TextureSampled != 0 {
		usage |= core1_0.ImageUsageSampled
	}
	if config.Usage&TextureStorage != 0 {
		usage |= core1_0.ImageUsageStorage
	}
	if renderable {
		usage |= core1_0.ImageUsageColorAttachment
	}

	r := &textureRecord{
		extent:       core1_0.Extent2D{Width: config.Width, Height: config.Height},
		format:       config.Format,
		usage:        config.Usage,
		renderable:   renderable,
		downloadable: downloadable,
	}
	r.image, r.block, err = c.allocator.Image2D(config.Width, config.Height, nativeFormat.native, usage)
	if err != nil {
		return Texture{}, err
	}

	err = c.initTexture(r, config, content, contentSize)
	if err != nil {
		r.release(c)
		return Texture{}, err
	}

	return Texture{c.insert(r)}, nil
}

func (c *Core) initTexture(r *textureRecord, config TextureConfig, content *stagingRecord, contentSize int) error {
	var err error
	r.view, err = c.createImageView(r.image, formats[config.Format].native, core1_0.ImageAspectColor)
	if err != nil {
		return err
	}

	r.sampler, err = c.createSampler(config.Sampler)
	if err != nil {
		return err
	}

	var source core1_0.Buffer
	switch {
	case content != nil:
		source = content.buffer
	case len(config.Data) > 0:
		staging, block, err := c.allocator.Buffer(contentSize, core1_0.BufferUsageTransferSrc, memory.HostVisible)
		if err != nil {
			return err
		}
		defer func() {
			staging.Destroy(nil)
			block.Free()
		}()

		copy(block.Bytes(), config.Data)
		source = staging
	}

	return c.graphics(func(session *record.Session) {
		if source != nil {
			session.CopyBufferToImage(source, r.image, r.extent, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutGeneral)
			return
		}
		session.TransitionImage(r.image, core1_0.ImageAspectColor, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutGeneral)
	})
}

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}

// depthTransitionAspect covers every aspect of a depth format. Combined
// depth/stencil formats must transition both aspects together.
func depthTransitionAspect(format core1_0.Format) core1_0.ImageAspectFlags {
	if hasStencilComponent(format) {
		return core1_0.ImageAspectDepth | core1_0.ImageAspectStencil
	}
	return core1_0.ImageAspectDepth
}

// createDepth creates a depth image of the given extent in the depth
// attachment layout.
func (c *Core) createDepth(extent core1_0.Extent2D) (*depthImage, error) {
	image, block, err := c.allocator.Image2D(extent.Width, extent.Height, c.depthFormat, core1_0.ImageUsageDepthStencilAttachment)
	if err != nil {
		return nil, err
	}

	depth := &depthImage{image: image, block: block}
	depth.view, err = c.createImageView(image, c.depthFormat, core1_0.ImageAspectDepth)
	if err != nil {
		image.Destroy(nil)
		block.Free()
		return nil, err
	}

	err = c.graphics(func(session *record.Session) {
		session.TransitionImage(image, depthTransitionAspect(c.depthFormat), core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal)
	})
	if err != nil {
		depth.destroy()
		return nil, err
	}
	return depth, nil
}

// ensureDepth creates the depth pair of a render target texture the first
// time it is rendered to. The pair lives as long as the texture.
func (c *Core) ensureDepth(r *textureRecord) (*depthImage, error) {
	if r.depth != nil {
		return r.depth, nil
	}

	depth, err := c.createDepth(r.extent)
	if err != nil {
		return nil, err
	}
	r.depth = depth
	c.log.WithFields(logrus.Fields{
		"width":  r.extent.Width,
		"height": r.extent.Height,
	}).Debug("created depth pair")
	return depth, nil
}

// TextureExtent returns the width and height of a texture.
func (c *Core) TextureExtent(texture Texture) (int, int, error) {
	r, err := lookup[*textureRecord](c, texture.id)
	if err != nil {
		return 0, 0, err
	}
	return r.extent.Width, r.extent.Height, nil
}
