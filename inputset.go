package gpucore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/gpucore/internal/descriptor"
)

func (c *Core) resolvePass(pass Pass) (*passLayout, error) {
	switch pass := pass.(type) {
	case RenderPass:
		r, err := lookup[*renderPassRecord](c, pass.id)
		if err != nil {
			return nil, err
		}
		return &r.passLayout, nil
	case ComputePass:
		r, err := lookup[*computePassRecord](c, pass.id)
		if err != nil {
			return nil, err
		}
		return &r.passLayout, nil
	}
	return nil, errors.Wrap(ErrInvalidHandle, "no pass given")
}

func (c *Core) bindingResource(binding Binding) (descriptor.Resource, error) {
	resource := descriptor.Resource{Slot: binding.Slot, Element: binding.Element}
	switch {
	case !binding.Buffer.IsZero() && !binding.Texture.IsZero():
		return resource, errors.Newf("slot %d binds both a buffer and a texture", binding.Slot)
	case !binding.Buffer.IsZero():
		r, err := lookup[*bufferRecord](c, binding.Buffer.id)
		if err != nil {
			return resource, err
		}
		resource.Kind = descriptor.ResourceBuffer
		resource.Buffer = r.buffer
		resource.Size = r.size
		resource.Storage = r.usage&UsageStorage != 0
	case !binding.Texture.IsZero():
		r, err := lookup[*textureRecord](c, binding.Texture.id)
		if err != nil {
			return resource, err
		}
		resource.Kind = descriptor.ResourceTexture
		resource.View = r.view
		resource.Sampler = r.sampler
	default:
		return resource, errors.Wrapf(ErrInvalidHandle, "slot %d binds nothing", binding.Slot)
	}
	return resource, nil
}

// CreateInputSet binds resources to one set of a pass. The set gets its own
// descriptor pool sized for exactly these bindings.
func (c *Core) CreateInputSet(config InputSetConfig) (InputSet, error) {
	layout, err := c.resolvePass(config.Pass)
	if err != nil {
		return InputSet{}, err
	}

	setLayout, native, err := layout.setLayout(config.Set)
	if err != nil {
		return InputSet{}, err
	}

	resources := make([]descriptor.Resource, 0, len(config.Bindings))
	for _, binding := range config.Bindings {
		resource, err := c.bindingResource(binding)
		if err != nil {
			return InputSet{}, errors.Wrapf(err, "set %d", config.Set)
		}
		resources = append(resources, resource)
	}

	pool, set, err := descriptor.Bind(c.device, setLayout, native, resources)
	if err != nil {
		return InputSet{}, err
	}

	return InputSet{c.insert(&inputSetRecord{
		pool:     pool,
		set:      set,
		pass:     config.Pass.handleID(),
		setIndex: config.Set,
	})}, nil
}
