package gpucore

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/gpucore/internal/barrier"
	"github.com/vkngwrapper/gpucore/internal/descriptor"
	"github.com/vkngwrapper/gpucore/internal/handle"
	"github.com/vkngwrapper/gpucore/internal/pipeline"
)

// Handles are opaque references to resources owned by a Core. The zero
// value of every handle refers to nothing.
type (
	Shader        struct{ id handle.ID }
	Buffer        struct{ id handle.ID }
	StagingBuffer struct{ id handle.ID }
	Texture       struct{ id handle.ID }
	Window        struct{ id handle.ID }
	InputSet      struct{ id handle.ID }
	RenderPass    struct{ id handle.ID }
	ComputePass   struct{ id handle.ID }
	CommandBuffer struct{ id handle.ID }
)

func (h Shader) IsZero() bool        { return h.id.IsZero() }
func (h Buffer) IsZero() bool        { return h.id.IsZero() }
func (h StagingBuffer) IsZero() bool { return h.id.IsZero() }
func (h Texture) IsZero() bool       { return h.id.IsZero() }
func (h Window) IsZero() bool        { return h.id.IsZero() }
func (h InputSet) IsZero() bool      { return h.id.IsZero() }
func (h RenderPass) IsZero() bool    { return h.id.IsZero() }
func (h ComputePass) IsZero() bool   { return h.id.IsZero() }
func (h CommandBuffer) IsZero() bool { return h.id.IsZero() }

// Resource is any handle Free accepts.
type Resource interface {
	handleID() handle.ID
}

func (h Shader) handleID() handle.ID        { return h.id }
func (h Buffer) handleID() handle.ID        { return h.id }
func (h StagingBuffer) handleID() handle.ID { return h.id }
func (h Texture) handleID() handle.ID       { return h.id }
func (h Window) handleID() handle.ID        { return h.id }
func (h InputSet) handleID() handle.ID      { return h.id }
func (h RenderPass) handleID() handle.ID    { return h.id }
func (h ComputePass) handleID() handle.ID   { return h.id }
func (h CommandBuffer) handleID() handle.ID { return h.id }

// Pass is a RenderPass or a ComputePass.
type Pass interface {
	Resource
	isPass()
}

func (RenderPass) isPass()  {}
func (ComputePass) isPass() {}

type ShaderStage = pipeline.ShaderStage

const (
	StageVertex   = pipeline.StageVertex
	StageFragment = pipeline.StageFragment
	StageCompute  = pipeline.StageCompute
)

// BufferUsage flags declare how a buffer will be bound.
type BufferUsage uint32

const (
	UsageUniform BufferUsage = 1 << iota
	UsageStorage
	UsageVertex
	UsageIndex
	UsageIndirect
)

func (u BufferUsage) native() core1_0.BufferUsageFlags {
	// Every buffer can be the source and destination of copies.
	flags := core1_0.BufferUsageTransferSrc | core1_0.BufferUsageTransferDst
	if u&UsageUniform != 0 {
		flags |= core1_0.BufferUsageUniformBuffer
	}
	if u&UsageStorage != 0 {
		flags |= core1_0.BufferUsageStorageBuffer
	}
	if u&UsageVertex != 0 {
		flags |= core1_0.BufferUsageVertexBuffer
	}
	if u&UsageIndex != 0 {
		flags |= core1_0.BufferUsageIndexBuffer
	}
	if u&UsageIndirect != 0 {
		flags |= core1_0.BufferUsageIndirectBuffer
	}
	return flags
}

// BufferConfig describes a device-local buffer. Initial content comes from
// Content, a staging buffer copied whole, or from Data, a byte blob staged
// or recorded inline by the core. Content wins when both are set.
type BufferConfig struct {
	Size    int
	Usage   BufferUsage
	Content StagingBuffer
	Data    []byte
}

type IndexType int

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

func (t IndexType) native() core1_0.IndexType {
	if t == IndexUint32 {
		return core1_0.IndexTypeUInt32
	}
	return core1_0.IndexTypeUInt16
}

// Format is a texel format.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA8SRGB
	FormatBGRA8
	FormatRGBA16F
	FormatRGBA32F
	FormatR32F
)

var formats = map[Format]struct {
	native core1_0.Format
	size   int
}{
	FormatRGBA8:     {core1_0.FormatR8G8B8A8UnsignedNormalized, 4},
	FormatRGBA8SRGB: {core1_0.FormatR8G8B8A8SRGB, 4},
	FormatBGRA8:     {core1_0.FormatB8G8R8A8UnsignedNormalized, 4},
	FormatRGBA16F:   {core1_0.FormatR16G16B16A16SignedFloat, 8},
	FormatRGBA32F:   {core1_0.FormatR32G32B32A32SignedFloat, 16},
	FormatR32F:      {core1_0.FormatR32SignedFloat, 4},
}

// TexelSize returns the size of one texel in bytes.
func (f Format) TexelSize() int {
	return formats[f].size
}

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

func (f Filter) native() core1_0.Filter {
	if f == FilterNearest {
		return core1_0.FilterNearest
	}
	return core1_0.FilterLinear
}

type AddressMode int

const (
	AddressRepeat AddressMode = iota
	AddressMirroredRepeat
	AddressClampToEdge
	AddressClampToBorder
)

func (m AddressMode) native() core1_0.SamplerAddressMode {
	switch m {
	case AddressMirroredRepeat:
		return core1_0.SamplerAddressModeMirroredRepeat
	case AddressClampToEdge:
		return core1_0.SamplerAddressModeClampToEdge
	case AddressClampToBorder:
		return core1_0.SamplerAddressModeClampToBorder
	}
	return core1_0.SamplerAddressModeRepeat
}

type SamplerConfig struct {
	MinFilter Filter
	MagFilter Filter
	AddressU  AddressMode
	AddressV  AddressMode
}

// TextureUsage flags declare how a texture will be used. Textures can always
// be uploaded to; downloads need transfer source support from the format.
type TextureUsage uint32

const (
	TextureSampled TextureUsage = 1 << iota
	TextureStorage
	TextureRenderTarget
)

// TextureConfig describes a 2D device texture. A texture created without
// content rests in the general layout with undefined texels.
type TextureConfig struct {
	Width   int
	Height  int
	Format  Format
	Usage   TextureUsage
	Sampler SamplerConfig
	Content StagingBuffer
	Data    []byte
}

// BindingType is the declared type of an input slot.
type BindingType = descriptor.SlotType

const (
	BindingUniformBuffer         = descriptor.SlotUniformBuffer
	BindingStorageBuffer         = descriptor.SlotStorageBuffer
	BindingSampler               = descriptor.SlotSampler
	BindingStorageImage          = descriptor.SlotStorageImage
	BindingAccelerationStructure = descriptor.SlotAccelerationStructure
)

// BindingLayout declares one slot of a set; Count > 1 declares an array.
type BindingLayout = descriptor.Binding

// SetLayout declares the slots of one input set.
type SetLayout = descriptor.SetLayout

// InputLayout declares every set a pass reads, by set index.
type InputLayout struct {
	Sets []SetLayout
}

type (
	VertexFormat    = pipeline.VertexFormat
	VertexAttribute = pipeline.VertexAttribute
	VertexBinding   = pipeline.VertexBinding
	VertexLayout    = pipeline.VertexLayout
)

const (
	VertexFloat      = pipeline.VertexFloat
	VertexFloat2     = pipeline.VertexFloat2
	VertexFloat3     = pipeline.VertexFloat3
	VertexFloat4     = pipeline.VertexFloat4
	VertexUByte4Norm = pipeline.VertexUByte4Norm
	VertexUInt       = pipeline.VertexUInt
	VertexInt        = pipeline.VertexInt
)

type (
	Topology    = pipeline.Topology
	Winding     = pipeline.Winding
	CullMode    = pipeline.CullMode
	FillMode    = pipeline.FillMode
	CompareOp   = pipeline.CompareOp
	BlendMode   = pipeline.BlendMode
	ClearPolicy = pipeline.ClearPolicy
)

const (
	TopologyTriangleList  = pipeline.TopologyTriangleList
	TopologyTriangleStrip = pipeline.TopologyTriangleStrip
	TopologyLineList      = pipeline.TopologyLineList
	TopologyLineStrip     = pipeline.TopologyLineStrip
	TopologyPointList     = pipeline.TopologyPointList

	WindingCounterClockwise = pipeline.WindingCounterClockwise
	WindingClockwise        = pipeline.WindingClockwise

	CullNone  = pipeline.CullNone
	CullBack  = pipeline.CullBack
	CullFront = pipeline.CullFront

	FillSolid     = pipeline.FillSolid
	FillWireframe = pipeline.FillWireframe

	CompareIgnore       = pipeline.CompareIgnore
	CompareNever        = pipeline.CompareNever
	CompareLess         = pipeline.CompareLess
	CompareEqual        = pipeline.CompareEqual
	CompareLessEqual    = pipeline.CompareLessEqual
	CompareGreater      = pipeline.CompareGreater
	CompareNotEqual     = pipeline.CompareNotEqual
	CompareGreaterEqual = pipeline.CompareGreaterEqual
	CompareAlways       = pipeline.CompareAlways

	BlendNone          = pipeline.BlendNone
	BlendAlpha         = pipeline.BlendAlpha
	BlendAdditive      = pipeline.BlendAdditive
	BlendPremultiplied = pipeline.BlendPremultiplied

	ClearNone  = pipeline.ClearNone
	ClearColor = pipeline.ClearColor
	ClearDepth = pipeline.ClearDepth
	ClearAll   = pipeline.ClearAll
)

// RenderTarget is what a render pass draws into: TargetTexture,
// TargetWindow or TargetTextures.
type RenderTarget interface {
	isRenderTarget()
}

// TargetTexture renders into one texture.
type TargetTexture struct {
	Texture Texture
}

// TargetWindow renders into the backbuffers of a window.
type TargetWindow struct {
	Window Window
}

// TargetTextures renders into several textures of the same size at once,
// one color attachment per texture.
type TargetTextures struct {
	Textures []Texture
}

func (TargetTexture) isRenderTarget()  {}
func (TargetWindow) isRenderTarget()   {}
func (TargetTextures) isRenderTarget() {}

// RenderPassConfig describes a graphics pass. Shaders must be exactly one
// vertex and one fragment shader.
type RenderPassConfig struct {
	Shaders []Shader
	Target  RenderTarget
	Inputs  InputLayout
	Vertex  VertexLayout

	Topology     Topology
	Winding      Winding
	Cull         CullMode
	Fill         FillMode
	DepthCompare CompareOp
	DepthWrite   bool
	Blend        BlendMode

	Clear      ClearPolicy
	ClearValue [4]float32
}

// ComputePassConfig describes a compute pass. Shaders must be exactly one
// compute shader.
type ComputePassConfig struct {
	Shaders []Shader
	Inputs  InputLayout
}

// Binding binds a buffer or a texture to one slot element of an input set.
type Binding struct {
	Slot    int
	Element int
	Buffer  Buffer
	Texture Texture
}

// InputSetConfig describes the resources bound to one set of a pass.
type InputSetConfig struct {
	Pass     Pass
	Set      int
	Bindings []Binding
}

// Stage is an abstract point in GPU execution used to order barriers.
type Stage = barrier.Stage

const (
	StageTopOfPipe             = barrier.StageTopOfPipe
	StageDrawIndirect          = barrier.StageDrawIndirect
	StageVertexInput           = barrier.StageVertexInput
	StageVertexShader          = barrier.StageVertexShader
	StageFragmentShader        = barrier.StageFragmentShader
	StageColorAttachmentOutput = barrier.StageColorAttachmentOutput
	StageComputeShader         = barrier.StageComputeShader
	StageTransfer              = barrier.StageTransfer
	StageBottomOfPipe          = barrier.StageBottomOfPipe
)
