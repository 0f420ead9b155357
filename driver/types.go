package driver

import "strconv"

// MemoryProperty describes a memory type.
type MemoryProperty uint32

const (
	MemoryDeviceLocal MemoryProperty = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

// Has reports whether every bit of want is set.
func (p MemoryProperty) Has(want MemoryProperty) bool { return p&want == want }

type MemoryType struct {
	Properties MemoryProperty
	Heap       uint32
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	// TypeBits has bit i set when memory type i may back the object.
	TypeBits uint32
}

// BufferUsage is a set of buffer usage bits.
type BufferUsage uint32

const (
	BufferTransferSrc BufferUsage = 1 << iota
	BufferTransferDst
	BufferUniform
	BufferStorage
	BufferIndex
	BufferVertex
	BufferIndirect
)

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
}

// ImageUsage is a set of image usage bits.
type ImageUsage uint32

const (
	ImageTransferSrc ImageUsage = 1 << iota
	ImageTransferDst
	ImageSampled
	ImageStorage
	ImageColorAttachment
	ImageDepthAttachment
)

// Format is a pixel format.
type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatRG8Unorm
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatD16Unorm
	FormatD32Float
	FormatD24UnormS8
)

// BytesPerPixel returns the texel size of f, 0 for FormatUndefined.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRG8Unorm, FormatD16Unorm:
		return 2
	case FormatRGBA8Unorm, FormatRGBA8Srgb, FormatBGRA8Unorm, FormatBGRA8Srgb, FormatD32Float, FormatD24UnormS8:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

// IsDepth reports whether f is a depth (or depth/stencil) format.
func (f Format) IsDepth() bool {
	return f == FormatD16Unorm || f == FormatD32Float || f == FormatD24UnormS8
}

// Aspect selects the planes of an image.
type Aspect uint32

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

type ImageDesc struct {
	Width, Height uint32
	MipLevels     uint32
	ArrayLayers   uint32
	Format        Format
	Usage         ImageUsage
	// CubeCompatible allows cube views of a 6-layer image.
	CubeCompatible bool
}

type ViewType uint32

const (
	View2D ViewType = iota
	View2DArray
	ViewCube
)

type SubresourceRange struct {
	Aspect     Aspect
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

type ImageViewDesc struct {
	Image  Image
	Type   ViewType
	Format Format
	Range  SubresourceRange
}

// ImageLayout is the driver-level image layout.
type ImageLayout uint32

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutDepthReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

// Access is a set of memory access bits.
type Access uint32

const (
	AccessNone        Access = 0
	AccessShaderRead  Access = 1 << iota
	AccessShaderWrite
	AccessColorRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostWrite
	AccessMemoryRead
)

// PipelineStage is a set of pipeline stage bits.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
	StageHost
	StageAllCommands
)

type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	Range     SubresourceRange
}

type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

type BufferImageCopy struct {
	BufferOffset  uint64
	Aspect        Aspect
	Mip           uint32
	BaseLayer     uint32
	LayerCount    uint32
	Width, Height uint32
}

type ImageBlit struct {
	Aspect              Aspect
	SrcMip, DstMip      uint32
	BaseLayer           uint32
	LayerCount          uint32
	SrcWidth, SrcHeight uint32
	DstWidth, DstHeight uint32
}

type Filter uint32

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode uint32

const (
	AddressRepeat AddressMode = iota
	AddressMirroredRepeat
	AddressClampToEdge
	AddressClampToBorder
)

type MipmapMode uint32

const (
	MipmapNearest MipmapMode = iota
	MipmapLinear
)

type SamplerDesc struct {
	MagFilter, MinFilter Filter
	Address              AddressMode
	Mipmap               MipmapMode
	MaxLod               float32
	Anisotropy           float32
}

type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	// WaitStages holds one stage per entry in Wait.
	WaitStages []PipelineStage
	Signal     []Semaphore
}

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = iota
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentImmediate PresentMode = iota
	PresentMailbox
	PresentFifo
	PresentFifoRelaxed
)

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount is 0 when unbounded.
	MaxImageCount uint32
	// CurrentWidth and CurrentHeight are ^uint32(0) when the surface size
	// is determined by the swapchain.
	CurrentWidth, CurrentHeight uint32
	MinWidth, MinHeight         uint32
	MaxWidth, MaxHeight         uint32
	Formats                     []SurfaceFormat
	PresentModes                []PresentMode
}

type SwapchainDesc struct {
	Surface       Surface
	ImageCount    uint32
	Format        SurfaceFormat
	Width, Height uint32
	PresentMode   PresentMode
	Old           Swapchain
}

type DescriptorType uint32

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorSampledImage
	DescriptorSampler
	DescriptorCombinedImageSampler
)

// ShaderStage is a set of shader stage bits.
type ShaderStage uint32

const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
	ShaderCompute

	ShaderGraphics = ShaderVertex | ShaderFragment
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorWrite writes either Images or Buffers starting at
// ArrayElement of Binding in Set.
type DescriptorWrite struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Images       []DescriptorImageInfo
	Buffers      []DescriptorBufferInfo
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type Topology uint32

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

type CullMode uint32

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexLayout describes a single interleaved vertex binding.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type PipelineDesc struct {
	Vertex, Fragment ShaderModule
	Layout           PipelineLayout
	RenderPass       RenderPass
	Vertices         VertexLayout
	Topology         Topology
	Cull             CullMode
	DepthTest        bool
	DepthWrite       bool
	Blend            bool
}

type LoadOp uint32

const (
	LoadClear LoadOp = iota
	LoadKeep
	LoadDontCare
)

type Attachment struct {
	Format Format
	Load   LoadOp
	// Layout is the layout the attachment is in when the pass begins and
	// is left in when it ends; the engine issues its own transitions.
	Layout ImageLayout
}

type RenderPassDesc struct {
	Color []Attachment
	// Depth is used when Depth.Format is not FormatUndefined.
	Depth Attachment
}

type FramebufferDesc struct {
	RenderPass    RenderPass
	Attachments   []ImageView
	Width, Height uint32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect
	Clear       []ClearValue
}

type IndexType uint32

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

// Limits are immutable implementation limits.
type Limits struct {
	MaxImageDimension2D    uint32
	MaxSamplerAnisotropy   float32
	MaxPushConstantsSize   uint32
	MaxBoundDescriptorSets uint32
	MinUniformAlignment    uint64
}

var layoutNames = [...]string{
	LayoutUndefined:       "undefined",
	LayoutGeneral:         "general",
	LayoutColorAttachment: "color-attachment",
	LayoutDepthAttachment: "depth-attachment",
	LayoutDepthReadOnly:   "depth-read-only",
	LayoutShaderReadOnly:  "shader-read-only",
	LayoutTransferSrc:     "transfer-src",
	LayoutTransferDst:     "transfer-dst",
	LayoutPresentSrc:      "present-src",
}

func (l ImageLayout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return "layout(" + strconv.Itoa(int(l)) + ")"
}
