package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

var formats = map[driver.Format]vk.Format{
	driver.FormatUndefined:   vk.FormatUndefined,
	driver.FormatR8Unorm:     vk.FormatR8Unorm,
	driver.FormatRG8Unorm:    vk.FormatR8g8Unorm,
	driver.FormatRGBA8Unorm:  vk.FormatR8g8b8a8Unorm,
	driver.FormatRGBA8Srgb:   vk.FormatR8g8b8a8Srgb,
	driver.FormatBGRA8Unorm:  vk.FormatB8g8r8a8Unorm,
	driver.FormatBGRA8Srgb:   vk.FormatB8g8r8a8Srgb,
	driver.FormatRGBA16Float: vk.FormatR16g16b16a16Sfloat,
	driver.FormatRGBA32Float: vk.FormatR32g32b32a32Sfloat,
	driver.FormatD16Unorm:    vk.FormatD16Unorm,
	driver.FormatD32Float:    vk.FormatD32Sfloat,
	driver.FormatD24UnormS8:  vk.FormatD24UnormS8Uint,
}

func vkFormat(f driver.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// fromVkFormat reports false for formats the engine has no name for.
func fromVkFormat(f vk.Format) (driver.Format, bool) {
	for k, v := range formats {
		if v == f {
			return k, true
		}
	}
	return driver.FormatUndefined, false
}

func vkLayout(l driver.ImageLayout) vk.ImageLayout {
	switch l {
	case driver.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case driver.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LayoutDepthReadOnly:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case driver.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case driver.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// pair maps one driver bit onto its Vulkan counterpart.
type pair[D ~uint32] struct {
	from D
	to   uint32
}

// bits translates a driver bit set through a table of single-bit pairs.
func bits[D ~uint32](set D, table []pair[D]) uint32 {
	var out uint32
	for _, e := range table {
		if set&e.from != 0 {
			out |= e.to
		}
	}
	return out
}

var accessBits = []pair[driver.Access]{
	{driver.AccessShaderRead, uint32(vk.AccessShaderReadBit)},
	{driver.AccessShaderWrite, uint32(vk.AccessShaderWriteBit)},
	{driver.AccessColorRead, uint32(vk.AccessColorAttachmentReadBit)},
	{driver.AccessColorWrite, uint32(vk.AccessColorAttachmentWriteBit)},
	{driver.AccessDepthRead, uint32(vk.AccessDepthStencilAttachmentReadBit)},
	{driver.AccessDepthWrite, uint32(vk.AccessDepthStencilAttachmentWriteBit)},
	{driver.AccessTransferRead, uint32(vk.AccessTransferReadBit)},
	{driver.AccessTransferWrite, uint32(vk.AccessTransferWriteBit)},
	{driver.AccessHostWrite, uint32(vk.AccessHostWriteBit)},
	{driver.AccessMemoryRead, uint32(vk.AccessMemoryReadBit)},
}

func vkAccess(a driver.Access) vk.AccessFlags {
	return vk.AccessFlags(bits(a, accessBits))
}

var stageBits = []pair[driver.PipelineStage]{
	{driver.StageTopOfPipe, uint32(vk.PipelineStageTopOfPipeBit)},
	{driver.StageVertexShader, uint32(vk.PipelineStageVertexShaderBit)},
	{driver.StageFragmentShader, uint32(vk.PipelineStageFragmentShaderBit)},
	{driver.StageEarlyFragmentTests, uint32(vk.PipelineStageEarlyFragmentTestsBit)},
	{driver.StageLateFragmentTests, uint32(vk.PipelineStageLateFragmentTestsBit)},
	{driver.StageColorAttachmentOutput, uint32(vk.PipelineStageColorAttachmentOutputBit)},
	{driver.StageTransfer, uint32(vk.PipelineStageTransferBit)},
	{driver.StageBottomOfPipe, uint32(vk.PipelineStageBottomOfPipeBit)},
	{driver.StageHost, uint32(vk.PipelineStageHostBit)},
	{driver.StageAllCommands, uint32(vk.PipelineStageAllCommandsBit)},
}

func vkStage(s driver.PipelineStage) vk.PipelineStageFlags {
	if s == 0 {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	return vk.PipelineStageFlags(bits(s, stageBits))
}

var bufferUsageBits = []pair[driver.BufferUsage]{
	{driver.BufferTransferSrc, uint32(vk.BufferUsageTransferSrcBit)},
	{driver.BufferTransferDst, uint32(vk.BufferUsageTransferDstBit)},
	{driver.BufferUniform, uint32(vk.BufferUsageUniformBufferBit)},
	{driver.BufferStorage, uint32(vk.BufferUsageStorageBufferBit)},
	{driver.BufferIndex, uint32(vk.BufferUsageIndexBufferBit)},
	{driver.BufferVertex, uint32(vk.BufferUsageVertexBufferBit)},
	{driver.BufferIndirect, uint32(vk.BufferUsageIndirectBufferBit)},
}

func vkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	return vk.BufferUsageFlags(bits(u, bufferUsageBits))
}

var imageUsageBits = []pair[driver.ImageUsage]{
	{driver.ImageTransferSrc, uint32(vk.ImageUsageTransferSrcBit)},
	{driver.ImageTransferDst, uint32(vk.ImageUsageTransferDstBit)},
	{driver.ImageSampled, uint32(vk.ImageUsageSampledBit)},
	{driver.ImageStorage, uint32(vk.ImageUsageStorageBit)},
	{driver.ImageColorAttachment, uint32(vk.ImageUsageColorAttachmentBit)},
	{driver.ImageDepthAttachment, uint32(vk.ImageUsageDepthStencilAttachmentBit)},
}

func vkImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	return vk.ImageUsageFlags(bits(u, imageUsageBits))
}

var aspectBits = []pair[driver.Aspect]{
	{driver.AspectColor, uint32(vk.ImageAspectColorBit)},
	{driver.AspectDepth, uint32(vk.ImageAspectDepthBit)},
	{driver.AspectStencil, uint32(vk.ImageAspectStencilBit)},
}

func vkAspect(a driver.Aspect) vk.ImageAspectFlags {
	return vk.ImageAspectFlags(bits(a, aspectBits))
}

var shaderStageBits = []pair[driver.ShaderStage]{
	{driver.ShaderVertex, uint32(vk.ShaderStageVertexBit)},
	{driver.ShaderFragment, uint32(vk.ShaderStageFragmentBit)},
	{driver.ShaderCompute, uint32(vk.ShaderStageComputeBit)},
}

func vkShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	return vk.ShaderStageFlags(bits(s, shaderStageBits))
}

var memoryBits = []pair[driver.MemoryProperty]{
	{driver.MemoryDeviceLocal, uint32(vk.MemoryPropertyDeviceLocalBit)},
	{driver.MemoryHostVisible, uint32(vk.MemoryPropertyHostVisibleBit)},
	{driver.MemoryHostCoherent, uint32(vk.MemoryPropertyHostCoherentBit)},
	{driver.MemoryHostCached, uint32(vk.MemoryPropertyHostCachedBit)},
}

// fromVkMemory is the inverse of the memory property table.
func fromVkMemory(flags vk.MemoryPropertyFlags) driver.MemoryProperty {
	var out driver.MemoryProperty
	for _, e := range memoryBits {
		if uint32(flags)&e.to != 0 {
			out |= e.from
		}
	}
	return out
}

func vkSubresource(r driver.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vkAspect(r.Aspect),
		BaseMipLevel:   r.BaseMip,
		LevelCount:     r.MipCount,
		BaseArrayLayer: r.BaseLayer,
		LayerCount:     r.LayerCount,
	}
}

func vkFilter(f driver.Filter) vk.Filter {
	if f == driver.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func vkAddress(a driver.AddressMode) vk.SamplerAddressMode {
	switch a {
	case driver.AddressMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AddressClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case driver.AddressClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

func vkMipmap(m driver.MipmapMode) vk.SamplerMipmapMode {
	if m == driver.MipmapLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func vkDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	switch t {
	case driver.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	case driver.DescriptorSampler:
		return vk.DescriptorTypeSampler
	case driver.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func vkTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case driver.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case driver.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func vkCull(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func vkLoadOp(l driver.LoadOp) vk.AttachmentLoadOp {
	switch l {
	case driver.LoadKeep:
		return vk.AttachmentLoadOpLoad
	case driver.LoadDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpClear
}

var presentModes = map[driver.PresentMode]vk.PresentMode{
	driver.PresentImmediate:   vk.PresentModeImmediate,
	driver.PresentMailbox:     vk.PresentModeMailbox,
	driver.PresentFifo:        vk.PresentModeFifo,
	driver.PresentFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func vkPresentMode(m driver.PresentMode) vk.PresentMode {
	if v, ok := presentModes[m]; ok {
		return v
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(m vk.PresentMode) (driver.PresentMode, bool) {
	for k, v := range presentModes {
		if v == m {
			return k, true
		}
	}
	return driver.PresentFifo, false
}

func vkIndexType(t driver.IndexType) vk.IndexType {
	if t == driver.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func vkViewType(t driver.ViewType) vk.ImageViewType {
	switch t {
	case driver.View2DArray:
		return vk.ImageViewType2dArray
	case driver.ViewCube:
		return vk.ImageViewTypeCube
	}
	return vk.ImageViewType2d
}

func vkRect(r driver.Rect) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
}
