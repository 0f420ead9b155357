// Package driver defines the contract between the engine and a GPU API.
//
// Every object the engine creates is referred to by an opaque, typed
// handle. A zero handle is the null handle. Implementations live in
// sub-packages: vkdriver talks to Vulkan, soft is a host-memory reference
// implementation used by the tests and by headless tooling.
package driver

// Handle is the underlying representation of every driver handle.
type Handle uint64

type (
	Buffer              Handle
	Memory              Handle
	Image               Handle
	ImageView           Handle
	Sampler             Handle
	Fence               Handle
	Semaphore           Handle
	CommandPool         Handle
	CommandBuffer       Handle
	ShaderModule        Handle
	Pipeline            Handle
	PipelineLayout      Handle
	DescriptorSetLayout Handle
	DescriptorPool      Handle
	DescriptorSet       Handle
	RenderPass          Handle
	Framebuffer         Handle
	Swapchain           Handle
	Surface             Handle
)

// Infinite is the timeout used for every wait. There is no way to abort an
// in-flight submission.
const Infinite = ^uint64(0)

// Allocator creates and destroys memory-backed objects.
type Allocator interface {
	// MemoryTypes lists the memory types of the device. MemoryRequirements.TypeBits
	// indexes into this slice.
	MemoryTypes() []MemoryType

	CreateBuffer(desc BufferDesc) (Buffer, error)
	BufferRequirements(b Buffer) MemoryRequirements
	DestroyBuffer(b Buffer)

	CreateImage(desc ImageDesc) (Image, error)
	ImageRequirements(img Image) MemoryRequirements
	DestroyImage(img Image)

	CreateImageView(desc ImageViewDesc) (ImageView, error)
	DestroyImageView(v ImageView)

	AllocateMemory(size uint64, memoryType uint32) (Memory, error)
	BindBufferMemory(b Buffer, m Memory, offset uint64) error
	BindImageMemory(img Image, m Memory, offset uint64) error
	// MapMemory returns a slice aliasing size bytes of host-visible memory
	// starting at offset. The mapping stays valid until UnmapMemory.
	MapMemory(m Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(m Memory)
	FreeMemory(m Memory)

	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler)
}

// Recorder creates command buffers and records commands into them.
type Recorder interface {
	CreateCommandPool() (CommandPool, error)
	ResetCommandPool(p CommandPool) error
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffer(p CommandPool) (CommandBuffer, error)

	BeginCommandBuffer(cb CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb CommandBuffer) error

	CmdPipelineBarrier(cb CommandBuffer, src, dst PipelineStage, barriers []ImageBarrier)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout ImageLayout, regions []BufferImageCopy)
	CmdBlitImage(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageBlit, filter Filter)

	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, offset uint64, t IndexType)
	CmdDraw(cb CommandBuffer, vertices, instances, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indices, instances, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdSetViewport(cb CommandBuffer, vp Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
}

// Queue owns synchronization and the single graphics queue.
type Queue interface {
	CreateFence(signaled bool) (Fence, error)
	WaitFence(f Fence, timeout uint64) error
	ResetFence(f Fence) error
	DestroyFence(f Fence)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	// Submit submits one batch to the queue. Fence may be zero.
	Submit(info SubmitInfo, fence Fence) error
	WaitIdle() error
}

// Presenter owns swapchains for a platform surface.
type Presenter interface {
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)
	SwapchainImages(sc Swapchain) ([]Image, error)
	DestroySwapchain(sc Swapchain)
	// AcquireNextImage returns ErrOutOfDate when the swapchain must be rebuilt.
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, error)
	// Present returns ErrOutOfDate or ErrSuboptimal when the swapchain no
	// longer matches the surface.
	Present(sc Swapchain, index uint32, wait Semaphore) error
}

// Binder creates shader-facing state: modules, descriptors, pipelines and
// render passes.
type Binder interface {
	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(p DescriptorPool, l DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(sets []DescriptorSetLayout, push []PushConstantRange) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(desc PipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
}

// Driver is the full contract. Implementations are safe for concurrent
// use; the engine above them is not.
type Driver interface {
	Allocator
	Recorder
	Queue
	Presenter
	Binder

	// Name identifies the implementation in logs.
	Name() string
	// Limits reports the implementation limits, immutable for the lifetime
	// of the driver.
	Limits() Limits
	// Destroy releases the device. Every object must be destroyed first.
	Destroy()
}
