package vkdriver

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

// CreateCommandPool creates a pool on the graphics family whose buffers can
// be reset individually.
func (d *Driver) CreateCommandPool() (driver.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}, nil, &pool)
	if err := check("vkCreateCommandPool", ret); err != nil {
		return 0, err
	}
	return add(d, &d.pools, pool), nil
}

func (d *Driver) ResetCommandPool(p driver.CommandPool) error {
	pool, ok := lookup(d, &d.pools, p)
	if !ok {
		return badHandle("ResetCommandPool", p)
	}
	return check("vkResetCommandPool", vk.ResetCommandPool(d.device, pool, 0))
}

// DestroyCommandPool destroys the pool and frees its command buffers.
func (d *Driver) DestroyCommandPool(p driver.CommandPool) {
	pool, ok := take(d, &d.pools, p)
	if !ok {
		return
	}
	d.mu.Lock()
	for h, cb := range d.cmds.items {
		if cb.pool == p {
			delete(d.cmds.items, h)
		}
	}
	d.mu.Unlock()
	vk.DestroyCommandPool(d.device, pool, nil)
}

func (d *Driver) AllocateCommandBuffer(p driver.CommandPool) (driver.CommandBuffer, error) {
	pool, ok := lookup(d, &d.pools, p)
	if !ok {
		return 0, badHandle("AllocateCommandBuffer", p)
	}
	cmds := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if err := check("vkAllocateCommandBuffers", ret); err != nil {
		return 0, err
	}
	return add(d, &d.cmds, &cmdBuffer{vk: cmds[0], pool: p}), nil
}

func (d *Driver) BeginCommandBuffer(h driver.CommandBuffer, oneTime bool) error {
	cb, ok := lookup(d, &d.cmds, h)
	if !ok {
		return badHandle("BeginCommandBuffer", h)
	}
	var flags vk.CommandBufferUsageFlags
	if oneTime {
		flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb.vk, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}))
}

func (d *Driver) EndCommandBuffer(h driver.CommandBuffer) error {
	cb, ok := lookup(d, &d.cmds, h)
	if !ok {
		return badHandle("EndCommandBuffer", h)
	}
	return check("vkEndCommandBuffer", vk.EndCommandBuffer(cb.vk))
}

func (d *Driver) cmd(h driver.CommandBuffer) vk.CommandBuffer {
	return must(d, &d.cmds, h).vk
}

func (d *Driver) CmdPipelineBarrier(cb driver.CommandBuffer, src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	out := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		out[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccess(b.SrcAccess),
			DstAccessMask:       vkAccess(b.DstAccess),
			OldLayout:           vkLayout(b.OldLayout),
			NewLayout:           vkLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               must(d, &d.images, b.Image).vk,
			SubresourceRange:    vkSubresource(b.Range),
		}
	}
	vk.CmdPipelineBarrier(d.cmd(cb), vkStage(src), vkStage(dst), 0, 0, nil, 0, nil, uint32(len(out)), out)
}

func (d *Driver) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	out := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(d.cmd(cb), must(d, &d.buffers, src), must(d, &d.buffers, dst), uint32(len(out)), out)
}

func (d *Driver) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, layout driver.ImageLayout, regions []driver.BufferImageCopy) {
	out := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vkAspect(r.Aspect),
				MipLevel:       r.Mip,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			ImageExtent: vk.Extent3D{Width: r.Width, Height: r.Height, Depth: 1},
		}
	}
	vk.CmdCopyBufferToImage(d.cmd(cb), must(d, &d.buffers, src), must(d, &d.images, dst).vk, vkLayout(layout), uint32(len(out)), out)
}

func (d *Driver) CmdBlitImage(cb driver.CommandBuffer, src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, regions []driver.ImageBlit, filter driver.Filter) {
	out := make([]vk.ImageBlit, len(regions))
	for i, r := range regions {
		out[i] = vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vkAspect(r.Aspect),
				MipLevel:       r.SrcMip,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			SrcOffsets: [2]vk.Offset3D{{}, {X: int32(r.SrcWidth), Y: int32(r.SrcHeight), Z: 1}},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vkAspect(r.Aspect),
				MipLevel:       r.DstMip,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			DstOffsets: [2]vk.Offset3D{{}, {X: int32(r.DstWidth), Y: int32(r.DstHeight), Z: 1}},
		}
	}
	vk.CmdBlitImage(d.cmd(cb),
		must(d, &d.images, src).vk, vkLayout(srcLayout),
		must(d, &d.images, dst).vk, vkLayout(dstLayout),
		uint32(len(out)), out, vkFilter(filter))
}

func (d *Driver) CmdBeginRenderPass(cb driver.CommandBuffer, begin driver.RenderPassBegin) {
	rp := must(d, &d.passes, begin.RenderPass)
	clears := make([]vk.ClearValue, len(begin.Clear))
	for i, c := range begin.Clear {
		if i < rp.colors {
			clears[i] = vk.NewClearValue(c.Color[:])
		} else {
			clears[i] = vk.NewClearDepthStencil(c.Depth, c.Stencil)
		}
	}
	vk.CmdBeginRenderPass(d.cmd(cb), &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.vk,
		Framebuffer:     must(d, &d.framebufs, begin.Framebuffer),
		RenderArea:      vkRect(begin.Area),
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)
}

func (d *Driver) CmdEndRenderPass(cb driver.CommandBuffer) {
	vk.CmdEndRenderPass(d.cmd(cb))
}

func (d *Driver) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	vk.CmdBindPipeline(d.cmd(cb), vk.PipelineBindPointGraphics, must(d, &d.pipelines, p))
}

func (d *Driver) CmdBindDescriptorSets(cb driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	out := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		out[i] = must(d, &d.sets, s)
	}
	vk.CmdBindDescriptorSets(d.cmd(cb), vk.PipelineBindPointGraphics, must(d, &d.pipeLayouts, layout),
		firstSet, uint32(len(out)), out, 0, nil)
}

func (d *Driver) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	bufs := make([]vk.Buffer, len(buffers))
	offs := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		bufs[i] = must(d, &d.buffers, b)
		if i < len(offsets) {
			offs[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(d.cmd(cb), first, uint32(len(bufs)), bufs, offs)
}

func (d *Driver) CmdBindIndexBuffer(cb driver.CommandBuffer, b driver.Buffer, offset uint64, t driver.IndexType) {
	vk.CmdBindIndexBuffer(d.cmd(cb), must(d, &d.buffers, b), vk.DeviceSize(offset), vkIndexType(t))
}

func (d *Driver) CmdDraw(cb driver.CommandBuffer, vertices, instances, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.cmd(cb), vertices, instances, firstVertex, firstInstance)
}

func (d *Driver) CmdDrawIndexed(cb driver.CommandBuffer, indices, instances, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.cmd(cb), indices, instances, firstIndex, vertexOffset, firstInstance)
}

func (d *Driver) CmdSetViewport(cb driver.CommandBuffer, vp driver.Viewport) {
	vk.CmdSetViewport(d.cmd(cb), 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (d *Driver) CmdSetScissor(cb driver.CommandBuffer, r driver.Rect) {
	vk.CmdSetScissor(d.cmd(cb), 0, 1, []vk.Rect2D{vkRect(r)})
}

func (d *Driver) CmdPushConstants(cb driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.cmd(cb), must(d, &d.pipeLayouts, layout), vkShaderStages(stages),
		offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}
