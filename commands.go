package diesel

import (
	"github.com/andewx/diesel/driver"
)

// Stats are per-frame diagnostic counters.
type Stats struct {
	DrawCalls     int
	ShaderBinds   int
	MaterialBinds int
	DrawnIndices  int
}

// Commands records into one primary command buffer allocated from its own
// pool. Each frame slot owns one; the pool is reset as a whole when the
// slot comes around again.
type Commands struct {
	dev       *Device
	pool      driver.CommandPool
	cb        driver.CommandBuffer
	recording bool
	stats     Stats
}

func newCommands(d *Device) *Commands {
	pool, err := d.drv.CreateCommandPool()
	orPanic(err, "diesel: create command pool")
	cb, err := d.drv.AllocateCommandBuffer(pool)
	orPanic(err, "diesel: allocate command buffer")
	return &Commands{dev: d, pool: pool, cb: cb}
}

func (c *Commands) begin(oneTime bool) {
	orPanic(c.dev.drv.ResetCommandPool(c.pool), "diesel: reset command pool")
	orPanic(c.dev.drv.BeginCommandBuffer(c.cb, oneTime), "diesel: begin command buffer")
	c.recording = true
	c.ResetStats()
}

func (c *Commands) end() {
	if !c.recording {
		return
	}
	c.recording = false
	orPanic(c.dev.drv.EndCommandBuffer(c.cb), "diesel: end command buffer")
}

func (c *Commands) destroy() {
	c.dev.drv.DestroyCommandPool(c.pool)
}

// Handle returns the underlying command buffer.
func (c *Commands) Handle() driver.CommandBuffer { return c.cb }

// Recording reports whether commands may be recorded.
func (c *Commands) Recording() bool { return c.recording }

func (c *Commands) ResetStats()  { c.stats = Stats{} }
func (c *Commands) Stats() Stats { return c.stats }

func (c *Commands) CopyBuffer(src, dst driver.Buffer, regions ...driver.BufferCopy) {
	c.dev.drv.CmdCopyBuffer(c.cb, src, dst, regions)
}

func (c *Commands) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.ImageLayout, regions ...driver.BufferImageCopy) {
	c.dev.drv.CmdCopyBufferToImage(c.cb, src, dst, layout, regions)
}

func (c *Commands) Blit(src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, filter driver.Filter, regions ...driver.ImageBlit) {
	c.dev.drv.CmdBlitImage(c.cb, src, srcLayout, dst, dstLayout, regions, filter)
}

func (c *Commands) ImageBarrier(src, dst driver.PipelineStage, barriers ...driver.ImageBarrier) {
	c.dev.drv.CmdPipelineBarrier(c.cb, src, dst, barriers)
}

func (c *Commands) BeginRenderPass(begin driver.RenderPassBegin) {
	c.dev.drv.CmdBeginRenderPass(c.cb, begin)
}

func (c *Commands) EndRenderPass() {
	c.dev.drv.CmdEndRenderPass(c.cb)
}

// BindPipeline counts as a shader bind.
func (c *Commands) BindPipeline(p driver.Pipeline) {
	c.stats.ShaderBinds++
	c.dev.drv.CmdBindPipeline(c.cb, p)
}

func (c *Commands) BindDescriptorSets(layout driver.PipelineLayout, firstSet uint32, sets ...driver.DescriptorSet) {
	c.dev.drv.CmdBindDescriptorSets(c.cb, layout, firstSet, sets)
}

func (c *Commands) BindVertexBuffer(b driver.Buffer, offset uint64) {
	c.dev.drv.CmdBindVertexBuffers(c.cb, 0, []driver.Buffer{b}, []uint64{offset})
}

func (c *Commands) BindIndexBuffer(b driver.Buffer, offset uint64, t driver.IndexType) {
	c.dev.drv.CmdBindIndexBuffer(c.cb, b, offset, t)
}

func (c *Commands) Draw(vertices, instances uint32) {
	c.stats.DrawCalls++
	c.dev.drv.CmdDraw(c.cb, vertices, instances, 0, 0)
}

func (c *Commands) DrawIndexed(indices, instances, firstIndex uint32, vertexOffset int32) {
	c.stats.DrawCalls++
	c.stats.DrawnIndices += int(indices) * int(instances)
	c.dev.drv.CmdDrawIndexed(c.cb, indices, instances, firstIndex, vertexOffset, 0)
}

func (c *Commands) SetViewport(vp driver.Viewport) {
	c.dev.drv.CmdSetViewport(c.cb, vp)
}

func (c *Commands) SetScissor(r driver.Rect) {
	c.dev.drv.CmdSetScissor(c.cb, r)
}

func (c *Commands) PushConstants(layout driver.PipelineLayout, offset uint32, data []byte) {
	c.dev.drv.CmdPushConstants(c.cb, layout, driver.ShaderGraphics, offset, data)
}
