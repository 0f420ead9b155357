package soft

import (
	"github.com/andewx/diesel/driver"
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
)

// op is one recorded command, replayed with d.mu held.
type op func(d *Driver) error

type pool struct {
	buffers []driver.CommandBuffer
}

type cmdBuffer struct {
	pool    driver.CommandPool
	state   cbState
	oneTime bool
	inPass  bool
	ops     []op
	// err is the first recording error; End reports it.
	err error
}

func (d *Driver) CreateCommandPool() (driver.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.CommandPool(d.newHandle("command pool"))
	d.pools[h] = &pool{}
	return h, nil
}

func (d *Driver) ResetCommandPool(p driver.CommandPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	pl := d.pools[p]
	if pl == nil {
		return badHandle("soft.ResetCommandPool", p)
	}
	for _, h := range pl.buffers {
		if cb := d.cmds[h]; cb != nil {
			*cb = cmdBuffer{pool: p}
		}
	}
	return nil
}

func (d *Driver) DestroyCommandPool(p driver.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pl := d.pools[p]; pl != nil {
		for _, h := range pl.buffers {
			delete(d.cmds, h)
			d.drop(driver.Handle(h))
		}
	}
	delete(d.pools, p)
	d.drop(driver.Handle(p))
}

func (d *Driver) AllocateCommandBuffer(p driver.CommandPool) (driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pl := d.pools[p]
	if pl == nil {
		return 0, badHandle("soft.AllocateCommandBuffer", p)
	}
	h := driver.CommandBuffer(d.newHandle("command buffer"))
	d.cmds[h] = &cmdBuffer{pool: p}
	pl.buffers = append(pl.buffers, h)
	return h, nil
}

func (d *Driver) BeginCommandBuffer(h driver.CommandBuffer, oneTime bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return badHandle("soft.BeginCommandBuffer", h)
	}
	if cb.state == cbRecording {
		return invalid("soft.BeginCommandBuffer", "command buffer %d is already recording", h)
	}
	*cb = cmdBuffer{pool: cb.pool, state: cbRecording, oneTime: oneTime}
	return nil
}

func (d *Driver) EndCommandBuffer(h driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return badHandle("soft.EndCommandBuffer", h)
	}
	if cb.state != cbRecording {
		return invalid("soft.EndCommandBuffer", "command buffer %d is not recording", h)
	}
	if cb.inPass {
		return invalid("soft.EndCommandBuffer", "render pass still open")
	}
	if cb.err != nil {
		return cb.err
	}
	cb.state = cbExecutable
	return nil
}

// record appends o to h, or remembers why it could not.
func (d *Driver) record(h driver.CommandBuffer, name string, o op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return
	}
	if cb.state != cbRecording {
		if cb.err == nil {
			cb.err = invalid(name, "command buffer %d is not recording", h)
		}
		return
	}
	cb.ops = append(cb.ops, o)
}

func (d *Driver) CmdPipelineBarrier(cb driver.CommandBuffer, src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	barriers = append([]driver.ImageBarrier(nil), barriers...)
	d.record(cb, "soft.CmdPipelineBarrier", func(d *Driver) error {
		d.counters.Barriers++
		for _, b := range barriers {
			img := d.images[b.Image]
			if img == nil {
				return badHandle("soft.CmdPipelineBarrier", b.Image)
			}
			if !img.contains(b.Range) {
				return invalid("soft.CmdPipelineBarrier", "range %+v outside image %d", b.Range, b.Image)
			}
			for l := b.Range.BaseLayer; l < b.Range.BaseLayer+b.Range.LayerCount; l++ {
				for m := b.Range.BaseMip; m < b.Range.BaseMip+b.Range.MipCount; m++ {
					cur := img.layouts[l][m]
					if b.OldLayout != driver.LayoutUndefined && cur != b.OldLayout {
						return invalid("soft.CmdPipelineBarrier", "image %d layer %d mip %d is %v, barrier expects %v",
							b.Image, l, m, cur, b.OldLayout)
					}
					img.layouts[l][m] = b.NewLayout
				}
			}
		}
		return nil
	})
}

func (d *Driver) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	regions = append([]driver.BufferCopy(nil), regions...)
	d.record(cb, "soft.CmdCopyBuffer", func(d *Driver) error {
		s, t := d.buffers[src], d.buffers[dst]
		if s == nil || t == nil || s.mem == nil || t.mem == nil {
			return badHandle("soft.CmdCopyBuffer", src)
		}
		for _, r := range regions {
			if r.SrcOffset+r.Size > s.desc.Size || r.DstOffset+r.Size > t.desc.Size {
				return invalid("soft.CmdCopyBuffer", "region %+v out of bounds", r)
			}
			copy(t.bytes()[r.DstOffset:r.DstOffset+r.Size], s.bytes()[r.SrcOffset:r.SrcOffset+r.Size])
		}
		return nil
	})
}

func (d *Driver) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, layout driver.ImageLayout, regions []driver.BufferImageCopy) {
	regions = append([]driver.BufferImageCopy(nil), regions...)
	d.record(cb, "soft.CmdCopyBufferToImage", func(d *Driver) error {
		const name = "soft.CmdCopyBufferToImage"
		buf, img := d.buffers[src], d.images[dst]
		if buf == nil || img == nil || buf.mem == nil {
			return badHandle(name, dst)
		}
		if img.mem == nil && !img.swapchain {
			return invalid(name, "image %d has no memory bound", dst)
		}
		if layout != driver.LayoutTransferDst && layout != driver.LayoutGeneral {
			return invalid(name, "destination layout %v", layout)
		}
		bpp := img.desc.Format.BytesPerPixel()
		data := buf.bytes()
		for _, r := range regions {
			if !img.contains(driver.SubresourceRange{BaseMip: r.Mip, MipCount: 1, BaseLayer: r.BaseLayer, LayerCount: r.LayerCount}) {
				return invalid(name, "region %+v outside image", r)
			}
			mw, mh := mipExtent(img.desc.Width, img.desc.Height, r.Mip)
			if r.Width > mw || r.Height > mh {
				return invalid(name, "region %dx%d exceeds mip %d extent %dx%d", r.Width, r.Height, r.Mip, mw, mh)
			}
			row := int(r.Width) * bpp
			layerBytes := uint64(row) * uint64(r.Height)
			if r.BufferOffset+layerBytes*uint64(r.LayerCount) > uint64(len(data)) {
				return invalid(name, "region %+v reads past the end of buffer %d", r, src)
			}
			off := r.BufferOffset
			for l := r.BaseLayer; l < r.BaseLayer+r.LayerCount; l++ {
				if cur := img.layouts[l][r.Mip]; cur != layout {
					return invalid(name, "image %d layer %d mip %d is %v, copy expects %v", dst, l, r.Mip, cur, layout)
				}
				texels := img.texels[l][r.Mip]
				for y := 0; y < int(r.Height); y++ {
					copy(texels[y*int(mw)*bpp:y*int(mw)*bpp+row], data[off+uint64(y*row):])
				}
				off += layerBytes
			}
		}
		return nil
	})
}

func (d *Driver) CmdBlitImage(cb driver.CommandBuffer, src driver.Image, srcLayout driver.ImageLayout, dst driver.Image, dstLayout driver.ImageLayout, regions []driver.ImageBlit, filter driver.Filter) {
	regions = append([]driver.ImageBlit(nil), regions...)
	d.record(cb, "soft.CmdBlitImage", func(d *Driver) error {
		const name = "soft.CmdBlitImage"
		s, t := d.images[src], d.images[dst]
		if s == nil || t == nil {
			return badHandle(name, src)
		}
		if s.desc.Format != t.desc.Format {
			return invalid(name, "format conversion is not supported")
		}
		bpp := s.desc.Format.BytesPerPixel()
		linear := filter == driver.FilterLinear && byteChannels(s.desc.Format)
		for _, r := range regions {
			for l := r.BaseLayer; l < r.BaseLayer+r.LayerCount; l++ {
				if !s.contains(driver.SubresourceRange{BaseMip: r.SrcMip, MipCount: 1, BaseLayer: l, LayerCount: 1}) ||
					!t.contains(driver.SubresourceRange{BaseMip: r.DstMip, MipCount: 1, BaseLayer: l, LayerCount: 1}) {
					return invalid(name, "region %+v outside image", r)
				}
				if cur := s.layouts[l][r.SrcMip]; cur != srcLayout || srcLayout != driver.LayoutTransferSrc {
					return invalid(name, "source layer %d mip %d is %v, blit expects %v", l, r.SrcMip, cur, driver.LayoutTransferSrc)
				}
				if cur := t.layouts[l][r.DstMip]; cur != dstLayout || dstLayout != driver.LayoutTransferDst {
					return invalid(name, "destination layer %d mip %d is %v, blit expects %v", l, r.DstMip, cur, driver.LayoutTransferDst)
				}
				sw, sh := mipExtent(s.desc.Width, s.desc.Height, r.SrcMip)
				tw, th := mipExtent(t.desc.Width, t.desc.Height, r.DstMip)
				if r.SrcWidth != sw || r.SrcHeight != sh || r.DstWidth != tw || r.DstHeight != th {
					return invalid(name, "partial blits are not supported: %+v", r)
				}
				scale(s.texels[l][r.SrcMip], sw, sh, t.texels[l][r.DstMip], tw, th, bpp, linear)
			}
		}
		d.counters.Blits++
		return nil
	})
}

func (d *Driver) CmdBeginRenderPass(h driver.CommandBuffer, begin driver.RenderPassBegin) {
	d.mu.Lock()
	if cb := d.cmds[h]; cb != nil && cb.state == cbRecording {
		if cb.inPass && cb.err == nil {
			cb.err = invalid("soft.CmdBeginRenderPass", "render pass already open")
		}
		cb.inPass = true
	}
	d.mu.Unlock()
	d.record(h, "soft.CmdBeginRenderPass", func(d *Driver) error {
		const name = "soft.CmdBeginRenderPass"
		rp, ok := d.passes[begin.RenderPass]
		if !ok {
			return badHandle(name, begin.RenderPass)
		}
		fb, ok := d.framebufs[begin.Framebuffer]
		if !ok {
			return badHandle(name, begin.Framebuffer)
		}
		atts := append([]driver.Attachment(nil), rp.Color...)
		if rp.Depth.Format != driver.FormatUndefined {
			atts = append(atts, rp.Depth)
		}
		if len(atts) != len(fb.Attachments) {
			return invalid(name, "framebuffer has %d attachments, pass needs %d", len(fb.Attachments), len(atts))
		}
		for i, a := range atts {
			v := d.views[fb.Attachments[i]]
			if v == nil {
				return badHandle(name, fb.Attachments[i])
			}
			img := d.images[v.desc.Image]
			if img == nil {
				return badHandle(name, v.desc.Image)
			}
			r := v.desc.Range
			if cur := img.layouts[r.BaseLayer][r.BaseMip]; cur != a.Layout {
				return invalid(name, "attachment %d is %v, pass expects %v", i, cur, a.Layout)
			}
			if a.Load == driver.LoadClear && i < len(begin.Clear) {
				clearTexels(img.texels[r.BaseLayer][r.BaseMip], img.desc.Format, begin.Clear[i])
			}
		}
		return nil
	})
}

func (d *Driver) CmdEndRenderPass(h driver.CommandBuffer) {
	d.mu.Lock()
	if cb := d.cmds[h]; cb != nil && cb.state == cbRecording {
		if !cb.inPass && cb.err == nil {
			cb.err = invalid("soft.CmdEndRenderPass", "no render pass open")
		}
		cb.inPass = false
	}
	d.mu.Unlock()
}

func (d *Driver) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	d.record(cb, "soft.CmdBindPipeline", func(d *Driver) error {
		if _, ok := d.pipelines[p]; !ok {
			return badHandle("soft.CmdBindPipeline", p)
		}
		return nil
	})
}

func (d *Driver) CmdBindDescriptorSets(cb driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	sets = append([]driver.DescriptorSet(nil), sets...)
	d.record(cb, "soft.CmdBindDescriptorSets", func(d *Driver) error {
		for _, s := range sets {
			if _, ok := d.sets[s]; !ok {
				return badHandle("soft.CmdBindDescriptorSets", s)
			}
		}
		return nil
	})
}

func (d *Driver) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	buffers = append([]driver.Buffer(nil), buffers...)
	d.record(cb, "soft.CmdBindVertexBuffers", func(d *Driver) error {
		for _, b := range buffers {
			if _, ok := d.buffers[b]; !ok {
				return badHandle("soft.CmdBindVertexBuffers", b)
			}
		}
		return nil
	})
}

func (d *Driver) CmdBindIndexBuffer(cb driver.CommandBuffer, b driver.Buffer, offset uint64, t driver.IndexType) {
	d.record(cb, "soft.CmdBindIndexBuffer", func(d *Driver) error {
		if _, ok := d.buffers[b]; !ok {
			return badHandle("soft.CmdBindIndexBuffer", b)
		}
		return nil
	})
}

func (d *Driver) CmdDraw(cb driver.CommandBuffer, vertices, instances, firstVertex, firstInstance uint32) {
	d.record(cb, "soft.CmdDraw", func(d *Driver) error {
		d.counters.Draws++
		return nil
	})
}

func (d *Driver) CmdDrawIndexed(cb driver.CommandBuffer, indices, instances, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cb, "soft.CmdDrawIndexed", func(d *Driver) error {
		d.counters.Draws++
		return nil
	})
}

func (d *Driver) CmdSetViewport(cb driver.CommandBuffer, vp driver.Viewport) {
	d.record(cb, "soft.CmdSetViewport", func(*Driver) error { return nil })
}

func (d *Driver) CmdSetScissor(cb driver.CommandBuffer, r driver.Rect) {
	d.record(cb, "soft.CmdSetScissor", func(*Driver) error { return nil })
}

func (d *Driver) CmdPushConstants(cb driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if offset+uint32(len(data)) > d.Limits().MaxPushConstantsSize {
		d.mu.Lock()
		if c := d.cmds[cb]; c != nil && c.err == nil {
			c.err = invalid("soft.CmdPushConstants", "%d bytes at %d exceed the push constant limit", len(data), offset)
		}
		d.mu.Unlock()
		return
	}
	d.record(cb, "soft.CmdPushConstants", func(*Driver) error { return nil })
}

// clearTexels fills 8-bit color texels with a clear color. Other formats
// are left untouched.
func clearTexels(texels []byte, f driver.Format, c driver.ClearValue) {
	var px []byte
	switch f {
	case driver.FormatRGBA8Unorm, driver.FormatRGBA8Srgb:
		px = []byte{unorm(c.Color[0]), unorm(c.Color[1]), unorm(c.Color[2]), unorm(c.Color[3])}
	case driver.FormatBGRA8Unorm, driver.FormatBGRA8Srgb:
		px = []byte{unorm(c.Color[2]), unorm(c.Color[1]), unorm(c.Color[0]), unorm(c.Color[3])}
	default:
		return
	}
	for i := 0; i+len(px) <= len(texels); i += len(px) {
		copy(texels[i:], px)
	}
}

func unorm(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
