package soft

import (
	"fmt"

	"github.com/andewx/diesel/driver"
)

const spirvMagic = 0x07230203

type descPool struct {
	maxSets uint32
	sets    []driver.DescriptorSet
}

type setBinding struct {
	desc    driver.DescriptorBinding
	images  []driver.DescriptorImageInfo
	buffers []driver.DescriptorBufferInfo
}

type descSet struct {
	layout   driver.DescriptorSetLayout
	bindings map[uint32]*setBinding
}

func (d *Driver) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	if len(code) < 5 || code[0] != spirvMagic {
		return 0, invalid("soft.CreateShaderModule", "not a SPIR-V module")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.ShaderModule(d.newHandle("shader module"))
	d.modules[h] = append([]uint32(nil), code...)
	return h, nil
}

func (d *Driver) DestroyShaderModule(m driver.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.modules, m)
	d.drop(driver.Handle(m))
}

func (d *Driver) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	seen := map[uint32]bool{}
	for _, b := range bindings {
		if seen[b.Binding] {
			return 0, invalid("soft.CreateDescriptorSetLayout", "binding %d declared twice", b.Binding)
		}
		if b.Count == 0 {
			return 0, invalid("soft.CreateDescriptorSetLayout", "binding %d has no descriptors", b.Binding)
		}
		seen[b.Binding] = true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.DescriptorSetLayout(d.newHandle("descriptor set layout"))
	d.setLayouts[h] = append([]driver.DescriptorBinding(nil), bindings...)
	return h, nil
}

func (d *Driver) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.setLayouts, l)
	d.drop(driver.Handle(l))
}

func (d *Driver) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	if maxSets == 0 {
		return 0, invalid("soft.CreateDescriptorPool", "maxSets is zero")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.DescriptorPool(d.newHandle("descriptor pool"))
	d.descPools[h] = &descPool{maxSets: maxSets}
	return h, nil
}

// DestroyDescriptorPool frees every set allocated from p.
func (d *Driver) DestroyDescriptorPool(p driver.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dp := d.descPools[p]; dp != nil {
		for _, s := range dp.sets {
			delete(d.sets, s)
			d.drop(driver.Handle(s))
		}
	}
	delete(d.descPools, p)
	d.drop(driver.Handle(p))
}

func (d *Driver) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	const name = "soft.AllocateDescriptorSet"
	d.mu.Lock()
	defer d.mu.Unlock()
	dp := d.descPools[p]
	if dp == nil {
		return 0, badHandle(name, p)
	}
	layout, ok := d.setLayouts[l]
	if !ok {
		return 0, badHandle(name, l)
	}
	if uint32(len(dp.sets)) >= dp.maxSets {
		return 0, driver.Errorf(name, driver.ErrOutOfDeviceMemory, "descriptor pool %d exhausted", p)
	}
	set := &descSet{layout: l, bindings: map[uint32]*setBinding{}}
	for _, b := range layout {
		sb := &setBinding{desc: b}
		switch b.Type {
		case driver.DescriptorUniformBuffer, driver.DescriptorStorageBuffer:
			sb.buffers = make([]driver.DescriptorBufferInfo, b.Count)
		default:
			sb.images = make([]driver.DescriptorImageInfo, b.Count)
		}
		set.bindings[b.Binding] = sb
	}
	h := driver.DescriptorSet(d.newHandle("descriptor set"))
	d.sets[h] = set
	dp.sets = append(dp.sets, h)
	return h, nil
}

// UpdateDescriptorSets panics on an out-of-range or mistyped write, which
// on real hardware is undefined behavior.
func (d *Driver) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		set := d.sets[w.Set]
		if set == nil {
			panic(badHandle("soft.UpdateDescriptorSets", w.Set))
		}
		b := set.bindings[w.Binding]
		if b == nil {
			panic(invalid("soft.UpdateDescriptorSets", "set %d has no binding %d", w.Set, w.Binding))
		}
		if b.desc.Type != w.Type {
			panic(invalid("soft.UpdateDescriptorSets", "binding %d is type %d, write is %d", w.Binding, b.desc.Type, w.Type))
		}
		n := len(w.Images) + len(w.Buffers)
		if uint64(w.ArrayElement)+uint64(n) > uint64(b.desc.Count) {
			panic(invalid("soft.UpdateDescriptorSets", "elements %d..%d of binding %d with %d slots",
				w.ArrayElement, int(w.ArrayElement)+n, w.Binding, b.desc.Count))
		}
		for _, img := range w.Images {
			if img.View != 0 {
				if _, ok := d.views[img.View]; !ok {
					panic(badHandle("soft.UpdateDescriptorSets", img.View))
				}
			}
		}
		if b.buffers != nil {
			copy(b.buffers[w.ArrayElement:], w.Buffers)
		} else {
			copy(b.images[w.ArrayElement:], w.Images)
		}
		d.counters.DescriptorWrites++
	}
}

func (d *Driver) CreatePipelineLayout(sets []driver.DescriptorSetLayout, push []driver.PushConstantRange) (driver.PipelineLayout, error) {
	const name = "soft.CreatePipelineLayout"
	if uint32(len(sets)) > d.Limits().MaxBoundDescriptorSets {
		return 0, invalid(name, "%d descriptor sets", len(sets))
	}
	for _, p := range push {
		if p.Offset+p.Size > d.Limits().MaxPushConstantsSize {
			return 0, invalid(name, "push constant range %+v exceeds %d bytes", p, d.Limits().MaxPushConstantsSize)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range sets {
		if _, ok := d.setLayouts[s]; !ok {
			return 0, badHandle(name, s)
		}
	}
	h := driver.PipelineLayout(d.newHandle("pipeline layout"))
	d.pipeLayouts[h] = struct{}{}
	return h, nil
}

func (d *Driver) DestroyPipelineLayout(l driver.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipeLayouts, l)
	d.drop(driver.Handle(l))
}

func (d *Driver) CreateGraphicsPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	const name = "soft.CreateGraphicsPipeline"
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.modules[desc.Vertex]; !ok {
		return 0, badHandle(name, desc.Vertex)
	}
	if _, ok := d.modules[desc.Fragment]; !ok {
		return 0, badHandle(name, desc.Fragment)
	}
	if _, ok := d.pipeLayouts[desc.Layout]; !ok {
		return 0, badHandle(name, desc.Layout)
	}
	rp, ok := d.passes[desc.RenderPass]
	if !ok {
		return 0, badHandle(name, desc.RenderPass)
	}
	if (desc.DepthTest || desc.DepthWrite) && rp.Depth.Format == driver.FormatUndefined {
		return 0, invalid(name, "depth state on a render pass without depth")
	}
	h := driver.Pipeline(d.newHandle("pipeline"))
	d.pipelines[h] = desc
	return h, nil
}

func (d *Driver) DestroyPipeline(p driver.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
	d.drop(driver.Handle(p))
}

func (d *Driver) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	if len(desc.Color) == 0 && desc.Depth.Format == driver.FormatUndefined {
		return 0, invalid("soft.CreateRenderPass", "no attachments")
	}
	if desc.Depth.Format != driver.FormatUndefined && !desc.Depth.Format.IsDepth() {
		return 0, invalid("soft.CreateRenderPass", "depth attachment format %d", desc.Depth.Format)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.RenderPass(d.newHandle("render pass"))
	desc.Color = append([]driver.Attachment(nil), desc.Color...)
	d.passes[h] = desc
	return h, nil
}

func (d *Driver) DestroyRenderPass(rp driver.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.passes, rp)
	d.drop(driver.Handle(rp))
}

func (d *Driver) CreateFramebuffer(desc driver.FramebufferDesc) (driver.Framebuffer, error) {
	const name = "soft.CreateFramebuffer"
	d.mu.Lock()
	defer d.mu.Unlock()
	rp, ok := d.passes[desc.RenderPass]
	if !ok {
		return 0, badHandle(name, desc.RenderPass)
	}
	want := len(rp.Color)
	if rp.Depth.Format != driver.FormatUndefined {
		want++
	}
	if len(desc.Attachments) != want {
		return 0, invalid(name, "%d attachments, render pass has %d", len(desc.Attachments), want)
	}
	for _, v := range desc.Attachments {
		vw := d.views[v]
		if vw == nil {
			return 0, badHandle(name, v)
		}
		img := d.images[vw.desc.Image]
		if img == nil {
			return 0, badHandle(name, vw.desc.Image)
		}
		w, h := mipExtent(img.desc.Width, img.desc.Height, vw.desc.Range.BaseMip)
		if w < desc.Width || h < desc.Height {
			return 0, invalid(name, "attachment %s is %dx%d, framebuffer is %dx%d", fmt.Sprint(v), w, h, desc.Width, desc.Height)
		}
	}
	h := driver.Framebuffer(d.newHandle("framebuffer"))
	desc.Attachments = append([]driver.ImageView(nil), desc.Attachments...)
	d.framebufs[h] = desc
	return h, nil
}

func (d *Driver) DestroyFramebuffer(fb driver.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebufs, fb)
	d.drop(driver.Handle(fb))
}
