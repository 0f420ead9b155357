package soft

import (
	"github.com/andewx/diesel/driver"
)

type memory struct {
	data   []byte
	typ    uint32
	mapped bool
}

type buffer struct {
	desc   driver.BufferDesc
	mem    *memory
	offset uint64
}

// bytes returns the bound range of the buffer, nil when unbound.
func (b *buffer) bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem.data[b.offset : b.offset+b.desc.Size]
}

type image struct {
	desc      driver.ImageDesc
	mem       *memory
	swapchain bool
	// texels and layouts are indexed [layer][mip].
	texels  [][][]byte
	layouts [][]driver.ImageLayout
}

func newImage(desc driver.ImageDesc) *image {
	img := &image{desc: desc}
	bpp := desc.Format.BytesPerPixel()
	img.texels = make([][][]byte, desc.ArrayLayers)
	img.layouts = make([][]driver.ImageLayout, desc.ArrayLayers)
	for l := range img.texels {
		img.texels[l] = make([][]byte, desc.MipLevels)
		img.layouts[l] = make([]driver.ImageLayout, desc.MipLevels)
		for m := range img.texels[l] {
			w, h := mipExtent(desc.Width, desc.Height, uint32(m))
			img.texels[l][m] = make([]byte, int(w)*int(h)*bpp)
		}
	}
	return img
}

func (img *image) size() uint64 {
	var n uint64
	for _, layer := range img.texels {
		for _, lvl := range layer {
			n += uint64(len(lvl))
		}
	}
	return n
}

func (img *image) contains(r driver.SubresourceRange) bool {
	return r.MipCount > 0 && r.LayerCount > 0 &&
		r.BaseMip+r.MipCount <= img.desc.MipLevels &&
		r.BaseLayer+r.LayerCount <= img.desc.ArrayLayers
}

func mipExtent(w, h, mip uint32) (uint32, uint32) {
	w >>= mip
	h >>= mip
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

type view struct {
	desc driver.ImageViewDesc
}

func (d *Driver) MemoryTypes() []driver.MemoryType {
	return append([]driver.MemoryType(nil), d.memTypes...)
}

func (d *Driver) CreateBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if desc.Size == 0 {
		return 0, invalid("soft.CreateBuffer", "zero size")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Buffer(d.newHandle("buffer"))
	d.buffers[h] = &buffer{desc: desc}
	return h, nil
}

func (d *Driver) BufferRequirements(b driver.Buffer) driver.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.buffers[b]
	if buf == nil {
		return driver.MemoryRequirements{}
	}
	return driver.MemoryRequirements{
		Size:      buf.desc.Size,
		Alignment: 16,
		TypeBits:  (1 << uint(len(d.memTypes))) - 1,
	}
}

func (d *Driver) DestroyBuffer(b driver.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, b)
	d.drop(driver.Handle(b))
}

func (d *Driver) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 || desc.ArrayLayers == 0 {
		return 0, invalid("soft.CreateImage", "empty extent %dx%d mips=%d layers=%d",
			desc.Width, desc.Height, desc.MipLevels, desc.ArrayLayers)
	}
	if desc.Format.BytesPerPixel() == 0 {
		return 0, driver.Errorf("soft.CreateImage", driver.ErrFormatNotSupported, "format %d", desc.Format)
	}
	if desc.CubeCompatible && desc.ArrayLayers%6 != 0 {
		return 0, invalid("soft.CreateImage", "cube image with %d layers", desc.ArrayLayers)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Image(d.newHandle("image"))
	d.images[h] = newImage(desc)
	return h, nil
}

func (d *Driver) ImageRequirements(i driver.Image) driver.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := d.images[i]
	if img == nil {
		return driver.MemoryRequirements{}
	}
	var bits uint32
	for t, mt := range d.memTypes {
		if mt.Properties.Has(driver.MemoryDeviceLocal) {
			bits |= 1 << uint(t)
		}
	}
	if bits == 0 {
		bits = (1 << uint(len(d.memTypes))) - 1
	}
	return driver.MemoryRequirements{Size: img.size(), Alignment: 256, TypeBits: bits}
}

func (d *Driver) DestroyImage(i driver.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, i)
	d.drop(driver.Handle(i))
}

func (d *Driver) CreateImageView(desc driver.ImageViewDesc) (driver.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := d.images[desc.Image]
	if img == nil {
		return 0, badHandle("soft.CreateImageView", desc.Image)
	}
	if !img.contains(desc.Range) {
		return 0, invalid("soft.CreateImageView", "range %+v outside image", desc.Range)
	}
	if desc.Type == driver.ViewCube && (!img.desc.CubeCompatible || desc.Range.LayerCount != 6) {
		return 0, invalid("soft.CreateImageView", "cube view of a non-cube image")
	}
	h := driver.ImageView(d.newHandle("image view"))
	d.views[h] = &view{desc: desc}
	return h, nil
}

func (d *Driver) DestroyImageView(v driver.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, v)
	d.drop(driver.Handle(v))
}

func (d *Driver) AllocateMemory(size uint64, memoryType uint32) (driver.Memory, error) {
	if int(memoryType) >= len(d.memTypes) {
		return 0, invalid("soft.AllocateMemory", "memory type %d of %d", memoryType, len(d.memTypes))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Memory(d.newHandle("memory"))
	d.memories[h] = &memory{data: make([]byte, size), typ: memoryType}
	return h, nil
}

func (d *Driver) BindBufferMemory(b driver.Buffer, m driver.Memory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, mem := d.buffers[b], d.memories[m]
	if buf == nil || mem == nil {
		return badHandle("soft.BindBufferMemory", b)
	}
	if offset+buf.desc.Size > uint64(len(mem.data)) {
		return invalid("soft.BindBufferMemory", "buffer of %d bytes at %d exceeds allocation of %d",
			buf.desc.Size, offset, len(mem.data))
	}
	buf.mem, buf.offset = mem, offset
	return nil
}

func (d *Driver) BindImageMemory(i driver.Image, m driver.Memory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, mem := d.images[i], d.memories[m]
	if img == nil || mem == nil {
		return badHandle("soft.BindImageMemory", i)
	}
	if offset+img.size() > uint64(len(mem.data)) {
		return invalid("soft.BindImageMemory", "image exceeds allocation")
	}
	img.mem = mem
	return nil
}

func (d *Driver) MapMemory(m driver.Memory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem := d.memories[m]
	if mem == nil {
		return nil, badHandle("soft.MapMemory", m)
	}
	if !d.memTypes[mem.typ].Properties.Has(driver.MemoryHostVisible) {
		return nil, driver.Errorf("soft.MapMemory", driver.ErrMemoryMapFailed, "memory type %d is not host visible", mem.typ)
	}
	if mem.mapped {
		return nil, invalid("soft.MapMemory", "memory already mapped")
	}
	if offset+size > uint64(len(mem.data)) {
		return nil, invalid("soft.MapMemory", "range %d+%d exceeds allocation of %d", offset, size, len(mem.data))
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

func (d *Driver) UnmapMemory(m driver.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mem := d.memories[m]; mem != nil {
		mem.mapped = false
	}
}

func (d *Driver) FreeMemory(m driver.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memories, m)
	d.drop(driver.Handle(m))
}

func (d *Driver) CreateSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Sampler(d.newHandle("sampler"))
	d.samplers[h] = desc
	return h, nil
}

func (d *Driver) DestroySampler(s driver.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, s)
	d.drop(driver.Handle(s))
}
