package vkdriver

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

func (d *Driver) MemoryTypes() []driver.MemoryType { return d.memTypes }

func (d *Driver) CreateBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if desc.Size == 0 {
		return 0, driver.Errorf("CreateBuffer", driver.ErrInvalidUsage, "zero size")
	}
	var b vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b)
	if err := check("vkCreateBuffer", ret); err != nil {
		return 0, err
	}
	return add(d, &d.buffers, b), nil
}

func requirements(reqs vk.MemoryRequirements) driver.MemoryRequirements {
	reqs.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (d *Driver) BufferRequirements(b driver.Buffer) driver.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, must(d, &d.buffers, b), &reqs)
	return requirements(reqs)
}

func (d *Driver) DestroyBuffer(b driver.Buffer) {
	if v, ok := take(d, &d.buffers, b); ok {
		vk.DestroyBuffer(d.device, v, nil)
	}
}

func (d *Driver) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	var flags vk.ImageCreateFlags
	if desc.CubeCompatible {
		if desc.ArrayLayers%6 != 0 {
			return 0, driver.Errorf("CreateImage", driver.ErrInvalidUsage, "cube compatible image with %d layers", desc.ArrayLayers)
		}
		flags |= vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	var img vk.Image
	ret := vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         flags,
		ImageType:     vk.ImageType2d,
		Format:        vkFormat(desc.Format),
		Extent:        vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := check("vkCreateImage", ret); err != nil {
		return 0, err
	}
	return add(d, &d.images, &image{vk: img, desc: desc, owned: true}), nil
}

func (d *Driver) ImageRequirements(i driver.Image) driver.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, must(d, &d.images, i).vk, &reqs)
	return requirements(reqs)
}

// DestroyImage destroys an image created by CreateImage. Swapchain images
// are released with their swapchain and ignored here.
func (d *Driver) DestroyImage(i driver.Image) {
	img, ok := lookup(d, &d.images, i)
	if !ok || !img.owned {
		return
	}
	take(d, &d.images, i)
	vk.DestroyImage(d.device, img.vk, nil)
}

func (d *Driver) CreateImageView(desc driver.ImageViewDesc) (driver.ImageView, error) {
	img, ok := lookup(d, &d.images, desc.Image)
	if !ok {
		return 0, badHandle("CreateImageView", desc.Image)
	}
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.vk,
		ViewType: vkViewType(desc.Type),
		Format:   vkFormat(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vkSubresource(desc.Range),
	}, nil, &view)
	if err := check("vkCreateImageView", ret); err != nil {
		return 0, err
	}
	return add(d, &d.views, view), nil
}

func (d *Driver) DestroyImageView(v driver.ImageView) {
	if view, ok := take(d, &d.views, v); ok {
		vk.DestroyImageView(d.device, view, nil)
	}
}

func (d *Driver) AllocateMemory(size uint64, memoryType uint32) (driver.Memory, error) {
	if int(memoryType) >= len(d.memTypes) {
		return 0, driver.Errorf("AllocateMemory", driver.ErrInvalidUsage, "memory type %d of %d", memoryType, len(d.memTypes))
	}
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}, nil, &mem)
	if err := check("vkAllocateMemory", ret); err != nil {
		return 0, err
	}
	log().Debug("vulkan: memory allocated", "size", size, "type", memoryType)
	return add(d, &d.memories, &memory{vk: mem, size: size}), nil
}

func (d *Driver) BindBufferMemory(b driver.Buffer, m driver.Memory, offset uint64) error {
	buf, ok := lookup(d, &d.buffers, b)
	if !ok {
		return badHandle("BindBufferMemory", b)
	}
	mem, ok := lookup(d, &d.memories, m)
	if !ok {
		return badHandle("BindBufferMemory", m)
	}
	return check("vkBindBufferMemory", vk.BindBufferMemory(d.device, buf, mem.vk, vk.DeviceSize(offset)))
}

func (d *Driver) BindImageMemory(i driver.Image, m driver.Memory, offset uint64) error {
	img, ok := lookup(d, &d.images, i)
	if !ok {
		return badHandle("BindImageMemory", i)
	}
	mem, ok := lookup(d, &d.memories, m)
	if !ok {
		return badHandle("BindImageMemory", m)
	}
	return check("vkBindImageMemory", vk.BindImageMemory(d.device, img.vk, mem.vk, vk.DeviceSize(offset)))
}

// MapMemory maps a range of a host-visible allocation. An allocation can
// have one mapping at a time.
func (d *Driver) MapMemory(m driver.Memory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	mem, ok := d.memories.items[m]
	if !ok {
		d.mu.Unlock()
		return nil, badHandle("MapMemory", m)
	}
	if mem.mapped {
		d.mu.Unlock()
		return nil, driver.Errorf("MapMemory", driver.ErrMemoryMapFailed, "memory %d is already mapped", m)
	}
	if offset+size > mem.size {
		d.mu.Unlock()
		return nil, driver.Errorf("MapMemory", driver.ErrInvalidUsage, "range %d+%d past %d", offset, size, mem.size)
	}
	mem.mapped = true
	d.mu.Unlock()

	var ptr unsafe.Pointer
	ret := vk.MapMemory(d.device, mem.vk, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)
	if err := check("vkMapMemory", ret); err != nil {
		d.mu.Lock()
		mem.mapped = false
		d.mu.Unlock()
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *Driver) UnmapMemory(m driver.Memory) {
	d.mu.Lock()
	mem, ok := d.memories.items[m]
	if !ok || !mem.mapped {
		d.mu.Unlock()
		return
	}
	mem.mapped = false
	d.mu.Unlock()
	vk.UnmapMemory(d.device, mem.vk)
}

func (d *Driver) FreeMemory(m driver.Memory) {
	if mem, ok := take(d, &d.memories, m); ok {
		vk.FreeMemory(d.device, mem.vk, nil)
	}
}

func (d *Driver) CreateSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	address := vkAddress(desc.Address)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vkFilter(desc.MagFilter),
		MinFilter:               vkFilter(desc.MinFilter),
		MipmapMode:              vkMipmap(desc.Mipmap),
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  desc.MaxLod,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if desc.Anisotropy > 1 && d.anisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = min(desc.Anisotropy, d.limits.MaxSamplerAnisotropy)
	}
	var s vk.Sampler
	if err := check("vkCreateSampler", vk.CreateSampler(d.device, &info, nil, &s)); err != nil {
		return 0, err
	}
	return add(d, &d.samplers, s), nil
}

func (d *Driver) DestroySampler(s driver.Sampler) {
	if v, ok := take(d, &d.samplers, s); ok {
		vk.DestroySampler(d.device, v, nil)
	}
}
