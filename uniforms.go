package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// maxMaterialSets bounds the material sets one Uniforms can hand out.
const maxMaterialSets = 256

// Uniforms owns the descriptor sets described by a ShaderLayout and the
// bindless image table.
//
// The world, bindless and shadow sets exist once per frame slot, so a set
// is only ever written while the GPU is not reading it. Adding or removing
// an image marks the table dirty for every slot; UpdateIfNeeded rewrites
// the current slot's copy with one batched write.
type Uniforms struct {
	dev    *Device
	layout *ShaderLayout
	pool   driver.DescriptorPool

	world, bindless, shadow []driver.DescriptorSet
	samplers                [SamplerCount]driver.Sampler
	materials               int

	images, cubes *slotMap[driver.ImageView]
	shadowViews   []driver.ImageView

	// One bit per frame slot.
	imagesDirty, cubesDirty, shadowDirty uint64

	// Empty entries point at 1x1 white images.
	blank, blankCube *ImageMemory
	blankView        driver.ImageView
	blankCubeView    driver.ImageView
}

// NewUniforms allocates the per-slot sets, creates the samplers and fills
// every table with the blank images.
func NewUniforms(dev *Device, layout *ShaderLayout) *Uniforms {
	n := uint32(dev.FramesInFlight())
	u := &Uniforms{
		dev:    dev,
		layout: layout,
		images: newSlotMap[driver.ImageView](layout.bindless),
		cubes:  newSlotMap[driver.ImageView](layout.cubemaps),
	}
	var err error
	u.pool, err = dev.drv.CreateDescriptorPool(3*n+maxMaterialSets, []driver.DescriptorPoolSize{
		{Type: driver.DescriptorUniformBuffer, Count: n + maxMaterialSets},
		{Type: driver.DescriptorSampledImage, Count: n * uint32(layout.bindless+layout.cubemaps+layout.shadows)},
		{Type: driver.DescriptorSampler, Count: n * SamplerCount},
	})
	orPanic(err, "diesel: create descriptor pool")
	for i := uint32(0); i < n; i++ {
		u.world = append(u.world, u.allocate(SetWorld))
		u.bindless = append(u.bindless, u.allocate(SetBindless))
		u.shadow = append(u.shadow, u.allocate(SetShadow))
	}
	for i := range u.samplers {
		u.samplers[i], err = dev.drv.CreateSampler(samplerDesc(i))
		orPanic(err, "diesel: create sampler")
	}

	u.blank = newBlankImage(dev, false)
	u.blankView = u.blank.CreateView()
	u.blankCube = newBlankImage(dev, true)
	u.blankCubeView = u.blankCube.CreateView()

	samplers := make([]driver.DescriptorImageInfo, SamplerCount)
	for i, s := range u.samplers {
		samplers[i] = driver.DescriptorImageInfo{Sampler: s}
	}
	var writes []driver.DescriptorWrite
	for i := range u.bindless {
		writes = append(writes, driver.DescriptorWrite{
			Set: u.bindless[i], Binding: BindingSamplers, Type: driver.DescriptorSampler, Images: samplers,
		})
		writes = append(writes, u.tableWrites(i, ^uint64(0))...)
	}
	dev.drv.UpdateDescriptorSets(writes)
	return u
}

func (u *Uniforms) allocate(set int) driver.DescriptorSet {
	s, err := u.dev.drv.AllocateDescriptorSet(u.pool, u.layout.sets[set])
	orPanic(err, "diesel: allocate descriptor set")
	return s
}

// newBlankImage creates a 1x1 opaque white image in LayoutShaderColor.
func newBlankImage(dev *Device, cube bool) *ImageMemory {
	img := NewImageMemory(dev, ImageDesc{
		Width: 1, Height: 1, Cube: cube, Format: FormatRGBA8,
		Usage: []ImageUsage{ImageSampled, ImageTransferDst},
	})
	staging := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, 4)
	defer staging.Destroy()
	orPanic(staging.CopyFromData([]byte{255, 255, 255, 255}), "diesel: fill blank image")
	dev.DoCommands(func(cmd *Commands) {
		img.Transition(cmd, LayoutTransferDst)
		for l := uint32(0); l < img.Layers(); l++ {
			orPanic(img.CopyFromMemory(cmd, staging, l), "diesel: upload blank image")
		}
		img.Transition(cmd, LayoutShaderColor)
	})
	return img
}

func (u *Uniforms) allSlots() uint64 {
	return (1 << uint(len(u.bindless))) - 1
}

// AddImage registers a 2D view and returns its handle. Freed indices are
// reused before the table grows.
func (u *Uniforms) AddImage(view driver.ImageView) (ImageHandle, error) {
	h, err := u.images.insert(view)
	if err != nil {
		return h, err
	}
	u.imagesDirty = u.allSlots()
	Logger().Debug("diesel: add bindless image", "index", h.Index())
	return h, nil
}

// RemoveImage empties the entry of h without moving any other entry. It
// reports false for a stale handle.
func (u *Uniforms) RemoveImage(h ImageHandle) bool {
	if !u.images.remove(h) {
		return false
	}
	u.imagesDirty = u.allSlots()
	return true
}

// AddCubemap registers a cube view in the cubemap array.
func (u *Uniforms) AddCubemap(view driver.ImageView) (ImageHandle, error) {
	h, err := u.cubes.insert(view)
	if err != nil {
		return h, err
	}
	u.cubesDirty = u.allSlots()
	return h, nil
}

func (u *Uniforms) RemoveCubemap(h ImageHandle) bool {
	if !u.cubes.remove(h) {
		return false
	}
	u.cubesDirty = u.allSlots()
	return true
}

// Image returns the view registered under h.
func (u *Uniforms) Image(h ImageHandle) (driver.ImageView, bool) { return u.images.get(h) }

// ImageCount returns the number of live bindless images.
func (u *Uniforms) ImageCount() int { return u.images.len() }

// SetShadowMaps replaces the shadow map array. Unused entries get the
// blank image.
func (u *Uniforms) SetShadowMaps(views []driver.ImageView) error {
	if len(views) > u.layout.shadows {
		return errors.Wrapf(ErrCapacity, "%d shadow maps, room for %d", len(views), u.layout.shadows)
	}
	u.shadowViews = append(u.shadowViews[:0], views...)
	u.shadowDirty = u.allSlots()
	return nil
}

// UpdateIfNeeded writes the current slot's copy of every table changed
// since that slot was last written, in one driver call. It reports whether
// anything was written.
func (u *Uniforms) UpdateIfNeeded() bool {
	slot := u.dev.CurrentFrame()
	bit := uint64(1) << uint(slot)
	writes := u.tableWrites(slot, bit)
	if len(writes) == 0 {
		return false
	}
	u.dev.drv.UpdateDescriptorSets(writes)
	u.imagesDirty &^= bit
	u.cubesDirty &^= bit
	u.shadowDirty &^= bit
	Logger().Debug("diesel: update bindless tables", "slot", slot, "writes", len(writes))
	return true
}

// tableWrites builds the writes for the tables of slot whose dirty bits
// intersect mask.
func (u *Uniforms) tableWrites(slot int, mask uint64) []driver.DescriptorWrite {
	var writes []driver.DescriptorWrite
	if u.imagesDirty&mask != 0 || mask == ^uint64(0) {
		writes = append(writes, driver.DescriptorWrite{
			Set: u.bindless[slot], Binding: BindingImages, Type: driver.DescriptorSampledImage,
			Images: sampled(u.images.fill(u.blankView)),
		})
	}
	if u.cubesDirty&mask != 0 || mask == ^uint64(0) {
		writes = append(writes, driver.DescriptorWrite{
			Set: u.bindless[slot], Binding: BindingCubemaps, Type: driver.DescriptorSampledImage,
			Images: sampled(u.cubes.fill(u.blankCubeView)),
		})
	}
	if u.shadowDirty&mask != 0 || mask == ^uint64(0) {
		views := make([]driver.ImageView, u.layout.shadows)
		for i := range views {
			views[i] = u.blankView
		}
		copy(views, u.shadowViews)
		writes = append(writes, driver.DescriptorWrite{
			Set: u.shadow[slot], Binding: 0, Type: driver.DescriptorSampledImage,
			Images: sampled(views),
		})
	}
	return writes
}

func sampled(views []driver.ImageView) []driver.DescriptorImageInfo {
	out := make([]driver.DescriptorImageInfo, len(views))
	for i, v := range views {
		out[i] = driver.DescriptorImageInfo{View: v, Layout: driver.LayoutShaderReadOnly}
	}
	return out
}

// Sampler returns sampler i of the sampler array.
func (u *Uniforms) Sampler(i int) driver.Sampler { return u.samplers[i] }

// SetWorld points the current slot's world set at buf. The slot's previous
// submission has completed, so the write is safe.
func (u *Uniforms) SetWorld(buf *BufferMemory) {
	u.dev.drv.UpdateDescriptorSets([]driver.DescriptorWrite{{
		Set: u.world[u.dev.CurrentFrame()], Type: driver.DescriptorUniformBuffer,
		Buffers: []driver.DescriptorBufferInfo{{Buffer: buf.Handle(), Range: buf.Size()}},
	}})
}

// NewMaterialSet allocates a material set reading buf.
func (u *Uniforms) NewMaterialSet(buf *BufferMemory) (driver.DescriptorSet, error) {
	if u.materials >= maxMaterialSets {
		return 0, errors.Wrapf(ErrCapacity, "%d material sets", maxMaterialSets)
	}
	s := u.allocate(SetMaterial)
	u.materials++
	u.dev.drv.UpdateDescriptorSets([]driver.DescriptorWrite{{
		Set: s, Type: driver.DescriptorUniformBuffer,
		Buffers: []driver.DescriptorBufferInfo{{Buffer: buf.Handle(), Range: buf.Size()}},
	}})
	return s, nil
}

// Bind binds all four sets for the current slot. A zero material leaves
// set 1 as it was.
func (u *Uniforms) Bind(cmd *Commands, material driver.DescriptorSet) {
	slot := u.dev.CurrentFrame()
	pl := u.layout.pipeline
	if material == 0 {
		cmd.BindDescriptorSets(pl, SetWorld, u.world[slot])
		cmd.BindDescriptorSets(pl, SetBindless, u.bindless[slot], u.shadow[slot])
		return
	}
	cmd.stats.MaterialBinds++
	cmd.BindDescriptorSets(pl, SetWorld, u.world[slot], material, u.bindless[slot], u.shadow[slot])
}

// BindMaterial rebinds only set 1.
func (u *Uniforms) BindMaterial(cmd *Commands, material driver.DescriptorSet) {
	cmd.stats.MaterialBinds++
	cmd.BindDescriptorSets(u.layout.pipeline, SetMaterial, material)
}

// Destroy frees the sets, the samplers and the blank images.
func (u *Uniforms) Destroy() {
	u.dev.drv.DestroyDescriptorPool(u.pool)
	for _, s := range u.samplers {
		u.dev.drv.DestroySampler(s)
	}
	u.blank.Destroy()
	u.blankCube.Destroy()
}
