package diesel

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// ImageDesc describes an ImageMemory.
type ImageDesc struct {
	Width, Height uint32
	// MipLevels defaults to 1.
	MipLevels uint32
	// Cube makes a 6-layer cube-compatible image.
	Cube   bool
	Format Format
	Usage  []ImageUsage
}

// MipCount returns the length of a full mip chain for a w x h image:
// floor(log2(max(w, h))) + 1.
func MipCount(w, h uint32) uint32 {
	m := w
	if h > m {
		m = h
	}
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// ImageMemory is an image, its memory and its views. Swapchain images have
// no memory and are owned by the swapchain.
//
// The layout is tracked for the whole image. It changes only through
// Transition, Discard and GenerateMipmaps, each of which records the
// barrier for the change.
type ImageMemory struct {
	dev    *Device
	image  driver.Image
	memory driver.Memory
	views  []driver.ImageView
	layout Layout

	width, height uint32
	mips, layers  uint32
	cube          bool
	format        Format
}

// NewImageMemory allocates a device-local image in LayoutUndefined.
func NewImageMemory(dev *Device, desc ImageDesc) *ImageMemory {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	layers := uint32(1)
	if desc.Cube {
		layers = 6
	}
	img, mem := dev.AllocateImage(driver.ImageDesc{
		Width:          desc.Width,
		Height:         desc.Height,
		MipLevels:      desc.MipLevels,
		ArrayLayers:    layers,
		Format:         desc.Format.driverFormat(),
		Usage:          imageUsageFlags(desc.Usage),
		CubeCompatible: desc.Cube,
	})
	return &ImageMemory{
		dev:    dev,
		image:  img,
		memory: mem,
		width:  desc.Width,
		height: desc.Height,
		mips:   desc.MipLevels,
		layers: layers,
		cube:   desc.Cube,
		format: desc.Format,
	}
}

func wrapSwapchainImage(dev *Device, img driver.Image, w, h uint32, format Format) *ImageMemory {
	return &ImageMemory{dev: dev, image: img, width: w, height: h, mips: 1, layers: 1, format: format}
}

func (m *ImageMemory) Handle() driver.Image      { return m.image }
func (m *ImageMemory) Layout() Layout            { return m.layout }
func (m *ImageMemory) Width() uint32             { return m.width }
func (m *ImageMemory) Height() uint32            { return m.height }
func (m *ImageMemory) MipLevels() uint32         { return m.mips }
func (m *ImageMemory) Layers() uint32            { return m.layers }
func (m *ImageMemory) Format() Format            { return m.format }
func (m *ImageMemory) Views() []driver.ImageView { return m.views }

func (m *ImageMemory) fullRange() driver.SubresourceRange {
	return driver.SubresourceRange{
		Aspect:     m.format.aspect(),
		MipCount:   m.mips,
		LayerCount: m.layers,
	}
}

// CreateView creates a view over every mip and layer. Cube images get a
// cube view.
func (m *ImageMemory) CreateView() driver.ImageView {
	t := driver.View2D
	if m.cube {
		t = driver.ViewCube
	}
	v, err := m.dev.drv.CreateImageView(driver.ImageViewDesc{
		Image:  m.image,
		Type:   t,
		Format: m.format.driverFormat(),
		Range:  m.fullRange(),
	})
	orPanic(err, "diesel: create image view")
	m.views = append(m.views, v)
	return v
}

// Transition records one barrier moving the whole image to layout to.
func (m *ImageMemory) Transition(cmd *Commands, to Layout) {
	m.transition(cmd, m.layout, to)
}

// Discard is Transition from LayoutUndefined: the previous contents may be
// dropped. Attachments that are fully overwritten use it.
func (m *ImageMemory) Discard(cmd *Commands, to Layout) {
	m.transition(cmd, LayoutUndefined, to)
}

func (m *ImageMemory) transition(cmd *Commands, from, to Layout) {
	b, src, dst := barrier(m.image, m.fullRange(), from, to)
	cmd.ImageBarrier(src, dst, b)
	m.layout = to
}

func (m *ImageMemory) transitionMip(cmd *Commands, mip uint32, from, to Layout) {
	rng := driver.SubresourceRange{Aspect: m.format.aspect(), BaseMip: mip, MipCount: 1, LayerCount: m.layers}
	b, src, dst := barrier(m.image, rng, from, to)
	cmd.ImageBarrier(src, dst, b)
}

// CopyFromMemory records a copy of buf into mip 0 of one array layer,
// covering the full extent. The image must be in LayoutTransferDst.
func (m *ImageMemory) CopyFromMemory(cmd *Commands, buf *BufferMemory, layer uint32) error {
	if m.layout != LayoutTransferDst {
		return errors.Wrapf(ErrLayout, "copy into an image in %v", m.layout)
	}
	if layer >= m.layers {
		return errors.Wrapf(ErrLayerRange, "layer %d of %d", layer, m.layers)
	}
	need := uint64(m.width) * uint64(m.height) * uint64(m.format.BytesPerPixel())
	if buf.Size() < need {
		return errors.Wrapf(ErrCapacity, "buffer of %d bytes for a %dx%d layer of %d", buf.Size(), m.width, m.height, need)
	}
	cmd.CopyBufferToImage(buf.Handle(), m.image, driver.LayoutTransferDst, driver.BufferImageCopy{
		Aspect:     m.format.aspect(),
		BaseLayer:  layer,
		LayerCount: 1,
		Width:      m.width,
		Height:     m.height,
	})
	return nil
}

// GenerateMipmaps fills mips 1..n-1 from mip 0 with n-1 linear blits, each
// halving the previous level. The image must be in LayoutTransferDst and
// ends in LayoutShaderColor.
func (m *ImageMemory) GenerateMipmaps(cmd *Commands) error {
	if m.layout != LayoutTransferDst {
		return errors.Wrapf(ErrLayout, "generate mipmaps of an image in %v", m.layout)
	}
	w, h := m.width, m.height
	for i := uint32(1); i < m.mips; i++ {
		m.transitionMip(cmd, i-1, LayoutTransferDst, LayoutTransferSrc)
		nw, nh := half(w), half(h)
		cmd.Blit(m.image, driver.LayoutTransferSrc, m.image, driver.LayoutTransferDst, driver.FilterLinear, driver.ImageBlit{
			Aspect:     m.format.aspect(),
			SrcMip:     i - 1,
			DstMip:     i,
			LayerCount: m.layers,
			SrcWidth:   w,
			SrcHeight:  h,
			DstWidth:   nw,
			DstHeight:  nh,
		})
		m.transitionMip(cmd, i-1, LayoutTransferSrc, LayoutShaderColor)
		w, h = nw, nh
	}
	m.transitionMip(cmd, m.mips-1, LayoutTransferDst, LayoutShaderColor)
	m.layout = LayoutShaderColor
	return nil
}

func half(v uint32) uint32 {
	if v > 1 {
		return v / 2
	}
	return 1
}

// Destroy releases the image, its views and its memory with the current
// frame. Swapchain images only lose their views.
func (m *ImageMemory) Destroy() {
	if m.image == 0 {
		return
	}
	m.dev.FreeImage(m.image, m.memory, m.views...)
	m.image, m.memory, m.views = 0, 0, nil
}
