package diesel

import (
	"image"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"github.com/andewx/diesel/driver"
)

// TextureDesc describes a sampled 2D texture.
type TextureDesc struct {
	Width, Height uint32
	Format        Format
	Filter        Filter
	Wrap          Wrap
	MipMode       MipMode
}

// Texture is a mipmapped image registered in the bindless table.
type Texture struct {
	image   *ImageMemory
	view    driver.ImageView
	handle  ImageHandle
	sampler int
	u       *Uniforms
}

// NewTexture uploads pixels, tightly packed rows of desc.Format, builds
// the full mip chain and registers the texture with u. It blocks until the
// upload has finished.
func NewTexture(dev *Device, u *Uniforms, desc TextureDesc, pixels []byte) (*Texture, error) {
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.BytesPerPixel())
	if size == 0 {
		return nil, errors.Errorf("diesel: empty %dx%d texture", desc.Width, desc.Height)
	}
	if uint64(len(pixels)) != size {
		return nil, errors.Wrapf(ErrCapacity, "%d bytes of pixels for a %dx%d texture of %d", len(pixels), desc.Width, desc.Height, size)
	}
	sampler := SamplerIndex(desc.Filter, desc.Wrap, desc.MipMode)

	staging := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, size)
	defer staging.Destroy()
	if err := staging.CopyFromData(pixels); err != nil {
		return nil, err
	}

	img := NewImageMemory(dev, ImageDesc{
		Width:     desc.Width,
		Height:    desc.Height,
		MipLevels: MipCount(desc.Width, desc.Height),
		Format:    desc.Format,
		Usage:     []ImageUsage{ImageSampled, ImageTransferSrc, ImageTransferDst},
	})
	var err error
	dev.DoCommands(func(cmd *Commands) {
		img.Transition(cmd, LayoutTransferDst)
		if err = img.CopyFromMemory(cmd, staging, 0); err != nil {
			return
		}
		err = img.GenerateMipmaps(cmd)
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}

	t := &Texture{image: img, view: img.CreateView(), sampler: sampler, u: u}
	if t.handle, err = u.AddImage(t.view); err != nil {
		img.Destroy()
		return nil, err
	}
	Logger().Debug("diesel: texture created", "width", desc.Width, "height", desc.Height,
		"mips", img.MipLevels(), "index", t.handle.Index())
	return t, nil
}

// NewTextureFromImage converts src to RGBA8 and uploads it. Formats
// decoded by golang.org/x/image work as well as the standard ones.
func NewTextureFromImage(dev *Device, u *Uniforms, src image.Image, desc TextureDesc) (*Texture, error) {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)
	}
	desc.Width, desc.Height = uint32(b.Dx()), uint32(b.Dy())
	if desc.Format != FormatRGBA8Srgb {
		desc.Format = FormatRGBA8
	}
	return NewTexture(dev, u, desc, rgba.Pix[:4*b.Dx()*b.Dy()])
}

// Index is the bindless image index shaders sample with.
func (t *Texture) Index() int { return t.handle.Index() }

// Handle returns the bindless table handle.
func (t *Texture) Handle() ImageHandle { return t.handle }

// SamplerIndex is the index of the sampler chosen in TextureDesc.
func (t *Texture) SamplerIndex() int { return t.sampler }

func (t *Texture) Image() *ImageMemory    { return t.image }
func (t *Texture) View() driver.ImageView { return t.view }

// Destroy removes the texture from the table and releases the image with
// the current frame.
func (t *Texture) Destroy() {
	t.u.RemoveImage(t.handle)
	t.image.Destroy()
}
