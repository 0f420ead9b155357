package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// CubeFaces holds the six square faces of a cubemap, each Size x Size
// tightly packed texels.
type CubeFaces struct {
	Size uint32

	Right, Left, Top, Bottom, Front, Back []byte
}

// layers returns the faces in array-layer order: right, left, top,
// bottom, front, back.
// TODO: check the up axis and winding against rendered output of a known
// skybox; the order is a fixed convention that has not been verified.
func (f CubeFaces) layers() [6][]byte {
	return [6][]byte{f.Right, f.Left, f.Top, f.Bottom, f.Front, f.Back}
}

// Cubemap is a 6-layer cube image registered in the cubemap table.
type Cubemap struct {
	image  *ImageMemory
	view   driver.ImageView
	handle ImageHandle
	u      *Uniforms
}

// NewCubemap uploads the six faces and registers the cube view with u. It
// blocks until the upload has finished.
func NewCubemap(dev *Device, u *Uniforms, faces CubeFaces, format Format) (*Cubemap, error) {
	size := uint64(faces.Size) * uint64(faces.Size) * uint64(format.BytesPerPixel())
	if size == 0 {
		return nil, errors.New("diesel: empty cubemap")
	}
	var staging [6]*BufferMemory
	for i, face := range faces.layers() {
		if uint64(len(face)) != size {
			return nil, errors.Wrapf(ErrCapacity, "face %d has %d bytes, want %d", i, len(face), size)
		}
	}
	for i, face := range faces.layers() {
		staging[i] = NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, size)
		defer staging[i].Destroy()
		if err := staging[i].CopyFromData(face); err != nil {
			return nil, err
		}
	}

	img := NewImageMemory(dev, ImageDesc{
		Width:  faces.Size,
		Height: faces.Size,
		Cube:   true,
		Format: format,
		Usage:  []ImageUsage{ImageSampled, ImageTransferDst},
	})
	var err error
	dev.DoCommands(func(cmd *Commands) {
		img.Transition(cmd, LayoutTransferDst)
		for layer, buf := range staging {
			if err = img.CopyFromMemory(cmd, buf, uint32(layer)); err != nil {
				return
			}
		}
		img.Transition(cmd, LayoutShaderColor)
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}

	c := &Cubemap{image: img, view: img.CreateView(), u: u}
	if c.handle, err = u.AddCubemap(c.view); err != nil {
		img.Destroy()
		return nil, err
	}
	return c, nil
}

// Index is the cubemap array index shaders sample with.
func (c *Cubemap) Index() int             { return c.handle.Index() }
func (c *Cubemap) Handle() ImageHandle    { return c.handle }
func (c *Cubemap) Image() *ImageMemory    { return c.image }
func (c *Cubemap) View() driver.ImageView { return c.view }

func (c *Cubemap) Destroy() {
	c.u.RemoveCubemap(c.handle)
	c.image.Destroy()
}
