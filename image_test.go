package diesel

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

func newTestUniforms(t *testing.T, dev *Device) *Uniforms {
	t.Helper()
	layout := NewShaderLayout(dev, dev.Config())
	u := NewUniforms(dev, layout)
	t.Cleanup(func() {
		u.Destroy()
		layout.Destroy()
	})
	return u
}

// boxDown halves an RGBA8 level the way a linear blit at texel centers
// does: each output texel is the rounded mean of its 2x2 (or 2x1) block.
func boxDown(src []byte, sw, sh uint32) ([]byte, uint32, uint32) {
	dw, dh := max(sw/2, 1), max(sh/2, 1)
	fx, fy := sw/dw, sh/dh
	out := make([]byte, dw*dh*4)
	for y := uint32(0); y < dh; y++ {
		for x := uint32(0); x < dw; x++ {
			for c := uint32(0); c < 4; c++ {
				var sum float64
				for by := uint32(0); by < fy; by++ {
					for bx := uint32(0); bx < fx; bx++ {
						sum += float64(src[((y*fy+by)*sw+x*fx+bx)*4+c])
					}
				}
				out[(y*dw+x)*4+c] = uint8(sum/float64(fx*fy) + 0.5)
			}
		}
	}
	return out, dw, dh
}

func gradient(w, h uint32) []byte {
	px := make([]byte, w*h*4)
	for i := range px {
		px[i] = byte(i * 37 % 251)
	}
	return px
}

func TestMipCount(t *testing.T) {
	assert.Equal(t, uint32(1), MipCount(1, 1))
	assert.Equal(t, uint32(3), MipCount(4, 4))
	assert.Equal(t, uint32(4), MipCount(8, 2))
	assert.Equal(t, uint32(10), MipCount(300, 512))
	assert.Equal(t, uint32(1), MipCount(0, 0))
}

func TestGenerateMipmaps(t *testing.T) {
	for _, size := range [][2]uint32{{4, 4}, {8, 8}, {8, 2}, {2, 8}} {
		dev, drv := newTestDevice(t)
		w, h := size[0], size[1]
		mips := MipCount(w, h)
		pixels := gradient(w, h)

		staging := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, uint64(len(pixels)))
		require.NoError(t, staging.CopyFromData(pixels))
		img := NewImageMemory(dev, ImageDesc{
			Width: w, Height: h, MipLevels: mips, Format: FormatRGBA8,
			Usage: []ImageUsage{ImageSampled, ImageTransferSrc, ImageTransferDst},
		})
		blits := drv.Counters().Blits
		var err error
		dev.DoCommands(func(cmd *Commands) {
			img.Transition(cmd, LayoutTransferDst)
			require.NoError(t, img.CopyFromMemory(cmd, staging, 0))
			err = img.GenerateMipmaps(cmd)
		})
		require.NoError(t, err)
		assert.Equal(t, int(mips-1), drv.Counters().Blits-blits, "%dx%d", w, h)
		assert.Equal(t, LayoutShaderColor, img.Layout())

		prev, pw, ph := drv.ImagePixels(img.Handle(), 0, 0), w, h
		assert.Equal(t, pixels, prev)
		for k := uint32(1); k < mips; k++ {
			want, nw, nh := boxDown(prev, pw, ph)
			got := drv.ImagePixels(img.Handle(), 0, k)
			assert.Equal(t, want, got, "%dx%d mip %d", w, h, k)
			prev, pw, ph = got, nw, nh
		}
		for k := uint32(0); k < mips; k++ {
			l, ok := drv.ImageLayout(img.Handle(), 0, k)
			require.True(t, ok)
			assert.Equal(t, driver.LayoutShaderReadOnly, l, "%dx%d mip %d", w, h, k)
		}
		staging.Destroy()
		img.Destroy()
	}
}

func TestGenerateMipmapsNeedsTransferDst(t *testing.T) {
	dev, _ := newTestDevice(t)
	img := NewImageMemory(dev, ImageDesc{Width: 4, Height: 4, MipLevels: 3, Format: FormatRGBA8})
	defer img.Destroy()
	dev.DoCommands(func(cmd *Commands) {
		err := img.GenerateMipmaps(cmd)
		assert.True(t, errors.Is(err, ErrLayout), "got %v", err)
	})
}

func TestCopyFromMemoryPreconditions(t *testing.T) {
	dev, _ := newTestDevice(t)
	img := NewImageMemory(dev, ImageDesc{Width: 2, Height: 2, Format: FormatRGBA8, Usage: []ImageUsage{ImageTransferDst}})
	defer img.Destroy()
	small := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, 8)
	defer small.Destroy()
	full := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, 16)
	defer full.Destroy()

	dev.DoCommands(func(cmd *Commands) {
		err := img.CopyFromMemory(cmd, full, 0)
		assert.True(t, errors.Is(err, ErrLayout), "got %v", err)

		img.Transition(cmd, LayoutTransferDst)
		err = img.CopyFromMemory(cmd, full, 1)
		assert.True(t, errors.Is(err, ErrLayerRange), "got %v", err)
		err = img.CopyFromMemory(cmd, small, 0)
		assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)
		assert.NoError(t, img.CopyFromMemory(cmd, full, 0))
	})
}

func TestBarrierMasksDependOnlyOnLayouts(t *testing.T) {
	rng := driver.SubresourceRange{Aspect: driver.AspectColor, MipCount: 1, LayerCount: 1}
	b, src, dst := barrier(1, rng, LayoutTransferDst, LayoutShaderColor)
	assert.Equal(t, driver.AccessTransferWrite, b.SrcAccess)
	assert.Equal(t, driver.AccessShaderRead, b.DstAccess)
	assert.Equal(t, driver.StageTransfer, src)
	assert.Equal(t, driver.StageFragmentShader, dst)
	assert.Equal(t, driver.LayoutTransferDst, b.OldLayout)
	assert.Equal(t, driver.LayoutShaderReadOnly, b.NewLayout)

	layouts := []Layout{LayoutUndefined, LayoutTransferDst, LayoutTransferSrc, LayoutShaderColor, LayoutColor, LayoutDepth, LayoutPresent}
	for _, from := range layouts {
		for _, to := range layouts {
			b1, s1, d1 := barrier(1, rng, from, to)
			b2, s2, d2 := barrier(2, rng, from, to)
			b2.Image = b1.Image
			assert.Equal(t, b1, b2)
			assert.Equal(t, s1, s2)
			assert.Equal(t, d1, d2)
			a, _ := from.access()
			assert.Equal(t, a, b1.SrcAccess, "%v -> %v", from, to)
		}
	}
}

func TestTextureEndToEnd(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)

	pixels := gradient(4, 4)
	tex, err := NewTexture(dev, u, TextureDesc{Width: 4, Height: 4, Format: FormatRGBA8, Filter: FilterLinear}, pixels)
	require.NoError(t, err)
	defer tex.Destroy()

	assert.Equal(t, 0, tex.Index())
	assert.Equal(t, LayoutShaderColor, tex.Image().Layout())
	assert.Equal(t, uint32(3), tex.Image().MipLevels())
	for k := uint32(0); k < 3; k++ {
		l, ok := drv.ImageLayout(tex.Image().Handle(), 0, k)
		require.True(t, ok)
		assert.Equal(t, driver.LayoutShaderReadOnly, l)
	}
	assert.Equal(t, pixels, drv.ImagePixels(tex.Image().Handle(), 0, 0))
	assert.Equal(t, SamplerIndex(FilterLinear, WrapRepeat, MipNearest), tex.SamplerIndex())

	view, ok := u.Image(tex.Handle())
	require.True(t, ok)
	assert.Equal(t, tex.View(), view)

	second, err := NewTexture(dev, u, TextureDesc{Width: 1, Height: 1, Format: FormatRGBA8}, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	defer second.Destroy()
	assert.Equal(t, 1, second.Index())
}

func TestTextureRejectsWrongPixelCount(t *testing.T) {
	dev, _ := newTestDevice(t)
	u := newTestUniforms(t, dev)

	_, err := NewTexture(dev, u, TextureDesc{Width: 4, Height: 4, Format: FormatRGBA8}, make([]byte, 10))
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)
	_, err = NewTexture(dev, u, TextureDesc{Format: FormatRGBA8}, nil)
	assert.Error(t, err)
	assert.Zero(t, u.ImageCount())
}

func TestTextureFromImage(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)

	src := image.NewNRGBA(image.Rect(10, 10, 12, 12))
	src.Set(10, 10, color.NRGBA{R: 255, A: 255})
	src.Set(11, 11, color.NRGBA{B: 255, A: 255})

	tex, err := NewTextureFromImage(dev, u, src, TextureDesc{Filter: FilterNearest})
	require.NoError(t, err)
	defer tex.Destroy()

	assert.Equal(t, uint32(2), tex.Image().Width())
	assert.Equal(t, FormatRGBA8, tex.Image().Format())
	px := drv.ImagePixels(tex.Image().Handle(), 0, 0)
	assert.Equal(t, []byte{255, 0, 0, 255}, px[0:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, px[12:16])
}

func TestCubemapLayerOrder(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)

	face := func(v byte) []byte {
		b := make([]byte, 2*2*4)
		for i := range b {
			b[i] = v
		}
		return b
	}
	faces := CubeFaces{
		Size:   2,
		Right:  face(10),
		Left:   face(20),
		Top:    face(30),
		Bottom: face(40),
		Front:  face(50),
		Back:   face(60),
	}
	cube, err := NewCubemap(dev, u, faces, FormatRGBA8)
	require.NoError(t, err)
	defer cube.Destroy()

	assert.Equal(t, 0, cube.Index())
	assert.Equal(t, uint32(6), cube.Image().Layers())
	assert.Equal(t, LayoutShaderColor, cube.Image().Layout())
	desc, ok := drv.ImageDesc(cube.Image().Handle())
	require.True(t, ok)
	assert.True(t, desc.CubeCompatible)

	for layer, want := range []byte{10, 20, 30, 40, 50, 60} {
		assert.Equal(t, face(want), drv.ImagePixels(cube.Image().Handle(), uint32(layer), 0), "layer %d", layer)
		l, _ := drv.ImageLayout(cube.Image().Handle(), uint32(layer), 0)
		assert.Equal(t, driver.LayoutShaderReadOnly, l)
	}
}

func TestCubemapRejectsShortFace(t *testing.T) {
	dev, _ := newTestDevice(t)
	u := newTestUniforms(t, dev)

	faces := CubeFaces{Size: 2, Right: make([]byte, 16), Left: make([]byte, 16), Top: make([]byte, 16),
		Bottom: make([]byte, 16), Front: make([]byte, 15), Back: make([]byte, 16)}
	_, err := NewCubemap(dev, u, faces, FormatRGBA8)
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)
}

func TestOffscreenFramebuffer(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)

	fb, err := NewFramebuffer(dev, u, FramebufferDesc{
		Width: 4, Height: 4, Color: FormatRGBA8, Depth: true,
		ClearColor: [4]float32{1, 0, 0, 1},
	})
	require.NoError(t, err)
	defer fb.Destroy()
	assert.Equal(t, 0, fb.Index())
	assert.True(t, fb.HasDepth())
	assert.Equal(t, LayoutShaderColor, fb.Color().Layout())

	cmd := dev.Commands()
	fb.Begin(cmd)
	fb.End(cmd)
	dev.Submit(false)
	dev.WaitIdle()

	l, _ := drv.ImageLayout(fb.Color().Handle(), 0, 0)
	assert.Equal(t, driver.LayoutShaderReadOnly, l)
	px := drv.ImagePixels(fb.Color().Handle(), 0, 0)
	assert.Equal(t, []byte{255, 0, 0, 255}, px[:4])
}
