package main

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/andewx/diesel"
	"github.com/andewx/diesel/driver/soft"
)

type fakeWindow struct {
	width, height uint32
	resized       bool
	closed        bool
	polls, waits  int
	title         string
}

func (w *fakeWindow) FramebufferSize() (uint32, uint32) { return w.width, w.height }
func (w *fakeWindow) ShouldClose() bool                 { return w.closed }
func (w *fakeWindow) SetTitle(title string)             { w.title = title }
func (w *fakeWindow) Poll()                             { w.polls++ }

func (w *fakeWindow) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

// Wait stands in for a restore event after a minimize.
func (w *fakeWindow) Wait() {
	w.waits++
	w.width, w.height = 16, 16
	w.resized = true
}

func module() []byte {
	out := make([]byte, 20)
	for i, word := range []uint32{diesel.SpirvMagic, 0x00010000, 0, 4, 0} {
		binary.LittleEndian.PutUint32(out[4*i:], word)
	}
	return out
}

func testScene() scene {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	return scene{
		image: img,
		shader: &diesel.ShaderDescriptor{
			Name:     "fullscreen",
			Vertex:   module(),
			Fragment: module(),
			Depth:    diesel.DepthReadWrite,
		},
	}
}

func testDevice(t *testing.T) (*diesel.Device, *soft.Driver) {
	t.Helper()
	drv := soft.New()
	cfg := diesel.DefaultConfig()
	cfg.BindlessCapacity = 8
	cfg.CubemapCapacity = 2
	cfg.ShadowCapacity = 2
	return diesel.NewDevice(drv, cfg), drv
}

func TestViewerLoop(t *testing.T) {
	dev, drv := testDevice(t)
	surface := drv.NewSurface(32, 24)

	v, err := newViewer(dev, surface, 32, 24, testScene())
	require.NoError(t, err)
	require.NotNil(t, v.pipeline)
	require.NotNil(t, v.texture)

	win := &fakeWindow{width: 32, height: 24}
	require.NoError(t, v.loop(win, 5))
	assert.Equal(t, 5, v.frames)
	assert.Equal(t, 5, drv.Counters().Presents)
	assert.Equal(t, 5, win.polls)

	drv.ResizeSurface(surface, 48, 40)
	win.width, win.height, win.resized = 48, 40, true
	require.NoError(t, v.loop(win, 8))
	assert.Equal(t, uint32(48), v.sc.Width())
	assert.Equal(t, uint32(40), v.sc.Height())
	assert.Len(t, v.targets, v.sc.Len())

	v.destroy()
	dev.Destroy()
	drv.DestroySurface(surface)
	assert.Empty(t, drv.Leaks())
}

func TestViewerWaitsWhileMinimized(t *testing.T) {
	dev, drv := testDevice(t)
	surface := drv.NewSurface(16, 16)

	v, err := newViewer(dev, surface, 16, 16, scene{})
	require.NoError(t, err)
	assert.Nil(t, v.pipeline)

	win := &fakeWindow{}
	require.NoError(t, v.loop(win, 2))
	assert.Equal(t, 1, win.waits)
	assert.Equal(t, 2, v.frames)

	v.destroy()
	dev.Destroy()
	drv.DestroySurface(surface)
	assert.Empty(t, drv.Leaks())
}

func TestViewerClosedWindow(t *testing.T) {
	dev, drv := testDevice(t)
	surface := drv.NewSurface(16, 16)
	v, err := newViewer(dev, surface, 16, 16, scene{})
	require.NoError(t, err)

	require.NoError(t, v.loop(&fakeWindow{width: 16, height: 16, closed: true}, 0))
	assert.Zero(t, v.frames)

	v.destroy()
	dev.Destroy()
	drv.DestroySurface(surface)
}

func TestLoadScene(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	f, err := os.Create(filepath.Join(dir, "tex.bmp"))
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, img))
	require.NoError(t, f.Close())

	desc := testScene().shader
	data, err := desc.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fs.yaml"), data, 0o644))

	s, err := loadScene(filepath.Join(dir, "tex.bmp"), filepath.Join(dir, "fs.yaml"))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 2), s.image.Bounds().Size())
	assert.Equal(t, "fullscreen", s.shader.Name)

	_, err = loadScene(filepath.Join(dir, "fs.yaml"), "")
	assert.Error(t, err)
}

func TestWorldLayout(t *testing.T) {
	data, err := binary.Append(nil, binary.LittleEndian, world{Time: 1, Width: 2, Height: 3, Texture: -1})
	require.NoError(t, err)
	assert.Len(t, data, worldSize)
}
