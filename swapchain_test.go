package diesel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
	"github.com/andewx/diesel/driver/soft"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := driver.SurfaceFormat{Format: driver.FormatBGRA8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	unorm := driver.SurfaceFormat{Format: driver.FormatBGRA8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}
	rgba := driver.SurfaceFormat{Format: driver.FormatRGBA8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, chooseSurfaceFormat([]driver.SurfaceFormat{unorm, rgba, srgb}))
	assert.Equal(t, rgba, chooseSurfaceFormat([]driver.SurfaceFormat{rgba, unorm}))
	assert.Panics(t, func() { chooseSurfaceFormat(nil) })
}

func TestChoosePresentMode(t *testing.T) {
	all := []driver.PresentMode{driver.PresentFifo, driver.PresentImmediate, driver.PresentMailbox}
	cases := []struct {
		name  string
		modes []driver.PresentMode
		vsync bool
		want  driver.PresentMode
	}{
		{"vsync", all, true, driver.PresentFifo},
		{"mailbox first", all, false, driver.PresentMailbox},
		{"immediate", []driver.PresentMode{driver.PresentFifo, driver.PresentImmediate}, false, driver.PresentImmediate},
		{"fifo only", []driver.PresentMode{driver.PresentFifo}, false, driver.PresentFifo},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, choosePresentMode(c.modes, c.vsync))
		})
	}
}

func TestChooseExtent(t *testing.T) {
	fixed := driver.SurfaceCapabilities{CurrentWidth: 640, CurrentHeight: 480}
	w, h := chooseExtent(fixed, 10, 10)
	assert.Equal(t, [2]uint32{640, 480}, [2]uint32{w, h})

	free := driver.SurfaceCapabilities{
		CurrentWidth: ^uint32(0),
		MinWidth:     16,
		MinHeight:    16,
		MaxWidth:     1024,
		MaxHeight:    1024,
	}
	w, h = chooseExtent(free, 4, 4096)
	assert.Equal(t, [2]uint32{16, 1024}, [2]uint32{w, h})
}

func TestNewSwapchain(t *testing.T) {
	dev, drv := newTestDevice(t)
	surface := drv.NewSurface(64, 48)
	defer drv.DestroySurface(surface)

	sc := NewSwapchain(dev, surface, 0, 0, true)
	defer sc.Destroy()
	assert.Equal(t, 3, sc.Len())
	assert.Equal(t, uint32(64), sc.Width())
	assert.Equal(t, uint32(48), sc.Height())
	assert.Equal(t, FormatBGRA8Srgb, sc.Format())
	assert.Equal(t, driver.PresentFifo, sc.PresentMode())

	sc.Recreate(0, 0, false)
	assert.Equal(t, driver.PresentMailbox, sc.PresentMode())
	assert.False(t, sc.VSync())
}

// frame records and presents one cleared frame. It reports whether the
// swapchain asked to be recreated.
func frame(dev *Device, sc *Swapchain, targets []*Framebuffer) bool {
	if sc.Next(dev.AcquireSemaphore()) {
		dev.Submit(false)
		dev.AdvanceFrame()
		return true
	}
	cmd := dev.Commands()
	target := targets[sc.Current()]
	target.Begin(cmd)
	target.End(cmd)
	dev.Submit(true)
	stale := dev.Present(sc)
	dev.AdvanceFrame()
	return stale
}

func TestSwapchainFrameLoop(t *testing.T) {
	drv := soft.New()
	dev := NewDevice(drv, testConfig())
	surface := drv.NewSurface(8, 8)
	sc := NewSwapchain(dev, surface, 0, 0, true)
	targets := SwapchainTargets(dev, sc, true, [4]float32{0, 0, 1, 1})
	require.Len(t, targets, sc.Len())

	for i := 0; i < 2*sc.Len(); i++ {
		require.False(t, frame(dev, sc, targets), "frame %d", i)
	}
	assert.Equal(t, 2*sc.Len(), drv.Counters().Presents)
	for i := 0; i < sc.Len(); i++ {
		l, ok := drv.ImageLayout(sc.Image(i).Handle(), 0, 0)
		require.True(t, ok)
		assert.Equal(t, driver.LayoutPresentSrc, l)
	}
	// BGRA: the blue clear lands in byte 0.
	assert.Equal(t, []byte{255, 0, 0, 255}, drv.ImagePixels(sc.Image(0).Handle(), 0, 0)[:4])

	// A resize between submission and presentation.
	require.False(t, sc.Next(dev.AcquireSemaphore()))
	cmd := dev.Commands()
	targets[sc.Current()].Begin(cmd)
	targets[sc.Current()].End(cmd)
	dev.Submit(true)
	drv.ResizeSurface(surface, 20, 10)
	assert.True(t, dev.Present(sc))
	dev.AdvanceFrame()

	assert.True(t, frame(dev, sc, targets), "acquire on a stale swapchain")

	DestroyTargets(dev, targets)
	sc.Recreate(0, 0, true)
	assert.Equal(t, uint32(0), sc.Current())
	assert.Equal(t, uint32(20), sc.Width())
	assert.Equal(t, uint32(10), sc.Height())
	targets = SwapchainTargets(dev, sc, false, [4]float32{})
	for i := 0; i < sc.Len(); i++ {
		require.False(t, frame(dev, sc, targets), "frame %d after recreate", i)
	}
	desc, ok := drv.ImageDesc(sc.Image(0).Handle())
	require.True(t, ok)
	assert.Equal(t, uint32(20), desc.Width)

	DestroyTargets(dev, targets)
	sc.Destroy()
	drv.DestroySurface(surface)
	dev.Destroy()
	assert.Empty(t, drv.Leaks())
}
