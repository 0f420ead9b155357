package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// Swapchain is the ring of presentable images of one surface.
type Swapchain struct {
	dev     *Device
	surface driver.Surface
	handle  driver.Swapchain
	images  []*ImageMemory
	current uint32

	width, height uint32
	format        driver.SurfaceFormat
	mode          driver.PresentMode
	vsync         bool
}

// NewSwapchain builds a swapchain for surface. width and height are used
// only when the surface lets the swapchain choose its extent.
func NewSwapchain(dev *Device, surface driver.Surface, width, height uint32, vsync bool) *Swapchain {
	s := &Swapchain{dev: dev, surface: surface}
	s.build(width, height, vsync)
	return s
}

// Recreate rebuilds the swapchain in place after a resize or a vsync
// change. It waits for the queue to drain first. Framebuffers built on
// the old images must be rebuilt by the caller.
func (s *Swapchain) Recreate(width, height uint32, vsync bool) {
	s.dev.WaitIdle()
	s.build(width, height, vsync)
}

func (s *Swapchain) build(width, height uint32, vsync bool) {
	drv := s.dev.drv
	caps, err := drv.SurfaceCapabilities(s.surface)
	orPanic(err, "diesel: surface capabilities")

	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	w, h := chooseExtent(caps, width, height)
	format := chooseSurfaceFormat(caps.Formats)
	mode := choosePresentMode(caps.PresentModes, vsync)

	old := s.handle
	handle, err := drv.CreateSwapchain(driver.SwapchainDesc{
		Surface:     s.surface,
		ImageCount:  count,
		Format:      format,
		Width:       w,
		Height:      h,
		PresentMode: mode,
		Old:         old,
	})
	orPanic(err, "diesel: create swapchain")
	if old != 0 {
		drv.DestroySwapchain(old)
	}
	handles, err := drv.SwapchainImages(handle)
	orPanic(err, "diesel: swapchain images")

	f, ok := formatFromDriver(format.Format)
	if !ok {
		panic(errors.Errorf("diesel: swapchain format %d has no engine format", format.Format))
	}
	s.images = s.images[:0]
	for _, img := range handles {
		s.images = append(s.images, wrapSwapchainImage(s.dev, img, w, h, f))
	}
	s.handle, s.width, s.height = handle, w, h
	s.format, s.mode, s.vsync = format, mode, vsync
	s.current = 0
	Logger().Info("diesel: swapchain built", "width", w, "height", h, "images", len(handles), "mode", mode)
}

func chooseExtent(caps driver.SurfaceCapabilities, width, height uint32) (uint32, uint32) {
	if caps.CurrentWidth != ^uint32(0) {
		return caps.CurrentWidth, caps.CurrentHeight
	}
	return clamp(width, caps.MinWidth, caps.MaxWidth), clamp(height, caps.MinHeight, caps.MaxHeight)
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// chooseSurfaceFormat prefers 8-bit BGRA sRGB, then whatever comes first.
func chooseSurfaceFormat(formats []driver.SurfaceFormat) driver.SurfaceFormat {
	for _, f := range formats {
		if f.Format == driver.FormatBGRA8Srgb && f.ColorSpace == driver.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		panic("diesel: surface reports no formats")
	}
	return formats[0]
}

// choosePresentMode returns FIFO for vsync. Otherwise it prefers mailbox,
// then immediate; FIFO is always available.
func choosePresentMode(modes []driver.PresentMode, vsync bool) driver.PresentMode {
	if vsync {
		return driver.PresentFifo
	}
	for _, want := range []driver.PresentMode{driver.PresentMailbox, driver.PresentImmediate} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return driver.PresentFifo
}

// Next acquires the next image and arranges for signal to be signaled
// when it is ready. It reports true when the swapchain is out of date; the
// caller should then recreate it and skip presenting this frame.
func (s *Swapchain) Next(signal driver.Semaphore) bool {
	idx, err := s.dev.drv.AcquireNextImage(s.handle, driver.Infinite, signal)
	if errors.Is(err, driver.ErrOutOfDate) {
		Logger().Warn("diesel: swapchain out of date on acquire")
		return true
	}
	orPanic(err, "diesel: acquire swapchain image")
	s.current = idx
	return false
}

func (s *Swapchain) Handle() driver.Swapchain { return s.handle }
func (s *Swapchain) Width() uint32            { return s.width }
func (s *Swapchain) Height() uint32           { return s.height }
func (s *Swapchain) VSync() bool              { return s.vsync }

// Current returns the index of the acquired image.
func (s *Swapchain) Current() uint32 { return s.current }

// Len returns the number of images.
func (s *Swapchain) Len() int { return len(s.images) }

// Image returns image i of the chain.
func (s *Swapchain) Image(i int) *ImageMemory { return s.images[i] }

// Format returns the engine format of the images.
func (s *Swapchain) Format() Format { return s.images[0].format }

// PresentMode returns the mode picked at the last build.
func (s *Swapchain) PresentMode() driver.PresentMode { return s.mode }

// Destroy waits for the queue and destroys the swapchain and its images.
func (s *Swapchain) Destroy() {
	if s.handle == 0 {
		return
	}
	s.dev.WaitIdle()
	s.dev.drv.DestroySwapchain(s.handle)
	s.handle, s.images = 0, nil
}
