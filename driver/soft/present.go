package soft

import (
	"github.com/andewx/diesel/driver"
)

type surface struct {
	width, height uint32
}

type swapchain struct {
	desc   driver.SwapchainDesc
	images []driver.Image
	next   uint32
	stale  bool
}

// NewSurface creates an off-screen surface of the given size.
func (d *Driver) NewSurface(width, height uint32) driver.Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := driver.Surface(d.newHandle("surface"))
	d.surfaces[h] = &surface{width: width, height: height}
	return h
}

// ResizeSurface changes the size of s. Swapchains built for the old size
// report ErrOutOfDate from then on.
func (d *Driver) ResizeSurface(s driver.Surface, width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sf := d.surfaces[s]
	if sf == nil || (sf.width == width && sf.height == height) {
		return
	}
	sf.width, sf.height = width, height
	for _, sc := range d.swapchains {
		if sc.desc.Surface == s {
			sc.stale = true
		}
	}
}

func (d *Driver) DestroySurface(s driver.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.surfaces, s)
	d.drop(driver.Handle(s))
}

func (d *Driver) SurfaceCapabilities(s driver.Surface) (driver.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sf := d.surfaces[s]
	if sf == nil {
		return driver.SurfaceCapabilities{}, driver.Errorf("soft.SurfaceCapabilities", driver.ErrSurfaceLost, "surface %d", s)
	}
	return driver.SurfaceCapabilities{
		MinImageCount: 2,
		MaxImageCount: 8,
		CurrentWidth:  sf.width,
		CurrentHeight: sf.height,
		MinWidth:      1,
		MinHeight:     1,
		MaxWidth:      d.Limits().MaxImageDimension2D,
		MaxHeight:     d.Limits().MaxImageDimension2D,
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatBGRA8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
			{Format: driver.FormatBGRA8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear},
			{Format: driver.FormatRGBA8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []driver.PresentMode{driver.PresentFifo, driver.PresentMailbox, driver.PresentImmediate},
	}, nil
}

func (d *Driver) CreateSwapchain(desc driver.SwapchainDesc) (driver.Swapchain, error) {
	const name = "soft.CreateSwapchain"
	d.mu.Lock()
	defer d.mu.Unlock()
	sf := d.surfaces[desc.Surface]
	if sf == nil {
		return 0, driver.Errorf(name, driver.ErrSurfaceLost, "surface %d", desc.Surface)
	}
	if desc.ImageCount < 2 || desc.ImageCount > 8 {
		return 0, invalid(name, "image count %d", desc.ImageCount)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return 0, invalid(name, "empty extent")
	}
	if desc.Old != 0 {
		if old := d.swapchains[desc.Old]; old != nil {
			old.stale = true
		}
	}
	sc := &swapchain{desc: desc}
	for i := uint32(0); i < desc.ImageCount; i++ {
		img := newImage(driver.ImageDesc{
			Width: desc.Width, Height: desc.Height,
			MipLevels: 1, ArrayLayers: 1,
			Format: desc.Format.Format,
			Usage:  driver.ImageColorAttachment | driver.ImageTransferDst,
		})
		img.swapchain = true
		h := driver.Image(d.newHandle("swapchain image"))
		d.images[h] = img
		sc.images = append(sc.images, h)
	}
	h := driver.Swapchain(d.newHandle("swapchain"))
	d.swapchains[h] = sc
	return h, nil
}

func (d *Driver) SwapchainImages(h driver.Swapchain) ([]driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return nil, badHandle("soft.SwapchainImages", h)
	}
	return append([]driver.Image(nil), sc.images...), nil
}

func (d *Driver) DestroySwapchain(h driver.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sc := d.swapchains[h]; sc != nil {
		for _, img := range sc.images {
			delete(d.images, img)
			d.drop(driver.Handle(img))
		}
	}
	delete(d.swapchains, h)
	d.drop(driver.Handle(h))
}

func (d *Driver) AcquireNextImage(h driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	const name = "soft.AcquireNextImage"
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return 0, badHandle(name, h)
	}
	if sc.stale {
		return 0, driver.Errorf(name, driver.ErrOutOfDate, "swapchain %d", h)
	}
	if signal != 0 {
		sem := d.semaphores[signal]
		if sem == nil {
			return 0, badHandle(name, signal)
		}
		if sem.signals > 0 {
			return 0, invalid(name, "semaphore %d already has a pending signal", signal)
		}
		sem.signals++
	}
	d.counters.Acquires++
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, nil
}

func (d *Driver) Present(h driver.Swapchain, index uint32, wait driver.Semaphore) error {
	const name = "soft.Present"
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return badHandle(name, h)
	}
	if int(index) >= len(sc.images) {
		return invalid(name, "image index %d of %d", index, len(sc.images))
	}
	if wait != 0 {
		sem := d.semaphores[wait]
		if sem == nil {
			return badHandle(name, wait)
		}
		if sem.signals == 0 {
			return invalid(name, "wait on semaphore %d that has no pending signal", wait)
		}
		sem.signals--
	}
	if sc.stale {
		return driver.Errorf(name, driver.ErrOutOfDate, "swapchain %d", h)
	}
	if l := d.images[sc.images[index]].layouts[0][0]; l != driver.LayoutPresentSrc {
		return invalid(name, "image %d is %v, present expects %v", index, l, driver.LayoutPresentSrc)
	}
	d.counters.Presents++
	return nil
}
