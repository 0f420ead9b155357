package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

func (d *Driver) SurfaceCapabilities(h driver.Surface) (driver.SurfaceCapabilities, error) {
	s, ok := lookup(d, &d.surfaces, h)
	if !ok {
		return driver.SurfaceCapabilities{}, badHandle("SurfaceCapabilities", h)
	}
	var caps vk.SurfaceCapabilities
	if err := check("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, s, &caps)); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	out := driver.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentWidth:  caps.CurrentExtent.Width,
		CurrentHeight: caps.CurrentExtent.Height,
		MinWidth:      caps.MinImageExtent.Width,
		MinHeight:     caps.MinImageExtent.Height,
		MaxWidth:      caps.MaxImageExtent.Width,
		MaxHeight:     caps.MaxImageExtent.Height,
	}

	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.gpu, s, &count, nil)
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(d.gpu, s, &count, formats)
	for _, f := range formats {
		f.Deref()
		if f.ColorSpace != vk.ColorSpaceSrgbNonlinear {
			continue
		}
		if f.Format == vk.FormatUndefined {
			// The surface takes anything; offer the usual pair.
			out.Formats = append(out.Formats,
				driver.SurfaceFormat{Format: driver.FormatBGRA8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
				driver.SurfaceFormat{Format: driver.FormatBGRA8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear})
			continue
		}
		if df, ok := fromVkFormat(f.Format); ok {
			out.Formats = append(out.Formats, driver.SurfaceFormat{Format: df, ColorSpace: driver.ColorSpaceSrgbNonlinear})
		}
	}

	count = 0
	vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, s, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, s, &count, modes)
	for _, m := range modes {
		if dm, ok := fromVkPresentMode(m); ok {
			out.PresentModes = append(out.PresentModes, dm)
		}
	}
	if len(out.Formats) == 0 {
		return out, driver.Errorf("SurfaceCapabilities", driver.ErrFormatNotSupported, "no sRGB surface formats")
	}
	return out, nil
}

func (d *Driver) CreateSwapchain(desc driver.SwapchainDesc) (driver.Swapchain, error) {
	s, ok := lookup(d, &d.surfaces, desc.Surface)
	if !ok {
		return 0, badHandle("CreateSwapchain", desc.Surface)
	}
	var caps vk.SurfaceCapabilities
	if err := check("vkGetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, s, &caps)); err != nil {
		return 0, err
	}
	caps.Deref()

	// Figure out a suitable surface transform.
	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	// One of these is guaranteed to be set.
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	old := vk.NullSwapchain
	if desc.Old != 0 {
		prev, ok := lookup(d, &d.swapchains, desc.Old)
		if !ok {
			return 0, badHandle("CreateSwapchain", desc.Old)
		}
		old = prev.vk
	}

	var sc vk.Swapchain
	ret := vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      vkFormat(desc.Format.Format),
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      vk.Extent2D{Width: desc.Width, Height: desc.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &sc)
	if err := check("vkCreateSwapchain", ret); err != nil {
		return 0, err
	}

	var count uint32
	if err := check("vkGetSwapchainImages", vk.GetSwapchainImages(d.device, sc, &count, nil)); err != nil {
		vk.DestroySwapchain(d.device, sc, nil)
		return 0, err
	}
	raw := make([]vk.Image, count)
	if err := check("vkGetSwapchainImages", vk.GetSwapchainImages(d.device, sc, &count, raw)); err != nil {
		vk.DestroySwapchain(d.device, sc, nil)
		return 0, err
	}
	entry := &swapchain{vk: sc, surface: desc.Surface}
	imgDesc := driver.ImageDesc{
		Width:       desc.Width,
		Height:      desc.Height,
		MipLevels:   1,
		ArrayLayers: 1,
		Format:      desc.Format.Format,
		Usage:       driver.ImageColorAttachment,
	}
	for _, img := range raw {
		entry.images = append(entry.images, add(d, &d.images, &image{vk: img, desc: imgDesc}))
	}
	log().Info("vulkan: swapchain created", "images", count, "width", desc.Width, "height", desc.Height)
	return add(d, &d.swapchains, entry), nil
}

func (d *Driver) SwapchainImages(h driver.Swapchain) ([]driver.Image, error) {
	sc, ok := lookup(d, &d.swapchains, h)
	if !ok {
		return nil, badHandle("SwapchainImages", h)
	}
	return append([]driver.Image(nil), sc.images...), nil
}

// DestroySwapchain destroys the swapchain and forgets its images. Views of
// those images must be destroyed first.
func (d *Driver) DestroySwapchain(h driver.Swapchain) {
	sc, ok := take(d, &d.swapchains, h)
	if !ok {
		return
	}
	d.mu.Lock()
	for _, img := range sc.images {
		delete(d.images.items, img)
	}
	d.mu.Unlock()
	vk.DestroySwapchain(d.device, sc.vk, nil)
}

// AcquireNextImage reports ErrOutOfDate when the swapchain must be rebuilt.
// A suboptimal swapchain still returns its image; Present reports it.
func (d *Driver) AcquireNextImage(h driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	sc, ok := lookup(d, &d.swapchains, h)
	if !ok {
		return 0, badHandle("AcquireNextImage", h)
	}
	sem, ok := lookup(d, &d.semaphores, signal)
	if !ok {
		return 0, badHandle("AcquireNextImage", signal)
	}
	var index uint32
	ret := vk.AcquireNextImage(d.device, sc.vk, timeout, sem, vk.Fence(vk.NullHandle), &index)
	if ret == vk.Suboptimal {
		return index, nil
	}
	return index, check("vkAcquireNextImage", ret)
}

func (d *Driver) Present(h driver.Swapchain, index uint32, wait driver.Semaphore) error {
	sc, ok := lookup(d, &d.swapchains, h)
	if !ok {
		return badHandle("Present", h)
	}
	var waits []vk.Semaphore
	if wait != 0 {
		sem, ok := lookup(d, &d.semaphores, wait)
		if !ok {
			return badHandle("Present", wait)
		}
		waits = []vk.Semaphore{sem}
	}
	d.qmu.Lock()
	defer d.qmu.Unlock()
	ret := vk.QueuePresent(d.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.vk},
		PImageIndices:      []uint32{index},
	})
	return check("vkQueuePresent", ret)
}
