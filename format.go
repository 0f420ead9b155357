package diesel

import (
	"fmt"

	"github.com/andewx/diesel/driver"
)

// The enums below are closed. Each maps to the driver through a switch with
// no default arm; a value outside the declared set panics.

// Access is the memory class of an allocation.
type Access int

const (
	// GPUAccess memory is device local and not mappable.
	GPUAccess Access = iota
	// CPUAccess memory is host visible and host coherent.
	CPUAccess
)

func (a Access) String() string {
	switch a {
	case GPUAccess:
		return "gpu"
	case CPUAccess:
		return "cpu"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

func (a Access) properties() driver.MemoryProperty {
	switch a {
	case GPUAccess:
		return driver.MemoryDeviceLocal
	case CPUAccess:
		return driver.MemoryHostVisible | driver.MemoryHostCoherent
	}
	panic(fmt.Sprintf("diesel: unknown access %d", int(a)))
}

type BufferUsage int

const (
	UsageVertex BufferUsage = iota
	UsageIndex
	UsageUniform
	UsageStorage
	UsageIndirect
	UsageTransferSrc
	UsageTransferDst
)

func (u BufferUsage) flags() driver.BufferUsage {
	switch u {
	case UsageVertex:
		return driver.BufferVertex
	case UsageIndex:
		return driver.BufferIndex
	case UsageUniform:
		return driver.BufferUniform
	case UsageStorage:
		return driver.BufferStorage
	case UsageIndirect:
		return driver.BufferIndirect
	case UsageTransferSrc:
		return driver.BufferTransferSrc
	case UsageTransferDst:
		return driver.BufferTransferDst
	}
	panic(fmt.Sprintf("diesel: unknown buffer usage %d", int(u)))
}

func bufferUsageFlags(usages []BufferUsage) driver.BufferUsage {
	var f driver.BufferUsage
	for _, u := range usages {
		f |= u.flags()
	}
	return f
}

type ImageUsage int

const (
	ImageSampled ImageUsage = iota
	ImageStorage
	ImageTransferSrc
	ImageTransferDst
	ImageColorAttachment
	ImageDepthAttachment
)

func (u ImageUsage) flags() driver.ImageUsage {
	switch u {
	case ImageSampled:
		return driver.ImageSampled
	case ImageStorage:
		return driver.ImageStorage
	case ImageTransferSrc:
		return driver.ImageTransferSrc
	case ImageTransferDst:
		return driver.ImageTransferDst
	case ImageColorAttachment:
		return driver.ImageColorAttachment
	case ImageDepthAttachment:
		return driver.ImageDepthAttachment
	}
	panic(fmt.Sprintf("diesel: unknown image usage %d", int(u)))
}

func imageUsageFlags(usages []ImageUsage) driver.ImageUsage {
	var f driver.ImageUsage
	for _, u := range usages {
		f |= u.flags()
	}
	return f
}

// Format is a texel format.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA8Srgb
	FormatBGRA8
	FormatBGRA8Srgb
	FormatR8
	FormatRG8
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth16
	FormatDepth32
	FormatDepth24Stencil8
)

func (f Format) driverFormat() driver.Format {
	switch f {
	case FormatRGBA8:
		return driver.FormatRGBA8Unorm
	case FormatRGBA8Srgb:
		return driver.FormatRGBA8Srgb
	case FormatBGRA8:
		return driver.FormatBGRA8Unorm
	case FormatBGRA8Srgb:
		return driver.FormatBGRA8Srgb
	case FormatR8:
		return driver.FormatR8Unorm
	case FormatRG8:
		return driver.FormatRG8Unorm
	case FormatRGBA16F:
		return driver.FormatRGBA16Float
	case FormatRGBA32F:
		return driver.FormatRGBA32Float
	case FormatDepth16:
		return driver.FormatD16Unorm
	case FormatDepth32:
		return driver.FormatD32Float
	case FormatDepth24Stencil8:
		return driver.FormatD24UnormS8
	}
	panic(fmt.Sprintf("diesel: unknown format %d", int(f)))
}

// formatFromDriver is the inverse of driverFormat, used for swapchain
// images whose format the driver picks.
func formatFromDriver(f driver.Format) (Format, bool) {
	for g := FormatRGBA8; g <= FormatDepth24Stencil8; g++ {
		if g.driverFormat() == f {
			return g, true
		}
	}
	return 0, false
}

// BytesPerPixel returns the size of one texel.
func (f Format) BytesPerPixel() int { return f.driverFormat().BytesPerPixel() }

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool { return f.driverFormat().IsDepth() }

func (f Format) aspect() driver.Aspect {
	switch f.driverFormat() {
	case driver.FormatD24UnormS8:
		return driver.AspectDepth | driver.AspectStencil
	case driver.FormatD16Unorm, driver.FormatD32Float:
		return driver.AspectDepth
	}
	return driver.AspectColor
}

// Filter, Wrap and MipMode select one of the precomputed samplers.
type (
	Filter  int
	Wrap    int
	MipMode int
)

const (
	FilterNearest Filter = iota
	FilterLinear
)

const (
	WrapRepeat Wrap = iota
	WrapMirror
	WrapClamp
)

const (
	MipNearest MipMode = iota
	MipLinear
)

const (
	filterCount  = 2
	wrapCount    = 3
	mipModeCount = 2

	// SamplerCount is the number of precomputed samplers.
	SamplerCount = filterCount * wrapCount * mipModeCount
)

func (f Filter) driverFilter() driver.Filter {
	switch f {
	case FilterNearest:
		return driver.FilterNearest
	case FilterLinear:
		return driver.FilterLinear
	}
	panic(fmt.Sprintf("diesel: unknown filter %d", int(f)))
}

func (w Wrap) driverAddress() driver.AddressMode {
	switch w {
	case WrapRepeat:
		return driver.AddressRepeat
	case WrapMirror:
		return driver.AddressMirroredRepeat
	case WrapClamp:
		return driver.AddressClampToEdge
	}
	panic(fmt.Sprintf("diesel: unknown wrap mode %d", int(w)))
}

func (m MipMode) driverMipmap() driver.MipmapMode {
	switch m {
	case MipNearest:
		return driver.MipmapNearest
	case MipLinear:
		return driver.MipmapLinear
	}
	panic(fmt.Sprintf("diesel: unknown mip mode %d", int(m)))
}

// SamplerIndex returns the index of the sampler for the given modes in the
// sampler array of the bindless set.
func SamplerIndex(f Filter, w Wrap, m MipMode) int {
	// Validate through the mapping functions so that bad values panic here
	// rather than index a neighbouring sampler.
	f.driverFilter()
	w.driverAddress()
	m.driverMipmap()
	return (int(f)*wrapCount+int(w))*mipModeCount + int(m)
}

// samplerDesc is the inverse of SamplerIndex.
func samplerDesc(i int) driver.SamplerDesc {
	m := MipMode(i % mipModeCount)
	w := Wrap(i / mipModeCount % wrapCount)
	f := Filter(i / (mipModeCount * wrapCount))
	return driver.SamplerDesc{
		MagFilter: f.driverFilter(),
		MinFilter: f.driverFilter(),
		Address:   w.driverAddress(),
		Mipmap:    m.driverMipmap(),
		MaxLod:    1000,
	}
}
