package soft

import (
	"math"

	"github.com/andewx/diesel/driver"
)

// byteChannels reports whether every byte of a texel of f is an
// independent unorm channel, which is what linear filtering needs here.
func byteChannels(f driver.Format) bool {
	switch f {
	case driver.FormatR8Unorm, driver.FormatRG8Unorm,
		driver.FormatRGBA8Unorm, driver.FormatRGBA8Srgb,
		driver.FormatBGRA8Unorm, driver.FormatBGRA8Srgb:
		return true
	}
	return false
}

// scale resamples src (sw x sh) into dst (dw x dh). Linear filtering
// samples at texel centers, so an exact 2x reduction averages each 2x2
// block.
func scale(src []byte, sw, sh uint32, dst []byte, dw, dh uint32, bpp int, linear bool) {
	xr := float64(sw) / float64(dw)
	yr := float64(sh) / float64(dh)
	for y := uint32(0); y < dh; y++ {
		fy := (float64(y)+0.5)*yr - 0.5
		for x := uint32(0); x < dw; x++ {
			fx := (float64(x)+0.5)*xr - 0.5
			out := dst[(int(y)*int(dw)+int(x))*bpp:]
			if !linear {
				sx := clampIndex(int(math.Floor(fx+0.5)), sw)
				sy := clampIndex(int(math.Floor(fy+0.5)), sh)
				copy(out[:bpp], src[(sy*int(sw)+sx)*bpp:])
				continue
			}
			x0 := int(math.Floor(fx))
			y0 := int(math.Floor(fy))
			tx := fx - float64(x0)
			ty := fy - float64(y0)
			x1, y1 := clampIndex(x0+1, sw), clampIndex(y0+1, sh)
			x0, y0 = clampIndex(x0, sw), clampIndex(y0, sh)
			for c := 0; c < bpp; c++ {
				p00 := float64(src[(y0*int(sw)+x0)*bpp+c])
				p10 := float64(src[(y0*int(sw)+x1)*bpp+c])
				p01 := float64(src[(y1*int(sw)+x0)*bpp+c])
				p11 := float64(src[(y1*int(sw)+x1)*bpp+c])
				top := p00 + (p10-p00)*tx
				bot := p01 + (p11-p01)*tx
				out[c] = uint8(top + (bot-top)*ty + 0.5)
			}
		}
	}
}

func clampIndex(i int, n uint32) int {
	if i < 0 {
		return 0
	}
	if i >= int(n) {
		return int(n) - 1
	}
	return i
}
