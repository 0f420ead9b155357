package soft

import (
	"github.com/andewx/diesel/driver"
)

// ImageLayout returns the tracked layout of one subresource.
func (d *Driver) ImageLayout(img driver.Image, layer, mip uint32) (driver.ImageLayout, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil || layer >= i.desc.ArrayLayers || mip >= i.desc.MipLevels {
		return driver.LayoutUndefined, false
	}
	return i.layouts[layer][mip], true
}

// ImagePixels returns a copy of the texels of one subresource, tightly
// packed row by row.
func (d *Driver) ImagePixels(img driver.Image, layer, mip uint32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil || layer >= i.desc.ArrayLayers || mip >= i.desc.MipLevels {
		return nil
	}
	return append([]byte(nil), i.texels[layer][mip]...)
}

// ImageDesc returns the description img was created with.
func (d *Driver) ImageDesc(img driver.Image) (driver.ImageDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil {
		return driver.ImageDesc{}, false
	}
	return i.desc, true
}

// BufferBytes returns a copy of the contents of b.
func (d *Driver) BufferBytes(b driver.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.buffers[b]
	if buf == nil {
		return nil
	}
	return append([]byte(nil), buf.bytes()...)
}

// DescriptorImages returns the image descriptors currently written to a
// binding of set.
func (d *Driver) DescriptorImages(set driver.DescriptorSet, binding uint32) []driver.DescriptorImageInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sets[set]
	if s == nil || s.bindings[binding] == nil {
		return nil
	}
	return append([]driver.DescriptorImageInfo(nil), s.bindings[binding].images...)
}

// DescriptorBuffers returns the buffer descriptors currently written to a
// binding of set.
func (d *Driver) DescriptorBuffers(set driver.DescriptorSet, binding uint32) []driver.DescriptorBufferInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sets[set]
	if s == nil || s.bindings[binding] == nil {
		return nil
	}
	return append([]driver.DescriptorBufferInfo(nil), s.bindings[binding].buffers...)
}

// ViewImage returns the image a view was created on.
func (d *Driver) ViewImage(v driver.ImageView) (driver.Image, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vw := d.views[v]
	if vw == nil {
		return 0, false
	}
	return vw.desc.Image, true
}
