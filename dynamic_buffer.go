package diesel

import (
	"unsafe"
)

// DynamicBuffer is a host-visible buffer for data rewritten every frame or
// so: vertices, per-object uniforms. It only ever grows.
type DynamicBuffer struct {
	dev    *Device
	usages []BufferUsage
	mem    *BufferMemory
	len    uint64
}

// NewDynamicBuffer allocates a buffer of at least capacity bytes.
func NewDynamicBuffer(dev *Device, usages []BufferUsage, capacity uint64) *DynamicBuffer {
	if capacity == 0 {
		capacity = 16
	}
	return &DynamicBuffer{
		dev:    dev,
		usages: append([]BufferUsage(nil), usages...),
		mem:    NewBufferMemory(dev, usages, CPUAccess, capacity),
	}
}

// Update writes data at the start of the buffer. Data that fits is copied
// in place and the bytes past it are left alone; larger data replaces the
// allocation, and the old one is released with the current frame.
func (b *DynamicBuffer) Update(data []byte) error {
	if uint64(len(data)) > b.mem.Size() {
		Logger().Debug("diesel: grow dynamic buffer", "from", b.mem.Size(), "to", len(data))
		b.mem.Destroy()
		b.mem = NewBufferMemory(b.dev, b.usages, CPUAccess, uint64(len(data)))
	}
	if err := b.mem.CopyFromData(data); err != nil {
		return err
	}
	b.len = uint64(len(data))
	return nil
}

// UpdateSlice writes the raw bytes of items. T must not contain pointers.
func UpdateSlice[T any](b *DynamicBuffer, items []T) error {
	if len(items) == 0 {
		return b.Update(nil)
	}
	var zero T
	n := len(items) * int(unsafe.Sizeof(zero))
	return b.Update(unsafe.Slice((*byte)(unsafe.Pointer(&items[0])), n))
}

// Capacity is the size of the current allocation.
func (b *DynamicBuffer) Capacity() uint64 { return b.mem.Size() }

// Len is the size of the last payload.
func (b *DynamicBuffer) Len() uint64 { return b.len }

// Buffer returns the current allocation. It changes when Update grows.
func (b *DynamicBuffer) Buffer() *BufferMemory { return b.mem }

func (b *DynamicBuffer) Destroy() { b.mem.Destroy() }
