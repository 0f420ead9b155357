package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// BufferMemory is one buffer with its own memory allocation.
type BufferMemory struct {
	dev    *Device
	buffer driver.Buffer
	memory driver.Memory
	size   uint64
	access Access
}

// NewBufferMemory allocates size bytes of the given access class.
func NewBufferMemory(dev *Device, usages []BufferUsage, access Access, size uint64) *BufferMemory {
	b, m := dev.AllocateBuffer(driver.BufferDesc{Size: size, Usage: bufferUsageFlags(usages)}, access)
	return &BufferMemory{dev: dev, buffer: b, memory: m, size: size, access: access}
}

func (b *BufferMemory) Handle() driver.Buffer { return b.buffer }
func (b *BufferMemory) Size() uint64          { return b.size }
func (b *BufferMemory) Access() Access        { return b.access }

// CopyFromData writes data at the start of the buffer through a mapping.
func (b *BufferMemory) CopyFromData(data []byte) error {
	if b.access != CPUAccess {
		return errors.Wrapf(ErrNotHostVisible, "buffer %d", b.buffer)
	}
	if uint64(len(data)) > b.size {
		return errors.Wrapf(ErrCapacity, "%d bytes into a buffer of %d", len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	dst, err := b.dev.drv.MapMemory(b.memory, 0, uint64(len(data)))
	orPanic(err, "diesel: map buffer memory")
	copy(dst, data)
	b.dev.drv.UnmapMemory(b.memory)
	return nil
}

// CopyFromMemory records a copy of all of src to the start of b.
func (b *BufferMemory) CopyFromMemory(cmd *Commands, src *BufferMemory) error {
	if src.size > b.size {
		return errors.Wrapf(ErrCapacity, "%d bytes into a buffer of %d", src.size, b.size)
	}
	cmd.CopyBuffer(src.buffer, b.buffer, driver.BufferCopy{Size: src.size})
	return nil
}

// Destroy hands the buffer to the device for deferred destruction.
func (b *BufferMemory) Destroy() {
	if b.buffer == 0 {
		return
	}
	b.dev.FreeBuffer(b.buffer, b.memory)
	b.buffer, b.memory = 0, 0
}
