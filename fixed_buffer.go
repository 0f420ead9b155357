package diesel

import (
	"github.com/pkg/errors"
)

// FixedBuffer is immutable device-local data, uploaded once through a
// staging buffer.
type FixedBuffer struct {
	mem *BufferMemory
}

// NewFixedBuffer uploads data and blocks until the copy has finished.
func NewFixedBuffer(dev *Device, usages []BufferUsage, data []byte) (*FixedBuffer, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrCapacity, "empty fixed buffer")
	}
	size := uint64(len(data))
	staging := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, size)
	defer staging.Destroy()
	if err := staging.CopyFromData(data); err != nil {
		return nil, err
	}

	gpu := NewBufferMemory(dev, append(append([]BufferUsage(nil), usages...), UsageTransferDst), GPUAccess, size)
	var err error
	dev.DoCommands(func(cmd *Commands) {
		err = gpu.CopyFromMemory(cmd, staging)
	})
	if err != nil {
		gpu.Destroy()
		return nil, err
	}
	return &FixedBuffer{mem: gpu}, nil
}

func (b *FixedBuffer) Buffer() *BufferMemory { return b.mem }
func (b *FixedBuffer) Size() uint64          { return b.mem.Size() }
func (b *FixedBuffer) Destroy()              { b.mem.Destroy() }
