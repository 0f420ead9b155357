package diesel

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

func TestDynamicBufferShrinkInPlace(t *testing.T) {
	dev, drv := newTestDevice(t)
	b := NewDynamicBuffer(dev, []BufferUsage{UsageVertex}, 8)
	defer b.Destroy()

	require.NoError(t, b.Update([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	h := b.Buffer().Handle()
	require.NoError(t, b.Update([]byte{9, 9}))

	assert.Equal(t, h, b.Buffer().Handle(), "a smaller payload must not reallocate")
	assert.Equal(t, uint64(8), b.Capacity())
	assert.Equal(t, uint64(2), b.Len())
	assert.Equal(t, []byte{9, 9, 3, 4, 5, 6, 7, 8}, drv.BufferBytes(h))
}

func TestDynamicBufferGrowDefersOldAllocation(t *testing.T) {
	dev, drv := newTestDevice(t)
	b := NewDynamicBuffer(dev, []BufferUsage{UsageUniform}, 4)
	defer b.Destroy()

	old := b.Buffer().Handle()
	data := []byte("twenty bytes of data")
	require.NoError(t, b.Update(data))

	assert.NotEqual(t, old, b.Buffer().Handle())
	assert.Equal(t, uint64(len(data)), b.Capacity())
	assert.Equal(t, data, drv.BufferBytes(b.Buffer().Handle()))
	assert.True(t, drv.IsAlive(driver.Handle(old)), "old allocation freed while the frame may use it")
}

func TestDynamicBufferUpdateSequence(t *testing.T) {
	dev, drv := newTestDevice(t)
	b := NewDynamicBuffer(dev, []BufferUsage{UsageVertex}, 0)
	defer b.Destroy()

	rng := rand.New(rand.NewSource(7))
	// model mirrors what the allocation must contain.
	model := make([]byte, b.Capacity())
	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(96))
		rng.Read(data)
		require.NoError(t, b.Update(data))

		if uint64(len(data)) > uint64(len(model)) {
			model = append([]byte(nil), data...)
		} else {
			copy(model, data)
		}
		require.GreaterOrEqual(t, b.Capacity(), b.Len())
		require.Equal(t, uint64(len(data)), b.Len())
		require.Equal(t, model, drv.BufferBytes(b.Buffer().Handle()), "update %d", i)

		if i%10 == 9 {
			dev.Submit(false)
			dev.AdvanceFrame()
		}
	}
}

func TestUpdateSlice(t *testing.T) {
	type vertex struct{ X, Y, Z float32 }
	dev, _ := newTestDevice(t)
	b := NewDynamicBuffer(dev, []BufferUsage{UsageVertex}, 8)
	defer b.Destroy()

	require.NoError(t, UpdateSlice(b, []vertex{{1, 2, 3}, {4, 5, 6}}))
	assert.Equal(t, uint64(24), b.Len())
	assert.GreaterOrEqual(t, b.Capacity(), uint64(24))
}

func TestBufferMemoryPreconditions(t *testing.T) {
	dev, _ := newTestDevice(t)
	gpu := NewBufferMemory(dev, []BufferUsage{UsageVertex}, GPUAccess, 16)
	defer gpu.Destroy()
	cpu := NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, 4)
	defer cpu.Destroy()

	err := gpu.CopyFromData([]byte{1})
	assert.True(t, errors.Is(err, ErrNotHostVisible), "got %v", err)

	err = cpu.CopyFromData(make([]byte, 5))
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)

	dev.DoCommands(func(cmd *Commands) {
		err = cpu.CopyFromMemory(cmd, gpu)
	})
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)
}

func TestFixedBufferUpload(t *testing.T) {
	dev, drv := newTestDevice(t)
	data := []byte{0, 0, 1, 0, 2, 0, 2, 0, 3, 0, 0, 0}
	b, err := NewFixedBuffer(dev, []BufferUsage{UsageIndex}, data)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, GPUAccess, b.Buffer().Access())
	assert.Equal(t, uint64(len(data)), b.Size())
	assert.Equal(t, data, drv.BufferBytes(b.Buffer().Handle()))

	_, err = NewFixedBuffer(dev, []BufferUsage{UsageIndex}, nil)
	assert.True(t, errors.Is(err, ErrCapacity))
}
