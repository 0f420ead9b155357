package soft

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

// recorder allocates a command buffer and begins it for one submission.
func recorder(t *testing.T, d *Driver) driver.CommandBuffer {
	t.Helper()
	p, err := d.CreateCommandPool()
	require.NoError(t, err)
	t.Cleanup(func() { d.DestroyCommandPool(p) })
	cb, err := d.AllocateCommandBuffer(p)
	require.NoError(t, err)
	require.NoError(t, d.BeginCommandBuffer(cb, true))
	return cb
}

func submit(d *Driver, cb driver.CommandBuffer, f driver.Fence) error {
	if err := d.EndCommandBuffer(cb); err != nil {
		return err
	}
	return d.Submit(driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{cb}}, f)
}

func TestScaleAveragesBlocks(t *testing.T) {
	src := []byte{
		10, 20, 0, 0,
		30, 41, 0, 0,
		255, 255, 1, 2,
		255, 255, 3, 4,
	}
	dst := make([]byte, 4)
	scale(src, 4, 4, dst, 2, 2, 1, true)
	assert.Equal(t, []byte{25, 0, 255, 3}, dst)

	// One axis only.
	row := make([]byte, 2)
	scale([]byte{0, 100, 7, 8}, 4, 1, row, 2, 1, 1, true)
	assert.Equal(t, []byte{50, 8}, row)

	nearest := make([]byte, 4)
	scale(src, 4, 4, nearest, 2, 2, 1, false)
	for _, v := range nearest {
		assert.Contains(t, src, v)
	}
}

func TestBarrierChecksTrackedLayout(t *testing.T) {
	d := New()
	img, err := d.CreateImage(driver.ImageDesc{Width: 4, Height: 4, MipLevels: 2, ArrayLayers: 1, Format: driver.FormatRGBA8Unorm})
	require.NoError(t, err)
	full := driver.SubresourceRange{Aspect: driver.AspectColor, MipCount: 2, LayerCount: 1}
	mip1 := driver.SubresourceRange{Aspect: driver.AspectColor, BaseMip: 1, MipCount: 1, LayerCount: 1}

	cb := recorder(t, d)
	d.CmdPipelineBarrier(cb, driver.StageTopOfPipe, driver.StageTransfer, []driver.ImageBarrier{
		{Image: img, OldLayout: driver.LayoutUndefined, NewLayout: driver.LayoutTransferDst, Range: full},
	})
	d.CmdPipelineBarrier(cb, driver.StageTransfer, driver.StageFragmentShader, []driver.ImageBarrier{
		{Image: img, OldLayout: driver.LayoutTransferDst, NewLayout: driver.LayoutShaderReadOnly, Range: mip1},
	})
	require.NoError(t, submit(d, cb, 0))

	l, ok := d.ImageLayout(img, 0, 0)
	require.True(t, ok)
	assert.Equal(t, driver.LayoutTransferDst, l)
	l, _ = d.ImageLayout(img, 0, 1)
	assert.Equal(t, driver.LayoutShaderReadOnly, l)

	cb = recorder(t, d)
	d.CmdPipelineBarrier(cb, driver.StageTransfer, driver.StageFragmentShader, []driver.ImageBarrier{
		{Image: img, OldLayout: driver.LayoutTransferDst, NewLayout: driver.LayoutShaderReadOnly, Range: full},
	})
	err = submit(d, cb, 0)
	assert.True(t, errors.Is(err, driver.ErrInvalidUsage), "got %v", err)
	assert.Equal(t, 3, d.Counters().Barriers)
}

func TestManualFences(t *testing.T) {
	d := New(ManualFences())
	f, err := d.CreateFence(false)
	require.NoError(t, err)

	err = d.WaitFence(f, driver.Infinite)
	assert.True(t, errors.Is(err, driver.ErrTimeout), "a fence that was never submitted")

	require.NoError(t, submit(d, recorder(t, d), f))
	assert.Equal(t, 1, d.Pending())
	assert.True(t, errors.Is(d.WaitFence(f, 0), driver.ErrTimeout))
	assert.Error(t, d.ResetFence(f), "reset while pending")

	done := make(chan error)
	go func() { done <- d.WaitFence(f, driver.Infinite) }()
	assert.True(t, d.Complete())
	assert.NoError(t, <-done)
	assert.False(t, d.Complete())
	assert.NoError(t, d.WaitIdle())

	err = submit(d, recorder(t, d), f)
	assert.True(t, errors.Is(err, driver.ErrInvalidUsage), "signaled fence submitted without reset")
	d.DestroyFence(f)
}

func TestSemaphoreSignalsPair(t *testing.T) {
	d := New()
	sem, err := d.CreateSemaphore()
	require.NoError(t, err)
	defer d.DestroySemaphore(sem)

	wait := driver.SubmitInfo{Wait: []driver.Semaphore{sem}, WaitStages: []driver.PipelineStage{driver.StageColorAttachmentOutput}}
	err = d.Submit(wait, 0)
	assert.True(t, errors.Is(err, driver.ErrInvalidUsage), "wait without a signal")

	require.NoError(t, d.Submit(driver.SubmitInfo{Signal: []driver.Semaphore{sem}}, 0))
	require.NoError(t, d.Submit(wait, 0))
	assert.Error(t, d.Submit(wait, 0), "one signal satisfies one wait")

	wait.WaitStages = nil
	assert.Error(t, d.Submit(wait, 0))
}

func TestUpdateDescriptorSets(t *testing.T) {
	d := New()
	layout, err := d.CreateDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: 0, Type: driver.DescriptorCombinedImageSampler, Count: 2, Stages: driver.ShaderFragment},
		{Binding: 1, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: driver.ShaderGraphics},
	})
	require.NoError(t, err)
	pool, err := d.CreateDescriptorPool(1, nil)
	require.NoError(t, err)
	set, err := d.AllocateDescriptorSet(pool, layout)
	require.NoError(t, err)
	_, err = d.AllocateDescriptorSet(pool, layout)
	assert.True(t, errors.Is(err, driver.ErrOutOfDeviceMemory))

	img, err := d.CreateImage(driver.ImageDesc{Width: 1, Height: 1, MipLevels: 1, ArrayLayers: 1, Format: driver.FormatRGBA8Unorm})
	require.NoError(t, err)
	view, err := d.CreateImageView(driver.ImageViewDesc{Image: img, Format: driver.FormatRGBA8Unorm,
		Range: driver.SubresourceRange{Aspect: driver.AspectColor, MipCount: 1, LayerCount: 1}})
	require.NoError(t, err)

	info := driver.DescriptorImageInfo{View: view, Layout: driver.LayoutShaderReadOnly}
	d.UpdateDescriptorSets([]driver.DescriptorWrite{
		{Set: set, Binding: 0, ArrayElement: 1, Type: driver.DescriptorCombinedImageSampler, Images: []driver.DescriptorImageInfo{info}},
		{Set: set, Binding: 1, Type: driver.DescriptorUniformBuffer, Buffers: []driver.DescriptorBufferInfo{{Buffer: 9, Range: 16}}},
	})
	assert.Equal(t, 2, d.Counters().DescriptorWrites)
	assert.Equal(t, []driver.DescriptorImageInfo{{}, info}, d.DescriptorImages(set, 0))
	assert.Equal(t, driver.Buffer(9), d.DescriptorBuffers(set, 1)[0].Buffer)

	assert.Panics(t, func() {
		d.UpdateDescriptorSets([]driver.DescriptorWrite{{Set: set, Binding: 0, ArrayElement: 1,
			Type: driver.DescriptorCombinedImageSampler, Images: []driver.DescriptorImageInfo{info, info}}})
	}, "past the end of the binding")
	assert.Panics(t, func() {
		d.UpdateDescriptorSets([]driver.DescriptorWrite{{Set: set, Binding: 1, Type: driver.DescriptorStorageBuffer}})
	}, "mistyped")
	assert.Panics(t, func() {
		d.UpdateDescriptorSets([]driver.DescriptorWrite{{Set: set, Binding: 5, Type: driver.DescriptorUniformBuffer}})
	}, "missing binding")

	d.DestroyDescriptorPool(pool)
	assert.False(t, d.IsAlive(driver.Handle(set)))
}

func TestMemoryAndLeaks(t *testing.T) {
	d := New()
	assert.Empty(t, d.Leaks())

	b, err := d.CreateBuffer(driver.BufferDesc{Size: 8, Usage: driver.BufferUniform})
	require.NoError(t, err)
	local, err := d.AllocateMemory(8, 0)
	require.NoError(t, err)
	host, err := d.AllocateMemory(16, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"buffer": 1, "memory": 2}, d.Leaks())

	_, err = d.MapMemory(local, 0, 8)
	assert.True(t, errors.Is(err, driver.ErrMemoryMapFailed))
	require.NoError(t, d.BindBufferMemory(b, host, 8))
	data, err := d.MapMemory(host, 8, 8)
	require.NoError(t, err)
	copy(data, "abcdefgh")
	_, err = d.MapMemory(host, 0, 8)
	assert.Error(t, err, "double map")
	d.UnmapMemory(host)
	assert.Equal(t, []byte("abcdefgh"), d.BufferBytes(b))

	_, err = d.AllocateMemory(8, 7)
	assert.Error(t, err)
	_, err = d.CreateBuffer(driver.BufferDesc{})
	assert.Error(t, err)

	d.DestroyBuffer(b)
	d.FreeMemory(local)
	d.FreeMemory(host)
	assert.Empty(t, d.Leaks())
}

func TestShaderModuleNeedsHeader(t *testing.T) {
	d := New()
	_, err := d.CreateShaderModule([]uint32{spirvMagic})
	assert.True(t, errors.Is(err, driver.ErrInvalidUsage))
	m, err := d.CreateShaderModule([]uint32{spirvMagic, 0x00010000, 0, 1, 0})
	require.NoError(t, err)
	d.DestroyShaderModule(m)
	assert.Empty(t, d.Leaks())
}
