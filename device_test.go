package diesel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
	"github.com/andewx/diesel/driver/soft"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BindlessCapacity = 8
	cfg.CubemapCapacity = 2
	cfg.ShadowCapacity = 2
	return cfg
}

// newTestDevice returns a device on a fresh software driver. It is
// destroyed when the test ends.
func newTestDevice(t *testing.T, opts ...soft.Option) (*Device, *soft.Driver) {
	t.Helper()
	drv := soft.New(opts...)
	dev := NewDevice(drv, testConfig())
	t.Cleanup(dev.Destroy)
	return dev, drv
}

func TestAdvanceFrameCyclesSlots(t *testing.T) {
	dev, _ := newTestDevice(t)
	require.Equal(t, 2, dev.FramesInFlight())
	assert.Equal(t, 0, dev.CurrentFrame())
	assert.Equal(t, uint64(1), dev.Epoch())

	for i := 1; i <= 5; i++ {
		dev.Submit(false)
		dev.AdvanceFrame()
		assert.Equal(t, i%2, dev.CurrentFrame())
		assert.Equal(t, uint64(i+1), dev.Epoch())
		assert.True(t, dev.Commands().Recording())
	}
	// Frame 6 is recording in slot 1; waiting slot 1 proved frame 4 done.
	assert.Equal(t, uint64(4), dev.CompletedEpoch())
}

func TestFramePacingBlocksOnFence(t *testing.T) {
	drv := soft.New(soft.ManualFences())
	dev := NewDevice(drv, testConfig())

	dev.Submit(false) // frame 1, slot 0
	dev.AdvanceFrame()
	dev.Submit(false) // frame 2, slot 1
	require.Equal(t, 2, drv.Pending())

	done := make(chan struct{})
	go func() {
		dev.AdvanceFrame()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("AdvanceFrame reused a slot whose submission has not completed")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, drv.Complete())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AdvanceFrame did not return after the fence signaled")
	}
	assert.Equal(t, 0, dev.CurrentFrame())
	assert.Equal(t, uint64(1), dev.CompletedEpoch())
	assert.Equal(t, 1, drv.Pending())

	drv.CompleteAll()
	dev.Destroy()
}

func TestDeferredDestruction(t *testing.T) {
	dev, drv := newTestDevice(t)

	buf := NewBufferMemory(dev, []BufferUsage{UsageVertex}, CPUAccess, 64)
	h := driver.Handle(buf.Handle())
	buf.Destroy()
	assert.True(t, drv.IsAlive(h), "freed buffer destroyed before its frame completed")
	assert.Equal(t, 1, dev.PendingFrees())

	dev.Submit(false)
	dev.AdvanceFrame()
	// Slot 1 held nothing, so frame 1 may still be running.
	assert.True(t, drv.IsAlive(h))

	dev.Submit(false)
	dev.AdvanceFrame()
	assert.False(t, drv.IsAlive(h))
	assert.Zero(t, dev.PendingFrees())
}

func TestDestroyReleasesEverything(t *testing.T) {
	drv := soft.New()
	dev := NewDevice(drv, testConfig())
	layout := NewShaderLayout(dev, testConfig())
	u := NewUniforms(dev, layout)

	pixels := make([]byte, 2*2*4)
	tex, err := NewTexture(dev, u, TextureDesc{Width: 2, Height: 2, Format: FormatRGBA8}, pixels)
	require.NoError(t, err)
	fixed, err := NewFixedBuffer(dev, []BufferUsage{UsageIndex}, []byte{0, 1, 2, 3})
	require.NoError(t, err)
	dyn := NewDynamicBuffer(dev, []BufferUsage{UsageUniform}, 32)

	tex.Destroy()
	fixed.Destroy()
	dyn.Destroy()
	u.Destroy()
	layout.Destroy()
	dev.Destroy()
	assert.Empty(t, drv.Leaks())
}

func TestFindRequiredMemoryType(t *testing.T) {
	types := []driver.MemoryType{
		{Properties: driver.MemoryDeviceLocal},
		{Properties: driver.MemoryHostVisible},
		{Properties: driver.MemoryHostVisible | driver.MemoryHostCoherent},
	}
	cases := []struct {
		name     string
		typeBits uint32
		want     driver.MemoryProperty
		index    uint32
		ok       bool
	}{
		{"device local", 0b111, driver.MemoryDeviceLocal, 0, true},
		{"coherent skips plain host visible", 0b111, CPUAccess.properties(), 2, true},
		{"type bits exclude match", 0b011, CPUAccess.properties(), 0, false},
		{"no bits", 0, driver.MemoryDeviceLocal, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			idx, ok := FindRequiredMemoryType(types, c.typeBits, c.want)
			assert.Equal(t, c.ok, ok)
			if ok {
				assert.Equal(t, c.index, idx)
			}
		})
	}
}

func TestAllocateWithoutMemoryTypePanics(t *testing.T) {
	dev, _ := newTestDevice(t, soft.WithMemoryTypes(driver.MemoryType{Properties: driver.MemoryDeviceLocal}))
	assert.Panics(t, func() {
		NewBufferMemory(dev, []BufferUsage{UsageTransferSrc}, CPUAccess, 16)
	})
}

func TestSubmitForPresentationNeedsAcquire(t *testing.T) {
	dev, _ := newTestDevice(t)
	// Nothing signaled the acquire semaphore, which the driver rejects.
	assert.Panics(t, func() { dev.Submit(true) })
	dev.WaitIdle()
}

func TestStatsResetEachFrame(t *testing.T) {
	dev, _ := newTestDevice(t)
	cmd := dev.Commands()
	cmd.Draw(3, 1)
	cmd.DrawIndexed(6, 2, 0, 0)
	assert.Equal(t, Stats{DrawCalls: 2, DrawnIndices: 12}, dev.Stats())

	dev.Submit(false)
	dev.AdvanceFrame()
	assert.Equal(t, Stats{}, dev.Stats())
}
