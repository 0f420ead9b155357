package diesel

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

func TestSlotMapReusesFreedIndicesBeforeGrowth(t *testing.T) {
	m := newSlotMap[string](16)
	var handles []ImageHandle
	for _, v := range []string{"a", "b", "c", "d", "e", "f"} {
		h, err := m.insert(v)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	freed := map[int]bool{}
	for _, i := range []int{1, 4, 2} {
		require.True(t, m.remove(handles[i]))
		freed[handles[i].Index()] = true
	}
	length := len(m.slots)

	var got []int
	for i := 0; i < 5; i++ {
		h, err := m.insert("new")
		require.NoError(t, err)
		got = append(got, h.Index())
	}
	for _, idx := range got[:len(freed)] {
		assert.True(t, freed[idx], "index %d handed out before the freed ones", idx)
	}
	assert.Equal(t, []int{length, length + 1}, got[len(freed):])
	assert.Equal(t, 8, m.len())
}

func TestSlotMapStaleHandles(t *testing.T) {
	m := newSlotMap[int](4)
	h, err := m.insert(1)
	require.NoError(t, err)
	require.True(t, m.remove(h))
	assert.False(t, m.remove(h), "double remove")

	h2, err := m.insert(2)
	require.NoError(t, err)
	assert.Equal(t, h.Index(), h2.Index())
	_, ok := m.get(h)
	assert.False(t, ok, "stale handle resolved to the new entry")
	v, ok := m.get(h2)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.False(t, m.remove(ImageHandle{}))
	assert.False(t, ImageHandle{}.Valid())
}

func TestSlotMapCapacity(t *testing.T) {
	m := newSlotMap[int](2)
	_, err := m.insert(1)
	require.NoError(t, err)
	h, err := m.insert(2)
	require.NoError(t, err)
	_, err = m.insert(3)
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)

	m.remove(h)
	_, err = m.insert(3)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 3}, m.fill(0))
}

func newViews(t *testing.T, dev *Device, n int) []driver.ImageView {
	t.Helper()
	views := make([]driver.ImageView, n)
	for i := range views {
		img := NewImageMemory(dev, ImageDesc{Width: 1, Height: 1, Format: FormatRGBA8, Usage: []ImageUsage{ImageSampled}})
		views[i] = img.CreateView()
		t.Cleanup(img.Destroy)
	}
	return views
}

func TestUniformsUpdateIfNeededBatches(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)
	views := newViews(t, dev, 3)

	assert.False(t, u.UpdateIfNeeded(), "construction leaves nothing dirty")

	before := drv.Counters().DescriptorWrites
	var handles []ImageHandle
	for _, v := range views {
		h, err := u.AddImage(v)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.True(t, u.UpdateIfNeeded())
	assert.Equal(t, before+1, drv.Counters().DescriptorWrites, "one write for the whole image array")
	assert.False(t, u.UpdateIfNeeded())
	assert.Equal(t, before+1, drv.Counters().DescriptorWrites)

	slot0 := u.bindless[0]
	table := drv.DescriptorImages(slot0, BindingImages)
	require.Len(t, table, testConfig().BindlessCapacity)
	for i, v := range views {
		assert.Equal(t, v, table[handles[i].Index()].View)
	}
	assert.Equal(t, u.blankView, table[len(views)].View, "unused entries hold the blank image")

	// The other slot still has the old table until it comes around.
	assert.Equal(t, u.blankView, drv.DescriptorImages(u.bindless[1], BindingImages)[0].View)
	dev.Submit(false)
	dev.AdvanceFrame()
	assert.True(t, u.UpdateIfNeeded())
	assert.Equal(t, views[0], drv.DescriptorImages(u.bindless[1], BindingImages)[0].View)
}

func TestUniformsRemoveKeepsIndices(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)
	views := newViews(t, dev, 3)

	var handles []ImageHandle
	for _, v := range views[:2] {
		h, err := u.AddImage(v)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.True(t, u.RemoveImage(handles[0]))
	assert.False(t, u.RemoveImage(handles[0]))
	u.UpdateIfNeeded()

	table := drv.DescriptorImages(u.bindless[0], BindingImages)
	assert.Equal(t, u.blankView, table[0].View)
	assert.Equal(t, views[1], table[1].View, "removal moved another entry")

	h, err := u.AddImage(views[2])
	require.NoError(t, err)
	assert.Equal(t, 0, h.Index())
	assert.Equal(t, 2, u.ImageCount())
}

func TestUniformsCubemapsAndShadows(t *testing.T) {
	dev, drv := newTestDevice(t)
	u := newTestUniforms(t, dev)
	views := newViews(t, dev, 3)

	require.NoError(t, u.SetShadowMaps(views[:1]))
	err := u.SetShadowMaps(views)
	assert.True(t, errors.Is(err, ErrCapacity), "got %v", err)

	before := drv.Counters().DescriptorWrites
	assert.True(t, u.UpdateIfNeeded())
	assert.Equal(t, before+1, drv.Counters().DescriptorWrites)
	shadows := drv.DescriptorImages(u.shadow[0], 0)
	assert.Equal(t, views[0], shadows[0].View)
	assert.Equal(t, u.blankView, shadows[1].View)

	cubes := drv.DescriptorImages(u.bindless[0], BindingCubemaps)
	require.Len(t, cubes, testConfig().CubemapCapacity)
	assert.Equal(t, u.blankCubeView, cubes[0].View)
}

func TestSamplerIndices(t *testing.T) {
	seen := map[int]bool{}
	for f := FilterNearest; f <= FilterLinear; f++ {
		for w := WrapRepeat; w <= WrapClamp; w++ {
			for m := MipNearest; m <= MipLinear; m++ {
				i := SamplerIndex(f, w, m)
				require.True(t, i >= 0 && i < SamplerCount)
				assert.False(t, seen[i], "duplicate sampler index %d", i)
				seen[i] = true

				desc := samplerDesc(i)
				assert.Equal(t, f.driverFilter(), desc.MagFilter)
				assert.Equal(t, w.driverAddress(), desc.Address)
				assert.Equal(t, m.driverMipmap(), desc.Mipmap)
			}
		}
	}
	assert.Len(t, seen, SamplerCount)
}

func TestUniformsBindCountsMaterials(t *testing.T) {
	dev, _ := newTestDevice(t)
	u := newTestUniforms(t, dev)
	buf := NewBufferMemory(dev, []BufferUsage{UsageUniform}, CPUAccess, 64)
	defer buf.Destroy()

	u.SetWorld(buf)
	mat, err := u.NewMaterialSet(buf)
	require.NoError(t, err)

	cmd := dev.Commands()
	u.Bind(cmd, 0)
	assert.Zero(t, cmd.Stats().MaterialBinds)
	u.Bind(cmd, mat)
	u.BindMaterial(cmd, mat)
	assert.Equal(t, 2, cmd.Stats().MaterialBinds)
	dev.Submit(false)
	dev.WaitIdle()
}
