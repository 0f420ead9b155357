package vkdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver"
)

func TestResolveExtensions(t *testing.T) {
	set := extensionSet{
		required: []string{"VK_KHR_surface", "VK_KHR_surface"},
		wanted:   []string{"VK_EXT_debug_report", "VK_KHR_surface", "VK_EXT_missing"},
	}
	enable, missing, err := set.resolve([]string{"VK_KHR_surface", "VK_EXT_debug_report", "VK_KHR_xcb_surface"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VK_KHR_surface\x00", "VK_EXT_debug_report\x00"}, enable)
	assert.Equal(t, []string{"VK_EXT_missing"}, missing)
}

func TestResolveMissingRequired(t *testing.T) {
	set := extensionSet{required: []string{"VK_KHR_surface", "VK_KHR_swapchain"}}
	_, _, err := set.resolve([]string{"VK_KHR_surface"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VK_KHR_swapchain")
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, "main\x00", safeString("main\x00"))
}

func TestTableHandles(t *testing.T) {
	d := newDriver()
	a := add(d, &d.images, &image{owned: true})
	b := add(d, &d.images, &image{})
	assert.NotEqual(t, a, b)

	img, ok := lookup(d, &d.images, a)
	require.True(t, ok)
	assert.True(t, img.owned)

	// Swapchain images are not the caller's to leak.
	assert.Equal(t, map[string]int{"image": 1}, d.Leaks())

	_, ok = take(d, &d.images, a)
	require.True(t, ok)
	_, ok = take(d, &d.images, a)
	assert.False(t, ok)
	assert.Empty(t, d.Leaks())

	assert.Panics(t, func() { must(d, &d.images, a) })
}

func TestBadHandle(t *testing.T) {
	err := badHandle("CreateFramebuffer", driver.ImageView(7))
	var de *driver.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, driver.ErrInvalidHandle, de.Result)
}
