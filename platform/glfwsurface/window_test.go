package glfwsurface

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	runtime.LockOSThread()
}

// The window tests need a display and a Vulkan loader; they skip on
// headless machines.
func TestWindowSize(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("no window system: %v", err)
	}
	defer Terminate()

	w, err := NewWindow("glfwsurface test", 320, 200)
	require.NoError(t, err)
	defer w.Destroy()

	assert.NotEmpty(t, w.InstanceExtensions())
	PollEvents()
	width, height := w.FramebufferSize()
	assert.NotZero(t, width)
	assert.NotZero(t, height)
	assert.False(t, w.ShouldClose())
}

func TestResizedResets(t *testing.T) {
	w := &Window{}
	assert.False(t, w.Resized())
	w.resized.Store(true)
	assert.True(t, w.Resized())
	assert.False(t, w.Resized())
}
