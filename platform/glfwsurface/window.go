// Package glfwsurface connects a GLFW window to the Vulkan driver: it loads
// the Vulkan entry points through GLFW, creates the window surface and
// tracks framebuffer resizes.
//
// GLFW must be driven from the main thread. Callers lock it with
// runtime.LockOSThread in an init function before calling Init.
package glfwsurface

import (
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel"
)

// Init initializes GLFW and points the Vulkan loader at GLFW's
// vkGetInstanceProcAddr.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

// Terminate shuts GLFW down. Every window must be destroyed first.
func Terminate() {
	glfw.Terminate()
}

// PollEvents processes pending window events without blocking.
func PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one window event arrives. It is used
// while a window is minimized.
func WaitEvents() {
	glfw.WaitEvents()
}

// Window is a resizable GLFW window with no client API.
type Window struct {
	window  *glfw.Window
	resized atomic.Bool
}

func NewWindow(title string, width, height int) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "create window %q", title)
	}
	w := &Window{window: win}
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		diesel.Logger().Debug("glfw: framebuffer resized", "width", width, "height", height)
		w.resized.Store(true)
	})
	return w, nil
}

// InstanceExtensions lists the instance extensions the window system
// needs for presentation.
func (w *Window) InstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

// Surface creates the Vulkan surface for the window. Its signature
// matches vkdriver.Options.Surface.
func (w *Window) Surface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// FramebufferSize returns the drawable size in pixels. It is zero while
// the window is minimized.
func (w *Window) FramebufferSize() (width, height uint32) {
	fw, fh := w.window.GetFramebufferSize()
	if fw < 0 || fh < 0 {
		return 0, 0
	}
	return uint32(fw), uint32(fh)
}

// Resized reports whether the framebuffer changed size since the last
// call.
func (w *Window) Resized() bool {
	return w.resized.Swap(false)
}

func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *Window) SetTitle(title string) {
	w.window.SetTitle(title)
}

func (w *Window) Destroy() {
	w.window.Destroy()
}
