package diesel

import (
	"github.com/andewx/diesel/driver"
)

// FramebufferDesc describes an offscreen render target.
type FramebufferDesc struct {
	Width, Height uint32
	Color         Format
	// Depth adds a depth attachment when set.
	Depth      bool
	ClearColor [4]float32
}

// Framebuffer is a render pass with its attachments. Begin moves the
// attachments into their attachment layouts; End moves the color image to
// its final layout: LayoutShaderColor for offscreen targets, LayoutPresent
// for swapchain targets.
type Framebuffer struct {
	dev   *Device
	pass  driver.RenderPass
	fb    driver.Framebuffer
	color *ImageMemory
	depth *ImageMemory
	final Layout
	clear [4]float32

	// Offscreen targets are sampled through the bindless table.
	u      *Uniforms
	handle ImageHandle

	width, height uint32
}

const depthFormat = FormatDepth32

func newRenderPass(dev *Device, color Format, depth bool) driver.RenderPass {
	desc := driver.RenderPassDesc{
		Color: []driver.Attachment{{Format: color.driverFormat(), Load: driver.LoadClear, Layout: driver.LayoutColorAttachment}},
	}
	if depth {
		desc.Depth = driver.Attachment{Format: depthFormat.driverFormat(), Load: driver.LoadClear, Layout: driver.LayoutDepthAttachment}
	}
	rp, err := dev.drv.CreateRenderPass(desc)
	orPanic(err, "diesel: create render pass")
	return rp
}

func (f *Framebuffer) build(colorView driver.ImageView) {
	views := []driver.ImageView{colorView}
	if f.depth != nil {
		views = append(views, f.depth.CreateView())
	}
	var err error
	f.fb, err = f.dev.drv.CreateFramebuffer(driver.FramebufferDesc{
		RenderPass: f.pass, Attachments: views, Width: f.width, Height: f.height,
	})
	orPanic(err, "diesel: create framebuffer")
}

func newDepthImage(dev *Device, w, h uint32) *ImageMemory {
	return NewImageMemory(dev, ImageDesc{
		Width: w, Height: h, Format: depthFormat,
		Usage: []ImageUsage{ImageDepthAttachment},
	})
}

// NewFramebuffer creates an offscreen target whose color image is
// registered with u and starts out in LayoutShaderColor.
func NewFramebuffer(dev *Device, u *Uniforms, desc FramebufferDesc) (*Framebuffer, error) {
	f := &Framebuffer{
		dev:    dev,
		final:  LayoutShaderColor,
		clear:  desc.ClearColor,
		u:      u,
		width:  desc.Width,
		height: desc.Height,
	}
	f.color = NewImageMemory(dev, ImageDesc{
		Width: desc.Width, Height: desc.Height, Format: desc.Color,
		Usage: []ImageUsage{ImageColorAttachment, ImageSampled},
	})
	if desc.Depth {
		f.depth = newDepthImage(dev, desc.Width, desc.Height)
	}
	f.pass = newRenderPass(dev, desc.Color, desc.Depth)
	view := f.color.CreateView()
	f.build(view)
	dev.DoCommands(func(cmd *Commands) {
		f.color.Transition(cmd, LayoutShaderColor)
	})
	var err error
	if f.handle, err = u.AddImage(view); err != nil {
		f.Destroy()
		return nil, err
	}
	return f, nil
}

// SwapchainTargets builds one framebuffer per swapchain image, sharing a
// render pass. Rebuild them after Swapchain.Recreate.
func SwapchainTargets(dev *Device, sc *Swapchain, depth bool, clear [4]float32) []*Framebuffer {
	pass := newRenderPass(dev, sc.Format(), depth)
	out := make([]*Framebuffer, sc.Len())
	for i := range out {
		f := &Framebuffer{
			dev:    dev,
			pass:   pass,
			color:  sc.Image(i),
			final:  LayoutPresent,
			clear:  clear,
			width:  sc.Width(),
			height: sc.Height(),
		}
		if depth {
			f.depth = newDepthImage(dev, f.width, f.height)
		}
		f.build(f.color.CreateView())
		out[i] = f
	}
	return out
}

func (f *Framebuffer) RenderPass() driver.RenderPass { return f.pass }
func (f *Framebuffer) Color() *ImageMemory           { return f.color }
func (f *Framebuffer) Width() uint32                 { return f.width }
func (f *Framebuffer) Height() uint32                { return f.height }
func (f *Framebuffer) HasDepth() bool                { return f.depth != nil }

// Index is the bindless index of an offscreen target's color image.
func (f *Framebuffer) Index() int { return f.handle.Index() }

// Begin transitions the attachments and begins the render pass with a
// full-target viewport and scissor. Swapchain images and depth are
// discarded; offscreen color is transitioned from its tracked layout.
func (f *Framebuffer) Begin(cmd *Commands) {
	if f.final == LayoutPresent {
		f.color.Discard(cmd, LayoutColor)
	} else {
		f.color.Transition(cmd, LayoutColor)
	}
	if f.depth != nil {
		f.depth.Discard(cmd, LayoutDepth)
	}
	clear := []driver.ClearValue{{Color: f.clear}}
	if f.depth != nil {
		clear = append(clear, driver.ClearValue{Depth: 1})
	}
	area := driver.Rect{Width: f.width, Height: f.height}
	cmd.BeginRenderPass(driver.RenderPassBegin{RenderPass: f.pass, Framebuffer: f.fb, Area: area, Clear: clear})
	cmd.SetViewport(driver.Viewport{Width: float32(f.width), Height: float32(f.height), MaxDepth: 1})
	cmd.SetScissor(area)
}

// End ends the render pass and moves the color image to its final layout.
func (f *Framebuffer) End(cmd *Commands) {
	cmd.EndRenderPass()
	f.color.Transition(cmd, f.final)
}

// Destroy waits for the queue and releases an offscreen target. Swapchain
// targets are released with DestroyTargets.
func (f *Framebuffer) Destroy() {
	f.dev.WaitIdle()
	f.destroyAttachments()
	if f.u != nil {
		f.u.RemoveImage(f.handle)
	}
	f.dev.drv.DestroyRenderPass(f.pass)
}

func (f *Framebuffer) destroyAttachments() {
	f.dev.drv.DestroyFramebuffer(f.fb)
	if f.depth != nil {
		f.depth.Destroy()
	}
	f.color.Destroy()
}

// DestroyTargets releases the targets built by SwapchainTargets. It waits
// for the queue to drain first.
func DestroyTargets(dev *Device, targets []*Framebuffer) {
	if len(targets) == 0 {
		return
	}
	dev.WaitIdle()
	for _, f := range targets {
		f.destroyAttachments()
	}
	dev.drv.DestroyRenderPass(targets[0].pass)
}
