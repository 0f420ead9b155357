package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/andewx/diesel"
	"github.com/andewx/diesel/driver"
	"github.com/andewx/diesel/platform/glfwsurface"
)

// window is the part of the platform window the loop drives.
type window interface {
	FramebufferSize() (width, height uint32)
	Resized() bool
	ShouldClose() bool
	SetTitle(title string)
	Poll()
	Wait()
}

type glfwWindow struct {
	*glfwsurface.Window
}

func (glfwWindow) Poll() { glfwsurface.PollEvents() }
func (glfwWindow) Wait() { glfwsurface.WaitEvents() }

var clearColor = [4]float32{0.05, 0.06, 0.08, 1}

// world is the set 0 uniform block of the viewer's shaders.
type world struct {
	Time          float32
	Width, Height float32
	Texture       int32
}

const worldSize = 16

type viewer struct {
	dev      *diesel.Device
	surface  driver.Surface
	layout   *diesel.ShaderLayout
	uniforms *diesel.Uniforms
	sc       *diesel.Swapchain
	targets  []*diesel.Framebuffer

	scene    scene
	texture  *diesel.Texture
	pipeline *diesel.Pipeline

	// One world buffer per frame slot, bound to the slot's world set once.
	world []*diesel.BufferMemory
	bound []bool

	start  time.Time
	frames int
	stale  bool
}

func newViewer(dev *diesel.Device, surface driver.Surface, width, height uint32, s scene) (*viewer, error) {
	cfg := dev.Config()
	v := &viewer{
		dev:     dev,
		surface: surface,
		scene:   s,
		start:   time.Now(),
	}
	v.layout = diesel.NewShaderLayout(dev, cfg)
	v.uniforms = diesel.NewUniforms(dev, v.layout)
	for i := 0; i < dev.FramesInFlight(); i++ {
		v.world = append(v.world, diesel.NewBufferMemory(dev, []diesel.BufferUsage{diesel.UsageUniform}, diesel.CPUAccess, worldSize))
	}
	v.bound = make([]bool, dev.FramesInFlight())

	if s.image != nil {
		tex, err := diesel.NewTextureFromImage(dev, v.uniforms, s.image, diesel.TextureDesc{
			Format:  diesel.FormatRGBA8Srgb,
			Filter:  diesel.FilterLinear,
			Wrap:    diesel.WrapClamp,
			MipMode: diesel.MipLinear,
		})
		if err != nil {
			v.destroy()
			return nil, err
		}
		v.texture = tex
	}

	v.sc = diesel.NewSwapchain(dev, surface, width, height, cfg.VSync)
	if err := v.buildTargets(); err != nil {
		v.destroy()
		return nil, err
	}
	return v, nil
}

func (v *viewer) buildTargets() error {
	v.targets = diesel.SwapchainTargets(v.dev, v.sc, true, clearColor)
	if v.scene.shader == nil {
		return nil
	}
	p, err := diesel.NewPipeline(v.dev, v.layout, v.scene.shader, v.targets[0])
	if err != nil {
		return err
	}
	v.pipeline = p
	return nil
}

// rebuild recreates the swapchain and everything built on its images.
func (v *viewer) rebuild(width, height uint32) error {
	diesel.DestroyTargets(v.dev, v.targets)
	v.targets = nil
	if v.pipeline != nil {
		v.pipeline.Destroy()
		v.pipeline = nil
	}
	v.sc.Recreate(width, height, v.sc.VSync())
	v.stale = false
	return v.buildTargets()
}

func (v *viewer) writeWorld() {
	slot := v.dev.CurrentFrame()
	w := world{
		Time:    float32(time.Since(v.start).Seconds()),
		Width:   float32(v.sc.Width()),
		Height:  float32(v.sc.Height()),
		Texture: -1,
	}
	if v.texture != nil {
		w.Texture = int32(v.texture.Index())
	}
	data, err := binary.Append(nil, binary.LittleEndian, w)
	if err != nil {
		panic(err)
	}
	if err := v.world[slot].CopyFromData(data); err != nil {
		panic(err)
	}
	if !v.bound[slot] {
		v.uniforms.SetWorld(v.world[slot])
		v.bound[slot] = true
	}
}

// frame records, submits and presents one frame. It reports whether the
// swapchain has to be rebuilt.
func (v *viewer) frame() bool {
	dev := v.dev
	if v.sc.Next(dev.AcquireSemaphore()) {
		dev.Submit(false)
		dev.AdvanceFrame()
		return true
	}
	v.uniforms.UpdateIfNeeded()
	v.writeWorld()

	cmd := dev.Commands()
	target := v.targets[v.sc.Current()]
	target.Begin(cmd)
	if v.pipeline != nil {
		v.pipeline.Bind(cmd)
		v.uniforms.Bind(cmd, 0)
		cmd.Draw(3, 1)
	}
	target.End(cmd)
	dev.Submit(true)
	stale := dev.Present(v.sc)
	dev.AdvanceFrame()
	v.frames++
	return stale
}

// loop runs frames until the window closes or maxFrames have been
// presented. A minimized window blocks on events.
func (v *viewer) loop(win window, maxFrames int) error {
	last, lastFrames := time.Now(), v.frames
	for !win.ShouldClose() {
		win.Poll()
		width, height := win.FramebufferSize()
		if width == 0 || height == 0 {
			win.Wait()
			continue
		}
		if win.Resized() || v.stale {
			if err := v.rebuild(width, height); err != nil {
				return err
			}
		}
		v.stale = v.frame()
		if maxFrames > 0 && v.frames >= maxFrames {
			break
		}
		if now := time.Now(); now.Sub(last) >= time.Second {
			fps := float64(v.frames-lastFrames) / now.Sub(last).Seconds()
			win.SetTitle(fmt.Sprintf("diesel viewer - %.0f fps", fps))
			diesel.Logger().Debug("viewer: frame stats", "fps", fps, "stats", v.dev.Stats())
			last, lastFrames = now, v.frames
		}
	}
	v.dev.WaitIdle()
	return nil
}

func (v *viewer) destroy() {
	v.dev.WaitIdle()
	if v.pipeline != nil {
		v.pipeline.Destroy()
	}
	diesel.DestroyTargets(v.dev, v.targets)
	if v.sc != nil {
		v.sc.Destroy()
	}
	if v.texture != nil {
		v.texture.Destroy()
	}
	for _, b := range v.world {
		b.Destroy()
	}
	v.uniforms.Destroy()
	v.layout.Destroy()
}
