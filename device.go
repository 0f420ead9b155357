package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// frameSlot is one frame in flight: a recorder, the swapchain semaphore
// pair and the fence signaled when the slot's submission completes.
type frameSlot struct {
	commands *Commands
	acquire  driver.Semaphore
	release  driver.Semaphore
	fence    driver.Fence
	// epoch is the frame number recorded in this slot.
	epoch uint64
}

// garbage is a resource whose destruction waits for the GPU to finish the
// frame it was released in.
type garbage struct {
	epoch    uint64
	pipeline driver.Pipeline
	buffer   driver.Buffer
	image    driver.Image
	views    []driver.ImageView
	memory   driver.Memory
}

// Device owns the driver, the frame slots and the deferred-destruction
// queue. Every other type in the package borrows it.
//
// A Device is not safe for concurrent use. The frame loop is:
//
//	dev.AdvanceFrame()
//	// record into dev.Commands()
//	dev.Submit(true)
//	dev.Present(swapchain)
type Device struct {
	drv   driver.Driver
	cfg   Config
	types []driver.MemoryType

	slots   []*frameSlot
	current int

	// epoch is the frame being recorded; completed is the newest frame
	// whose fence has been waited.
	epoch     uint64
	completed uint64
	trash     []garbage

	oneShot      *Commands
	oneShotFence driver.Fence

	destroyed bool
}

// NewDevice creates the frame slots and begins recording into slot 0.
// Driver failures panic.
func NewDevice(drv driver.Driver, cfg Config) *Device {
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = DefaultConfig().FramesInFlight
	}
	propagateLogger(drv)
	d := &Device{
		drv:   drv,
		cfg:   cfg,
		types: drv.MemoryTypes(),
		epoch: 1,
	}
	for i := 0; i < cfg.FramesInFlight; i++ {
		s := &frameSlot{commands: newCommands(d)}
		var err error
		s.acquire, err = drv.CreateSemaphore()
		orPanic(err, "diesel: create acquire semaphore")
		s.release, err = drv.CreateSemaphore()
		orPanic(err, "diesel: create release semaphore")
		// Signaled so that the first wait on every slot returns at once.
		s.fence, err = drv.CreateFence(true)
		orPanic(err, "diesel: create frame fence")
		d.slots = append(d.slots, s)
	}
	d.oneShot = newCommands(d)
	var err error
	d.oneShotFence, err = drv.CreateFence(false)
	orPanic(err, "diesel: create one-shot fence")

	d.slots[0].epoch = d.epoch
	d.slots[0].commands.begin(false)
	Logger().Info("diesel: device created", "driver", drv.Name(), "frames_in_flight", cfg.FramesInFlight)
	return d
}

func (d *Device) Driver() driver.Driver { return d.drv }
func (d *Device) Config() Config        { return d.cfg }

// CurrentFrame returns the index of the slot being recorded.
func (d *Device) CurrentFrame() int { return d.current }

// FramesInFlight returns the number of frame slots.
func (d *Device) FramesInFlight() int { return len(d.slots) }

// Epoch returns the number of the frame being recorded. The first frame is 1.
func (d *Device) Epoch() uint64 { return d.epoch }

// CompletedEpoch returns the newest frame known to be finished on the GPU.
func (d *Device) CompletedEpoch() uint64 { return d.completed }

// Commands returns the recorder of the current frame.
func (d *Device) Commands() *Commands { return d.slots[d.current].commands }

// Stats returns the counters of the current frame.
func (d *Device) Stats() Stats { return d.slots[d.current].commands.Stats() }

// AcquireSemaphore is the semaphore to pass to Swapchain.Next this frame.
func (d *Device) AcquireSemaphore() driver.Semaphore { return d.slots[d.current].acquire }

// ReleaseSemaphore is signaled when this frame's submission finishes.
func (d *Device) ReleaseSemaphore() driver.Semaphore { return d.slots[d.current].release }

// AdvanceFrame moves to the next slot. It blocks until the GPU has finished
// the last submission made from that slot, destroys everything released
// up to that frame and begins a fresh recorder.
func (d *Device) AdvanceFrame() {
	next := (d.current + 1) % len(d.slots)
	s := d.slots[next]
	orPanic(d.drv.WaitFence(s.fence, driver.Infinite), "diesel: wait frame fence")

	// Slots are waited in frame order, so every frame up to s.epoch is done.
	if s.epoch > d.completed {
		d.completed = s.epoch
	}
	d.reclaim(d.completed)

	d.epoch++
	d.current = next
	s.epoch = d.epoch
	s.commands.begin(false)
	Logger().Debug("diesel: advance frame", "slot", next, "epoch", d.epoch, "completed", d.completed)
}

// Submit ends the current recorder and submits it. When forPresentation
// is set the submission waits for the acquire semaphore at the color
// output stage and signals the release semaphore. The slot fence is
// always signaled.
func (d *Device) Submit(forPresentation bool) {
	s := d.slots[d.current]
	s.commands.end()
	info := driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{s.commands.cb}}
	if forPresentation {
		info.Wait = []driver.Semaphore{s.acquire}
		info.WaitStages = []driver.PipelineStage{driver.StageColorAttachmentOutput}
		info.Signal = []driver.Semaphore{s.release}
	}
	orPanic(d.drv.ResetFence(s.fence), "diesel: reset frame fence")
	orPanic(d.drv.Submit(info, s.fence), "diesel: submit frame")
}

// Present queues the acquired image of sc. It reports true when the
// swapchain no longer matches its surface and must be recreated; any
// other failure panics.
func (d *Device) Present(sc *Swapchain) bool {
	err := d.drv.Present(sc.handle, sc.current, d.slots[d.current].release)
	if errors.Is(err, driver.ErrOutOfDate) || errors.Is(err, driver.ErrSuboptimal) {
		Logger().Warn("diesel: swapchain needs resize", "err", err)
		return true
	}
	orPanic(err, "diesel: present")
	return false
}

// DoCommands records fn into a one-off command buffer, submits it and
// waits for it to finish.
func (d *Device) DoCommands(fn func(cmd *Commands)) {
	d.oneShot.begin(true)
	fn(d.oneShot)
	d.oneShot.end()
	info := driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{d.oneShot.cb}}
	orPanic(d.drv.Submit(info, d.oneShotFence), "diesel: submit one-shot commands")
	orPanic(d.drv.WaitFence(d.oneShotFence, driver.Infinite), "diesel: wait one-shot commands")
	orPanic(d.drv.ResetFence(d.oneShotFence), "diesel: reset one-shot fence")
}

// WaitIdle blocks until the queue has drained.
func (d *Device) WaitIdle() {
	orPanic(d.drv.WaitIdle(), "diesel: wait idle")
}

// AllocateBuffer creates a buffer and binds fresh memory of the given
// access class to it. A device without a matching memory type panics.
func (d *Device) AllocateBuffer(desc driver.BufferDesc, access Access) (driver.Buffer, driver.Memory) {
	b, err := d.drv.CreateBuffer(desc)
	orPanic(err, "diesel: create buffer")
	req := d.drv.BufferRequirements(b)
	mem := d.allocate(req, access)
	orPanic(d.drv.BindBufferMemory(b, mem, 0), "diesel: bind buffer memory")
	Logger().Debug("diesel: allocate buffer", "size", desc.Size, "access", access)
	return b, mem
}

// AllocateImage creates a device-local image.
func (d *Device) AllocateImage(desc driver.ImageDesc) (driver.Image, driver.Memory) {
	img, err := d.drv.CreateImage(desc)
	orPanic(err, "diesel: create image")
	req := d.drv.ImageRequirements(img)
	mem := d.allocate(req, GPUAccess)
	orPanic(d.drv.BindImageMemory(img, mem, 0), "diesel: bind image memory")
	Logger().Debug("diesel: allocate image", "width", desc.Width, "height", desc.Height,
		"mips", desc.MipLevels, "layers", desc.ArrayLayers)
	return img, mem
}

func (d *Device) allocate(req driver.MemoryRequirements, access Access) driver.Memory {
	idx, ok := FindRequiredMemoryType(d.types, req.TypeBits, access.properties())
	if !ok {
		panic(errors.Errorf("diesel: no memory type for %v access in type bits %#b", access, req.TypeBits))
	}
	mem, err := d.drv.AllocateMemory(req.Size, idx)
	orPanic(err, "diesel: allocate memory")
	return mem
}

// FindRequiredMemoryType returns the first memory type allowed by typeBits
// whose properties include want.
func FindRequiredMemoryType(types []driver.MemoryType, typeBits uint32, want driver.MemoryProperty) (uint32, bool) {
	for i := range types {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if types[i].Properties.Has(want) {
			return uint32(i), true
		}
	}
	return 0, false
}

// FreeBuffer releases b and m once the GPU is done with the current frame.
func (d *Device) FreeBuffer(b driver.Buffer, m driver.Memory) {
	d.trash = append(d.trash, garbage{epoch: d.epoch, buffer: b, memory: m})
}

// FreeImage releases an image, its views and its memory once the GPU is
// done with the current frame. m is zero for swapchain images.
func (d *Device) FreeImage(img driver.Image, m driver.Memory, views ...driver.ImageView) {
	d.trash = append(d.trash, garbage{epoch: d.epoch, image: img, memory: m, views: views})
}

// FreePipeline releases p once the GPU is done with the current frame.
func (d *Device) FreePipeline(p driver.Pipeline) {
	d.trash = append(d.trash, garbage{epoch: d.epoch, pipeline: p})
}

// PendingFrees returns the number of resources waiting for their frame.
func (d *Device) PendingFrees() int { return len(d.trash) }

// reclaim destroys everything released in a frame up to epoch.
func (d *Device) reclaim(epoch uint64) {
	kept := d.trash[:0]
	n := 0
	for _, g := range d.trash {
		if g.epoch > epoch {
			kept = append(kept, g)
			continue
		}
		d.destroy(g)
		n++
	}
	for i := len(kept); i < len(d.trash); i++ {
		d.trash[i] = garbage{}
	}
	d.trash = kept
	if n > 0 {
		Logger().Debug("diesel: reclaimed", "count", n, "epoch", epoch)
	}
}

func (d *Device) destroy(g garbage) {
	if g.pipeline != 0 {
		d.drv.DestroyPipeline(g.pipeline)
	}
	for _, v := range g.views {
		d.drv.DestroyImageView(v)
	}
	if g.image != 0 && g.memory != 0 {
		// Swapchain images have no memory and belong to the swapchain.
		d.drv.DestroyImage(g.image)
	}
	if g.buffer != 0 {
		d.drv.DestroyBuffer(g.buffer)
	}
	if g.memory != 0 {
		d.drv.FreeMemory(g.memory)
	}
}

// Destroy drains the queue, destroys every released resource and the
// frame slots. The driver itself is left to its owner.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.WaitIdle()
	d.reclaim(^uint64(0))
	for _, s := range d.slots {
		s.commands.destroy()
		d.drv.DestroySemaphore(s.acquire)
		d.drv.DestroySemaphore(s.release)
		d.drv.DestroyFence(s.fence)
	}
	d.slots = nil
	d.oneShot.destroy()
	d.drv.DestroyFence(d.oneShotFence)
	Logger().Info("diesel: device destroyed")
}
