// Package soft is a host-memory implementation of driver.Driver.
//
// Buffers and images live in ordinary Go slices, command buffers are
// replayed on the CPU at submission, blits really filter, and every image
// barrier and copy is checked against the tracked layout of each
// subresource. Fences complete at submission unless the driver was created
// with ManualFences, in which case they complete in queue order when
// Complete is called. That makes frame pacing observable from a test.
package soft

import (
	"fmt"
	"sync"

	"github.com/andewx/diesel/driver"
)

// Option configures a Driver.
type Option func(*Driver)

// ManualFences keeps submitted fences pending until Complete or
// CompleteAll is called.
func ManualFences() Option {
	return func(d *Driver) { d.manual = true }
}

// WithMemoryTypes replaces the default memory types.
func WithMemoryTypes(types ...driver.MemoryType) Option {
	return func(d *Driver) { d.memTypes = append([]driver.MemoryType(nil), types...) }
}

// Counters are running totals of interesting driver calls.
type Counters struct {
	Submits          int
	DescriptorWrites int
	Blits            int
	Barriers         int
	Presents         int
	Acquires         int
	Draws            int
}

// Driver is the software driver. It is safe for concurrent use.
type Driver struct {
	mu       sync.Mutex
	next     driver.Handle
	live     map[driver.Handle]string
	manual   bool
	memTypes []driver.MemoryType
	counters Counters

	memories   map[driver.Memory]*memory
	buffers    map[driver.Buffer]*buffer
	images     map[driver.Image]*image
	views      map[driver.ImageView]*view
	samplers   map[driver.Sampler]driver.SamplerDesc
	fences     map[driver.Fence]*fence
	semaphores map[driver.Semaphore]*semaphore
	pools      map[driver.CommandPool]*pool
	cmds       map[driver.CommandBuffer]*cmdBuffer
	pending    []driver.Fence

	modules     map[driver.ShaderModule][]uint32
	setLayouts  map[driver.DescriptorSetLayout][]driver.DescriptorBinding
	descPools   map[driver.DescriptorPool]*descPool
	sets        map[driver.DescriptorSet]*descSet
	pipeLayouts map[driver.PipelineLayout]struct{}
	pipelines   map[driver.Pipeline]driver.PipelineDesc
	passes      map[driver.RenderPass]driver.RenderPassDesc
	framebufs   map[driver.Framebuffer]driver.FramebufferDesc
	surfaces    map[driver.Surface]*surface
	swapchains  map[driver.Swapchain]*swapchain

	idle *sync.Cond
}

var _ driver.Driver = (*Driver)(nil)

// New creates a software driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		live: map[driver.Handle]string{},
		memTypes: []driver.MemoryType{
			{Properties: driver.MemoryDeviceLocal, Heap: 0},
			{Properties: driver.MemoryHostVisible | driver.MemoryHostCoherent, Heap: 1},
			{Properties: driver.MemoryHostVisible | driver.MemoryHostCoherent | driver.MemoryHostCached, Heap: 1},
		},
		memories:    map[driver.Memory]*memory{},
		buffers:     map[driver.Buffer]*buffer{},
		images:      map[driver.Image]*image{},
		views:       map[driver.ImageView]*view{},
		samplers:    map[driver.Sampler]driver.SamplerDesc{},
		fences:      map[driver.Fence]*fence{},
		semaphores:  map[driver.Semaphore]*semaphore{},
		pools:       map[driver.CommandPool]*pool{},
		cmds:        map[driver.CommandBuffer]*cmdBuffer{},
		modules:     map[driver.ShaderModule][]uint32{},
		setLayouts:  map[driver.DescriptorSetLayout][]driver.DescriptorBinding{},
		descPools:   map[driver.DescriptorPool]*descPool{},
		sets:        map[driver.DescriptorSet]*descSet{},
		pipeLayouts: map[driver.PipelineLayout]struct{}{},
		pipelines:   map[driver.Pipeline]driver.PipelineDesc{},
		passes:      map[driver.RenderPass]driver.RenderPassDesc{},
		framebufs:   map[driver.Framebuffer]driver.FramebufferDesc{},
		surfaces:    map[driver.Surface]*surface{},
		swapchains:  map[driver.Swapchain]*swapchain{},
	}
	d.idle = sync.NewCond(&d.mu)
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) Name() string { return "soft" }

func (d *Driver) Limits() driver.Limits {
	return driver.Limits{
		MaxImageDimension2D:    16384,
		MaxSamplerAnisotropy:   16,
		MaxPushConstantsSize:   128,
		MaxBoundDescriptorSets: 8,
		MinUniformAlignment:    256,
	}
}

// Destroy drops every object. Objects still alive are reported by Leaks
// before the call.
func (d *Driver) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live = map[driver.Handle]string{}
}

// newHandle registers a fresh handle of the given kind. d.mu must be held.
func (d *Driver) newHandle(kind string) driver.Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

// drop unregisters h. d.mu must be held.
func (d *Driver) drop(h driver.Handle) {
	delete(d.live, h)
}

// IsAlive reports whether h was created and not destroyed yet.
func (d *Driver) IsAlive(h driver.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[h]
	return ok
}

// Leaks lists the objects that are still alive, by kind.
func (d *Driver) Leaks() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]int{}
	for _, kind := range d.live {
		out[kind]++
	}
	return out
}

// Counters returns a snapshot of the call counters.
func (d *Driver) Counters() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters
}

func invalid(op string, format string, args ...any) error {
	return driver.Errorf(op, driver.ErrInvalidUsage, format, args...)
}

func badHandle(op string, h any) error {
	return driver.Errorf(op, driver.ErrInvalidHandle, "%v", fmt.Sprint(h))
}
