// Package vkdriver implements driver.Driver on Vulkan through
// github.com/vulkan-go/vulkan.
//
// The caller initializes the loader first (vk.SetGetInstanceProcAddr and
// vk.Init, see platform/glfwsurface) and passes the instance extensions its
// window system needs. A single queue family that supports graphics and,
// when a surface is given, presentation is used for everything.
package vkdriver

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

// Options configures Open.
type Options struct {
	AppName string
	// InstanceExtensions are required by the window system.
	InstanceExtensions []string
	// Validation enables the Khronos validation layer and a debug report
	// callback that logs through the driver's logger.
	Validation bool
	// Surface creates the presentation surface once the instance exists.
	// Nil opens a headless device.
	Surface func(instance vk.Instance) (vk.Surface, error)
}

const validationLayer = "VK_LAYER_KHRONOS_validation"

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(discard{}, nil)))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func log() *slog.Logger { return logger.Load() }

type image struct {
	vk   vk.Image
	desc driver.ImageDesc
	// owned is false for swapchain images.
	owned bool
}

type memory struct {
	vk     vk.DeviceMemory
	size   uint64
	mapped bool
}

type cmdBuffer struct {
	vk   vk.CommandBuffer
	pool driver.CommandPool
}

type descPool struct {
	vk   vk.DescriptorPool
	sets []driver.DescriptorSet
}

type renderPass struct {
	vk     vk.RenderPass
	colors int
}

type swapchain struct {
	vk      vk.Swapchain
	surface driver.Surface
	images  []driver.Image
}

// Driver is the Vulkan driver. It is safe for concurrent use; object tables
// are guarded by mu and the single queue by qmu.
type Driver struct {
	instance      vk.Instance
	gpu           vk.PhysicalDevice
	device        vk.Device
	queue         vk.Queue
	family        uint32
	debugCallback vk.DebugReportCallback
	name          string
	limits        driver.Limits
	memTypes      []driver.MemoryType
	anisotropy    bool

	qmu  sync.Mutex
	mu   sync.RWMutex
	next driver.Handle

	buffers     table[driver.Buffer, vk.Buffer]
	images      table[driver.Image, *image]
	views       table[driver.ImageView, vk.ImageView]
	memories    table[driver.Memory, *memory]
	samplers    table[driver.Sampler, vk.Sampler]
	fences      table[driver.Fence, vk.Fence]
	semaphores  table[driver.Semaphore, vk.Semaphore]
	pools       table[driver.CommandPool, vk.CommandPool]
	cmds        table[driver.CommandBuffer, *cmdBuffer]
	modules     table[driver.ShaderModule, vk.ShaderModule]
	setLayouts  table[driver.DescriptorSetLayout, vk.DescriptorSetLayout]
	descPools   table[driver.DescriptorPool, *descPool]
	sets        table[driver.DescriptorSet, vk.DescriptorSet]
	pipeLayouts table[driver.PipelineLayout, vk.PipelineLayout]
	pipelines   table[driver.Pipeline, vk.Pipeline]
	passes      table[driver.RenderPass, *renderPass]
	framebufs   table[driver.Framebuffer, vk.Framebuffer]
	surfaces    table[driver.Surface, vk.Surface]
	swapchains  table[driver.Swapchain, *swapchain]

	surface driver.Surface
}

var _ driver.Driver = (*Driver)(nil)

func newDriver() *Driver {
	return &Driver{
		buffers:     newTable[driver.Buffer, vk.Buffer]("buffer"),
		images:      newTable[driver.Image, *image]("image"),
		views:       newTable[driver.ImageView, vk.ImageView]("image view"),
		memories:    newTable[driver.Memory, *memory]("memory"),
		samplers:    newTable[driver.Sampler, vk.Sampler]("sampler"),
		fences:      newTable[driver.Fence, vk.Fence]("fence"),
		semaphores:  newTable[driver.Semaphore, vk.Semaphore]("semaphore"),
		pools:       newTable[driver.CommandPool, vk.CommandPool]("command pool"),
		cmds:        newTable[driver.CommandBuffer, *cmdBuffer]("command buffer"),
		modules:     newTable[driver.ShaderModule, vk.ShaderModule]("shader module"),
		setLayouts:  newTable[driver.DescriptorSetLayout, vk.DescriptorSetLayout]("descriptor set layout"),
		descPools:   newTable[driver.DescriptorPool, *descPool]("descriptor pool"),
		sets:        newTable[driver.DescriptorSet, vk.DescriptorSet]("descriptor set"),
		pipeLayouts: newTable[driver.PipelineLayout, vk.PipelineLayout]("pipeline layout"),
		pipelines:   newTable[driver.Pipeline, vk.Pipeline]("pipeline"),
		passes:      newTable[driver.RenderPass, *renderPass]("render pass"),
		framebufs:   newTable[driver.Framebuffer, vk.Framebuffer]("framebuffer"),
		surfaces:    newTable[driver.Surface, vk.Surface]("surface"),
		swapchains:  newTable[driver.Swapchain, *swapchain]("swapchain"),
	}
}

// Open creates the instance, picks a physical device and queue family, and
// creates the logical device.
func Open(opts Options) (_ *Driver, err error) {
	d := newDriver()
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()

	instExt := extensionSet{required: opts.InstanceExtensions}
	var layers []string
	if opts.Validation {
		instExt.wanted = append(instExt.wanted, "VK_EXT_debug_report")
		available, err := validationLayers()
		if err != nil {
			return nil, err
		}
		var missing []string
		layers, missing, _ = extensionSet{wanted: []string{validationLayer}}.resolve(available)
		if len(missing) > 0 {
			log().Warn("vulkan: validation layer unavailable", "layer", validationLayer)
		}
	}
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		instExt.wanted = append(instExt.wanted, "VK_KHR_portability_enumeration")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		flags = vk.InstanceCreateFlags(0x00000001)
	}
	available, err := instanceExtensions()
	if err != nil {
		return nil, err
	}
	extensions, missing, err := instExt.resolve(available)
	if err != nil {
		return nil, driver.Errorf("Open", driver.ErrInitializationFailed, "instance extensions: %v", err)
	}
	if len(missing) > 0 {
		log().Warn("vulkan: instance extensions unavailable", "missing", missing)
	}
	log().Info("vulkan: enabling instance extensions", "count", len(extensions), "layers", len(layers))

	appName := opts.AppName
	if appName == "" {
		appName = "diesel"
	}
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: flags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(appName),
			PEngineName:        safeString("diesel"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &d.instance)
	if err := check("vkCreateInstance", ret); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return nil, driver.Errorf("vkInitInstance", driver.ErrInitializationFailed, "%v", err)
	}

	if opts.Validation && hasName(extensions, "VK_EXT_debug_report") {
		ret := vk.CreateDebugReportCallback(d.instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}, nil, &d.debugCallback)
		if err := check("vkCreateDebugReportCallback", ret); err != nil {
			return nil, err
		}
	}

	var surface vk.Surface = vk.NullSurface
	if opts.Surface != nil {
		surface, err = opts.Surface(d.instance)
		if err != nil {
			return nil, driver.Errorf("Open", driver.ErrSurfaceLost, "create surface: %v", err)
		}
		d.surface = add(d, &d.surfaces, surface)
	}

	if err := d.pickDevice(surface); err != nil {
		return nil, err
	}
	if err := d.createDevice(layers, surface != vk.NullSurface); err != nil {
		return nil, err
	}
	log().Info("vulkan: device created", "gpu", d.name, "family", d.family)
	return d, nil
}

func hasName(list []string, name string) bool {
	for _, n := range list {
		if n == safeString(name) {
			return true
		}
	}
	return false
}

// pickDevice selects the first GPU with a queue family that can draw and,
// when surface is set, present to it.
func (d *Driver) pickDevice(surface vk.Surface) error {
	var count uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return driver.Errorf("Open", driver.ErrIncompatibleDriver, "no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.instance, &count, gpus)); err != nil {
		return err
	}
	for _, gpu := range gpus {
		family, ok := findQueueFamily(gpu, surface)
		if !ok {
			continue
		}
		d.gpu = gpu
		d.family = family
		return nil
	}
	return driver.Errorf("Open", driver.ErrIncompatibleDriver, "no GPU has a graphics queue that can present")
}

func findQueueFamily(gpu vk.PhysicalDevice, surface vk.Surface) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		if surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, i, surface, &supported)
			if !supported.B() {
				continue
			}
		}
		return i, true
	}
	return 0, false
}

func (d *Driver) createDevice(layers []string, present bool) error {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.gpu, &props)
	props.Deref()
	props.Limits.Deref()
	d.name = vk.ToString(props.DeviceName[:])
	d.limits = driver.Limits{
		MaxImageDimension2D:    props.Limits.MaxImageDimension2D,
		MaxSamplerAnisotropy:   props.Limits.MaxSamplerAnisotropy,
		MaxPushConstantsSize:   props.Limits.MaxPushConstantsSize,
		MaxBoundDescriptorSets: props.Limits.MaxBoundDescriptorSets,
		MinUniformAlignment:    uint64(props.Limits.MinUniformBufferOffsetAlignment),
	}

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &memProps)
	memProps.Deref()
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		d.memTypes = append(d.memTypes, driver.MemoryType{
			Properties: fromVkMemory(memProps.MemoryTypes[i].PropertyFlags),
			Heap:       memProps.MemoryTypes[i].HeapIndex,
		})
	}

	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.gpu, &supported)
	supported.Deref()
	d.anisotropy = supported.SamplerAnisotropy == vk.True
	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                      supported.SamplerAnisotropy,
		ShaderSampledImageArrayDynamicIndexing: supported.ShaderSampledImageArrayDynamicIndexing,
	}

	devExt := extensionSet{}
	if present {
		devExt.required = append(devExt.required, "VK_KHR_swapchain")
	}
	if runtime.GOOS == "darwin" {
		devExt.wanted = append(devExt.wanted, "VK_KHR_portability_subset")
	}
	available, err := deviceExtensions(d.gpu)
	if err != nil {
		return err
	}
	extensions, _, err := devExt.resolve(available)
	if err != nil {
		return driver.Errorf("Open", driver.ErrInitializationFailed, "device extensions on %s: %v", d.name, err)
	}

	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}, nil, &d.device)
	if err := check("vkCreateDevice", ret); err != nil {
		return err
	}
	vk.GetDeviceQueue(d.device, d.family, 0, &d.queue)
	return nil
}

func (d *Driver) Name() string { return "vulkan:" + d.name }

func (d *Driver) Limits() driver.Limits { return d.limits }

// Instance returns the Vulkan instance, for platform code that creates
// further surfaces.
func (d *Driver) Instance() vk.Instance { return d.instance }

// Surface returns the surface created through Options.Surface, or zero.
func (d *Driver) Surface() driver.Surface { return d.surface }

// ImportSurface takes ownership of a surface created on Instance.
func (d *Driver) ImportSurface(s vk.Surface) (driver.Surface, error) {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(d.gpu, d.family, s, &supported)
	if !supported.B() {
		return 0, driver.Errorf("ImportSurface", driver.ErrIncompatibleDriver, "queue family %d cannot present to surface", d.family)
	}
	return add(d, &d.surfaces, s), nil
}

// DestroySurface destroys a surface. Its swapchains must be destroyed first.
func (d *Driver) DestroySurface(s driver.Surface) {
	if v, ok := take(d, &d.surfaces, s); ok {
		vk.DestroySurface(d.instance, v, nil)
	}
	if s == d.surface {
		d.surface = 0
	}
}

// SetLogger routes driver logs, including validation reports, to l.
func (d *Driver) SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// Leaks lists the objects that are still alive, by kind.
func (d *Driver) Leaks() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := map[string]int{}
	count := func(kind string, n int) {
		if n > 0 {
			out[kind] = n
		}
	}
	count(d.buffers.kind, d.buffers.count())
	count(d.views.kind, d.views.count())
	count(d.memories.kind, d.memories.count())
	count(d.samplers.kind, d.samplers.count())
	count(d.fences.kind, d.fences.count())
	count(d.semaphores.kind, d.semaphores.count())
	count(d.pools.kind, d.pools.count())
	count(d.modules.kind, d.modules.count())
	count(d.setLayouts.kind, d.setLayouts.count())
	count(d.descPools.kind, d.descPools.count())
	count(d.pipeLayouts.kind, d.pipeLayouts.count())
	count(d.pipelines.kind, d.pipelines.count())
	count(d.passes.kind, d.passes.count())
	count(d.framebufs.kind, d.framebufs.count())
	count(d.swapchains.kind, d.swapchains.count())
	owned := 0
	for _, img := range d.images.items {
		if img.owned {
			owned++
		}
	}
	count(d.images.kind, owned)
	return out
}

// Destroy releases the device and the instance. Leaked objects are logged.
func (d *Driver) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		if leaks := d.Leaks(); len(leaks) > 0 {
			log().Warn("vulkan: objects alive at destroy", "leaks", leaks)
		}
	}
	d.mu.Lock()
	surfaces := d.surfaces.items
	d.surfaces.items = map[driver.Surface]vk.Surface{}
	d.mu.Unlock()
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.instance != nil {
		for _, s := range surfaces {
			vk.DestroySurface(d.instance, s, nil)
		}
		if d.debugCallback != vk.NullDebugReportCallback {
			vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
			d.debugCallback = vk.NullDebugReportCallback
		}
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	l := log().With("layer", pLayerPrefix, "code", messageCode)
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		l.Error("vulkan: " + pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		l.Warn("vulkan: " + pMessage)
	default:
		l.Debug("vulkan: " + pMessage)
	}
	return vk.Bool32(vk.False)
}
