package diesel

import (
	"github.com/andewx/diesel/driver"
)

// Descriptor set numbers, as declared in shaders.
const (
	SetWorld    = 0
	SetMaterial = 1
	SetBindless = 2
	SetShadow   = 3
)

// Bindings of the bindless set.
const (
	BindingImages   = 0
	BindingSamplers = 1
	BindingCubemaps = 2
)

// ShaderLayout is the descriptor interface every pipeline shares: four set
// layouts and a push-constant range.
type ShaderLayout struct {
	dev      *Device
	sets     [4]driver.DescriptorSetLayout
	pipeline driver.PipelineLayout

	bindless, cubemaps, shadows int
	pushSize                    uint32
}

// NewShaderLayout builds the set layouts with the table sizes of cfg.
func NewShaderLayout(dev *Device, cfg Config) *ShaderLayout {
	l := &ShaderLayout{
		dev:      dev,
		bindless: cfg.BindlessCapacity,
		cubemaps: cfg.CubemapCapacity,
		shadows:  cfg.ShadowCapacity,
		pushSize: uint32(cfg.PushConstantSize),
	}
	create := func(name string, bindings ...driver.DescriptorBinding) driver.DescriptorSetLayout {
		h, err := dev.drv.CreateDescriptorSetLayout(bindings)
		orPanic(err, "diesel: create "+name+" set layout")
		return h
	}
	l.sets[SetWorld] = create("world", driver.DescriptorBinding{
		Binding: 0, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: driver.ShaderGraphics,
	})
	l.sets[SetMaterial] = create("material", driver.DescriptorBinding{
		Binding: 0, Type: driver.DescriptorUniformBuffer, Count: 1, Stages: driver.ShaderGraphics,
	})
	l.sets[SetBindless] = create("bindless",
		driver.DescriptorBinding{Binding: BindingImages, Type: driver.DescriptorSampledImage, Count: uint32(l.bindless), Stages: driver.ShaderFragment},
		driver.DescriptorBinding{Binding: BindingSamplers, Type: driver.DescriptorSampler, Count: SamplerCount, Stages: driver.ShaderFragment},
		driver.DescriptorBinding{Binding: BindingCubemaps, Type: driver.DescriptorSampledImage, Count: uint32(l.cubemaps), Stages: driver.ShaderFragment},
	)
	l.sets[SetShadow] = create("shadow", driver.DescriptorBinding{
		Binding: 0, Type: driver.DescriptorSampledImage, Count: uint32(l.shadows), Stages: driver.ShaderFragment,
	})

	var push []driver.PushConstantRange
	if l.pushSize > 0 {
		push = append(push, driver.PushConstantRange{Stages: driver.ShaderGraphics, Size: l.pushSize})
	}
	var err error
	l.pipeline, err = dev.drv.CreatePipelineLayout(l.sets[:], push)
	orPanic(err, "diesel: create pipeline layout")
	return l
}

// Pipeline returns the pipeline layout.
func (l *ShaderLayout) Pipeline() driver.PipelineLayout { return l.pipeline }

// Set returns the layout of set n.
func (l *ShaderLayout) Set(n int) driver.DescriptorSetLayout { return l.sets[n] }

func (l *ShaderLayout) Destroy() {
	l.dev.drv.DestroyPipelineLayout(l.pipeline)
	for _, s := range l.sets {
		l.dev.drv.DestroyDescriptorSetLayout(s)
	}
}
