package diesel

import (
	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// Pipeline is a graphics pipeline built from a shader descriptor for the
// render pass of one framebuffer.
type Pipeline struct {
	dev    *Device
	handle driver.Pipeline
	layout *ShaderLayout
	name   string
}

// NewPipeline compiles desc against layout and target's render pass. The
// shader modules are released once the pipeline exists. Bytecode errors
// are returned; driver failures are fatal.
func NewPipeline(dev *Device, layout *ShaderLayout, desc *ShaderDescriptor, target *Framebuffer) (*Pipeline, error) {
	if desc.Depth != DepthNone && !target.HasDepth() {
		return nil, errors.Errorf("diesel: shader %q uses depth mode %s but the target has no depth attachment", desc.Name, desc.Depth)
	}
	vert, err := dev.CreateShaderModule(desc.Vertex)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q vertex", desc.Name)
	}
	defer dev.drv.DestroyShaderModule(vert)
	frag, err := dev.CreateShaderModule(desc.Fragment)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %q fragment", desc.Name)
	}
	defer dev.drv.DestroyShaderModule(frag)

	h, err := dev.drv.CreateGraphicsPipeline(driver.PipelineDesc{
		Vertex:     vert,
		Fragment:   frag,
		Layout:     layout.Pipeline(),
		RenderPass: target.RenderPass(),
		Vertices:   desc.Vertices,
		Topology:   desc.Shape.topology(),
		Cull:       desc.Cull.driverCull(),
		DepthTest:  desc.Depth.test(),
		DepthWrite: desc.Depth.write(),
		Blend:      desc.Blend,
	})
	orPanic(err, "diesel: create pipeline "+desc.Name)
	Logger().Debug("diesel: pipeline created", "name", desc.Name, "depth", desc.Depth, "shape", desc.Shape, "cull", desc.Cull)
	return &Pipeline{dev: dev, handle: h, layout: layout, name: desc.Name}, nil
}

func (p *Pipeline) Handle() driver.Pipeline { return p.handle }
func (p *Pipeline) Name() string            { return p.name }

// Bind binds the pipeline. It counts as a shader bind in the frame stats.
func (p *Pipeline) Bind(cmd *Commands) {
	cmd.BindPipeline(p.handle)
}

// Destroy releases the pipeline once the current frame has completed.
func (p *Pipeline) Destroy() {
	p.dev.FreePipeline(p.handle)
	p.handle = 0
}
