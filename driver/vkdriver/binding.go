package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/diesel/driver"
)

const spirvMagic = 0x07230203

func (d *Driver) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	if len(code) < 5 || code[0] != spirvMagic {
		return 0, driver.Errorf("CreateShaderModule", driver.ErrInvalidUsage, "not a SPIR-V module")
	}
	var m vk.ShaderModule
	ret := vk.CreateShaderModule(d.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}, nil, &m)
	if err := check("vkCreateShaderModule", ret); err != nil {
		return 0, err
	}
	return add(d, &d.modules, m), nil
}

func (d *Driver) DestroyShaderModule(h driver.ShaderModule) {
	if m, ok := take(d, &d.modules, h); ok {
		vk.DestroyShaderModule(d.device, m, nil)
	}
}

func (d *Driver) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	out := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		out[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vkShaderStages(b.Stages),
		}
	}
	var l vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(d.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(out)),
		PBindings:    out,
	}, nil, &l)
	if err := check("vkCreateDescriptorSetLayout", ret); err != nil {
		return 0, err
	}
	return add(d, &d.setLayouts, l), nil
}

func (d *Driver) DestroyDescriptorSetLayout(h driver.DescriptorSetLayout) {
	if l, ok := take(d, &d.setLayouts, h); ok {
		vk.DestroyDescriptorSetLayout(d.device, l, nil)
	}
}

func (d *Driver) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	if len(sizes) == 0 {
		return 0, driver.Errorf("CreateDescriptorPool", driver.ErrInvalidUsage, "no pool sizes")
	}
	out := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		out[i] = vk.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(out)),
		PPoolSizes:    out,
	}, nil, &pool)
	if err := check("vkCreateDescriptorPool", ret); err != nil {
		return 0, err
	}
	return add(d, &d.descPools, &descPool{vk: pool}), nil
}

// DestroyDescriptorPool destroys the pool along with every set allocated
// from it.
func (d *Driver) DestroyDescriptorPool(h driver.DescriptorPool) {
	pool, ok := take(d, &d.descPools, h)
	if !ok {
		return
	}
	d.mu.Lock()
	for _, s := range pool.sets {
		delete(d.sets.items, s)
	}
	d.mu.Unlock()
	vk.DestroyDescriptorPool(d.device, pool.vk, nil)
}

func (d *Driver) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	pool, ok := lookup(d, &d.descPools, p)
	if !ok {
		return 0, badHandle("AllocateDescriptorSet", p)
	}
	layout, ok := lookup(d, &d.setLayouts, l)
	if !ok {
		return 0, badHandle("AllocateDescriptorSet", l)
	}
	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.vk,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &sets[0])
	if err := check("vkAllocateDescriptorSets", ret); err != nil {
		return 0, err
	}
	h := add(d, &d.sets, sets[0])
	d.mu.Lock()
	pool.sets = append(pool.sets, h)
	d.mu.Unlock()
	return h, nil
}

// UpdateDescriptorSets panics on an unknown handle, like the Cmd methods.
func (d *Driver) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	out := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		wd := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          must(d, &d.sets, w.Set),
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  vkDescriptorType(w.Type),
		}
		switch {
		case len(w.Images) > 0:
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for j, img := range w.Images {
				infos[j] = vk.DescriptorImageInfo{
					ImageLayout: vkLayout(img.Layout),
				}
				if img.Sampler != 0 {
					infos[j].Sampler = must(d, &d.samplers, img.Sampler)
				}
				if img.View != 0 {
					infos[j].ImageView = must(d, &d.views, img.View)
				}
			}
			wd.DescriptorCount = uint32(len(infos))
			wd.PImageInfo = infos
		case len(w.Buffers) > 0:
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for j, b := range w.Buffers {
				infos[j] = vk.DescriptorBufferInfo{
					Buffer: must(d, &d.buffers, b.Buffer),
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			wd.DescriptorCount = uint32(len(infos))
			wd.PBufferInfo = infos
		}
		out[i] = wd
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(out)), out, 0, nil)
}

func (d *Driver) CreatePipelineLayout(sets []driver.DescriptorSetLayout, push []driver.PushConstantRange) (driver.PipelineLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		l, ok := lookup(d, &d.setLayouts, s)
		if !ok {
			return 0, badHandle("CreatePipelineLayout", s)
		}
		layouts[i] = l
	}
	ranges := make([]vk.PushConstantRange, len(push))
	for i, r := range push {
		if r.Offset+r.Size > d.limits.MaxPushConstantsSize {
			return 0, driver.Errorf("CreatePipelineLayout", driver.ErrInvalidUsage,
				"push constants %d+%d past %d", r.Offset, r.Size, d.limits.MaxPushConstantsSize)
		}
		ranges[i] = vk.PushConstantRange{
			StageFlags: vkShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	var l vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &l)
	if err := check("vkCreatePipelineLayout", ret); err != nil {
		return 0, err
	}
	return add(d, &d.pipeLayouts, l), nil
}

func (d *Driver) DestroyPipelineLayout(h driver.PipelineLayout) {
	if l, ok := take(d, &d.pipeLayouts, h); ok {
		vk.DestroyPipelineLayout(d.device, l, nil)
	}
}

func depthState(desc driver.PipelineDesc) vk.PipelineDepthStencilStateCreateInfo {
	info := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLess,
		MinDepthBounds: 0,
		MaxDepthBounds: 1,
	}
	switch {
	case desc.DepthTest:
		info.DepthTestEnable = vk.True
	case desc.DepthWrite:
		// Writes only happen with the test on; let every fragment pass.
		info.DepthTestEnable = vk.True
		info.DepthCompareOp = vk.CompareOpAlways
	}
	if desc.DepthWrite {
		info.DepthWriteEnable = vk.True
	}
	return info
}

func blendState(blend bool) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorOne,
		DstColorBlendFactor: vk.BlendFactorZero,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if blend {
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	}
	return state
}

// CreateGraphicsPipeline builds a single-subpass pipeline with dynamic
// viewport and scissor.
func (d *Driver) CreateGraphicsPipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	vert, ok := lookup(d, &d.modules, desc.Vertex)
	if !ok {
		return 0, badHandle("CreateGraphicsPipeline", desc.Vertex)
	}
	frag, ok := lookup(d, &d.modules, desc.Fragment)
	if !ok {
		return 0, badHandle("CreateGraphicsPipeline", desc.Fragment)
	}
	layout, ok := lookup(d, &d.pipeLayouts, desc.Layout)
	if !ok {
		return 0, badHandle("CreateGraphicsPipeline", desc.Layout)
	}
	rp, ok := lookup(d, &d.passes, desc.RenderPass)
	if !ok {
		return 0, badHandle("CreateGraphicsPipeline", desc.RenderPass)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  safeString("main"),
		},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.Vertices.Stride > 0 {
		attrs := make([]vk.VertexInputAttributeDescription, len(desc.Vertices.Attributes))
		for i, a := range desc.Vertices.Attributes {
			attrs[i] = vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  0,
				Format:   vkFormat(a.Format),
				Offset:   a.Offset,
			}
		}
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.Vertices.Stride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attrs))
		vertexInput.PVertexAttributeDescriptions = attrs
	}

	depth := depthState(desc)

	attachments := make([]vk.PipelineColorBlendAttachmentState, rp.colors)
	for i := range attachments {
		attachments[i] = blendState(desc.Blend)
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: &vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vkTopology(desc.Topology),
			PrimitiveRestartEnable: vk.False,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable:        vk.False,
			RasterizerDiscardEnable: vk.False,
			PolygonMode:             vk.PolygonModeFill,
			CullMode:                vkCull(desc.Cull),
			FrontFace:               vk.FrontFaceCounterClockwise,
			DepthBiasEnable:         vk.False,
			LineWidth:               1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &depth,
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   vk.False,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
		Layout:     layout,
		RenderPass: rp.vk,
		Subpass:    0,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := check("vkCreateGraphicsPipelines", ret); err != nil {
		return 0, err
	}
	return add(d, &d.pipelines, pipelines[0]), nil
}

func (d *Driver) DestroyPipeline(h driver.Pipeline) {
	if p, ok := take(d, &d.pipelines, h); ok {
		vk.DestroyPipeline(d.device, p, nil)
	}
}

// CreateRenderPass builds one graphics subpass over the color attachments
// and the optional depth attachment, in that order. Each attachment starts
// and ends in its declared layout.
func (d *Driver) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	if len(desc.Color) == 0 && desc.Depth.Format == driver.FormatUndefined {
		return 0, driver.Errorf("CreateRenderPass", driver.ErrInvalidUsage, "no attachments")
	}
	var (
		attachments []vk.AttachmentDescription
		colorRefs   []vk.AttachmentReference
		depthRef    *vk.AttachmentReference
	)
	describe := func(a driver.Attachment) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         vkFormat(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vkLoadOp(a.Load),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vkLayout(a.Layout),
			FinalLayout:    vkLayout(a.Layout),
		}
	}
	for _, c := range desc.Color {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, describe(c))
	}
	dstStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	dstAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	if desc.Depth.Format != driver.FormatUndefined {
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, describe(desc.Depth))
		dstStage |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
		dstAccess |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	}

	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}}
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  dstStage,
		DstStageMask:  dstStage,
		SrcAccessMask: 0,
		DstAccessMask: dstAccess,
	}}

	var rp vk.RenderPass
	ret := vk.CreateRenderPass(d.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &rp)
	if err := check("vkCreateRenderPass", ret); err != nil {
		return 0, err
	}
	return add(d, &d.passes, &renderPass{vk: rp, colors: len(desc.Color)}), nil
}

func (d *Driver) DestroyRenderPass(h driver.RenderPass) {
	if rp, ok := take(d, &d.passes, h); ok {
		vk.DestroyRenderPass(d.device, rp.vk, nil)
	}
}

func (d *Driver) CreateFramebuffer(desc driver.FramebufferDesc) (driver.Framebuffer, error) {
	rp, ok := lookup(d, &d.passes, desc.RenderPass)
	if !ok {
		return 0, badHandle("CreateFramebuffer", desc.RenderPass)
	}
	views := make([]vk.ImageView, len(desc.Attachments))
	for i, v := range desc.Attachments {
		view, ok := lookup(d, &d.views, v)
		if !ok {
			return 0, badHandle("CreateFramebuffer", v)
		}
		views[i] = view
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.vk,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}, nil, &fb)
	if err := check("vkCreateFramebuffer", ret); err != nil {
		return 0, err
	}
	return add(d, &d.framebufs, fb), nil
}

func (d *Driver) DestroyFramebuffer(h driver.Framebuffer) {
	if fb, ok := take(d, &d.framebufs, h); ok {
		vk.DestroyFramebuffer(d.device, fb, nil)
	}
}
