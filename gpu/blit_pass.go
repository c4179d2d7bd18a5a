package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/splatview/core"
)

// BlitPass copies the offscreen scene color to the swapchain with an
// oversized fullscreen triangle.
type BlitPass struct {
	pipeline  *wgpu.RenderPipeline
	sampler   *wgpu.Sampler
	bindGroup *wgpu.BindGroup
}

func (p *BlitPass) Name() string {
	return "blit"
}

func (p *BlitPass) ReadsWrites() []string {
	return []string{"swapchain"}
}

func NewBlitPass(device *wgpu.Device, targetFormat wgpu.TextureFormat, shaderCode string) (*BlitPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "BlitShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderCode},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "BlitSampler",
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "BlitPipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    targetFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	return &BlitPass{
		pipeline: pipeline,
		sampler:  sampler,
	}, nil
}

// SetSource rebinds the blit input. Called at startup and whenever the
// offscreen target is recreated on resize.
func (p *BlitPass) SetSource(device *wgpu.Device, view *wgpu.TextureView) error {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BlitBG",
		Layout: p.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: p.sampler},
		},
	})
	if err != nil {
		return err
	}
	p.bindGroup = bindGroup
	return nil
}

func (p *BlitPass) Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene) {}

func (p *BlitPass) Execute(ctx *PassContext) error {
	if p.bindGroup == nil {
		return nil
	}

	target, err := ctx.ColorAttachment("swapchain")
	if err != nil {
		return err
	}

	pass := ctx.Encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "BlitPass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       target.View,
				LoadOp:     target.Load,
				StoreOp:    target.Store,
				ClearValue: target.ClearValue,
			},
		},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
