package gpu

import (
	"image"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/splatview/core"
)

// OverlayPass composites the stats text on top of the blitted frame. The
// glyph atlas is uploaded once; vertex data is rebuilt by the app each frame
// and uploaded through SetVertices.
type OverlayPass struct {
	device      *wgpu.Device
	pipeline    *wgpu.RenderPipeline
	bindGroup   *wgpu.BindGroup
	vertexBuf   *wgpu.Buffer
	vertexCap   uint32
	vertexCount uint32
}

func (p *OverlayPass) Name() string {
	return "overlay"
}

func (p *OverlayPass) ReadsWrites() []string {
	return []string{"swapchain"}
}

func NewOverlayPass(device *wgpu.Device, queue *wgpu.Queue, targetFormat wgpu.TextureFormat, shaderCode string, atlas *image.Alpha) (*OverlayPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "OverlayTextShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderCode},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	atlasSize := atlas.Bounds().Dx()
	extent := wgpu.Extent3D{
		Width:              uint32(atlasSize),
		Height:             uint32(atlasSize),
		DepthOrArrayLayers: 1,
	}
	texture, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "GlyphAtlas",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer texture.Release()

	atlasView, err := texture.CreateView(nil)
	if err != nil {
		return nil, err
	}

	err = queue.WriteTexture(
		texture.AsImageCopy(),
		atlas.Pix,
		&wgpu.TextureDataLayout{
			BytesPerRow:  uint32(atlas.Stride),
			RowsPerImage: uint32(atlasSize),
		},
		&extent,
	)
	if err != nil {
		return nil, err
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "GlyphSampler",
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "OverlayTextPipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(core.TextVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    targetFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
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

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "OverlayTextBG",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: atlasView},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return nil, err
	}

	return &OverlayPass{
		device:    device,
		pipeline:  pipeline,
		bindGroup: bindGroup,
	}, nil
}

// SetVertices uploads this frame's glyph quads, growing the vertex buffer
// with some headroom when it runs out.
func (p *OverlayPass) SetVertices(queue *wgpu.Queue, vertices []core.TextVertex) {
	p.vertexCount = uint32(len(vertices))
	if len(vertices) == 0 {
		return
	}

	if p.vertexBuf == nil || p.vertexCap < uint32(len(vertices)) {
		if p.vertexBuf != nil {
			p.vertexBuf.Release()
		}
		p.vertexCap = uint32(len(vertices)) + 512
		p.vertexBuf, _ = p.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "OverlayTextVertices",
			Size:  uint64(p.vertexCap) * uint64(unsafe.Sizeof(core.TextVertex{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
	}

	queue.WriteBuffer(p.vertexBuf, 0, wgpu.ToBytes(vertices))
}

func (p *OverlayPass) Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene) {}

func (p *OverlayPass) Execute(ctx *PassContext) error {
	if p.vertexCount == 0 || p.vertexBuf == nil {
		return nil
	}

	target, err := ctx.ColorAttachment("swapchain")
	if err != nil {
		return err
	}

	// Composites over the blit output, so always load.
	pass := ctx.Encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "OverlayTextPass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    target.View,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			},
		},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.SetVertexBuffer(0, p.vertexBuf, 0, p.vertexBuf.GetSize())
	pass.Draw(p.vertexCount, 1, 0, 0)
	return pass.End()
}
