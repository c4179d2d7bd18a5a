package gpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/splatview/core"
	"github.com/gekko3d/splatview/gaussian"
)

const (
	workgroupSize = 256

	// GPU-side strides. Splat mirrors the WGSL struct in render.wgsl.
	splatStride     = 48
	sortEntryStride = 4
	indirectSize    = 16
	uniformsSize    = 160
)

// SplatPass owns the whole gaussian pipeline: a clear dispatch that primes
// the sort arrays with sentinels, a preprocess dispatch that projects and
// culls, one dispatch per bitonic stage, and an indirect render pass that
// draws the survivors back to front.
type SplatPass struct {
	gaussianCount uint32
	paddedCount   uint32
	sortStages    []SortStage

	uniformBuffer     *wgpu.Buffer
	gaussianBuffer    *wgpu.Buffer
	splatBuffer       *wgpu.Buffer
	sortKeyBuffer     *wgpu.Buffer
	sortValueBuffer   *wgpu.Buffer
	indirectBuffer    *wgpu.Buffer
	indirectReset     *wgpu.Buffer
	sortUniformBuffer *wgpu.Buffer

	clearPipeline      *wgpu.ComputePipeline
	preprocessPipeline *wgpu.ComputePipeline
	sortPipeline       *wgpu.ComputePipeline
	renderPipeline     *wgpu.RenderPipeline

	preprocessBindGroup *wgpu.BindGroup
	sortBindGroup       *wgpu.BindGroup
	renderBindGroup     *wgpu.BindGroup

	// false while the scene has no camera; Execute skips the frame.
	haveCamera bool
}

func (p *SplatPass) Name() string {
	return "splat"
}

func (p *SplatPass) ReadsWrites() []string {
	return []string{"color", "depth"}
}

// GaussianCount is the number of loaded gaussians, before culling.
func (p *SplatPass) GaussianCount() uint32 {
	return p.gaussianCount
}

func NewSplatPass(device *wgpu.Device, gaussians []gaussian.GpuGaussian, colorFormat wgpu.TextureFormat, shaderSource SplatShaders) (*SplatPass, error) {
	count := uint32(len(gaussians))
	padded := NextPowerOfTwo(count)
	stages := ComputeSortStages(padded)

	p := &SplatPass{
		gaussianCount: count,
		paddedCount:   padded,
		sortStages:    stages,
	}

	if err := p.createBuffers(device, gaussians); err != nil {
		return nil, err
	}
	if err := p.createPipelines(device, colorFormat, shaderSource); err != nil {
		return nil, err
	}
	if err := p.createBindGroups(device); err != nil {
		return nil, err
	}
	return p, nil
}

// SplatShaders carries the WGSL sources so the shaders package stays the
// single embed point.
type SplatShaders struct {
	Preprocess string
	Sort       string
	Render     string
}

func (p *SplatPass) createBuffers(device *wgpu.Device, gaussians []gaussian.GpuGaussian) error {
	var err error

	p.uniformBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatUniforms",
		Size:  uniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}

	if len(gaussians) > 0 {
		p.gaussianBuffer, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "SplatGaussians",
			Contents: gaussian.Bytes(gaussians),
			Usage:    wgpu.BufferUsageStorage,
		})
	} else {
		// Bind groups need a non-empty buffer even in the empty mode.
		p.gaussianBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "SplatGaussians",
			Size:  uint64(unsafe.Sizeof(gaussian.GpuGaussian{})),
			Usage: wgpu.BufferUsageStorage,
		})
	}
	if err != nil {
		return err
	}

	p.splatBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatProjected",
		Size:  uint64(p.paddedCount) * splatStride,
		Usage: wgpu.BufferUsageStorage,
	})
	if err != nil {
		return err
	}

	p.sortKeyBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatSortKeys",
		Size:  uint64(p.paddedCount) * sortEntryStride,
		Usage: wgpu.BufferUsageStorage,
	})
	if err != nil {
		return err
	}

	p.sortValueBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatSortValues",
		Size:  uint64(p.paddedCount) * sortEntryStride,
		Usage: wgpu.BufferUsageStorage,
	})
	if err != nil {
		return err
	}

	p.indirectBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatDrawIndirect",
		Size:  indirectSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}

	// Template copied over the indirect buffer each frame: 6 vertices per
	// splat quad, instance count zeroed before preprocess bumps it.
	reset := make([]byte, indirectSize)
	binary.LittleEndian.PutUint32(reset, 6)
	p.indirectReset, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatDrawIndirectReset",
		Contents: reset,
		Usage:    wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}

	sortUniforms := BuildSortUniformData(p.paddedCount, p.sortStages)
	if len(sortUniforms) == 0 {
		// Degenerate single-element domain: no stages run, but the bind
		// group still needs a backing allocation.
		sortUniforms = make([]byte, SortUniformAlignment)
	}
	p.sortUniformBuffer, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatSortParams",
		Contents: sortUniforms,
		Usage:    wgpu.BufferUsageUniform,
	})
	return err
}

func (p *SplatPass) createPipelines(device *wgpu.Device, colorFormat wgpu.TextureFormat, src SplatShaders) error {
	preprocessModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatPreprocessShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Preprocess},
	})
	if err != nil {
		return err
	}
	defer preprocessModule.Release()

	sortModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatSortShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Sort},
	})
	if err != nil {
		return err
	}
	defer sortModule.Release()

	renderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatRenderShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Render},
	})
	if err != nil {
		return err
	}
	defer renderModule.Release()

	preprocessBgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SplatPreprocessBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uniformsSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeReadOnlyStorage,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    5,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	sortBgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SplatSortBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   16,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeStorage,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	renderBgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SplatRenderBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uniformsSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeReadOnlyStorage,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeReadOnlyStorage,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	preprocessLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{preprocessBgl},
	})
	if err != nil {
		return err
	}

	p.clearPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "SplatClearPipeline",
		Layout: preprocessLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     preprocessModule,
			EntryPoint: "clear_sort",
		},
	})
	if err != nil {
		return err
	}

	p.preprocessPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "SplatPreprocessPipeline",
		Layout: preprocessLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     preprocessModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return err
	}

	sortLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{sortBgl},
	})
	if err != nil {
		return err
	}

	p.sortPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "SplatSortPipeline",
		Layout: sortLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     sortModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return err
	}

	renderLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{renderBgl},
	})
	if err != nil {
		return err
	}

	p.renderPipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "SplatRenderPipeline",
		Layout: renderLayout,
		Vertex: wgpu.VertexState{
			Module:     renderModule,
			EntryPoint: "vertex_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     renderModule,
			EntryPoint: "fragment_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    colorFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
					// Fragment output is premultiplied.
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
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
		// Ordering comes from the sort, not the depth buffer: test always
		// passes and depth is never written.
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: false,
			DepthCompare:      wgpu.CompareFunctionAlways,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilReadMask:  0xFFFFFFFF,
			StencilWriteMask: 0xFFFFFFFF,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	return err
}

func (p *SplatPass) createBindGroups(device *wgpu.Device) error {
	var err error

	p.preprocessBindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SplatPreprocessBG",
		Layout: p.preprocessPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.uniformBuffer, Size: uniformsSize},
			{Binding: 1, Buffer: p.gaussianBuffer, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: p.splatBuffer, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: p.sortKeyBuffer, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: p.sortValueBuffer, Size: wgpu.WholeSize},
			{Binding: 5, Buffer: p.indirectBuffer, Size: indirectSize},
		},
	})
	if err != nil {
		return err
	}

	p.sortBindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SplatSortBG",
		Layout: p.sortPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.sortUniformBuffer, Size: 16},
			{Binding: 1, Buffer: p.sortKeyBuffer, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: p.sortValueBuffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}

	p.renderBindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SplatRenderBG",
		Layout: p.renderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.uniformBuffer, Size: uniformsSize},
			{Binding: 1, Buffer: p.splatBuffer, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: p.sortValueBuffer, Size: wgpu.WholeSize},
		},
	})
	return err
}

// Prepare uploads the per-frame uniform block. Without a camera the frame is
// marked skipped and Execute records nothing.
func (p *SplatPass) Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene) {
	view, projection, ok := scene.ActiveCameraMatrices()
	p.haveCamera = ok
	if !ok {
		return
	}

	width, height := scene.ViewportSize()
	queue.WriteBuffer(p.uniformBuffer, 0, p.packUniforms(view, projection, width, height))
}

func (p *SplatPass) packUniforms(view, projection mgl32.Mat4, width, height uint32) []byte {
	data := make([]byte, uniformsSize)
	off := putMat4(data, 0, view)
	off = putMat4(data, off, projection)
	off = putFloat32(data, off, float32(width))
	off = putFloat32(data, off, float32(height))
	// Focal lengths in pixels, recovered from the projection diagonal.
	off = putFloat32(data, off, projection.At(0, 0)*float32(width)/2)
	off = putFloat32(data, off, projection.At(1, 1)*float32(height)/2)
	binary.LittleEndian.PutUint32(data[off:], p.gaussianCount)
	binary.LittleEndian.PutUint32(data[off+4:], p.paddedCount)
	return data
}

func putMat4(data []byte, off int, m mgl32.Mat4) int {
	for i := 0; i < 16; i++ {
		off = putFloat32(data, off, m[i])
	}
	return off
}

func putFloat32(data []byte, off int, v float32) int {
	binary.LittleEndian.PutUint32(data[off:], math.Float32bits(v))
	return off + 4
}

// Execute records the full frame: indirect reset, sentinel clear, preprocess,
// one compute pass per sort stage, then the indirect render pass. Separate
// passes give the storage barriers the bitonic stages depend on.
func (p *SplatPass) Execute(ctx *PassContext) error {
	if p.gaussianCount == 0 || !p.haveCamera {
		return nil
	}

	colorAtt, err := ctx.ColorAttachment("color")
	if err != nil {
		return err
	}
	depthAtt, err := ctx.DepthAttachment("depth")
	if err != nil {
		return err
	}

	encoder := ctx.Encoder
	if err := encoder.CopyBufferToBuffer(p.indirectReset, 0, p.indirectBuffer, 0, indirectSize); err != nil {
		return err
	}

	clearPass := encoder.BeginComputePass(nil)
	clearPass.SetPipeline(p.clearPipeline)
	clearPass.SetBindGroup(0, p.preprocessBindGroup, nil)
	clearPass.DispatchWorkgroups((p.paddedCount+workgroupSize-1)/workgroupSize, 1, 1)
	if err := clearPass.End(); err != nil {
		return err
	}

	prePass := encoder.BeginComputePass(nil)
	prePass.SetPipeline(p.preprocessPipeline)
	prePass.SetBindGroup(0, p.preprocessBindGroup, nil)
	prePass.DispatchWorkgroups((p.gaussianCount+workgroupSize-1)/workgroupSize, 1, 1)
	if err := prePass.End(); err != nil {
		return err
	}

	comparators := p.paddedCount / 2
	for _, stage := range p.sortStages {
		sortPass := encoder.BeginComputePass(nil)
		sortPass.SetPipeline(p.sortPipeline)
		sortPass.SetBindGroup(0, p.sortBindGroup, []uint32{stage.DynamicOffset})
		sortPass.DispatchWorkgroups((comparators+workgroupSize-1)/workgroupSize, 1, 1)
		if err := sortPass.End(); err != nil {
			return err
		}
	}

	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "SplatRenderPass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       colorAtt.View,
				LoadOp:     colorAtt.Load,
				StoreOp:    colorAtt.Store,
				ClearValue: colorAtt.ClearValue,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depthAtt.View,
			DepthLoadOp:     depthAtt.Load,
			DepthStoreOp:    depthAtt.Store,
			DepthClearValue: depthAtt.DepthClearValue,
		},
	})
	renderPass.SetPipeline(p.renderPipeline)
	renderPass.SetBindGroup(0, p.renderBindGroup, nil)
	renderPass.DrawIndirect(p.indirectBuffer, 0)
	return renderPass.End()
}

// Release frees every GPU resource the pass owns.
func (p *SplatPass) Release() {
	for _, buffer := range []*wgpu.Buffer{
		p.uniformBuffer, p.gaussianBuffer, p.splatBuffer,
		p.sortKeyBuffer, p.sortValueBuffer,
		p.indirectBuffer, p.indirectReset, p.sortUniformBuffer,
	} {
		if buffer != nil {
			buffer.Release()
		}
	}
}
