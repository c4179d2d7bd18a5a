package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/splatview/core"
)

// Attachment is one named render-target slot of the graph. The owning shell
// binds views into slots; passes borrow them for the duration of their render
// pass together with the load/store policy the shell decided on.
type Attachment struct {
	View            *wgpu.TextureView
	Load            wgpu.LoadOp
	Store           wgpu.StoreOp
	ClearValue      wgpu.Color
	DepthClearValue float32
}

// PassNode is a unit of per-frame GPU work. Prepare runs before any encoding
// and may write uniforms through the queue; Execute records the pass's
// commands into the frame encoder.
type PassNode interface {
	Name() string
	ReadsWrites() []string
	Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene)
	Execute(ctx *PassContext) error
}

// PassContext hands a pass the frame encoder and access to its bound
// attachment slots.
type PassContext struct {
	Encoder *wgpu.CommandEncoder
	graph   *RenderGraph
}

func (c *PassContext) ColorAttachment(name string) (*Attachment, error) {
	return c.graph.attachment(name)
}

func (c *PassContext) DepthAttachment(name string) (*Attachment, error) {
	return c.graph.attachment(name)
}

// RenderGraph runs its passes in registration order every frame. There is no
// dependency solver: the splat pipeline is a fixed linear chain and order of
// registration is the execution order.
type RenderGraph struct {
	passes []PassNode
	slots  map[string]*Attachment
}

func NewRenderGraph() *RenderGraph {
	return &RenderGraph{
		slots: make(map[string]*Attachment),
	}
}

func (g *RenderGraph) AddPass(pass PassNode) {
	g.passes = append(g.passes, pass)
}

// BindSlot attaches a target view to a named slot. Rebinding is allowed and
// expected for per-frame targets like the swapchain view.
func (g *RenderGraph) BindSlot(name string, attachment *Attachment) {
	g.slots[name] = attachment
}

func (g *RenderGraph) attachment(name string) (*Attachment, error) {
	attachment, ok := g.slots[name]
	if !ok || attachment == nil || attachment.View == nil {
		return nil, fmt.Errorf("render graph slot %q is not bound", name)
	}
	return attachment, nil
}

func (g *RenderGraph) Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene) {
	for _, pass := range g.passes {
		pass.Prepare(device, queue, scene)
	}
}

func (g *RenderGraph) Execute(encoder *wgpu.CommandEncoder) error {
	ctx := &PassContext{Encoder: encoder, graph: g}
	for _, pass := range g.passes {
		if err := pass.Execute(ctx); err != nil {
			return fmt.Errorf("pass %s: %w", pass.Name(), err)
		}
	}
	return nil
}
