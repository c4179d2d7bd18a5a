package gpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/splatview/core"
)

type recordingPass struct {
	name     string
	log      *[]string
	execErr  error
	prepared bool
}

func (p *recordingPass) Name() string          { return p.name }
func (p *recordingPass) ReadsWrites() []string { return nil }

func (p *recordingPass) Prepare(device *wgpu.Device, queue *wgpu.Queue, scene *core.Scene) {
	p.prepared = true
}

func (p *recordingPass) Execute(ctx *PassContext) error {
	*p.log = append(*p.log, p.name)
	return p.execErr
}

func TestRenderGraphExecutionOrder(t *testing.T) {
	var log []string
	graph := NewRenderGraph()
	graph.AddPass(&recordingPass{name: "first", log: &log})
	graph.AddPass(&recordingPass{name: "second", log: &log})
	graph.AddPass(&recordingPass{name: "third", log: &log})

	require.NoError(t, graph.Execute(nil))
	assert.Equal(t, []string{"first", "second", "third"}, log)
}

func TestRenderGraphStopsOnError(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	graph := NewRenderGraph()
	graph.AddPass(&recordingPass{name: "ok", log: &log})
	graph.AddPass(&recordingPass{name: "broken", log: &log, execErr: boom})
	graph.AddPass(&recordingPass{name: "never", log: &log})

	err := graph.Execute(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"ok", "broken"}, log)
}

func TestRenderGraphPrepareReachesEveryPass(t *testing.T) {
	var log []string
	a := &recordingPass{name: "a", log: &log}
	b := &recordingPass{name: "b", log: &log}
	graph := NewRenderGraph()
	graph.AddPass(a)
	graph.AddPass(b)

	graph.Prepare(nil, nil, core.NewScene())
	assert.True(t, a.prepared)
	assert.True(t, b.prepared)
}

func TestUnboundSlotError(t *testing.T) {
	graph := NewRenderGraph()
	ctx := &PassContext{graph: graph}

	_, err := ctx.ColorAttachment("color")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"color"`)

	// Bound but without a view still counts as unbound.
	graph.BindSlot("color", &Attachment{})
	_, err = ctx.ColorAttachment("color")
	require.Error(t, err)
}

func TestBindSlotRebinds(t *testing.T) {
	graph := NewRenderGraph()
	first := &Attachment{View: &wgpu.TextureView{}}
	second := &Attachment{View: &wgpu.TextureView{}}

	graph.BindSlot("swapchain", first)
	ctx := &PassContext{graph: graph}
	got, err := ctx.ColorAttachment("swapchain")
	require.NoError(t, err)
	assert.Same(t, first, got)

	graph.BindSlot("swapchain", second)
	got, err = ctx.ColorAttachment("swapchain")
	require.NoError(t, err)
	assert.Same(t, second, got)
}
