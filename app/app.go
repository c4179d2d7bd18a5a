package app

import (
	"fmt"
	"math"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/splatview/core"
	"github.com/gekko3d/splatview/gaussian"
	"github.com/gekko3d/splatview/gpu"
	"github.com/gekko3d/splatview/shaders"
)

const overlayFontSize = 16

// Viewer is the application shell: window, device, offscreen scene targets
// and the render graph that draws the loaded point cloud through them.
type Viewer struct {
	Config Config
	Log    core.Logger
	Scene  *core.Scene

	Window        *glfw.Window
	instance      *wgpu.Instance
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surface       *wgpu.Surface
	surfaceConfig *wgpu.SurfaceConfiguration

	sceneColor     *wgpu.Texture
	sceneColorView *wgpu.TextureView
	sceneDepth     *wgpu.Texture
	sceneDepthView *wgpu.TextureView

	graph   *gpu.RenderGraph
	splat   *gpu.SplatPass
	blit    *gpu.BlitPass
	overlay *gpu.OverlayPass
	text    *core.TextRenderer

	lastTime   float64
	fpsTime    float64
	frameCount int
}

func NewViewer(window *glfw.Window, config Config, logger core.Logger) *Viewer {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &Viewer{
		Config: config,
		Log:    logger,
		Scene:  core.NewScene(),
		Window: window,
	}
}

// Init brings up the device, configures the surface and wires the render
// graph for the given point cloud.
func (v *Viewer) Init(cloud *gaussian.PointCloud) error {
	v.instance = wgpu.CreateInstance(nil)
	v.surface = v.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(v.Window))

	adapter, err := v.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: v.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	v.adapter = adapter

	v.device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Splatview Device",
	})
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	v.queue = v.device.GetQueue()

	width, height := v.Window.GetFramebufferSize()
	caps := v.surface.GetCapabilities(adapter)
	presentMode := wgpu.PresentModeFifo
	if !v.Config.Vsync {
		presentMode = wgpu.PresentModeImmediate
	}
	v.surfaceConfig = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	}
	v.surface.Configure(adapter, v.device, v.surfaceConfig)
	v.Log.Infof("surface %dx%d format %v", width, height, caps.Formats[0])

	// Orbit rig from the loaded cloud: origin target, configured distance,
	// looking down at 45 degrees.
	camera := core.NewOrbitCamera(mgl32.Vec3{}, v.Config.CameraDist, 0, float32(math.Pi/4))
	camera.FovY = mgl32.DegToRad(v.Config.CameraFovDeg)
	v.Scene.Camera = camera
	v.Scene.AssetId = cloud.Id
	v.Scene.GaussianCount = uint32(len(cloud.Gaussians))
	v.Scene.SetViewportSize(uint32(width), uint32(height))

	v.splat, err = gpu.NewSplatPass(v.device, gaussian.AdaptAll(cloud.Gaussians), wgpu.TextureFormatRGBA16Float, gpu.SplatShaders{
		Preprocess: shaders.PreprocessWGSL,
		Sort:       shaders.SortWGSL,
		Render:     shaders.RenderWGSL,
	})
	if err != nil {
		return fmt.Errorf("create splat pass: %w", err)
	}

	v.blit, err = gpu.NewBlitPass(v.device, v.surfaceConfig.Format, shaders.FullscreenWGSL)
	if err != nil {
		return fmt.Errorf("create blit pass: %w", err)
	}

	v.graph = gpu.NewRenderGraph()
	v.graph.AddPass(v.splat)
	v.graph.AddPass(v.blit)

	if v.Config.Overlay {
		if err := v.initOverlay(); err != nil {
			v.Log.Warnf("overlay disabled: %v", err)
		}
	}

	if err := v.createSceneTargets(uint32(width), uint32(height)); err != nil {
		return err
	}

	v.lastTime = glfw.GetTime()
	v.fpsTime = v.lastTime
	v.Log.Infof("loaded asset %s with %d gaussians", cloud.Id, len(cloud.Gaussians))
	return nil
}

func (v *Viewer) initOverlay() error {
	fontPath, err := v.findFont()
	if err != nil {
		return err
	}

	v.text, err = core.NewTextRenderer(fontPath, overlayFontSize)
	if err != nil {
		return err
	}

	v.overlay, err = gpu.NewOverlayPass(v.device, v.queue, v.surfaceConfig.Format, shaders.TextWGSL, v.text.AtlasImage)
	if err != nil {
		v.text = nil
		return err
	}
	v.graph.AddPass(v.overlay)
	v.Log.Debugf("overlay font %s", fontPath)
	return nil
}

func (v *Viewer) findFont() (string, error) {
	candidates := []string{
		v.Config.FontPath,
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no usable font found")
}

// createSceneTargets (re)builds the offscreen color and depth textures and
// rebinds the graph slots and the blit input.
func (v *Viewer) createSceneTargets(width, height uint32) error {
	v.releaseSceneTargets()

	extent := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}

	color, err := v.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "SceneColor",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA16Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("create scene color: %w", err)
	}
	colorView, err := color.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create scene color view: %w", err)
	}

	depth, err := v.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "SceneDepth",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		color.Release()
		return fmt.Errorf("create scene depth: %w", err)
	}
	depthView, err := depth.CreateView(nil)
	if err != nil {
		color.Release()
		depth.Release()
		return fmt.Errorf("create scene depth view: %w", err)
	}

	v.sceneColor = color
	v.sceneColorView = colorView
	v.sceneDepth = depth
	v.sceneDepthView = depthView

	v.graph.BindSlot("color", &gpu.Attachment{
		View:       colorView,
		Load:       wgpu.LoadOpClear,
		Store:      wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	})
	v.graph.BindSlot("depth", &gpu.Attachment{
		View:            depthView,
		Load:            wgpu.LoadOpClear,
		Store:           wgpu.StoreOpStore,
		DepthClearValue: 1,
	})

	return v.blit.SetSource(v.device, colorView)
}

func (v *Viewer) releaseSceneTargets() {
	if v.sceneColorView != nil {
		v.sceneColorView.Release()
		v.sceneColorView = nil
	}
	if v.sceneColor != nil {
		v.sceneColor.Release()
		v.sceneColor = nil
	}
	if v.sceneDepthView != nil {
		v.sceneDepthView.Release()
		v.sceneDepthView = nil
	}
	if v.sceneDepth != nil {
		v.sceneDepth.Release()
		v.sceneDepth = nil
	}
}

// Resize reconfigures the surface and recreates the offscreen targets.
// Zero sizes (minimized window) are ignored.
func (v *Viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.surfaceConfig.Width = uint32(width)
	v.surfaceConfig.Height = uint32(height)
	v.surface.Configure(v.adapter, v.device, v.surfaceConfig)
	v.Scene.SetViewportSize(uint32(width), uint32(height))
	if err := v.createSceneTargets(uint32(width), uint32(height)); err != nil {
		v.Log.Errorf("resize %dx%d: %v", width, height, err)
	}
	v.Log.Debugf("resized to %dx%d", width, height)
}

// Update advances the frame clock and rebuilds the overlay vertices.
func (v *Viewer) Update() {
	now := glfw.GetTime()
	v.Scene.Timing.DeltaTime = now - v.lastTime
	v.lastTime = now

	v.frameCount++
	if now-v.fpsTime >= 1 {
		v.Scene.Timing.FPS = float64(v.frameCount) / (now - v.fpsTime)
		v.frameCount = 0
		v.fpsTime = now
	}

	if v.overlay != nil && v.text != nil {
		items := []core.TextItem{
			{
				Text:     fmt.Sprintf("%d gaussians\nFPS: %.1f", v.Scene.GaussianCount, v.Scene.Timing.FPS),
				Position: [2]float32{10, 10},
				Scale:    1,
				Color:    [4]float32{1, 1, 1, 1},
			},
		}
		width, height := v.Scene.ViewportSize()
		v.overlay.SetVertices(v.queue, v.text.BuildVertices(items, int(width), int(height)))
	}
}

// Render draws one frame: acquire, prepare, execute the graph, present.
func (v *Viewer) Render() error {
	frame, err := v.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	defer frame.Release()

	frameView, err := frame.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create surface view: %w", err)
	}
	defer frameView.Release()

	v.graph.BindSlot("swapchain", &gpu.Attachment{
		View:       frameView,
		Load:       wgpu.LoadOpClear,
		Store:      wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	})

	v.graph.Prepare(v.device, v.queue, v.Scene)

	encoder, err := v.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Release()

	if err := v.graph.Execute(encoder); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	defer cmd.Release()

	v.queue.Submit(cmd)
	v.surface.Present()
	return nil
}

// Release tears down the GPU resources in reverse creation order.
func (v *Viewer) Release() {
	v.releaseSceneTargets()
	if v.splat != nil {
		v.splat.Release()
	}
	if v.device != nil {
		v.device.Release()
	}
	if v.surface != nil {
		v.surface.Release()
	}
	if v.adapter != nil {
		v.adapter.Release()
	}
	if v.instance != nil {
		v.instance.Release()
	}
}
