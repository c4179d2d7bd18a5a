package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// FrameTiming carries the per-frame clock the overlay reads.
type FrameTiming struct {
	DeltaTime float64
	FPS       float64
}

// Scene is the per-frame resource bundle the render passes consume: the
// active camera (nil while none is set), the cached viewport size, and the
// loaded asset's stats.
type Scene struct {
	Camera *OrbitCamera

	ViewportWidth  uint32
	ViewportHeight uint32

	AssetId       string
	GaussianCount uint32

	Timing FrameTiming
}

func NewScene() *Scene {
	return &Scene{}
}

// ActiveCameraMatrices returns the view and projection of the active camera.
// ok is false while no camera is set; callers skip the frame.
func (s *Scene) ActiveCameraMatrices() (view, projection mgl32.Mat4, ok bool) {
	if s.Camera == nil {
		return mgl32.Mat4{}, mgl32.Mat4{}, false
	}
	return s.Camera.ViewMatrix(), s.Camera.ProjectionMatrix(), true
}

// ViewportSize returns the cached framebuffer size, defaulting to 1920x1080
// while the real size is unknown.
func (s *Scene) ViewportSize() (uint32, uint32) {
	if s.ViewportWidth == 0 || s.ViewportHeight == 0 {
		return 1920, 1080
	}
	return s.ViewportWidth, s.ViewportHeight
}

// SetViewportSize records the framebuffer size and keeps the camera aspect in
// sync. Zero sizes (minimized window) are ignored.
func (s *Scene) SetViewportSize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.ViewportWidth = width
	s.ViewportHeight = height
	if s.Camera != nil {
		s.Camera.Aspect = float32(width) / float32(height)
	}
}
