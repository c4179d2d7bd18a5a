package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveCameraMatrices(t *testing.T) {
	scene := NewScene()

	_, _, ok := scene.ActiveCameraMatrices()
	assert.False(t, ok, "no camera set")

	scene.Camera = NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	view, proj, ok := scene.ActiveCameraMatrices()
	require.True(t, ok)
	assert.NotEqual(t, mgl32.Mat4{}, view)
	assert.NotEqual(t, mgl32.Mat4{}, proj)
}

func TestViewportSizeDefault(t *testing.T) {
	scene := NewScene()
	w, h := scene.ViewportSize()
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)

	scene.SetViewportSize(640, 480)
	w, h = scene.ViewportSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
}

func TestSetViewportSizeIgnoresZero(t *testing.T) {
	scene := NewScene()
	scene.SetViewportSize(800, 600)
	scene.SetViewportSize(0, 600)
	scene.SetViewportSize(800, 0)

	w, h := scene.ViewportSize()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestSetViewportSizeSyncsAspect(t *testing.T) {
	scene := NewScene()
	scene.Camera = NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	scene.SetViewportSize(200, 100)
	assert.InDelta(t, 2.0, scene.Camera.Aspect, 1e-6)
}
