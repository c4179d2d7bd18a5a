package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitCameraPosition(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{0, 0, 0}, 5, 0, 0)

	// Yaw 0, pitch 0 puts the eye on +Z.
	pos := cam.Position()
	assert.InDelta(t, 0, pos.X(), 1e-5)
	assert.InDelta(t, 0, pos.Y(), 1e-5)
	assert.InDelta(t, 5, pos.Z(), 1e-5)

	cam.Pitch = float32(math.Pi / 2)
	pos = cam.Position()
	assert.InDelta(t, 5, pos.Y(), 1e-4)
}

func TestOrbitCameraViewLooksAtTarget(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{1, 2, 3}, 4, 0.7, 0.3)
	view := cam.ViewMatrix()

	// The target must land on the view -Z axis at the orbit distance.
	p := view.Mul4x1(cam.Target.Vec4(1))
	assert.InDelta(t, 0, p.X(), 1e-4)
	assert.InDelta(t, 0, p.Y(), 1e-4)
	assert.InDelta(t, -4, p.Z(), 1e-4)
}

func TestProjectionMapsDepthToZeroOne(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	cam.Aspect = 1
	proj := cam.ProjectionMatrix()

	project := func(viewZ float32) float32 {
		clip := proj.Mul4x1(mgl32.Vec4{0, 0, viewZ, 1})
		return clip.Z() / clip.W()
	}

	// View space looks down -Z; near maps to 0, far to 1.
	assert.InDelta(t, 0, project(-cam.Near), 1e-5)
	assert.InDelta(t, 1, project(-cam.Far), 1e-4)

	mid := project(-10)
	require.Greater(t, mid, float32(0))
	require.Less(t, mid, float32(1))
}

func TestProjectionDiagonalMatchesFov(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	cam.Aspect = 2
	proj := cam.ProjectionMatrix()

	f := 1 / float32(math.Tan(float64(cam.FovY)/2))
	assert.InDelta(t, f/2, proj.At(0, 0), 1e-5)
	assert.InDelta(t, f, proj.At(1, 1), 1e-5)
}

func TestOrbitPitchClamp(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	cam.Orbit(0, 1e6)
	assert.LessOrEqual(t, cam.Pitch, maxOrbitPitch)
	cam.Orbit(0, -1e7)
	assert.GreaterOrEqual(t, cam.Pitch, -maxOrbitPitch)
}

func TestZoomClampsDistance(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 1, 0, 0)
	for i := 0; i < 100; i++ {
		cam.Zoom(10)
	}
	assert.GreaterOrEqual(t, cam.Distance, float32(minOrbitDistance))

	before := cam.Distance
	cam.Zoom(-1)
	assert.Greater(t, cam.Distance, before)
}

func TestPanMovesTargetInCameraPlane(t *testing.T) {
	cam := NewOrbitCamera(mgl32.Vec3{}, 5, 0, 0)
	// Looking down -Z: camera right is +X, camera up is +Y.
	cam.Pan(100, 0)
	assert.Less(t, cam.Target.X(), float32(0))
	assert.InDelta(t, 0, cam.Target.Y(), 1e-5)

	cam.Target = mgl32.Vec3{}
	cam.Pan(0, 100)
	assert.Greater(t, cam.Target.Y(), float32(0))
}
