package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCamera is a pan-orbit rig around a target point. Yaw and pitch place
// the eye on a sphere of the given distance; panning moves the target in the
// camera plane.
type OrbitCamera struct {
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32

	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32

	OrbitSensitivity float32
	PanSensitivity   float32
	ZoomSensitivity  float32
}

const (
	minOrbitDistance = 0.1
	maxOrbitPitch    = float32(math.Pi/2) - 0.01
)

func NewOrbitCamera(target mgl32.Vec3, distance, yaw, pitch float32) *OrbitCamera {
	return &OrbitCamera{
		Target:           target,
		Distance:         distance,
		Yaw:              yaw,
		Pitch:            pitch,
		FovY:             mgl32.DegToRad(60),
		Aspect:           16.0 / 9.0,
		Near:             0.1,
		Far:              1000.0,
		OrbitSensitivity: 0.005,
		PanSensitivity:   0.002,
		ZoomSensitivity:  0.25,
	}
}

// Position is the eye point derived from target, distance, yaw and pitch.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	cosPitch := float32(math.Cos(float64(c.Pitch)))
	return c.Target.Add(mgl32.Vec3{
		c.Distance * cosPitch * float32(math.Sin(float64(c.Yaw))),
		c.Distance * float32(math.Sin(float64(c.Pitch))),
		c.Distance * cosPitch * float32(math.Cos(float64(c.Yaw))),
	})
}

func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix is a right-handed perspective with clip z in [0,1], the
// wgpu convention. mgl32.Perspective targets GL's [-1,1] range and would lose
// half the depth domain to clipping.
func (c *OrbitCamera) ProjectionMatrix() mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(c.FovY)*0.5))
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}

	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = c.Far / (c.Near - c.Far)
	m[11] = -1
	m[14] = -(c.Far * c.Near) / (c.Far - c.Near)
	return m
}

func (c *OrbitCamera) Orbit(dx, dy float32) {
	c.Yaw -= dx * c.OrbitSensitivity
	c.Pitch += dy * c.OrbitSensitivity
	if c.Pitch > maxOrbitPitch {
		c.Pitch = maxOrbitPitch
	}
	if c.Pitch < -maxOrbitPitch {
		c.Pitch = -maxOrbitPitch
	}
}

func (c *OrbitCamera) Pan(dx, dy float32) {
	view := c.ViewMatrix()
	// Camera right and up in world space are the first two rows of the view
	// rotation.
	right := mgl32.Vec3{view.At(0, 0), view.At(0, 1), view.At(0, 2)}
	up := mgl32.Vec3{view.At(1, 0), view.At(1, 1), view.At(1, 2)}

	scale := c.PanSensitivity * c.Distance
	c.Target = c.Target.
		Add(right.Mul(-dx * scale)).
		Add(up.Mul(dy * scale))
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance -= delta * c.ZoomSensitivity * c.Distance
	if c.Distance < minOrbitDistance {
		c.Distance = minOrbitDistance
	}
}
