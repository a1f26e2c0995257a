package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	FovY        float32 // radians
	Near        float32
	Far         float32
	Speed       float32
	Sensitivity float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, -14, 4},
		FovY:        mgl32.DegToRad(60),
		Near:        0.1,
		Far:         200,
		Speed:       10.0,
		Sensitivity: 0.003,
	}
}

func (c *CameraState) Forward() mgl32.Vec3 {
	// Z-up: yaw turns in the XY plane, pitch lifts toward +Z
	return mgl32.Vec3{
		math32.Cos(c.Pitch) * math32.Sin(c.Yaw),
		math32.Cos(c.Pitch) * math32.Cos(c.Yaw),
		math32.Sin(c.Pitch),
	}
}

func (c *CameraState) Right() mgl32.Vec3 {
	return mgl32.Vec3{math32.Cos(c.Yaw), -math32.Sin(c.Yaw), 0}
}

func (c *CameraState) LookAt(target mgl32.Vec3) {
	d := target.Sub(c.Position)
	if d.Len() == 0 {
		return
	}
	d = d.Normalize()
	c.Pitch = math32.Asin(mgl32.Clamp(d.Z(), -1, 1))
	c.Yaw = math32.Atan2(d.X(), d.Y())
}

func (c *CameraState) ViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), mgl32.Vec3{0, 0, 1})
}

func (c *CameraState) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// Move applies a fly-camera step along forward/right/up.
func (c *CameraState) Move(forward, right, up, dt float32) {
	step := c.Speed * dt
	c.Position = c.Position.
		Add(c.Forward().Mul(forward * step)).
		Add(c.Right().Mul(right * step)).
		Add(mgl32.Vec3{0, 0, up * step})
}

func (c *CameraState) Rotate(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch = mgl32.Clamp(c.Pitch-dy*c.Sensitivity, -1.5, 1.5)
}
