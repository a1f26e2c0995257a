package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// NewDemoScene builds an open box of the given half extent with a red and a
// green wall, two blocks, an emissive panel and a sun. It fits a volume
// centered on the origin with edge 2*half.
func NewDemoScene(half float32) *Scene {
	s := NewScene()
	plane := NewPlaneMesh(8)
	cube := NewCubeMesh()
	wall := func(name string, color mgl32.Vec3, pos mgl32.Vec3, rot mgl32.Quat) {
		o := NewSceneObject(name, plane, NewMaterial(color))
		o.Transform.Position = pos
		o.Transform.Rotation = rot
		o.Transform.Scale = mgl32.Vec3{2 * half * 0.9, 2 * half * 0.9, 1}
		s.AddObject(o)
	}
	inset := half * 0.9
	wall("floor", mgl32.Vec3{0.75, 0.75, 0.75}, mgl32.Vec3{0, 0, -inset}, mgl32.QuatIdent())
	wall("back", mgl32.Vec3{0.75, 0.75, 0.75}, mgl32.Vec3{0, inset, 0},
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0}))
	wall("left", mgl32.Vec3{0.8, 0.1, 0.1}, mgl32.Vec3{-inset, 0, 0},
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	wall("right", mgl32.Vec3{0.1, 0.8, 0.1}, mgl32.Vec3{inset, 0, 0},
		mgl32.QuatRotate(mgl32.DegToRad(-90), mgl32.Vec3{0, 1, 0}))

	tall := NewSceneObject("tall block", cube, NewMaterial(mgl32.Vec3{0.8, 0.8, 0.7}))
	tall.Transform.Position = mgl32.Vec3{-half * 0.35, half * 0.3, -inset + half*0.5}
	tall.Transform.Scale = mgl32.Vec3{half * 0.45, half * 0.45, half}
	tall.Transform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(20), mgl32.Vec3{0, 0, 1})
	s.AddObject(tall)

	short := NewSceneObject("short block", cube, NewMaterial(mgl32.Vec3{0.7, 0.7, 0.8}))
	short.Transform.Position = mgl32.Vec3{half * 0.35, -half * 0.2, -inset + half*0.25}
	short.Transform.Scale = mgl32.Vec3{half * 0.45, half * 0.45, half * 0.5}
	short.Transform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(-15), mgl32.Vec3{0, 0, 1})
	s.AddObject(short)

	lamp := NewSceneObject("lamp", cube, EmissiveMaterial(mgl32.Vec3{4, 3.6, 3}))
	lamp.Transform.Position = mgl32.Vec3{0, 0, inset * 0.95}
	lamp.Transform.Scale = mgl32.Vec3{half * 0.5, half * 0.5, half * 0.05}
	s.AddObject(lamp)

	gizmo := NewSceneObject("sun gizmo", cube, Material{Albedo: mgl32.Vec4{1, 0.9, 0.3, 1}})
	gizmo.Transform.Position = mgl32.Vec3{half * 0.7, -half * 0.7, inset * 0.8}
	gizmo.Transform.Scale = mgl32.Vec3{0.2, 0.2, 0.2}
	s.AddObject(gizmo)

	s.Lights.Ambient = mgl32.Vec3{0.03, 0.03, 0.04}
	_ = s.Lights.AddDirectional(DirectionalLight{
		Direction: mgl32.Vec3{0.35, 0.5, -1},
		Color:     mgl32.Vec3{1, 0.95, 0.85},
		Intensity: 2.5,
	})
	_ = s.Lights.AddPoint(PointLight{
		Position:  mgl32.Vec3{0, -half * 0.3, inset * 0.7},
		Color:     mgl32.Vec3{1, 0.8, 0.6},
		Intensity: 6,
		Range:     half * 2,
	})
	return s
}

// DemoCamera looks into the demo box from its open side.
func DemoCamera(half float32) *CameraState {
	c := NewCameraState()
	c.Position = mgl32.Vec3{0, -half * 2.6, 0}
	c.LookAt(mgl32.Vec3{0, 0, -half * 0.1})
	return c
}
