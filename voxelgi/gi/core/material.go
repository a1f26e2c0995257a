package core

import "github.com/go-gl/mathgl/mgl32"

type Material struct {
	Albedo   mgl32.Vec4 // linear RGB, A = opacity
	Emissive mgl32.Vec3
	// Lit objects receive and occlude light and are voxelized. Unlit ones
	// (light gizmos, sky geometry) are drawn by the unlit pass only.
	Lit bool
}

func NewMaterial(albedo mgl32.Vec3) Material {
	return Material{
		Albedo: albedo.Vec4(1),
		Lit:    true,
	}
}

func DefaultMaterial() Material {
	return NewMaterial(mgl32.Vec3{0.8, 0.8, 0.8})
}

func EmissiveMaterial(color mgl32.Vec3) Material {
	return Material{
		Albedo:   mgl32.Vec4{0, 0, 0, 1},
		Emissive: color,
		Lit:      true,
	}
}
