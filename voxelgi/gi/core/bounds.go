package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ExtractFrustum returns the six planes of a view-projection matrix in the
// order Left, Right, Bottom, Top, Near, Far. Planes are Ax+By+Cz+D=0 with the
// normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	w := row(3)
	planes := [6]mgl32.Vec4{
		w.Add(row(0)), w.Sub(row(0)),
		w.Add(row(1)), w.Sub(row(1)),
		w.Add(row(2)), w.Sub(row(2)),
	}
	for i := range planes {
		if l := planes[i].Vec3().Len(); l > 0 {
			planes[i] = planes[i].Mul(1 / l)
		}
	}
	return planes
}

// AABBInFrustum reports whether any part of the box may be inside. For each
// plane the corner furthest along the normal is tested.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		var p mgl32.Vec3
		for k := 0; k < 3; k++ {
			if plane[k] > 0 {
				p[k] = aabb[1][k]
			} else {
				p[k] = aabb[0][k]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}

func AABBOverlaps(a, b [2]mgl32.Vec3) bool {
	for k := 0; k < 3; k++ {
		if a[1][k] < b[0][k] || b[1][k] < a[0][k] {
			return false
		}
	}
	return true
}

// TransformAABB returns the conservative world box of a transformed box.
func TransformAABB(aabb [2]mgl32.Vec3, m mgl32.Mat4) [2]mgl32.Vec3 {
	inf := float32(1e20)
	lo := mgl32.Vec3{inf, inf, inf}
	hi := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{aabb[i&1][0], aabb[(i>>1)&1][1], aabb[(i>>2)&1][2]}
		w := m.Mul4x1(c.Vec4(1)).Vec3()
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], w[k])
			hi[k] = max(hi[k], w[k])
		}
	}
	return [2]mgl32.Vec3{lo, hi}
}

// LightMatrices fits an orthographic light frustum around the box.
func LightMatrices(dir mgl32.Vec3, bounds [2]mgl32.Vec3) (view, proj mgl32.Mat4) {
	center := bounds[0].Add(bounds[1]).Mul(0.5)
	radius := bounds[1].Sub(bounds[0]).Len() * 0.5
	dir = dir.Normalize()
	up := mgl32.Vec3{0, 0, 1}
	if math32.Abs(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 1, 0}
	}
	eye := center.Sub(dir.Mul(2 * radius))
	view = mgl32.LookAtV(eye, center, up)
	proj = mgl32.Ortho(-radius, radius, -radius, radius, 0.01, 4*radius)
	return view, proj
}
