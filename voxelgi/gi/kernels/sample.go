package kernels

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// premultiplied returns the word as (rgb*a, a).
func premultiplied(w uint32) mgl32.Vec4 {
	if volume.IsEmpty(w) {
		return mgl32.Vec4{}
	}
	c := volume.Unpack(w)
	return mgl32.Vec4{c[0] * c[3], c[1] * c[3], c[2] * c[3], c[3]}
}

// SampleLevel filters level trilinearly at normalized volume coordinates
// uvw in [0,1]^3. Texels outside the level read as empty.
func SampleLevel(vol *volume.Volume, level int, uvw mgl32.Vec3) mgl32.Vec4 {
	r := float32(vol.Grid().LevelResolution(level))
	fx := uvw[0]*r - 0.5
	fy := uvw[1]*r - 0.5
	fz := uvw[2]*r - 0.5
	x0, y0, z0 := math32.Floor(fx), math32.Floor(fy), math32.Floor(fz)
	tx, ty, tz := fx-x0, fy-y0, fz-z0
	ix, iy, iz := int(x0), int(y0), int(z0)

	var out mgl32.Vec4
	for i := 0; i < 8; i++ {
		dx, dy, dz := i&1, (i>>1)&1, (i>>2)&1
		w := pick(tx, dx) * pick(ty, dy) * pick(tz, dz)
		if w == 0 {
			continue
		}
		s := premultiplied(vol.LoadCell(level, ix+dx, iy+dy, iz+dz))
		out = out.Add(s.Mul(w))
	}
	return out
}

func pick(t float32, hi int) float32 {
	if hi == 1 {
		return t
	}
	return 1 - t
}

// SampleLod blends the two levels around a fractional lod.
func SampleLod(vol *volume.Volume, uvw mgl32.Vec3, lod float32) mgl32.Vec4 {
	maxLod := float32(vol.Grid().NumMips)
	lod = mgl32.Clamp(lod, 0, maxLod)
	l0 := int(math32.Floor(lod))
	if float32(l0) >= maxLod {
		return SampleLevel(vol, l0, uvw)
	}
	t := lod - float32(l0)
	a := SampleLevel(vol, l0, uvw)
	if t == 0 {
		return a
	}
	b := SampleLevel(vol, l0+1, uvw)
	return a.Mul(1 - t).Add(b.Mul(t))
}
