package kernels

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

const (
	// ConeAperture is tan of the half angle of a 60 degree cone.
	ConeAperture = 0.577350269
	// ConeTilt is the angle between the side cones and the normal.
	ConeTilt = math32.Pi / 3
)

// coneWeights are the solid-angle weights of the six diffuse cones; they sum
// to pi.
var coneWeights = [6]float32{
	math32.Pi / 4,
	3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20,
}

// ConeDirections returns the normal cone followed by five cones tilted by
// ConeTilt and spread evenly around it.
func ConeDirections(n mgl32.Vec3) [6]mgl32.Vec3 {
	t, b := tangentFrame(n)
	var dirs [6]mgl32.Vec3
	dirs[0] = n
	sinT, cosT := math32.Sin(ConeTilt), math32.Cos(ConeTilt)
	for i := 0; i < 5; i++ {
		phi := 2 * math32.Pi * float32(i) / 5
		sp, cp := math32.Sin(phi), math32.Cos(phi)
		d := n.Mul(cosT).Add(t.Mul(sinT * cp)).Add(b.Mul(sinT * sp))
		dirs[i+1] = d.Normalize()
	}
	return dirs
}

func tangentFrame(n mgl32.Vec3) (t, b mgl32.Vec3) {
	up := mgl32.Vec3{0, 0, 1}
	if math32.Abs(n.Z()) > 0.999 {
		up = mgl32.Vec3{1, 0, 0}
	}
	t = up.Cross(n).Normalize()
	b = n.Cross(t)
	return t, b
}

// ConeParams bounds one cone march.
type ConeParams struct {
	MaxDistance    float32
	AccumThreshold float32
	StepFactor     float32
}

// TraceCone marches a cone of the given aperture through the pyramid and
// composites front to back. It returns premultiplied radiance and opacity.
func TraceCone(vol *volume.Volume, origin, dir mgl32.Vec3, aperture float32, p ConeParams) mgl32.Vec4 {
	g := vol.Grid()
	vs := g.VoxelSize(0)
	lo := g.Min()
	inv := 1 / g.Size

	var acc mgl32.Vec4
	dist := vs
	for dist < p.MaxDistance && acc[3] < p.AccumThreshold {
		diameter := math32.Max(vs, 2*aperture*dist)
		lod := math32.Log2(diameter / vs)
		pos := origin.Add(dir.Mul(dist))
		uvw := pos.Sub(lo).Mul(inv)
		if uvw[0] < 0 || uvw[1] < 0 || uvw[2] < 0 || uvw[0] > 1 || uvw[1] > 1 || uvw[2] > 1 {
			break
		}
		s := SampleLod(vol, uvw, lod)
		k := 1 - acc[3]
		acc = acc.Add(s.Mul(k))
		dist += diameter * p.StepFactor
	}
	return acc
}

// ConeTraceSettings are the per-frame inputs of the integrator.
type ConeTraceSettings struct {
	AODistance      float32
	MaxConeDistance float32
	AccumThreshold  float32
	StepFactor      float32
}

func SettingsFrom(s core.GISettings) ConeTraceSettings {
	return ConeTraceSettings{
		AODistance:      s.AODistance,
		MaxConeDistance: s.MaxConeDistance,
		AccumThreshold:  s.AccumThreshold,
		StepFactor:      s.StepFactor,
	}
}

// IndirectAt integrates diffuse indirect light and ambient visibility at a
// surface point. RGB is irradiance times albedo, A is visibility in [0,1].
func IndirectAt(vol *volume.Volume, pos, n mgl32.Vec3, albedo mgl32.Vec3, s ConeTraceSettings) mgl32.Vec4 {
	vs := vol.Grid().VoxelSize(0)
	origin := pos.Add(n.Mul(vs))

	diffuse := ConeParams{MaxDistance: s.MaxConeDistance, AccumThreshold: s.AccumThreshold, StepFactor: s.StepFactor}
	occl := ConeParams{MaxDistance: s.AODistance, AccumThreshold: s.AccumThreshold, StepFactor: s.StepFactor}

	var irr mgl32.Vec3
	var occ float32
	for i, d := range ConeDirections(n) {
		w := coneWeights[i]
		c := TraceCone(vol, origin, d, ConeAperture, diffuse)
		irr = irr.Add(c.Vec3().Mul(w))
		a := TraceCone(vol, origin, d, ConeAperture, occl)
		occ += a[3] * w
	}
	irr = irr.Mul(1 / math32.Pi)
	vis := mgl32.Clamp(1-occ/math32.Pi, 0, 1)
	return mgl32.Vec4{irr[0] * albedo[0], irr[1] * albedo[1], irr[2] * albedo[2], vis}
}

// ConeTracePixel is the integrator invocation for pixel id of a width-wide
// g-buffer. Background pixels are written as zero radiance, full visibility.
func ConeTracePixel(vol *volume.Volume, gb *core.GBufferImages, out *core.ColorImage, s ConeTraceSettings, id uint32) {
	w, h := gb.Size()
	if int(id) >= w*h {
		return
	}
	x, y := int(id)%w, int(id)/w
	p := gb.Position.At(x, y)
	if p[3] == 0 {
		out.Set(x, y, mgl32.Vec4{0, 0, 0, 1})
		return
	}
	n := gb.Normal.At(x, y).Vec3()
	if n.Len() == 0 {
		out.Set(x, y, mgl32.Vec4{0, 0, 0, 1})
		return
	}
	albedo := gb.Albedo.At(x, y).Vec3()
	out.Set(x, y, IndirectAt(vol, p.Vec3(), n.Normalize(), albedo, s))
}
