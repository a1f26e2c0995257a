package kernels

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ClipVertex is a vertex after the vertex stage: clip position plus the
// attributes the fragment stage interpolates.
type ClipVertex struct {
	Clip   mgl32.Vec4
	World  mgl32.Vec3
	Normal mgl32.Vec3
}

func lerpVertex(a, b ClipVertex, t float32) ClipVertex {
	return ClipVertex{
		Clip:   a.Clip.Add(b.Clip.Sub(a.Clip).Mul(t)),
		World:  a.World.Add(b.World.Sub(a.World).Mul(t)),
		Normal: a.Normal.Add(b.Normal.Sub(a.Normal).Mul(t)),
	}
}

// Fragment is one covered pixel with perspective-correct attributes and
// depth in [0,1].
type Fragment struct {
	X, Y   int
	Depth  float32
	World  mgl32.Vec3
	Normal mgl32.Vec3
}

// clipNear clips a triangle against the near plane z >= -w and returns a
// convex polygon of up to four vertices.
func clipNear(tri [3]ClipVertex) []ClipVertex {
	dist := func(v ClipVertex) float32 { return v.Clip.Z() + v.Clip.W() }
	out := make([]ClipVertex, 0, 4)
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpVertex(a, b, da/(da-db)))
		}
	}
	return out
}

// RasterizeClip draws a clip-space triangle into a width x height target.
// Both windings are accepted; fragments outside [0,1] depth are discarded.
func RasterizeClip(width, height int, tri [3]ClipVertex, fn func(f Fragment)) {
	poly := clipNear(tri)
	if len(poly) < 3 {
		return
	}
	type screen struct {
		p    mgl32.Vec3 // pixels x, y and ndc depth
		invW float32
		v    ClipVertex
	}
	sv := make([]screen, len(poly))
	for i, v := range poly {
		w := v.Clip.W()
		if w <= 0 {
			return
		}
		inv := 1 / w
		ndc := v.Clip.Vec3().Mul(inv)
		sv[i] = screen{
			p: mgl32.Vec3{
				(ndc.X()*0.5 + 0.5) * float32(width),
				(0.5 - ndc.Y()*0.5) * float32(height),
				ndc.Z()*0.5 + 0.5,
			},
			invW: inv,
			v:    v,
		}
	}
	for i := 1; i+1 < len(sv); i++ {
		a, b, c := sv[0], sv[i], sv[i+1]
		pts := [3]mgl32.Vec2{a.p.Vec2(), b.p.Vec2(), c.p.Vec2()}
		RasterizeTriangle(width, height, pts, func(x, y int, bary mgl32.Vec3) {
			depth := bary[0]*a.p.Z() + bary[1]*b.p.Z() + bary[2]*c.p.Z()
			if depth < 0 || depth > 1 {
				return
			}
			// perspective-correct weights
			w0, w1, w2 := bary[0]*a.invW, bary[1]*b.invW, bary[2]*c.invW
			sum := w0 + w1 + w2
			if sum == 0 {
				return
			}
			w0, w1, w2 = w0/sum, w1/sum, w2/sum
			fn(Fragment{
				X:      x,
				Y:      y,
				Depth:  depth,
				World:  a.v.World.Mul(w0).Add(b.v.World.Mul(w1)).Add(c.v.World.Mul(w2)),
				Normal: a.v.Normal.Mul(w0).Add(b.v.Normal.Mul(w1)).Add(c.v.Normal.Mul(w2)),
			})
		})
	}
}

// RasterizeTriangle calls fn for every pixel of a width x height grid whose
// center lies inside the triangle, with the pixel's barycentric weights.
// Edges use a top-left fill rule so shared edges are drawn once.
func RasterizeTriangle(width, height int, p [3]mgl32.Vec2, fn func(x, y int, bary mgl32.Vec3)) {
	area := edge(p[0], p[1], p[2])
	if area == 0 {
		return
	}
	if area < 0 {
		p[1], p[2] = p[2], p[1]
		area = -area
		swapped := fn
		fn = func(x, y int, b mgl32.Vec3) { swapped(x, y, mgl32.Vec3{b[0], b[2], b[1]}) }
	}

	minX := max(0, int(math32.Floor(min(p[0].X(), p[1].X(), p[2].X()))))
	maxX := min(width-1, int(math32.Ceil(max(p[0].X(), p[1].X(), p[2].X()))))
	minY := max(0, int(math32.Floor(min(p[0].Y(), p[1].Y(), p[2].Y()))))
	maxY := min(height-1, int(math32.Ceil(max(p[0].Y(), p[1].Y(), p[2].Y()))))

	// pixels exactly on a non top-left edge belong to the neighbour
	var strict [3]bool
	for i := 0; i < 3; i++ {
		strict[i] = !topLeft(p[(i+1)%3], p[(i+2)%3])
	}
	inside := func(w float32, strict bool) bool {
		return w > 0 || (w == 0 && !strict)
	}

	inv := 1 / area
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			c := mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5}
			w0 := edge(p[1], p[2], c)
			w1 := edge(p[2], p[0], c)
			w2 := edge(p[0], p[1], c)
			if !inside(w0, strict[0]) || !inside(w1, strict[1]) || !inside(w2, strict[2]) {
				continue
			}
			fn(x, y, mgl32.Vec3{w0 * inv, w1 * inv, w2 * inv})
		}
	}
}

func edge(a, b, c mgl32.Vec2) float32 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

// topLeft reports whether edge a->b of a positively wound triangle (y down)
// is a top or left edge.
func topLeft(a, b mgl32.Vec2) bool {
	d := b.Sub(a)
	return (d.Y() == 0 && d.X() < 0) || d.Y() > 0
}
