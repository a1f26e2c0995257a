package cpu

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/kernels"
)

// GBufferRenderer rasterizes the scene into host-side attachments. It draws
// on the submission thread: fragments of different triangles race for the
// same pixel, and a single writer keeps the depth test exact.
type GBufferRenderer struct {
	images *core.GBufferImages
	culled int
}

func NewGBufferRenderer() *GBufferRenderer {
	return &GBufferRenderer{}
}

func (g *GBufferRenderer) Resize(width, height int) error {
	g.images = core.NewGBufferImages(width, height)
	return nil
}

func (g *GBufferRenderer) Images() *core.GBufferImages { return g.images }

// Culled is the number of objects rejected by the frustum test last frame.
func (g *GBufferRenderer) Culled() int { return g.culled }

func (g *GBufferRenderer) Render(fr *core.FrameResources) (core.GBuffer, error) {
	if g.images == nil || g.images.Albedo.Width != fr.Width || g.images.Albedo.Height != fr.Height {
		if err := g.Resize(fr.Width, fr.Height); err != nil {
			return nil, err
		}
	}
	img := g.images
	img.Clear()
	w, h := img.Size()
	planes := core.ExtractFrustum(fr.ViewProjection)
	g.culled = 0

	fr.Scene.Each(func(item core.DrawItem) bool {
		mesh := item.Mesh
		if !core.AABBInFrustum(core.TransformAABB(mesh.Bounds(), item.ObjectToWorld), planes) {
			g.culled++
			return true
		}
		mvp := fr.ViewProjection.Mul4(item.ObjectToWorld)
		nm := core.NormalMatrix(item.ObjectToWorld)
		mat := item.Material
		lit := float32(0)
		if mat.Lit {
			lit = 1
		}
		for t := 0; t < mesh.TriangleCount(); t++ {
			a, b, c := mesh.Triangle(t)
			var tri [3]kernels.ClipVertex
			for k, idx := range [3]uint32{a, b, c} {
				p := mesh.Positions[idx].Vec4(1)
				var n mgl32.Vec3
				if int(idx) < len(mesh.Normals) {
					n = nm.Mul3x1(mesh.Normals[idx])
				}
				tri[k] = kernels.ClipVertex{
					Clip:   mvp.Mul4x1(p),
					World:  item.ObjectToWorld.Mul4x1(p).Vec3(),
					Normal: n,
				}
			}
			kernels.RasterizeClip(w, h, tri, func(f kernels.Fragment) {
				i := f.Y*w + f.X
				if f.Depth >= img.Depth[i] {
					return
				}
				img.Depth[i] = f.Depth
				n := f.Normal
				if n.Len() > 0 {
					n = n.Normalize()
				}
				img.Albedo.Pix[i] = mat.Albedo
				img.Normal.Pix[i] = n.Vec4(lit)
				img.Position.Pix[i] = f.World.Vec4(1)
				img.Emissive.Pix[i] = mat.Emissive.Vec4(1)
			})
		}
		return true
	})
	return img, nil
}
