package cpu

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/kernels"
)

// ShadowRenderer renders a variance shadow map for the first directional
// light, fitted around a fixed world box (normally the voxel volume).
type ShadowRenderer struct {
	exec   *kernels.Executor
	size   int
	bounds [2]mgl32.Vec3
	depth  []uint32
	moment *core.MomentMap
}

func NewShadowRenderer(exec *kernels.Executor, size int, bounds [2]mgl32.Vec3) *ShadowRenderer {
	return &ShadowRenderer{
		exec:   exec,
		size:   size,
		bounds: bounds,
		depth:  make([]uint32, size*size),
		moment: core.NewMomentMap(size, size),
	}
}

func (s *ShadowRenderer) Render(fr *core.FrameResources) (core.ShadowOutput, error) {
	if fr.Lights == nil || fr.Lights.NumDirectional == 0 {
		return core.ShadowOutput{}, nil
	}
	view, proj := core.LightMatrices(fr.Lights.Directional[0].Direction, s.bounds)
	vp := proj.Mul4(view)

	far := math.Float32bits(1)
	for i := range s.depth {
		s.depth[i] = far
	}
	fr.Scene.Each(func(item core.DrawItem) bool {
		if !item.Material.Lit {
			return true
		}
		mvp := vp.Mul4(item.ObjectToWorld)
		mesh := item.Mesh
		s.exec.DispatchItems(item.IndexCount/3, func(id uint32) {
			a, b, c := mesh.Triangle(int(id))
			tri := [3]kernels.ClipVertex{
				{Clip: mvp.Mul4x1(mesh.Positions[a].Vec4(1))},
				{Clip: mvp.Mul4x1(mesh.Positions[b].Vec4(1))},
				{Clip: mvp.Mul4x1(mesh.Positions[c].Vec4(1))},
			}
			kernels.RasterizeClip(s.size, s.size, tri, func(f kernels.Fragment) {
				atomicMinFloat(&s.depth[f.Y*s.size+f.X], f.Depth)
			})
		})
		return true
	})
	if err := s.exec.Wait(); err != nil {
		return core.ShadowOutput{}, err
	}

	// 3x3 box filter of depth and depth squared
	n := s.size
	s.exec.DispatchItems(n*n, func(id uint32) {
		x, y := int(id)%n, int(id)/n
		var m mgl32.Vec2
		cnt := float32(0)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				sx, sy := x+dx, y+dy
				if sx < 0 || sy < 0 || sx >= n || sy >= n {
					continue
				}
				d := math.Float32frombits(atomic.LoadUint32(&s.depth[sy*n+sx]))
				m = m.Add(mgl32.Vec2{d, d * d})
				cnt++
			}
		}
		s.moment.Moments[id] = m.Mul(1 / cnt)
	})
	if err := s.exec.Wait(); err != nil {
		return core.ShadowOutput{}, err
	}
	return core.ShadowOutput{
		Map:                 s.moment,
		LightView:           view,
		LightProjection:     proj,
		LightViewProjection: vp,
	}, nil
}

// atomicMinFloat keeps the smaller of two non-negative depths.
func atomicMinFloat(addr *uint32, v float32) {
	bits := math.Float32bits(v)
	for {
		old := atomic.LoadUint32(addr)
		if old <= bits {
			return
		}
		if atomic.CompareAndSwapUint32(addr, old, bits) {
			return
		}
	}
}
