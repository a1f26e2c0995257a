package kernels

import (
	"math"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// DepthColorTarget is a render target resolved with a 64-bit atomic min:
// depth bits in the high word, packed color in the low word.
type DepthColorTarget struct {
	Width, Height int
	texels        []uint64
}

const clearTexel = uint64(math.MaxUint32) << 32

func NewDepthColorTarget(w, h int) *DepthColorTarget {
	t := &DepthColorTarget{Width: w, Height: h, texels: make([]uint64, w*h)}
	t.Clear()
	return t
}

func (t *DepthColorTarget) Clear() {
	for i := range t.texels {
		atomic.StoreUint64(&t.texels[i], clearTexel)
	}
}

// Write keeps the nearest fragment. depth must be in [0,1].
func (t *DepthColorTarget) Write(x, y int, depth float32, color uint32) {
	v := uint64(math.Float32bits(depth))<<32 | uint64(color)
	addr := &t.texels[y*t.Width+x]
	for {
		old := atomic.LoadUint64(addr)
		if old <= v {
			return
		}
		if atomic.CompareAndSwapUint64(addr, old, v) {
			return
		}
	}
}

// Resolve writes covered texels into dst, leaving the rest untouched.
func (t *DepthColorTarget) Resolve(dst *core.ColorImage) {
	for i, v := range t.texels {
		if v == clearTexel {
			continue
		}
		c := volume.Unpack(uint32(v))
		dst.Pix[i] = mgl32.Vec4{c[0], c[1], c[2], 1}
	}
}

var cubeMesh = core.NewCubeMesh()

// DebugVoxelDraw draws the occupied cells of one level as cubes. Instance i
// reads the sparse entry at firstInstance+i, like the instanced draw does.
type DebugVoxelDraw struct {
	Target   Target
	Level    int
	ViewProj mgl32.Mat4
	Out      *DepthColorTarget
	Command  volume.DrawCommand
	light    mgl32.Vec3
}

func NewDebugVoxelDraw(t Target, level int, viewProj mgl32.Mat4, out *DepthColorTarget) *DebugVoxelDraw {
	return &DebugVoxelDraw{
		Target:   t,
		Level:    level,
		ViewProj: viewProj,
		Out:      out,
		Command:  t.Commands.Draw(level),
		light:    mgl32.Vec3{0.3, -0.5, 0.8}.Normalize(),
	}
}

// Instance draws one cube.
func (d *DebugVoxelDraw) Instance(instance uint32) {
	if instance >= d.Command.InstanceCount {
		return
	}
	g := d.Target.Volume.Grid()
	res := g.LevelResolution(d.Level)
	flat := d.Target.List.EntryAt(d.Command.FirstInstance + instance)
	if flat >= uint32(res*res*res) {
		return
	}
	word := d.Target.Volume.Load(d.Level, flat)
	if volume.IsEmpty(word) {
		return
	}
	x, y, z := volume.Unflatten(flat, res)
	center := g.CellCenter(d.Level, x, y, z)
	size := g.VoxelSize(d.Level)
	base := volume.Unpack(word)

	model := mgl32.Translate3D(center.X(), center.Y(), center.Z()).Mul4(mgl32.Scale3D(size, size, size))
	mvp := d.ViewProj.Mul4(model)
	for tri := 0; tri < cubeMesh.TriangleCount(); tri++ {
		a, b, c := cubeMesh.Triangle(tri)
		var cv [3]ClipVertex
		for k, idx := range [3]uint32{a, b, c} {
			cv[k] = ClipVertex{
				Clip:   mvp.Mul4x1(cubeMesh.Positions[idx].Vec4(1)),
				Normal: cubeMesh.Normals[idx],
			}
		}
		shade := 0.4 + 0.6*math32.Max(0, cv[0].Normal.Dot(d.light))
		color := volume.Pack(mgl32.Vec4{base[0] * shade, base[1] * shade, base[2] * shade, 1})
		RasterizeClip(d.Out.Width, d.Out.Height, cv, func(f Fragment) {
			d.Out.Write(f.X, f.Y, f.Depth, color)
		})
	}
}
