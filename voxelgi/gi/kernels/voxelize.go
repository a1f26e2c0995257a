package kernels

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// Target bundles the device structures the GI kernels write.
type Target struct {
	Volume   *volume.Volume
	List     *volume.SparseList
	Commands *volume.CommandSet
}

// VoxelizeDraw is the per-object state of one voxelization draw.
type VoxelizeDraw struct {
	Target   Target
	Item     core.DrawItem
	Lights   *core.LightData
	Shadow   *core.ShadowOutput
	toVoxel  mgl32.Mat4
	normal   mgl32.Mat3
	emissive mgl32.Vec3
}

func NewVoxelizeDraw(t Target, item core.DrawItem, lights *core.LightData, shadow *core.ShadowOutput) *VoxelizeDraw {
	return &VoxelizeDraw{
		Target:   t,
		Item:     item,
		Lights:   lights,
		Shadow:   shadow,
		toVoxel:  t.Volume.Grid().WorldToVoxel(),
		normal:   core.NormalMatrix(item.ObjectToWorld),
		emissive: item.Material.Emissive,
	}
}

// Triangles is the invocation count of the draw.
func (d *VoxelizeDraw) Triangles() int {
	return d.Item.IndexCount / 3
}

// Triangle runs the vertex and fragment work of one triangle: the triangle
// is projected along its dominant axis onto an R x R plane and every covered
// cell is shaded and merged into level 0.
func (d *VoxelizeDraw) Triangle(tri uint32) {
	m := d.Item.Mesh
	i0, i1, i2 := m.Triangle(int(tri))
	var world, vox, nrm [3]mgl32.Vec3
	for k, idx := range [3]uint32{i0, i1, i2} {
		world[k] = d.Item.ObjectToWorld.Mul4x1(m.Positions[idx].Vec4(1)).Vec3()
		vox[k] = d.toVoxel.Mul4x1(world[k].Vec4(1)).Vec3()
		if int(idx) < len(m.Normals) {
			nrm[k] = d.normal.Mul3x1(m.Normals[idx]).Normalize()
		}
	}

	face := vox[1].Sub(vox[0]).Cross(vox[2].Sub(vox[0]))
	axis := DominantAxis(face)
	u, v := (axis+1)%3, (axis+2)%3

	res := d.Target.Volume.Grid().Resolution
	pts := [3]mgl32.Vec2{
		{vox[0][u], vox[0][v]},
		{vox[1][u], vox[1][v]},
		{vox[2][u], vox[2][v]},
	}
	RasterizeTriangle(res, res, pts, func(x, y int, b mgl32.Vec3) {
		depth := b[0]*vox[0][axis] + b[1]*vox[1][axis] + b[2]*vox[2][axis]
		if depth < 0 || depth >= float32(res) {
			return
		}
		var cell [3]int
		cell[u], cell[v], cell[axis] = x, y, int(math32.Floor(depth))

		pos := world[0].Mul(b[0]).Add(world[1].Mul(b[1])).Add(world[2].Mul(b[2]))
		n := nrm[0].Mul(b[0]).Add(nrm[1].Mul(b[1])).Add(nrm[2].Mul(b[2]))
		if n.Len() > 0 {
			n = n.Normalize()
		}
		d.emit(volume.Flatten(cell[0], cell[1], cell[2], res), d.shade(pos, n))
	})
}

func (d *VoxelizeDraw) shade(pos, n mgl32.Vec3) uint32 {
	mat := d.Item.Material
	vis := float32(1)
	if d.Shadow != nil {
		vis = d.Shadow.Visibility(pos)
	}
	light := mgl32.Vec3{1, 1, 1}
	if d.Lights != nil {
		light = d.Lights.Direct(pos, n, vis)
	}
	rgb := mgl32.Vec3{
		mat.Albedo[0]*light[0] + d.emissive[0],
		mat.Albedo[1]*light[1] + d.emissive[1],
		mat.Albedo[2]*light[2] + d.emissive[2],
	}
	word := volume.Pack(rgb.Vec4(mat.Albedo[3]))
	if volume.IsEmpty(word) && mat.Albedo[3] > 0 {
		word |= 1 << 24
	}
	return word
}

// emit merges a shaded word into level 0. The invocation that takes the cell
// out of the empty state owns the append and both command updates.
func (d *VoxelizeDraw) emit(flat, word uint32) {
	if volume.IsEmpty(word) {
		return
	}
	t := d.Target
	if old := t.Volume.MergeMax(0, flat, word); old == 0 {
		prev := t.List.Append(0, flat)
		t.Commands.RecordDrawEntry(0)
		t.Commands.RecordDispatchEntry(0, prev)
	}
}

// DominantAxis returns the axis (0=x, 1=y, 2=z) along which n is largest.
func DominantAxis(n mgl32.Vec3) int {
	ax, ay, az := math32.Abs(n[0]), math32.Abs(n[1]), math32.Abs(n[2])
	switch {
	case ax >= ay && ax >= az:
		return 0
	case ay >= az:
		return 1
	default:
		return 2
	}
}
