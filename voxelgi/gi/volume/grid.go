package volume

import (
	"fmt"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MaxResolution = 512
	// MaxLevels is the number of pyramid levels of a MaxResolution grid.
	MaxLevels = 10
)

// Grid describes the voxelized region of world space and its mip pyramid.
// Level 0 has Resolution^3 cells, level NumMips has one.
type Grid struct {
	Resolution int
	NumMips    int
	Center     mgl32.Vec3
	Size       float32 // world-space edge length of the cube
}

func NewGrid(resolution int, center mgl32.Vec3, size float32) (Grid, error) {
	if resolution < 2 || resolution > MaxResolution || bits.OnesCount(uint(resolution)) != 1 {
		return Grid{}, fmt.Errorf("%w (got %d)", ErrResolution, resolution)
	}
	if size <= 0 {
		return Grid{}, ErrWorldSize
	}
	return Grid{
		Resolution: resolution,
		NumMips:    bits.TrailingZeros(uint(resolution)),
		Center:     center,
		Size:       size,
	}, nil
}

// Levels is NumMips+1.
func (g Grid) Levels() int {
	return g.NumMips + 1
}

func (g Grid) LevelResolution(level int) int {
	return g.Resolution >> level
}

func (g Grid) LevelCells(level int) int {
	r := g.LevelResolution(level)
	return r * r * r
}

func (g Grid) VoxelSize(level int) float32 {
	return g.Size / float32(g.LevelResolution(level))
}

func (g Grid) Min() mgl32.Vec3 {
	h := g.Size * 0.5
	return g.Center.Sub(mgl32.Vec3{h, h, h})
}

func (g Grid) Max() mgl32.Vec3 {
	h := g.Size * 0.5
	return g.Center.Add(mgl32.Vec3{h, h, h})
}

// WorldToVoxel maps world space onto [0,Resolution)^3 of level 0.
func (g Grid) WorldToVoxel() mgl32.Mat4 {
	s := float32(g.Resolution) / g.Size
	m := g.Min()
	return mgl32.Scale3D(s, s, s).Mul4(mgl32.Translate3D(-m.X(), -m.Y(), -m.Z()))
}

func (g Grid) VoxelToWorld() mgl32.Mat4 {
	s := g.Size / float32(g.Resolution)
	m := g.Min()
	return mgl32.Translate3D(m.X(), m.Y(), m.Z()).Mul4(mgl32.Scale3D(s, s, s))
}

// CellCenter returns the world-space center of a cell at the given level.
func (g Grid) CellCenter(level int, x, y, z int) mgl32.Vec3 {
	vs := g.VoxelSize(level)
	return g.Min().Add(mgl32.Vec3{
		(float32(x) + 0.5) * vs,
		(float32(y) + 0.5) * vs,
		(float32(z) + 0.5) * vs,
	})
}

func Flatten(x, y, z, res int) uint32 {
	return uint32(x + y*res + z*res*res)
}

func Unflatten(idx uint32, res int) (x, y, z int) {
	i := int(idx)
	x = i % res
	y = (i / res) % res
	z = i / (res * res)
	return
}
