package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is an indexed triangle list in object space.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

func (m *Mesh) VertexCount() int { return len(m.Positions) }
func (m *Mesh) IndexCount() int  { return len(m.Indices) }

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

func (m *Mesh) Triangle(i int) (a, b, c uint32) {
	return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
}

// Bounds returns the object-space AABB; zero for an empty mesh.
func (m *Mesh) Bounds() [2]mgl32.Vec3 {
	if len(m.Positions) == 0 {
		return [2]mgl32.Vec3{}
	}
	lo, hi := m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return [2]mgl32.Vec3{lo, hi}
}

// VertexBytes interleaves position and normal as two vec4 per vertex, the
// layout the vertex-pulling shaders read from storage.
func (m *Mesh) VertexBytes() []byte {
	buf := make([]byte, 0, len(m.Positions)*32)
	for i, p := range m.Positions {
		n := mgl32.Vec3{0, 0, 1}
		if i < len(m.Normals) {
			n = m.Normals[i]
		}
		for _, f := range [8]float32{p[0], p[1], p[2], 1, n[0], n[1], n[2], 0} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func (m *Mesh) IndexBytes() []byte {
	buf := make([]byte, 0, len(m.Indices)*4)
	for _, idx := range m.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return buf
}

// NewCubeMesh builds a unit cube centered at the origin with flat normals,
// 24 vertices and 36 indices.
func NewCubeMesh() *Mesh {
	faces := [6]struct {
		n, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
	}
	m := &Mesh{}
	for _, f := range faces {
		base := uint32(len(m.Positions))
		c := f.n.Mul(0.5)
		for _, s := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := c.Add(f.u.Mul(0.5 * s[0])).Add(f.v.Mul(0.5 * s[1]))
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, f.n)
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// NewPlaneMesh builds a unit quad in the XY plane facing +Z, split into
// divisions×divisions cells.
func NewPlaneMesh(divisions int) *Mesh {
	if divisions < 1 {
		divisions = 1
	}
	m := &Mesh{}
	step := 1 / float32(divisions)
	for j := 0; j <= divisions; j++ {
		for i := 0; i <= divisions; i++ {
			m.Positions = append(m.Positions, mgl32.Vec3{-0.5 + float32(i)*step, -0.5 + float32(j)*step, 0})
			m.Normals = append(m.Normals, mgl32.Vec3{0, 0, 1})
		}
	}
	row := uint32(divisions + 1)
	for j := uint32(0); j < uint32(divisions); j++ {
		for i := uint32(0); i < uint32(divisions); i++ {
			a := j*row + i
			m.Indices = append(m.Indices, a, a+1, a+row+1, a, a+row+1, a+row)
		}
	}
	return m
}
