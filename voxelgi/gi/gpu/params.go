package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// Uniform block sizes, matching the WGSL structs.
const (
	FrameBlockSize  = 272
	GridBlockSize   = 192
	ObjectBlockSize = 160
	// MipBlockStride is the dynamic-offset stride of the per-level mip
	// uniform; it must be a multiple of minUniformBufferOffsetAlignment.
	MipBlockStride = 256

	gridLevelSlots = 12
)

// DepthFix maps OpenGL clip depth [-w, w] onto the WebGPU range [0, w].
var DepthFix = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// block appends std140-style fields.
type block struct {
	buf []byte
}

func newBlock(size int) *block {
	return &block{buf: make([]byte, 0, size)}
}

func (b *block) f32(v ...float32) {
	for _, f := range v {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(f))
	}
}

func (b *block) u32(v ...uint32) {
	for _, u := range v {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, u)
	}
}

func (b *block) mat4(m mgl32.Mat4) {
	b.f32(m[:]...)
}

func (b *block) vec3(v mgl32.Vec3, w float32) {
	b.f32(v[0], v[1], v[2], w)
}

func (b *block) bytes(size int) []byte {
	if len(b.buf) < size {
		b.buf = append(b.buf, make([]byte, size-len(b.buf))...)
	}
	return b.buf
}

// FrameParams is the per-frame uniform shared by every pass.
type FrameParams struct {
	ViewProj      mgl32.Mat4 // depth-corrected
	InvViewProj   mgl32.Mat4
	LightViewProj mgl32.Mat4 // uncorrected, shaders remap depth themselves
	CameraPos     mgl32.Vec3
	Sky           mgl32.Vec3
	Exposure      float32
	Cone          core.GISettings
	Width, Height uint32
	DebugLevel    uint32
	HasShadow     bool
	Ambient       mgl32.Vec3
}

func NewFrameParams(fr *core.FrameResources, lightViewProj mgl32.Mat4, hasShadow bool) FrameParams {
	p := FrameParams{
		ViewProj:      DepthFix.Mul4(fr.ViewProjection),
		InvViewProj:   fr.InvViewProjection,
		LightViewProj: lightViewProj,
		CameraPos:     fr.CameraPosition,
		Sky:           fr.Settings.SkyColor,
		Exposure:      fr.Settings.Exposure,
		Cone:          fr.Settings,
		Width:         uint32(fr.Width),
		Height:        uint32(fr.Height),
		HasShadow:     hasShadow,
	}
	if fr.Lights != nil {
		p.Ambient = fr.Lights.Ambient
	}
	return p
}

func (p FrameParams) Bytes() []byte {
	b := newBlock(FrameBlockSize)
	b.mat4(p.ViewProj)
	b.mat4(p.InvViewProj)
	b.mat4(p.LightViewProj)
	b.vec3(p.CameraPos, 1)
	b.vec3(p.Sky, p.Exposure)
	b.f32(p.Cone.AODistance, p.Cone.MaxConeDistance, p.Cone.AccumThreshold, p.Cone.StepFactor)
	shadow := uint32(0)
	if p.HasShadow {
		shadow = 1
	}
	b.u32(p.Width, p.Height, p.DebugLevel, shadow)
	b.vec3(p.Ambient, 0)
	return b.bytes(FrameBlockSize)
}

// LevelWordOffsets returns the first word of every level in the packed volume
// buffer plus the total word count.
func LevelWordOffsets(grid volume.Grid) []uint32 {
	out := make([]uint32, grid.Levels()+1)
	for l := 0; l < grid.Levels(); l++ {
		out[l+1] = out[l] + uint32(grid.LevelCells(l))
	}
	return out
}

// GridParams packs the grid uniform. Without first-instance support the
// shaders add the region base themselves.
func GridParams(grid volume.Grid, layout volume.Layout, firstInstance bool) ([]byte, error) {
	if grid.Levels() > gridLevelSlots || layout.NumMips() != grid.NumMips {
		return nil, fmt.Errorf("gpu: grid with %d levels does not fit layout with %d mips", grid.Levels(), layout.NumMips())
	}
	b := newBlock(GridBlockSize)
	b.mat4(grid.WorldToVoxel())
	b.vec3(grid.Center, grid.Size)
	fi := uint32(0)
	if firstInstance {
		fi = 1
	}
	b.u32(uint32(grid.Resolution), uint32(grid.NumMips), layout.Capacity(), fi)

	var words, regions [gridLevelSlots]uint32
	copy(words[:], LevelWordOffsets(grid))
	copy(regions[:], layout.Offsets())
	b.u32(words[:]...)
	b.u32(regions[:]...)
	return b.bytes(GridBlockSize), nil
}

// ObjectParams packs one draw item's transform and material.
func ObjectParams(item core.DrawItem) []byte {
	b := newBlock(ObjectBlockSize)
	b.mat4(item.ObjectToWorld)
	b.mat4(core.NormalMatrix(item.ObjectToWorld).Mat4())
	m := item.Material
	b.f32(m.Albedo[:]...)
	lit := float32(0)
	if m.Lit {
		lit = 1
	}
	b.vec3(m.Emissive, lit)
	return b.bytes(ObjectBlockSize)
}

// MipParams holds one MipLevel block per dispatched level at MipBlockStride.
func MipParams(numMips int) []byte {
	buf := make([]byte, max(numMips, 1)*MipBlockStride)
	for l := 0; l < numMips; l++ {
		binary.LittleEndian.PutUint32(buf[l*MipBlockStride:], uint32(l))
	}
	return buf
}

// readCounts decodes the counter buffer readback.
func readCounts(data []byte, levels int) []uint32 {
	out := make([]uint32, levels)
	for l := range out {
		if 4*l+4 > len(data) {
			break
		}
		out[l] = binary.LittleEndian.Uint32(data[4*l:])
	}
	return out
}
