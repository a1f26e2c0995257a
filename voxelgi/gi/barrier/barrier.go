// Package barrier declares which pass must be separated from which by what
// kind of memory barrier, and tracks the barriers actually issued in a frame.
package barrier

import "strings"

// Scope is the set of memory accesses a barrier makes visible.
type Scope uint8

const (
	// ImageAccess covers image load/store and image atomics.
	ImageAccess Scope = 1 << iota
	// StorageAccess covers storage buffer reads, writes and atomics.
	StorageAccess
	// Command makes buffer writes visible to indirect draw/dispatch reads.
	Command
	// TextureFetch makes image writes visible to sampled reads.
	TextureFetch

	None Scope = 0
	All        = ImageAccess | StorageAccess | Command | TextureFetch
)

func (s Scope) Contains(other Scope) bool {
	return s&other == other
}

func (s Scope) String() string {
	if s == None {
		return "none"
	}
	var parts []string
	if s&ImageAccess != 0 {
		parts = append(parts, "image")
	}
	if s&StorageAccess != 0 {
		parts = append(parts, "storage")
	}
	if s&Command != 0 {
		parts = append(parts, "command")
	}
	if s&TextureFetch != 0 {
		parts = append(parts, "texture-fetch")
	}
	return strings.Join(parts, "|")
}

// Stage identifies a pass of the frame. Stages that run several times per
// frame (one voxelization draw per object, one dispatch per mip level) carry
// an index in Pass.
type Stage string

const (
	StageClear        Stage = "clear"
	StageShadow       Stage = "shadow"
	StageGBuffer      Stage = "gbuffer"
	StageVoxelizeDraw Stage = "voxelize-draw"
	StageMipLevel     Stage = "mip-level"
	StageDebugVoxels  Stage = "debug-voxels"
	StageConeTrace    Stage = "cone-trace"
	StageUnlitSky     Stage = "unlit-sky"
	StageTonemap      Stage = "tonemap"
	StageAntialias    Stage = "antialias"
)

type Pass struct {
	Stage Stage
	Index int
}

// Dependency is one (producer, consumer, scope) triple: when Consumer begins,
// a barrier covering Scope must have been issued since Producer last ran.
type Dependency struct {
	Producer Stage
	Consumer Stage
	Scope    Scope
}

// Dependencies lists every hazard between passes of a frame. When producer and
// consumer are the same stage the triple chains consecutive runs: draw i+1
// after draw i, mip level L+1 after level L.
var Dependencies = []Dependency{
	// Clearing the volume and resetting counters must land before anything appends.
	{StageClear, StageVoxelizeDraw, ImageAccess | StorageAccess},
	// Voxelization shades with the shadow map.
	{StageShadow, StageVoxelizeDraw, TextureFetch},
	// Later draws may blend against texels written by earlier ones.
	{StageVoxelizeDraw, StageVoxelizeDraw, ImageAccess},
	// Level 0 texels, region 0 entries and dispatch slot 0 feed mip level 0.
	{StageVoxelizeDraw, StageMipLevel, ImageAccess | StorageAccess | Command},
	// Level L+1 indirect-reads the count written by level L.
	{StageMipLevel, StageMipLevel, ImageAccess | StorageAccess | Command},
	// Cone tracing samples the finished pyramid.
	{StageMipLevel, StageConeTrace, TextureFetch},
	{StageGBuffer, StageConeTrace, TextureFetch},
	{StageShadow, StageConeTrace, TextureFetch},
	// The debug view indirect-draws the sparse regions.
	{StageMipLevel, StageDebugVoxels, TextureFetch | StorageAccess | Command},
	{StageConeTrace, StageUnlitSky, ImageAccess | TextureFetch},
	{StageUnlitSky, StageTonemap, TextureFetch},
	{StageTonemap, StageAntialias, TextureFetch},
}

// Required returns the union of scopes consumer needs after producer.
func Required(producer, consumer Stage) Scope {
	var s Scope
	for _, d := range Dependencies {
		if d.Producer == producer && d.Consumer == consumer {
			s |= d.Scope
		}
	}
	return s
}
