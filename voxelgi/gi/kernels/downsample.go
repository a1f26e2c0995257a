package kernels

import (
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// Downsample is the mip-build kernel for one source level. Invocation id
// reads entry id of the level's region, folds the 8 siblings of that cell into
// the parent at level+1 and, if it installs the parent, appends it to the next
// region and records the next level's commands. Several entries share a
// parent and duplicates may appear; only the compare-and-swap winner appends.
func Downsample(t Target, level int, id uint32) {
	if id >= t.List.Count(level) {
		return
	}
	g := t.Volume.Grid()
	res := g.LevelResolution(level)
	flat := t.List.Entry(level, id)
	if flat >= uint32(res*res*res) {
		// slot overwritten by a neighbouring region's overflow
		return
	}
	x, y, z := volume.Unflatten(flat, res)
	px, py, pz := x>>1, y>>1, z>>1

	var children [8]uint32
	for i := 0; i < 8; i++ {
		cx := px<<1 | i&1
		cy := py<<1 | (i>>1)&1
		cz := pz<<1 | (i>>2)&1
		children[i] = t.Volume.Load(level, volume.Flatten(cx, cy, cz, res))
	}
	word := volume.Downsample(children)
	if volume.IsEmpty(word) {
		return
	}

	parent := volume.Flatten(px, py, pz, res>>1)
	if t.Volume.CompareAndSwap(level+1, parent, 0, word) {
		prev := t.List.Append(level+1, parent)
		t.Commands.RecordDrawEntry(level + 1)
		t.Commands.RecordDispatchEntry(level+1, prev)
	}
}
