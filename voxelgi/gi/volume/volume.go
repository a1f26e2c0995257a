package volume

import (
	"fmt"
	"sync/atomic"
)

// maxVolumeWords caps a single allocation at a 512^3 level 0 plus its pyramid.
const maxVolumeWords = 512*512*512 + 512*512*512/7 + 1

// Volume is the device-resident voxel pyramid. Level 0 is written by the
// voxelization pass, levels 1..NumMips by the mip builder; every word is
// touched through atomics while a pass is in flight.
type Volume struct {
	grid   Grid
	levels [][]uint32
}

// Allocate establishes the pyramid for grid. It is a one-time operation; a
// new resolution needs a new Volume together with a new Layout.
func Allocate(grid Grid) (*Volume, error) {
	if grid.Resolution < 2 || grid.Levels() > MaxLevels {
		return nil, fmt.Errorf("%w (resolution %d)", ErrResolution, grid.Resolution)
	}
	total := 0
	for l := 0; l < grid.Levels(); l++ {
		total += grid.LevelCells(l)
	}
	if total > maxVolumeWords {
		return nil, fmt.Errorf("%w: %d words", ErrAllocation, total)
	}
	vol := &Volume{grid: grid, levels: make([][]uint32, grid.Levels())}
	for l := range vol.levels {
		vol.levels[l] = make([]uint32, grid.LevelCells(l))
	}
	return vol, nil
}

func (v *Volume) Grid() Grid {
	return v.grid
}

// Clear empties every level. Must not overlap a pass in flight.
func (v *Volume) Clear() {
	for _, lvl := range v.levels {
		clear(lvl)
	}
}

// TotalWords is the word count of all levels together.
func (v *Volume) TotalWords() int {
	n := 0
	for _, lvl := range v.levels {
		n += len(lvl)
	}
	return n
}

// ClearSpan zeroes words [from, to) of the levels laid end to end, finest
// first. It is the body of the device clear kernel.
func (v *Volume) ClearSpan(from, to int) {
	for _, lvl := range v.levels {
		if from >= to {
			return
		}
		if from < len(lvl) {
			end := min(to, len(lvl))
			for i := from; i < end; i++ {
				atomic.StoreUint32(&lvl[i], 0)
			}
		}
		from = max(from-len(lvl), 0)
		to -= len(lvl)
	}
}

// Level exposes the raw words of a level.
func (v *Volume) Level(level int) []uint32 {
	return v.levels[level]
}

func (v *Volume) Load(level int, idx uint32) uint32 {
	return atomic.LoadUint32(&v.levels[level][idx])
}

// LoadCell returns zero for coordinates outside the level.
func (v *Volume) LoadCell(level, x, y, z int) uint32 {
	r := v.grid.LevelResolution(level)
	if x < 0 || y < 0 || z < 0 || x >= r || y >= r || z >= r {
		return 0
	}
	return v.Load(level, Flatten(x, y, z, r))
}

// MergeMax is an atomic unsigned max; it returns the previous word.
func (v *Volume) MergeMax(level int, idx uint32, value uint32) uint32 {
	addr := &v.levels[level][idx]
	for {
		old := atomic.LoadUint32(addr)
		if old >= value {
			return old
		}
		if atomic.CompareAndSwapUint32(addr, old, value) {
			return old
		}
	}
}

func (v *Volume) CompareAndSwap(level int, idx uint32, old, value uint32) bool {
	return atomic.CompareAndSwapUint32(&v.levels[level][idx], old, value)
}

// Occupied counts non-empty cells of a level. Diagnostics only.
func (v *Volume) Occupied(level int) int {
	n := 0
	for _, w := range v.levels[level] {
		if !IsEmpty(w) {
			n++
		}
	}
	return n
}

func (v *Volume) Snapshot(level int) []uint32 {
	out := make([]uint32, len(v.levels[level]))
	copy(out, v.levels[level])
	return out
}
