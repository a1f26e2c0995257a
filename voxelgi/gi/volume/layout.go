package volume

import "fmt"

// ShrinkFactor is the assumed ratio of active cells between a level and the
// next coarser one.
const ShrinkFactor = 8

// Layout partitions the sparse list into one region per level. It also
// provides the first-instance field of the indirect draw commands, so the two
// structures must be rebuilt together whenever the resolution changes.
//
// The coarsest level is anchored at Capacity-1 and each step toward finer
// levels reserves ShrinkFactor^i more slots, where i is the distance from the
// coarsest level. Level 0 starts at zero and owns whatever is left.
type Layout struct {
	capacity   uint32
	numMips    int
	baseOffset []uint32 // numMips+2 boundaries, the last one is capacity
}

func NewLayout(numMips int, capacity uint32) (Layout, error) {
	if numMips < 1 || numMips+1 > MaxLevels {
		return Layout{}, fmt.Errorf("%w (numMips %d)", ErrResolution, numMips)
	}

	reserved := uint64(1)
	step := uint64(1)
	for i := 1; i < numMips; i++ {
		step *= ShrinkFactor
		reserved += step
	}
	if uint64(capacity) <= reserved {
		return Layout{}, fmt.Errorf("%w: capacity %d, coarse levels need %d", ErrCapacityTooSmall, capacity, reserved+1)
	}

	off := make([]uint32, numMips+2)
	off[numMips+1] = capacity
	off[numMips] = capacity - 1
	step = 1
	for i := 1; i < numMips; i++ {
		step *= ShrinkFactor
		off[numMips-i] = off[numMips-i+1] - uint32(step)
	}
	off[0] = 0

	return Layout{capacity: capacity, numMips: numMips, baseOffset: off}, nil
}

func (l Layout) Capacity() uint32 {
	return l.capacity
}

func (l Layout) NumMips() int {
	return l.numMips
}

// Levels is the number of regions, NumMips+1.
func (l Layout) Levels() int {
	return l.numMips + 1
}

func (l Layout) BaseOffset(level int) uint32 {
	return l.baseOffset[level]
}

func (l Layout) RegionSize(level int) uint32 {
	return l.baseOffset[level+1] - l.baseOffset[level]
}

// Offsets returns a copy of all NumMips+2 boundaries.
func (l Layout) Offsets() []uint32 {
	out := make([]uint32, len(l.baseOffset))
	copy(out, l.baseOffset)
	return out
}
