package volume

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// SparseList records which cells each level touched this frame. Appends are
// device-side: an atomic increment of the level counter followed by a write
// into the level's region. Nothing checks the region bound on this path; an
// overflowing level writes into the next level's region and writes past the
// end of the buffer are dropped.
type SparseList struct {
	layout  Layout
	entries []uint32
	counts  []uint32
}

func NewSparseList(layout Layout) *SparseList {
	return &SparseList{
		layout:  layout,
		entries: make([]uint32, layout.Capacity()),
		counts:  make([]uint32, layout.Levels()),
	}
}

func (s *SparseList) Layout() Layout {
	return s.layout
}

// ResetCounters zeroes the counts. Stale entries stay in the buffer but are
// never read since readers stop at count.
func (s *SparseList) ResetCounters() {
	for i := range s.counts {
		atomic.StoreUint32(&s.counts[i], 0)
	}
}

// Append returns the count observed before the increment.
func (s *SparseList) Append(level int, flat uint32) uint32 {
	old := atomic.AddUint32(&s.counts[level], 1) - 1
	slot := uint64(s.layout.BaseOffset(level)) + uint64(old)
	if slot < uint64(len(s.entries)) {
		atomic.StoreUint32(&s.entries[slot], flat)
	}
	return old
}

func (s *SparseList) Count(level int) uint32 {
	return atomic.LoadUint32(&s.counts[level])
}

func (s *SparseList) Counts() []uint32 {
	out := make([]uint32, len(s.counts))
	for i := range s.counts {
		out[i] = atomic.LoadUint32(&s.counts[i])
	}
	return out
}

// Entry reads entry i of a level's region; reads past the buffer return 0.
func (s *SparseList) Entry(level int, i uint32) uint32 {
	slot := uint64(s.layout.BaseOffset(level)) + uint64(i)
	if slot >= uint64(len(s.entries)) {
		return 0
	}
	return atomic.LoadUint32(&s.entries[slot])
}

// EntryAt reads an absolute slot, the way an instanced draw indexes the buffer
// with firstInstance + instance.
func (s *SparseList) EntryAt(slot uint32) uint32 {
	if uint64(slot) >= uint64(len(s.entries)) {
		return 0
	}
	return atomic.LoadUint32(&s.entries[slot])
}

// Entries copies the live entries of a level.
func (s *SparseList) Entries(level int) []uint32 {
	n := s.Count(level)
	out := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		slot := uint64(s.layout.BaseOffset(level)) + uint64(i)
		if slot >= uint64(len(s.entries)) {
			break
		}
		out = append(out, s.Entry(level, i))
	}
	return out
}

// CheckRegions reports every level whose count spilled past its region and
// whether the total exceeds capacity. It is a harness check; the append path
// never calls it.
func (s *SparseList) CheckRegions() error {
	return CheckRegions(s.layout, s.Counts())
}

func CheckRegions(layout Layout, counts []uint32) error {
	var errs []error
	var total uint64
	for level, c := range counts {
		total += uint64(c)
		if level >= layout.Levels() {
			break
		}
		if uint64(layout.BaseOffset(level))+uint64(c) > uint64(layout.BaseOffset(level+1)) {
			errs = append(errs, fmt.Errorf("%w: level %d holds %d entries, region size %d",
				ErrRegionOverflow, level, c, layout.RegionSize(level)))
		}
	}
	if total > uint64(layout.Capacity()) {
		errs = append(errs, fmt.Errorf("%w: %d entries in total, capacity %d",
			ErrRegionOverflow, total, layout.Capacity()))
	}
	return errors.Join(errs...)
}
