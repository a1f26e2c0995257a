package volume

import (
	"encoding/binary"
	"sync/atomic"
)

const (
	// WorkGroupSize is the invocation count of one mip-build workgroup.
	WorkGroupSize = 64
	// CubeVertexCount is the vertex count of the debug voxel cube (12 triangles).
	CubeVertexCount = 36

	DrawCommandSize     = 16
	DispatchCommandSize = 12
)

// DrawCommand matches the indirect draw argument layout.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// DispatchCommand matches the indirect dispatch argument layout.
type DispatchCommand struct {
	X uint32
	Y uint32
	Z uint32
}

// CommandSet is a self-describing command buffer pair: one draw and one
// dispatch record per level. The voxelization pass produces slot 0, mip level
// L produces slot L+1; the mip builder consumes dispatch slots and the debug
// voxel draw consumes draw slots. InstanceCount and X are the only fields
// mutated during a frame and the host never reads them on the frame path.
type CommandSet struct {
	layout     Layout
	draws      [MaxLevels]DrawCommand
	dispatches [MaxLevels]DispatchCommand
}

func NewCommandSet(layout Layout) *CommandSet {
	c := &CommandSet{layout: layout}
	for l := 0; l < MaxLevels; l++ {
		c.draws[l] = DrawCommand{VertexCount: CubeVertexCount}
		c.dispatches[l] = DispatchCommand{Y: 1, Z: 1}
		if l < layout.Levels() {
			c.draws[l].FirstInstance = layout.BaseOffset(l)
		}
	}
	return c
}

func (c *CommandSet) Layout() Layout {
	return c.layout
}

// Reset zeroes the count fields of every slot up to MaxLevels, not only the
// levels in use, so a smaller grid never inherits stale counts.
func (c *CommandSet) Reset() {
	for l := 0; l < MaxLevels; l++ {
		atomic.StoreUint32(&c.draws[l].InstanceCount, 0)
		atomic.StoreUint32(&c.dispatches[l].X, 0)
	}
}

func (c *CommandSet) RecordDrawEntry(level int) {
	atomic.AddUint32(&c.draws[level].InstanceCount, 1)
}

// RecordDispatchEntry grows the workgroup count whenever oldCount (the value
// returned by the matching Append) opens a new workgroup.
func (c *CommandSet) RecordDispatchEntry(level int, oldCount uint32) {
	if oldCount%WorkGroupSize == 0 {
		atomic.AddUint32(&c.dispatches[level].X, 1)
	}
}

// Draw is the command processor's read of a draw slot.
func (c *CommandSet) Draw(level int) DrawCommand {
	d := &c.draws[level]
	return DrawCommand{
		VertexCount:   atomic.LoadUint32(&d.VertexCount),
		InstanceCount: atomic.LoadUint32(&d.InstanceCount),
		FirstVertex:   atomic.LoadUint32(&d.FirstVertex),
		FirstInstance: atomic.LoadUint32(&d.FirstInstance),
	}
}

// Dispatch is the command processor's read of a dispatch slot.
func (c *CommandSet) Dispatch(level int) DispatchCommand {
	d := &c.dispatches[level]
	return DispatchCommand{
		X: atomic.LoadUint32(&d.X),
		Y: atomic.LoadUint32(&d.Y),
		Z: atomic.LoadUint32(&d.Z),
	}
}

// DrawBytes encodes the initial draw records for upload to a device buffer.
// firstInstance is written as zero when the device cannot honor it.
func (c *CommandSet) DrawBytes(firstInstance bool) []byte {
	buf := make([]byte, MaxLevels*DrawCommandSize)
	for l, d := range c.draws {
		o := l * DrawCommandSize
		binary.LittleEndian.PutUint32(buf[o:], d.VertexCount)
		binary.LittleEndian.PutUint32(buf[o+4:], 0)
		binary.LittleEndian.PutUint32(buf[o+8:], d.FirstVertex)
		if firstInstance {
			binary.LittleEndian.PutUint32(buf[o+12:], d.FirstInstance)
		}
	}
	return buf
}

// DispatchBytes encodes the initial dispatch records for upload.
func (c *CommandSet) DispatchBytes() []byte {
	buf := make([]byte, MaxLevels*DispatchCommandSize)
	for l, d := range c.dispatches {
		o := l * DispatchCommandSize
		binary.LittleEndian.PutUint32(buf[o:], 0)
		binary.LittleEndian.PutUint32(buf[o+4:], d.Y)
		binary.LittleEndian.PutUint32(buf[o+8:], d.Z)
	}
	return buf
}
