// Package cpu runs the GI passes on the CPU reference device.
//
// The passes mirror the shaders one to one: dispatches are asynchronous,
// invocations are unordered, the only ordering is the barrier. It exists to
// test the pipeline without a GPU and to render reference frames.
package cpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/kernels"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// clearSpan is the number of words one clear invocation zeroes.
const clearSpan = 1024

type Options struct {
	Workers int
	Seed    uint64
	Logger  opengine.Logger
	Tracker *barrier.Tracker
}

// Backend owns the volume, the sparse list and the command set of the CPU
// device. Each pass has an exclusive write window bounded by barriers.
type Backend struct {
	grid   volume.Grid
	layout volume.Layout
	target kernels.Target

	exec    *kernels.Executor
	tracker *barrier.Tracker
	log     opengine.Logger

	indirect *core.ColorImage
	debug    *kernels.DepthColorTarget
	debugOut *core.ColorImage

	// dropMipBarriers skips the barriers between mip levels. Tests only.
	dropMipBarriers bool
}

// New allocates the device structures for grid. Allocation failure is
// returned and leaves nothing behind.
func New(grid volume.Grid, capacity uint32, opts Options) (*Backend, error) {
	layout, err := volume.NewLayout(grid.NumMips, capacity)
	if err != nil {
		return nil, fmt.Errorf("cpu: sparse layout: %w", err)
	}
	vol, err := volume.Allocate(grid)
	if err != nil {
		return nil, fmt.Errorf("cpu: voxel volume: %w", err)
	}
	b := &Backend{
		grid:   grid,
		layout: layout,
		target: kernels.Target{
			Volume:   vol,
			List:     volume.NewSparseList(layout),
			Commands: volume.NewCommandSet(layout),
		},
		exec:    kernels.NewExecutor(opts.Workers, opts.Seed),
		tracker: opts.Tracker,
		log:     opengine.OrNop(opts.Logger),
	}
	if b.tracker == nil {
		b.tracker = barrier.NewTracker()
	}
	b.log.Debugf("cpu device: %d^3 voxels, %d mips, capacity %d, %d workers",
		grid.Resolution, grid.NumMips, capacity, b.exec.Workers())
	return b, nil
}

func (b *Backend) Name() string { return "cpu" }

func (b *Backend) Grid() volume.Grid               { return b.grid }
func (b *Backend) Layout() volume.Layout           { return b.layout }
func (b *Backend) Volume() *volume.Volume          { return b.target.Volume }
func (b *Backend) SparseList() *volume.SparseList  { return b.target.List }
func (b *Backend) Commands() *volume.CommandSet    { return b.target.Commands }
func (b *Backend) Tracker() *barrier.Tracker       { return b.tracker }
func (b *Backend) Executor() *kernels.Executor     { return b.exec }
func (b *Backend) IndirectImage() *core.ColorImage { return b.indirect }

// Barrier waits for every dispatch in flight. The scope is recorded for the
// tracker; the CPU device always flushes everything.
func (b *Backend) Barrier(s barrier.Scope) error {
	b.tracker.Barrier(s)
	if err := b.exec.Wait(); err != nil {
		return fmt.Errorf("cpu: device fault: %w", err)
	}
	return nil
}

// Resize reallocates the indirect-light and debug attachments. Voxel
// resources are not touched.
func (b *Backend) Resize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("cpu: invalid attachment size %dx%d", width, height)
	}
	b.indirect = core.NewColorImage(width, height)
	b.debug = kernels.NewDepthColorTarget(width, height)
	b.debugOut = core.NewColorImage(width, height)
	return nil
}

// Clear empties every level, zeroes the list counters and resets every
// command slot.
func (b *Backend) Clear(fr *core.FrameResources) error {
	b.tracker.Run(barrier.Pass{Stage: barrier.StageClear})
	total := b.target.Volume.TotalWords()
	spans := (total + clearSpan - 1) / clearSpan
	t := b.target
	b.exec.DispatchItems(spans, func(id uint32) {
		from := int(id) * clearSpan
		t.Volume.ClearSpan(from, from+clearSpan)
		if id == 0 {
			t.List.ResetCounters()
			t.Commands.Reset()
		}
	})
	return b.Barrier(barrier.ImageAccess | barrier.StorageAccess)
}

// Voxelize issues one draw per lit object overlapping the volume, each
// followed by an image barrier, and a full barrier after the last draw.
func (b *Backend) Voxelize(fr *core.FrameResources) error {
	bounds := [2]mgl32.Vec3{b.grid.Min(), b.grid.Max()}
	draws := 0
	var err error
	fr.Scene.Each(func(item core.DrawItem) bool {
		if !item.Material.Lit || item.IndexCount < 3 {
			return true
		}
		if !core.AABBOverlaps(core.TransformAABB(item.Mesh.Bounds(), item.ObjectToWorld), bounds) {
			return true
		}
		b.tracker.Run(barrier.Pass{Stage: barrier.StageVoxelizeDraw, Index: draws})
		draw := kernels.NewVoxelizeDraw(b.target, item, fr.Lights, &fr.Shadow)
		b.exec.DispatchItems(draw.Triangles(), draw.Triangle)
		draws++
		err = b.Barrier(barrier.ImageAccess)
		return err == nil
	})
	if err != nil {
		return err
	}
	b.log.Debugf("voxelize: %d draws", draws)
	return b.Barrier(barrier.All)
}

// BuildMips runs one indirect dispatch per level. Level L reads dispatch
// slot L, written by the previous pass, and produces slot L+1.
func (b *Backend) BuildMips(fr *core.FrameResources) error {
	for level := 0; level < b.grid.NumMips; level++ {
		b.tracker.Run(barrier.Pass{Stage: barrier.StageMipLevel, Index: level})
		t := b.target
		l := level
		b.exec.DispatchIndirect(t.Commands, level, func(id uint32) {
			kernels.Downsample(t, l, id)
		})
		if level < b.grid.NumMips-1 && !b.dropMipBarriers {
			if err := b.Barrier(barrier.ImageAccess | barrier.StorageAccess | barrier.Command); err != nil {
				return err
			}
		}
	}
	return b.Barrier(barrier.TextureFetch)
}

// DrawVoxels draws the occupied cells of one level as cubes through the
// level's indirect draw record.
func (b *Backend) DrawVoxels(fr *core.FrameResources, level int) (core.Surface, error) {
	if b.debug == nil {
		return nil, fmt.Errorf("cpu: DrawVoxels before Resize")
	}
	level = min(max(level, 0), b.grid.NumMips)
	if err := b.Barrier(barrier.StorageAccess | barrier.Command); err != nil {
		return nil, err
	}
	b.tracker.Run(barrier.Pass{Stage: barrier.StageDebugVoxels, Index: level})

	b.debug.Clear()
	draw := kernels.NewDebugVoxelDraw(b.target, level, fr.ViewProjection, b.debug)
	b.exec.DispatchItems(int(draw.Command.InstanceCount), draw.Instance)
	// end of render pass
	if err := b.exec.Wait(); err != nil {
		return nil, fmt.Errorf("cpu: device fault: %w", err)
	}
	b.debugOut.Fill(fr.Settings.SkyColor.Vec4(1))
	b.debug.Resolve(b.debugOut)
	return b.debugOut, nil
}

// ConeTrace launches the integrator over the g-buffer. The result is
// complete after the next barrier.
func (b *Backend) ConeTrace(fr *core.FrameResources) (core.Surface, error) {
	gb, ok := fr.GBuffer.(*core.GBufferImages)
	if !ok {
		return nil, fmt.Errorf("cpu: g-buffer %T is not host-visible", fr.GBuffer)
	}
	w, h := gb.Size()
	if b.indirect == nil || b.indirect.Width != w || b.indirect.Height != h {
		if err := b.Resize(w, h); err != nil {
			return nil, err
		}
	}
	b.tracker.Run(barrier.Pass{Stage: barrier.StageConeTrace})
	vol, out := b.target.Volume, b.indirect
	s := kernels.SettingsFrom(fr.Settings)
	b.exec.DispatchItems(w*h, func(id uint32) {
		kernels.ConeTracePixel(vol, gb, out, s, id)
	})
	return out, nil
}

// Counts reads the per-level counters back. Only valid between frames.
func (b *Backend) Counts() ([]uint32, error) {
	if err := b.exec.Wait(); err != nil {
		return nil, err
	}
	return b.target.List.Counts(), nil
}

func (b *Backend) Close() error {
	return b.exec.Wait()
}
