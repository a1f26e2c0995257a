package pipeline

import (
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// GI is a device backend owning the voxel volume, the sparse list and the
// indirect command set. Passes report to Tracker and are separated with
// Barrier; a pass may return before its work completes.
type GI interface {
	Name() string
	Layout() volume.Layout
	Tracker() *barrier.Tracker
	Barrier(s barrier.Scope) error
	Resize(width, height int) error

	Clear(fr *core.FrameResources) error
	Voxelize(fr *core.FrameResources) error
	BuildMips(fr *core.FrameResources) error
	DrawVoxels(fr *core.FrameResources, level int) (core.Surface, error)
	ConeTrace(fr *core.FrameResources) (core.Surface, error)

	// Counts reads the per-level sparse counters back. Diagnostics only; it
	// stalls until the device is idle.
	Counts() ([]uint32, error)
	Close() error
}

type ShadowPass interface {
	Render(fr *core.FrameResources) (core.ShadowOutput, error)
}

type GBufferPass interface {
	Resize(width, height int) error
	Render(fr *core.FrameResources) (core.GBuffer, error)
}

type PostProcess interface {
	Resize(width, height int) error
	UnlitAndSky(fr *core.FrameResources, indirect core.Surface) (core.Surface, error)
	Tonemap(fr *core.FrameResources, hdr core.Surface) (core.Surface, error)
	Antialias(fr *core.FrameResources, ldr core.Surface) (core.Surface, error)
	Present(fr *core.FrameResources, img core.Surface) error
}
