package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

const ShadowMapSize = 512

// Device is the WebGPU backend with the shadow, g-buffer and post passes
// that share its frame encoder.
type Device struct {
	*Backend
	Ctx     *Context
	Shadow  *ShadowRenderer
	GBuffer *GBufferRenderer
	Post    *PostProcess
}

// NewDevice builds every GPU pass on dev. surfaceFormat is the swapchain
// format; TextureFormatUndefined renders offscreen.
func NewDevice(cfg opengine.Config, dev *wgpu.Device, surfaceFormat wgpu.TextureFormat, log opengine.Logger) (d *Device, err error) {
	grid, err := volume.NewGrid(cfg.Voxel.Resolution, mgl32.Vec3(cfg.Voxel.WorldCenter), cfg.Voxel.WorldSize)
	if err != nil {
		return nil, fmt.Errorf("gpu: %w", err)
	}
	ctx, err := NewContext(dev, [2]mgl32.Vec3{grid.Min(), grid.Max()}, log)
	if err != nil {
		return nil, err
	}
	d = &Device{Ctx: ctx}
	defer func() {
		if err != nil {
			d.Close()
			d = nil
		}
	}()
	if d.Backend, err = New(ctx, grid, uint32(cfg.Voxel.SparseCapacity), Options{Logger: log, Tracker: barrier.NewTracker()}); err != nil {
		return d, err
	}
	if d.Shadow, err = NewShadowRenderer(ctx, ShadowMapSize); err != nil {
		return d, err
	}
	if d.GBuffer, err = NewGBufferRenderer(ctx); err != nil {
		return d, err
	}
	d.Post, err = NewPostProcess(ctx, d.GBuffer.Targets, surfaceFormat)
	return d, err
}

// Close releases the passes, then the backend buffers and the shared context.
func (d *Device) Close() error {
	if d.Post != nil {
		d.Post.Release()
	}
	if d.GBuffer != nil {
		d.GBuffer.Release()
	}
	if d.Shadow != nil {
		d.Shadow.Release()
	}
	var err error
	if d.Backend != nil {
		err = d.Backend.Close()
	}
	d.Ctx.Release()
	return err
}
