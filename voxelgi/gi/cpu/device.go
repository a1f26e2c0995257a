package cpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

const ShadowMapSize = 512

// Device is the CPU backend together with its reference collaborators, all
// sharing one executor.
type Device struct {
	*Backend
	Shadow  *ShadowRenderer
	GBuffer *GBufferRenderer
	Post    *PostProcess
}

func NewDevice(cfg opengine.Config, log opengine.Logger) (*Device, error) {
	grid, err := volume.NewGrid(cfg.Voxel.Resolution, mgl32.Vec3(cfg.Voxel.WorldCenter), cfg.Voxel.WorldSize)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	b, err := New(grid, uint32(cfg.Voxel.SparseCapacity), Options{
		Workers: cfg.Device.Workers,
		Seed:    uint64(cfg.Device.Seed),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}
	gb := NewGBufferRenderer()
	return &Device{
		Backend: b,
		Shadow:  NewShadowRenderer(b.Executor(), ShadowMapSize, [2]mgl32.Vec3{grid.Min(), grid.Max()}),
		GBuffer: gb,
		Post:    NewPostProcess(b.Executor(), gb.Images),
	}, nil
}
