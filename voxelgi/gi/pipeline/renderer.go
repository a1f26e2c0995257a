// Package pipeline sequences a frame: shadow, g-buffer, voxelization, mip
// build, then either the voxel debug view or cone tracing followed by the
// unlit/sky, tonemap and antialias passes.
package pipeline

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

// Stage names used for timings.
const (
	StageShadow      = "shadow"
	StageGBuffer     = "gbuffer"
	StageClear       = "clear"
	StageVoxelize    = "voxelize"
	StageMips        = "mips"
	StageDebugVoxels = "debug-voxels"
	StageConeTrace   = "cone-trace"
	StageUnlitSky    = "unlit-sky"
	StageTonemap     = "tonemap"
	StageAntialias   = "antialias"
)

// Counter names recorded in the profiler each frame.
const (
	CountObjects     = "objects"
	CountLitObjects  = "lit-objects"
	CountCulled      = "culled"
	CountLevelPrefix = "sparse-level-"
)

type Settings struct {
	GI              core.GISettings
	DrawVoxels      bool
	MipLevel        int
	ValidateRegions bool
}

func SettingsFromConfig(cfg opengine.Config) Settings {
	sky := cfg.Render.SkyColor
	return Settings{
		GI: core.GISettings{
			AODistance:      cfg.Cone.AODistance,
			MaxConeDistance: cfg.Cone.MaxConeDistance,
			AccumThreshold:  cfg.Cone.AccumThreshold,
			StepFactor:      cfg.Cone.StepFactor,
			Exposure:        cfg.Render.Exposure,
			SkyColor:        mgl32.Vec3{sky[0], sky[1], sky[2]},
		},
		DrawVoxels:      cfg.Debug.DrawVoxels,
		MipLevel:        cfg.Debug.MipLevel,
		ValidateRegions: cfg.Debug.ValidateRegions,
	}
}

type Options struct {
	Width, Height int
	Settings      Settings
	Logger        opengine.Logger
}

// Renderer is the frame orchestrator. It owns no device memory; the GI
// backend owns the voxel structures, collaborators own their attachments.
type Renderer struct {
	gi      GI
	shadow  ShadowPass
	gbuffer GBufferPass
	post    PostProcess

	log      opengine.Logger
	prof     *Profiler
	settings Settings

	width, height int
	frame         uint64
	last          FrameStats
}

func New(gi GI, shadow ShadowPass, gbuffer GBufferPass, post PostProcess, opts Options) (*Renderer, error) {
	if gi == nil || shadow == nil || gbuffer == nil || post == nil {
		return nil, ErrMissingPass
	}
	r := &Renderer{
		gi:       gi,
		shadow:   shadow,
		gbuffer:  gbuffer,
		post:     post,
		log:      opengine.OrNop(opts.Logger),
		prof:     NewProfiler(),
		settings: opts.Settings,
	}
	if err := r.Resize(opts.Width, opts.Height); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Settings() Settings { return r.settings }

func (r *Renderer) SetSettings(s Settings) { r.settings = s }

// SetDebugView toggles the voxel inspection path. The level is clamped to
// the pyramid when drawn.
func (r *Renderer) SetDebugView(enabled bool, level int) {
	r.settings.DrawVoxels = enabled
	r.settings.MipLevel = level
}

func (r *Renderer) Profiler() *Profiler { return r.prof }

func (r *Renderer) LastStats() FrameStats { return r.last }

func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Resize reallocates the g-buffer and accumulation attachments. Voxel
// resources keep their size and content.
func (r *Renderer) Resize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w (got %dx%d)", ErrInvalidViewport, width, height)
	}
	if err := r.gbuffer.Resize(width, height); err != nil {
		return fmt.Errorf("pipeline: resize g-buffer: %w", err)
	}
	if err := r.gi.Resize(width, height); err != nil {
		return fmt.Errorf("pipeline: resize indirect target: %w", err)
	}
	if err := r.post.Resize(width, height); err != nil {
		return fmt.Errorf("pipeline: resize post targets: %w", err)
	}
	r.width, r.height = width, height
	r.log.Debugf("attachments resized to %dx%d", width, height)
	return nil
}

// RenderFrame runs one frame. Device faults abort the frame; barrier
// violations and region overflows are reported through the stats.
func (r *Renderer) RenderFrame(cam *core.CameraState, scene core.SceneIterator, lights *core.LightData) (FrameStats, error) {
	if scene == nil {
		return FrameStats{}, ErrNoScene
	}
	start := time.Now()
	tr := r.gi.Tracker()
	tr.BeginFrame()
	r.prof.Reset()

	fr := core.NewFrameResources(r.frame, cam, r.width, r.height)
	fr.Scene = scene
	fr.Lights = lights
	fr.Settings = r.settings.GI

	if err := r.renderFrame(fr, tr); err != nil {
		return FrameStats{}, fmt.Errorf("pipeline: frame %d: %w", r.frame, err)
	}

	stats := FrameStats{
		Frame:      r.frame,
		Backend:    r.gi.Name(),
		Debug:      r.settings.DrawVoxels,
		DebugLevel: r.settings.MipLevel,
		Stages:     r.prof.Timings(),
		Total:      time.Since(start),
		Layout:     r.gi.Layout(),
		BarrierErr: tr.Err(),
	}
	if stats.BarrierErr != nil {
		r.log.Errorf("frame %d: %v", r.frame, stats.BarrierErr)
	}
	if r.settings.ValidateRegions {
		r.validateRegions(&stats)
	}
	stats.Counters = maps.Clone(r.prof.Counts)
	r.last = stats
	r.frame++
	return stats, nil
}

func (r *Renderer) renderFrame(fr *core.FrameResources, tr *barrier.Tracker) error {
	end := r.prof.Scope(StageShadow)
	tr.Run(barrier.Pass{Stage: barrier.StageShadow})
	shadow, err := r.shadow.Render(fr)
	if err != nil {
		return fmt.Errorf("shadow: %w", err)
	}
	fr.Shadow = shadow
	if err := r.gi.Barrier(barrier.TextureFetch); err != nil {
		return err
	}
	end()

	end = r.prof.Scope(StageGBuffer)
	tr.Run(barrier.Pass{Stage: barrier.StageGBuffer})
	gb, err := r.gbuffer.Render(fr)
	if err != nil {
		return fmt.Errorf("gbuffer: %w", err)
	}
	fr.GBuffer = gb
	if err := r.gi.Barrier(barrier.TextureFetch); err != nil {
		return err
	}
	end()
	r.countScene(fr.Scene)

	steps := []struct {
		name string
		run  func(*core.FrameResources) error
	}{
		{StageClear, r.gi.Clear},
		{StageVoxelize, r.gi.Voxelize},
		{StageMips, r.gi.BuildMips},
	}
	for _, s := range steps {
		end = r.prof.Scope(s.name)
		if err := s.run(fr); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		end()
	}

	if r.settings.DrawVoxels {
		end = r.prof.Scope(StageDebugVoxels)
		img, err := r.gi.DrawVoxels(fr, r.settings.MipLevel)
		if err != nil {
			return fmt.Errorf("debug voxels: %w", err)
		}
		if err := r.post.Present(fr, img); err != nil {
			return fmt.Errorf("present: %w", err)
		}
		end()
		return nil
	}

	end = r.prof.Scope(StageConeTrace)
	indirect, err := r.gi.ConeTrace(fr)
	if err != nil {
		return fmt.Errorf("cone trace: %w", err)
	}
	if err := r.gi.Barrier(barrier.ImageAccess | barrier.TextureFetch); err != nil {
		return err
	}
	end()

	end = r.prof.Scope(StageUnlitSky)
	tr.Run(barrier.Pass{Stage: barrier.StageUnlitSky})
	hdr, err := r.post.UnlitAndSky(fr, indirect)
	if err != nil {
		return fmt.Errorf("unlit/sky: %w", err)
	}
	if err := r.gi.Barrier(barrier.TextureFetch); err != nil {
		return err
	}
	end()

	end = r.prof.Scope(StageTonemap)
	tr.Run(barrier.Pass{Stage: barrier.StageTonemap})
	ldr, err := r.post.Tonemap(fr, hdr)
	if err != nil {
		return fmt.Errorf("tonemap: %w", err)
	}
	if err := r.gi.Barrier(barrier.TextureFetch); err != nil {
		return err
	}
	end()

	end = r.prof.Scope(StageAntialias)
	tr.Run(barrier.Pass{Stage: barrier.StageAntialias})
	final, err := r.post.Antialias(fr, ldr)
	if err != nil {
		return fmt.Errorf("antialias: %w", err)
	}
	if err := r.gi.Barrier(barrier.TextureFetch); err != nil {
		return err
	}
	end()

	return r.post.Present(fr, final)
}

// culler is implemented by g-buffer passes that frustum cull.
type culler interface {
	Culled() int
}

func (r *Renderer) countScene(scene core.SceneIterator) {
	objects, lit := 0, 0
	scene.Each(func(item core.DrawItem) bool {
		objects++
		if item.Material.Lit {
			lit++
		}
		return true
	})
	r.prof.SetCount(CountObjects, objects)
	r.prof.SetCount(CountLitObjects, lit)
	if c, ok := r.gbuffer.(culler); ok {
		r.prof.SetCount(CountCulled, c.Culled())
	}
}

// validateRegions reads the counters back after the frame. It stalls the
// device and is never part of the frame itself.
func (r *Renderer) validateRegions(stats *FrameStats) {
	counts, err := r.gi.Counts()
	if err != nil {
		r.log.Warnf("frame %d: count readback failed: %v", r.frame, err)
		return
	}
	stats.Counts = counts
	for level, c := range counts {
		r.prof.SetCount(fmt.Sprintf("%s%d", CountLevelPrefix, level), int(c))
	}
	stats.RegionErr = volume.CheckRegions(stats.Layout, counts)
	if stats.RegionErr != nil {
		r.log.Warnf("frame %d: %v", r.frame, stats.RegionErr)
	}
}
