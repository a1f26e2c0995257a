// Package app drives the interactive viewer: a glfw window, a WebGPU
// surface and the frame pipeline running on the GPU backend.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/gpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/pipeline"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	GI       *gpu.Device
	Renderer *pipeline.Renderer
	Scene    *core.Scene
	Camera   *core.CameraState
	Input    Input

	// Stats receives the frame stats table when the stats key is pressed.
	Stats io.Writer

	cfg opengine.Config
	log opengine.Logger

	LastTime   float64
	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewApp(window *glfw.Window, cfg opengine.Config, log opengine.Logger) *App {
	half := cfg.Voxel.WorldSize / 2
	return &App{
		Window: window,
		Scene:  core.NewDemoScene(half),
		Camera: core.DemoCamera(half),
		Stats:  os.Stdout,
		cfg:    cfg,
		log:    opengine.OrNop(log),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("app: adapter: %w", err)
	}
	a.Adapter = adapter

	// The packed volume of a large grid exceeds the default storage
	// binding limit, so ask for what the adapter supports.
	limits := adapter.GetLimits()
	desc := &wgpu.DeviceDescriptor{
		Label:          "voxelgi",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits.Limits},
	}
	if adapter.HasFeature(wgpu.FeatureNameIndirectFirstInstance) {
		desc.RequiredFeatures = []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance}
	} else {
		a.log.Warnf("adapter lacks indirect-first-instance; debug view offsets instances in the shader")
	}
	a.Device, err = adapter.RequestDevice(desc)
	if err != nil {
		return fmt.Errorf("app: device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.GI, err = gpu.NewDevice(a.cfg, a.Device, format, a.log)
	if err != nil {
		return err
	}
	a.Renderer, err = pipeline.New(a.GI, a.GI.Shadow, a.GI.GBuffer, a.GI.Post, pipeline.Options{
		Width:    width,
		Height:   height,
		Settings: pipeline.SettingsFromConfig(a.cfg),
		Logger:   a.log,
	})
	if err != nil {
		return err
	}
	a.LastTime = glfw.GetTime()
	a.log.Infof("webgpu viewer %dx%d, %s", width, height, format)
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if err := a.Renderer.Resize(w, h); err != nil {
		a.log.Errorf("resize %dx%d: %v", w, h, err)
	}
}

// Update applies input for the elapsed time since the previous frame.
func (a *App) Update() {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	a.Input.Apply(a.Camera, dt)
	s := a.Renderer.Settings()
	if a.Input.Settings(&s, a.cfg.NumMips()) {
		a.Renderer.SetSettings(s)
		a.log.Infof("debug view %v, level %d", s.DrawVoxels, s.MipLevel)
	}
	if a.Input.TakeStats() {
		pipeline.WriteStats(a.Stats, a.Renderer.LastStats())
		a.log.Debugf("profiler\n%s", a.Renderer.Profiler().GetStatsString())
	}

	a.FrameCount++
	a.FPSTime += float64(dt)
	if a.FPSTime >= 1.0 {
		a.FPS = float64(a.FrameCount) / a.FPSTime
		a.FrameCount = 0
		a.FPSTime = 0
		a.Window.SetTitle(fmt.Sprintf("voxelgi  %.1f fps", a.FPS))
	}
}

func (a *App) Render() {
	next, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		a.log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	a.GI.Post.SetOutput(view)
	stats, err := a.Renderer.RenderFrame(a.Camera, a.Scene, &a.Scene.Lights)
	a.GI.Post.SetOutput(nil)
	if err != nil {
		a.log.Errorf("%v", err)
		return
	}
	if stats.RegionErr != nil {
		a.log.Warnf("frame %d: %v", stats.Frame, stats.RegionErr)
	}
	a.Surface.Present()
}

func (a *App) Release() {
	if a.GI != nil {
		a.GI.Close()
		a.GI = nil
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
