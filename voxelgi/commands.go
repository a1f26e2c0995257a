package main

import (
	"fmt"
	"os"

	"github.com/go-gl/glfw/v3.3/glfw"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/app"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/cpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/pipeline"
	"github.com/urfave/cli"
)

// setup loads the config named by the global flags, applies overrides and
// returns a logger configured from it.
func setup(ctx *cli.Context) (opengine.Config, opengine.Logger, error) {
	cfg := opengine.DefaultConfig()
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = opengine.LoadConfig(path); err != nil {
			return cfg, nil, err
		}
	}
	if r := ctx.GlobalInt("resolution"); r > 0 {
		cfg.Voxel.Resolution = r
	}
	if c := ctx.GlobalInt("capacity"); c > 0 {
		cfg.Voxel.SparseCapacity = c
	}
	if w := ctx.Int("width"); w > 0 {
		cfg.Render.Width = w
	}
	if h := ctx.Int("height"); h > 0 {
		cfg.Render.Height = h
	}
	if ctx.Bool("voxels") {
		cfg.Debug.DrawVoxels = true
	}
	if l := ctx.Int("level"); l >= 0 {
		cfg.Debug.MipLevel = l
	}
	if ctx.GlobalBool("v") {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, opengine.NewDefaultLogger(cfg.Log.Prefix, cfg.Log.Debug), nil
}

func runViewer(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Render.Width, cfg.Render.Height, "voxelgi", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	defer application.Release()
	if err := application.Init(); err != nil {
		return err
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		application.Input.HandleCursor(xpos, ypos)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		application.Input.HandleKey(key, action)
		if key == glfw.KeyTab && action == glfw.Press {
			if application.Input.Captured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if application.Input.Quit() {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
	return nil
}

// renderReference renders the demo scene once on the CPU device.
func renderReference(cfg opengine.Config, log opengine.Logger) (*cpu.Device, *pipeline.Renderer, pipeline.FrameStats, error) {
	dev, err := cpu.NewDevice(cfg, log)
	if err != nil {
		return nil, nil, pipeline.FrameStats{}, err
	}
	r, err := pipeline.New(dev, dev.Shadow, dev.GBuffer, dev.Post, pipeline.Options{
		Width:    cfg.Render.Width,
		Height:   cfg.Render.Height,
		Settings: pipeline.SettingsFromConfig(cfg),
		Logger:   log,
	})
	if err != nil {
		dev.Close()
		return nil, nil, pipeline.FrameStats{}, err
	}
	half := cfg.Voxel.WorldSize / 2
	scene := core.NewDemoScene(half)
	stats, err := r.RenderFrame(core.DemoCamera(half), scene, &scene.Lights)
	if err != nil {
		dev.Close()
		return nil, nil, stats, err
	}
	return dev, r, stats, nil
}

func snapshot(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	dev, _, stats, err := renderReference(cfg, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	out := ctx.String("out")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := cpu.WritePNG(f, dev.Post.Last(), ctx.Int("scale")); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("wrote %s (%dx%d, %s)", out, cfg.Render.Width, cfg.Render.Height, stats.Total)
	return nil
}

func inspect(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	cfg.Debug.ValidateRegions = true
	dev, r, stats, err := renderReference(cfg, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	pipeline.WriteStats(os.Stdout, stats)
	log.Debugf("profiler\n%s", r.Profiler().GetStatsString())
	if stats.BarrierErr != nil {
		return fmt.Errorf("inspect: %w", stats.BarrierErr)
	}
	if stats.RegionErr != nil {
		return fmt.Errorf("inspect: %w", stats.RegionErr)
	}
	return nil
}
