package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/cpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() opengine.Config {
	cfg := opengine.DefaultConfig()
	cfg.Voxel.Resolution = 16
	cfg.Voxel.SparseCapacity = 4096
	cfg.Render.Width = 32
	cfg.Render.Height = 24
	cfg.Device.Workers = 4
	cfg.Device.Seed = 7
	return cfg
}

func newDevice(t *testing.T) *cpu.Device {
	t.Helper()
	dev, err := cpu.NewDevice(testConfig(), opengine.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev
}

func newRenderer(t *testing.T, dev *cpu.Device, gi GI, s Settings) *Renderer {
	t.Helper()
	if gi == nil {
		gi = dev.Backend
	}
	r, err := New(gi, dev.Shadow, dev.GBuffer, dev.Post, Options{
		Width:    32,
		Height:   24,
		Settings: s,
		Logger:   opengine.NewNopLogger(),
	})
	require.NoError(t, err)
	return r
}

func stageNames(st []StageTiming) []string {
	out := make([]string, len(st))
	for i, s := range st {
		out[i] = s.Stage
	}
	return out
}

func passStages(events []barrier.Event) []barrier.Stage {
	var out []barrier.Stage
	for _, e := range events {
		if e.IsPass {
			out = append(out, e.Pass.Stage)
		}
	}
	return out
}

func TestRenderFrame(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, nil, SettingsFromConfig(testConfig()))
	scene := core.NewDemoScene(10)

	stats, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	assert.NoError(t, stats.BarrierErr)
	assert.Equal(t, "cpu", stats.Backend)
	assert.Equal(t, []string{
		StageShadow, StageGBuffer, StageClear, StageVoxelize, StageMips,
		StageConeTrace, StageUnlitSky, StageTonemap, StageAntialias,
	}, stageNames(stats.Stages))
	assert.Nil(t, stats.Counts)

	out := dev.Post.Last()
	require.NotNil(t, out)
	w, h := out.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
	for _, p := range out.Pix {
		for c := 0; c < 3; c++ {
			assert.GreaterOrEqual(t, p[c], float32(0))
			assert.LessOrEqual(t, p[c], float32(1))
		}
	}

	stats, err = r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Frame)
	assert.Equal(t, stats, r.LastStats())
}

func TestDebugViewSkipsShading(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, nil, SettingsFromConfig(testConfig()))
	r.SetDebugView(true, 1)
	scene := core.NewDemoScene(10)

	stats, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	assert.NoError(t, stats.BarrierErr)
	assert.True(t, stats.Debug)
	assert.Equal(t, 1, stats.DebugLevel)
	assert.Equal(t, []string{StageShadow, StageGBuffer, StageClear, StageVoxelize, StageMips, StageDebugVoxels},
		stageNames(stats.Stages))

	stages := passStages(dev.Tracker().Events())
	assert.Contains(t, stages, barrier.StageDebugVoxels)
	assert.NotContains(t, stages, barrier.StageConeTrace)
	assert.NotContains(t, stages, barrier.StageTonemap)
	require.NotNil(t, dev.Post.Last())
}

func TestValidateRegions(t *testing.T) {
	dev := newDevice(t)
	s := SettingsFromConfig(testConfig())
	s.ValidateRegions = true
	r := newRenderer(t, dev, nil, s)
	scene := core.NewDemoScene(10)

	stats, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	require.Len(t, stats.Counts, dev.Layout().Levels())
	assert.NoError(t, stats.RegionErr)
	assert.Equal(t, uint32(1), stats.Counts[len(stats.Counts)-1])

	var buf bytes.Buffer
	WriteStats(&buf, stats)
	assert.Contains(t, buf.String(), "Level")
	assert.Contains(t, buf.String(), "cone-trace")
}

func TestFrameCounters(t *testing.T) {
	dev := newDevice(t)
	s := SettingsFromConfig(testConfig())
	r := newRenderer(t, dev, nil, s)
	scene := core.NewDemoScene(10)
	objects, lit := 0, 0
	scene.Each(func(item core.DrawItem) bool {
		objects++
		if item.Material.Lit {
			lit++
		}
		return true
	})

	stats, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	assert.Equal(t, objects, stats.Counters[CountObjects])
	assert.Equal(t, lit, stats.Counters[CountLitObjects])
	assert.Contains(t, stats.Counters, CountCulled)
	assert.NotContains(t, stats.Counters, CountLevelPrefix+"0")
	assert.Contains(t, r.Profiler().GetStatsString(), CountObjects)

	s.ValidateRegions = true
	r.SetSettings(s)
	assert.True(t, r.Settings().ValidateRegions)
	stats, err = r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	require.NotEmpty(t, stats.Counts)
	assert.Equal(t, int(stats.Counts[0]), stats.Counters[CountLevelPrefix+"0"])

	var buf bytes.Buffer
	WriteStats(&buf, stats)
	assert.Contains(t, buf.String(), fmt.Sprintf("scene: %d objects", objects))
}

func TestResizeKeepsVoxels(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, nil, SettingsFromConfig(testConfig()))
	scene := core.NewDemoScene(10)
	_, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)

	before := dev.Volume().Snapshot(0)
	counts := dev.SparseList().Counts()
	require.NoError(t, r.Resize(64, 48))
	assert.Equal(t, before, dev.Volume().Snapshot(0))
	assert.Equal(t, counts, dev.SparseList().Counts())

	w, h := r.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.Equal(t, 64, dev.IndirectImage().Width)

	assert.ErrorIs(t, r.Resize(0, 48), ErrInvalidViewport)
	w, h = r.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestNewRequiresEveryPass(t *testing.T) {
	dev := newDevice(t)
	_, err := New(nil, dev.Shadow, dev.GBuffer, dev.Post, Options{Width: 8, Height: 8})
	assert.ErrorIs(t, err, ErrMissingPass)
	_, err = New(dev.Backend, dev.Shadow, nil, dev.Post, Options{Width: 8, Height: 8})
	assert.ErrorIs(t, err, ErrMissingPass)
	_, err = New(dev.Backend, dev.Shadow, dev.GBuffer, dev.Post, Options{})
	assert.ErrorIs(t, err, ErrInvalidViewport)
}

func TestRenderFrameWithoutScene(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, nil, Settings{})
	_, err := r.RenderFrame(core.DemoCamera(10), nil, nil)
	assert.ErrorIs(t, err, ErrNoScene)
}

var errDeviceLost = errors.New("device lost")

// faultyGI fails voxelization.
type faultyGI struct {
	*cpu.Backend
}

func (f faultyGI) Voxelize(*core.FrameResources) error { return errDeviceLost }

func TestRenderFrameAbortsOnDeviceFault(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, faultyGI{dev.Backend}, Settings{})
	scene := core.NewDemoScene(10)

	_, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.ErrorIs(t, err, errDeviceLost)
	assert.Contains(t, err.Error(), "voxelize")
	assert.Equal(t, FrameStats{}, r.LastStats())
}

// leakyGI drops the barrier between cone tracing and the unlit pass but still
// waits, so only the tracker notices.
type leakyGI struct {
	*cpu.Backend
}

func (l leakyGI) Barrier(s barrier.Scope) error {
	if s == barrier.ImageAccess|barrier.TextureFetch {
		return l.Executor().Wait()
	}
	return l.Backend.Barrier(s)
}

func TestMissingBarrierIsReported(t *testing.T) {
	dev := newDevice(t)
	r := newRenderer(t, dev, leakyGI{dev.Backend}, SettingsFromConfig(testConfig()))
	scene := core.NewDemoScene(10)

	stats, err := r.RenderFrame(core.DemoCamera(10), scene, &scene.Lights)
	require.NoError(t, err)
	require.Error(t, stats.BarrierErr)
	var v barrier.Violation
	require.ErrorAs(t, stats.BarrierErr, &v)
	assert.Equal(t, barrier.StageConeTrace, v.Producer.Stage)
	assert.Equal(t, barrier.StageUnlitSky, v.Consumer.Stage)
}

func TestWriteStats(t *testing.T) {
	layout, err := volume.NewLayout(4, 2048)
	require.NoError(t, err)
	s := FrameStats{
		Frame:   3,
		Backend: "cpu",
		Stages: []StageTiming{
			{Stage: StageVoxelize, Duration: 3 * time.Millisecond},
			{Stage: StageMips, Duration: time.Millisecond},
		},
		Total:  4 * time.Millisecond,
		Layout: layout,
		Counts: []uint32{256, 64, 16, 4, 1},
	}
	var buf bytes.Buffer
	WriteStats(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "frame 3 on cpu")
	assert.Contains(t, out, "75.0 %")
	assert.Contains(t, out, "[0, 1463)")
	assert.Contains(t, out, "[2047, 2048)")
	assert.NotContains(t, out, "barriers:")

	buf.Reset()
	s.Counts = nil
	s.Debug = true
	s.RegionErr = volume.ErrRegionOverflow
	WriteStats(&buf, s)
	out = buf.String()
	assert.Contains(t, out, "voxel view, level 0")
	assert.NotContains(t, out, "[0, 1463)")
	assert.Contains(t, out, "regions:")
}

func TestProfilerKeepsStageOrder(t *testing.T) {
	p := NewProfiler()
	end := p.Scope("b")
	end()
	p.BeginScope("a")
	p.EndScope("a")
	p.SetCount("draws", 3)
	assert.Equal(t, []string{"b", "a"}, stageNames(p.Timings()))
	assert.Contains(t, p.GetStatsString(), "draws")

	p.Reset()
	p.Scope("c")()
	assert.Equal(t, []string{"b", "a", "c"}, stageNames(p.Timings()))
	assert.Zero(t, p.Scopes["a"])
	assert.Empty(t, p.Counts)
}
