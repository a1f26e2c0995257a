package cpu

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, res int, size float32, capacity uint32, workers int, seed uint64) *Backend {
	t.Helper()
	g, err := volume.NewGrid(res, mgl32.Vec3{}, size)
	require.NoError(t, err)
	b, err := New(g, capacity, Options{Workers: workers, Seed: seed})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func frameFor(scene core.SceneIterator, lights *core.LightData, w, h int) *core.FrameResources {
	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{0, -30, 20}
	cam.LookAt(mgl32.Vec3{})
	fr := core.NewFrameResources(0, cam, w, h)
	fr.Scene = scene
	fr.Lights = lights
	fr.Settings = core.GISettings{AODistance: 2, MaxConeDistance: 12, AccumThreshold: 0.95, StepFactor: 0.5, Exposure: 1}
	return fr
}

// buildVolume runs clear, voxelization and the mip chain, and fails the test
// on any device fault or barrier violation.
func buildVolume(t *testing.T, b *Backend, fr *core.FrameResources) {
	t.Helper()
	b.Tracker().BeginFrame()
	require.NoError(t, b.Clear(fr))
	require.NoError(t, b.Voxelize(fr))
	require.NoError(t, b.BuildMips(fr))
	require.NoError(t, b.Tracker().Err())
}

func sceneWith(objs ...*core.SceneObject) *core.Scene {
	s := core.NewScene()
	for _, o := range objs {
		s.AddObject(o)
	}
	return s
}

// slab is a plane covering the whole XY extent of a volume of edge size,
// just above its center.
func slab(size float32) *core.SceneObject {
	o := core.NewSceneObject("slab", core.NewPlaneMesh(4), core.NewMaterial(mgl32.Vec3{1, 1, 1}))
	o.Transform.Position = mgl32.Vec3{0, 0, size / float32(32)}
	o.Transform.Scale = mgl32.Vec3{size, size, 1}
	return o
}

func TestNewRejectsSmallCapacity(t *testing.T) {
	g, err := volume.NewGrid(16, mgl32.Vec3{}, 16)
	require.NoError(t, err)
	_, err = New(g, 585, Options{})
	assert.ErrorIs(t, err, volume.ErrCapacityTooSmall)
}

func TestKnownDensityRegions(t *testing.T) {
	b := newBackend(t, 16, 16, 2048, 8, 1)
	fr := frameFor(sceneWith(slab(16)), nil, 8, 8)
	buildVolume(t, b, fr)

	assert.Equal(t, []uint32{256, 64, 16, 4, 1}, b.SparseList().Counts())
	require.NoError(t, b.SparseList().CheckRegions())

	layout := b.Layout()
	assert.Equal(t, []uint32{0, 1463, 1975, 2039, 2047, 2048}, layout.Offsets())

	// Every entry is unique within its level and regions do not overlap.
	for level := 0; level < layout.Levels(); level++ {
		seen := map[uint32]bool{}
		for _, flat := range b.SparseList().Entries(level) {
			assert.False(t, seen[flat], "level %d duplicates %d", level, flat)
			seen[flat] = true
		}
		c := b.SparseList().Count(level)
		assert.LessOrEqual(t, layout.BaseOffset(level)+c, layout.BaseOffset(level+1))

		// Commands agree with the counts.
		assert.Equal(t, c, b.Commands().Draw(level).InstanceCount)
		assert.Equal(t, (c+volume.WorkGroupSize-1)/volume.WorkGroupSize, b.Commands().Dispatch(level).X)
		assert.Equal(t, layout.BaseOffset(level), b.Commands().Draw(level).FirstInstance)
	}
}

func TestEntriesNameOccupiedCells(t *testing.T) {
	b := newBackend(t, 32, 20, 1<<16, 0, 3)
	scene := core.NewDemoScene(10)
	fr := frameFor(scene, &scene.Lights, 8, 8)
	buildVolume(t, b, fr)

	counts := b.SparseList().Counts()
	var total uint64
	for _, c := range counts {
		total += uint64(c)
	}
	assert.LessOrEqual(t, total, uint64(b.Layout().Capacity()))
	require.NoError(t, b.SparseList().CheckRegions())

	vol := b.Volume()
	for level := 0; level < b.Layout().Levels(); level++ {
		entries := b.SparseList().Entries(level)
		require.NotEmpty(t, entries, "level %d", level)
		for _, flat := range entries {
			assert.False(t, volume.IsEmpty(vol.Load(level, flat)), "level %d cell %d", level, flat)
		}
		// Nothing occupied is missing from the list.
		assert.Equal(t, vol.Occupied(level), len(entries), "level %d", level)
	}
}

func TestRebuildIsBitIdentical(t *testing.T) {
	scene := core.NewDemoScene(10)
	var ref []uint32
	for i, cfg := range []struct {
		workers int
		seed    uint64
	}{{1, 1}, {8, 2}, {8, 2}, {32, 99}} {
		b := newBackend(t, 32, 20, 1<<16, cfg.workers, cfg.seed)
		fr := frameFor(scene, &scene.Lights, 8, 8)
		buildVolume(t, b, fr)
		snap := b.Volume().Snapshot(0)
		if i == 0 {
			ref = snap
			continue
		}
		assert.Equal(t, ref, snap, "run %d", i)
	}

	// Same backend, second frame.
	b := newBackend(t, 32, 20, 1<<16, 4, 5)
	fr := frameFor(scene, &scene.Lights, 8, 8)
	buildVolume(t, b, fr)
	first := b.Volume().Snapshot(0)
	buildVolume(t, b, fr)
	assert.Equal(t, first, b.Volume().Snapshot(0))
	assert.Equal(t, ref, first)
}

func TestCoarsestLevelUnderMaxConcurrency(t *testing.T) {
	cube := core.NewSceneObject("cube", core.NewCubeMesh(), core.DefaultMaterial())
	cube.Transform.Scale = mgl32.Vec3{3, 3, 3}
	scene := sceneWith(cube)
	for seed := uint64(0); seed < 8; seed++ {
		b := newBackend(t, 32, 20, 1<<16, 64, seed)
		buildVolume(t, b, frameFor(scene, nil, 8, 8))
		g := b.Grid()
		require.NotZero(t, b.SparseList().Count(0))
		assert.Equal(t, uint32(1), b.SparseList().Count(g.NumMips), "seed %d", seed)
		assert.False(t, volume.IsEmpty(b.Volume().Load(g.NumMips, 0)), "seed %d", seed)
	}
}

func TestMissingMipBarrierIsReported(t *testing.T) {
	b := newBackend(t, 16, 16, 2048, 4, 1)
	b.dropMipBarriers = true
	fr := frameFor(sceneWith(slab(16)), nil, 8, 8)

	b.Tracker().BeginFrame()
	require.NoError(t, b.Clear(fr))
	require.NoError(t, b.Voxelize(fr))
	require.NoError(t, b.BuildMips(fr))

	v := b.Tracker().Violations()
	require.NotEmpty(t, v)
	assert.Equal(t, barrier.StageMipLevel, v[0].Producer.Stage)
	assert.Equal(t, barrier.StageMipLevel, v[0].Consumer.Stage)
}

func TestSingleCubePopulatesEveryLevel(t *testing.T) {
	cube := core.NewSceneObject("cube", core.NewCubeMesh(), core.DefaultMaterial())
	cube.Transform.Scale = mgl32.Vec3{4, 4, 4}
	b := newBackend(t, 64, 20, 1<<18, 0, 11)
	buildVolume(t, b, frameFor(sceneWith(cube), nil, 8, 8))

	g := b.Grid()
	require.Equal(t, 6, g.NumMips)
	for level := 0; level <= g.NumMips; level++ {
		assert.NotZero(t, b.SparseList().Count(level), "level %d", level)
		assert.NotZero(t, b.Volume().Occupied(level), "level %d", level)
	}
	// A hollow cube surface: the center cell of level 0 stays empty.
	c := g.Resolution / 2
	assert.True(t, volume.IsEmpty(b.Volume().LoadCell(0, c, c, c)))
}

func TestEmptySceneTracesBlack(t *testing.T) {
	// Drawn by the g-buffer but never voxelized.
	ghost := core.NewSceneObject("ghost", core.NewPlaneMesh(1), core.Material{Albedo: mgl32.Vec4{1, 1, 1, 1}})
	ghost.Transform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0})
	ghost.Transform.Scale = mgl32.Vec3{20, 20, 1}
	scene := sceneWith(ghost)

	b := newBackend(t, 16, 20, 4096, 0, 1)
	fr := frameFor(scene, nil, 32, 32)
	gbr := NewGBufferRenderer()
	gb, err := gbr.Render(fr)
	require.NoError(t, err)
	fr.GBuffer = gb
	buildVolume(t, b, fr)

	for _, c := range b.SparseList().Counts() {
		assert.Zero(t, c)
	}
	out, err := b.ConeTrace(fr)
	require.NoError(t, err)
	require.NoError(t, b.Barrier(barrier.ImageAccess|barrier.TextureFetch))

	img := out.(*core.ColorImage)
	covered := 0
	for i, p := range img.Pix {
		assert.Equal(t, mgl32.Vec3{}, p.Vec3(), "pixel %d", i)
		if gbr.Images().Position.Pix[i][3] == 1 {
			covered++
		}
	}
	assert.Greater(t, covered, 0)
}

func TestConeTraceLightsNeighbours(t *testing.T) {
	scene := core.NewDemoScene(10)
	b := newBackend(t, 32, 20, 1<<16, 0, 1)
	fr := frameFor(scene, &scene.Lights, 24, 24)

	sh := NewShadowRenderer(b.Executor(), 128, [2]mgl32.Vec3{b.Grid().Min(), b.Grid().Max()})
	so, err := sh.Render(fr)
	require.NoError(t, err)
	require.NotNil(t, so.Map)
	fr.Shadow = so

	gbr := NewGBufferRenderer()
	gb, err := gbr.Render(fr)
	require.NoError(t, err)
	fr.GBuffer = gb

	buildVolume(t, b, fr)
	out, err := b.ConeTrace(fr)
	require.NoError(t, err)
	require.NoError(t, b.Barrier(barrier.All))

	var lit int
	for _, p := range out.(*core.ColorImage).Pix {
		if p[0]+p[1]+p[2] > 0 {
			lit++
		}
		assert.GreaterOrEqual(t, p[3], float32(0))
		assert.LessOrEqual(t, p[3], float32(1))
	}
	assert.Greater(t, lit, 0)
}

func TestDrawVoxelsUsesIndirectRecord(t *testing.T) {
	b := newBackend(t, 16, 16, 2048, 0, 1)
	require.NoError(t, b.Resize(32, 32))
	fr := frameFor(sceneWith(slab(16)), nil, 32, 32)
	fr.Settings.SkyColor = mgl32.Vec3{0, 0, 1}
	buildVolume(t, b, fr)

	for _, level := range []int{0, 2, 99} {
		img, err := b.DrawVoxels(fr, level)
		require.NoError(t, err)
		require.NoError(t, b.Tracker().Err())
		drawn := 0
		for _, p := range img.(*core.ColorImage).Pix {
			if p != (mgl32.Vec4{0, 0, 1, 1}) {
				drawn++
			}
		}
		assert.Greater(t, drawn, 0, "level %d", level)
	}
}

func TestResizeKeepsVolume(t *testing.T) {
	b := newBackend(t, 16, 16, 2048, 0, 1)
	buildVolume(t, b, frameFor(sceneWith(slab(16)), nil, 8, 8))
	before := b.Volume().Snapshot(0)
	require.NoError(t, b.Resize(64, 48))
	assert.Equal(t, before, b.Volume().Snapshot(0))
	assert.Equal(t, 64, b.IndirectImage().Width)
	assert.Error(t, b.Resize(0, 10))
}

func TestWritePNGScales(t *testing.T) {
	img := core.NewColorImage(4, 3)
	img.Fill(mgl32.Vec4{1, 0.5, 0, 1})
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, img, 2))
	dec, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, dec.Bounds().Dx())
	assert.Equal(t, 6, dec.Bounds().Dy())
	assert.Error(t, WritePNG(&buf, nil, 1))
}
