package volume

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	g, err := NewGrid(64, mgl32.Vec3{0, 0, 0}, 16)
	require.NoError(t, err)
	assert.Equal(t, 6, g.NumMips)
	assert.Equal(t, 7, g.Levels())
	assert.Equal(t, 1, g.LevelResolution(6))
	assert.Equal(t, float32(0.25), g.VoxelSize(0))

	_, err = NewGrid(48, mgl32.Vec3{}, 16)
	assert.ErrorIs(t, err, ErrResolution)
	_, err = NewGrid(1024, mgl32.Vec3{}, 16)
	assert.ErrorIs(t, err, ErrResolution)
	_, err = NewGrid(64, mgl32.Vec3{}, 0)
	assert.ErrorIs(t, err, ErrWorldSize)
}

func TestGridWorldToVoxel(t *testing.T) {
	g, err := NewGrid(32, mgl32.Vec3{10, 0, 0}, 8)
	require.NoError(t, err)

	p := g.WorldToVoxel().Mul4x1(mgl32.Vec4{6, -4, -4, 1})
	assert.InDelta(t, 0, p.X(), 1e-4)
	assert.InDelta(t, 0, p.Y(), 1e-4)
	assert.InDelta(t, 0, p.Z(), 1e-4)

	p = g.WorldToVoxel().Mul4x1(mgl32.Vec4{10, 0, 0, 1})
	assert.InDelta(t, 16, p.X(), 1e-4)

	back := g.VoxelToWorld().Mul4x1(mgl32.Vec4{16, 16, 16, 1})
	assert.InDelta(t, 10, back.X(), 1e-4)
	assert.InDelta(t, 0, back.Y(), 1e-4)
}

func TestFlattenUnflatten(t *testing.T) {
	idx := Flatten(3, 5, 7, 16)
	x, y, z := Unflatten(idx, 16)
	if x != 3 || y != 5 || z != 7 {
		t.Errorf("Expected (3,5,7), got (%d,%d,%d)", x, y, z)
	}
}

func TestPackOrdersByOpacity(t *testing.T) {
	faint := Pack(mgl32.Vec4{1, 1, 1, 0.2})
	solid := Pack(mgl32.Vec4{0, 0, 0, 1})
	assert.Greater(t, solid, faint)
	assert.False(t, IsEmpty(solid))
	assert.True(t, IsEmpty(Pack(mgl32.Vec4{1, 1, 1, 0})))

	c := Unpack(Pack(mgl32.Vec4{1, 0.5, 0, 1}))
	assert.InDelta(t, 1, c[0], 1e-6)
	assert.InDelta(t, 0.5, c[1], 1.0/255)
	assert.InDelta(t, 0, c[2], 1e-6)
	assert.InDelta(t, 1, c[3], 1e-6)
}

func TestDownsampleKeepsSingleChild(t *testing.T) {
	v := Pack(mgl32.Vec4{1, 0, 0, 1})
	for level := 0; level < 9; level++ {
		v = Downsample([8]uint32{0, 0, 0, v, 0, 0, 0, 0})
		if IsEmpty(v) {
			t.Fatalf("occupancy vanished after %d reductions", level+1)
		}
	}
	assert.Equal(t, uint32(255), (v>>16)&0xFF, "color of the only child survives")
}

func TestDownsampleOrderIndependent(t *testing.T) {
	a := Pack(mgl32.Vec4{1, 0, 0, 1})
	b := Pack(mgl32.Vec4{0, 0, 1, 0.5})
	c := Pack(mgl32.Vec4{0, 1, 0, 1})
	x := Downsample([8]uint32{a, b, c, 0, 0, 0, 0, 0})
	y := Downsample([8]uint32{0, c, 0, b, 0, a, 0, 0})
	assert.Equal(t, x, y)
	assert.Equal(t, uint32(0), Downsample([8]uint32{}))
}

func TestVolumeMergeMaxFirstWriter(t *testing.T) {
	g, err := NewGrid(4, mgl32.Vec3{}, 4)
	require.NoError(t, err)
	vol, err := Allocate(g)
	require.NoError(t, err)

	var firsts int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val := Pack(mgl32.Vec4{float32(i) / 64, 0, 0, 1})
			if vol.MergeMax(0, 5, val) == 0 {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts, "exactly one invocation sees the empty cell")
	assert.Equal(t, Pack(mgl32.Vec4{1, 0, 0, 1}), vol.Load(0, 5))

	vol.Clear()
	assert.Equal(t, 0, vol.Occupied(0))
}

func TestVolumeLoadCellOutside(t *testing.T) {
	g, _ := NewGrid(4, mgl32.Vec3{}, 4)
	vol, err := Allocate(g)
	require.NoError(t, err)
	vol.MergeMax(1, Flatten(1, 1, 1, 2), 0xFF000000)

	assert.Equal(t, uint32(0xFF000000), vol.LoadCell(1, 1, 1, 1))
	assert.Equal(t, uint32(0), vol.LoadCell(1, 2, 0, 0))
	assert.Equal(t, uint32(0), vol.LoadCell(1, -1, 0, 0))
}

func TestAllocateRejectsOversizedPyramid(t *testing.T) {
	_, err := Allocate(Grid{Resolution: 1024, NumMips: 9, Size: 1})
	assert.ErrorIs(t, err, ErrAllocation)

	_, err = Allocate(Grid{Resolution: 1024, NumMips: 10, Size: 1})
	assert.ErrorIs(t, err, ErrResolution)
}

func TestLayoutOffsets(t *testing.T) {
	l, err := NewLayout(6, 1<<16)
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 28087, 60855, 64951, 65463, 65527, 65535, 65536}, l.Offsets())
	assert.Equal(t, uint32(1), l.RegionSize(6))
	assert.Equal(t, uint32(8), l.RegionSize(5))
	assert.Equal(t, uint32(32768), l.RegionSize(1))
	assert.Equal(t, uint32(28087), l.RegionSize(0))

	for level := 0; level < l.Levels(); level++ {
		assert.Less(t, l.BaseOffset(level), l.BaseOffset(level+1), "regions never overlap")
	}
}

func TestLayoutCapacityTooSmall(t *testing.T) {
	_, err := NewLayout(6, 37449)
	assert.ErrorIs(t, err, ErrCapacityTooSmall)

	l, err := NewLayout(6, 37450)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), l.RegionSize(0))
}

func TestSparseAppendAndReset(t *testing.T) {
	l, err := NewLayout(2, 64)
	require.NoError(t, err)
	s := NewSparseList(l)

	assert.Equal(t, uint32(0), s.Append(1, 11))
	assert.Equal(t, uint32(1), s.Append(1, 12))
	assert.Equal(t, uint32(0), s.Append(0, 7))
	assert.Equal(t, []uint32{11, 12}, s.Entries(1))
	assert.Equal(t, []uint32{7}, s.Entries(0))
	require.NoError(t, s.CheckRegions())

	s.ResetCounters()
	assert.Equal(t, []uint32{0, 0, 0}, s.Counts())
	assert.Empty(t, s.Entries(1))
}

func TestSparseOverflowAliasesNextRegion(t *testing.T) {
	// Offsets [0, 3, 4]: level 0 owns three slots, level 1 the last one.
	l, err := NewLayout(1, 4)
	require.NoError(t, err)
	s := NewSparseList(l)

	for i := uint32(0); i < 5; i++ {
		s.Append(0, 100+i)
	}

	assert.Equal(t, uint32(103), s.Entry(1, 0), "fourth append landed in level 1's region")
	assert.Equal(t, uint32(0), s.Entry(1, 1), "writes past the buffer are dropped")

	err = s.CheckRegions()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegionOverflow)
}

func TestCommandSetShapeAndReset(t *testing.T) {
	l, err := NewLayout(3, 1024)
	require.NoError(t, err)
	c := NewCommandSet(l)

	for level := 0; level < l.Levels(); level++ {
		d := c.Draw(level)
		assert.Equal(t, uint32(CubeVertexCount), d.VertexCount)
		assert.Equal(t, l.BaseOffset(level), d.FirstInstance)
	}

	c.RecordDrawEntry(2)
	c.RecordDispatchEntry(2, 0)
	c.RecordDrawEntry(MaxLevels - 1)
	c.RecordDispatchEntry(MaxLevels-1, 0)
	c.Reset()

	for level := 0; level < MaxLevels; level++ {
		assert.Equal(t, uint32(0), c.Draw(level).InstanceCount)
		assert.Equal(t, uint32(0), c.Dispatch(level).X)
		assert.Equal(t, uint32(1), c.Dispatch(level).Y)
		assert.Equal(t, uint32(CubeVertexCount), c.Draw(level).VertexCount)
	}
	assert.Equal(t, l.BaseOffset(2), c.Draw(2).FirstInstance, "shape fields survive a reset")
}

func TestRecordDispatchEntryIsCeil(t *testing.T) {
	l, _ := NewLayout(2, 4096)
	s := NewSparseList(l)
	c := NewCommandSet(l)

	var wg sync.WaitGroup
	for i := 0; i < 130; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			old := s.Append(0, uint32(i))
			c.RecordDrawEntry(0)
			c.RecordDispatchEntry(0, old)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint32(130), c.Draw(0).InstanceCount)
	assert.Equal(t, uint32(3), c.Dispatch(0).X)
}

func TestCommandBytes(t *testing.T) {
	l, _ := NewLayout(2, 4096)
	c := NewCommandSet(l)

	draws := c.DrawBytes(true)
	require.Len(t, draws, MaxLevels*DrawCommandSize)
	assert.Equal(t, uint32(CubeVertexCount), binary.LittleEndian.Uint32(draws[DrawCommandSize:]))
	assert.Equal(t, l.BaseOffset(1), binary.LittleEndian.Uint32(draws[DrawCommandSize+12:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(c.DrawBytes(false)[DrawCommandSize+12:]))

	disp := c.DispatchBytes()
	require.Len(t, disp, MaxLevels*DispatchCommandSize)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(disp[4:]))
}
