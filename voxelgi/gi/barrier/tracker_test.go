package barrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeContains(t *testing.T) {
	s := ImageAccess | StorageAccess
	assert.True(t, s.Contains(ImageAccess))
	assert.False(t, s.Contains(ImageAccess|Command))
	assert.True(t, All.Contains(TextureFetch))
	assert.Equal(t, "image|storage", s.String())
	assert.Equal(t, "none", None.String())
}

func TestRequired(t *testing.T) {
	assert.Equal(t, ImageAccess|StorageAccess|Command, Required(StageMipLevel, StageMipLevel))
	assert.Equal(t, None, Required(StageConeTrace, StageVoxelizeDraw))
}

// A well-formed mip chain: voxelize draws, then level 0..2 with barriers in between.
func TestTrackerAcceptsOrderedChain(t *testing.T) {
	tr := NewTracker()
	tr.BeginFrame()

	tr.Run(Pass{StageClear, 0})
	tr.Barrier(ImageAccess | StorageAccess)
	tr.Run(Pass{StageVoxelizeDraw, 0})
	tr.Barrier(ImageAccess)
	tr.Run(Pass{StageVoxelizeDraw, 1})
	tr.Barrier(ImageAccess)
	tr.Barrier(All)
	for level := 0; level < 3; level++ {
		tr.Run(Pass{StageMipLevel, level})
		if level < 2 {
			tr.Barrier(ImageAccess | StorageAccess | Command)
		}
	}
	tr.Barrier(TextureFetch)
	tr.Run(Pass{StageConeTrace, 0})

	require.NoError(t, tr.Err())
	assert.Len(t, tr.Events(), 14)
}

func TestTrackerFlagsMissingMipBarrier(t *testing.T) {
	tr := NewTracker()
	tr.BeginFrame()

	tr.Run(Pass{StageVoxelizeDraw, 0})
	tr.Barrier(All)
	tr.Run(Pass{StageMipLevel, 0})
	// Image and storage only: level 1 would indirect-read a stale count.
	tr.Barrier(ImageAccess | StorageAccess)
	tr.Run(Pass{StageMipLevel, 1})

	v := tr.Violations()
	require.Len(t, v, 1)
	assert.Equal(t, Pass{StageMipLevel, 0}, v[0].Producer)
	assert.Equal(t, Pass{StageMipLevel, 1}, v[0].Consumer)
	assert.Equal(t, ImageAccess|StorageAccess, v[0].Issued)
	assert.Error(t, tr.Err())
	assert.Contains(t, tr.Err().Error(), "mip-level[0] -> mip-level[1]")
}

func TestTrackerBarrierBeforeProducerDoesNotCount(t *testing.T) {
	tr := NewTracker()
	tr.BeginFrame()

	tr.Barrier(All)
	tr.Run(Pass{StageVoxelizeDraw, 0})
	tr.Run(Pass{StageVoxelizeDraw, 1})

	require.Len(t, tr.Violations(), 1)

	tr.BeginFrame()
	assert.NoError(t, tr.Err())
	assert.Empty(t, tr.Events())
}

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	tr.BeginFrame()
	tr.Run(Pass{StageConeTrace, 0})
	tr.Barrier(All)
	assert.NoError(t, tr.Err())
	assert.Nil(t, tr.Violations())
}
