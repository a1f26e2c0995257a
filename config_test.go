package opengine

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7, cfg.NumMips())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"resolution not power of two", func(c *Config) { c.Voxel.Resolution = 100 }, ErrInvalidResolution},
		{"resolution too large", func(c *Config) { c.Voxel.Resolution = 1024 }, ErrInvalidResolution},
		{"resolution too small", func(c *Config) { c.Voxel.Resolution = 1 }, ErrInvalidResolution},
		{"zero capacity", func(c *Config) { c.Voxel.SparseCapacity = 0 }, ErrInvalidCapacity},
		{"zero world", func(c *Config) { c.Voxel.WorldSize = 0 }, ErrInvalidWorldSize},
		{"capacity below pyramid", func(c *Config) { c.Voxel.Resolution = 64; c.Voxel.SparseCapacity = 37449 }, ErrInvalidCapacity},
		{"default capacity at 256", func(c *Config) { c.Voxel.Resolution = 256 }, ErrInvalidCapacity},
		{"negative cone", func(c *Config) { c.Cone.MaxConeDistance = -1 }, ErrInvalidCone},
		{"tiny step", func(c *Config) { c.Cone.StepFactor = 0.01 }, ErrInvalidCone},
		{"empty viewport", func(c *Config) { c.Render.Height = 0 }, ErrInvalidViewport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateCapacityBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Voxel.Resolution = 64
	cfg.Voxel.SparseCapacity = 37450
	require.NoError(t, cfg.Validate())

	cfg.Cone.StepFactor = MinStepFactor
	require.NoError(t, cfg.Validate())

	if strconv.IntSize == 64 {
		big := int64(math.MaxUint32) + 1
		cfg.Voxel.SparseCapacity = int(big)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidCapacity)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
voxel:
  resolution: 64
cone:
  step_factor: 0.25
debug:
  draw_voxels: true
  mip_level: 2
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, 64, cfg.Voxel.Resolution)
	assert.Equal(t, 6, cfg.NumMips())
	assert.Equal(t, float32(0.25), cfg.Cone.StepFactor)
	assert.True(t, cfg.Debug.DrawVoxels)
	assert.Equal(t, 2, cfg.Debug.MipLevel)
	assert.Equal(t, def.Voxel.SparseCapacity, cfg.Voxel.SparseCapacity)
	assert.Equal(t, def.Render, cfg.Render)
	assert.Equal(t, def.Cone.AODistance, cfg.Cone.AODistance)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voxel:\n  resolution: 48\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	require.NoError(t, os.WriteFile(path, []byte("voxel: [1, 2"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
