package opengine

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"

	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidResolution = errors.New("config: voxel resolution must be a power of two between 2 and 512")
	ErrInvalidCapacity   = errors.New("config: sparse capacity must hold every level of the pyramid")
	ErrInvalidWorldSize  = errors.New("config: voxel world size must be positive")
	ErrInvalidCone       = errors.New("config: cone distances must be positive and the step factor at least 0.05")
	ErrInvalidViewport   = errors.New("config: viewport must be at least 1x1")
)

// MaxVoxelResolution bounds the grid so the indirect command set can be sized once.
const MaxVoxelResolution = 512

// MinStepFactor keeps the cone march from taking millions of samples.
const MinStepFactor = 0.05

type VoxelConfig struct {
	Resolution     int        `yaml:"resolution"`
	SparseCapacity int        `yaml:"sparse_capacity"`
	WorldCenter    [3]float32 `yaml:"world_center"`
	WorldSize      float32    `yaml:"world_size"`
}

type ConeConfig struct {
	AODistance      float32 `yaml:"ao_distance"`
	MaxConeDistance float32 `yaml:"max_cone_distance"`
	AccumThreshold  float32 `yaml:"accum_threshold"`
	StepFactor      float32 `yaml:"step_factor"`
}

type RenderConfig struct {
	Width    int        `yaml:"width"`
	Height   int        `yaml:"height"`
	Exposure float32    `yaml:"exposure"`
	SkyColor [3]float32 `yaml:"sky_color"`
}

type DebugConfig struct {
	DrawVoxels      bool `yaml:"draw_voxels"`
	MipLevel        int  `yaml:"mip_level"`
	ValidateRegions bool `yaml:"validate_regions"`
}

type DeviceConfig struct {
	// Workers limits concurrent workgroups on the CPU device; 0 means GOMAXPROCS.
	Workers int   `yaml:"workers"`
	Seed    int64 `yaml:"seed"`
}

type LogConfig struct {
	Prefix string `yaml:"prefix"`
	Debug  bool   `yaml:"debug"`
}

type Config struct {
	Voxel  VoxelConfig  `yaml:"voxel"`
	Cone   ConeConfig   `yaml:"cone"`
	Render RenderConfig `yaml:"render"`
	Debug  DebugConfig  `yaml:"debug"`
	Device DeviceConfig `yaml:"device"`
	Log    LogConfig    `yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Voxel: VoxelConfig{
			Resolution:     128,
			SparseCapacity: 1 << 21,
			WorldCenter:    [3]float32{0, 0, 0},
			WorldSize:      20,
		},
		Cone: ConeConfig{
			AODistance:      2.0,
			MaxConeDistance: 12.0,
			AccumThreshold:  0.95,
			StepFactor:      0.5,
		},
		Render: RenderConfig{
			Width:    1280,
			Height:   720,
			Exposure: 1.0,
			SkyColor: [3]float32{0.45, 0.6, 0.85},
		},
		Log: LogConfig{
			Prefix: "voxelgi",
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig; absent keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	r := c.Voxel.Resolution
	if r < 2 || r > MaxVoxelResolution || bits.OnesCount(uint(r)) != 1 {
		return fmt.Errorf("%w (got %d)", ErrInvalidResolution, r)
	}
	if c.Voxel.SparseCapacity <= 0 || int64(c.Voxel.SparseCapacity) > math.MaxUint32 {
		return fmt.Errorf("%w (got %d)", ErrInvalidCapacity, c.Voxel.SparseCapacity)
	}
	if _, err := volume.NewLayout(c.NumMips(), uint32(c.Voxel.SparseCapacity)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCapacity, err)
	}
	if c.Voxel.WorldSize <= 0 {
		return ErrInvalidWorldSize
	}
	if c.Cone.MaxConeDistance <= 0 || c.Cone.AODistance <= 0 || c.Cone.StepFactor < MinStepFactor {
		return ErrInvalidCone
	}
	if c.Render.Width < 1 || c.Render.Height < 1 {
		return ErrInvalidViewport
	}
	return nil
}

// NumMips is log2 of the voxel resolution.
func (c Config) NumMips() int {
	return bits.TrailingZeros(uint(c.Voxel.Resolution))
}
