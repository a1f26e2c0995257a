package shaders

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// knownLimitation reports naga errors for features it does not lower yet.
func knownLimitation(err error) bool {
	s := err.Error()
	for _, k := range []string{"not yet implemented", "not supported", "runtime-sized arrays", "atomic", "lowering error"} {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func TestShadersCompile(t *testing.T) {
	for name, src := range All() {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, src)
			spirv, err := naga.Compile(src)
			if err != nil {
				if knownLimitation(err) {
					t.Skipf("naga limitation: %v", err)
				}
				t.Fatalf("compile %s: %v", name, err)
			}
			require.GreaterOrEqual(t, len(spirv), 4)
			magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
			assert.Equal(t, uint32(0x07230203), magic)
		})
	}
}

func TestEntryPoints(t *testing.T) {
	compute := []string{IndirectResetWGSL, MipmapWGSL, ConeTraceWGSL, UnlitWGSL, TonemapWGSL, AntialiasWGSL}
	for _, src := range compute {
		assert.Contains(t, src, "@compute")
		assert.Contains(t, src, "fn main(")
	}
	render := []string{VoxelizeWGSL, VoxelDebugWGSL, GBufferWGSL, ShadowWGSL, FullscreenWGSL}
	for _, src := range render {
		assert.Contains(t, src, "fn vs_main(")
		assert.Contains(t, src, "fn fs_main(")
	}
}

func TestMipWorkgroupMatchesDispatchRecord(t *testing.T) {
	// The dispatch records count workgroups of 64 entries.
	assert.Contains(t, MipmapWGSL, "@workgroup_size(64)")
	assert.Contains(t, MipmapWGSL, "const WORKGROUP_SIZE: u32 = 64u;")
}

// naga lowers component-wise comparisons but not the any/all reductions, so
// bounds checks are spelled out per axis.
func TestNoVectorReductions(t *testing.T) {
	for name, src := range All() {
		for _, fn := range []string{"any(", "all("} {
			for _, line := range strings.Split(src, "\n") {
				code, _, _ := strings.Cut(line, "//")
				idx := strings.Index(code, fn)
				if idx < 0 {
					continue
				}
				if idx > 0 {
					prev := code[idx-1]
					if prev == '_' || (prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z') || (prev >= '0' && prev <= '9') {
						continue
					}
				}
				t.Errorf("%s uses %s: %s", name, fn, strings.TrimSpace(line))
			}
		}
	}
}

func TestBoundsHelpersShared(t *testing.T) {
	for _, src := range []string{VoxelizeWGSL, ConeTraceWGSL} {
		assert.Contains(t, src, "fn outside_box(")
	}
	for _, src := range []string{VoxelizeWGSL, UnlitWGSL} {
		assert.Contains(t, src, "fn outside_unit(")
	}
}

// Without first-instance support the reset leaves the record at zero and the
// debug vertex stage adds the region base itself.
func TestDebugViewOffsetsWithoutFirstInstance(t *testing.T) {
	assert.Contains(t, VoxelDebugWGSL, "grid.first_instance == 0u")
	assert.Contains(t, VoxelDebugWGSL, "region_base(level) + ii")
	assert.Contains(t, IndirectResetWGSL, "grid.first_instance != 0u")
}
