// Package shaders holds the WGSL sources of the GPU backend. Shaders that
// share structs or bindings are assembled from the snippets below.
package shaders

import (
	_ "embed"
)

//go:embed frame.wgsl
var frameWGSL string

//go:embed lighting.wgsl
var lightingWGSL string

//go:embed voxel.wgsl
var voxelWGSL string

//go:embed sparse.wgsl
var sparseWGSL string

//go:embed indirect_reset.wgsl
var indirectResetWGSL string

//go:embed voxelize.wgsl
var voxelizeWGSL string

//go:embed mipmap.wgsl
var mipmapWGSL string

//go:embed conetrace.wgsl
var conetraceWGSL string

//go:embed voxel_debug.wgsl
var voxelDebugWGSL string

//go:embed gbuffer.wgsl
var gbufferWGSL string

//go:embed shadow.wgsl
var shadowWGSL string

//go:embed unlit.wgsl
var unlitWGSL string

//go:embed tonemap.wgsl
var tonemapWGSL string

//go:embed antialias.wgsl
var antialiasWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

var (
	IndirectResetWGSL = voxelWGSL + sparseWGSL + indirectResetWGSL
	VoxelizeWGSL      = frameWGSL + lightingWGSL + voxelWGSL + sparseWGSL + voxelizeWGSL
	MipmapWGSL        = voxelWGSL + sparseWGSL + mipmapWGSL
	ConeTraceWGSL     = frameWGSL + voxelWGSL + conetraceWGSL
	VoxelDebugWGSL    = frameWGSL + voxelWGSL + voxelDebugWGSL

	GBufferWGSL   = frameWGSL + gbufferWGSL
	ShadowWGSL    = frameWGSL + shadowWGSL
	UnlitWGSL     = frameWGSL + lightingWGSL + unlitWGSL
	TonemapWGSL   = frameWGSL + tonemapWGSL
	AntialiasWGSL = frameWGSL + antialiasWGSL
)

// All maps a label to every assembled shader.
func All() map[string]string {
	return map[string]string{
		"indirect_reset": IndirectResetWGSL,
		"voxelize":       VoxelizeWGSL,
		"mipmap":         MipmapWGSL,
		"conetrace":      ConeTraceWGSL,
		"voxel_debug":    VoxelDebugWGSL,
		"gbuffer":        GBufferWGSL,
		"shadow":         ShadowWGSL,
		"unlit":          UnlitWGSL,
		"tonemap":        TonemapWGSL,
		"antialias":      AntialiasWGSL,
		"fullscreen":     FullscreenWGSL,
	}
}
