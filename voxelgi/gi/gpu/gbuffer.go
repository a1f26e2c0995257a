package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/shaders"
)

// GBufferRenderer rasterizes the scene into the geometry attachments.
type GBufferRenderer struct {
	ctx      *Context
	pipeline *wgpu.RenderPipeline
	targets  *GBufferTargets
	culled   int
}

func NewGBufferRenderer(ctx *Context) (*GBufferRenderer, error) {
	module, err := ctx.shaderModule("GBuffer", shaders.GBufferWGSL)
	if err != nil {
		return nil, err
	}
	defer module.Release()
	layout, err := ctx.pipelineLayout("GBuffer", ctx.FrameLayout, ctx.ObjectLayout)
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	target := func(f wgpu.TextureFormat) wgpu.ColorTargetState {
		return wgpu.ColorTargetState{Format: f, WriteMask: wgpu.ColorWriteMaskAll}
	}
	pipeline, err := ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "GBuffer Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{meshVertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				target(wgpu.TextureFormatRGBA8Unorm),
				target(wgpu.TextureFormatRGBA16Float),
				target(wgpu.TextureFormatRGBA32Float),
				target(wgpu.TextureFormatRGBA16Float),
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthState(true),
		Multisample:  noMultisample,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: g-buffer pipeline: %w", err)
	}
	return &GBufferRenderer{ctx: ctx, pipeline: pipeline}, nil
}

func (g *GBufferRenderer) Resize(width, height int) error {
	t, err := newGBufferTargets(g.ctx.Device, width, height)
	if err != nil {
		return err
	}
	g.targets.Release()
	g.targets = t
	return nil
}

func (g *GBufferRenderer) Targets() *GBufferTargets { return g.targets }

// Culled is the number of objects rejected by the frustum test last frame.
func (g *GBufferRenderer) Culled() int { return g.culled }

func (g *GBufferRenderer) Render(fr *core.FrameResources) (core.GBuffer, error) {
	if g.targets == nil || g.targets.Albedo.Width != fr.Width || g.targets.Albedo.Height != fr.Height {
		if err := g.Resize(fr.Width, fr.Height); err != nil {
			return nil, err
		}
	}
	g.ctx.PrepareFrame(fr)
	enc, err := g.ctx.Encoder()
	if err != nil {
		return nil, err
	}
	attach := func(v *wgpu.TextureView) wgpu.RenderPassColorAttachment {
		return wgpu.RenderPassColorAttachment{
			View:       v,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}
	}
	t := g.targets
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "GBuffer",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			attach(t.Albedo.View), attach(t.Normal.View), attach(t.Position.View), attach(t.Emissive.View),
		},
		DepthStencilAttachment: depthAttachment(t.Depth.View),
	})
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, g.ctx.FrameGroup, nil)

	planes := core.ExtractFrustum(fr.ViewProjection)
	g.culled = 0
	fr.Scene.Each(func(item core.DrawItem) bool {
		if !core.AABBInFrustum(core.TransformAABB(item.Mesh.Bounds(), item.ObjectToWorld), planes) {
			g.culled++
			return true
		}
		err = g.ctx.Objects.Draw(pass, 1, item, fr.Index, 1)
		return err == nil
	})
	if endErr := pass.End(); err == nil && endErr != nil {
		err = fmt.Errorf("gpu: g-buffer pass: %w", endErr)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (g *GBufferRenderer) Release() {
	g.targets.Release()
	g.targets = nil
	if g.pipeline != nil {
		g.pipeline.Release()
		g.pipeline = nil
	}
}
