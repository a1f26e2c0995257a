package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/shaders"
)

// ShadowRenderer renders the variance shadow map of the first directional
// light into an rg32float moments target.
type ShadowRenderer struct {
	ctx      *Context
	pipeline *wgpu.RenderPipeline
	moments  *Target
	depth    *Target
}

func NewShadowRenderer(ctx *Context, size int) (*ShadowRenderer, error) {
	moments, err := newTarget(ctx.Device, "Shadow Moments", size, size, wgpu.TextureFormatRG32Float,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	s := &ShadowRenderer{ctx: ctx, moments: moments}
	if s.depth, err = newTarget(ctx.Device, "Shadow Depth", size, size, wgpu.TextureFormatDepth32Float, wgpu.TextureUsageRenderAttachment); err != nil {
		s.Release()
		return nil, err
	}

	module, err := ctx.shaderModule("Shadow", shaders.ShadowWGSL)
	if err != nil {
		s.Release()
		return nil, err
	}
	defer module.Release()
	layout, err := ctx.pipelineLayout("Shadow", ctx.FrameLayout, ctx.ObjectLayout)
	if err != nil {
		s.Release()
		return nil, err
	}
	defer layout.Release()
	s.pipeline, err = ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Shadow Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{meshVertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatRG32Float,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			CullMode: wgpu.CullModeNone,
		},
		DepthStencil: depthState(true),
		Multisample:  noMultisample,
	})
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("gpu: shadow pipeline: %w", err)
	}
	return s, nil
}

// Render draws lit objects from the light. Frames without a directional
// light get an empty output and the lighting passes skip the lookup.
func (s *ShadowRenderer) Render(fr *core.FrameResources) (core.ShadowOutput, error) {
	if fr.Lights == nil || fr.Lights.NumDirectional == 0 {
		return core.ShadowOutput{}, nil
	}
	s.ctx.PrepareFrame(fr)
	enc, err := s.ctx.Encoder()
	if err != nil {
		return core.ShadowOutput{}, err
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Shadow",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       s.moments.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 1, G: 1, B: 0, A: 0},
		}},
		DepthStencilAttachment: depthAttachment(s.depth.View),
	})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.ctx.FrameGroup, nil)
	fr.Scene.Each(func(item core.DrawItem) bool {
		if !item.Material.Lit {
			return true
		}
		err = s.ctx.Objects.Draw(pass, 1, item, fr.Index, 1)
		return err == nil
	})
	if endErr := pass.End(); err == nil && endErr != nil {
		err = fmt.Errorf("gpu: shadow pass: %w", endErr)
	}
	if err != nil {
		return core.ShadowOutput{}, err
	}
	view, proj := s.ctx.LightMatrices()
	return core.ShadowOutput{
		Map:                 s.moments,
		LightView:           view,
		LightProjection:     proj,
		LightViewProjection: proj.Mul4(view),
	}, nil
}

func (s *ShadowRenderer) Release() {
	s.moments.Release()
	s.depth.Release()
	s.moments, s.depth = nil, nil
	if s.pipeline != nil {
		s.pipeline.Release()
		s.pipeline = nil
	}
}
