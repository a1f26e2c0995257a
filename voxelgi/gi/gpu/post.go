package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/shaders"
)

const postWorkgroup = 8

// PostProcess runs the unlit/sky, tonemap and antialias compute passes and
// blits the final image to the swapchain view, if one is set.
type PostProcess struct {
	ctx *Context
	gb  func() *GBufferTargets

	lightsLayout *wgpu.BindGroupLayout
	unlitIO      *wgpu.BindGroupLayout
	hdrIO        *wgpu.BindGroupLayout
	ldrIO        *wgpu.BindGroupLayout

	unlitPipe *wgpu.ComputePipeline
	tonePipe  *wgpu.ComputePipeline
	aaPipe    *wgpu.ComputePipeline
	blitPipe  *wgpu.RenderPipeline
	linear    *wgpu.Sampler

	hdr, ldr, final *Target
	output          *wgpu.TextureView
	last            *Target
}

// NewPostProcess reads g-buffer attachments through gb at dispatch time.
// surfaceFormat is the swapchain format, or TextureFormatUndefined when
// rendering offscreen.
func NewPostProcess(ctx *Context, gb func() *GBufferTargets, surfaceFormat wgpu.TextureFormat) (*PostProcess, error) {
	p := &PostProcess{ctx: ctx, gb: gb}
	if err := p.init(surfaceFormat); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *PostProcess) init(surfaceFormat wgpu.TextureFormat) error {
	ctx := p.ctx
	compute := wgpu.ShaderStageCompute
	var err error
	p.lightsLayout, err = ctx.bindGroupLayout("Post Lights BGL",
		uniformEntry(0, compute, FrameBlockSize, false),
		uniformEntry(1, compute, core.LightBlockSize, false),
	)
	if err != nil {
		return err
	}
	p.unlitIO, err = ctx.bindGroupLayout("Unlit IO BGL",
		textureEntry(0, compute), textureEntry(1, compute), textureEntry(2, compute),
		textureEntry(3, compute), textureEntry(4, compute), textureEntry(5, compute),
		pointSamplerEntry(6, compute),
		storageTextureEntry(7, wgpu.TextureFormatRGBA16Float),
	)
	if err != nil {
		return err
	}
	if p.hdrIO, err = ctx.bindGroupLayout("Tonemap IO BGL", textureEntry(0, compute), storageTextureEntry(1, wgpu.TextureFormatRGBA8Unorm)); err != nil {
		return err
	}
	if p.ldrIO, err = ctx.bindGroupLayout("Antialias IO BGL", textureEntry(0, compute), storageTextureEntry(1, wgpu.TextureFormatRGBA8Unorm)); err != nil {
		return err
	}
	if p.unlitPipe, err = ctx.computePipeline("Unlit Sky", shaders.UnlitWGSL, p.lightsLayout, p.unlitIO); err != nil {
		return err
	}
	if p.tonePipe, err = ctx.computePipeline("Tonemap", shaders.TonemapWGSL, ctx.FrameLayout, p.hdrIO); err != nil {
		return err
	}
	if p.aaPipe, err = ctx.computePipeline("Antialias", shaders.AntialiasWGSL, ctx.FrameLayout, p.ldrIO); err != nil {
		return err
	}
	if surfaceFormat == wgpu.TextureFormatUndefined {
		return nil
	}

	p.linear, err = ctx.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("gpu: blit sampler: %w", err)
	}
	module, err := ctx.shaderModule("Fullscreen VS/FS", shaders.FullscreenWGSL)
	if err != nil {
		return err
	}
	defer module.Release()
	// Layout auto
	p.blitPipe, err = ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: noMultisample,
	})
	if err != nil {
		return fmt.Errorf("gpu: blit pipeline: %w", err)
	}
	return nil
}

func (p *PostProcess) Resize(width, height int) error {
	storage := wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding
	hdr, err := newTarget(p.ctx.Device, "HDR", width, height, wgpu.TextureFormatRGBA16Float, storage)
	if err != nil {
		return err
	}
	ldr, err := newTarget(p.ctx.Device, "LDR", width, height, wgpu.TextureFormatRGBA8Unorm, storage)
	if err != nil {
		hdr.Release()
		return err
	}
	final, err := newTarget(p.ctx.Device, "Final", width, height, wgpu.TextureFormatRGBA8Unorm, storage|wgpu.TextureUsageCopySrc)
	if err != nil {
		hdr.Release()
		ldr.Release()
		return err
	}
	p.hdr.Release()
	p.ldr.Release()
	p.final.Release()
	p.hdr, p.ldr, p.final = hdr, ldr, final
	return nil
}

// SetOutput sets the swapchain view the next Present blits to. A nil view
// keeps the frame offscreen.
func (p *PostProcess) SetOutput(view *wgpu.TextureView) { p.output = view }

// Last is the most recently presented image.
func (p *PostProcess) Last() *Target { return p.last }

func (p *PostProcess) ensure(w, h int) error {
	if p.hdr == nil || p.hdr.Width != w || p.hdr.Height != h {
		return p.Resize(w, h)
	}
	return nil
}

func (p *PostProcess) dispatch(label string, pipe *wgpu.ComputePipeline, w, h int, groups ...*wgpu.BindGroup) error {
	enc, err := p.ctx.Encoder()
	if err != nil {
		return err
	}
	pass := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	pass.SetPipeline(pipe)
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.DispatchWorkgroups(uint32(w+postWorkgroup-1)/postWorkgroup, uint32(h+postWorkgroup-1)/postWorkgroup, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: %s pass: %w", label, err)
	}
	return nil
}

// UnlitAndSky writes lit surfaces (direct + indirect, ambient scaled by
// visibility), unlit surfaces and the sky into the HDR target.
func (p *PostProcess) UnlitAndSky(fr *core.FrameResources, indirect core.Surface) (core.Surface, error) {
	ind, err := asTarget(indirect)
	if err != nil {
		return nil, err
	}
	gb := p.gb()
	if gb == nil {
		return nil, fmt.Errorf("gpu: unlit pass before the g-buffer")
	}
	w, h := gb.Size()
	if err := p.ensure(w, h); err != nil {
		return nil, err
	}
	p.ctx.PrepareFrame(fr)
	shadow := p.ctx.EmptyShadow
	if t, ok := fr.Shadow.Map.(*Target); ok && t != nil {
		shadow = t
	}
	lights, err := p.ctx.BindGroup("Post Lights BG", p.lightsLayout,
		wgpu.BindGroupEntry{Binding: 0, Buffer: p.ctx.frameBuf, Size: FrameBlockSize},
		wgpu.BindGroupEntry{Binding: 1, Buffer: p.ctx.lightsBuf, Size: core.LightBlockSize},
	)
	if err != nil {
		return nil, err
	}
	io, err := p.ctx.BindGroup("Unlit IO BG", p.unlitIO,
		wgpu.BindGroupEntry{Binding: 0, TextureView: gb.Albedo.View},
		wgpu.BindGroupEntry{Binding: 1, TextureView: gb.Normal.View},
		wgpu.BindGroupEntry{Binding: 2, TextureView: gb.Position.View},
		wgpu.BindGroupEntry{Binding: 3, TextureView: gb.Emissive.View},
		wgpu.BindGroupEntry{Binding: 4, TextureView: ind.View},
		wgpu.BindGroupEntry{Binding: 5, TextureView: shadow.View},
		wgpu.BindGroupEntry{Binding: 6, Sampler: p.ctx.PointSampler},
		wgpu.BindGroupEntry{Binding: 7, TextureView: p.hdr.View},
	)
	if err != nil {
		return nil, err
	}
	if err := p.dispatch("Unlit Sky", p.unlitPipe, w, h, lights, io); err != nil {
		return nil, err
	}
	return p.hdr, nil
}

// Tonemap applies exposure, Reinhard and gamma 2.2.
func (p *PostProcess) Tonemap(fr *core.FrameResources, hdr core.Surface) (core.Surface, error) {
	in, err := asTarget(hdr)
	if err != nil {
		return nil, err
	}
	if err := p.ensure(in.Width, in.Height); err != nil {
		return nil, err
	}
	io, err := p.ctx.BindGroup("Tonemap IO BG", p.hdrIO,
		wgpu.BindGroupEntry{Binding: 0, TextureView: in.View},
		wgpu.BindGroupEntry{Binding: 1, TextureView: p.ldr.View},
	)
	if err != nil {
		return nil, err
	}
	if err := p.dispatch("Tonemap", p.tonePipe, in.Width, in.Height, p.ctx.FrameGroup, io); err != nil {
		return nil, err
	}
	return p.ldr, nil
}

// Antialias blends pixels on strong luma edges with their neighbours.
func (p *PostProcess) Antialias(fr *core.FrameResources, ldr core.Surface) (core.Surface, error) {
	in, err := asTarget(ldr)
	if err != nil {
		return nil, err
	}
	if err := p.ensure(in.Width, in.Height); err != nil {
		return nil, err
	}
	io, err := p.ctx.BindGroup("Antialias IO BG", p.ldrIO,
		wgpu.BindGroupEntry{Binding: 0, TextureView: in.View},
		wgpu.BindGroupEntry{Binding: 1, TextureView: p.final.View},
	)
	if err != nil {
		return nil, err
	}
	if err := p.dispatch("Antialias", p.aaPipe, in.Width, in.Height, p.ctx.FrameGroup, io); err != nil {
		return nil, err
	}
	return p.final, nil
}

// Present blits img to the output view, if any, and submits the frame.
func (p *PostProcess) Present(fr *core.FrameResources, img core.Surface) error {
	t, err := asTarget(img)
	if err != nil {
		return err
	}
	if p.output != nil && p.blitPipe != nil {
		layout := p.blitPipe.GetBindGroupLayout(0)
		bg, err := p.ctx.BindGroup("Blit BG", layout,
			wgpu.BindGroupEntry{Binding: 0, TextureView: t.View},
			wgpu.BindGroupEntry{Binding: 1, Sampler: p.linear},
		)
		layout.Release()
		if err != nil {
			return err
		}
		enc, err := p.ctx.Encoder()
		if err != nil {
			return err
		}
		pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       p.output,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			}},
		})
		pass.SetPipeline(p.blitPipe)
		pass.SetBindGroup(0, bg, nil)
		pass.Draw(3, 1, 0, 0)
		if err := pass.End(); err != nil {
			return fmt.Errorf("gpu: blit pass: %w", err)
		}
	}
	p.last = t
	return p.ctx.Submit()
}

func (p *PostProcess) Release() {
	for _, t := range []*Target{p.hdr, p.ldr, p.final} {
		t.Release()
	}
	p.hdr, p.ldr, p.final, p.last = nil, nil, nil, nil
	for _, c := range []*wgpu.ComputePipeline{p.unlitPipe, p.tonePipe, p.aaPipe} {
		if c != nil {
			c.Release()
		}
	}
	if p.blitPipe != nil {
		p.blitPipe.Release()
	}
	if p.linear != nil {
		p.linear.Release()
	}
	for _, l := range []*wgpu.BindGroupLayout{p.lightsLayout, p.unlitIO, p.hdrIO, p.ldrIO} {
		if l != nil {
			l.Release()
		}
	}
	p.unlitPipe, p.tonePipe, p.aaPipe, p.blitPipe, p.linear = nil, nil, nil, nil, nil
}
