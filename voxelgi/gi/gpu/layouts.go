package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

const visAll = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute

func uniformEntry(binding uint32, vis wgpu.ShaderStage, size uint64, dynamic bool) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Buffer: wgpu.BufferBindingLayout{
			Type:             wgpu.BufferBindingTypeUniform,
			MinBindingSize:   size,
			HasDynamicOffset: dynamic,
		},
	}
}

func storageEntry(binding uint32, vis wgpu.ShaderStage, readOnly bool) wgpu.BindGroupLayoutEntry {
	t := wgpu.BufferBindingTypeStorage
	if readOnly {
		t = wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Buffer:     wgpu.BufferBindingLayout{Type: t},
	}
}

// textureEntry declares a textureLoad-only or point-sampled 2D texture.
// rgba32float and rg32float attachments are not filterable.
func textureEntry(binding uint32, vis wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Texture: wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		},
	}
}

func storageTextureEntry(binding uint32, format wgpu.TextureFormat) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageCompute,
		StorageTexture: wgpu.StorageTextureBindingLayout{
			Access:        wgpu.StorageTextureAccessWriteOnly,
			Format:        format,
			ViewDimension: wgpu.TextureViewDimension2D,
		},
	}
}

func pointSamplerEntry(binding uint32, vis wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
	}
}

func (c *Context) bindGroupLayout(label string, entries ...wgpu.BindGroupLayoutEntry) (*wgpu.BindGroupLayout, error) {
	l, err := c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group layout %q: %w", label, err)
	}
	return l, nil
}

func (c *Context) shaderModule(label, code string) (*wgpu.ShaderModule, error) {
	m, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: shader %q: %w", label, err)
	}
	return m, nil
}

func (c *Context) pipelineLayout(label string, groups ...*wgpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	l, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: pipeline layout %q: %w", label, err)
	}
	return l, nil
}

func (c *Context) computePipeline(label, code string, groups ...*wgpu.BindGroupLayout) (*wgpu.ComputePipeline, error) {
	module, err := c.shaderModule(label, code)
	if err != nil {
		return nil, err
	}
	defer module.Release()
	layout, err := c.pipelineLayout(label, groups...)
	if err != nil {
		return nil, err
	}
	defer layout.Release()
	p, err := c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compute pipeline %q: %w", label, err)
	}
	return p, nil
}

// meshVertexLayout reads Mesh.VertexBytes: position and normal as vec4 pairs.
var meshVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: 32,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 16, ShaderLocation: 1},
	},
}

func depthState(write bool) *wgpu.DepthStencilState {
	keep := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	return &wgpu.DepthStencilState{
		Format:            wgpu.TextureFormatDepth32Float,
		DepthWriteEnabled: write,
		DepthCompare:      wgpu.CompareFunctionLess,
		StencilFront:      keep,
		StencilBack:       keep,
	}
}

func depthAttachment(view *wgpu.TextureView) *wgpu.RenderPassDepthStencilAttachment {
	return &wgpu.RenderPassDepthStencilAttachment{
		View:            view,
		DepthLoadOp:     wgpu.LoadOpClear,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: 1,
	}
}

var noMultisample = wgpu.MultisampleState{
	Count: 1,
	Mask:  0xFFFFFFFF,
}
