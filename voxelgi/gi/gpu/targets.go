package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Target is a device texture with its default view. It is the Surface the
// GPU passes hand to each other.
type Target struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Format  wgpu.TextureFormat
	Width   int
	Height  int
}

func (t *Target) Size() (int, int) { return t.Width, t.Height }

func (t *Target) Release() {
	if t == nil {
		return
	}
	if t.View != nil {
		t.View.Release()
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
}

func newTarget(dev *wgpu.Device, label string, w, h int, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*Target, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("gpu: %s: invalid size %dx%d", label, w, h)
	}
	tex, err := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("gpu: %s view: %w", label, err)
	}
	return &Target{Texture: tex, View: view, Format: format, Width: w, Height: h}, nil
}

// asTarget unwraps a surface produced by a GPU pass.
func asTarget(s any) (*Target, error) {
	t, ok := s.(*Target)
	if !ok || t == nil {
		return nil, fmt.Errorf("gpu: surface %T is not a device texture", s)
	}
	return t, nil
}

// GBufferTargets are the geometry pass attachments.
type GBufferTargets struct {
	Albedo   *Target // rgba8unorm
	Normal   *Target // rgba16float, w = lit
	Position *Target // rgba32float, w = covered
	Emissive *Target // rgba16float
	Depth    *Target
}

func (g *GBufferTargets) Size() (int, int) { return g.Albedo.Size() }

func (g *GBufferTargets) Release() {
	if g == nil {
		return
	}
	for _, t := range []*Target{g.Albedo, g.Normal, g.Position, g.Emissive, g.Depth} {
		t.Release()
	}
}

func newGBufferTargets(dev *wgpu.Device, w, h int) (*GBufferTargets, error) {
	color := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	specs := []struct {
		label  string
		format wgpu.TextureFormat
		usage  wgpu.TextureUsage
	}{
		{"GBuffer Albedo", wgpu.TextureFormatRGBA8Unorm, color},
		{"GBuffer Normal", wgpu.TextureFormatRGBA16Float, color},
		{"GBuffer Position", wgpu.TextureFormatRGBA32Float, color},
		{"GBuffer Emissive", wgpu.TextureFormatRGBA16Float, color},
		{"GBuffer Depth", wgpu.TextureFormatDepth32Float, wgpu.TextureUsageRenderAttachment},
	}
	out := make([]*Target, len(specs))
	for i, s := range specs {
		t, err := newTarget(dev, s.label, w, h, s.format, s.usage)
		if err != nil {
			for _, made := range out[:i] {
				made.Release()
			}
			return nil, err
		}
		out[i] = t
	}
	return &GBufferTargets{Albedo: out[0], Normal: out[1], Position: out[2], Emissive: out[3], Depth: out[4]}, nil
}
