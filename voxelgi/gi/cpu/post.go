package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/kernels"
)

const (
	edgeThreshold    = 0.125
	edgeThresholdMin = 0.0312
)

// PostProcess composes direct, indirect and sky light, tonemaps, and
// antialiases on the CPU device. Every step is a dispatch; the orchestrator
// places the barriers between them.
type PostProcess struct {
	exec  *kernels.Executor
	gb    func() *core.GBufferImages
	hdr   *core.ColorImage
	ldr   *core.ColorImage
	final *core.ColorImage
	last  *core.ColorImage
}

// NewPostProcess reads g-buffer attachments through gb, which is consulted
// at dispatch time so a resized g-buffer is picked up.
func NewPostProcess(exec *kernels.Executor, gb func() *core.GBufferImages) *PostProcess {
	return &PostProcess{exec: exec, gb: gb}
}

func (p *PostProcess) Resize(width, height int) error {
	p.hdr = core.NewColorImage(width, height)
	p.ldr = core.NewColorImage(width, height)
	p.final = core.NewColorImage(width, height)
	return nil
}

// Last is the most recently presented image.
func (p *PostProcess) Last() *core.ColorImage { return p.last }

func asImage(s core.Surface) (*core.ColorImage, error) {
	img, ok := s.(*core.ColorImage)
	if !ok {
		return nil, fmt.Errorf("cpu: surface %T is not host-visible", s)
	}
	return img, nil
}

func (p *PostProcess) ensure(w, h int) {
	if p.hdr == nil || p.hdr.Width != w || p.hdr.Height != h {
		_ = p.Resize(w, h)
	}
}

// UnlitAndSky writes lit surfaces (direct + indirect, ambient scaled by
// visibility), unlit surfaces and the sky into the HDR target.
func (p *PostProcess) UnlitAndSky(fr *core.FrameResources, indirect core.Surface) (core.Surface, error) {
	ind, err := asImage(indirect)
	if err != nil {
		return nil, err
	}
	gb := p.gb()
	w, h := gb.Size()
	p.ensure(w, h)
	out := p.hdr
	sky := fr.Settings.SkyColor.Vec4(1)
	lights := fr.Lights
	shadow := fr.Shadow
	p.exec.DispatchItems(w*h, func(id uint32) {
		pos := gb.Position.Pix[id]
		if pos[3] == 0 {
			out.Pix[id] = sky
			return
		}
		albedo := gb.Albedo.Pix[id].Vec3()
		emissive := gb.Emissive.Pix[id].Vec3()
		nrm := gb.Normal.Pix[id]
		if nrm[3] == 0 || lights == nil {
			out.Pix[id] = albedo.Add(emissive).Vec4(1)
			return
		}
		gi := ind.Pix[id]
		n := nrm.Vec3()
		vis := shadow.Visibility(pos.Vec3())
		direct := lights.Direct(pos.Vec3(), n, vis).Sub(lights.Ambient).Add(lights.Ambient.Mul(gi[3]))
		c := mgl32.Vec3{albedo[0] * direct[0], albedo[1] * direct[1], albedo[2] * direct[2]}
		out.Pix[id] = c.Add(gi.Vec3()).Add(emissive).Vec4(1)
	})
	return out, nil
}

// Tonemap applies exposure, Reinhard and gamma 2.2.
func (p *PostProcess) Tonemap(fr *core.FrameResources, hdr core.Surface) (core.Surface, error) {
	in, err := asImage(hdr)
	if err != nil {
		return nil, err
	}
	p.ensure(in.Width, in.Height)
	out := p.ldr
	exposure := fr.Settings.Exposure
	if exposure <= 0 {
		exposure = 1
	}
	p.exec.DispatchItems(len(in.Pix), func(id uint32) {
		c := in.Pix[id]
		var o mgl32.Vec4
		for k := 0; k < 3; k++ {
			v := math32.Max(c[k]*exposure, 0)
			v = v / (1 + v)
			o[k] = math32.Pow(v, 1/2.2)
		}
		o[3] = 1
		out.Pix[id] = o
	})
	return out, nil
}

func luma(c mgl32.Vec4) float32 {
	return 0.299*c[0] + 0.587*c[1] + 0.114*c[2]
}

// Antialias blends pixels on strong luma edges with their neighbours.
func (p *PostProcess) Antialias(fr *core.FrameResources, ldr core.Surface) (core.Surface, error) {
	in, err := asImage(ldr)
	if err != nil {
		return nil, err
	}
	p.ensure(in.Width, in.Height)
	out := p.final
	w, h := in.Width, in.Height
	p.exec.DispatchItems(w*h, func(id uint32) {
		x, y := int(id)%w, int(id)/w
		at := func(dx, dy int) mgl32.Vec4 {
			return in.At(min(max(x+dx, 0), w-1), min(max(y+dy, 0), h-1))
		}
		c := at(0, 0)
		n, s, e, wst := at(0, -1), at(0, 1), at(1, 0), at(-1, 0)
		lc := luma(c)
		lmin := min(lc, luma(n), luma(s), luma(e), luma(wst))
		lmax := max(lc, luma(n), luma(s), luma(e), luma(wst))
		if lmax-lmin < max(edgeThresholdMin, lmax*edgeThreshold) {
			out.Pix[id] = c
			return
		}
		avg := n.Add(s).Add(e).Add(wst).Mul(0.25)
		out.Pix[id] = c.Mul(0.5).Add(avg.Mul(0.5))
	})
	return out, nil
}

func (p *PostProcess) Present(fr *core.FrameResources, img core.Surface) error {
	c, err := asImage(img)
	if err != nil {
		return err
	}
	p.last = c
	return nil
}
