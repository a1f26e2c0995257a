package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ColorImage is a host-side float RGBA attachment.
type ColorImage struct {
	Width, Height int
	Pix           []mgl32.Vec4
}

func NewColorImage(w, h int) *ColorImage {
	return &ColorImage{Width: w, Height: h, Pix: make([]mgl32.Vec4, w*h)}
}

func (c *ColorImage) Size() (int, int) { return c.Width, c.Height }

func (c *ColorImage) At(x, y int) mgl32.Vec4 {
	return c.Pix[y*c.Width+x]
}

func (c *ColorImage) Set(x, y int, v mgl32.Vec4) {
	c.Pix[y*c.Width+x] = v
}

func (c *ColorImage) Fill(v mgl32.Vec4) {
	for i := range c.Pix {
		c.Pix[i] = v
	}
}

// GBufferImages is the host-side g-buffer. Position.W is 1 where geometry
// was drawn; Normal.W is 1 for lit surfaces.
type GBufferImages struct {
	Albedo   *ColorImage
	Normal   *ColorImage
	Position *ColorImage
	Emissive *ColorImage
	Depth    []float32
}

func NewGBufferImages(w, h int) *GBufferImages {
	return &GBufferImages{
		Albedo:   NewColorImage(w, h),
		Normal:   NewColorImage(w, h),
		Position: NewColorImage(w, h),
		Emissive: NewColorImage(w, h),
		Depth:    make([]float32, w*h),
	}
}

func (g *GBufferImages) Size() (int, int) { return g.Albedo.Size() }

// Clear resets attachments and sets depth to the far plane.
func (g *GBufferImages) Clear() {
	g.Albedo.Fill(mgl32.Vec4{})
	g.Normal.Fill(mgl32.Vec4{})
	g.Position.Fill(mgl32.Vec4{})
	g.Emissive.Fill(mgl32.Vec4{})
	for i := range g.Depth {
		g.Depth[i] = 1
	}
}

// MomentMap is a variance shadow map storing depth and depth squared.
type MomentMap struct {
	Width, Height int
	Moments       []mgl32.Vec2
	MinVariance   float32
	BleedCut      float32
}

func NewMomentMap(w, h int) *MomentMap {
	return &MomentMap{
		Width:       w,
		Height:      h,
		Moments:     make([]mgl32.Vec2, w*h),
		MinVariance: 0.00002,
		BleedCut:    0.2,
	}
}

func (m *MomentMap) Size() (int, int) { return m.Width, m.Height }

func (m *MomentMap) Clear() {
	for i := range m.Moments {
		m.Moments[i] = mgl32.Vec2{1, 1}
	}
}

// Sample fetches bilinearly filtered moments at uv in [0,1]^2.
func (m *MomentMap) Sample(uv mgl32.Vec2) mgl32.Vec2 {
	fx := uv.X()*float32(m.Width) - 0.5
	fy := uv.Y()*float32(m.Height) - 0.5
	x0, y0 := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0, fy-y0
	at := func(x, y int) mgl32.Vec2 {
		x = clampInt(x, 0, m.Width-1)
		y = clampInt(y, 0, m.Height-1)
		return m.Moments[y*m.Width+x]
	}
	ix, iy := int(x0), int(y0)
	a := at(ix, iy).Mul(1 - tx).Add(at(ix+1, iy).Mul(tx))
	b := at(ix, iy+1).Mul(1 - tx).Add(at(ix+1, iy+1).Mul(tx))
	return a.Mul(1 - ty).Add(b.Mul(ty))
}

// Visibility applies Chebyshev's upper bound with light-bleed reduction.
func (m *MomentMap) Visibility(uv mgl32.Vec2, depth float32) float32 {
	mom := m.Sample(uv)
	if depth <= mom.X() {
		return 1
	}
	variance := math32.Max(mom.Y()-mom.X()*mom.X(), m.MinVariance)
	d := depth - mom.X()
	p := variance / (variance + d*d)
	return mgl32.Clamp((p-m.BleedCut)/(1-m.BleedCut), 0, 1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
