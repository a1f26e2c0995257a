package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Surface is any device image a pass hands to the next one.
type Surface interface {
	Size() (width, height int)
}

// GBuffer exposes the color/normal/position attachments of the geometry pass.
type GBuffer interface {
	Surface
}

// ShadowSampler is implemented by shadow maps the host can sample directly.
type ShadowSampler interface {
	Surface
	Visibility(uv mgl32.Vec2, depth float32) float32
}

// ShadowOutput is a depth/variance texture plus its light-space matrices.
type ShadowOutput struct {
	Map                 Surface
	LightView           mgl32.Mat4
	LightProjection     mgl32.Mat4
	LightViewProjection mgl32.Mat4
}

// Visibility returns the lit fraction of a world position; 1 when there is
// no host-sampleable map.
func (s *ShadowOutput) Visibility(p mgl32.Vec3) float32 {
	sm, ok := s.Map.(ShadowSampler)
	if !ok || sm == nil {
		return 1
	}
	clip := s.LightViewProjection.Mul4x1(p.Vec4(1))
	if clip.W() == 0 {
		return 1
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	uv := mgl32.Vec2{ndc.X()*0.5 + 0.5, 0.5 - ndc.Y()*0.5}
	if uv.X() < 0 || uv.X() > 1 || uv.Y() < 0 || uv.Y() > 1 {
		return 1
	}
	return sm.Visibility(uv, ndc.Z()*0.5+0.5)
}

type GISettings struct {
	AODistance      float32
	MaxConeDistance float32
	AccumThreshold  float32
	StepFactor      float32
	Exposure        float32
	SkyColor        mgl32.Vec3
}

// FrameResources is the per-frame bundle every pass reads. The orchestrator
// fills Shadow and GBuffer as their passes finish and treats the bundle as
// read-only from the voxelization pass on.
type FrameResources struct {
	Index             uint64
	View              mgl32.Mat4
	Projection        mgl32.Mat4
	ViewProjection    mgl32.Mat4
	InvViewProjection mgl32.Mat4
	CameraPosition    mgl32.Vec3
	Width, Height     int

	Lights   *LightData
	Scene    SceneIterator
	GBuffer  GBuffer
	Shadow   ShadowOutput
	Settings GISettings
}

func NewFrameResources(index uint64, cam *CameraState, width, height int) *FrameResources {
	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix(float32(width) / float32(max(height, 1)))
	vp := proj.Mul4(view)
	return &FrameResources{
		Index:             index,
		View:              view,
		Projection:        proj,
		ViewProjection:    vp,
		InvViewProjection: vp.Inv(),
		CameraPosition:    cam.Position,
		Width:             width,
		Height:            height,
	}
}

// PixelRay returns the world-space ray through the center of pixel (x, y).
func (f *FrameResources) PixelRay(x, y int) (origin, dir mgl32.Vec3) {
	ndcX := (float32(x)+0.5)/float32(f.Width)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(f.Height)*2
	far := f.InvViewProjection.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	farP := far.Vec3().Mul(1 / far.W())
	return f.CameraPosition, farP.Sub(f.CameraPosition).Normalize()
}
