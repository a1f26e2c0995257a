package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeMesh(t *testing.T) {
	m := NewCubeMesh()
	assert.Equal(t, 24, m.VertexCount())
	assert.Equal(t, 36, m.IndexCount())

	b := m.Bounds()
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, -0.5}, b[0])
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0.5}, b[1])

	// Counter-clockwise winding seen from outside.
	for i := 0; i < m.TriangleCount(); i++ {
		a, bi, c := m.Triangle(i)
		pa, pb, pc := m.Positions[a], m.Positions[bi], m.Positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa)).Normalize()
		assert.InDelta(t, 1, n.Dot(m.Normals[a]), 1e-5, "triangle %d", i)
	}
	assert.Len(t, m.VertexBytes(), 24*32)
	assert.Len(t, m.IndexBytes(), 36*4)
}

func TestPlaneMesh(t *testing.T) {
	m := NewPlaneMesh(4)
	assert.Equal(t, 25, m.VertexCount())
	assert.Equal(t, 4*4*6, m.IndexCount())
	assert.Equal(t, 2, NewPlaneMesh(0).TriangleCount())
}

func TestSceneEachAndRemove(t *testing.T) {
	s := NewScene()
	a := NewSceneObject("a", NewCubeMesh(), DefaultMaterial())
	b := NewSceneObject("b", NewPlaneMesh(1), DefaultMaterial())
	s.AddObject(a)
	s.AddObject(b)
	s.AddObject(&SceneObject{Transform: NewTransform()}) // no mesh, skipped

	var seen []string
	s.Each(func(it DrawItem) bool {
		seen = append(seen, s.Find(it.ID).Name)
		return true
	})
	assert.Equal(t, []string{"a", "b"}, seen)

	n := 0
	s.Each(func(DrawItem) bool { n++; return false })
	assert.Equal(t, 1, n)

	assert.True(t, s.RemoveObject(a.ID))
	assert.False(t, s.RemoveObject(a.ID))
	assert.Nil(t, s.Find(a.ID))
}

func TestSceneBounds(t *testing.T) {
	s := NewScene()
	_, ok := s.Bounds()
	assert.False(t, ok)

	o := NewSceneObject("cube", NewCubeMesh(), DefaultMaterial())
	o.Transform.Position = mgl32.Vec3{2, 0, 0}
	o.Transform.Scale = mgl32.Vec3{2, 2, 2}
	s.AddObject(o)
	b, ok := s.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 1, b[0].X(), 1e-5)
	assert.InDelta(t, 3, b[1].X(), 1e-5)
}

func TestLightLimits(t *testing.T) {
	var l LightData
	for i := 0; i < MaxDirectionalLights; i++ {
		require.NoError(t, l.AddDirectional(DirectionalLight{Direction: mgl32.Vec3{0, 0, -2}}))
	}
	assert.ErrorIs(t, l.AddDirectional(DirectionalLight{}), ErrTooManyLights)
	assert.InDelta(t, 1, l.Directional[0].Direction.Len(), 1e-6)

	for i := 0; i < MaxPointLights; i++ {
		require.NoError(t, l.AddPoint(PointLight{}))
	}
	assert.ErrorIs(t, l.AddPoint(PointLight{}), ErrTooManyLights)
	assert.Len(t, l.Bytes(), LightBlockSize)

	l.Reset()
	assert.Zero(t, l.NumDirectional)
	assert.Zero(t, l.NumPoint)
}

func TestDirectLightShadowed(t *testing.T) {
	var l LightData
	require.NoError(t, l.AddDirectional(DirectionalLight{
		Direction: mgl32.Vec3{0, 0, -1},
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 2,
	}))
	up := mgl32.Vec3{0, 0, 1}
	assert.InDelta(t, 2, l.Direct(mgl32.Vec3{}, up, 1).X(), 1e-6)
	assert.InDelta(t, 0, l.Direct(mgl32.Vec3{}, up, 0).X(), 1e-6)
	// Facing away.
	assert.InDelta(t, 0, l.Direct(mgl32.Vec3{}, up.Mul(-1), 1).X(), 1e-6)
}

func TestFrustumCulling(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name     string
		min, max mgl32.Vec3
		expected bool
	}{
		{"inside", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"left", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"right", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"behind", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"far", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"straddles left plane", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AABBInFrustum([2]mgl32.Vec3{tt.min, tt.max}, planes)
			if got != tt.expected {
				t.Errorf("AABBInFrustum(%v, %v) = %v, want %v", tt.min, tt.max, got, tt.expected)
			}
		})
	}
}

func TestMomentMapVisibility(t *testing.T) {
	m := NewMomentMap(4, 4)
	m.Clear()
	uv := mgl32.Vec2{0.5, 0.5}
	assert.Equal(t, float32(1), m.Visibility(uv, 0.9))

	for i := range m.Moments {
		m.Moments[i] = mgl32.Vec2{0.3, 0.09}
	}
	assert.Equal(t, float32(1), m.Visibility(uv, 0.3))
	assert.Less(t, m.Visibility(uv, 0.8), float32(0.01))

	var so ShadowOutput
	assert.Equal(t, float32(1), so.Visibility(mgl32.Vec3{1, 2, 3}))
}

func TestCameraLookAt(t *testing.T) {
	c := NewCameraState()
	c.Position = mgl32.Vec3{0, -10, 0}
	c.LookAt(mgl32.Vec3{0, 0, 0})
	f := c.Forward()
	assert.InDelta(t, 0, f.X(), 1e-5)
	assert.InDelta(t, 1, f.Y(), 1e-5)
	assert.InDelta(t, 0, f.Z(), 1e-5)

	fr := NewFrameResources(0, c, 64, 64)
	_, dir := fr.PixelRay(32, 32)
	assert.Greater(t, dir.Y(), float32(0.99))
}

func TestNormalMatrixUndoesNonUniformScale(t *testing.T) {
	m := mgl32.Translate3D(4, 5, 6).Mul4(mgl32.Scale3D(2, 1, 0.5))
	n := NormalMatrix(m)

	// A plane tilted in x/z keeps its normal perpendicular after transform.
	tangent := mgl32.Vec3{1, 0, -1}
	normal := mgl32.Vec3{1, 0, 1}
	wt := m.Mat3().Mul3x1(tangent)
	wn := n.Mul3x1(normal)
	assert.InDelta(t, 0, wt.Dot(wn), 1e-5)

	assert.InDelta(t, 0.5, n.At(0, 0), 1e-6)
	assert.InDelta(t, 2, n.At(2, 2), 1e-6)
}
