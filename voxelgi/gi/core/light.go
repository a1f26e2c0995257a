package core

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MaxDirectionalLights = 4
	MaxPointLights       = 64

	// LightBlockSize is the std140-style byte size of LightData.Bytes.
	LightBlockSize = 16 + MaxDirectionalLights*32 + MaxPointLights*32
)

var ErrTooManyLights = errors.New("core: light limit reached")

type DirectionalLight struct {
	Direction mgl32.Vec3 // direction the light travels
	Color     mgl32.Vec3
	Intensity float32
}

type PointLight struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
}

// LightData is the fixed-size light list shared by every lighting pass.
// The first directional light casts the shadow map.
type LightData struct {
	Directional    [MaxDirectionalLights]DirectionalLight
	Point          [MaxPointLights]PointLight
	NumDirectional int
	NumPoint       int
	Ambient        mgl32.Vec3
}

func (l *LightData) AddDirectional(d DirectionalLight) error {
	if l.NumDirectional >= MaxDirectionalLights {
		return ErrTooManyLights
	}
	if d.Direction.Len() > 0 {
		d.Direction = d.Direction.Normalize()
	}
	l.Directional[l.NumDirectional] = d
	l.NumDirectional++
	return nil
}

func (l *LightData) AddPoint(p PointLight) error {
	if l.NumPoint >= MaxPointLights {
		return ErrTooManyLights
	}
	l.Point[l.NumPoint] = p
	l.NumPoint++
	return nil
}

func (l *LightData) Reset() {
	*l = LightData{Ambient: l.Ambient}
}

// Bytes packs the light list as a uniform block:
// header (numDir, numPoint, pad, pad) then vec4 pairs per light.
func (l *LightData) Bytes() []byte {
	buf := make([]byte, LightBlockSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(l.NumDirectional))
	binary.LittleEndian.PutUint32(buf[4:], uint32(l.NumPoint))
	off := 16
	put := func(v ...float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	for i := 0; i < MaxDirectionalLights; i++ {
		d := l.Directional[i]
		put(d.Direction.X(), d.Direction.Y(), d.Direction.Z(), 0)
		put(d.Color.X(), d.Color.Y(), d.Color.Z(), d.Intensity)
	}
	for i := 0; i < MaxPointLights; i++ {
		p := l.Point[i]
		put(p.Position.X(), p.Position.Y(), p.Position.Z(), p.Range)
		put(p.Color.X(), p.Color.Y(), p.Color.Z(), p.Intensity)
	}
	return buf
}

// Direct evaluates Lambertian direct light at a surface point. The shadow
// factor applies to the first directional light only.
func (l *LightData) Direct(pos, normal mgl32.Vec3, shadow float32) mgl32.Vec3 {
	out := l.Ambient
	for i := 0; i < l.NumDirectional; i++ {
		d := l.Directional[i]
		ndl := normal.Dot(d.Direction.Mul(-1))
		if ndl <= 0 {
			continue
		}
		vis := float32(1)
		if i == 0 {
			vis = shadow
		}
		out = out.Add(d.Color.Mul(d.Intensity * ndl * vis))
	}
	for i := 0; i < l.NumPoint; i++ {
		p := l.Point[i]
		toLight := p.Position.Sub(pos)
		dist := toLight.Len()
		if dist == 0 || (p.Range > 0 && dist > p.Range) {
			continue
		}
		ndl := normal.Dot(toLight.Mul(1 / dist))
		if ndl <= 0 {
			continue
		}
		atten := 1 / (1 + dist*dist)
		if p.Range > 0 {
			f := 1 - dist/p.Range
			atten *= f * f
		}
		out = out.Add(p.Color.Mul(p.Intensity * ndl * atten))
	}
	return out
}
