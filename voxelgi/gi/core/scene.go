package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type SceneObject struct {
	ID        uuid.UUID
	Name      string
	Transform *Transform
	Material  Material
	Mesh      *Mesh
}

func NewSceneObject(name string, mesh *Mesh, mat Material) *SceneObject {
	return &SceneObject{
		ID:        uuid.New(),
		Name:      name,
		Transform: NewTransform(),
		Material:  mat,
		Mesh:      mesh,
	}
}

func (o *SceneObject) WorldAABB() [2]mgl32.Vec3 {
	return TransformAABB(o.Mesh.Bounds(), o.Transform.ObjectToWorld())
}

// DrawItem is what a pass receives per object for one frame.
type DrawItem struct {
	ID            uuid.UUID
	ObjectToWorld mgl32.Mat4
	Material      Material
	Mesh          *Mesh
	VertexCount   int
	IndexCount    int
}

// SceneIterator walks the drawable objects of a frame in a stable order.
// Returning false from fn stops the walk.
type SceneIterator interface {
	Each(fn func(item DrawItem) bool)
}

type Scene struct {
	Objects []*SceneObject
	Lights  LightData
}

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) AddObject(obj *SceneObject) {
	s.Objects = append(s.Objects, obj)
}

func (s *Scene) RemoveObject(id uuid.UUID) bool {
	for i, o := range s.Objects {
		if o.ID == id {
			s.Objects = append(s.Objects[:i], s.Objects[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scene) Find(id uuid.UUID) *SceneObject {
	for _, o := range s.Objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Scene) Each(fn func(item DrawItem) bool) {
	for _, o := range s.Objects {
		if o.Mesh == nil || o.Mesh.IndexCount() == 0 {
			continue
		}
		item := DrawItem{
			ID:            o.ID,
			ObjectToWorld: o.Transform.ObjectToWorld(),
			Material:      o.Material,
			Mesh:          o.Mesh,
			VertexCount:   o.Mesh.VertexCount(),
			IndexCount:    o.Mesh.IndexCount(),
		}
		if !fn(item) {
			return
		}
	}
}

// Bounds is the world AABB of all objects, or false for an empty scene.
func (s *Scene) Bounds() ([2]mgl32.Vec3, bool) {
	var out [2]mgl32.Vec3
	found := false
	for _, o := range s.Objects {
		if o.Mesh == nil || o.Mesh.VertexCount() == 0 {
			continue
		}
		b := o.WorldAABB()
		if !found {
			out, found = b, true
			continue
		}
		for k := 0; k < 3; k++ {
			out[0][k] = min(out[0][k], b[0][k])
			out[1][k] = max(out[1][k], b[1][k])
		}
	}
	return out, found
}
