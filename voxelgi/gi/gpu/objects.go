package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
)

// evictAfter is how many frames an object or mesh may go unseen before its
// device buffers are released.
const evictAfter = 120

type meshBuffers struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
	seen       uint64
}

type objectEntry struct {
	uniform *wgpu.Buffer
	group   *wgpu.BindGroup
	written uint64
	seen    uint64
}

// ObjectCache keeps per-mesh vertex/index buffers and per-object uniforms.
// Objects are keyed by their scene ID, meshes by identity.
type ObjectCache struct {
	device  *wgpu.Device
	queue   *wgpu.Queue
	layout  *wgpu.BindGroupLayout
	meshes  map[*core.Mesh]*meshBuffers
	objects map[uuid.UUID]*objectEntry
}

func NewObjectCache(dev *wgpu.Device, layout *wgpu.BindGroupLayout) *ObjectCache {
	return &ObjectCache{
		device:  dev,
		queue:   dev.GetQueue(),
		layout:  layout,
		meshes:  make(map[*core.Mesh]*meshBuffers),
		objects: make(map[uuid.UUID]*objectEntry),
	}
}

func (c *ObjectCache) upload(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := uint64(len(data)+3) &^ 3
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  max(size, 4),
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: %s: %w", label, err)
	}
	if len(data) > 0 {
		c.queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

func (c *ObjectCache) mesh(m *core.Mesh, frame uint64) (*meshBuffers, error) {
	if mb, ok := c.meshes[m]; ok {
		mb.seen = frame
		return mb, nil
	}
	vb, err := c.upload("Mesh VB", m.VertexBytes(), wgpu.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	ib, err := c.upload("Mesh IB", m.IndexBytes(), wgpu.BufferUsageIndex)
	if err != nil {
		vb.Release()
		return nil, err
	}
	mb := &meshBuffers{vertex: vb, index: ib, indexCount: uint32(m.IndexCount()), seen: frame}
	c.meshes[m] = mb
	return mb, nil
}

// object returns the item's bind group, uploading its parameters once per
// frame.
func (c *ObjectCache) object(item core.DrawItem, frame uint64) (*wgpu.BindGroup, error) {
	e, ok := c.objects[item.ID]
	if !ok {
		buf, err := c.upload("Object Uniform", make([]byte, ObjectBlockSize), wgpu.BufferUsageUniform)
		if err != nil {
			return nil, err
		}
		bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   "Object BG",
			Layout:  c.layout,
			Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Size: ObjectBlockSize}},
		})
		if err != nil {
			buf.Release()
			return nil, fmt.Errorf("gpu: object bind group: %w", err)
		}
		e = &objectEntry{uniform: buf, group: bg}
		c.objects[item.ID] = e
	}
	if !ok || e.written != frame {
		c.queue.WriteBuffer(e.uniform, 0, ObjectParams(item))
		e.written = frame
	}
	e.seen = frame
	return e.group, nil
}

// Draw binds the item at group and issues an indexed draw of instances.
func (c *ObjectCache) Draw(pass *wgpu.RenderPassEncoder, group uint32, item core.DrawItem, frame uint64, instances uint32) error {
	mb, err := c.mesh(item.Mesh, frame)
	if err != nil {
		return err
	}
	bg, err := c.object(item, frame)
	if err != nil {
		return err
	}
	pass.SetBindGroup(group, bg, nil)
	pass.SetVertexBuffer(0, mb.vertex, 0, mb.vertex.GetSize())
	pass.SetIndexBuffer(mb.index, wgpu.IndexFormatUint32, 0, mb.index.GetSize())
	pass.DrawIndexed(mb.indexCount, instances, 0, 0, 0)
	return nil
}

// Sweep releases entries not drawn in the last evictAfter frames.
func (c *ObjectCache) Sweep(frame uint64) {
	if frame < evictAfter {
		return
	}
	limit := frame - evictAfter
	for id, e := range c.objects {
		if e.seen < limit {
			e.group.Release()
			e.uniform.Release()
			delete(c.objects, id)
		}
	}
	for m, mb := range c.meshes {
		if mb.seen < limit {
			mb.vertex.Release()
			mb.index.Release()
			delete(c.meshes, m)
		}
	}
}

func (c *ObjectCache) Len() (objects, meshes int) {
	return len(c.objects), len(c.meshes)
}

func (c *ObjectCache) Release() {
	for id, e := range c.objects {
		e.group.Release()
		e.uniform.Release()
		delete(c.objects, id)
	}
	for m, mb := range c.meshes {
		mb.vertex.Release()
		mb.index.Release()
		delete(c.meshes, m)
	}
}
