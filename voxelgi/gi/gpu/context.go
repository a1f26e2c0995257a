// Package gpu runs the GI passes on a WebGPU device.
//
// All passes of a frame are recorded into one command encoder owned by the
// Context and submitted when the frame is presented. Every pass is its own
// render or compute pass, and pass boundaries order the work, so the
// barrier calls of the orchestrator only reach the tracker.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
)

// Context is the device state every GPU pass shares.
type Context struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	// FirstInstance is set when indirect draws honor their first-instance field.
	FirstInstance bool

	log     opengine.Logger
	encoder *wgpu.CommandEncoder
	pending []*wgpu.BindGroup

	frameBuf  *wgpu.Buffer
	lightsBuf *wgpu.Buffer

	FrameLayout  *wgpu.BindGroupLayout // frame uniform alone
	ObjectLayout *wgpu.BindGroupLayout
	FrameGroup   *wgpu.BindGroup

	// PointSampler reads the shadow moments.
	PointSampler *wgpu.Sampler
	// EmptyShadow is bound when a frame has no shadow map.
	EmptyShadow *Target

	Objects *ObjectCache

	shadowBounds [2]mgl32.Vec3
	params       FrameParams
	prepared     bool
	frameIndex   uint64

	lightView, lightProj mgl32.Mat4
}

// NewContext sets up the shared uniforms and layouts. shadowBounds is the
// world box the shadow map is fitted to.
func NewContext(dev *wgpu.Device, shadowBounds [2]mgl32.Vec3, log opengine.Logger) (c *Context, err error) {
	c = &Context{
		Device:        dev,
		Queue:         dev.GetQueue(),
		FirstInstance: dev.HasFeature(wgpu.FeatureNameIndirectFirstInstance),
		log:           opengine.OrNop(log),
		shadowBounds:  shadowBounds,
	}
	defer func() {
		if err != nil {
			c.Release()
			c = nil
		}
	}()
	if _, err = c.ensureBuffer("Frame Uniform", &c.frameBuf, make([]byte, FrameBlockSize), wgpu.BufferUsageUniform, 0); err != nil {
		return c, err
	}
	if _, err = c.ensureBuffer("Lights Uniform", &c.lightsBuf, make([]byte, core.LightBlockSize), wgpu.BufferUsageUniform, 0); err != nil {
		return c, err
	}
	if c.FrameLayout, err = c.bindGroupLayout("Frame BGL", uniformEntry(0, visAll, FrameBlockSize, false)); err != nil {
		return c, err
	}
	vf := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if c.ObjectLayout, err = c.bindGroupLayout("Object BGL", uniformEntry(0, vf, ObjectBlockSize, false)); err != nil {
		return c, err
	}
	c.FrameGroup, err = dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Frame BG",
		Layout:  c.FrameLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: c.frameBuf, Size: FrameBlockSize}},
	})
	if err != nil {
		return c, fmt.Errorf("gpu: frame bind group: %w", err)
	}
	c.PointSampler, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Point Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeNearest,
		MagFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return c, fmt.Errorf("gpu: sampler: %w", err)
	}
	c.EmptyShadow, err = newTarget(dev, "Empty Shadow", 1, 1, wgpu.TextureFormatRG32Float, wgpu.TextureUsageTextureBinding)
	if err != nil {
		return c, err
	}
	c.Objects = NewObjectCache(dev, c.ObjectLayout)
	return c, nil
}

// ensureBuffer grows buf to fit data plus headroom and uploads data. It
// reports whether the buffer was recreated; bind groups over it are then
// stale.
func (c *Context) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) (bool, error) {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}
	current := *buf
	if current != nil && current.GetSize() >= neededSize {
		if len(data) > 0 {
			c.Queue.WriteBuffer(current, 0, data)
		}
		return false, nil
	}
	if current != nil {
		current.Release()
	}
	newBuf, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  neededSize,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		*buf = nil
		return false, fmt.Errorf("gpu: allocate %s (%d bytes): %w", name, neededSize, err)
	}
	*buf = newBuf
	if len(data) > 0 {
		c.Queue.WriteBuffer(newBuf, 0, data)
	}
	return true, nil
}

// PrepareFrame uploads the frame and light uniforms once per frame index.
// Every pass calls it first.
func (c *Context) PrepareFrame(fr *core.FrameResources) {
	if c.prepared && c.frameIndex == fr.Index {
		return
	}
	lights := fr.Lights
	if lights == nil {
		lights = &core.LightData{}
	}
	hasShadow := lights.NumDirectional > 0
	var lvp mgl32.Mat4
	if hasShadow {
		c.lightView, c.lightProj = core.LightMatrices(lights.Directional[0].Direction, c.shadowBounds)
		lvp = c.lightProj.Mul4(c.lightView)
	}
	c.params = NewFrameParams(fr, lvp, hasShadow)
	c.Queue.WriteBuffer(c.frameBuf, 0, c.params.Bytes())
	c.Queue.WriteBuffer(c.lightsBuf, 0, lights.Bytes())
	c.Objects.Sweep(fr.Index)
	c.prepared, c.frameIndex = true, fr.Index
}

// SetDebugLevel selects the pyramid level the debug view draws.
func (c *Context) SetDebugLevel(level int) {
	c.params.DebugLevel = uint32(level)
	c.Queue.WriteBuffer(c.frameBuf, 0, c.params.Bytes())
}

// LightMatrices are the shadow camera of the prepared frame.
func (c *Context) LightMatrices() (view, proj mgl32.Mat4) {
	return c.lightView, c.lightProj
}


// Encoder returns the frame's command encoder, creating it on first use.
func (c *Context) Encoder() (*wgpu.CommandEncoder, error) {
	if c.encoder != nil {
		return c.encoder, nil
	}
	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: command encoder: %w", err)
	}
	c.encoder = enc
	return enc, nil
}

// BindGroup creates a bind group that lives until the next Submit.
func (c *Context) BindGroup(label string, layout *wgpu.BindGroupLayout, entries ...wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	bg, err := c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group %q: %w", label, err)
	}
	c.pending = append(c.pending, bg)
	return bg, nil
}

// Submit finishes the recorded passes and queues them.
func (c *Context) Submit() error {
	if c.encoder == nil {
		return nil
	}
	enc := c.encoder
	c.encoder = nil
	defer enc.Release()
	cmd, err := enc.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: finish frame: %w", err)
	}
	defer cmd.Release()
	c.Queue.Submit(cmd)
	for _, bg := range c.pending {
		bg.Release()
	}
	c.pending = c.pending[:0]
	return nil
}

// ReadBuffer copies size bytes of src to the host. It submits pending work
// and blocks until the device is idle.
func (c *Context) ReadBuffer(src *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	if err := c.Submit(); err != nil {
		return nil, err
	}
	staging, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: readback buffer: %w", err)
	}
	defer staging.Release()

	enc, err := c.Encoder()
	if err != nil {
		return nil, err
	}
	enc.CopyBufferToBuffer(src, offset, staging, 0, size)
	if err := c.Submit(); err != nil {
		return nil, err
	}

	done := false
	var status wgpu.BufferMapAsyncStatus
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, done = s, true
	})
	for !done {
		c.Device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("gpu: map readback: status %v", status)
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (c *Context) Release() {
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	for _, bg := range c.pending {
		bg.Release()
	}
	c.pending = nil
	if c.Objects != nil {
		c.Objects.Release()
	}
	c.EmptyShadow.Release()
	c.EmptyShadow = nil
	if c.FrameGroup != nil {
		c.FrameGroup.Release()
	}
	for _, l := range []*wgpu.BindGroupLayout{c.FrameLayout, c.ObjectLayout} {
		if l != nil {
			l.Release()
		}
	}
	if c.PointSampler != nil {
		c.PointSampler.Release()
	}
	for _, b := range []*wgpu.Buffer{c.frameBuf, c.lightsBuf} {
		if b != nil {
			b.Release()
		}
	}
	c.FrameGroup, c.FrameLayout, c.ObjectLayout, c.PointSampler, c.frameBuf, c.lightsBuf = nil, nil, nil, nil, nil, nil
}
