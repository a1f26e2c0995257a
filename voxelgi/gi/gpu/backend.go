package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	opengine "github.com/otaviopeixoto1/opengine"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/barrier"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/shaders"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/volume"
)

const (
	coneWorkgroup  = 8
	resetWorkgroup = 16
)

type Options struct {
	Logger  opengine.Logger
	Tracker *barrier.Tracker
}

// Backend owns the packed volume, the sparse list and the indirect command
// buffers on the device.
type Backend struct {
	ctx     *Context
	grid    volume.Grid
	layout  volume.Layout
	tracker *barrier.Tracker
	log     opengine.Logger

	gridBuf      *wgpu.Buffer
	volumeBuf    *wgpu.Buffer
	counters     *wgpu.Buffer
	entries      *wgpu.Buffer
	drawCmds     *wgpu.Buffer
	dispatchCmds *wgpu.Buffer
	// dispatchArgs receives a copy of each dispatch record before it is
	// consumed; a buffer may not be indirect and writable storage in the
	// same dispatch.
	dispatchArgs *wgpu.Buffer
	mipBuf       *wgpu.Buffer

	stateLayout     *wgpu.BindGroupLayout // compute, read-write
	stateFragLayout *wgpu.BindGroupLayout // voxelization fragment stage
	lightingLayout  *wgpu.BindGroupLayout
	mipLayout       *wgpu.BindGroupLayout
	coneReadLayout  *wgpu.BindGroupLayout
	coneIOLayout    *wgpu.BindGroupLayout
	debugReadLayout *wgpu.BindGroupLayout

	stateGroup     *wgpu.BindGroup
	stateFragGroup *wgpu.BindGroup
	mipGroup       *wgpu.BindGroup
	coneReadGroup  *wgpu.BindGroup
	debugReadGroup *wgpu.BindGroup

	resetPipe    *wgpu.ComputePipeline
	voxelizePipe *wgpu.RenderPipeline
	mipPipe      *wgpu.ComputePipeline
	conePipe     *wgpu.ComputePipeline
	debugPipe    *wgpu.RenderPipeline

	dummy      *Target // R x R voxelization target, never written
	indirect   *Target
	debugColor *Target
	debugDepth *Target
}

// New allocates the device structures for grid. On failure everything
// allocated so far is released.
func New(ctx *Context, grid volume.Grid, capacity uint32, opts Options) (b *Backend, err error) {
	layout, err := volume.NewLayout(grid.NumMips, capacity)
	if err != nil {
		return nil, fmt.Errorf("gpu: sparse layout: %w", err)
	}
	b = &Backend{
		ctx:     ctx,
		grid:    grid,
		layout:  layout,
		tracker: opts.Tracker,
		log:     opengine.OrNop(opts.Logger),
	}
	if b.tracker == nil {
		b.tracker = barrier.NewTracker()
	}
	defer func() {
		if err != nil {
			b.Close()
			b = nil
		}
	}()
	if err = b.allocate(); err != nil {
		return
	}
	if err = b.createLayouts(); err != nil {
		return
	}
	if err = b.createPipelines(); err != nil {
		return
	}
	if err = b.createGroups(); err != nil {
		return
	}
	r := grid.Resolution
	b.dummy, err = newTarget(ctx.Device, "Voxelize Target", r, r, wgpu.TextureFormatR8Unorm, wgpu.TextureUsageRenderAttachment)
	if err != nil {
		return
	}
	b.log.Debugf("gpu device: %d^3 voxels, %d mips, capacity %d, first instance %v",
		grid.Resolution, grid.NumMips, capacity, ctx.FirstInstance)
	return b, nil
}

func (b *Backend) allocate() error {
	ctx := b.ctx
	gridData, err := GridParams(b.grid, b.layout, ctx.FirstInstance)
	if err != nil {
		return err
	}
	words := LevelWordOffsets(b.grid)
	total := int(words[len(words)-1]) * 4
	cmds := volume.NewCommandSet(b.layout)
	allocs := []struct {
		name  string
		buf   **wgpu.Buffer
		data  []byte
		usage wgpu.BufferUsage
	}{
		{"Grid Uniform", &b.gridBuf, gridData, wgpu.BufferUsageUniform},
		{"Voxel Volume", &b.volumeBuf, make([]byte, total), wgpu.BufferUsageStorage},
		{"Sparse Counters", &b.counters, make([]byte, volume.MaxLevels*4), wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc},
		{"Sparse Entries", &b.entries, make([]byte, int(b.layout.Capacity())*4), wgpu.BufferUsageStorage},
		{"Draw Commands", &b.drawCmds, cmds.DrawBytes(ctx.FirstInstance), wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect},
		{"Dispatch Commands", &b.dispatchCmds, cmds.DispatchBytes(), wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc},
		{"Dispatch Args", &b.dispatchArgs, cmds.DispatchBytes(), wgpu.BufferUsageIndirect},
		{"Mip Uniform", &b.mipBuf, MipParams(b.grid.NumMips), wgpu.BufferUsageUniform},
	}
	for _, a := range allocs {
		if _, err := ctx.ensureBuffer(a.name, a.buf, a.data, a.usage, 0); err != nil {
			return fmt.Errorf("%w: %w", volume.ErrAllocation, err)
		}
	}
	return nil
}

func stateEntries(uniformVis, storageVis wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		uniformEntry(0, uniformVis, GridBlockSize, false),
		storageEntry(1, storageVis, false),
		storageEntry(2, storageVis, false),
		storageEntry(3, storageVis, false),
		storageEntry(4, storageVis, false),
		storageEntry(5, storageVis, false),
	}
}

func (b *Backend) createLayouts() error {
	ctx := b.ctx
	compute := wgpu.ShaderStageCompute
	vf := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	var err error
	if b.stateLayout, err = ctx.bindGroupLayout("Voxel State BGL", stateEntries(compute, compute)...); err != nil {
		return err
	}
	if b.stateFragLayout, err = ctx.bindGroupLayout("Voxelize State BGL", stateEntries(vf, wgpu.ShaderStageFragment)...); err != nil {
		return err
	}
	b.lightingLayout, err = ctx.bindGroupLayout("Voxelize Lighting BGL",
		uniformEntry(0, vf, FrameBlockSize, false),
		uniformEntry(1, vf, core.LightBlockSize, false),
		textureEntry(2, wgpu.ShaderStageFragment),
		pointSamplerEntry(3, wgpu.ShaderStageFragment),
	)
	if err != nil {
		return err
	}
	if b.mipLayout, err = ctx.bindGroupLayout("Mip Level BGL", uniformEntry(0, compute, 16, true)); err != nil {
		return err
	}
	b.coneReadLayout, err = ctx.bindGroupLayout("Cone Volume BGL",
		uniformEntry(0, compute, GridBlockSize, false),
		storageEntry(1, compute, true),
	)
	if err != nil {
		return err
	}
	b.coneIOLayout, err = ctx.bindGroupLayout("Cone IO BGL",
		uniformEntry(0, compute, FrameBlockSize, false),
		textureEntry(1, compute),
		textureEntry(2, compute),
		textureEntry(3, compute),
		storageTextureEntry(4, wgpu.TextureFormatRGBA16Float),
	)
	if err != nil {
		return err
	}
	b.debugReadLayout, err = ctx.bindGroupLayout("Debug Voxel BGL",
		uniformEntry(0, wgpu.ShaderStageVertex, GridBlockSize, false),
		storageEntry(1, wgpu.ShaderStageVertex, true),
		storageEntry(3, wgpu.ShaderStageVertex, true),
	)
	return err
}

func (b *Backend) createPipelines() error {
	ctx := b.ctx
	var err error
	if b.resetPipe, err = ctx.computePipeline("Indirect Reset", shaders.IndirectResetWGSL, b.stateLayout); err != nil {
		return err
	}
	if b.mipPipe, err = ctx.computePipeline("Mip Build", shaders.MipmapWGSL, b.stateLayout, b.mipLayout); err != nil {
		return err
	}
	if b.conePipe, err = ctx.computePipeline("Cone Trace", shaders.ConeTraceWGSL, b.coneReadLayout, b.coneIOLayout); err != nil {
		return err
	}

	vox, err := ctx.shaderModule("Voxelize", shaders.VoxelizeWGSL)
	if err != nil {
		return err
	}
	defer vox.Release()
	voxLayout, err := ctx.pipelineLayout("Voxelize", b.stateFragLayout, b.lightingLayout, ctx.ObjectLayout)
	if err != nil {
		return err
	}
	defer voxLayout.Release()
	b.voxelizePipe, err = ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Voxelize Pipeline",
		Layout: voxLayout,
		Vertex: wgpu.VertexState{
			Module:     vox,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{meshVertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     vox,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatR8Unorm,
				WriteMask: wgpu.ColorWriteMaskNone,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			CullMode: wgpu.CullModeNone,
		},
		Multisample: noMultisample,
	})
	if err != nil {
		return fmt.Errorf("gpu: voxelize pipeline: %w", err)
	}

	dbg, err := ctx.shaderModule("Voxel Debug", shaders.VoxelDebugWGSL)
	if err != nil {
		return err
	}
	defer dbg.Release()
	dbgLayout, err := ctx.pipelineLayout("Voxel Debug", b.debugReadLayout, ctx.FrameLayout)
	if err != nil {
		return err
	}
	defer dbgLayout.Release()
	b.debugPipe, err = ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Voxel Debug Pipeline",
		Layout: dbgLayout,
		Vertex: wgpu.VertexState{
			Module:     dbg,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     dbg,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatRGBA8Unorm,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			CullMode: wgpu.CullModeNone,
		},
		DepthStencil: depthState(true),
		Multisample:  noMultisample,
	})
	if err != nil {
		return fmt.Errorf("gpu: voxel debug pipeline: %w", err)
	}
	return nil
}

func (b *Backend) stateBindings() []wgpu.BindGroupEntry {
	return []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: b.gridBuf, Size: GridBlockSize},
		{Binding: 1, Buffer: b.volumeBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: b.counters, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: b.entries, Size: wgpu.WholeSize},
		{Binding: 4, Buffer: b.drawCmds, Size: wgpu.WholeSize},
		{Binding: 5, Buffer: b.dispatchCmds, Size: wgpu.WholeSize},
	}
}

func (b *Backend) createGroups() error {
	dev := b.ctx.Device
	groups := []struct {
		label   string
		dst     **wgpu.BindGroup
		layout  *wgpu.BindGroupLayout
		entries []wgpu.BindGroupEntry
	}{
		{"Voxel State BG", &b.stateGroup, b.stateLayout, b.stateBindings()},
		{"Voxelize State BG", &b.stateFragGroup, b.stateFragLayout, b.stateBindings()},
		{"Mip Level BG", &b.mipGroup, b.mipLayout, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.mipBuf, Size: 16},
		}},
		{"Cone Volume BG", &b.coneReadGroup, b.coneReadLayout, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.gridBuf, Size: GridBlockSize},
			{Binding: 1, Buffer: b.volumeBuf, Size: wgpu.WholeSize},
		}},
		{"Debug Voxel BG", &b.debugReadGroup, b.debugReadLayout, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.gridBuf, Size: GridBlockSize},
			{Binding: 1, Buffer: b.volumeBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: b.entries, Size: wgpu.WholeSize},
		}},
	}
	for _, g := range groups {
		bg, err := dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   g.label,
			Layout:  g.layout,
			Entries: g.entries,
		})
		if err != nil {
			return fmt.Errorf("gpu: %s: %w", g.label, err)
		}
		*g.dst = bg
	}
	return nil
}

func (b *Backend) Name() string { return "webgpu" }

func (b *Backend) Grid() volume.Grid         { return b.grid }
func (b *Backend) Layout() volume.Layout     { return b.layout }
func (b *Backend) Tracker() *barrier.Tracker { return b.tracker }
func (b *Backend) Context() *Context         { return b.ctx }

// Barrier records s. The passes it separates are already distinct render or
// compute passes, which the device orders.
func (b *Backend) Barrier(s barrier.Scope) error {
	b.tracker.Barrier(s)
	return nil
}

// Resize reallocates the indirect-light and debug attachments. Voxel
// resources are not touched.
func (b *Backend) Resize(width, height int) error {
	dev := b.ctx.Device
	indirect, err := newTarget(dev, "Indirect Light", width, height, wgpu.TextureFormatRGBA16Float,
		wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding)
	if err != nil {
		return err
	}
	color, err := newTarget(dev, "Voxel Debug Color", width, height, wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc)
	if err != nil {
		indirect.Release()
		return err
	}
	depth, err := newTarget(dev, "Voxel Debug Depth", width, height, wgpu.TextureFormatDepth32Float, wgpu.TextureUsageRenderAttachment)
	if err != nil {
		indirect.Release()
		color.Release()
		return err
	}
	b.indirect.Release()
	b.debugColor.Release()
	b.debugDepth.Release()
	b.indirect, b.debugColor, b.debugDepth = indirect, color, depth
	return nil
}

// Clear empties every level with a buffer clear and resets the counters and
// command records.
func (b *Backend) Clear(fr *core.FrameResources) error {
	b.ctx.PrepareFrame(fr)
	b.tracker.Run(barrier.Pass{Stage: barrier.StageClear})
	enc, err := b.ctx.Encoder()
	if err != nil {
		return err
	}
	enc.ClearBuffer(b.volumeBuf, 0, b.volumeBuf.GetSize())
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(b.resetPipe)
	pass.SetBindGroup(0, b.stateGroup, nil)
	pass.DispatchWorkgroups((volume.MaxLevels+resetWorkgroup-1)/resetWorkgroup, 1, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: clear pass: %w", err)
	}
	return b.Barrier(barrier.ImageAccess | barrier.StorageAccess)
}

func (b *Backend) lightingGroup(fr *core.FrameResources) (*wgpu.BindGroup, error) {
	shadow := b.ctx.EmptyShadow
	if t, ok := fr.Shadow.Map.(*Target); ok && t != nil {
		shadow = t
	}
	return b.ctx.BindGroup("Voxelize Lighting BG", b.lightingLayout,
		wgpu.BindGroupEntry{Binding: 0, Buffer: b.ctx.frameBuf, Size: FrameBlockSize},
		wgpu.BindGroupEntry{Binding: 1, Buffer: b.ctx.lightsBuf, Size: core.LightBlockSize},
		wgpu.BindGroupEntry{Binding: 2, TextureView: shadow.View},
		wgpu.BindGroupEntry{Binding: 3, Sampler: b.ctx.PointSampler},
	)
}

// Voxelize draws every lit object overlapping the volume in its own render
// pass, three instances per draw, one per projection axis.
func (b *Backend) Voxelize(fr *core.FrameResources) error {
	b.ctx.PrepareFrame(fr)
	enc, err := b.ctx.Encoder()
	if err != nil {
		return err
	}
	lighting, err := b.lightingGroup(fr)
	if err != nil {
		return err
	}
	bounds := [2]mgl32.Vec3{b.grid.Min(), b.grid.Max()}
	draws := 0
	fr.Scene.Each(func(item core.DrawItem) bool {
		if !item.Material.Lit || item.IndexCount < 3 {
			return true
		}
		if !core.AABBOverlaps(core.TransformAABB(item.Mesh.Bounds(), item.ObjectToWorld), bounds) {
			return true
		}
		b.tracker.Run(barrier.Pass{Stage: barrier.StageVoxelizeDraw, Index: draws})
		pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: "Voxelize",
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:    b.dummy.View,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpDiscard,
			}},
		})
		pass.SetPipeline(b.voxelizePipe)
		pass.SetBindGroup(0, b.stateFragGroup, nil)
		pass.SetBindGroup(1, lighting, nil)
		err = b.ctx.Objects.Draw(pass, 2, item, fr.Index, 3)
		if endErr := pass.End(); err == nil && endErr != nil {
			err = fmt.Errorf("gpu: voxelize pass: %w", endErr)
		}
		if err != nil {
			return false
		}
		draws++
		err = b.Barrier(barrier.ImageAccess)
		return err == nil
	})
	if err != nil {
		return err
	}
	b.log.Debugf("voxelize: %d draws", draws)
	return b.Barrier(barrier.All)
}

// BuildMips runs one indirect dispatch per level, each in its own compute
// pass. Level L consumes dispatch record L and produces record L+1.
func (b *Backend) BuildMips(fr *core.FrameResources) error {
	enc, err := b.ctx.Encoder()
	if err != nil {
		return err
	}
	for level := 0; level < b.grid.NumMips; level++ {
		b.tracker.Run(barrier.Pass{Stage: barrier.StageMipLevel, Index: level})
		off := uint64(level * volume.DispatchCommandSize)
		enc.CopyBufferToBuffer(b.dispatchCmds, off, b.dispatchArgs, off, volume.DispatchCommandSize)
		pass := enc.BeginComputePass(nil)
		pass.SetPipeline(b.mipPipe)
		pass.SetBindGroup(0, b.stateGroup, nil)
		pass.SetBindGroup(1, b.mipGroup, []uint32{uint32(level * MipBlockStride)})
		pass.DispatchWorkgroupsIndirect(b.dispatchArgs, off)
		if err := pass.End(); err != nil {
			return fmt.Errorf("gpu: mip level %d: %w", level, err)
		}
		if level < b.grid.NumMips-1 {
			if err := b.Barrier(barrier.ImageAccess | barrier.StorageAccess | barrier.Command); err != nil {
				return err
			}
		}
	}
	return b.Barrier(barrier.TextureFetch)
}

// DrawVoxels draws the occupied cells of one level as cubes through the
// level's indirect draw record.
func (b *Backend) DrawVoxels(fr *core.FrameResources, level int) (core.Surface, error) {
	if b.debugColor == nil {
		return nil, fmt.Errorf("gpu: DrawVoxels before Resize")
	}
	level = min(max(level, 0), b.grid.NumMips)
	if err := b.Barrier(barrier.StorageAccess | barrier.Command); err != nil {
		return nil, err
	}
	b.tracker.Run(barrier.Pass{Stage: barrier.StageDebugVoxels, Index: level})
	b.ctx.PrepareFrame(fr)
	b.ctx.SetDebugLevel(level)
	enc, err := b.ctx.Encoder()
	if err != nil {
		return nil, err
	}
	sky := fr.Settings.SkyColor
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Voxel Debug",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       b.debugColor.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(sky[0]), G: float64(sky[1]), B: float64(sky[2]), A: 1},
		}},
		DepthStencilAttachment: depthAttachment(b.debugDepth.View),
	})
	pass.SetPipeline(b.debugPipe)
	pass.SetBindGroup(0, b.debugReadGroup, nil)
	pass.SetBindGroup(1, b.ctx.FrameGroup, nil)
	pass.DrawIndirect(b.drawCmds, uint64(level*volume.DrawCommandSize))
	if err := pass.End(); err != nil {
		return nil, fmt.Errorf("gpu: voxel debug pass: %w", err)
	}
	return b.debugColor, nil
}

// ConeTrace launches the integrator over the g-buffer. Its output is read
// by the next pass.
func (b *Backend) ConeTrace(fr *core.FrameResources) (core.Surface, error) {
	gb, ok := fr.GBuffer.(*GBufferTargets)
	if !ok || gb == nil {
		return nil, fmt.Errorf("gpu: g-buffer %T is not on the device", fr.GBuffer)
	}
	w, h := gb.Size()
	if b.indirect == nil || b.indirect.Width != w || b.indirect.Height != h {
		if err := b.Resize(w, h); err != nil {
			return nil, err
		}
	}
	b.ctx.PrepareFrame(fr)
	io, err := b.ctx.BindGroup("Cone IO BG", b.coneIOLayout,
		wgpu.BindGroupEntry{Binding: 0, Buffer: b.ctx.frameBuf, Size: FrameBlockSize},
		wgpu.BindGroupEntry{Binding: 1, TextureView: gb.Albedo.View},
		wgpu.BindGroupEntry{Binding: 2, TextureView: gb.Normal.View},
		wgpu.BindGroupEntry{Binding: 3, TextureView: gb.Position.View},
		wgpu.BindGroupEntry{Binding: 4, TextureView: b.indirect.View},
	)
	if err != nil {
		return nil, err
	}
	enc, err := b.ctx.Encoder()
	if err != nil {
		return nil, err
	}
	b.tracker.Run(barrier.Pass{Stage: barrier.StageConeTrace})
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(b.conePipe)
	pass.SetBindGroup(0, b.coneReadGroup, nil)
	pass.SetBindGroup(1, io, nil)
	pass.DispatchWorkgroups(uint32(w+coneWorkgroup-1)/coneWorkgroup, uint32(h+coneWorkgroup-1)/coneWorkgroup, 1)
	if err := pass.End(); err != nil {
		return nil, fmt.Errorf("gpu: cone trace pass: %w", err)
	}
	return b.indirect, nil
}

// Counts reads the per-level counters back. It stalls until the device is
// idle and is only valid between frames.
func (b *Backend) Counts() ([]uint32, error) {
	data, err := b.ctx.ReadBuffer(b.counters, 0, uint64(b.layout.Levels()*4))
	if err != nil {
		return nil, err
	}
	return readCounts(data, b.layout.Levels()), nil
}

// Close releases every device object the backend created. The context is
// owned by the caller.
func (b *Backend) Close() error {
	for _, t := range []*Target{b.dummy, b.indirect, b.debugColor, b.debugDepth} {
		t.Release()
	}
	b.dummy, b.indirect, b.debugColor, b.debugDepth = nil, nil, nil, nil
	for _, p := range []*wgpu.ComputePipeline{b.resetPipe, b.mipPipe, b.conePipe} {
		if p != nil {
			p.Release()
		}
	}
	for _, p := range []*wgpu.RenderPipeline{b.voxelizePipe, b.debugPipe} {
		if p != nil {
			p.Release()
		}
	}
	for _, g := range []*wgpu.BindGroup{b.stateGroup, b.stateFragGroup, b.mipGroup, b.coneReadGroup, b.debugReadGroup} {
		if g != nil {
			g.Release()
		}
	}
	for _, l := range []*wgpu.BindGroupLayout{b.stateLayout, b.stateFragLayout, b.lightingLayout, b.mipLayout, b.coneReadLayout, b.coneIOLayout, b.debugReadLayout} {
		if l != nil {
			l.Release()
		}
	}
	for _, buf := range []*wgpu.Buffer{b.gridBuf, b.volumeBuf, b.counters, b.entries, b.drawCmds, b.dispatchCmds, b.dispatchArgs, b.mipBuf} {
		if buf != nil {
			buf.Release()
		}
	}
	b.resetPipe, b.mipPipe, b.conePipe, b.voxelizePipe, b.debugPipe = nil, nil, nil, nil, nil
	b.stateGroup, b.stateFragGroup, b.mipGroup, b.coneReadGroup, b.debugReadGroup = nil, nil, nil, nil, nil
	b.gridBuf, b.volumeBuf, b.counters, b.entries, b.drawCmds, b.dispatchCmds, b.dispatchArgs, b.mipBuf = nil, nil, nil, nil, nil, nil, nil, nil
	return nil
}
