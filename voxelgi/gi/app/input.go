package app

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/pipeline"
)

// Input collects window events between frames. Movement keys are held
// state; toggles are consumed once by the next Update.
type Input struct {
	Captured bool

	forward, back, left, right, up, down bool

	lastX, lastY float64
	hasLast      bool
	dx, dy       float32

	toggleVoxels bool
	levelDelta   int
	stats        bool
	quit         bool
}

// HandleKey maps WASD/QE to movement, V to the voxel view, [ and ] to the
// inspected mip level, P to a stats dump and Tab to mouse capture.
func (in *Input) HandleKey(key glfw.Key, action glfw.Action) {
	held := action != glfw.Release
	switch key {
	case glfw.KeyW:
		in.forward = held
	case glfw.KeyS:
		in.back = held
	case glfw.KeyA:
		in.left = held
	case glfw.KeyD:
		in.right = held
	case glfw.KeyE:
		in.up = held
	case glfw.KeyQ:
		in.down = held
	}
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyV:
		in.toggleVoxels = !in.toggleVoxels
	case glfw.KeyLeftBracket:
		in.levelDelta--
	case glfw.KeyRightBracket:
		in.levelDelta++
	case glfw.KeyP:
		in.stats = true
	case glfw.KeyTab:
		in.Captured = !in.Captured
		in.hasLast = false
	case glfw.KeyEscape:
		in.quit = true
	}
}

func (in *Input) HandleCursor(x, y float64) {
	if in.Captured && in.hasLast {
		in.dx += float32(x - in.lastX)
		in.dy += float32(y - in.lastY)
	}
	in.lastX, in.lastY = x, y
	in.hasLast = true
}

func axis(pos, neg bool) float32 {
	switch {
	case pos && !neg:
		return 1
	case neg && !pos:
		return -1
	}
	return 0
}

// Apply moves and turns cam and clears the accumulated mouse motion.
func (in *Input) Apply(cam *core.CameraState, dt float32) {
	cam.Move(axis(in.forward, in.back), axis(in.right, in.left), axis(in.up, in.down), dt)
	if in.dx != 0 || in.dy != 0 {
		cam.Rotate(in.dx, in.dy)
	}
	in.dx, in.dy = 0, 0
}

// Settings applies pending debug toggles to s, keeping the level within
// [0, numMips]. It reports whether s changed.
func (in *Input) Settings(s *pipeline.Settings, numMips int) bool {
	if !in.toggleVoxels && in.levelDelta == 0 {
		return false
	}
	if in.toggleVoxels {
		s.DrawVoxels = !s.DrawVoxels
	}
	s.MipLevel = min(max(s.MipLevel+in.levelDelta, 0), numMips)
	in.toggleVoxels, in.levelDelta = false, 0
	return true
}

func (in *Input) TakeStats() bool {
	s := in.stats
	in.stats = false
	return s
}

func (in *Input) Quit() bool { return in.quit }
