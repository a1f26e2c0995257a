package app

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	"github.com/otaviopeixoto1/opengine/voxelgi/gi/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestInputMovement(t *testing.T) {
	var in Input
	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3{}
	cam.Yaw, cam.Pitch = 0, 0

	in.HandleKey(glfw.KeyW, glfw.Press)
	in.Apply(cam, 0.5)
	assert.InDelta(t, cam.Speed*0.5, cam.Position.Y(), 1e-5)

	in.HandleKey(glfw.KeyW, glfw.Release)
	before := cam.Position
	in.Apply(cam, 0.5)
	assert.Equal(t, before, cam.Position)

	in.HandleKey(glfw.KeyE, glfw.Press)
	in.HandleKey(glfw.KeyQ, glfw.Press)
	in.Apply(cam, 1)
	assert.Equal(t, before, cam.Position, "opposite keys cancel")
}

func TestInputMouseOnlyWhenCaptured(t *testing.T) {
	var in Input
	cam := core.NewCameraState()
	yaw := cam.Yaw

	in.HandleCursor(10, 10)
	in.HandleCursor(50, 10)
	in.Apply(cam, 0)
	assert.Equal(t, yaw, cam.Yaw)

	in.HandleKey(glfw.KeyTab, glfw.Press)
	assert.True(t, in.Captured)
	in.HandleCursor(50, 10)
	in.HandleCursor(150, 10)
	in.Apply(cam, 0)
	assert.InDelta(t, yaw+100*cam.Sensitivity, cam.Yaw, 1e-6)
}

func TestInputDebugSettings(t *testing.T) {
	var in Input
	s := pipeline.Settings{}
	assert.False(t, in.Settings(&s, 4))

	in.HandleKey(glfw.KeyV, glfw.Press)
	in.HandleKey(glfw.KeyRightBracket, glfw.Press)
	in.HandleKey(glfw.KeyRightBracket, glfw.Repeat)
	assert.True(t, in.Settings(&s, 4))
	assert.True(t, s.DrawVoxels)
	assert.Equal(t, 1, s.MipLevel)

	for i := 0; i < 10; i++ {
		in.HandleKey(glfw.KeyRightBracket, glfw.Press)
	}
	in.Settings(&s, 4)
	assert.Equal(t, 4, s.MipLevel)

	in.HandleKey(glfw.KeyLeftBracket, glfw.Press)
	in.HandleKey(glfw.KeyV, glfw.Press)
	in.Settings(&s, 4)
	assert.False(t, s.DrawVoxels)
	assert.Equal(t, 3, s.MipLevel)
}

func TestInputStatsAndQuit(t *testing.T) {
	var in Input
	in.HandleKey(glfw.KeyP, glfw.Press)
	assert.True(t, in.TakeStats())
	assert.False(t, in.TakeStats())
	assert.False(t, in.Quit())
	in.HandleKey(glfw.KeyEscape, glfw.Press)
	assert.True(t, in.Quit())
}
