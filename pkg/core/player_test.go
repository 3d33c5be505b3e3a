package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_PreservesAbsentFields(t *testing.T) {
	roomX, yaw, pitch := 3, 1.0, 0.2
	targets := []TargetInfo{{X: 1, Shootable: true}}
	first := PlayerCore{}.Merge(PlayerPatch{
		ID:          "p2",
		RoomX:       &roomX,
		Yaw:         &yaw,
		Pitch:       &pitch,
		Position:    &Vec3{X: 1, Y: 1, Z: 1},
		TargetsInfo: &targets,
	})
	targets[0].X = 9

	nextYaw := 2.0
	second := first.Merge(PlayerPatch{ID: "p2", Yaw: &nextYaw})

	assert.Equal(t, 2.0, second.Yaw)
	assert.Equal(t, 0.2, second.Pitch)
	assert.Equal(t, 3, second.RoomX)
	assert.Equal(t, Vec3{X: 1, Y: 1, Z: 1}, second.Position)
	assert.Len(t, second.TargetsInfo, 1)
	assert.Equal(t, 1.0, second.TargetsInfo[0].X, "merge copies the targets slice")
	assert.Equal(t, 1.0, first.Yaw, "receiver must not change")
}

func TestMerge_EmptyTargetsOverwrite(t *testing.T) {
	base := PlayerCore{ID: "p2", TargetsInfo: []TargetInfo{{X: 1}}}
	empty := []TargetInfo{}
	merged := base.Merge(PlayerPatch{ID: "p2", TargetsInfo: &empty})
	assert.Empty(t, merged.TargetsInfo)
}

func TestClone_Independent(t *testing.T) {
	a := PlayerCore{ID: "p", TargetsInfo: []TargetInfo{{X: 1}}}
	b := a.Clone()
	b.TargetsInfo[0].X = 9
	assert.Equal(t, 1.0, a.TargetsInfo[0].X)
}
