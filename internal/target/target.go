// Package target holds the shootable entities and the fixed-capacity pool
// they are recycled through.
package target

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/flickshot/flickshot/pkg/core"
)

// Target is a poolable scene entity. Its storage lives inside a Pool and never
// moves; ID is the slot index.
type Target struct {
	ID       int
	Position mgl64.Vec3
	Rotation mgl64.Vec3 // radians
	Scale    mgl64.Vec3

	Shootable bool
	Animating bool
	Visible   bool

	// generation increments on every acquire of this slot.
	generation uint32
	active     bool
}

// Generation reports how many times the slot has been handed out.
func (t *Target) Generation() uint32 {
	return t.generation
}

// Active reports whether the slot is currently handed out.
func (t *Target) Active() bool {
	return t.active
}

// reset applies a fresh transform.
func (t *Target) reset() {
	t.Position = mgl64.Vec3{}
	t.Rotation = mgl64.Vec3{}
	t.Scale = mgl64.Vec3{1, 1, 1}
	t.Shootable = true
	t.Animating = false
	t.Visible = true
}

// Info converts the target into its replicated form.
func (t *Target) Info() core.TargetInfo {
	return core.TargetInfo{
		X:         t.Position.X(),
		Y:         t.Position.Y(),
		Z:         t.Position.Z(),
		Shootable: t.Shootable,
		Disabled:  !t.Visible,
	}
}
