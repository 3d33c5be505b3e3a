package generator

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/flickshot/flickshot/internal/target"
)

// Motion tuning.
const (
	MaxSpeed = 2.0 // default world units per second on each axis
	SpinRate = 1.5 // radians per second about +Y
)

// Motion is the per-target animation state kept by Moving.
type Motion struct {
	Velocity mgl64.Vec3
	Min      mgl64.Vec3
	Max      mgl64.Vec3
}

// Moving places targets like Static and then drifts them around inside the
// spawn volume, bouncing off its walls.
type Moving struct {
	rng      *rand.Rand
	maxSpeed float64
	motion   map[int]*Motion
}

// NewMoving returns a moving strategy. A nil rng gets a randomly seeded one.
func NewMoving(rng *rand.Rand) *Moving {
	return &Moving{rng: newRand(rng), maxSpeed: MaxSpeed, motion: make(map[int]*Motion)}
}

// WithMaxSpeed overrides the per-axis speed limit for targets placed from now on.
func (m *Moving) WithMaxSpeed(v float64) *Moving {
	if v > 0 {
		m.maxSpeed = v
	}
	return m
}

func (m *Moving) Name() string   { return "moving" }
func (m *Moving) IsMoving() bool { return true }

func (m *Moving) Generate(cfg Config, src Source, collides CollisionFunc) Result {
	vol := newVolume(cfg)
	lo, hi := vol.bounds()
	return place(cfg, vol, src, collides, m.rng, func(t *target.Target) {
		t.Animating = true
		m.motion[t.ID] = &Motion{
			Velocity: mgl64.Vec3{
				uniform(m.rng, -m.maxSpeed, m.maxSpeed),
				uniform(m.rng, -m.maxSpeed, m.maxSpeed),
				uniform(m.rng, -m.maxSpeed, m.maxSpeed),
			},
			Min: lo,
			Max: hi,
		}
	})
}

// Update advances every active target that has a motion record by dt seconds.
func (m *Moving) Update(dt float64, active []*target.Target) {
	if dt <= 0 {
		return
	}
	for _, t := range active {
		mo, ok := m.motion[t.ID]
		if !ok || !t.Active() {
			continue
		}
		pos := t.Position.Add(mo.Velocity.Mul(dt))
		for i := 0; i < 3; i++ {
			switch {
			case pos[i] < mo.Min[i]:
				pos[i] = mo.Min[i]
				mo.Velocity[i] = -mo.Velocity[i]
			case pos[i] > mo.Max[i]:
				pos[i] = mo.Max[i]
				mo.Velocity[i] = -mo.Velocity[i]
			}
		}
		t.Position = pos
		t.Rotation[1] = wrapAngle(t.Rotation[1] + SpinRate*dt)
	}
}

// Cleanup drops the motion record for t. Safe to call for unknown targets.
func (m *Moving) Cleanup(t *target.Target) {
	if t == nil {
		return
	}
	delete(m.motion, t.ID)
}

// Motion returns a copy of the record for target id.
func (m *Moving) Motion(id int) (Motion, bool) {
	mo, ok := m.motion[id]
	if !ok {
		return Motion{}, false
	}
	return *mo, true
}

// Tracked is the number of live motion records.
func (m *Moving) Tracked() int { return len(m.motion) }

func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
