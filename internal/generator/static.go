package generator

import (
	"math/rand/v2"

	"github.com/flickshot/flickshot/internal/target"
)

// Static scatters non-overlapping targets in front of the origin and leaves
// them where they land.
type Static struct {
	rng *rand.Rand
}

// NewStatic returns a static strategy. A nil rng gets a randomly seeded one.
func NewStatic(rng *rand.Rand) *Static {
	return &Static{rng: newRand(rng)}
}

func (s *Static) Name() string   { return "static" }
func (s *Static) IsMoving() bool { return false }

func (s *Static) Generate(cfg Config, src Source, collides CollisionFunc) Result {
	return place(cfg, newVolume(cfg), src, collides, s.rng, func(t *target.Target) {
		t.Animating = false
	})
}
