// Package generator places batches of pooled targets. Strategies are
// swappable; moving strategies also animate what they placed.
package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/flickshot/flickshot/internal/target"
)

// MaxAttemptsPerTarget bounds rejection sampling to Count*MaxAttemptsPerTarget
// candidates per batch.
const MaxAttemptsPerTarget = 50

// Config describes one batch.
type Config struct {
	Count  int
	Origin geom.XY // spawn origin on the horizontal plane; Y is world z
	Scale  float64
	Yaw    *float64 // optional player-facing yaw biasing spawn direction
	// Floor, when non-empty, confines moving targets' horizontal travel.
	// Placement does not consult it; callers reject off-floor candidates
	// through their CollisionFunc.
	Floor geom.Envelope
}

func (c Config) scale() float64 {
	if c.Scale <= 0 {
		return 1
	}
	return c.Scale
}

func (c Config) yaw() float64 {
	if c.Yaw == nil {
		return 0
	}
	return *c.Yaw
}

// Result is produced once per Generate call and is not modified afterwards.
type Result struct {
	Targets   []*target.Target
	Requested int
	Attempts  int
	Exhausted bool // pool ran dry before the batch was complete
	Message   string
}

// Source hands out and takes back pooled targets.
type Source interface {
	Acquire() (*target.Target, bool)
	Release(*target.Target) error
}

// CollisionFunc reports whether candidate may not be placed next to the
// targets already accepted in this batch.
type CollisionFunc func(candidate *target.Target, placed []*target.Target) bool

// Strategy is a pluggable placement algorithm.
type Strategy interface {
	Name() string
	IsMoving() bool
	Generate(cfg Config, src Source, collides CollisionFunc) Result
}

// Animator is implemented by strategies that move their targets every tick.
type Animator interface {
	Strategy
	Update(dt float64, active []*target.Target)
	Cleanup(t *target.Target)
}

func newRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// place runs rejection sampling inside vol. accept is called for every
// target that made it into the batch.
func place(cfg Config, vol volume, src Source, collides CollisionFunc, rng *rand.Rand, accept func(*target.Target)) Result {
	res := Result{Requested: cfg.Count}
	if cfg.Count <= 0 {
		res.Message = summary(res)
		return res
	}

	scale := cfg.scale()
	budget := cfg.Count * MaxAttemptsPerTarget
	placed := make([]*target.Target, 0, cfg.Count)

	for res.Attempts < budget && len(placed) < cfg.Count {
		t, ok := src.Acquire()
		if !ok {
			res.Exhausted = true
			break
		}
		res.Attempts++

		t.Position = vol.sample(rng)
		t.Rotation[1] = vol.yaw
		t.Scale[0], t.Scale[1], t.Scale[2] = scale, scale, scale

		if collides != nil && collides(t, placed) {
			// Rejected candidates go straight back so they cannot leak.
			_ = src.Release(t)
			continue
		}
		placed = append(placed, t)
		if accept != nil {
			accept(t)
		}
	}

	res.Targets = placed
	res.Message = summary(res)
	return res
}

func summary(r Result) string {
	msg := fmt.Sprintf("placed %d/%d targets in %d attempts", len(r.Targets), r.Requested, r.Attempts)
	switch {
	case r.Requested <= 0 || len(r.Targets) == r.Requested:
		return msg
	case r.Exhausted:
		return msg + " (pool exhausted)"
	default:
		return msg + " (attempt budget spent)"
	}
}
