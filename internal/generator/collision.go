package generator

import "github.com/flickshot/flickshot/internal/target"

// Collision tuning. Two targets overlap when their centres are closer than
// TargetRadius*SpacingFactor times the sum of their uniform scales.
const (
	TargetRadius  = 1.0
	SpacingFactor = 1.5
)

// MinSeparation is the closest two targets of the given scale may be.
func MinSeparation(scale float64) float64 {
	return 2 * TargetRadius * scale * SpacingFactor
}

// Overlaps reports whether a and b are too close to coexist.
func Overlaps(a, b *target.Target) bool {
	limit := TargetRadius * SpacingFactor * (a.Scale.X() + b.Scale.X())
	return a.Position.Sub(b.Position).Len() < limit
}

// BatchOverlap rejects a candidate that overlaps anything already placed.
func BatchOverlap(candidate *target.Target, placed []*target.Target) bool {
	for _, p := range placed {
		if Overlaps(candidate, p) {
			return true
		}
	}
	return false
}
