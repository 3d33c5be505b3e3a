package generator

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/peterstace/simplefeatures/geom"
)

// Spawn volume relative to the room origin, before yaw rotation. Forward is -z.
const (
	HalfWidth = 4.0
	MinHeight = 0.5
	MaxHeight = 3.5
	DepthNear = 6.0
	DepthFar  = 10.0
)

type volume struct {
	origin mgl64.Vec3
	rot    mgl64.Mat3
	yaw    float64
	floor  geom.Envelope
}

func newVolume(cfg Config) volume {
	yaw := cfg.yaw()
	return volume{
		origin: mgl64.Vec3{cfg.Origin.X, 0, cfg.Origin.Y},
		rot:    mgl64.Rotate3DY(yaw),
		yaw:    yaw,
		floor:  cfg.Floor,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func (v volume) sample(rng *rand.Rand) mgl64.Vec3 {
	offset := mgl64.Vec3{
		uniform(rng, -HalfWidth, HalfWidth),
		uniform(rng, MinHeight, MaxHeight),
		-uniform(rng, DepthNear, DepthFar),
	}
	return v.origin.Add(v.rot.Mul3x1(offset))
}

// bounds returns the axis-aligned box enclosing the rotated spawn volume,
// clipped on x and z to the floor when one is set.
func (v volume) bounds() (lo, hi mgl64.Vec3) {
	lo = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, x := range [2]float64{-HalfWidth, HalfWidth} {
		for _, y := range [2]float64{MinHeight, MaxHeight} {
			for _, z := range [2]float64{-DepthNear, -DepthFar} {
				p := v.origin.Add(v.rot.Mul3x1(mgl64.Vec3{x, y, z}))
				for i := 0; i < 3; i++ {
					lo[i] = math.Min(lo[i], p[i])
					hi[i] = math.Max(hi[i], p[i])
				}
			}
		}
	}
	if fmin, fmax, ok := v.floor.MinMaxXYs(); ok {
		lo[0], hi[0] = clipAxis(lo[0], hi[0], fmin.X, fmax.X)
		lo[2], hi[2] = clipAxis(lo[2], hi[2], fmin.Y, fmax.Y)
	}
	return lo, hi
}

// clipAxis narrows [lo, hi] to [flo, fhi]. Disjoint ranges are left alone;
// nothing can be placed there anyway.
func clipAxis(lo, hi, flo, fhi float64) (float64, float64) {
	nlo, nhi := math.Max(lo, flo), math.Min(hi, fhi)
	if nlo > nhi {
		return lo, hi
	}
	return nlo, nhi
}
