package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flickshot/flickshot/internal/target"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestGenerate_NonPositiveCount(t *testing.T) {
	for _, s := range []Strategy{NewStatic(seeded(1)), NewMoving(seeded(1))} {
		pool := target.NewPool(4)
		res := s.Generate(Config{Count: 0}, pool, BatchOverlap)
		assert.Empty(t, res.Targets, s.Name())
		assert.Equal(t, 0, res.Attempts)
		assert.Equal(t, 4, pool.Available())

		res = s.Generate(Config{Count: -3}, pool, BatchOverlap)
		assert.Empty(t, res.Targets)
		assert.Equal(t, "placed 0/-3 targets in 0 attempts", res.Message)
	}
}

func TestGenerate_PairwiseSeparated(t *testing.T) {
	for _, s := range []Strategy{NewStatic(seeded(2)), NewMoving(seeded(2))} {
		pool := target.NewPool(32)
		res := s.Generate(Config{Count: 10, Scale: 0.3}, pool, BatchOverlap)
		require.Len(t, res.Targets, 10, s.Name())
		for i := 0; i < len(res.Targets); i++ {
			for j := i + 1; j < len(res.Targets); j++ {
				d := res.Targets[i].Position.Sub(res.Targets[j].Position).Len()
				assert.GreaterOrEqual(t, d, MinSeparation(0.3))
			}
		}
		assert.Equal(t, 10, pool.InUse(), "rejected candidates must be back in the pool")
	}
}

func TestGenerate_PoolShortfall(t *testing.T) {
	pool := target.NewPool(3)
	res := NewStatic(seeded(3)).Generate(Config{Count: 8, Scale: 0.1}, pool, BatchOverlap)

	assert.Len(t, res.Targets, 3)
	assert.True(t, res.Exhausted)
	assert.LessOrEqual(t, res.Attempts, 8*MaxAttemptsPerTarget)
	assert.Contains(t, res.Message, "placed 3/8 targets")
	assert.Contains(t, res.Message, "(pool exhausted)")
}

func TestGenerate_AttemptBudgetSpent(t *testing.T) {
	pool := target.NewPool(4)
	always := func(*target.Target, []*target.Target) bool { return true }
	mv := NewMoving(seeded(4))

	res := mv.Generate(Config{Count: 2}, pool, always)

	assert.Empty(t, res.Targets)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 2*MaxAttemptsPerTarget, res.Attempts)
	assert.Contains(t, res.Message, "(attempt budget spent)")
	assert.Equal(t, 4, pool.Available())
	assert.Equal(t, 0, mv.Tracked(), "no motion for rejected candidates")
}

func TestGenerate_SpawnVolume(t *testing.T) {
	origin := geom.XY{X: 10, Y: -20}
	pool := target.NewPool(16)
	res := NewStatic(seeded(5)).Generate(Config{Count: 12, Origin: origin, Scale: 0.2}, pool, BatchOverlap)
	require.NotEmpty(t, res.Targets)

	for _, tg := range res.Targets {
		assert.InDelta(t, origin.X, tg.Position.X(), HalfWidth)
		assert.GreaterOrEqual(t, tg.Position.Y(), MinHeight)
		assert.LessOrEqual(t, tg.Position.Y(), MaxHeight)
		assert.GreaterOrEqual(t, tg.Position.Z(), origin.Y-DepthFar)
		assert.LessOrEqual(t, tg.Position.Z(), origin.Y-DepthNear)
		assert.Equal(t, mgl64.Vec3{0.2, 0.2, 0.2}, tg.Scale)
		assert.False(t, tg.Animating)
	}
}

func TestGenerate_YawTurnsSpawnVolume(t *testing.T) {
	yaw := math.Pi
	pool := target.NewPool(8)
	res := NewStatic(seeded(6)).Generate(Config{Count: 6, Scale: 0.2, Yaw: &yaw}, pool, BatchOverlap)
	require.NotEmpty(t, res.Targets)

	const eps = 1e-9
	for _, tg := range res.Targets {
		assert.GreaterOrEqual(t, tg.Position.Z(), DepthNear-eps)
		assert.LessOrEqual(t, tg.Position.Z(), DepthFar+eps)
		assert.InDelta(t, yaw, tg.Rotation.Y(), eps)
	}
}

func TestGenerate_EightSmallTargets(t *testing.T) {
	pool := target.NewPool(20)
	res := NewStatic(seeded(7)).Generate(Config{Count: 8, Scale: 0.2}, pool, BatchOverlap)

	assert.Len(t, res.Targets, 8)
	assert.LessOrEqual(t, res.Attempts, 400)
	assert.Equal(t, 12, pool.Available())
	assert.Equal(t, fmt.Sprintf("placed 8/8 targets in %d attempts", res.Attempts), res.Message)
}

func TestMoving_StaysInsideBounds(t *testing.T) {
	pool := target.NewPool(8)
	mv := NewMoving(seeded(8))
	res := mv.Generate(Config{Count: 5, Scale: 0.2}, pool, BatchOverlap)
	require.Len(t, res.Targets, 5)

	for tick := 0; tick < 2000; tick++ {
		mv.Update(1.0/60, res.Targets)
		for _, tg := range res.Targets {
			mo, ok := mv.Motion(tg.ID)
			require.True(t, ok)
			for i := 0; i < 3; i++ {
				require.GreaterOrEqual(t, tg.Position[i], mo.Min[i])
				require.LessOrEqual(t, tg.Position[i], mo.Max[i])
			}
			require.GreaterOrEqual(t, tg.Rotation.Y(), 0.0)
			require.Less(t, tg.Rotation.Y(), 2*math.Pi)
		}
	}
}

func TestMoving_TravelClippedToFloor(t *testing.T) {
	floor, err := geom.NewEnvelope([]geom.XY{{X: -2, Y: -20}, {X: 2, Y: 0}})
	require.NoError(t, err)
	onFloor := func(c *target.Target, placed []*target.Target) bool {
		return !floor.Contains(geom.XY{X: c.Position.X(), Y: c.Position.Z()}) || BatchOverlap(c, placed)
	}

	pool := target.NewPool(8)
	mv := NewMoving(seeded(12))
	res := mv.Generate(Config{Count: 3, Scale: 0.2, Floor: floor}, pool, onFloor)
	require.Len(t, res.Targets, 3)

	mo, ok := mv.Motion(res.Targets[0].ID)
	require.True(t, ok)
	assert.Equal(t, -2.0, mo.Min.X())
	assert.Equal(t, 2.0, mo.Max.X())
	assert.InDelta(t, -DepthFar, mo.Min.Z(), 1e-9, "z already inside the floor")
	assert.InDelta(t, -DepthNear, mo.Max.Z(), 1e-9)

	for tick := 0; tick < 1000; tick++ {
		mv.Update(1.0/30, res.Targets)
		for _, tg := range res.Targets {
			require.True(t, floor.Contains(geom.XY{X: tg.Position.X(), Y: tg.Position.Z()}))
		}
	}
}

func TestMoving_DisjointFloorKeepsVolume(t *testing.T) {
	lo, hi := newVolume(Config{}).bounds()
	floor, err := geom.NewEnvelope([]geom.XY{{X: 50, Y: 50}, {X: 60, Y: 60}})
	require.NoError(t, err)
	clo, chi := newVolume(Config{Floor: floor}).bounds()
	assert.Equal(t, lo, clo)
	assert.Equal(t, hi, chi)
}

func TestMoving_VelocityFlipsOnCrossingTick(t *testing.T) {
	pool := target.NewPool(1)
	mv := NewMoving(seeded(9))
	res := mv.Generate(Config{Count: 1}, pool, nil)
	require.Len(t, res.Targets, 1)
	tg := res.Targets[0]

	mo := mv.motion[tg.ID]
	mo.Velocity = mgl64.Vec3{1, 0, 0}
	tg.Position = mgl64.Vec3{mo.Max.X() - 0.15, mo.Min.Y() + 1, mo.Min.Z() + 1}

	mv.Update(0.1, res.Targets) // still inside
	assert.Equal(t, 1.0, mo.Velocity.X())

	mv.Update(0.1, res.Targets) // crosses max x
	assert.Equal(t, -1.0, mo.Velocity.X())
	assert.Equal(t, mo.Max.X(), tg.Position.X())

	mv.Update(0.1, res.Targets)
	assert.Equal(t, -1.0, mo.Velocity.X(), "no second flip once back inside")
	assert.InDelta(t, mo.Max.X()-0.1, tg.Position.X(), 1e-9)
}

func TestMoving_CleanupDropsMotion(t *testing.T) {
	pool := target.NewPool(4)
	mv := NewMoving(seeded(10))
	res := mv.Generate(Config{Count: 3, Scale: 0.2}, pool, BatchOverlap)
	require.Len(t, res.Targets, 3)
	assert.Equal(t, 3, mv.Tracked())

	gone := res.Targets[0]
	mv.Cleanup(gone)
	require.NoError(t, pool.Release(gone))
	mv.Cleanup(gone) // idempotent
	mv.Cleanup(nil)
	assert.Equal(t, 2, mv.Tracked())

	before := gone.Position
	mv.Update(0.5, res.Targets)
	assert.Equal(t, before, gone.Position, "released target is not animated")
}

func TestMoving_ZeroDtIsNoop(t *testing.T) {
	pool := target.NewPool(2)
	mv := NewMoving(seeded(11))
	res := mv.Generate(Config{Count: 1}, pool, nil)
	require.Len(t, res.Targets, 1)
	before := res.Targets[0].Position

	mv.Update(0, res.Targets)
	mv.Update(-1, res.Targets)
	assert.Equal(t, before, res.Targets[0].Position)
	assert.True(t, res.Targets[0].Animating)
}

func TestOverlaps(t *testing.T) {
	a := &target.Target{Scale: mgl64.Vec3{1, 1, 1}}
	b := &target.Target{Scale: mgl64.Vec3{1, 1, 1}, Position: mgl64.Vec3{2.9, 0, 0}}
	assert.True(t, Overlaps(a, b))
	b.Position = mgl64.Vec3{3, 0, 0}
	assert.False(t, Overlaps(a, b), "exactly at the limit is allowed")
	assert.Equal(t, 3.0, MinSeparation(1))
}

func TestMoving_NoResidualMotionAfterStrategySwap(t *testing.T) {
	pool := target.NewPool(1)
	mv := NewMoving(seeded(12))
	res := mv.Generate(Config{Count: 1}, pool, nil)
	require.Len(t, res.Targets, 1)
	slot := res.Targets[0].ID

	mv.Cleanup(res.Targets[0])
	require.NoError(t, pool.Release(res.Targets[0]))

	st := NewStatic(seeded(12))
	again := st.Generate(Config{Count: 1}, pool, nil)
	require.Len(t, again.Targets, 1)
	require.Equal(t, slot, again.Targets[0].ID, "same slot reused")

	_, ok := mv.Motion(slot)
	assert.False(t, ok)
	assert.False(t, again.Targets[0].Animating)

	before := again.Targets[0].Position
	mv.Update(1, again.Targets)
	assert.Equal(t, before, again.Targets[0].Position)
}

func TestMoving_WithMaxSpeed(t *testing.T) {
	pool := target.NewPool(10)
	mv := NewMoving(seeded(13)).WithMaxSpeed(0.5)
	res := mv.Generate(Config{Count: 6, Scale: 0.2}, pool, BatchOverlap)
	require.Len(t, res.Targets, 6)

	for _, tg := range res.Targets {
		mo, _ := mv.Motion(tg.ID)
		for i := 0; i < 3; i++ {
			assert.LessOrEqual(t, math.Abs(mo.Velocity[i]), 0.5)
		}
	}
	assert.Same(t, mv, mv.WithMaxSpeed(-1), "non-positive speed is ignored")
}
