package scene

import (
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/target"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, s generator.Strategy, capacity int, opts ...Option) (*Manager, *target.Pool) {
	t.Helper()
	pool := target.NewPool(capacity)
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewManager(pool, s, DefaultRoom(), opts...), pool
}

func rng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 7))
}

func TestManager_GenerateReplacesBatch(t *testing.T) {
	m, pool := newTestManager(t, generator.NewStatic(rng(1)), 20)

	first := m.Generate(generator.Config{Count: 6, Scale: 0.2})
	require.Len(t, first.Targets, 6)
	assert.Equal(t, 6, pool.InUse())

	second := m.Generate(generator.Config{Count: 4, Scale: 0.2})
	require.Len(t, second.Targets, 4)
	assert.Equal(t, 4, pool.InUse(), "previous batch must be released")
	assert.Equal(t, 4, m.ActiveCount())
}

func TestManager_ActiveTargetsAreCopies(t *testing.T) {
	m, _ := newTestManager(t, generator.NewStatic(rng(2)), 8)
	m.Generate(generator.Config{Count: 2, Scale: 0.2})

	got := m.ActiveTargets()
	require.Len(t, got, 2)
	got[0].Visible = false
	got[0].Position[0] = 999

	again := m.ActiveTargets()
	assert.True(t, again[0].Visible)
	assert.NotEqual(t, 999.0, again[0].Position.X())
}

func TestManager_UpdateMovesOnlyMovingStrategies(t *testing.T) {
	m, _ := newTestManager(t, generator.NewStatic(rng(3)), 8)
	m.Generate(generator.Config{Count: 3, Scale: 0.2})
	before := m.ActiveTargets()
	m.Update(0.5)
	assert.Equal(t, before, m.ActiveTargets())

	mv := generator.NewMoving(rng(3))
	m.SetStrategy(mv)
	m.Generate(generator.Config{Count: 3, Scale: 0.2})
	before = m.ActiveTargets()
	m.Update(0.5)
	after := m.ActiveTargets()
	moved := false
	for i := range before {
		if before[i].Position != after[i].Position {
			moved = true
		}
		assert.True(t, after[i].Animating)
	}
	assert.True(t, moved)
}

func TestManager_NoMotionLeakAcrossBatches(t *testing.T) {
	mv := generator.NewMoving(rng(4))
	m, pool := newTestManager(t, mv, 16)

	for i := 0; i < 5; i++ {
		res := m.Generate(generator.Config{Count: 5, Scale: 0.2})
		require.Len(t, res.Targets, 5)
		assert.Equal(t, 5, mv.Tracked())
	}

	m.SetStrategy(generator.NewStatic(rng(4)))
	assert.Equal(t, 0, mv.Tracked())
	assert.Equal(t, 0, pool.InUse())
}

func TestManager_HitRespawns(t *testing.T) {
	m, pool := newTestManager(t, generator.NewStatic(rng(5)), 10)
	m.Generate(generator.Config{Count: 4, Scale: 0.2})
	victim := m.ActiveTargets()[1]

	require.True(t, m.Hit(victim.ID))
	assert.Equal(t, 4, m.ActiveCount())
	assert.Equal(t, 4, pool.InUse())
	assert.Equal(t, 1, m.Hits())

	live := m.ActiveTargets()
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			d := live[i].Position.Sub(live[j].Position).Len()
			assert.GreaterOrEqual(t, d, generator.MinSeparation(0.2))
		}
	}
	// The replacement is appended last.
	last := live[len(live)-1]
	if last.ID == victim.ID {
		assert.Greater(t, last.Generation(), victim.Generation())
	}
}

func TestManager_HitWithoutRespawn(t *testing.T) {
	m, pool := newTestManager(t, generator.NewStatic(rng(6)), 10, WithRespawn(false))
	m.Generate(generator.Config{Count: 3, Scale: 0.2})
	id := m.ActiveTargets()[0].ID

	assert.True(t, m.Hit(id))
	assert.False(t, m.Hit(id), "already gone")
	assert.False(t, m.Hit(42))
	assert.Equal(t, 2, m.ActiveCount())
	assert.Equal(t, 2, pool.InUse())
}

func TestManager_Snapshot(t *testing.T) {
	m, _ := newTestManager(t, generator.NewStatic(rng(7)), 10)
	m.Generate(generator.Config{Count: 5, Scale: 0.2})
	all := m.ActiveTargets()

	snap := m.Snapshot(3)
	require.Len(t, snap, 3)
	for i, info := range snap {
		src := all[2+i]
		assert.Equal(t, src.Position.X(), info.X)
		assert.Equal(t, src.Position.Y(), info.Y)
		assert.Equal(t, src.Position.Z(), info.Z)
		assert.True(t, info.Shootable)
		assert.False(t, info.Disabled)
	}

	assert.Len(t, m.Snapshot(50), 5)
	assert.Empty(t, m.Snapshot(0))
}

func TestManager_FloorRejectsOffRoomCandidates(t *testing.T) {
	pool := target.NewPool(6)
	tiny := Room{Name: "closet", HalfWidth: 1, HalfDepth: 1}
	m := NewManager(pool, generator.NewStatic(rng(8)), tiny, WithLogger(quietLogger()))

	res := m.Generate(generator.Config{Count: 2, Scale: 0.2})
	assert.Empty(t, res.Targets)
	assert.Equal(t, 2*generator.MaxAttemptsPerTarget, res.Attempts)
	assert.Equal(t, 6, pool.Available())
}

func onFloor(t *testing.T, r Room, x, z float64) bool {
	t.Helper()
	floor, err := r.Floor()
	require.NoError(t, err)
	return floor.Contains(geom.XY{X: x, Y: z})
}

func TestManager_UsesRoomOrigin(t *testing.T) {
	pool := target.NewPool(6)
	room := DefaultRoom()
	room.Origin = geom.XY{X: 100, Y: 50}
	m := NewManager(pool, generator.NewStatic(rng(9)), room, WithLogger(quietLogger()))

	res := m.Generate(generator.Config{Count: 3, Scale: 0.2})
	require.Len(t, res.Targets, 3)
	for _, tg := range res.Targets {
		assert.True(t, onFloor(t, room, tg.Position.X(), tg.Position.Z()))
		assert.InDelta(t, 100, tg.Position.X(), generator.HalfWidth)
	}
}

func TestManager_OriginIsRoomOffset(t *testing.T) {
	pool := target.NewPool(6)
	room := Room{Name: "wide", Origin: geom.XY{X: 5, Y: 0}, HalfWidth: 20, HalfDepth: 20}
	m := NewManager(pool, generator.NewStatic(rng(10)), room, WithLogger(quietLogger()))

	// Spawning around world x = 0 inside a room centred at x = 5.
	res := m.Generate(generator.Config{Count: 3, Scale: 0.2, Origin: geom.XY{X: -5}})
	require.Len(t, res.Targets, 3)
	for _, tg := range res.Targets {
		assert.InDelta(t, 0, tg.Position.X(), generator.HalfWidth)
	}
}

func TestManager_MovingTargetsStayOnNarrowFloor(t *testing.T) {
	pool := target.NewPool(8)
	room := Room{Name: "corridor", HalfWidth: 2, HalfDepth: 12}
	m := NewManager(pool, generator.NewMoving(rng(11)), room, WithLogger(quietLogger()))

	res := m.Generate(generator.Config{Count: 3, Scale: 0.2})
	require.Len(t, res.Targets, 3)
	for tick := 0; tick < 1000; tick++ {
		m.Update(1.0 / 30)
		for _, tg := range m.ActiveTargets() {
			require.True(t, onFloor(t, room, tg.Position.X(), tg.Position.Z()),
				"target %d left the floor at %v", tg.ID, tg.Position)
		}
	}
}

func TestManager_InvalidFloorPlacesNothing(t *testing.T) {
	pool := target.NewPool(4)
	room := Room{Name: "void", HalfWidth: math.NaN(), HalfDepth: 1}
	m := NewManager(pool, generator.NewStatic(rng(12)), room, WithLogger(quietLogger()))

	res := m.Generate(generator.Config{Count: 2, Scale: 0.2})
	assert.Empty(t, res.Targets)
	assert.Equal(t, 4, pool.Available())
}

func TestRoom_Floor(t *testing.T) {
	r := Room{Origin: geom.XY{X: 2, Y: -3}, HalfWidth: 1, HalfDepth: 2}
	assert.True(t, onFloor(t, r, 2, -3))
	assert.True(t, onFloor(t, r, 3, -1))
	assert.False(t, onFloor(t, r, 3.5, -3))
	assert.False(t, onFloor(t, r, 2, 0))

	_, err := Room{Name: "bad", HalfWidth: math.Inf(1)}.Floor()
	assert.ErrorContains(t, err, `room "bad" floor`)
}
