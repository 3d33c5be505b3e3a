// Package scene owns the live set of targets for one room.
package scene

import (
	"log/slog"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/target"
	"github.com/flickshot/flickshot/pkg/core"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRespawn controls whether Hit spawns a replacement target.
func WithRespawn(on bool) Option {
	return func(m *Manager) {
		m.respawn = on
	}
}

// Manager drives one strategy against one pool inside one room. It is not
// safe for concurrent use.
type Manager struct {
	pool     *target.Pool
	strategy generator.Strategy
	room     Room
	logger   *slog.Logger
	respawn  bool

	// active is kept in spawn order.
	active []*target.Target
	last   generator.Config
	hits   int
}

// NewManager creates a Manager. The pool must not be shared with anything else.
func NewManager(pool *target.Pool, strategy generator.Strategy, room Room, opts ...Option) *Manager {
	m := &Manager{
		pool:     pool,
		strategy: strategy,
		room:     room,
		logger:   slog.Default(),
		respawn:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strategy returns the current strategy.
func (m *Manager) Strategy() generator.Strategy {
	return m.strategy
}

// Room returns the current room.
func (m *Manager) Room() Room {
	return m.room
}

// SetStrategy clears the scene and switches strategy. The next Generate uses it.
func (m *Manager) SetStrategy(s generator.Strategy) {
	m.Clear()
	m.strategy = s
}

// Generate releases every active target and spawns a fresh batch.
// cfg.Origin is an offset from the room origin, so the zero value spawns at
// the room origin. Moving targets are confined to the room floor.
func (m *Manager) Generate(cfg generator.Config) generator.Result {
	m.Clear()
	cfg.Origin = m.room.Origin.Add(cfg.Origin)
	floor, err := m.room.Floor()
	if err != nil {
		m.logger.Error("room has no usable floor", "room", m.room.Name, "error", err)
	}
	cfg.Floor = floor
	m.last = cfg

	res := m.strategy.Generate(cfg, m.pool, m.collides(nil))
	m.active = append(m.active, res.Targets...)

	m.logger.Info("targets generated",
		"strategy", m.strategy.Name(),
		"room", m.room.Name,
		"placed", len(res.Targets),
		"requested", res.Requested,
		"attempts", res.Attempts,
		"message", res.Message)
	return res
}

// Update advances animated targets by dt seconds.
func (m *Manager) Update(dt float64) {
	if !m.strategy.IsMoving() {
		return
	}
	if a, ok := m.strategy.(generator.Animator); ok {
		a.Update(dt, m.active)
	}
}

// ActiveTargets returns copies of the active targets in spawn order.
func (m *Manager) ActiveTargets() []target.Target {
	out := make([]target.Target, len(m.active))
	for i, t := range m.active {
		out[i] = *t
	}
	return out
}

// ActiveCount returns the number of live targets.
func (m *Manager) ActiveCount() int {
	return len(m.active)
}

// Hits returns the number of successful hits since the last Generate.
func (m *Manager) Hits() int {
	return m.hits
}

// Hit takes target id out of play and, when respawn is on, spawns one
// replacement clear of the remaining targets. It returns false when id is
// not active.
func (m *Manager) Hit(id int) bool {
	idx := m.indexOf(id)
	if idx < 0 {
		return false
	}
	t := m.active[idx]
	if !t.Shootable {
		return false
	}
	t.Shootable = false
	t.Visible = false
	m.remove(idx)
	m.hits++

	if !m.respawn {
		return true
	}

	cfg := m.last
	cfg.Count = 1
	res := m.strategy.Generate(cfg, m.pool, m.collides(m.active))
	m.active = append(m.active, res.Targets...)
	if len(res.Targets) == 0 {
		m.logger.Warn("respawn failed", "target", id, "message", res.Message)
	}
	return true
}

// Snapshot returns the replicated form of the last n spawned targets.
func (m *Manager) Snapshot(n int) []core.TargetInfo {
	if n <= 0 {
		return []core.TargetInfo{}
	}
	from := len(m.active) - n
	if from < 0 {
		from = 0
	}
	out := make([]core.TargetInfo, 0, len(m.active)-from)
	for _, t := range m.active[from:] {
		out = append(out, t.Info())
	}
	return out
}

// Clear releases every active target.
func (m *Manager) Clear() {
	for len(m.active) > 0 {
		m.remove(len(m.active) - 1)
	}
	m.hits = 0
}

func (m *Manager) remove(idx int) {
	t := m.active[idx]
	if a, ok := m.strategy.(generator.Animator); ok {
		a.Cleanup(t)
	}
	if err := m.pool.Release(t); err != nil {
		m.logger.Error("release target", "target", t.ID, "error", err)
	}
	m.active = append(m.active[:idx], m.active[idx+1:]...)
}

func (m *Manager) indexOf(id int) int {
	for i, t := range m.active {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// collides rejects candidates off the floor or overlapping the batch or
// any of others.
func (m *Manager) collides(others []*target.Target) generator.CollisionFunc {
	floor := m.last.Floor
	return func(c *target.Target, placed []*target.Target) bool {
		if !floor.Contains(geom.XY{X: c.Position.X(), Y: c.Position.Z()}) {
			return true
		}
		return generator.BatchOverlap(c, placed) || generator.BatchOverlap(c, others)
	}
}
