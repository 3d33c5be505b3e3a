// Package session runs the simulation tick and publishes the local player.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/influx"
	"github.com/flickshot/flickshot/internal/logging"
	"github.com/flickshot/flickshot/internal/netsync"
	"github.com/flickshot/flickshot/internal/scenario"
	"github.com/flickshot/flickshot/internal/scene"
	"github.com/flickshot/flickshot/pkg/core"
)

// PoseSource reports where the local player is looking.
type PoseSource interface {
	Pose() (yaw, pitch float64, pos core.Vec3)
}

// FixedPose is a PoseSource that never moves.
type FixedPose struct {
	Yaw, Pitch float64
	Position   core.Vec3
}

// Pose implements PoseSource.
func (p FixedPose) Pose() (float64, float64, core.Vec3) {
	return p.Yaw, p.Pitch, p.Position
}

// Sender publishes the local player. *netsync.Client satisfies it.
type Sender interface {
	SendUpdate(core.UpdatePayload) error
	Assigned() <-chan struct{}
}

// Catalog looks up scenarios by name. *scenario.Store satisfies it.
type Catalog interface {
	Get(name string) (scenario.Scenario, error)
}

// PointWriter accepts telemetry points. *influx.Manager satisfies it.
type PointWriter interface {
	WritePoint(*influxdb2_write.Point) error
}

// Config tunes the loop.
type Config struct {
	TickHz int
	// SnapshotTargets is how many targets ride along with each update.
	SnapshotTargets int
}

// Deps are the collaborators of a Session. Manager, Sync and Catalog are required.
type Deps struct {
	Manager   *scene.Manager
	Sync      Sender
	Catalog   Catalog
	Pose      PoseSource
	Telemetry PointWriter
	Logger    *slog.Logger
	Rand      *rand.Rand
	ID        string
}

// Session owns the target manager. Every access to it goes through mu so
// the monitor can read counters while Run ticks.
type Session struct {
	cfg  Config
	deps Deps
	ctx  *Context

	mu      sync.Mutex
	manager *scene.Manager
	sent    uint64
}

// New creates a Session. An empty Deps.ID gets a random one.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Manager == nil || deps.Sync == nil || deps.Catalog == nil {
		return nil, errors.New("session needs a manager, a sync sender and a catalog")
	}
	if cfg.TickHz <= 0 {
		cfg.TickHz = 60
	}
	if cfg.SnapshotTargets < 0 {
		cfg.SnapshotTargets = 0
	}
	if deps.Pose == nil {
		deps.Pose = FixedPose{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ID == "" {
		deps.ID = uuid.NewString()
	}
	return &Session{
		cfg:     cfg,
		deps:    deps,
		ctx:     NewContext(deps.ID),
		manager: deps.Manager,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.ctx.ID() }

// Context returns the scenario context.
func (s *Session) Context() *Context { return s.ctx }

// Restart loads name from the catalog, swaps the strategy and generates a
// fresh batch.
func (s *Session) Restart(name string) (generator.Result, error) {
	sc, err := s.deps.Catalog.Get(name)
	if err != nil {
		return generator.Result{}, err
	}
	strategy, err := sc.NewStrategy(s.deps.Rand)
	if err != nil {
		return generator.Result{}, err
	}

	s.mu.Lock()
	s.manager.SetStrategy(strategy)
	res := s.manager.Generate(sc.Config())
	s.mu.Unlock()

	s.ctx.Set(sc, res)
	s.deps.Logger.Info("Scenario loaded",
		"scenario", sc.Name,
		"strategy", strategy.Name(),
		"placed", len(res.Targets),
		"requested", res.Requested,
		"attempts", res.Attempts)

	if s.deps.Telemetry != nil {
		p := influx.GenerationPoint(s.ID(), strategy.Name(), res, time.Now())
		if err := s.deps.Telemetry.WritePoint(p); err != nil {
			s.deps.Logger.Warn("Failed to record generation", "error", err)
		}
	}
	return res, nil
}

// Hit forwards a hit on target id to the manager.
func (s *Session) Hit(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Hit(id)
}

// ActiveCount implements monitor.SceneSource.
func (s *Session) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.ActiveCount()
}

// Hits implements monitor.SceneSource.
func (s *Session) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.Hits()
}

// Sent returns how many updates were handed to the sender.
func (s *Session) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Session) assigned() bool {
	select {
	case <-s.deps.Sync.Assigned():
		return true
	default:
		return false
	}
}

// Tick advances the simulation by dt seconds and, once the server assigned
// an identity, publishes the local player. Transient send failures are not
// returned.
func (s *Session) Tick(dt float64) error {
	s.mu.Lock()
	s.manager.Update(dt)
	if !s.assigned() {
		s.mu.Unlock()
		return nil
	}
	yaw, pitch, pos := s.deps.Pose.Pose()
	payload := core.UpdatePayload{
		Yaw:         yaw,
		Pitch:       pitch,
		Position:    pos,
		TargetsInfo: s.manager.Snapshot(s.cfg.SnapshotTargets),
	}
	s.mu.Unlock()

	err := s.deps.Sync.SendUpdate(payload)
	switch {
	case err == nil:
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()
		return nil
	case errors.Is(err, netsync.ErrNotConnected), errors.Is(err, netsync.ErrNotAssigned):
		return nil
	default:
		return fmt.Errorf("send update: %w", err)
	}
}

// Run ticks at the configured rate until ctx is done or the sender is closed.
func (s *Session) Run(ctx context.Context) error {
	period := time.Second / time.Duration(s.cfg.TickHz)
	dt := period.Seconds()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	ctx = logging.ContextWith(ctx, slog.String("loop", "session"))
	s.deps.Logger.DebugContext(ctx, "Session loop started", "tickHz", s.cfg.TickHz)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.Tick(dt)
			if errors.Is(err, netsync.ErrClosed) {
				s.deps.Logger.InfoContext(ctx, "Sync client closed, stopping session loop")
				return nil
			}
			if err != nil {
				s.deps.Logger.DebugContext(ctx, "Tick failed", "error", err)
			}
		}
	}
}
