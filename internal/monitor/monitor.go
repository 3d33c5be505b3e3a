// Package monitor periodically samples the running session and publishes a
// status file plus telemetry points.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/flickshot/flickshot/internal/influx"
	"github.com/flickshot/flickshot/internal/netsync"
)

// SyncSource exposes the sync client counters.
type SyncSource interface {
	Stats() netsync.Stats
}

// SceneSource exposes the target manager counters.
type SceneSource interface {
	ActiveCount() int
	Hits() int
}

// PointWriter accepts telemetry points.
type PointWriter interface {
	WritePoint(*influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Logger     *slog.Logger
	Sync       SyncSource
	Scene      SceneSource
	Telemetry  PointWriter // optional
	SessionID  string
	Scenario   func() string
	StatusFile string
	Interval   time.Duration
	Now        func() time.Time
}

// Status is one sample.
type Status struct {
	Time      time.Time     `json:"time"`
	SessionID string        `json:"sessionId"`
	Scenario  string        `json:"scenario,omitempty"`
	Sync      netsync.Stats `json:"sync"`
	Active    int           `json:"active"`
	Hits      int           `json:"hits"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample takes one status reading.
func (s *Service) Sample() Status {
	st := Status{
		Time:      s.deps.Now(),
		SessionID: s.deps.SessionID,
	}
	if s.deps.Scenario != nil {
		st.Scenario = s.deps.Scenario()
	}
	if s.deps.Sync != nil {
		st.Sync = s.deps.Sync.Stats()
	}
	if s.deps.Scene != nil {
		st.Active = s.deps.Scene.ActiveCount()
		st.Hits = s.deps.Scene.Hits()
	}
	return st
}

// Publish writes st to the status file and the telemetry sink.
func (s *Service) Publish(st Status) error {
	var errs []error
	if s.deps.StatusFile != "" {
		body, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			body = []byte(fmt.Sprintf(`{"error": %q}`, err))
		}
		if err := os.WriteFile(s.deps.StatusFile, append(body, '\n'), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write status file: %w", err))
		}
	}
	if s.deps.Telemetry != nil {
		points := []*influxdb2_write.Point{
			influx.SyncPoint(st.SessionID, st.Sync, st.Time),
			influx.ScenePoint(st.SessionID, st.Active, st.Hits, st.Time),
		}
		for _, p := range points {
			if err := s.deps.Telemetry.WritePoint(p); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Start starts the status monitor goroutine.
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval, "statusFile", s.deps.StatusFile)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Publish(s.Sample()); err != nil {
					logger.Error("Error publishing status", "error", err)
				}
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
