// Package influx ships session telemetry to InfluxDB, falling back to a
// gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/flickshot/flickshot/internal/config"
	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/netsync"
)

// ErrDisabled is returned by Connect when telemetry is switched off.
var ErrDisabled = errors.New("influx telemetry disabled")

// Measurement names.
const (
	MeasurementSync       = "sync"
	MeasurementGeneration = "generation"
	MeasurementScene      = "scene"
)

const retentionSeconds = 60 * 60 * 24 * 30

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	BackupPath   string
	IsValid      bool
	Config       config.InfluxConfig
	Logger       zerolog.Logger

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager. sessionID names the backup file.
func NewManager(cfg config.InfluxConfig, sessionID string, log zerolog.Logger) *Manager {
	dir := cfg.BackupDir
	if dir == "" {
		dir = "."
	}
	return &Manager{
		Config:     cfg,
		Logger:     log,
		BackupPath: filepath.Join(dir, fmt.Sprintf("telemetry-%s.lp.gz", sessionID)),
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer a ping the manager switches to the backup writer and still returns nil.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.Config.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.Config.Protocol, m.Config.Host, m.Config.Port),
		m.Config.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.BackupPath), 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.Config.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.Config.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.Config.Org)
		if err != nil {
			return fmt.Errorf("create organization %q: %w", m.Config.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.Config.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.Config.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("create bucket %q: %w", m.Config.Bucket, err)
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.Config.Org, m.Config.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Config.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.BackupWriter.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client or backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return nil
	}
	err := errors.Join(m.BackupWriter.Close(), m.backupFile.Close())
	m.BackupWriter = nil
	m.backupFile = nil
	return err
}

// SyncPoint records the sync client counters.
func SyncPoint(sessionID string, s netsync.Stats, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementSync,
		map[string]string{"session": sessionID, "state": s.State.String()},
		map[string]any{
			"neighbors":    s.Neighbors,
			"pending":      s.Pending,
			"applied":      s.Applied,
			"coalesced":    s.Coalesced,
			"ignored":      s.Ignored,
			"malformed":    s.Malformed,
			"sent":         s.Sent,
			"send_dropped": s.SendDropped,
		},
		at)
}

// GenerationPoint records the outcome of one Generate call.
func GenerationPoint(sessionID, strategy string, r generator.Result, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementGeneration,
		map[string]string{"session": sessionID, "strategy": strategy},
		map[string]any{
			"requested": r.Requested,
			"placed":    len(r.Targets),
			"attempts":  r.Attempts,
			"exhausted": r.Exhausted,
		},
		at)
}

// ScenePoint records the live target count and hits.
func ScenePoint(sessionID string, active, hits int, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementScene,
		map[string]string{"session": sessionID},
		map[string]any{"active": active, "hits": hits},
		at)
}
