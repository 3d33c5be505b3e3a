// Command flickshot runs a headless aim-trainer client: it loads a scenario,
// simulates its targets and keeps them in sync with the other players.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/flickshot/flickshot/internal/config"
	"github.com/flickshot/flickshot/internal/database"
	"github.com/flickshot/flickshot/internal/generator"
	"github.com/flickshot/flickshot/internal/influx"
	"github.com/flickshot/flickshot/internal/logging"
	"github.com/flickshot/flickshot/internal/monitor"
	"github.com/flickshot/flickshot/internal/netsync"
	intOtel "github.com/flickshot/flickshot/internal/otel"
	"github.com/flickshot/flickshot/internal/scenario"
	"github.com/flickshot/flickshot/internal/scene"
	"github.com/flickshot/flickshot/internal/session"
	"github.com/flickshot/flickshot/internal/target"
)

// BuildDate and Version can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const AppName = "flickshot"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("scenario", "", "scenario to load on start")
	fs.String("url", "", "sync server websocket URL")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	return fs
}

// bindFlags makes explicitly passed flags override the config file.
func bindFlags(fs *pflag.FlagSet) error {
	binds := map[string]string{
		"scenario.default": "scenario",
		"sync.url":         "url",
		"logLevel":         "log-level",
	}
	for key, name := range binds {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// app holds everything that needs closing on the way out.
type app struct {
	logFile   *os.File
	slog      *logging.SlogManager
	otel      *intOtel.Provider
	influx    *influx.Manager
	db        *database.Manager
	client    *netsync.Client
	monitor   *monitor.Service
	logger    *slog.Logger
	zerolog   zerolog.Logger
	session   *session.Session
	started   time.Time
	sessionID string
}

func run(args []string) error {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	configDir, _ := fs.GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		return err
	}
	if err := bindFlags(fs); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{started: time.Now(), sessionID: uuid.NewString()}
	defer a.shutdown()

	if err := a.setupLogging(); err != nil {
		return err
	}
	a.setupTelemetry(ctx)
	if err := a.setupCatalog(); err != nil {
		return err
	}
	if err := a.setupSession(); err != nil {
		return err
	}

	name := viper.GetString("scenario.default")
	if _, err := a.session.Restart(name); err != nil {
		return fmt.Errorf("load scenario %q: %w", name, err)
	}

	ctx = logging.ContextWith(ctx, slog.String("version", Version))
	if err := a.client.Connect(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to connect to sync server, running offline", "url", a.client.URL(), "error", err)
	}

	mon := config.GetMonitorConfig()
	deps := monitor.Dependencies{
		Logger:     a.logger,
		Sync:       a.client,
		Scene:      a.session,
		SessionID:  a.sessionID,
		Scenario:   a.session.Context().ScenarioName,
		StatusFile: mon.StatusFile,
		Interval:   mon.Interval,
	}
	if a.influx != nil {
		deps.Telemetry = a.influx
	}
	a.monitor = monitor.NewService(deps)
	a.monitor.Start()

	a.logger.InfoContext(ctx, "Session running", "buildDate", BuildDate)
	return a.session.Run(ctx)
}

func (a *app) setupLogging() error {
	cfg := config.GetLoggingConfig()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	path := logging.LogFilePath(cfg.Dir, AppName, a.started)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logFile = f

	var provider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			Version:      Version,
			InstanceID:   a.sessionID,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    f,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		} else {
			a.otel = p
			provider = p.LoggerProvider()
		}
	}

	opts := []logging.Option{
		logging.WithContext(func() []slog.Attr {
			if a.session == nil {
				return []slog.Attr{slog.String("session", a.sessionID)}
			}
			return a.session.Context().LogAttrs()
		}),
	}
	if cfg.GraylogEnabled {
		opts = append(opts, logging.WithGraylog(cfg.GraylogAddress))
	}
	a.slog = logging.NewSlogManager()
	a.slog.Setup(io.MultiWriter(os.Stdout, f), cfg.Level, provider, opts...)
	a.logger = a.slog.Logger()
	slog.SetDefault(a.logger)

	a.zerolog = logging.NewZerolog(f, cfg.Level).With().Str("session", a.sessionID).Logger()
	a.logger.Info("Log file opened", "path", path)
	return nil
}

func (a *app) setupTelemetry(ctx context.Context) {
	m := influx.NewManager(config.GetInfluxConfig(), a.sessionID, a.zerolog.With().Str("component", "influx").Logger())
	err := m.Connect(ctx)
	switch {
	case errors.Is(err, influx.ErrDisabled):
		a.logger.Debug("Telemetry disabled")
	case err != nil:
		a.logger.Warn("Telemetry unavailable", "error", err)
		_ = m.Close()
	default:
		a.influx = m
	}
}

func (a *app) setupCatalog() error {
	log := a.zerolog.With().Str("component", "database").Logger()
	a.db = database.NewManager(config.GetDBConfig(), log)
	if err := a.db.Connect(); err != nil {
		return fmt.Errorf("open scenario catalog: %w", err)
	}
	if err := a.db.Setup(scenario.Models()...); err != nil {
		return err
	}
	added, err := scenario.NewStore(a.db.DB, log).SeedDefaults()
	if err != nil {
		return err
	}
	a.logger.Debug("Scenario catalog ready", "seeded", added, "sqlite", a.db.UsingSQLite)
	return nil
}

func (a *app) setupSession() error {
	tc := config.GetTargetsConfig()
	sc := config.GetSyncConfig()

	room := scene.DefaultRoom()
	if tc.RoomHalfWidth > 0 {
		room.HalfWidth = tc.RoomHalfWidth
	}
	if tc.RoomHalfDepth > 0 {
		room.HalfDepth = tc.RoomHalfDepth
	}
	mgr := scene.NewManager(
		target.NewPool(tc.PoolCapacity),
		generator.NewStatic(nil),
		room,
		scene.WithLogger(a.logger),
		scene.WithRespawn(tc.RespawnOnHit),
	)

	trace := logging.NewTraceSampler(a.zerolog.With().Str("component", "netsync").Logger(), 20, time.Second)
	client, err := netsync.New(netsync.Config{
		URL:           sc.URL,
		DrainInterval: sc.DrainInterval,
		MaxUpdateHz:   sc.MaxUpdateHz,
		DepartureHold: sc.DepartureHold,
		SendBuffer:    sc.SendBuffer,
		ReadLimit:     sc.ReadLimit,
		Reconnect:     sc.Reconnect,
		MaxReconnect:  sc.MaxReconnect,
	}, netsync.Deps{Logger: a.logger, Trace: &trace})
	if err != nil {
		return err
	}
	a.client = client

	deps := session.Deps{
		Manager: mgr,
		Sync:    client,
		Catalog: scenario.NewStore(a.db.DB, a.zerolog),
		Logger:  a.logger,
		ID:      a.sessionID,
	}
	if a.influx != nil {
		deps.Telemetry = a.influx
	}
	a.session, err = session.New(session.Config{
		TickHz:          tc.TickHz,
		SnapshotTargets: sc.SnapshotTargets,
	}, deps)
	return err
}

func (a *app) shutdown() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("Failed to close sync client", "error", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Warn("Failed to close telemetry", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.slog != nil {
		_ = a.slog.Flush(ctx)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
	if a.slog != nil {
		a.logger.Info("Shutting down", "uptime", time.Since(a.started).Round(time.Second))
		_ = a.slog.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
