package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "flickshot.cfg.json"

// EnvPrefix prefixes every environment override, e.g. FLICKSHOT_SYNC_URL.
const EnvPrefix = "FLICKSHOT"

// SyncConfig holds the sync client settings.
type SyncConfig struct {
	URL             string
	DrainInterval   time.Duration
	MaxUpdateHz     int
	DepartureHold   time.Duration
	SnapshotTargets int
	SendBuffer      int
	ReadLimit       int64
	Reconnect       bool
	MaxReconnect    int
}

// TargetsConfig holds pool and simulation settings.
type TargetsConfig struct {
	PoolCapacity  int
	TickHz        int
	RespawnOnHit  bool
	RoomHalfWidth float64
	RoomHalfDepth float64
}

// DBConfig selects and configures the scenario catalog database.
type DBConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds telemetry settings.
type InfluxConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// LoggingConfig holds log sinks.
type LoggingConfig struct {
	Level          string
	Dir            string
	GraylogEnabled bool
	GraylogAddress string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// MonitorConfig holds status monitor settings.
type MonitorConfig struct {
	Interval   time.Duration
	StatusFile string
}

// Load sets default values, binds FLICKSHOT_* environment variables and
// reads FileName from configDir. A missing file is not an error.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sync.url", "wss://sync.flickshot.gg/ws")
	viper.SetDefault("sync.drainInterval", "50ms")
	viper.SetDefault("sync.maxUpdateHz", 20)
	viper.SetDefault("sync.departureHold", "2s")
	viper.SetDefault("sync.snapshotTargets", 10)
	viper.SetDefault("sync.sendBuffer", 256)
	viper.SetDefault("sync.readLimit", 1<<20)
	viper.SetDefault("sync.reconnect", false)
	viper.SetDefault("sync.maxReconnect", 10)

	viper.SetDefault("targets.poolCapacity", 64)
	viper.SetDefault("targets.tickHz", 60)
	viper.SetDefault("targets.respawnOnHit", true)
	viper.SetDefault("targets.roomHalfWidth", 12.0)
	viper.SetDefault("targets.roomHalfDepth", 12.0)

	viper.SetDefault("scenario.default", "gridshot")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "./flickshot.db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "flickshot")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "flickshot")
	viper.SetDefault("influx.bucket", "flickshot")
	viper.SetDefault("influx.backupDir", "./telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "flickshot")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./status.txt")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSyncConfig returns the sync client settings.
func GetSyncConfig() SyncConfig {
	return SyncConfig{
		URL:             viper.GetString("sync.url"),
		DrainInterval:   viper.GetDuration("sync.drainInterval"),
		MaxUpdateHz:     viper.GetInt("sync.maxUpdateHz"),
		DepartureHold:   viper.GetDuration("sync.departureHold"),
		SnapshotTargets: viper.GetInt("sync.snapshotTargets"),
		SendBuffer:      viper.GetInt("sync.sendBuffer"),
		ReadLimit:       viper.GetInt64("sync.readLimit"),
		Reconnect:       viper.GetBool("sync.reconnect"),
		MaxReconnect:    viper.GetInt("sync.maxReconnect"),
	}
}

// GetTargetsConfig returns pool and simulation settings.
func GetTargetsConfig() TargetsConfig {
	return TargetsConfig{
		PoolCapacity:  viper.GetInt("targets.poolCapacity"),
		TickHz:        viper.GetInt("targets.tickHz"),
		RespawnOnHit:  viper.GetBool("targets.respawnOnHit"),
		RoomHalfWidth: viper.GetFloat64("targets.roomHalfWidth"),
		RoomHalfDepth: viper.GetFloat64("targets.roomHalfDepth"),
	}
}

// GetDBConfig returns the catalog database settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Driver:   viper.GetString("db.driver"),
		Path:     viper.GetString("db.path"),
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetLoggingConfig returns the log sinks.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
