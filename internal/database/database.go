package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flickshot/flickshot/internal/config"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// Manager handles database connections and operations.
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	IsValid bool
	// UsingSQLite is true when the catalog lives in SQLite, either by choice
	// or because Postgres was unreachable.
	UsingSQLite bool
	Config      config.DBConfig
	Logger      zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{
		Config: cfg,
		Logger: log,
	}
}

// Connect opens the configured database. A Postgres that cannot be reached
// or pinged falls back to SQLite at Config.Path.
func (m *Manager) Connect() error {
	var err error

	if m.Config.Driver == "postgres" {
		m.DB, err = m.GetPostgresDB()
		if err == nil {
			m.SqlDB, err = m.DB.DB()
		}
		if err == nil {
			err = m.SqlDB.Ping()
		}
		if err == nil {
			m.SqlDB.SetMaxOpenConns(10)
			m.IsValid = true
			m.Logger.Info().Str("host", m.Config.Host).Msg("Connected to Postgres")
			return nil
		}
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	}

	m.UsingSQLite = true
	m.DB, err = m.GetSqliteDB(m.Config.Path)
	if err != nil || m.DB == nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if m.Config.Path == "" || m.Config.Path == MemoryPath {
		// Every new connection would see an empty database.
		m.SqlDB.SetMaxOpenConns(1)
	}
	if err := m.SqlDB.Ping(); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to validate SQLite connection: %w", err)
	}

	m.IsValid = true
	return nil
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		m.Config.Host,
		m.Config.Port,
		m.Config.Username,
		m.Config.Password,
		m.Config.Database,
	)

	m.Logger.Debug().Str("host", m.Config.Host).Str("db", m.Config.Database).Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// An empty path or MemoryPath opens an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if path == "" || path == MemoryPath {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.IsValid = false
		return nil, err
	}
	if dsn == path {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Setup migrates the given models.
func (m *Manager) Setup(models ...any) error {
	if !m.IsValid || m.DB == nil {
		return fmt.Errorf("db not valid")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}
