package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flickshot/flickshot/internal/config"
)

type widget struct {
	ID   uint `gorm:"primarykey"`
	Name string
}

func TestConnect_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	m := NewManager(config.DBConfig{Driver: "sqlite", Path: path}, zerolog.Nop())

	require.NoError(t, m.Connect())
	defer m.Close()

	assert.True(t, m.IsValid)
	assert.True(t, m.UsingSQLite)
	require.NoError(t, m.Setup(&widget{}))
	require.NoError(t, m.DB.Create(&widget{Name: "a"}).Error)

	var count int64
	require.NoError(t, m.DB.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConnect_InMemoryKeepsOneDatabase(t *testing.T) {
	m := NewManager(config.DBConfig{Driver: "sqlite", Path: MemoryPath}, zerolog.Nop())
	require.NoError(t, m.Connect())
	defer m.Close()

	require.NoError(t, m.Setup(&widget{}))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.DB.Create(&widget{Name: "w"}).Error)
	}
	var count int64
	require.NoError(t, m.DB.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestConnect_PostgresFallsBackToSQLite(t *testing.T) {
	cfg := config.DBConfig{
		Driver:   "postgres",
		Path:     MemoryPath,
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "nothing",
		Database: "none",
	}
	m := NewManager(cfg, zerolog.Nop())

	require.NoError(t, m.Connect())
	defer m.Close()
	assert.True(t, m.UsingSQLite)
	assert.True(t, m.IsValid)
}

func TestSetup_RequiresConnection(t *testing.T) {
	m := NewManager(config.DBConfig{}, zerolog.Nop())
	assert.Error(t, m.Setup(&widget{}))
	assert.NoError(t, m.Close())
}
