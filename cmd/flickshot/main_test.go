package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags_OverrideOnlyWhenPassed(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetDefault("sync.url", "wss://default.example/ws")
	viper.SetDefault("scenario.default", "gridshot")

	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--scenario", "spidershot"}))
	require.NoError(t, bindFlags(fs))

	assert.Equal(t, "spidershot", viper.GetString("scenario.default"))
	assert.Equal(t, "wss://default.example/ws", viper.GetString("sync.url"))
}

func TestNewFlagSet_Defaults(t *testing.T) {
	fs := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	dir, err := fs.GetString("config-dir")
	require.NoError(t, err)
	assert.Equal(t, ".", dir)
}

func TestRun_Help(t *testing.T) {
	assert.NoError(t, run([]string{"--help"}))
}
