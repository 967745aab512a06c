package cmd

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time26/config"
)

func TestCmd_RegistersSubcommands(t *testing.T) {
	root := Cmd()

	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"settle"},
		{"merkle", "root"},
		{"merkle", "proof"},
		{"reconcile-mints"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}

	settle, _, err := root.Find([]string{"settle"})
	require.NoError(t, err)
	assert.NotNil(t, settle.Flags().Lookup("day"))
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	setupLogging(config.LoggingConfig{Level: "debug", Format: "text"})
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	setupLogging(config.LoggingConfig{Level: "nonsense", Format: "json"})
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
}
