package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "fineract.db", cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.PostingInterval)
	assert.Equal(t, 8, cfg.PostingWorkers)
	assert.Equal(t, 3, cfg.PostingRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("DATABASE_PATH", "/tmp/loans.db")
	t.Setenv("POSTING_INTERVAL", "1h")
	t.Setenv("POSTING_WORKERS", "4")
	t.Setenv("POSTING_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/loans.db", cfg.DatabasePath)
	assert.Equal(t, time.Hour, cfg.PostingInterval)
	assert.Equal(t, 4, cfg.PostingWorkers)
	assert.Equal(t, 5, cfg.PostingRetries)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("POSTING_INTERVAL", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	t.Setenv("POSTING_WORKERS", "0")
	_, err := Load()
	assert.Error(t, err)
}
