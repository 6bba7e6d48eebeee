package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Contains(t, cfg.DSN, "tablestore.db")
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "@daily", cfg.PurgeSchedule)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TABLESTORE_DRIVER", "Postgres")
	t.Setenv("TABLESTORE_DB_HOST", "db.internal")
	t.Setenv("TABLESTORE_DB_PORT", "6543")
	t.Setenv("TABLESTORE_RETENTION", "48h")
	t.Setenv("TABLESTORE_PURGE_SCHEDULE", "")
	t.Setenv("TABLESTORE_TRANSPORT", "http")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.Empty(t, cfg.PurgeSchedule, "an explicitly empty schedule disables purging")
	assert.Empty(t, cfg.DSN)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("TABLESTORE_DRIVER", "oracle")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("TABLESTORE_DRIVER", "sqlite")
	t.Setenv("TABLESTORE_DB_PORT", "abc")
	_, err = FromEnv()
	assert.Error(t, err)
}
