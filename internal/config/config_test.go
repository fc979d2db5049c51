package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/accounts?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/accounts?sslmode=disable", cfg.DB.URL)
	assert.Equal(t, "file://db/migrations", cfg.DB.MigrationsPath)
	assert.Equal(t, 16, cfg.DB.MaxOpenConns)
	assert.Equal(t, 8, cfg.DB.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, 15*time.Minute, cfg.DB.ConnMaxIdleTime)
	assert.Equal(t, "account-audit-events", cfg.Kafka.AuditTopic)
	assert.Empty(t, cfg.Kafka.BootstrapServers)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db:5432/accounts")
	t.Setenv("DB_MAX_OPEN_CONNS", "32")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092")
	t.Setenv("KAFKA_AUDIT_TOPIC", "audit")
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.DB.MaxOpenConns)
	assert.Equal(t, "kafka:9092", cfg.Kafka.BootstrapServers)
	assert.Equal(t, "audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	// t.Setenv registers the restore; the variable must be absent, not empty.
	t.Setenv("DATABASE_URL", "placeholder")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	_, err := Load()
	require.Error(t, err)
}
