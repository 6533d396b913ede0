package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("GUEST_TOKEN_SECRET", "guest-secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 30*24*time.Hour, cfg.GuestTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.CartCacheTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Contains(t, cfg.DSN(), "host=localhost port=5432")
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("GUEST_TOKEN_TTL", "1h")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Hour, cfg.GuestTokenTTL)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
}

func TestFromEnv_RequiredSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GUEST_TOKEN_SECRET", "guest-secret")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "JWT_SECRET is required")

	t.Setenv("JWT_SECRET", "same")
	t.Setenv("GUEST_TOKEN_SECRET", "same")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "must differ")
}

func TestFromEnv_InvalidValues(t *testing.T) {
	setRequired(t)

	t.Setenv("POSTGRES_PORT", "abc")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "POSTGRES_PORT must be number")

	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("STORE_DRIVER", "mongo")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "STORE_DRIVER")
}
