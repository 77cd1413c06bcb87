package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "DATABASE_URL", "REDIS_URL", "JWT_SIGNING_KEY_FILE", "JWT_ISSUER",
	"SESSION_TTL", "CHALLENGE_TTL", "REQUIRE_CHALLENGE", "LOGIN_NETWORK",
	"NETWORKS_FILE", "SNOWFLAKE_NODE",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8111", cfg.HTTPAddr)
	assert.Equal(t, "walletauth", cfg.Issuer)
	assert.Equal(t, "eth", cfg.LoginNetwork)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.False(t, cfg.RequireChallenge)
	assert.EqualValues(t, 1, cfg.SnowflakeNode)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("REQUIRE_CHALLENGE", "true")
	t.Setenv("SNOWFLAKE_NODE", "7")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.RequireChallenge)
	assert.EqualValues(t, 7, cfg.SnowflakeNode)
}

func TestInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"SESSION_TTL":       "forever",
		"CHALLENGE_TTL":     "-1m",
		"REQUIRE_CHALLENGE": "maybe",
		"SNOWFLAKE_NODE":    "one",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}
