package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service settings read from the environment
type Config struct {
	HTTPAddr         string
	DatabaseURL      string
	RedisURL         string
	SigningKeyFile   string
	Issuer           string
	SessionTTL       time.Duration
	ChallengeTTL     time.Duration
	RequireChallenge bool
	LoginNetwork     string
	NetworksFile     string
	SnowflakeNode    int64
}

// Load reads .env (best-effort) and then the environment
func Load() (Config, error) {
	// no .env is fine, real env or defaults apply
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables with defaults
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8111"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SigningKeyFile: os.Getenv("JWT_SIGNING_KEY_FILE"),
		Issuer:         getenv("JWT_ISSUER", "walletauth"),
		LoginNetwork:   getenv("LOGIN_NETWORK", "eth"),
		NetworksFile:   os.Getenv("NETWORKS_FILE"),
	}

	var err error
	if cfg.SessionTTL, err = duration("SESSION_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ChallengeTTL, err = duration("CHALLENGE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RequireChallenge, err = boolean("REQUIRE_CHALLENGE", false); err != nil {
		return Config{}, err
	}
	if cfg.SnowflakeNode, err = integer("SNOWFLAKE_NODE", 1); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration like 30m", key, v)
	}
	return d, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func integer(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
