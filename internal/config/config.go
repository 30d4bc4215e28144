// Package config centralizes how LifeLane reads environment variables and
// exposes them as strongly typed values.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backend names accepted by LIFELANE_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address          string
	StoreBackend     string
	DataFile         string
	UsersFile        string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SirenTTL         time.Duration
	TransitionPolicy string
	AuthRequired     bool
	JWTSecret        []byte
	TokenTTL         time.Duration
	Workers          int
}

const (
	defaultAddress     = ":8080"
	defaultStore       = StoreMemory
	defaultDataFile    = "data/emergency_requests.json"
	defaultUsersFile   = "data/users.json"
	defaultPolicy      = "strict"
	defaultTokenTTL    = 12 * time.Hour
	defaultWorkerCount = 2
)

// Load reads configuration from environment variables falling back to
// defaults. A zero SirenTTL leaves the countdown cosmetic: codes are never
// invalidated server-side, matching the historical behavior.
func Load() (*Config, error) {
	redisDB, err := parseInt("LIFELANE_REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	sirenTTL, err := parseDuration("LIFELANE_SIREN_TTL", 0)
	if err != nil {
		return nil, err
	}
	authRequired, err := parseBool("LIFELANE_AUTH", false)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := parseDuration("LIFELANE_TOKEN_TTL", defaultTokenTTL)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("LIFELANE_WORKERS", defaultWorkerCount)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Address:          readEnv("LIFELANE_ADDRESS", defaultAddress),
		StoreBackend:     readEnv("LIFELANE_STORE", defaultStore),
		DataFile:         readEnv("LIFELANE_DATA_FILE", defaultDataFile),
		UsersFile:        readEnv("LIFELANE_USERS_FILE", defaultUsersFile),
		DatabaseURL:      readEnv("LIFELANE_DATABASE_URL", ""),
		RedisAddr:        readEnv("LIFELANE_REDIS_ADDR", ""),
		RedisPassword:    readEnv("LIFELANE_REDIS_PASSWORD", ""),
		RedisDB:          redisDB,
		SirenTTL:         sirenTTL,
		TransitionPolicy: readEnv("LIFELANE_TRANSITION_POLICY", defaultPolicy),
		AuthRequired:     authRequired,
		JWTSecret:        parseSecret("LIFELANE_JWT_SECRET"),
		TokenTTL:         tokenTTL,
		Workers:          workers,
	}
	switch cfg.StoreBackend {
	case StoreMemory, StoreFile, StorePostgres:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	switch cfg.TransitionPolicy {
	case "strict", "permissive":
	default:
		return nil, fmt.Errorf("unknown transition policy %q", cfg.TransitionPolicy)
	}
	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("LIFELANE_DATABASE_URL is required for the postgres backend")
	}
	if cfg.JWTSecret == nil {
		cfg.JWTSecret = randomSecret()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return cfg, nil
}

// ExpiryEnabled reports whether server-side siren expiry is configured.
func (c *Config) ExpiryEnabled() bool {
	return c.SirenTTL > 0 && c.RedisAddr != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) (int, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return parsed, nil
	}
	return def, nil
}

func parseBool(key string, def bool) (bool, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return parsed, nil
	}
	return def, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return parsed, nil
	}
	return def, nil
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

// randomSecret keeps single-process runs working without configuration;
// tokens signed with it do not survive a restart.
func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("lifelane-dev-secret")
	}
	return buf
}
