package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreREST     = "rest"
	StoreMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	Store    StoreConfig
	DB       DatabaseConfig
	REST     RESTConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Worker   WorkerConfig
	Snapshot SnapshotConfig
	S3       S3Config
	Contact  ContactConfig

	AllowedOrigins []string
}

// StoreConfig selects the remote catalog store backend.
type StoreConfig struct {
	Driver string
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// RESTConfig points at a hosted PostgREST-compatible table API (e.g. Supabase).
type RESTConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// RedisConfig contains Redis connection parameters. When disabled, admin
// sessions and lockouts are kept in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// AdminConfig contains the back-office password gate policy.
type AdminConfig struct {
	// Password is the fallback secret used when no hash is stored remotely.
	Password      string
	SessionTTL    time.Duration
	LockoutWindow time.Duration
	MaxAttempts   int
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CatalogRefreshInterval time.Duration
}

// SnapshotConfig contains backup/restore and legacy-migration settings.
type SnapshotConfig struct {
	LegacyDataPath string
	Bucket         string
	Prefix         string
}

// S3Config contains AWS S3 configuration for snapshot archives.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ContactConfig configures the outbound messaging deep-link.
type ContactConfig struct {
	Phone string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "localhost:3000,127.0.0.1:3000"))

	cfg.Store = StoreConfig{Driver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres))}

	// Database
	cfg.DB = DatabaseConfig{
		Host:           getEnv("DB_HOST", ""),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", ""),
		Password:       getEnv("DB_PASSWORD", ""),
		Name:           getEnv("DB_NAME", ""),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://migrations"),
	}

	// Hosted table API
	cfg.REST = RESTConfig{
		URL:    strings.TrimSuffix(getEnv("STORE_REST_URL", ""), "/"),
		APIKey: getEnv("STORE_REST_KEY", ""),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Enabled:  getEnvBool("REDIS_ENABLED", true),
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.Admin = AdminConfig{
		Password:    getEnv("ADMIN_PASSWORD", ""),
		MaxAttempts: getEnvInt("LOCKOUT_MAX_ATTEMPTS", 3),
	}

	cfg.Snapshot = SnapshotConfig{
		LegacyDataPath: getEnv("LEGACY_DATA_PATH", "data/legacy_storage.json"),
		Bucket:         getEnv("SNAPSHOT_BUCKET", ""),
		Prefix:         getEnv("SNAPSHOT_PREFIX", "catalog-backups/"),
	}

	cfg.S3 = S3Config{
		Region:          getEnv("AWS_REGION", "sa-east-1"),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	cfg.Contact = ContactConfig{Phone: getEnv("CONTACT_PHONE", "5500000000000")}

	// Durations
	var err error
	if cfg.REST.Timeout, err = parseDurationEnv("STORE_REST_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid STORE_REST_TIMEOUT: %w", err)
	}
	if cfg.Admin.SessionTTL, err = parseDurationEnv("SESSION_TTL", "2h"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.Admin.LockoutWindow, err = parseDurationEnv("LOCKOUT_WINDOW", "15m"); err != nil {
		return nil, fmt.Errorf("invalid LOCKOUT_WINDOW: %w", err)
	}
	if cfg.Worker.CatalogRefreshInterval, err = parseDurationEnv("CATALOG_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_REFRESH_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StorePostgres:
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
		}
	case StoreREST:
		if c.REST.URL == "" || c.REST.APIKey == "" {
			return errors.New("rest store configuration incomplete: ensure STORE_REST_URL and STORE_REST_KEY are set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, rest or memory)", c.Store.Driver)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	if c.Admin.MaxAttempts < 1 {
		return errors.New("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
