package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config aggregates runtime configuration for the Grimoire API.
type Config struct {
	Env       string
	Server    ServerConfig
	Postgres  PostgresConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Bootstrap BootstrapConfig
	Reference ReferenceConfig
	Metrics   MetricsConfig
	Log       LogConfig
	CORS      CORSConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information. The bucket
// caches reference API documents.
type MinIOConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	CacheTTL        time.Duration
}

// StorageConfig selects the entity store driver.
type StorageConfig struct {
	Driver         string
	MigrateOnStart bool
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	JWTSecret       string
	JWTAlgorithm    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// BootstrapConfig describes the superuser created on first start. Empty
// Username disables bootstrapping.
type BootstrapConfig struct {
	Username string
	Email    string
	Password string
}

// Enabled reports whether a bootstrap superuser is configured.
func (b BootstrapConfig) Enabled() bool {
	return b.Username != ""
}

// ReferenceConfig configures the D&D 5e reference API client.
type ReferenceConfig struct {
	BaseURL string
	Timeout time.Duration
	Fanout  int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string
}

// CORSConfig lists origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration values from the environment, applying defaults.
// A .env file, when present, should be loaded by the caller first.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Host:         v.GetString("GRIMOIRE_API_HOST"),
			Port:         v.GetInt("GRIMOIRE_API_PORT"),
			ReadTimeout:  v.GetDuration("GRIMOIRE_API_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("GRIMOIRE_API_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("GRIMOIRE_API_IDLE_TIMEOUT"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Database: v.GetString("POSTGRES_DB"),
			SSLMode:  strings.ToLower(v.GetString("POSTGRES_SSL_MODE")),
			MaxConns: v.GetInt32("POSTGRES_MAX_CONNS"),
		},
		MinIO: MinIOConfig{
			Enabled:         v.GetBool("MINIO_ENABLED"),
			Endpoint:        v.GetString("MINIO_ENDPOINT"),
			AccessKeyID:     v.GetString("MINIO_ROOT_USER"),
			SecretAccessKey: v.GetString("MINIO_ROOT_PASSWORD"),
			Bucket:          v.GetString("MINIO_BUCKET"),
			UseSSL:          v.GetBool("MINIO_USE_SSL"),
			Region:          v.GetString("MINIO_REGION"),
			CacheTTL:        v.GetDuration("MINIO_CACHE_TTL"),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
			MigrateOnStart: v.GetBool("STORAGE_MIGRATE_ON_START"),
		},
		Auth: AuthConfig{
			JWTSecret:       v.GetString("GRIMOIRE_JWT_SECRET"),
			JWTAlgorithm:    strings.ToUpper(v.GetString("GRIMOIRE_JWT_ALGORITHM")),
			AccessTokenTTL:  v.GetDuration("GRIMOIRE_AUTH_ACCESS_TOKEN_TTL"),
			RefreshTokenTTL: v.GetDuration("GRIMOIRE_AUTH_REFRESH_TOKEN_TTL"),
			BcryptCost:      v.GetInt("GRIMOIRE_AUTH_BCRYPT_COST"),
		},
		Bootstrap: BootstrapConfig{
			Username: v.GetString("GRIMOIRE_BOOTSTRAP_USERNAME"),
			Email:    v.GetString("GRIMOIRE_BOOTSTRAP_EMAIL"),
			Password: v.GetString("GRIMOIRE_BOOTSTRAP_PASSWORD"),
		},
		Reference: ReferenceConfig{
			BaseURL: strings.TrimRight(v.GetString("DND5_BASE_URL"), "/"),
			Timeout: v.GetDuration("DND5_TIMEOUT"),
			Fanout:  v.GetInt("DND5_FANOUT"),
		},
		Metrics: MetricsConfig{
			PrometheusPath: v.GetString("GRIMOIRE_METRICS_PATH"),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("GRIMOIRE_API_HOST", "0.0.0.0")
	v.SetDefault("GRIMOIRE_API_PORT", 8080)
	v.SetDefault("GRIMOIRE_API_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("GRIMOIRE_API_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("GRIMOIRE_API_IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "grimoire_app")
	v.SetDefault("POSTGRES_PASSWORD", "change-me")
	v.SetDefault("POSTGRES_DB", "grimoire")
	v.SetDefault("POSTGRES_SSL_MODE", "disable")
	v.SetDefault("POSTGRES_MAX_CONNS", 10)

	v.SetDefault("MINIO_ENABLED", false)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ROOT_USER", "grimoire")
	v.SetDefault("MINIO_ROOT_PASSWORD", "change-me-strong-password")
	v.SetDefault("MINIO_BUCKET", "grimoire-reference")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_REGION", "")
	v.SetDefault("MINIO_CACHE_TTL", 24*time.Hour)

	v.SetDefault("STORAGE_DRIVER", DriverPostgres)
	v.SetDefault("STORAGE_MIGRATE_ON_START", true)

	v.SetDefault("GRIMOIRE_JWT_SECRET", "")
	v.SetDefault("GRIMOIRE_JWT_ALGORITHM", "HS256")
	v.SetDefault("GRIMOIRE_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("GRIMOIRE_AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("GRIMOIRE_AUTH_BCRYPT_COST", 12)

	v.SetDefault("GRIMOIRE_BOOTSTRAP_USERNAME", "")
	v.SetDefault("GRIMOIRE_BOOTSTRAP_EMAIL", "")
	v.SetDefault("GRIMOIRE_BOOTSTRAP_PASSWORD", "")

	v.SetDefault("DND5_BASE_URL", "https://www.dnd5eapi.co/api")
	v.SetDefault("DND5_TIMEOUT", 30*time.Second)
	v.SetDefault("DND5_FANOUT", 8)

	v.SetDefault("GRIMOIRE_METRICS_PATH", "/metrics")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: GRIMOIRE_JWT_SECRET must be set")
	}
	if !strings.HasPrefix(c.Auth.JWTAlgorithm, "HS") {
		return fmt.Errorf("config: GRIMOIRE_JWT_ALGORITHM %q is not an HMAC algorithm", c.Auth.JWTAlgorithm)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		c.Auth.BcryptCost = 12
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Bootstrap.Enabled() && (c.Bootstrap.Email == "" || c.Bootstrap.Password == "") {
		return errors.New("config: GRIMOIRE_BOOTSTRAP_EMAIL and GRIMOIRE_BOOTSTRAP_PASSWORD are required with GRIMOIRE_BOOTSTRAP_USERNAME")
	}

	if c.Reference.Fanout <= 0 {
		c.Reference.Fanout = 1
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
