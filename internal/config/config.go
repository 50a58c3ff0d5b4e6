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

const devTokenSecret = "dev-support-token-secret-change-me"

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Session  SessionConfig
	Cookie   CookieConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	DialTimeoutSec int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	SupportTokenSecret     string
	SupportTokenTTLMinutes int
	SupportRequireSession  bool
	BcryptCost             int
	LoginRatePerSecond     int
	LoginBurst             int
}

// SessionConfig controls session storage and expiry.
type SessionConfig struct {
	Backend              string
	IdleTimeoutMinutes   int
	MaxAgeMinutes        int
	SweepIntervalSeconds int
}

// CookieConfig controls attributes of the session cookies.
type CookieConfig struct {
	Domain string
	Secure bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "portal-auth"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			DialTimeoutSec: getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: strings.ToLower(getEnv("LOG_ENCODING", "json")),
		},
		Auth: AuthConfig{
			SupportTokenSecret:     os.Getenv("SUPPORT_TOKEN_SECRET"),
			SupportTokenTTLMinutes: getEnvAsInt("SUPPORT_TOKEN_TTL_MINUTES", 120),
			SupportRequireSession:  getEnvAsBool("SUPPORT_REQUIRE_SESSION", false),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginRatePerSecond:     getEnvAsInt("AUTH_LOGIN_RATE_PER_SECOND", 5),
			LoginBurst:             getEnvAsInt("AUTH_LOGIN_BURST", 10),
		},
		Session: SessionConfig{
			Backend:              strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			IdleTimeoutMinutes:   getEnvAsInt("SESSION_IDLE_TIMEOUT_MINUTES", 720),
			MaxAgeMinutes:        getEnvAsInt("SESSION_MAX_AGE_MINUTES", 720),
			SweepIntervalSeconds: getEnvAsInt("SESSION_SWEEP_INTERVAL_SECONDS", 300),
		},
		Cookie: CookieConfig{
			Domain: os.Getenv("COOKIE_DOMAIN"),
			Secure: getEnvAsBool("COOKIE_SECURE", true),
		},
	}

	if cfg.Auth.SupportTokenSecret == "" && cfg.App.IsDevelopment() {
		cfg.Auth.SupportTokenSecret = devTokenSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Auth.SupportTokenSecret == "" {
		return errors.New("SUPPORT_TOKEN_SECRET is required")
	}
	if !c.App.IsDevelopment() && len(c.Auth.SupportTokenSecret) < 32 {
		return errors.New("SUPPORT_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.Auth.SupportTokenTTLMinutes <= 0 {
		return fmt.Errorf("invalid SUPPORT_TOKEN_TTL_MINUTES: %d", c.Auth.SupportTokenTTLMinutes)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_BACKEND: %q", c.Session.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs in the development environment.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SupportTokenTTL returns the lifetime of issued support tokens.
func (a AuthConfig) SupportTokenTTL() time.Duration {
	return time.Duration(a.SupportTokenTTLMinutes) * time.Minute
}

// IdleTimeout returns how long an untouched session stays valid.
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// MaxAge is the staleness threshold handed to the sweeper.
func (s SessionConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeMinutes) * time.Minute
}

// SweepInterval returns the sweeper tick.
func (s SessionConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
