package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Credential store drivers.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// bcryptMaxPasswordBytes is the longest input bcrypt accepts.
const bcryptMaxPasswordBytes = 72

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Events   EventsConfig
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

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver string
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
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	TokenIssuer           string
	AccessTokenTTLMinutes int
	BcryptCost            int
	UniformLoginErrors    bool
	PasswordMinLength     int
	PasswordMaxBytes      int
	EmailMaxLength        int
}

// EventsConfig holds identity event forwarding settings.
type EventsConfig struct {
	AMQPURL      string
	AMQPExchange string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	appName := getEnv("APP_NAME", "credential-service")
	if authCfg.TokenIssuer == "" {
		authCfg.TokenIssuer = appName
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("CREDENTIAL_STORE", StorePostgres)),
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
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "credsvc:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Events: EventsConfig{
			AMQPURL:      os.Getenv("AMQP_URL"),
			AMQPExchange: getEnv("AMQP_EXCHANGE", "identity_events"),
		},
		Auth: authCfg,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAuthConfig reads the AUTH_* keys. Malformed values are errors rather
// than silent defaults.
func loadAuthConfig() (AuthConfig, error) {
	cfg := AuthConfig{
		JWTSecret:   os.Getenv("AUTH_JWT_SECRET"),
		TokenIssuer: os.Getenv("AUTH_TOKEN_ISSUER"),
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"AUTH_ACCESS_TOKEN_TTL_MINUTES", 60, &cfg.AccessTokenTTLMinutes},
		{"AUTH_BCRYPT_COST", 10, &cfg.BcryptCost},
		{"AUTH_PASSWORD_MIN_LENGTH", 6, &cfg.PasswordMinLength},
		{"AUTH_PASSWORD_MAX_BYTES", bcryptMaxPasswordBytes, &cfg.PasswordMaxBytes},
		{"AUTH_EMAIL_MAX_LENGTH", 254, &cfg.EmailMaxLength},
	}
	for _, field := range ints {
		val, err := parseEnvInt(field.key, field.fallback)
		if err != nil {
			return AuthConfig{}, err
		}
		*field.dst = val
	}

	uniform, err := parseEnvBool("AUTH_UNIFORM_LOGIN_ERRORS", false)
	if err != nil {
		return AuthConfig{}, err
	}
	cfg.UniformLoginErrors = uniform
	return cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid AUTH_BCRYPT_COST %d: must be between %d and %d",
			c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("invalid AUTH_ACCESS_TOKEN_TTL_MINUTES %d", c.Auth.AccessTokenTTLMinutes)
	}
	if c.Auth.PasswordMaxBytes <= 0 || c.Auth.PasswordMaxBytes > bcryptMaxPasswordBytes {
		return fmt.Errorf("invalid AUTH_PASSWORD_MAX_BYTES %d: must be between 1 and %d",
			c.Auth.PasswordMaxBytes, bcryptMaxPasswordBytes)
	}
	if c.Auth.PasswordMinLength < 1 || c.Auth.PasswordMinLength > c.Auth.PasswordMaxBytes {
		return fmt.Errorf("invalid AUTH_PASSWORD_MIN_LENGTH %d", c.Auth.PasswordMinLength)
	}
	if c.Auth.EmailMaxLength <= 0 {
		return fmt.Errorf("invalid AUTH_EMAIL_MAX_LENGTH %d", c.Auth.EmailMaxLength)
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres credential store")
		}
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown CREDENTIAL_STORE %q", c.Store.Driver)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
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

func parseEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return parsed, nil
}

func parseEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return parsed, nil
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
