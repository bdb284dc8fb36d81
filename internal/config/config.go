package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/MetallVersion/foodstuffs-rating-backend/pkg/config"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/database"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/tracing"
)

const (
	defaultJWTSecret = "change-this-to-a-secure-secret"
	minSecretLength  = 32
)

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"identity"`

	// HTTP server
	HTTPPort            int           `env:"IDENTITY_HTTP_PORT" envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"identity"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"identity_secret"`
	PostgresDB         string        `env:"IDENTITY_DB_NAME" envDefault:"identity_db"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns   int32         `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	RunMigrations      bool          `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"foodstuffs-rating"`
	JWTAudience     string        `env:"JWT_AUDIENCE" envDefault:"foodstuffs-rating-api"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Passwords
	BcryptCost                     int  `env:"BCRYPT_COST" envDefault:"11"`
	PasswordMinLength              int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordMaxLength              int  `env:"PASSWORD_MAX_LENGTH" envDefault:"30"`
	PasswordRequireDigit           bool `env:"PASSWORD_REQUIRE_DIGIT" envDefault:"true"`
	PasswordRequireLowercase       bool `env:"PASSWORD_REQUIRE_LOWERCASE" envDefault:"true"`
	PasswordRequireUppercase       bool `env:"PASSWORD_REQUIRE_UPPERCASE" envDefault:"true"`
	PasswordRequireNonAlphanumeric bool `env:"PASSWORD_REQUIRE_NON_ALPHANUMERIC" envDefault:"true"`
	PasswordRequiredUniqueChars    int  `env:"PASSWORD_REQUIRED_UNIQUE_CHARS" envDefault:"1"`

	// Password grant throttling
	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	LoginWindow      time.Duration `env:"LOGIN_ATTEMPT_WINDOW" envDefault:"15m"`

	// Google identity tokens
	GoogleClientID       string   `env:"GOOGLE_CLIENT_ID"`
	GoogleIssuers        []string `env:"GOOGLE_ISSUERS" envDefault:"https://accounts.google.com,accounts.google.com" envSeparator:","`
	GooglePublicKeysFile string   `env:"GOOGLE_PUBLIC_KEYS_FILE"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate checks cross-field rules. It is called by Load.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}

	// Outside development the signing key must be set explicitly and carry at
	// least 256 bits.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment))
		} else if len(c.JWTSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTSecret)))
		}
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_ISSUER and JWT_AUDIENCE are required"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TOKEN_TTL must be positive, got %s", c.AccessTokenTTL))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_TOKEN_TTL must be positive, got %s", c.RefreshTokenTTL))
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.PasswordMinLength < 1 || c.PasswordMaxLength < c.PasswordMinLength {
		errs = append(errs, fmt.Errorf("invalid password length bounds [%d, %d]", c.PasswordMinLength, c.PasswordMaxLength))
	}
	if c.LoginMaxAttempts < 1 || c.LoginWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS and LOGIN_ATTEMPT_WINDOW must be positive"))
	}

	if c.GooglePublicKeysFile != "" && c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required when GOOGLE_PUBLIC_KEYS_FILE is set"))
	}

	return errors.Join(errs...)
}

// GoogleEnabled reports whether federated Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GooglePublicKeysFile != ""
}

// GooglePublicKeys reads the PEM bundle of trusted Google signing keys.
func (c *Config) GooglePublicKeys() ([]byte, error) {
	data, err := os.ReadFile(c.GooglePublicKeysFile)
	if err != nil {
		return nil, fmt.Errorf("read google public keys: %w", err)
	}
	return data, nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	return pg
}

// Redis returns the redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 5 * time.Second,
	}
}

// Tracing returns the tracer provider settings.
func (c *Config) Tracing(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTLPEndpoint,
		SampleRate:     c.TracingSampleRate,
		Insecure:       c.IsDevelopment(),
		Enabled:        c.TracingEnabled,
	}
}
