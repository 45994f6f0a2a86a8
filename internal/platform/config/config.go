package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Driver      string `env:"DB_DRIVER" envDefault:"postgres"`
	PostgresURL string `env:"POSTGRES_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"lor.db"`
	MinConns    int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

type Config struct {
	Env            string        `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	CorsOrigin     string        `env:"CORS_ORIGIN" envDefault:"*"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
	MaxRequestBody int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	Database       Database
	MigrationDir   string `env:"MIGRATIONS_DIR" envDefault:"migrations/postgres"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CharacterTTL  time.Duration `env:"CHARACTER_CACHE_TTL" envDefault:"30s"`
	NATSURL       string        `env:"NATS_URL"`
	NATSPrefix    string        `env:"NATS_SUBJECT_PREFIX" envDefault:"lor"`
}

// MigrateConfig is the environment of the standalone migration runner. Both
// the migrations directory and the database location are mandatory.
type MigrateConfig struct {
	Env          string `env:"APP_ENV" envDefault:"dev"`
	Database     Database
	MigrationDir string `env:"MIGRATIONS_DIR"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Database.validate(); err != nil {
		return Config{}, err
	}
	if cfg.MaxRequestBody <= 0 {
		return Config{}, fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if cfg.MigrateOnStart && cfg.MigrationDir == "" {
		return Config{}, fmt.Errorf("MIGRATIONS_DIR must be set when MIGRATE_ON_START is enabled")
	}
	return cfg, nil
}

func LoadMigrate() (MigrateConfig, error) {
	var cfg MigrateConfig
	if err := env.Parse(&cfg); err != nil {
		return MigrateConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MigrationDir == "" {
		return MigrateConfig{}, errors.New("MIGRATIONS_DIR must be set")
	}
	if err := cfg.Database.validate(); err != nil {
		return MigrateConfig{}, err
	}
	return cfg, nil
}

func (d Database) validate() error {
	switch d.Driver {
	case DriverPostgres:
		if d.PostgresURL == "" {
			return errors.New("POSTGRES_URL must be set")
		}
		if d.MinConns < 1 || d.MaxConns < d.MinConns {
			return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS must satisfy 1 <= min <= max, got %d/%d", d.MinConns, d.MaxConns)
		}
	case DriverSQLite:
		if d.SQLitePath == "" {
			return errors.New("SQLITE_PATH must be set")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, d.Driver)
	}
	return nil
}
