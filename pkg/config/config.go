// Package config loads and validates the service configuration.
//
// Sources, in order of precedence:
//  1. Environment variables, prefixed LINEGRID_ (e.g. LINEGRID_PORT)
//  2. A YAML configuration file, if present
//  3. Defaults applied in applyDefaults()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/linegrid/linegrid/internal/bytesize"
)

// Config is the top-level service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `mapstructure:"port" validate:"required,gt=0" yaml:"port"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// Database configures the Postgres-backed document store.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Object configures the S3-compatible object store.
	Object ObjectStoreConfig `mapstructure:"object" yaml:"object"`

	// Upload controls ingest admission checks.
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Job controls the processing worker and job-queue defaults.
	Job JobConfig `mapstructure:"job" yaml:"job"`

	// Worker controls whether this process runs a processing worker loop,
	// and under which worker identifier.
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required,oneof=stdout stderr" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig controls the Prometheus metrics registry and the GET
// /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DatabaseConfig configures the Postgres-backed document store.
//
// DSN is a Postgres connection string for the document store, which is
// implemented over Postgres/JSONB rather than MongoDB (see DESIGN.md for
// the rationale).
type DatabaseConfig struct {
	DSN         string        `mapstructure:"dsn" validate:"required" yaml:"dsn"`
	MaxConns    int32         `mapstructure:"max_conns" validate:"gte=1" yaml:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns" validate:"gte=0" yaml:"min_conns"`
	AutoMigrate bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
	PingTimeout time.Duration `mapstructure:"ping_timeout" validate:"gt=0" yaml:"ping_timeout"`
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	Region          string `mapstructure:"region" validate:"required" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Bucket          string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`

	PartSize           bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size"`
	MaxParallelUploads int               `mapstructure:"max_parallel_uploads" validate:"gte=1" yaml:"max_parallel_uploads"`
}

// UploadConfig controls ingest admission checks.
type UploadConfig struct {
	MaxFileSize      bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`
	AllowedFileTypes []string          `mapstructure:"allowed_file_types" validate:"required,min=1" yaml:"allowed_file_types"`
}

// JobConfig controls the job queue and the processing worker.
type JobConfig struct {
	BatchSize         int           `mapstructure:"batch_size" validate:"gte=1" yaml:"batch_size"`
	WritePause        time.Duration `mapstructure:"write_pause" validate:"gte=0" yaml:"write_pause"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout" validate:"gt=0" yaml:"lock_timeout"`
	StaleThreshold    time.Duration `mapstructure:"stale_threshold" validate:"gt=0" yaml:"stale_threshold"`
	WorkerPollInterval time.Duration `mapstructure:"worker_poll_interval" validate:"gt=0" yaml:"worker_poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1" yaml:"max_attempts"`
	MaxErrorTail      int           `mapstructure:"max_error_tail" validate:"gte=1" yaml:"max_error_tail"`
}

// WorkerConfig controls whether this process runs the processing worker loop.
type WorkerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	ID      string `mapstructure:"id" yaml:"id"`
}

const envPrefix = "LINEGRID"

// Load reads configuration from the optional file path, environment
// variables and defaults, and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook,
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Worker.ID == "" {
		cfg.Worker.ID = fmt.Sprintf("worker-%d", os.Getpid())
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration exactly as Load does and returns its error
// unchanged; it does not panic.
func MustLoad(configFile string) (*Config, error) {
	return Load(configFile)
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Database.MinConns > int32(cfg.Database.MaxConns) {
		return fmt.Errorf("invalid configuration: database.min_conns must be <= database.max_conns")
	}
	return nil
}

// byteSizeDecodeHook lets bytesize.ByteSize fields be set from human-readable
// strings like "5Gi" in both YAML and environment variables.
func byteSizeDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(bytesize.ByteSize(0)) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return bytesize.Parse(v)
	case int, int32, int64, uint, uint32, uint64:
		return bytesize.ByteSize(reflect.ValueOf(v).Convert(reflect.TypeOf(uint64(0))).Uint()), nil
	default:
		return data, nil
	}
}
