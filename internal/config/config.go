// Package config loads covfold settings from .covfold.yaml, COVFOLD_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"slices"
	"strings"
)

// Config is the top-level configuration struct for covfold.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Storage       StorageConfig       `mapstructure:"storage"`
	PathFixer     PathFixerConfig     `mapstructure:"path_fixer"`
	Parsers       ParsersConfig       `mapstructure:"parsers"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StorageConfig selects where reports are persisted.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Directory   string `mapstructure:"directory"`
	DSN         string `mapstructure:"dsn"`
	Compression string `mapstructure:"compression"`
}

// PathFixerConfig holds path rewriting and ignore rules.
type PathFixerConfig struct {
	StripPrefixes  []string `mapstructure:"strip_prefixes"`
	Fixes          []string `mapstructure:"fixes"`
	Ignore         []string `mapstructure:"ignore"`
	IgnoreVendored bool     `mapstructure:"ignore_vendored"`
}

// ParsersConfig holds format detection settings.
type ParsersConfig struct {
	Order []string `mapstructure:"order"`
}

// ProcessingConfig holds upload processing knobs.
type ProcessingConfig struct {
	MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
}

const fixSeparator = "::"

var (
	validBackends     = []string{"file", "sqlite"}
	validCompressions = []string{"lz4", "none"}
	validLogFormats   = []string{"text", "json"}
	validLogLevels    = []string{"debug", "info", "warn", "error"}
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidBackend indicates an unknown storage backend.
	ErrInvalidBackend = errors.New("storage.backend must be file or sqlite")
	// ErrInvalidCompression indicates an unknown compression mode.
	ErrInvalidCompression = errors.New("storage.compression must be lz4 or none")
	// ErrMissingDirectory indicates the file backend has no directory.
	ErrMissingDirectory = errors.New("storage.directory must be set for the file backend")
	// ErrMissingDSN indicates the sqlite backend has no database path.
	ErrMissingDSN = errors.New("storage.dsn must be set for the sqlite backend")
	// ErrInvalidFix indicates a path fix without the "::" separator.
	ErrInvalidFix = errors.New("path_fixer.fixes entries must look like before::after")
	// ErrInvalidConcurrency indicates a non-positive upload concurrency.
	ErrInvalidConcurrency = errors.New("processing.max_concurrent_uploads must be positive")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrInvalidSampleRatio indicates a sample ratio outside [0, 1].
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	storageErr := c.validateStorage()
	if storageErr != nil {
		return storageErr
	}

	for _, fix := range c.PathFixer.Fixes {
		if !strings.Contains(fix, fixSeparator) {
			return ErrInvalidFix
		}
	}

	if c.Processing.MaxConcurrentUploads < 1 {
		return ErrInvalidConcurrency
	}

	return c.validateTelemetry()
}

func (c *Config) validateStorage() error {
	if !slices.Contains(validBackends, c.Storage.Backend) {
		return ErrInvalidBackend
	}

	if !slices.Contains(validCompressions, c.Storage.Compression) {
		return ErrInvalidCompression
	}

	if c.Storage.Backend == "file" && c.Storage.Directory == "" {
		return ErrMissingDirectory
	}

	if c.Storage.Backend == "sqlite" && c.Storage.DSN == "" {
		return ErrMissingDSN
	}

	return nil
}

func (c *Config) validateTelemetry() error {
	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return ErrInvalidLogLevel
	}

	if !slices.Contains(validLogFormats, c.Logging.Format) {
		return ErrInvalidLogFormat
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}
