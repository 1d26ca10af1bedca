package config_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/covfold/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Storage: config.StorageConfig{
			Backend:     "file",
			Directory:   ".covfold",
			Compression: "lz4",
		},
		PathFixer: config.PathFixerConfig{
			Fixes: []string{"/build/::"},
		},
		Processing: config.ProcessingConfig{MaxConcurrentUploads: 2},
		Logging:    config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_ValidConfig_NoError(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{name: "backend", mutate: func(c *config.Config) { c.Storage.Backend = "s3" }, want: config.ErrInvalidBackend},
		{name: "compression", mutate: func(c *config.Config) { c.Storage.Compression = "zstd" }, want: config.ErrInvalidCompression},
		{name: "directory", mutate: func(c *config.Config) { c.Storage.Directory = "" }, want: config.ErrMissingDirectory},
		{name: "dsn", mutate: func(c *config.Config) { c.Storage.Backend = "sqlite" }, want: config.ErrMissingDSN},
		{name: "fix", mutate: func(c *config.Config) { c.PathFixer.Fixes = []string{"nope"} }, want: config.ErrInvalidFix},
		{name: "concurrency", mutate: func(c *config.Config) { c.Processing.MaxConcurrentUploads = 0 }, want: config.ErrInvalidConcurrency},
		{name: "level", mutate: func(c *config.Config) { c.Logging.Level = "loud" }, want: config.ErrInvalidLogLevel},
		{name: "format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, want: config.ErrInvalidLogFormat},
		{name: "ratio", mutate: func(c *config.Config) { c.Observability.SampleRatio = 1.5 }, want: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestOptions_Conversion(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Logging = config.LoggingConfig{Level: "debug", Format: "json"}
	cfg.Observability = config.ObservabilityConfig{
		OTLPEndpoint: "localhost:4317",
		OTLPHeaders:  "x-api-key=secret",
		SampleRatio:  0.25,
		Environment:  "ci",
	}
	cfg.PathFixer.IgnoreVendored = true

	store := cfg.StorageOptions()
	assert.Equal(t, "file", store.Backend)
	assert.Equal(t, "lz4", store.Compression)

	fixer := cfg.PathFixerOptions()
	assert.Equal(t, []string{"/build/::"}, fixer.Fixes)
	assert.True(t, fixer.IgnoreVendored)

	obs := cfg.ObservabilityOptions()
	assert.Equal(t, "covfold", obs.ServiceName)
	assert.Equal(t, slog.LevelDebug, obs.LogLevel)
	assert.True(t, obs.LogJSON)
	assert.Equal(t, "localhost:4317", obs.OTLPEndpoint)
	assert.Equal(t, "ci", obs.Environment)
	assert.Equal(t, map[string]string{"x-api-key": "secret"}, obs.OTLPHeaders)
	assert.InDelta(t, 0.25, obs.SampleRatio, 0.0001)
}
