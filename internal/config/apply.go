package config

import (
	"strings"

	"github.com/Sumatoshi-tech/covfold/internal/observability"
	"github.com/Sumatoshi-tech/covfold/internal/pathfix"
	"github.com/Sumatoshi-tech/covfold/internal/storage"
)

// StorageOptions converts the storage section for [storage.Open].
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		Backend:     c.Storage.Backend,
		Directory:   c.Storage.Directory,
		DSN:         c.Storage.DSN,
		Compression: c.Storage.Compression,
	}
}

// PathFixerOptions converts the path_fixer section for [pathfix.New].
func (c *Config) PathFixerOptions() pathfix.Config {
	return pathfix.Config{
		StripPrefixes:  c.PathFixer.StripPrefixes,
		Fixes:          c.PathFixer.Fixes,
		Ignore:         c.PathFixer.Ignore,
		IgnoreVendored: c.PathFixer.IgnoreVendored,
	}
}

// ObservabilityOptions overlays the logging and observability sections on
// the observability defaults.
func (c *Config) ObservabilityOptions() observability.Config {
	obs := observability.DefaultConfig()

	obs.OTLPEndpoint = c.Observability.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	obs.OTLPInsecure = c.Observability.OTLPInsecure
	obs.SampleRatio = c.Observability.SampleRatio
	obs.Environment = c.Observability.Environment
	obs.LogLevel = observability.ParseLevel(c.Logging.Level)
	obs.LogJSON = strings.EqualFold(c.Logging.Format, "json")

	return obs
}
