// Package commands implements CLI command handlers for covfold.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covfold/internal/config"
	"github.com/Sumatoshi-tech/covfold/internal/observability"
	"github.com/Sumatoshi-tech/covfold/internal/parsers"
	"github.com/Sumatoshi-tech/covfold/internal/pathfix"
	"github.com/Sumatoshi-tech/covfold/internal/processing"
	"github.com/Sumatoshi-tech/covfold/internal/storage"
	"github.com/Sumatoshi-tech/covfold/pkg/version"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	configPath string

	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.ProcessingMetrics
}

// run loads configuration, starts observability, opens a command span and
// calls fn. Telemetry is flushed before returning.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context) error) (err error) {
	cfg, loadErr := config.LoadConfig(a.configPath)
	if loadErr != nil {
		return fmt.Errorf("load config: %w", loadErr)
	}

	a.cfg = cfg

	obsCfg := cfg.ObservabilityOptions()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, initErr := observability.Init(cmd.Context(), obsCfg)
	if initErr != nil {
		return fmt.Errorf("init observability: %w", initErr)
	}

	a.providers = providers

	defer func() {
		shutdownErr := providers.Shutdown(context.WithoutCancel(cmd.Context()))
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, metricsErr := observability.NewProcessingMetrics(providers.Meter)
	if metricsErr != nil {
		return fmt.Errorf("create metrics: %w", metricsErr)
	}

	a.metrics = metrics

	ctx, span := providers.Tracer.Start(cmd.Context(), "covfold."+cmd.Name())
	defer span.End()

	return fn(ctx)
}

func (a *app) logger() *slog.Logger {
	if a.providers.Logger == nil {
		return slog.Default()
	}

	return a.providers.Logger
}

func (a *app) openStore() (storage.Store, error) {
	store, err := storage.Open(a.cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return store, nil
}

func (a *app) registry() (*parsers.Registry, error) {
	registry := parsers.DefaultRegistry()
	if len(a.cfg.Parsers.Order) == 0 {
		return registry, nil
	}

	ordered, err := registry.Reorder(a.cfg.Parsers.Order)
	if err != nil {
		return nil, fmt.Errorf("parsers.order: %w", err)
	}

	return ordered, nil
}

func (a *app) processor() (*processing.Processor, error) {
	registry, err := a.registry()
	if err != nil {
		return nil, err
	}

	fixer, err := pathfix.New(a.cfg.PathFixerOptions())
	if err != nil {
		return nil, fmt.Errorf("path fixer: %w", err)
	}

	return processing.New(registry, fixer.PathFixer(),
		processing.WithMaxConcurrentUploads(a.cfg.Processing.MaxConcurrentUploads),
		processing.WithLogger(a.logger()),
		processing.WithTracer(a.providers.Tracer),
		processing.WithMetrics(a.metrics),
	), nil
}

func closeStore(store storage.Store, logger *slog.Logger) {
	closeErr := store.Close()
	if closeErr != nil {
		logger.Warn("close storage failed", "error", closeErr)
	}
}
