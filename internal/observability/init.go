package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "covfold"
	meterName  = "covfold"

	// envTracesSampler is read by the trace SDK itself; a configured ratio
	// only applies when it is unset.
	envTracesSampler = "OTEL_TRACES_SAMPLER"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Shutdown pushes everything recorded during the run and releases the
	// exporters. Must be called before process exit.
	Shutdown func(ctx context.Context) error
}

// Init wires tracing, metrics and logging for one command run. Without an
// OTLP endpoint the tracer and meter are no-ops. With one, spans and metric
// points are held for the run and pushed by Shutdown, bounded by
// cfg.ShutdownTimeoutSec.
func Init(ctx context.Context, cfg Config) (Providers, error) {
	providers := Providers{
		Tracer:   nooptrace.NewTracerProvider().Tracer(tracerName),
		Meter:    noopmetric.NewMeterProvider().Meter(meterName),
		Logger:   NewLogger(cfg),
		Shutdown: func(context.Context) error { return nil },
	}

	if cfg.OTLPEndpoint == "" {
		return providers, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	exp := newExporterSettings(cfg)

	var closers shutdownList

	tp, err := exp.tracerProvider(ctx, res, cfg.SampleRatio)
	if err != nil {
		return Providers{}, err
	}

	closers.add(tp.Shutdown)

	mp, err := exp.meterProvider(ctx, res)
	if err != nil {
		return Providers{}, errors.Join(err, closers.run(ctx, exp.timeout))
	}

	closers.add(mp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	providers.Tracer = tp.Tracer(tracerName)
	providers.Meter = mp.Meter(meterName)
	providers.Shutdown = func(shutdownCtx context.Context) error {
		return closers.run(shutdownCtx, exp.timeout)
	}

	return providers, nil
}

func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

// exporterSettings is the collector connection shared by the trace and
// metric exporters.
type exporterSettings struct {
	endpoint string
	insecure bool
	headers  map[string]string
	timeout  time.Duration
}

func newExporterSettings(cfg Config) exporterSettings {
	return exporterSettings{
		endpoint: cfg.OTLPEndpoint,
		insecure: cfg.OTLPInsecure,
		headers:  cfg.OTLPHeaders,
		timeout:  shutdownTimeout(cfg),
	}
}

func (s exporterSettings) tracerProvider(
	ctx context.Context, res *resource.Resource, ratio float64,
) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(s.endpoint),
		otlptracegrpc.WithTimeout(s.timeout),
	}

	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(s.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(s.headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(s.timeout)),
		sdktrace.WithResource(res),
	}

	return sdktrace.NewTracerProvider(append(tpOpts, samplerOptions(ratio)...)...), nil
}

func (s exporterSettings) meterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(s.endpoint),
		otlpmetricgrpc.WithTimeout(s.timeout),
	}

	if s.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(s.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(s.headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithTimeout(s.timeout))

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	), nil
}

// samplerOptions returns the sampler for a configured ratio. Without one,
// or when OTEL_TRACES_SAMPLER is set, the SDK picks the sampler itself.
func samplerOptions(ratio float64) []sdktrace.TracerProviderOption {
	if ratio <= 0 || os.Getenv(envTracesSampler) != "" {
		return nil
	}

	return []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.ShutdownTimeoutSec <= 0 {
		return time.Duration(defaultShutdownTimeoutSec) * time.Second
	}

	return time.Duration(cfg.ShutdownTimeoutSec) * time.Second
}

// shutdownList closes providers in reverse creation order under one deadline.
type shutdownList []func(context.Context) error

func (l *shutdownList) add(fn func(context.Context) error) {
	*l = append(*l, fn)
}

func (l shutdownList) run(ctx context.Context, timeout time.Duration) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error

	for _, fn := range slices.Backward(l) {
		errs = append(errs, fn(deadlineCtx))
	}

	return errors.Join(errs...)
}

// ParseOTLPHeaders parses an OTLP headers string in "key=value,key=value"
// format. Returns nil for empty or invalid input.
func ParseOTLPHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	result := make(map[string]string)

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
