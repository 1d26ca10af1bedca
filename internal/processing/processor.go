// Package processing orchestrates upload parsing, merging and carryforward
// on top of the format registry, the builder and a report store.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/covfold/internal/builder"
	"github.com/Sumatoshi-tech/covfold/internal/observability"
	"github.com/Sumatoshi-tech/covfold/internal/parsers"
	"github.com/Sumatoshi-tech/covfold/internal/storage"
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// DefaultMaxConcurrentUploads bounds parallel parsing when no limit is set.
const DefaultMaxConcurrentUploads = 4

const tracerName = "covfold/processing"

// ErrNoUploads is returned when Process is called without uploads.
var ErrNoUploads = errors.New("no uploads to process")

// Upload is one raw coverage payload plus the session it becomes.
type Upload struct {
	// Session is the metadata of the session created for this upload.
	// Session.ID must be assigned by the caller and unique in the target report.
	Session coverage.Session
	// Format names the parser to use; empty means detect.
	Format string
	// Name is the upload file name, used as a detection hint.
	Name    string
	Payload []byte
}

// Result describes what happened to one upload.
type Result struct {
	SessionID int
	Format    string
	Stats     builder.Stats
	Duration  time.Duration
	Err       error
}

// OK reports whether the upload was parsed and merged.
func (r Result) OK() bool {
	return r.Err == nil
}

// Processor parses uploads into reports. It holds no per-report state and is
// safe for concurrent use.
type Processor struct {
	registry *parsers.Registry
	fixer    builder.PathFixer
	limit    int
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.ProcessingMetrics
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxConcurrentUploads bounds how many uploads are parsed at once.
func WithMaxConcurrentUploads(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer sets the tracer used for processing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithMetrics sets the processing metric instruments.
func WithMetrics(metrics *observability.ProcessingMetrics) Option {
	return func(p *Processor) {
		p.metrics = metrics
	}
}

// New creates a Processor. A nil registry uses [parsers.DefaultRegistry];
// a nil fixer keeps every non-empty path.
func New(registry *parsers.Registry, fixer builder.PathFixer, opts ...Option) *Processor {
	if registry == nil {
		registry = parsers.DefaultRegistry()
	}

	p := &Processor{
		registry: registry,
		fixer:    fixer,
		limit:    DefaultMaxConcurrentUploads,
		logger:   slog.Default(),
		tracer:   nooptrace.NewTracerProvider().Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process parses every upload into its own builder session, then merges the
// successful ones into base in upload order. A nil base starts from an empty
// report. Failed uploads are reported in their Result and leave base
// untouched. If ctx is canceled before merging starts, base is not modified
// and the context error is returned.
func (p *Processor) Process(ctx context.Context, base *coverage.Report, uploads []Upload) (*coverage.Report, []Result, error) {
	if len(uploads) == 0 {
		return base, nil, ErrNoUploads
	}

	if base == nil {
		base = coverage.NewReport()
	}

	ctx, span := p.tracer.Start(ctx, "covfold.process",
		trace.WithAttributes(attribute.Int("covfold.uploads", len(uploads))))
	defer span.End()

	results := make([]Result, len(uploads))
	partials := make([]*coverage.Report, len(uploads))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.limit)

	for i := range uploads {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			partials[i], results[i] = p.parseUpload(egCtx, uploads[i])

			return nil
		})
	}

	waitErr := eg.Wait()
	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, "canceled")

		return base, nil, fmt.Errorf("process uploads: %w", waitErr)
	}

	if err := ctx.Err(); err != nil {
		return base, nil, fmt.Errorf("process uploads: %w", err)
	}

	failed := 0

	for i := range uploads {
		if results[i].Err == nil {
			mergeErr := base.Merge(partials[i])
			if mergeErr != nil {
				results[i].Err = fmt.Errorf("merge session %d: %w", results[i].SessionID, mergeErr)
			}
		}

		status := observability.StatusOK
		if results[i].Err != nil {
			status = observability.StatusError
			failed++

			p.logger.WarnContext(ctx, "upload rejected",
				"session", results[i].SessionID,
				"format", results[i].Format,
				"error", results[i].Err)
		}

		p.metrics.RecordUpload(ctx, observability.UploadStats{
			Format:       formatLabel(results[i].Format),
			Status:       status,
			Lines:        results[i].Stats.Lines,
			IgnoredLines: results[i].Stats.IgnoredLines,
			Duration:     results[i].Duration,
		})
	}

	span.SetAttributes(attribute.Int("covfold.uploads.failed", failed))

	p.logger.InfoContext(ctx, "uploads processed",
		"uploads", len(uploads),
		"failed", failed,
		"files", len(base.Files()),
		"sessions", len(base.Sessions()))

	return base, results, nil
}

func (p *Processor) parseUpload(ctx context.Context, upload Upload) (*coverage.Report, Result) {
	_, span := p.tracer.Start(ctx, "covfold.parse",
		trace.WithAttributes(
			attribute.Int("covfold.session", upload.Session.ID),
			attribute.String("covfold.upload.name", upload.Name),
			attribute.Int("covfold.upload.bytes", len(upload.Payload)),
		))
	defer span.End()

	start := time.Now()
	session := builder.New(upload.Session, p.fixer, builder.WithLogger(p.logger))

	format, parseErr := p.registry.Parse(upload.Format, upload.Payload, upload.Name, session)

	result := Result{
		SessionID: upload.Session.ID,
		Format:    format,
		Stats:     session.Stats(),
		Duration:  time.Since(start),
	}

	span.SetAttributes(attribute.String("covfold.format", format))

	if parseErr != nil {
		result.Err = parseErr

		span.RecordError(parseErr)
		span.SetStatus(codes.Error, "parse failed")

		return nil, result
	}

	return session.OutputReport(), result
}

// Ingest loads the report stored under baseKey (or key when baseKey is
// empty), processes uploads into it and saves the result under key. A
// missing base starts from an empty report. Nothing is saved when every
// upload failed.
func (p *Processor) Ingest(ctx context.Context, store storage.Store, baseKey, key string, uploads []Upload) (*coverage.Report, []Result, error) {
	if baseKey == "" {
		baseKey = key
	}

	base, loadErr := store.Load(ctx, baseKey)

	switch {
	case errors.Is(loadErr, storage.ErrNotFound):
		base = coverage.NewReport()
	case loadErr != nil:
		return nil, nil, fmt.Errorf("load base report: %w", loadErr)
	}

	report, results, err := p.Process(ctx, base, uploads)
	if err != nil {
		return nil, results, err
	}

	if !anyOK(results) {
		return report, results, nil
	}

	saveErr := store.Save(ctx, key, report)
	if saveErr != nil {
		return nil, results, fmt.Errorf("save report: %w", saveErr)
	}

	return report, results, nil
}

func anyOK(results []Result) bool {
	for _, result := range results {
		if result.OK() {
			return true
		}
	}

	return false
}

func formatLabel(format string) string {
	if format == "" {
		return "unknown"
	}

	return format
}
