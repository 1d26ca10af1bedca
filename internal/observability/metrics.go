package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricUploadsTotal        = "covfold.uploads.total"
	metricLinesTotal          = "covfold.lines.total"
	metricIgnoredLinesTotal   = "covfold.lines.ignored.total"
	metricParseDuration       = "covfold.parse.duration.seconds"
	metricCarryforwardsTotal  = "covfold.carryforward.total"
	metricCarriedSessions     = "covfold.carryforward.sessions.total"
	metricCarryforwardRemoved = "covfold.carryforward.files.removed.total"

	attrFormat  = "format"
	attrStatus  = "status"
	attrOutcome = "outcome"

	// StatusOK marks a successfully processed upload.
	StatusOK = "ok"
	// StatusError marks an upload that failed to parse or merge.
	StatusError = "error"

	outcomeCarried  = "carried"
	outcomeRemoved  = "removed"
	outcomeBaseline = "baseline"
	outcomeNoParent = "no_parent"
)

// durationBucketBoundaries covers 1ms to 120s; most payloads parse well
// under a second, large monorepo reports take tens of seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// ProcessingMetrics holds OTel instruments for upload processing and carryforward.
type ProcessingMetrics struct {
	uploadsTotal   metric.Int64Counter
	linesTotal     metric.Int64Counter
	ignoredTotal   metric.Int64Counter
	parseDuration  metric.Float64Histogram
	carryforwards  metric.Int64Counter
	carriedSession metric.Int64Counter
	removedFiles   metric.Int64Counter
}

// UploadStats describes one processed upload.
type UploadStats struct {
	Format       string
	Status       string
	Lines        int
	IgnoredLines int
	Duration     time.Duration
}

// CarryforwardStats describes one carryforward run.
type CarryforwardStats struct {
	ParentFound     bool
	CarriedSessions int
	RemovedSessions int
	RemovedFiles    int
}

// NewProcessingMetrics creates processing metric instruments from the given meter.
func NewProcessingMetrics(mt metric.Meter) (*ProcessingMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &ProcessingMetrics{
		uploadsTotal:   b.counter(metricUploadsTotal, "Uploads processed by format and status", "{upload}"),
		linesTotal:     b.counter(metricLinesTotal, "Line records accepted", "{line}"),
		ignoredTotal:   b.counter(metricIgnoredLinesTotal, "Line records dropped by the path fixer", "{line}"),
		parseDuration:  b.histogram(metricParseDuration, "Per-upload parse duration in seconds", "s", durationBucketBoundaries...),
		carryforwards:  b.counter(metricCarryforwardsTotal, "Carryforward runs by outcome", "{run}"),
		carriedSession: b.counter(metricCarriedSessions, "Sessions carried or removed by carryforward", "{session}"),
		removedFiles:   b.counter(metricCarryforwardRemoved, "Files removed by carryforward path filters", "{file}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordUpload records one processed upload.
// Safe to call on a nil receiver (no-op).
func (pm *ProcessingMetrics) RecordUpload(ctx context.Context, stats UploadStats) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrFormat, stats.Format),
		attribute.String(attrStatus, stats.Status),
	)

	pm.uploadsTotal.Add(ctx, 1, attrs)
	pm.parseDuration.Record(ctx, stats.Duration.Seconds(), attrs)

	formatAttrs := metric.WithAttributes(attribute.String(attrFormat, stats.Format))
	pm.linesTotal.Add(ctx, int64(stats.Lines), formatAttrs)
	pm.ignoredTotal.Add(ctx, int64(stats.IgnoredLines), formatAttrs)
}

// RecordCarryforward records one carryforward run.
// Safe to call on a nil receiver (no-op).
func (pm *ProcessingMetrics) RecordCarryforward(ctx context.Context, stats CarryforwardStats) {
	if pm == nil {
		return
	}

	if !stats.ParentFound {
		pm.carryforwards.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcomeNoParent)))

		return
	}

	pm.carryforwards.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcomeBaseline)))
	pm.carriedSession.Add(ctx, int64(stats.CarriedSessions), metric.WithAttributes(attribute.String(attrOutcome, outcomeCarried)))
	pm.carriedSession.Add(ctx, int64(stats.RemovedSessions), metric.WithAttributes(attribute.String(attrOutcome, outcomeRemoved)))
	pm.removedFiles.Add(ctx, int64(stats.RemovedFiles))
}
