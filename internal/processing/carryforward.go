package processing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/covfold/internal/carryforward"
	"github.com/Sumatoshi-tech/covfold/internal/observability"
	"github.com/Sumatoshi-tech/covfold/internal/storage"
	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Outcome describes one carryforward run.
type Outcome struct {
	// ParentFound is false when no report exists under the parent key; in
	// that case nothing was saved.
	ParentFound bool
	Report      *coverage.Report
	Summary     carryforward.Summary
}

// Carryforward loads the report stored under parentKey, reduces it to a
// baseline with [carryforward.GenerateCarryforwardReport] and saves it under
// key. A missing parent is not an error.
func (p *Processor) Carryforward(
	ctx context.Context, store storage.Store, parentKey, key string, req carryforward.Request,
) (Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "covfold.carryforward",
		trace.WithAttributes(
			attribute.String("covfold.parent", parentKey),
			attribute.StringSlice("covfold.flags", req.Flags),
			attribute.Int("covfold.paths", len(req.Paths)),
		))
	defer span.End()

	parent, loadErr := store.Load(ctx, parentKey)
	if errors.Is(loadErr, storage.ErrNotFound) {
		p.logger.InfoContext(ctx, "no parent report, nothing to carry forward", "parent", parentKey)
		p.metrics.RecordCarryforward(ctx, observability.CarryforwardStats{})

		return Outcome{}, nil
	}

	if loadErr != nil {
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, "load parent")

		return Outcome{}, fmt.Errorf("load parent report: %w", loadErr)
	}

	report, summary, genErr := carryforward.GenerateCarryforwardReport(parent, req)
	if genErr != nil {
		span.RecordError(genErr)
		span.SetStatus(codes.Error, "carryforward")

		return Outcome{}, fmt.Errorf("carryforward: %w", genErr)
	}

	saveErr := store.Save(ctx, key, report)
	if saveErr != nil {
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, "save baseline")

		return Outcome{}, fmt.Errorf("save baseline: %w", saveErr)
	}

	p.metrics.RecordCarryforward(ctx, observability.CarryforwardStats{
		ParentFound:     true,
		CarriedSessions: len(summary.CarriedSessions),
		RemovedSessions: len(summary.RemovedSessions),
		RemovedFiles:    len(summary.RemovedFiles),
	})

	p.logger.InfoContext(ctx, "carryforward baseline saved",
		"parent", parentKey,
		"key", key,
		"carried_sessions", len(summary.CarriedSessions),
		"removed_sessions", len(summary.RemovedSessions),
		"removed_files", len(summary.RemovedFiles))

	return Outcome{ParentFound: true, Report: report, Summary: summary}, nil
}
