package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loomsite/server/observability"

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for database operations
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db *sql.DB
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB) *TraceDB {
	return &TraceDB{db: db}
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := StartSpan(ctx, "DB Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(Duration(time.Since(start)))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := StartSpan(ctx, "DB Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}
	span.SetAttributes(Duration(time.Since(start)))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := StartSpan(ctx, "DB QueryRow",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)
	// Note: the sql.Row interface gives no hook after scanning
	row := t.db.QueryRowContext(ctx, query, args...)
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// EngineMetrics holds the theme engine's business metrics. A nil
// *EngineMetrics is valid and records nothing, so services can run without
// a meter in tests.
type EngineMetrics struct {
	uploads          metric.Int64Counter
	snapshotBuilds   metric.Int64Counter
	snapshotDuration metric.Float64Histogram
	updateApplies    metric.Int64Counter
}

// NewEngineMetrics creates the engine metrics instruments
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(instrumentationName)

	uploads, err := meter.Int64Counter(
		"loomsite.theme.uploads",
		metric.WithDescription("Total number of theme package uploads"),
		metric.WithUnit("{uploads}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotBuilds, err := meter.Int64Counter(
		"loomsite.theme.snapshot_builds",
		metric.WithDescription("Total number of snapshot rebuilds"),
		metric.WithUnit("{builds}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotDuration, err := meter.Float64Histogram(
		"loomsite.theme.snapshot_build.duration",
		metric.WithDescription("Snapshot rebuild duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	updateApplies, err := meter.Int64Counter(
		"loomsite.theme.update_applies",
		metric.WithDescription("Total number of per-project theme update applications"),
		metric.WithUnit("{updates}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		uploads:          uploads,
		snapshotBuilds:   snapshotBuilds,
		snapshotDuration: snapshotDuration,
		updateApplies:    updateApplies,
	}, nil
}

// RecordUpload records a theme package upload attempt
func (m *EngineMetrics) RecordUpload(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
}

// RecordSnapshotBuild records a snapshot rebuild and its duration
func (m *EngineMetrics) RecordSnapshotBuild(ctx context.Context, themeID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("theme_id", themeID),
		attribute.Bool("success", err == nil),
	)
	m.snapshotBuilds.Add(ctx, 1, attrs)
	m.snapshotDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordUpdateApply records a per-project update application attempt
func (m *EngineMetrics) RecordUpdateApply(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.updateApplies.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
}
