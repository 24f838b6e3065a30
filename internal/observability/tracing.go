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

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("service.component", service),
		attribute.String("service.operation", operation),
	}, attrs...)
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
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

// ThemeMetrics holds theme resolution metrics. A nil *ThemeMetrics records nothing.
type ThemeMetrics struct {
	loads            metric.Int64Counter
	loadFailures     metric.Int64Counter
	imageResolutions metric.Int64Counter
	fallbackLookups  metric.Int64Counter
	cacheSize        metric.Int64UpDownCounter
	initDuration     metric.Float64Histogram
}

// NewThemeMetrics creates theme metrics instruments
func NewThemeMetrics() (*ThemeMetrics, error) {
	meter := otel.Meter(instrumentationName)

	loads, err := meter.Int64Counter(
		"themes.load.count",
		metric.WithDescription("Total number of theme load attempts"),
		metric.WithUnit("{loads}"),
	)
	if err != nil {
		return nil, err
	}

	loadFailures, err := meter.Int64Counter(
		"themes.load.failures",
		metric.WithDescription("Theme loads that ended without a cached theme"),
		metric.WithUnit("{loads}"),
	)
	if err != nil {
		return nil, err
	}

	imageResolutions, err := meter.Int64Counter(
		"themes.image.resolutions",
		metric.WithDescription("Background image resolver calls"),
		metric.WithUnit("{calls}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackLookups, err := meter.Int64Counter(
		"themes.lookup.fallbacks",
		metric.WithDescription("Safe lookups answered with a substitute theme"),
		metric.WithUnit("{lookups}"),
	)
	if err != nil {
		return nil, err
	}

	cacheSize, err := meter.Int64UpDownCounter(
		"themes.cache.size",
		metric.WithDescription("Number of resolved themes held in the cache"),
		metric.WithUnit("{themes}"),
	)
	if err != nil {
		return nil, err
	}

	initDuration, err := meter.Float64Histogram(
		"themes.initialize.duration",
		metric.WithDescription("Theme resolution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &ThemeMetrics{
		loads:            loads,
		loadFailures:     loadFailures,
		imageResolutions: imageResolutions,
		fallbackLookups:  fallbackLookups,
		cacheSize:        cacheSize,
		initDuration:     initDuration,
	}, nil
}

// RecordLoad records the outcome of one theme load
func (m *ThemeMetrics) RecordLoad(ctx context.Context, theme string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("theme.name", theme),
		attribute.Bool("success", err == nil),
	)
	m.loads.Add(ctx, 1, attrs)
	m.initDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.loadFailures.Add(ctx, 1, attrs)
	}
}

// RecordImageResolution records one resolver call
func (m *ThemeMetrics) RecordImageResolution(ctx context.Context, theme string, success bool) {
	if m == nil {
		return
	}
	m.imageResolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("theme.name", theme),
		attribute.Bool("success", success),
	))
}

// RecordFallback records a safe lookup that did not find the requested theme
func (m *ThemeMetrics) RecordFallback(ctx context.Context, requested, served string) {
	if m == nil {
		return
	}
	m.fallbackLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("theme.requested", requested),
		attribute.String("theme.served", served),
	))
}

// AdjustCacheSize applies a delta to the cache size gauge
func (m *ThemeMetrics) AdjustCacheSize(ctx context.Context, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.cacheSize.Add(ctx, delta)
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, system, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	)

	m.queryCount.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.errorCount.Add(ctx, 1, attrs)
	}
}

// TraceDB wraps sql.DB with spans and query metrics
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. system is the db.system attribute, e.g. "sqlite" or "postgresql".
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		system:  system,
		metrics: metrics,
	}, nil
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(ctx, span, "query", start, err)
	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	if err == nil {
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}
	t.finish(ctx, span, "exec", start, err)
	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing.
// The span ends before the row is scanned; sql.Row gives no hook for that.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	defer span.End()

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, "query_row", start, row.Err())
	return row
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, t.system, operation, duration, err)
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}
