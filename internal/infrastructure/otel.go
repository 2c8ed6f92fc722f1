package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"carecohort/internal/config"
)

// InstrumentationName names the tracer and meter of this module.
const InstrumentationName = "carecohort"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout" or "none"
	EnableMetrics  bool
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// OTelConfigFromTelemetry derives the provider settings from application config.
func OTelConfigFromTelemetry(cfg config.TelemetryConfig, version string) *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	name := cfg.ServiceName
	if name == "" {
		name = config.AppName
	}
	return &OTelConfig{
		ServiceName:    name,
		ServiceVersion: version,
		Environment:    env,
		TraceExporter:  cfg.TraceExporter,
		EnableMetrics:  cfg.MetricsEnabled,
	}
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	return OTelConfigFromTelemetry(config.Default().Telemetry, config.AppVersion)
}

// InitializeOTel sets up tracing and, when enabled, Prometheus-backed
// metrics. The tracer provider is always an SDK provider so spans carry
// real trace IDs for log correlation; spans are only exported with the
// stdout exporter.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

// initializeMetrics wires the OTel meter to a private Prometheus registry so
// repeated initialization (tests, CLI subcommands) never collides on the
// default registerer.
func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	providers.MeterProvider = mp
	providers.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)
	return nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Analysis metrics
	AnalysisRunsTotal     metric.Int64Counter
	AnalysisDuration      metric.Float64Histogram
	AnalysisErrors        metric.Int64Counter
	RowsConsolidated      metric.Int64Counter
	UnmatchedEvents       metric.Int64Counter
	OutliersDetected      metric.Int64Counter
	UploadsTotal          metric.Int64Counter
	UploadRowsIngested    metric.Int64Counter
	StorageWritesTotal    metric.Int64Counter
	MappingSuggestionRuns metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	var (
		m   BusinessMetrics
		err error
	)
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}

	m.HTTPRequestsTotal = counter("http_requests_total", "Total number of HTTP requests")
	m.HTTPRequestDuration = histogram("http_request_duration_seconds", "HTTP request duration in seconds")
	if err == nil {
		m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
			metric.WithDescription("Number of active HTTP requests"))
	}

	m.AnalysisRunsTotal = counter("analysis_runs_total", "Total number of cohort analysis runs")
	m.AnalysisDuration = histogram("analysis_duration_seconds", "Cohort analysis duration in seconds")
	m.AnalysisErrors = counter("analysis_errors_total", "Total number of failed cohort analysis runs")
	m.RowsConsolidated = counter("analysis_rows_consolidated_total", "Event rows produced by consolidation")
	m.UnmatchedEvents = counter("analysis_unmatched_events_total", "Event rows without a roster match")
	m.OutliersDetected = counter("analysis_outliers_total", "Beneficiaries flagged as cost outliers")
	m.UploadsTotal = counter("uploads_total", "Total number of table uploads")
	m.UploadRowsIngested = counter("upload_rows_total", "Rows parsed from uploaded tables")
	m.StorageWritesTotal = counter("storage_writes_total", "Storage writes by outcome")
	m.MappingSuggestionRuns = counter("mapping_suggestions_total", "Column mapping suggestion requests")

	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordAnalysisRun records one pipeline execution.
func (m *BusinessMetrics) RecordAnalysisRun(ctx context.Context, duration time.Duration, rows, unmatched, outliers int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
		m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", fmt.Sprintf("%T", err))))
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.AnalysisRunsTotal.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		return
	}
	m.RowsConsolidated.Add(ctx, int64(rows))
	m.UnmatchedEvents.Add(ctx, int64(unmatched))
	m.OutliersDetected.Add(ctx, int64(outliers))
}

// RecordUpload records a parsed upload of the given kind ("roster" or "events").
func (m *BusinessMetrics) RecordUpload(ctx context.Context, kind string, rows int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("table", kind))
	m.UploadsTotal.Add(ctx, 1, attrs)
	m.UploadRowsIngested.Add(ctx, int64(rows), attrs)
}

// RecordStorageWrite records the outcome of a storage write.
func (m *BusinessMetrics) RecordStorageWrite(ctx context.Context, artifact, outcome string) {
	if m == nil {
		return
	}
	m.StorageWritesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("artifact", artifact),
		attribute.String("outcome", outcome),
	))
}

// RecordSuggestion records a mapping suggestion request.
func (m *BusinessMetrics) RecordSuggestion(ctx context.Context) {
	if m == nil {
		return
	}
	m.MappingSuggestionRuns.Add(ctx, 1)
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
