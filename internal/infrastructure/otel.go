package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"coefcalc/internal/config"
)

// MeterName is the instrumentation scope for all instruments and spans
const MeterName = "coefcalc"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Metrics        *CalculationMetrics
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and, when enabled, a Prometheus-backed
// meter provider. Each call gets its own registry.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	return initializeOTel(cfg, logger, os.Stderr)
}

func initializeOTel(cfg config.TelemetryConfig, logger *slog.Logger, traceOut io.Writer) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		attribute.String("service.instance.id", GenerateTraceID()),
	)

	providers := &OTelProviders{Logger: logger}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
	otel.SetTracerProvider(tp)

	if cfg.MetricsEnabled {
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		providers.Meter = noop.NewMeterProvider().Meter(MeterName)
	}

	metrics, err := NewCalculationMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	providers.Metrics = metrics

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Bool("trace_stdout", cfg.TraceStdout))

	return providers, nil
}

// Shutdown flushes and stops the providers
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
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// CalculationMetrics holds the application instruments. A nil receiver
// records nothing.
type CalculationMetrics struct {
	CalculationsTotal   metric.Int64Counter
	CalculationDuration metric.Float64Histogram
	RowsParsed          metric.Int64Counter
	FilesRejected       metric.Int64Counter
	ProductsComputed    metric.Int64Counter
	ActiveSessions      metric.Int64UpDownCounter
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewCalculationMetrics registers the instruments on meter
func NewCalculationMetrics(meter metric.Meter) (*CalculationMetrics, error) {
	calculations, err := meter.Int64Counter(
		"calculations_total",
		metric.WithDescription("Total number of coefficient calculations"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"calculation_duration_seconds",
		metric.WithDescription("Calculation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"rows_parsed_total",
		metric.WithDescription("Data rows read from input files"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"files_rejected_total",
		metric.WithDescription("Input files rejected before parsing"),
	)
	if err != nil {
		return nil, err
	}

	products, err := meter.Int64Counter(
		"products_computed_total",
		metric.WithDescription("Products with a computed coefficient"),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Stored calculation results"),
	)
	if err != nil {
		return nil, err
	}

	httpRequests, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CalculationMetrics{
		CalculationsTotal:   calculations,
		CalculationDuration: duration,
		RowsParsed:          rows,
		FilesRejected:       rejected,
		ProductsComputed:    products,
		ActiveSessions:      sessions,
		HTTPRequestsTotal:   httpRequests,
		HTTPRequestDuration: httpDuration,
	}, nil
}

// RecordCalculation records one finished calculation
func (m *CalculationMetrics) RecordCalculation(ctx context.Context, duration time.Duration, outcome string, products int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.CalculationsTotal.Add(ctx, 1, attrs)
	m.CalculationDuration.Record(ctx, duration.Seconds(), attrs)
	if products > 0 {
		m.ProductsComputed.Add(ctx, int64(products))
	}
}

// RecordRows adds n parsed rows for a file family
func (m *CalculationMetrics) RecordRows(ctx context.Context, family string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsParsed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("family", family)))
}

// RecordRejection counts a rejected file
func (m *CalculationMetrics) RecordRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.FilesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SessionDelta moves the stored session gauge
func (m *CalculationMetrics) SessionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}

// RecordHTTPRequest records one served request
func (m *CalculationMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// StartSpan starts a span on the global tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(MeterName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext returns the OpenTelemetry trace ID, or ""
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
