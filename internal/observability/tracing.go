package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "giftprobe"

// Span names
const (
	SpanBatch = "giftprobe.batch"
	SpanCase  = "giftprobe.case"
	SpanRound = "giftprobe.round"
	SpanFix   = "giftprobe.fix"
)

// Attribute keys
const (
	AttrRunID     = "giftprobe.run_id"
	AttrCaseID    = "giftprobe.case_id"
	AttrRound     = "giftprobe.round"
	AttrScore     = "giftprobe.score"
	AttrStatus    = "giftprobe.status"
	AttrFixSource = "giftprobe.fix_source"
	AttrCases     = "giftprobe.cases"
)

// Tracer returns the tracer from the global provider. Without an installed
// SDK provider spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span tagged with the run and case ids carried by ctx.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if runID := RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	if caseID := CaseIDFromContext(ctx); caseID != "" {
		attrs = append(attrs, attribute.String(AttrCaseID, caseID))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// RoundAttrs describes a finished round.
func RoundAttrs(round int, score float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrRound, round),
		attribute.Float64(AttrScore, score),
	}
}

// TracingConfig configures span export. Disabled tracing leaves the global
// no-op provider in place.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter       string  `mapstructure:"exporter" yaml:"exporter"` // otlp, zipkin
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ZipkinEndpoint string  `mapstructure:"zipkin_endpoint" yaml:"zipkin_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
}

// InitTracing installs a global SDK tracer provider for config and returns
// its shutdown function, which flushes pending spans.
func InitTracing(ctx context.Context, config TracingConfig) (func(context.Context) error, error) {
	if !config.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if config.ServiceName == "" {
		config.ServiceName = instrumentationName
	}
	if config.SampleRate <= 0 || config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch config.Exporter {
	case "", "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "zipkin":
		endpoint := config.ZipkinEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		exporter, err = zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", config.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
