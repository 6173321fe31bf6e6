package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "storebot"

var tracer trace.Tracer

// TraceOptions configures span export
type TraceOptions struct {
	ServiceName string
	Environment string
	// JaegerEndpoint is the collector URL. Empty disables export.
	JaegerEndpoint string
	// SampleRatio is the share of root spans kept, in [0, 1].
	SampleRatio float64
}

// InitTracer exports spans to Jaeger. With no endpoint it keeps the global
// no-op provider and returns a nil provider.
func InitTracer(opts TraceOptions) (*sdktrace.TracerProvider, error) {
	log := Named("tracing")
	if opts.JaegerEndpoint == "" {
		log.Info("Tracing disabled, no Jaeger endpoint configured")
		return nil, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.DeploymentEnvironmentKey.String(opts.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(opts.ServiceName)

	log.Info("Tracer initialized",
		zap.String("service", opts.ServiceName),
		zap.String("endpoint", opts.JaegerEndpoint),
		zap.Float64("sample_ratio", opts.SampleRatio))
	return tp, nil
}

func GetTracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer
}

// StartSpan starts a span carrying the given attributes
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// MarkSpanError records err on the span and flags it failed. A nil err is
// a no-op.
func MarkSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan marks a failed span and ends it
func EndSpan(span trace.Span, err error) {
	MarkSpanError(span, err)
	span.End()
}
